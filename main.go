package main

import (
	"github.com/minlano/ssg-price-tracker/internal/cli"
)

func main() {
	cli.Execute()
}
