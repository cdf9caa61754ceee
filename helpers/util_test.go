package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetSplitPart(t *testing.T) {
	href := "/item/itemView.ssg?itemId=1000011111111&siteNo=6004"

	part, err := GetSplitPart(href, "itemId=", 1)
	assert.NoError(t, err)
	assert.Equal(t, "1000011111111&siteNo=6004", part)
}

func TestGetSplitPartOutOfRange(t *testing.T) {
	_, err := GetSplitPart("no-separator-here", "itemId=", 1)
	assert.Error(t, err)
}
