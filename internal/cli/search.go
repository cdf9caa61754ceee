package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/minlano/ssg-price-tracker/internal/crawler"

	"github.com/spf13/cobra"
)

var (
	searchLimit int
	searchJSON  bool
	searchSort  string
)

var searchCmd = &cobra.Command{
	Use:   "search [keyword]",
	Short: "Search ssg.com listings for a keyword",
	Long: `Crawls the search results for a keyword and prints the extracted
items. Results are served from the cache when a recent identical search
exists. When the site is unreachable, low-confidence placeholder items are
printed instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum number of results")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	searchCmd.Flags().StringVar(&searchSort, "sort", "", "sort by price: asc or desc")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	keyword := args[0]

	ctx := context.Background()
	app, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	var items []crawler.Item
	switch searchSort {
	case "":
		items, err = app.orchestrator.Search(ctx, keyword, searchLimit)
	case "asc", "desc":
		items, err = app.orchestrator.SearchSorted(ctx, keyword, searchLimit, searchSort == "asc")
	default:
		return fmt.Errorf("unknown sort order %q (want asc or desc)", searchSort)
	}
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		data, err := json.MarshalIndent(items, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if len(items) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	for i, item := range items {
		marker := ""
		if item.Confidence == crawler.ConfidencePlaceholder {
			marker = " (placeholder)"
		}
		cmd.Printf("  [%d] %s%s\n", i+1, item.Name, marker)
		cmd.Printf("      %d원 | %s | %s\n", item.Price, item.Brand, item.URL)
	}
	return nil
}
