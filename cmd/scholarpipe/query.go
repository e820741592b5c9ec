package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/scholarpipe/paper-retrieval-service/internal/index"
)

var queryCmd = &cobra.Command{
	Use:   "query [text...]",
	Short: "Find indexed papers most similar to a query",
	Long: `Query embeds the given text and returns the most similar paper
abstracts from the index, best match first. Querying before any run
has built an index returns no results.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		top, _ := cmd.Flags().GetInt("top")
		text := strings.Join(args, " ")

		hits, err := a.indexer.Query(cmd.Context(), a.cfg.Index.Dir, text, top)
		if err != nil {
			return fmt.Errorf("query index: %w", err)
		}

		printHits(text, hits)
		return nil
	},
}

// printHits writes a numbered summary of query results to stdout.
func printHits(text string, hits []index.Hit) {
	if len(hits) == 0 {
		fmt.Println("No matches.")
		return
	}

	fmt.Printf("Top %d matches for %q:\n\n", len(hits), text)
	for i, hit := range hits {
		fmt.Printf("%d. %s (%d)  score=%.4f\n", i+1, hit.Metadata.Title, hit.Metadata.Year, hit.Score)
		if hit.Metadata.Authors != "" {
			fmt.Printf("   Authors: %s\n", hit.Metadata.Authors)
		}
		if hit.Metadata.URL != "" {
			fmt.Printf("   URL: %s\n", hit.Metadata.URL)
		}
		if hit.Metadata.LocalFilePath != "" {
			fmt.Printf("   PDF: %s\n", hit.Metadata.LocalFilePath)
		}
		fmt.Printf("   %s\n\n", truncate(hit.Content, 280))
	}
}

func init() {
	queryCmd.Flags().Int("top", 5, "number of matches to return")
	rootCmd.AddCommand(queryCmd)
}

// truncate shortens s to at most n runes for display.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
