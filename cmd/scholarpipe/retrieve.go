package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/scholarpipe/paper-retrieval-service/internal/domain"
	"github.com/scholarpipe/paper-retrieval-service/internal/retriever"
)

var retrieveCmd = &cobra.Command{
	Use:   "retrieve [keywords...]",
	Short: "Search the catalog and download open-access PDFs",
	Long: `Retrieve searches Semantic Scholar for papers matching the given
keywords, downloads each result's open-access PDF where one is
available, and prints the batch. The index is not touched; use "run"
to also merge the batch into it.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		req, err := requestFromFlags(cmd, args)
		if err != nil {
			return err
		}

		records := a.retriever.Retrieve(cmd.Context(), req)
		printPapers(records)
		return nil
	},
}

func init() {
	addRetrievalFlags(retrieveCmd)
	rootCmd.AddCommand(retrieveCmd)
}

// addRetrievalFlags registers the flags shared by retrieve and run.
func addRetrievalFlags(cmd *cobra.Command) {
	cmd.Flags().String("start-date", "", "inclusive publication date lower bound (YYYY-MM-DD)")
	cmd.Flags().String("end-date", "", "inclusive publication date upper bound (YYYY-MM-DD)")
	cmd.Flags().StringSlice("fields-of-study", nil, "filter by fields of study (comma-separated)")
	cmd.Flags().Int("max-papers", 20, "maximum number of papers to retrieve")
}

// requestFromFlags builds a retrieval request from the shared flags.
func requestFromFlags(cmd *cobra.Command, keywords []string) (retriever.Request, error) {
	startValue, _ := cmd.Flags().GetString("start-date")
	endValue, _ := cmd.Flags().GetString("end-date")
	fields, _ := cmd.Flags().GetStringSlice("fields-of-study")
	maxPapers, _ := cmd.Flags().GetInt("max-papers")

	start, err := parseDate(startValue)
	if err != nil {
		return retriever.Request{}, err
	}
	end, err := parseDate(endValue)
	if err != nil {
		return retriever.Request{}, err
	}
	if start != nil && end != nil && start.After(*end) {
		return retriever.Request{}, fmt.Errorf("start date %s is after end date %s", startValue, endValue)
	}

	return retriever.Request{
		Keywords:      keywords,
		StartDate:     start,
		EndDate:       end,
		FieldsOfStudy: fields,
		MaxPapers:     maxPapers,
	}, nil
}

// printPapers writes a numbered summary of the batch to stdout.
func printPapers(records []domain.PaperRecord) {
	if len(records) == 0 {
		fmt.Println("No papers found.")
		return
	}

	fmt.Printf("Retrieved %d papers:\n\n", len(records))
	for i, rec := range records {
		fmt.Printf("%d. %s (%d)\n", i+1, rec.Title, rec.Year)
		if names := rec.AuthorNames(); names != "" {
			fmt.Printf("   Authors: %s\n", names)
		}
		if rec.URL != "" {
			fmt.Printf("   URL: %s\n", rec.URL)
		}
		if rec.LocalFilePath != "" {
			fmt.Printf("   PDF: %s\n", rec.LocalFilePath)
		} else if rec.OpenAccessPDFURL != "" {
			fmt.Fprintf(os.Stderr, "   PDF download failed for %s\n", rec.OpenAccessPDFURL)
		}
		fmt.Println()
	}
}
