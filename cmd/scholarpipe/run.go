package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scholarpipe/paper-retrieval-service/internal/index"
)

var runCmd = &cobra.Command{
	Use:   "run [keywords...]",
	Short: "Retrieve papers and merge them into the similarity index",
	Long: `Run executes the full pipeline: search the catalog, download
open-access PDFs, and merge the batch into the similarity index.
Papers already present in the index are skipped, so repeated runs
with overlapping results only add what is new. With --replace the
existing index is discarded first.`,
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

		mode := index.ModeAppend
		if replace, _ := cmd.Flags().GetBool("replace"); replace {
			mode = index.ModeReplace
		}

		added, err := a.indexer.Merge(cmd.Context(), a.cfg.Index.Dir, records, mode)
		if err != nil {
			return fmt.Errorf("merge into index: %w", err)
		}
		fmt.Printf("Indexed %d new papers (store: %s).\n", added, a.cfg.Index.Dir)

		// Optionally finish the pipeline with a similarity query.
		text, _ := cmd.Flags().GetString("query")
		if text == "" {
			return nil
		}
		top, _ := cmd.Flags().GetInt("top")
		hits, err := a.indexer.Query(cmd.Context(), a.cfg.Index.Dir, text, top)
		if err != nil {
			return fmt.Errorf("query index: %w", err)
		}
		printHits(text, hits)
		return nil
	},
}

func init() {
	addRetrievalFlags(runCmd)
	runCmd.Flags().Bool("replace", false, "discard the existing index before merging")
	runCmd.Flags().String("query", "", "similarity query to run after indexing")
	runCmd.Flags().Int("top", 5, "number of matches to return for --query")
	rootCmd.AddCommand(runCmd)
}
