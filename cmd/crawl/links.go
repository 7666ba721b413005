package main

import (
	"errors"
	"fmt"

	"focused-crawler/internal/storage"

	"github.com/spf13/cobra"
)

// NewLinksCmd creates the links command, which reads the link graph a crawl
// stored in SQLite.
func NewLinksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "links --db FILE --run ID [url...]",
		Short: "Show stored in-links and out-links of crawled URLs",
		Long: `links reads the SQLite database written by a crawl with sqlite_path set.
Without URLs it prints the crawled and discovered counts of the run.

Example:
  crawl links --db crawl.db --run 0f8c... http://en.wikipedia.org/wiki/Pope`,
		Args: cobra.ArbitraryArgs,
		RunE: runLinks,
	}

	cmd.Flags().String("db", "", "SQLite database file")
	cmd.Flags().String("run", "", "run id printed by the crawl")

	return cmd
}

func runLinks(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("db")
	runID, _ := cmd.Flags().GetString("run")
	if path == "" || runID == "" {
		return errors.New("--db and --run are required")
	}

	db, err := storage.OpenSQLite(cmd.Context(), path, runID)
	if err != nil {
		return err
	}
	defer db.Close()

	out := cmd.OutOrStdout()
	crawled, discovered, err := db.CountURLs(cmd.Context())
	if err != nil {
		return fmt.Errorf("count urls: %w", err)
	}
	fmt.Fprintf(out, "Run %s: %d crawled, %d discovered\n", runID, crawled, discovered)

	for _, u := range args {
		outLinks, err := db.OutLinks(cmd.Context(), u)
		if err != nil {
			return fmt.Errorf("out-links of %s: %w", u, err)
		}
		inLinks, err := db.InLinks(cmd.Context(), u)
		if err != nil {
			return fmt.Errorf("in-links of %s: %w", u, err)
		}
		fmt.Fprintf(out, "\n%s\n", u)
		fmt.Fprintf(out, "  out-links (%d):\n", len(outLinks))
		for _, l := range outLinks {
			fmt.Fprintf(out, "    %s\n", l)
		}
		fmt.Fprintf(out, "  in-links (%d):\n", len(inLinks))
		for _, l := range inLinks {
			fmt.Fprintf(out, "    %s\n", l)
		}
	}
	return nil
}
