package main

import (
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/property-finder/internal/pipeline"
	"github.com/sells-group/property-finder/internal/scrape"
)

var importCmd = &cobra.Command{
	Use:   "import <listings.json>",
	Short: "Score and merge a JSON batch of listings",
	Long:  "Reads a JSON array of listings produced by an external scraper and merges it through the same scoring path as a scrape cycle.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		listings, err := scrape.ReadListingsFile(args[0], time.Now())
		if err != nil {
			return err
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		run, err := env.Pipeline.Ingest(ctx, pipeline.TriggerImport, listings)
		if run != nil {
			formatRunSummary(os.Stdout, run)
		}
		if err != nil {
			return eris.Wrap(err, "import")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}
