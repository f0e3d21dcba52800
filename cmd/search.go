package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/property-finder/internal/model"
	"github.com/sells-group/property-finder/internal/pipeline"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Run one scrape-score-merge cycle",
	Long:  "Scrapes every configured target, scores the listings against the route catalog, merges them into the stored result set and prints a summary.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if len(cfg.Scrape.Targets) == 0 {
			return eris.New("no scrape targets configured (scrape.targets)")
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		run, err := env.Pipeline.RunCycle(ctx, pipeline.TriggerManual)
		if run != nil {
			formatRunSummary(os.Stdout, run)
		}
		if err != nil {
			return eris.Wrap(err, "search")
		}

		top, _ := cmd.Flags().GetInt("top")
		if top > 0 {
			_, _ = fmt.Fprintln(os.Stdout)
			formatListings(os.Stdout, env.Board.Current().Top(top))
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().Int("top", 10, "print the top N listings after the cycle (0 to skip)")
	rootCmd.AddCommand(searchCmd)
}

// formatRunSummary writes a per-target and overall summary of a run to w.
func formatRunSummary(out io.Writer, run *model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Run:\t%s (%s)\n", run.ID, run.Status)

	if r := run.Result; r != nil {
		for _, t := range r.Targets {
			if t.Error != "" {
				_, _ = fmt.Fprintf(w, "  %s:\tFAILED %s\n", t.Area, t.Error)
				continue
			}
			_, _ = fmt.Fprintf(w, "  %s:\t%d found\n", t.Area, t.Found)
		}
		_, _ = fmt.Fprintf(w, "Fetched:\t%d\n", r.Fetched)
		_, _ = fmt.Fprintf(w, "Scored:\t%d (invalid %d, off-route %d)\n", r.Scored, r.Invalid, r.Mismatched)
		_, _ = fmt.Fprintf(w, "Merged:\t%d new, %d updated, %d total\n", r.New, r.Updated, r.Total)
		if r.Error != "" {
			_, _ = fmt.Fprintf(w, "Error:\t%s\n", r.Error)
		}
	}
	_ = w.Flush()
}
