package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/property-finder/internal/model"
)

var topCmd = &cobra.Command{
	Use:   "top",
	Short: "Print the highest ranked listings",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")

		items := env.Board.Current().Top(limit)
		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(items)
		}

		if len(items) == 0 {
			fmt.Fprintln(os.Stderr, "No listings yet. Run `property-finder search` first.")
			return nil
		}
		formatListings(os.Stdout, items)
		return nil
	},
}

func init() {
	topCmd.Flags().Int("limit", 50, "number of listings to show (0 for all)")
	topCmd.Flags().Bool("json", false, "print JSON instead of a table")
	rootCmd.AddCommand(topCmd)
}

// formatListings writes a ranked table of listings to w.
func formatListings(out io.Writer, items []model.ScoredListing) {
	p := message.NewPrinter(language.Japanese)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "RANK\tSCORE\tPRICE\tROUTE\tAREA\tWALK\tTITLE")
	_, _ = fmt.Fprintln(w, "----\t-----\t-----\t-----\t----\t----\t-----")

	for _, s := range items {
		title := []rune(s.Listing.Title)
		if len(title) > 30 {
			title = append(title[:27], []rune("...")...)
		}
		_, _ = fmt.Fprintf(w, "%d\t%.4f\t%s\t%s\t%s\t%d min\t%s\n",
			s.Rank,
			s.Score,
			p.Sprintf("¥%d", int64(s.Listing.Price)),
			s.RouteName(),
			s.Listing.AreaName,
			s.Listing.WalkMinutes,
			string(title),
		)
	}
	_ = w.Flush()
}
