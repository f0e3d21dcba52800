package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/property-finder/internal/catalog"
	"github.com/sells-group/property-finder/internal/model"
)

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "Print the route catalog in effect",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cat, source, err := catalog.Resolve(cfg)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(os.Stdout, "Source: %s\n\n", source)
		formatRoutes(os.Stdout, cat.Routes())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(routesCmd)
}

func formatRoutes(out io.Writer, routes []model.Route) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ROUTE\tTIER\tAREAS")
	for _, r := range routes {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", r.Name, r.Tier, strings.Join(r.Areas, ", "))
	}
	_ = w.Flush()
}
