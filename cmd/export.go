package main

import (
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/property-finder/internal/export"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the ranked listings as CSV or XLSX",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		formatName, _ := cmd.Flags().GetString("format")
		outPath, _ := cmd.Flags().GetString("out")
		limit, _ := cmd.Flags().GetInt("limit")

		format, err := export.ParseFormat(formatName)
		if err != nil {
			return err
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		items := env.Board.Current().Top(limit)

		var w io.Writer = os.Stdout
		if outPath != "" {
			f, err := os.Create(outPath)
			if err != nil {
				return eris.Wrapf(err, "export: create %s", outPath)
			}
			defer f.Close() //nolint:errcheck
			w = f
		}

		if err := export.Write(w, format, items); err != nil {
			return err
		}
		if outPath != "" {
			zap.L().Info("export written", zap.String("path", outPath), zap.Int("listings", len(items)))
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().String("format", "csv", "output format (csv, xlsx)")
	exportCmd.Flags().String("out", "", "output file (default stdout)")
	exportCmd.Flags().Int("limit", 0, "max listings to export (0 for all)")
	rootCmd.AddCommand(exportCmd)
}
