package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/property-finder/internal/catalog"
	"github.com/sells-group/property-finder/internal/scorer"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the effective configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the merged configuration as YAML",
	RunE: func(cmd *cobra.Command, _ []string) error {
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		defer enc.Close() //nolint:errcheck
		if err := enc.Encode(cfg); err != nil {
			return eris.Wrap(err, "config show")
		}
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate scoring weights and the route catalog",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cat, source, err := catalog.Resolve(cfg)
		if err != nil {
			return err
		}
		if _, err := scorer.New(cfg.Scoring, cat); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(os.Stdout, "ok: weight sum %.4f, %d routes from %s\n",
			scorer.WeightSum(cfg.Scoring), cat.Len(), source)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
	rootCmd.AddCommand(configCmd)
}
