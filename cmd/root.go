package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/property-finder/internal/config"
	"github.com/sells-group/property-finder/internal/scorer"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "property-finder",
	Short: "Rental listing finder ranked by commute route",
	Long:  "Scrapes rental listings, scores them by price, commute route tier and walk to station, and serves the ranked set to a dashboard.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		if err := cfg.Validate(); err != nil {
			return err
		}
		// A bad scoring block is fatal before anything is scored.
		if err := scorer.ValidateConfig(cfg.Scoring); err != nil {
			return err
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
