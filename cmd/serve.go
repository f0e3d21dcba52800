package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/property-finder/internal/monitoring"
	"github.com/sells-group/property-finder/internal/pipeline"
	"github.com/sells-group/property-finder/internal/server"
)

var (
	servePort       int
	serveNoSchedule bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dashboard feed and run scheduled cycles",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		srvCfg := cfg.Server
		if servePort != 0 {
			srvCfg.Port = servePort
		}

		collector := monitoring.NewCollector(env.Store, env.Board, cfg.Scoring.PriceBand)
		srv := server.New(srvCfg, server.Deps{
			Board:     env.Board,
			Cycler:    env.Pipeline,
			Runs:      env.Store,
			Routes:    env.Catalog.Routes(),
			Collector: collector,
			Lookback:  cfg.Monitoring.LookbackWindowHours,
		})

		g, gCtx := errgroup.WithContext(ctx)
		g.Go(func() error { return srv.ListenAndServe(gCtx) })

		if !serveNoSchedule && len(cfg.Scrape.Targets) > 0 {
			sched := pipeline.NewScheduler(env.Pipeline, cfg.Schedule)
			g.Go(func() error {
				sched.Run(gCtx)
				return nil
			})
		} else {
			zap.L().Info("scheduler disabled")
		}

		if cfg.Monitoring.WebhookURL != "" {
			checker := monitoring.NewChecker(collector, monitoring.NewAlerter(cfg.Monitoring), cfg.Monitoring)
			g.Go(func() error {
				checker.Run(gCtx)
				return nil
			})
		}

		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().BoolVar(&serveNoSchedule, "no-schedule", false, "serve the feed without running scheduled cycles")
	rootCmd.AddCommand(serveCmd)
}
