package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newthinker/enercast/internal/api"
	handler "github.com/newthinker/enercast/internal/api/handler/api"
	"github.com/newthinker/enercast/internal/api/job"
	"github.com/newthinker/enercast/internal/backtest"
	"github.com/newthinker/enercast/internal/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the ENERCAST API server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	if cfgFile == "" {
		log.Warn("no config file specified, using defaults")
	}
	log.Info("starting ENERCAST server",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("prices", cfg.Storage.Prices.Type),
	)

	ctx, stop := signalContext()
	defer stop()

	provider, closeProvider, err := openProvider(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeProvider()

	reports, err := openReports(cfg, false, log)
	if err != nil {
		return err
	}

	notifiers, err := openNotifiers(cfg)
	if err != nil {
		return err
	}

	var reg *metrics.Registry
	opts := []backtest.Option{backtest.WithProvider(provider), backtest.WithLogger(log)}
	if cfg.Metrics.Enabled {
		reg = metrics.NewRegistry()
		opts = append(opts, backtest.WithRecorder(reg))
	}

	runner := &handler.Runner{
		Jobs:       job.NewStore(cfg.Server.MaxJobs, time.Duration(cfg.Server.JobTTLHours)*time.Hour),
		Backtester: backtest.New(opts...),
		Defaults:   cfg.Backtest,
		Compare:    cfg.Compare,
		Reports:    reports,
		Notifiers:  notifiers,
		Logger:     log,
	}
	if reg != nil {
		runner.Gauge = reg
	}

	server, err := api.NewServer(api.Config{
		Host:        cfg.Server.Host,
		Port:        cfg.Server.Port,
		APIKey:      cfg.Server.APIKey,
		MetricsPath: cfg.Metrics.Path,
	}, api.Dependencies{Runner: runner, Metrics: reg}, log)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down ENERCAST server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return server.Shutdown(shutdownCtx)
}
