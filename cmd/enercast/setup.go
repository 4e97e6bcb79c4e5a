package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/newthinker/enercast/internal/config"
	"github.com/newthinker/enercast/internal/logger"
	"github.com/newthinker/enercast/internal/notifier"
	"github.com/newthinker/enercast/internal/notifier/email"
	"github.com/newthinker/enercast/internal/notifier/telegram"
	"github.com/newthinker/enercast/internal/notifier/webhook"
	"github.com/newthinker/enercast/internal/series"
	"github.com/newthinker/enercast/internal/series/yahoo"
	"github.com/newthinker/enercast/internal/storage/archive"
	"github.com/newthinker/enercast/internal/storage/postgres"
)

// loadConfig reads --config or falls back to defaults, then validates.
func loadConfig() (*config.Config, error) {
	cfg := config.Defaults()
	if cfgFile != "" {
		var err error
		if cfg, err = config.Load(cfgFile); err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	opts := logger.Options{
		Development: debug || cfg.Log.Development,
		Level:       cfg.Log.Level,
	}
	if debug {
		opts.Level = "debug"
	}
	return logger.New(opts)
}

// openProvider returns the configured series source and a close func.
func openProvider(ctx context.Context, cfg *config.Config) (series.Provider, func(), error) {
	switch cfg.Storage.Prices.Type {
	case "postgres":
		pool, err := postgres.NewPool(ctx, cfg.Storage.Prices.DSN)
		if err != nil {
			return nil, nil, err
		}
		return postgres.NewPriceStore(pool), pool.Close, nil
	case "yahoo":
		return yahoo.New(cfg.Storage.Prices.Symbols), func() {}, nil
	default:
		return series.File{Dir: cfg.Storage.Prices.Dir}, func() {}, nil
	}
}

// openReports returns nil when archiving is disabled and force is false.
func openReports(cfg *config.Config, force bool, log *zap.Logger) (*archive.Reports, error) {
	a := cfg.Storage.Archive
	if !a.Enabled && !force {
		return nil, nil
	}
	store, err := archive.Open(archive.Options{
		Type: a.Type,
		Path: a.Path,
		S3: archive.S3Config{
			Bucket:    a.S3.Bucket,
			Endpoint:  a.S3.Endpoint,
			Region:    a.S3.Region,
			AccessKey: a.S3.AccessKey,
			SecretKey: a.S3.SecretKey,
			Prefix:    a.S3.Prefix,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	return archive.NewReports(store, log), nil
}

// openNotifiers returns nil when no notifiers are configured.
func openNotifiers(cfg *config.Config) (*notifier.Registry, error) {
	if len(cfg.Notifiers) == 0 {
		return nil, nil
	}
	reg := notifier.NewRegistry()
	for _, nc := range cfg.Notifiers {
		var n notifier.Notifier
		switch nc.Type {
		case "webhook":
			n = &webhook.Webhook{}
		case "telegram":
			n = &telegram.Telegram{}
		case "email":
			n = &email.Email{}
		default:
			return nil, fmt.Errorf("unknown notifier type %q", nc.Type)
		}
		if err := n.Init(notifier.Config{Type: nc.Type, Params: nc.Params}); err != nil {
			return nil, err
		}
		if err := reg.Register(n); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func fmtOpt(v *float64, format string) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf(format, *v)
}
