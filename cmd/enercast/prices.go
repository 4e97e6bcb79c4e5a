package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newthinker/enercast/internal/config"
	"github.com/newthinker/enercast/internal/core"
	"github.com/newthinker/enercast/internal/series"
	"github.com/newthinker/enercast/internal/series/yahoo"
	"github.com/newthinker/enercast/internal/storage/postgres"
)

var (
	importCommodity string
	syncCommodity   string
	syncFrom        string
	syncTo          string
)

var pricesCmd = &cobra.Command{
	Use:   "prices",
	Short: "Manage the PostgreSQL price store",
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the price_points schema",
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

var importCmd = &cobra.Command{
	Use:   "import <file.csv>",
	Short: "Load a CSV series into the price store",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List commodities with stored prices",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch daily futures settlements from Yahoo Finance into the price store",
	Args:  cobra.NoArgs,
	RunE:  runSync,
}

func init() {
	importCmd.Flags().StringVar(&importCommodity, "commodity", "", "commodity the series belongs to (required)")
	importCmd.MarkFlagRequired("commodity")

	syncCmd.Flags().StringVar(&syncCommodity, "commodity", "", "commodity to fetch (required)")
	syncCmd.Flags().StringVar(&syncFrom, "from", "", "first date, YYYY-MM-DD")
	syncCmd.Flags().StringVar(&syncTo, "to", "", "last date, YYYY-MM-DD")
	syncCmd.MarkFlagRequired("commodity")

	pricesCmd.AddCommand(migrateCmd, importCmd, listCmd, syncCmd)
	rootCmd.AddCommand(pricesCmd)
}

func openPriceStore(cmd *cobra.Command) (*postgres.Pool, *zap.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	return connectPriceStore(cmd, cfg)
}

func connectPriceStore(cmd *cobra.Command, cfg *config.Config) (*postgres.Pool, *zap.Logger, error) {
	if cfg.Storage.Prices.Type != "postgres" {
		return nil, nil, core.ConfigError("storage.prices.type must be postgres, got %q", cfg.Storage.Prices.Type)
	}
	log, err := newLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	pool, err := postgres.NewPool(cmd.Context(), cfg.Storage.Prices.DSN)
	if err != nil {
		return nil, nil, err
	}
	return pool, log, nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	pool, log, err := openPriceStore(cmd)
	if err != nil {
		return err
	}
	defer pool.Close()
	defer log.Sync()

	if err := postgres.Migrate(cmd.Context(), pool); err != nil {
		return err
	}
	log.Info("price store migrated")
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	points, err := series.LoadCSV(args[0])
	if err != nil {
		return err
	}

	pool, log, err := openPriceStore(cmd)
	if err != nil {
		return err
	}
	defer pool.Close()
	defer log.Sync()

	if err := postgres.Migrate(cmd.Context(), pool); err != nil {
		return err
	}
	store := postgres.NewPriceStore(pool)
	if err := store.Upsert(cmd.Context(), core.Commodity(importCommodity), points); err != nil {
		return err
	}

	log.Info("prices imported",
		zap.String("commodity", importCommodity),
		zap.Int("points", len(points)),
		zap.String("file", args[0]),
	)
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d points for %s\n", len(points), importCommodity)
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	pool, log, err := openPriceStore(cmd)
	if err != nil {
		return err
	}
	defer pool.Close()
	defer log.Sync()

	commodities, err := postgres.NewPriceStore(pool).Commodities(cmd.Context())
	if err != nil {
		return err
	}
	for _, c := range commodities {
		fmt.Fprintln(cmd.OutOrStdout(), c)
	}
	return nil
}

func runSync(cmd *cobra.Command, args []string) error {
	from, to, err := parseRange(syncFrom, syncTo)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	commodity := core.Commodity(syncCommodity)
	points, err := yahoo.New(cfg.Storage.Prices.Symbols).FetchSeries(cmd.Context(), commodity, from, to)
	if err != nil {
		return err
	}
	if len(points) == 0 {
		return core.WrapError(core.ErrNoData, fmt.Errorf("yahoo returned no prices for %s", commodity))
	}

	pool, log, err := connectPriceStore(cmd, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()
	defer log.Sync()

	if err := postgres.Migrate(cmd.Context(), pool); err != nil {
		return err
	}
	if err := postgres.NewPriceStore(pool).Upsert(cmd.Context(), commodity, points); err != nil {
		return err
	}

	log.Info("prices synced",
		zap.String("commodity", syncCommodity),
		zap.Int("points", len(points)),
		zap.Time("first", points[0].Time),
		zap.Time("last", points[len(points)-1].Time),
	)
	fmt.Fprintf(cmd.OutOrStdout(), "synced %d points for %s\n", len(points), syncCommodity)
	return nil
}
