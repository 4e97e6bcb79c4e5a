package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/newthinker/enercast/internal/backtest"
	"github.com/newthinker/enercast/internal/core"
	"github.com/newthinker/enercast/internal/model"
	"github.com/newthinker/enercast/internal/strategy"
)

var (
	cmpCommodity  string
	cmpPrices     string
	cmpFrom       string
	cmpTo         string
	cmpStrategies []string
	cmpRankBy     string
	cmpWorkers    int
	cmpJSON       bool
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Backtest several strategies on the same series and rank them",
	Long: `Run every strategy listed under compare.strategies in the config (or the
subset named with --strategies) against one series, concurrently, and rank
the results.`,
	Args: cobra.NoArgs,
	RunE: runCompare,
}

func init() {
	addSeriesFlags(compareCmd, &cmpCommodity, &cmpPrices, &cmpFrom, &cmpTo)
	compareCmd.Flags().StringSliceVar(&cmpStrategies, "strategies", nil, "names from compare.strategies to run (default all)")
	compareCmd.Flags().StringVar(&cmpRankBy, "rank-by", "", "total_return, sharpe_ratio, sortino_ratio, max_drawdown or rmse")
	compareCmd.Flags().IntVar(&cmpWorkers, "workers", 0, "concurrent runs (overrides config)")
	compareCmd.Flags().BoolVar(&cmpJSON, "json", false, "print outcomes as JSON")

	rootCmd.AddCommand(compareCmd)
}

func runCompare(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	bc := cfg.Backtest
	if cmpCommodity != "" {
		bc.Commodity = cmpCommodity
	}
	base, err := bc.Build()
	if err != nil {
		return err
	}
	forecaster, err := model.New(bc.Model, bc.ModelParams)
	if err != nil {
		return err
	}

	engine := strategy.NewEngine(log)
	for name, s := range cfg.Compare.Strategies {
		if err := engine.RegisterConfig(name, s.Kind, s.Params); err != nil {
			return err
		}
	}
	names := engine.Names()
	if len(cmpStrategies) > 0 {
		names = cmpStrategies
	}
	if len(names) == 0 {
		return core.ConfigError("no strategies configured under compare.strategies")
	}

	jobs := make([]backtest.Job, 0, len(names))
	for _, name := range names {
		g, ok := engine.Get(name)
		if !ok {
			return core.ConfigError("unknown comparison strategy %q (configured: %s)",
				name, strings.Join(engine.Names(), ", "))
		}
		runCfg := base
		runCfg.Strategy = g.Spec()
		jobs = append(jobs, backtest.Job{Name: name, Model: forecaster, Config: runCfg})
	}

	rankBy := cmpRankBy
	if rankBy == "" {
		rankBy = cfg.Compare.RankBy
	}
	if _, err := backtest.Rank(nil, rankBy); err != nil {
		return err
	}
	workers := cmpWorkers
	if workers <= 0 {
		workers = cfg.Compare.Workers
	}

	from, to, err := parseRange(cmpFrom, cmpTo)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	provider, closeProvider, err := openProvider(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeProvider()

	commodity := core.Commodity(bc.Commodity)
	prices, err := loadPrices(ctx, provider, commodity, cmpPrices, from, to)
	if err != nil {
		return err
	}

	bt := backtest.New(backtest.WithLogger(log))
	outcomes, err := bt.Compare(ctx, prices, jobs, workers)
	if err != nil {
		return err
	}

	reports, err := openReports(cfg, false, log)
	if err != nil {
		return err
	}
	for _, o := range outcomes {
		if o.Result == nil {
			continue
		}
		o.Result.Commodity = commodity
		if reports != nil {
			if _, err := reports.Save(ctx, o.Result); err != nil {
				return err
			}
		}
	}

	ranked, err := backtest.Rank(outcomes, rankBy)
	if err != nil {
		return err
	}

	if cmpJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(ranked)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "=== ENERCAST Comparison (%s, ranked by %s) ===\n", commodity, rankBy)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tSTRATEGY\tRETURN\tSHARPE\tMAX DD\tTRADES\tRMSE")
	for i, o := range ranked {
		m := o.Result.Metrics
		fmt.Fprintf(tw, "%d\t%s\t%.2f%%\t%s\t%.2f%%\t%d\t%s\n",
			i+1, o.Name, m.TotalReturn*100, fmtOpt(m.SharpeRatio, "%.3f"),
			m.MaxDrawdown*100, o.Result.NumTrades, fmtOpt(m.RMSE, "%.4f"))
	}
	tw.Flush()

	for _, o := range outcomes {
		if o.Err != nil {
			fmt.Fprintf(out, "FAILED %s: %v\n", o.Name, o.Err)
		}
	}
	return nil
}
