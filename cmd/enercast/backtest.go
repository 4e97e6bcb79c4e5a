package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newthinker/enercast/internal/backtest"
	"github.com/newthinker/enercast/internal/core"
	"github.com/newthinker/enercast/internal/model"
	"github.com/newthinker/enercast/internal/series"
	"github.com/newthinker/enercast/internal/simulator"
)

var (
	btCommodity string
	btPrices    string
	btModel     string
	btStrategy  string
	btFrom      string
	btTo        string
	btLedger    string
	btArchive   bool
	btJSON      bool
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run a walk-forward backtest",
	Long:  "Train the model window by window, trade its forecasts and show accuracy and performance statistics",
	Args:  cobra.NoArgs,
	RunE:  runBacktest,
}

func init() {
	addSeriesFlags(backtestCmd, &btCommodity, &btPrices, &btFrom, &btTo)
	backtestCmd.Flags().StringVar(&btModel, "model", "", "forecasting model (overrides config)")
	backtestCmd.Flags().StringVar(&btStrategy, "strategy", "", "strategy kind (overrides config, default params)")
	backtestCmd.Flags().StringVar(&btLedger, "ledger", "", "write the trade ledger CSV to this path")
	backtestCmd.Flags().BoolVar(&btArchive, "archive", false, "archive the result even if archiving is disabled in config")
	backtestCmd.Flags().BoolVar(&btJSON, "json", false, "print the full result as JSON")

	rootCmd.AddCommand(backtestCmd)
}

func addSeriesFlags(cmd *cobra.Command, commodity, prices, from, to *string) {
	cmd.Flags().StringVar(commodity, "commodity", "", "commodity to backtest (overrides config)")
	cmd.Flags().StringVar(prices, "prices", "", "read prices from this CSV instead of the configured source")
	cmd.Flags().StringVar(from, "from", "", "start date YYYY-MM-DD")
	cmd.Flags().StringVar(to, "to", "", "end date YYYY-MM-DD")
}

func parseRange(from, to string) (time.Time, time.Time, error) {
	var fromDate, toDate time.Time
	var err error
	if from != "" {
		if fromDate, err = time.Parse("2006-01-02", from); err != nil {
			return fromDate, toDate, fmt.Errorf("invalid from date format (expected YYYY-MM-DD): %w", err)
		}
	}
	if to != "" {
		if toDate, err = time.Parse("2006-01-02", to); err != nil {
			return fromDate, toDate, fmt.Errorf("invalid to date format (expected YYYY-MM-DD): %w", err)
		}
		toDate = toDate.Add(24*time.Hour - time.Nanosecond)
	}
	if !fromDate.IsZero() && !toDate.IsZero() && toDate.Before(fromDate) {
		return fromDate, toDate, fmt.Errorf("end date must be after start date")
	}
	return fromDate, toDate, nil
}

// loadPrices reads --prices when given, else asks the configured provider.
func loadPrices(ctx context.Context, provider series.Provider, commodity core.Commodity, path string, from, to time.Time) ([]core.PricePoint, error) {
	if path == "" {
		return provider.FetchSeries(ctx, commodity, from, to)
	}
	points, err := series.LoadCSV(path)
	if err != nil {
		return nil, err
	}
	if err := series.Validate(points); err != nil {
		return nil, err
	}
	return series.Slice(points, from, to), nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runBacktest(cmd *cobra.Command, args []string) error {
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
	if btCommodity != "" {
		bc.Commodity = btCommodity
	}
	if btModel != "" {
		bc.Model = btModel
		bc.ModelParams = nil
	}
	if btStrategy != "" {
		bc.Strategy = btStrategy
		bc.StrategyParams = nil
	}
	runCfg, err := bc.Build()
	if err != nil {
		return err
	}
	forecaster, err := model.New(bc.Model, bc.ModelParams)
	if err != nil {
		return err
	}
	from, to, err := parseRange(btFrom, btTo)
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
	prices, err := loadPrices(ctx, provider, commodity, btPrices, from, to)
	if err != nil {
		return err
	}

	bt := backtest.New(backtest.WithLogger(log))
	res, err := bt.Run(ctx, prices, forecaster, runCfg)
	if err != nil {
		return err
	}
	res.Commodity = commodity

	if btLedger != "" {
		if err := simulator.WriteLedgerCSV(btLedger, res.Trades); err != nil {
			return fmt.Errorf("writing ledger: %w", err)
		}
		log.Info("ledger written", zap.String("path", btLedger), zap.Int("trades", res.NumTrades))
	}

	reports, err := openReports(cfg, btArchive, log)
	if err != nil {
		return err
	}
	if reports != nil {
		if _, err := reports.Save(ctx, res); err != nil {
			return err
		}
	}

	if btJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	printResult(cmd, res)
	return nil
}

func printResult(cmd *cobra.Command, res *backtest.Result) {
	out := cmd.OutOrStdout()
	m := res.Metrics

	fmt.Fprintln(out, "=== ENERCAST Backtest ===")
	fmt.Fprintf(out, "Run:        %s\n", res.RunID)
	fmt.Fprintf(out, "Commodity:  %s\n", res.Commodity)
	fmt.Fprintf(out, "Model:      %s\n", res.Model)
	fmt.Fprintf(out, "Strategy:   %s\n", res.Strategy)
	fmt.Fprintf(out, "Period:     %s to %s (%d windows)\n",
		res.StartDate.Format("2006-01-02"), res.EndDate.Format("2006-01-02"), len(res.Windows))
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Forecast accuracy")
	fmt.Fprintf(out, "  RMSE:                 %s\n", fmtOpt(m.RMSE, "%.4f"))
	fmt.Fprintf(out, "  MAE:                  %s\n", fmtOpt(m.MAE, "%.4f"))
	fmt.Fprintf(out, "  MAPE:                 %s\n", fmtOpt(m.MAPE, "%.2f%%"))
	fmt.Fprintf(out, "  Directional accuracy: %s\n", fmtOpt(m.DirectionalAccuracy, "%.2f"))
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Trading")
	fmt.Fprintf(out, "  Capital:              %.2f -> %.2f\n", m.InitialCapital, m.FinalCapital)
	fmt.Fprintf(out, "  Total return:         %.2f%%\n", m.TotalReturn*100)
	fmt.Fprintf(out, "  Sharpe ratio:         %s\n", fmtOpt(m.SharpeRatio, "%.3f"))
	fmt.Fprintf(out, "  Sortino ratio:        %s\n", fmtOpt(m.SortinoRatio, "%.3f"))
	fmt.Fprintf(out, "  Max drawdown:         %.2f%%\n", m.MaxDrawdown*100)
	fmt.Fprintf(out, "  Trades:               %d\n", res.NumTrades)
	fmt.Fprintf(out, "  Win rate:             %s\n", fmtOpt(m.WinRate, "%.2f"))
	fmt.Fprintf(out, "  Exposure:             %.2f\n", m.Exposure)
	if res.CapitalExhausted != nil {
		fmt.Fprintf(out, "  Capital exhausted at period %d (%s)\n",
			res.CapitalExhausted.Index, res.CapitalExhausted.Time.Format("2006-01-02"))
	}
}
