package backtest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/newthinker/enercast/internal/core"
	"github.com/newthinker/enercast/internal/model"
	"github.com/newthinker/enercast/internal/series"
	"github.com/newthinker/enercast/internal/simulator"
	"github.com/newthinker/enercast/internal/strategy"
	"github.com/newthinker/enercast/internal/walkforward"
)

// Recorder receives run-level telemetry. *metrics.Registry implements it.
type Recorder interface {
	RecordBacktest(status string, duration float64)
	RecordWindows(count int)
	RecordSignal(strategy, action string)
	RecordTrades(strategy string, count int)
	RecordCapitalExhausted()
	SetJobsActive(jobType string, count int)
}

// Run statuses reported to the Recorder
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Backtester runs walk-forward backtests. It holds no per-run state and is
// safe for concurrent use.
type Backtester struct {
	provider series.Provider
	logger   *zap.Logger
	recorder Recorder
}

// Option configures a Backtester
type Option func(*Backtester)

// WithProvider sets the series provider used by RunCommodity
func WithProvider(p series.Provider) Option {
	return func(b *Backtester) { b.provider = p }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(b *Backtester) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithRecorder sets the telemetry sink
func WithRecorder(r Recorder) Option {
	return func(b *Backtester) { b.recorder = r }
}

// New creates a new Backtester
func New(opts ...Option) *Backtester {
	b := &Backtester{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Validate checks the configuration before any data is touched
func (c Config) Validate() error {
	if err := c.Config.Validate(); err != nil {
		return err
	}
	if _, err := walkforward.ParseMode(string(c.Mode)); err != nil {
		return err
	}
	if c.TrainLength <= 0 || c.TestLength <= 0 {
		return core.ConfigError("train_length and test_length must be positive, got %d and %d", c.TrainLength, c.TestLength)
	}
	if !(c.PeriodsPerYear >= 0) || math.IsInf(c.PeriodsPerYear, 0) {
		return core.ConfigError("periods_per_year must be a finite non-negative number, got %v", c.PeriodsPerYear)
	}
	if _, err := strategy.New(c.Strategy); err != nil {
		return err
	}
	return nil
}

// Fetch loads a commodity series from the configured provider
func (b *Backtester) Fetch(ctx context.Context, commodity core.Commodity, from, to time.Time) ([]core.PricePoint, error) {
	if b.provider == nil {
		return nil, core.WrapError(core.ErrConfigMissing, errors.New("no series provider configured"))
	}
	return b.provider.FetchSeries(ctx, commodity, from, to)
}

// RunCommodity fetches a series from the provider and backtests it
func (b *Backtester) RunCommodity(ctx context.Context, commodity core.Commodity, from, to time.Time, f model.Forecaster, cfg Config) (*Result, error) {
	prices, err := b.Fetch(ctx, commodity, from, to)
	if err != nil {
		return nil, err
	}
	res, err := b.Run(ctx, prices, f, cfg)
	if err != nil {
		return nil, err
	}
	res.Commodity = commodity
	return res, nil
}

// Run executes a walk-forward backtest of forecaster f over prices.
// Windows are evaluated in chronological order and the context is checked
// at every window boundary; a cancelled run returns no result.
func (b *Backtester) Run(ctx context.Context, prices []core.PricePoint, f model.Forecaster, cfg Config) (*Result, error) {
	start := time.Now()
	res, err := b.run(ctx, prices, f, cfg)

	status := StatusCompleted
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = StatusCancelled
	case err != nil:
		status = StatusFailed
	}
	if b.recorder != nil {
		b.recorder.RecordBacktest(status, time.Since(start).Seconds())
	}
	if err != nil {
		b.logger.Warn("backtest did not complete",
			zap.String("status", status),
			zap.Error(err),
		)
		return nil, err
	}

	b.logger.Info("backtest completed",
		zap.String("run_id", res.RunID),
		zap.String("model", res.Model),
		zap.String("strategy", res.Strategy),
		zap.Int("windows", len(res.Windows)),
		zap.Int("trades", res.NumTrades),
		zap.Float64("total_return", res.Metrics.TotalReturn),
		zap.Duration("duration", time.Since(start)),
	)
	return res, nil
}

func (b *Backtester) run(ctx context.Context, prices []core.PricePoint, f model.Forecaster, cfg Config) (*Result, error) {
	if f == nil {
		return nil, core.WrapError(core.ErrConfigMissing, errors.New("no forecasting model"))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	gen, err := strategy.New(cfg.Strategy)
	if err != nil {
		return nil, err
	}
	mode, _ := walkforward.ParseMode(string(cfg.Mode))

	if len(prices) == 0 {
		return nil, core.ErrNoData
	}
	if err := series.Validate(prices); err != nil {
		return nil, err
	}
	splitter, err := walkforward.New(len(prices), cfg.TrainLength, cfg.TestLength, mode)
	if err != nil {
		return nil, err
	}
	sim, err := simulator.New(cfg.Config)
	if err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	log := b.logger.With(zap.String("run_id", runID))
	log.Debug("backtest started",
		zap.String("model", f.Name()),
		zap.String("strategy", gen.Name()),
		zap.Int("warmup", gen.Warmup()),
		zap.Int("points", len(prices)),
		zap.Int("windows", splitter.Count()),
		zap.String("mode", string(mode)),
	)
	if warmup := gen.Warmup(); warmup > cfg.TrainLength+1 {
		log.Warn("strategy warmup exceeds training range, first test periods will hold",
			zap.Int("warmup", warmup),
			zap.Int("train_length", cfg.TrainLength),
		)
	}

	closes := core.Prices(prices)
	last := splitter.Count() - 1
	n := splitter.Count() * cfg.TestLength
	var (
		predictions = make([]core.PredictionPoint, 0, n)
		signals     = make([]core.Signal, 0, n)
		windows     = make([]WindowSummary, 0, splitter.Count())
		previous    = make([]float64, 0, n)
		predicted   = make([]float64, 0, n)
		actual      = make([]float64, 0, n)
	)

	for w, ok := splitter.Next(); ok; w, ok = splitter.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		preds, err := forecast(ctx, f, prices, w)
		if err != nil {
			log.Warn("model failed", zap.Stringer("window", w), zap.Error(err))
			return nil, err
		}

		summary := WindowSummary{
			Index:        w.Index,
			TrainStart:   prices[w.TrainStart].Time,
			TrainEnd:     prices[w.TrainEnd-1].Time,
			TestStart:    prices[w.TestStart].Time,
			TestEnd:      prices[w.TestEnd-1].Time,
			TrainLength:  w.TrainLen(),
			StartCapital: sim.Capital(),
		}
		tradesBefore := sim.TradeCount()

		for j, pred := range preds {
			abs := w.TestStart + j
			sig := gen.Generate(strategy.Input{
				Time:      prices[abs].Time,
				Predicted: pred.Predicted,
				Current:   closes[abs],
				History:   closes[: abs+1 : abs+1],
			})
			if sim.Exhausted() {
				sig = core.Hold(sig.Time, sig.Price, "capital exhausted")
				sig.Strategy = string(gen.Spec().Kind)
			}
			if err := sim.Step(simulator.Period{
				Time:       prices[abs].Time,
				Price:      closes[abs],
				Signal:     sig,
				ForceClose: w.Index == last && j == len(preds)-1,
			}); err != nil {
				return nil, err
			}
			if b.recorder != nil {
				b.recorder.RecordSignal(string(gen.Spec().Kind), string(sig.Action))
			}

			predictions = append(predictions, pred)
			signals = append(signals, sig)
			previous = append(previous, closes[abs-1])
			predicted = append(predicted, pred.Predicted)
			actual = append(actual, closes[abs])
		}

		summary.EndCapital = sim.Capital()
		summary.Trades = sim.TradeCount() - tradesBefore
		summary.RMSE = RMSE(predicted[len(predicted)-len(preds):], actual[len(actual)-len(preds):])
		windows = append(windows, summary)

		log.Debug("window evaluated",
			zap.Stringer("window", w),
			zap.Float64("capital", summary.EndCapital),
			zap.Float64("return", summary.Return()),
			zap.Int("trades", summary.Trades),
			zap.Int("position", sim.Position().Direction),
		)
	}

	simRes := sim.Result()
	if simRes.Exhausted != nil {
		log.Warn("capital exhausted",
			zap.Int("period", simRes.Exhausted.Index),
			zap.Time("timestamp", simRes.Exhausted.Time),
		)
		if b.recorder != nil {
			b.recorder.RecordCapitalExhausted()
		}
	}
	if b.recorder != nil {
		b.recorder.RecordWindows(len(windows))
		b.recorder.RecordTrades(string(gen.Spec().Kind), len(simRes.Trades))
	}

	res := &Result{
		RunID:            runID,
		Model:            f.Name(),
		Strategy:         gen.Name(),
		Metrics:          CalculateMetrics(simRes, previous, predicted, actual, cfg.PeriodsPerYear),
		NumTrades:        len(simRes.Trades),
		Trades:           simRes.Trades,
		EquityCurve:      simRes.Equity,
		MarkToMarket:     simRes.MarkToMarket,
		Predictions:      predictions,
		Signals:          signals,
		Windows:          windows,
		CapitalExhausted: simRes.Exhausted,
	}
	if len(windows) > 0 {
		res.StartDate = windows[0].TestStart
		res.EndDate = windows[len(windows)-1].TestEnd
	}
	return res, nil
}

// forecast fits on the training range and predicts the test timestamps.
// The model sees a capacity-limited training slice and no test prices.
func forecast(ctx context.Context, f model.Forecaster, prices []core.PricePoint, w walkforward.Window) ([]core.PredictionPoint, error) {
	train := prices[w.TrainStart:w.TrainEnd:w.TrainEnd]
	fitted, err := f.Fit(ctx, train)
	if err != nil {
		return nil, modelError(err)
	}

	horizon := make([]time.Time, w.TestLen())
	for i := range horizon {
		horizon[i] = prices[w.TestStart+i].Time
	}
	preds, err := fitted.Predict(ctx, horizon)
	if err != nil {
		return nil, modelError(err)
	}
	if len(preds) != len(horizon) {
		return nil, core.WrapError(core.ErrModelFailed,
			fmt.Errorf("%s returned %d predictions for %d periods", f.Name(), len(preds), len(horizon)))
	}
	for i, p := range preds {
		if !p.IsValid() {
			return nil, core.WrapError(core.ErrModelFailed,
				fmt.Errorf("%s prediction %d has an inverted interval", f.Name(), i))
		}
	}
	return preds, nil
}

// modelError keeps context errors and model failures as they are and
// wraps anything else as a model failure.
func modelError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, core.ErrModelFailed) {
		return err
	}
	return core.WrapError(core.ErrModelFailed, err)
}
