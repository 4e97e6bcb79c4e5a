package backtest

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/newthinker/enercast/internal/core"
	"github.com/newthinker/enercast/internal/model"
)

// DefaultWorkers bounds concurrent runs when Compare is given no limit
const DefaultWorkers = 4

// Job is one independent run in a comparison batch
type Job struct {
	Name   string
	Model  model.Forecaster
	Config Config
}

// Outcome is the result of one job. Exactly one of Result and Err is set.
type Outcome struct {
	Name   string  `json:"name"`
	Result *Result `json:"result,omitempty"`
	Err    error   `json:"-"`
}

// Error returns the failure message, if any
func (o Outcome) Error() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// Compare runs jobs over the same prices on at most workers goroutines.
// A failing job does not stop the others. When ctx is cancelled, jobs not
// yet finished stop at their next window boundary and report the context
// error; their partial results are discarded. Outcomes keep job order.
func (b *Backtester) Compare(ctx context.Context, prices []core.PricePoint, jobs []Job, workers int) ([]Outcome, error) {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	outcomes := make([]Outcome, len(jobs))

	var (
		mu     sync.Mutex
		active int
	)
	setActive := func(delta int) {
		mu.Lock()
		defer mu.Unlock()
		active += delta
		if b.recorder != nil {
			b.recorder.SetJobsActive("compare_worker", active)
		}
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for i, job := range jobs {
		g.Go(func() error {
			setActive(1)
			defer setActive(-1)

			res, err := b.Run(ctx, prices, job.Model, job.Config)
			outcomes[i] = Outcome{Name: job.Name, Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
		}
	}
	b.logger.Info("comparison finished",
		zap.Int("jobs", len(jobs)),
		zap.Int("failed", failed),
		zap.Int("workers", workers),
	)
	return outcomes, ctx.Err()
}

// Ranking keys accepted by Rank
const (
	RankTotalReturn = "total_return"
	RankSharpe      = "sharpe_ratio"
	RankSortino     = "sortino_ratio"
	RankMaxDrawdown = "max_drawdown"
	RankRMSE        = "rmse"
)

// Rank orders successful outcomes best first by the given key. Lower is
// better for max_drawdown and rmse. Undefined values sort last and ties
// keep name order.
func Rank(outcomes []Outcome, by string) ([]Outcome, error) {
	key, lowerBetter, err := rankKey(by)
	if err != nil {
		return nil, err
	}

	ranked := make([]Outcome, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Err == nil && o.Result != nil {
			ranked = append(ranked, o)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := key(ranked[i].Result.Metrics), key(ranked[j].Result.Metrics)
		switch {
		case a == nil && b == nil:
			return ranked[i].Name < ranked[j].Name
		case a == nil:
			return false
		case b == nil:
			return true
		case *a == *b:
			return ranked[i].Name < ranked[j].Name
		case lowerBetter:
			return *a < *b
		default:
			return *a > *b
		}
	})
	return ranked, nil
}

func rankKey(by string) (func(Metrics) *float64, bool, error) {
	switch by {
	case "", RankTotalReturn:
		return func(m Metrics) *float64 { return ptr(m.TotalReturn) }, false, nil
	case RankSharpe:
		return func(m Metrics) *float64 { return m.SharpeRatio }, false, nil
	case RankSortino:
		return func(m Metrics) *float64 { return m.SortinoRatio }, false, nil
	case RankMaxDrawdown:
		return func(m Metrics) *float64 { return ptr(m.MaxDrawdown) }, true, nil
	case RankRMSE:
		return func(m Metrics) *float64 { return m.RMSE }, true, nil
	default:
		return nil, false, core.ConfigError("unknown ranking key %q", by)
	}
}
