// Package model defines the forecasting-model contract consumed by the
// backtester and ships a few deterministic reference forecasters.
package model

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/newthinker/enercast/internal/core"
)

// Forecaster is trained on a window of history and returns a fitted state.
// Fit must not retain or mutate the training slice.
type Forecaster interface {
	Name() string
	Fit(ctx context.Context, train []core.PricePoint) (Fitted, error)
}

// Fitted produces one prediction per requested timestamp. It only knows
// the timestamps of the test range, never its prices.
type Fitted interface {
	Predict(ctx context.Context, horizon []time.Time) ([]core.PredictionPoint, error)
}

// Factory builds a forecaster from loosely typed parameters.
type Factory func(params map[string]any) (Forecaster, error)

var registry = map[string]Factory{
	"naive":          func(map[string]any) (Forecaster, error) { return Naive{}, nil },
	"drift":          func(map[string]any) (Forecaster, error) { return Drift{}, nil },
	"linear_trend":   newLinearTrend,
	"moving_average": newMovingAverage,
}

// New returns the named reference forecaster.
func New(name string, params map[string]any) (Forecaster, error) {
	f, ok := registry[name]
	if !ok {
		return nil, core.ConfigError("unknown model %q (available: %v)", name, Names())
	}
	return f(params)
}

// Names lists registered model names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// constant predicts level + slope*step for step = 1..len(horizon).
type constant struct {
	level float64
	slope float64
}

func (c constant) Predict(ctx context.Context, horizon []time.Time) ([]core.PredictionPoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]core.PredictionPoint, len(horizon))
	for i, ts := range horizon {
		out[i] = core.PredictionPoint{
			Time:      ts,
			Predicted: c.level + c.slope*float64(i+1),
		}
	}
	return out, nil
}

func requireTrain(train []core.PricePoint, min int) error {
	if len(train) < min {
		return core.WrapError(core.ErrModelFailed,
			fmt.Errorf("need at least %d training points, got %d", min, len(train)))
	}
	return nil
}
