package model

import (
	"context"
	"fmt"
	"math"

	"github.com/newthinker/enercast/internal/core"
	"github.com/newthinker/enercast/internal/indicator"
)

// Naive predicts the last training price for every step.
type Naive struct{}

func (Naive) Name() string { return "naive" }

func (Naive) Fit(ctx context.Context, train []core.PricePoint) (Fitted, error) {
	if err := requireTrain(train, 1); err != nil {
		return nil, err
	}
	return constant{level: train[len(train)-1].Price}, nil
}

// Drift extrapolates the average change between the first and last training price.
type Drift struct{}

func (Drift) Name() string { return "drift" }

func (Drift) Fit(ctx context.Context, train []core.PricePoint) (Fitted, error) {
	if err := requireTrain(train, 2); err != nil {
		return nil, err
	}
	first, last := train[0].Price, train[len(train)-1].Price
	return constant{level: last, slope: (last - first) / float64(len(train)-1)}, nil
}

// LinearTrend fits a least-squares line over the last Window training prices.
type LinearTrend struct {
	Window int
}

func newLinearTrend(params map[string]any) (Forecaster, error) {
	w, err := intOption(params, "window", 30)
	if err != nil {
		return nil, err
	}
	if w < 2 {
		return nil, core.ConfigError("linear_trend window must be at least 2, got %d", w)
	}
	return LinearTrend{Window: w}, nil
}

func (l LinearTrend) Name() string { return fmt.Sprintf("linear_trend(%d)", l.Window) }

func (l LinearTrend) Fit(ctx context.Context, train []core.PricePoint) (Fitted, error) {
	if err := requireTrain(train, 2); err != nil {
		return nil, err
	}
	tail := indicator.Tail(core.Prices(train), l.Window)
	slope := indicator.Slope(tail)
	// value of the fitted line at the last training index
	level := indicator.Mean(tail) + slope*float64(len(tail)-1)/2
	return constant{level: level, slope: slope}, nil
}

// MovingAverage predicts the mean of the last Window training prices.
type MovingAverage struct {
	Window int
}

func newMovingAverage(params map[string]any) (Forecaster, error) {
	w, err := intOption(params, "window", 5)
	if err != nil {
		return nil, err
	}
	if w <= 0 {
		return nil, core.ConfigError("moving_average window must be positive, got %d", w)
	}
	return MovingAverage{Window: w}, nil
}

func (m MovingAverage) Name() string { return fmt.Sprintf("moving_average(%d)", m.Window) }

func (m MovingAverage) Fit(ctx context.Context, train []core.PricePoint) (Fitted, error) {
	if err := requireTrain(train, m.Window); err != nil {
		return nil, err
	}
	sma := indicator.SMA(core.Prices(train), m.Window)
	return constant{level: sma[len(sma)-1]}, nil
}

func intOption(params map[string]any, key string, def int) (int, error) {
	raw, ok := params[key]
	if !ok || raw == nil {
		return def, nil
	}
	switch v := raw.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return 0, core.ConfigError("%s must be an integer, got %v", key, v)
		}
		return int(v), nil
	default:
		return 0, core.ConfigError("%s must be an integer, got %T", key, raw)
	}
}
