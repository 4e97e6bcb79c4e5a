package api

import (
	"fmt"
	"time"

	"github.com/newthinker/enercast/internal/config"
	"github.com/newthinker/enercast/internal/core"
)

const dateLayout = "2006-01-02"

// RunRequest overrides the configured backtest defaults. Prices, when
// given, are used instead of the configured series source.
type RunRequest struct {
	Commodity      string            `json:"commodity,omitempty"`
	Start          string            `json:"start,omitempty"`
	End            string            `json:"end,omitempty"`
	Prices         []core.PricePoint `json:"prices,omitempty"`
	Model          string            `json:"model,omitempty"`
	ModelParams    map[string]any    `json:"model_params,omitempty"`
	Strategy       string            `json:"strategy,omitempty"`
	StrategyParams map[string]any    `json:"strategy_params,omitempty"`
	InitialCapital *float64          `json:"initial_capital,omitempty"`
	Commission     *float64          `json:"commission,omitempty"`
	Slippage       *float64          `json:"slippage,omitempty"`
	WindowMode     string            `json:"window_mode,omitempty"`
	TrainLength    *int              `json:"train_length,omitempty"`
	TestLength     *int              `json:"test_length,omitempty"`
	LongOnly       *bool             `json:"long_only,omitempty"`
	PeriodsPerYear *float64          `json:"periods_per_year,omitempty"`
}

// Apply layers the request over base.
func (r RunRequest) Apply(base config.BacktestConfig) config.BacktestConfig {
	if r.Commodity != "" {
		base.Commodity = r.Commodity
	}
	if r.Model != "" {
		base.Model = r.Model
		base.ModelParams = r.ModelParams
	} else if r.ModelParams != nil {
		base.ModelParams = r.ModelParams
	}
	if r.Strategy != "" {
		base.Strategy = r.Strategy
		base.StrategyParams = r.StrategyParams
	} else if r.StrategyParams != nil {
		base.StrategyParams = r.StrategyParams
	}
	if r.WindowMode != "" {
		base.WindowMode = r.WindowMode
	}
	if r.InitialCapital != nil {
		base.InitialCapital = *r.InitialCapital
	}
	if r.Commission != nil {
		base.Commission = *r.Commission
	}
	if r.Slippage != nil {
		base.Slippage = *r.Slippage
	}
	if r.TrainLength != nil {
		base.TrainLength = *r.TrainLength
	}
	if r.TestLength != nil {
		base.TestLength = *r.TestLength
	}
	if r.LongOnly != nil {
		base.LongOnly = *r.LongOnly
	}
	if r.PeriodsPerYear != nil {
		base.PeriodsPerYear = *r.PeriodsPerYear
	}
	return base
}

// Range parses the optional start and end dates.
func (r RunRequest) Range() (from, to time.Time, err error) {
	if r.Start != "" {
		if from, err = time.Parse(dateLayout, r.Start); err != nil {
			return from, to, core.ConfigError("start: %v", err)
		}
	}
	if r.End != "" {
		if to, err = time.Parse(dateLayout, r.End); err != nil {
			return from, to, core.ConfigError("end: %v", err)
		}
		// End is inclusive of the whole day.
		to = to.Add(24*time.Hour - time.Nanosecond)
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return from, to, core.ConfigError("end %s is before start %s", r.End, r.Start)
	}
	return from, to, nil
}

func (r RunRequest) commodity(base config.BacktestConfig) (core.Commodity, error) {
	c := r.Apply(base).Commodity
	if c == "" && len(r.Prices) == 0 {
		return "", core.WrapError(core.ErrConfigMissing, fmt.Errorf("commodity or prices required"))
	}
	return core.Commodity(c), nil
}
