package strategy

import (
	"fmt"
	"math"

	"github.com/newthinker/enercast/internal/core"
	"github.com/newthinker/enercast/internal/indicator"
)

// meanReversion bets against deviations from the rolling mean once they
// exceed NumStd standard deviations.
func meanReversion(p Params, in Input) core.Signal {
	if len(in.History) < p.Lookback {
		return core.Hold(in.Time, in.Current, "warming up")
	}
	window := indicator.Tail(in.History, p.Lookback)
	mean := indicator.Mean(window)
	sd := indicator.StdDev(window)
	if math.IsNaN(sd) || sd == 0 {
		return core.Hold(in.Time, in.Current, "no dispersion in window")
	}
	z := (in.Current - mean) / sd

	sig := core.Signal{
		Action:     core.ActionHold,
		Confidence: math.Min(1, math.Abs(z)/(2*p.NumStd)),
	}
	switch {
	case z > p.NumStd:
		sig.Action = core.ActionSell
		sig.Reason = fmt.Sprintf("%.2f sd above %d-period mean %.4g", z, p.Lookback, mean)
	case z < -p.NumStd:
		sig.Action = core.ActionBuy
		sig.Reason = fmt.Sprintf("%.2f sd below %d-period mean %.4g", -z, p.Lookback, mean)
	default:
		sig.Reason = fmt.Sprintf("z-score %.2f within ±%.2g", z, p.NumStd)
	}
	return sig
}

func validateMeanReversion(p Params) error {
	if p.Lookback < 2 {
		return core.ConfigError("mean_reversion lookback must be at least 2, got %d", p.Lookback)
	}
	if p.NumStd <= 0 || math.IsNaN(p.NumStd) {
		return core.ConfigError("num_std must be positive, got %v", p.NumStd)
	}
	return nil
}
