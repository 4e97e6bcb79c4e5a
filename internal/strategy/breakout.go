package strategy

import (
	"fmt"

	"github.com/newthinker/enercast/internal/core"
	"github.com/newthinker/enercast/internal/indicator"
)

// breakout triggers when the current price clears the high or low of the
// preceding lookback periods by more than Margin.
func breakout(p Params, in Input) core.Signal {
	n := len(in.History)
	if n < p.Lookback+1 {
		return core.Hold(in.Time, in.Current, "warming up")
	}
	prior := in.History[n-1-p.Lookback : n-1]
	hi := indicator.Max(prior)
	lo := indicator.Min(prior)

	upper := hi * (1 + p.Margin)
	lower := lo * (1 - p.Margin)

	switch {
	case in.Current > upper:
		return core.Signal{
			Action:     core.ActionBuy,
			Confidence: scaledConfidence((in.Current - hi) / hi),
			Reason:     fmt.Sprintf("broke above %d-period high %.4g", p.Lookback, hi),
		}
	case in.Current < lower:
		return core.Signal{
			Action:     core.ActionSell,
			Confidence: scaledConfidence((lo - in.Current) / lo),
			Reason:     fmt.Sprintf("broke below %d-period low %.4g", p.Lookback, lo),
		}
	default:
		return core.Signal{
			Action: core.ActionHold,
			Reason: fmt.Sprintf("inside %d-period range [%.4g, %.4g]", p.Lookback, lo, hi),
		}
	}
}

func validateBreakout(p Params) error {
	if err := validLookback(p.Lookback); err != nil {
		return err
	}
	return validMargin(p.Margin)
}
