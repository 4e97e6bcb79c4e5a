package strategy

import (
	"fmt"

	"github.com/newthinker/enercast/internal/core"
)

// momentum follows the sign of the realized move over the lookback window.
// The prediction is ignored.
func momentum(p Params, in Input) core.Signal {
	n := len(in.History)
	if n < p.Lookback+1 {
		return core.Hold(in.Time, in.Current, "warming up")
	}
	ref := in.History[n-1-p.Lookback]
	if ref <= 0 {
		return core.Hold(in.Time, in.Current, "non-positive reference price")
	}
	trend := (in.Current - ref) / ref

	sig := core.Signal{Action: core.ActionHold, Confidence: scaledConfidence(trend)}
	switch {
	case trend > p.Margin:
		sig.Action = core.ActionBuy
		sig.Reason = fmt.Sprintf("up %.2f%% over %d periods", trend*100, p.Lookback)
	case trend < -p.Margin:
		sig.Action = core.ActionSell
		sig.Reason = fmt.Sprintf("down %.2f%% over %d periods", -trend*100, p.Lookback)
	default:
		sig.Reason = fmt.Sprintf("flat over %d periods", p.Lookback)
	}
	return sig
}

func validateMomentum(p Params) error {
	if err := validLookback(p.Lookback); err != nil {
		return err
	}
	return validMargin(p.Margin)
}
