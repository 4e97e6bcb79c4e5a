package strategy

import (
	"fmt"
	"math"

	"github.com/newthinker/enercast/internal/core"
)

// threshold buys when the predicted move exceeds +threshold and sells when it
// falls below -threshold, both relative to the current price.
func threshold(p Params, in Input) core.Signal {
	if in.Current <= 0 {
		return core.Hold(in.Time, in.Current, "non-positive current price")
	}
	dev := (in.Predicted - in.Current) / in.Current

	sig := core.Signal{Action: core.ActionHold, Confidence: scaledConfidence(dev)}
	switch {
	case dev > p.Threshold:
		sig.Action = core.ActionBuy
		sig.Reason = fmt.Sprintf("predicted %.4g is %.2f%% above %.4g", in.Predicted, dev*100, in.Current)
	case dev < -p.Threshold:
		sig.Action = core.ActionSell
		sig.Reason = fmt.Sprintf("predicted %.4g is %.2f%% below %.4g", in.Predicted, -dev*100, in.Current)
	default:
		sig.Reason = fmt.Sprintf("predicted move %.2f%% within ±%.2f%%", dev*100, p.Threshold*100)
	}
	return sig
}

func validateThreshold(p Params) error {
	if p.Threshold < 0 || math.IsNaN(p.Threshold) || math.IsInf(p.Threshold, 0) {
		return core.ConfigError("threshold must be a non-negative number, got %v", p.Threshold)
	}
	return nil
}
