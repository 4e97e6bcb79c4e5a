// Package strategy converts model predictions and trailing prices into
// trading signals. The strategy set is closed: a Spec names one Kind and
// carries its parameters, and Generate dispatches on the Kind.
package strategy

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/newthinker/enercast/internal/core"
)

// Kind identifies a strategy variant
type Kind string

const (
	KindThreshold     Kind = "threshold"
	KindMomentum      Kind = "momentum"
	KindMeanReversion Kind = "mean_reversion"
	KindBreakout      Kind = "breakout"
	KindEnsemble      Kind = "ensemble"
)

// Kinds lists every supported strategy kind
var Kinds = []Kind{KindThreshold, KindMomentum, KindMeanReversion, KindBreakout, KindEnsemble}

// confidenceScale maps a relative move onto [0,1]; a 10% move is full confidence.
const confidenceScale = 10.0

// Params holds the parameters of every variant. Each Kind reads only its own fields.
type Params struct {
	Threshold float64 `json:"threshold,omitempty"` // threshold
	Lookback  int     `json:"lookback,omitempty"`  // momentum, mean_reversion, breakout
	NumStd    float64 `json:"num_std,omitempty"`   // mean_reversion
	Margin    float64 `json:"margin,omitempty"`    // momentum, breakout
	Members   []Spec  `json:"members,omitempty"`   // ensemble
}

// Spec is a tagged strategy variant
type Spec struct {
	Kind   Kind   `json:"kind"`
	Params Params `json:"params"`
}

func (s Spec) String() string {
	switch s.Kind {
	case KindThreshold:
		return fmt.Sprintf("threshold(%.4g)", s.Params.Threshold)
	case KindMomentum:
		return fmt.Sprintf("momentum(%d)", s.Params.Lookback)
	case KindMeanReversion:
		return fmt.Sprintf("mean_reversion(%d,%.2g)", s.Params.Lookback, s.Params.NumStd)
	case KindBreakout:
		return fmt.Sprintf("breakout(%d,%.4g)", s.Params.Lookback, s.Params.Margin)
	case KindEnsemble:
		names := make([]string, len(s.Params.Members))
		for i, m := range s.Params.Members {
			names[i] = m.String()
		}
		return "ensemble[" + strings.Join(names, ",") + "]"
	default:
		return string(s.Kind)
	}
}

// Input is everything a strategy may look at for one evaluated period.
// History holds trailing prices ending with the current price; it never
// contains prices after Time.
type Input struct {
	Time      time.Time
	Predicted float64
	Current   float64
	History   []float64
}

// Generator produces signals for a validated Spec. It is immutable and safe
// to share between concurrent backtests.
type Generator struct {
	spec    Spec
	members []*Generator
}

// New validates spec and returns a generator for it.
// Invalid parameters fail here rather than mid-run.
func New(spec Spec) (*Generator, error) {
	if err := validate(spec); err != nil {
		return nil, err
	}
	g := &Generator{spec: spec}
	for _, m := range spec.Params.Members {
		mg, err := New(m)
		if err != nil {
			return nil, err
		}
		g.members = append(g.members, mg)
	}
	return g, nil
}

// Spec returns the validated spec.
func (g *Generator) Spec() Spec { return g.spec }

// Name returns a short descriptive name including parameters.
func (g *Generator) Name() string { return g.spec.String() }

// Warmup returns how many trailing prices (including the current one) the
// strategy needs before it can emit anything other than hold.
func (g *Generator) Warmup() int {
	switch g.spec.Kind {
	case KindMomentum, KindBreakout:
		return g.spec.Params.Lookback + 1
	case KindMeanReversion:
		return g.spec.Params.Lookback
	case KindEnsemble:
		w := 1
		for _, m := range g.members {
			w = max(w, m.Warmup())
		}
		return w
	default:
		return 1
	}
}

// Generate returns the signal for one period. It is a pure function of in
// and the generator's parameters.
func (g *Generator) Generate(in Input) core.Signal {
	var sig core.Signal
	switch g.spec.Kind {
	case KindThreshold:
		sig = threshold(g.spec.Params, in)
	case KindMomentum:
		sig = momentum(g.spec.Params, in)
	case KindMeanReversion:
		sig = meanReversion(g.spec.Params, in)
	case KindBreakout:
		sig = breakout(g.spec.Params, in)
	case KindEnsemble:
		sig = ensemble(g.members, in)
	default:
		sig = core.Hold(in.Time, in.Current, "unknown strategy")
	}
	sig.Time = in.Time
	sig.Price = in.Current
	sig.Strategy = string(g.spec.Kind)
	return sig
}

func validate(spec Spec) error {
	p := spec.Params
	switch spec.Kind {
	case KindThreshold:
		return validateThreshold(p)
	case KindMomentum:
		return validateMomentum(p)
	case KindMeanReversion:
		return validateMeanReversion(p)
	case KindBreakout:
		return validateBreakout(p)
	case KindEnsemble:
		return validateEnsemble(p)
	default:
		return core.ConfigError("unknown strategy %q", spec.Kind)
	}
}

// scaledConfidence maps a relative magnitude onto [0,1].
func scaledConfidence(rel float64) float64 {
	if math.IsNaN(rel) {
		return 0
	}
	return math.Min(1, math.Abs(rel)*confidenceScale)
}

func validLookback(lookback int) error {
	if lookback <= 0 {
		return core.ConfigError("lookback must be positive, got %d", lookback)
	}
	return nil
}

func validMargin(margin float64) error {
	if margin < 0 || math.IsNaN(margin) {
		return core.ConfigError("margin cannot be negative, got %v", margin)
	}
	return nil
}
