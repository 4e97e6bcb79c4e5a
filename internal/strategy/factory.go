package strategy

import (
	"math"
	"strconv"

	"github.com/newthinker/enercast/internal/core"
)

// Default parameters applied when a key is missing from strategy_params.
const (
	DefaultThreshold = 0.02
	DefaultLookback  = 20
	DefaultNumStd    = 2.0
	DefaultMargin    = 0.0
)

// FromConfig builds a Spec from the configuration surface: a strategy name
// and a loosely typed parameter map as decoded from YAML or JSON.
// Unknown kinds and malformed values are configuration errors.
func FromConfig(kind string, params map[string]any) (Spec, error) {
	spec := Spec{Kind: Kind(kind)}
	p := &spec.Params
	var err error

	switch spec.Kind {
	case KindThreshold:
		p.Threshold, err = floatParam(params, "threshold", DefaultThreshold)
	case KindMomentum:
		if p.Lookback, err = intParam(params, "lookback", DefaultLookback); err == nil {
			p.Margin, err = floatParam(params, "margin", DefaultMargin)
		}
	case KindMeanReversion:
		if p.Lookback, err = intParam(params, "lookback", DefaultLookback); err == nil {
			p.NumStd, err = floatParam(params, "num_std", DefaultNumStd)
		}
	case KindBreakout:
		if p.Lookback, err = intParam(params, "lookback", DefaultLookback); err == nil {
			p.Margin, err = floatParam(params, "margin", DefaultMargin)
		}
	case KindEnsemble:
		p.Members, err = membersParam(params)
	default:
		return Spec{}, core.ConfigError("unknown strategy %q", kind)
	}
	if err != nil {
		return Spec{}, err
	}
	if err := validate(spec); err != nil {
		return Spec{}, err
	}
	return spec, nil
}

// NewFromConfig is FromConfig followed by New.
func NewFromConfig(kind string, params map[string]any) (*Generator, error) {
	spec, err := FromConfig(kind, params)
	if err != nil {
		return nil, err
	}
	return New(spec)
}

// membersParam accepts either a list of kind names (default parameters) or
// a list of {kind|strategy, params} maps.
func membersParam(params map[string]any) ([]Spec, error) {
	raw, ok := params["members"]
	if !ok {
		return nil, core.ConfigError("ensemble requires members")
	}
	list, ok := raw.([]any)
	if !ok {
		if names, isStrings := raw.([]string); isStrings {
			for _, n := range names {
				list = append(list, n)
			}
		} else {
			return nil, core.ConfigError("ensemble members must be a list, got %T", raw)
		}
	}

	members := make([]Spec, 0, len(list))
	for i, item := range list {
		var (
			kind string
			sub  map[string]any
		)
		switch v := item.(type) {
		case string:
			kind = v
		case map[string]any:
			kind, _ = v["kind"].(string)
			if kind == "" {
				kind, _ = v["strategy"].(string)
			}
			sub, _ = v["params"].(map[string]any)
		default:
			return nil, core.ConfigError("ensemble member %d has unsupported type %T", i, item)
		}
		spec, err := FromConfig(kind, sub)
		if err != nil {
			return nil, err
		}
		members = append(members, spec)
	}
	return members, nil
}

func floatParam(params map[string]any, key string, def float64) (float64, error) {
	raw, ok := params[key]
	if !ok || raw == nil {
		return def, nil
	}
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, core.ConfigError("%s: %v", key, err)
		}
		return f, nil
	default:
		return 0, core.ConfigError("%s must be a number, got %T", key, raw)
	}
}

func intParam(params map[string]any, key string, def int) (int, error) {
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
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, core.ConfigError("%s: %v", key, err)
		}
		return n, nil
	default:
		return 0, core.ConfigError("%s must be an integer, got %T", key, raw)
	}
}
