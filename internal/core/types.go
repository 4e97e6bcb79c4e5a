package core

import "time"

// Commodity identifies an energy commodity series, e.g. "brent" or "henry_hub".
type Commodity string

const (
	CommodityBrent      Commodity = "brent"
	CommodityWTI        Commodity = "wti"
	CommodityNaturalGas Commodity = "natural_gas"
	CommodityPower      Commodity = "power"
)

// PricePoint is one observation of a historical price series
type PricePoint struct {
	Time   time.Time `json:"timestamp"`
	Price  float64   `json:"price"`
	Volume *float64  `json:"volume,omitempty"`
}

// IsValid checks if the point has a timestamp and a positive price
func (p PricePoint) IsValid() bool {
	return !p.Time.IsZero() && p.Price > 0
}

// PredictionPoint is a model forecast for one test period
type PredictionPoint struct {
	Time      time.Time `json:"timestamp"`
	Predicted float64   `json:"predicted"`
	Lower     *float64  `json:"lower,omitempty"`
	Upper     *float64  `json:"upper,omitempty"`
}

// HasInterval reports whether a confidence interval is attached
func (p PredictionPoint) HasInterval() bool {
	return p.Lower != nil && p.Upper != nil
}

// IsValid checks the interval ordering lower <= predicted <= upper
func (p PredictionPoint) IsValid() bool {
	if p.Lower == nil && p.Upper == nil {
		return true
	}
	if !p.HasInterval() {
		return false
	}
	return *p.Lower <= p.Predicted && p.Predicted <= *p.Upper
}

// Action represents a trading signal action
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
	ActionHold Action = "hold"
)

// Direction returns +1 for buy, -1 for sell and 0 for hold
func (a Action) Direction() int {
	switch a {
	case ActionBuy:
		return 1
	case ActionSell:
		return -1
	default:
		return 0
	}
}

// Signal is a trading decision for one evaluated timestamp
type Signal struct {
	Time       time.Time `json:"timestamp"`
	Action     Action    `json:"signal"`
	Price      float64   `json:"price"`
	Confidence float64   `json:"confidence"`
	Reason     string    `json:"reason,omitempty"`
	Strategy   string    `json:"strategy,omitempty"`
}

// Hold returns a hold signal with zero confidence
func Hold(t time.Time, price float64, reason string) Signal {
	return Signal{Time: t, Action: ActionHold, Price: price, Reason: reason}
}

// Prices extracts the price column of a series
func Prices(points []PricePoint) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Price
	}
	return out
}
