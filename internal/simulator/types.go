package simulator

import (
	"math"
	"time"

	"github.com/newthinker/enercast/internal/core"
)

// Config holds the cost model and capital of one simulated run
type Config struct {
	InitialCapital float64 `json:"initial_capital"`
	Commission     float64 `json:"commission"` // fraction of notional per open and per close
	Slippage       float64 `json:"slippage"`   // fractional price degradation per fill
	LongOnly       bool    `json:"long_only"`
}

// Validate checks capital and cost ranges
func (c Config) Validate() error {
	if !(c.InitialCapital > 0) || math.IsInf(c.InitialCapital, 0) {
		return core.ConfigError("initial_capital must be positive, got %v", c.InitialCapital)
	}
	if !(c.Commission >= 0 && c.Commission < 1) {
		return core.ConfigError("commission must be in [0,1), got %v", c.Commission)
	}
	if !(c.Slippage >= 0 && c.Slippage < 1) {
		return core.ConfigError("slippage must be in [0,1), got %v", c.Slippage)
	}
	return nil
}

// Period is one simulated step: the quoted price and the decision taken on it.
// ForceClose marks the last period of the run. Any open position is
// closed there and nothing new is opened.
type Period struct {
	Time       time.Time
	Price      float64
	Signal     core.Signal
	ForceClose bool
}

// Direction of a position
const (
	Short = -1
	Flat  = 0
	Long  = 1
)

// Position is the currently open position, if any
type Position struct {
	Direction  int       `json:"direction"`
	EntryIndex int       `json:"entry_index"`
	EntryTime  time.Time `json:"entry_time"`
	EntryPrice float64   `json:"entry_price"` // fill price including slippage
}

// IsFlat returns true if no position is open
func (p Position) IsFlat() bool {
	return p.Direction == Flat
}

// Exit reasons recorded on trades
const (
	ExitSignal    = "signal"
	ExitReversal  = "reversal"
	ExitWindowEnd = "window_end"
)

// Trade is a closed round trip
type Trade struct {
	EntryIndex   int       `json:"entry_index"`
	ExitIndex    int       `json:"exit_index"`
	EntryTime    time.Time `json:"entry_time"`
	ExitTime     time.Time `json:"exit_time"`
	EntryPrice   float64   `json:"entry_price"`
	ExitPrice    float64   `json:"exit_price"`
	Direction    int       `json:"direction"`
	Return       float64   `json:"return"`     // raw P&L fraction between fills
	NetReturn    float64   `json:"net_return"` // after both commissions
	PnL          float64   `json:"pnl"`
	CapitalAfter float64   `json:"capital_after"`
	ExitReason   string    `json:"exit_reason"`
}

// IsWin returns true if the trade made money after costs
func (t Trade) IsWin() bool {
	return t.PnL > 0
}

// Exhaustion records the period at which capital reached zero or below.
// Every later period holds.
type Exhaustion struct {
	Index int       `json:"index"`
	Time  time.Time `json:"timestamp"`
}

// Result is the read-only output of a simulated run
type Result struct {
	InitialCapital float64 `json:"initial_capital"`
	FinalCapital   float64 `json:"final_capital"`
	Trades         []Trade `json:"trades"`
	// Equity is realized capital: the initial value followed by one
	// value per period.
	Equity []float64 `json:"equity_curve"`
	// MarkToMarket values any open position at the period's quote.
	MarkToMarket []float64   `json:"mark_to_market"`
	Exposure     int         `json:"exposure_periods"`
	Exhausted    *Exhaustion `json:"capital_exhausted,omitempty"`
}

// Periods returns the number of simulated periods
func (r Result) Periods() int {
	if len(r.Equity) == 0 {
		return 0
	}
	return len(r.Equity) - 1
}
