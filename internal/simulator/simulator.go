// Package simulator replays a decision stream against quoted prices and
// accounts capital, positions and trades under commission and slippage.
//
// Per period the order of operations is:
//  1. a buy or sell that contradicts the open position closes it;
//  2. fills are degraded by slippage against the trader (buys at
//     price*(1+slippage), sells at price*(1-slippage));
//  3. the trade's net return is the raw fill-to-fill return minus one
//     commission for the open and one for the close;
//  4. capital compounds by the net return of each closed trade;
//  5. a buy or sell then opens a new position if flat, unless the period
//     ends the run, in which case any open position is closed instead;
//  6. realized capital and the mark-to-market value are appended.
package simulator

import (
	"fmt"
	"math"

	"github.com/newthinker/enercast/internal/core"
)

// State is the fold accumulator. It owns its slices: a State must be
// stepped at most once.
type State struct {
	Capital      float64
	Position     Position
	Trades       []Trade
	Equity       []float64
	MarkToMarket []float64
	Exposure     int
	Exhausted    *Exhaustion
}

// Init returns the accumulator before the first period.
func Init(cfg Config) State {
	return State{
		Capital:      cfg.InitialCapital,
		Equity:       []float64{cfg.InitialCapital},
		MarkToMarket: []float64{cfg.InitialCapital},
	}
}

// Step folds one period into the accumulator.
func Step(cfg Config, s State, p Period) (State, error) {
	if !(p.Price > 0) || math.IsInf(p.Price, 0) {
		return s, core.WrapError(core.ErrSeriesInvalid, fmt.Errorf("period %d has price %v", len(s.Equity)-1, p.Price))
	}
	idx := len(s.Equity) - 1

	if s.Exhausted == nil {
		target := targetDirection(cfg, s.Position, p.Signal.Action)

		if !s.Position.IsFlat() && target != s.Position.Direction {
			reason := ExitSignal
			switch {
			case target != Flat && p.ForceClose:
				reason = ExitWindowEnd
			case target != Flat:
				reason = ExitReversal
			}
			s = closePosition(cfg, s, idx, p, reason)
		}

		if s.Exhausted == nil && s.Position.IsFlat() && target != Flat && !p.ForceClose {
			s.Position = Position{
				Direction:  target,
				EntryIndex: idx,
				EntryTime:  p.Time,
				EntryPrice: fill(p.Price, cfg.Slippage, target),
			}
		}

		if p.ForceClose && !s.Position.IsFlat() {
			s = closePosition(cfg, s, idx, p, ExitWindowEnd)
		}
	}

	mark := s.Capital
	if !s.Position.IsFlat() {
		s.Exposure++
		mark = s.Capital * (1 + float64(s.Position.Direction)*(p.Price-s.Position.EntryPrice)/s.Position.EntryPrice)
	}
	s.Equity = append(s.Equity, s.Capital)
	s.MarkToMarket = append(s.MarkToMarket, mark)
	return s, nil
}

// targetDirection maps an action to the desired position. Hold keeps
// whatever is open; sell only flattens when shorting is disabled.
func targetDirection(cfg Config, pos Position, action core.Action) int {
	switch dir := action.Direction(); {
	case dir == Flat:
		return pos.Direction
	case dir == Short && cfg.LongOnly:
		return Flat
	default:
		return dir
	}
}

// fill applies slippage against a trade in direction dir (+1 buys, -1 sells).
func fill(quote, slippage float64, dir int) float64 {
	return quote * (1 + float64(dir)*slippage)
}

func closePosition(cfg Config, s State, idx int, p Period, reason string) State {
	pos := s.Position
	// closing a long sells, closing a short buys
	exit := fill(p.Price, cfg.Slippage, -pos.Direction)
	raw := float64(pos.Direction) * (exit - pos.EntryPrice) / pos.EntryPrice
	net := raw - 2*cfg.Commission

	before := s.Capital
	after := math.Max(0, before*(1+net))

	s.Trades = append(s.Trades, Trade{
		EntryIndex:   pos.EntryIndex,
		ExitIndex:    idx,
		EntryTime:    pos.EntryTime,
		ExitTime:     p.Time,
		EntryPrice:   pos.EntryPrice,
		ExitPrice:    exit,
		Direction:    pos.Direction,
		Return:       raw,
		NetReturn:    net,
		PnL:          after - before,
		CapitalAfter: after,
		ExitReason:   reason,
	})
	s.Capital = after
	s.Position = Position{}

	if after <= 0 {
		s.Exhausted = &Exhaustion{Index: idx, Time: p.Time}
	}
	return s
}

// Simulator owns the accumulator of a single run. It is not safe for
// concurrent use and must not be reused across runs.
type Simulator struct {
	cfg   Config
	state State
}

// New creates a simulator starting flat with the configured capital.
func New(cfg Config) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Simulator{cfg: cfg, state: Init(cfg)}, nil
}

// Step advances the run by one period.
func (s *Simulator) Step(p Period) error {
	next, err := Step(s.cfg, s.state, p)
	if err != nil {
		return err
	}
	s.state = next
	return nil
}

// Capital returns the current realized capital.
func (s *Simulator) Capital() float64 {
	return s.state.Capital
}

// Position returns the open position.
func (s *Simulator) Position() Position {
	return s.state.Position
}

// TradeCount returns the number of closed trades.
func (s *Simulator) TradeCount() int {
	return len(s.state.Trades)
}

// Exhausted reports whether capital has been exhausted.
func (s *Simulator) Exhausted() bool {
	return s.state.Exhausted != nil
}

// Result returns a snapshot of the run so far.
func (s *Simulator) Result() Result {
	st := s.state
	r := Result{
		InitialCapital: s.cfg.InitialCapital,
		FinalCapital:   st.Capital,
		Trades:         append([]Trade{}, st.Trades...),
		Equity:         append([]float64(nil), st.Equity...),
		MarkToMarket:   append([]float64(nil), st.MarkToMarket...),
		Exposure:       st.Exposure,
	}
	if st.Exhausted != nil {
		ex := *st.Exhausted
		r.Exhausted = &ex
	}
	return r
}

// Run folds periods into a fresh simulator. The last period is treated
// as the end of the window.
func Run(cfg Config, periods []Period) (Result, error) {
	sim, err := New(cfg)
	if err != nil {
		return Result{}, err
	}
	for i, p := range periods {
		if i == len(periods)-1 {
			p.ForceClose = true
		}
		if err := sim.Step(p); err != nil {
			return Result{}, err
		}
	}
	return sim.Result(), nil
}
