package simulator

import (
	"bytes"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/newthinker/enercast/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// periods pairs prices with actions given as "b", "s" or "h".
func periods(prices []float64, actions string) []Period {
	out := make([]Period, len(prices))
	for i, p := range prices {
		a := core.ActionHold
		switch actions[i] {
		case 'b':
			a = core.ActionBuy
		case 's':
			a = core.ActionSell
		}
		ts := start.AddDate(0, 0, i)
		out[i] = Period{Time: ts, Price: p, Signal: core.Signal{Time: ts, Action: a, Price: p}}
	}
	return out
}

func TestRun_Scenario(t *testing.T) {
	const (
		capital    = 100000.0
		commission = 0.001
		slippage   = 0.0005
	)
	cfg := Config{InitialCapital: capital, Commission: commission, Slippage: slippage}

	res, err := Run(cfg, periods([]float64{100, 102, 105, 95, 97}, "bhhhh"))
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)

	tr := res.Trades[0]
	entry := 100 * (1 + slippage)
	exit := 97 * (1 - slippage)
	wantNet := (exit-entry)/entry - 2*commission

	assert.InDelta(t, entry, tr.EntryPrice, 1e-9)
	assert.InDelta(t, exit, tr.ExitPrice, 1e-9)
	assert.InDelta(t, wantNet, tr.NetReturn, 1e-12)
	assert.Less(t, tr.NetReturn, 0.0)
	assert.Equal(t, 0, tr.EntryIndex)
	assert.Equal(t, 4, tr.ExitIndex)
	assert.Equal(t, Long, tr.Direction)
	assert.Equal(t, ExitWindowEnd, tr.ExitReason)
	assert.InDelta(t, capital*(1+wantNet), res.FinalCapital, 1e-6)
	assert.True(t, res.Trades[0].CapitalAfter == res.FinalCapital)
}

func TestRun_EquityCurveLength(t *testing.T) {
	cfg := Config{InitialCapital: 1000}
	for _, n := range []int{1, 2, 7} {
		prices := make([]float64, n)
		actions := make([]byte, n)
		for i := range prices {
			prices[i] = 50 + float64(i)
			actions[i] = "bsh"[i%3]
		}
		res, err := Run(cfg, periods(prices, string(actions)))
		require.NoError(t, err)
		assert.Len(t, res.Equity, n+1)
		assert.Len(t, res.MarkToMarket, n+1)
		assert.Equal(t, 1000.0, res.Equity[0])
		assert.Equal(t, n, res.Periods())
	}
}

func TestRun_AlwaysBuyWithoutCosts(t *testing.T) {
	prices := []float64{100, 97, 103, 110, 108, 120}
	res, err := Run(Config{InitialCapital: 5000}, periods(prices, "bbbbbb"))
	require.NoError(t, err)

	require.Len(t, res.Trades, 1)
	assert.InDelta(t, 5000*prices[len(prices)-1]/prices[0], res.FinalCapital, 1e-9)
}

func TestRun_LedgerReconcilesWithCapital(t *testing.T) {
	cfg := Config{InitialCapital: 100000, Commission: 0.002, Slippage: 0.001}
	prices := []float64{100, 104, 101, 96, 99, 103, 107, 102, 98, 100}
	res, err := Run(cfg, periods(prices, "bhshbbhshh"))
	require.NoError(t, err)
	require.NotEmpty(t, res.Trades)

	var pnl float64
	for _, tr := range res.Trades {
		pnl += tr.PnL
	}
	assert.InDelta(t, res.FinalCapital/res.InitialCapital-1, pnl/res.InitialCapital, 1e-12)
	assert.Equal(t, res.FinalCapital, res.Equity[len(res.Equity)-1])
}

func TestRun_Reversal(t *testing.T) {
	res, err := Run(Config{InitialCapital: 100}, periods([]float64{100, 110, 99}, "bsh"))
	require.NoError(t, err)
	require.Len(t, res.Trades, 2)

	assert.Equal(t, Long, res.Trades[0].Direction)
	assert.Equal(t, ExitReversal, res.Trades[0].ExitReason)
	assert.InDelta(t, 0.1, res.Trades[0].Return, 1e-12)

	assert.Equal(t, Short, res.Trades[1].Direction)
	assert.Equal(t, 1, res.Trades[1].EntryIndex)
	assert.InDelta(t, 0.1, res.Trades[1].Return, 1e-12)
	assert.InDelta(t, 121.0, res.FinalCapital, 1e-9)
}

func TestRun_LongOnly(t *testing.T) {
	cfg := Config{InitialCapital: 100, LongOnly: true}

	res, err := Run(cfg, periods([]float64{100, 90, 80}, "shh"))
	require.NoError(t, err)
	assert.Empty(t, res.Trades)
	assert.Equal(t, 0, res.Exposure)

	res, err = Run(cfg, periods([]float64{100, 110, 120, 130}, "bshh"))
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)
	assert.Equal(t, ExitSignal, res.Trades[0].ExitReason)
	assert.InDelta(t, 110.0, res.FinalCapital, 1e-9)
}

func TestRun_HoldKeepsPosition(t *testing.T) {
	res, err := Run(Config{InitialCapital: 100}, periods([]float64{100, 120, 90, 100}, "bhhh"))
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)
	assert.Equal(t, 3, res.Trades[0].ExitIndex)
	assert.Equal(t, 3, res.Exposure, "closed before the last mark")
}

func TestRun_MarkToMarket(t *testing.T) {
	res, err := Run(Config{InitialCapital: 100}, periods([]float64{100, 120, 90, 100}, "bhhh"))
	require.NoError(t, err)

	assert.Equal(t, []float64{100, 100, 100, 100, 100}, res.Equity)
	assert.InDeltaSlice(t, []float64{100, 100, 120, 90, 100}, res.MarkToMarket, 1e-9)
}

func TestRun_NoOpenOnWindowEnd(t *testing.T) {
	res, err := Run(Config{InitialCapital: 100}, periods([]float64{100, 100}, "hb"))
	require.NoError(t, err)
	assert.Empty(t, res.Trades)
	assert.Equal(t, 0, res.Exposure)
}

func TestRun_OppositeSignalOnLastPeriod(t *testing.T) {
	res, err := Run(Config{InitialCapital: 100}, periods([]float64{100, 110}, "bs"))
	require.NoError(t, err)

	require.Len(t, res.Trades, 1)
	assert.Equal(t, ExitWindowEnd, res.Trades[0].ExitReason)
	assert.Equal(t, 1, res.Exposure, "nothing reopens")
}

func TestRun_CapitalExhausted(t *testing.T) {
	res, err := Run(Config{InitialCapital: 100}, periods([]float64{100, 250, 100, 50}, "sbbb"))
	require.NoError(t, err)

	require.NotNil(t, res.Exhausted)
	assert.Equal(t, 1, res.Exhausted.Index)
	require.Len(t, res.Trades, 1, "no positions after exhaustion")
	assert.Equal(t, 0.0, res.FinalCapital)
	assert.Equal(t, -100.0, res.Trades[0].PnL)
	assert.Equal(t, []float64{100, 100, 0, 0, 0}, res.Equity)
}

func TestSimulator_CarriesPositionUntilForceClose(t *testing.T) {
	sim, err := New(Config{InitialCapital: 100})
	require.NoError(t, err)

	ps := periods([]float64{100, 110, 50, 60}, "bhhh")
	ps[3].ForceClose = true

	for _, p := range ps[:3] {
		require.NoError(t, sim.Step(p))
	}
	assert.Equal(t, Long, sim.Position().Direction)
	assert.Zero(t, sim.TradeCount())

	require.NoError(t, sim.Step(ps[3]))
	res := sim.Result()
	require.Len(t, res.Trades, 1)
	assert.InDelta(t, 60.0, res.FinalCapital, 1e-9)
	assert.True(t, sim.Position().IsFlat())
}

func TestSimulator_ResultIsSnapshot(t *testing.T) {
	sim, err := New(Config{InitialCapital: 100})
	require.NoError(t, err)
	ps := periods([]float64{100, 110, 120}, "bhh")

	require.NoError(t, sim.Step(ps[0]))
	snap := sim.Result()
	require.NoError(t, sim.Step(ps[1]))

	assert.Len(t, snap.Equity, 2)
	assert.Len(t, sim.Result().Equity, 3)
}

func TestStep_InvalidPrice(t *testing.T) {
	cfg := Config{InitialCapital: 100}
	_, err := Step(cfg, Init(cfg), Period{Time: start, Price: 0})
	assert.True(t, errors.Is(err, core.ErrSeriesInvalid))
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"valid", Config{InitialCapital: 1, Commission: 0.001, Slippage: 0.0005}, true},
		{"zero capital", Config{}, false},
		{"negative commission", Config{InitialCapital: 1, Commission: -0.1}, false},
		{"commission of one", Config{InitialCapital: 1, Commission: 1}, false},
		{"slippage of one", Config{InitialCapital: 1, Slippage: 1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, core.ErrConfigInvalid))
		})
	}
}

func TestRun_Deterministic(t *testing.T) {
	cfg := Config{InitialCapital: 1000, Commission: 0.001, Slippage: 0.001}
	ps := periods([]float64{10, 11, 9, 12, 13, 8}, "bshbsh")
	a, err := Run(cfg, ps)
	require.NoError(t, err)
	b, err := Run(cfg, ps)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestWriteLedger(t *testing.T) {
	res, err := Run(Config{InitialCapital: 100}, periods([]float64{100, 110, 99}, "bsh"))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteLedger(&buf, res.Trades))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, ledgerHeader, rows[0])
	assert.Equal(t, "1", rows[1][4])
	assert.Equal(t, "-1", rows[2][4])
	assert.Equal(t, ExitWindowEnd, rows[2][11])

	path := filepath.Join(t.TempDir(), "ledger.csv")
	require.NoError(t, WriteLedgerCSV(path, res.Trades))
	_, err = os.Stat(path)
	assert.NoError(t, err)
}
