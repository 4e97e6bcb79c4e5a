package backtest

import (
	"math"

	"github.com/newthinker/enercast/internal/indicator"
	"github.com/newthinker/enercast/internal/simulator"
)

// RMSE is the root mean squared error, nil for no pairs
func RMSE(predicted, actual []float64) *float64 {
	n := pairs(predicted, actual)
	if n == 0 {
		return nil
	}
	var sum float64
	for i := 0; i < n; i++ {
		e := predicted[i] - actual[i]
		sum += e * e
	}
	return ptr(math.Sqrt(sum / float64(n)))
}

// MAE is the mean absolute error, nil for no pairs
func MAE(predicted, actual []float64) *float64 {
	n := pairs(predicted, actual)
	if n == 0 {
		return nil
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += math.Abs(predicted[i] - actual[i])
	}
	return ptr(sum / float64(n))
}

// PercentageErrors returns |error|/|actual|*100 per period. Periods with a
// zero actual are nil.
func PercentageErrors(predicted, actual []float64) []*float64 {
	n := pairs(predicted, actual)
	out := make([]*float64, n)
	for i := 0; i < n; i++ {
		if actual[i] == 0 {
			continue
		}
		out[i] = ptr(math.Abs(predicted[i]-actual[i]) / math.Abs(actual[i]) * 100)
	}
	return out
}

// MAPE is the mean absolute percentage error. It is nil when there are no
// pairs or any actual is zero.
func MAPE(predicted, actual []float64) *float64 {
	errs := PercentageErrors(predicted, actual)
	if len(errs) == 0 {
		return nil
	}
	var sum float64
	for _, e := range errs {
		if e == nil {
			return nil
		}
		sum += *e
	}
	return ptr(sum / float64(len(errs)))
}

// DirectionalAccuracy is the fraction of periods where the predicted move
// from the previous actual has the same sign as the realized move.
func DirectionalAccuracy(previous, predicted, actual []float64) *float64 {
	n := min(len(previous), pairs(predicted, actual))
	if n == 0 {
		return nil
	}
	hits := 0
	for i := 0; i < n; i++ {
		if sign(predicted[i]-previous[i]) == sign(actual[i]-previous[i]) {
			hits++
		}
	}
	return ptr(float64(hits) / float64(n))
}

// TotalReturn is final/initial - 1 of a curve
func TotalReturn(curve []float64) float64 {
	if len(curve) < 2 || curve[0] <= 0 {
		return 0
	}
	return curve[len(curve)-1]/curve[0] - 1
}

// PeriodReturns converts a value curve into simple returns. Periods
// starting from a non-positive value are skipped.
func PeriodReturns(curve []float64) []float64 {
	if len(curve) < 2 {
		return nil
	}
	out := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		if curve[i-1] <= 0 {
			continue
		}
		out = append(out, curve[i]/curve[i-1]-1)
	}
	return out
}

// SharpeRatio is mean/stdev of returns annualized by sqrt(periodsPerYear),
// assuming a zero risk-free rate. Nil when stdev is zero or undefined.
func SharpeRatio(returns []float64, periodsPerYear float64) *float64 {
	sd := indicator.StdDev(returns)
	if math.IsNaN(sd) || sd == 0 {
		return nil
	}
	return ptr(indicator.Mean(returns) / sd * math.Sqrt(periodsPerYear))
}

// SortinoRatio replaces the denominator of the Sharpe ratio with the
// stdev of the negative returns only.
func SortinoRatio(returns []float64, periodsPerYear float64) *float64 {
	var downside []float64
	for _, r := range returns {
		if r < 0 {
			downside = append(downside, r)
		}
	}
	sd := indicator.StdDev(downside)
	if math.IsNaN(sd) || sd == 0 {
		return nil
	}
	return ptr(indicator.Mean(returns) / sd * math.Sqrt(periodsPerYear))
}

// AnnualizedVolatility is the stdev of returns scaled by sqrt(periodsPerYear)
func AnnualizedVolatility(returns []float64, periodsPerYear float64) *float64 {
	sd := indicator.StdDev(returns)
	if math.IsNaN(sd) {
		return nil
	}
	return ptr(sd * math.Sqrt(periodsPerYear))
}

// MaxDrawdown finds the largest peak-to-trough decline as a fraction of
// the peak in one forward pass.
func MaxDrawdown(curve []float64) float64 {
	var maxDD, peak float64
	for _, v := range curve {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			if dd := (peak - v) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// WinRate is the fraction of closed trades with positive P&L
func WinRate(trades []simulator.Trade) *float64 {
	if len(trades) == 0 {
		return nil
	}
	wins := 0
	for _, t := range trades {
		if t.IsWin() {
			wins++
		}
	}
	return ptr(float64(wins) / float64(len(trades)))
}

// ProfitFactor is gross profit over gross loss, nil without losing trades
func ProfitFactor(trades []simulator.Trade) *float64 {
	var gain, loss float64
	for _, t := range trades {
		if t.PnL > 0 {
			gain += t.PnL
		} else {
			loss -= t.PnL
		}
	}
	if loss == 0 {
		return nil
	}
	return ptr(gain / loss)
}

// AverageTradeReturn is the mean net return per trade
func AverageTradeReturn(trades []simulator.Trade) *float64 {
	if len(trades) == 0 {
		return nil
	}
	var sum float64
	for _, t := range trades {
		sum += t.NetReturn
	}
	return ptr(sum / float64(len(trades)))
}

// CalculateMetrics reduces a simulated run and its forecasts. Drawdown and
// ratios use the mark-to-market curve; total return uses realized capital.
func CalculateMetrics(sim simulator.Result, previous, predicted, actual []float64, periodsPerYear float64) Metrics {
	if periodsPerYear <= 0 {
		periodsPerYear = DefaultPeriodsPerYear
	}
	returns := PeriodReturns(sim.MarkToMarket)

	m := Metrics{
		RMSE:                 RMSE(predicted, actual),
		MAE:                  MAE(predicted, actual),
		MAPE:                 MAPE(predicted, actual),
		DirectionalAccuracy:  DirectionalAccuracy(previous, predicted, actual),
		InitialCapital:       sim.InitialCapital,
		FinalCapital:         sim.FinalCapital,
		TotalReturn:          TotalReturn(sim.Equity),
		SharpeRatio:          SharpeRatio(returns, periodsPerYear),
		SortinoRatio:         SortinoRatio(returns, periodsPerYear),
		MaxDrawdown:          MaxDrawdown(sim.MarkToMarket),
		AnnualizedVolatility: AnnualizedVolatility(returns, periodsPerYear),
		WinRate:              WinRate(sim.Trades),
		ProfitFactor:         ProfitFactor(sim.Trades),
		AverageTradeReturn:   AverageTradeReturn(sim.Trades),
	}
	if p := sim.Periods(); p > 0 {
		m.Exposure = float64(sim.Exposure) / float64(p)
	}
	return m
}

func pairs(predicted, actual []float64) int {
	return min(len(predicted), len(actual))
}

func sign(x float64) int {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}

func ptr(v float64) *float64 {
	return &v
}
