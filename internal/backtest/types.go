package backtest

import (
	"time"

	"github.com/newthinker/enercast/internal/core"
	"github.com/newthinker/enercast/internal/simulator"
	"github.com/newthinker/enercast/internal/strategy"
	"github.com/newthinker/enercast/internal/walkforward"
)

// DefaultPeriodsPerYear annualizes daily returns
const DefaultPeriodsPerYear = 252

// Config is everything a single run needs besides prices and a model
type Config struct {
	simulator.Config
	Strategy       strategy.Spec    `json:"strategy"`
	Mode           walkforward.Mode `json:"window_mode"`
	TrainLength    int              `json:"train_length"`
	TestLength     int              `json:"test_length"`
	PeriodsPerYear float64          `json:"periods_per_year"`
}

// Result holds the complete backtest output
type Result struct {
	RunID     string         `json:"run_id"`
	Commodity core.Commodity `json:"commodity,omitempty"`
	Model     string         `json:"model"`
	Strategy  string         `json:"strategy"`
	StartDate time.Time      `json:"start_date"`
	EndDate   time.Time      `json:"end_date"`

	Metrics     Metrics           `json:"metrics"`
	NumTrades   int               `json:"num_trades"`
	Trades      []simulator.Trade `json:"trades"`
	EquityCurve []float64         `json:"equity_curve"`

	MarkToMarket     []float64              `json:"mark_to_market"`
	Predictions      []core.PredictionPoint `json:"predictions"`
	Signals          []core.Signal          `json:"signals"`
	Windows          []WindowSummary        `json:"windows"`
	CapitalExhausted *simulator.Exhaustion  `json:"capital_exhausted,omitempty"`
}

// Metrics holds accuracy and risk statistics. Undefined values are nil
// and serialize as null.
type Metrics struct {
	// Accuracy over prediction/actual pairs
	RMSE                *float64 `json:"rmse"`
	MAE                 *float64 `json:"mae"`
	MAPE                *float64 `json:"mape"` // percent
	DirectionalAccuracy *float64 `json:"directional_accuracy"`

	// Risk and return
	InitialCapital       float64  `json:"initial_capital"`
	FinalCapital         float64  `json:"final_capital"`
	TotalReturn          float64  `json:"total_return"`
	SharpeRatio          *float64 `json:"sharpe_ratio"`
	SortinoRatio         *float64 `json:"sortino_ratio"`
	MaxDrawdown          float64  `json:"max_drawdown"`
	AnnualizedVolatility *float64 `json:"annualized_volatility"`
	WinRate              *float64 `json:"win_rate"`
	ProfitFactor         *float64 `json:"profit_factor"`
	AverageTradeReturn   *float64 `json:"average_trade_return"`
	Exposure             float64  `json:"exposure"` // fraction of periods with an open position
}

// WindowSummary describes one walk-forward window after simulation
type WindowSummary struct {
	Index        int       `json:"index"`
	TrainStart   time.Time `json:"train_start"`
	TrainEnd     time.Time `json:"train_end"`
	TestStart    time.Time `json:"test_start"`
	TestEnd      time.Time `json:"test_end"`
	TrainLength  int       `json:"train_length"`
	StartCapital float64   `json:"start_capital"`
	EndCapital   float64   `json:"end_capital"`
	Trades       int       `json:"trades"`
	RMSE         *float64  `json:"rmse"`
}

// Return is the realized return of the window
func (w WindowSummary) Return() float64 {
	if w.StartCapital <= 0 {
		return 0
	}
	return w.EndCapital/w.StartCapital - 1
}
