package backtest

import (
	"context"
	"errors"
	"testing"

	"github.com/newthinker/enercast/internal/core"
	"github.com/newthinker/enercast/internal/model"
	"github.com/newthinker/enercast/internal/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compareJobs() []Job {
	momentum := thresholdConfig(10, 5)
	momentum.Strategy = strategy.Spec{Kind: strategy.KindMomentum, Params: strategy.Params{Lookback: 3}}

	broken := thresholdConfig(10, 5)
	broken.Commission = 2

	return []Job{
		{Name: "naive-threshold", Model: model.Naive{}, Config: thresholdConfig(10, 5)},
		{Name: "drift-momentum", Model: model.Drift{}, Config: momentum},
		{Name: "broken", Model: model.Naive{}, Config: broken},
		{Name: "trend-threshold", Model: model.LinearTrend{Window: 5}, Config: thresholdConfig(10, 5)},
	}
}

func TestCompare(t *testing.T) {
	rec := &fakeRecorder{}
	bt := New(WithRecorder(rec))
	prices := wave(60)

	outcomes, err := bt.Compare(context.Background(), prices, compareJobs(), 2)
	require.NoError(t, err)
	require.Len(t, outcomes, 4)

	for i, job := range compareJobs() {
		assert.Equal(t, job.Name, outcomes[i].Name)
	}
	assert.True(t, errors.Is(outcomes[2].Err, core.ErrConfigInvalid))
	assert.Nil(t, outcomes[2].Result)
	assert.NotEmpty(t, outcomes[2].Error())

	for _, i := range []int{0, 1, 3} {
		require.NoError(t, outcomes[i].Err)
		require.NotNil(t, outcomes[i].Result)
	}
	assert.LessOrEqual(t, rec.maxActive, 2)

	// each run is independent of the others
	solo, err := New().Run(context.Background(), prices, model.Drift{}, compareJobs()[1].Config)
	require.NoError(t, err)
	assert.Equal(t, solo.EquityCurve, outcomes[1].Result.EquityCurve)
	assert.Equal(t, solo.Metrics, outcomes[1].Result.Metrics)
}

func TestCompare_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcomes, err := New().Compare(ctx, wave(60), compareJobs(), 0)
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, outcomes, 4)
	for _, o := range outcomes {
		assert.Nil(t, o.Result, "partial results are discarded")
		assert.Error(t, o.Err)
	}
}

func TestRank(t *testing.T) {
	outcomes := []Outcome{
		{Name: "b", Result: &Result{Metrics: Metrics{TotalReturn: 0.1, MaxDrawdown: 0.2, SharpeRatio: ptr(1)}}},
		{Name: "a", Result: &Result{Metrics: Metrics{TotalReturn: 0.3, MaxDrawdown: 0.1}}},
		{Name: "failed", Err: errors.New("boom")},
		{Name: "c", Result: &Result{Metrics: Metrics{TotalReturn: 0.1, MaxDrawdown: 0.05, SharpeRatio: ptr(2)}}},
	}

	names := func(os []Outcome) []string {
		out := make([]string, len(os))
		for i, o := range os {
			out[i] = o.Name
		}
		return out
	}

	ranked, err := Rank(outcomes, RankTotalReturn)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, names(ranked))

	ranked, err = Rank(outcomes, RankMaxDrawdown)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b"}, names(ranked))

	ranked, err = Rank(outcomes, RankSharpe)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a"}, names(ranked), "undefined ratios last")

	_, err = Rank(outcomes, "luck")
	assert.True(t, errors.Is(err, core.ErrConfigInvalid))
}
