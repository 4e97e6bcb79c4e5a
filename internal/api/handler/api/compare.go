package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/newthinker/enercast/internal/api/response"
	"github.com/newthinker/enercast/internal/backtest"
	"github.com/newthinker/enercast/internal/config"
	"github.com/newthinker/enercast/internal/core"
	"github.com/newthinker/enercast/internal/model"
	"github.com/newthinker/enercast/internal/series"
	"github.com/newthinker/enercast/internal/strategy"
)

// CompareRequest runs several strategies over one series. Strategies
// default to the configured comparison set.
type CompareRequest struct {
	RunRequest
	Strategies map[string]StrategyRequest `json:"strategies,omitempty"`
	RankBy     string                     `json:"rank_by,omitempty"`
	Workers    int                        `json:"workers,omitempty"`
}

type StrategyRequest struct {
	Kind   string         `json:"kind"`
	Params map[string]any `json:"params,omitempty"`
}

// RankEntry is one ranked strategy.
type RankEntry struct {
	Rank       int              `json:"rank"`
	Name       string           `json:"name"`
	RunID      string           `json:"run_id"`
	Metrics    backtest.Metrics `json:"metrics"`
	ArchiveKey string           `json:"archive_key,omitempty"`
}

// OutcomeView is the wire form of one comparison job.
type OutcomeView struct {
	Name   string                `json:"name"`
	Result *backtest.Result      `json:"result,omitempty"`
	Error  *response.ErrorDetail `json:"error,omitempty"`
}

// CompareResult is the payload of a finished comparison job.
type CompareResult struct {
	RankBy   string        `json:"rank_by"`
	Ranking  []RankEntry   `json:"ranking"`
	Outcomes []OutcomeView `json:"outcomes"`
}

// CompareHandler handles strategy comparison requests.
type CompareHandler struct {
	runner *Runner
}

// NewCompareHandler creates a new compare handler.
func NewCompareHandler(runner *Runner) *CompareHandler {
	return &CompareHandler{runner: runner}
}

// Create validates every candidate and starts a comparison job.
func (h *CompareHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CompareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrConfigInvalid, err))
		return
	}

	jobs, err := h.jobs(req)
	if err != nil {
		response.Error(w, response.StatusFor(err), err)
		return
	}
	rankBy := req.RankBy
	if rankBy == "" {
		rankBy = h.runner.Compare.RankBy
	}
	if _, err := backtest.Rank(nil, rankBy); err != nil {
		response.Error(w, response.StatusFor(err), err)
		return
	}
	workers := req.Workers
	if workers <= 0 {
		workers = h.runner.Compare.Workers
	}
	commodity, err := req.commodity(h.runner.Defaults)
	if err != nil {
		response.Error(w, response.StatusFor(err), err)
		return
	}
	from, to, err := req.Range()
	if err != nil {
		response.Error(w, response.StatusFor(err), err)
		return
	}
	if err := series.Validate(req.Prices); err != nil {
		response.Error(w, response.StatusFor(err), err)
		return
	}
	inline := len(req.Prices) > 0
	prices := series.Slice(req.Prices, from, to)

	j := h.runner.submit(JobCompare, func(ctx context.Context) (any, error) {
		if !inline {
			var err error
			if prices, err = h.runner.Backtester.Fetch(ctx, commodity, from, to); err != nil {
				return nil, err
			}
		}
		outcomes, err := h.runner.Backtester.Compare(ctx, prices, jobs, workers)
		if err != nil {
			return nil, err
		}
		return h.collect(ctx, commodity, outcomes, rankBy)
	})

	response.JSON(w, http.StatusAccepted, map[string]any{
		"job_id":     j.ID,
		"status":     j.Status,
		"strategies": len(jobs),
	})
}

// jobs builds one job per named strategy, in name order.
func (h *CompareHandler) jobs(req CompareRequest) ([]backtest.Job, error) {
	bc := req.RunRequest.Apply(h.runner.Defaults)
	base, err := bc.Build()
	if err != nil {
		return nil, err
	}
	forecaster, err := model.New(bc.Model, bc.ModelParams)
	if err != nil {
		return nil, err
	}

	engine := strategy.NewEngine(h.runner.logger())
	if len(req.Strategies) > 0 {
		for name, s := range req.Strategies {
			if err := engine.RegisterConfig(name, s.Kind, s.Params); err != nil {
				return nil, core.ConfigError("strategy %q: %v", name, err)
			}
		}
	} else {
		for name, s := range h.runner.Compare.Strategies {
			if err := engine.RegisterConfig(name, s.Kind, s.Params); err != nil {
				return nil, core.ConfigError("strategy %q: %v", name, err)
			}
		}
	}
	if engine.Len() == 0 {
		return nil, core.ConfigError("no strategies to compare")
	}

	jobs := make([]backtest.Job, 0, engine.Len())
	for _, name := range engine.Names() {
		g, _ := engine.Get(name)
		cfg := base
		cfg.Strategy = g.Spec()
		jobs = append(jobs, backtest.Job{Name: name, Model: forecaster, Config: cfg})
	}
	return jobs, nil
}

func (h *CompareHandler) collect(ctx context.Context, commodity core.Commodity, outcomes []backtest.Outcome, rankBy string) (CompareResult, error) {
	out := CompareResult{RankBy: rankBy, Ranking: []RankEntry{}, Outcomes: make([]OutcomeView, 0, len(outcomes))}

	keys := make(map[string]string, len(outcomes))
	for _, o := range outcomes {
		if o.Result != nil {
			o.Result.Commodity = commodity
			keys[o.Name] = h.runner.archive(ctx, o.Result)
		}
		view := OutcomeView{Name: o.Name, Result: o.Result}
		if o.Err != nil {
			d := response.Detail(o.Err)
			view.Error = &d
		}
		out.Outcomes = append(out.Outcomes, view)
	}

	ranked, err := backtest.Rank(outcomes, rankBy)
	if err != nil {
		return CompareResult{}, err
	}
	for i, o := range ranked {
		out.Ranking = append(out.Ranking, RankEntry{
			Rank:       i + 1,
			Name:       o.Name,
			RunID:      o.Result.RunID,
			Metrics:    o.Result.Metrics,
			ArchiveKey: keys[o.Name],
		})
	}
	return out, nil
}

// compareDefaults exposes the configured comparison set.
func compareDefaults(c config.CompareConfig) map[string]StrategyRequest {
	out := make(map[string]StrategyRequest, len(c.Strategies))
	for name, s := range c.Strategies {
		out[name] = StrategyRequest{Kind: s.Kind, Params: s.Params}
	}
	return out
}
