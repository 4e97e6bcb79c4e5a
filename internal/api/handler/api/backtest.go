// internal/api/handler/api/backtest.go
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/newthinker/enercast/internal/api/response"
	"github.com/newthinker/enercast/internal/backtest"
	"github.com/newthinker/enercast/internal/core"
	"github.com/newthinker/enercast/internal/model"
	"github.com/newthinker/enercast/internal/series"
)

// BacktestResult is the payload of a finished backtest job.
type BacktestResult struct {
	*backtest.Result
	ArchiveKey string `json:"archive_key,omitempty"`
}

// BacktestHandler handles backtest API requests.
type BacktestHandler struct {
	runner *Runner
}

// NewBacktestHandler creates a new backtest handler.
func NewBacktestHandler(runner *Runner) *BacktestHandler {
	return &BacktestHandler{runner: runner}
}

// Create validates the request and starts a backtest job.
func (h *BacktestHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrConfigInvalid, err))
		return
	}

	bc := req.Apply(h.runner.Defaults)
	cfg, err := bc.Build()
	if err != nil {
		response.Error(w, response.StatusFor(err), err)
		return
	}
	forecaster, err := model.New(bc.Model, bc.ModelParams)
	if err != nil {
		response.Error(w, response.StatusFor(err), err)
		return
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

	j := h.runner.submit(JobBacktest, func(ctx context.Context) (any, error) {
		var (
			res *backtest.Result
			err error
		)
		if inline {
			res, err = h.runner.Backtester.Run(ctx, prices, forecaster, cfg)
			if res != nil {
				res.Commodity = commodity
			}
		} else {
			res, err = h.runner.Backtester.RunCommodity(ctx, commodity, from, to, forecaster, cfg)
		}
		if err != nil {
			return nil, err
		}
		return BacktestResult{Result: res, ArchiveKey: h.runner.archive(ctx, res)}, nil
	})

	response.JSON(w, http.StatusAccepted, map[string]any{
		"job_id": j.ID,
		"status": j.Status,
	})
}
