package api

import (
	"net/http"

	"github.com/newthinker/enercast/internal/api/response"
	"github.com/newthinker/enercast/internal/storage/archive"
)

// RunsHandler serves archived backtest reports.
type RunsHandler struct {
	reports *archive.Reports
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(reports *archive.Reports) *RunsHandler {
	return &RunsHandler{reports: reports}
}

// List returns archived run ids.
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	ids, err := h.reports.Runs(r.Context())
	if err != nil {
		response.Error(w, response.StatusFor(err), err)
		return
	}
	response.JSON(w, http.StatusOK, ids)
}

// Get returns one archived result.
func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request, runID string) {
	res, err := h.reports.Load(r.Context(), runID)
	if err != nil {
		response.Error(w, response.StatusFor(err), err)
		return
	}
	response.JSON(w, http.StatusOK, res)
}

// Ledger streams the archived trade ledger as CSV.
func (h *RunsHandler) Ledger(w http.ResponseWriter, r *http.Request, runID string) {
	data, err := h.reports.Ledger(r.Context(), runID)
	if err != nil {
		response.Error(w, response.StatusFor(err), err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+runID+`.csv"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
