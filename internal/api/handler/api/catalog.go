package api

import (
	"net/http"

	"github.com/newthinker/enercast/internal/api/response"
	"github.com/newthinker/enercast/internal/model"
	"github.com/newthinker/enercast/internal/strategy"
)

// CatalogHandler lists what a run can be configured with.
type CatalogHandler struct {
	runner *Runner
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler(runner *Runner) *CatalogHandler {
	return &CatalogHandler{runner: runner}
}

// Models lists the registered forecasters.
func (h *CatalogHandler) Models(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]any{
		"models":  model.Names(),
		"default": h.runner.Defaults.Model,
	})
}

// Strategies lists the strategy kinds and the configured comparison set.
func (h *CatalogHandler) Strategies(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]any{
		"kinds":   strategy.Kinds,
		"default": h.runner.Defaults.Strategy,
		"compare": compareDefaults(h.runner.Compare),
	})
}
