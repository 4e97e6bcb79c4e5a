package api

import (
	"net/http"

	"github.com/newthinker/enercast/internal/api/job"
	"github.com/newthinker/enercast/internal/api/response"
)

// JobsHandler exposes job status and cancellation.
type JobsHandler struct {
	jobs *job.Store
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(jobs *job.Store) *JobsHandler {
	return &JobsHandler{jobs: jobs}
}

// List returns every tracked job without results.
func (h *JobsHandler) List(w http.ResponseWriter, r *http.Request) {
	jobs := h.jobs.List()
	summaries := make([]map[string]any, 0, len(jobs))
	for _, j := range jobs {
		summaries = append(summaries, map[string]any{
			"job_id":     j.ID,
			"type":       j.Type,
			"status":     j.Status,
			"created_at": j.CreatedAt,
		})
	}
	response.JSON(w, http.StatusOK, summaries)
}

// GetStatus returns the status of a job, with its result once complete.
func (h *JobsHandler) GetStatus(w http.ResponseWriter, r *http.Request, jobID string) {
	j, err := h.jobs.Get(jobID)
	if err != nil {
		response.Error(w, http.StatusNotFound, err)
		return
	}

	resp := map[string]any{
		"job_id":   j.ID,
		"type":     j.Type,
		"status":   j.Status,
		"progress": j.Progress,
	}

	if j.Status == job.StatusComplete {
		resp["result"] = j.Result
	}
	if j.Error != nil {
		resp["error"] = response.Detail(j.Error)
	}

	response.JSON(w, http.StatusOK, resp)
}

// Cancel stops a pending or running job.
func (h *JobsHandler) Cancel(w http.ResponseWriter, r *http.Request, jobID string) {
	if err := h.jobs.Cancel(jobID); err != nil {
		response.Error(w, http.StatusNotFound, err)
		return
	}
	j, _ := h.jobs.Get(jobID)
	response.JSON(w, http.StatusOK, map[string]any{
		"job_id": jobID,
		"status": j.Status,
	})
}
