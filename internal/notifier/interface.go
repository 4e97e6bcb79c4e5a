// Package notifier announces finished backtest and comparison jobs.
package notifier

import (
	"context"
	"time"
)

// Config holds notifier configuration
type Config struct {
	Type   string         `mapstructure:"type"`
	Params map[string]any `mapstructure:"params"`
}

// Event types
const (
	EventCompleted = "job.completed"
	EventFailed    = "job.failed"
	EventCancelled = "job.cancelled"
)

// Event describes a job that reached a terminal status
type Event struct {
	Type        string    `json:"type"`
	JobID       string    `json:"job_id"`
	JobType     string    `json:"job_type"`
	RunIDs      []string  `json:"run_ids,omitempty"`
	Commodity   string    `json:"commodity,omitempty"`
	Summary     string    `json:"summary,omitempty"`
	TotalReturn *float64  `json:"total_return,omitempty"`
	ErrorCode   string    `json:"error_code,omitempty"`
	FinishedAt  time.Time `json:"finished_at"`
}

// Notifier delivers job events
type Notifier interface {
	// Name returns the unique identifier for this notifier
	Name() string

	// Init initializes the notifier with configuration
	Init(cfg Config) error

	// Send delivers one event
	Send(ctx context.Context, ev Event) error
}
