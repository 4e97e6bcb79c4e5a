package api

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/enercast/internal/api/job"
	"github.com/newthinker/enercast/internal/backtest"
	"github.com/newthinker/enercast/internal/config"
	"github.com/newthinker/enercast/internal/core"
	"github.com/newthinker/enercast/internal/notifier"
	"github.com/newthinker/enercast/internal/storage/archive"
)

const (
	defaultRunTimeout = 5 * time.Minute
	notifyTimeout     = 10 * time.Second
)

// Job types
const (
	JobBacktest = "backtest"
	JobCompare  = "compare"
)

// JobGauge receives the number of unfinished jobs per type.
type JobGauge interface {
	SetJobsActive(jobType string, count int)
}

// Runner executes submitted runs as background jobs. Reports, Gauge and
// Notifiers are optional.
type Runner struct {
	Jobs       *job.Store
	Backtester *backtest.Backtester
	Defaults   config.BacktestConfig
	Compare    config.CompareConfig
	Reports    *archive.Reports
	Gauge      JobGauge
	Notifiers  *notifier.Registry
	Logger     *zap.Logger
	Timeout    time.Duration
}

func (r *Runner) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

// submit registers a job and runs fn in the background under a timeout.
// The returned copy is taken before fn starts.
func (r *Runner) submit(jobType string, fn func(ctx context.Context) (any, error)) job.Job {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = defaultRunTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	j := r.Jobs.Create(jobType, cancel)
	r.updateGauge(jobType)

	go func() {
		defer cancel()
		defer r.updateGauge(jobType)

		r.Jobs.Update(j.ID, func(j *job.Job) {
			j.Status = job.StatusRunning
		})
		result, err := fn(ctx)
		r.finish(j.ID, jobType, result, err)
	}()

	return j
}

func (r *Runner) finish(id, jobType string, result any, err error) {
	log := r.logger().With(zap.String("job_id", id), zap.String("type", jobType))
	ev := notifier.Event{
		Type:       notifier.EventCompleted,
		JobID:      id,
		JobType:    jobType,
		FinishedAt: time.Now().UTC(),
	}

	if err != nil {
		status := job.StatusFailed
		ev.Type = notifier.EventFailed
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			status = job.StatusCancelled
			ev.Type = notifier.EventCancelled
		}
		coreErr := core.AsError(err)
		ev.ErrorCode = coreErr.Code
		log.Warn("job did not complete", zap.String("status", string(status)), zap.Error(err))
		r.Jobs.Update(id, func(j *job.Job) {
			j.Status = status
			j.Error = coreErr
		})
		r.notify(ev)
		return
	}

	log.Info("job complete")
	r.Jobs.Update(id, func(j *job.Job) {
		j.Status = job.StatusComplete
		j.Progress = 100
		j.Result = result
	})
	describe(&ev, result)
	r.notify(ev)
}

// describe fills the event from a finished job payload.
func describe(ev *notifier.Event, result any) {
	switch res := result.(type) {
	case BacktestResult:
		ev.RunIDs = []string{res.RunID}
		ev.Commodity = string(res.Commodity)
		ev.Summary = res.Model + " / " + res.Strategy
		ret := res.Metrics.TotalReturn
		ev.TotalReturn = &ret
	case CompareResult:
		for _, e := range res.Ranking {
			ev.RunIDs = append(ev.RunIDs, e.RunID)
		}
		if len(res.Ranking) > 0 {
			best := res.Ranking[0]
			ev.Summary = "best by " + res.RankBy + ": " + best.Name
			ret := best.Metrics.TotalReturn
			ev.TotalReturn = &ret
		}
		if len(res.Outcomes) > 0 && res.Outcomes[0].Result != nil {
			ev.Commodity = string(res.Outcomes[0].Result.Commodity)
		}
	}
}

func (r *Runner) notify(ev notifier.Event) {
	if r.Notifiers == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	for name, err := range r.Notifiers.Notify(ctx, ev) {
		r.logger().Warn("notification failed",
			zap.String("notifier", name),
			zap.String("job_id", ev.JobID),
			zap.Error(err),
		)
	}
}

func (r *Runner) updateGauge(jobType string) {
	if r.Gauge != nil {
		r.Gauge.SetJobsActive(jobType, r.Jobs.Active(jobType))
	}
}

// archive stores a finished result when reports are enabled. Archive
// failures are logged and do not fail the run.
func (r *Runner) archive(ctx context.Context, res *backtest.Result) string {
	if r.Reports == nil || res == nil {
		return ""
	}
	key, err := r.Reports.Save(ctx, res)
	if err != nil {
		r.logger().Error("archiving result failed", zap.String("run_id", res.RunID), zap.Error(err))
		return ""
	}
	return key
}
