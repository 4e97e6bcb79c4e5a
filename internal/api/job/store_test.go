package job

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/newthinker/enercast/internal/core"
)

func TestStore_CreateAndGet(t *testing.T) {
	store := NewStore(100, time.Hour)

	job := store.Create("backtest", nil)
	if _, err := uuid.Parse(job.ID); err != nil {
		t.Errorf("expected uuid job ID, got %q", job.ID)
	}
	if job.Status != StatusPending {
		t.Errorf("expected pending, got %s", job.Status)
	}

	retrieved, err := store.Get(job.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if retrieved.ID != job.ID {
		t.Error("IDs don't match")
	}
}

func TestStore_Update(t *testing.T) {
	store := NewStore(100, time.Hour)
	job := store.Create("backtest", nil)

	err := store.Update(job.ID, func(j *Job) {
		j.Status = StatusRunning
		j.Progress = 50
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	retrieved, _ := store.Get(job.ID)
	if retrieved.Status != StatusRunning {
		t.Errorf("expected running, got %s", retrieved.Status)
	}
	if retrieved.Progress != 50 {
		t.Errorf("expected 50, got %d", retrieved.Progress)
	}
}

func TestStore_FinishedJobsAreFrozen(t *testing.T) {
	store := NewStore(100, time.Hour)
	job := store.Create("backtest", nil)

	store.Update(job.ID, func(j *Job) { j.Status = StatusComplete })
	store.Update(job.ID, func(j *Job) { j.Status = StatusFailed })

	retrieved, _ := store.Get(job.ID)
	if retrieved.Status != StatusComplete {
		t.Errorf("expected complete, got %s", retrieved.Status)
	}
}

func TestStore_Cancel(t *testing.T) {
	store := NewStore(100, time.Hour)
	called := false
	job := store.Create("backtest", func() { called = true })

	if err := store.Cancel(job.ID); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if !called {
		t.Error("expected cancel func to be invoked")
	}

	retrieved, _ := store.Get(job.ID)
	if retrieved.Status != StatusCancelled {
		t.Errorf("expected cancelled, got %s", retrieved.Status)
	}
	if store.Active("backtest") != 0 {
		t.Error("cancelled job should not be active")
	}
}

func TestStore_MaxSize(t *testing.T) {
	store := NewStore(2, time.Hour)

	job1 := store.Create("backtest", nil)
	store.Create("backtest", nil)
	store.Create("backtest", nil) // Should evict job1

	_, err := store.Get(job1.ID)
	if err == nil {
		t.Error("expected job1 to be evicted")
	}
}

func TestStore_PrunesExpired(t *testing.T) {
	store := NewStore(100, time.Hour)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	done := store.Create("backtest", nil)
	store.Update(done.ID, func(j *Job) { j.Status = StatusComplete })
	running := store.Create("backtest", nil)

	now = now.Add(2 * time.Hour)
	store.Create("compare", nil)

	if _, err := store.Get(done.ID); err == nil {
		t.Error("expected finished job to be pruned")
	}
	if _, err := store.Get(running.ID); err != nil {
		t.Error("unfinished job must survive pruning")
	}
}

func TestStore_NotFound(t *testing.T) {
	store := NewStore(100, time.Hour)

	_, err := store.Get("nonexistent")
	if !errors.Is(err, core.ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
	if err := store.Cancel("nonexistent"); !errors.Is(err, core.ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

func TestStore_List(t *testing.T) {
	store := NewStore(100, time.Hour)
	store.Create("backtest", nil)
	store.Create("compare", nil)

	jobs := store.List()
	if len(jobs) != 2 {
		t.Errorf("expected 2 jobs, got %d", len(jobs))
	}
	if store.Active("compare") != 1 {
		t.Errorf("expected 1 active compare job, got %d", store.Active("compare"))
	}
}
