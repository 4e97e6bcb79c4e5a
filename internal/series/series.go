// Package series supplies historical price series to the backtester.
package series

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/newthinker/enercast/internal/core"
)

// Provider defines the interface for fetching a historical price series
type Provider interface {
	FetchSeries(ctx context.Context, commodity core.Commodity, from, to time.Time) ([]core.PricePoint, error)
}

// Validate checks that points are strictly increasing in time and carry
// positive prices.
func Validate(points []core.PricePoint) error {
	for i, p := range points {
		if !p.IsValid() {
			return core.WrapError(core.ErrSeriesInvalid,
				fmt.Errorf("point %d at %s has price %v", i, p.Time.Format(time.RFC3339), p.Price))
		}
		if i > 0 && !p.Time.After(points[i-1].Time) {
			return core.WrapError(core.ErrSeriesInvalid,
				fmt.Errorf("point %d at %s is not after %s", i,
					p.Time.Format(time.RFC3339), points[i-1].Time.Format(time.RFC3339)))
		}
	}
	return nil
}

// Slice returns the points with from <= Time <= to. A zero bound is open.
// The input must be sorted; the result aliases it.
func Slice(points []core.PricePoint, from, to time.Time) []core.PricePoint {
	start := 0
	if !from.IsZero() {
		start = sort.Search(len(points), func(i int) bool { return !points[i].Time.Before(from) })
	}
	end := len(points)
	if !to.IsZero() {
		end = sort.Search(len(points), func(i int) bool { return points[i].Time.After(to) })
	}
	if start >= end {
		return nil
	}
	return points[start:end]
}

// Memory is an in-memory Provider keyed by commodity.
type Memory struct {
	mu     sync.RWMutex
	series map[core.Commodity][]core.PricePoint
}

// NewMemory creates an empty in-memory provider.
func NewMemory() *Memory {
	return &Memory{series: make(map[core.Commodity][]core.PricePoint)}
}

// Put stores a validated copy of points for commodity.
func (m *Memory) Put(commodity core.Commodity, points []core.PricePoint) error {
	if err := Validate(points); err != nil {
		return err
	}
	cp := make([]core.PricePoint, len(points))
	copy(cp, points)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.series[commodity] = cp
	return nil
}

// FetchSeries returns a copy of the stored range.
func (m *Memory) FetchSeries(ctx context.Context, commodity core.Commodity, from, to time.Time) ([]core.PricePoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	points, ok := m.series[commodity]
	if !ok {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("commodity %q", commodity))
	}
	sub := Slice(points, from, to)
	out := make([]core.PricePoint, len(sub))
	copy(out, sub)
	return out, nil
}
