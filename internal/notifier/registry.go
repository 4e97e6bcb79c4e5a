package notifier

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Registry fans job events out to named notifiers
type Registry struct {
	mu        sync.RWMutex
	notifiers map[string]Notifier
}

func NewRegistry() *Registry {
	return &Registry{
		notifiers: make(map[string]Notifier),
	}
}

// Register adds n under n.Name(). Names must be unique.
func (r *Registry) Register(n Notifier) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := n.Name()
	if _, exists := r.notifiers[name]; exists {
		return fmt.Errorf("notifier %s already registered", name)
	}
	r.notifiers[name] = n
	return nil
}

func (r *Registry) Get(name string) (Notifier, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, exists := r.notifiers[name]
	if !exists {
		return nil, fmt.Errorf("notifier %s not found", name)
	}
	return n, nil
}

// Names returns registered names in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.notifiers))
	for name := range r.notifiers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.notifiers)
}

// Notify sends ev to every notifier concurrently and returns failures keyed
// by name. A failing or slow notifier does not affect delivery to the
// others; ctx bounds them all.
func (r *Registry) Notify(ctx context.Context, ev Event) map[string]error {
	r.mu.RLock()
	targets := make(map[string]Notifier, len(r.notifiers))
	for name, n := range r.notifiers {
		targets[name] = n
	}
	r.mu.RUnlock()

	var (
		mu   sync.Mutex
		errs = make(map[string]error)
		g    errgroup.Group
	)
	for name, n := range targets {
		g.Go(func() error {
			if err := n.Send(ctx, ev); err != nil {
				mu.Lock()
				errs[name] = err
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errs
}
