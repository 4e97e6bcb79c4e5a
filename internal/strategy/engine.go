package strategy

import (
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Engine holds named candidate strategies for comparison runs
type Engine struct {
	mu         sync.RWMutex
	strategies map[string]*Generator
	logger     *zap.Logger
}

// NewEngine creates a new strategy engine
func NewEngine(logger ...*zap.Logger) *Engine {
	var l *zap.Logger
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	} else {
		l = zap.NewNop()
	}
	return &Engine{
		strategies: make(map[string]*Generator),
		logger:     l,
	}
}

// Register adds a generator under name, replacing any previous one
func (e *Engine) Register(name string, g *Generator) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.strategies[name] = g
	e.logger.Debug("strategy registered", zap.String("name", name), zap.String("spec", g.Name()))
}

// RegisterConfig builds a generator from config values and registers it
func (e *Engine) RegisterConfig(name, kind string, params map[string]any) error {
	g, err := NewFromConfig(kind, params)
	if err != nil {
		e.logger.Warn("invalid strategy config",
			zap.String("name", name),
			zap.String("kind", kind),
			zap.Error(err),
		)
		return err
	}
	e.Register(name, g)
	return nil
}

// Get retrieves a generator by name
func (e *Engine) Get(name string) (*Generator, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	g, ok := e.strategies[name]
	return g, ok
}

// Names returns registered names in sorted order
func (e *Engine) Names() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	names := make([]string, 0, len(e.strategies))
	for name := range e.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered strategies
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.strategies)
}
