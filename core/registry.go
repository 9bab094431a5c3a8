package core

import (
	"sort"
	"sync"
)

// ── Registry ──────────────────────────────────────────────────────────────────

// DefaultRegistry is a thread-safe implementation of Registry.
type DefaultRegistry struct {
	mu      sync.RWMutex
	engines map[string]Engine
}

// NewRegistry returns an empty DefaultRegistry.
func NewRegistry() *DefaultRegistry {
	return &DefaultRegistry{engines: make(map[string]Engine)}
}

// Register adds e under e.Name(), replacing any engine with the same name.
func (r *DefaultRegistry) Register(e Engine) {
	r.mu.Lock()
	r.engines[e.Name()] = e
	r.mu.Unlock()
}

func (r *DefaultRegistry) Engine(name string) (Engine, bool) {
	r.mu.RLock()
	e, ok := r.engines[name]
	r.mu.RUnlock()
	return e, ok
}

// Names returns the registered backend names in sorted order.
func (r *DefaultRegistry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.engines))
	for n := range r.engines {
		names = append(names, n)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}
