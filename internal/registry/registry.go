// Package registry maps configured method names to strategy implementations.
package registry

import (
	"fmt"
	"sync"
)

// Registry is a name → strategy mapping for one stage.
// Names() preserves registration order.
type Registry[T any] struct {
	mu    sync.RWMutex
	items map[string]T
	order []string
}

// New creates an empty registry
func New[T any]() *Registry[T] {
	return &Registry[T]{items: make(map[string]T)}
}

// Register adds a strategy under name. Names are unique.
func (r *Registry[T]) Register(name string, strategy T) error {
	if name == "" {
		return fmt.Errorf("registry: empty strategy name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[name]; exists {
		return fmt.Errorf("registry: strategy %q already registered", name)
	}
	r.items[name] = strategy
	r.order = append(r.order, name)
	return nil
}

// MustRegister is Register that panics on error; for init-time wiring
func (r *Registry[T]) MustRegister(name string, strategy T) {
	if err := r.Register(name, strategy); err != nil {
		panic(err)
	}
}

// Lookup resolves a strategy by name
func (r *Registry[T]) Lookup(name string) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.items[name]
	return s, ok
}

// Has reports whether name is registered
func (r *Registry[T]) Has(name string) bool {
	_, ok := r.Lookup(name)
	return ok
}

// Names returns registered names in registration order
func (r *Registry[T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Len returns the number of registered strategies
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
