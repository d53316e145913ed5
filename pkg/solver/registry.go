package solver

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Backend solves problems.
type Backend interface {
	Name() string
	Solve(ctx context.Context, p *Problem, opts Options) (*Solution, error)
}

// DefaultBackend is the backend used when none is configured.
const DefaultBackend = "simplex"

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Backend)
)

// Register adds a backend to the registry.
// Called by backend implementations in their init() functions.
func Register(b Backend) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[b.Name()] = b
}

// Get retrieves a backend by name.
func Get(name string) (Backend, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	b, ok := registry[name]
	return b, ok
}

// Lookup returns the named backend, or the default one for an empty name.
func Lookup(name string) (Backend, error) {
	if name == "" {
		name = DefaultBackend
	}
	b, ok := Get(name)
	if !ok {
		return nil, &UnknownBackendError{Name: name, Available: List()}
	}
	return b, nil
}

// List returns all registered backend names (sorted).
func List() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UnknownBackendError is returned when an unknown backend is requested.
type UnknownBackendError struct {
	Name      string
	Available []string
}

func (e *UnknownBackendError) Error() string {
	return fmt.Sprintf("unknown solver backend %q\nAvailable backends: %v\nHint: Check solver.backend in leapopt.yaml", e.Name, e.Available)
}
