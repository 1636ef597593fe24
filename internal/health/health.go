// Package health aggregates readiness checks for server dependencies.
package health

import (
	"context"
	"sync"
)

// Status is the result of checking a single dependency.
type Status struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Detail  string `json:"detail,omitempty"`
}

// Checker probes one dependency.
type Checker func(ctx context.Context) Status

type namedChecker struct {
	name  string
	check Checker
}

// Registry holds named checkers and runs them on demand.
// Checkers run in registration order.
type Registry struct {
	mu       sync.RWMutex
	checkers []namedChecker
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a named checker.
func (r *Registry) Register(name string, check Checker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkers = append(r.checkers, namedChecker{name: name, check: check})
}

// CheckAll runs every registered checker and reports whether all passed,
// along with the per-dependency results.
func (r *Registry) CheckAll(ctx context.Context) (bool, []Status) {
	r.mu.RLock()
	checkers := make([]namedChecker, len(r.checkers))
	copy(checkers, r.checkers)
	r.mu.RUnlock()

	healthy := true
	statuses := make([]Status, 0, len(checkers))
	for _, nc := range checkers {
		st := nc.check(ctx)
		if st.Name == "" {
			st.Name = nc.name
		}
		if !st.Healthy {
			healthy = false
		}
		statuses = append(statuses, st)
	}
	return healthy, statuses
}
