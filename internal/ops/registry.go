// Package ops maintains the registry of wrappable operations and their
// sampling collaborators. Operation names map to a closed set of
// categories; configuration defaults and progress templates key off the
// category, never off name string-matching elsewhere in the pipeline.
package ops

import (
	"sort"
	"sync"

	"github.com/gambtho/container-assist/internal/sampling"
	"github.com/gambtho/container-assist/pkg/contracts"
	"github.com/gambtho/container-assist/pkg/models"
)

// Registration binds an operation to its optional sampling collaborators.
// Operations without a generator never sample, whatever their config says.
type Registration struct {
	Operation contracts.Operation
	Generator sampling.Generator[map[string]any]
	Scorer    sampling.Scorer[map[string]any]
}

// Registry is a thread-safe operation registry.
type Registry struct {
	mu  sync.RWMutex
	ops map[string]Registration
}

// NewRegistry creates an empty operation registry.
func NewRegistry() *Registry {
	return &Registry{ops: make(map[string]Registration)}
}

// Register adds or replaces an operation registration.
func (r *Registry) Register(reg Registration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops[reg.Operation.Name()] = reg
}

// Get returns the registration for an operation name.
func (r *Registry) Get(name string) (Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.ops[name]
	return reg, ok
}

// Names returns all registered operation names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.ops))
	for name := range r.ops {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CategoryOf maps an operation name to its registered category, or
// CategoryOps for unknown names. It satisfies config.Categorizer.
func (r *Registry) CategoryOf(name string) models.OperationCategory {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if reg, ok := r.ops[name]; ok {
		return reg.Operation.Category()
	}
	return models.CategoryOps
}
