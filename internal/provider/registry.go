package provider

import (
	"fmt"
	"sort"
	"sync"
)

// ---------------------------------------------------------------------------
// Registry
// ---------------------------------------------------------------------------

// Registry is a thread-safe store of dialects keyed by Kind. Dialects
// self-register at init() time and the executor resolves them from the
// provider named in the ModelConfig.
type Registry struct {
	mu       sync.RWMutex
	dialects map[Kind]Dialect
}

// globalRegistry is the package-level registry used by the convenience
// functions Register / Lookup / Names.
var globalRegistry = NewRegistry()

// NewRegistry creates an empty Registry. Useful for testing.
func NewRegistry() *Registry {
	return &Registry{
		dialects: make(map[Kind]Dialect),
	}
}

// Register adds a dialect under its Kind. It panics if the kind is already
// registered, preventing silent overwrites.
func (r *Registry) Register(d Dialect) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.dialects[d.Kind()]; exists {
		panic(fmt.Sprintf("provider: dialect already registered for %q", d.Kind()))
	}
	r.dialects[d.Kind()] = d
}

// Lookup returns the dialect for a provider kind.
func (r *Registry) Lookup(kind Kind) (Dialect, error) {
	r.mu.RLock()
	d, exists := r.dialects[kind]
	r.mu.RUnlock()

	if !exists {
		return nil, &ProviderError{
			Code:    ErrCodeInvalidConfig,
			Message: fmt.Sprintf("unknown provider %q (registered: %v)", kind, r.Names()),
		}
	}
	return d, nil
}

// Names returns a sorted list of registered provider names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.dialects))
	for k := range r.dialects {
		names = append(names, string(k))
	}
	sort.Strings(names)
	return names
}

// ---------------------------------------------------------------------------
// Package-level convenience functions (delegate to globalRegistry)
// ---------------------------------------------------------------------------

// Register adds a dialect to the global registry.
func Register(d Dialect) {
	globalRegistry.Register(d)
}

// Lookup resolves a dialect from the global registry.
func Lookup(kind Kind) (Dialect, error) {
	return globalRegistry.Lookup(kind)
}

// Names returns all registered provider names from the global registry.
func Names() []string {
	return globalRegistry.Names()
}
