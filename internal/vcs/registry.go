package vcs

import (
	"fmt"
	"sort"
	"sync"
)

// Options carries every setting a source may need; each factory reads the
// fields it understands.
type Options struct {
	RepoPath string
	Revision string
	Paths    []string
	OldPath  string
	NewPath  string
}

// Factory creates a Source from options.
type Factory func(opts Options) (Source, error)

// Registry is a thread-safe store of source factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

var globalRegistry = NewRegistry()

func init() {
	Register("files", func(o Options) (Source, error) {
		if o.OldPath == "" || o.NewPath == "" {
			return nil, fmt.Errorf("vcs: files source needs an old and a new path")
		}
		return FilesSource{OldPath: o.OldPath, NewPath: o.NewPath}, nil
	})
	Register("commit", func(o Options) (Source, error) {
		return CommitSource{RepoPath: o.RepoPath, Revision: o.Revision, Paths: o.Paths}, nil
	})
	Register("worktree", func(o Options) (Source, error) {
		return WorktreeSource{RepoPath: o.RepoPath, Paths: o.Paths}, nil
	})
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a factory under the given name.
// It panics if the name is already registered.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		panic(fmt.Sprintf("vcs: factory already registered for %q", name))
	}
	r.factories[name] = f
}

// New creates a source by name.
func (r *Registry) New(name string, opts Options) (Source, error) {
	r.mu.RLock()
	f, exists := r.factories[name]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("vcs: unknown source %q (registered: %v)", name, r.Names())
	}
	return f(opts)
}

// Names returns a sorted list of registered source names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Register adds a factory to the global registry.
func Register(name string, f Factory) {
	globalRegistry.Register(name, f)
}

// New resolves a source by name from the global registry.
func New(name string, opts Options) (Source, error) {
	return globalRegistry.New(name, opts)
}

// Names returns all registered source names from the global registry.
func Names() []string {
	return globalRegistry.Names()
}
