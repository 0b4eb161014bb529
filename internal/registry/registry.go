// Package registry maps operation names and titles to operation kinds.
//
// Name is the persistence identity used by serialized templates. Title is
// the display identity used by listings and editors. The two indexes are
// independent: registering a kind overwrites both its name and title
// entries, last write wins.
package registry

import (
	"sort"
	"sync"

	"github.com/leapstack-labs/datarush/internal/operations"
	"github.com/leapstack-labs/datarush/pkg/core"
)

// Registry holds operation kinds indexed by name and by title.
type Registry struct {
	mu sync.RWMutex

	// byName maps persistence names to kinds: "sort" → Sort
	byName map[string]core.Kind

	// byTitle maps display titles to kinds: "Sort Table" → Sort
	byTitle map[string]core.Kind
}

// New creates a registry holding the given kinds and nothing else.
func New(kinds ...core.Kind) *Registry {
	r := &Registry{
		byName:  make(map[string]core.Kind),
		byTitle: make(map[string]core.Kind),
	}
	r.Register(kinds...)
	return r
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the process-wide registry, populated with the built-in
// operations on first use. Custom kinds are added with Register.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = New(operations.Builtins()...)
	})
	return defaultRegistry
}

// WithBuiltins returns a fresh registry holding the built-in operations plus
// the given kinds. Tests and embedders use it instead of mutating Default.
func WithBuiltins(kinds ...core.Kind) *Registry {
	r := New(operations.Builtins()...)
	r.Register(kinds...)
	return r
}

// Register adds kinds to both indexes, overwriting existing entries.
func (r *Registry) Register(kinds ...core.Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, k := range kinds {
		r.byName[k.Name] = k
		r.byTitle[k.Title] = k
	}
}

// ByName looks up a kind by its persistence name.
func (r *Registry) ByName(name string) (core.Kind, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	k, ok := r.byName[name]
	if !ok {
		return core.Kind{}, &core.UnknownOperationError{Key: name, Index: "name"}
	}
	return k, nil
}

// ByTitle looks up a kind by its display title.
func (r *Registry) ByTitle(title string) (core.Kind, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	k, ok := r.byTitle[title]
	if !ok {
		return core.Kind{}, &core.UnknownOperationError{Key: title, Index: "title"}
	}
	return k, nil
}

// List returns the kinds of the name index, sorted by category then title.
func (r *Registry) List() []core.Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]core.Kind, 0, len(r.byName))
	for _, k := range r.byName {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool {
		if ci, cj := categoryRank(kinds[i].Category), categoryRank(kinds[j].Category); ci != cj {
			return ci < cj
		}
		return kinds[i].Title < kinds[j].Title
	})
	return kinds
}

// Names returns all registered names (sorted).
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered names.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}

func categoryRank(c core.Category) int {
	switch c {
	case core.CategorySource:
		return 0
	case core.CategoryTransformation:
		return 1
	case core.CategorySink:
		return 2
	default:
		return 3
	}
}
