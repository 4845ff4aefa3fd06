package schema

import (
	"fmt"
	"sort"
	"sync"

	"github.com/dmitrijs2005/listbuffer/internal/common"
)

// Registry maps fully-qualified type names and list names to descriptors.
// It is populated at startup and read by every component that needs to
// resolve a queued command's type.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*Type
	byList map[string]*Type
}

func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*Type),
		byList: make(map[string]*Type),
	}
}

// Register validates t and adds it to the registry.
func (r *Registry) Register(t *Type) error {
	if err := t.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byName[t.Name]; ok {
		return fmt.Errorf("%w: %s", common.ErrDuplicateType, t.Name)
	}
	if other, ok := r.byList[t.List]; ok {
		return fmt.Errorf("%w: list %s already used by %s", common.ErrDuplicateType, t.List, other.Name)
	}

	r.byName[t.Name] = t
	r.byList[t.List] = t
	return nil
}

// MustRegister is Register that panics on error.
func (r *Registry) MustRegister(types ...*Type) *Registry {
	for _, t := range types {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
	return r
}

// Lookup returns the descriptor registered under the fully-qualified name.
func (r *Registry) Lookup(name string) (*Type, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", common.ErrUnknownType, name)
	}
	return t, nil
}

// ByList returns the descriptor stored in the named list.
func (r *Registry) ByList(list string) (*Type, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.byList[list]
	if !ok {
		return nil, fmt.Errorf("%w: list %s", common.ErrUnknownType, list)
	}
	return t, nil
}

// Types returns all descriptors ordered by name.
func (r *Registry) Types() []*Type {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Type, 0, len(r.byName))
	for _, t := range r.byName {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
