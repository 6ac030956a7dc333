package core

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds the import profiles a service can run, keyed by kind.
type Registry struct {
	mu       sync.RWMutex
	profiles map[Kind]EntityImportProfile
}

// NewRegistry creates a registry holding profiles.
func NewRegistry(profiles ...EntityImportProfile) *Registry {
	r := &Registry{profiles: make(map[Kind]EntityImportProfile, len(profiles))}
	for _, p := range profiles {
		r.Register(p)
	}
	return r
}

// Register adds a profile.
// Panics if a profile for the same kind is already registered.
func (r *Registry) Register(p EntityImportProfile) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.profiles[p.Kind()]; exists {
		panic(fmt.Sprintf("import profile already registered: %s", p.Kind()))
	}
	r.profiles[p.Kind()] = p
}

// Get returns the profile for kind.
func (r *Registry) Get(kind Kind) (EntityImportProfile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[kind]
	return p, ok
}

// All returns every profile sorted by kind.
func (r *Registry) All() []EntityImportProfile {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]EntityImportProfile, 0, len(r.profiles))
	for _, p := range r.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Kind() < out[j].Kind()
	})
	return out
}

// Len returns the number of registered profiles.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.profiles)
}
