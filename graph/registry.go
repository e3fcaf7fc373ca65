package graph

import (
	"sort"
	"sync"
)

// Registry holds the collections opened on a database, by name.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*Collection
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*Collection),
	}
}

// Register adds a collection, replacing any previous one of the same name.
func (r *Registry) Register(c *Collection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName[c.Name()] = c
}

// Lookup returns the collection registered under name.
func (r *Registry) Lookup(name string) (*Collection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byName[name]
	return c, ok
}

// Remove unregisters c. A different collection registered under the same
// name is left alone.
func (r *Registry) Remove(c *Collection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.byName[c.Name()] != c {
		return false
	}
	delete(r.byName, c.Name())
	return true
}

// Names returns the registered collection names, sorted.
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

// Len returns the number of registered collections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}

// Clear unregisters everything.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName = make(map[string]*Collection)
}
