package store

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps every collection in memory. Data is lost on Close.
// Safe for concurrent use.
type MemoryStore struct {
	mu          sync.RWMutex
	name        string
	collections map[string]map[string]Record
	closed      bool
}

// NewMemoryStore creates an empty in-memory database.
func NewMemoryStore(name string) *MemoryStore {
	return &MemoryStore{
		name:        name,
		collections: make(map[string]map[string]Record),
	}
}

// Name returns the database name.
func (m *MemoryStore) Name() string { return m.name }

// Collection returns a handle on the named collection.
func (m *MemoryStore) Collection(name string) Collection {
	return &memoryCollection{db: m, name: name}
}

// CollectionNames returns the names of collections holding at least one document.
func (m *MemoryStore) CollectionNames(_ context.Context, exclude ...string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	var names []string
	for name, docs := range m.collections {
		if len(docs) > 0 && !contains(exclude, name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Close drops all data.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collections = nil
	m.closed = true
	return nil
}

type memoryCollection struct {
	db   *MemoryStore
	name string
}

func (c *memoryCollection) Name() string { return c.name }

func (c *memoryCollection) FindOne(_ context.Context, id string) (Record, error) {
	c.db.mu.RLock()
	defer c.db.mu.RUnlock()
	if c.db.closed {
		return nil, ErrClosed
	}
	doc, ok := c.db.collections[c.name][id]
	if !ok {
		return nil, ErrNotFound
	}
	return Clone(doc), nil
}

func (c *memoryCollection) Find(_ context.Context, filter Filter) ([]string, error) {
	c.db.mu.RLock()
	defer c.db.mu.RUnlock()
	if c.db.closed {
		return nil, ErrClosed
	}
	ids := []string{}
	for id, doc := range c.db.collections[c.name] {
		if Match(doc, filter) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (c *memoryCollection) UpdateOne(_ context.Context, id string, patch Record) error {
	if id == "" {
		return ErrInvalidID
	}
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	if c.db.closed {
		return ErrClosed
	}
	coll, ok := c.db.collections[c.name]
	if !ok {
		coll = make(map[string]Record)
		c.db.collections[c.name] = coll
	}
	coll[id] = Apply(coll[id], patch)
	return nil
}

func (c *memoryCollection) DeleteOne(_ context.Context, id string) error {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	if c.db.closed {
		return ErrClosed
	}
	delete(c.db.collections[c.name], id)
	return nil
}

func (c *memoryCollection) DistinctIDs(ctx context.Context) ([]string, error) {
	return c.Find(ctx, nil)
}

func (c *memoryCollection) Drop(_ context.Context) error {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	if c.db.closed {
		return ErrClosed
	}
	delete(c.db.collections, c.name)
	return nil
}

func contains(list []string, s string) bool {
	for _, e := range list {
		if e == s {
			return true
		}
	}
	return false
}
