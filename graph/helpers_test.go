package graph_test

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jacentio/arbor/graph"
	"github.com/jacentio/arbor/store"
)

// openTest opens a graph over a fresh memory store named "test".
func openTest(t *testing.T, tree map[string]any) (*graph.Database, *store.MemoryStore) {
	t.Helper()
	mem := store.NewMemoryStore("test")
	db, err := graph.Open(context.Background(), graph.Config{Adapter: mem, Defaults: tree})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mem
}

// seedUsers stores the member "1" in users and returns its document.
func seedUsers(t *testing.T, db *graph.Database) (*graph.Collection, *graph.Document) {
	t.Helper()
	ctx := context.Background()
	users, err := db.Collection("users")
	require.NoError(t, err)
	require.NoError(t, users.Set(ctx, "1", map[string]any{
		"name":    "ada",
		"age":     36,
		"address": map[string]any{"city": "London", "street": "Baker St"},
	}))
	doc, err := users.Document(ctx, "1")
	require.NoError(t, err)
	return users, doc
}

// countingStore counts writes going through the collections it hands out.
type countingStore struct {
	store.Database
	writes atomic.Int64
	reads  atomic.Int64
}

func (s *countingStore) Collection(name string) store.Collection {
	return &countingCollection{Collection: s.Database.Collection(name), parent: s}
}

type countingCollection struct {
	store.Collection
	parent *countingStore
}

func (c *countingCollection) FindOne(ctx context.Context, id string) (store.Record, error) {
	c.parent.reads.Add(1)
	return c.Collection.FindOne(ctx, id)
}

func (c *countingCollection) UpdateOne(ctx context.Context, id string, patch store.Record) error {
	c.parent.writes.Add(1)
	return c.Collection.UpdateOne(ctx, id, patch)
}
