package store

import "context"

// Record is a schemaless document: field name to value. Nested records are
// map[string]any values, lists are []any.
type Record = map[string]any

// Filter selects documents by equality on field values. Keys may be dotted
// paths into nested records ("address.city").
type Filter map[string]any

// Collection is the per-collection CRUD contract every backend implements.
type Collection interface {
	// Name returns the collection name.
	Name() string

	// FindOne returns the document stored under id, or ErrNotFound.
	FindOne(ctx context.Context, id string) (Record, error)

	// Find returns the ids of every document matching filter, sorted.
	// An empty filter matches everything.
	Find(ctx context.Context, filter Filter) ([]string, error)

	// UpdateOne applies patch to the document stored under id, creating it
	// when absent. Patch keys are dotted field paths; each value replaces what
	// is stored at its path and every other field is kept (see Apply).
	UpdateOne(ctx context.Context, id string, patch Record) error

	// DeleteOne removes the document. Deleting a missing document is not an error.
	DeleteOne(ctx context.Context, id string) error

	// DistinctIDs returns every document id in the collection, sorted.
	DistinctIDs(ctx context.Context) ([]string, error)

	// Drop removes the collection and all of its documents.
	Drop(ctx context.Context) error
}

// Database is a named set of collections.
type Database interface {
	// Name returns the database name.
	Name() string

	// Collection returns a handle on the named collection. Handles are cheap;
	// the collection comes into existence on first write.
	Collection(name string) Collection

	// CollectionNames returns the names of all collections holding data,
	// sorted, without the excluded names.
	CollectionNames(ctx context.Context, exclude ...string) ([]string, error)

	// Close releases the backend.
	Close() error
}
