// Package graph provides a lazy, path-addressed object graph over a
// document store.
//
// A [Database] hands out [Collection]s; collections hand out [Document]s;
// documents hand out nested documents for nested records. Every node has a
// canonical path ("database/collection/id/field/...") and the [PathCache]
// keeps at most one live document per path, so navigating twice to the same
// place yields the same *Document:
//
//	db, err := graph.Open(ctx, graph.Config{URL: "sqlite:///data/arbor.db"})
//	users, _ := db.Collection("users")
//	ada, _ := users.Document(ctx, "1")
//	city, _ := ada.Get(ctx, "address.city")
//
// # Materialization
//
// Documents load lazily from the store. Reading a key that does not exist
// yields a virtual placeholder document instead of an error; setting a field
// on it creates the record. Writes go straight to the store and the cached
// nodes they touch are reloaded in place, keeping their identity.
//
// # Defaults
//
// The "config" collection falls back to a static, read-only "defaults"
// collection built from YAML (see package defaults). A config member that
// is missing from the store is copied from the defaults on first read and
// persisted.
//
// # Projections
//
// [Document.Project] returns a view constrained to a [Type]. With
// ViewOptions.Exception a missing key fails with [ErrNotFound] and a
// mistyped one with [ErrTypeMismatch]; with Create or Rewrite the default is
// written back. Without options reads stay lenient and return raw values.
//
// # References
//
// Assigning a collection member to a field stores a reference
// ({"$ref": collection, "$id": id}). Reading the field resolves it to the
// referenced document.
//
// # Concurrency
//
// The path cache and collection registry are safe for concurrent use, and
// concurrent first reads of one member are collapsed into one store read.
// Writes to the same path from several goroutines are not ordered; callers
// that need that must serialize them.
//
// # Errors
//
//   - [ErrNotFound] - strict read of a missing key
//   - [ErrReadOnly] - write to a protected or static node, the root, or an id
//   - [ErrTypeMismatch] - value does not satisfy a type constraint
//   - [ErrInvalidValue] - unusable key or value
//   - [ErrConfigurationMissing] - required defaults entry absent
//   - [ErrUnsupportedComparison] - Equal with something other than nil or a document
package graph
