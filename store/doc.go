// Package store provides the document store adapters behind the arbor graph.
//
// A backend is a [Database] of named [Collection]s holding schemaless
// [Record]s keyed by string id. The graph package only ever talks to these
// two interfaces, so any backend can sit underneath it.
//
// # Backends
//
//   - [MemoryStore] - process-local maps, for tests and ephemeral graphs
//   - [SqliteStore] - one SQLite table, msgpack-encoded documents
//   - [BoltStore] - one bbolt bucket per collection, msgpack-encoded documents
//   - [DynamoStore] - one DynamoDB table, sharded partitions, optimistic locking
//
// [Open] picks a backend from a [Descriptor]:
//
//	d, _ := store.ParseDescriptor("dynamodb://localhost:8000/arbor?create=true")
//	db, err := store.Open(ctx, d)
//
// # Records
//
// Every backend returns records in the same normalized form (see [Normalize]):
// integers are int64, floats float64, nested documents map[string]any and
// lists []any. [Collection.UpdateOne] sets fields by dotted path, so writing
// one nested field never clobbers its siblings:
//
//	users.UpdateOne(ctx, "1", store.Record{"address.city": "Paris"})
//
// # DynamoDB configuration
//
// Use [DefaultDynamoConfig] for small datasets (NumShards=1, single queries).
// Increase NumShards for higher write throughput:
//
//	cfg := store.DefaultDynamoConfig()
//	cfg.NumShards = 16 // 16,000 writes/sec per collection
//
// Deletes are soft: the item gets a TTL of now and is hidden from reads until
// DynamoDB expires it.
//
// # Errors
//
//   - [ErrNotFound] - document doesn't exist or is deleted
//   - [ErrConcurrentModification] - optimistic lock failed after retries
//   - [ErrInvalidID] - empty document id
//   - [ErrInvalidDescriptor] - unparseable connection string
//   - [ErrUnknownScheme] - no backend for the descriptor scheme
//   - [ErrClosed] - backend used after Close
package store
