package store

import "errors"

var (
	// ErrNotFound is returned when a document doesn't exist or is deleted (has TTL <= now).
	ErrNotFound = errors.New("arbor: document not found")

	// ErrConcurrentModification is returned when optimistic lock fails (version mismatch).
	ErrConcurrentModification = errors.New("arbor: document was modified concurrently")

	// ErrInvalidID is returned for an empty document id or collection name.
	ErrInvalidID = errors.New("arbor: invalid document id")

	// ErrInvalidDescriptor is returned when a connection descriptor cannot be parsed.
	ErrInvalidDescriptor = errors.New("arbor: invalid connection descriptor")

	// ErrUnknownScheme is returned when no adapter serves the descriptor scheme.
	ErrUnknownScheme = errors.New("arbor: unknown store scheme")

	// ErrClosed is returned by adapters used after Close.
	ErrClosed = errors.New("arbor: store is closed")
)
