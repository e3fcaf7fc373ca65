package graph

import "errors"

var (
	// ErrNotFound is returned by strict reads of a key that does not exist.
	ErrNotFound = errors.New("arbor: key not found")

	// ErrReadOnly is returned when writing to a protected node, a static
	// collection, the database root or an identifier key.
	ErrReadOnly = errors.New("arbor: node is read-only")

	// ErrTypeMismatch is returned when a value does not satisfy a type constraint.
	ErrTypeMismatch = errors.New("arbor: type mismatch")

	// ErrInvalidValue is returned for keys or values the graph cannot store.
	ErrInvalidValue = errors.New("arbor: invalid value")

	// ErrConfigurationMissing is returned when a required defaults entry is absent.
	ErrConfigurationMissing = errors.New("arbor: configuration missing")

	// ErrUnsupportedComparison is returned when comparing a document to
	// something other than nil or another document.
	ErrUnsupportedComparison = errors.New("arbor: unsupported comparison")
)
