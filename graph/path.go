package graph

import (
	"fmt"
	"strings"
)

// Separator joins path segments.
const Separator = "/"

// Wire keys of the stored encoding. Keys beginning with '$' are reserved.
const (
	refCollectionKey = "$ref"
	refIDKey         = "$id"
	scalarValueKey   = "$value"
)

// staticRoot prefixes the paths of store-less collections.
const staticRoot = "static"

func joinPath(parts ...string) string {
	return strings.Join(parts, Separator)
}

// isIDKey reports whether key addresses the node identifier.
func isIDKey(key string) bool {
	return key == "id" || key == "_id"
}

// isReservedKey reports whether key is used by the graph itself and never
// appears as a field.
func isReservedKey(key string) bool {
	return isIDKey(key) || strings.HasPrefix(key, "$")
}

// checkKey validates a single path segment coming from the caller.
func checkKey(key string) error {
	switch {
	case key == "":
		return fmt.Errorf("%w: empty key", ErrInvalidValue)
	case strings.ContainsAny(key, Separator+"."):
		return fmt.Errorf("%w: key %q contains a path separator", ErrInvalidValue, key)
	case strings.HasPrefix(key, "$"):
		return fmt.Errorf("%w: key %q is reserved", ErrInvalidValue, key)
	}
	return nil
}

// checkFieldKey validates a segment that will be written as a field name.
func checkFieldKey(key string) error {
	if isIDKey(key) {
		return fmt.Errorf("%w: %q is the node identifier", ErrReadOnly, key)
	}
	return checkKey(key)
}

// splitDotted splits "a.b.c" into its segments.
func splitDotted(key string) []string {
	return strings.Split(key, ".")
}

// splitLookup splits on both '.' and '/'.
func splitLookup(key string) []string {
	return strings.FieldsFunc(key, func(r rune) bool { return r == '.' || r == '/' })
}
