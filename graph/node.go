package graph

import (
	"context"
	"fmt"
)

// NodeKind tells the node types apart.
type NodeKind int

const (
	NodeDocument NodeKind = iota
	NodeCollection
	NodeDatabase
)

func (k NodeKind) String() string {
	switch k {
	case NodeDocument:
		return "document"
	case NodeCollection:
		return "collection"
	case NodeDatabase:
		return "database"
	}
	return fmt.Sprintf("NodeKind(%d)", int(k))
}

// Node is the navigation surface shared by documents, collections and the
// database root.
type Node interface {
	// Key is the last segment of the node's path.
	Key() string

	// Path is the canonical '/'-separated path of the node.
	Path() string

	Kind() NodeKind

	// Keys lists the child keys.
	Keys(ctx context.Context) ([]string, error)

	// Get returns the child value under key. Dotted keys walk nested nodes.
	Get(ctx context.Context, key string) (any, error)

	// Set writes the child value under key through to the store.
	Set(ctx context.Context, key string, value any) error

	// ToMap exports the node and everything below it.
	ToMap(ctx context.Context) (map[string]any, error)
}

var (
	_ Node = (*Document)(nil)
	_ Node = (*Collection)(nil)
	_ Node = (*Database)(nil)
)
