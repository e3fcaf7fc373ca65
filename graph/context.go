package graph

import (
	"context"
	"log/slog"
)

// Context is the state shared by every node of one graph: the path cache,
// the collection registry and the logger. A Database owns one; a static
// collection built on its own gets a private one.
type Context struct {
	cache       *PathCache
	collections *Registry
	logger      *slog.Logger

	// open resolves collection names for references; nil when the graph has
	// no store behind it.
	open func(name string) (*Collection, error)
}

// NewContext creates an empty graph context. A nil logger means slog.Default().
func NewContext(logger *slog.Logger) *Context {
	if logger == nil {
		logger = slog.Default()
	}
	return &Context{
		cache:       newPathCache(logger),
		collections: NewRegistry(),
		logger:      logger,
	}
}

// Cache returns the path cache.
func (g *Context) Cache() *PathCache { return g.cache }

// Collections returns the collection registry.
func (g *Context) Collections() *Registry { return g.collections }

// Logger returns the logger nodes write to.
func (g *Context) Logger() *slog.Logger { return g.logger }

// resolve follows a reference. A reference into a collection the graph
// cannot reach is returned as is.
func (g *Context) resolve(ctx context.Context, ref Ref) (any, error) {
	c, ok := g.collections.Lookup(ref.Collection)
	if !ok {
		if g.open == nil {
			return ref, nil
		}
		var err error
		if c, err = g.open(ref.Collection); err != nil {
			return nil, err
		}
	}
	return c.Get(ctx, ref.ID)
}
