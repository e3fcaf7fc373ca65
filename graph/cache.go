package graph

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// PathCache maps canonical paths to their live documents. There is at most
// one cached document per path.
//
// The map itself is safe for concurrent use. Mutations of the same logical
// path from several goroutines are not serialized; callers that need that
// must coordinate themselves.
type PathCache struct {
	mu      sync.Mutex
	nodes   map[string]*Document
	metrics *cacheMetrics
	logger  *slog.Logger
}

func newPathCache(logger *slog.Logger) *PathCache {
	return &PathCache{
		nodes:  make(map[string]*Document),
		logger: logger,
	}
}

// GetOrCreate returns the document cached at path, or builds one with
// factory. The new document is inserted unless debug is set. created reports
// whether factory ran.
//
// The document is inserted before the caller loads it, so loading may
// navigate back to it without building a second one.
func (c *PathCache) GetOrCreate(path string, debug bool, factory func() *Document) (doc *Document, created bool) {
	return c.getOrCreate(path, debug, true, factory)
}

// getOrCreate is GetOrCreate with hit and miss accounting optional. Reloads
// rebuilding their children pass counted=false.
func (c *PathCache) getOrCreate(path string, debug, counted bool, factory func() *Document) (*Document, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if doc, ok := c.nodes[path]; ok {
		if counted {
			c.metrics.recordHit()
		}
		return doc, false
	}
	if counted {
		c.metrics.recordMiss()
	}

	doc := factory()
	if debug {
		return doc, true
	}
	c.nodes[path] = doc
	c.metrics.recordInsert()
	c.metrics.updateSize(len(c.nodes))
	c.logger.Debug("path cached", "path", path)
	return doc, true
}

// Lookup returns the document cached at path.
func (c *PathCache) Lookup(path string) (*Document, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	doc, ok := c.nodes[path]
	if ok {
		c.metrics.recordHit()
	} else {
		c.metrics.recordMiss()
	}
	return doc, ok
}

// peek is Lookup without the hit and miss accounting, for the graph's own
// bookkeeping.
func (c *PathCache) peek(path string) (*Document, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	doc, ok := c.nodes[path]
	return doc, ok
}

// Invalidate removes the entry at path and reports whether there was one.
func (c *PathCache) Invalidate(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.nodes[path]; !ok {
		return false
	}
	delete(c.nodes, path)
	c.metrics.recordEvictions(1)
	c.metrics.updateSize(len(c.nodes))
	return true
}

// InvalidatePrefix removes the entry at path and every entry below it, and
// returns the removed documents.
func (c *PathCache) InvalidatePrefix(path string) []*Document {
	prefix := path + Separator

	c.mu.Lock()
	defer c.mu.Unlock()
	var evicted []*Document
	for p, doc := range c.nodes {
		if p == path || strings.HasPrefix(p, prefix) {
			delete(c.nodes, p)
			evicted = append(evicted, doc)
		}
	}
	if len(evicted) > 0 {
		c.metrics.recordEvictions(len(evicted))
		c.metrics.updateSize(len(c.nodes))
		c.logger.Debug("path evicted", "path", path, "count", len(evicted))
	}
	return evicted
}

// Reload re-materializes the document cached at path. It is a no-op when
// nothing is cached there.
func (c *PathCache) Reload(ctx context.Context, path string) error {
	c.mu.Lock()
	doc, ok := c.nodes[path]
	c.mu.Unlock()
	if !ok {
		return nil
	}
	c.metrics.recordReload()
	return doc.Reload(ctx)
}

// Children returns the cached documents exactly one segment below path,
// ordered by path.
func (c *PathCache) Children(path string) []*Document {
	prefix := path + Separator

	c.mu.Lock()
	var paths []string
	for p := range c.nodes {
		if rest, ok := strings.CutPrefix(p, prefix); ok && rest != "" && !strings.Contains(rest, Separator) {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)
	docs := make([]*Document, len(paths))
	for i, p := range paths {
		docs[i] = c.nodes[p]
	}
	c.mu.Unlock()
	return docs
}

// Len returns the number of cached documents.
func (c *PathCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.nodes)
}

// Paths returns every cached path, sorted.
func (c *PathCache) Paths() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	paths := make([]string, 0, len(c.nodes))
	for p := range c.nodes {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Clear drops every entry.
func (c *PathCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.nodes)
	c.nodes = make(map[string]*Document)
	c.metrics.recordEvictions(n)
	c.metrics.updateSize(0)
}
