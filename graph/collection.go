package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/jacentio/arbor/defaults"
	"github.com/jacentio/arbor/store"
)

// Collection is a named set of documents. A store-backed collection reads
// and writes through a store.Collection; a static one serves a fixed tree
// and is read-only.
type Collection struct {
	gctx     *Context
	name     string
	path     string
	adapter  store.Collection
	defaults *Collection

	// first reads of the same member are collapsed so a default is only
	// materialized once
	group singleflight.Group

	mu         sync.RWMutex
	source     store.Record // static collections only
	sourceFile string
	virtual    bool
	protected  bool
	static     bool
	debug      bool
}

func newCollection(gctx *Context, parent, name string, adapter store.Collection) *Collection {
	return &Collection{
		gctx:    gctx,
		name:    name,
		path:    joinPath(parent, name),
		adapter: adapter,
	}
}

// NewStaticCollection builds a read-only collection over tree. Top-level
// records become member documents, other top-level values scalar members.
// A nil gctx gets a private context.
func NewStaticCollection(gctx *Context, name string, tree map[string]any) *Collection {
	if gctx == nil {
		gctx = NewContext(nil)
	}
	c := newCollection(gctx, staticRoot, name, nil)
	c.source = store.Clone(tree)
	if c.source == nil {
		c.source = store.Record{}
	}
	c.static = true
	return c
}

// LoadStaticCollection builds a static collection from a YAML file. Reload
// re-reads the file.
func LoadStaticCollection(gctx *Context, name, file string) (*Collection, error) {
	tree, err := defaults.Load(file)
	if err != nil {
		return nil, err
	}
	c := NewStaticCollection(gctx, name, tree)
	c.sourceFile = file
	return c, nil
}

// Name returns the collection name.
func (c *Collection) Name() string { return c.name }

// Key returns the collection name.
func (c *Collection) Key() string { return c.name }

// Path returns the canonical path.
func (c *Collection) Path() string { return c.path }

func (c *Collection) Kind() NodeKind { return NodeCollection }

// Defaults returns the collection consulted for missing members.
func (c *Collection) Defaults() *Collection { return c.defaults }

// SetDefaults attaches a collection consulted for missing members.
func (c *Collection) SetDefaults(defaults *Collection) { c.defaults = defaults }

func (c *Collection) IsVirtual() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.virtual
}

func (c *Collection) IsProtected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.protected
}

func (c *Collection) IsStatic() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.static
}

func (c *Collection) IsDebug() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.debug
}

// Protect makes the collection and its cached members read-only. Members
// materialized later inherit it. It cannot be undone.
func (c *Collection) Protect() {
	c.mu.Lock()
	c.protected = true
	c.mu.Unlock()
	for _, doc := range c.gctx.cache.Children(c.path) {
		doc.Protect()
	}
}

// SetStatic marks members created from now on as static.
func (c *Collection) SetStatic(static bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.static = static
}

// SetDebug stops members created from now on from being cached.
func (c *Collection) SetDebug(debug bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.debug = debug
}

// Keys returns the member ids, sorted.
func (c *Collection) Keys(ctx context.Context) ([]string, error) {
	if c.adapter == nil {
		c.mu.RLock()
		defer c.mu.RUnlock()
		return store.SortedKeys(c.source), nil
	}
	ids, err := c.adapter.DistinctIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("keys %s: %w", c.path, err)
	}
	return ids, nil
}

// Len returns the number of members.
func (c *Collection) Len(ctx context.Context) (int, error) {
	keys, err := c.Keys(ctx)
	return len(keys), err
}

// Get returns the member under id: a *Document, or the bare value of a
// scalar member. A missing member is taken from the attached defaults and
// persisted; failing that a virtual placeholder is returned. Ids containing
// '.' or '/' walk into the member (see Lookup).
func (c *Collection) Get(ctx context.Context, id string) (any, error) {
	if strings.ContainsAny(id, "./") {
		return c.Lookup(ctx, id)
	}
	if err := checkKey(id); err != nil {
		return nil, err
	}
	if doc, ok := c.gctx.cache.peek(c.memberPath(id)); ok && !doc.IsVirtual() {
		c.gctx.cache.metrics.recordHit()
		return doc, nil
	}
	v, err, _ := c.group.Do(id, func() (any, error) {
		return c.materialize(ctx, id)
	})
	return v, err
}

// Document is Get for members that must be documents.
func (c *Collection) Document(ctx context.Context, id string) (*Document, error) {
	v, err := c.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	doc, ok := v.(*Document)
	if !ok {
		return nil, fmt.Errorf("%w: %s is %T, not a document", ErrTypeMismatch, c.memberPath(id), v)
	}
	return doc, nil
}

// Lookup walks a '.' or '/' separated path: the first segment is the member
// id, the rest are fields.
func (c *Collection) Lookup(ctx context.Context, key string) (any, error) {
	segs := splitLookup(key)
	if len(segs) == 0 {
		return nil, fmt.Errorf("%w: empty key", ErrInvalidValue)
	}
	v, err := c.Get(ctx, segs[0])
	if err != nil {
		return nil, err
	}
	for i, seg := range segs[1:] {
		doc, ok := v.(*Document)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, joinPath(c.path, joinPath(segs[:i+2]...)))
		}
		if v, err = doc.Get(ctx, seg); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// Set writes a whole member. value must be a record or a document, whose
// fields are copied; each top-level field replaces the stored one. Ids
// containing '.' or '/' set a nested field instead.
func (c *Collection) Set(ctx context.Context, id string, value any) error {
	return c.SetPath(ctx, strings.ReplaceAll(id, Separator, "."), value, TypeAny)
}

// SetPath writes value at a dotted path whose first segment is the member
// id. Fields next to the written one are kept. The cached member is reloaded
// afterwards.
func (c *Collection) SetPath(ctx context.Context, dotted string, value any, t Type) error {
	if c.IsProtected() || c.adapter == nil {
		return fmt.Errorf("%w: %s", ErrReadOnly, c.path)
	}
	segs := splitDotted(dotted)
	if err := checkKey(segs[0]); err != nil {
		return err
	}
	for _, seg := range segs[1:] {
		if err := checkFieldKey(seg); err != nil {
			return fmt.Errorf("set %s: %w", joinPath(c.path, dotted), err)
		}
	}
	if !t.Accepts(value) {
		return fmt.Errorf("%w: %s wants %s, got %T", ErrTypeMismatch, joinPath(c.path, dotted), t, value)
	}

	var patch store.Record
	if len(segs) == 1 {
		rec, err := c.memberRecord(ctx, value)
		if err != nil {
			return fmt.Errorf("set %s: %w", c.memberPath(dotted), err)
		}
		patch = rec
	} else {
		enc, err := encodeValue(ctx, value)
		if err != nil {
			return fmt.Errorf("set %s: %w", joinPath(c.path, dotted), err)
		}
		patch = store.Record{strings.Join(segs[1:], "."): enc}
	}

	id := segs[0]
	if err := c.adapter.UpdateOne(ctx, id, patch); err != nil {
		return fmt.Errorf("set %s: %w", joinPath(c.path, dotted), err)
	}
	c.gctx.logger.Debug("store write", "path", joinPath(c.path, dotted))

	c.mu.Lock()
	c.virtual = false
	c.mu.Unlock()
	return c.gctx.cache.Reload(ctx, c.memberPath(id))
}

// Find returns the member documents matching filter. Filter keys are dotted
// field paths; values may be documents or references.
func (c *Collection) Find(ctx context.Context, filter store.Filter) ([]*Document, error) {
	ids, err := c.findIDs(ctx, filter)
	if err != nil {
		return nil, err
	}
	docs := make([]*Document, 0, len(ids))
	for _, id := range ids {
		v, err := c.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if doc, ok := v.(*Document); ok {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

// FindOne returns the first matching document by id, or nil.
func (c *Collection) FindOne(ctx context.Context, filter store.Filter) (*Document, error) {
	docs, err := c.Find(ctx, filter)
	if err != nil || len(docs) == 0 {
		return nil, err
	}
	return docs[0], nil
}

// Delete drops the collection from the store, unregisters it and evicts its
// members. The collection turns virtual; writing to it recreates it.
func (c *Collection) Delete(ctx context.Context) error {
	if c.IsProtected() || c.adapter == nil {
		return fmt.Errorf("%w: %s", ErrReadOnly, c.path)
	}
	if err := c.adapter.Drop(ctx); err != nil {
		return fmt.Errorf("drop %s: %w", c.path, err)
	}
	c.gctx.collections.Remove(c)
	for _, doc := range c.gctx.cache.InvalidatePrefix(c.path) {
		doc.markVirtual()
	}
	c.mu.Lock()
	c.virtual = true
	c.mu.Unlock()
	c.gctx.logger.Info("collection dropped", "path", c.path)
	return nil
}

// Reload refreshes every cached member. A static collection loaded from a
// file re-reads it first.
func (c *Collection) Reload(ctx context.Context) error {
	c.mu.RLock()
	file := c.sourceFile
	c.mu.RUnlock()
	if file != "" {
		tree, err := defaults.Load(file)
		if err != nil {
			return fmt.Errorf("reload %s: %w", c.path, err)
		}
		c.mu.Lock()
		c.source = store.Clone(tree)
		c.mu.Unlock()
	}

	for _, doc := range c.gctx.cache.Children(c.path) {
		if err := doc.Reload(ctx); err != nil {
			return err
		}
	}
	return nil
}

// ToMap exports every member by id.
func (c *Collection) ToMap(ctx context.Context) (map[string]any, error) {
	ids, err := c.Keys(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(ids))
	for _, id := range ids {
		v, err := c.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if out[id], err = exportValue(ctx, v); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (c *Collection) String() string {
	var b strings.Builder
	if c.IsDebug() {
		b.WriteString("debug:")
	}
	b.WriteString(c.path)
	if c.IsStatic() {
		b.WriteString(" static")
	}
	if c.IsVirtual() {
		b.WriteString(" virtual")
	}
	if c.IsProtected() {
		b.WriteString(" protected")
	}
	return b.String()
}

func (c *Collection) memberPath(id string) string {
	return joinPath(c.path, id)
}

func (c *Collection) flags() docFlags {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return docFlags{
		protected: c.protected,
		static:    c.static,
		debug:     c.debug,
	}
}

// member returns the cached node for id, creating a virtual one.
func (c *Collection) member(id string) *Document {
	flags := c.flags()
	doc, _ := c.gctx.cache.GetOrCreate(c.memberPath(id), flags.debug, func() *Document {
		return newDocument(c, []string{id}, flags)
	})
	return doc
}

// fetch reads the record of member id. A static scalar member comes back in
// its stored {"$value": x} form.
func (c *Collection) fetch(ctx context.Context, id string) (store.Record, error) {
	if c.adapter == nil {
		c.mu.RLock()
		defer c.mu.RUnlock()
		v, ok := c.source[id]
		if !ok {
			return nil, store.ErrNotFound
		}
		if m, ok := v.(map[string]any); ok {
			return store.Clone(m), nil
		}
		return store.Record{scalarValueKey: store.Normalize(v)}, nil
	}
	rec, err := c.adapter.FindOne(ctx, id)
	c.gctx.logger.Debug("store read", "path", c.memberPath(id), "found", err == nil)
	return rec, err
}

func (c *Collection) materialize(ctx context.Context, id string) (any, error) {
	rec, err := c.fetch(ctx, id)
	if errors.Is(err, store.ErrNotFound) && c.defaults != nil {
		rec, err = c.fromDefaults(ctx, id)
	}
	switch {
	case errors.Is(err, store.ErrNotFound):
		return c.member(id), nil
	case err != nil:
		return nil, fmt.Errorf("get %s: %w", c.memberPath(id), err)
	}
	if v, ok := scalarMember(rec); ok {
		return v, nil
	}
	doc := c.member(id)
	doc.apply(rec)
	return doc, nil
}

// fromDefaults persists the default for a missing member and returns the
// record as stored. A scalar default is stored as {"$value": x} and returned
// without a second read.
func (c *Collection) fromDefaults(ctx context.Context, id string) (store.Record, error) {
	def, err := c.defaults.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	var rec store.Record
	switch v := def.(type) {
	case *Document:
		if v.IsVirtual() {
			return nil, store.ErrNotFound
		}
		if rec, err = v.ToMap(ctx); err != nil {
			return nil, err
		}
	default:
		rec = store.Record{scalarValueKey: v}
	}
	if c.adapter == nil {
		return rec, nil
	}

	if err := c.adapter.UpdateOne(ctx, id, rec); err != nil {
		return nil, fmt.Errorf("persist default: %w", err)
	}
	c.gctx.logger.Info("default materialized", "path", c.memberPath(id), "defaults", c.defaults.path)
	if _, scalar := scalarMember(rec); scalar {
		return rec, nil
	}
	return c.fetch(ctx, id)
}

// memberRecord converts a whole-member value into its stored record.
func (c *Collection) memberRecord(ctx context.Context, value any) (store.Record, error) {
	if doc, ok := value.(*Document); ok {
		return doc.ToMap(ctx)
	}
	enc, err := encodeValue(ctx, value)
	if err != nil {
		return nil, err
	}
	rec, ok := enc.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: members must be records, got %T", ErrInvalidValue, value)
	}
	if _, isRef := refFromRecord(rec); isRef {
		return nil, fmt.Errorf("%w: members must be records, got a reference", ErrInvalidValue)
	}
	return rec, nil
}

func (c *Collection) findIDs(ctx context.Context, filter store.Filter) ([]string, error) {
	encoded := make(store.Filter, len(filter))
	for k, v := range filter {
		enc, err := encodeValue(ctx, v)
		if err != nil {
			return nil, fmt.Errorf("filter %s: %w", k, err)
		}
		encoded[k] = enc
	}

	if c.adapter != nil {
		ids, err := c.adapter.Find(ctx, encoded)
		if err != nil {
			return nil, fmt.Errorf("find %s: %w", c.path, err)
		}
		return ids, nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	var ids []string
	for _, id := range store.SortedKeys(c.source) {
		if m, ok := c.source[id].(map[string]any); ok && store.Match(m, encoded) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// walk navigates from a member down through nested fields.
func (c *Collection) walk(ctx context.Context, segments []string) (*Document, error) {
	doc, err := c.Document(ctx, segments[0])
	if err != nil {
		return nil, err
	}
	for _, seg := range segments[1:] {
		if doc, err = doc.Child(ctx, seg); err != nil {
			return nil, err
		}
	}
	return doc, nil
}
