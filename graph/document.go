package graph

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/jacentio/arbor/store"
)

// ViewOptions tune how a projection treats missing and mistyped values.
type ViewOptions struct {
	// Create persists the default when a key is missing.
	Create bool

	// Rewrite persists the default on every read, replacing the stored value.
	Rewrite bool

	// Exception makes missing keys fail with ErrNotFound and mistyped
	// values with ErrTypeMismatch.
	Exception bool

	// Default replaces the type's zero value as the default.
	Default any
}

// docData is the state a document shares with its projections.
type docData struct {
	mu        sync.RWMutex
	keys      []string
	fields    map[string]any // scalar, Ref or *Document
	virtual   bool
	protected bool
	static    bool
	debug     bool
}

type docFlags struct {
	protected bool
	static    bool
	debug     bool
}

// Document is a collection member or a record nested inside one.
//
// Every document reachable through navigation is cached by path, so two
// walks to the same path yield the same *Document. A document whose record
// does not exist (yet) is virtual: it has no fields, and writing to it
// creates the record.
type Document struct {
	gctx       *Context
	coll       *Collection
	segments   []string // member id, then field names
	path       string
	instanceID uuid.UUID
	data       *docData

	// Projection state; base is nil on the canonical node.
	base *Document
	typ  Type
	opts ViewOptions
}

func newDocument(coll *Collection, segments []string, flags docFlags) *Document {
	return &Document{
		gctx:       coll.gctx,
		coll:       coll,
		segments:   segments,
		path:       joinPath(coll.path, joinPath(segments...)),
		instanceID: uuid.New(),
		data: &docData{
			fields:    map[string]any{},
			virtual:   true,
			protected: flags.protected,
			static:    flags.static,
			debug:     flags.debug,
		},
	}
}

// Key returns the last path segment.
func (d *Document) Key() string { return d.segments[len(d.segments)-1] }

// Path returns the canonical path.
func (d *Document) Path() string { return d.path }

func (d *Document) Kind() NodeKind { return NodeDocument }

// RelativePath returns the dotted path from the owning collection, starting
// with the member id.
func (d *Document) RelativePath() string { return strings.Join(d.segments, ".") }

// Collection returns the owning collection.
func (d *Document) Collection() *Collection { return d.coll }

// InstanceID identifies this in-memory node; it changes when the path is
// evicted and navigated again.
func (d *Document) InstanceID() uuid.UUID { return d.instanceID }

// Ref returns a reference to the collection member this document belongs to.
func (d *Document) Ref() Ref {
	return Ref{Collection: d.coll.name, ID: d.segments[0]}
}

// Type returns the projection's type constraint; TypeAny on canonical nodes.
func (d *Document) Type() Type { return d.typ }

// IsView reports whether d is a projection.
func (d *Document) IsView() bool { return d.base != nil }

func (d *Document) IsVirtual() bool {
	d.data.mu.RLock()
	defer d.data.mu.RUnlock()
	return d.data.virtual
}

func (d *Document) IsProtected() bool {
	d.data.mu.RLock()
	defer d.data.mu.RUnlock()
	return d.data.protected
}

func (d *Document) IsStatic() bool {
	d.data.mu.RLock()
	defer d.data.mu.RUnlock()
	return d.data.static
}

func (d *Document) IsDebug() bool {
	d.data.mu.RLock()
	defer d.data.mu.RUnlock()
	return d.data.debug
}

// Keys returns the materialized field names in order.
func (d *Document) Keys(_ context.Context) ([]string, error) {
	d.data.mu.RLock()
	defer d.data.mu.RUnlock()
	return slices.Clone(d.data.keys), nil
}

// Len returns the number of materialized fields.
func (d *Document) Len() int {
	d.data.mu.RLock()
	defer d.data.mu.RUnlock()
	return len(d.data.keys)
}

// Has reports whether key is a materialized field.
func (d *Document) Has(key string) bool {
	_, ok := d.field(key)
	return ok
}

// Protect makes the document and every materialized descendant read-only,
// including placeholders cached below it. It cannot be undone.
func (d *Document) Protect() {
	d.data.mu.Lock()
	d.data.protected = true
	children := d.childrenLocked()
	d.data.mu.Unlock()
	for _, child := range children {
		child.Protect()
	}
	for _, child := range d.gctx.cache.Children(d.path) {
		if !child.IsProtected() {
			child.Protect()
		}
	}
}

// readOnly reports whether d or any cached ancestor is protected. Nodes
// created after the ancestor was protected are covered too.
func (d *Document) readOnly() bool {
	if d.IsProtected() {
		return true
	}
	for i := len(d.segments) - 1; i > 0; i-- {
		up, ok := d.gctx.cache.peek(joinPath(d.coll.path, joinPath(d.segments[:i]...)))
		if ok && up.IsProtected() {
			return true
		}
	}
	return false
}

// SetStatic marks the document as static: reloads reuse its child
// documents in place instead of going through the cache.
func (d *Document) SetStatic(static bool) {
	d.data.mu.Lock()
	defer d.data.mu.Unlock()
	d.data.static = static
}

// SetDebug marks the document as debug: children it creates from now on are
// not cached.
func (d *Document) SetDebug(debug bool) {
	d.data.mu.Lock()
	defer d.data.mu.Unlock()
	d.data.debug = debug
}

// Project returns a non-cached view of the document constrained to t. The
// view shares data and children with the canonical node.
func (d *Document) Project(t Type, opts ViewOptions) *Document {
	base := d.canonical()
	return &Document{
		gctx:       base.gctx,
		coll:       base.coll,
		segments:   base.segments,
		path:       base.path,
		instanceID: uuid.New(),
		data:       base.data,
		base:       base,
		typ:        t,
		opts:       opts,
	}
}

// Parent returns the owning collection for a member, or the enclosing
// document for a nested one.
func (d *Document) Parent(ctx context.Context) (Node, error) {
	if d.isMember() {
		return d.coll, nil
	}
	up := d.segments[:len(d.segments)-1]
	if p, ok := d.gctx.cache.peek(joinPath(d.coll.path, joinPath(up...))); ok {
		return p, nil
	}
	p, err := d.coll.walk(ctx, up)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Load replaces the document's content with rec. A nil rec re-fetches it
// from the store.
func (d *Document) Load(ctx context.Context, rec store.Record) error {
	if rec == nil {
		return d.Reload(ctx)
	}
	d.canonical().apply(store.Clone(rec))
	return nil
}

// Reload re-fetches the document. A member fetches its own record. A nested
// document reloads its cached member, which reaches it through the cache,
// or fetches the member record and walks down to its subtree. A missing
// record leaves the document virtual.
func (d *Document) Reload(ctx context.Context) error {
	d = d.canonical()
	id := d.segments[0]

	if !d.isMember() && !d.IsDebug() {
		if root, ok := d.gctx.cache.peek(d.coll.memberPath(id)); ok && root != d {
			if err := root.Reload(ctx); err != nil {
				return err
			}
			if cached, ok := d.gctx.cache.peek(d.path); ok && cached == d {
				return nil
			}
		}
	}

	rec, err := d.coll.fetch(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		d.markVirtual()
		return nil
	}
	if err != nil {
		return fmt.Errorf("reload %s: %w", d.path, err)
	}
	if _, scalar := scalarMember(rec); scalar {
		d.markVirtual()
		return nil
	}
	sub, ok := walkRecord(rec, d.segments[1:])
	if !ok {
		d.markVirtual()
		return nil
	}
	d.apply(sub)
	return nil
}

// Get returns the value under key: a scalar, or a *Document for nested
// records and resolved references. An absent key yields a virtual child
// placeholder; writing to it creates the field. "id" and "_id" return the
// document key. Dotted keys walk nested documents.
//
// On a projection, values are checked against the projection type, and
// missing keys fall back to the default as ViewOptions direct.
func (d *Document) Get(ctx context.Context, key string) (any, error) {
	if isIDKey(key) {
		return d.Key(), nil
	}
	if strings.Contains(key, ".") {
		segs := splitDotted(key)
		cur := d.canonical()
		for _, seg := range segs[:len(segs)-1] {
			next, err := cur.Child(ctx, seg)
			if err != nil {
				return nil, err
			}
			cur = next
		}
		if d.IsView() {
			cur = cur.Project(d.typ, d.opts)
		}
		return cur.Get(ctx, segs[len(segs)-1])
	}
	if err := checkKey(key); err != nil {
		return nil, err
	}

	v, ok := d.field(key)
	if !d.IsView() {
		if !ok {
			return d.childFor(key, true), nil
		}
		return d.resolve(ctx, v)
	}

	if d.opts.Rewrite {
		return d.persistDefault(ctx, key)
	}
	if !ok {
		switch {
		case d.opts.Exception:
			return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, d.path, key)
		case d.opts.Create:
			return d.persistDefault(ctx, key)
		case d.typ == TypeAny:
			return d.canonical().childFor(key, true), nil
		}
		return d.defaultValue(), nil
	}

	v, err := d.resolve(ctx, v)
	if err != nil {
		return nil, err
	}
	if !d.typ.Accepts(v) && d.opts.Exception {
		return nil, fmt.Errorf("%w: %s/%s is %T, want %s", ErrTypeMismatch, d.path, key, v, d.typ)
	}
	return v, nil
}

// Child is Get for keys that must hold a document.
func (d *Document) Child(ctx context.Context, key string) (*Document, error) {
	v, err := d.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	child, ok := v.(*Document)
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s is %T, not a document", ErrTypeMismatch, d.path, key, v)
	}
	return child, nil
}

// Set writes value under key and refreshes the cached nodes it touches.
// Dotted keys address nested fields; their siblings are kept.
func (d *Document) Set(ctx context.Context, key string, value any) error {
	if d.readOnly() {
		return fmt.Errorf("%w: %s", ErrReadOnly, d.path)
	}
	for _, seg := range splitDotted(key) {
		if err := checkFieldKey(seg); err != nil {
			return fmt.Errorf("set %s/%s: %w", d.path, key, err)
		}
	}
	if err := d.coll.SetPath(ctx, d.RelativePath()+"."+key, value, d.typ); err != nil {
		return err
	}
	// Uncached nodes are not reached by the collection's reload.
	if cached, ok := d.gctx.cache.peek(d.path); !ok || cached.data != d.data {
		return d.Reload(ctx)
	}
	return nil
}

// Delete removes the document from the store. A nested document deletes
// through its parent, so the whole member record goes. Cached nodes under
// the member path are evicted and left virtual.
func (d *Document) Delete(ctx context.Context) error {
	d = d.canonical()
	if d.readOnly() {
		return fmt.Errorf("%w: %s", ErrReadOnly, d.path)
	}
	if !d.isMember() {
		parent, err := d.Parent(ctx)
		if err != nil {
			return err
		}
		return parent.(*Document).Delete(ctx)
	}
	if d.coll.adapter == nil {
		return fmt.Errorf("%w: %s", ErrReadOnly, d.coll.path)
	}

	if err := d.coll.adapter.DeleteOne(ctx, d.Key()); err != nil {
		return fmt.Errorf("delete %s: %w", d.path, err)
	}
	for _, evicted := range d.gctx.cache.InvalidatePrefix(d.path) {
		evicted.markVirtual()
	}
	d.markVirtual()
	d.gctx.logger.Debug("document deleted", "path", d.path)
	return nil
}

// Equal compares against nil (true when the document is virtual) or another
// document (true when the paths match).
func (d *Document) Equal(other any) (bool, error) {
	switch o := other.(type) {
	case nil:
		return d.IsVirtual(), nil
	case *Document:
		if o == nil {
			return d.IsVirtual(), nil
		}
		return d.path == o.path, nil
	}
	return false, fmt.Errorf("%w: %s with %T", ErrUnsupportedComparison, d.path, other)
}

// ToMap exports every field; nested documents recursively, references in
// their stored form.
func (d *Document) ToMap(ctx context.Context) (map[string]any, error) {
	d.data.mu.RLock()
	fields := make(map[string]any, len(d.data.fields))
	for k, v := range d.data.fields {
		fields[k] = v
	}
	d.data.mu.RUnlock()

	out := make(map[string]any, len(fields))
	for k, v := range fields {
		exported, err := exportValue(ctx, v)
		if err != nil {
			return nil, err
		}
		out[k] = exported
	}
	return out, nil
}

func (d *Document) String() string {
	var b strings.Builder
	if d.IsDebug() {
		b.WriteString("debug:")
	}
	b.WriteString(d.path)
	if d.IsView() {
		fmt.Fprintf(&b, "<%s>", d.typ)
	}
	fmt.Fprintf(&b, "{%d}", d.Len())
	if d.IsVirtual() {
		b.WriteString(" virtual")
	}
	if d.IsProtected() {
		b.WriteString(" protected")
	}
	return b.String()
}

func (d *Document) canonical() *Document {
	if d.base != nil {
		return d.base
	}
	return d
}

func (d *Document) isMember() bool { return len(d.segments) == 1 }

func (d *Document) field(key string) (any, bool) {
	d.data.mu.RLock()
	defer d.data.mu.RUnlock()
	v, ok := d.data.fields[key]
	return v, ok
}

func (d *Document) flags() docFlags {
	d.data.mu.RLock()
	defer d.data.mu.RUnlock()
	return docFlags{
		protected: d.data.protected,
		static:    d.data.static,
		debug:     d.data.debug,
	}
}

// childrenLocked returns the child documents; d.data.mu must be held.
func (d *Document) childrenLocked() []*Document {
	var children []*Document
	for _, v := range d.data.fields {
		if child, ok := v.(*Document); ok {
			children = append(children, child)
		}
	}
	return children
}

// childFor returns the node for the nested record under key, creating a
// virtual one when needed. Static and debug documents reuse their own child
// first. counted is false when a reload rebuilds the children.
func (d *Document) childFor(key string, counted bool) *Document {
	flags := d.flags()
	if flags.static || flags.debug {
		if v, ok := d.field(key); ok {
			if child, ok := v.(*Document); ok {
				return child
			}
		}
	}
	segments := append(slices.Clone(d.segments), key)
	child, _ := d.gctx.cache.getOrCreate(joinPath(d.path, key), flags.debug, counted, func() *Document {
		return newDocument(d.coll, segments, flags)
	})
	return child
}

// apply replaces keys and fields with rec. Nested records become child
// documents, refreshed in place when they already exist; children that are
// gone from rec turn virtual.
func (d *Document) apply(rec store.Record) {
	d.data.mu.Lock()
	d.data.virtual = false
	d.data.mu.Unlock()

	fields := make(map[string]any, len(rec))
	keys := make([]string, 0, len(rec))
	for _, k := range store.SortedKeys(rec) {
		if isReservedKey(k) {
			continue
		}
		v := rec[k]
		if m, ok := v.(map[string]any); ok {
			if ref, isRef := refFromRecord(m); isRef {
				fields[k] = ref
			} else {
				child := d.childFor(k, false)
				child.apply(m)
				fields[k] = child
			}
		} else {
			fields[k] = store.Normalize(v)
		}
		keys = append(keys, k)
	}

	d.data.mu.Lock()
	old := d.data.fields
	d.data.fields = fields
	d.data.keys = keys
	d.data.mu.Unlock()

	for k, v := range old {
		child, ok := v.(*Document)
		if !ok {
			continue
		}
		if current, _ := fields[k].(*Document); current != child {
			child.markVirtual()
		}
	}
}

// markVirtual clears the document and its children.
func (d *Document) markVirtual() {
	d.data.mu.Lock()
	children := d.childrenLocked()
	d.data.fields = map[string]any{}
	d.data.keys = nil
	d.data.virtual = true
	d.data.mu.Unlock()
	for _, child := range children {
		child.markVirtual()
	}
}

func (d *Document) resolve(ctx context.Context, v any) (any, error) {
	if ref, ok := v.(Ref); ok {
		return d.gctx.resolve(ctx, ref)
	}
	return v, nil
}

func (d *Document) defaultValue() any {
	if d.opts.Default != nil {
		return d.opts.Default
	}
	return d.typ.Zero()
}

func (d *Document) persistDefault(ctx context.Context, key string) (any, error) {
	def := d.defaultValue()
	if err := d.Set(ctx, key, def); err != nil {
		return nil, err
	}
	return def, nil
}

// walkRecord descends into rec along segments.
func walkRecord(rec store.Record, segments []string) (store.Record, bool) {
	cur := rec
	for _, seg := range segments {
		next, ok := cur[seg].(map[string]any)
		if !ok {
			return nil, false
		}
		if _, isRef := refFromRecord(next); isRef {
			return nil, false
		}
		cur = next
	}
	return cur, true
}
