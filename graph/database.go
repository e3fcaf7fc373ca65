package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jacentio/arbor/defaults"
	"github.com/jacentio/arbor/store"
)

const (
	// ConfigCollection is the store-backed collection that falls back to the
	// defaults tree.
	ConfigCollection = "config"

	// DefaultsCollection is the name of the static defaults collection.
	DefaultsCollection = "defaults"

	// rewriteKey in the defaults tree makes LoadDefaults copy every default
	// document into the config collection.
	rewriteKey = "config_collection_rewrite"

	// storeKey is the defaults document describing the backend.
	storeKey = "store"
)

// Config configures Open.
type Config struct {
	// Defaults is the defaults tree. When nil, DefaultsFile is read, and
	// when that is empty too the embedded defaults are used.
	Defaults map[string]any

	// DefaultsFile is a YAML file holding the defaults tree.
	DefaultsFile string

	// URL names the backend directly instead of the "store" defaults entry.
	URL string

	// Adapter is used as the backend as is; it wins over URL and defaults.
	// Close closes it.
	Adapter store.Database

	// Logger receives structured logs. Default: slog.Default().
	Logger *slog.Logger

	// Registerer, when set, gets the path cache metrics.
	Registerer prometheus.Registerer

	// Debug stops collections and their members from being cached.
	Debug bool
}

func (c Config) defaultsTree() (map[string]any, error) {
	switch {
	case c.Defaults != nil:
		return c.Defaults, nil
	case c.DefaultsFile != "":
		return defaults.Load(c.DefaultsFile)
	}
	return defaults.Embedded()
}

// Database is the root of the graph: it opens the backend, owns the shared
// graph context and hands out collections by name. The root itself is
// read-only; writes go through paths of the form "collection/id/field".
type Database struct {
	gctx       *Context
	name       string
	adapter    store.Database
	descriptor store.Descriptor
	defaults   *Collection
	config     *Collection
	logger     *slog.Logger

	mu    sync.RWMutex
	debug bool
}

// Open loads the defaults, connects to the backend and prepares the config
// collection.
//
// Unless cfg names a backend, the descriptor comes from the "store"
// defaults document; its scheme and database are required.
func Open(ctx context.Context, cfg Config) (*Database, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	gctx := NewContext(logger)

	tree, err := cfg.defaultsTree()
	if err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}
	defaultsColl := NewStaticCollection(gctx, DefaultsCollection, tree)
	if cfg.Defaults == nil {
		defaultsColl.sourceFile = cfg.DefaultsFile
	}
	defaultsColl.Protect()

	adapter, desc, err := openStore(ctx, cfg, defaultsColl)
	if err != nil {
		return nil, err
	}

	name := adapter.Name()
	if name == "" {
		name = desc.Database
	}
	if name == "" {
		name = "arbor"
	}

	if cfg.Registerer != nil {
		metrics, err := newCacheMetrics(cfg.Registerer, name)
		if err != nil {
			adapter.Close()
			return nil, fmt.Errorf("register metrics: %w", err)
		}
		gctx.cache.metrics = metrics
	}

	db := &Database{
		gctx:       gctx,
		name:       name,
		adapter:    adapter,
		descriptor: desc,
		defaults:   defaultsColl,
		logger:     logger,
		debug:      cfg.Debug,
	}
	db.config = newCollection(gctx, name, ConfigCollection, adapter.Collection(ConfigCollection))
	db.config.SetDefaults(defaultsColl)
	gctx.collections.Register(db.config)
	gctx.open = db.Collection

	backend := slog.String("store", desc.String())
	if desc.Scheme == "" {
		// A caller-supplied adapter has no descriptor to render.
		backend = slog.String("adapter", fmt.Sprintf("%T", adapter))
	}
	logger.Info("database opened", "database", name, backend)
	return db, nil
}

func openStore(ctx context.Context, cfg Config, defaultsColl *Collection) (store.Database, store.Descriptor, error) {
	if cfg.Adapter != nil {
		return cfg.Adapter, store.Descriptor{Database: cfg.Adapter.Name()}, nil
	}

	var desc store.Descriptor
	var err error
	if cfg.URL != "" {
		desc, err = store.ParseDescriptor(cfg.URL)
	} else {
		desc, err = descriptorFromDefaults(ctx, defaultsColl)
	}
	if err != nil {
		return nil, store.Descriptor{}, err
	}

	adapter, err := store.Open(ctx, desc)
	if err != nil {
		return nil, store.Descriptor{}, fmt.Errorf("open store %s: %w", desc, err)
	}
	return adapter, desc, nil
}

// descriptorFromDefaults reads the "store" defaults document through strict
// projections.
func descriptorFromDefaults(ctx context.Context, defaultsColl *Collection) (store.Descriptor, error) {
	v, err := defaultsColl.Get(ctx, storeKey)
	if err != nil {
		return store.Descriptor{}, err
	}
	section, ok := v.(*Document)
	if !ok || section.IsVirtual() {
		return store.Descriptor{}, fmt.Errorf("%w: %s", ErrConfigurationMissing, storeKey)
	}

	strict := func(t Type, key string) (any, error) {
		v, err := section.Project(t, ViewOptions{Exception: true}).Get(ctx, key)
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: %s.%s", ErrConfigurationMissing, storeKey, key)
		}
		return v, err
	}
	str := func(key string, required bool) (string, error) {
		if !required && !section.Has(key) {
			return "", nil
		}
		v, err := strict(TypeString, key)
		if err != nil {
			return "", err
		}
		return v.(string), nil
	}

	var d store.Descriptor
	if d.Scheme, err = str("scheme", true); err != nil {
		return store.Descriptor{}, err
	}
	if d.Database, err = str("database", true); err != nil {
		return store.Descriptor{}, err
	}
	if d.Host, err = str("host", false); err != nil {
		return store.Descriptor{}, err
	}
	if d.User, err = str("user", false); err != nil {
		return store.Descriptor{}, err
	}
	if d.Password, err = str("password", false); err != nil {
		return store.Descriptor{}, err
	}

	if section.Has("port") {
		v, err := strict(TypeInt, "port")
		if err != nil {
			return store.Descriptor{}, err
		}
		port, _ := store.Normalize(v).(int64)
		d.Port = int(port)
	}

	if section.Has("params") {
		v, err := strict(TypeRecord, "params")
		if err != nil {
			return store.Descriptor{}, err
		}
		params, err := exportValue(ctx, v)
		if err != nil {
			return store.Descriptor{}, err
		}
		d.Params = url.Values{}
		for k, p := range params.(map[string]any) {
			d.Params.Set(k, fmt.Sprint(p))
		}
	}
	return d, nil
}

// Name returns the database name.
func (db *Database) Name() string { return db.name }

// Key returns the database name.
func (db *Database) Key() string { return db.name }

// Path returns the database name, the first segment of every path below it.
func (db *Database) Path() string { return db.name }

func (db *Database) Kind() NodeKind { return NodeDatabase }

// Context returns the shared graph context.
func (db *Database) Context() *Context { return db.gctx }

// Cache returns the path cache.
func (db *Database) Cache() *PathCache { return db.gctx.cache }

// Config returns the config collection.
func (db *Database) Config() *Collection { return db.config }

// Defaults returns the static defaults collection.
func (db *Database) Defaults() *Collection { return db.defaults }

// Descriptor returns the backend descriptor. Its String form masks the
// password.
func (db *Database) Descriptor() store.Descriptor { return db.descriptor }

func (db *Database) IsDebug() bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.debug
}

// SetDebug toggles debug mode: collections handed out are neither
// registered nor cache their members.
func (db *Database) SetDebug(debug bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.debug = debug
}

// Collection returns the named collection, creating and registering it on
// first use. Numeric names are rejected.
func (db *Database) Collection(name string) (*Collection, error) {
	if err := checkKey(name); err != nil {
		return nil, err
	}
	if _, err := strconv.Atoi(name); err == nil {
		return nil, fmt.Errorf("%w: numeric collection name %q", ErrInvalidValue, name)
	}
	if name == ConfigCollection {
		return db.config, nil
	}

	debug := db.IsDebug()
	if !debug {
		if c, ok := db.gctx.collections.Lookup(name); ok {
			return c, nil
		}
	}
	c := newCollection(db.gctx, db.name, name, db.adapter.Collection(name))
	if debug {
		c.SetDebug(true)
		return c, nil
	}
	db.gctx.collections.Register(c)
	return c, nil
}

// Keys returns the names of the collections holding data, without config.
func (db *Database) Keys(ctx context.Context) ([]string, error) {
	names, err := db.adapter.CollectionNames(ctx, ConfigCollection)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	return names, nil
}

// Get resolves "collection" to a collection and "collection/id/..." to
// whatever lies there.
func (db *Database) Get(ctx context.Context, key string) (any, error) {
	name, rest, nested := strings.Cut(key, Separator)
	c, err := db.Collection(name)
	if err != nil {
		return nil, err
	}
	if !nested {
		return c, nil
	}
	return c.Lookup(ctx, rest)
}

// Set writes through a "collection/id/..." path. The root itself is
// read-only.
func (db *Database) Set(ctx context.Context, key string, value any) error {
	name, rest, nested := strings.Cut(key, Separator)
	if !nested {
		return fmt.Errorf("%w: database root %s", ErrReadOnly, db.name)
	}
	c, err := db.Collection(name)
	if err != nil {
		return err
	}
	return c.Set(ctx, rest, value)
}

// ToMap exports every collection holding data, config excluded.
func (db *Database) ToMap(ctx context.Context) (map[string]any, error) {
	names, err := db.Keys(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(names))
	for _, name := range names {
		c, err := db.Collection(name)
		if err != nil {
			return nil, err
		}
		if out[name], err = c.ToMap(ctx); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// LoadDefaults copies every default document into the config collection
// when the defaults tree sets config_collection_rewrite. Per-document
// failures are collected and returned together.
func (db *Database) LoadDefaults(ctx context.Context) error {
	v, err := db.defaults.Get(ctx, rewriteKey)
	if err != nil {
		return err
	}
	if rewrite, _ := v.(bool); !rewrite {
		return nil
	}

	ids, err := db.defaults.Keys(ctx)
	if err != nil {
		return err
	}
	var result *multierror.Error
	copied := 0
	for _, id := range ids {
		v, err := db.defaults.Get(ctx, id)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", id, err))
			continue
		}
		doc, ok := v.(*Document)
		if !ok {
			continue
		}
		if err := db.config.Set(ctx, id, doc); err != nil {
			db.logger.Warn("default not copied", "id", id, "error", err)
			result = multierror.Append(result, fmt.Errorf("%s: %w", id, err))
			continue
		}
		copied++
	}
	db.logger.Info("defaults loaded into config", "database", db.name, "documents", copied)
	return result.ErrorOrNil()
}

// Close drops every cached node and registered collection and closes the
// backend.
func (db *Database) Close() error {
	db.gctx.cache.Clear()
	db.gctx.collections.Clear()
	if err := db.adapter.Close(); err != nil {
		return fmt.Errorf("close %s: %w", db.name, err)
	}
	db.logger.Info("database closed", "database", db.name)
	return nil
}

func (db *Database) String() string {
	if db.descriptor.Scheme == "" {
		return db.name
	}
	return fmt.Sprintf("%s (%s)", db.name, db.descriptor)
}
