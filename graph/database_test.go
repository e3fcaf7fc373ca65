package graph_test

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacentio/arbor/graph"
	"github.com/jacentio/arbor/store"
)

// --- Open ---

func TestOpen_LogsBackend(t *testing.T) {
	ctx := context.Background()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	db, err := graph.Open(ctx, graph.Config{Adapter: store.NewMemoryStore("test"), Logger: logger})
	require.NoError(t, err)
	require.NoError(t, db.Close())
	assert.Contains(t, buf.String(), "adapter=*store.MemoryStore")
	assert.NotContains(t, buf.String(), ":///")

	buf.Reset()
	db, err = graph.Open(ctx, graph.Config{Logger: logger})
	require.NoError(t, err)
	require.NoError(t, db.Close())
	assert.Contains(t, buf.String(), "store=memory://localhost/arbor")
}

func TestOpen_EmbeddedDefaults(t *testing.T) {
	db, err := graph.Open(context.Background(), graph.Config{})
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, "arbor", db.Name())
	assert.Equal(t, "arbor", db.Path())
	assert.Equal(t, graph.NodeDatabase, db.Kind())
	assert.Equal(t, "memory", db.Descriptor().Scheme)
	assert.Equal(t, "localhost", db.Descriptor().Host)
	assert.Equal(t, "static/defaults", db.Defaults().Path())
	assert.Equal(t, "arbor/config", db.Config().Path())
	assert.Same(t, db.Defaults(), db.Config().Defaults())
}

func TestOpen_URL(t *testing.T) {
	ctx := context.Background()
	file := filepath.Join(t.TempDir(), "graph.db")
	url := "bolt:///" + file

	db, err := graph.Open(ctx, graph.Config{URL: url})
	require.NoError(t, err)
	assert.Equal(t, "graph", db.Name())
	require.NoError(t, db.Set(ctx, "users/1", map[string]any{"name": "ada"}))
	require.NoError(t, db.Close())

	db, err = graph.Open(ctx, graph.Config{URL: url})
	require.NoError(t, err)
	defer db.Close()
	name, err := db.Get(ctx, "users/1/name")
	require.NoError(t, err)
	assert.Equal(t, "ada", name)
}

func TestOpen_DefaultsFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "defaults.yml")
	require.NoError(t, os.WriteFile(file, []byte(`
store:
  scheme: memory
  database: filedb
site:
  title: From file
`), 0o600))

	db, err := graph.Open(context.Background(), graph.Config{DefaultsFile: file})
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, "filedb", db.Name())
	title, err := db.Config().Get(context.Background(), "site.title")
	require.NoError(t, err)
	assert.Equal(t, "From file", title)
}

func TestOpen_DescriptorFromDefaults(t *testing.T) {
	db, err := graph.Open(context.Background(), graph.Config{Defaults: map[string]any{
		"store": map[string]any{
			"scheme":   "memory",
			"database": "custom",
			"host":     "db.local",
			"port":     27017,
			"user":     "admin",
			"password": "secret",
			"params":   map[string]any{"region": "eu-west-1"},
		},
	}})
	require.NoError(t, err)
	defer db.Close()

	d := db.Descriptor()
	assert.Equal(t, "custom", d.Database)
	assert.Equal(t, "db.local", d.Host)
	assert.Equal(t, 27017, d.Port)
	assert.Equal(t, "admin", d.User)
	assert.Equal(t, "secret", d.Password)
	assert.Equal(t, "eu-west-1", d.Param("region", ""))

	assert.NotContains(t, db.String(), "secret")
	assert.Contains(t, db.String(), "******")
}

func TestOpen_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  graph.Config
		want error
	}{
		{
			name: "no store entry",
			cfg:  graph.Config{Defaults: map[string]any{"site": map[string]any{}}},
			want: graph.ErrConfigurationMissing,
		},
		{
			name: "store is a scalar",
			cfg:  graph.Config{Defaults: map[string]any{"store": "memory"}},
			want: graph.ErrConfigurationMissing,
		},
		{
			name: "no database",
			cfg:  graph.Config{Defaults: map[string]any{"store": map[string]any{"scheme": "memory"}}},
			want: graph.ErrConfigurationMissing,
		},
		{
			name: "mistyped port",
			cfg: graph.Config{Defaults: map[string]any{"store": map[string]any{
				"scheme": "memory", "database": "x", "port": "abc",
			}}},
			want: graph.ErrTypeMismatch,
		},
		{
			name: "unknown scheme",
			cfg:  graph.Config{URL: "nosql://localhost/x"},
			want: store.ErrUnknownScheme,
		},
		{
			name: "bad url",
			cfg:  graph.Config{URL: "localhost/x"},
			want: store.ErrInvalidDescriptor,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := graph.Open(context.Background(), tt.cfg)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestOpen_MissingDefaultsFile(t *testing.T) {
	_, err := graph.Open(context.Background(), graph.Config{
		DefaultsFile: filepath.Join(t.TempDir(), "missing.yml"),
	})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

// --- Config and defaults ---

func TestConfig_FallsBackToDefaults(t *testing.T) {
	ctx := context.Background()
	db, mem := openTest(t, map[string]any{
		"site": map[string]any{"title": "Arbor", "port": 8080},
	})
	cfg := db.Config()

	site, err := cfg.Document(ctx, "site")
	require.NoError(t, err)
	assert.False(t, site.IsVirtual())
	assert.False(t, site.IsProtected())
	port, err := site.Get(ctx, "port")
	require.NoError(t, err)
	assert.Equal(t, int64(8080), port)

	rec, err := mem.Collection(graph.ConfigCollection).FindOne(ctx, "site")
	require.NoError(t, err)
	assert.Equal(t, store.Record{"title": "Arbor", "port": int64(8080)}, rec)

	found, err := cfg.Find(ctx, store.Filter{"title": "Arbor"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Same(t, site, found[0])

	// config changes leave the defaults alone
	require.NoError(t, site.Set(ctx, "title", "Changed"))
	title, err := db.Defaults().Lookup(ctx, "site.title")
	require.NoError(t, err)
	assert.Equal(t, "Arbor", title)
}

func TestConfig_StoredValueWins(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore("test")
	require.NoError(t, mem.Collection(graph.ConfigCollection).UpdateOne(ctx, "site", store.Record{"title": "Custom"}))
	db, err := graph.Open(ctx, graph.Config{
		Adapter:  mem,
		Defaults: map[string]any{"site": map[string]any{"title": "Arbor"}},
	})
	require.NoError(t, err)
	defer db.Close()

	title, err := db.Config().Get(ctx, "site.title")
	require.NoError(t, err)
	assert.Equal(t, "Custom", title)
}

func TestConfig_ScalarDefault(t *testing.T) {
	ctx := context.Background()
	db, mem := openTest(t, map[string]any{"retries": 3})

	v, err := db.Config().Get(ctx, "retries")
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)

	rec, err := mem.Collection(graph.ConfigCollection).FindOne(ctx, "retries")
	require.NoError(t, err)
	assert.Equal(t, store.Record{"$value": int64(3)}, rec)

	v, err = db.Config().Get(ctx, "retries")
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)
}

func TestConfig_MissingEverywhere(t *testing.T) {
	ctx := context.Background()
	db, mem := openTest(t, map[string]any{})

	doc, err := db.Config().Document(ctx, "nothing")
	require.NoError(t, err)
	assert.True(t, doc.IsVirtual())
	_, err = mem.Collection(graph.ConfigCollection).FindOne(ctx, "nothing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDefaults_ReadOnly(t *testing.T) {
	ctx := context.Background()
	db, _ := openTest(t, map[string]any{"site": map[string]any{"title": "Arbor"}})

	assert.True(t, db.Defaults().IsProtected())
	site, err := db.Defaults().Document(ctx, "site")
	require.NoError(t, err)
	assert.True(t, site.IsProtected())
	assert.ErrorIs(t, site.Set(ctx, "title", "x"), graph.ErrReadOnly)
}

func TestLoadDefaults_Rewrite(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore("test")
	require.NoError(t, mem.Collection(graph.ConfigCollection).UpdateOne(ctx, "site", store.Record{"title": "Old"}))
	db, err := graph.Open(ctx, graph.Config{
		Adapter: mem,
		Defaults: map[string]any{
			"config_collection_rewrite": true,
			"site":                      map[string]any{"title": "Arbor"},
			"mail":                      map[string]any{"from": "noreply@example.com"},
		},
	})
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.LoadDefaults(ctx))

	rec, err := mem.Collection(graph.ConfigCollection).FindOne(ctx, "site")
	require.NoError(t, err)
	assert.Equal(t, "Arbor", rec["title"])
	rec, err = mem.Collection(graph.ConfigCollection).FindOne(ctx, "mail")
	require.NoError(t, err)
	assert.Equal(t, "noreply@example.com", rec["from"])
}

func TestLoadDefaults_Disabled(t *testing.T) {
	ctx := context.Background()
	db, mem := openTest(t, nil)

	require.NoError(t, db.LoadDefaults(ctx))

	ids, err := mem.Collection(graph.ConfigCollection).DistinctIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

// --- Root ---

func TestDatabase_Collection(t *testing.T) {
	db, _ := openTest(t, nil)

	users, err := db.Collection("users")
	require.NoError(t, err)
	again, err := db.Collection("users")
	require.NoError(t, err)
	assert.Same(t, users, again)
	assert.Equal(t, "test/users", users.Path())

	cfg, err := db.Collection(graph.ConfigCollection)
	require.NoError(t, err)
	assert.Same(t, db.Config(), cfg)

	for _, name := range []string{"42", "", "a/b", "a.b", "$x"} {
		_, err := db.Collection(name)
		assert.ErrorIs(t, err, graph.ErrInvalidValue, name)
	}
}

func TestDatabase_GetSet(t *testing.T) {
	ctx := context.Background()
	db, _ := openTest(t, nil)

	assert.ErrorIs(t, db.Set(ctx, "users", map[string]any{}), graph.ErrReadOnly)
	require.NoError(t, db.Set(ctx, "users/1", map[string]any{"name": "ada"}))
	require.NoError(t, db.Set(ctx, "users/1/address/city", "London"))

	v, err := db.Get(ctx, "users")
	require.NoError(t, err)
	users, ok := v.(*graph.Collection)
	require.True(t, ok)
	assert.Equal(t, "users", users.Name())

	city, err := db.Get(ctx, "users/1/address/city")
	require.NoError(t, err)
	assert.Equal(t, "London", city)
	name, err := db.Get(ctx, "users/1/name")
	require.NoError(t, err)
	assert.Equal(t, "ada", name)
}

func TestDatabase_KeysAndToMap(t *testing.T) {
	ctx := context.Background()
	db, _ := openTest(t, map[string]any{"site": map[string]any{"title": "Arbor"}})
	_, _ = seedUsers(t, db)
	_, err := db.Config().Get(ctx, "site")
	require.NoError(t, err)

	keys, err := db.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"users"}, keys)

	m, err := db.ToMap(ctx)
	require.NoError(t, err)
	require.Contains(t, m, "users")
	assert.NotContains(t, m, graph.ConfigCollection)
}

func TestDatabase_Debug(t *testing.T) {
	ctx := context.Background()
	db, _ := openTest(t, nil)
	db.SetDebug(true)
	assert.True(t, db.IsDebug())

	scratch, err := db.Collection("scratch")
	require.NoError(t, err)
	assert.True(t, scratch.IsDebug())
	assert.True(t, strings.HasPrefix(scratch.String(), "debug:"))
	_, ok := db.Context().Collections().Lookup("scratch")
	assert.False(t, ok)

	require.NoError(t, scratch.Set(ctx, "1", map[string]any{"nested": map[string]any{"x": 1}}))
	first, err := scratch.Document(ctx, "1")
	require.NoError(t, err)
	second, err := scratch.Document(ctx, "1")
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.True(t, first.IsDebug())

	nested, err := first.Child(ctx, "nested")
	require.NoError(t, err)
	again, err := first.Child(ctx, "nested")
	require.NoError(t, err)
	assert.Same(t, nested, again)

	for _, p := range db.Cache().Paths() {
		assert.NotContains(t, p, "scratch")
	}
}

func TestDatabase_Close(t *testing.T) {
	ctx := context.Background()
	db, err := graph.Open(ctx, graph.Config{Adapter: store.NewMemoryStore("test")})
	require.NoError(t, err)
	_, _ = seedUsers(t, db)
	require.NotZero(t, db.Cache().Len())

	require.NoError(t, db.Close())

	assert.Zero(t, db.Cache().Len())
	assert.Zero(t, db.Context().Collections().Len())
}

// --- Metrics ---

func TestDatabase_Metrics(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	db, err := graph.Open(ctx, graph.Config{Adapter: store.NewMemoryStore("test"), Registerer: reg})
	require.NoError(t, err)
	defer db.Close()

	_, doc := seedUsers(t, db)
	require.NoError(t, doc.Delete(ctx))

	expected := `
# HELP arbor_path_cache_evictions_total Total number of nodes evicted from the path cache
# TYPE arbor_path_cache_evictions_total counter
arbor_path_cache_evictions_total{database="test"} 2
# HELP arbor_path_cache_inserts_total Total number of nodes inserted into the path cache
# TYPE arbor_path_cache_inserts_total counter
arbor_path_cache_inserts_total{database="test"} 2
# HELP arbor_path_cache_size Current number of nodes in the path cache
# TYPE arbor_path_cache_size gauge
arbor_path_cache_size{database="test"} 0
`
	err = testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"arbor_path_cache_evictions_total",
		"arbor_path_cache_inserts_total",
		"arbor_path_cache_size",
	)
	assert.NoError(t, err)
}

func TestDatabase_MetricsRegisteredTwice(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	db, err := graph.Open(ctx, graph.Config{Adapter: store.NewMemoryStore("test"), Registerer: reg})
	require.NoError(t, err)
	defer db.Close()

	_, err = graph.Open(ctx, graph.Config{Adapter: store.NewMemoryStore("test"), Registerer: reg})
	assert.Error(t, err)
}
