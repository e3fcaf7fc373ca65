package store_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/jacentio/arbor/store"
)

func TestNormalize(t *testing.T) {
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	now := time.Now()

	tests := []struct {
		name string
		in   any
		want any
	}{
		{"nil", nil, nil},
		{"int", 7, int64(7)},
		{"int32", int32(7), int64(7)},
		{"uint16", uint16(7), int64(7)},
		{"float32", float32(0.5), 0.5},
		{"json integer", json.Number("12"), int64(12)},
		{"json float", json.Number("1.5"), 1.5},
		{"uuid", id, id.String()},
		{"time", now, now},
		{"string slice", []string{"a", "b"}, []any{"a", "b"}},
		{"int slice", []int{1, 2}, []any{int64(1), int64(2)}},
		{"nested map", map[string]any{"a": map[string]int{"b": 1}}, map[string]any{"a": map[string]any{"b": int64(1)}}},
		{"yaml map", map[any]any{"k": 1}, map[string]any{"k": int64(1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, store.Normalize(tt.in))
		})
	}
}

func TestNormalize_Copies(t *testing.T) {
	inner := map[string]any{"b": 1}
	in := map[string]any{"a": inner}
	out := store.Normalize(in).(map[string]any)
	out["a"].(map[string]any)["b"] = 2
	assert.Equal(t, 1, inner["b"])
}

func TestApply(t *testing.T) {
	base := store.Record{
		"name":    "ada",
		"address": map[string]any{"city": "London", "zip": "N1"},
		"count":   1,
	}

	tests := []struct {
		name  string
		patch store.Record
		want  store.Record
	}{
		{
			name:  "top level field",
			patch: store.Record{"name": "grace"},
			want:  store.Record{"name": "grace", "address": map[string]any{"city": "London", "zip": "N1"}, "count": int64(1)},
		},
		{
			name:  "dotted path keeps siblings",
			patch: store.Record{"address.city": "Paris"},
			want:  store.Record{"name": "ada", "address": map[string]any{"city": "Paris", "zip": "N1"}, "count": int64(1)},
		},
		{
			name:  "record value replaces",
			patch: store.Record{"address": map[string]any{"city": "Oslo"}},
			want:  store.Record{"name": "ada", "address": map[string]any{"city": "Oslo"}, "count": int64(1)},
		},
		{
			name:  "scalar intermediate becomes record",
			patch: store.Record{"count.total": 3},
			want:  store.Record{"name": "ada", "address": map[string]any{"city": "London", "zip": "N1"}, "count": map[string]any{"total": int64(3)}},
		},
		{
			name:  "nil value is stored",
			patch: store.Record{"name": nil},
			want:  store.Record{"name": nil, "address": map[string]any{"city": "London", "zip": "N1"}, "count": int64(1)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, store.Apply(base, tt.patch))
		})
	}

	// base is never modified
	assert.Equal(t, "London", base["address"].(map[string]any)["city"])
	assert.Equal(t, 1, base["count"])
}

func TestApply_NilBase(t *testing.T) {
	got := store.Apply(nil, store.Record{"a.b": 1})
	assert.Equal(t, store.Record{"a": map[string]any{"b": int64(1)}}, got)
}

func TestLookup(t *testing.T) {
	rec := store.Record{"a": map[string]any{"b": map[string]any{"c": 1}}, "x": 2}

	v, ok := store.Lookup(rec, "a.b.c")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = store.Lookup(rec, "a.missing")
	assert.False(t, ok)

	_, ok = store.Lookup(rec, "x.y")
	assert.False(t, ok)
}

func TestMatch(t *testing.T) {
	rec := store.Record{"name": "ada", "age": int64(36), "address": map[string]any{"city": "London"}}

	assert.True(t, store.Match(rec, nil))
	assert.True(t, store.Match(rec, store.Filter{"name": "ada"}))
	assert.True(t, store.Match(rec, store.Filter{"age": 36.0}))
	assert.True(t, store.Match(rec, store.Filter{"address.city": "London"}))
	assert.True(t, store.Match(rec, store.Filter{"missing": nil}))
	assert.False(t, store.Match(rec, store.Filter{"name": "grace"}))
	assert.False(t, store.Match(rec, store.Filter{"name": "ada", "age": 40}))
	assert.False(t, store.Match(rec, store.Filter{"missing": "x"}))
}

func TestEqual(t *testing.T) {
	now := time.Now()
	assert.True(t, store.Equal(1, int64(1)))
	assert.True(t, store.Equal(2, 2.0))
	assert.True(t, store.Equal(now, now.UTC()))
	assert.True(t, store.Equal([]int{1}, []any{int64(1)}))
	assert.False(t, store.Equal(1, "1"))
	assert.False(t, store.Equal(1.5, 1))
}

func TestSortedKeys(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, store.SortedKeys(store.Record{"c": 1, "a": 2, "b": 3}))
	assert.Empty(t, store.SortedKeys(nil))
}
