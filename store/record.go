package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

// Normalize converts a value into the canonical in-memory form shared by all
// backends: integers become int64, floats float64, uuid.UUID its string form,
// maps map[string]any and slices []any. Nested values are normalized
// recursively and always copied, so the result never aliases v.
func Normalize(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case string, bool, int64, float64, time.Time:
		return x
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		return int64(x)
	case float32:
		return float64(x)
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		f, _ := x.Float64()
		return f
	case uuid.UUID:
		return x.String()
	case []byte:
		return bytes.Clone(x)
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = Normalize(e)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[fmt.Sprint(k)] = Normalize(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = Normalize(e)
		}
		return out
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = Normalize(rv.Index(i).Interface())
		}
		return out
	case reflect.Map:
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[fmt.Sprint(iter.Key().Interface())] = Normalize(iter.Value().Interface())
		}
		return out
	}
	return v
}

// Clone returns a deep, normalized copy of rec.
func Clone(rec Record) Record {
	if rec == nil {
		return nil
	}
	return Normalize(rec).(map[string]any)
}

// Apply returns a copy of dst with patch applied. Each patch key is a dotted
// field path; its value replaces whatever is stored at that path, and missing
// or non-record intermediate fields become records. Fields outside the
// patched paths are kept. dst is left untouched.
func Apply(dst, patch Record) Record {
	out := Clone(dst)
	if out == nil {
		out = Record{}
	}
	for _, path := range SortedKeys(patch) {
		segments := strings.Split(path, ".")
		cur := out
		for _, seg := range segments[:len(segments)-1] {
			next, ok := asRecord(cur[seg])
			if !ok {
				next = Record{}
				cur[seg] = next
			}
			cur = next
		}
		cur[segments[len(segments)-1]] = Normalize(patch[path])
	}
	return out
}

// Lookup walks a dotted field path through nested records.
func Lookup(rec Record, path string) (any, bool) {
	var cur any = rec
	for _, seg := range strings.Split(path, ".") {
		m, ok := asRecord(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Match reports whether rec satisfies every equality in filter.
// A nil filter value matches an absent field.
func Match(rec Record, filter Filter) bool {
	for path, want := range filter {
		got, ok := Lookup(rec, path)
		if !ok {
			if want != nil {
				return false
			}
			continue
		}
		if !Equal(got, want) {
			return false
		}
	}
	return true
}

// Equal compares two values after normalization. Integers and floats compare
// numerically.
func Equal(a, b any) bool {
	a, b = Normalize(a), Normalize(b)
	switch x := a.(type) {
	case int64:
		switch y := b.(type) {
		case int64:
			return x == y
		case float64:
			return float64(x) == y
		}
		return false
	case float64:
		switch y := b.(type) {
		case int64:
			return x == float64(y)
		case float64:
			return x == y
		}
		return false
	case time.Time:
		y, ok := b.(time.Time)
		return ok && x.Equal(y)
	}
	return reflect.DeepEqual(a, b)
}

// SortedKeys returns the keys of rec in lexical order.
func SortedKeys(rec Record) []string {
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func asRecord(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

// encodeRecord and decodeRecord are the document codec of the file
// backends. msgpack keeps []byte and time.Time values typed, so they come back
// as written.
func encodeRecord(rec Record) ([]byte, error) {
	return msgpack.Marshal(rec)
}

func decodeRecord(data []byte) (Record, error) {
	var rec map[string]any
	if err := msgpack.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return Clone(rec), nil
}
