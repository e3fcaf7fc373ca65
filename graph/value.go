package graph

import (
	"context"
	"fmt"
	"math"
	"reflect"
	"time"

	"github.com/google/uuid"

	"github.com/jacentio/arbor/store"
)

// encodeUnsigned stores integers as int64, so anything above MaxInt64 is
// rejected instead of wrapping.
func encodeUnsigned(x uint64) (any, error) {
	if x > math.MaxInt64 {
		return nil, fmt.Errorf("%w: %d overflows int64", ErrInvalidValue, x)
	}
	return int64(x), nil
}

// encodeValue validates a caller-supplied value and converts it to the form
// written to the store. Documents that are collection members become
// references; nested documents are copied.
func encodeValue(ctx context.Context, v any) (any, error) {
	switch x := v.(type) {
	case nil, string, bool, int, int8, int16, int32, int64,
		uint8, uint16, uint32, float32, float64,
		[]byte, time.Time, uuid.UUID:
		return store.Normalize(x), nil
	case uint:
		return encodeUnsigned(uint64(x))
	case uint64:
		return encodeUnsigned(x)
	case Ref:
		return x.Record(), nil
	case *Document:
		if x == nil {
			return nil, nil
		}
		if x.isMember() {
			return x.Ref().Record(), nil
		}
		return x.ToMap(ctx)
	case map[string]any:
		if ref, ok := refFromRecord(x); ok {
			return ref.Record(), nil
		}
		out := make(map[string]any, len(x))
		for k, e := range x {
			if err := checkFieldKey(k); err != nil {
				return nil, err
			}
			enc, err := encodeValue(ctx, e)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			out[k] = enc
		}
		return out, nil
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			enc, err := encodeValue(ctx, e)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = enc
		}
		return out, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		items := make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
		return encodeValue(ctx, items)
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		m := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[iter.Key().String()] = iter.Value().Interface()
		}
		return encodeValue(ctx, m)
	}
	return nil, fmt.Errorf("%w: unsupported type %T", ErrInvalidValue, v)
}

// exportValue converts a field value into its ToMap form.
func exportValue(ctx context.Context, v any) (any, error) {
	switch x := v.(type) {
	case Ref:
		return x.Record(), nil
	case *Document:
		return x.ToMap(ctx)
	}
	return store.Normalize(v), nil
}
