package graph

import (
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"
)

// Type constrains the values a projection accepts.
type Type int

const (
	TypeAny Type = iota
	TypeString
	TypeInt
	TypeFloat
	TypeBool
	TypeBytes
	TypeTime
	TypeUUID
	TypeList
	TypeRecord
)

func (t Type) String() string {
	switch t {
	case TypeAny:
		return "any"
	case TypeString:
		return "string"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeBool:
		return "bool"
	case TypeBytes:
		return "bytes"
	case TypeTime:
		return "time"
	case TypeUUID:
		return "uuid"
	case TypeList:
		return "list"
	case TypeRecord:
		return "record"
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// Accepts reports whether v satisfies the constraint. Integers also satisfy
// TypeFloat, RFC 3339 strings TypeTime and canonical UUID strings TypeUUID,
// since that is how those values come back from text-based stores.
func (t Type) Accepts(v any) bool {
	switch t {
	case TypeAny:
		return true
	case TypeString:
		_, ok := v.(string)
		return ok
	case TypeInt:
		return isInt(v)
	case TypeFloat:
		switch v.(type) {
		case float32, float64:
			return true
		}
		return isInt(v)
	case TypeBool:
		_, ok := v.(bool)
		return ok
	case TypeBytes:
		_, ok := v.([]byte)
		return ok
	case TypeTime:
		switch x := v.(type) {
		case time.Time:
			return true
		case string:
			_, err := time.Parse(time.RFC3339Nano, x)
			return err == nil
		}
		return false
	case TypeUUID:
		switch x := v.(type) {
		case uuid.UUID:
			return true
		case string:
			id, err := uuid.Parse(x)
			return err == nil && id.String() == x
		}
		return false
	case TypeList:
		if v == nil {
			return false
		}
		if _, ok := v.([]byte); ok {
			return false
		}
		kind := reflect.TypeOf(v).Kind()
		return kind == reflect.Slice || kind == reflect.Array
	case TypeRecord:
		switch v.(type) {
		case map[string]any, *Document:
			return true
		}
		return false
	}
	return false
}

// Zero returns the value a lenient projection substitutes for a missing key.
func (t Type) Zero() any {
	switch t {
	case TypeString:
		return ""
	case TypeInt:
		return int64(0)
	case TypeFloat:
		return float64(0)
	case TypeBool:
		return false
	case TypeBytes:
		return []byte{}
	case TypeTime:
		return time.Time{}
	case TypeUUID:
		return uuid.Nil
	case TypeList:
		return []any{}
	case TypeRecord:
		return map[string]any{}
	}
	return nil
}

func isInt(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	}
	return false
}
