package graph

import (
	"strconv"

	"github.com/jacentio/arbor/store"
)

// Ref points at a member of another collection. It is stored as
// {"$ref": collection, "$id": id} and resolved lazily on Get.
type Ref struct {
	Collection string
	ID         string
}

func (r Ref) String() string {
	return joinPath(r.Collection, r.ID)
}

// Record returns the stored form of the reference.
func (r Ref) Record() store.Record {
	return store.Record{refCollectionKey: r.Collection, refIDKey: r.ID}
}

// refFromRecord recognizes the stored form. Integer ids are accepted and
// carried as decimal strings.
func refFromRecord(m map[string]any) (Ref, bool) {
	if len(m) != 2 {
		return Ref{}, false
	}
	coll, ok := m[refCollectionKey].(string)
	if !ok || coll == "" {
		return Ref{}, false
	}
	switch id := m[refIDKey].(type) {
	case string:
		return Ref{Collection: coll, ID: id}, id != ""
	case int64:
		return Ref{Collection: coll, ID: strconv.FormatInt(id, 10)}, true
	}
	return Ref{}, false
}

// scalarMember unwraps a collection member stored as {"$value": x}.
func scalarMember(rec store.Record) (any, bool) {
	if len(rec) != 1 {
		return nil, false
	}
	v, ok := rec[scalarValueKey]
	return v, ok
}
