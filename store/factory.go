package store

import (
	"context"
	"fmt"
)

// Open connects to the backend named by the descriptor scheme:
//
//	memory://localhost/<name>
//	sqlite:///<relative/path.db>    (sqlite:////abs/path.db, sqlite:///:memory:)
//	bolt:///<relative/path.db>
//	dynamodb://[key:secret@][host:port]/<table>?region=...&shards=...&create=true
func Open(ctx context.Context, d Descriptor) (Database, error) {
	switch d.Scheme {
	case "memory", "mem":
		return NewMemoryStore(d.Database), nil
	case "sqlite", "sqlite3":
		if d.Database == "" {
			return nil, fmt.Errorf("%w: sqlite needs a file path in %s", ErrInvalidDescriptor, d)
		}
		return NewSqliteStore(d.Database)
	case "bolt", "bbolt":
		if d.Database == "" {
			return nil, fmt.Errorf("%w: bolt needs a file path in %s", ErrInvalidDescriptor, d)
		}
		return NewBoltStore(d.Database)
	case "dynamodb", "dynamo":
		return OpenDynamo(ctx, d)
	}
	return nil, fmt.Errorf("%w: %q in %s", ErrUnknownScheme, d.Scheme, d)
}

// OpenURL parses raw and opens the backend it names.
func OpenURL(ctx context.Context, raw string) (Database, error) {
	d, err := ParseDescriptor(raw)
	if err != nil {
		return nil, err
	}
	return Open(ctx, d)
}
