package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SqliteStore stores all collections in a single SQLite database.
//
// Tables:
//
//	documents(collection, id, data)  PRIMARY KEY (collection, id)
//
// data holds the msgpack-encoded record, as in the bolt backend.
type SqliteStore struct {
	name string
	db   *sql.DB
}

// NewSqliteStore opens (or creates) the database file at dbPath.
// ":memory:" gives a private in-memory database.
func NewSqliteStore(dbPath string) (*SqliteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	// One connection: an in-memory database is private to its connection and
	// SQLite serializes writers anyway.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS documents (
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		data BLOB NOT NULL,
		PRIMARY KEY (collection, id)
	)`); err != nil {
		db.Close()
		return nil, err
	}
	return &SqliteStore{name: filepath.Base(dbPath), db: db}, nil
}

// Name returns the database file name.
func (s *SqliteStore) Name() string { return s.name }

// Close closes the database.
func (s *SqliteStore) Close() error {
	return s.db.Close()
}

// Collection returns a handle on the named collection.
func (s *SqliteStore) Collection(name string) Collection {
	return &sqliteCollection{db: s.db, name: name}
}

// CollectionNames returns the distinct collection names holding documents.
func (s *SqliteStore) CollectionNames(ctx context.Context, exclude ...string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT collection FROM documents ORDER BY collection")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		if !contains(exclude, name) {
			names = append(names, name)
		}
	}
	return names, rows.Err()
}

type sqliteCollection struct {
	db   *sql.DB
	name string
}

func (c *sqliteCollection) Name() string { return c.name }

func (c *sqliteCollection) FindOne(ctx context.Context, id string) (Record, error) {
	var raw []byte
	err := c.db.QueryRowContext(ctx,
		"SELECT data FROM documents WHERE collection = ? AND id = ?",
		c.name, id,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rec, err := decodeRecord(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s/%s: %w", c.name, id, err)
	}
	return rec, nil
}

func (c *sqliteCollection) Find(ctx context.Context, filter Filter) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, "SELECT id, data FROM documents WHERE collection = ?", c.name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := []string{}
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		if len(filter) > 0 {
			doc, err := decodeRecord(raw)
			if err != nil {
				return nil, fmt.Errorf("decode %s/%s: %w", c.name, id, err)
			}
			if !Match(doc, filter) {
				continue
			}
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, rows.Err()
}

func (c *sqliteCollection) UpdateOne(ctx context.Context, id string, patch Record) error {
	if id == "" {
		return ErrInvalidID
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var current Record
	var raw []byte
	err = tx.QueryRowContext(ctx,
		"SELECT data FROM documents WHERE collection = ? AND id = ?",
		c.name, id,
	).Scan(&raw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return err
	default:
		if current, err = decodeRecord(raw); err != nil {
			return fmt.Errorf("decode %s/%s: %w", c.name, id, err)
		}
	}

	b, err := encodeRecord(Apply(current, patch))
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO documents (collection, id, data) VALUES (?, ?, ?)
		 ON CONFLICT(collection, id) DO UPDATE SET data = excluded.data`,
		c.name, id, b,
	); err != nil {
		return err
	}
	return tx.Commit()
}

func (c *sqliteCollection) DeleteOne(ctx context.Context, id string) error {
	_, err := c.db.ExecContext(ctx,
		"DELETE FROM documents WHERE collection = ? AND id = ?",
		c.name, id,
	)
	return err
}

func (c *sqliteCollection) DistinctIDs(ctx context.Context) ([]string, error) {
	return c.Find(ctx, nil)
}

func (c *sqliteCollection) Drop(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, "DELETE FROM documents WHERE collection = ?", c.name)
	return err
}
