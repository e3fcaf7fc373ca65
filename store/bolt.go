package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"
)

// BoltStore keeps each collection in its own bbolt bucket. Values are
// msgpack-encoded records keyed by document id.
type BoltStore struct {
	name string
	db   *bolt.DB
}

// NewBoltStore opens (or creates) the bbolt file at filePath.
func NewBoltStore(filePath string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return nil, fmt.Errorf("create directory for %q: %w", filePath, err)
	}
	db, err := bolt.Open(filePath, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", filePath, err)
	}
	name := strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath))
	return &BoltStore{name: name, db: db}, nil
}

// Name returns the file name without extension.
func (s *BoltStore) Name() string { return s.name }

// Close closes the underlying file.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Collection returns a handle on the named bucket.
func (s *BoltStore) Collection(name string) Collection {
	return &boltCollection{db: s.db, name: name, bucket: []byte(name)}
}

// CollectionNames lists non-empty buckets.
func (s *BoltStore) CollectionNames(_ context.Context, exclude ...string) ([]string, error) {
	var names []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.ForEach(func(name []byte, b *bolt.Bucket) error {
			if b.Stats().KeyN > 0 && !contains(exclude, string(name)) {
				names = append(names, string(name))
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

type boltCollection struct {
	db     *bolt.DB
	name   string
	bucket []byte
}

func (c *boltCollection) Name() string { return c.name }

func (c *boltCollection) FindOne(_ context.Context, id string) (Record, error) {
	var rec Record
	err := c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(c.bucket)
		if b == nil {
			return ErrNotFound
		}
		data := b.Get([]byte(id))
		if data == nil {
			return ErrNotFound
		}
		var err error
		rec, err = decodeRecord(data)
		return err
	})
	return rec, err
}

func (c *boltCollection) Find(_ context.Context, filter Filter) ([]string, error) {
	ids := []string{}
	err := c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(c.bucket)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			if len(filter) > 0 {
				rec, err := decodeRecord(v)
				if err != nil {
					return fmt.Errorf("decode %s/%s: %w", c.name, k, err)
				}
				if !Match(rec, filter) {
					return nil
				}
			}
			ids = append(ids, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

func (c *boltCollection) UpdateOne(_ context.Context, id string, patch Record) error {
	if id == "" || c.name == "" {
		return ErrInvalidID
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(c.bucket)
		if err != nil {
			return err
		}
		var current Record
		if data := b.Get([]byte(id)); data != nil {
			if current, err = decodeRecord(data); err != nil {
				return fmt.Errorf("decode %s/%s: %w", c.name, id, err)
			}
		}
		data, err := encodeRecord(Apply(current, patch))
		if err != nil {
			return err
		}
		return b.Put([]byte(id), data)
	})
}

func (c *boltCollection) DeleteOne(_ context.Context, id string) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(c.bucket)
		if b == nil {
			return nil
		}
		return b.Delete([]byte(id))
	})
}

func (c *boltCollection) DistinctIDs(ctx context.Context) ([]string, error) {
	return c.Find(ctx, nil)
}

func (c *boltCollection) Drop(_ context.Context) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		err := tx.DeleteBucket(c.bucket)
		if errors.Is(err, bolt.ErrBucketNotFound) {
			return nil
		}
		return err
	})
}
