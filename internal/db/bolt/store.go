// Package bolt implements db.Store on a local bbolt file, for the CLI cache.
package bolt

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/kailas-cloud/crag/internal/db"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

var bucketKV = []byte("kv")

// headerSize is the expiry prefix of every stored value: unix nanoseconds, 0 = never.
const headerSize = 8

// Store keeps key-value pairs in a single bbolt bucket.
type Store struct {
	db  *bbolt.DB
	now func() time.Time
}

// Open opens or creates the database file at path.
func Open(path string) (*Store, error) {
	bdb, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, &db.Error{Op: db.OpOpen, Err: fmt.Errorf("open bolt db %s: %w", path, err)}
	}

	err = bdb.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketKV); err != nil {
			return fmt.Errorf("create bucket %s: %w", bucketKV, err)
		}
		return nil
	})
	if err != nil {
		bdb.Close()
		return nil, &db.Error{Op: db.OpOpen, Err: err}
	}

	return &Store{db: bdb, now: time.Now}, nil
}

// Get retrieves a value by key. Expired entries are reported as missing.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(bucketKV).Get([]byte(key))
		if raw == nil || len(raw) < headerSize {
			return db.ErrKeyNotFound
		}
		if exp := int64(binary.BigEndian.Uint64(raw[:headerSize])); exp != 0 && s.now().UnixNano() >= exp {
			return db.ErrKeyNotFound
		}
		// raw is only valid inside the transaction.
		out = make([]byte, len(raw)-headerSize)
		copy(out, raw[headerSize:])
		return nil
	})
	if errors.Is(err, db.ErrKeyNotFound) {
		return nil, db.ErrKeyNotFound
	}
	if err != nil {
		return nil, &db.Error{Op: db.OpGet, Err: err}
	}
	return out, nil
}

// Set stores a value without expiration.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	return s.put(key, value, 0)
}

// SetWithTTL stores a value that expires after ttl.
func (s *Store) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	var exp int64
	if ttl > 0 {
		exp = s.now().Add(ttl).UnixNano()
	}
	return s.put(key, value, exp)
}

func (s *Store) put(key string, value []byte, expiresAt int64) error {
	buf := make([]byte, headerSize+len(value))
	binary.BigEndian.PutUint64(buf[:headerSize], uint64(expiresAt))
	copy(buf[headerSize:], value)

	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketKV).Put([]byte(key), buf)
	})
	if err != nil {
		return &db.Error{Op: db.OpSet, Err: err}
	}
	return nil
}

// Del removes a key.
func (s *Store) Del(_ context.Context, key string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketKV).Delete([]byte(key))
	})
	if err != nil {
		return &db.Error{Op: db.OpDel, Err: err}
	}
	return nil
}

// Purge deletes expired entries and returns how many were removed.
func (s *Store) Purge(_ context.Context) (int, error) {
	now := s.now().UnixNano()
	removed := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketKV).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if len(v) < headerSize {
				continue
			}
			if exp := int64(binary.BigEndian.Uint64(v[:headerSize])); exp != 0 && now >= exp {
				if err := c.Delete(); err != nil {
					return err
				}
				removed++
			}
		}
		return nil
	})
	if err != nil {
		return 0, &db.Error{Op: db.OpDel, Err: err}
	}
	return removed, nil
}

// Ping checks that the file is still open.
func (s *Store) Ping(_ context.Context) error {
	if err := s.db.View(func(*bbolt.Tx) error { return nil }); err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	return nil
}

// Close closes the database file.
func (s *Store) Close() {
	_ = s.db.Close()
}

// WaitForReady returns immediately; the file is ready once Open succeeds.
func (s *Store) WaitForReady(ctx context.Context, _ time.Duration) error {
	return s.Ping(ctx)
}
