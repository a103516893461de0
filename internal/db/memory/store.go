// Package memory implements db.Store in process memory via go-cache.
package memory

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/kailas-cloud/crag/internal/db"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

// Store keeps values in a go-cache instance. Values are copied on the way in and out.
type Store struct {
	cache *cache.Cache
}

// NewStore creates a store whose entries expire after defaultTTL (0 = never)
// and are purged every cleanupInterval.
func NewStore(defaultTTL, cleanupInterval time.Duration) *Store {
	if defaultTTL <= 0 {
		defaultTTL = cache.NoExpiration
	}
	return &Store{cache: cache.New(defaultTTL, cleanupInterval)}
}

// Get retrieves a value by key.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	x, found := s.cache.Get(key)
	if !found {
		return nil, db.ErrKeyNotFound
	}
	return clone(x.([]byte)), nil
}

// Set stores a value with the default expiration.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	s.cache.Set(key, clone(value), cache.DefaultExpiration)
	return nil
}

// SetWithTTL stores a value with an explicit expiration.
func (s *Store) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.cache.Set(key, clone(value), ttl)
	return nil
}

// Del removes a key.
func (s *Store) Del(_ context.Context, key string) error {
	s.cache.Delete(key)
	return nil
}

// Len returns the number of stored entries, expired ones included until purged.
func (s *Store) Len() int { return s.cache.ItemCount() }

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Close drops all entries.
func (s *Store) Close() { s.cache.Flush() }

// WaitForReady returns immediately.
func (s *Store) WaitForReady(context.Context, time.Duration) error { return nil }

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
