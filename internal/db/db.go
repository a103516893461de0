// Package db defines the key-value storage contracts shared by the cache backends.
package db

import (
	"context"
	"errors"
	"time"
)

// Store is the database facade implemented by every backend.
type Store interface {
	Pinger
	KVStore
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// KVStore provides simple key-value operations.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// MultiGetter is implemented by stores that can read several keys in one round trip.
// The result is aligned with keys; a missing key yields a nil entry.
type MultiGetter interface {
	GetMany(ctx context.Context, keys []string) ([][]byte, error)
}

// Getter is the read half of KVStore.
type Getter interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// GetMany reads keys through g's MultiGetter when available, otherwise key by key.
// Per-key misses are nil entries. A per-key failure other than ErrKeyNotFound aborts the read.
func GetMany(ctx context.Context, g Getter, keys []string) ([][]byte, error) {
	if mg, ok := g.(MultiGetter); ok {
		return mg.GetMany(ctx, keys) //nolint:wrapcheck // backend already returns *Error
	}
	out := make([][]byte, len(keys))
	for i, k := range keys {
		data, err := g.Get(ctx, k)
		if errors.Is(err, ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[i] = data
	}
	return out, nil
}

// Expiring makes every Set of kv expire after ttl. A non-positive ttl returns kv's own Set.
func Expiring(kv KVStore, ttl time.Duration) KVStore {
	if ttl <= 0 {
		return kv
	}
	return &expiringKV{KVStore: kv, ttl: ttl}
}

type expiringKV struct {
	KVStore
	ttl time.Duration
}

func (e *expiringKV) GetMany(ctx context.Context, keys []string) ([][]byte, error) {
	return GetMany(ctx, e.KVStore, keys)
}

func (e *expiringKV) Set(ctx context.Context, key string, value []byte) error {
	return e.SetWithTTL(ctx, key, value, e.ttl)
}

// WaitForReady polls p until it answers or timeout expires.
func WaitForReady(ctx context.Context, p Pinger, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if p.Ping(ctx) == nil {
		return nil
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return &Error{Op: OpPing, Err: ctx.Err()}
		case <-ticker.C:
			if err := p.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}
