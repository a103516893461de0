package db

import (
	"context"
	"errors"
	"testing"
	"time"
)

type recordingKV struct {
	ttl     time.Duration
	plain   int
	pingErr error
	pings   int
}

func (r *recordingKV) Get(context.Context, string) ([]byte, error) { return nil, ErrKeyNotFound }
func (r *recordingKV) Set(context.Context, string, []byte) error {
	r.plain++
	return nil
}
func (r *recordingKV) SetWithTTL(_ context.Context, _ string, _ []byte, ttl time.Duration) error {
	r.ttl = ttl
	return nil
}
func (r *recordingKV) Del(context.Context, string) error { return nil }
func (r *recordingKV) Ping(context.Context) error {
	r.pings++
	return r.pingErr
}

func TestExpiring_UsesTTL(t *testing.T) {
	kv := &recordingKV{}
	if err := Expiring(kv, time.Hour).Set(context.Background(), "k", []byte("v")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if kv.ttl != time.Hour || kv.plain != 0 {
		t.Errorf("expected SetWithTTL(1h), got ttl=%s plain=%d", kv.ttl, kv.plain)
	}
}

func TestExpiring_ZeroTTL(t *testing.T) {
	kv := &recordingKV{}
	if got := Expiring(kv, 0); got != KVStore(kv) {
		t.Error("zero ttl must return the store unchanged")
	}
}

func TestWaitForReady(t *testing.T) {
	if err := WaitForReady(context.Background(), &recordingKV{}, time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	down := &recordingKV{pingErr: errors.New("connection refused")}
	err := WaitForReady(context.Background(), down, 150*time.Millisecond)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	var dbErr *Error
	if !errors.As(err, &dbErr) || dbErr.Op != OpPing {
		t.Errorf("expected *db.Error with op PING, got %v", err)
	}
	if down.pings < 2 {
		t.Errorf("expected repeated pings, got %d", down.pings)
	}
}

type mapGetter map[string]string

func (m mapGetter) Get(_ context.Context, key string) ([]byte, error) {
	if key == "broken" {
		return nil, &Error{Op: OpGet, Err: errors.New("io timeout")}
	}
	v, ok := m[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return []byte(v), nil
}

type batchGetter struct {
	mapGetter
	calls int
}

func (b *batchGetter) GetMany(_ context.Context, keys []string) ([][]byte, error) {
	b.calls++
	return make([][]byte, len(keys)), nil
}

func TestGetMany_FallsBackToGet(t *testing.T) {
	got, err := GetMany(context.Background(), mapGetter{"a": "1", "c": "3"}, []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 || string(got[0]) != "1" || got[1] != nil || string(got[2]) != "3" {
		t.Errorf("unexpected result: %q", got)
	}
}

func TestGetMany_AbortsOnStoreError(t *testing.T) {
	_, err := GetMany(context.Background(), mapGetter{"a": "1"}, []string{"a", "broken"})
	var dbErr *Error
	if !errors.As(err, &dbErr) || dbErr.Op != OpGet {
		t.Fatalf("expected *db.Error with op GET, got %v", err)
	}
}

func TestGetMany_PrefersMultiGetter(t *testing.T) {
	g := &batchGetter{mapGetter: mapGetter{"a": "1"}}
	if _, err := GetMany(context.Background(), g, []string{"a", "b"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.calls != 1 {
		t.Errorf("expected one batched read, got %d", g.calls)
	}
}

func TestExpiring_KeepsBatchedReads(t *testing.T) {
	g := &batchKV{}
	kv := Expiring(g, time.Minute)
	mg, ok := kv.(MultiGetter)
	if !ok {
		t.Fatal("expiring store must expose GetMany")
	}
	if _, err := mg.GetMany(context.Background(), []string{"x"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.batches != 1 {
		t.Errorf("expected GetMany to reach the backend, got %d", g.batches)
	}
}

type batchKV struct {
	recordingKV
	batches int
}

func (b *batchKV) GetMany(_ context.Context, keys []string) ([][]byte, error) {
	b.batches++
	return make([][]byte, len(keys)), nil
}
