package embcache

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kailas-cloud/crag/internal/domain"
)

func TestEmbed_MissThenHit(t *testing.T) {
	inner := &lengthEmbedder{tokens: 7}
	s := newMapStore()
	ce := newCached(t, inner, s)
	ctx := context.Background()

	first, err := ce.Embed(ctx, "Paris is the capital")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.TotalTokens != 7 || first.Embedding[0] != 20 {
		t.Fatalf("unexpected miss result: %+v", first)
	}

	second, err := ce.Embed(ctx, "Paris is the capital")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Повторный запрос из кеша: токены не тратятся
	if second.TotalTokens != 0 || second.Embedding[0] != 20 {
		t.Errorf("unexpected hit result: %+v", second)
	}
	if inner.calls != 1 {
		t.Errorf("expected one provider call, got %d", inner.calls)
	}
}

func TestEmbed_ProviderErrorIsNotCached(t *testing.T) {
	inner := &lengthEmbedder{err: domain.ErrEmbedding}
	s := newMapStore()
	ce := newCached(t, inner, s)

	if _, err := ce.Embed(context.Background(), "q"); !errors.Is(err, domain.ErrEmbedding) {
		t.Fatalf("expected ErrEmbedding, got %v", err)
	}
	if s.sets != 0 {
		t.Errorf("failed embeddings must not be stored, got %d sets", s.sets)
	}
}

func TestEmbed_StoreFailuresDegradeToProvider(t *testing.T) {
	inner := &lengthEmbedder{}
	s := newMapStore()
	s.failKey = "openai"
	s.setErr = errors.New("READONLY")
	ce := newCached(t, inner, s)

	res, err := ce.Embed(context.Background(), "abc")
	if err != nil {
		t.Fatalf("cache failures must not fail the call: %v", err)
	}
	if res.Embedding[0] != 3 || inner.calls != 1 {
		t.Errorf("expected provider vector, got %v after %d calls", res.Embedding, inner.calls)
	}
}

func TestEmbed_CorruptEntryIsAMiss(t *testing.T) {
	inner := &lengthEmbedder{}
	s := newMapStore()
	ce := newCached(t, inner, s)
	s.data[ce.cacheKey("abc")] = []byte{1, 2, 3}

	res, err := ce.Embed(context.Background(), "abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Embedding[0] != 3 || inner.calls != 1 {
		t.Errorf("expected re-embedding of a corrupt entry, got %v", res.Embedding)
	}
}

func TestBatchEmbed_OnlyMissesReachProvider(t *testing.T) {
	inner := &lengthEmbedder{tokens: 3}
	s := newMapStore()
	ce := newCached(t, inner, s)
	ctx := context.Background()

	if _, err := ce.Embed(ctx, "cached"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res, err := ce.BatchEmbed(ctx, []string{"a", "cached", "bb"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []float32{1, 6, 2}
	for i, w := range want {
		if res.Embeddings[i][0] != w {
			t.Errorf("embedding %d = %v, want %v", i, res.Embeddings[i], w)
		}
	}
	if len(inner.batchSizes) != 1 || inner.batchSizes[0] != 2 {
		t.Errorf("expected one provider batch of 2, got %v", inner.batchSizes)
	}
	if res.TotalTokens != 6 {
		t.Errorf("expected tokens for 2 misses, got %d", res.TotalTokens)
	}
}

func TestBatchEmbed_AllCachedSkipsProvider(t *testing.T) {
	inner := &lengthEmbedder{tokens: 1}
	s := newMapStore()
	ce := newCached(t, inner, s)
	ctx := context.Background()
	texts := []string{"x", "yy"}

	if _, err := ce.BatchEmbed(ctx, texts); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res, err := ce.BatchEmbed(ctx, texts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.batchCalls != 1 || res.TotalTokens != 0 {
		t.Errorf("second batch must be served from cache: calls=%d tokens=%d", inner.batchCalls, res.TotalTokens)
	}
}

func TestBatchEmbed_UsesMultiGet(t *testing.T) {
	inner := &lengthEmbedder{}
	s := &batchStore{mapStore: newMapStore()}
	ce := newCached(t, inner, s)

	if _, err := ce.BatchEmbed(context.Background(), []string{"a", "b", "c"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.batches != 1 || s.gets != 0 {
		t.Errorf("expected one MGET and no single reads, got batches=%d gets=%d", s.batches, s.gets)
	}
}

func TestBatchEmbed_ReadFailureTreatsBatchAsMisses(t *testing.T) {
	inner := &lengthEmbedder{}
	s := newMapStore()
	ce := newCached(t, inner, s)
	ctx := context.Background()
	if _, err := ce.Embed(ctx, "a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.failKey = "openai"

	res, err := ce.BatchEmbed(ctx, []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embeddings) != 2 || inner.batchSizes[0] != 2 {
		t.Errorf("expected both texts re-embedded, got sizes %v", inner.batchSizes)
	}
}

func TestBatchEmbed_ProviderError(t *testing.T) {
	inner := &lengthEmbedder{err: errors.New("api down")}
	ce := newCached(t, inner, newMapStore())

	_, err := ce.BatchEmbed(context.Background(), []string{"a"})
	if err == nil || !strings.Contains(err.Error(), "1 uncached texts") {
		t.Fatalf("expected wrapped provider error, got %v", err)
	}
}

func TestBatchEmbed_ShortProviderBatch(t *testing.T) {
	inner := &shortBatchEmbedder{}
	ce := newCached(t, inner, newMapStore())

	_, err := ce.BatchEmbed(context.Background(), []string{"a", "b"})
	if !errors.Is(err, domain.ErrEmbedding) {
		t.Fatalf("expected ErrEmbedding for a short batch, got %v", err)
	}
}

func TestBatchEmbed_Empty(t *testing.T) {
	inner := &lengthEmbedder{}
	ce := newCached(t, inner, newMapStore())

	res, err := ce.BatchEmbed(context.Background(), nil)
	if err != nil || res.Embeddings != nil || inner.batchCalls != 0 {
		t.Errorf("empty input must be a no-op, got %+v, %v", res, err)
	}
}

func TestCacheTotal_CountsHitsAndMisses(t *testing.T) {
	total := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_emb_cache_total"}, []string{"result"})
	ce := New(&lengthEmbedder{}, newMapStore(), "ns", total, nil)
	ctx := context.Background()

	for _, text := range []string{"a", "a", "b"} {
		if _, err := ce.Embed(ctx, text); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if got := testutil.ToFloat64(total.WithLabelValues("hit")); got != 1 {
		t.Errorf("hits = %v, want 1", got)
	}
	if got := testutil.ToFloat64(total.WithLabelValues("miss")); got != 2 {
		t.Errorf("misses = %v, want 2", got)
	}
}

func TestCacheKey_Layout(t *testing.T) {
	a := New(&lengthEmbedder{}, newMapStore(), "openai:m:8", nil, nil)
	b := New(&lengthEmbedder{}, newMapStore(), "openai:m:16", nil, nil)
	bare := New(&lengthEmbedder{}, newMapStore(), "", nil, nil)

	if a.cacheKey("text") == b.cacheKey("text") {
		t.Error("different vector spaces must not share keys")
	}
	if !strings.HasPrefix(a.cacheKey("text"), "crag:emb_cache:openai:m:8:") {
		t.Errorf("unexpected key layout: %s", a.cacheKey("text"))
	}
	if got := bare.cacheKey("text"); strings.Count(got, ":") != 2 {
		t.Errorf("bare namespace key should have no namespace segment: %s", got)
	}
}

func TestVectorBytesRoundTrip(t *testing.T) {
	vec, err := bytesToVector(vectorToCacheBytes([]float32{0.25, -1}))
	if err != nil || len(vec) != 2 || vec[0] != 0.25 || vec[1] != -1 {
		t.Fatalf("unexpected vector %v, %v", vec, err)
	}
	if _, err := bytesToVector([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for truncated data")
	}
}
