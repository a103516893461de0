package embcache

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/crag/internal/db"
	"github.com/kailas-cloud/crag/internal/domain"
)

// lengthEmbedder maps a text to a one-dimensional vector holding its length.
type lengthEmbedder struct {
	err        error
	tokens     int
	calls      int
	batchCalls int
	batchSizes []int
}

func (e *lengthEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	e.calls++
	if e.err != nil {
		return domain.EmbeddingResult{}, e.err
	}
	return domain.EmbeddingResult{
		Embedding:    []float32{float32(len(text))},
		PromptTokens: e.tokens,
		TotalTokens:  e.tokens,
	}, nil
}

func (e *lengthEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	e.batchCalls++
	e.batchSizes = append(e.batchSizes, len(texts))
	if e.err != nil {
		return domain.BatchEmbeddingResult{}, e.err
	}
	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, len(texts))}
	for i, text := range texts {
		out.Embeddings[i] = []float32{float32(len(text))}
		out.PromptTokens += e.tokens
		out.TotalTokens += e.tokens
	}
	return out, nil
}

// shortBatchEmbedder drops the last vector of every batch.
type shortBatchEmbedder struct{ lengthEmbedder }

func (e *shortBatchEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	res, err := e.lengthEmbedder.BatchEmbed(ctx, texts)
	if err == nil && len(res.Embeddings) > 0 {
		res.Embeddings = res.Embeddings[:len(res.Embeddings)-1]
	}
	return res, err
}

// mapStore is a map-backed cache. Keys containing failKey fail on read.
type mapStore struct {
	data    map[string][]byte
	failKey string
	setErr  error
	gets    int
	sets    int
}

func newMapStore() *mapStore { return &mapStore{data: map[string][]byte{}} }

func (s *mapStore) Get(_ context.Context, key string) ([]byte, error) {
	s.gets++
	if s.failKey != "" && strings.Contains(key, s.failKey) {
		return nil, &db.Error{Op: db.OpGet, Err: context.DeadlineExceeded}
	}
	v, ok := s.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (s *mapStore) Set(_ context.Context, key string, value []byte) error {
	s.sets++
	if s.setErr != nil {
		return s.setErr
	}
	s.data[key] = value
	return nil
}

// batchStore also answers GetMany, the way the Redis backend does.
type batchStore struct {
	*mapStore
	batches int
}

func (s *batchStore) GetMany(_ context.Context, keys []string) ([][]byte, error) {
	s.batches++
	out := make([][]byte, len(keys))
	for i, k := range keys {
		out[i] = s.data[k]
	}
	return out, nil
}

func newCached(t *testing.T, inner domain.Embedder, s store) *CachedEmbedder {
	t.Helper()
	return New(inner, s, "openai:text-embedding-3-small:1536", nil, zap.NewNop())
}
