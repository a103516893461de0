package embedding

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kailas-cloud/crag/internal/domain"
)

var errProvider = errors.New("provider unavailable")

// byteEmbedder maps each text to a vector holding its first byte.
type byteEmbedder struct {
	err    error
	tokens int
	sizes  []int
	onCall func()
}

func (b *byteEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	if b.err != nil {
		return domain.EmbeddingResult{}, b.err
	}
	return domain.EmbeddingResult{Embedding: []float32{float32(text[0])}, TotalTokens: b.tokens}, nil
}

func (b *byteEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	b.sizes = append(b.sizes, len(texts))
	if b.onCall != nil {
		b.onCall()
	}
	if b.err != nil {
		return domain.BatchEmbeddingResult{}, b.err
	}
	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, len(texts))}
	for i, t := range texts {
		out.Embeddings[i] = []float32{float32(t[0])}
		out.TotalTokens += b.tokens
	}
	return out, nil
}

// singleEmbedder has no batch API.
type singleEmbedder struct {
	calls int
}

func (s *singleEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	s.calls++
	return domain.EmbeddingResult{Embedding: []float32{float32(len(text))}}, nil
}

// droppingEmbedder loses the last vector of every batch.
type droppingEmbedder struct{ byteEmbedder }

func (d *droppingEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	res, err := d.byteEmbedder.BatchEmbed(ctx, texts)
	res.Embeddings = res.Embeddings[:len(res.Embeddings)-1]
	return res, err
}

type checkedEmbedder struct {
	singleEmbedder
	err error
}

func (c *checkedEmbedder) HealthCheck(context.Context) error { return c.err }

func TestEmbed(t *testing.T) {
	p := NewInstrumentedEmbedder(&byteEmbedder{tokens: 4}, "openai", "m", zap.NewNop())

	res, err := p.Embed(context.Background(), "capital")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Embedding[0] != 'c' || res.TotalTokens != 4 {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestEmbed_ErrorIsLoggedAndWrapped(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	p := NewInstrumentedEmbedder(&byteEmbedder{err: errProvider}, "openai", "m", zap.New(core))

	_, err := p.Embed(context.Background(), "q")
	if !errors.Is(err, errProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}
	entries := logs.FilterMessage("Embedding request failed").All()
	if len(entries) != 1 || entries[0].ContextMap()["provider"] != "openai" {
		t.Errorf("expected one failure log tagged with provider, got %+v", entries)
	}
}

func TestBatchEmbed_SubBatches(t *testing.T) {
	tests := []struct {
		name  string
		max   int
		texts []string
		sizes []int
	}{
		{"fits one request", 0, []string{"a", "b", "c"}, []int{3}},
		{"exact multiple", 2, []string{"a", "b", "c", "d"}, []int{2, 2}},
		{"remainder", 2, []string{"a", "b", "c", "d", "e"}, []int{2, 2, 1}},
		{"one per request", 1, []string{"x", "y"}, []int{1, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inner := &byteEmbedder{tokens: 1}
			p := NewInstrumentedEmbedder(inner, "openai", "m", nil).WithMaxBatchSize(tt.max)

			res, err := p.BatchEmbed(context.Background(), tt.texts)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(inner.sizes) != len(tt.sizes) {
				t.Fatalf("sub-batches = %v, want %v", inner.sizes, tt.sizes)
			}
			for i := range tt.sizes {
				if inner.sizes[i] != tt.sizes[i] {
					t.Fatalf("sub-batches = %v, want %v", inner.sizes, tt.sizes)
				}
			}
			for i, vec := range res.Embeddings {
				if vec[0] != float32(tt.texts[i][0]) {
					t.Errorf("embedding %d out of order: %v", i, vec)
				}
			}
			if res.TotalTokens != len(tt.texts) {
				t.Errorf("tokens = %d, want %d", res.TotalTokens, len(tt.texts))
			}
		})
	}
}

func TestBatchEmbed_Empty(t *testing.T) {
	inner := &byteEmbedder{}
	res, err := NewInstrumentedEmbedder(inner, "openai", "m", nil).BatchEmbed(context.Background(), nil)
	if err != nil || res.Embeddings != nil || len(inner.sizes) != 0 {
		t.Fatalf("empty input must not reach the provider: %+v, %v", res, err)
	}
}

func TestBatchEmbed_PerTextFallback(t *testing.T) {
	inner := &singleEmbedder{}
	res, err := NewInstrumentedEmbedder(inner, "openai", "m", nil).BatchEmbed(context.Background(), []string{"a", "bb"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 2 || res.Embeddings[1][0] != 2 {
		t.Errorf("expected per-text calls, got %d calls, %v", inner.calls, res.Embeddings)
	}
}

func TestBatchEmbed_ProviderError(t *testing.T) {
	p := NewInstrumentedEmbedder(&byteEmbedder{err: errProvider}, "openai", "m", nil)
	if _, err := p.BatchEmbed(context.Background(), []string{"a"}); !errors.Is(err, errProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestBatchEmbed_ShortResponse(t *testing.T) {
	p := NewInstrumentedEmbedder(&droppingEmbedder{}, "openai", "m", nil)
	if _, err := p.BatchEmbed(context.Background(), []string{"a", "b"}); !errors.Is(err, domain.ErrEmbedding) {
		t.Fatalf("expected ErrEmbedding, got %v", err)
	}
}

func TestBatchEmbed_StopsBetweenSubBatchesOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	inner := &byteEmbedder{onCall: cancel}
	p := NewInstrumentedEmbedder(inner, "openai", "m", nil).WithMaxBatchSize(1)

	_, err := p.BatchEmbed(ctx, []string{"a", "b", "c"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(inner.sizes) != 1 {
		t.Errorf("expected to stop after the first request, got %v", inner.sizes)
	}
}

func TestHealthCheck(t *testing.T) {
	down := NewInstrumentedEmbedder(&checkedEmbedder{err: errProvider}, "openai", "m", nil)
	if err := down.HealthCheck(context.Background()); !errors.Is(err, errProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}

	plain := NewInstrumentedEmbedder(&singleEmbedder{}, "openai", "m", nil)
	if err := plain.HealthCheck(context.Background()); err != nil {
		t.Fatalf("embedder without health check must be healthy, got %v", err)
	}
}
