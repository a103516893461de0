package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/kailas-cloud/crag/internal/domain"
	"github.com/kailas-cloud/crag/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.Register()
	os.Exit(m.Run())
}

type embeddingRow struct {
	Object    string    `json:"object"`
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

// newEmbeddingServer answers /embeddings with rows built from the request inputs.
func newEmbeddingServer(t *testing.T, handler func(input []string) (int, any)) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var req struct {
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		status, body := handler(req.Input)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(server.Close)
	return server
}

func embeddingList(tokens int, rows ...embeddingRow) map[string]any {
	return map[string]any{
		"object": "list",
		"model":  "emb-test",
		"data":   rows,
		"usage":  map[string]any{"prompt_tokens": tokens, "total_tokens": tokens},
	}
}

func newTestEmbedder(url string) *Embedder {
	return NewEmbedder(&Config{
		APIKey:     "test-key",
		BaseURL:    url,
		Model:      "emb-test",
		Dimensions: 3,
		Provider:   "test",
		Logger:     zap.NewNop(),
	})
}

func TestEmbedder_Embed(t *testing.T) {
	server := newEmbeddingServer(t, func(input []string) (int, any) {
		if len(input) != 1 || input[0] != "Paris is the capital of France" {
			t.Errorf("unexpected input: %v", input)
		}
		return http.StatusOK, embeddingList(6, embeddingRow{Object: "embedding", Embedding: []float32{0.1, 0.2, 0.3}})
	})

	res, err := newTestEmbedder(server.URL).Embed(context.Background(), "Paris is the capital of France")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(res.Embedding) != 3 || res.Embedding[2] != 0.3 {
		t.Errorf("unexpected vector: %v", res.Embedding)
	}
	if res.PromptTokens != 6 || res.TotalTokens != 6 {
		t.Errorf("unexpected usage: %+v", res)
	}
}

func TestEmbedder_EmbedEmptyResponse(t *testing.T) {
	server := newEmbeddingServer(t, func([]string) (int, any) {
		return http.StatusOK, embeddingList(0)
	})

	_, err := newTestEmbedder(server.URL).Embed(context.Background(), "q")
	if !errors.Is(err, domain.ErrEmbedding) {
		t.Fatalf("expected ErrEmbedding, got %v", err)
	}
}

func TestEmbedder_BatchEmbedRestoresOrder(t *testing.T) {
	server := newEmbeddingServer(t, func(input []string) (int, any) {
		// Ответ в обратном порядке
		rows := make([]embeddingRow, len(input))
		for i := range input {
			j := len(input) - 1 - i
			rows[i] = embeddingRow{Object: "embedding", Embedding: []float32{float32(j)}, Index: j}
		}
		return http.StatusOK, embeddingList(4*len(input), rows...)
	})

	res, err := newTestEmbedder(server.URL).BatchEmbed(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("BatchEmbed failed: %v", err)
	}
	for i, vec := range res.Embeddings {
		if vec[0] != float32(i) {
			t.Errorf("embedding %d = %v, out of order", i, vec)
		}
	}
	if res.TotalTokens != 12 {
		t.Errorf("expected TotalTokens=12, got %d", res.TotalTokens)
	}
}

func TestEmbedder_BatchEmbedEmpty(t *testing.T) {
	res, err := newTestEmbedder("http://unused").BatchEmbed(context.Background(), nil)
	if err != nil || res.Embeddings != nil {
		t.Fatalf("expected no request for empty input, got %+v, %v", res, err)
	}
}

func TestEmbedder_BatchEmbedCountMismatch(t *testing.T) {
	server := newEmbeddingServer(t, func([]string) (int, any) {
		return http.StatusOK, embeddingList(2, embeddingRow{Object: "embedding", Embedding: []float32{1}})
	})
	mismatches := metrics.EmbeddingErrorsTotal.WithLabelValues("test", "emb-test", metrics.EmbeddingCountMismatch)
	before := testutil.ToFloat64(mismatches)

	_, err := newTestEmbedder(server.URL).BatchEmbed(context.Background(), []string{"a", "b"})
	if !errors.Is(err, domain.ErrEmbedding) {
		t.Fatalf("expected ErrEmbedding, got %v", err)
	}
	if got := testutil.ToFloat64(mismatches) - before; got != 1 {
		t.Errorf("expected one count_mismatch error recorded, got %v", got)
	}
}

func TestEmbedder_RateLimited(t *testing.T) {
	server := newEmbeddingServer(t, func([]string) (int, any) {
		return http.StatusTooManyRequests, map[string]any{
			"error": map[string]any{"message": "rate limit exceeded", "type": "rate_limit_error"},
		}
	})

	_, err := newTestEmbedder(server.URL).Embed(context.Background(), "q")
	if !errors.Is(err, domain.ErrEmbedding) || !errors.Is(err, domain.ErrRateLimited) {
		t.Errorf("expected ErrEmbedding and ErrRateLimited, got %v", err)
	}
}

func TestEmbedder_DetailBody(t *testing.T) {
	server := newEmbeddingServer(t, func([]string) (int, any) {
		return http.StatusBadRequest, map[string]any{"detail": "model not found"}
	})

	_, err := newTestEmbedder(server.URL).Embed(context.Background(), "q")
	if !errors.Is(err, domain.ErrEmbedding) {
		t.Fatalf("expected ErrEmbedding, got %v", err)
	}
	if !strings.Contains(err.Error(), "model not found") {
		t.Errorf("expected detail in error, got %v", err)
	}
}

func TestEmbedder_CancelledContext(t *testing.T) {
	server := newEmbeddingServer(t, func([]string) (int, any) {
		return http.StatusOK, embeddingList(1, embeddingRow{Embedding: []float32{1}})
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestEmbedder(server.URL).Embed(ctx, "q")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if errors.Is(err, domain.ErrEmbedding) {
		t.Error("cancellation must not be reported as a provider failure")
	}
}

func TestStatusKind(t *testing.T) {
	tests := []struct {
		status    int
		limited   bool
		permanent bool
	}{
		{http.StatusBadRequest, false, true},
		{http.StatusUnauthorized, false, true},
		{http.StatusNotFound, false, true},
		{http.StatusRequestTimeout, false, false},
		{http.StatusConflict, false, false},
		{http.StatusTooManyRequests, true, false},
		{http.StatusInternalServerError, false, false},
		{http.StatusServiceUnavailable, false, false},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			err := statusKind(tt.status, domain.ErrEmbedding)
			if !errors.Is(err, domain.ErrEmbedding) {
				t.Fatalf("kind lost: %v", err)
			}
			if got := errors.Is(err, domain.ErrRateLimited); got != tt.limited {
				t.Errorf("rate limited = %v, want %v", got, tt.limited)
			}
			if got := errors.Is(err, domain.ErrPermanent); got != tt.permanent {
				t.Errorf("permanent = %v, want %v", got, tt.permanent)
			}
		})
	}
}
