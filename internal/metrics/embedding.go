package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// EmbeddingAPIError is a transport or provider-side failure.
	EmbeddingAPIError = "api_error"
	// EmbeddingCountMismatch is a response with a different number of vectors than inputs.
	EmbeddingCountMismatch = "count_mismatch"
)

var (
	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_requests_total",
			Help:      "Embedding provider round trips by outcome",
		},
		[]string{"provider", "model", "status"},
	)

	EmbeddingRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "embedding_request_duration_seconds",
			Help:      "Embedding provider round-trip latency",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"provider", "model", "status"},
	)

	// EmbeddingBatchTexts is the number of texts sent in one provider request.
	// Chunk-heavy uploads show up here before they show up in latency.
	EmbeddingBatchTexts = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "embedding_batch_texts",
			Help:      "Texts per embedding provider request",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		},
		[]string{"provider", "model"},
	)

	EmbeddingTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_tokens_total",
			Help:      "Embedding tokens billed by the provider",
		},
		[]string{"provider", "model", "type"},
	)

	EmbeddingErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_errors_total",
			Help:      "Embedding provider failures by cause",
		},
		[]string{"provider", "model", "error_type"},
	)

	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_cache_total",
			Help:      "Embedding cache lookups",
		},
		[]string{"result"}, // hit | miss
	)
)

// EmbeddingCall is one provider round trip.
type EmbeddingCall struct {
	Provider     string
	Model        string
	Texts        int
	Duration     time.Duration
	PromptTokens int
	TotalTokens  int
	ErrorType    string // empty on success
}

// Record updates the embedding collectors for c.
func (c EmbeddingCall) Record() {
	status := "success"
	if c.ErrorType != "" {
		status = "error"
		EmbeddingErrorsTotal.WithLabelValues(c.Provider, c.Model, c.ErrorType).Inc()
	}
	EmbeddingRequestsTotal.WithLabelValues(c.Provider, c.Model, status).Inc()
	EmbeddingRequestDuration.WithLabelValues(c.Provider, c.Model, status).Observe(c.Duration.Seconds())
	EmbeddingBatchTexts.WithLabelValues(c.Provider, c.Model).Observe(float64(c.Texts))

	if c.TotalTokens > 0 {
		EmbeddingTokensTotal.WithLabelValues(c.Provider, c.Model, "prompt").Add(float64(c.PromptTokens))
		EmbeddingTokensTotal.WithLabelValues(c.Provider, c.Model, "total").Add(float64(c.TotalTokens))
	}
}
