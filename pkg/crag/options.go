package crag

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/crag/internal/domain"
	openaiTransport "github.com/kailas-cloud/crag/internal/transport/openai"
	"github.com/kailas-cloud/crag/internal/transport/websearch"
	generationuc "github.com/kailas-cloud/crag/internal/usecase/generation"
)

const (
	openAIProvider    = "openai"
	defaultSearchWait = 30 * time.Second
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	embedder      domain.Embedder
	queryEmbedder domain.Embedder
	generator     domain.Generator
	searcher      domain.WebSearcher
	judge         Judge

	config Config

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithEmbedder sets the embedding provider used for fragments and questions.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = wrapEmbedder(e)
	})
}

// WithQueryEmbedder sets a separate embedding provider for questions.
// Useful for instruction-tuned models that expect different query prefixes.
func WithQueryEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.queryEmbedder = wrapEmbedder(e)
	})
}

// WithGenerator sets the completion provider used for judging and synthesis.
func WithGenerator(g Generator) Option {
	return optionFunc(func(c *clientConfig) {
		c.generator = wrapGenerator(g)
	})
}

// WithSearcher sets the web search fallback.
func WithSearcher(s WebSearcher) Option {
	return optionFunc(func(c *clientConfig) {
		c.searcher = s
	})
}

// WithJudge replaces the generator-backed relevance judge.
func WithJudge(j Judge) Option {
	return optionFunc(func(c *clientConfig) {
		c.judge = j
	})
}

// WithOpenAI configures embedding and generation against an OpenAI-compatible API.
// baseURL may be empty for api.openai.com. Generation is retried with backoff.
func WithOpenAI(apiKey, baseURL, embeddingModel, generationModel string) Option {
	return optionFunc(func(c *clientConfig) {
		nop := zap.NewNop()
		c.embedder = openaiTransport.NewEmbedder(&openaiTransport.Config{
			APIKey:   apiKey,
			BaseURL:  baseURL,
			Model:    embeddingModel,
			Provider: openAIProvider,
			Logger:   nop,
		})
		base := openaiTransport.NewGenerator(&openaiTransport.Config{
			APIKey:   apiKey,
			BaseURL:  baseURL,
			Model:    generationModel,
			Provider: openAIProvider,
			Logger:   nop,
		})
		c.generator = generationuc.NewRetryingGenerator(base, openAIProvider, nop)
	})
}

// WithTavily configures the Tavily web search API as the fallback.
func WithTavily(apiKey string) Option {
	return optionFunc(func(c *clientConfig) {
		c.searcher = websearch.NewClient(&websearch.Config{
			APIKey:  apiKey,
			Timeout: defaultSearchWait,
			Logger:  zap.NewNop(),
		})
	})
}

// WithConfig sets the default pipeline configuration for Ask.
// Defaults to DefaultConfig().
func WithConfig(cfg Config) Option {
	return optionFunc(func(c *clientConfig) {
		c.config = cfg
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
