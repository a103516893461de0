package crag

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/crag/internal/domain"
	"github.com/kailas-cloud/crag/internal/usecase/chunk"
	healthuc "github.com/kailas-cloud/crag/internal/usecase/health"
	pipelineuc "github.com/kailas-cloud/crag/internal/usecase/pipeline"
)

// Внутренний интерфейс для подмены в тестах.
type pipelineRunner interface {
	RunWithConfig(ctx context.Context, question, documentText string, cfg domain.PipelineConfig) (domain.Answer, error)
}

// Client answers questions over documents with a fixed set of capabilities.
// It is safe for concurrent use.
type Client struct {
	runner    pipelineRunner
	cfg       Config
	healthSvc healthUseCase
	obs       *observer
}

// New creates a Client. An embedder, a generator and a web searcher are required.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{config: DefaultConfig()}
	for _, o := range opts {
		o.apply(cfg)
	}
	cfg.config = cfg.config.over(DefaultConfig())

	if err := cfg.config.toDomain().WithDefaults().Validate(); err != nil {
		return nil, fmt.Errorf("crag: invalid config: %w", err)
	}

	svc, err := newService(capabilities{
		embedder:      cfg.embedder,
		queryEmbedder: cfg.queryEmbedder,
		generator:     cfg.generator,
		searcher:      cfg.searcher,
		judge:         cfg.judge,
	})
	if err != nil {
		return nil, err
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	health := healthuc.New(nil).
		With(healthuc.ComponentEmbedding, checkerOf(cfg.embedder)).
		With(healthuc.ComponentGeneration, checkerOf(cfg.generator)).
		With(healthuc.ComponentSearch, checkerOf(cfg.searcher))

	return &Client{
		runner:    svc,
		cfg:       configFromDomain(cfg.config.toDomain().WithDefaults()),
		healthSvc: health,
		obs:       obs,
	}, nil
}

// Config returns the default configuration used by Ask.
func (c *Client) Config() Config { return c.cfg }

// Ask answers question from the given documents. Each document is
// introduced by its name so fragments can be traced back via Fragment.Source.
// Without documents the answer comes from the web search fallback.
func (c *Client) Ask(ctx context.Context, question string, docs ...Document) (Answer, error) {
	corpus := ""
	if len(docs) > 0 {
		corpus = chunk.ComposeCorpus(documentsToDomain(docs))
	}
	return c.run(ctx, "ask", question, corpus, c.cfg)
}

// AskText answers question from a single unnamed text.
func (c *Client) AskText(ctx context.Context, question, text string) (Answer, error) {
	return c.run(ctx, "ask_text", question, text, c.cfg)
}

// AskWithConfig answers question from text with per-call overrides.
// Unset fields of cfg keep the client's configuration.
func (c *Client) AskWithConfig(ctx context.Context, question, text string, cfg Config) (Answer, error) {
	return c.run(ctx, "ask_with_config", question, text, cfg.over(c.cfg))
}

func (c *Client) run(ctx context.Context, op, question, text string, cfg Config) (ans Answer, err error) {
	start := time.Now()
	defer func() { c.obs.observe(op, start, ans, err) }()

	res, err := c.runner.RunWithConfig(ctx, question, text, cfg.toDomain())
	if err != nil {
		return Answer{}, err //nolint:wrapcheck // PipelineError is part of the public API
	}
	return answerFromDomain(res), nil
}

// RunPipeline answers question from documentText once, without a Client.
// Unset fields of cfg take DefaultConfig. Failures are *PipelineError.
func RunPipeline(
	ctx context.Context, question, documentText string, cfg Config, caps Capabilities,
) (Answer, error) {
	svc, err := newService(capabilities{
		embedder:      wrapEmbedder(caps.Embedder),
		queryEmbedder: wrapEmbedder(caps.QueryEmbedder),
		generator:     wrapGenerator(caps.Generator),
		searcher:      caps.Searcher,
		judge:         caps.Judge,
	})
	if err != nil {
		return Answer{}, err
	}

	res, err := svc.RunWithConfig(ctx, question, documentText, cfg.over(DefaultConfig()).toDomain())
	if err != nil {
		return Answer{}, err //nolint:wrapcheck // PipelineError is part of the public API
	}
	return answerFromDomain(res), nil
}

type capabilities struct {
	embedder      domain.Embedder
	queryEmbedder domain.Embedder
	generator     domain.Generator
	searcher      domain.WebSearcher
	judge         Judge
}

func newService(caps capabilities) (*pipelineuc.Service, error) {
	switch {
	case caps.embedder == nil:
		return nil, errors.New("crag: embedder required (use WithEmbedder or WithOpenAI)")
	case caps.generator == nil:
		return nil, errors.New("crag: generator required (use WithGenerator or WithOpenAI)")
	case caps.searcher == nil:
		return nil, errors.New("crag: web searcher required (use WithSearcher or WithTavily)")
	}

	pc := pipelineuc.Capabilities{
		Embedder:      caps.embedder,
		QueryEmbedder: caps.queryEmbedder,
		Generator:     caps.generator,
		Searcher:      caps.searcher,
	}
	if caps.judge != nil {
		pc.Judge = &judgeAdapter{inner: caps.judge}
	}

	svc, err := pipelineuc.New(pc, domain.DefaultPipelineConfig(), zap.NewNop())
	if err != nil {
		return nil, fmt.Errorf("crag: %w", err)
	}
	return svc, nil
}

// checkerOf looks through the public adapters so that only providers
// with their own health check are reported.
func checkerOf(v any) healthuc.Checker {
	switch a := v.(type) {
	case *embedderAdapter:
		v = a.inner
	case *batchEmbedderAdapter:
		v = a.inner
	case *generatorAdapter:
		v = a.inner
	}
	if hc, ok := v.(healthChecker); ok {
		return hc
	}
	return nil
}
