package crag

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/crag/internal/domain"
)

// DefaultConfig returns the pipeline defaults.
func DefaultConfig() Config {
	return configFromDomain(domain.DefaultPipelineConfig())
}

// over fills the unset fields of c from base. A caller that sets a chunk size owns
// its overlap and the synthesis sizes derived from it. A negative JudgeFailureThreshold
// means zero tolerance and a negative Timeout means no deadline.
func (c Config) over(base Config) Config {
	if c.ChunkSize == 0 && c.SynthesisChunkSize == 0 {
		c.SynthesisChunkSize, c.SynthesisChunkOverlap = base.SynthesisChunkSize, base.SynthesisChunkOverlap
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = base.ChunkSize
		if c.ChunkOverlap == 0 {
			c.ChunkOverlap = base.ChunkOverlap
		}
	}
	if c.TopK <= 0 && c.SynthesisTopK <= 0 {
		c.SynthesisTopK = base.SynthesisTopK
	}
	if c.TopK <= 0 {
		c.TopK = base.TopK
	}
	if c.FanoutLimit <= 0 {
		c.FanoutLimit = base.FanoutLimit
	}

	switch {
	case c.JudgeFailureThreshold < 0:
		c.JudgeFailureThreshold = 0
	case c.JudgeFailureThreshold == 0:
		c.JudgeFailureThreshold = base.JudgeFailureThreshold
	}
	switch {
	case c.Timeout < 0:
		c.Timeout = 0
	case c.Timeout == 0:
		c.Timeout = base.Timeout
	}
	return c
}

func (c Config) toDomain() domain.PipelineConfig {
	return domain.PipelineConfig{
		ChunkSize:             c.ChunkSize,
		ChunkOverlap:          c.ChunkOverlap,
		TopK:                  c.TopK,
		SynthesisChunkSize:    c.SynthesisChunkSize,
		SynthesisChunkOverlap: c.SynthesisChunkOverlap,
		SynthesisTopK:         c.SynthesisTopK,
		JudgeFailureThreshold: c.JudgeFailureThreshold,
		FanoutLimit:           c.FanoutLimit,
		Timeout:               c.Timeout,
	}
}

func configFromDomain(c domain.PipelineConfig) Config {
	return Config{
		ChunkSize:             c.ChunkSize,
		ChunkOverlap:          c.ChunkOverlap,
		TopK:                  c.TopK,
		SynthesisChunkSize:    c.SynthesisChunkSize,
		SynthesisChunkOverlap: c.SynthesisChunkOverlap,
		SynthesisTopK:         c.SynthesisTopK,
		JudgeFailureThreshold: c.JudgeFailureThreshold,
		FanoutLimit:           c.FanoutLimit,
		Timeout:               c.Timeout,
	}
}

func answerFromDomain(a domain.Answer) Answer {
	out := Answer{Text: a.Text, Kind: AnswerKind(a.Kind)}
	if len(a.Fragments) > 0 {
		out.Fragments = make([]Fragment, len(a.Fragments))
		for i, f := range a.Fragments {
			out.Fragments[i] = Fragment(f)
		}
	}
	return out
}

func documentsToDomain(docs []Document) []domain.Document {
	out := make([]domain.Document, len(docs))
	for i, d := range docs {
		out[i] = domain.Document(d)
	}
	return out
}

type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

// embedderAdapter wraps a public Embedder to satisfy domain.Embedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}
	return domain.EmbeddingResult(r), nil
}

// batchEmbedderAdapter also forwards batch calls.
type batchEmbedderAdapter struct {
	embedderAdapter
	batch BatchEmbedder
}

func (a *batchEmbedderAdapter) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	r, err := a.batch.BatchEmbed(ctx, texts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed: %w", err)
	}
	return domain.BatchEmbeddingResult(r), nil
}

func wrapEmbedder(e Embedder) domain.Embedder {
	if e == nil {
		return nil
	}
	if be, ok := e.(BatchEmbedder); ok {
		return &batchEmbedderAdapter{embedderAdapter: embedderAdapter{inner: e}, batch: be}
	}
	return &embedderAdapter{inner: e}
}

// generatorAdapter wraps a public Generator to satisfy domain.Generator.
type generatorAdapter struct {
	inner Generator
}

func (a *generatorAdapter) Generate(ctx context.Context, prompt string) (domain.GenerationResult, error) {
	r, err := a.inner.Generate(ctx, prompt)
	if err != nil {
		return domain.GenerationResult{}, fmt.Errorf("generate: %w", err)
	}
	return domain.GenerationResult(r), nil
}

func wrapGenerator(g Generator) domain.Generator {
	if g == nil {
		return nil
	}
	return &generatorAdapter{inner: g}
}

// judgeAdapter wraps a public Judge to satisfy relevance.Judge.
type judgeAdapter struct {
	inner Judge
}

func (a *judgeAdapter) Judge(ctx context.Context, question string, f domain.Fragment) (bool, error) {
	ok, err := a.inner.Judge(ctx, question, Fragment(f))
	if err != nil {
		return false, fmt.Errorf("judge: %w", err)
	}
	return ok, nil
}
