package crag

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"

	"github.com/kailas-cloud/crag/internal/domain"
)

// --- capability mocks ---

// letterEmbedder maps text to its letter histogram.
type letterEmbedder struct {
	calls atomic.Int64
}

func (e *letterEmbedder) Embed(_ context.Context, text string) (EmbeddingResult, error) {
	e.calls.Add(1)
	vec := make([]float32, 26)
	for _, r := range strings.ToLower(text) {
		if r >= 'a' && r <= 'z' {
			vec[r-'a']++
		}
	}
	return EmbeddingResult{Embedding: vec, TotalTokens: 1}, nil
}

// batchLetterEmbedder counts batch calls separately.
type batchLetterEmbedder struct {
	letterEmbedder
	batches atomic.Int64
}

func (e *batchLetterEmbedder) BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error) {
	e.batches.Add(1)
	out := BatchEmbeddingResult{Embeddings: make([][]float32, len(texts))}
	for i, t := range texts {
		r, _ := e.letterEmbedder.Embed(ctx, t)
		out.Embeddings[i] = r.Embedding
	}
	return out, nil
}

type mockGenerator struct {
	fn func(ctx context.Context, prompt string) (GenerationResult, error)
}

func (m *mockGenerator) Generate(ctx context.Context, prompt string) (GenerationResult, error) {
	return m.fn(ctx, prompt)
}

func fixedGenerator(text string) *mockGenerator {
	return &mockGenerator{fn: func(context.Context, string) (GenerationResult, error) {
		return GenerationResult{Text: text}, nil
	}}
}

type mockSearcher struct {
	result string
	err    error
	calls  atomic.Int64
}

func (m *mockSearcher) Search(context.Context, string) (string, error) {
	m.calls.Add(1)
	return m.result, m.err
}

type judgeFunc func(ctx context.Context, question string, f Fragment) (bool, error)

func (fn judgeFunc) Judge(ctx context.Context, question string, f Fragment) (bool, error) {
	return fn(ctx, question, f)
}

func containsJudge(word string) judgeFunc {
	return func(_ context.Context, _ string, f Fragment) (bool, error) {
		return strings.Contains(f.Text, word), nil
	}
}

// healthyEmbedder adds a health check to letterEmbedder.
type healthyEmbedder struct {
	letterEmbedder
	err error
}

func (e *healthyEmbedder) HealthCheck(context.Context) error { return e.err }

var errProviderDown = errors.New("provider down")

// --- pipelineRunner mock ---

type mockRunner struct {
	fn func(ctx context.Context, question, text string, cfg Config) (Answer, error)
}

func (m *mockRunner) RunWithConfig(
	ctx context.Context, question, text string, cfg domain.PipelineConfig,
) (domain.Answer, error) {
	a, err := m.fn(ctx, question, text, configFromDomain(cfg))
	if err != nil {
		return domain.Answer{}, err
	}
	return domain.Answer{Text: a.Text, Kind: domain.AnswerKind(a.Kind)}, nil
}

func domainFragment(text string) domain.Fragment {
	return domain.Fragment{Text: text, End: len([]rune(text))}
}
