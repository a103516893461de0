package pipeline

import (
	"context"

	"github.com/kailas-cloud/crag/internal/domain"
)

// guard runs call in its own goroutine and stops waiting once ctx is done,
// so a provider that ignores cancellation cannot block the run.
// The abandoned goroutine exits whenever the provider eventually returns.
func guard[T any](ctx context.Context, call func(context.Context) (T, error)) (T, error) {
	type result struct {
		val T
		err error
	}

	if err := ctx.Err(); err != nil {
		var zero T
		return zero, err
	}

	done := make(chan result, 1)
	go func() {
		v, err := call(ctx)
		done <- result{val: v, err: err}
	}()

	select {
	case r := <-done:
		return r.val, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

type guardedEmbedder struct {
	inner domain.Embedder
}

func (g guardedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	return guard(ctx, func(ctx context.Context) (domain.EmbeddingResult, error) {
		return g.inner.Embed(ctx, text)
	})
}

func (g guardedEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	return guard(ctx, func(ctx context.Context) (domain.BatchEmbeddingResult, error) {
		return domain.EmbedAll(ctx, g.inner, texts)
	})
}

type guardedGenerator struct {
	inner domain.Generator
}

func (g guardedGenerator) Generate(ctx context.Context, prompt string) (domain.GenerationResult, error) {
	return guard(ctx, func(ctx context.Context) (domain.GenerationResult, error) {
		return g.inner.Generate(ctx, prompt)
	})
}

type guardedSearcher struct {
	inner domain.WebSearcher
}

func (g guardedSearcher) Search(ctx context.Context, query string) (string, error) {
	return guard(ctx, func(ctx context.Context) (string, error) {
		return g.inner.Search(ctx, query)
	})
}

type judgeFunc func(ctx context.Context, question string, fragment domain.Fragment) (bool, error)

func (f judgeFunc) Judge(ctx context.Context, question string, fragment domain.Fragment) (bool, error) {
	return f(ctx, question, fragment)
}
