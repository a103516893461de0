// Package generation holds decorators around domain.Generator.
package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/crag/internal/domain"
	"github.com/kailas-cloud/crag/internal/metrics"
)

// Retry defaults.
const (
	DefaultMaxAttempts = 3
	DefaultBackoff     = 500 * time.Millisecond
	maxBackoff         = 8 * time.Second
)

// RetryingGenerator retries failed generations with exponential backoff.
// Context errors and domain.ErrPermanent rejections are never retried.
type RetryingGenerator struct {
	inner       domain.Generator
	provider    string
	maxAttempts int
	backoff     time.Duration
	logger      *zap.Logger
}

// NewRetryingGenerator wraps inner with the default retry policy.
func NewRetryingGenerator(inner domain.Generator, provider string, logger *zap.Logger) *RetryingGenerator {
	return &RetryingGenerator{
		inner:       inner,
		provider:    provider,
		maxAttempts: DefaultMaxAttempts,
		backoff:     DefaultBackoff,
		logger:      logger,
	}
}

// WithPolicy overrides the attempt count and the initial backoff.
func (g *RetryingGenerator) WithPolicy(maxAttempts int, backoff time.Duration) *RetryingGenerator {
	if maxAttempts > 0 {
		g.maxAttempts = maxAttempts
	}
	if backoff >= 0 {
		g.backoff = backoff
	}
	return g
}

// Generate implements domain.Generator.
func (g *RetryingGenerator) Generate(ctx context.Context, prompt string) (domain.GenerationResult, error) {
	var lastErr error
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		res, err := g.inner.Generate(ctx, prompt)
		if err == nil {
			return res, nil
		}
		lastErr = err

		if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return domain.GenerationResult{}, fmt.Errorf("generate: %w", err)
		}
		if errors.Is(err, domain.ErrPermanent) {
			return domain.GenerationResult{}, generationError(attempt, err)
		}
		if attempt == g.maxAttempts {
			break
		}

		delay := retryDelay(g.backoff, attempt)
		metrics.GenerationRetriesTotal.WithLabelValues(g.provider).Inc()
		g.logger.Warn("Generation failed, retrying",
			zap.String("provider", g.provider),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return domain.GenerationResult{}, fmt.Errorf("generate: %w", ctx.Err())
		case <-timer.C:
		}
	}

	return domain.GenerationResult{}, generationError(g.maxAttempts, lastErr)
}

// generationError adds ErrGeneration only when the provider error does not carry it already.
func generationError(attempts int, err error) error {
	if errors.Is(err, domain.ErrGeneration) {
		return fmt.Errorf("generate after %d attempts: %w", attempts, err)
	}
	return fmt.Errorf("generate after %d attempts: %w: %w", attempts, domain.ErrGeneration, err)
}

// retryDelay doubles base per attempt, capped at maxBackoff.
func retryDelay(base time.Duration, attempt int) time.Duration {
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}

// HealthCheck delegates to the inner generator when supported.
func (g *RetryingGenerator) HealthCheck(ctx context.Context) error {
	if hc, ok := g.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // transparent decorator
	}
	return nil
}
