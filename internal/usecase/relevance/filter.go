// Package relevance classifies retrieved fragments with a binary judge.
package relevance

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/kailas-cloud/crag/internal/domain"
	"github.com/kailas-cloud/crag/internal/metrics"
)

// verdict is the outcome of one judgment, stored at the fragment's input index.
type verdict struct {
	relevant bool
	err      error
}

// Filter runs independent judgments through a bounded worker pool.
type Filter struct {
	judge          Judge
	fanout         int
	maxFailureRate float64
	logger         *zap.Logger
}

// NewFilter creates a Filter with the default fan-out and failure threshold.
func NewFilter(judge Judge, logger *zap.Logger) *Filter {
	return &Filter{
		judge:          judge,
		fanout:         domain.DefaultFanoutLimit,
		maxFailureRate: domain.DefaultJudgeFailureThreshold,
		logger:         logger,
	}
}

// WithFanout sets the maximum number of concurrent judgments.
func (f *Filter) WithFanout(n int) *Filter {
	if n > 0 {
		f.fanout = n
	}
	return f
}

// WithFailureThreshold sets the tolerated share of failed judgments.
func (f *Filter) WithFailureThreshold(rate float64) *Filter {
	f.maxFailureRate = rate
	return f
}

// Filter returns the fragments judged relevant, in input order.
// A failed judgment counts as irrelevant; if the failure share exceeds the
// threshold the whole pass fails with domain.ErrJudgeUnavailable.
func (f *Filter) Filter(ctx context.Context, question string, fragments []domain.Fragment) ([]domain.Fragment, error) {
	if len(fragments) == 0 {
		return nil, nil
	}

	verdicts := make([]verdict, len(fragments))
	jobs := make(chan int)
	var wg sync.WaitGroup
	var failed atomic.Int64

	workers := f.fanout
	if workers > len(fragments) {
		workers = len(fragments)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				ok, err := f.judge.Judge(ctx, question, fragments[i])
				verdicts[i] = verdict{relevant: ok && err == nil, err: err}
				if err != nil {
					failed.Add(1)
				}
			}
		}()
	}

produce:
	for i := range fragments {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break produce
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("relevance filter: %w", err)
	}

	kept := make([]domain.Fragment, 0, len(fragments))
	for i, v := range verdicts {
		switch {
		case v.err != nil:
			metrics.RelevanceVerdictsTotal.WithLabelValues("error").Inc()
			f.logger.Warn("Relevance judgment failed, treating fragment as irrelevant",
				zap.Int("fragment", fragments[i].Index),
				zap.Error(v.err),
			)
		case v.relevant:
			metrics.RelevanceVerdictsTotal.WithLabelValues("relevant").Inc()
			kept = append(kept, fragments[i])
		default:
			metrics.RelevanceVerdictsTotal.WithLabelValues("irrelevant").Inc()
		}
	}

	n := failed.Load()
	if rate := float64(n) / float64(len(fragments)); rate > f.maxFailureRate {
		return nil, fmt.Errorf("%d of %d judgments failed (threshold %.2f): %w",
			n, len(fragments), f.maxFailureRate, domain.ErrJudgeUnavailable)
	}

	f.logger.Debug("Relevance filter completed",
		zap.Int("judged", len(fragments)),
		zap.Int("relevant", len(kept)),
		zap.Int64("failed", n),
	)
	return kept, nil
}
