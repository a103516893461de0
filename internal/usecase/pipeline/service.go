// Package pipeline orchestrates a corrective retrieval-augmented generation run:
// chunk, index, retrieve, filter, then synthesize or fall back to web search.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/kailas-cloud/crag/internal/domain"
	"github.com/kailas-cloud/crag/internal/metrics"
	"github.com/kailas-cloud/crag/internal/usecase/chunk"
	"github.com/kailas-cloud/crag/internal/usecase/fallback"
	"github.com/kailas-cloud/crag/internal/usecase/index"
	"github.com/kailas-cloud/crag/internal/usecase/relevance"
	"github.com/kailas-cloud/crag/internal/usecase/retrieve"
	"github.com/kailas-cloud/crag/internal/usecase/synthesize"
)

const tracerName = "github.com/kailas-cloud/crag/internal/usecase/pipeline"

// Service runs the pipeline over injected capabilities.
// It holds no per-run state and is safe for concurrent use.
type Service struct {
	embedder      domain.Embedder
	queryEmbedder domain.Embedder
	generator     domain.Generator
	searcher      domain.WebSearcher
	judge         relevance.Judge
	cfg           domain.PipelineConfig
	logger        *zap.Logger
	tracer        trace.Tracer
}

// New validates cfg and wraps every capability so that it honours the run deadline.
func New(caps Capabilities, cfg domain.PipelineConfig, logger *zap.Logger) (*Service, error) {
	if caps.Embedder == nil {
		return nil, errors.New("pipeline: embedder is required")
	}
	if caps.Generator == nil {
		return nil, errors.New("pipeline: generator is required")
	}
	if caps.Searcher == nil {
		return nil, errors.New("pipeline: web searcher is required")
	}

	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("pipeline config: %w", err)
	}

	queryEmbedder := caps.QueryEmbedder
	if queryEmbedder == nil {
		queryEmbedder = caps.Embedder
	}
	generator := guardedGenerator{inner: caps.Generator}

	var judge relevance.Judge = relevance.NewLLMJudge(generator)
	if caps.Judge != nil {
		inner := caps.Judge
		judge = judgeFunc(func(ctx context.Context, question string, f domain.Fragment) (bool, error) {
			return guard(ctx, func(ctx context.Context) (bool, error) {
				return inner.Judge(ctx, question, f)
			})
		})
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		embedder:      guardedEmbedder{inner: caps.Embedder},
		queryEmbedder: guardedEmbedder{inner: queryEmbedder},
		generator:     generator,
		searcher:      guardedSearcher{inner: caps.Searcher},
		judge:         judge,
		cfg:           cfg,
		logger:        logger,
		tracer:        otel.Tracer(tracerName),
	}, nil
}

// Config returns the effective configuration.
func (s *Service) Config() domain.PipelineConfig { return s.cfg }

// Run answers question from documentText with the service configuration.
func (s *Service) Run(ctx context.Context, question, documentText string) (domain.Answer, error) {
	return s.RunWithConfig(ctx, question, documentText, s.cfg)
}

// RunWithConfig answers question with a per-call configuration.
// Zero sizes and counts in cfg take the defaults. Failures are *domain.PipelineError.
func (s *Service) RunWithConfig(
	ctx context.Context, question, documentText string, cfg domain.PipelineConfig,
) (domain.Answer, error) {
	id := uuid.NewString()
	r := &run{
		svc:    s,
		cfg:    cfg.WithDefaults(),
		id:     id,
		state:  domain.StateIdle,
		start:  time.Now(),
		logger: s.logger.With(zap.String("run_id", id)),
	}

	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	ctx, span := s.tracer.Start(ctx, "crag.pipeline", trace.WithAttributes(
		attribute.String("crag.run_id", r.id),
		attribute.Int("crag.corpus_runes", len([]rune(documentText))),
	))
	defer span.End()

	answer, err := r.execute(ctx, question, documentText)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(domain.KindOf(err)))
		metrics.PipelineRunsTotal.WithLabelValues(string(domain.KindOf(err))).Inc()
		return domain.Answer{}, err
	}

	span.SetAttributes(attribute.String("crag.answer_kind", string(answer.Kind)))
	metrics.PipelineRunsTotal.WithLabelValues(string(answer.Kind)).Inc()
	return answer, nil
}

// run is the state of a single invocation.
type run struct {
	svc    *Service
	cfg    domain.PipelineConfig
	id     string
	state  domain.State
	start  time.Time
	logger *zap.Logger
}

func (r *run) execute(ctx context.Context, question, documentText string) (domain.Answer, error) {
	if err := r.cfg.Validate(); err != nil {
		kind := domain.KindInternal
		if errors.Is(err, domain.ErrChunking) {
			kind = domain.KindChunking
		}
		r.transition(domain.StateChunking)
		return domain.Answer{}, r.fail(kind, err)
	}

	var fragments []domain.Fragment
	if err := r.stage(ctx, domain.StateChunking, func(context.Context) error {
		c, err := chunk.New(r.cfg.ChunkSize, r.cfg.ChunkOverlap)
		if err != nil {
			return err
		}
		fragments = c.Split(documentText)
		return nil
	}); err != nil {
		return domain.Answer{}, r.failFrom(ctx, err)
	}

	var idx *index.Index
	if err := r.stage(ctx, domain.StateIndexing, func(ctx context.Context) error {
		var err error
		idx, err = index.NewBuilder(r.svc.embedder).Build(ctx, fragments)
		return err
	}); err != nil {
		return domain.Answer{}, r.failFrom(ctx, err)
	}

	var retrieved []domain.ScoredFragment
	if err := r.stage(ctx, domain.StateRetrieving, func(ctx context.Context) error {
		var err error
		retrieved, err = retrieve.New(r.svc.queryEmbedder).Retrieve(ctx, idx, question, r.cfg.TopK)
		return err
	}); err != nil {
		return domain.Answer{}, r.failFrom(ctx, err)
	}

	var relevant []domain.Fragment
	if err := r.stage(ctx, domain.StateFiltering, func(ctx context.Context) error {
		var err error
		relevant, err = relevance.NewFilter(r.svc.judge, r.logger).
			WithFanout(r.cfg.FanoutLimit).
			WithFailureThreshold(r.cfg.JudgeFailureThreshold).
			Filter(ctx, question, domain.Fragments(retrieved))
		return err
	}); err != nil {
		return domain.Answer{}, r.failFrom(ctx, err)
	}

	if len(relevant) == 0 {
		var text string
		if err := r.stage(ctx, domain.StateFallingBack, func(ctx context.Context) error {
			var err error
			text, err = fallback.New(r.svc.searcher, r.logger).Answer(ctx, question)
			return err
		}); err != nil {
			return domain.Answer{}, r.failFrom(ctx, err)
		}
		return r.done(domain.Answer{Text: text, Kind: domain.AnswerFallback}), nil
	}

	var text string
	if err := r.stage(ctx, domain.StateSynthesizing, func(ctx context.Context) error {
		c, err := chunk.New(r.cfg.SynthesisChunkSize, r.cfg.SynthesisChunkOverlap)
		if err != nil {
			return err
		}
		svc := synthesize.New(c,
			index.NewBuilder(r.svc.embedder),
			retrieve.New(r.svc.queryEmbedder),
			r.svc.generator,
			r.logger,
		).WithTopK(r.cfg.SynthesisTopK)
		text, err = svc.Synthesize(ctx, question, relevant)
		return err
	}); err != nil {
		return domain.Answer{}, r.failFrom(ctx, err)
	}
	return r.done(domain.Answer{Text: text, Kind: domain.AnswerSynthesized, Fragments: relevant}), nil
}

// stage enters state and runs fn inside its own span.
func (r *run) stage(ctx context.Context, state domain.State, fn func(context.Context) error) error {
	r.transition(state)
	if err := ctx.Err(); err != nil {
		return err
	}

	ctx, span := r.svc.tracer.Start(ctx, "crag."+state.String())
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	metrics.ObserveStage(state.String(), start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (r *run) transition(next domain.State) {
	r.logger.Debug("Pipeline transition",
		zap.String("from", r.state.String()),
		zap.String("to", next.String()),
	)
	r.state = next
}

func (r *run) done(answer domain.Answer) domain.Answer {
	r.transition(domain.StateDone)
	r.logger.Info("Pipeline completed",
		zap.String("answer_kind", string(answer.Kind)),
		zap.Int("relevant_fragments", len(answer.Fragments)),
		zap.Duration("duration", time.Since(r.start)),
	)
	return answer
}

// failFrom classifies err. The run context wins over whatever the provider returned.
func (r *run) failFrom(ctx context.Context, err error) error {
	var kind domain.ErrorKind
	switch ctxErr := ctx.Err(); {
	case errors.Is(ctxErr, context.DeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		kind = domain.KindTimeout
	case ctxErr != nil, errors.Is(err, context.Canceled):
		kind = domain.KindCancelled
	default:
		kind = domain.KindOf(err)
	}
	return r.fail(kind, err)
}

func (r *run) fail(kind domain.ErrorKind, err error) error {
	failedIn := r.state
	r.transition(domain.StateFailed)
	r.logger.Error("Pipeline failed",
		zap.String("state", failedIn.String()),
		zap.String("kind", string(kind)),
		zap.Duration("duration", time.Since(r.start)),
		zap.Error(err),
	)
	return domain.NewPipelineError(kind, failedIn, err)
}
