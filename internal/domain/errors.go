package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrChunking signals invalid chunking parameters.
	ErrChunking = errors.New("invalid chunking configuration")
	// ErrEmbedding signals an embedding provider failure or malformed embedding output.
	ErrEmbedding = errors.New("embedding provider error")
	// ErrJudgeUnavailable signals that too many relevance judgments failed.
	ErrJudgeUnavailable = errors.New("relevance judge unavailable")
	// ErrGeneration signals a generation provider failure after retries.
	ErrGeneration = errors.New("generation provider error")
	// ErrFallbackUnavailable signals that the web search fallback failed.
	ErrFallbackUnavailable = errors.New("web search fallback unavailable")
	// ErrCancelled signals that the caller cancelled the pipeline.
	ErrCancelled = errors.New("pipeline cancelled")
	// ErrTimeout signals that the pipeline deadline expired.
	ErrTimeout = errors.New("pipeline timeout")

	// ErrRateLimited signals a provider rate limit hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrPermanent marks a provider rejection that a retry cannot fix (bad key, bad request).
	ErrPermanent = errors.New("permanent provider error")
	// ErrEmptyContext signals synthesis was requested without fragments.
	ErrEmptyContext = errors.New("no context fragments")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
)

// ErrorKind classifies a pipeline failure.
type ErrorKind string

// Pipeline error kinds.
const (
	KindChunking            ErrorKind = "chunking_error"
	KindEmbedding           ErrorKind = "embedding_error"
	KindJudgeUnavailable    ErrorKind = "judge_unavailable"
	KindGeneration          ErrorKind = "generation_error"
	KindFallbackUnavailable ErrorKind = "fallback_unavailable"
	KindCancelled           ErrorKind = "cancelled"
	KindTimeout             ErrorKind = "timeout"
	KindInternal            ErrorKind = "internal_error"
)

var kindSentinels = map[ErrorKind]error{
	KindChunking:            ErrChunking,
	KindEmbedding:           ErrEmbedding,
	KindJudgeUnavailable:    ErrJudgeUnavailable,
	KindGeneration:          ErrGeneration,
	KindFallbackUnavailable: ErrFallbackUnavailable,
	KindCancelled:           ErrCancelled,
	KindTimeout:             ErrTimeout,
}

// PipelineError is the structured failure returned by a pipeline run.
// It unwraps to both the kind sentinel and the underlying cause.
type PipelineError struct {
	Kind  ErrorKind
	State State
	Err   error
}

func (e *PipelineError) Error() string {
	if e.Kind == KindFallbackUnavailable {
		return fmt.Sprintf("no relevant local context and web search could not answer the question: %v", e.Err)
	}
	return fmt.Sprintf("pipeline failed in %s (%s): %v", e.State, e.Kind, e.Err)
}

func (e *PipelineError) Unwrap() []error {
	if s, ok := kindSentinels[e.Kind]; ok {
		return []error{s, e.Err}
	}
	return []error{e.Err}
}

// NewPipelineError creates a PipelineError for the given state.
func NewPipelineError(kind ErrorKind, state State, err error) error {
	return &PipelineError{Kind: kind, State: state, Err: err}
}

// KindOf returns the kind of a pipeline error, classifying bare sentinels as well.
func KindOf(err error) ErrorKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	// Порядок важен: отмена и таймаут сильнее любых ошибок провайдера.
	ordered := []ErrorKind{
		KindTimeout, KindCancelled, KindChunking, KindEmbedding,
		KindJudgeUnavailable, KindGeneration, KindFallbackUnavailable,
	}
	for _, k := range ordered {
		if errors.Is(err, kindSentinels[k]) {
			return k
		}
	}
	return KindInternal
}
