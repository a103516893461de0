package crag

import "github.com/kailas-cloud/crag/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrChunking            = domain.ErrChunking
	ErrEmbedding           = domain.ErrEmbedding
	ErrJudgeUnavailable    = domain.ErrJudgeUnavailable
	ErrGeneration          = domain.ErrGeneration
	ErrFallbackUnavailable = domain.ErrFallbackUnavailable
	ErrCancelled           = domain.ErrCancelled
	ErrTimeout             = domain.ErrTimeout
	ErrRateLimited         = domain.ErrRateLimited
)

// PipelineError is the structured failure of a run. Use errors.As() to inspect it.
type PipelineError = domain.PipelineError

// ErrorKind classifies a pipeline failure.
type ErrorKind = domain.ErrorKind

// Error kinds.
const (
	KindChunking            = domain.KindChunking
	KindEmbedding           = domain.KindEmbedding
	KindJudgeUnavailable    = domain.KindJudgeUnavailable
	KindGeneration          = domain.KindGeneration
	KindFallbackUnavailable = domain.KindFallbackUnavailable
	KindCancelled           = domain.KindCancelled
	KindTimeout             = domain.KindTimeout
	KindInternal            = domain.KindInternal
)

// KindOf returns the kind of a run error.
func KindOf(err error) ErrorKind { return domain.KindOf(err) }
