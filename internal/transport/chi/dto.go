package chi

import (
	"time"

	"github.com/kailas-cloud/crag/internal/domain"
)

// ErrorCode is a machine-readable error identifier in error responses.
type ErrorCode string

// Error codes not tied to a pipeline error kind.
const (
	ErrorCodeBadRequest       ErrorCode = "bad_request"
	ErrorCodeValidationFailed ErrorCode = "validation_failed"
	ErrorCodeUnauthorized     ErrorCode = "unauthorized"
	ErrorCodePayloadTooLarge  ErrorCode = "payload_too_large"
	ErrorCodeNotFound         ErrorCode = "not_found"
	ErrorCodeMethodNotAllowed ErrorCode = "method_not_allowed"
	ErrorCodeInternalError    ErrorCode = "internal_error"
)

type errorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	State   string    `json:"state,omitempty"`
}

type askRequest struct {
	Question     string            `json:"question" validate:"required,max=4000"`
	DocumentText string            `json:"document_text"`
	Documents    []documentRequest `json:"documents" validate:"omitempty,max=64,dive"`
	Options      *askOptions       `json:"options"`
	Highlight    bool              `json:"highlight"`
}

type documentRequest struct {
	Name string `json:"name" validate:"max=256"`
	Text string `json:"text"`
}

// askOptions override the server pipeline configuration for one request.
type askOptions struct {
	ChunkSize             *int     `json:"chunk_size" validate:"omitempty,gt=0"`
	ChunkOverlap          *int     `json:"chunk_overlap" validate:"omitempty,gte=0"`
	TopK                  *int     `json:"top_k" validate:"omitempty,gt=0,lte=100"`
	JudgeFailureThreshold *float64 `json:"judge_failure_threshold" validate:"omitempty,gte=0,lte=1"`
	FanoutLimit           *int     `json:"fanout_limit" validate:"omitempty,gt=0,lte=64"`
	TimeoutSec            *int     `json:"timeout_sec" validate:"omitempty,gt=0,lte=600"`
}

// apply overlays the set options on base.
func (o *askOptions) apply(base domain.PipelineConfig) domain.PipelineConfig {
	if o == nil {
		return base
	}
	if o.ChunkSize != nil {
		base.ChunkSize = *o.ChunkSize
	}
	if o.ChunkOverlap != nil {
		base.ChunkOverlap = *o.ChunkOverlap
	}
	if o.TopK != nil {
		base.TopK = *o.TopK
	}
	if o.JudgeFailureThreshold != nil {
		base.JudgeFailureThreshold = *o.JudgeFailureThreshold
	}
	if o.FanoutLimit != nil {
		base.FanoutLimit = *o.FanoutLimit
	}
	if o.TimeoutSec != nil {
		base.Timeout = time.Duration(*o.TimeoutSec) * time.Second
	}
	return base
}

type askResponse struct {
	Answer    string             `json:"answer"`
	Kind      domain.AnswerKind  `json:"kind"`
	Fragments []fragmentResponse `json:"fragments,omitempty"`
	Documents []documentSummary  `json:"documents,omitempty"`
}

type fragmentResponse struct {
	Index  int    `json:"index"`
	Start  int    `json:"start"`
	End    int    `json:"end"`
	Source string `json:"source,omitempty"`
	Text   string `json:"text"`
}

type documentSummary struct {
	Name    string `json:"name"`
	Runes   int    `json:"runes"`
	Summary string `json:"summary,omitempty"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func answerToResponse(a domain.Answer, highlight func(string) string) askResponse {
	text := a.Text
	if highlight != nil {
		text = highlight(text)
	}

	resp := askResponse{Answer: text, Kind: a.Kind}
	if len(a.Fragments) > 0 {
		resp.Fragments = make([]fragmentResponse, len(a.Fragments))
		for i, f := range a.Fragments {
			resp.Fragments[i] = fragmentResponse{
				Index:  f.Index,
				Start:  f.Start,
				End:    f.End,
				Source: f.Source,
				Text:   f.Text,
			}
		}
	}
	return resp
}
