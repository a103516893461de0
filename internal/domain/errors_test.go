package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestPipelineError_UnwrapsKindAndCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewPipelineError(KindEmbedding, StateIndexing, cause)

	if !errors.Is(err, ErrEmbedding) {
		t.Error("expected errors.Is(err, ErrEmbedding)")
	}
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is(err, cause)")
	}
	if errors.Is(err, ErrGeneration) {
		t.Error("did not expect ErrGeneration")
	}
	if !strings.Contains(err.Error(), "indexing") {
		t.Errorf("expected state in message, got %q", err.Error())
	}
}

func TestPipelineError_FallbackMessage(t *testing.T) {
	err := NewPipelineError(KindFallbackUnavailable, StateFallingBack, errors.New("search down"))

	msg := err.Error()
	if !strings.Contains(msg, "no relevant local context") || !strings.Contains(msg, "web search") {
		t.Errorf("expected message naming both sources, got %q", msg)
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"pipeline error", NewPipelineError(KindJudgeUnavailable, StateFiltering, errors.New("x")), KindJudgeUnavailable},
		{"wrapped sentinel", fmt.Errorf("embed: %w", ErrEmbedding), KindEmbedding},
		{"chunking", fmt.Errorf("bad: %w", ErrChunking), KindChunking},
		{"timeout wins", fmt.Errorf("%w: %w", ErrTimeout, ErrGeneration), KindTimeout},
		{"unknown", errors.New("boom"), KindInternal},
		{"raw context error", context.Canceled, KindInternal},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := KindOf(tc.err); got != tc.want {
				t.Errorf("KindOf() = %q, want %q", got, tc.want)
			}
		})
	}
}
