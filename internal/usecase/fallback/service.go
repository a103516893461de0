// Package fallback answers from web search when no local context is relevant.
package fallback

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/crag/internal/domain"
)

const answerPrefix = "No relevant context found.\n\nWeb search result:\n"

// Service queries the web searcher with the original question.
type Service struct {
	searcher domain.WebSearcher
	logger   *zap.Logger
}

// New creates a fallback service.
func New(searcher domain.WebSearcher, logger *zap.Logger) *Service {
	return &Service{searcher: searcher, logger: logger}
}

// Answer runs a single web search and embeds the raw result in the answer text.
func (s *Service) Answer(ctx context.Context, question string) (string, error) {
	raw, err := s.searcher.Search(ctx, question)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("web search: %w: %w", domain.ErrFallbackUnavailable, err)
	}
	if strings.TrimSpace(raw) == "" {
		return "", fmt.Errorf("web search returned nothing: %w", domain.ErrFallbackUnavailable)
	}

	s.logger.Debug("Fallback answer composed", zap.Int("search_result_chars", len(raw)))
	return Format(raw), nil
}

// Format renders a raw search result as a fallback answer.
func Format(raw string) string {
	return answerPrefix + raw
}
