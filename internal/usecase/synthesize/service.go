// Package synthesize produces an answer grounded in the relevant fragments.
package synthesize

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/crag/internal/domain"
	"github.com/kailas-cloud/crag/internal/usecase/chunk"
)

const (
	promptTemplate   = "Using this context:\n\n%s\n\nAnswer the question:\n%s"
	contextSeparator = "\n\n"
)

// Service re-indexes the relevant fragments at a finer granularity and asks
// the generator for an answer over the best sub-fragments.
type Service struct {
	chunker   *chunk.Chunker
	builder   IndexBuilder
	retriever Retriever
	generator domain.Generator
	topK      int
	logger    *zap.Logger
}

// New creates a synthesis service.
func New(
	chunker *chunk.Chunker,
	builder IndexBuilder,
	retriever Retriever,
	generator domain.Generator,
	logger *zap.Logger,
) *Service {
	return &Service{
		chunker:   chunker,
		builder:   builder,
		retriever: retriever,
		generator: generator,
		topK:      domain.DefaultTopK,
		logger:    logger,
	}
}

// WithTopK sets how many sub-fragments make up the context.
func (s *Service) WithTopK(k int) *Service {
	if k > 0 {
		s.topK = k
	}
	return s
}

// Synthesize answers question from fragments. The generated text is returned verbatim.
func (s *Service) Synthesize(ctx context.Context, question string, fragments []domain.Fragment) (string, error) {
	if len(fragments) == 0 {
		return "", fmt.Errorf("synthesize: %w", domain.ErrEmptyContext)
	}

	texts := make([]string, len(fragments))
	for i, f := range fragments {
		texts[i] = f.Text
	}
	subFragments := s.chunker.Split(strings.Join(texts, contextSeparator))

	idx, err := s.builder.Build(ctx, subFragments)
	if err != nil {
		return "", fmt.Errorf("index relevant context: %w", err)
	}

	best, err := s.retriever.Retrieve(ctx, idx, question, s.topK)
	if err != nil {
		return "", fmt.Errorf("retrieve relevant context: %w", err)
	}

	prompt := Prompt(question, BuildContext(domain.Fragments(best)))

	s.logger.Debug("Synthesizing answer",
		zap.Int("relevant_fragments", len(fragments)),
		zap.Int("sub_fragments", len(subFragments)),
		zap.Int("context_fragments", len(best)),
	)

	res, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("generate answer: %w: %w", domain.ErrGeneration, err)
	}
	return res.Text, nil
}

// BuildContext joins fragment texts in the given order.
func BuildContext(fragments []domain.Fragment) string {
	texts := make([]string, len(fragments))
	for i, f := range fragments {
		texts[i] = f.Text
	}
	return strings.Join(texts, contextSeparator)
}

// Prompt renders the answer prompt.
func Prompt(question, contextText string) string {
	return fmt.Sprintf(promptTemplate, contextText, question)
}
