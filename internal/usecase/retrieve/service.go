package retrieve

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/crag/internal/domain"
)

// Service embeds a query and looks up its nearest fragments.
type Service struct {
	embedder    domain.Embedder
	defaultTopK int
}

// New creates a retrieval service over the query embedder.
func New(embedder domain.Embedder) *Service {
	return &Service{embedder: embedder, defaultTopK: domain.DefaultTopK}
}

// WithDefaultTopK sets the k used when the caller passes k <= 0.
func (s *Service) WithDefaultTopK(k int) *Service {
	if k > 0 {
		s.defaultTopK = k
	}
	return s
}

// Retrieve returns up to k fragments most similar to query.
// An empty index returns nothing without embedding the query.
func (s *Service) Retrieve(ctx context.Context, idx Index, query string, k int) ([]domain.ScoredFragment, error) {
	if idx.Len() == 0 {
		return nil, nil
	}
	if k <= 0 {
		k = s.defaultTopK
	}

	res, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("vectorize query: %w: %w", domain.ErrEmbedding, err)
	}
	if len(res.Embedding) != idx.Dim() {
		return nil, fmt.Errorf("query vector has %d dimensions, index has %d: %w: %w",
			len(res.Embedding), idx.Dim(), domain.ErrVectorDimMismatch, domain.ErrEmbedding)
	}

	return idx.Nearest(res.Embedding, k), nil
}
