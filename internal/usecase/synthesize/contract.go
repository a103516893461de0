package synthesize

import (
	"context"

	"github.com/kailas-cloud/crag/internal/domain"
	"github.com/kailas-cloud/crag/internal/usecase/index"
	"github.com/kailas-cloud/crag/internal/usecase/retrieve"
)

// IndexBuilder embeds fragments into a searchable index.
type IndexBuilder interface {
	Build(ctx context.Context, fragments []domain.Fragment) (*index.Index, error)
}

// Retriever looks up the fragments nearest to a query.
type Retriever interface {
	Retrieve(ctx context.Context, idx retrieve.Index, query string, k int) ([]domain.ScoredFragment, error)
}
