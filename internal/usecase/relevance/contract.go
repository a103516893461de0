package relevance

import (
	"context"

	"github.com/kailas-cloud/crag/internal/domain"
)

// Judge decides whether a fragment is relevant to a question.
type Judge interface {
	Judge(ctx context.Context, question string, fragment domain.Fragment) (bool, error)
}
