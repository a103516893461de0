package retrieve

import "github.com/kailas-cloud/crag/internal/domain"

// Index is the consumer view of a built vector index.
type Index interface {
	Len() int
	Dim() int
	Nearest(query []float32, k int) []domain.ScoredFragment
}
