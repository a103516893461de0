// Package index builds ephemeral in-memory vector indexes over fragments.
package index

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/kailas-cloud/crag/internal/domain"
)

// Index is an exact nearest-neighbour index by cosine similarity.
// It is read-only after Build and safe for concurrent queries.
type Index struct {
	fragments []domain.Fragment
	vectors   [][]float32
	norms     []float64
	dim       int
}

// Builder embeds fragments and builds an Index.
type Builder struct {
	embedder domain.Embedder
}

// NewBuilder creates a Builder over the passage embedder.
func NewBuilder(embedder domain.Embedder) *Builder {
	return &Builder{embedder: embedder}
}

// Build embeds every fragment. No fragments yields an empty Index without calling the provider.
func (b *Builder) Build(ctx context.Context, fragments []domain.Fragment) (*Index, error) {
	if len(fragments) == 0 {
		return &Index{}, nil
	}

	texts := make([]string, len(fragments))
	for i, f := range fragments {
		texts[i] = f.Text
	}

	res, err := domain.EmbedAll(ctx, b.embedder, texts)
	if err != nil {
		return nil, fmt.Errorf("embed %d fragments: %w: %w", len(fragments), domain.ErrEmbedding, err)
	}
	return FromVectors(fragments, res.Embeddings)
}

// FromVectors builds an Index from precomputed vectors, one per fragment.
func FromVectors(fragments []domain.Fragment, vectors [][]float32) (*Index, error) {
	if len(vectors) != len(fragments) {
		return nil, fmt.Errorf("got %d vectors for %d fragments: %w",
			len(vectors), len(fragments), domain.ErrEmbedding)
	}

	idx := &Index{
		fragments: fragments,
		vectors:   vectors,
		norms:     make([]float64, len(vectors)),
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return nil, fmt.Errorf("empty vector for fragment %d: %w", i, domain.ErrEmbedding)
		}
		if idx.dim == 0 {
			idx.dim = len(v)
		} else if len(v) != idx.dim {
			return nil, fmt.Errorf("fragment %d has %d dimensions, expected %d: %w: %w",
				i, len(v), idx.dim, domain.ErrVectorDimMismatch, domain.ErrEmbedding)
		}
		idx.norms[i] = norm(v)
	}
	return idx, nil
}

// Len returns the number of indexed fragments.
func (i *Index) Len() int { return len(i.fragments) }

// Dim returns the vector dimension, 0 for an empty index.
func (i *Index) Dim() int { return i.dim }

// Nearest returns up to k fragments ordered by descending similarity.
// Equal scores keep corpus order. An empty index returns nil.
func (i *Index) Nearest(query []float32, k int) []domain.ScoredFragment {
	if i.Len() == 0 || k <= 0 {
		return nil
	}
	if k > i.Len() {
		k = i.Len()
	}

	qn := norm(query)
	scored := make([]domain.ScoredFragment, len(i.fragments))
	for j, f := range i.fragments {
		scored[j] = domain.ScoredFragment{Fragment: f, Score: cosine(query, qn, i.vectors[j], i.norms[j])}
	}

	sort.SliceStable(scored, func(a, b int) bool { return scored[a].Score > scored[b].Score })
	return scored[:k]
}

func cosine(a []float32, an float64, b []float32, bn float64) float64 {
	if an == 0 || bn == 0 {
		return 0
	}
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (an * bn)
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
