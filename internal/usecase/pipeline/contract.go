package pipeline

import (
	"github.com/kailas-cloud/crag/internal/domain"
	"github.com/kailas-cloud/crag/internal/usecase/relevance"
)

// Capabilities are the providers a run talks to.
type Capabilities struct {
	// Embedder vectorizes fragments.
	Embedder domain.Embedder
	// QueryEmbedder vectorizes questions. Defaults to Embedder.
	QueryEmbedder domain.Embedder
	Generator     domain.Generator
	Searcher      domain.WebSearcher
	// Judge classifies fragments. Defaults to an LLM judge over Generator.
	Judge relevance.Judge
}
