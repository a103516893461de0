package crag

import (
	"context"
	"time"
)

// Embedder converts text to a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// BatchEmbedder vectorizes multiple texts in a single call.
// Optional: an Embedder that also implements it is used for indexing in one request.
type BatchEmbedder interface {
	BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error)
}

// EmbeddingResult carries the embedding vector and token counts.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// BatchEmbeddingResult carries one vector per input text, in input order.
type BatchEmbeddingResult struct {
	Embeddings   [][]float32
	PromptTokens int
	TotalTokens  int
}

// Generator produces a completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (GenerationResult, error)
}

// GenerationResult carries the completion text and token counts.
type GenerationResult struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}

// WebSearcher runs a web search and returns the raw textual result.
type WebSearcher interface {
	Search(ctx context.Context, query string) (string, error)
}

// Judge decides whether a fragment is relevant to a question.
// When none is configured the Generator is asked for a yes/no verdict.
type Judge interface {
	Judge(ctx context.Context, question string, fragment Fragment) (bool, error)
}

// Capabilities are the providers a run talks to.
type Capabilities struct {
	Embedder Embedder
	// QueryEmbedder vectorizes questions. Defaults to Embedder.
	QueryEmbedder Embedder
	Generator     Generator
	Searcher      WebSearcher
	Judge         Judge
}

// Config holds the pipeline tunables.
//
// Zero fields are unset. In WithConfig they take the package defaults; in
// AskWithConfig they take the client's config and in RunPipeline the defaults.
// An overlap is used as given once its chunk size is set, since zero overlap is valid.
type Config struct {
	ChunkSize    int
	ChunkOverlap int
	TopK         int

	SynthesisChunkSize    int
	SynthesisChunkOverlap int
	SynthesisTopK         int

	// JudgeFailureThreshold is the maximum tolerated share of failed judgments (0..1).
	// Negative means no failed judgment is tolerated.
	JudgeFailureThreshold float64
	FanoutLimit           int
	// Timeout bounds the whole run. Negative means no deadline.
	Timeout time.Duration
}

// AnswerKind tells how an answer was produced.
type AnswerKind string

// Answer kinds.
const (
	AnswerSynthesized AnswerKind = "synthesized"
	AnswerFallback    AnswerKind = "fallback"
)

// Answer is the result of a run.
type Answer struct {
	Text string
	Kind AnswerKind
	// Fragments grounded a synthesized answer. Empty for fallback answers.
	Fragments []Fragment
}

// Fragment is a bounded piece of the corpus. Start and End are rune offsets, End exclusive.
type Fragment struct {
	Index  int
	Start  int
	End    int
	Text   string
	Source string
}

// Document is one named input text.
type Document struct {
	Name string
	Text string
}
