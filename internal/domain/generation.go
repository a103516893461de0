package domain

import "context"

// Generator produces a free-text completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (GenerationResult, error)
}

// GenerationResult carries the completion text and token usage.
type GenerationResult struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}

// WebSearcher runs an external web search and returns the raw textual result.
type WebSearcher interface {
	Search(ctx context.Context, query string) (string, error)
}
