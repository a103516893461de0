package domain

// AnswerKind tells how an answer was produced.
type AnswerKind string

const (
	// AnswerSynthesized is grounded in relevant corpus fragments.
	AnswerSynthesized AnswerKind = "synthesized"
	// AnswerFallback wraps an external web search result.
	AnswerFallback AnswerKind = "fallback"
)

// Answer is the final pipeline output.
type Answer struct {
	Text string
	Kind AnswerKind
	// Fragments holds the relevant fragments that grounded a synthesized answer.
	Fragments []Fragment
}
