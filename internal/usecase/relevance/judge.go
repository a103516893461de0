package relevance

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/kailas-cloud/crag/internal/domain"
)

const promptTemplate = "Retrieved document:\n\n%s\n\nUser question:\n%s\n\nIs this document relevant? (yes/no)"

var affirmativeTokens = map[string]struct{}{"yes": {}, "true": {}}

// LLMJudge asks a generative model for a yes/no relevance verdict.
type LLMJudge struct {
	generator domain.Generator
}

// NewLLMJudge creates a judge over the given generator.
func NewLLMJudge(generator domain.Generator) *LLMJudge {
	return &LLMJudge{generator: generator}
}

// Judge implements Judge.
func (j *LLMJudge) Judge(ctx context.Context, question string, fragment domain.Fragment) (bool, error) {
	res, err := j.generator.Generate(ctx, Prompt(question, fragment.Text))
	if err != nil {
		return false, fmt.Errorf("judge fragment %d: %w", fragment.Index, err)
	}
	return ParseVerdict(res.Text), nil
}

// Prompt renders the relevance prompt for one fragment.
func Prompt(question, document string) string {
	return fmt.Sprintf(promptTemplate, document, question)
}

// ParseVerdict reads the verdict from the first word of the reply, case-insensitive.
// Leading punctuation and whitespace are skipped; "yes" or "true" is relevant, anything else is not.
func ParseVerdict(response string) bool {
	word, _, _ := strings.Cut(strings.TrimLeftFunc(response, notLetter), " ")
	if i := strings.IndexFunc(word, notLetter); i >= 0 {
		word = word[:i]
	}
	_, ok := affirmativeTokens[strings.ToLower(word)]
	return ok
}

func notLetter(r rune) bool { return !unicode.IsLetter(r) }
