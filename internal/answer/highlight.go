// Package answer post-processes answer text for presentation.
package answer

import (
	"regexp"
	"strings"
)

// DefaultKeywords are emphasised when no explicit list is given.
var DefaultKeywords = []string{"important", "key", "critical", "main", "core", "summary"}

// Highlight wraps whole-word, case-insensitive keyword matches in Markdown bold.
// The matched text keeps its original casing.
func Highlight(text string, keywords ...string) string {
	if len(keywords) == 0 {
		keywords = DefaultKeywords
	}

	quoted := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		quoted = append(quoted, regexp.QuoteMeta(k))
	}
	if len(quoted) == 0 || text == "" {
		return text
	}

	re := regexp.MustCompile(`(?i)\b(` + strings.Join(quoted, "|") + `)\b`)
	return re.ReplaceAllString(text, "**$1**")
}
