package pdf

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	summaryParagraphs = 2
	minNarrativeRunes = 40
	minNarrativeWords = 6
)

var blankLines = regexp.MustCompile(`\n\s*\n`)

// Summary returns the first two narrative paragraphs of text joined by a newline.
// Headings, captions and table rows are skipped: a narrative paragraph has
// enough words and ends like a sentence.
func Summary(text string) string {
	var out []string
	for _, p := range blankLines.Split(text, -1) {
		p = strings.Join(strings.Fields(p), " ")
		if !isNarrative(p) {
			continue
		}
		out = append(out, p)
		if len(out) == summaryParagraphs {
			break
		}
	}
	return strings.Join(out, "\n")
}

func isNarrative(p string) bool {
	if utf8.RuneCountInString(p) < minNarrativeRunes {
		return false
	}
	if len(strings.Fields(p)) < minNarrativeWords {
		return false
	}
	last, _ := utf8.DecodeLastRuneInString(p)
	return strings.ContainsRune(".!?…\"'»)", last)
}
