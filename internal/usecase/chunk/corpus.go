package chunk

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kailas-cloud/crag/internal/domain"
)

// Section is a named region of a composed corpus. Start is a rune offset.
type Section struct {
	Name  string
	Start int
}

var sectionMarker = regexp.MustCompile(`(?m)^--- (.+) ---$`)

// ComposeCorpus joins documents into one corpus, each preceded by a
// "--- name ---" header line so fragments can be traced back to their file.
func ComposeCorpus(docs []domain.Document) string {
	var b strings.Builder
	for _, d := range docs {
		name := strings.TrimSpace(strings.ReplaceAll(d.Name, "\n", " "))
		if name == "" {
			name = "untitled"
		}
		fmt.Fprintf(&b, "\n\n--- %s ---\n\n%s", name, d.Text)
	}
	return b.String()
}

// ParseSections returns the section headers of text ordered by offset.
func ParseSections(text string) []Section {
	matches := sectionMarker.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return nil
	}
	sections := make([]Section, 0, len(matches))
	for _, m := range matches {
		sections = append(sections, Section{
			Name:  text[m[2]:m[3]],
			Start: runeOffset(text, m[0]),
		})
	}
	return sections
}
