// Package chunk splits corpus text into overlapping fixed-size fragments.
package chunk

import (
	"sort"
	"unicode/utf8"

	"github.com/kailas-cloud/crag/internal/domain"
)

// Chunker splits text into fragments of at most maxSize runes.
// Consecutive fragments start maxSize-overlap runes apart.
type Chunker struct {
	maxSize int
	overlap int
}

// New validates the bounds and returns a Chunker.
func New(maxSize, overlap int) (*Chunker, error) {
	if err := domain.ValidateChunking(maxSize, overlap); err != nil {
		return nil, err
	}
	return &Chunker{maxSize: maxSize, overlap: overlap}, nil
}

// MaxSize returns the fragment size bound.
func (c *Chunker) MaxSize() int { return c.maxSize }

// Overlap returns the overlap between consecutive fragments.
func (c *Chunker) Overlap() int { return c.overlap }

// Split returns the fragments of text in corpus order. Empty text yields nil.
// Fragments are labelled with the corpus section they start in, or with the
// first section they reach when they start before any header.
func (c *Chunker) Split(text string) []domain.Fragment {
	if text == "" {
		return nil
	}

	runes := []rune(text)
	total := len(runes)
	step := c.maxSize - c.overlap
	sections := ParseSections(text)

	fragments := make([]domain.Fragment, 0, total/step+1)
	for start := 0; ; start += step {
		end := start + c.maxSize
		if end > total {
			end = total
		}
		fragments = append(fragments, domain.Fragment{
			Index:  len(fragments),
			Start:  start,
			End:    end,
			Text:   string(runes[start:end]),
			Source: sectionAt(sections, start, end),
		})
		if end == total {
			break
		}
	}
	return fragments
}

// Chunk is the functional form of New(maxSize, overlap).Split(text).
func Chunk(text string, maxSize, overlap int) ([]domain.Fragment, error) {
	c, err := New(maxSize, overlap)
	if err != nil {
		return nil, err
	}
	return c.Split(text), nil
}

// Reassemble drops the overlapping prefix of every fragment after the first and
// concatenates the rest. For fragments from Split it returns the original text.
func Reassemble(fragments []domain.Fragment) string {
	if len(fragments) == 0 {
		return ""
	}
	buf := make([]rune, 0, fragments[len(fragments)-1].End)
	covered := 0
	for _, f := range fragments {
		runes := []rune(f.Text)
		skip := covered - f.Start
		if skip < 0 {
			skip = 0
		}
		if skip < len(runes) {
			buf = append(buf, runes[skip:]...)
		}
		if f.End > covered {
			covered = f.End
		}
	}
	return string(buf)
}

func sectionAt(sections []Section, offset, end int) string {
	i := sort.Search(len(sections), func(i int) bool { return sections[i].Start > offset })
	if i == 0 {
		if len(sections) > 0 && sections[0].Start < end {
			return sections[0].Name
		}
		return ""
	}
	return sections[i-1].Name
}

// runeOffset converts a byte offset into text to a rune offset.
func runeOffset(text string, byteOffset int) int {
	return utf8.RuneCountInString(text[:byteOffset])
}
