package domain

// Fragment is a bounded substring of the corpus.
// Start and End are rune offsets into the corpus, End exclusive.
type Fragment struct {
	Index  int
	Start  int
	End    int
	Text   string
	Source string
}

// Len returns the fragment length in runes.
func (f Fragment) Len() int { return f.End - f.Start }

// ScoredFragment is a fragment with its similarity to a query vector.
type ScoredFragment struct {
	Fragment
	Score float64
}

// Fragments strips scores, keeping order.
func Fragments(scored []ScoredFragment) []Fragment {
	if len(scored) == 0 {
		return nil
	}
	out := make([]Fragment, len(scored))
	for i, s := range scored {
		out[i] = s.Fragment
	}
	return out
}

// Document is one named input text before it is merged into a corpus.
type Document struct {
	Name string
	Text string
}
