package domain

// State is a pipeline orchestrator state.
type State string

// Orchestrator states.
const (
	StateIdle         State = "idle"
	StateChunking     State = "chunking"
	StateIndexing     State = "indexing"
	StateRetrieving   State = "retrieving"
	StateFiltering    State = "filtering"
	StateSynthesizing State = "synthesizing"
	StateFallingBack  State = "falling_back"
	StateDone         State = "done"
	StateFailed       State = "failed"
)

func (s State) String() string { return string(s) }

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}
