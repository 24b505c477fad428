package orchestrator

// State is a step of the request lifecycle.
type State string

// Request lifecycle: idle → extracting → expanding → embedding → searching → assembling →
// generating → done. Any step may end in failed.
const (
	StateIdle       State = "idle"
	StateExtracting State = "extracting"
	StateExpanding  State = "expanding"
	StateEmbedding  State = "embedding"
	StateSearching  State = "searching"
	StateAssembling State = "assembling"
	StateGenerating State = "generating"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

func (s State) String() string { return string(s) }
