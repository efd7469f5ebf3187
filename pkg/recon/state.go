package recon

// State is a step of an image's reconciliation.
type State int

const (
	Unvisited State = iota
	NeedsInference
	PendingWrite
	Verifying
	Deduplicating
	Done
	Failed
)

var stateNames = [...]string{
	Unvisited:      "unvisited",
	NeedsInference: "needs-inference",
	PendingWrite:   "pending-write",
	Verifying:      "verifying",
	Deduplicating:  "deduplicating",
	Done:           "done",
	Failed:         "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}
