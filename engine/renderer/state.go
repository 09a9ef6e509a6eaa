package renderer

// State of the surface and its depth attachment.
type State int

const (
	StateUninitialized State = iota
	// Surface configured and depth attachment matching it.
	StateReady
	// The window changed size; the surface must be reconfigured before the next acquire.
	StateStale
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateStale:
		return "stale"
	case StateDestroyed:
		return "destroyed"
	}
	return "unknown"
}
