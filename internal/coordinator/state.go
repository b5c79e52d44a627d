package coordinator

// State is a coordinator phase.
type State string

const (
	StateAwaitingPrimary   State = "awaiting_primary"
	StatePrimarySettling   State = "primary_settling"
	StateAwaitingSecondary State = "awaiting_secondary"
	StateSecondarySettling State = "secondary_settling"
	StateDone              State = "done"
	StateFailed            State = "failed"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Phase names the completion set a state works on.
func (s State) Phase() string {
	switch s {
	case StateAwaitingPrimary, StatePrimarySettling:
		return "primary"
	case StateAwaitingSecondary, StateSecondarySettling:
		return "secondary"
	default:
		return string(s)
	}
}

// canTransition encodes the allowed edges. Failed is reachable from any
// non-terminal state.
func canTransition(from, to State) bool {
	if to == StateFailed {
		return !from.Terminal()
	}
	switch from {
	case StateAwaitingPrimary:
		return to == StatePrimarySettling
	case StatePrimarySettling:
		return to == StateAwaitingSecondary
	case StateAwaitingSecondary:
		return to == StateSecondarySettling || to == StateDone
	case StateSecondarySettling:
		return to == StateDone
	default:
		return false
	}
}
