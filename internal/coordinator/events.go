package coordinator

import (
	"time"

	"github.com/chrisschopp/anylogic-export/internal/artifact"
)

// EventKind classifies what the coordinator observed or did.
type EventKind string

const (
	EventStateChanged EventKind = "state_changed"
	EventSettled      EventKind = "settled"
	EventReference    EventKind = "reference_discovered"
	EventNoReferences EventKind = "no_references"
	EventStaged       EventKind = "staged"
	EventStageFailed  EventKind = "stage_failed"
	EventIgnored      EventKind = "ignored"
)

// Event is reported to the Observer as the run progresses.
type Event struct {
	Kind    EventKind
	From    State
	State   State
	Address artifact.Address
	Paths   []string
	Detail  string
	Err     error
	Time    time.Time
}

// Observer receives events synchronously on the coordinator's goroutine and
// must not block.
type Observer func(Event)
