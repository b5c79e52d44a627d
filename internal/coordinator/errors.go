// Package coordinator waits for an export's artifacts in two phases: it
// patches each launcher script as it is written, learns the archives the
// scripts reference, waits for those archives, and stages everything.
package coordinator

import (
	"fmt"
	"strings"
	"time"

	"github.com/chrisschopp/anylogic-export/internal/artifact"
)

// StalledError reports that no notification arrived within the idle timeout
// while addresses were still unsettled.
type StalledError struct {
	State     State
	Idle      time.Duration
	Unsettled []artifact.Address
}

func (e *StalledError) Error() string {
	return fmt.Sprintf("run stalled in %s: no change within %s; waiting on [%s]",
		e.State, e.Idle, strings.Join(artifact.Paths(e.Unsettled), ", "))
}

// StreamClosedError reports that a subscription ended before its barrier was
// reached.
type StreamClosedError struct {
	State     State
	Unsettled []artifact.Address
}

func (e *StreamClosedError) Error() string {
	return fmt.Sprintf("notification stream closed in %s; waiting on [%s]",
		e.State, strings.Join(artifact.Paths(e.Unsettled), ", "))
}

// TransitionError reports an attempt to move along an edge the state machine
// does not allow.
type TransitionError struct {
	From State
	To   State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid coordinator transition %s -> %s", e.From, e.To)
}
