// Package staging records artifact files in version history.
package staging

import "fmt"

// Error represents a failed staging operation.
type Error struct {
	Message string
	Paths   []string
	Output  string
	Cause   error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("staging error: %s %v", e.Message, e.Paths)
	if e.Output != "" {
		msg += ": " + e.Output
	}
	if e.Cause != nil {
		msg += fmt.Sprintf(": %v", e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}
