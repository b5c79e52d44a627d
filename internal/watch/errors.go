package watch

import "fmt"

// SubscribeError represents a failure setting up a subscription.
type SubscribeError struct {
	Message string
	Path    string
	Cause   error
}

func (e *SubscribeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("watch error: %s %s: %v", e.Message, e.Path, e.Cause)
	}
	return fmt.Sprintf("watch error: %s %s", e.Message, e.Path)
}

func (e *SubscribeError) Unwrap() error {
	return e.Cause
}
