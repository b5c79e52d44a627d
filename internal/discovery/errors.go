// Package discovery validates export inputs and locates the launcher scripts
// an export is expected to produce.
package discovery

import (
	"fmt"
	"strings"
)

// InputError represents an invalid model path or installation directory.
type InputError struct {
	Message string
	Path    string
	Cause   error
}

func (e *InputError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("input error: %s", e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("input error: %s: %s: %v", e.Message, e.Path, e.Cause)
	}
	return fmt.Sprintf("input error: %s: %s", e.Message, e.Path)
}

func (e *InputError) Unwrap() error {
	return e.Cause
}

// AmbiguousExperimentError is returned when experiment directories exist but
// none of them matches the requested experiment names.
type AmbiguousExperimentError struct {
	Requested []string
	Found     []string
}

func (e *AmbiguousExperimentError) Error() string {
	return fmt.Sprintf("input error: no experiment directory matches [%s]; found [%s]",
		strings.Join(e.Requested, ", "), strings.Join(e.Found, ", "))
}
