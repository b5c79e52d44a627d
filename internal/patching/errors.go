// Package patching removes the one-time problematic line from generated
// launcher scripts.
package patching

import "fmt"

// NotFoundError reports that an artifact did not contain the target line.
type NotFoundError struct {
	Path   string
	Target string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("patch error: reference %q not found in %s", e.Target, e.Path)
}

// FileError represents a failure reading or rewriting an artifact.
type FileError struct {
	Message string
	Path    string
	Cause   error
}

func (e *FileError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("patch file error: %s %s: %v", e.Message, e.Path, e.Cause)
	}
	return fmt.Sprintf("patch file error: %s %s", e.Message, e.Path)
}

func (e *FileError) Unwrap() error {
	return e.Cause
}
