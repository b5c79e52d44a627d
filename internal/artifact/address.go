// Package artifact provides the addresses and completion tracking for files
// produced by a model export.
package artifact

import "path/filepath"

// Kind distinguishes how an address became known.
type Kind string

const (
	// KindPrimary addresses are derived from the naming convention before
	// any notification arrives.
	KindPrimary Kind = "primary"
	// KindSecondary addresses are extracted from a patched primary artifact.
	KindSecondary Kind = "secondary"
)

// Address identifies an artifact file by its cleaned absolute path.
type Address struct {
	Path string
	Kind Kind
}

// NewAddress returns an Address for path, cleaned so that equal files
// compare equal.
func NewAddress(path string, kind Kind) Address {
	return Address{Path: filepath.Clean(path), Kind: kind}
}

// Dir returns the directory holding the artifact.
func (a Address) Dir() string {
	return filepath.Dir(a.Path)
}

// Base returns the file name of the artifact.
func (a Address) Base() string {
	return filepath.Base(a.Path)
}

func (a Address) String() string {
	return a.Path
}

// Paths returns the file paths of addrs in order.
func Paths(addrs []Address) []string {
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, a.Path)
	}
	return out
}
