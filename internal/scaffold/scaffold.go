// Package scaffold writes the static repository configuration an exported
// model needs: ignore entries for generated files and a pre-commit hook that
// runs the export.
package scaffold

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/chrisschopp/anylogic-export/internal/discovery"
)

const (
	// HookID identifies the export hook in .pre-commit-config.yaml.
	HookID = "anylogic-export"
	// DefaultCommand is the executable the hook runs.
	DefaultCommand = "anylogic_export"

	GitignoreFile = ".gitignore"
	PreCommitFile = ".pre-commit-config.yaml"
)

// IgnoreEntries are generated by the export but must not be committed.
var IgnoreEntries = []string{"chromium/", "*.log"}

// Options configures Init.
type Options struct {
	// RepoDir is the repository root the files are written to.
	RepoDir string
	// ModelPath is the model file; it must be inside RepoDir.
	ModelPath   string
	Experiments []string
	// Command overrides DefaultCommand.
	Command string
}

// Result reports what Init changed.
type Result struct {
	GitignorePath string
	IgnoreAdded   []string
	PreCommitPath string
	Hook          Hook
	HookReplaced  bool
}

// Init updates .gitignore and .pre-commit-config.yaml in opts.RepoDir.
func Init(opts Options) (*Result, error) {
	repoDir, err := filepath.Abs(opts.RepoDir)
	if err != nil {
		return nil, fmt.Errorf("scaffold: resolve repository dir: %w", err)
	}
	modelPath, err := discovery.ValidateModelPath(opts.ModelPath)
	if err != nil {
		return nil, err
	}
	hook, err := NewHook(repoDir, modelPath, opts.Experiments, opts.Command)
	if err != nil {
		return nil, err
	}

	res := &Result{
		GitignorePath: filepath.Join(repoDir, GitignoreFile),
		PreCommitPath: filepath.Join(repoDir, PreCommitFile),
		Hook:          hook,
	}
	if res.IgnoreAdded, err = EnsureIgnore(res.GitignorePath, IgnoreEntries); err != nil {
		return nil, err
	}

	existing, err := os.ReadFile(res.PreCommitPath)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("scaffold: read %s: %w", PreCommitFile, err)
	}
	merged, replaced, err := MergePreCommit(existing, hook)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(res.PreCommitPath, merged, 0o644); err != nil {
		return nil, fmt.Errorf("scaffold: write %s: %w", PreCommitFile, err)
	}
	res.HookReplaced = replaced
	return res, nil
}

// EnsureIgnore appends the entries missing from the ignore file at path and
// returns them. Existing lines are left untouched.
func EnsureIgnore(path string, entries []string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("scaffold: read %s: %w", path, err)
	}

	present := make(map[string]bool)
	for _, line := range strings.Split(string(data), "\n") {
		present[strings.TrimSpace(line)] = true
	}

	var added []string
	for _, e := range entries {
		if !present[e] {
			present[e] = true
			added = append(added, e)
		}
	}
	if len(added) == 0 {
		return nil, nil
	}

	var buf bytes.Buffer
	buf.Write(data)
	if len(data) > 0 && !bytes.HasSuffix(data, []byte("\n")) {
		buf.WriteByte('\n')
	}
	for _, e := range added {
		buf.WriteString(e + "\n")
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return nil, fmt.Errorf("scaffold: write %s: %w", path, err)
	}
	return added, nil
}
