package staging

import (
	"context"
	"log/slog"
	"os/exec"
	"strings"
)

// Stager stages one or more paths in a single operation.
type Stager interface {
	Stage(ctx context.Context, paths ...string) error
}

// runGit is injectable in tests.
var runGit = func(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	return strings.TrimSpace(string(out)), err
}

// GitStager runs `git add` from Dir.
type GitStager struct {
	Dir    string
	Logger *slog.Logger
}

// NewGitStager creates a stager rooted at dir.
func NewGitStager(dir string, logger *slog.Logger) *GitStager {
	if logger == nil {
		logger = slog.Default()
	}
	return &GitStager{Dir: dir, Logger: logger}
}

// Stage adds paths to the index.
func (g *GitStager) Stage(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	args := append([]string{"add", "--"}, paths...)
	out, err := runGit(ctx, g.Dir, args...)
	if err != nil {
		return &Error{Message: "git add failed for", Paths: paths, Output: out, Cause: err}
	}
	g.Logger.Debug("git added", "paths", paths)
	return nil
}

// DryRunStager only logs what would be staged.
type DryRunStager struct {
	Logger *slog.Logger
}

func (d DryRunStager) Stage(_ context.Context, paths ...string) error {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("dry run: would stage", "paths", paths)
	return nil
}
