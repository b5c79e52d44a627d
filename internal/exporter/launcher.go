// Package exporter starts the external modeling tool that writes the export.
package exporter

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
)

// DefaultCommand is the tool executable, looked up in the installation
// directory first and then on PATH.
const DefaultCommand = "anylogic"

// Launcher starts one export. The process runs on its own; only its start
// is checked.
type Launcher struct {
	Command    string
	ModelPath  string
	InstallDir string
	Logger     *slog.Logger
}

// Args returns the argument list passed to Command.
func (l *Launcher) Args() []string {
	return []string{"-e", l.ModelPath}
}

// Resolve returns the executable Start runs. A bare command name is looked
// up in InstallDir before PATH; a name with a directory is used as given.
func (l *Launcher) Resolve() string {
	name := l.Command
	if name == "" {
		name = DefaultCommand
	}
	if l.InstallDir == "" || filepath.Base(name) != name {
		return name
	}
	if p, err := exec.LookPath(filepath.Join(l.InstallDir, name)); err == nil {
		return p
	}
	return name
}

// Start launches the tool with InstallDir as working directory and returns
// as soon as the process is running. The exit status is logged and never
// returned.
func (l *Launcher) Start(ctx context.Context) error {
	name := l.Resolve()
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	// Not bound to ctx: the tool must keep running after the run ends.
	cmd := exec.Command(name, l.Args()...)
	cmd.Dir = l.InstallDir
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", name, err)
	}
	logger.Info("export tool started", "command", name, "model", l.ModelPath, "pid", cmd.Process.Pid)

	go func() {
		if err := cmd.Wait(); err != nil {
			logger.Warn("export tool exited", "command", name, "error", err)
			return
		}
		logger.Debug("export tool exited", "command", name)
	}()
	return nil
}
