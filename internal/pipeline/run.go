// Package pipeline runs one export end to end: discovery, the two-phase
// coordinator, the export tool launch, and the optional run journal.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/chrisschopp/anylogic-export/internal/artifact"
	"github.com/chrisschopp/anylogic-export/internal/coordinator"
	"github.com/chrisschopp/anylogic-export/internal/db"
	"github.com/chrisschopp/anylogic-export/internal/discovery"
	"github.com/chrisschopp/anylogic-export/internal/exporter"
	"github.com/chrisschopp/anylogic-export/internal/logging"
	"github.com/chrisschopp/anylogic-export/internal/observability"
	"github.com/chrisschopp/anylogic-export/internal/patching"
	"github.com/chrisschopp/anylogic-export/internal/staging"
	"github.com/chrisschopp/anylogic-export/internal/watch"
)

// ProgressEvent represents a progress update during an export run
type ProgressEvent struct {
	Kind    string   `json:"kind"`
	Phase   string   `json:"phase"`
	State   string   `json:"state"`
	Address string   `json:"address,omitempty"`
	Paths   []string `json:"paths,omitempty"`
	Message string   `json:"message"`
	RunID   string   `json:"run_id,omitempty"`
}

// ProgressCallback is called when run progress occurs
type ProgressCallback func(event ProgressEvent)

// Launcher starts the export tool.
type Launcher interface {
	Start(ctx context.Context) error
}

// Journal records runs and their events. *db.DB implements it.
type Journal interface {
	CreateRun(ctx context.Context, input *db.RunInput) error
	RecordEvent(ctx context.Context, runID uuid.UUID, input *db.RunEventInput) error
	CompleteRun(ctx context.Context, runID uuid.UUID, status, message string) error
}

// RunOptions holds configuration for one export run
type RunOptions struct {
	ModelPath   string
	InstallDir  string
	Experiments []string
	ToolCommand string
	IdleTimeout time.Duration
	Debounce    time.Duration
	DryRun      bool
	NoLaunch    bool // watch only; the export is started some other way
	Verbose     bool
	DatabaseURL string

	Logger     *slog.Logger
	Out        io.Writer // verbose summary output; defaults to stdout
	OnProgress ProgressCallback

	// Collaborator overrides. Nil selects the default implementation.
	Notifier watch.Notifier
	Stager   staging.Stager
	Launcher Launcher
	Journal  Journal
}

// Result describes a finished run
type Result struct {
	RunID     uuid.UUID
	Discovery discovery.Result
	Summary   coordinator.Summary
	Status    string
	Duration  time.Duration
}

// journalBuffer bounds the events waiting to be written to the journal.
const journalBuffer = 256

// RunExport validates the inputs, discovers the expected launcher scripts,
// and runs the coordinator alongside the export tool until every artifact
// is patched and staged or the run fails.
func RunExport(ctx context.Context, opts RunOptions) (*Result, error) {
	started := time.Now()
	runID := uuid.New()

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logging.WithRunID(logger, runID.String())

	modelPath, err := discovery.ValidateModelPath(opts.ModelPath)
	if err != nil {
		return nil, err
	}
	installDir := opts.InstallDir
	if !opts.NoLaunch && opts.Launcher == nil {
		if installDir, err = discovery.ValidateInstallDir(opts.InstallDir); err != nil {
			return nil, err
		}
	}

	disc, err := discovery.Discover(modelPath, opts.Experiments)
	if err != nil {
		return nil, err
	}
	logger.Info("discovered launcher scripts",
		"model", disc.Layout.ModelName,
		"scripts", len(disc.Scripts),
		"synthesized", disc.Synthesized)

	result := &Result{RunID: runID, Discovery: disc}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	printer := observability.NewPrinter(out)
	if opts.Verbose {
		printer.PrintDiscovery(disc)
	}

	journal, closeJournal := openJournal(ctx, opts, logger)
	defer closeJournal()
	if journal != nil {
		err := journal.CreateRun(ctx, &db.RunInput{
			ID:          runID,
			ModelPath:   modelPath,
			Experiments: experimentNames(disc),
			DryRun:      opts.DryRun,
		})
		if err != nil {
			logger.Warn("run journal unavailable", "error", err)
			journal = nil
		}
	}

	events := make(chan coordinator.Event, journalBuffer)
	journalDone := make(chan struct{})
	go func() {
		defer close(journalDone)
		for ev := range events {
			recordEvent(ctx, journal, runID, ev, logger)
		}
	}()

	coord, err := coordinator.New(coordinator.Config{
		Primary:     disc.Scripts,
		StageDirs:   disc.ExperimentDirs,
		Notifier:    notifierFor(opts, logger),
		Stager:      stagerFor(opts, disc, logger),
		Patcher:     patching.Applier{DryRun: opts.DryRun},
		IdleTimeout: opts.IdleTimeout,
		Logger:      logger,
		Observer: func(ev coordinator.Event) {
			if opts.OnProgress != nil {
				opts.OnProgress(toProgress(ev, runID))
			}
			if journal == nil {
				return
			}
			select {
			case events <- ev:
			default:
				logger.Warn("run journal is behind; dropping event", "kind", ev.Kind)
			}
		},
	})
	if err != nil {
		close(events)
		<-journalDone
		return nil, err
	}

	launcher := launcherFor(opts, modelPath, installDir, logger)

	g, gCtx := errgroup.WithContext(ctx)

	// Coordinator
	g.Go(func() error {
		return coord.Run(gCtx)
	})

	// Export tool, once nothing it writes can be missed
	g.Go(func() error {
		if launcher == nil {
			logger.Info("not launching export tool; waiting for an export started elsewhere")
			return nil
		}
		select {
		case <-coord.Ready():
		case <-gCtx.Done():
			return nil
		}
		if err := launcher.Start(gCtx); err != nil {
			logger.Error("export tool did not start; waiting until the idle timeout", "error", err)
		}
		return nil
	})

	runErr := g.Wait()
	close(events)
	<-journalDone

	result.Summary = coord.Summary()
	result.Status = RunStatus(runErr)
	result.Duration = time.Since(started)

	if journal != nil {
		completeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		message := ""
		if runErr != nil {
			message = runErr.Error()
		}
		if err := journal.CompleteRun(completeCtx, runID, result.Status, message); err != nil {
			logger.Warn("failed to complete run journal", "error", err)
		}
		cancel()
	}

	if opts.Verbose {
		printer.PrintRunSummary(observability.RunSummary{
			RunID:     runID.String(),
			Model:     modelPath,
			Status:    result.Status,
			Duration:  result.Duration,
			DryRun:    opts.DryRun,
			Primary:   result.Summary.Primary,
			Secondary: result.Summary.Secondary,
			Err:       runErr,
		})
	}

	if runErr != nil {
		return result, runErr
	}
	logger.Info("export complete", "duration", result.Duration.Round(time.Millisecond))
	return result, nil
}

// RunStatus maps a run's terminal error to the journal status
func RunStatus(err error) string {
	var stalled *coordinator.StalledError
	var notFound *patching.NotFoundError
	switch {
	case err == nil:
		return db.RunStatusCompleted
	case errors.As(err, &stalled):
		return db.RunStatusStalled
	case errors.As(err, &notFound):
		return db.RunStatusPatchNotFound
	case errors.Is(err, context.Canceled):
		return db.RunStatusCanceled
	default:
		return db.RunStatusFailed
	}
}

func openJournal(ctx context.Context, opts RunOptions, logger *slog.Logger) (Journal, func()) {
	if opts.Journal != nil {
		return opts.Journal, func() {}
	}
	if opts.DatabaseURL == "" {
		return nil, func() {}
	}
	database, err := db.Connect(ctx, opts.DatabaseURL)
	if err != nil {
		logger.Warn("failed to connect to database; continuing without run journal", "error", err)
		return nil, func() {}
	}
	if err := database.EnsureSchema(ctx); err != nil {
		logger.Warn("continuing without run journal", "error", err)
		database.Close()
		return nil, func() {}
	}
	logger.Debug("connected to run journal")
	return database, database.Close
}

func notifierFor(opts RunOptions, logger *slog.Logger) watch.Notifier {
	if opts.Notifier != nil {
		return opts.Notifier
	}
	return watch.NewFSNotifier(opts.Debounce, logger)
}

func stagerFor(opts RunOptions, disc discovery.Result, logger *slog.Logger) staging.Stager {
	switch {
	case opts.Stager != nil:
		return opts.Stager
	case opts.DryRun:
		return staging.DryRunStager{Logger: logger}
	default:
		return staging.NewGitStager(disc.Layout.ProjectDir, logger)
	}
}

func launcherFor(opts RunOptions, modelPath, installDir string, logger *slog.Logger) Launcher {
	switch {
	case opts.NoLaunch:
		return nil
	case opts.Launcher != nil:
		return opts.Launcher
	default:
		return &exporter.Launcher{
			Command:    opts.ToolCommand,
			ModelPath:  modelPath,
			InstallDir: installDir,
			Logger:     logger,
		}
	}
}

func recordEvent(ctx context.Context, journal Journal, runID uuid.UUID, ev coordinator.Event, logger *slog.Logger) {
	if journal == nil {
		return
	}
	input := &db.RunEventInput{
		Kind:    string(ev.Kind),
		Phase:   ev.State.Phase(),
		Address: ev.Address.Path,
		Detail:  ev.Detail,
	}
	if input.Address == "" && len(ev.Paths) > 0 {
		input.Address = strings.Join(ev.Paths, string(os.PathListSeparator))
	}
	if ev.Err != nil {
		input.Detail = ev.Err.Error()
	}
	if err := journal.RecordEvent(context.WithoutCancel(ctx), runID, input); err != nil {
		logger.Debug("failed to record run event", "kind", ev.Kind, "error", err)
	}
}

func toProgress(ev coordinator.Event, runID uuid.UUID) ProgressEvent {
	return ProgressEvent{
		Kind:    string(ev.Kind),
		Phase:   ev.State.Phase(),
		State:   string(ev.State),
		Address: ev.Address.Path,
		Paths:   ev.Paths,
		Message: describe(ev),
		RunID:   runID.String(),
	}
}

func describe(ev coordinator.Event) string {
	switch ev.Kind {
	case coordinator.EventStateChanged:
		if ev.Err != nil {
			return fmt.Sprintf("%s -> %s: %v", ev.From, ev.State, ev.Err)
		}
		return fmt.Sprintf("%s -> %s", ev.From, ev.State)
	case coordinator.EventSettled:
		if ev.Address.Kind == artifact.KindPrimary {
			return "patched " + ev.Address.Path
		}
		return "archive written " + ev.Address.Path
	case coordinator.EventReference:
		return fmt.Sprintf("%s references %s", ev.Detail, ev.Address.Path)
	case coordinator.EventNoReferences:
		return ev.Address.Path + " references no archive"
	case coordinator.EventStaged:
		return "staged " + strings.Join(ev.Paths, ", ")
	case coordinator.EventStageFailed:
		return fmt.Sprintf("staging %s failed: %v", strings.Join(ev.Paths, ", "), ev.Err)
	case coordinator.EventIgnored:
		return fmt.Sprintf("ignored %s of %s", ev.Detail, ev.Address.Path)
	default:
		return string(ev.Kind)
	}
}

func experimentNames(disc discovery.Result) []string {
	prefix := disc.Layout.ModelName + "_"
	names := make([]string, 0, len(disc.ExperimentDirs))
	for _, dir := range disc.ExperimentDirs {
		names = append(names, strings.TrimPrefix(filepath.Base(dir), prefix))
	}
	return names
}
