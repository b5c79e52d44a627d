package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrisschopp/anylogic-export/internal/artifact"
	"github.com/chrisschopp/anylogic-export/internal/coordinator"
	"github.com/chrisschopp/anylogic-export/internal/db"
	"github.com/chrisschopp/anylogic-export/internal/discovery"
	"github.com/chrisschopp/anylogic-export/internal/logging"
	"github.com/chrisschopp/anylogic-export/internal/patching"
)

const launcherScript = "#!/bin/sh\n" +
	"cd \"$(dirname \"$0\")\"\n" +
	patching.ChromeReference + "\n" +
	"java -cp model.jar:lib/com.anylogic.engine.jar -Xmx512m factory.Simulation $*\n"

func quiet() *slog.Logger {
	return logging.New("error", "text", io.Discard)
}

type launcherFunc func(ctx context.Context) error

func (f launcherFunc) Start(ctx context.Context) error { return f(ctx) }

type recordingStager struct {
	mu    sync.Mutex
	calls [][]string
}

func (s *recordingStager) Stage(_ context.Context, paths ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, append([]string(nil), paths...))
	return nil
}

func (s *recordingStager) snapshot() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]string(nil), s.calls...)
}

type fakeJournal struct {
	mu      sync.Mutex
	created *db.RunInput
	events  []db.RunEventInput
	status  string
	message string
}

func (j *fakeJournal) CreateRun(_ context.Context, input *db.RunInput) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.created = input
	return nil
}

func (j *fakeJournal) RecordEvent(_ context.Context, _ uuid.UUID, input *db.RunEventInput) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.events = append(j.events, *input)
	return nil
}

func (j *fakeJournal) CompleteRun(_ context.Context, _ uuid.UUID, status, message string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = status
	j.message = message
	return nil
}

// project lays out <root>/Factory/Factory.alpx and returns the model path
// and the experiment directory the export will create.
func project(t *testing.T) (string, string) {
	t.Helper()
	root := t.TempDir()
	modelDir := filepath.Join(root, "Factory")
	require.NoError(t, os.MkdirAll(modelDir, 0o755))
	modelPath := filepath.Join(modelDir, "Factory.alpx")
	require.NoError(t, os.WriteFile(modelPath, []byte("<model/>"), 0o644))
	return modelPath, filepath.Join(root, "Factory_Simulation")
}

// writeAtomic moves fully written content into place so a single create
// notification carries the whole file.
func writeAtomic(path, content string) error {
	tmp, err := os.CreateTemp(filepath.Dir(filepath.Dir(path)), ".export-*")
	if err != nil {
		return err
	}
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func TestRunExport_EndToEnd(t *testing.T) {
	modelPath, expDir := project(t)
	script := filepath.Join(expDir, "Factory_linux.sh")
	jar := filepath.Join(expDir, "model.jar")

	secondary := make(chan struct{})
	var once sync.Once
	var mu sync.Mutex
	var progress []ProgressEvent

	writerErr := make(chan error, 1)
	stager := &recordingStager{}
	journal := &fakeJournal{}
	var out bytes.Buffer

	res, err := RunExport(context.Background(), RunOptions{
		ModelPath:   modelPath,
		Experiments: []string{"Simulation"},
		IdleTimeout: 5 * time.Second,
		Debounce:    20 * time.Millisecond,
		Verbose:     true,
		Logger:      quiet(),
		Out:         &out,
		Stager:      stager,
		Journal:     journal,
		OnProgress: func(ev ProgressEvent) {
			mu.Lock()
			progress = append(progress, ev)
			mu.Unlock()
			if ev.Kind == string(coordinator.EventStateChanged) && ev.State == string(coordinator.StateSecondarySettling) {
				once.Do(func() { close(secondary) })
			}
		},
		Launcher: launcherFunc(func(context.Context) error {
			go func() {
				if err := os.MkdirAll(expDir, 0o755); err != nil {
					writerErr <- err
					return
				}
				if err := writeAtomic(script, launcherScript); err != nil {
					writerErr <- err
					return
				}
				select {
				case <-secondary:
				case <-time.After(5 * time.Second):
					writerErr <- errors.New("secondary phase never started")
					return
				}
				writerErr <- writeAtomic(jar, "PK")
			}()
			return nil
		}),
	})
	require.NoError(t, err)
	require.NoError(t, <-writerErr)

	assert.Equal(t, db.RunStatusCompleted, res.Status)
	assert.True(t, res.Discovery.Synthesized)
	assert.Equal(t, coordinator.StateDone, res.Summary.State)
	assert.Equal(t, map[string]bool{script: true}, res.Summary.Primary)
	assert.Equal(t, map[string]bool{jar: true}, res.Summary.Secondary)

	data, err := os.ReadFile(script)
	require.NoError(t, err)
	assert.NotContains(t, string(data), patching.ChromeReference)
	assert.Contains(t, string(data), "java -cp model.jar")

	assert.Equal(t, [][]string{{expDir}, {jar}}, stager.snapshot())

	journal.mu.Lock()
	require.NotNil(t, journal.created)
	assert.Equal(t, res.RunID, journal.created.ID)
	assert.Equal(t, []string{"Simulation"}, journal.created.Experiments)
	assert.Equal(t, db.RunStatusCompleted, journal.status)
	assert.NotEmpty(t, journal.events)
	journal.mu.Unlock()

	mu.Lock()
	kinds := make(map[string]bool)
	for _, ev := range progress {
		kinds[ev.Kind] = true
		assert.Equal(t, res.RunID.String(), ev.RunID)
	}
	mu.Unlock()
	assert.True(t, kinds[string(coordinator.EventSettled)])
	assert.True(t, kinds[string(coordinator.EventReference)])
	assert.True(t, kinds[string(coordinator.EventStaged)])

	assert.Contains(t, out.String(), "EXPECTED ARTIFACTS")
	assert.Contains(t, out.String(), "EXPORT COMPLETE")
}

func TestRunExport_DryRunLeavesScriptUntouched(t *testing.T) {
	modelPath, expDir := project(t)
	script := filepath.Join(expDir, "Factory_linux.sh")
	content := "#!/bin/sh\n" + patching.ChromeReference + "\n"

	writerErr := make(chan error, 1)
	res, err := RunExport(context.Background(), RunOptions{
		ModelPath:   modelPath,
		Experiments: []string{"Simulation"},
		IdleTimeout: 5 * time.Second,
		Debounce:    20 * time.Millisecond,
		DryRun:      true,
		Logger:      quiet(),
		Launcher: launcherFunc(func(context.Context) error {
			go func() {
				if err := os.MkdirAll(expDir, 0o755); err != nil {
					writerErr <- err
					return
				}
				writerErr <- writeAtomic(script, content)
			}()
			return nil
		}),
	})
	require.NoError(t, err)
	require.NoError(t, <-writerErr)
	assert.Equal(t, db.RunStatusCompleted, res.Status)
	assert.Empty(t, res.Summary.Secondary)

	data, err := os.ReadFile(script)
	require.NoError(t, err)
	assert.Equal(t, content, string(data))
}

func TestRunExport_StallsWhenToolFailsToStart(t *testing.T) {
	modelPath, _ := project(t)
	journal := &fakeJournal{}

	res, err := RunExport(context.Background(), RunOptions{
		ModelPath:   modelPath,
		Experiments: []string{"Simulation"},
		IdleTimeout: 100 * time.Millisecond,
		Logger:      quiet(),
		Stager:      &recordingStager{},
		Journal:     journal,
		Launcher: launcherFunc(func(context.Context) error {
			return errors.New("executable file not found")
		}),
	})

	var stalled *coordinator.StalledError
	require.True(t, errors.As(err, &stalled), "got %v", err)
	require.NotNil(t, res)
	assert.Equal(t, db.RunStatusStalled, res.Status)
	assert.Equal(t, coordinator.StateFailed, res.Summary.State)

	journal.mu.Lock()
	defer journal.mu.Unlock()
	assert.Equal(t, db.RunStatusStalled, journal.status)
	assert.Contains(t, journal.message, "Factory_linux.sh")
}

func TestRunExport_NoLaunchSkipsInstallDir(t *testing.T) {
	modelPath, _ := project(t)

	res, err := RunExport(context.Background(), RunOptions{
		ModelPath:   modelPath,
		InstallDir:  "relative/install",
		Experiments: []string{"Simulation"},
		IdleTimeout: 50 * time.Millisecond,
		NoLaunch:    true,
		Logger:      quiet(),
		Stager:      &recordingStager{},
	})

	var stalled *coordinator.StalledError
	assert.True(t, errors.As(err, &stalled), "got %v", err)
	assert.Equal(t, db.RunStatusStalled, res.Status)
}

func TestRunExport_InputErrors(t *testing.T) {
	modelPath, _ := project(t)

	tests := []struct {
		name string
		opts RunOptions
	}{
		{"wrong extension", RunOptions{ModelPath: strings.TrimSuffix(modelPath, ".alpx") + ".txt", NoLaunch: true}},
		{"missing model", RunOptions{ModelPath: filepath.Join(t.TempDir(), "M", "M.alp"), NoLaunch: true}},
		{"relative install dir", RunOptions{ModelPath: modelPath, InstallDir: "Program Files/AnyLogic"}},
		{"missing install dir", RunOptions{ModelPath: modelPath, InstallDir: filepath.Join(t.TempDir(), "nope")}},
		{"no experiments", RunOptions{ModelPath: modelPath, Experiments: []string{" , "}, NoLaunch: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.Logger = quiet()
			res, err := RunExport(context.Background(), tt.opts)
			assert.Nil(t, res)
			var inputErr *discovery.InputError
			assert.True(t, errors.As(err, &inputErr), "got %v", err)
		})
	}
}

func TestRunExport_AmbiguousExperiment(t *testing.T) {
	modelPath, expDir := project(t)
	require.NoError(t, os.MkdirAll(expDir, 0o755))

	_, err := RunExport(context.Background(), RunOptions{
		ModelPath:   modelPath,
		Experiments: []string{"Optimization"},
		NoLaunch:    true,
		Logger:      quiet(),
	})

	var ambiguous *discovery.AmbiguousExperimentError
	assert.True(t, errors.As(err, &ambiguous), "got %v", err)
}

func TestRunStatus(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, db.RunStatusCompleted},
		{&coordinator.StalledError{}, db.RunStatusStalled},
		{&patching.NotFoundError{Path: "a.sh"}, db.RunStatusPatchNotFound},
		{context.Canceled, db.RunStatusCanceled},
		{&coordinator.StreamClosedError{}, db.RunStatusFailed},
		{errors.New("boom"), db.RunStatusFailed},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, RunStatus(tt.err), "%v", tt.err)
	}
}

func TestToProgress(t *testing.T) {
	runID := uuid.New()
	script := artifact.NewAddress("/w/A_Sim/A_linux.sh", artifact.KindPrimary)
	jar := artifact.NewAddress("/w/A_Sim/model.jar", artifact.KindSecondary)

	ev := toProgress(coordinator.Event{
		Kind:  coordinator.EventStateChanged,
		From:  coordinator.StateAwaitingPrimary,
		State: coordinator.StatePrimarySettling,
	}, runID)
	assert.Equal(t, "primary", ev.Phase)
	assert.Equal(t, "awaiting_primary -> primary_settling", ev.Message)
	assert.Equal(t, runID.String(), ev.RunID)

	ev = toProgress(coordinator.Event{Kind: coordinator.EventSettled, State: coordinator.StatePrimarySettling, Address: script}, runID)
	assert.Equal(t, "patched /w/A_Sim/A_linux.sh", ev.Message)
	assert.Equal(t, script.Path, ev.Address)

	ev = toProgress(coordinator.Event{Kind: coordinator.EventReference, State: coordinator.StatePrimarySettling, Address: jar, Detail: script.Path}, runID)
	assert.Equal(t, "/w/A_Sim/A_linux.sh references /w/A_Sim/model.jar", ev.Message)

	ev = toProgress(coordinator.Event{Kind: coordinator.EventStageFailed, State: coordinator.StateSecondarySettling, Paths: []string{jar.Path}, Err: errors.New("locked")}, runID)
	assert.Equal(t, "secondary", ev.Phase)
	assert.Equal(t, "staging /w/A_Sim/model.jar failed: locked", ev.Message)
}

func TestRecordEvent(t *testing.T) {
	journal := &fakeJournal{}
	runID := uuid.New()

	recordEvent(context.Background(), journal, runID, coordinator.Event{
		Kind:  coordinator.EventStaged,
		State: coordinator.StateAwaitingSecondary,
		Paths: []string{"/w/A_Sim", "/w/A_Opt"},
	}, quiet())
	recordEvent(context.Background(), journal, runID, coordinator.Event{
		Kind:  coordinator.EventStateChanged,
		State: coordinator.StateFailed,
		Err:   errors.New("stalled"),
	}, quiet())
	recordEvent(context.Background(), nil, runID, coordinator.Event{Kind: coordinator.EventStaged}, quiet())

	require.Len(t, journal.events, 2)
	assert.Equal(t, "staged", journal.events[0].Kind)
	assert.Equal(t, "secondary", journal.events[0].Phase)
	assert.Equal(t, "/w/A_Sim"+string(os.PathListSeparator)+"/w/A_Opt", journal.events[0].Address)
	assert.Equal(t, "failed", journal.events[1].Phase)
	assert.Equal(t, "stalled", journal.events[1].Detail)
}
