package observability

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/chrisschopp/anylogic-export/internal/artifact"
	"github.com/chrisschopp/anylogic-export/internal/db"
	"github.com/chrisschopp/anylogic-export/internal/discovery"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestPrintDiscovery(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	layout := discovery.NewLayout(filepath.Join("/work", "Factory", "Factory.alpx"))
	res := discovery.Result{
		Layout:      layout,
		Synthesized: true,
		Scripts: []artifact.Address{
			artifact.NewAddress(layout.ScriptPath(layout.ExperimentDir("Simulation")), artifact.KindPrimary),
		},
	}

	p.PrintDiscovery(res)
	output := buf.String()

	assert.Contains(t, output, "EXPECTED ARTIFACTS")
	assert.Contains(t, output, "Factory")
	assert.Contains(t, output, "naming convention")
	assert.Contains(t, output, filepath.Join("Factory_Simulation", "Factory_linux.sh"))
}

func TestPrintRunSummary(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintRunSummary(RunSummary{
		RunID:    "run-1",
		Model:    "/work/Factory/Factory.alpx",
		Status:   "completed",
		Duration: 1500 * time.Millisecond,
		DryRun:   true,
		Primary:  map[string]bool{"/work/Factory_Simulation/Factory_linux.sh": true},
		Secondary: map[string]bool{
			"/work/Factory_Simulation/model.jar":      true,
			"/work/Factory_Simulation/lib/model2.jar": true,
		},
	})
	output := buf.String()

	assert.Contains(t, output, "EXPORT COMPLETE")
	assert.Contains(t, output, "completed (dry run)")
	assert.Contains(t, output, "1.5s")
	assert.Contains(t, output, "Launcher scripts: 1/1 settled")
	assert.Contains(t, output, "Archives: 2/2 settled")
	assert.Contains(t, output, filepath.Join("lib", "model2.jar"))
}

func TestPrintRunSummary_Failed(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintRunSummary(RunSummary{
		Status:  "stalled",
		Primary: map[string]bool{"/w/A_Sim/A_linux.sh": false, "/w/A_Opt/A_linux.sh": true},
		Err:     errors.New("run stalled"),
	})
	output := buf.String()

	assert.Contains(t, output, "EXPORT FAILED")
	assert.Contains(t, output, "1/2 settled")
	assert.Contains(t, output, "… "+filepath.Join("A_Sim", "A_linux.sh"))
	assert.Contains(t, output, "run stalled")
	assert.NotContains(t, output, "Archives")
}

func TestPrintRunSummary_TruncatesLongSets(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	set := make(map[string]bool)
	for i := 0; i < maxItemsToShow+3; i++ {
		set[filepath.Join("/w", "dir", strings.Repeat("x", i+1)+".jar")] = true
	}
	p.PrintRunSummary(RunSummary{Status: "completed", Secondary: set})

	assert.Contains(t, buf.String(), "... and 3 more")
}

func TestPrintRuns(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Minute)
	msg := "run stalled in primary_settling"
	runs := []db.Run{
		{ModelPath: "/w/Factory/Factory.alpx", Experiments: []string{"Simulation"}, Status: "completed", StartedAt: start, CompletedAt: &end},
		{ModelPath: "/w/Port/Port.alp", Experiments: []string{"Sim", "Opt"}, Status: "stalled", StartedAt: start, Message: &msg},
	}

	p.PrintRuns(runs)
	output := buf.String()

	assert.Contains(t, output, "RECENT EXPORT RUNS (2)")
	assert.Contains(t, output, "Factory.alpx [Simulation]")
	assert.Contains(t, output, "took 2m0s")
	assert.Contains(t, output, "Port.alp [Sim, Opt]")
	assert.Contains(t, output, msg)
}

func TestPrintRunDetail(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(90 * time.Second)
	jar := "/w/Factory/Simulation/lib/model.jar"
	run := db.Run{
		ID:          uuid.MustParse("6f1c2d3e-4a5b-4c6d-8e7f-901234567890"),
		ModelPath:   "/w/Factory/Factory.alpx",
		Experiments: []string{"Simulation"},
		Status:      "completed",
		DryRun:      true,
		StartedAt:   start,
		CompletedAt: &end,
	}
	events := []db.RunEvent{
		{Kind: "settled", Phase: "primary", CreatedAt: start},
		{Kind: "settled", Phase: "secondary", Address: &jar, CreatedAt: end},
	}

	p.PrintRunDetail(run, events)
	output := buf.String()

	assert.Contains(t, output, "EXPORT RUN 6f1c2d3e-4a5b-4c6d-8e7f-901234567890")
	assert.Contains(t, output, "Status: completed")
	assert.Contains(t, output, "Duration: 1m30s")
	assert.Contains(t, output, "Dry run: yes")
	assert.Contains(t, output, "Events (2):")
	assert.Contains(t, output, "settled model.jar")
}

func TestPrintRunDetail_NoEvents(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintRunDetail(db.Run{ID: uuid.New(), Status: "running"}, nil)

	assert.Contains(t, buf.String(), "Events (0):")
	assert.Contains(t, buf.String(), "(none recorded)")
	assert.NotContains(t, buf.String(), "Duration:")
}

func TestPrintRuns_Empty(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintRuns(nil)

	assert.Equal(t, "No export runs recorded.\n", buf.String())
}

func TestPrintBox_TruncatesLongLines(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.printBox("TITLE", strings.Repeat("a", 100))

	assert.Contains(t, buf.String(), "...")
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		assert.Equal(t, boxWidth, len([]rune(line)))
	}
}
