// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/chrisschopp/anylogic-export/internal/db"
	"github.com/chrisschopp/anylogic-export/internal/discovery"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 8
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len([]rune(line)) > boxWidth-4 {
			line = string([]rune(line)[:boxWidth-7]) + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// shortPath keeps the last directory and the file name, which is what
// distinguishes artifacts of one export.
func shortPath(p string) string {
	return filepath.Join(filepath.Base(filepath.Dir(p)), filepath.Base(p))
}

// PrintDiscovery outputs the launcher scripts a run is waiting for.
func (p *Printer) PrintDiscovery(res discovery.Result) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Model:    %s\n", res.Layout.ModelName))
	sb.WriteString(fmt.Sprintf("Project:  %s\n", res.Layout.ProjectDir))
	if res.Synthesized {
		sb.WriteString("Source:   naming convention (no export yet)\n")
	} else {
		sb.WriteString("Source:   existing experiment directories\n")
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Launcher scripts (%d):\n", len(res.Scripts)))
	for _, s := range res.Scripts {
		sb.WriteString(fmt.Sprintf("  • %s\n", shortPath(s.Path)))
	}

	p.printBox("EXPECTED ARTIFACTS", strings.TrimSuffix(sb.String(), "\n"))
}

// RunSummary is the outcome of one run as shown to the user.
type RunSummary struct {
	RunID     string
	Model     string
	Status    string
	Duration  time.Duration
	DryRun    bool
	Primary   map[string]bool
	Secondary map[string]bool
	Err       error
}

// PrintRunSummary outputs the final state of both completion sets.
func (p *Printer) PrintRunSummary(s RunSummary) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Run:      %s\n", s.RunID))
	sb.WriteString(fmt.Sprintf("Model:    %s\n", filepath.Base(s.Model)))
	status := s.Status
	if s.DryRun {
		status += " (dry run)"
	}
	sb.WriteString(fmt.Sprintf("Status:   %s\n", status))
	sb.WriteString(fmt.Sprintf("Duration: %s\n", s.Duration.Round(time.Millisecond)))

	writeSet(&sb, "Launcher scripts", s.Primary)
	writeSet(&sb, "Archives", s.Secondary)

	if s.Err != nil {
		sb.WriteString("\nError:\n")
		sb.WriteString(fmt.Sprintf("  %v\n", s.Err))
	}

	title := "EXPORT COMPLETE"
	if s.Err != nil {
		title = "EXPORT FAILED"
	}
	p.printBox(title, strings.TrimSuffix(sb.String(), "\n"))
}

func writeSet(sb *strings.Builder, label string, set map[string]bool) {
	if len(set) == 0 {
		return
	}
	paths := make([]string, 0, len(set))
	settled := 0
	for path, ok := range set {
		paths = append(paths, path)
		if ok {
			settled++
		}
	}
	sort.Strings(paths)

	sb.WriteString(fmt.Sprintf("\n%s: %d/%d settled\n", label, settled, len(set)))
	count := min(len(paths), maxItemsToShow)
	for i := 0; i < count; i++ {
		mark := "✓"
		if !set[paths[i]] {
			mark = "…"
		}
		sb.WriteString(fmt.Sprintf("  %s %s\n", mark, shortPath(paths[i])))
	}
	if len(paths) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(paths)-maxItemsToShow))
	}
}

// PrintRuns outputs journaled runs, newest first.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintRuns(runs []db.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(p.out, "No export runs recorded.")
		return
	}

	var sb strings.Builder
	for i, run := range runs {
		sb.WriteString(fmt.Sprintf("%s  %s\n", run.StartedAt.Local().Format("2006-01-02 15:04:05"), run.Status))
		sb.WriteString(fmt.Sprintf("  %s [%s]\n", filepath.Base(run.ModelPath), strings.Join(run.Experiments, ", ")))
		sb.WriteString(fmt.Sprintf("  id %s\n", run.ID))
		if d := run.Duration(); d > 0 {
			sb.WriteString(fmt.Sprintf("  took %s", d.Round(time.Second)))
			if run.DryRun {
				sb.WriteString(", dry run")
			}
			sb.WriteString("\n")
		}
		if run.Message != nil && *run.Message != "" {
			sb.WriteString(fmt.Sprintf("  %s\n", *run.Message))
		}
		if i < len(runs)-1 {
			sb.WriteString("\n")
		}
	}

	p.printBox(fmt.Sprintf("RECENT EXPORT RUNS (%d)", len(runs)), strings.TrimSuffix(sb.String(), "\n"))
}

// PrintRunDetail outputs one run followed by its journaled events.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintRunDetail(run db.Run, events []db.RunEvent) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Model: %s\n", shortPath(run.ModelPath)))
	sb.WriteString(fmt.Sprintf("Experiments: %s\n", strings.Join(run.Experiments, ", ")))
	sb.WriteString(fmt.Sprintf("Status: %s\n", run.Status))
	sb.WriteString(fmt.Sprintf("Started: %s\n", run.StartedAt.Local().Format("2006-01-02 15:04:05")))
	if d := run.Duration(); d > 0 {
		sb.WriteString(fmt.Sprintf("Duration: %s\n", d.Round(time.Millisecond)))
	}
	if run.DryRun {
		sb.WriteString("Dry run: yes\n")
	}
	if run.Message != nil && *run.Message != "" {
		sb.WriteString(fmt.Sprintf("Message: %s\n", *run.Message))
	}

	sb.WriteString(fmt.Sprintf("\nEvents (%d):\n", len(events)))
	if len(events) == 0 {
		sb.WriteString("  (none recorded)\n")
	}
	for _, ev := range events {
		line := fmt.Sprintf("  %s %-9s %s", ev.CreatedAt.Local().Format("15:04:05"), ev.Phase, ev.Kind)
		if ev.Address != nil {
			line += " " + filepath.Base(*ev.Address)
		}
		sb.WriteString(line + "\n")
	}

	p.printBox("EXPORT RUN "+run.ID.String(), strings.TrimSuffix(sb.String(), "\n"))
}
