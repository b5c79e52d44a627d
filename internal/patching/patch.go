package patching

import (
	"os"
	"strings"
)

// ChromeReference is the launcher line that marks the bundled browser as
// executable. The browser directory is not committed, so the line fails in CI
// and a headless experiment never needs it.
const ChromeReference = "chmod +x chromium/chromium-linux64/chrome"

// Result is the outcome of patching one artifact.
type Result struct {
	Text       string
	Target     string
	WasPresent bool
	Removed    int
}

// Apply removes every ChromeReference line from text. WasPresent reports
// whether the line was there; Text is unchanged otherwise.
func Apply(text string) Result {
	return RemoveLine(text, ChromeReference)
}

// RemoveLine drops every line of text equal to target. A line is compared
// without its "\n" or "\r\n" terminator; all other bytes are kept as-is.
func RemoveLine(text, target string) Result {
	if text == "" {
		return Result{Target: target}
	}
	var sb strings.Builder
	sb.Grow(len(text))
	removed := 0
	for _, line := range strings.SplitAfter(text, "\n") {
		if line == "" {
			continue
		}
		body := strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")
		if body == target {
			removed++
			continue
		}
		sb.WriteString(line)
	}
	if removed == 0 {
		return Result{Text: text, Target: target}
	}
	return Result{Text: sb.String(), Target: target, WasPresent: true, Removed: removed}
}

// Applier patches artifact files on disk.
type Applier struct {
	// DryRun computes the result without rewriting the file.
	DryRun bool
}

// ApplyFile patches the file at path. The file is rewritten only when the
// target line was present, so untouched files keep their modification time.
// A missing target is not an error here; callers inspect WasPresent.
func (a Applier) ApplyFile(path string) (Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Result{}, &FileError{Message: "failed to stat", Path: path, Cause: err}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, &FileError{Message: "failed to read", Path: path, Cause: err}
	}

	res := Apply(string(data))
	if !res.WasPresent || a.DryRun {
		return res, nil
	}

	if err := os.WriteFile(path, []byte(res.Text), info.Mode().Perm()); err != nil {
		return Result{}, &FileError{Message: "failed to rewrite", Path: path, Cause: err}
	}
	return res, nil
}
