// Package references finds the packaged archives a launcher script runs.
package references

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/chrisschopp/anylogic-export/internal/artifact"
)

// LauncherPrefix starts the line that invokes the packaged program.
const LauncherPrefix = "java -cp"

// archivePattern matches an optional relative directory followed by
// model.jar, model2.jar, ...
var archivePattern = regexp.MustCompile(`(?:\b|^)(?:[a-zA-Z0-9_/.-]+/)?model\d*\.jar\b`)

// LauncherLine returns the first line of text beginning with LauncherPrefix.
func LauncherLine(text string) (string, bool) {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.HasPrefix(line, LauncherPrefix) {
			return line, true
		}
	}
	return "", false
}

// Archives returns the archive references on the launcher line of text, in
// the order they appear, without duplicates.
func Archives(text string) []string {
	line, ok := LauncherLine(text)
	if !ok {
		return nil
	}
	var out []string
	seen := make(map[string]bool)
	for _, m := range archivePattern.FindAllString(line, -1) {
		if seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}

// Extract resolves the archive references in text against dir, the
// directory of the script the text came from. An empty result means the
// script has no launcher line or the line names no matching archive.
func Extract(text, dir string) []artifact.Address {
	refs := Archives(text)
	if len(refs) == 0 {
		return nil
	}
	out := make([]artifact.Address, 0, len(refs))
	seen := make(map[string]bool, len(refs))
	for _, ref := range refs {
		p := filepath.FromSlash(ref)
		if !filepath.IsAbs(p) {
			p = filepath.Join(dir, p)
		}
		addr := artifact.NewAddress(p, artifact.KindSecondary)
		if seen[addr.Path] {
			continue
		}
		seen[addr.Path] = true
		out = append(out, addr)
	}
	return out
}
