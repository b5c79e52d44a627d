package discovery

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/chrisschopp/anylogic-export/internal/artifact"
)

// ScriptExt is the extension of the Linux launcher script.
const ScriptExt = "sh"

// modelExtensions are the accepted model file extensions.
var modelExtensions = map[string]bool{".alp": true, ".alpx": true}

// Layout names the directories derived from a model file path.
//
//	<ProjectDir>/<ModelName>/<ModelName>.alpx     model file
//	<ProjectDir>/<ModelName>_<Experiment>/        exported experiment
type Layout struct {
	ModelPath  string
	ModelRoot  string
	ModelName  string
	ProjectDir string
}

// NewLayout derives the layout for an absolute model path.
func NewLayout(modelPath string) Layout {
	root := filepath.Dir(modelPath)
	return Layout{
		ModelPath:  modelPath,
		ModelRoot:  root,
		ModelName:  filepath.Base(root),
		ProjectDir: filepath.Dir(root),
	}
}

// ExperimentDir returns the directory the tool exports experiment into.
func (l Layout) ExperimentDir(experiment string) string {
	return filepath.Join(l.ProjectDir, l.ModelName+"_"+experiment)
}

// ScriptPath returns the launcher script inside an experiment directory.
func (l Layout) ScriptPath(experimentDir string) string {
	return filepath.Join(experimentDir, l.ModelName+"_linux."+ScriptExt)
}

// Result lists the primary artifacts of one export.
type Result struct {
	Layout         Layout
	ExperimentDirs []string
	Scripts        []artifact.Address
	// Synthesized is true when no experiment directory existed yet and the
	// addresses were built from the naming convention.
	Synthesized bool
}

// ValidateModelPath checks the model file and returns its absolute path.
func ValidateModelPath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", &InputError{Message: "model path is required", Path: path}
	}
	if !modelExtensions[strings.ToLower(filepath.Ext(path))] {
		return "", &InputError{Message: "not an AnyLogic model file", Path: path}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", &InputError{Message: "failed to resolve model path", Path: path, Cause: err}
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", &InputError{Message: "model path does not exist", Path: abs, Cause: err}
	}
	if info.IsDir() {
		return "", &InputError{Message: "model path is a directory", Path: abs}
	}
	return abs, nil
}

// ValidateInstallDir checks that dir is an absolute path to an existing
// directory.
func ValidateInstallDir(dir string) (string, error) {
	if !filepath.IsAbs(dir) && !isWindowsAbs(dir) {
		return "", &InputError{
			Message: "installation directory must be absolute (a drive such as c:/ on Windows, / elsewhere)",
			Path:    dir,
		}
	}
	info, err := os.Stat(dir)
	if err != nil {
		return "", &InputError{Message: "installation directory does not exist", Path: dir, Cause: err}
	}
	if !info.IsDir() {
		return "", &InputError{Message: "installation path is not a directory", Path: dir}
	}
	return filepath.Clean(dir), nil
}

func isWindowsAbs(p string) bool {
	return len(p) >= 3 && p[1] == ':' && (p[2] == '/' || p[2] == '\\')
}

// ExistingExperimentDirs lists the siblings of the model root named
// "<ModelName>_*".
func ExistingExperimentDirs(l Layout) ([]string, error) {
	entries, err := os.ReadDir(l.ProjectDir)
	if err != nil {
		return nil, err
	}
	prefix := l.ModelName + "_"
	var dirs []string
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), prefix) {
			dirs = append(dirs, filepath.Join(l.ProjectDir, e.Name()))
		}
	}
	return dirs, nil
}

// Discover returns the launcher scripts expected for experiments. Existing
// directories are matched by name suffix. When none exist yet the addresses
// are synthesized, since the tool may create them after this call.
func Discover(modelPath string, experiments []string) (Result, error) {
	experiments = normalizeExperiments(experiments)
	if len(experiments) == 0 {
		return Result{}, &InputError{Message: "at least one experiment is required", Path: modelPath}
	}

	layout := NewLayout(modelPath)
	existing, err := ExistingExperimentDirs(layout)
	if err != nil {
		return Result{}, &InputError{Message: "failed to list project directory", Path: layout.ProjectDir, Cause: err}
	}

	res := Result{Layout: layout}
	if len(existing) == 0 {
		res.Synthesized = true
		for _, exp := range experiments {
			res.ExperimentDirs = append(res.ExperimentDirs, layout.ExperimentDir(exp))
		}
	} else {
		for _, dir := range existing {
			if matchesAny(filepath.Base(dir), experiments) {
				res.ExperimentDirs = append(res.ExperimentDirs, dir)
			}
		}
		if len(res.ExperimentDirs) == 0 {
			found := make([]string, 0, len(existing))
			for _, d := range existing {
				found = append(found, filepath.Base(d))
			}
			return Result{}, &AmbiguousExperimentError{Requested: experiments, Found: found}
		}
	}

	for _, dir := range res.ExperimentDirs {
		res.Scripts = append(res.Scripts, artifact.NewAddress(layout.ScriptPath(dir), artifact.KindPrimary))
	}
	return res, nil
}

func matchesAny(name string, experiments []string) bool {
	for _, exp := range experiments {
		if strings.HasSuffix(name, exp) {
			return true
		}
	}
	return false
}

// normalizeExperiments splits comma-separated entries, trims them and drops
// blanks and duplicates.
func normalizeExperiments(in []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, raw := range in {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" || seen[part] {
				continue
			}
			seen[part] = true
			out = append(out, part)
		}
	}
	return out
}
