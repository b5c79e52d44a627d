package scaffold

import (
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Hook is one hook of a pre-commit repository entry. Keys this package does
// not manage are kept in Extra.
type Hook struct {
	ID            string         `yaml:"id"`
	Name          string         `yaml:"name,omitempty"`
	Entry         string         `yaml:"entry,omitempty"`
	Language      string         `yaml:"language,omitempty"`
	Files         string         `yaml:"files,omitempty"`
	PassFilenames *bool          `yaml:"pass_filenames,omitempty"`
	Extra         map[string]any `yaml:",inline"`
}

type repoEntry struct {
	Repo  string         `yaml:"repo"`
	Rev   string         `yaml:"rev,omitempty"`
	Hooks []Hook         `yaml:"hooks"`
	Extra map[string]any `yaml:",inline"`
}

type preCommitConfig struct {
	Repos []repoEntry    `yaml:"repos"`
	Extra map[string]any `yaml:",inline"`
}

const localRepo = "local"

// NewHook builds the export hook for a model inside repoDir. Paths in the
// entry are relative to repoDir with forward slashes, since pre-commit runs
// from the repository root.
func NewHook(repoDir, modelPath string, experiments []string, command string) (Hook, error) {
	if command == "" {
		command = DefaultCommand
	}
	absModel, err := filepath.Abs(modelPath)
	if err != nil {
		return Hook{}, fmt.Errorf("scaffold: resolve model path: %w", err)
	}
	rel, err := filepath.Rel(repoDir, absModel)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return Hook{}, fmt.Errorf("scaffold: model %s is outside repository %s", absModel, repoDir)
	}
	rel = filepath.ToSlash(rel)

	entry := fmt.Sprintf("%s export %s", command, rel)
	if len(experiments) > 0 {
		entry += " --experiments " + strings.Join(experiments, ",")
	}
	passFilenames := false
	return Hook{
		ID:            HookID,
		Name:          "Export AnyLogic model",
		Entry:         entry,
		Language:      "system",
		Files:         `\.alpx?$`,
		PassFilenames: &passFilenames,
	}, nil
}

// MergePreCommit returns existing with every hook named hook.ID replaced by
// hook. When none existed the hook is added to the first local repository,
// or to a new one. Other repositories and hooks are kept.
func MergePreCommit(existing []byte, hook Hook) ([]byte, bool, error) {
	var cfg preCommitConfig
	if len(strings.TrimSpace(string(existing))) > 0 {
		if err := yaml.Unmarshal(existing, &cfg); err != nil {
			return nil, false, fmt.Errorf("scaffold: parse pre-commit config: %w", err)
		}
	}

	replaced := false
	placed := false
	for i := range cfg.Repos {
		repo := &cfg.Repos[i]
		hooks := repo.Hooks[:0]
		for _, h := range repo.Hooks {
			if h.ID != hook.ID {
				hooks = append(hooks, h)
				continue
			}
			replaced = true
			if !placed {
				hooks = append(hooks, hook)
				placed = true
			}
		}
		repo.Hooks = hooks
	}

	if !placed {
		for i := range cfg.Repos {
			if cfg.Repos[i].Repo == localRepo {
				cfg.Repos[i].Hooks = append(cfg.Repos[i].Hooks, hook)
				placed = true
				break
			}
		}
	}
	if !placed {
		cfg.Repos = append(cfg.Repos, repoEntry{Repo: localRepo, Hooks: []Hook{hook}})
	}

	out, err := yaml.Marshal(&cfg)
	if err != nil {
		return nil, false, fmt.Errorf("scaffold: encode pre-commit config: %w", err)
	}
	return out, replaced, nil
}
