package scaffold

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/chrisschopp/anylogic-export/internal/discovery"
)

func newModel(t *testing.T) (string, string) {
	t.Helper()
	repo := t.TempDir()
	dir := filepath.Join(repo, "models", "Factory")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	model := filepath.Join(dir, "Factory.alpx")
	require.NoError(t, os.WriteFile(model, []byte("<model/>"), 0o644))
	return repo, model
}

func TestEnsureIgnore_NewFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), GitignoreFile)

	added, err := EnsureIgnore(path, IgnoreEntries)
	require.NoError(t, err)
	assert.Equal(t, IgnoreEntries, added)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "chromium/\n*.log\n", string(data))
}

func TestEnsureIgnore_KeepsExistingLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), GitignoreFile)
	require.NoError(t, os.WriteFile(path, []byte("bin/\n  chromium/  \n*.tmp"), 0o644))

	added, err := EnsureIgnore(path, IgnoreEntries)
	require.NoError(t, err)
	assert.Equal(t, []string{"*.log"}, added)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "bin/\n  chromium/  \n*.tmp\n*.log\n", string(data))

	added, err = EnsureIgnore(path, IgnoreEntries)
	require.NoError(t, err)
	assert.Empty(t, added)
}

func TestNewHook(t *testing.T) {
	repo, model := newModel(t)

	hook, err := NewHook(repo, model, []string{"Simulation", "Optimization"}, "")
	require.NoError(t, err)

	assert.Equal(t, HookID, hook.ID)
	assert.Equal(t, "anylogic_export export models/Factory/Factory.alpx --experiments Simulation,Optimization", hook.Entry)
	assert.Equal(t, "system", hook.Language)
	require.NotNil(t, hook.PassFilenames)
	assert.False(t, *hook.PassFilenames)
}

func TestNewHook_OutsideRepo(t *testing.T) {
	_, model := newModel(t)

	_, err := NewHook(t.TempDir(), model, nil, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outside repository")
}

func TestMergePreCommit_Empty(t *testing.T) {
	hook := Hook{ID: HookID, Entry: "anylogic_export export M/M.alp", Language: "system"}

	out, replaced, err := MergePreCommit(nil, hook)
	require.NoError(t, err)
	assert.False(t, replaced)

	var cfg preCommitConfig
	require.NoError(t, yaml.Unmarshal(out, &cfg))
	require.Len(t, cfg.Repos, 1)
	assert.Equal(t, "local", cfg.Repos[0].Repo)
	require.Len(t, cfg.Repos[0].Hooks, 1)
	assert.Equal(t, hook.Entry, cfg.Repos[0].Hooks[0].Entry)
}

func TestMergePreCommit_ReplacesAndKeepsOthers(t *testing.T) {
	existing := []byte(`default_stages: [pre-commit]
repos:
  - repo: https://github.com/pre-commit/pre-commit-hooks
    rev: v4.6.0
    hooks:
      - id: trailing-whitespace
  - repo: local
    hooks:
      - id: lint
        entry: make lint
        language: system
        stages: [pre-push]
      - id: anylogic-export
        entry: old command
        language: system
`)
	hook := Hook{ID: HookID, Entry: "anylogic_export export M/M.alp", Language: "system"}

	out, replaced, err := MergePreCommit(existing, hook)
	require.NoError(t, err)
	assert.True(t, replaced)

	var cfg preCommitConfig
	require.NoError(t, yaml.Unmarshal(out, &cfg))
	assert.Contains(t, cfg.Extra, "default_stages")
	require.Len(t, cfg.Repos, 2)

	assert.Equal(t, "v4.6.0", cfg.Repos[0].Rev)
	assert.Equal(t, "trailing-whitespace", cfg.Repos[0].Hooks[0].ID)

	local := cfg.Repos[1].Hooks
	require.Len(t, local, 2)
	assert.Equal(t, "lint", local[0].ID)
	assert.Contains(t, local[0].Extra, "stages")
	assert.Equal(t, HookID, local[1].ID)
	assert.Equal(t, "anylogic_export export M/M.alp", local[1].Entry)
	assert.NotContains(t, string(out), "old command")
}

func TestMergePreCommit_AddsToExistingLocalRepo(t *testing.T) {
	existing := []byte("repos:\n  - repo: local\n    hooks:\n      - id: lint\n        entry: make lint\n        language: system\n")

	out, replaced, err := MergePreCommit(existing, Hook{ID: HookID, Entry: "x", Language: "system"})
	require.NoError(t, err)
	assert.False(t, replaced)

	var cfg preCommitConfig
	require.NoError(t, yaml.Unmarshal(out, &cfg))
	require.Len(t, cfg.Repos, 1)
	assert.Len(t, cfg.Repos[0].Hooks, 2)
}

func TestMergePreCommit_InvalidYAML(t *testing.T) {
	_, _, err := MergePreCommit([]byte("repos: [\n"), Hook{ID: HookID})
	assert.Error(t, err)
}

func TestInit(t *testing.T) {
	repo, model := newModel(t)

	res, err := Init(Options{RepoDir: repo, ModelPath: model, Experiments: []string{"Simulation"}})
	require.NoError(t, err)
	assert.Equal(t, IgnoreEntries, res.IgnoreAdded)
	assert.False(t, res.HookReplaced)

	data, err := os.ReadFile(filepath.Join(repo, PreCommitFile))
	require.NoError(t, err)
	assert.Contains(t, string(data), "anylogic_export export models/Factory/Factory.alpx --experiments Simulation")

	res, err = Init(Options{RepoDir: repo, ModelPath: model, Experiments: []string{"Simulation"}})
	require.NoError(t, err)
	assert.Empty(t, res.IgnoreAdded)
	assert.True(t, res.HookReplaced)
}

func TestInit_InvalidModel(t *testing.T) {
	_, err := Init(Options{RepoDir: t.TempDir(), ModelPath: "Factory.txt"})

	var inputErr *discovery.InputError
	assert.True(t, errors.As(err, &inputErr))
}
