// Package config provides configuration loading and validation for the CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chrisschopp/anylogic-export/internal/schemas"
	embedded "github.com/chrisschopp/anylogic-export/schemas"
	"github.com/go-playground/validator/v10"
)

// Built-in defaults.
const (
	DefaultAnyLogicDir = "C:/Program Files/AnyLogic 8.9 Professional"
	DefaultExperiment  = "Simulation"
	DefaultToolCommand = "anylogic"
	DefaultIdleTimeout = 10 * time.Minute
	DefaultDebounce    = 200 * time.Millisecond
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "text"
)

// Config represents the CLI configuration that can be loaded from a JSON file.
// All fields are optional; missing values use defaults or must be provided via CLI flags.
type Config struct {
	// Paths
	ModelPath   string `json:"model_path,omitempty"`                     // AnyLogic model file (.alp or .alpx)
	AnyLogicDir string `json:"anylogic_dir,omitempty" validate:"required"` // AnyLogic installation directory

	// Export
	Experiments []string `json:"experiments,omitempty" validate:"required,min=1,dive,required"` // Experiment names to export
	ToolCommand string   `json:"tool_command,omitempty" validate:"required"`                    // Export tool executable

	// Timing
	IdleTimeout Duration `json:"idle_timeout,omitempty" validate:"gte=0"` // Longest wait for the next change in a phase
	Debounce    Duration `json:"debounce,omitempty" validate:"gte=0"`     // Notification coalescing window

	// Behavior
	DryRun    bool   `json:"dry_run,omitempty"`                                        // Compute patches without writing or staging
	Verbose   bool   `json:"verbose,omitempty"`                                        // Print a summary box at the end of a run
	LogLevel  string `json:"log_level,omitempty" validate:"omitempty,oneof=debug info warn error"`
	LogFormat string `json:"log_format,omitempty" validate:"omitempty,oneof=text json"`

	DatabaseURL string `json:"database_url,omitempty"` // PostgreSQL connection URL for the run journal
}

// Duration is a time.Duration that reads and writes Go duration strings in JSON.
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"10m\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		AnyLogicDir: DefaultAnyLogicDir,
		Experiments: []string{DefaultExperiment},
		ToolCommand: DefaultToolCommand,
		IdleTimeout: Duration(DefaultIdleTimeout),
		Debounce:    Duration(DefaultDebounce),
		LogLevel:    DefaultLogLevel,
		LogFormat:   DefaultLogFormat,
	}
}

// LoadConfig loads configuration from a JSON file.
// The file is checked against the embedded config schema before it is parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if !json.Valid(data) {
		return nil, fmt.Errorf("failed to parse config JSON: %s is not valid JSON", path)
	}
	if err := schemas.ValidateSource(embedded.ConfigSchema, path, data); err != nil {
		return nil, &ValidationError{Message: "config file " + path + " does not match schema", Cause: err}
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the configuration has valid values.
// Note: This doesn't check that the model or installation exist since
// the export command validates those against the filesystem.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return &ValidationError{Message: describe(err), Cause: err}
	}
	return nil
}

// describe names every failed field by its JSON key.
func describe(err error) string {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok || len(validationErrors) == 0 {
		return "invalid configuration"
	}
	parts := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		parts = append(parts, fmt.Sprintf("'%s' failed %s", jsonName(fe.StructField()), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

var jsonNames = map[string]string{
	"ModelPath":   "model_path",
	"AnyLogicDir": "anylogic_dir",
	"Experiments": "experiments",
	"ToolCommand": "tool_command",
	"IdleTimeout": "idle_timeout",
	"Debounce":    "debounce",
	"LogLevel":    "log_level",
	"LogFormat":   "log_format",
}

func jsonName(field string) string {
	// Slice elements are reported as Experiments[0].
	base, _, _ := strings.Cut(field, "[")
	if name, ok := jsonNames[base]; ok {
		return name + strings.TrimPrefix(field, base)
	}
	return field
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
// This is used to apply config file values over environment and built-in defaults.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	if result.ModelPath == "" {
		result.ModelPath = defaults.ModelPath
	}
	if result.AnyLogicDir == "" {
		result.AnyLogicDir = defaults.AnyLogicDir
	}
	if result.ToolCommand == "" {
		result.ToolCommand = defaults.ToolCommand
	}
	if result.LogLevel == "" {
		result.LogLevel = defaults.LogLevel
	}
	if result.LogFormat == "" {
		result.LogFormat = defaults.LogFormat
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}

	if len(result.Experiments) == 0 {
		result.Experiments = append([]string(nil), defaults.Experiments...)
	}

	// Durations: use default if zero
	if result.IdleTimeout == 0 {
		result.IdleTimeout = defaults.IdleTimeout
	}
	if result.Debounce == 0 {
		result.Debounce = defaults.Debounce
	}

	// Bool fields: cannot distinguish unset from false, so a default only
	// turns them on (CLI flags still win)
	result.DryRun = result.DryRun || defaults.DryRun
	result.Verbose = result.Verbose || defaults.Verbose

	return result
}
