package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/chrisschopp/anylogic-export/internal/config"
	"github.com/chrisschopp/anylogic-export/internal/discovery"
	"github.com/chrisschopp/anylogic-export/internal/logging"
	"github.com/chrisschopp/anylogic-export/internal/pipeline"
)

type exportFlags struct {
	configPath  string
	anylogicDir string
	experiments []string
	toolCommand string
	idleTimeout time.Duration
	debounce    time.Duration
	dryRun      bool
	noLaunch    bool
	verbose     bool
	databaseURL string
}

func newExportCmd(root *rootFlags) *cobra.Command {
	flags := &exportFlags{}
	cmd := &cobra.Command{
		Use:   "export [model.alpx]",
		Short: "Export a model, patch its launcher scripts, and stage the result",
		Long: `Starts the AnyLogic export for the model and waits for it to finish in two phases:

  1. every expected <Model>_linux.sh launcher script is patched as soon as it is
     written, removing the chromium chmod line that fails in CI; once all are
     patched their experiment directories are staged together.
  2. every model archive named on the scripts' java -cp lines is staged as soon
     as it is written.

Configuration can be loaded from a JSON file using --config. Command-line arguments override config file values.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, args, root, flags)
		},
	}

	cmd.Flags().StringVar(&flags.configPath, "config", "", "Path to config.json file (values can be overridden by other flags)")
	cmd.Flags().StringVar(&flags.anylogicDir, "anylogic-dir", config.DefaultAnyLogicDir, "AnyLogic installation directory (defaults to ANYLOGIC_DIR env var)")
	cmd.Flags().StringSliceVarP(&flags.experiments, "experiments", "e", []string{config.DefaultExperiment}, "Experiments to export (comma-separated or repeated)")
	cmd.Flags().StringVar(&flags.toolCommand, "tool", config.DefaultToolCommand, "AnyLogic executable")
	cmd.Flags().DurationVar(&flags.idleTimeout, "idle-timeout", config.DefaultIdleTimeout, "Fail when no expected file changes for this long (defaults to EXPORT_IDLE_TIMEOUT env var)")
	cmd.Flags().DurationVar(&flags.debounce, "debounce", config.DefaultDebounce, "Window for coalescing file notifications")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "Compute patches without rewriting files or staging")
	cmd.Flags().BoolVar(&flags.noLaunch, "no-launch", false, "Do not start AnyLogic; wait for an export started elsewhere")
	cmd.Flags().BoolVarP(&flags.verbose, "verbose", "v", false, "Print the expected artifacts and a run summary")
	cmd.Flags().StringVar(&flags.databaseURL, "db-url", "", "PostgreSQL connection URL for the run journal (optional, defaults to DATABASE_URL env var)")

	return cmd
}

// resolveExportConfig layers defaults, environment, config file and flags
func resolveExportConfig(cmd *cobra.Command, args []string, root *rootFlags, flags *exportFlags) (config.Config, error) {
	// Step 1: Built-in defaults and environment
	cfg, err := config.FromEnv(config.Defaults())
	if err != nil {
		return config.Config{}, err
	}

	// Step 2: Config file values win over defaults
	if flags.configPath != "" {
		loaded, err := config.LoadConfig(flags.configPath)
		if err != nil {
			return config.Config{}, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded.MergeWithDefaults(cfg)
	}

	// Step 3: Apply CLI overrides (command-line args take priority)
	// Only override if the flag was explicitly set
	if len(args) == 1 {
		cfg.ModelPath = args[0]
	}
	if cmd.Flags().Changed("anylogic-dir") {
		cfg.AnyLogicDir = flags.anylogicDir
	}
	if cmd.Flags().Changed("experiments") {
		cfg.Experiments = flags.experiments
	}
	if cmd.Flags().Changed("tool") {
		cfg.ToolCommand = flags.toolCommand
	}
	if cmd.Flags().Changed("idle-timeout") {
		cfg.IdleTimeout = config.Duration(flags.idleTimeout)
	}
	if cmd.Flags().Changed("debounce") {
		cfg.Debounce = config.Duration(flags.debounce)
	}
	if cmd.Flags().Changed("dry-run") {
		cfg.DryRun = flags.dryRun
	}
	if cmd.Flags().Changed("verbose") {
		cfg.Verbose = flags.verbose
	}
	if cmd.Flags().Changed("db-url") {
		cfg.DatabaseURL = flags.databaseURL
	}
	root.apply(cmd, &cfg)

	// Step 4: Validate merged config
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	if cfg.ModelPath == "" {
		return config.Config{}, &discovery.InputError{Message: "a model path is required (argument or model_path in --config)"}
	}
	return cfg, nil
}

func runExport(cmd *cobra.Command, args []string, root *rootFlags, flags *exportFlags) error {
	cfg, err := resolveExportConfig(cmd, args, root, flags)
	if err != nil {
		return err
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
	if flags.configPath != "" {
		logger.Debug("loaded config", "path", flags.configPath)
	}

	_, err = pipeline.RunExport(cmd.Context(), pipeline.RunOptions{
		ModelPath:   cfg.ModelPath,
		InstallDir:  cfg.AnyLogicDir,
		Experiments: cfg.Experiments,
		ToolCommand: cfg.ToolCommand,
		IdleTimeout: cfg.IdleTimeout.Std(),
		Debounce:    cfg.Debounce.Std(),
		DryRun:      cfg.DryRun,
		NoLaunch:    flags.noLaunch,
		Verbose:     cfg.Verbose,
		DatabaseURL: cfg.DatabaseURL,
		Logger:      logger,
		Out:         cmd.OutOrStdout(),
	})
	return err
}
