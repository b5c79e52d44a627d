// Package main provides the entry point for the AnyLogic export coordinator CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/chrisschopp/anylogic-export/internal/config"
	"github.com/chrisschopp/anylogic-export/internal/coordinator"
	"github.com/chrisschopp/anylogic-export/internal/discovery"
	"github.com/chrisschopp/anylogic-export/internal/patching"
)

// Exit codes
const (
	exitOK           = 0
	exitUnexpected   = 1
	exitInput        = 2
	exitPatchMissing = 3
	exitStalled      = 4
	exitStreamClosed = 5
)

// rootFlags are shared by every subcommand
type rootFlags struct {
	logLevel  string
	logFormat string
}

// usageError marks a command line the user has to fix
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:   "anylogic_export",
		Short: "Export AnyLogic models and prepare the result for CI",
		Long: `anylogic_export starts an AnyLogic export, patches each generated Linux
launcher script as it is written, waits for the model archives those scripts
run, and stages everything with git.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", config.DefaultLogLevel, "Log level: debug, info, warn, error (defaults to LOG_LEVEL env var)")
	root.PersistentFlags().StringVar(&flags.logFormat, "log-format", config.DefaultLogFormat, "Log format: text or json")
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	root.AddCommand(newExportCmd(flags), newInitCmd(), newRunsCmd())
	return root
}

// apply copies explicitly set logging flags over cfg
func (f *rootFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if cmd.Flags().Changed("log-format") {
		cfg.LogFormat = f.logFormat
	}
	// LOG_LEVEL may say "warning"; the config only knows "warn".
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
}

// exitCode maps the error a command returned to the process exit status
func exitCode(err error) int {
	var (
		inputErr     *discovery.InputError
		ambiguousErr *discovery.AmbiguousExperimentError
		configErr    *config.ValidationError
		usageErr     *usageError
		notFoundErr  *patching.NotFoundError
		stalledErr   *coordinator.StalledError
		closedErr    *coordinator.StreamClosedError
	)
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &inputErr), errors.As(err, &ambiguousErr),
		errors.As(err, &configErr), errors.As(err, &usageErr):
		return exitInput
	case errors.As(err, &notFoundErr):
		return exitPatchMissing
	case errors.As(err, &stalledErr):
		return exitStalled
	case errors.As(err, &closedErr):
		return exitStreamClosed
	default:
		return exitUnexpected
	}
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(exitCode(err))
}
