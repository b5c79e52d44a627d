package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/chrisschopp/anylogic-export/internal/config"
	"github.com/chrisschopp/anylogic-export/internal/db"
	"github.com/chrisschopp/anylogic-export/internal/observability"
)

type runsFlags struct {
	limit       int
	databaseURL string
	asJSON      bool
}

func newRunsCmd() *cobra.Command {
	flags := &runsFlags{}
	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "List recent export runs, or show one run and its events",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuns(cmd, flags, args)
		},
	}

	cmd.Flags().IntVar(&flags.limit, "limit", db.DefaultListLimit, "Maximum number of runs to list")
	cmd.Flags().StringVar(&flags.databaseURL, "db-url", "", "PostgreSQL connection URL (defaults to DATABASE_URL env var)")
	cmd.Flags().BoolVar(&flags.asJSON, "json", false, "Print runs as JSON")

	return cmd
}

// runDetail is the JSON form of a single run.
type runDetail struct {
	Run    db.Run        `json:"run"`
	Events []db.RunEvent `json:"events"`
}

func runRuns(cmd *cobra.Command, flags *runsFlags, args []string) error {
	var runID uuid.UUID
	if len(args) == 1 {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return &usageError{err: fmt.Errorf("invalid run id %q: %w", args[0], err)}
		}
		runID = id
	}

	cfg, err := config.FromEnv(config.Defaults())
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("db-url") {
		cfg.DatabaseURL = flags.databaseURL
	}
	if cfg.DatabaseURL == "" {
		return &usageError{err: errors.New("no run journal configured: set DATABASE_URL or pass --db-url")}
	}
	if flags.limit <= 0 {
		return &usageError{err: errors.New("--limit must be positive")}
	}

	ctx := cmd.Context()
	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.EnsureSchema(ctx); err != nil {
		return err
	}
	if runID != uuid.Nil {
		return showRun(cmd, database, runID, flags.asJSON)
	}
	runs, err := database.ListRuns(ctx, flags.limit)
	if err != nil {
		return err
	}

	if flags.asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if runs == nil {
			runs = []db.Run{}
		}
		return enc.Encode(runs)
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintRuns(runs)
	return nil
}

func showRun(cmd *cobra.Command, database *db.DB, runID uuid.UUID, asJSON bool) error {
	ctx := cmd.Context()
	run, err := database.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("no export run with id %s", runID)
	}
	events, err := database.ListRunEvents(ctx, runID)
	if err != nil {
		return err
	}

	if asJSON {
		if events == nil {
			events = []db.RunEvent{}
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(runDetail{Run: *run, Events: events})
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintRunDetail(*run, events)
	return nil
}
