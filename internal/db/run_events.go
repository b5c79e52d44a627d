package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// -----------------------------------------------------------------------------
// Run Event Methods
// -----------------------------------------------------------------------------

// RecordEvent appends a coordinator event to a run's journal
func (db *DB) RecordEvent(ctx context.Context, runID uuid.UUID, input *RunEventInput) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO export_run_events (run_id, kind, phase, address, detail)
		 VALUES ($1, $2, $3, $4, $5)`,
		runID, input.Kind, input.Phase, nullable(input.Address), nullable(input.Detail),
	)
	if err != nil {
		return fmt.Errorf("failed to record run event %s: %w", input.Kind, err)
	}
	return nil
}

// ListRunEvents retrieves all events for a run in the order they were recorded
func (db *DB) ListRunEvents(ctx context.Context, runID uuid.UUID) ([]RunEvent, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, run_id, kind, phase, address, detail, created_at
		 FROM export_run_events
		 WHERE run_id = $1
		 ORDER BY id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list run events: %w", err)
	}
	defer rows.Close()

	var events []RunEvent
	for rows.Next() {
		var ev RunEvent
		if err := rows.Scan(&ev.ID, &ev.RunID, &ev.Kind, &ev.Phase, &ev.Address, &ev.Detail, &ev.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
