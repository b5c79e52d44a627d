package db

const schemaSQL = `
CREATE TABLE IF NOT EXISTS export_runs (
	id           UUID PRIMARY KEY,
	model_path   TEXT NOT NULL,
	experiments  TEXT[] NOT NULL DEFAULT '{}',
	dry_run      BOOLEAN NOT NULL DEFAULT FALSE,
	status       TEXT NOT NULL,
	message      TEXT,
	started_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	completed_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS export_runs_started_at_idx ON export_runs (started_at DESC);

CREATE TABLE IF NOT EXISTS export_run_events (
	id         BIGSERIAL PRIMARY KEY,
	run_id     UUID NOT NULL REFERENCES export_runs (id) ON DELETE CASCADE,
	kind       TEXT NOT NULL,
	phase      TEXT NOT NULL,
	address    TEXT,
	detail     TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS export_run_events_run_id_idx ON export_run_events (run_id);
`
