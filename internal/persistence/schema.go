package persistence

import (
	"context"
)

// initSchema creates all required tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		project TEXT NOT NULL,
		config_path TEXT NOT NULL DEFAULT '',
		backend TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);

	CREATE TABLE IF NOT EXISTS tier_results (
		run_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		tier TEXT NOT NULL,
		format TEXT NOT NULL,
		rendered_prompt TEXT NOT NULL,
		output TEXT NOT NULL,
		optimized INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		error_kind TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		duration_ms INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (run_id, tier),
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS file_outputs (
		run_id TEXT NOT NULL,
		tier TEXT NOT NULL,
		seq INTEGER NOT NULL,
		name TEXT NOT NULL,
		content TEXT NOT NULL,
		PRIMARY KEY (run_id, tier, seq),
		FOREIGN KEY (run_id, tier) REFERENCES tier_results(run_id, tier) ON DELETE CASCADE
	);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}
