package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/scaffold/internal/pipeline"
)

// SaveTierResult stores a tier result and its generated files.
// Saving the same tier twice replaces the earlier record.
func (s *SQLiteStore) SaveTierResult(ctx context.Context, runID string, result pipeline.TierResult) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var errKind, errMsg string
	if result.Err != nil {
		errKind = string(result.Err.Kind)
		errMsg = result.Err.Err.Error()
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tier_results (run_id, seq, tier, format, rendered_prompt, output, optimized, failed, error_kind, error, duration_ms)
		VALUES (?, (SELECT COUNT(*) FROM tier_results WHERE run_id = ?), ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, tier) DO UPDATE SET
			format = excluded.format,
			rendered_prompt = excluded.rendered_prompt,
			output = excluded.output,
			optimized = excluded.optimized,
			failed = excluded.failed,
			error_kind = excluded.error_kind,
			error = excluded.error,
			duration_ms = excluded.duration_ms
	`, runID, runID, result.Tier, string(result.Format), result.RenderedPrompt, result.Output,
		result.Optimized, result.Failed, errKind, errMsg, result.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("failed to save tier %q: %w", result.Tier, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM file_outputs WHERE run_id = ? AND tier = ?`, runID, result.Tier); err != nil {
		return fmt.Errorf("failed to clear files of tier %q: %w", result.Tier, err)
	}
	for i, f := range result.Files {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO file_outputs (run_id, tier, seq, name, content)
			VALUES (?, ?, ?, ?, ?)
		`, runID, result.Tier, i, f.Name, f.Content)
		if err != nil {
			return fmt.Errorf("failed to save file %q of tier %q: %w", f.Name, result.Tier, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// RecordTier implements pipeline.Sink.
func (s *SQLiteStore) RecordTier(ctx context.Context, runID string, result pipeline.TierResult) error {
	return s.SaveTierResult(ctx, runID, result)
}

// TierOutputs returns the outputs of the run's successful tiers, keyed by
// tier name, for seeding a resumed run.
func (s *SQLiteStore) TierOutputs(ctx context.Context, runID string) (map[string]string, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM runs WHERE id = ?`, runID).Scan(&exists)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT tier, output FROM tier_results
		WHERE run_id = ? AND failed = 0
		ORDER BY seq
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tier outputs: %w", err)
	}
	defer rows.Close()

	outputs := make(map[string]string)
	for rows.Next() {
		var tier, output string
		if err := rows.Scan(&tier, &output); err != nil {
			return nil, fmt.Errorf("failed to scan tier output: %w", err)
		}
		outputs[tier] = output
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tier outputs: %w", err)
	}
	return outputs, nil
}

func (s *SQLiteStore) tierRecords(ctx context.Context, runID string) ([]TierRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tier, format, rendered_prompt, output, optimized, failed, error_kind, error, duration_ms
		FROM tier_results
		WHERE run_id = ?
		ORDER BY seq
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tier results: %w", err)
	}

	var records []TierRecord
	for rows.Next() {
		var rec TierRecord
		var millis int64
		if err := rows.Scan(&rec.Tier, &rec.Format, &rec.RenderedPrompt, &rec.Output, &rec.Optimized,
			&rec.Failed, &rec.ErrorKind, &rec.Error, &millis); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan tier result: %w", err)
		}
		rec.Duration = time.Duration(millis) * time.Millisecond
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("error iterating tier results: %w", err)
	}
	// Release the connection before the per-tier file queries.
	rows.Close()

	for i := range records {
		files, err := s.files(ctx, runID, records[i].Tier)
		if err != nil {
			return nil, err
		}
		records[i].Files = files
	}
	return records, nil
}

func (s *SQLiteStore) files(ctx context.Context, runID, tier string) ([]pipeline.File, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, content FROM file_outputs
		WHERE run_id = ? AND tier = ?
		ORDER BY seq
	`, runID, tier)
	if err != nil {
		return nil, fmt.Errorf("failed to query files: %w", err)
	}
	defer rows.Close()

	var files []pipeline.File
	for rows.Next() {
		var f pipeline.File
		if err := rows.Scan(&f.Name, &f.Content); err != nil {
			return nil, fmt.Errorf("failed to scan file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}
