package sqlite

import (
	"context"
	"fmt"

	"github.com/AnalyzeActions/WorkKnow/internal/domain/model"
)

// RecordPass stores the summary of one collection batch.
func (r *RunRepo) RecordPass(ctx context.Context, pass model.CollectionPass) error {
	const query = `
		INSERT INTO collection_passes (id, started_at, finished_at, succeeded, failed, runs, jobs)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	if _, err := r.db.Writer.ExecContext(ctx, query,
		pass.ID, formatTime(pass.StartedAt), formatTime(pass.FinishedAt),
		pass.Succeeded, pass.Failed, pass.Runs, pass.Jobs,
	); err != nil {
		return fmt.Errorf("record collection pass %s: %w", pass.ID, err)
	}

	return nil
}

// ListPasses returns the most recent collection passes, newest first.
func (r *RunRepo) ListPasses(ctx context.Context, limit int) ([]model.CollectionPass, error) {
	const query = `
		SELECT id, started_at, finished_at, succeeded, failed, runs, jobs
		FROM collection_passes
		ORDER BY started_at DESC
		LIMIT ?
	`

	rows, err := r.db.Reader.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query collection passes: %w", err)
	}
	defer rows.Close()

	passes := []model.CollectionPass{}
	for rows.Next() {
		var pass model.CollectionPass
		var startedAt, finishedAt string
		if err := rows.Scan(&pass.ID, &startedAt, &finishedAt, &pass.Succeeded, &pass.Failed, &pass.Runs, &pass.Jobs); err != nil {
			return nil, fmt.Errorf("scan collection pass: %w", err)
		}
		if pass.StartedAt, err = parseTime(startedAt); err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		if pass.FinishedAt, err = parseTime(finishedAt); err != nil {
			return nil, fmt.Errorf("parse finished_at: %w", err)
		}
		passes = append(passes, pass)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate collection passes: %w", err)
	}

	return passes, nil
}
