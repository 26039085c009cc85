package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/AnalyzeActions/WorkKnow/internal/domain/model"
	"github.com/AnalyzeActions/WorkKnow/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.RunStore = (*RunRepo)(nil)

// RunRepo is the SQLite implementation of the RunStore port interface.
type RunRepo struct {
	db  *DB
	now func() time.Time
}

// NewRunRepo creates a new RunRepo backed by the given DB.
func NewRunRepo(db *DB) *RunRepo {
	return &RunRepo{db: db, now: time.Now}
}

// UpsertRun inserts or updates a workflow run and atomically replaces its
// jobs. The repository row must already exist (see SaveRepository).
func (r *RunRepo) UpsertRun(ctx context.Context, run model.WorkflowRun, jobs []model.JobRecord) error {
	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback after commit is a no-op.

	const runQuery = `
		INSERT INTO workflow_runs (
			run_id, repository_url, workflow_id, name, run_number, run_attempt, event,
			status, conclusion, head_branch, head_sha, html_url, jobs_url,
			commit_sha, commit_message, commit_author_name, commit_author_email, commit_timestamp,
			created_at, updated_at, run_started_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			repository_url = excluded.repository_url,
			workflow_id = excluded.workflow_id,
			name = excluded.name,
			run_number = excluded.run_number,
			run_attempt = excluded.run_attempt,
			event = excluded.event,
			status = excluded.status,
			conclusion = excluded.conclusion,
			head_branch = excluded.head_branch,
			head_sha = excluded.head_sha,
			html_url = excluded.html_url,
			jobs_url = excluded.jobs_url,
			commit_sha = excluded.commit_sha,
			commit_message = excluded.commit_message,
			commit_author_name = excluded.commit_author_name,
			commit_author_email = excluded.commit_author_email,
			commit_timestamp = excluded.commit_timestamp,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			run_started_at = excluded.run_started_at
	`

	if _, err := tx.ExecContext(ctx, runQuery,
		run.RunID, run.Repository.CanonicalURL, run.WorkflowID, run.Name, run.RunNumber, run.RunAttempt, run.Event,
		string(run.Status), string(run.Conclusion), run.HeadBranch, run.HeadSHA, run.HTMLURL, run.JobsURL,
		run.HeadCommit.SHA, run.HeadCommit.Message, run.HeadCommit.AuthorName, run.HeadCommit.AuthorEmail,
		formatTime(run.HeadCommit.Timestamp),
		formatTime(run.CreatedAt), formatTime(run.UpdatedAt), formatTime(run.RunStartedAt),
	); err != nil {
		return fmt.Errorf("upsert workflow run %d: %w", run.RunID, err)
	}

	const deleteQuery = `DELETE FROM jobs WHERE run_id = ?`
	if _, err := tx.ExecContext(ctx, deleteQuery, run.RunID); err != nil {
		return fmt.Errorf("delete jobs for run %d: %w", run.RunID, err)
	}

	const jobQuery = `
		INSERT INTO jobs (job_id, run_id, name, status, conclusion, runner_name, html_url, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(job_id) DO UPDATE SET
			run_id = excluded.run_id,
			name = excluded.name,
			status = excluded.status,
			conclusion = excluded.conclusion,
			runner_name = excluded.runner_name,
			html_url = excluded.html_url,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at
	`

	for _, job := range jobs {
		if _, err := tx.ExecContext(ctx, jobQuery,
			job.JobID, run.RunID, job.Name, string(job.Status), string(job.Conclusion),
			job.RunnerName, job.HTMLURL, formatTime(job.StartedAt), formatTime(job.CompletedAt),
		); err != nil {
			return fmt.Errorf("insert job %d for run %d: %w", job.JobID, run.RunID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit workflow run %d: %w", run.RunID, err)
	}

	return nil
}

// ListRuns returns every stored run of repo, oldest first.
func (r *RunRepo) ListRuns(ctx context.Context, repo model.RepositoryRef) ([]model.WorkflowRun, error) {
	const query = `
		SELECT run_id, workflow_id, name, run_number, run_attempt, event,
		       status, conclusion, head_branch, head_sha, html_url, jobs_url,
		       commit_sha, commit_message, commit_author_name, commit_author_email, commit_timestamp,
		       created_at, updated_at, run_started_at
		FROM workflow_runs
		WHERE repository_url = ?
		ORDER BY created_at, run_id
	`

	rows, err := r.db.Reader.QueryContext(ctx, query, repo.CanonicalURL)
	if err != nil {
		return nil, fmt.Errorf("query runs for %s: %w", repo.FullName(), err)
	}
	defer rows.Close()

	runs := []model.WorkflowRun{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan workflow run: %w", err)
		}
		run.Repository = repo
		runs = append(runs, *run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate workflow runs: %w", err)
	}

	return runs, nil
}

// ListJobs returns the jobs of a run ordered by start time.
func (r *RunRepo) ListJobs(ctx context.Context, runID int64) ([]model.JobRecord, error) {
	const query = `
		SELECT job_id, run_id, name, status, conclusion, runner_name, html_url, started_at, completed_at
		FROM jobs
		WHERE run_id = ?
		ORDER BY started_at, job_id
	`

	rows, err := r.db.Reader.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query jobs for run %d: %w", runID, err)
	}
	defer rows.Close()

	jobs := []model.JobRecord{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, *job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}

	return jobs, nil
}

// CountRuns returns the number of stored runs for repo.
func (r *RunRepo) CountRuns(ctx context.Context, repo model.RepositoryRef) (int, error) {
	const query = `SELECT COUNT(*) FROM workflow_runs WHERE repository_url = ?`

	var n int
	if err := r.db.Reader.QueryRowContext(ctx, query, repo.CanonicalURL).Scan(&n); err != nil {
		return 0, fmt.Errorf("count runs for %s: %w", repo.FullName(), err)
	}

	return n, nil
}

func scanRun(s scanner) (*model.WorkflowRun, error) {
	var run model.WorkflowRun
	var status, conclusion string
	var commitTS, createdAt, updatedAt, startedAt sql.NullString

	err := s.Scan(
		&run.RunID, &run.WorkflowID, &run.Name, &run.RunNumber, &run.RunAttempt, &run.Event,
		&status, &conclusion, &run.HeadBranch, &run.HeadSHA, &run.HTMLURL, &run.JobsURL,
		&run.HeadCommit.SHA, &run.HeadCommit.Message, &run.HeadCommit.AuthorName, &run.HeadCommit.AuthorEmail, &commitTS,
		&createdAt, &updatedAt, &startedAt,
	)
	if err != nil {
		return nil, err
	}

	run.Status = model.RunStatus(status)
	run.Conclusion = model.Conclusion(conclusion)

	for _, f := range []struct {
		name string
		src  sql.NullString
		dst  *time.Time
	}{
		{"commit_timestamp", commitTS, &run.HeadCommit.Timestamp},
		{"created_at", createdAt, &run.CreatedAt},
		{"updated_at", updatedAt, &run.UpdatedAt},
		{"run_started_at", startedAt, &run.RunStartedAt},
	} {
		if !f.src.Valid {
			continue
		}
		if *f.dst, err = parseTime(f.src.String); err != nil {
			return nil, fmt.Errorf("parse %s: %w", f.name, err)
		}
	}

	return &run, nil
}

func scanJob(s scanner) (*model.JobRecord, error) {
	var job model.JobRecord
	var status, conclusion string
	var startedAt, completedAt sql.NullString

	err := s.Scan(
		&job.JobID, &job.RunID, &job.Name, &status, &conclusion,
		&job.RunnerName, &job.HTMLURL, &startedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	job.Status = model.RunStatus(status)
	job.Conclusion = model.Conclusion(conclusion)

	if startedAt.Valid {
		job.StartedAt, err = parseTime(startedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
	}

	if completedAt.Valid {
		job.CompletedAt, err = parseTime(completedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse completed_at: %w", err)
		}
	}

	return &job, nil
}
