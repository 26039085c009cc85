package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/AnalyzeActions/WorkKnow/internal/domain/model"
	"github.com/AnalyzeActions/WorkKnow/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.RunStore = (*RunRepo)(nil)

// RunRepo is the PostgreSQL implementation of the RunStore port interface.
type RunRepo struct {
	db  *DB
	now func() time.Time
}

// NewRunRepo creates a new RunRepo backed by the given DB.
func NewRunRepo(db *DB) *RunRepo {
	return &RunRepo{db: db, now: time.Now}
}

// SaveRepository records that repo is being collected.
func (r *RunRepo) SaveRepository(ctx context.Context, repo model.RepositoryRef) error {
	const query = `
		INSERT INTO repositories (canonical_url, owner, name, first_seen_at, last_collected_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (canonical_url) DO UPDATE SET
			last_collected_at = EXCLUDED.last_collected_at
	`

	if _, err := r.db.pool.Exec(ctx, query, repo.CanonicalURL, repo.Owner, repo.Name, r.now().UTC()); err != nil {
		return fmt.Errorf("postgres: save repository %s: %w", repo.FullName(), err)
	}

	return nil
}

// UpsertRun inserts or updates a workflow run and replaces its jobs in one
// transaction, retrying on serialization failures and deadlocks.
func (r *RunRepo) UpsertRun(ctx context.Context, run model.WorkflowRun, jobs []model.JobRecord) error {
	return withRetry(ctx, func() error {
		return pgx.BeginFunc(ctx, r.db.pool, func(tx pgx.Tx) error {
			return upsertRunTx(ctx, tx, run, jobs)
		})
	})
}

func upsertRunTx(ctx context.Context, tx pgx.Tx, run model.WorkflowRun, jobs []model.JobRecord) error {
	const runQuery = `
		INSERT INTO workflow_runs (
			run_id, repository_url, workflow_id, name, run_number, run_attempt, event,
			status, conclusion, head_branch, head_sha, html_url, jobs_url,
			commit_sha, commit_message, commit_author_name, commit_author_email, commit_timestamp,
			created_at, updated_at, run_started_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		ON CONFLICT (run_id) DO UPDATE SET
			repository_url = EXCLUDED.repository_url,
			workflow_id = EXCLUDED.workflow_id,
			name = EXCLUDED.name,
			run_number = EXCLUDED.run_number,
			run_attempt = EXCLUDED.run_attempt,
			event = EXCLUDED.event,
			status = EXCLUDED.status,
			conclusion = EXCLUDED.conclusion,
			head_branch = EXCLUDED.head_branch,
			head_sha = EXCLUDED.head_sha,
			html_url = EXCLUDED.html_url,
			jobs_url = EXCLUDED.jobs_url,
			commit_sha = EXCLUDED.commit_sha,
			commit_message = EXCLUDED.commit_message,
			commit_author_name = EXCLUDED.commit_author_name,
			commit_author_email = EXCLUDED.commit_author_email,
			commit_timestamp = EXCLUDED.commit_timestamp,
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at,
			run_started_at = EXCLUDED.run_started_at
	`

	if _, err := tx.Exec(ctx, runQuery,
		run.RunID, run.Repository.CanonicalURL, run.WorkflowID, run.Name, run.RunNumber, run.RunAttempt, run.Event,
		string(run.Status), string(run.Conclusion), run.HeadBranch, run.HeadSHA, run.HTMLURL, run.JobsURL,
		run.HeadCommit.SHA, run.HeadCommit.Message, run.HeadCommit.AuthorName, run.HeadCommit.AuthorEmail,
		nullTime(run.HeadCommit.Timestamp),
		nullTime(run.CreatedAt), nullTime(run.UpdatedAt), nullTime(run.RunStartedAt),
	); err != nil {
		return fmt.Errorf("postgres: upsert workflow run %d: %w", run.RunID, err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM jobs WHERE run_id = $1`, run.RunID); err != nil {
		return fmt.Errorf("postgres: delete jobs for run %d: %w", run.RunID, err)
	}

	const jobQuery = `
		INSERT INTO jobs (job_id, run_id, name, status, conclusion, runner_name, html_url, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (job_id) DO UPDATE SET
			run_id = EXCLUDED.run_id,
			name = EXCLUDED.name,
			status = EXCLUDED.status,
			conclusion = EXCLUDED.conclusion,
			runner_name = EXCLUDED.runner_name,
			html_url = EXCLUDED.html_url,
			started_at = EXCLUDED.started_at,
			completed_at = EXCLUDED.completed_at
	`

	batch := &pgx.Batch{}
	for _, job := range jobs {
		batch.Queue(jobQuery,
			job.JobID, run.RunID, job.Name, string(job.Status), string(job.Conclusion),
			job.RunnerName, job.HTMLURL, nullTime(job.StartedAt), nullTime(job.CompletedAt),
		)
	}
	if batch.Len() == 0 {
		return nil
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("postgres: insert jobs for run %d: %w", run.RunID, err)
	}

	return nil
}

// ListRepositories returns every collected repository ordered by owner and name.
func (r *RunRepo) ListRepositories(ctx context.Context) ([]model.RepositoryRef, error) {
	rows, err := r.db.pool.Query(ctx, `SELECT owner, name FROM repositories ORDER BY owner, name`)
	if err != nil {
		return nil, fmt.Errorf("postgres: query repositories: %w", err)
	}

	repos, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.RepositoryRef, error) {
		var owner, name string
		err := row.Scan(&owner, &name)
		return model.NewRepositoryRef(owner, name), err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: scan repositories: %w", err)
	}

	return repos, nil
}

// ListRuns returns every stored run of repo, oldest first.
func (r *RunRepo) ListRuns(ctx context.Context, repo model.RepositoryRef) ([]model.WorkflowRun, error) {
	const query = `
		SELECT run_id, workflow_id, name, run_number, run_attempt, event,
		       status, conclusion, head_branch, head_sha, html_url, jobs_url,
		       commit_sha, commit_message, commit_author_name, commit_author_email, commit_timestamp,
		       created_at, updated_at, run_started_at
		FROM workflow_runs
		WHERE repository_url = $1
		ORDER BY created_at, run_id
	`

	rows, err := r.db.pool.Query(ctx, query, repo.CanonicalURL)
	if err != nil {
		return nil, fmt.Errorf("postgres: query runs for %s: %w", repo.FullName(), err)
	}

	runs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.WorkflowRun, error) {
		var run model.WorkflowRun
		var status, conclusion string
		var commitTS, createdAt, updatedAt, startedAt *time.Time

		err := row.Scan(
			&run.RunID, &run.WorkflowID, &run.Name, &run.RunNumber, &run.RunAttempt, &run.Event,
			&status, &conclusion, &run.HeadBranch, &run.HeadSHA, &run.HTMLURL, &run.JobsURL,
			&run.HeadCommit.SHA, &run.HeadCommit.Message, &run.HeadCommit.AuthorName, &run.HeadCommit.AuthorEmail, &commitTS,
			&createdAt, &updatedAt, &startedAt,
		)
		run.Repository = repo
		run.Status = model.RunStatus(status)
		run.Conclusion = model.Conclusion(conclusion)
		run.HeadCommit.Timestamp = derefTime(commitTS)
		run.CreatedAt = derefTime(createdAt)
		run.UpdatedAt = derefTime(updatedAt)
		run.RunStartedAt = derefTime(startedAt)
		return run, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: scan runs for %s: %w", repo.FullName(), err)
	}

	return runs, nil
}

// ListJobs returns the jobs of a run ordered by start time.
func (r *RunRepo) ListJobs(ctx context.Context, runID int64) ([]model.JobRecord, error) {
	const query = `
		SELECT job_id, run_id, name, status, conclusion, runner_name, html_url, started_at, completed_at
		FROM jobs
		WHERE run_id = $1
		ORDER BY started_at, job_id
	`

	rows, err := r.db.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("postgres: query jobs for run %d: %w", runID, err)
	}

	jobs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.JobRecord, error) {
		var job model.JobRecord
		var status, conclusion string
		var startedAt, completedAt *time.Time

		err := row.Scan(&job.JobID, &job.RunID, &job.Name, &status, &conclusion,
			&job.RunnerName, &job.HTMLURL, &startedAt, &completedAt)
		job.Status = model.RunStatus(status)
		job.Conclusion = model.Conclusion(conclusion)
		job.StartedAt = derefTime(startedAt)
		job.CompletedAt = derefTime(completedAt)
		return job, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: scan jobs for run %d: %w", runID, err)
	}

	return jobs, nil
}

// CountRuns returns the number of stored runs for repo.
func (r *RunRepo) CountRuns(ctx context.Context, repo model.RepositoryRef) (int, error) {
	var n int
	err := r.db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM workflow_runs WHERE repository_url = $1`, repo.CanonicalURL).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("postgres: count runs for %s: %w", repo.FullName(), err)
	}
	return n, nil
}

// RecordPass stores the summary of one collection batch.
func (r *RunRepo) RecordPass(ctx context.Context, pass model.CollectionPass) error {
	const query = `
		INSERT INTO collection_passes (id, started_at, finished_at, succeeded, failed, runs, jobs)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	if _, err := r.db.pool.Exec(ctx, query,
		pass.ID, pass.StartedAt.UTC(), pass.FinishedAt.UTC(),
		pass.Succeeded, pass.Failed, pass.Runs, pass.Jobs,
	); err != nil {
		return fmt.Errorf("postgres: record collection pass %s: %w", pass.ID, err)
	}

	return nil
}

// isRetriable returns true for Postgres error codes that indicate a transient conflict.
func isRetriable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "40001": // serialization_failure
		return true
	case "40P01": // deadlock_detected
		return true
	default:
		return false
	}
}

// withRetry runs fn, retrying serialization failures and deadlocks with
// jittered exponential backoff.
func withRetry(ctx context.Context, fn func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Millisecond
	b.MaxElapsedTime = 2 * time.Second

	return backoff.Retry(func() error {
		err := fn()
		if err != nil && !isRetriable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(b, 3), ctx))
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.UTC()
}
