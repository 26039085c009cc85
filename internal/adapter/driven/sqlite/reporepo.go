package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/AnalyzeActions/WorkKnow/internal/domain/model"
)

// SaveRepository records that repo is being collected. The first call stores
// first_seen_at; later calls only move last_collected_at forward.
func (r *RunRepo) SaveRepository(ctx context.Context, repo model.RepositoryRef) error {
	const query = `
		INSERT INTO repositories (canonical_url, owner, name, first_seen_at, last_collected_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(canonical_url) DO UPDATE SET
			last_collected_at = excluded.last_collected_at
	`

	now := formatTime(r.now())
	if _, err := r.db.Writer.ExecContext(ctx, query, repo.CanonicalURL, repo.Owner, repo.Name, now, now); err != nil {
		return fmt.Errorf("save repository %s: %w", repo.FullName(), err)
	}

	return nil
}

// ListRepositories returns every repository that has been collected, ordered
// by owner and name.
func (r *RunRepo) ListRepositories(ctx context.Context) ([]model.RepositoryRef, error) {
	const query = `SELECT owner, name FROM repositories ORDER BY owner, name`

	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query repositories: %w", err)
	}
	defer rows.Close()

	repos := []model.RepositoryRef{}
	for rows.Next() {
		var owner, name string
		if err := rows.Scan(&owner, &name); err != nil {
			return nil, fmt.Errorf("scan repository: %w", err)
		}
		repos = append(repos, model.NewRepositoryRef(owner, name))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate repositories: %w", err)
	}

	return repos, nil
}

type scanner interface {
	Scan(dest ...any) error
}

// formatTime stores timestamps as RFC 3339 text in UTC; zero times become NULL.
func formatTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime tries multiple SQLite datetime formats.
func parseTime(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05.000",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time format: %s", s)
}
