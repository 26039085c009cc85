// Package csvexport writes collected workflow runs to per-repository and
// combined CSV files.
package csvexport

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/AnalyzeActions/WorkKnow/internal/domain/model"
)

// File labels and the prefix of combined files.
const (
	LabelWorkflows = "Workflows"
	LabelJobs      = "Jobs"
	LabelCommits   = "Commits"
	LabelCounts    = "Counts"
	AllPrefix      = "All"
)

var (
	workflowHeader = []string{
		"organization", "repo", "repo_url", "actions_url",
		"id", "workflow_id", "name", "run_number", "run_attempt",
		"event", "status", "conclusion", "head_branch", "head_sha",
		"created_at", "updated_at", "run_started_at", "html_url", "jobs_url",
	}
	jobHeader = []string{
		"organization", "repo", "run_id", "id", "name",
		"status", "conclusion", "runner_name",
		"started_at", "completed_at", "duration_seconds", "html_url",
	}
	commitHeader = []string{
		"organization", "repo", "run_id", "sha",
		"message", "author_name", "author_email", "timestamp",
	}
	countHeader = []string{
		"organization", "repo", "repo_url", "actions_url", "workflow_build_count",
	}
)

// RunReader is the read side of the run store used by the exporter.
type RunReader interface {
	ListRuns(ctx context.Context, repo model.RepositoryRef) ([]model.WorkflowRun, error)
	ListJobs(ctx context.Context, runID int64) ([]model.JobRecord, error)
}

// Exporter writes stored runs into a results directory.
type Exporter struct {
	store RunReader
	dir   string
}

// NewExporter creates an Exporter writing into dir.
func NewExporter(store RunReader, dir string) *Exporter {
	return &Exporter{store: store, dir: dir}
}

// Dir returns the results directory.
func (e *Exporter) Dir() string {
	return e.dir
}

// tables holds the rows of the three per-repository files.
type tables struct {
	workflows [][]string
	jobs      [][]string
	commits   [][]string
}

func (t *tables) append(o tables) {
	t.workflows = append(t.workflows, o.workflows...)
	t.jobs = append(t.jobs, o.jobs...)
	t.commits = append(t.commits, o.commits...)
}

// ExportRepository writes <owner>-<name>-Workflows.csv, -Jobs.csv and
// -Commits.csv for repo and returns the paths written.
func (e *Exporter) ExportRepository(ctx context.Context, repo model.RepositoryRef) ([]string, error) {
	t, err := e.collect(ctx, repo)
	if err != nil {
		return nil, err
	}
	return e.writeTables(repo.FileStem(), t)
}

// ExportAll writes the All-Workflows.csv, All-Jobs.csv, All-Commits.csv and
// All-Counts.csv files covering repos, in the given order.
func (e *Exporter) ExportAll(ctx context.Context, repos []model.RepositoryRef) ([]string, error) {
	var all tables
	counts := make([][]string, 0, len(repos))

	for _, repo := range repos {
		t, err := e.collect(ctx, repo)
		if err != nil {
			return nil, err
		}
		all.append(t)
		if len(t.workflows) > 0 {
			counts = append(counts, countRow(repo, len(t.workflows)))
		}
	}

	paths, err := e.writeTables(AllPrefix, all)
	if err != nil {
		return nil, err
	}

	countsPath := filepath.Join(e.dir, fileName(AllPrefix, LabelCounts))
	if err := writeCSV(countsPath, countHeader, counts); err != nil {
		return nil, err
	}

	return append(paths, countsPath), nil
}

func (e *Exporter) collect(ctx context.Context, repo model.RepositoryRef) (tables, error) {
	runs, err := e.store.ListRuns(ctx, repo)
	if err != nil {
		return tables{}, fmt.Errorf("list runs of %s: %w", repo.FullName(), err)
	}

	var t tables
	for _, run := range runs {
		t.workflows = append(t.workflows, workflowRow(repo, run))
		if run.HeadCommit.SHA != "" {
			t.commits = append(t.commits, commitRow(repo, run))
		}

		jobs, err := e.store.ListJobs(ctx, run.RunID)
		if err != nil {
			return tables{}, fmt.Errorf("list jobs of run %d: %w", run.RunID, err)
		}
		for _, j := range jobs {
			t.jobs = append(t.jobs, jobRow(repo, j))
		}
	}
	return t, nil
}

func (e *Exporter) writeTables(stem string, t tables) ([]string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create results directory: %w", err)
	}

	files := []struct {
		label  string
		header []string
		rows   [][]string
	}{
		{LabelWorkflows, workflowHeader, t.workflows},
		{LabelJobs, jobHeader, t.jobs},
		{LabelCommits, commitHeader, t.commits},
	}

	paths := make([]string, 0, len(files))
	for _, f := range files {
		path := filepath.Join(e.dir, fileName(stem, f.label))
		if err := writeCSV(path, f.header, f.rows); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}

	slog.Debug("csv files written",
		"dir", e.dir,
		"stem", stem,
		"runs", len(t.workflows),
		"jobs", len(t.jobs),
	)

	return paths, nil
}

func fileName(stem, label string) string {
	return stem + "-" + label + ".csv"
}

func workflowRow(repo model.RepositoryRef, run model.WorkflowRun) []string {
	return []string{
		repo.Owner,
		repo.Name,
		repo.CanonicalURL,
		actionsURL(repo),
		strconv.FormatInt(run.RunID, 10),
		strconv.FormatInt(run.WorkflowID, 10),
		run.Name,
		strconv.Itoa(run.RunNumber),
		strconv.Itoa(run.RunAttempt),
		run.Event,
		string(run.Status),
		string(run.Conclusion),
		run.HeadBranch,
		run.HeadSHA,
		formatTime(run.CreatedAt),
		formatTime(run.UpdatedAt),
		formatTime(run.RunStartedAt),
		run.HTMLURL,
		run.JobsURL,
	}
}

func jobRow(repo model.RepositoryRef, j model.JobRecord) []string {
	duration := ""
	if !j.StartedAt.IsZero() && !j.CompletedAt.IsZero() {
		duration = strconv.FormatFloat(j.CompletedAt.Sub(j.StartedAt).Seconds(), 'f', -1, 64)
	}
	return []string{
		repo.Owner,
		repo.Name,
		strconv.FormatInt(j.RunID, 10),
		strconv.FormatInt(j.JobID, 10),
		j.Name,
		string(j.Status),
		string(j.Conclusion),
		j.RunnerName,
		formatTime(j.StartedAt),
		formatTime(j.CompletedAt),
		duration,
		j.HTMLURL,
	}
}

func commitRow(repo model.RepositoryRef, run model.WorkflowRun) []string {
	c := run.HeadCommit
	return []string{
		repo.Owner,
		repo.Name,
		strconv.FormatInt(run.RunID, 10),
		c.SHA,
		c.Message,
		c.AuthorName,
		c.AuthorEmail,
		formatTime(c.Timestamp),
	}
}

func countRow(repo model.RepositoryRef, builds int) []string {
	return []string{repo.Owner, repo.Name, repo.CanonicalURL, actionsURL(repo), strconv.Itoa(builds)}
}

func actionsURL(repo model.RepositoryRef) string {
	return repo.CanonicalURL + "/actions"
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func writeCSV(path string, header []string, rows [][]string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
