// Package application contains use-case orchestration services.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AnalyzeActions/WorkKnow/internal/domain/model"
	"github.com/AnalyzeActions/WorkKnow/internal/domain/port/driven"
)

// ErrPersistence marks a failure of the run sink. It aborts the batch.
var ErrPersistence = errors.New("persistence failure")

// Collector retrieves the workflow-run history of single repositories.
type Collector struct {
	source driven.RunSource
}

// NewCollector creates a Collector reading from source.
func NewCollector(source driven.RunSource) *Collector {
	return &Collector{source: source}
}

// Collect returns a lazy stream over every workflow run of repo. Nothing is
// fetched until the first call to Next.
func (c *Collector) Collect(_ context.Context, repo model.RepositoryRef) *RunStream {
	return &RunStream{
		source: c.source,
		cursor: model.NewCollectionCursor(repo),
		seen:   make(map[int64]struct{}),
	}
}

// CollectRepository drains the run stream of repo into sink. Errors from the
// source are returned as they are so the caller can classify them; sink
// failures are wrapped with ErrPersistence. Runs upserted before a failure
// stay stored.
func (c *Collector) CollectRepository(ctx context.Context, repo model.RepositoryRef, sink driven.RunSink) (model.RepositoryResult, error) {
	start := time.Now()
	result := model.RepositoryResult{Repository: repo}

	if err := sink.SaveRepository(ctx, repo); err != nil {
		return result, fmt.Errorf("%w: save repository %s: %w", ErrPersistence, repo.FullName(), err)
	}

	stream := c.Collect(ctx, repo)
	for stream.Next(ctx) {
		cr := stream.Current()
		if err := sink.UpsertRun(ctx, cr.Run, cr.Jobs); err != nil {
			return result, fmt.Errorf("%w: upsert run %d of %s: %w", ErrPersistence, cr.Run.RunID, repo.FullName(), err)
		}
		result.Runs++
		result.Jobs += len(cr.Jobs)
	}

	result.Pages = stream.Cursor().PagesFetched
	result.Duration = time.Since(start)

	if err := stream.Err(); err != nil {
		return result, err
	}

	slog.Debug("repository collected",
		"repo", repo.FullName(),
		"runs", result.Runs,
		"jobs", result.Jobs,
		"pages", result.Pages,
	)

	return result, nil
}

// RunStream is a finite, non-restartable sequence of collected runs. At most
// one page of runs is buffered at a time. It is not safe for concurrent use.
type RunStream struct {
	source  driven.RunSource
	cursor  model.CollectionCursor
	buffer  []model.WorkflowRun
	seen    map[int64]struct{}
	current model.CollectedRun
	err     error
	done    bool
}

// Next advances to the next run, fetching the next page of runs and the jobs
// of completed runs as needed. It returns false when the listing is exhausted
// or an error occurred; check Err to tell them apart.
func (s *RunStream) Next(ctx context.Context) bool {
	if s.done || s.err != nil {
		return false
	}

	for len(s.buffer) == 0 {
		if s.cursor.Exhausted {
			s.done = true
			s.current = model.CollectedRun{}
			return false
		}
		if err := s.fetchRuns(ctx); err != nil {
			s.err = err
			s.current = model.CollectedRun{}
			return false
		}
	}

	run := s.buffer[0]
	s.buffer = s.buffer[1:]

	var jobs []model.JobRecord
	if run.IsCompleted() {
		var err error
		jobs, err = s.fetchJobs(ctx, run.RunID)
		if err != nil {
			s.err = err
			s.current = model.CollectedRun{}
			return false
		}
	}

	s.current = model.CollectedRun{Run: run, Jobs: jobs}
	return true
}

// Current returns the run produced by the last successful call to Next.
func (s *RunStream) Current() model.CollectedRun {
	return s.current
}

// Err returns the error that stopped the stream, if any.
func (s *RunStream) Err() error {
	return s.err
}

// Cursor returns the pagination position of the stream.
func (s *RunStream) Cursor() model.CollectionCursor {
	return s.cursor
}

func (s *RunStream) fetchRuns(ctx context.Context) error {
	repo := s.cursor.Repository

	page, err := s.source.FetchPage(ctx, model.PageRequest{
		Repository: repo,
		Kind:       model.ResourceRuns,
		Page:       s.cursor.Page,
	})
	if err != nil {
		return fmt.Errorf("fetch runs page %d of %s: %w", s.cursor.Page, repo.FullName(), err)
	}

	s.cursor.Advance(forwardPage(s.cursor.Page, page.NextPage))

	for _, run := range page.Runs {
		if _, dup := s.seen[run.RunID]; dup {
			continue
		}
		s.seen[run.RunID] = struct{}{}

		if run.Repository.IsZero() {
			run.Repository = repo
		}
		s.buffer = append(s.buffer, run)
	}

	return nil
}

func (s *RunStream) fetchJobs(ctx context.Context, runID int64) ([]model.JobRecord, error) {
	var jobs []model.JobRecord
	seen := make(map[int64]struct{})

	for pageNum := 1; pageNum != 0; {
		page, err := s.source.FetchPage(ctx, model.PageRequest{
			Repository: s.cursor.Repository,
			Kind:       model.ResourceJobs,
			RunID:      runID,
			Page:       pageNum,
		})
		if err != nil {
			return nil, fmt.Errorf("fetch jobs page %d of run %d: %w", pageNum, runID, err)
		}

		for _, job := range page.Jobs {
			if _, dup := seen[job.JobID]; dup {
				continue
			}
			seen[job.JobID] = struct{}{}

			if job.RunID == 0 {
				job.RunID = runID
			}
			jobs = append(jobs, job)
		}

		pageNum = forwardPage(pageNum, page.NextPage)
	}

	return jobs, nil
}

// forwardPage returns next when it moves past current, or 0. A next page that
// points backwards would otherwise loop forever.
func forwardPage(current, next int) int {
	if next <= current {
		return 0
	}
	return next
}
