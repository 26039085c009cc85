package application_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/AnalyzeActions/WorkKnow/internal/domain/model"
)

// --- Fake run source ---

// repoFixture describes what the fake API serves for one repository.
type repoFixture struct {
	runPages [][]model.WorkflowRun
	jobs     map[int64][]model.JobRecord
	err      error // Returned for every runs request when set.
}

type fakeSource struct {
	mu        sync.Mutex
	fetchPage func(ctx context.Context, req model.PageRequest) (model.Page, error)
	rateLimit func(ctx context.Context) (model.RateLimitSnapshot, error)
	requests  []model.PageRequest
}

func (f *fakeSource) FetchPage(ctx context.Context, req model.PageRequest) (model.Page, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return f.fetchPage(ctx, req)
}

func (f *fakeSource) RateLimit(ctx context.Context) (model.RateLimitSnapshot, error) {
	if f.rateLimit == nil {
		return model.RateLimitSnapshot{Limit: 5000, Remaining: 5000}, nil
	}
	return f.rateLimit(ctx)
}

// runRequests returns the runs requests sent for repo.
func (f *fakeSource) runRequests(repo model.RepositoryRef) []model.PageRequest {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []model.PageRequest
	for _, r := range f.requests {
		if r.Kind == model.ResourceRuns && r.Repository == repo {
			out = append(out, r)
		}
	}
	return out
}

func (f *fakeSource) jobRequests() []model.PageRequest {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []model.PageRequest
	for _, r := range f.requests {
		if r.Kind == model.ResourceJobs {
			out = append(out, r)
		}
	}
	return out
}

// newFixtureSource serves fixtures keyed by "owner/name". Unknown
// repositories answer with model.ErrRepositoryUnavailable.
func newFixtureSource(fixtures map[string]repoFixture) *fakeSource {
	return &fakeSource{
		fetchPage: func(ctx context.Context, req model.PageRequest) (model.Page, error) {
			if err := ctx.Err(); err != nil {
				return model.Page{}, err
			}

			fx, ok := fixtures[req.Repository.FullName()]
			if !ok {
				return model.Page{}, fmt.Errorf("%w (status 404): Not Found", model.ErrRepositoryUnavailable)
			}

			if req.Kind == model.ResourceJobs {
				return model.Page{Jobs: fx.jobs[req.RunID]}, nil
			}
			if fx.err != nil {
				return model.Page{}, fx.err
			}
			if len(fx.runPages) == 0 {
				return model.Page{}, nil
			}

			idx := req.Page - 1
			next := 0
			if req.Page < len(fx.runPages) {
				next = req.Page + 1
			}
			return model.Page{Runs: fx.runPages[idx], NextPage: next}, nil
		},
	}
}

func completedRun(id int64) model.WorkflowRun {
	return model.WorkflowRun{
		RunID:      id,
		Name:       "ci",
		Status:     model.RunStatusCompleted,
		Conclusion: model.ConclusionSuccess,
		CreatedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(id) * time.Minute),
	}
}

func inProgressRun(id int64) model.WorkflowRun {
	run := completedRun(id)
	run.Status = model.RunStatusInProgress
	run.Conclusion = model.ConclusionNone
	return run
}

func job(id, runID int64) model.JobRecord {
	return model.JobRecord{
		JobID:      id,
		RunID:      runID,
		Name:       "build",
		Status:     model.RunStatusCompleted,
		Conclusion: model.ConclusionSuccess,
	}
}

// --- In-memory store ---

type upsertCall struct {
	Run  model.WorkflowRun
	Jobs []model.JobRecord
}

type memStore struct {
	mu        sync.Mutex
	repos     []model.RepositoryRef
	upserts   []upsertCall
	passes    []model.CollectionPass
	upsertErr error
}

func (m *memStore) SaveRepository(_ context.Context, repo model.RepositoryRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.repos = append(m.repos, repo)
	return nil
}

func (m *memStore) UpsertRun(_ context.Context, run model.WorkflowRun, jobs []model.JobRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.upserts = append(m.upserts, upsertCall{Run: run, Jobs: jobs})
	return nil
}

func (m *memStore) ListRepositories(_ context.Context) ([]model.RepositoryRef, error) {
	return m.repos, nil
}

func (m *memStore) ListRuns(_ context.Context, _ model.RepositoryRef) ([]model.WorkflowRun, error) {
	return nil, nil
}

func (m *memStore) ListJobs(_ context.Context, _ int64) ([]model.JobRecord, error) {
	return nil, nil
}

func (m *memStore) CountRuns(_ context.Context, _ model.RepositoryRef) (int, error) {
	return 0, nil
}

func (m *memStore) RecordPass(_ context.Context, pass model.CollectionPass) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.passes = append(m.passes, pass)
	return nil
}

func (m *memStore) runIDs() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]int64, 0, len(m.upserts))
	for _, u := range m.upserts {
		ids = append(ids, u.Run.RunID)
	}
	return ids
}
