package driven

import (
	"context"

	"github.com/AnalyzeActions/WorkKnow/internal/domain/model"
)

// RunSink is the persistence contract of the collector: an upsert of one
// workflow run with its jobs, keyed by run ID. Re-sending a run replaces the
// stored values and its job set.
type RunSink interface {
	SaveRepository(ctx context.Context, repo model.RepositoryRef) error
	UpsertRun(ctx context.Context, run model.WorkflowRun, jobs []model.JobRecord) error
}

// RunStore extends RunSink with the reads used by exporters and reports.
type RunStore interface {
	RunSink
	ListRepositories(ctx context.Context) ([]model.RepositoryRef, error)
	ListRuns(ctx context.Context, repo model.RepositoryRef) ([]model.WorkflowRun, error)
	ListJobs(ctx context.Context, runID int64) ([]model.JobRecord, error)
	CountRuns(ctx context.Context, repo model.RepositoryRef) (int, error)
	RecordPass(ctx context.Context, pass model.CollectionPass) error
}
