package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"golang.org/x/sync/errgroup"

	"github.com/AnalyzeActions/WorkKnow/internal/domain/model"
	"github.com/AnalyzeActions/WorkKnow/internal/domain/port/driven"
	"github.com/AnalyzeActions/WorkKnow/internal/telemetry"
)

// BatchOrchestrator collects a batch of repositories and folds the per
// repository outcomes into a CollectionReport.
type BatchOrchestrator struct {
	source      driven.RunSource
	store       driven.RunStore
	collector   *Collector
	concurrency int
	metrics     batchMetrics
	now         func() time.Time
	newID       func() string
}

// BatchOption configures a BatchOrchestrator.
type BatchOption func(*BatchOrchestrator)

// WithConcurrency sets how many repositories are collected in parallel.
// Values below 1 mean sequential.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchOrchestrator) {
		if n < 1 {
			n = 1
		}
		b.concurrency = n
	}
}

// WithClock replaces the wall clock used for report timestamps.
func WithClock(now func() time.Time) BatchOption {
	return func(b *BatchOrchestrator) { b.now = now }
}

// NewBatchOrchestrator creates an orchestrator that reads from source and
// writes collected runs and the pass summary to store.
func NewBatchOrchestrator(source driven.RunSource, store driven.RunStore, opts ...BatchOption) *BatchOrchestrator {
	b := &BatchOrchestrator{
		source:      source,
		store:       store,
		collector:   NewCollector(source),
		concurrency: 1,
		metrics:     newBatchMetrics(),
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// outcome is the slot of one deduplicated identifier. Neither field set
// means the repository was not attempted.
type outcome struct {
	result  *model.RepositoryResult
	failure *model.Failure
}

// Run collects every repository named by identifiers. Each distinct input
// gets exactly one outcome in the report, in input order. Per-repository
// failures are recorded and the batch continues. An authentication failure,
// a sink failure or cancellation of ctx stops the batch: the partial report is
// returned together with the error and unprocessed repositories are listed
// as not attempted.
func (b *BatchOrchestrator) Run(ctx context.Context, identifiers []string) (model.CollectionReport, error) {
	report := model.CollectionReport{
		PassID:    b.newID(),
		StartedAt: b.now(),
	}

	ids := ResolveAll(identifiers)
	slots := make([]outcome, len(ids))

	for i, id := range ids {
		if !id.Valid() {
			slots[i].failure = &model.Failure{
				Key:     id.Input,
				Input:   id.Input,
				Kind:    model.ErrorKindInvalidIdentifier,
				Message: id.Err.Error(),
			}
			slog.Warn("skipping invalid repository identifier", "input", id.Input, "error", id.Err)
		}
	}

	fatal := b.verifyToken(ctx, ids)
	if fatal == nil {
		fatal = b.collectAll(ctx, ids, slots)
	}

	for i, id := range ids {
		switch s := slots[i]; {
		case s.result != nil:
			report.Succeeded = append(report.Succeeded, *s.result)
		case s.failure != nil:
			report.Failed = append(report.Failed, *s.failure)
		default:
			report.NotAttempted = append(report.NotAttempted, id.Repository)
		}
	}
	report.FinishedAt = b.now()

	b.recordPass(ctx, report)

	if fatal != nil {
		return report, fmt.Errorf("collection aborted: %w", fatal)
	}
	return report, nil
}

// verifyToken primes the rate limit state and fails fast on a rejected token.
// Other errors only log; the first page request will surface them again.
func (b *BatchOrchestrator) verifyToken(ctx context.Context, ids []Identifier) error {
	if len(Repositories(ids)) == 0 {
		return nil
	}

	snap, err := b.source.RateLimit(ctx)
	switch {
	case err == nil:
		slog.Debug("rate limit budget",
			"limit", snap.Limit,
			"remaining", snap.Remaining,
			"reset_at", snap.ResetAt,
		)
		return nil
	case isInterrupted(err), model.KindOf(err).Fatal():
		return err
	default:
		slog.Warn("could not query rate limit", "error", err)
		return nil
	}
}

func (b *BatchOrchestrator) collectAll(ctx context.Context, ids []Identifier, slots []outcome) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	for i, id := range ids {
		if !id.Valid() {
			continue
		}
		if gctx.Err() != nil {
			break
		}

		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			return b.collectOne(gctx, id, &slots[i])
		})
	}

	err := g.Wait()
	if err == nil {
		// A parent cancellation that raced the last launch leaves no goroutine error.
		err = ctx.Err()
	}
	return err
}

// collectOne fills slot with the outcome of one repository and returns an
// error only when the batch must stop.
func (b *BatchOrchestrator) collectOne(ctx context.Context, id Identifier, slot *outcome) error {
	repo := id.Repository

	res, err := b.collector.CollectRepository(ctx, repo, b.store)
	if err == nil {
		slot.result = &res
		b.metrics.recordRepository(ctx, "succeeded")
		b.metrics.recordCollected(ctx, res.Runs, res.Jobs)
		slog.Info("repository collected",
			"repo", repo.FullName(),
			"runs", res.Runs,
			"jobs", res.Jobs,
			"duration", res.Duration.Round(time.Millisecond),
		)
		return nil
	}

	if isInterrupted(err) {
		return err
	}
	if errors.Is(err, ErrPersistence) {
		slog.Error("persisting runs failed", "repo", repo.FullName(), "error", err)
		return err
	}

	kind := model.KindOf(err)
	if kind == model.ErrorKindNone {
		kind = model.ErrorKindTransientFailure
	}

	slot.failure = &model.Failure{
		Key:        repo.CanonicalURL,
		Input:      id.Input,
		Repository: repo,
		Kind:       kind,
		Message:    err.Error(),
	}
	b.metrics.recordRepository(ctx, string(kind))

	if kind.Fatal() {
		slog.Error("authentication failed, aborting batch", "repo", repo.FullName(), "error", err)
		return err
	}

	slog.Warn("repository collection failed",
		"repo", repo.FullName(),
		"kind", kind,
		"runs_stored", res.Runs,
		"error", err,
	)
	return nil
}

// recordPass stores the pass summary. It runs even when ctx was cancelled so
// an interrupted batch is still accounted for.
func (b *BatchOrchestrator) recordPass(ctx context.Context, report model.CollectionReport) {
	pass := report.Pass()

	if err := b.store.RecordPass(context.WithoutCancel(ctx), pass); err != nil {
		slog.Error("record collection pass", "pass", pass.ID, "error", err)
	}

	slog.Info("collection pass complete",
		"pass", pass.ID,
		"succeeded", pass.Succeeded,
		"failed", pass.Failed,
		"not_attempted", len(report.NotAttempted),
		"runs", pass.Runs,
		"jobs", pass.Jobs,
		"duration", pass.FinishedAt.Sub(pass.StartedAt).Round(time.Millisecond),
	)
}

func isInterrupted(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// batchMetrics counts batch outcomes on the global meter provider.
type batchMetrics struct {
	repositories metric.Int64Counter
	runs         metric.Int64Counter
	jobs         metric.Int64Counter
}

func newBatchMetrics() batchMetrics {
	meter := telemetry.Meter("github.com/AnalyzeActions/WorkKnow/application")

	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		if err != nil {
			slog.Debug("create counter", "name", name, "error", err)
			return noop.Int64Counter{}
		}
		return c
	}

	return batchMetrics{
		repositories: counter("workknow.repositories", "Repositories processed, by outcome"),
		runs:         counter("workknow.runs.collected", "Workflow runs stored"),
		jobs:         counter("workknow.jobs.collected", "Jobs stored"),
	}
}

func (m batchMetrics) recordRepository(ctx context.Context, outcome string) {
	m.repositories.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m batchMetrics) recordCollected(ctx context.Context, runs, jobs int) {
	m.runs.Add(ctx, int64(runs))
	m.jobs.Add(ctx, int64(jobs))
}
