package model

import "time"

// RepositoryResult summarizes a fully collected repository.
type RepositoryResult struct {
	Repository RepositoryRef
	Runs       int
	Jobs       int
	Pages      int
	Duration   time.Duration
}

// Failure records why one input could not be collected. Key is the canonical
// URL of the resolved repository, or the raw input when resolution failed.
type Failure struct {
	Key        string
	Input      string
	Repository RepositoryRef // Zero for invalid identifiers.
	Kind       ErrorKind
	Message    string
}

// CollectionReport is the outcome of one batch. Every distinct input appears
// exactly once across Succeeded, Failed and NotAttempted.
type CollectionReport struct {
	PassID       string
	StartedAt    time.Time
	FinishedAt   time.Time
	Succeeded    []RepositoryResult
	Failed       []Failure
	NotAttempted []RepositoryRef // Left unprocessed after a fatal error.
}

// SucceededRefs returns the repositories that were fully collected, in order.
func (r CollectionReport) SucceededRefs() []RepositoryRef {
	refs := make([]RepositoryRef, 0, len(r.Succeeded))
	for _, s := range r.Succeeded {
		refs = append(refs, s.Repository)
	}
	return refs
}

// FailureFor returns the failure recorded under key, if any.
func (r CollectionReport) FailureFor(key string) (Failure, bool) {
	for _, f := range r.Failed {
		if f.Key == key {
			return f, true
		}
	}
	return Failure{}, false
}

// Totals returns the number of runs and jobs collected across all repositories.
func (r CollectionReport) Totals() (runs, jobs int) {
	for _, s := range r.Succeeded {
		runs += s.Runs
		jobs += s.Jobs
	}
	return runs, jobs
}

// Pass converts the report into the summary row persisted for the batch.
func (r CollectionReport) Pass() CollectionPass {
	runs, jobs := r.Totals()
	return CollectionPass{
		ID:         r.PassID,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Succeeded:  len(r.Succeeded),
		Failed:     len(r.Failed),
		Runs:       runs,
		Jobs:       jobs,
	}
}

// CollectionPass is the persisted summary of one batch.
type CollectionPass struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Succeeded  int
	Failed     int
	Runs       int
	Jobs       int
}

// RateLimitSnapshot is a point-in-time view of the API budget.
type RateLimitSnapshot struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
}
