package model

// RunStatus represents the lifecycle state of a workflow run or job.
type RunStatus string

const (
	RunStatusQueued     RunStatus = "queued"
	RunStatusInProgress RunStatus = "in_progress"
	RunStatusCompleted  RunStatus = "completed"
	RunStatusWaiting    RunStatus = "waiting"
	RunStatusRequested  RunStatus = "requested"
	RunStatusPending    RunStatus = "pending"
)

// Conclusion is the final result of a completed run or job. Empty while the
// run is still in progress.
type Conclusion string

const (
	ConclusionNone           Conclusion = ""
	ConclusionSuccess        Conclusion = "success"
	ConclusionFailure        Conclusion = "failure"
	ConclusionCancelled      Conclusion = "cancelled"
	ConclusionSkipped        Conclusion = "skipped"
	ConclusionNeutral        Conclusion = "neutral"
	ConclusionTimedOut       Conclusion = "timed_out"
	ConclusionActionRequired Conclusion = "action_required"
	ConclusionStale          Conclusion = "stale"
	ConclusionStartupFailure Conclusion = "startup_failure"
)

// ResourceKind selects which paginated Actions resource a page request targets.
type ResourceKind string

const (
	ResourceRuns ResourceKind = "runs" // Workflow runs of a repository.
	ResourceJobs ResourceKind = "jobs" // Jobs of a single workflow run.
)

// ErrorKind classifies why a repository could not be collected.
type ErrorKind string

const (
	ErrorKindNone                  ErrorKind = ""
	ErrorKindInvalidIdentifier     ErrorKind = "invalid_repository_identifier"
	ErrorKindRepositoryUnavailable ErrorKind = "repository_unavailable"
	ErrorKindRateLimitExceeded     ErrorKind = "rate_limit_exceeded"
	ErrorKindTransientFailure      ErrorKind = "transient_fetch_failure"
	ErrorKindAuthentication        ErrorKind = "authentication_failure"
)

// Fatal reports whether an error of this kind must abort the whole batch.
func (k ErrorKind) Fatal() bool {
	return k == ErrorKindAuthentication
}
