package model

import "time"

// WorkflowRun is one execution of a GitHub Actions workflow. RunID is the
// GitHub-assigned identifier and the upsert key.
type WorkflowRun struct {
	RunID        int64
	Repository   RepositoryRef
	WorkflowID   int64
	Name         string
	RunNumber    int
	RunAttempt   int
	Event        string
	Status       RunStatus
	Conclusion   Conclusion
	HeadBranch   string
	HeadSHA      string
	HTMLURL      string
	JobsURL      string
	HeadCommit   HeadCommit
	CreatedAt    time.Time
	UpdatedAt    time.Time
	RunStartedAt time.Time // Zero when the API omits it.
}

// IsCompleted reports whether the run has finished and its jobs are final.
func (r WorkflowRun) IsCompleted() bool {
	return r.Status == RunStatusCompleted
}

// HeadCommit carries the commit a workflow run was triggered for.
type HeadCommit struct {
	SHA         string
	Message     string
	AuthorName  string
	AuthorEmail string
	Timestamp   time.Time
}

// JobRecord is a single job within a workflow run. JobID is the upsert key.
type JobRecord struct {
	JobID       int64
	RunID       int64
	Name        string
	Status      RunStatus
	Conclusion  Conclusion
	RunnerName  string
	HTMLURL     string
	StartedAt   time.Time
	CompletedAt time.Time // Zero if the job has not completed.
}

// CollectedRun pairs a workflow run with the jobs fetched for it. Jobs is
// empty for runs that were not yet completed when collected.
type CollectedRun struct {
	Run  WorkflowRun
	Jobs []JobRecord
}
