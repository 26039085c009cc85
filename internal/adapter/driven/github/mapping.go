package github

import (
	gh "github.com/google/go-github/v82/github"

	"github.com/AnalyzeActions/WorkKnow/internal/domain/model"
)

// mapWorkflowRun converts a go-github WorkflowRun to a domain model WorkflowRun.
// It uses GetXxx() helper methods exclusively to avoid nil pointer panics.
func mapWorkflowRun(r *gh.WorkflowRun, repo model.RepositoryRef) model.WorkflowRun {
	commit := r.GetHeadCommit()

	return model.WorkflowRun{
		RunID:      r.GetID(),
		Repository: repo,
		WorkflowID: r.GetWorkflowID(),
		Name:       r.GetName(),
		RunNumber:  r.GetRunNumber(),
		RunAttempt: r.GetRunAttempt(),
		Event:      r.GetEvent(),
		Status:     model.RunStatus(r.GetStatus()),
		Conclusion: model.Conclusion(r.GetConclusion()),
		HeadBranch: r.GetHeadBranch(),
		HeadSHA:    r.GetHeadSHA(),
		HTMLURL:    r.GetHTMLURL(),
		JobsURL:    r.GetJobsURL(),
		HeadCommit: model.HeadCommit{
			SHA:         commit.GetID(),
			Message:     commit.GetMessage(),
			AuthorName:  commit.GetAuthor().GetName(),
			AuthorEmail: commit.GetAuthor().GetEmail(),
			Timestamp:   commit.GetTimestamp().Time,
		},
		CreatedAt:    r.GetCreatedAt().Time,
		UpdatedAt:    r.GetUpdatedAt().Time,
		RunStartedAt: r.GetRunStartedAt().Time,
	}
}

// mapJob converts a go-github WorkflowJob to a domain model JobRecord.
func mapJob(j *gh.WorkflowJob, runID int64) model.JobRecord {
	id := j.GetRunID()
	if id == 0 {
		id = runID
	}

	return model.JobRecord{
		JobID:       j.GetID(),
		RunID:       id,
		Name:        j.GetName(),
		Status:      model.RunStatus(j.GetStatus()),
		Conclusion:  model.Conclusion(j.GetConclusion()),
		RunnerName:  j.GetRunnerName(),
		HTMLURL:     j.GetHTMLURL(),
		StartedAt:   j.GetStartedAt().Time,
		CompletedAt: j.GetCompletedAt().Time,
	}
}
