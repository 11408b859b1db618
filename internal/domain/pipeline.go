package domain

import (
	"fmt"
	"strings"
	"time"
)

const webBaseURL = "https://app.circleci.com/pipelines"

// PipelineState is the setup state CircleCI reports for a pipeline.
type PipelineState string

const (
	PipelineCreated      PipelineState = "created"
	PipelineErrored      PipelineState = "errored"
	PipelineSetupPending PipelineState = "setup-pending"
	PipelineSetup        PipelineState = "setup"
	PipelinePending      PipelineState = "pending"
)

// TriggerType describes what started a pipeline. CircleCI sends an empty
// string for triggers it cannot classify.
type TriggerType string

const (
	TriggerExplicit  TriggerType = "explicit"
	TriggerAPI       TriggerType = "api"
	TriggerWebhook   TriggerType = "webhook"
	TriggerScheduled TriggerType = "scheduled_pipeline"
	TriggerUnknown   TriggerType = ""
)

// Actor is the user that triggered a pipeline.
type Actor struct {
	Login     string
	AvatarURL string // empty when the user has no avatar
}

// Trigger holds who started a pipeline and when.
type Trigger struct {
	ReceivedAt time.Time
	Type       TriggerType
	Actor      Actor
}

// Commit is the head commit of a pipeline.
type Commit struct {
	Subject string
	Body    string
}

// VCS describes the revision a pipeline was built from.
type VCS struct {
	OriginRepositoryURL string
	TargetRepositoryURL string
	Revision            string
	ProviderName        string
	Commit              *Commit
	Branch              string
}

// CommitURL points at the pipeline revision on the origin repository.
func (v VCS) CommitURL() string {
	return strings.TrimSuffix(v.OriginRepositoryURL, "/") + "/commit/" + v.Revision
}

// PipelineError is a configuration or setup error attached to a pipeline.
type PipelineError struct {
	Type    string
	Message string
}

// Pipeline is a single triggered build run. It is a fetch snapshot and is
// never modified after decoding.
type Pipeline struct {
	ID          string
	Number      int
	State       PipelineState
	ProjectSlug string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Errors      []PipelineError
	Trigger     Trigger
	VCS         VCS
}

// PipelinePage is the first page of a pipeline listing.
type PipelinePage struct {
	Items         []Pipeline
	NextPageToken string
}

// WorkflowStatus is the execution state of a workflow.
type WorkflowStatus string

const (
	WorkflowSuccess      WorkflowStatus = "success"
	WorkflowRunning      WorkflowStatus = "running"
	WorkflowNotRun       WorkflowStatus = "not_run"
	WorkflowFailed       WorkflowStatus = "failed"
	WorkflowError        WorkflowStatus = "error"
	WorkflowFailing      WorkflowStatus = "failing"
	WorkflowOnHold       WorkflowStatus = "on_hold"
	WorkflowCanceled     WorkflowStatus = "canceled"
	WorkflowUnauthorized WorkflowStatus = "unauthorized"
)

// Workflow is a named group of jobs within a pipeline.
type Workflow struct {
	ID             string
	PipelineID     string
	Name           string
	Status         WorkflowStatus
	CreatedAt      time.Time
	StoppedAt      time.Time // zero while the workflow is still going
	PipelineNumber int
	ProjectSlug    string
	StartedBy      string
}

// WebURL returns the CircleCI app page of the workflow.
func (w Workflow) WebURL() string {
	return fmt.Sprintf("%s/%s/%d/workflows/%s", webBaseURL, w.ProjectSlug, w.PipelineNumber, w.ID)
}

// JobStatus is the execution state of a workflow job.
type JobStatus string

const (
	JobSuccess    JobStatus = "success"
	JobFailed     JobStatus = "failed"
	JobBlocked    JobStatus = "blocked"
	JobCanceled   JobStatus = "canceled"
	JobRunning    JobStatus = "running"
	JobNotRunning JobStatus = "not_running"
	JobQueued     JobStatus = "queued"
)

// WorkflowJob is a single execution unit within a workflow.
type WorkflowJob struct {
	ID           string
	Dependencies []string
	JobNumber    *int // nil while the job is queued
	StartedAt    time.Time
	StoppedAt    time.Time
	Name         string
	ProjectSlug  string
	Status       JobStatus
	Type         string
}

// WebURL returns the job page, falling back to the workflow page for jobs
// that have not been assigned a number yet.
func (j WorkflowJob) WebURL(w Workflow) string {
	if j.JobNumber == nil {
		return w.WebURL()
	}
	return fmt.Sprintf("%s/jobs/%d", w.WebURL(), *j.JobNumber)
}

// Duration is the time the job has been running, measured up to now for
// jobs that have not stopped. Zero for jobs that never started.
func (j WorkflowJob) Duration(now time.Time) time.Duration {
	if j.StartedAt.IsZero() {
		return 0
	}
	end := j.StoppedAt
	if end.IsZero() {
		end = now
	}
	return end.Sub(j.StartedAt)
}
