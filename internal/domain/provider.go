package domain

import "context"

// PipelineProvider is the port the dashboard reads CircleCI through.
// Every method issues exactly one request and caches nothing.
type PipelineProvider interface {
	ListPipelines(ctx context.Context, project Project, onlyMine bool) (PipelinePage, error)
	ListWorkflows(ctx context.Context, pipelineID string) ([]Workflow, error)
	ListJobs(ctx context.Context, workflowID string) ([]WorkflowJob, error)
	ListTestFailures(ctx context.Context, project Project, jobNumber int) ([]TestFailureRecord, error)
	RetryFromFailed(ctx context.Context, workflowID string) error
}
