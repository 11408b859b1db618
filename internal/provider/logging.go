package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/waabox/circledeck/internal/domain"
)

// AuthRejectedError is returned when CircleCI rejects the configured API key.
// Personal tokens cannot be refreshed, so the user has to replace it.
type AuthRejectedError struct {
	Provider string
	Err      error
}

func (e *AuthRejectedError) Error() string {
	return fmt.Sprintf("%s rejected the API key: update circleci.token in the config", e.Provider)
}

// Unwrap returns the rejected call's error, so both the transport error and
// domain.ErrUnauthorized stay reachable.
func (e *AuthRejectedError) Unwrap() error {
	if e.Err == nil {
		return domain.ErrUnauthorized
	}
	return e.Err
}

// LoggingProvider wraps a PipelineProvider, logs every call with its duration
// and replaces 401 errors with AuthRejectedError.
type LoggingProvider struct {
	inner    domain.PipelineProvider
	provider string
	logger   *slog.Logger
	now      func() time.Time
}

// Ensure LoggingProvider implements PipelineProvider.
var _ domain.PipelineProvider = (*LoggingProvider)(nil)

// NewLoggingProvider creates a LoggingProvider. A nil logger discards output.
func NewLoggingProvider(inner domain.PipelineProvider, providerName string, logger *slog.Logger) *LoggingProvider {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &LoggingProvider{
		inner:    inner,
		provider: providerName,
		logger:   logger.With("component", "provider", "provider", providerName),
		now:      time.Now,
	}
}

func (lp *LoggingProvider) observe(ctx context.Context, op string, started time.Time, err error, attrs ...any) error {
	attrs = append(attrs, "op", op, "elapsed", lp.now().Sub(started))
	switch {
	case err == nil:
		lp.logger.DebugContext(ctx, "call succeeded", attrs...)
		return nil
	case errors.Is(err, context.Canceled):
		lp.logger.DebugContext(ctx, "call canceled", attrs...)
		return err
	case errors.Is(err, domain.ErrUnauthorized):
		lp.logger.WarnContext(ctx, "api key rejected", append(attrs, "error", err)...)
		return &AuthRejectedError{Provider: lp.provider, Err: err}
	default:
		lp.logger.WarnContext(ctx, "call failed", append(attrs, "error", err)...)
		return err
	}
}

func (lp *LoggingProvider) ListPipelines(ctx context.Context, project domain.Project, onlyMine bool) (domain.PipelinePage, error) {
	started := lp.now()
	page, err := lp.inner.ListPipelines(ctx, project, onlyMine)
	if err = lp.observe(ctx, "list_pipelines", started, err, "project", project.Slug(), "only_mine", onlyMine, "count", len(page.Items)); err != nil {
		return domain.PipelinePage{}, err
	}
	return page, nil
}

func (lp *LoggingProvider) ListWorkflows(ctx context.Context, pipelineID string) ([]domain.Workflow, error) {
	started := lp.now()
	workflows, err := lp.inner.ListWorkflows(ctx, pipelineID)
	if err = lp.observe(ctx, "list_workflows", started, err, "pipeline_id", pipelineID, "count", len(workflows)); err != nil {
		return nil, err
	}
	return workflows, nil
}

func (lp *LoggingProvider) ListJobs(ctx context.Context, workflowID string) ([]domain.WorkflowJob, error) {
	started := lp.now()
	jobs, err := lp.inner.ListJobs(ctx, workflowID)
	if err = lp.observe(ctx, "list_jobs", started, err, "workflow_id", workflowID, "count", len(jobs)); err != nil {
		return nil, err
	}
	return jobs, nil
}

func (lp *LoggingProvider) ListTestFailures(ctx context.Context, project domain.Project, jobNumber int) ([]domain.TestFailureRecord, error) {
	started := lp.now()
	records, err := lp.inner.ListTestFailures(ctx, project, jobNumber)
	if err = lp.observe(ctx, "list_test_failures", started, err, "job_number", jobNumber, "count", len(records)); err != nil {
		return nil, err
	}
	return records, nil
}

func (lp *LoggingProvider) RetryFromFailed(ctx context.Context, workflowID string) error {
	started := lp.now()
	err := lp.inner.RetryFromFailed(ctx, workflowID)
	return lp.observe(ctx, "retry_from_failed", started, err, "workflow_id", workflowID)
}
