package circleci

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/waabox/circledeck/internal/domain"
)

const defaultBaseURL = "https://circleci.com/api/v2"

// rerunFromFailedBody is the fixed payload of the rerun endpoint.
var rerunFromFailedBody = []byte(`{"from_failed": true}`)

// Client implements domain.PipelineProvider for the CircleCI v2 REST API.
type Client struct {
	token   string
	baseURL string
	client  *http.Client
}

// Ensure Client fully implements domain.PipelineProvider.
var _ domain.PipelineProvider = (*Client)(nil)

// NewClient creates a CircleCI client authenticated with a personal API token.
// baseURL is used for testing; pass empty string to use the real CircleCI API.
func NewClient(token string, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		token:   token,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// ListPipelines returns the first page of pipelines of the project.
// onlyMine restricts the listing to pipelines triggered by the token owner.
func (c *Client) ListPipelines(ctx context.Context, project domain.Project, onlyMine bool) (domain.PipelinePage, error) {
	path := "/project/" + project.Slug() + "/pipeline"
	if onlyMine {
		path += "/mine"
	}
	var result pipelinesResponse
	if err := c.get(ctx, path, &result); err != nil {
		return domain.PipelinePage{}, err
	}
	page := domain.PipelinePage{
		Items:         make([]domain.Pipeline, len(result.Items)),
		NextPageToken: result.NextPageToken,
	}
	for i, raw := range result.Items {
		p, err := raw.toPipeline()
		if err != nil {
			return domain.PipelinePage{}, &domain.DecodeError{Op: "GET " + path, Err: err}
		}
		page.Items[i] = p
	}
	return page, nil
}

// ListWorkflows returns the workflows of a pipeline.
func (c *Client) ListWorkflows(ctx context.Context, pipelineID string) ([]domain.Workflow, error) {
	path := "/pipeline/" + url.PathEscape(pipelineID) + "/workflow"
	var result workflowsResponse
	if err := c.get(ctx, path, &result); err != nil {
		return nil, err
	}
	workflows := make([]domain.Workflow, len(result.Items))
	for i, raw := range result.Items {
		w, err := raw.toWorkflow()
		if err != nil {
			return nil, &domain.DecodeError{Op: "GET " + path, Err: err}
		}
		workflows[i] = w
	}
	return workflows, nil
}

// ListJobs returns the jobs of a workflow.
func (c *Client) ListJobs(ctx context.Context, workflowID string) ([]domain.WorkflowJob, error) {
	path := "/workflow/" + url.PathEscape(workflowID) + "/job"
	var result jobsResponse
	if err := c.get(ctx, path, &result); err != nil {
		return nil, err
	}
	jobs := make([]domain.WorkflowJob, len(result.Items))
	for i, raw := range result.Items {
		j, err := raw.toJob()
		if err != nil {
			return nil, &domain.DecodeError{Op: "GET " + path, Err: err}
		}
		jobs[i] = j
	}
	return jobs, nil
}

// ListTestFailures returns the test metadata rows of a job. All results are
// returned; callers keep the failures.
func (c *Client) ListTestFailures(ctx context.Context, project domain.Project, jobNumber int) ([]domain.TestFailureRecord, error) {
	path := "/project/" + project.Slug() + "/" + strconv.Itoa(jobNumber) + "/tests"
	var result testsResponse
	if err := c.get(ctx, path, &result); err != nil {
		return nil, err
	}
	records := make([]domain.TestFailureRecord, len(result.Items))
	for i, raw := range result.Items {
		records[i] = raw.toRecord()
	}
	return records, nil
}

// RetryFromFailed reruns the failed jobs of a workflow. Only the response
// status is inspected.
func (c *Client) RetryFromFailed(ctx context.Context, workflowID string) error {
	path := "/workflow/" + url.PathEscape(workflowID) + "/rerun"
	resp, err := c.do(ctx, http.MethodPost, path, rerunFromFailedBody)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) get(ctx context.Context, path string, target interface{}) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &domain.DecodeError{Op: "GET " + path, Err: err}
	}
	return nil
}

// do sends one request and returns the response when its status is below 400.
// The caller closes the body.
func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	if c.token == "" {
		return nil, domain.ErrMissingToken
	}
	op := method + " " + path

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Circle-Token", c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &domain.TransportError{Op: op, Err: err}
	}
	if resp.StatusCode >= 400 {
		resp.Body.Close()
		return nil, &domain.TransportError{
			Op:  op,
			Err: &domain.HTTPStatusError{StatusCode: resp.StatusCode, Status: resp.Status},
		}
	}
	return resp, nil
}
