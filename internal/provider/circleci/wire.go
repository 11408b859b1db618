package circleci

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/waabox/circledeck/internal/domain"
)

// Pipeline timestamps always carry fractional seconds; every other endpoint
// uses plain RFC 3339.

// fractionalTime decodes an RFC 3339 timestamp that must include a fraction.
type fractionalTime struct {
	time.Time
}

func (t *fractionalTime) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := parseFractional(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

func (t fractionalTime) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(formatFractional(t.Time))
}

func parseFractional(s string) (time.Time, error) {
	i := strings.IndexByte(s, 'T')
	if i < 0 || !strings.Contains(s[i:], ".") {
		return time.Time{}, fmt.Errorf("timestamp %q has no fractional seconds", s)
	}
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp %q is not ISO-8601: %w", s, err)
	}
	return parsed, nil
}

func formatFractional(t time.Time) string {
	if t.Nanosecond()%int(time.Millisecond) == 0 {
		return t.Format("2006-01-02T15:04:05.000Z07:00")
	}
	return t.Format(time.RFC3339Nano)
}

// isoTime decodes a plain RFC 3339 timestamp. null leaves it zero.
type isoTime struct {
	time.Time
}

func (t *isoTime) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("timestamp %q is not ISO-8601: %w", s, err)
	}
	t.Time = parsed
	return nil
}

func (t isoTime) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(time.RFC3339Nano))
}

var (
	pipelineStates = map[string]domain.PipelineState{
		"created":       domain.PipelineCreated,
		"errored":       domain.PipelineErrored,
		"setup-pending": domain.PipelineSetupPending,
		"setup":         domain.PipelineSetup,
		"pending":       domain.PipelinePending,
	}
	triggerTypes = map[string]domain.TriggerType{
		"explicit":           domain.TriggerExplicit,
		"api":                domain.TriggerAPI,
		"webhook":            domain.TriggerWebhook,
		"scheduled_pipeline": domain.TriggerScheduled,
		"":                   domain.TriggerUnknown,
	}
	workflowStatuses = map[string]domain.WorkflowStatus{
		"success":      domain.WorkflowSuccess,
		"running":      domain.WorkflowRunning,
		"not_run":      domain.WorkflowNotRun,
		"failed":       domain.WorkflowFailed,
		"error":        domain.WorkflowError,
		"failing":      domain.WorkflowFailing,
		"on_hold":      domain.WorkflowOnHold,
		"canceled":     domain.WorkflowCanceled,
		"unauthorized": domain.WorkflowUnauthorized,
	}
	jobStatuses = map[string]domain.JobStatus{
		"success":     domain.JobSuccess,
		"failed":      domain.JobFailed,
		"blocked":     domain.JobBlocked,
		"canceled":    domain.JobCanceled,
		"running":     domain.JobRunning,
		"not_running": domain.JobNotRunning,
		"queued":      domain.JobQueued,
	}
)

var errMissingID = errors.New("missing id")

type pipelinesResponse struct {
	NextPageToken string         `json:"next_page_token,omitempty"`
	Items         []wirePipeline `json:"items"`
}

type wirePipelineError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type wireActor struct {
	Login     string  `json:"login"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}

type wireTrigger struct {
	ReceivedAt fractionalTime `json:"received_at"`
	Type       string         `json:"type"`
	Actor      wireActor      `json:"actor"`
}

type wireCommit struct {
	Body    string `json:"body"`
	Subject string `json:"subject"`
}

type wireVCS struct {
	OriginRepositoryURL string      `json:"origin_repository_url"`
	TargetRepositoryURL string      `json:"target_repository_url"`
	Revision            string      `json:"revision"`
	ProviderName        *string     `json:"provider_name,omitempty"`
	Commit              *wireCommit `json:"commit,omitempty"`
	Branch              *string     `json:"branch,omitempty"`
}

// wirePipeline is the raw CircleCI response shape for a pipeline.
type wirePipeline struct {
	ID          string              `json:"id"`
	Errors      []wirePipelineError `json:"errors"`
	ProjectSlug string              `json:"project_slug"`
	UpdatedAt   fractionalTime      `json:"updated_at"`
	Number      int                 `json:"number"`
	State       string              `json:"state"`
	CreatedAt   fractionalTime      `json:"created_at"`
	Trigger     wireTrigger         `json:"trigger"`
	VCS         wireVCS             `json:"vcs"`
}

func (r wirePipeline) toPipeline() (domain.Pipeline, error) {
	if r.ID == "" {
		return domain.Pipeline{}, fmt.Errorf("pipeline: %w", errMissingID)
	}
	state, ok := pipelineStates[r.State]
	if !ok {
		return domain.Pipeline{}, fmt.Errorf("pipeline %s: unknown state %q", r.ID, r.State)
	}
	triggerType, ok := triggerTypes[r.Trigger.Type]
	if !ok {
		return domain.Pipeline{}, fmt.Errorf("pipeline %s: unknown trigger type %q", r.ID, r.Trigger.Type)
	}
	if r.CreatedAt.IsZero() {
		return domain.Pipeline{}, fmt.Errorf("pipeline %s: missing created_at", r.ID)
	}

	var errs []domain.PipelineError
	if r.Errors != nil {
		errs = make([]domain.PipelineError, len(r.Errors))
		for i, e := range r.Errors {
			errs[i] = domain.PipelineError{Type: e.Type, Message: e.Message}
		}
	}
	var commit *domain.Commit
	if r.VCS.Commit != nil {
		commit = &domain.Commit{Subject: r.VCS.Commit.Subject, Body: r.VCS.Commit.Body}
	}

	return domain.Pipeline{
		ID:          r.ID,
		Number:      r.Number,
		State:       state,
		ProjectSlug: r.ProjectSlug,
		CreatedAt:   r.CreatedAt.Time,
		UpdatedAt:   r.UpdatedAt.Time,
		Errors:      errs,
		Trigger: domain.Trigger{
			ReceivedAt: r.Trigger.ReceivedAt.Time,
			Type:       triggerType,
			Actor: domain.Actor{
				Login:     r.Trigger.Actor.Login,
				AvatarURL: deref(r.Trigger.Actor.AvatarURL),
			},
		},
		VCS: domain.VCS{
			OriginRepositoryURL: r.VCS.OriginRepositoryURL,
			TargetRepositoryURL: r.VCS.TargetRepositoryURL,
			Revision:            r.VCS.Revision,
			ProviderName:        deref(r.VCS.ProviderName),
			Commit:              commit,
			Branch:              deref(r.VCS.Branch),
		},
	}, nil
}

func fromPipeline(p domain.Pipeline) wirePipeline {
	var errs []wirePipelineError
	if p.Errors != nil {
		errs = make([]wirePipelineError, len(p.Errors))
		for i, e := range p.Errors {
			errs[i] = wirePipelineError{Type: e.Type, Message: e.Message}
		}
	}
	var commit *wireCommit
	if p.VCS.Commit != nil {
		commit = &wireCommit{Subject: p.VCS.Commit.Subject, Body: p.VCS.Commit.Body}
	}
	return wirePipeline{
		ID:          p.ID,
		Errors:      errs,
		ProjectSlug: p.ProjectSlug,
		UpdatedAt:   fractionalTime{p.UpdatedAt},
		Number:      p.Number,
		State:       string(p.State),
		CreatedAt:   fractionalTime{p.CreatedAt},
		Trigger: wireTrigger{
			ReceivedAt: fractionalTime{p.Trigger.ReceivedAt},
			Type:       string(p.Trigger.Type),
			Actor:      wireActor{Login: p.Trigger.Actor.Login, AvatarURL: ref(p.Trigger.Actor.AvatarURL)},
		},
		VCS: wireVCS{
			OriginRepositoryURL: p.VCS.OriginRepositoryURL,
			TargetRepositoryURL: p.VCS.TargetRepositoryURL,
			Revision:            p.VCS.Revision,
			ProviderName:        ref(p.VCS.ProviderName),
			Commit:              commit,
			Branch:              ref(p.VCS.Branch),
		},
	}
}

type workflowsResponse struct {
	NextPageToken string         `json:"next_page_token,omitempty"`
	Items         []wireWorkflow `json:"items"`
}

// wireWorkflow is the raw CircleCI response shape for a workflow.
type wireWorkflow struct {
	PipelineID     string  `json:"pipeline_id"`
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	ProjectSlug    string  `json:"project_slug"`
	Status         string  `json:"status"`
	StartedBy      string  `json:"started_by"`
	PipelineNumber int     `json:"pipeline_number"`
	CreatedAt      isoTime `json:"created_at"`
	StoppedAt      isoTime `json:"stopped_at"`
}

func (r wireWorkflow) toWorkflow() (domain.Workflow, error) {
	if r.ID == "" {
		return domain.Workflow{}, fmt.Errorf("workflow: %w", errMissingID)
	}
	status, ok := workflowStatuses[r.Status]
	if !ok {
		return domain.Workflow{}, fmt.Errorf("workflow %s: unknown status %q", r.ID, r.Status)
	}
	if r.CreatedAt.IsZero() {
		return domain.Workflow{}, fmt.Errorf("workflow %s: missing created_at", r.ID)
	}
	return domain.Workflow{
		ID:             r.ID,
		PipelineID:     r.PipelineID,
		Name:           r.Name,
		Status:         status,
		CreatedAt:      r.CreatedAt.Time,
		StoppedAt:      r.StoppedAt.Time,
		PipelineNumber: r.PipelineNumber,
		ProjectSlug:    r.ProjectSlug,
		StartedBy:      r.StartedBy,
	}, nil
}

func fromWorkflow(w domain.Workflow) wireWorkflow {
	return wireWorkflow{
		PipelineID:     w.PipelineID,
		ID:             w.ID,
		Name:           w.Name,
		ProjectSlug:    w.ProjectSlug,
		Status:         string(w.Status),
		StartedBy:      w.StartedBy,
		PipelineNumber: w.PipelineNumber,
		CreatedAt:      isoTime{w.CreatedAt},
		StoppedAt:      isoTime{w.StoppedAt},
	}
}

type jobsResponse struct {
	NextPageToken string    `json:"next_page_token,omitempty"`
	Items         []wireJob `json:"items"`
}

// wireJob is the raw CircleCI response shape for a workflow job.
type wireJob struct {
	Dependencies []string `json:"dependencies"`
	JobNumber    *int     `json:"job_number,omitempty"`
	ID           string   `json:"id"`
	StartedAt    isoTime  `json:"started_at"`
	StoppedAt    isoTime  `json:"stopped_at"`
	Name         string   `json:"name"`
	ProjectSlug  string   `json:"project_slug"`
	Status       string   `json:"status"`
	Type         string   `json:"type"`
}

func (r wireJob) toJob() (domain.WorkflowJob, error) {
	if r.ID == "" {
		return domain.WorkflowJob{}, fmt.Errorf("job: %w", errMissingID)
	}
	status, ok := jobStatuses[r.Status]
	if !ok {
		return domain.WorkflowJob{}, fmt.Errorf("job %s: unknown status %q", r.ID, r.Status)
	}
	return domain.WorkflowJob{
		ID:           r.ID,
		Dependencies: r.Dependencies,
		JobNumber:    r.JobNumber,
		StartedAt:    r.StartedAt.Time,
		StoppedAt:    r.StoppedAt.Time,
		Name:         r.Name,
		ProjectSlug:  r.ProjectSlug,
		Status:       status,
		Type:         r.Type,
	}, nil
}

func fromJob(j domain.WorkflowJob) wireJob {
	return wireJob{
		Dependencies: j.Dependencies,
		JobNumber:    j.JobNumber,
		ID:           j.ID,
		StartedAt:    isoTime{j.StartedAt},
		StoppedAt:    isoTime{j.StoppedAt},
		Name:         j.Name,
		ProjectSlug:  j.ProjectSlug,
		Status:       string(j.Status),
		Type:         j.Type,
	}
}

type testsResponse struct {
	NextPageToken string     `json:"next_page_token,omitempty"`
	Items         []wireTest `json:"items"`
}

// wireTest is the raw CircleCI response shape for a test metadata row.
type wireTest struct {
	Message   string  `json:"message"`
	Source    string  `json:"source"`
	RunTime   float64 `json:"run_time"`
	File      *string `json:"file,omitempty"`
	Result    string  `json:"result"`
	Name      string  `json:"name"`
	Classname string  `json:"classname"`
}

func (r wireTest) toRecord() domain.TestFailureRecord {
	return domain.TestFailureRecord{
		Message:   r.Message,
		Source:    r.Source,
		RunTime:   r.RunTime,
		File:      deref(r.File),
		Result:    r.Result,
		Name:      r.Name,
		Classname: r.Classname,
	}
}

func fromRecord(t domain.TestFailureRecord) wireTest {
	return wireTest{
		Message:   t.Message,
		Source:    t.Source,
		RunTime:   t.RunTime,
		File:      ref(t.File),
		Result:    t.Result,
		Name:      t.Name,
		Classname: t.Classname,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func ref(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
