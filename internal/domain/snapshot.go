package domain

// DisplayState is the consolidated status shown for a pipeline.
type DisplayState int

const (
	StateWaiting DisplayState = iota
	StateRunning
	StateSucceeded
	StateFailed
	StateCanceled
)

func (s DisplayState) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateCanceled:
		return "canceled"
	default:
		return "waiting"
	}
}

// DeriveDisplayState computes the display state of a pipeline from the jobs
// of its first workflow. Later workflows are ignored: a pipeline whose first
// workflow succeeded reads as succeeded even if a second one failed.
//
// Precedence: any running, then any failed, then all succeeded, then
// waiting unless a job was canceled.
func DeriveDisplayState(workflows []Workflow, jobsByWorkflowID map[string][]WorkflowJob) DisplayState {
	var jobs []WorkflowJob
	if len(workflows) > 0 {
		jobs = jobsByWorkflowID[workflows[0].ID]
	}

	if anyJob(jobs, JobRunning) {
		return StateRunning
	}
	if anyJob(jobs, JobFailed) {
		return StateFailed
	}
	if len(jobs) > 0 && allJobs(jobs, JobSuccess) {
		return StateSucceeded
	}
	if !anyJob(jobs, JobCanceled) {
		return StateWaiting
	}
	return StateCanceled
}

func anyJob(jobs []WorkflowJob, status JobStatus) bool {
	for _, j := range jobs {
		if j.Status == status {
			return true
		}
	}
	return false
}

func allJobs(jobs []WorkflowJob, status JobStatus) bool {
	for _, j := range jobs {
		if j.Status != status {
			return false
		}
	}
	return true
}

// PipelineSnapshot is one pipeline together with its workflows and their
// jobs as seen by a single refresh cycle.
type PipelineSnapshot struct {
	Pipeline  Pipeline
	Workflows []Workflow
	Jobs      map[string][]WorkflowJob
	State     DisplayState
}

// NewPipelineSnapshot assembles a snapshot and derives its display state.
// Job lists keyed by a workflow id that is not in workflows are dropped.
func NewPipelineSnapshot(p Pipeline, workflows []Workflow, jobs map[string][]WorkflowJob) PipelineSnapshot {
	owned := make(map[string][]WorkflowJob, len(workflows))
	for _, w := range workflows {
		if js, ok := jobs[w.ID]; ok {
			owned[w.ID] = js
		}
	}
	return PipelineSnapshot{
		Pipeline:  p,
		Workflows: workflows,
		Jobs:      owned,
		State:     DeriveDisplayState(workflows, owned),
	}
}

// JobsFor returns the jobs of the given workflow in server order.
func (s PipelineSnapshot) JobsFor(workflowID string) []WorkflowJob {
	return s.Jobs[workflowID]
}

// FirstWorkflow returns the workflow retry-from-failed targets.
func (s PipelineSnapshot) FirstWorkflow() (Workflow, bool) {
	if len(s.Workflows) == 0 {
		return Workflow{}, false
	}
	return s.Workflows[0], true
}
