package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/waabox/circledeck/internal/domain"
)

// jobRow is one selectable job together with the workflow it belongs to.
type jobRow struct {
	workflow domain.Workflow
	job      domain.WorkflowJob
}

// JobListModel is an immutable model for the workflows-and-jobs panel of
// one pipeline. Workflow headers are rendered but only jobs are selectable.
type JobListModel struct {
	snapshot domain.PipelineSnapshot
	rows     []jobRow
	cursor   int
}

// NewJobListModel creates a job list for the given snapshot.
func NewJobListModel(snapshot domain.PipelineSnapshot) JobListModel {
	m := JobListModel{snapshot: snapshot}
	for _, w := range snapshot.Workflows {
		for _, j := range snapshot.JobsFor(w.ID) {
			m.rows = append(m.rows, jobRow{workflow: w, job: j})
		}
	}
	return m
}

// Update replaces the snapshot and keeps the cursor on the same job.
func (m JobListModel) Update(snapshot domain.PipelineSnapshot) JobListModel {
	selectedID := ""
	if _, j, ok := m.Selected(); ok {
		selectedID = j.ID
	}
	previous := m.cursor
	next := NewJobListModel(snapshot)
	if len(next.rows) == 0 {
		return next
	}
	next.cursor = min(previous, len(next.rows)-1)
	for i, r := range next.rows {
		if r.job.ID == selectedID {
			next.cursor = i
			break
		}
	}
	return next
}

// MoveDown returns a new model with the cursor moved down by one.
func (m JobListModel) MoveDown() JobListModel {
	if m.cursor < len(m.rows)-1 {
		m.cursor++
	}
	return m
}

// MoveUp returns a new model with the cursor moved up by one.
func (m JobListModel) MoveUp() JobListModel {
	if m.cursor > 0 {
		m.cursor--
	}
	return m
}

// Cursor returns the current cursor position.
func (m JobListModel) Cursor() int {
	return m.cursor
}

// Snapshot returns the pipeline this list shows.
func (m JobListModel) Snapshot() domain.PipelineSnapshot {
	return m.snapshot
}

// Selected returns the highlighted job and its workflow.
func (m JobListModel) Selected() (domain.Workflow, domain.WorkflowJob, bool) {
	if len(m.rows) == 0 {
		return domain.Workflow{}, domain.WorkflowJob{}, false
	}
	r := m.rows[m.cursor]
	return r.workflow, r.job, true
}

// View renders workflows with their jobs. Jobs whose failures are being
// loaded are marked.
func (m JobListModel) View(now time.Time, loading map[int]bool) string {
	if len(m.snapshot.Workflows) == 0 {
		return "No workflows in pipeline."
	}
	var sb strings.Builder
	row := 0
	for _, w := range m.snapshot.Workflows {
		sb.WriteString(workflowStyle.Render(fmt.Sprintf("%s  (%s)", w.Name, w.Status)) + "\n")
		jobs := m.snapshot.JobsFor(w.ID)
		if len(jobs) == 0 {
			sb.WriteString(dimmedStyle.Render("    no jobs") + "\n")
		}
		for _, j := range jobs {
			prefix := "  "
			if row == m.cursor {
				prefix = "> "
			}
			marker := ""
			if j.JobNumber != nil && loading[*j.JobNumber] {
				marker = dimmedStyle.Render(" loading failures…")
			}
			line := fmt.Sprintf("%s  %s %-30s %-8s %s",
				prefix,
				jobIcon(j.Status),
				truncate(j.Name, 30),
				formatDuration(j.Duration(now)),
				marker,
			)
			if row == m.cursor {
				line = selectedStyle.Render(line)
			}
			sb.WriteString(line + "\n")
			row++
		}
	}
	return sb.String()
}
