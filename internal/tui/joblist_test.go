package tui_test

import (
	"strings"
	"testing"
	"time"

	"github.com/waabox/circledeck/internal/domain"
	"github.com/waabox/circledeck/internal/tui"
)

func TestJobListModel_RendersWorkflowsAndJobs(t *testing.T) {
	m := tui.NewJobListModel(snapshot(7, "main", domain.JobSuccess, domain.JobFailed))
	view := m.View(time.Now(), map[int]bool{701: true})

	for _, want := range []string{"build-and-test", "job-a", "job-b", "1m30s", "loading failures"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected view to contain %q, got:\n%s", want, view)
		}
	}
}

func TestJobListModel_NoWorkflows(t *testing.T) {
	m := tui.NewJobListModel(domain.NewPipelineSnapshot(domain.Pipeline{ID: "p"}, nil, nil))
	if !strings.Contains(m.View(time.Now(), nil), "No workflows") {
		t.Error("expected empty message")
	}
	if _, _, ok := m.Selected(); ok {
		t.Error("expected no selectable job")
	}
}

func TestJobListModel_NavigationAndUpdate(t *testing.T) {
	m := tui.NewJobListModel(snapshot(7, "main", domain.JobRunning, domain.JobQueued, domain.JobQueued))
	m = m.MoveDown().MoveDown().MoveDown()
	if m.Cursor() != 2 {
		t.Fatalf("expected cursor 2, got %d", m.Cursor())
	}

	m = m.Update(snapshot(7, "main", domain.JobSuccess, domain.JobRunning, domain.JobRunning))
	_, job, ok := m.Selected()
	if !ok || job.Name != "job-c" {
		t.Errorf("expected selection to stay on job-c, got %+v", job)
	}
	if job.Status != domain.JobRunning {
		t.Errorf("expected refreshed status, got %s", job.Status)
	}
}
