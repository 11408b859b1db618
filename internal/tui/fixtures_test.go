package tui_test

import (
	"context"
	"time"

	"github.com/waabox/circledeck/internal/domain"
	"github.com/waabox/circledeck/internal/refresh"
)

var testProject = domain.Project{VCS: "gh", Owner: "waabox", Name: "circledeck"}

// fakeEngine satisfies tui.Engine for TUI tests.
type fakeEngine struct {
	state     refresh.State
	updates   chan refresh.State
	onlyMine  bool
	refreshes []refresh.Trigger
	retried   []domain.PipelineSnapshot
	retryErr  error
}

func newFakeEngine(state refresh.State) *fakeEngine {
	return &fakeEngine{state: state, updates: make(chan refresh.State, 1)}
}

func (f *fakeEngine) Current() refresh.State { return f.state }
func (f *fakeEngine) Updates() <-chan refresh.State { return f.updates }
func (f *fakeEngine) OnlyMine() bool { return f.onlyMine }
func (f *fakeEngine) SetOnlyMine(onlyMine bool) { f.onlyMine = onlyMine }
func (f *fakeEngine) Refresh(t refresh.Trigger) uint64 {
	f.refreshes = append(f.refreshes, t)
	return uint64(len(f.refreshes))
}
func (f *fakeEngine) Retry(_ context.Context, s domain.PipelineSnapshot) error {
	f.retried = append(f.retried, s)
	return f.retryErr
}

// fakeLoader satisfies tui.FailureLoader.
type fakeLoader struct {
	failures []domain.TestFailureRecord
	err      error
	jobs     []int
}

func (f *fakeLoader) Load(_ context.Context, jobNumber int) ([]domain.TestFailureRecord, error) {
	f.jobs = append(f.jobs, jobNumber)
	return f.failures, f.err
}

func intPtr(n int) *int { return &n }

func snapshot(number int, branch string, statuses ...domain.JobStatus) domain.PipelineSnapshot {
	id := "pipe-" + branch
	wf := domain.Workflow{ID: "wf-" + branch, PipelineID: id, Name: "build-and-test", PipelineNumber: number, ProjectSlug: testProject.Slug()}
	jobs := make([]domain.WorkflowJob, len(statuses))
	for i, s := range statuses {
		jobs[i] = domain.WorkflowJob{
			ID:        wf.ID + "-" + string(rune('a'+i)),
			Name:      "job-" + string(rune('a'+i)),
			Status:    s,
			JobNumber: intPtr(number*100 + i),
			StartedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
			StoppedAt: time.Date(2024, 3, 1, 12, 1, 30, 0, time.UTC),
		}
	}
	p := domain.Pipeline{
		ID:     id,
		Number: number,
		State:  domain.PipelineCreated,
		VCS: domain.VCS{
			Branch: branch,
			Commit: &domain.Commit{Subject: "fix: login timeout"},
		},
		Trigger:   domain.Trigger{Actor: domain.Actor{Login: "waabox"}},
		CreatedAt: time.Now().Add(-2 * time.Minute),
	}
	return domain.NewPipelineSnapshot(p, []domain.Workflow{wf}, map[string][]domain.WorkflowJob{wf.ID: jobs})
}

func loadedState(snaps ...domain.PipelineSnapshot) refresh.State {
	return refresh.State{
		Status:    refresh.StatusIdle,
		Snapshots: snaps,
		Loaded:    true,
		Cycle:     1,
		UpdatedAt: time.Date(2024, 3, 1, 12, 5, 0, 0, time.UTC),
	}
}
