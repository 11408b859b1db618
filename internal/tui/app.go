package tui

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/waabox/circledeck/internal/domain"
	"github.com/waabox/circledeck/internal/refresh"
)

// Engine is the part of the refresh orchestrator the TUI drives.
type Engine interface {
	Current() refresh.State
	Updates() <-chan refresh.State
	Refresh(trigger refresh.Trigger) uint64
	SetOnlyMine(onlyMine bool)
	OnlyMine() bool
	Retry(ctx context.Context, snapshot domain.PipelineSnapshot) error
}

// FailureLoader fetches the failing tests of one job.
type FailureLoader interface {
	Load(ctx context.Context, jobNumber int) ([]domain.TestFailureRecord, error)
}

// StateMsg carries a state published by the engine.
// It is exported so that tests can inject it directly into AppModel.Update.
type StateMsg struct {
	State refresh.State
}

// FailuresLoadedMsg is sent when the failing tests of a job have been fetched.
type FailuresLoadedMsg struct {
	PipelineID string
	JobNumber  int
	JobName    string
	Failures   []domain.TestFailureRecord
	Err        error
}

// RetryResultMsg is sent when a retry-from-failed request completes.
type RetryResultMsg struct {
	PipelineNumber int
	Err            error
}

type updatesClosedMsg struct{}

// viewState indicates the current navigation level.
type viewState int

const (
	viewPipelines viewState = iota
	viewJobs
	viewFailures
	viewDetail
)

const requestTimeout = 30 * time.Second

// AppModel is the root Bubbletea model for circledeck.
type AppModel struct {
	project domain.Project
	engine  Engine
	loader  FailureLoader
	now     func() time.Time
	// Navigation
	view viewState
	// Engine output
	state refresh.State
	list  PipelineListModel
	// Job level
	jobs        JobListModel
	loadingJobs map[int]bool
	// Failure level
	failures FailureListModel
	// Failure detail viewer
	detailContent string
	detailOffset  int
	// General state
	spinner      spinner.Model
	confirmRetry bool
	retryTarget  domain.PipelineSnapshot
	alert        string
	width        int
	height       int
	// OnFilterChanged is called after the only-mine filter was toggled so
	// the caller can persist it.
	OnFilterChanged func(onlyMine bool) error
}

// NewAppModel creates the root application model.
func NewAppModel(project domain.Project, engine Engine, loader FailureLoader) AppModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	state := engine.Current()
	return AppModel{
		project:     project,
		engine:      engine,
		loader:      loader,
		now:         time.Now,
		state:       state,
		list:        NewPipelineListModel(state.Snapshots),
		loadingJobs: map[int]bool{},
		spinner:     s,
	}
}

// Init starts listening for engine updates.
func (m AppModel) Init() tea.Cmd {
	return tea.Batch(waitForState(m.engine.Updates()), m.spinner.Tick)
}

// waitForState returns a tea.Cmd that reads one state from ch.
func waitForState(ch <-chan refresh.State) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return updatesClosedMsg{}
		}
		return StateMsg{State: s}
	}
}

func (m AppModel) retry(snapshot domain.PipelineSnapshot) tea.Cmd {
	engine := m.engine
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		err := engine.Retry(ctx, snapshot)
		return RetryResultMsg{PipelineNumber: snapshot.Pipeline.Number, Err: err}
	}
}

func (m AppModel) loadFailures(pipelineID string, jobName string, number int) tea.Cmd {
	loader := m.loader
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		failures, err := loader.Load(ctx, number)
		return FailuresLoadedMsg{
			PipelineID: pipelineID,
			JobNumber:  number,
			JobName:    jobName,
			Failures:   failures,
			Err:        err,
		}
	}
}

// openURL opens url in the system browser.
func openURL(url string) tea.Cmd {
	return func() tea.Msg {
		var cmd *exec.Cmd
		switch runtime.GOOS {
		case "linux":
			cmd = exec.Command("xdg-open", url)
		case "darwin":
			cmd = exec.Command("open", url)
		case "windows":
			cmd = exec.Command("cmd", "/c", "start", url)
		default:
			return nil
		}
		_ = cmd.Start()
		return nil
	}
}

// Update handles all incoming messages and key events.
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case StateMsg:
		m = m.applyState(msg.State)
		return m, waitForState(m.engine.Updates())

	case FailuresLoadedMsg:
		loading := maps.Clone(m.loadingJobs)
		delete(loading, msg.JobNumber)
		m.loadingJobs = loading
		if msg.Err != nil {
			m.alert = fmt.Sprintf("Could not load failures of %s: %v", msg.JobName, msg.Err)
			return m, nil
		}
		if m.view == viewFailures && m.failures.JobNumber() == msg.JobNumber {
			m.failures = m.failures.Reload(msg.Failures)
			return m, nil
		}
		if m.view == viewJobs && m.jobs.Snapshot().Pipeline.ID == msg.PipelineID {
			m.failures = NewFailureListModel(msg.JobName, msg.JobNumber, msg.Failures)
			m.view = viewFailures
			return m, nil
		}
		if len(msg.Failures) == 0 {
			m.alert = fmt.Sprintf("%s: No failures in job!", msg.JobName)
		} else {
			m.alert = fmt.Sprintf("%s: %d failing tests loaded", msg.JobName, len(msg.Failures))
		}

	case RetryResultMsg:
		if msg.Err != nil {
			m.alert = msg.Err.Error()
			return m, nil
		}
		m.alert = fmt.Sprintf("Retry of pipeline #%d requested", msg.PipelineNumber)

	case tea.KeyMsg:
		m.alert = ""
		if m.confirmRetry {
			switch msg.String() {
			case "y":
				m.confirmRetry = false
				return m, m.retry(m.retryTarget)
			case "q", "ctrl+c":
				return m, tea.Quit
			default:
				m.confirmRetry = false
				return m, nil
			}
		}
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "ctrl+r":
			m.engine.Refresh(refresh.TriggerManual)
			return m, nil
		}
		switch m.view {
		case viewPipelines:
			return m.updatePipelines(msg)
		case viewJobs:
			return m.updateJobs(msg)
		case viewFailures:
			return m.updateFailures(msg)
		case viewDetail:
			return m.updateDetail(msg)
		}
	}
	return m, nil
}

// applyState swaps in a newly published state, keeping the selection on
// the same pipeline and job. When the open pipeline left the collection the
// view returns to the pipeline list.
func (m AppModel) applyState(s refresh.State) AppModel {
	m.state = s
	m.list = m.list.UpdateSnapshots(s.Snapshots)
	if m.view == viewPipelines {
		return m
	}
	current := m.jobs.Snapshot().Pipeline
	for _, snap := range s.Snapshots {
		if snap.Pipeline.ID == current.ID {
			m.jobs = m.jobs.Update(snap)
			return m
		}
	}
	m.view = viewPipelines
	m.confirmRetry = false
	m.detailContent = ""
	m.detailOffset = 0
	m.alert = fmt.Sprintf("Pipeline #%d is no longer listed", current.Number)
	return m
}

func (m AppModel) toggleOnlyMine() AppModel {
	onlyMine := !m.engine.OnlyMine()
	m.engine.SetOnlyMine(onlyMine)
	m.state.OnlyMine = onlyMine
	if m.OnFilterChanged != nil {
		if err := m.OnFilterChanged(onlyMine); err != nil {
			m.alert = fmt.Sprintf("Could not save filter: %v", err)
		}
	}
	return m
}

func (m AppModel) askRetry(snapshot domain.PipelineSnapshot) AppModel {
	if snapshot.State != domain.StateFailed {
		m.alert = "Only failed pipelines can be retried"
		return m
	}
	m.retryTarget = snapshot
	m.confirmRetry = true
	return m
}

func (m AppModel) updatePipelines(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "down":
		m.list = m.list.MoveDown()
	case "up":
		m.list = m.list.MoveUp()
	case "enter":
		if snap, ok := m.list.Selected(); ok {
			m.jobs = NewJobListModel(snap)
			m.view = viewJobs
		}
	case "r":
		if snap, ok := m.list.Selected(); ok {
			m = m.askRetry(snap)
		}
	case "m":
		m = m.toggleOnlyMine()
	case "o":
		if snap, ok := m.list.Selected(); ok {
			if w, ok := snap.FirstWorkflow(); ok {
				return m, openURL(w.WebURL())
			}
		}
	}
	return m, nil
}

func (m AppModel) updateJobs(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "down":
		m.jobs = m.jobs.MoveDown()
	case "up":
		m.jobs = m.jobs.MoveUp()
	case "enter":
		_, job, ok := m.jobs.Selected()
		if !ok {
			return m, nil
		}
		if job.JobNumber == nil {
			m.alert = fmt.Sprintf("%s has not started yet", job.Name)
			return m, nil
		}
		return m.startFailureLoad(m.jobs.Snapshot().Pipeline.ID, job.Name, *job.JobNumber)
	case "r":
		m = m.askRetry(m.jobs.Snapshot())
	case "m":
		m = m.toggleOnlyMine()
	case "o":
		if w, job, ok := m.jobs.Selected(); ok {
			return m, openURL(job.WebURL(w))
		}
	case "esc":
		m.view = viewPipelines
	}
	return m, nil
}

// startFailureLoad fetches the failures of a job unless a load for it is
// already in flight.
func (m AppModel) startFailureLoad(pipelineID, jobName string, number int) (tea.Model, tea.Cmd) {
	if m.loadingJobs[number] {
		return m, nil
	}
	loading := maps.Clone(m.loadingJobs)
	loading[number] = true
	m.loadingJobs = loading
	return m, m.loadFailures(pipelineID, jobName, number)
}

func (m AppModel) updateFailures(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "l":
		return m.startFailureLoad(m.jobs.Snapshot().Pipeline.ID, m.failures.JobName(), m.failures.JobNumber())
	case "down":
		m.failures = m.failures.MoveDown()
	case "up":
		m.failures = m.failures.MoveUp()
	case "enter":
		if f, ok := m.failures.Selected(); ok {
			m.detailContent = failureDetail(f)
			m.detailOffset = 0
			m.view = viewDetail
		}
	case "esc":
		m.view = viewJobs
	}
	return m, nil
}

func (m AppModel) updateDetail(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	maxOffset := strings.Count(m.detailContent, "\n")
	switch msg.String() {
	case "down":
		if m.detailOffset < maxOffset {
			m.detailOffset++
		}
	case "up":
		if m.detailOffset > 0 {
			m.detailOffset--
		}
	case "pgup":
		m.detailOffset = max(m.detailOffset-m.visibleDetailLines(), 0)
	case "pgdown":
		m.detailOffset = min(m.detailOffset+m.visibleDetailLines(), maxOffset)
	case "g":
		m.detailOffset = 0
	case "G":
		m.detailOffset = maxOffset
	case "esc":
		m.view = viewFailures
		m.detailContent = ""
		m.detailOffset = 0
	}
	return m, nil
}

// View renders the full TUI.
func (m AppModel) View() string {
	header := m.renderHeader()

	if !m.state.Loaded {
		if m.state.Status == refresh.StatusError {
			return header + separator + errorStyle.Render("Error: "+describeError(m.state.Err)) +
				"\n\nPress 'ctrl+r' to retry or 'q' to quit.\n"
		}
		return header + separator + m.spinner.View() + " Loading pipelines...\n"
	}

	var banner string
	if m.state.Err != nil {
		banner = errorStyle.Render("⚠ "+describeError(m.state.Err)) + "\n"
	}
	var alert string
	if m.alert != "" {
		alert = alertStyle.Render(" "+m.alert) + "\n"
	}

	var body, footer string
	switch m.view {
	case viewJobs:
		body, footer = m.renderJobsView()
	case viewFailures:
		body, footer = m.renderFailuresView()
	case viewDetail:
		body, footer = m.renderDetailView()
	default:
		body, footer = m.renderPipelinesView()
	}
	if m.confirmRetry {
		footer = m.renderRetryPrompt()
	}
	return header + separator + banner + body + "\n" + separator + alert + footer
}

func (m AppModel) renderHeader() string {
	filter := "all"
	if m.state.OnlyMine {
		filter = "mine"
	}
	status := ""
	switch {
	case m.state.Status == refresh.StatusRefreshing:
		status = m.spinner.View() + " refreshing"
	case !m.state.UpdatedAt.IsZero():
		status = dimmedStyle.Render("updated " + m.state.UpdatedAt.Format("15:04:05"))
	}
	return fmt.Sprintf(" %s | %s | filter: %s   %s\n",
		titleStyle.Render("circledeck"),
		headerStyle.Render(m.project.Slug()),
		filter,
		status)
}

func (m AppModel) renderPipelinesView() (string, string) {
	body := " Pipelines\n" + m.list.View(m.now())
	footer := " ↑/↓: navigate   enter: open   r: retry   m: mine/all   o: browser   ctrl+r: refresh   q: quit\n"
	return body, footer
}

func (m AppModel) renderJobsView() (string, string) {
	p := m.jobs.Snapshot().Pipeline
	title := fmt.Sprintf(" Pipeline #%d  %s  %s\n", p.Number, p.VCS.Branch, stateBadge(m.jobs.Snapshot().State))
	body := title + m.jobs.View(m.now(), m.loadingJobs)
	footer := " ↑/↓: navigate   enter: failing tests   r: retry   o: browser   esc: back   q: quit\n"
	return body, footer
}

func (m AppModel) renderFailuresView() (string, string) {
	title := fmt.Sprintf(" Failing tests of %s\n", m.failures.JobName())
	footer := " ↑/↓: navigate   enter: details   l: reload   esc: back   q: quit\n"
	return title + m.failures.View(), footer
}

func (m AppModel) renderDetailView() (string, string) {
	lines := strings.Split(m.detailContent, "\n")
	start := min(max(m.detailOffset, 0), len(lines)-1)
	end := min(start+m.visibleDetailLines(), len(lines))
	body := strings.Join(lines[start:end], "\n")
	footer := " ↑/↓: scroll   PgUp/PgDn: page   g/G: top/bottom   esc: back\n"
	return body, footer
}

func (m AppModel) renderRetryPrompt() string {
	name := "workflow"
	if w, ok := m.retryTarget.FirstWorkflow(); ok {
		name = w.Name
	}
	return fmt.Sprintf(" Retry %s of pipeline #%d from failed? [y/N] \n",
		name, m.retryTarget.Pipeline.Number)
}

// visibleDetailLines returns the number of detail lines visible in the current terminal height.
func (m AppModel) visibleDetailLines() int {
	lines := m.height - 6 // header, separators, alert and footer
	if lines < 10 {
		return 10
	}
	return lines
}

func describeError(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, domain.ErrUnauthorized) {
		return err.Error() + " (check your CircleCI API token)"
	}
	return err.Error()
}

// Run starts the Bubbletea program and blocks until the user quits.
func Run(m AppModel) error {
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
