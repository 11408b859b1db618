package tui

import (
	"fmt"
	"strings"

	"github.com/waabox/circledeck/internal/domain"
)

// FailureListModel is an immutable model for the failing tests of one job.
type FailureListModel struct {
	jobName   string
	jobNumber int
	failures  []domain.TestFailureRecord
	cursor    int
}

// NewFailureListModel creates a failure list model.
func NewFailureListModel(jobName string, jobNumber int, failures []domain.TestFailureRecord) FailureListModel {
	return FailureListModel{jobName: jobName, jobNumber: jobNumber, failures: failures, cursor: 0}
}

// Reload replaces the failures and keeps the cursor on the same test,
// matched by record ID.
func (m FailureListModel) Reload(failures []domain.TestFailureRecord) FailureListModel {
	selectedID := ""
	if f, ok := m.Selected(); ok {
		selectedID = f.ID()
	}
	previous := m.cursor
	m.failures = failures
	m.cursor = 0
	if len(failures) == 0 {
		return m
	}
	m.cursor = min(previous, len(failures)-1)
	for i, f := range failures {
		if f.ID() == selectedID {
			m.cursor = i
			break
		}
	}
	return m
}

// MoveDown returns a new model with the cursor moved down by one.
func (m FailureListModel) MoveDown() FailureListModel {
	if m.cursor < len(m.failures)-1 {
		m.cursor++
	}
	return m
}

// MoveUp returns a new model with the cursor moved up by one.
func (m FailureListModel) MoveUp() FailureListModel {
	if m.cursor > 0 {
		m.cursor--
	}
	return m
}

// Cursor returns the current cursor position.
func (m FailureListModel) Cursor() int {
	return m.cursor
}

// Failures returns the full failure slice.
func (m FailureListModel) Failures() []domain.TestFailureRecord {
	return m.failures
}

// JobNumber returns the number of the job the failures belong to.
func (m FailureListModel) JobNumber() int {
	return m.jobNumber
}

// JobName returns the job the failures belong to.
func (m FailureListModel) JobName() string {
	return m.jobName
}

// Selected returns the highlighted failure.
func (m FailureListModel) Selected() (domain.TestFailureRecord, bool) {
	if len(m.failures) == 0 {
		return domain.TestFailureRecord{}, false
	}
	return m.failures[m.cursor], true
}

// View renders the failure list as a string with cursor indicators.
func (m FailureListModel) View() string {
	if len(m.failures) == 0 {
		return "No failures in job!"
	}
	var sb strings.Builder
	for i, f := range m.failures {
		prefix := "  "
		if i == m.cursor {
			prefix = "> "
		}
		line := fmt.Sprintf("%s%s %-60s %.2fs",
			prefix,
			failedStyle.Render("✗"),
			truncate(f.Title(), 60),
			f.RunTime,
		)
		if i == m.cursor {
			line = selectedStyle.Render(line)
		}
		sb.WriteString(line + "\n")
	}
	return sb.String()
}

// failureDetail formats every field of a failure for the detail viewer.
func failureDetail(f domain.TestFailureRecord) string {
	file := f.File
	if file == "" {
		file = "--"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Class:    %s\n", f.Classname)
	fmt.Fprintf(&sb, "File:     %s\n", file)
	fmt.Fprintf(&sb, "Source:   %s\n", f.Source)
	fmt.Fprintf(&sb, "Name:     %s\n", f.Name)
	fmt.Fprintf(&sb, "Result:   %s\n", f.Result)
	fmt.Fprintf(&sb, "Run Time: %.3fs\n", f.RunTime)
	sb.WriteString("Message:\n")
	sb.WriteString(f.Message)
	return sb.String()
}
