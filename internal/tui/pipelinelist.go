package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/waabox/circledeck/internal/domain"
)

// PipelineListModel is an immutable Bubbletea-compatible model for the pipeline list panel.
type PipelineListModel struct {
	snapshots []domain.PipelineSnapshot
	cursor    int
}

// NewPipelineListModel creates a pipeline list model with the given snapshots.
func NewPipelineListModel(snapshots []domain.PipelineSnapshot) PipelineListModel {
	return PipelineListModel{snapshots: snapshots, cursor: 0}
}

// UpdateSnapshots replaces the rows and keeps the cursor on the same
// pipeline when it is still listed.
func (m PipelineListModel) UpdateSnapshots(snapshots []domain.PipelineSnapshot) PipelineListModel {
	selected, ok := m.Selected()
	previous := m.cursor
	m.snapshots = snapshots
	m.cursor = 0
	if !ok || len(snapshots) == 0 {
		return m
	}
	for i, s := range snapshots {
		if s.Pipeline.ID == selected.Pipeline.ID {
			m.cursor = i
			return m
		}
	}
	m.cursor = min(previous, len(snapshots)-1)
	return m
}

// MoveDown returns a new model with the cursor moved down by one.
func (m PipelineListModel) MoveDown() PipelineListModel {
	if m.cursor < len(m.snapshots)-1 {
		m.cursor++
	}
	return m
}

// MoveUp returns a new model with the cursor moved up by one.
func (m PipelineListModel) MoveUp() PipelineListModel {
	if m.cursor > 0 {
		m.cursor--
	}
	return m
}

// SelectedIndex returns the current cursor position.
func (m PipelineListModel) SelectedIndex() int {
	return m.cursor
}

// Selected returns the highlighted snapshot, false when the list is empty.
func (m PipelineListModel) Selected() (domain.PipelineSnapshot, bool) {
	if len(m.snapshots) == 0 {
		return domain.PipelineSnapshot{}, false
	}
	return m.snapshots[m.cursor], true
}

// Snapshots returns the rows in display order.
func (m PipelineListModel) Snapshots() []domain.PipelineSnapshot {
	return m.snapshots
}

// View renders the pipeline list as a string.
func (m PipelineListModel) View(now time.Time) string {
	if len(m.snapshots) == 0 {
		return "No pipelines found."
	}
	var sb strings.Builder
	for i, s := range m.snapshots {
		p := s.Pipeline
		prefix := "  "
		if i == m.cursor {
			prefix = "> "
		}
		subject := ""
		if p.VCS.Commit != nil {
			subject = firstLine(p.VCS.Commit.Subject)
		}
		row := fmt.Sprintf("%s%s #%-5d %-20s %-30s %-12s %s",
			prefix,
			stateBadge(s.State),
			p.Number,
			truncate(p.VCS.Branch, 20),
			truncate(subject, 30),
			truncate(p.Trigger.Actor.Login, 12),
			formatAge(p.CreatedAt, now),
		)
		if i == m.cursor {
			row = selectedStyle.Render(row)
		}
		sb.WriteString(row + "\n")
	}
	return sb.String()
}

func formatAge(t, now time.Time) string {
	if t.IsZero() {
		return "--"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "--"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
