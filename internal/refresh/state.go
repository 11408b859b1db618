package refresh

import (
	"time"

	"github.com/waabox/circledeck/internal/domain"
)

// Status is the orchestrator's lifecycle state.
type Status int

const (
	StatusIdle Status = iota
	StatusRefreshing
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusRefreshing:
		return "refreshing"
	case StatusError:
		return "error"
	default:
		return "idle"
	}
}

// State is what the orchestrator publishes to the presentation layer.
// Values are never modified after publication.
type State struct {
	Status Status
	// Snapshots is the collection of the last cycle that completed. A failed
	// cycle keeps the previous collection and sets Err.
	Snapshots []domain.PipelineSnapshot
	// Err is the failure of the latest finished cycle, nil after a success.
	Err error
	// Loaded is true once any cycle has completed.
	Loaded bool
	// Cycle is the number of the cycle that produced this state.
	Cycle uint64
	// UpdatedAt is when Snapshots were published.
	UpdatedAt time.Time
	OnlyMine  bool
}

// ErrorMessage returns the human-readable error of the latest cycle.
func (s State) ErrorMessage() string {
	if s.Err == nil {
		return ""
	}
	return s.Err.Error()
}

// Trigger names what started a refresh cycle.
type Trigger int

const (
	TriggerStartup Trigger = iota
	TriggerTick
	TriggerManual
	TriggerFilter
	TriggerRetry
)

func (t Trigger) String() string {
	switch t {
	case TriggerTick:
		return "tick"
	case TriggerManual:
		return "manual"
	case TriggerFilter:
		return "filter"
	case TriggerRetry:
		return "retry"
	default:
		return "startup"
	}
}
