package refresh

import (
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultInterval is the automatic refresh period.
const DefaultInterval = 10 * time.Second

// Schedule decides when the next automatic refresh should occur after the
// given time. cron.Schedule satisfies it.
type Schedule interface {
	Next(after time.Time) time.Time
}

// DefaultSchedule refreshes every DefaultInterval.
func DefaultSchedule() Schedule {
	return cron.Every(DefaultInterval)
}

// ParseSchedule accepts any robfig/cron expression, including descriptors
// such as "@every 10s".
func ParseSchedule(expr string) (Schedule, error) {
	return cron.ParseStandard(expr)
}

// Clock abstracts time so the refresh loop can be driven by tests.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
