// Package failures loads the failing tests of a single job on demand.
package failures

import (
	"context"
	"fmt"

	"github.com/waabox/circledeck/internal/domain"
)

// Loader fetches test metadata for one job at a time. It keeps no state
// between calls, so loads for different jobs run independently and a repeat
// load always goes back to the API.
type Loader struct {
	provider domain.PipelineProvider
	project  domain.Project
}

// NewLoader creates a Loader for the given project.
func NewLoader(provider domain.PipelineProvider, project domain.Project) *Loader {
	return &Loader{provider: provider, project: project}
}

// Load returns the failed tests of the job, in the order CircleCI lists them.
// An empty result means the job has no failing tests.
func (l *Loader) Load(ctx context.Context, jobNumber int) ([]domain.TestFailureRecord, error) {
	records, err := l.provider.ListTestFailures(ctx, l.project, jobNumber)
	if err != nil {
		return nil, fmt.Errorf("loading tests of job %d: %w", jobNumber, err)
	}
	failed := make([]domain.TestFailureRecord, 0, len(records))
	for _, r := range records {
		if r.IsFailure() {
			failed = append(failed, r)
		}
	}
	return failed, nil
}
