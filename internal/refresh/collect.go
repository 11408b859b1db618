package refresh

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/waabox/circledeck/internal/domain"
)

// collect fetches the first page of pipelines and expands each into a
// snapshot. The first error aborts the whole cycle; no partial result is
// returned.
func (o *Orchestrator) collect(ctx context.Context, onlyMine bool) ([]domain.PipelineSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	page, err := o.provider.ListPipelines(ctx, o.project, onlyMine)
	if err != nil {
		return nil, fmt.Errorf("listing pipelines: %w", err)
	}

	snapshots := make([]domain.PipelineSnapshot, len(page.Items))
	if o.concurrency == 1 {
		for i, p := range page.Items {
			snap, err := o.expand(ctx, p)
			if err != nil {
				return nil, err
			}
			snapshots[i] = snap
		}
		return snapshots, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for i, p := range page.Items {
		g.Go(func() error {
			snap, err := o.expand(gctx, p)
			if err != nil {
				return err
			}
			snapshots[i] = snap
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snapshots, nil
}

// expand loads the workflows of one pipeline and the jobs of each workflow.
func (o *Orchestrator) expand(ctx context.Context, p domain.Pipeline) (domain.PipelineSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return domain.PipelineSnapshot{}, err
	}
	workflows, err := o.provider.ListWorkflows(ctx, p.ID)
	if err != nil {
		return domain.PipelineSnapshot{}, fmt.Errorf("listing workflows of pipeline %d: %w", p.Number, err)
	}

	jobs := make(map[string][]domain.WorkflowJob, len(workflows))
	for _, w := range workflows {
		if err := ctx.Err(); err != nil {
			return domain.PipelineSnapshot{}, err
		}
		list, err := o.provider.ListJobs(ctx, w.ID)
		if err != nil {
			return domain.PipelineSnapshot{}, fmt.Errorf("listing jobs of workflow %s: %w", w.Name, err)
		}
		jobs[w.ID] = list
	}
	return domain.NewPipelineSnapshot(p, workflows, jobs), nil
}
