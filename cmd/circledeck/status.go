package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/waabox/circledeck/internal/refresh"
)

func newStatusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Run one refresh cycle and print the pipelines",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(*opts)
			if err != nil {
				return err
			}
			defer a.close()

			state, err := collectOnce(cmd.Context(), refresh.New(a.provider, a.refreshOptions))
			if err != nil {
				return err
			}
			return writeStatus(cmd.OutOrStdout(), a.project.Slug(), state, time.Now())
		},
	}
}

// collectOnce runs a single cycle and waits for its outcome.
func collectOnce(ctx context.Context, o *refresh.Orchestrator) (refresh.State, error) {
	defer o.Stop()
	cycle := o.Refresh(refresh.TriggerStartup)
	for {
		select {
		case <-ctx.Done():
			return refresh.State{}, ctx.Err()
		case s := <-o.Updates():
			if s.Cycle != cycle || s.Status == refresh.StatusRefreshing {
				continue
			}
			if s.Err != nil {
				return s, s.Err
			}
			return s, nil
		}
	}
}

func writeStatus(out io.Writer, slug string, state refresh.State, now time.Time) error {
	filter := "all"
	if state.OnlyMine {
		filter = "mine"
	}
	fmt.Fprintf(out, "%s (%s)\n", slug, filter)
	if len(state.Snapshots) == 0 {
		fmt.Fprintln(out, "No pipelines found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NUMBER\tSTATE\tBRANCH\tACTOR\tCREATED\tWORKFLOW")
	for _, s := range state.Snapshots {
		p := s.Pipeline
		branch := p.VCS.Branch
		if branch == "" {
			branch = "-"
		}
		workflow := "-"
		if wf, ok := s.FirstWorkflow(); ok {
			workflow = wf.Name
		}
		created := "-"
		if !p.CreatedAt.IsZero() {
			created = humanize.RelTime(p.CreatedAt, now, "ago", "from now")
		}
		fmt.Fprintf(w, "#%d\t%s\t%s\t%s\t%s\t%s\n",
			p.Number, s.State, branch, p.Trigger.Actor.Login, created, workflow)
	}
	return w.Flush()
}
