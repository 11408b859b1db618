// Package refresh drives the periodic fetch of pipelines, workflows and jobs
// and publishes the resulting snapshots.
package refresh

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/waabox/circledeck/internal/domain"
)

// Options configures an Orchestrator. Zero values select the defaults.
type Options struct {
	Project  domain.Project
	OnlyMine bool
	// Schedule decides the automatic refresh times. Defaults to every 10s.
	Schedule Schedule
	// Jitter is the largest random delay added to each automatic tick.
	Jitter time.Duration
	// Concurrency bounds how many pipelines of one cycle are expanded at
	// once. 1 fetches strictly in order.
	Concurrency int
	Clock       Clock
	Logger      *slog.Logger
}

// Orchestrator runs refresh cycles one at a time. A new trigger cancels the
// cycle in flight and starts over; only the latest cycle may publish.
type Orchestrator struct {
	provider    domain.PipelineProvider
	project     domain.Project
	schedule    Schedule
	jitter      time.Duration
	concurrency int
	clock       Clock
	logger      *slog.Logger

	baseCtx  context.Context
	shutdown context.CancelFunc
	wg       sync.WaitGroup

	mu       sync.Mutex
	cycle    uint64
	cancel   context.CancelFunc
	onlyMine bool
	stopped  bool

	state   atomic.Pointer[State]
	updates chan State
}

// New creates an Orchestrator. Nothing is fetched until Run or Refresh is called.
func New(provider domain.PipelineProvider, opts Options) *Orchestrator {
	if opts.Schedule == nil {
		opts.Schedule = DefaultSchedule()
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Clock == nil {
		opts.Clock = realClock{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	baseCtx, shutdown := context.WithCancel(context.Background())
	o := &Orchestrator{
		provider:    provider,
		project:     opts.Project,
		schedule:    opts.Schedule,
		jitter:      opts.Jitter,
		concurrency: opts.Concurrency,
		clock:       opts.Clock,
		logger:      opts.Logger.With("component", "refresh"),
		baseCtx:     baseCtx,
		shutdown:    shutdown,
		onlyMine:    opts.OnlyMine,
		updates:     make(chan State, 1),
	}
	o.state.Store(&State{OnlyMine: opts.OnlyMine})
	return o
}

// Current returns the latest published state.
func (o *Orchestrator) Current() State {
	return *o.state.Load()
}

// Updates delivers published states. Only the most recent unread state is
// kept; a slow reader skips intermediate ones.
func (o *Orchestrator) Updates() <-chan State {
	return o.updates
}

// OnlyMine reports whether the listing is restricted to the user's pipelines.
func (o *Orchestrator) OnlyMine() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.onlyMine
}

// SetOnlyMine changes the filter and refreshes immediately when it changed.
func (o *Orchestrator) SetOnlyMine(onlyMine bool) {
	o.mu.Lock()
	if o.onlyMine == onlyMine {
		o.mu.Unlock()
		return
	}
	o.onlyMine = onlyMine
	o.mu.Unlock()
	o.Refresh(TriggerFilter)
}

// Run refreshes once immediately and then on every schedule tick until ctx
// is done. Ticks missed while the process was suspended collapse into one.
// It stops the orchestrator before returning.
func (o *Orchestrator) Run(ctx context.Context) {
	defer o.Stop()

	o.Refresh(TriggerStartup)
	last := o.clock.Now()
	for {
		next := o.schedule.Next(last)
		if next.IsZero() {
			<-ctx.Done()
			return
		}
		delay := next.Sub(o.clock.Now())
		if delay < 0 {
			delay = 0
		}
		if o.jitter > 0 {
			delay += rand.N(o.jitter)
		}

		select {
		case <-ctx.Done():
			return
		case <-o.clock.After(delay):
		}

		o.Refresh(TriggerTick)
		last = o.clock.Now()
	}
}

// Refresh cancels the cycle in flight, if any, and starts a new one. It
// returns the new cycle number, or 0 once the orchestrator is stopped.
func (o *Orchestrator) Refresh(trigger Trigger) uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.stopped {
		return 0
	}
	if o.cancel != nil {
		o.logger.Debug("superseding cycle", "cycle", o.cycle, "trigger", trigger.String())
		o.cancel()
	}
	o.cycle++
	cycle := o.cycle
	ctx, cancel := context.WithCancel(o.baseCtx)
	o.cancel = cancel
	onlyMine := o.onlyMine

	next := o.Current()
	next.Status = StatusRefreshing
	next.OnlyMine = onlyMine
	o.publishLocked(next)

	o.logger.Debug("cycle started", "cycle", cycle, "trigger", trigger.String(), "only_mine", onlyMine)
	o.wg.Add(1)
	go o.runCycle(ctx, cancel, cycle, onlyMine)
	return cycle
}

// Retry reruns the failed jobs of the snapshot's first workflow and, on
// success, starts one refresh so the new state shows up. Pipelines with
// several workflows always retry the first one.
func (o *Orchestrator) Retry(ctx context.Context, snapshot domain.PipelineSnapshot) error {
	workflow, ok := snapshot.FirstWorkflow()
	if !ok {
		return &domain.ActionError{Action: "retry", Err: domain.ErrNoWorkflow}
	}
	if err := o.provider.RetryFromFailed(ctx, workflow.ID); err != nil {
		o.logger.Warn("retry failed", "workflow_id", workflow.ID, "error", err)
		return &domain.ActionError{Action: "retry", WorkflowID: workflow.ID, Err: err}
	}
	o.logger.Info("retry requested", "workflow_id", workflow.ID, "pipeline", snapshot.Pipeline.Number)
	o.Refresh(TriggerRetry)
	return nil
}

// Stop cancels the cycle in flight and waits for it. Later triggers are ignored.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	o.stopped = true
	o.mu.Unlock()
	o.shutdown()
	o.wg.Wait()
}

func (o *Orchestrator) runCycle(ctx context.Context, cancel context.CancelFunc, cycle uint64, onlyMine bool) {
	defer o.wg.Done()
	defer cancel()

	started := o.clock.Now()
	snapshots, err := o.collect(ctx, onlyMine)

	o.mu.Lock()
	defer o.mu.Unlock()

	if cycle != o.cycle || ctx.Err() != nil || errors.Is(err, context.Canceled) {
		o.logger.Debug("cycle discarded", "cycle", cycle, "latest", o.cycle)
		return
	}
	o.cancel = nil

	next := o.Current()
	next.Cycle = cycle
	next.OnlyMine = onlyMine
	if err != nil {
		next.Status = StatusError
		next.Err = err
		o.logger.Warn("cycle failed", "cycle", cycle, "error", err)
	} else {
		next.Status = StatusIdle
		next.Err = nil
		next.Snapshots = snapshots
		next.Loaded = true
		next.UpdatedAt = o.clock.Now()
		o.logger.Info("cycle completed", "cycle", cycle, "pipelines", len(snapshots), "elapsed", next.UpdatedAt.Sub(started))
	}
	o.publishLocked(next)
}

// publishLocked replaces the published state. The caller holds o.mu.
func (o *Orchestrator) publishLocked(s State) {
	o.state.Store(&s)
	select {
	case o.updates <- s:
	default:
		select {
		case <-o.updates:
		default:
		}
		o.updates <- s
	}
}
