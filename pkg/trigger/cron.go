// Package trigger runs workflows on cron schedules. Jobs are registered
// in-process and fire on a one-minute tick; a firing is skipped while the
// previous run of the same job is still in flight.
package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/stepflow/stepflow/pkg/schema"
)

const tickInterval = 60 * time.Second

// Runner executes one workflow run. Satisfied by the workflow package.
type Runner interface {
	Execute(ctx context.Context) *schema.WorkflowResult
}

// job is a registered cron schedule bound to a runner.
type job struct {
	name     string
	schedule cron.Schedule
	runner   Runner
	nextRun  time.Time
}

// Trigger polls registered jobs and runs those that are due.
type Trigger struct {
	parser cron.Parser
	logger *slog.Logger

	mu     sync.Mutex
	jobs   map[string]*job
	cancel context.CancelFunc
	done   chan struct{}

	inflightMu sync.Mutex
	inflight   map[string]struct{} // job names currently executing (dedup)
}

// New creates a Trigger with the standard five-field cron parser.
func New(logger *slog.Logger) *Trigger {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Trigger{
		parser:   cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		logger:   logger,
		jobs:     make(map[string]*job),
		inflight: make(map[string]struct{}),
	}
}

// Add registers a named cron schedule for the runner. Re-registering a name
// replaces the previous schedule.
func (t *Trigger) Add(name, cronExpr string, runner Runner) error {
	schedule, err := t.parser.Parse(cronExpr)
	if err != nil {
		return fmt.Errorf("parse cron expression %q: %w", cronExpr, err)
	}
	if runner == nil {
		return fmt.Errorf("runner for job %q is nil", name)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.jobs[name] = &job{
		name:     name,
		schedule: schedule,
		runner:   runner,
		nextRun:  schedule.Next(time.Now().UTC()),
	}
	return nil
}

// Remove deregisters a job. Removing an unknown name is a no-op.
func (t *Trigger) Remove(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.jobs, name)
}

// NextRun returns the next firing time for a registered job.
func (t *Trigger) NextRun(name string) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	j, ok := t.jobs[name]
	if !ok {
		return time.Time{}, false
	}
	return j.nextRun, true
}

// Start launches the background scheduling loop.
func (t *Trigger) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.done != nil {
		t.mu.Unlock()
		return fmt.Errorf("trigger already started")
	}

	trigCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.done = make(chan struct{})
	t.mu.Unlock()

	go t.loop(trigCtx)
	t.logger.Info("trigger started")
	return nil
}

func (t *Trigger) loop(ctx context.Context) {
	defer close(t.done)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	// Run an initial tick immediately.
	t.Tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Tick(ctx)
		}
	}
}

// Tick runs every due job once and advances its next firing time. Exported
// so callers with their own clocks can drive the trigger directly.
func (t *Trigger) Tick(ctx context.Context) {
	now := time.Now().UTC()

	t.mu.Lock()
	var due []*job
	for _, j := range t.jobs {
		if !j.nextRun.After(now) {
			due = append(due, j)
			j.nextRun = j.schedule.Next(now)
		}
	}
	t.mu.Unlock()

	for _, j := range due {
		if !t.tryAcquire(j.name) {
			t.logger.Warn("skipping overlapping job run", slog.String("job", j.name))
			continue
		}
		t.runJob(ctx, j)
		t.release(j.name)
	}
}

// runJob executes a due job and logs the run outcome.
func (t *Trigger) runJob(ctx context.Context, j *job) {
	t.logger.Info("running scheduled workflow", slog.String("job", j.name))
	result := j.runner.Execute(ctx)
	t.logger.Info("scheduled workflow finished",
		slog.String("job", j.name),
		slog.String("run_id", result.RunID),
		slog.String("status", string(result.Status)),
	)
}

// tryAcquire returns true and marks the job as in-flight if it is not
// already running.
func (t *Trigger) tryAcquire(name string) bool {
	t.inflightMu.Lock()
	defer t.inflightMu.Unlock()
	if _, ok := t.inflight[name]; ok {
		return false
	}
	t.inflight[name] = struct{}{}
	return true
}

// release removes the job from the in-flight set.
func (t *Trigger) release(name string) {
	t.inflightMu.Lock()
	defer t.inflightMu.Unlock()
	delete(t.inflight, name)
}

// Stop gracefully shuts down the trigger loop. The mutex is released before
// waiting on the loop: a tick in flight needs it to scan the jobs map, and
// holding it here would deadlock the shutdown.
func (t *Trigger) Stop() error {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.cancel = nil
	t.done = nil
	t.mu.Unlock()

	if cancel == nil {
		return nil
	}

	cancel()
	<-done

	t.logger.Info("trigger stopped")
	return nil
}
