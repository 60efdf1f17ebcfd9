// Package scheduler drives the periodic background jobs. Each job gets its
// own ticker, an explicit run-state machine, and an overlap guard: a tick
// that arrives while the previous run is still going is coalesced and
// dropped, never run in parallel.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"financebackend/internal/jobs"
)

// RunState is the lifecycle of one job slot: Idle -> Running ->
// (Completed | Failed) -> Idle. Completed/Failed are retained as the last
// terminal state while the slot sits idle.
type RunState int32

const (
	StateIdle RunState = iota
	StateRunning
	StateCompleted
	StateFailed
)

func (s RunState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Runner is one schedulable job.
type Runner interface {
	Name() string
	Run(ctx context.Context) (jobs.Report, error)
}

// Task wraps a Runner with its schedule and run-state.
type Task struct {
	runner   Runner
	interval time.Duration
	timeout  time.Duration
	maxSkips int

	running  atomic.Bool
	state    atomic.Int32 // last terminal RunState
	skips    atomic.Int32 // consecutive coalesced ticks
	lastMu   sync.Mutex
	lastRun  time.Time
	lastRept jobs.Report
}

// State returns the task's current run state.
func (t *Task) State() RunState {
	if t.running.Load() {
		return StateRunning
	}
	return RunState(t.state.Load())
}

// LastReport returns the report of the most recent completed run.
func (t *Task) LastReport() (jobs.Report, time.Time) {
	t.lastMu.Lock()
	defer t.lastMu.Unlock()
	return t.lastRept, t.lastRun
}

// tryRun executes one guarded run. It returns false when the task was already
// running and the tick was dropped.
func (t *Task) tryRun(ctx context.Context) bool {
	if !t.running.CompareAndSwap(false, true) {
		skips := t.skips.Add(1)
		if int(skips) >= t.maxSkips {
			slog.Warn("Job is falling behind, ticks repeatedly coalesced",
				"job", t.runner.Name(),
				"consecutive_skips", skips)
		} else {
			slog.Info("Previous run still in progress, coalescing tick",
				"job", t.runner.Name())
		}
		return false
	}
	defer t.running.Store(false)
	t.skips.Store(0)

	runCtx := ctx
	if t.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	started := time.Now()
	report, err := t.runner.Run(runCtx)

	t.lastMu.Lock()
	t.lastRept = report
	t.lastRun = started
	t.lastMu.Unlock()

	if err != nil {
		t.state.Store(int32(StateFailed))
		slog.Error("Job run failed",
			"job", t.runner.Name(),
			"duration_ms", time.Since(started).Milliseconds(),
			"error", err)
		return true
	}

	t.state.Store(int32(StateCompleted))
	slog.Info("Job run completed",
		"job", t.runner.Name(),
		"duration_ms", time.Since(started).Milliseconds(),
		"processed", report.Processed,
		"skipped", report.Skipped,
		"failed", report.Failed)
	return true
}

// Scheduler owns the task set and their ticker goroutines. It is created at
// process start, injected where needed, and torn down with Stop at shutdown.
type Scheduler struct {
	opts   Options
	mu     sync.Mutex
	tasks  []*Task
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Options tune every task registered on the scheduler.
type Options struct {
	// RunTimeout is the deadline for a single job run; accounts left when it
	// expires are skipped and picked up on the next tick. Zero disables it.
	RunTimeout time.Duration
	// MaxSkips is how many consecutive coalesced ticks are tolerated before
	// the scheduler starts warning loudly. Default 3.
	MaxSkips int
}

func New(opts Options) *Scheduler {
	if opts.MaxSkips <= 0 {
		opts.MaxSkips = 3
	}
	return &Scheduler{opts: opts}
}

// Add registers a job with its tick interval.
func (s *Scheduler) Add(runner Runner, interval time.Duration) *Task {
	task := &Task{
		runner:   runner,
		interval: interval,
		timeout:  s.opts.RunTimeout,
		maxSkips: s.opts.MaxSkips,
	}
	s.mu.Lock()
	s.tasks = append(s.tasks, task)
	s.mu.Unlock()
	return task
}

// Start launches one ticker goroutine per task. Jobs also run once
// immediately at startup.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.cancel = cancel
	tasks := make([]*Task, len(s.tasks))
	copy(tasks, s.tasks)
	s.mu.Unlock()

	for _, task := range tasks {
		s.wg.Add(1)
		go func(t *Task) {
			defer s.wg.Done()

			slog.Info("Job scheduled",
				"job", t.runner.Name(),
				"interval", t.interval)

			// Initial run on startup.
			t.tryRun(ctx)

			ticker := time.NewTicker(t.interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					t.tryRun(ctx)
				}
			}
		}(task)
	}
}

// Stop cancels all ticker goroutines and waits for in-flight runs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

// RunAll runs every registered job once, synchronously, in registration
// order. Used by the manual trigger endpoint and the one-shot CLI; jobs whose
// slot is busy are reported with their last known report and not re-run.
func (s *Scheduler) RunAll(ctx context.Context) []jobs.Report {
	s.mu.Lock()
	tasks := make([]*Task, len(s.tasks))
	copy(tasks, s.tasks)
	s.mu.Unlock()

	reports := make([]jobs.Report, 0, len(tasks))
	for _, task := range tasks {
		task.tryRun(ctx)
		report, _ := task.LastReport()
		if report.Job == "" {
			report.Job = task.runner.Name()
		}
		reports = append(reports, report)
	}
	return reports
}
