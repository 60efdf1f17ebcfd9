package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"financebackend/internal/jobs"
)

// blockingRunner blocks inside Run until released.
type blockingRunner struct {
	name     string
	started  chan struct{}
	release  chan struct{}
	runs     atomic.Int32
	startOne sync.Once
}

func newBlockingRunner(name string) *blockingRunner {
	return &blockingRunner{
		name:    name,
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (r *blockingRunner) Name() string { return r.name }

func (r *blockingRunner) Run(ctx context.Context) (jobs.Report, error) {
	r.runs.Add(1)
	r.startOne.Do(func() { close(r.started) })
	select {
	case <-r.release:
	case <-ctx.Done():
	}
	return jobs.Report{Job: r.name, Processed: 1}, nil
}

type countingRunner struct {
	name string
	runs atomic.Int32
}

func (r *countingRunner) Name() string { return r.name }

func (r *countingRunner) Run(ctx context.Context) (jobs.Report, error) {
	n := r.runs.Add(1)
	return jobs.Report{Job: r.name, Processed: int(n)}, nil
}

func TestOverlapGuardCoalescesTicks(t *testing.T) {
	runner := newBlockingRunner("slow-job")
	sched := New(Options{})
	task := sched.Add(runner, time.Hour)

	ctx := context.Background()
	done := make(chan struct{})
	go func() {
		task.tryRun(ctx)
		close(done)
	}()
	<-runner.started

	if got := task.State(); got != StateRunning {
		t.Errorf("State() = %v, want running", got)
	}

	// Ticks arriving while the run is in flight are dropped.
	for i := 0; i < 3; i++ {
		if task.tryRun(ctx) {
			t.Fatal("overlapping run was not coalesced")
		}
	}

	close(runner.release)
	<-done

	if got := runner.runs.Load(); got != 1 {
		t.Errorf("runner executed %d times, want 1", got)
	}
	if got := task.State(); got != StateCompleted {
		t.Errorf("State() after run = %v, want completed", got)
	}

	// The slot is idle again: release is already closed, so the next tick
	// runs and returns immediately.
	if !task.tryRun(ctx) {
		t.Error("task did not run after returning to idle")
	}
}

func TestRunTimeoutUnblocksJob(t *testing.T) {
	runner := newBlockingRunner("deadline-job")
	sched := New(Options{RunTimeout: 20 * time.Millisecond})
	task := sched.Add(runner, time.Hour)

	start := time.Now()
	if !task.tryRun(context.Background()) {
		t.Fatal("tryRun returned false on idle task")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("run did not honor deadline, took %v", elapsed)
	}
}

func TestRunAllReportsEveryJob(t *testing.T) {
	sched := New(Options{})
	a := &countingRunner{name: "budget-check"}
	b := &countingRunner{name: "recurrence-processing"}
	sched.Add(a, time.Hour)
	sched.Add(b, time.Hour)

	reports := sched.RunAll(context.Background())
	if len(reports) != 2 {
		t.Fatalf("got %d reports, want 2", len(reports))
	}
	if reports[0].Job != "budget-check" || reports[1].Job != "recurrence-processing" {
		t.Errorf("reports out of order: %+v", reports)
	}
	if a.runs.Load() != 1 || b.runs.Load() != 1 {
		t.Errorf("runs = %d, %d; want 1, 1", a.runs.Load(), b.runs.Load())
	}
}

func TestSchedulerStartStop(t *testing.T) {
	sched := New(Options{})
	runner := &countingRunner{name: "tick-job"}
	sched.Add(runner, 10*time.Millisecond)

	sched.Start(context.Background())

	deadline := time.After(2 * time.Second)
	for runner.runs.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("job ran %d times, want at least 2", runner.runs.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}

	sched.Stop()
	after := runner.runs.Load()
	time.Sleep(30 * time.Millisecond)
	if got := runner.runs.Load(); got != after {
		t.Errorf("job kept running after Stop: %d -> %d", after, got)
	}
}
