package orchestrator_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/postmottak/internal/orchestrator"
	"github.com/JaimeStill/postmottak/pkg/lifecycle"
)

type countingRunner struct {
	calls atomic.Int32
	ran   chan struct{}
	err   error
}

func (r *countingRunner) Run(ctx context.Context) (*orchestrator.Summary, error) {
	if r.calls.Add(1) == 2 {
		close(r.ran)
	}
	if r.err != nil {
		return nil, r.err
	}
	return &orchestrator.Summary{RunID: uuid.New()}, nil
}

func TestSchedulerRunsOnStartAndTick(t *testing.T) {
	runner := &countingRunner{ran: make(chan struct{})}
	lc := lifecycle.New()

	s := orchestrator.NewScheduler(runner, 10*time.Millisecond, discard())
	if err := s.Start(lc); err != nil {
		t.Fatalf("Start: %v", err)
	}

	select {
	case <-runner.ran:
	case <-time.After(2 * time.Second):
		t.Fatalf("scheduler ran %d cycles, want at least 2", runner.calls.Load())
	}

	if err := lc.Shutdown(time.Second); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	after := runner.calls.Load()
	time.Sleep(30 * time.Millisecond)
	if got := runner.calls.Load(); got != after {
		t.Errorf("scheduler kept running after shutdown: %d -> %d", after, got)
	}
}

func TestSchedulerSurvivesBusyCycle(t *testing.T) {
	runner := &countingRunner{ran: make(chan struct{}), err: orchestrator.ErrCycleRunning}
	lc := lifecycle.New()

	s := orchestrator.NewScheduler(runner, 10*time.Millisecond, discard())
	if err := s.Start(lc); err != nil {
		t.Fatalf("Start: %v", err)
	}

	select {
	case <-runner.ran:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler stopped after a busy cycle")
	}

	if err := lc.Shutdown(time.Second); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}
