package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/JaimeStill/postmottak/pkg/lifecycle"
)

// Runner runs one archiving cycle.
type Runner interface {
	Run(ctx context.Context) (*Summary, error)
}

// Scheduler is the timer trigger. It runs a cycle once after startup and then
// on every tick. A tick that arrives while a cycle is still running is skipped.
type Scheduler struct {
	runner   Runner
	interval time.Duration
	logger   *slog.Logger
	done     chan struct{}
}

func NewScheduler(runner Runner, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		runner:   runner,
		interval: interval,
		logger:   logger.With("system", "scheduler"),
		done:     make(chan struct{}),
	}
}

// Start launches the loop after all startup hooks finish. The shutdown hook
// waits for a running cycle to observe cancellation and return.
func (s *Scheduler) Start(lc *lifecycle.Coordinator) error {
	go func() {
		defer close(s.done)
		lc.WaitForStartup()
		s.loop(lc.Context())
	}()

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		<-s.done
		s.logger.Info("scheduler stopped")
	})

	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	s.logger.Info("scheduler started", "interval", s.interval.String())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	summary, err := s.runner.Run(ctx)
	switch {
	case errors.Is(err, ErrCycleRunning):
		s.logger.Info("cycle skipped, previous cycle still running")
	case errors.Is(err, context.Canceled):
	case err != nil:
		s.logger.Error("cycle failed", "error", err)
	default:
		s.logger.Debug("cycle finished",
			"run_id", summary.RunID.String(),
			"handled", len(summary.HandledMessages),
		)
	}
}
