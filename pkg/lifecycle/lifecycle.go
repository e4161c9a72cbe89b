// Package lifecycle coordinates startup and shutdown of the service's subsystems.
package lifecycle

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// Check probes one dependency. A nil error means the dependency can serve.
type Check func(ctx context.Context) error

// Coordinator runs startup hooks concurrently, flips to ready once they all
// return, and on Shutdown cancels its context and waits for shutdown hooks.
// Shutdown hooks block on <-Context().Done() before cleaning up.
type Coordinator struct {
	ctx      context.Context
	cancel   context.CancelFunc
	startup  sync.WaitGroup
	shutdown sync.WaitGroup
	ready    atomic.Bool

	mu     sync.Mutex
	checks map[string]Check
}

func New() *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{ctx: ctx, cancel: cancel, checks: map[string]Check{}}
}

// Context is cancelled when Shutdown begins.
func (c *Coordinator) Context() context.Context { return c.ctx }

func (c *Coordinator) OnStartup(fn func()) { c.startup.Go(fn) }

func (c *Coordinator) OnShutdown(fn func()) { c.shutdown.Go(fn) }

// AddCheck registers a readiness probe consulted by Probe.
func (c *Coordinator) AddCheck(name string, check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// Ready reports whether every startup hook has returned.
func (c *Coordinator) Ready() bool { return c.ready.Load() }

// WaitForStartup blocks until the startup hooks finish, then marks the
// coordinator ready.
func (c *Coordinator) WaitForStartup() {
	c.startup.Wait()
	c.ready.Store(true)
}

// Probe runs every registered check and returns the failures by name. An
// empty map means all checks passed.
func (c *Coordinator) Probe(ctx context.Context) map[string]error {
	c.mu.Lock()
	checks := maps.Clone(c.checks)
	c.mu.Unlock()

	failed := map[string]error{}
	for _, name := range slices.Sorted(maps.Keys(checks)) {
		if err := checks[name](ctx); err != nil {
			failed[name] = err
		}
	}
	return failed
}

// Shutdown cancels the context and waits up to timeout for the shutdown hooks.
func (c *Coordinator) Shutdown(timeout time.Duration) error {
	c.ready.Store(false)
	c.cancel()

	done := make(chan struct{})
	go func() {
		c.shutdown.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("shutdown hooks still running after %v", timeout)
	}
}
