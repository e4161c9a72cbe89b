package lifecycle_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/JaimeStill/postmottak/pkg/lifecycle"
)

func TestStartupGatesReadiness(t *testing.T) {
	lc := lifecycle.New()

	release := make(chan struct{})
	var ran atomic.Int32
	for range 3 {
		lc.OnStartup(func() {
			<-release
			ran.Add(1)
		})
	}

	if lc.Ready() {
		t.Fatal("ready before startup hooks returned")
	}
	close(release)
	lc.WaitForStartup()

	if !lc.Ready() || ran.Load() != 3 {
		t.Errorf("ready = %v, hooks run = %d", lc.Ready(), ran.Load())
	}
}

func TestShutdown(t *testing.T) {
	tests := []struct {
		name    string
		hold    time.Duration
		timeout time.Duration
		wantErr bool
	}{
		{"hooks finish", 0, time.Second, false},
		{"hooks overrun", 300 * time.Millisecond, 20 * time.Millisecond, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lc := lifecycle.New()
			var cleaned atomic.Bool
			lc.OnShutdown(func() {
				<-lc.Context().Done()
				time.Sleep(tt.hold)
				cleaned.Store(true)
			})
			lc.WaitForStartup()

			err := lc.Shutdown(tt.timeout)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Shutdown() = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !cleaned.Load() {
				t.Error("shutdown hook did not complete")
			}
			if lc.Ready() {
				t.Error("still ready after shutdown")
			}
			if lc.Context().Err() == nil {
				t.Error("context not cancelled")
			}
		})
	}
}

func TestProbe(t *testing.T) {
	lc := lifecycle.New()
	down := errors.New("connection refused")

	lc.AddCheck("database", func(context.Context) error { return down })
	lc.AddCheck("storage", func(context.Context) error { return nil })

	failed := lc.Probe(context.Background())
	if len(failed) != 1 || !errors.Is(failed["database"], down) {
		t.Errorf("Probe() = %v", failed)
	}

	lc.AddCheck("database", func(context.Context) error { return nil })
	if failed := lc.Probe(context.Background()); len(failed) != 0 {
		t.Errorf("Probe() after recovery = %v", failed)
	}
}
