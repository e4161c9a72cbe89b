package orchestrator_test

import (
	"slices"
	"testing"
	"time"

	"github.com/JaimeStill/postmottak/internal/orchestrator"
)

func validConfig() orchestrator.Config {
	return orchestrator.Config{
		FinishedFolder: "finished",
		ManualFolder:   "manual",
		RobotLogFolder: "robot-log",
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	if cfg.InboxFolder != "inbox" {
		t.Errorf("InboxFolder = %q", cfg.InboxFolder)
	}
	if !slices.Equal(cfg.RetryIntervals, []int{5, 15, 60, 240}) {
		t.Errorf("RetryIntervals = %v", cfg.RetryIntervals)
	}
	if cfg.IntervalDuration() != 5*time.Minute {
		t.Errorf("Interval = %v", cfg.IntervalDuration())
	}
	if cfg.PageSize != 100 {
		t.Errorf("PageSize = %d", cfg.PageSize)
	}
	if !cfg.SchedulerEnabled() {
		t.Error("scheduler disabled by default")
	}
	if cfg.InProgressPrefix != "in-progress" || cfg.FailedPrefix != "failed" {
		t.Errorf("prefixes = %q, %q", cfg.InProgressPrefix, cfg.FailedPrefix)
	}
}

func TestConfigEnv(t *testing.T) {
	t.Setenv("TEST_RETRY_INTERVALS", "1, 2,3")
	t.Setenv("TEST_INTERVAL", "30s")
	t.Setenv("TEST_ENABLED", "false")
	t.Setenv("TEST_MANUAL", "manual-env")

	cfg := validConfig()
	err := cfg.Finalize(&orchestrator.Env{
		RetryIntervals: "TEST_RETRY_INTERVALS",
		Interval:       "TEST_INTERVAL",
		Enabled:        "TEST_ENABLED",
		ManualFolder:   "TEST_MANUAL",
	})
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	if !slices.Equal(cfg.RetryIntervals, []int{1, 2, 3}) {
		t.Errorf("RetryIntervals = %v", cfg.RetryIntervals)
	}
	if cfg.IntervalDuration() != 30*time.Second {
		t.Errorf("Interval = %v", cfg.IntervalDuration())
	}
	if cfg.SchedulerEnabled() {
		t.Error("scheduler enabled")
	}
	if cfg.ManualFolder != "manual-env" {
		t.Errorf("ManualFolder = %q", cfg.ManualFolder)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*orchestrator.Config)
	}{
		{"missing finished folder", func(c *orchestrator.Config) { c.FinishedFolder = "" }},
		{"missing manual folder", func(c *orchestrator.Config) { c.ManualFolder = "" }},
		{"missing robot log folder", func(c *orchestrator.Config) { c.RobotLogFolder = "" }},
		{"negative interval", func(c *orchestrator.Config) { c.RetryIntervals = []int{5, -1} }},
		{"bad schedule", func(c *orchestrator.Config) { c.Interval = "often" }},
		{"page size", func(c *orchestrator.Config) { c.PageSize = 5000 }},
		{"same prefixes", func(c *orchestrator.Config) { c.FailedPrefix = "in-progress" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			if err := cfg.Finalize(nil); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestConfigMerge(t *testing.T) {
	cfg := validConfig()
	cfg.Merge(&orchestrator.Config{ManualFolder: "other", RetryIntervals: []int{1}})

	if cfg.ManualFolder != "other" || cfg.FinishedFolder != "finished" {
		t.Errorf("merge result = %+v", cfg)
	}
	if !slices.Equal(cfg.RetryIntervals, []int{1}) {
		t.Errorf("RetryIntervals = %v", cfg.RetryIntervals)
	}
}

func TestParseIntervals(t *testing.T) {
	if _, err := orchestrator.ParseIntervals("5,x"); err == nil {
		t.Error("expected error")
	}
	got, err := orchestrator.ParseIntervals("")
	if err != nil || len(got) != 0 {
		t.Errorf("ParseIntervals(\"\") = %v, %v", got, err)
	}
}
