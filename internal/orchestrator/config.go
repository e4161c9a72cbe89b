package orchestrator

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Env maps orchestrator fields to environment variable names.
type Env struct {
	InboxFolder        string
	FinishedFolder     string
	ManualFolder       string
	RobotLogFolder     string
	PartialMatchFolder string
	RetryIntervals     string
	Interval           string
	Enabled            string
	InProgressPrefix   string
	FailedPrefix       string
}

// Config holds the mailbox folders, the retry policy and the schedule of the
// archiving cycle.
type Config struct {
	InboxFolder        string `toml:"inbox_folder"`
	FinishedFolder     string `toml:"finished_folder"`
	ManualFolder       string `toml:"manual_folder"`
	RobotLogFolder     string `toml:"robot_log_folder"`
	PartialMatchFolder string `toml:"partial_match_folder"`

	// RetryIntervals are the delays in minutes before each retry. A flow that
	// fails once more than the list is long is escalated.
	RetryIntervals []int `toml:"retry_intervals"`

	// Interval is how often the scheduler runs a cycle.
	Interval string `toml:"interval"`
	// Enabled turns the scheduler on. The HTTP trigger works either way.
	Enabled  *bool `toml:"enabled"`
	PageSize int   `toml:"page_size"`

	InProgressPrefix string `toml:"in_progress_prefix"`
	FailedPrefix     string `toml:"failed_prefix"`
}

// Finalize applies defaults, environment overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		if err := c.loadEnv(env); err != nil {
			return err
		}
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.InboxFolder != "" {
		c.InboxFolder = overlay.InboxFolder
	}
	if overlay.FinishedFolder != "" {
		c.FinishedFolder = overlay.FinishedFolder
	}
	if overlay.ManualFolder != "" {
		c.ManualFolder = overlay.ManualFolder
	}
	if overlay.RobotLogFolder != "" {
		c.RobotLogFolder = overlay.RobotLogFolder
	}
	if overlay.PartialMatchFolder != "" {
		c.PartialMatchFolder = overlay.PartialMatchFolder
	}
	if overlay.RetryIntervals != nil {
		c.RetryIntervals = overlay.RetryIntervals
	}
	if overlay.Interval != "" {
		c.Interval = overlay.Interval
	}
	if overlay.Enabled != nil {
		c.Enabled = overlay.Enabled
	}
	if overlay.PageSize != 0 {
		c.PageSize = overlay.PageSize
	}
	if overlay.InProgressPrefix != "" {
		c.InProgressPrefix = overlay.InProgressPrefix
	}
	if overlay.FailedPrefix != "" {
		c.FailedPrefix = overlay.FailedPrefix
	}
}

// IntervalDuration returns Interval as a time.Duration.
func (c *Config) IntervalDuration() time.Duration {
	d, _ := time.ParseDuration(c.Interval)
	return d
}

// SchedulerEnabled reports whether the timer trigger runs.
func (c *Config) SchedulerEnabled() bool {
	return c.Enabled != nil && *c.Enabled
}

func (c *Config) loadDefaults() {
	if c.InboxFolder == "" {
		c.InboxFolder = "inbox"
	}
	if c.RetryIntervals == nil {
		c.RetryIntervals = []int{5, 15, 60, 240}
	}
	if c.Interval == "" {
		c.Interval = "5m"
	}
	if c.Enabled == nil {
		on := true
		c.Enabled = &on
	}
	if c.PageSize == 0 {
		c.PageSize = 100
	}
	if c.InProgressPrefix == "" {
		c.InProgressPrefix = "in-progress"
	}
	if c.FailedPrefix == "" {
		c.FailedPrefix = "failed"
	}
}

func (c *Config) loadEnv(env *Env) error {
	set := func(name string, dst *string) {
		if name == "" {
			return
		}
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}

	set(env.InboxFolder, &c.InboxFolder)
	set(env.FinishedFolder, &c.FinishedFolder)
	set(env.ManualFolder, &c.ManualFolder)
	set(env.RobotLogFolder, &c.RobotLogFolder)
	set(env.PartialMatchFolder, &c.PartialMatchFolder)
	set(env.Interval, &c.Interval)
	set(env.InProgressPrefix, &c.InProgressPrefix)
	set(env.FailedPrefix, &c.FailedPrefix)

	if env.Enabled != "" {
		if v := os.Getenv(env.Enabled); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s: %w", env.Enabled, err)
			}
			c.Enabled = &b
		}
	}

	if env.RetryIntervals != "" {
		if v := os.Getenv(env.RetryIntervals); v != "" {
			intervals, err := ParseIntervals(v)
			if err != nil {
				return fmt.Errorf("%s: %w", env.RetryIntervals, err)
			}
			c.RetryIntervals = intervals
		}
	}
	return nil
}

func (c *Config) validate() error {
	if c.FinishedFolder == "" {
		return fmt.Errorf("finished_folder required")
	}
	if c.ManualFolder == "" {
		return fmt.Errorf("manual_folder required")
	}
	if c.RobotLogFolder == "" {
		return fmt.Errorf("robot_log_folder required")
	}
	for _, m := range c.RetryIntervals {
		if m <= 0 {
			return fmt.Errorf("retry_intervals: %d is not a positive number of minutes", m)
		}
	}
	if d, err := time.ParseDuration(c.Interval); err != nil {
		return fmt.Errorf("invalid interval: %w", err)
	} else if d <= 0 {
		return fmt.Errorf("interval must be positive")
	}
	if c.PageSize < 1 || c.PageSize > 1000 {
		return fmt.Errorf("page_size must be between 1 and 1000")
	}
	if c.InProgressPrefix == c.FailedPrefix {
		return fmt.Errorf("in_progress_prefix and failed_prefix must differ")
	}
	return nil
}

// ParseIntervals parses a comma separated list of minutes, e.g. "5,15,60".
func ParseIntervals(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid retry interval %q", p)
		}
		out = append(out, n)
	}
	return out, nil
}
