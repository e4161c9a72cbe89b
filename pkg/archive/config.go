package archive

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Env maps archive configuration fields to environment variable names.
type Env struct {
	BaseURL string
	Scope   string
	Timeout string
}

// Config configures the archive client. Scope is a comma separated list of
// token scopes. An empty scope sends requests without a bearer token.
type Config struct {
	BaseURL string `toml:"base_url"`
	Scope   string `toml:"scope"`
	Timeout string `toml:"timeout"`
}

// Finalize applies defaults, environment overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.BaseURL != "" {
		c.BaseURL = overlay.BaseURL
	}
	if overlay.Scope != "" {
		c.Scope = overlay.Scope
	}
	if overlay.Timeout != "" {
		c.Timeout = overlay.Timeout
	}
}

// Scopes splits Scope on commas.
func (c *Config) Scopes() []string {
	if c.Scope == "" {
		return nil
	}
	var out []string
	for _, s := range strings.Split(c.Scope, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// TimeoutDuration returns Timeout as a time.Duration.
func (c *Config) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

func (c *Config) loadDefaults() {
	if c.Timeout == "" {
		c.Timeout = "2m"
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.BaseURL != "" {
		if v := os.Getenv(env.BaseURL); v != "" {
			c.BaseURL = v
		}
	}
	if env.Scope != "" {
		if v := os.Getenv(env.Scope); v != "" {
			c.Scope = v
		}
	}
	if env.Timeout != "" {
		if v := os.Getenv(env.Timeout); v != "" {
			c.Timeout = v
		}
	}
}

func (c *Config) validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base_url required")
	}
	for _, s := range c.Scopes() {
		if !strings.HasPrefix(strings.ToLower(s), "https://") {
			return fmt.Errorf("scope %q must start with https://", s)
		}
	}
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}
	return nil
}
