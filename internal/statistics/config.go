package statistics

import (
	"fmt"
	"os"
	"time"
)

type Env struct {
	BaseURL string
	Key     string
	AppName string
	Version string
}

// Config configures the statistics endpoint. Reporting is disabled when
// BaseURL is empty.
type Config struct {
	BaseURL    string `toml:"base_url"`
	Key        string `toml:"key"`
	AppName    string `toml:"app_name"`
	Version    string `toml:"version"`
	Company    string `toml:"company"`
	Department string `toml:"department"`
	Timeout    string `toml:"timeout"`
}

func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

func (c *Config) Merge(overlay *Config) {
	if overlay.BaseURL != "" {
		c.BaseURL = overlay.BaseURL
	}
	if overlay.Key != "" {
		c.Key = overlay.Key
	}
	if overlay.AppName != "" {
		c.AppName = overlay.AppName
	}
	if overlay.Version != "" {
		c.Version = overlay.Version
	}
	if overlay.Company != "" {
		c.Company = overlay.Company
	}
	if overlay.Department != "" {
		c.Department = overlay.Department
	}
	if overlay.Timeout != "" {
		c.Timeout = overlay.Timeout
	}
}

func (c *Config) Enabled() bool {
	return c.BaseURL != ""
}

func (c *Config) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

func (c *Config) loadDefaults() {
	if c.AppName == "" {
		c.AppName = "postmottak"
	}
	if c.Version == "" {
		c.Version = "dev"
	}
	if c.Company == "" {
		c.Company = "ORG"
	}
	if c.Department == "" {
		c.Department = "Dokumentasjon og politisk støtte"
	}
	if c.Timeout == "" {
		c.Timeout = "30s"
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.BaseURL != "" {
		if v := os.Getenv(env.BaseURL); v != "" {
			c.BaseURL = v
		}
	}
	if env.Key != "" {
		if v := os.Getenv(env.Key); v != "" {
			c.Key = v
		}
	}
	if env.AppName != "" {
		if v := os.Getenv(env.AppName); v != "" {
			c.AppName = v
		}
	}
	if env.Version != "" {
		if v := os.Getenv(env.Version); v != "" {
			c.Version = v
		}
	}
}

func (c *Config) validate() error {
	if c.Enabled() && c.Key == "" {
		return fmt.Errorf("key required when base_url is set")
	}
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}
	return nil
}
