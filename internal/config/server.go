package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"
)

const (
	EnvServerHost              = "POSTMOTTAK_SERVER_HOST"
	EnvServerPort              = "POSTMOTTAK_SERVER_PORT"
	EnvServerReadHeaderTimeout = "POSTMOTTAK_SERVER_READ_HEADER_TIMEOUT"
	EnvServerReadTimeout       = "POSTMOTTAK_SERVER_READ_TIMEOUT"
	EnvServerWriteTimeout      = "POSTMOTTAK_SERVER_WRITE_TIMEOUT"
	EnvServerShutdownTimeout   = "POSTMOTTAK_SERVER_SHUTDOWN_TIMEOUT"
)

// ServerConfig holds HTTP listener settings. Timeouts are Go duration strings.
// The write timeout must cover a full archiving cycle started over HTTP.
type ServerConfig struct {
	Host              string `toml:"host"`
	Port              int    `toml:"port"`
	ReadHeaderTimeout string `toml:"read_header_timeout"`
	ReadTimeout       string `toml:"read_timeout"`
	WriteTimeout      string `toml:"write_timeout"`
	ShutdownTimeout   string `toml:"shutdown_timeout"`
}

func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c *ServerConfig) ReadHeaderTimeoutDuration() time.Duration {
	return mustDuration(c.ReadHeaderTimeout)
}

func (c *ServerConfig) ReadTimeoutDuration() time.Duration { return mustDuration(c.ReadTimeout) }

func (c *ServerConfig) WriteTimeoutDuration() time.Duration { return mustDuration(c.WriteTimeout) }

func (c *ServerConfig) ShutdownTimeoutDuration() time.Duration {
	return mustDuration(c.ShutdownTimeout)
}

func (c *ServerConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

func (c *ServerConfig) Merge(overlay *ServerConfig) {
	if overlay.Port != 0 {
		c.Port = overlay.Port
	}
	theirs := overlay.durations()
	for key, mine := range c.durations() {
		if v := *theirs[key].dst; v != "" {
			*mine.dst = v
		}
	}
	if overlay.Host != "" {
		c.Host = overlay.Host
	}
}

type durationSetting struct {
	dst      *string
	fallback string
	env      string
}

// durations lists the timeout settings by their toml key.
func (c *ServerConfig) durations() map[string]durationSetting {
	return map[string]durationSetting{
		"read_header_timeout": {&c.ReadHeaderTimeout, "10s", EnvServerReadHeaderTimeout},
		"read_timeout":        {&c.ReadTimeout, "1m", EnvServerReadTimeout},
		"write_timeout":       {&c.WriteTimeout, "15m", EnvServerWriteTimeout},
		"shutdown_timeout":    {&c.ShutdownTimeout, "30s", EnvServerShutdownTimeout},
	}
}

func (c *ServerConfig) loadDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	for _, d := range c.durations() {
		if *d.dst == "" {
			*d.dst = d.fallback
		}
	}
}

func (c *ServerConfig) loadEnv() {
	if v := os.Getenv(EnvServerHost); v != "" {
		c.Host = v
	}
	if port, err := strconv.Atoi(os.Getenv(EnvServerPort)); err == nil {
		c.Port = port
	}
	for _, d := range c.durations() {
		if v := os.Getenv(d.env); v != "" {
			*d.dst = v
		}
	}
}

func (c *ServerConfig) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	for field, d := range c.durations() {
		if dur, err := time.ParseDuration(*d.dst); err != nil || dur <= 0 {
			return fmt.Errorf("invalid %s: %q", field, *d.dst)
		}
	}
	return nil
}

// mustDuration parses a value that validate has already accepted.
func mustDuration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}
