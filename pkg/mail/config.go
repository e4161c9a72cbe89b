package mail

import (
	"fmt"
	"os"
	"strconv"
)

const (
	TransportGraph = "graph"
	TransportIMAP  = "imap"
)

// Env maps mail configuration fields to environment variable names.
type Env struct {
	Transport    string
	Mailbox      string
	GraphBaseURL string
	IMAPHost     string
	IMAPPort     string
	IMAPUsername string
	IMAPPassword string
	IMAPTLS      string
	SMTPHost     string
	SMTPPort     string
	SMTPStartTLS string
}

// GraphConfig configures the Microsoft Graph transport.
type GraphConfig struct {
	BaseURL string `toml:"base_url"`
	Scope   string `toml:"scope"`
}

// IMAPConfig configures the IMAP transport.
type IMAPConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	TLS      bool   `toml:"tls"`
}

// SMTPConfig configures outgoing mail for the IMAP transport.
type SMTPConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	StartTLS bool   `toml:"start_tls"`
}

// Config selects and configures the mail transport.
type Config struct {
	Transport string      `toml:"transport"`
	Mailbox   string      `toml:"mailbox"`
	Graph     GraphConfig `toml:"graph"`
	IMAP      IMAPConfig  `toml:"imap"`
	SMTP      SMTPConfig  `toml:"smtp"`
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
	if overlay.Transport != "" {
		c.Transport = overlay.Transport
	}
	if overlay.Mailbox != "" {
		c.Mailbox = overlay.Mailbox
	}
	if overlay.Graph.BaseURL != "" {
		c.Graph.BaseURL = overlay.Graph.BaseURL
	}
	if overlay.Graph.Scope != "" {
		c.Graph.Scope = overlay.Graph.Scope
	}
	if overlay.IMAP.Host != "" {
		c.IMAP.Host = overlay.IMAP.Host
	}
	if overlay.IMAP.Port != 0 {
		c.IMAP.Port = overlay.IMAP.Port
	}
	if overlay.IMAP.Username != "" {
		c.IMAP.Username = overlay.IMAP.Username
	}
	if overlay.IMAP.Password != "" {
		c.IMAP.Password = overlay.IMAP.Password
	}
	if overlay.IMAP.TLS {
		c.IMAP.TLS = true
	}
	if overlay.SMTP.Host != "" {
		c.SMTP.Host = overlay.SMTP.Host
	}
	if overlay.SMTP.Port != 0 {
		c.SMTP.Port = overlay.SMTP.Port
	}
	if overlay.SMTP.StartTLS {
		c.SMTP.StartTLS = true
	}
}

func (c *Config) loadDefaults() {
	if c.Transport == "" {
		c.Transport = TransportGraph
	}
	if c.Graph.BaseURL == "" {
		c.Graph.BaseURL = "https://graph.microsoft.com/v1.0"
	}
	if c.Graph.Scope == "" {
		c.Graph.Scope = "https://graph.microsoft.com/.default"
	}
	if c.IMAP.Port == 0 {
		c.IMAP.Port = 993
	}
	if c.SMTP.Port == 0 {
		c.SMTP.Port = 587
	}
}

func (c *Config) loadEnv(env *Env) {
	str := func(name string, dst *string) {
		if name == "" {
			return
		}
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if name == "" {
			return
		}
		if v := os.Getenv(name); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	flag := func(name string, dst *bool) {
		if name == "" {
			return
		}
		if v := os.Getenv(name); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}

	str(env.Transport, &c.Transport)
	str(env.Mailbox, &c.Mailbox)
	str(env.GraphBaseURL, &c.Graph.BaseURL)
	str(env.IMAPHost, &c.IMAP.Host)
	num(env.IMAPPort, &c.IMAP.Port)
	str(env.IMAPUsername, &c.IMAP.Username)
	str(env.IMAPPassword, &c.IMAP.Password)
	flag(env.IMAPTLS, &c.IMAP.TLS)
	str(env.SMTPHost, &c.SMTP.Host)
	num(env.SMTPPort, &c.SMTP.Port)
	flag(env.SMTPStartTLS, &c.SMTP.StartTLS)
}

func (c *Config) validate() error {
	if c.Mailbox == "" {
		return fmt.Errorf("mailbox required")
	}
	switch c.Transport {
	case TransportGraph:
	case TransportIMAP:
		if c.IMAP.Host == "" {
			return fmt.Errorf("imap host required")
		}
		if c.IMAP.Port <= 0 {
			return fmt.Errorf("imap port must be positive")
		}
	default:
		return fmt.Errorf("unknown transport %q", c.Transport)
	}
	return nil
}
