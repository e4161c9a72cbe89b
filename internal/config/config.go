package config

import (
	"fmt"
	"os"
	"time"

	gaconfig "github.com/JaimeStill/go-agents/pkg/config"
	"github.com/pelletier/go-toml/v2"

	"github.com/JaimeStill/postmottak/internal/emailtypes"
	"github.com/JaimeStill/postmottak/internal/orchestrator"
	"github.com/JaimeStill/postmottak/internal/statistics"
	"github.com/JaimeStill/postmottak/pkg/archive"
	"github.com/JaimeStill/postmottak/pkg/credential"
	"github.com/JaimeStill/postmottak/pkg/database"
	"github.com/JaimeStill/postmottak/pkg/mail"
	"github.com/JaimeStill/postmottak/pkg/storage"
	"github.com/JaimeStill/postmottak/pkg/telemetry"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"

	EnvPostmottakEnv             = "POSTMOTTAK_ENV"
	EnvPostmottakShutdownTimeout = "POSTMOTTAK_SHUTDOWN_TIMEOUT"
	EnvPostmottakVersion         = "POSTMOTTAK_VERSION"
)

var databaseEnv = &database.Env{
	URL:             "POSTMOTTAK_DB_DSN",
	Host:            "POSTMOTTAK_DB_HOST",
	Port:            "POSTMOTTAK_DB_PORT",
	Name:            "POSTMOTTAK_DB_NAME",
	User:            "POSTMOTTAK_DB_USER",
	Password:        "POSTMOTTAK_DB_PASSWORD",
	SSLMode:         "POSTMOTTAK_DB_SSL_MODE",
	MaxOpenConns:    "POSTMOTTAK_DB_MAX_OPEN_CONNS",
	MaxIdleConns:    "POSTMOTTAK_DB_MAX_IDLE_CONNS",
	ConnMaxLifetime: "POSTMOTTAK_DB_CONN_MAX_LIFETIME",
	ConnTimeout:     "POSTMOTTAK_DB_CONN_TIMEOUT",
}

var storageEnv = &storage.Env{
	Provider:         "POSTMOTTAK_STORAGE_PROVIDER",
	ContainerName:    "POSTMOTTAK_STORAGE_CONTAINER_NAME",
	ConnectionString: "POSTMOTTAK_STORAGE_CONNECTION_STRING",
}

var credentialEnv = &credential.Env{
	TenantID:     "POSTMOTTAK_AZURE_TENANT_ID",
	ClientID:     "POSTMOTTAK_AZURE_CLIENT_ID",
	ClientSecret: "POSTMOTTAK_AZURE_CLIENT_SECRET",
}

var mailEnv = &mail.Env{
	Transport:    "POSTMOTTAK_MAIL_TRANSPORT",
	Mailbox:      "POSTMOTTAK_MAIL_MAILBOX",
	GraphBaseURL: "POSTMOTTAK_MAIL_GRAPH_BASE_URL",
	IMAPHost:     "POSTMOTTAK_MAIL_IMAP_HOST",
	IMAPPort:     "POSTMOTTAK_MAIL_IMAP_PORT",
	IMAPUsername: "POSTMOTTAK_MAIL_IMAP_USERNAME",
	IMAPPassword: "POSTMOTTAK_MAIL_IMAP_PASSWORD",
	IMAPTLS:      "POSTMOTTAK_MAIL_IMAP_TLS",
	SMTPHost:     "POSTMOTTAK_MAIL_SMTP_HOST",
	SMTPPort:     "POSTMOTTAK_MAIL_SMTP_PORT",
	SMTPStartTLS: "POSTMOTTAK_MAIL_SMTP_START_TLS",
}

var archiveEnv = &archive.Env{
	BaseURL: "POSTMOTTAK_ARCHIVE_BASE_URL",
	Scope:   "POSTMOTTAK_ARCHIVE_SCOPE",
	Timeout: "POSTMOTTAK_ARCHIVE_TIMEOUT",
}

var statisticsEnv = &statistics.Env{
	BaseURL: "POSTMOTTAK_STATISTICS_BASE_URL",
	Key:     "POSTMOTTAK_STATISTICS_KEY",
	AppName: "POSTMOTTAK_STATISTICS_APP_NAME",
	Version: "POSTMOTTAK_STATISTICS_VERSION",
}

var telemetryEnv = &telemetry.Env{
	Enabled:  "POSTMOTTAK_TELEMETRY_ENABLED",
	Endpoint: "POSTMOTTAK_TELEMETRY_ENDPOINT",
	Insecure: "POSTMOTTAK_TELEMETRY_INSECURE",
}

var orchestratorEnv = &orchestrator.Env{
	InboxFolder:        "POSTMOTTAK_INBOX_FOLDER",
	FinishedFolder:     "POSTMOTTAK_FINISHED_FOLDER",
	ManualFolder:       "POSTMOTTAK_MANUAL_FOLDER",
	RobotLogFolder:     "POSTMOTTAK_ROBOT_LOG_FOLDER",
	PartialMatchFolder: "POSTMOTTAK_PARTIAL_MATCH_FOLDER",
	RetryIntervals:     "POSTMOTTAK_RETRY_INTERVALS",
	Interval:           "POSTMOTTAK_SCHEDULE_INTERVAL",
	Enabled:            "POSTMOTTAK_SCHEDULE_ENABLED",
	InProgressPrefix:   "POSTMOTTAK_IN_PROGRESS_PREFIX",
	FailedPrefix:       "POSTMOTTAK_FAILED_PREFIX",
}

var emailTypesEnv = &emailtypes.Env{
	Order:               "POSTMOTTAK_HANDLER_ORDER",
	IntakeAddress:       "POSTMOTTAK_INTAKE_ADDRESS",
	EpostInnCategory:    "POSTMOTTAK_DOCUMENT_CATEGORY_EPOST_INN",
	Rf1350Enabled:       "POSTMOTTAK_RF1350_ENABLED",
	Rf1350TestProject:   "POSTMOTTAK_RF1350_TEST_PROJECT_NUMBER",
	LoyvegarantiEnabled: "POSTMOTTAK_LOYVEGARANTI_ENABLED",
	LoyvegarantiRecno:   "POSTMOTTAK_LOYVEGARANTI_RESPONSIBLE_ENTERPRISE_RECNO",
	PengetransportenTo:  "POSTMOTTAK_PENGETRANSPORTEN_FORWARD_ADDRESSES",
	PengetransportenOn:  "POSTMOTTAK_PENGETRANSPORTEN_ENABLED",
	InnsynTo:            "POSTMOTTAK_INNSYN_FORWARD_ADDRESSES",
	InnsynOn:            "POSTMOTTAK_INNSYN_ENABLED",
	CaseNumberEnabled:   "POSTMOTTAK_CASE_NUMBER_ENABLED",
}

// Config is the root configuration for the postmottak service.
type Config struct {
	Server     ServerConfig         `toml:"server"`
	Log        LogConfig            `toml:"log"`
	Database   database.Config      `toml:"database"`
	Storage    storage.Config       `toml:"storage"`
	API        APIConfig            `toml:"api"`
	Agent      gaconfig.AgentConfig `toml:"agent"`
	Credential credential.Config    `toml:"credential"`
	Mail       mail.Config          `toml:"mail"`
	Archive    archive.Config       `toml:"archive"`
	Statistics statistics.Config    `toml:"statistics"`
	Telemetry  telemetry.Config     `toml:"telemetry"`
	Postmottak orchestrator.Config  `toml:"postmottak"`
	EmailTypes emailtypes.Config    `toml:"email_types"`

	ShutdownTimeout string `toml:"shutdown_timeout"`
	Version         string `toml:"version"`
}

// Env returns the POSTMOTTAK_ENV value, defaulting to "local".
func (c *Config) Env() string {
	if env := os.Getenv(EnvPostmottakEnv); env != "" {
		return env
	}
	return "local"
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	return d
}

// Load reads the base config (if present), applies any environment overlay,
// and finalizes all values. If no config.toml exists, defaults and environment
// variables provide all configuration.
func Load() (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat(BaseConfigFile); err == nil {
		loaded, err := load(BaseConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if path := overlayPath(); path != "" {
		overlay, err := load(path)
		if err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", path, err)
		}
		cfg.Merge(overlay)
	}

	if err := cfg.finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}

	return cfg, nil
}

// Merge overwrites non-zero fields from overlay across all sub-configs.
func (c *Config) Merge(overlay *Config) {
	if overlay.ShutdownTimeout != "" {
		c.ShutdownTimeout = overlay.ShutdownTimeout
	}
	if overlay.Version != "" {
		c.Version = overlay.Version
	}
	c.Server.Merge(&overlay.Server)
	c.Log.Merge(&overlay.Log)
	c.Database.Merge(&overlay.Database)
	c.Storage.Merge(&overlay.Storage)
	c.API.Merge(&overlay.API)
	c.Agent.Merge(&overlay.Agent)
	c.Credential.Merge(&overlay.Credential)
	c.Mail.Merge(&overlay.Mail)
	c.Archive.Merge(&overlay.Archive)
	c.Statistics.Merge(&overlay.Statistics)
	c.Telemetry.Merge(&overlay.Telemetry)
	c.Postmottak.Merge(&overlay.Postmottak)
	c.EmailTypes.Merge(&overlay.EmailTypes)
}

func (c *Config) finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}

	if c.Statistics.Version == "" {
		c.Statistics.Version = c.Version
	}

	steps := []struct {
		name string
		fn   func() error
	}{
		{"server", c.Server.Finalize},
		{"log", c.Log.Finalize},
		{"database", func() error { return c.Database.Finalize(databaseEnv) }},
		{"storage", func() error { return c.Storage.Finalize(storageEnv) }},
		{"api", c.API.Finalize},
		{"agent", func() error { return FinalizeAgent(&c.Agent) }},
		{"credential", func() error { return c.Credential.Finalize(credentialEnv) }},
		{"mail", func() error { return c.Mail.Finalize(mailEnv) }},
		{"archive", func() error { return c.Archive.Finalize(archiveEnv) }},
		{"statistics", func() error { return c.Statistics.Finalize(statisticsEnv) }},
		{"telemetry", func() error { return c.Telemetry.Finalize(telemetryEnv) }},
		{"postmottak", func() error { return c.Postmottak.Finalize(orchestratorEnv) }},
		{"email_types", func() error { return c.EmailTypes.Finalize(emailTypesEnv) }},
	}
	for _, s := range steps {
		if err := s.fn(); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}

func (c *Config) loadDefaults() {
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
	if c.Version == "" {
		c.Version = "0.1.0"
	}
}

func (c *Config) loadEnv() {
	if v := os.Getenv(EnvPostmottakShutdownTimeout); v != "" {
		c.ShutdownTimeout = v
	}
	if v := os.Getenv(EnvPostmottakVersion); v != "" {
		c.Version = v
	}
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
	}
	return nil
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

func overlayPath() string {
	if env := os.Getenv(EnvPostmottakEnv); env != "" {
		path := fmt.Sprintf(OverlayConfigPattern, env)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
