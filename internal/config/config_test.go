package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JaimeStill/postmottak/internal/config"
)

const baseConfig = `
shutdown_timeout = "30s"
version = "0.1.0"

[server]
host = "0.0.0.0"
port = 8080
read_timeout = "1m"
write_timeout = "15m"
shutdown_timeout = "30s"

[log]
level = "debug"
format = "json"

[database]
host = "localhost"
port = 5432
name = "postmottak"
user = "postmottak"
password = "postmottak"
ssl_mode = "disable"
max_open_conns = 25
max_idle_conns = 5
conn_max_lifetime = "15m"
conn_timeout = "5s"

[storage]
provider = "memory"
container_name = "flowstatus"

[api]
base_path = "/api"

[api.cors]
enabled = false

[api.pagination]
default_page_size = 25
max_page_size = 50

[agent]
name = "test-agent"

[agent.provider]
name = "ollama"

[agent.model]
name = "llama3.1:8b"

[mail]
transport = "imap"
mailbox = "postmottak@example.no"

[mail.imap]
host = "imap.example.no"
port = 993
tls = true

[archive]
base_url = "https://archive.example.no/api"

[postmottak]
finished_folder = "finished"
manual_folder = "manual"
robot_log_folder = "robot-log"
retry_intervals = [1, 2, 3]

[email_types]
intake_address = "postmottak@example.no"
document_category_epost_inn = "recno:110"

[email_types.loyvegaranti]
responsible_enterprise_recno = "200"

[email_types.pengetransporten]
forward_addresses = ["regnskap@example.no"]
`

const overlayConfig = `
[server]
port = 9090

[database]
host = "prodhost"

[postmottak]
retry_intervals = [10, 20]
`

func writeConfig(t *testing.T, dir, filename, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, filename), []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", filename, err)
	}
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	orig, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { os.Chdir(orig) })
}

func loadBase(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	writeConfig(t, dir, config.BaseConfigFile, baseConfig)
	chdir(t, dir)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	return cfg
}

func TestLoad(t *testing.T) {
	cfg := loadBase(t)

	if cfg.Server.Port != 8080 {
		t.Errorf("server port: got %d, want 8080", cfg.Server.Port)
	}
	if cfg.Database.Host != "localhost" {
		t.Errorf("db host: got %s, want localhost", cfg.Database.Host)
	}
	if cfg.Storage.Provider != "memory" {
		t.Errorf("storage provider: got %s, want memory", cfg.Storage.Provider)
	}
	if cfg.API.Pagination.DefaultPageSize != 25 {
		t.Errorf("pagination default_page_size: got %d, want 25", cfg.API.Pagination.DefaultPageSize)
	}
	if cfg.Mail.Transport != "imap" || cfg.Mail.IMAP.Host != "imap.example.no" {
		t.Errorf("mail: got %+v", cfg.Mail)
	}
	if got := cfg.Postmottak.RetryIntervals; len(got) != 3 || got[2] != 3 {
		t.Errorf("retry intervals: got %v, want [1 2 3]", got)
	}
	if cfg.Postmottak.InboxFolder != "inbox" {
		t.Errorf("inbox folder default: got %s, want inbox", cfg.Postmottak.InboxFolder)
	}
	if cfg.EmailTypes.IntakeAddress != "postmottak@example.no" {
		t.Errorf("intake address: got %s", cfg.EmailTypes.IntakeAddress)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("log: got %+v", cfg.Log)
	}
}

func TestLoadWithOverlay(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, config.BaseConfigFile, baseConfig)
	writeConfig(t, dir, "config.staging.toml", overlayConfig)
	chdir(t, dir)

	t.Setenv(config.EnvPostmottakEnv, "staging")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("server port: got %d, want 9090 (from overlay)", cfg.Server.Port)
	}
	if cfg.Database.Host != "prodhost" {
		t.Errorf("db host: got %s, want prodhost (from overlay)", cfg.Database.Host)
	}
	if cfg.Database.Port != 5432 {
		t.Errorf("db port: got %d, want 5432 (from base)", cfg.Database.Port)
	}
	if got := cfg.Postmottak.RetryIntervals; len(got) != 2 || got[0] != 10 {
		t.Errorf("retry intervals: got %v, want [10 20] (from overlay)", got)
	}
	if cfg.Postmottak.ManualFolder != "manual" {
		t.Errorf("manual folder: got %s, want manual (from base)", cfg.Postmottak.ManualFolder)
	}
}

func TestLoadEnvVarOverrides(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, config.BaseConfigFile, baseConfig)
	chdir(t, dir)

	t.Setenv("POSTMOTTAK_VERSION", "2.0.0")
	t.Setenv("POSTMOTTAK_SERVER_PORT", "3000")
	t.Setenv("POSTMOTTAK_RETRY_INTERVALS", "5, 30")
	t.Setenv("POSTMOTTAK_MAIL_MAILBOX", "arkiv@example.no")
	t.Setenv("POSTMOTTAK_LOG_LEVEL", "WARN")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Version != "2.0.0" {
		t.Errorf("version: got %s, want 2.0.0", cfg.Version)
	}
	if cfg.Statistics.Version != "2.0.0" {
		t.Errorf("statistics version: got %s, want 2.0.0", cfg.Statistics.Version)
	}
	if cfg.Server.Port != 3000 {
		t.Errorf("server port: got %d, want 3000", cfg.Server.Port)
	}
	if got := cfg.Postmottak.RetryIntervals; len(got) != 2 || got[1] != 30 {
		t.Errorf("retry intervals: got %v, want [5 30]", got)
	}
	if cfg.Mail.Mailbox != "arkiv@example.no" {
		t.Errorf("mailbox: got %s", cfg.Mail.Mailbox)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("log level: got %s, want warn", cfg.Log.Level)
	}
}

func TestLoadNoConfigFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	envs := map[string]string{
		"POSTMOTTAK_DB_NAME":                "testdb",
		"POSTMOTTAK_DB_USER":                "testuser",
		"POSTMOTTAK_STORAGE_PROVIDER":       "memory",
		"POSTMOTTAK_MAIL_MAILBOX":           "postmottak@example.no",
		"POSTMOTTAK_ARCHIVE_BASE_URL":       "https://archive.example.no/api",
		"POSTMOTTAK_FINISHED_FOLDER":        "finished",
		"POSTMOTTAK_MANUAL_FOLDER":          "manual",
		"POSTMOTTAK_ROBOT_LOG_FOLDER":       "robot-log",
		"POSTMOTTAK_INTAKE_ADDRESS":         "postmottak@example.no",
		"POSTMOTTAK_STORAGE_CONTAINER_NAME": "flowstatus",

		"POSTMOTTAK_DOCUMENT_CATEGORY_EPOST_INN":               "recno:110",
		"POSTMOTTAK_LOYVEGARANTI_RESPONSIBLE_ENTERPRISE_RECNO": "200",
		"POSTMOTTAK_PENGETRANSPORTEN_FORWARD_ADDRESSES":        "regnskap@example.no, faktura@example.no",
	}
	for k, v := range envs {
		t.Setenv(k, v)
	}

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load without %s failed: %v", config.BaseConfigFile, err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("server port default: got %d, want 8080", cfg.Server.Port)
	}
	if cfg.Database.Name != "testdb" {
		t.Errorf("db name from env: got %s, want testdb", cfg.Database.Name)
	}
	if cfg.Mail.Transport != "graph" {
		t.Errorf("mail transport default: got %s, want graph", cfg.Mail.Transport)
	}
	if got := cfg.Postmottak.RetryIntervals; len(got) != 4 {
		t.Errorf("retry intervals default: got %v", got)
	}
	if !cfg.Postmottak.SchedulerEnabled() {
		t.Error("scheduler should be enabled by default")
	}
	if cfg.EmailTypes.EpostInnCategory != "recno:110" {
		t.Errorf("epost inn category from env: got %s", cfg.EmailTypes.EpostInnCategory)
	}
	if got := cfg.EmailTypes.Pengetransporten.ForwardAddresses; len(got) != 2 || got[1] != "faktura@example.no" {
		t.Errorf("forward addresses from env: got %v", got)
	}
}

func TestLoadInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, config.BaseConfigFile, `[server`)
	chdir(t, dir)

	_, err := config.Load()
	if err == nil {
		t.Fatal("expected error for invalid TOML")
	}
}

func TestEnv(t *testing.T) {
	cfg := loadBase(t)
	if cfg.Env() != "local" {
		t.Errorf("env: got %s, want local", cfg.Env())
	}

	t.Setenv(config.EnvPostmottakEnv, "production")
	if cfg.Env() != "production" {
		t.Errorf("env: got %s, want production", cfg.Env())
	}
}

func TestShutdownTimeoutDuration(t *testing.T) {
	cfg := loadBase(t)

	if d := cfg.ShutdownTimeoutDuration(); d != 30*time.Second {
		t.Errorf("shutdown timeout: got %v, want 30s", d)
	}
}

func TestServerAddr(t *testing.T) {
	cfg := loadBase(t)

	if addr := cfg.Server.Addr(); addr != "0.0.0.0:8080" {
		t.Errorf("addr: got %s, want 0.0.0.0:8080", addr)
	}
}

func TestMaxBodySizeBytes(t *testing.T) {
	tests := []struct {
		name string
		size string
		want int64
	}{
		{"valid 2MB", "2MB", 2 * 1024 * 1024},
		{"valid 512KB", "512KB", 512 * 1024},
		{"invalid falls back to 1MB", "bad", 1024 * 1024},
		{"empty falls back to 1MB", "", 1024 * 1024},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.APIConfig{MaxBodySize: tt.size}
			if got := cfg.MaxBodySizeBytes(); got != tt.want {
				t.Errorf("MaxBodySizeBytes() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		patch   func(string) string
		wantErr string
	}{
		{
			name:    "invalid port",
			patch:   func(s string) string { return strings.Replace(s, "port = 8080", "port = 99999", 1) },
			wantErr: "invalid port",
		},
		{
			name:    "invalid log format",
			patch:   func(s string) string { return strings.Replace(s, `format = "json"`, `format = "xml"`, 1) },
			wantErr: "log",
		},
		{
			name:    "unknown transport",
			patch:   func(s string) string { return strings.Replace(s, `transport = "imap"`, `transport = "pop3"`, 1) },
			wantErr: "mail",
		},
		{
			name:    "missing manual folder",
			patch:   func(s string) string { return strings.Replace(s, `manual_folder = "manual"`, "", 1) },
			wantErr: "postmottak",
		},
		{
			name:    "missing epost inn category",
			patch:   func(s string) string { return strings.Replace(s, `document_category_epost_inn = "recno:110"`, "", 1) },
			wantErr: "document_category_epost_inn",
		},
		{
			name:    "missing intake address",
			patch:   func(s string) string { return strings.Replace(s, `intake_address = "postmottak@example.no"`, "", 1) },
			wantErr: "intake_address",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeConfig(t, dir, config.BaseConfigFile, tt.patch(baseConfig))
			chdir(t, dir)

			_, err := config.Load()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestAgentConfig(t *testing.T) {
	cfg := loadBase(t)

	if cfg.Agent.Name != "test-agent" {
		t.Errorf("agent name: got %s, want test-agent", cfg.Agent.Name)
	}
	if cfg.Agent.Provider == nil || cfg.Agent.Provider.Name != "ollama" {
		t.Fatalf("agent provider: got %+v", cfg.Agent.Provider)
	}
	if cfg.Agent.Model == nil || cfg.Agent.Model.Name != "llama3.1:8b" {
		t.Fatalf("agent model: got %+v", cfg.Agent.Model)
	}
}

func TestAgentEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, config.BaseConfigFile, baseConfig)
	chdir(t, dir)

	t.Setenv("POSTMOTTAK_AGENT_PROVIDER_NAME", "azure")
	t.Setenv("POSTMOTTAK_AGENT_BASE_URL", "https://myendpoint.openai.azure.com")
	t.Setenv("POSTMOTTAK_AGENT_MODEL_NAME", "gpt-5-mini")
	t.Setenv("POSTMOTTAK_AGENT_TOKEN", "test-token")
	t.Setenv("POSTMOTTAK_AGENT_DEPLOYMENT", "gpt-5-mini")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Agent.Provider.Name != "azure" {
		t.Errorf("provider name: got %s, want azure", cfg.Agent.Provider.Name)
	}
	if cfg.Agent.Provider.BaseURL != "https://myendpoint.openai.azure.com" {
		t.Errorf("provider base_url: got %s", cfg.Agent.Provider.BaseURL)
	}
	if cfg.Agent.Model.Name != "gpt-5-mini" {
		t.Errorf("model name: got %s, want gpt-5-mini", cfg.Agent.Model.Name)
	}

	opts := cfg.Agent.Provider.Options
	if opts["token"] != "test-token" {
		t.Errorf("token: got %v, want test-token", opts["token"])
	}
	if opts["deployment"] != "gpt-5-mini" {
		t.Errorf("deployment: got %v, want gpt-5-mini", opts["deployment"])
	}
}
