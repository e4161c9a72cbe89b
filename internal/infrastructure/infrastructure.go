// Package infrastructure provides core service initialization for application startup.
// It assembles the shared collaborators (logging, database, blob storage, mail,
// archive, agent, metrics, tracing) that domain systems require.
package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"

	"github.com/JaimeStill/postmottak/internal/assistant"
	"github.com/JaimeStill/postmottak/internal/config"
	"github.com/JaimeStill/postmottak/pkg/archive"
	"github.com/JaimeStill/postmottak/pkg/credential"
	"github.com/JaimeStill/postmottak/pkg/database"
	"github.com/JaimeStill/postmottak/pkg/lifecycle"
	"github.com/JaimeStill/postmottak/pkg/mail"
	"github.com/JaimeStill/postmottak/pkg/mail/graph"
	"github.com/JaimeStill/postmottak/pkg/mail/imap"
	"github.com/JaimeStill/postmottak/pkg/metrics"
	"github.com/JaimeStill/postmottak/pkg/storage"
	"github.com/JaimeStill/postmottak/pkg/telemetry"
)

// Infrastructure holds the core systems required by all domain modules.
type Infrastructure struct {
	Lifecycle *lifecycle.Coordinator
	Logger    *slog.Logger
	Database  database.System
	Storage   storage.System
	Mail      mail.Transport
	Archive   archive.Service
	Assistant *assistant.Assistant
	Metrics   *metrics.Recorder

	telemetry   telemetry.Config
	version     string
	environment string
}

// New creates an Infrastructure from the application configuration.
// It initializes all systems but does not start them; call Start separately.
func New(cfg *config.Config) (*Infrastructure, error) {
	lc := lifecycle.New()
	logger := cfg.Log.NewLogger(os.Stderr)

	db, err := database.New(&cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("database init failed: %w", err)
	}

	store, err := storage.Open(&cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("storage init failed: %w", err)
	}

	var cred azcore.TokenCredential
	if cfg.Mail.Transport == mail.TransportGraph || len(cfg.Archive.Scopes()) > 0 {
		cred, err = credential.New(cfg.Credential)
		if err != nil {
			return nil, fmt.Errorf("credential init failed: %w", err)
		}
	}

	transport, err := newTransport(cfg.Mail, cred, logger)
	if err != nil {
		return nil, err
	}

	return &Infrastructure{
		Lifecycle:   lc,
		Logger:      logger,
		Database:    db,
		Storage:     store,
		Mail:        transport,
		Archive:     archive.New(cfg.Archive, cred, logger),
		Assistant:   assistant.New(cfg.Agent, logger),
		Metrics:     metrics.New(),
		telemetry:   cfg.Telemetry,
		version:     cfg.Version,
		environment: cfg.Env(),
	}, nil
}

func newTransport(cfg mail.Config, cred azcore.TokenCredential, logger *slog.Logger) (mail.Transport, error) {
	switch cfg.Transport {
	case mail.TransportGraph:
		return graph.New(cfg, cred, nil, logger), nil
	case mail.TransportIMAP:
		return imap.New(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown mail transport %q", cfg.Transport)
	}
}

// Version is the build version reported by health and telemetry.
func (i *Infrastructure) Version() string { return i.version }

// Start registers all infrastructure systems with the lifecycle coordinator.
// Database and storage are also registered as readiness checks. The trace exporter is
// flushed on shutdown.
func (i *Infrastructure) Start() error {
	if err := i.Database.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("database start failed: %w", err)
	}
	if err := i.Storage.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("storage start failed: %w", err)
	}
	i.Lifecycle.AddCheck("database", i.Database.Ping)
	i.Lifecycle.AddCheck("storage", i.Storage.Ping)

	shutdown, err := telemetry.Init(i.Lifecycle.Context(), i.telemetry, i.version, i.environment)
	if err != nil {
		return fmt.Errorf("telemetry start failed: %w", err)
	}
	i.Lifecycle.OnShutdown(func() {
		<-i.Lifecycle.Context().Done()
		if err := shutdown(context.Background()); err != nil {
			i.Logger.Error("trace exporter shutdown failed", "error", err)
		}
	})

	return nil
}
