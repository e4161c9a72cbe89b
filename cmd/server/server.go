package main

import (
	"time"

	"github.com/JaimeStill/postmottak/internal/config"
	"github.com/JaimeStill/postmottak/internal/infrastructure"
	"github.com/JaimeStill/postmottak/internal/orchestrator"
	"github.com/JaimeStill/postmottak/pkg/formatting"
)

type Server struct {
	infra     *infrastructure.Infrastructure
	modules   *Modules
	http      *httpServer
	scheduler *orchestrator.Scheduler
}

func NewServer(cfg *config.Config) (*Server, error) {
	infra, err := infrastructure.New(cfg)
	if err != nil {
		return nil, err
	}

	modules, err := NewModules(infra, cfg)
	if err != nil {
		return nil, err
	}

	router := buildRouter(infra)
	modules.Mount(router)

	var scheduler *orchestrator.Scheduler
	if cfg.Postmottak.SchedulerEnabled() {
		scheduler = orchestrator.NewScheduler(
			modules.Domain.Orchestrator,
			cfg.Postmottak.IntervalDuration(),
			infra.Logger,
		)
	}

	infra.Logger.Info(
		"server initialized",
		"addr", cfg.Server.Addr(),
		"version", cfg.Version,
		"env", cfg.Env(),
		"transport", cfg.Mail.Transport,
		"scheduler", scheduler != nil,
		"max_body", formatting.FormatBytes(cfg.API.MaxBodySizeBytes(), 1),
	)

	return &Server{
		infra:     infra,
		modules:   modules,
		http:      newHTTPServer(&cfg.Server, router, infra.Logger),
		scheduler: scheduler,
	}, nil
}

func (s *Server) Start() error {
	s.infra.Logger.Info("starting service")

	if err := s.infra.Start(); err != nil {
		return err
	}

	if err := s.http.Start(s.infra.Lifecycle); err != nil {
		return err
	}

	if s.scheduler != nil {
		if err := s.scheduler.Start(s.infra.Lifecycle); err != nil {
			return err
		}
	}

	go func() {
		s.infra.Lifecycle.WaitForStartup()
		s.infra.Logger.Info("all subsystems ready")
	}()

	return nil
}

func (s *Server) Shutdown(timeout time.Duration) error {
	s.infra.Logger.Info("initiating shutdown")
	return s.infra.Lifecycle.Shutdown(timeout)
}
