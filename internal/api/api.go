// Package api assembles the API module with all domain systems and route registration.
package api

import (
	"fmt"
	"net/http"

	"github.com/JaimeStill/postmottak/internal/config"
	"github.com/JaimeStill/postmottak/internal/infrastructure"
	"github.com/JaimeStill/postmottak/pkg/middleware"
	"github.com/JaimeStill/postmottak/pkg/module"
)

// NewModule creates the API module with all domain handlers and middleware.
// The returned Domain exposes the orchestrator so the server can schedule it.
func NewModule(cfg *config.Config, infra *infrastructure.Infrastructure) (*module.Module, *Domain, error) {
	runtime := NewRuntime(cfg, infra)
	domain := NewDomain(cfg, runtime)

	verifier, err := middleware.NewVerifier(infra.Lifecycle.Context(), &cfg.API.Auth)
	if err != nil {
		return nil, nil, fmt.Errorf("auth init failed: %w", err)
	}

	mux := http.NewServeMux()
	registerRoutes(mux, domain, cfg, runtime)

	m := module.New(cfg.API.BasePath, mux)
	m.Use(middleware.CORS(&cfg.API.CORS))
	m.Use(middleware.Logger(runtime.Logger))
	m.Use(middleware.Auth(&cfg.API.Auth, verifier, runtime.Logger))

	return m, domain, nil
}
