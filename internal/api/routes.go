package api

import (
	"net/http"

	"github.com/JaimeStill/postmottak/internal/config"
	"github.com/JaimeStill/postmottak/pkg/routes"
)

func registerRoutes(
	mux *http.ServeMux,
	domain *Domain,
	cfg *config.Config,
	runtime *Runtime,
) {
	triggers := newTriggerHandler(
		domain.Orchestrator,
		runtime.Mail,
		runtime.Assistant,
		runtime.Logger,
		cfg.API.MaxBodySizeBytes(),
		runtime.Lifecycle.Context(),
	)
	flows := newFlowsHandler(domain.Flows, runtime.Logger)

	groups := []routes.Group{
		triggers.routes(),
		flows.routes(),
		domain.Outcomes.Handler().Routes(),
	}
	routes.Register(mux, groups...)

	for _, g := range groups {
		runtime.Logger.Debug("routes registered", "patterns", g.Patterns())
	}
}
