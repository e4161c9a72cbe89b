package main

import (
	"net/http"

	"github.com/JaimeStill/postmottak/internal/api"
	"github.com/JaimeStill/postmottak/internal/config"
	"github.com/JaimeStill/postmottak/internal/infrastructure"
	"github.com/JaimeStill/postmottak/pkg/handlers"
	"github.com/JaimeStill/postmottak/pkg/module"
)

// Modules holds the mounted HTTP modules and the domain systems behind them.
type Modules struct {
	API    *module.Module
	Domain *api.Domain
}

func NewModules(infra *infrastructure.Infrastructure, cfg *config.Config) (*Modules, error) {
	apiModule, domain, err := api.NewModule(cfg, infra)
	if err != nil {
		return nil, err
	}

	return &Modules{
		API:    apiModule,
		Domain: domain,
	}, nil
}

func (m *Modules) Mount(router *module.Router) {
	router.Mount(m.API)
}

func buildRouter(infra *infrastructure.Infrastructure) *module.Router {
	router := module.NewRouter()

	router.HandleNative("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		handlers.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": infra.Version()})
	})

	router.HandleNative("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if !infra.Lifecycle.Ready() {
			handlers.RespondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "starting"})
			return
		}
		if failed := infra.Lifecycle.Probe(r.Context()); len(failed) > 0 {
			body := map[string]string{"status": "degraded"}
			for name, err := range failed {
				body[name] = err.Error()
			}
			handlers.RespondJSON(w, http.StatusServiceUnavailable, body)
			return
		}
		handlers.RespondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	router.HandleNative("GET /metrics", infra.Metrics.Handler().ServeHTTP)

	return router
}
