package api

import (
	"log/slog"
	"net/http"

	"github.com/JaimeStill/postmottak/internal/flowstatus"
	"github.com/JaimeStill/postmottak/pkg/handlers"
	"github.com/JaimeStill/postmottak/pkg/routes"
)

type flowsHandler struct {
	flows  *flowstatus.Store
	logger *slog.Logger
}

func newFlowsHandler(flows *flowstatus.Store, logger *slog.Logger) *flowsHandler {
	return &flowsHandler{
		flows:  flows,
		logger: logger.With("handler", "flows"),
	}
}

func (h *flowsHandler) routes() routes.Group {
	return routes.Group{
		Prefix: "/flows",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.list},
			{Method: "GET", Pattern: "/{key...}", Handler: h.find},
		},
	}
}

func (h *flowsHandler) list(w http.ResponseWriter, r *http.Request) {
	namespace, err := h.flows.Namespace(r.URL.Query().Get("namespace"))
	if err != nil {
		handlers.RespondError(w, h.logger, flowstatus.MapHTTPStatus(err), err)
		return
	}

	blobs, err := h.flows.List(r.Context(), namespace)
	if err != nil {
		handlers.RespondError(w, h.logger, flowstatus.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, blobs)
}

func (h *flowsHandler) find(w http.ResponseWriter, r *http.Request) {
	flow, err := h.flows.Get(r.Context(), r.PathValue("key"))
	if err != nil {
		handlers.RespondError(w, h.logger, flowstatus.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, flow)
}
