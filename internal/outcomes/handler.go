package outcomes

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/JaimeStill/postmottak/pkg/handlers"
	"github.com/JaimeStill/postmottak/pkg/pagination"
	"github.com/JaimeStill/postmottak/pkg/routes"
)

// Handler serves the outcome ledger read-only.
type Handler struct {
	sys    System
	logger *slog.Logger
	pages  pagination.Config
}

// SearchRequest is the body of POST /outcomes/search.
type SearchRequest struct {
	pagination.PageRequest
	Filters
}

func NewHandler(sys System, logger *slog.Logger, pages pagination.Config) *Handler {
	return &Handler{
		sys:    sys,
		logger: logger.With("handler", "outcomes"),
		pages:  pages,
	}
}

func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/outcomes",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.List},
			{Method: "POST", Pattern: "/search", Handler: h.Search},
			{Method: "GET", Pattern: "/{id}", Handler: h.Find},
			{Method: "GET", Pattern: "/messages/{messageId}", Handler: h.FindByMessage},
		},
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	h.respondPage(w, r, pagination.PageRequestFromQuery(values, h.pages), FiltersFromQuery(values))
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}
	req.Normalize(h.pages)
	h.respondPage(w, r, req.PageRequest, req.Filters)
}

func (h *Handler) respondPage(w http.ResponseWriter, r *http.Request, page pagination.PageRequest, filters Filters) {
	result, err := h.sys.List(r.Context(), page, filters)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, result)
}

func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}
	h.respondOutcome(w)(h.sys.Find(r.Context(), id))
}

// FindByMessage looks up the outcome recorded for a mailbox message id.
func (h *Handler) FindByMessage(w http.ResponseWriter, r *http.Request) {
	h.respondOutcome(w)(h.sys.FindByMessage(r.Context(), r.PathValue("messageId")))
}

func (h *Handler) respondOutcome(w http.ResponseWriter) func(*Outcome, error) {
	return func(o *Outcome, err error) {
		if err != nil {
			handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
			return
		}
		handlers.RespondJSON(w, http.StatusOK, o)
	}
}
