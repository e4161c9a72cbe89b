package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/JaimeStill/postmottak/internal/assistant"
	"github.com/JaimeStill/postmottak/internal/orchestrator"
	"github.com/JaimeStill/postmottak/internal/results"
	"github.com/JaimeStill/postmottak/pkg/handlers"
	"github.com/JaimeStill/postmottak/pkg/mail"
	"github.com/JaimeStill/postmottak/pkg/routes"
)

var errEmptyPrompt = errors.New("prompt is required")

// AskRequest selects a result shape by agent name and supplies the prompt.
type AskRequest struct {
	Agent  string `json:"agent"`
	Prompt string `json:"prompt"`
}

// AskResponse carries the conversation and the parsed result, which is null
// when the reply did not match the requested shape.
type AskResponse struct {
	History assistant.History `json:"history"`
	Result  results.Result    `json:"result"`
}

type triggerHandler struct {
	runner      orchestrator.Runner
	transport   mail.Transport
	assistant   assistant.Requester
	logger      *slog.Logger
	maxBodySize int64
	shutdown    context.Context
}

func newTriggerHandler(
	runner orchestrator.Runner,
	transport mail.Transport,
	requester assistant.Requester,
	logger *slog.Logger,
	maxBodySize int64,
	shutdown context.Context,
) *triggerHandler {
	return &triggerHandler{
		runner:      runner,
		transport:   transport,
		assistant:   requester,
		logger:      logger.With("handler", "triggers"),
		maxBodySize: maxBodySize,
		shutdown:    shutdown,
	}
}

func (h *triggerHandler) routes() routes.Group {
	return routes.Group{
		Prefix: "",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "/ArchiveEmails", Handler: h.archiveEmails},
			{Method: "GET", Pattern: "/ListFolders", Handler: h.listFolders},
			{Method: "POST", Pattern: "/AskArntIvan", Handler: h.askArntIvan},
		},
	}
}

// archiveEmails runs a cycle that outlives the request. A client that hangs up
// must not interrupt a handler between archive calls; only shutdown stops it.
func (h *triggerHandler) archiveEmails(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()
	stop := context.AfterFunc(h.shutdown, cancel)
	defer stop()

	summary, err := h.runner.Run(ctx)
	if errors.Is(err, orchestrator.ErrCycleRunning) {
		handlers.RespondError(w, h.logger, http.StatusConflict, err)
		return
	}
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, summary)
}

func (h *triggerHandler) listFolders(w http.ResponseWriter, r *http.Request) {
	folders, err := h.transport.ListFolders(r.Context())
	if err != nil {
		handlers.RespondError(w, h.logger, mail.MapHTTPStatus(err), err)
		return
	}

	for i := range folders {
		if folders[i].ChildFolderCount == 0 {
			continue
		}
		children, err := h.transport.ChildFolders(r.Context(), folders[i].ID)
		if err != nil {
			handlers.RespondError(w, h.logger, mail.MapHTTPStatus(err), err)
			return
		}
		folders[i].Children = children
	}

	handlers.RespondJSON(w, http.StatusOK, folders)
}

func (h *triggerHandler) askArntIvan(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	kind, err := results.ParseKind(req.Agent)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errEmptyPrompt)
		return
	}

	history, shape, err := assistant.AskKind(r.Context(), h.assistant, kind, req.Prompt)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadGateway, err)
		return
	}

	resp := AskResponse{History: history}
	if shape != nil {
		resp.Result = results.New(shape)
	}
	handlers.RespondJSON(w, http.StatusOK, resp)
}
