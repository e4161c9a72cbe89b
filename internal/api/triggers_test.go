package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/JaimeStill/postmottak/internal/assistant"
	"github.com/JaimeStill/postmottak/internal/orchestrator"
	"github.com/JaimeStill/postmottak/internal/results"
	"github.com/JaimeStill/postmottak/pkg/mail"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type mockRunner struct {
	summary *orchestrator.Summary
	err     error
	runFn   func(context.Context) (*orchestrator.Summary, error)
}

func (m *mockRunner) Run(ctx context.Context) (*orchestrator.Summary, error) {
	if m.runFn != nil {
		return m.runFn(ctx)
	}
	return m.summary, m.err
}

type mockFolders struct {
	mail.Transport
	folders  []mail.Folder
	children map[string][]mail.Folder
	err      error
}

func (m *mockFolders) ListFolders(context.Context) ([]mail.Folder, error) {
	return m.folders, m.err
}

func (m *mockFolders) ChildFolders(_ context.Context, id string) ([]mail.Folder, error) {
	return m.children[id], nil
}

type mockRequester struct {
	reply string
	err   error
	kind  results.Kind
}

func (m *mockRequester) Chat(_ context.Context, kind results.Kind, prompt string) (assistant.History, error) {
	m.kind = kind
	if m.err != nil {
		return nil, m.err
	}
	return assistant.History{
		{Role: "user", Content: prompt},
		{Role: "assistant", Content: m.reply},
	}, nil
}

func serve(h http.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestArchiveEmails(t *testing.T) {
	runID := uuid.New()

	tests := []struct {
		name   string
		runner *mockRunner
		status int
	}{
		{
			"summary",
			&mockRunner{summary: &orchestrator.Summary{
				RunID:           runID,
				HandledMessages: []orchestrator.HandledMessage{{MessageID: "m1", Type: "Rf1350", Status: "succeeded"}},
			}},
			http.StatusOK,
		},
		{"cycle running", &mockRunner{err: orchestrator.ErrCycleRunning}, http.StatusConflict},
		{"failure", &mockRunner{err: errors.New("inbox unavailable")}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTriggerHandler(tt.runner, nil, nil, discard, 1024, context.Background())
			rec := serve(h.archiveEmails, http.MethodGet, "/ArchiveEmails", "")

			if rec.Code != tt.status {
				t.Fatalf("status: got %d, want %d", rec.Code, tt.status)
			}
			if tt.status != http.StatusOK {
				return
			}

			var got orchestrator.Summary
			if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got.RunID != runID {
				t.Errorf("run id: got %s, want %s", got.RunID, runID)
			}
			if len(got.HandledMessages) != 1 || got.HandledMessages[0].MessageID != "m1" {
				t.Errorf("handled: got %+v", got.HandledMessages)
			}
		})
	}
}

func TestArchiveEmailsOutlivesRequest(t *testing.T) {
	runner := &mockRunner{runFn: func(ctx context.Context) (*orchestrator.Summary, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return &orchestrator.Summary{RunID: uuid.New()}, nil
	}}
	h := newTriggerHandler(runner, nil, nil, discard, 1024, context.Background())

	reqCtx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequestWithContext(reqCtx, http.MethodGet, "/ArchiveEmails", nil)
	rec := httptest.NewRecorder()
	h.archiveEmails(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("a cancelled request must not cancel the cycle: status %d", rec.Code)
	}
}

func TestArchiveEmailsStopsOnShutdown(t *testing.T) {
	shutdown, stop := context.WithCancel(context.Background())
	stop()

	var cycleErr error
	runner := &mockRunner{runFn: func(ctx context.Context) (*orchestrator.Summary, error) {
		<-ctx.Done()
		cycleErr = ctx.Err()
		return nil, cycleErr
	}}
	h := newTriggerHandler(runner, nil, nil, discard, 1024, shutdown)

	rec := serve(h.archiveEmails, http.MethodGet, "/ArchiveEmails", "")

	if !errors.Is(cycleErr, context.Canceled) {
		t.Errorf("cycle context: got %v, want canceled", cycleErr)
	}
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status: got %d", rec.Code)
	}
}

func TestListFolders(t *testing.T) {
	transport := &mockFolders{
		folders: []mail.Folder{
			{ID: "inbox", DisplayName: "Innboks", ChildFolderCount: 2},
			{ID: "sent", DisplayName: "Sendte elementer"},
		},
		children: map[string][]mail.Folder{
			"inbox": {
				{ID: "finished", DisplayName: "Ferdig"},
				{ID: "manual", DisplayName: "Manuell"},
			},
		},
	}

	h := newTriggerHandler(nil, transport, nil, discard, 1024, context.Background())
	rec := serve(h.listFolders, http.MethodGet, "/ListFolders", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}

	var got []mail.Folder
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("folders: got %d, want 2", len(got))
	}
	if len(got[0].Children) != 2 || got[0].Children[1].ID != "manual" {
		t.Errorf("inbox children: got %+v", got[0].Children)
	}
	if got[1].Children != nil {
		t.Errorf("sent children: got %+v, want none", got[1].Children)
	}
}

func TestListFoldersError(t *testing.T) {
	transport := &mockFolders{err: mail.ErrNotFound}

	h := newTriggerHandler(nil, transport, nil, discard, 1024, context.Background())
	rec := serve(h.listFolders, http.MethodGet, "/ListFolders", "")

	if rec.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", rec.Code)
	}
}

func TestAskArntIvan(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		requester *mockRequester
		status    int
		wantKind  results.Kind
		hasResult bool
	}{
		{
			name:      "parsed result",
			body:      `{"agent":"funfact","prompt":"Fortell noe om arkiv"}`,
			requester: &mockRequester{reply: `{"Message":"Det eldste arkivet er over 4000 år gammelt."}`},
			status:    http.StatusOK,
			wantKind:  results.KindFunFact,
			hasResult: true,
		},
		{
			name:      "unparsed reply",
			body:      `{"agent":"General","prompt":"Hva er saksnummeret?"}`,
			requester: &mockRequester{reply: "Jeg vet ikke."},
			status:    http.StatusOK,
			wantKind:  results.KindGeneral,
		},
		{
			name:      "unknown agent",
			body:      `{"agent":"Orakel","prompt":"hei"}`,
			requester: &mockRequester{},
			status:    http.StatusBadRequest,
		},
		{
			name:      "empty prompt",
			body:      `{"agent":"General","prompt":"  "}`,
			requester: &mockRequester{},
			status:    http.StatusBadRequest,
		},
		{
			name:      "malformed body",
			body:      `{"agent":`,
			requester: &mockRequester{},
			status:    http.StatusBadRequest,
		},
		{
			name:      "body too large",
			body:      `{"agent":"General","prompt":"` + strings.Repeat("a", 2048) + `"}`,
			requester: &mockRequester{},
			status:    http.StatusBadRequest,
		},
		{
			name:      "agent failure",
			body:      `{"agent":"General","prompt":"hei"}`,
			requester: &mockRequester{err: errors.New("model unavailable")},
			status:    http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTriggerHandler(nil, nil, tt.requester, discard, 1024, context.Background())
			rec := serve(h.askArntIvan, http.MethodPost, "/AskArntIvan", tt.body)

			if rec.Code != tt.status {
				t.Fatalf("status: got %d, want %d (%s)", rec.Code, tt.status, rec.Body.String())
			}
			if tt.status != http.StatusOK {
				return
			}
			if tt.requester.kind != tt.wantKind {
				t.Errorf("kind: got %s, want %s", tt.requester.kind, tt.wantKind)
			}

			var got AskResponse
			if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if len(got.History) != 2 {
				t.Errorf("history: got %d turns, want 2", len(got.History))
			}
			if got.Result.IsZero() == tt.hasResult {
				t.Errorf("result present: got %v, want %v", !got.Result.IsZero(), tt.hasResult)
			}
		})
	}
}
