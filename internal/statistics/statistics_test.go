package statistics_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/JaimeStill/postmottak/internal/statistics"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestReport(t *testing.T) {
	var (
		gotPath string
		gotKey  string
		got     map[string]string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-functions-key")
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	cfg := statistics.Config{BaseURL: srv.URL + "/api/", Key: "secret", Version: "1.4.0"}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	statistics.New(cfg, discard()).Report(context.Background(), statistics.Event{
		Description: "RF13.50 arkivert",
		MessageID:   "msg-1",
		Type:        "RF13.50",
		Sender:      "ikkesvar@regionalforvaltning.no",
	})

	if gotPath != "/api/stats" || gotKey != "secret" {
		t.Errorf("request: path %s, key %s", gotPath, gotKey)
	}

	want := map[string]string{
		"system":      "postmottak-arkivering",
		"engine":      "postmottak 1.4.0",
		"company":     "ORG",
		"projectId":   "11",
		"description": "RF13.50 arkivert",
		"type":        "RF13.50",
		"sender":      "ikkesvar@regionalforvaltning.no",
		"externalId":  "msg-1",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s: got %q, want %q", k, got[k], v)
		}
	}
}

func TestReportFailureIsSwallowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := statistics.Config{BaseURL: srv.URL, Key: "secret"}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	statistics.New(cfg, discard()).Report(context.Background(), statistics.Event{MessageID: "msg-1"})
}

func TestDisabled(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	var cfg statistics.Config
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	statistics.New(cfg, discard()).Report(context.Background(), statistics.Event{MessageID: "msg-1"})

	var nilClient *statistics.Client
	nilClient.Report(context.Background(), statistics.Event{})

	if called {
		t.Error("disabled client must not send")
	}
}

func TestConfigRequiresKey(t *testing.T) {
	cfg := statistics.Config{BaseURL: "https://stats.example.no"}
	if err := cfg.Finalize(nil); err == nil {
		t.Error("expected error")
	}
}
