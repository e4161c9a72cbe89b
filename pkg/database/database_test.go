package database_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/JaimeStill/postmottak/pkg/database"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestNewConfiguresPool(t *testing.T) {
	cfg := database.Config{Name: "postmottak", User: "postmottak", MaxOpenConns: 7}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	sys, err := database.New(&cfg, discard())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	conn := sys.Connection()
	defer conn.Close()

	if got := conn.Stats().MaxOpenConnections; got != 7 {
		t.Errorf("MaxOpenConnections = %d, want 7", got)
	}
}

func TestPingBeforeStart(t *testing.T) {
	cfg := database.Config{URL: "postgres://u@localhost:1/none?sslmode=disable"}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	sys, err := database.New(&cfg, discard())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer sys.Connection().Close()

	if err := sys.Ping(context.Background()); !errors.Is(err, database.ErrNotReady) {
		t.Errorf("Ping() = %v, want ErrNotReady", err)
	}
}
