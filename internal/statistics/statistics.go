// Package statistics reports handled messages to the organization's shared
// statistics endpoint. Failures are logged and never returned to the caller.
package statistics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

const (
	system    = "postmottak-arkivering"
	projectID = "11"
	keyHeader = "x-functions-key"
)

// Event describes one handled message.
type Event struct {
	Description string
	MessageID   string
	Type        string
	Sender      string
}

// Reporter is implemented by Client. The orchestrator depends on this
// interface so tests can record events.
type Reporter interface {
	Report(ctx context.Context, e Event)
}

type payload struct {
	System      string `json:"system"`
	Engine      string `json:"engine"`
	Company     string `json:"company"`
	Department  string `json:"department"`
	Description string `json:"description"`
	ProjectID   string `json:"projectId"`
	Type        string `json:"type"`
	Sender      string `json:"sender,omitempty"`
	ExternalID  string `json:"externalId"`
}

type Client struct {
	cfg    Config
	url    string
	http   *http.Client
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Client {
	return &Client{
		cfg:    cfg,
		url:    strings.TrimRight(cfg.BaseURL, "/") + "/stats",
		http:   &http.Client{Timeout: cfg.TimeoutDuration()},
		logger: logger.With("system", "statistics"),
	}
}

// Report posts e. It does nothing when the client is disabled.
func (c *Client) Report(ctx context.Context, e Event) {
	if c == nil || !c.cfg.Enabled() {
		return
	}

	p := payload{
		System:      system,
		Engine:      fmt.Sprintf("%s %s", c.cfg.AppName, c.cfg.Version),
		Company:     c.cfg.Company,
		Department:  c.cfg.Department,
		Description: e.Description,
		ProjectID:   projectID,
		Type:        e.Type,
		Sender:      e.Sender,
		ExternalID:  e.MessageID,
	}

	if err := c.post(ctx, p); err != nil {
		c.logger.WarnContext(ctx, "statistics not recorded",
			"message_id", e.MessageID,
			"type", e.Type,
			"error", err,
		)
	}
}

func (c *Client) post(ctx context.Context, p payload) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(keyHeader, c.cfg.Key)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
