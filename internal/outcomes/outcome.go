// Package outcomes records the terminal outcome of every message the
// orchestrator finishes with, and serves the ledger over HTTP.
package outcomes

import (
	"time"

	"github.com/google/uuid"
)

// Status values of a recorded outcome.
const (
	StatusSucceeded = "succeeded"
	StatusEscalated = "escalated"
	StatusUnmatched = "unmatched"
	StatusPartial   = "partial"
)

// Outcome is one row of the outcomes table.
type Outcome struct {
	ID             uuid.UUID `json:"id"`
	MessageID      string    `json:"message_id"`
	EmailType      *string   `json:"email_type"`
	Status         string    `json:"status"`
	Subject        string    `json:"subject"`
	Sender         string    `json:"sender"`
	CaseNumber     *string   `json:"case_number"`
	DocumentNumber *string   `json:"document_number"`
	RunCount       int       `json:"run_count"`
	Detail         string    `json:"detail"`
	RecordedAt     time.Time `json:"recorded_at"`
}

// RecordCommand carries a terminal outcome. Empty optional strings are stored as NULL.
type RecordCommand struct {
	MessageID      string
	EmailType      string
	Status         string
	Subject        string
	Sender         string
	CaseNumber     string
	DocumentNumber string
	RunCount       int
	Detail         string
}
