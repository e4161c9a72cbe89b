// Package flowstatus holds the resumable per-message workflow state and its
// blob persistence.
package flowstatus

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JaimeStill/postmottak/internal/results"
	"github.com/JaimeStill/postmottak/pkg/archive"
	"github.com/JaimeStill/postmottak/pkg/mail"
)

// Archive accumulates side effects of a flow. Every field is set at most once
// and checked before the step that fills it runs again.
type Archive struct {
	CaseNumber     string              `json:"caseNumber,omitempty"`
	DocumentNumber string              `json:"documentNumber,omitempty"`
	CaseCreated    bool                `json:"caseCreated,omitempty"`
	SyncEnterprise *archive.Enterprise `json:"syncEnterprise,omitempty"`
	Project        *archive.Project    `json:"project,omitempty"`
	Case           *archive.Case       `json:"case,omitempty"`
	SoknadSender   *archive.Contact    `json:"soknadSender,omitempty"`
	Archived       *time.Time          `json:"archived,omitempty"`
	Replied        bool                `json:"replied,omitempty"`
}

// SetCaseNumber records the case number unless one is already set.
func (a *Archive) SetCaseNumber(n string) error {
	if a.CaseNumber != "" {
		return fmt.Errorf("%w: case number %s", ErrAlreadySet, a.CaseNumber)
	}
	if n == "" {
		return fmt.Errorf("%w: case number", ErrEmptyValue)
	}
	a.CaseNumber = n
	return nil
}

// SetDocumentNumber records the document number unless one is already set.
func (a *Archive) SetDocumentNumber(n string, now time.Time) error {
	if a.DocumentNumber != "" {
		return fmt.Errorf("%w: document number %s", ErrAlreadySet, a.DocumentNumber)
	}
	if n == "" {
		return fmt.Errorf("%w: document number", ErrEmptyValue)
	}
	a.DocumentNumber = n
	a.Archived = &now
	return nil
}

// FlowStatus is the unit of work for one message and one email type.
type FlowStatus struct {
	Type    string         `json:"type"`
	Message mail.Message   `json:"message"`
	Result  results.Result `json:"result"`
	Archive Archive        `json:"archive"`

	RunCount   int        `json:"runCount"`
	RetryAfter *time.Time `json:"retryAfter,omitempty"`

	SendToArkivarerForHandling bool `json:"sendToArkivarerForHandling"`

	ErrorMessage string `json:"errorMessage,omitempty"`
	ErrorStack   string `json:"errorStack,omitempty"`

	// ResultText is the audit text of a handled flow. It is kept with Finished
	// so a flow whose mailbox filing failed resumes without handling again.
	ResultText string     `json:"resultText,omitempty"`
	Finished   *time.Time `json:"finished,omitempty"`
}

// New starts a flow for a freshly classified message.
func New(emailType string, msg mail.Message, result results.Result) *FlowStatus {
	return &FlowStatus{
		Type:    emailType,
		Message: msg,
		Result:  result,
	}
}

// Due reports whether the flow may run at now.
func (f *FlowStatus) Due(now time.Time) bool {
	return f.RetryAfter == nil || !now.Before(*f.RetryAfter)
}

// Escalate marks the flow for manual handling regardless of the retry budget.
func (f *FlowStatus) Escalate() {
	f.SendToArkivarerForHandling = true
}

// Decision is the outcome of recording a failure.
type Decision int

const (
	Retry Decision = iota
	Escalated
)

func (d Decision) String() string {
	if d == Escalated {
		return "escalated"
	}
	return "retry"
}

// RecordFailure counts a failed attempt and decides whether the flow is retried
// or escalated. intervals holds the retry delays in minutes; attempt n waits
// intervals[n-1]. Past the end of the list the flow escalates.
func (f *FlowStatus) RecordFailure(err error, intervals []int, now time.Time) Decision {
	f.RunCount++
	f.ErrorMessage = err.Error()
	f.ErrorStack = errorChain(err)

	if f.SendToArkivarerForHandling || f.RunCount > len(intervals) {
		f.RetryAfter = nil
		return Escalated
	}

	next := now.Add(time.Duration(intervals[f.RunCount-1]) * time.Minute)
	f.RetryAfter = &next
	return Retry
}

// Finish stamps the flow as handled with its audit text.
func (f *FlowStatus) Finish(text string, now time.Time) {
	f.ResultText = text
	f.Finished = &now
}

// Handled reports whether HandleMessage already succeeded for the flow.
func (f *FlowStatus) Handled() bool {
	return f.Finished != nil
}

func errorChain(err error) string {
	var lines []string
	for e := err; e != nil; e = errors.Unwrap(e) {
		lines = append(lines, fmt.Sprintf("%T: %s", e, e.Error()))
	}
	return strings.Join(lines, "\n")
}
