package outcomes

import (
	"net/url"
	"time"

	"github.com/JaimeStill/postmottak/pkg/query"
	"github.com/JaimeStill/postmottak/pkg/repository"
)

var projection = query.
	NewProjection("outcomes", "o").
	Project("id", "ID").
	Project("message_id", "MessageID").
	Project("email_type", "EmailType").
	Project("status", "Status").
	Project("subject", "Subject").
	Project("sender", "Sender").
	Project("case_number", "CaseNumber").
	Project("document_number", "DocumentNumber").
	Project("run_count", "RunCount").
	Project("detail", "Detail").
	Project("recorded_at", "RecordedAt")

var defaultSort = query.SortField{
	Field:      "RecordedAt",
	Descending: true,
}

// Filters narrows outcome queries. Nil fields are ignored.
type Filters struct {
	MessageID *string `json:"message_id,omitempty"`
	EmailType *string `json:"email_type,omitempty"`
	Status    *string `json:"status,omitempty"`
	Sender    *string `json:"sender,omitempty"`

	RecordedAfter  *time.Time `json:"recorded_after,omitempty"`
	RecordedBefore *time.Time `json:"recorded_before,omitempty"`
}

func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("MessageID", f.MessageID).
		WhereEquals("EmailType", f.EmailType).
		WhereEquals("Status", f.Status).
		WhereContains("Sender", f.Sender).
		WhereAtLeast("RecordedAt", f.RecordedAfter).
		WhereBefore("RecordedAt", f.RecordedBefore)
}

// FiltersFromQuery reads filters from query parameters. recorded_after and
// recorded_before take RFC 3339 timestamps; unparseable values are ignored.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if v := values.Get("message_id"); v != "" {
		f.MessageID = &v
	}
	if v := values.Get("email_type"); v != "" {
		f.EmailType = &v
	}
	if v := values.Get("status"); v != "" {
		f.Status = &v
	}
	if v := values.Get("sender"); v != "" {
		f.Sender = &v
	}
	f.RecordedAfter = parseTime(values.Get("recorded_after"))
	f.RecordedBefore = parseTime(values.Get("recorded_before"))

	return f
}

func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}

func scanOutcome(s repository.Scanner) (Outcome, error) {
	var o Outcome
	err := s.Scan(
		&o.ID,
		&o.MessageID,
		&o.EmailType,
		&o.Status,
		&o.Subject,
		&o.Sender,
		&o.CaseNumber,
		&o.DocumentNumber,
		&o.RunCount,
		&o.Detail,
		&o.RecordedAt,
	)
	return o, err
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func validStatus(s string) bool {
	switch s {
	case StatusSucceeded, StatusEscalated, StatusUnmatched, StatusPartial:
		return true
	}
	return false
}
