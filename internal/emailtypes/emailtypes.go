// Package emailtypes implements the email type handlers, the factory that builds
// them by name, and the registry that classifies inbox messages.
package emailtypes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/JaimeStill/postmottak/internal/flowstatus"
	"github.com/JaimeStill/postmottak/internal/results"
	"github.com/JaimeStill/postmottak/pkg/mail"
)

// Type names. They are persisted in FlowStatus.Type and used to rebuild a
// handler on resume.
const (
	TypeRf1350           = "Rf1350"
	TypeLoyvegaranti     = "Loyvegaranti"
	TypePengetransporten = "Pengetransporten"
	TypeInnsyn           = "Innsyn"
	TypeCaseNumber       = "CaseNumber"
)

// DefaultOrder tries specific sender and subject matchers before keyword matchers.
var DefaultOrder = []string{TypeRf1350, TypeLoyvegaranti, TypePengetransporten, TypeInnsyn, TypeCaseNumber}

var (
	// ErrEscalate marks a failure that retrying cannot fix.
	ErrEscalate = errors.New("escalate to manual handling")
	// ErrUnknownType is returned by the factory for an unregistered type name.
	ErrUnknownType = errors.New("unknown email type")
	// ErrMissingResult indicates a flow without the result shape its handler needs.
	ErrMissingResult = errors.New("flow has no usable classification result")
)

// Outcome is the three-valued answer of MatchCriteria.
type Outcome int

const (
	No Outcome = iota
	Yes
	Maybe
)

func (o Outcome) String() string {
	switch o {
	case Yes:
		return "yes"
	case Maybe:
		return "maybe"
	default:
		return "no"
	}
}

// Match is the answer of one handler for one message. Result is set on Yes.
type Match struct {
	Outcome Outcome
	Reason  string
	Result  results.Result
}

func matchNo(reason string) Match {
	return Match{Outcome: No, Reason: reason}
}

func matchMaybe(reason string) Match {
	return Match{Outcome: Maybe, Reason: reason}
}

func matchYes(s results.Shape) Match {
	return Match{Outcome: Yes, Result: results.New(s)}
}

// Handler is one email type.
type Handler interface {
	// Type is the stable name stored in FlowStatus.Type.
	Type() string
	// Title is the human readable label written into audit banners.
	Title() string
	Enabled() bool
	IncludeFunFact() bool
	// MatchCriteria classifies msg. An error means the message could not be
	// evaluated this cycle, not that it did not match.
	MatchCriteria(ctx context.Context, msg *mail.Message) (Match, error)
	// HandleMessage runs the side effects for a matched message and returns the
	// audit text. It is safe to call again on the same flow after a failure.
	HandleMessage(ctx context.Context, flow *flowstatus.FlowStatus) (string, error)
}

// escalate flags the flow for manual handling and wraps err with ErrEscalate.
func escalate(flow *flowstatus.FlowStatus, err error) error {
	flow.Escalate()
	return fmt.Errorf("%w: %w", ErrEscalate, err)
}

func escalatef(flow *flowstatus.FlowStatus, format string, args ...any) error {
	return escalate(flow, fmt.Errorf(format, args...))
}

func resultOf[T results.Shape](flow *flowstatus.FlowStatus) (T, error) {
	v, ok := results.As[T](flow.Result)
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: want %s, have %q", ErrMissingResult, zero.Kind(), flow.Result.Kind())
	}
	return v, nil
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

func containsAnyFold(s string, substrs []string) bool {
	for _, sub := range substrs {
		if containsFold(s, sub) {
			return true
		}
	}
	return false
}

// subjectHasKeyword reports whether subject carries one of keywords. Single
// word keywords must equal a whole subject word, ignoring case and surrounding
// punctuation. Keywords with spaces match as phrases.
func subjectHasKeyword(subject string, keywords []string) bool {
	words := strings.Fields(subject)
	for i, w := range words {
		words[i] = strings.TrimFunc(w, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
	}

	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		if strings.ContainsRune(kw, ' ') {
			if containsFold(subject, kw) {
				return true
			}
			continue
		}
		for _, w := range words {
			if strings.EqualFold(w, kw) {
				return true
			}
		}
	}
	return false
}
