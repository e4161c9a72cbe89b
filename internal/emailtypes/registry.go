package emailtypes

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/JaimeStill/postmottak/pkg/formatting"
	"github.com/JaimeStill/postmottak/pkg/mail"
	"github.com/JaimeStill/postmottak/pkg/metrics"
)

// Folders are the destinations of copies of unmatched messages. PartialMatch
// falls back to RobotLog when empty.
type Folders struct {
	RobotLog     string
	PartialMatch string
}

// Classification is the result of running the registry over one message.
type Classification struct {
	// Handler is the first handler that answered Yes, nil when none did.
	Handler Handler
	// Match is the Yes match of Handler.
	Match Match
	// PartialMatch is set when no handler matched and at least one answered Maybe.
	PartialMatch bool
	// Diagnostics is the aggregated No and Maybe reasons as an HTML box.
	Diagnostics string
	// Skipped is set when the message had no subject or body and no handler ran.
	Skipped bool
}

// Matched reports whether a handler claimed the message.
func (c *Classification) Matched() bool { return c != nil && c.Handler != nil }

type Registry struct {
	handlers  []Handler
	transport mail.Transport
	folders   Folders
	metrics   *metrics.Recorder
	logger    *slog.Logger
}

func NewRegistry(handlers []Handler, transport mail.Transport, folders Folders, rec *metrics.Recorder, logger *slog.Logger) *Registry {
	return &Registry{
		handlers:  handlers,
		transport: transport,
		folders:   folders,
		metrics:   rec,
		logger:    logger.With("system", "registry"),
	}
}

func (r *Registry) Handlers() []Handler {
	return r.handlers
}

// Classify asks each handler in order whether it owns msg and stops at the
// first Yes. When nothing matches, a copy of msg annotated with every reason
// is filed in the robot log folder. Errors from a handler abort the
// classification and leave the message untouched.
func (r *Registry) Classify(ctx context.Context, msg *mail.Message) (*Classification, error) {
	if strings.TrimSpace(msg.Body.Content) == "" || strings.TrimSpace(msg.Subject) == "" {
		r.logger.InfoContext(ctx, "message has no subject or body", "message_id", msg.ID)
		return &Classification{Skipped: true}, nil
	}

	var (
		reasons strings.Builder
		partial bool
	)

	for _, h := range r.handlers {
		m, err := h.MatchCriteria(ctx, msg)
		if err != nil {
			return nil, fmt.Errorf("%s match criteria: %w", h.Type(), err)
		}

		r.logger.DebugContext(ctx, "match criteria",
			"message_id", msg.ID,
			"type", h.Type(),
			"outcome", m.Outcome.String(),
		)

		switch m.Outcome {
		case Yes:
			return &Classification{Handler: h, Match: m}, nil
		case Maybe:
			partial = true
		}

		if m.Reason != "" {
			fmt.Fprintf(&reasons, "<b>%s</b>: %s<br /><br />", h.Type(), m.Reason)
		}
	}

	c := &Classification{PartialMatch: partial}
	if reasons.Len() > 0 {
		c.Diagnostics = formatting.HTMLBox(reasons.String())
	}

	r.metrics.UnknownMessage(partial)
	r.fileUnknown(ctx, msg, c)
	return c, nil
}

func (r *Registry) fileUnknown(ctx context.Context, msg *mail.Message, c *Classification) {
	folder := r.folders.RobotLog
	if c.PartialMatch && r.folders.PartialMatch != "" {
		folder = r.folders.PartialMatch
	}
	if folder == "" {
		r.logger.WarnContext(ctx, "no folder configured for unknown messages", "message_id", msg.ID)
		return
	}

	copied, err := r.transport.Copy(ctx, msg.ID, folder)
	if err != nil {
		r.logger.WarnContext(ctx, "copy unknown message failed", "message_id", msg.ID, "error", err)
		return
	}

	if _, err := r.transport.UpdateBody(ctx, copied.ID, mail.WithBannerHTML(c.Diagnostics, msg.Body)); err != nil {
		r.logger.WarnContext(ctx, "annotate unknown message copy failed", "message_id", copied.ID, "error", err)
	}
}
