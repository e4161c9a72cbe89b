package emailtypes

import (
	"context"
	"fmt"
	"html"
	"log/slog"

	"github.com/JaimeStill/postmottak/internal/flowstatus"
	"github.com/JaimeStill/postmottak/pkg/formatting"
	"github.com/JaimeStill/postmottak/pkg/mail"
	"github.com/JaimeStill/postmottak/pkg/metrics"
)

// forwarder is shared by the types that hand a message to a distribution list
// instead of archiving it.
type forwarder struct {
	emailType string
	cfg       ForwardConfig
	transport mail.Transport
	metrics   *metrics.Recorder
	logger    *slog.Logger
}

// forward sends the message on with a banner quoting description. The
// description comes from the agent and is escaped before it enters HTML.
func (f *forwarder) forward(ctx context.Context, flow *flowstatus.FlowStatus, description string) (string, error) {
	description = html.EscapeString(description)
	comment := formatting.HTMLBox(fmt.Sprintf(
		"Denne e-posten er håndtert av KI og videresendt på begrunnelse: %s.<br />Ta kontakt med arkivet dersom du mener at dette er feil.",
		description,
	))

	if err := f.transport.Forward(ctx, flow.Message.ID, f.cfg.ForwardAddresses, comment); err != nil {
		return "", fmt.Errorf("forward message: %w", err)
	}

	f.metrics.Forwarded(f.emailType)
	f.logger.InfoContext(ctx, "message forwarded",
		"message_id", flow.Message.ID,
		"recipients", len(f.cfg.ForwardAddresses),
	)

	return fmt.Sprintf("Denne e-posten er håndtert av KI på begrunnelse: %s, og videresendt til %s",
		description, formatting.HTMLList(f.cfg.ForwardAddresses)), nil
}
