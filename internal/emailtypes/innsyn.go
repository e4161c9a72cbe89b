package emailtypes

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/JaimeStill/postmottak/internal/assistant"
	"github.com/JaimeStill/postmottak/internal/flowstatus"
	"github.com/JaimeStill/postmottak/internal/results"
	"github.com/JaimeStill/postmottak/pkg/mail"
	"github.com/JaimeStill/postmottak/pkg/metrics"
)

// Innsyn forwards requests for public access to documents.
type Innsyn struct {
	forwarder
	assistant assistant.Requester
}

func NewInnsyn(
	cfg ForwardConfig,
	transport mail.Transport,
	ask assistant.Requester,
	rec *metrics.Recorder,
	logger *slog.Logger,
) *Innsyn {
	return &Innsyn{
		forwarder: forwarder{
			emailType: TypeInnsyn,
			cfg:       cfg,
			transport: transport,
			metrics:   rec,
			logger:    logger.With("email_type", TypeInnsyn),
		},
		assistant: ask,
	}
}

func (h *Innsyn) Type() string         { return TypeInnsyn }
func (h *Innsyn) Title() string        { return "Innsyn" }
func (h *Innsyn) Enabled() bool        { return enabled(h.cfg.Enabled) }
func (h *Innsyn) IncludeFunFact() bool { return false }

func (h *Innsyn) MatchCriteria(ctx context.Context, msg *mail.Message) (Match, error) {
	if !containsAnyFold(msg.Subject, h.cfg.Keywords) {
		return matchNo("Emnet samsvarer ikke med noen av de forventede emnene"), nil
	}

	_, result, err := assistant.Ask[results.Innsyn](ctx, h.assistant, msg.Body.Content)
	if err != nil {
		return Match{}, err
	}
	if result == nil || !result.IsInnsyn {
		h.metrics.MaybeMatch(TypeInnsyn)
		return matchMaybe(fmt.Sprintf("Emne samsvarte med en av de forventede innsyn emnene, men AI-resultatet indikerer at det ikke er en %s:<br />AI-resultat:<br />%s",
			TypeInnsyn, marshalResult(result))), nil
	}

	h.metrics.Match(TypeInnsyn)
	return matchYes(*result), nil
}

func (h *Innsyn) HandleMessage(ctx context.Context, flow *flowstatus.FlowStatus) (string, error) {
	in, err := resultOf[results.Innsyn](flow)
	if err != nil {
		return "", escalate(flow, err)
	}
	return h.forward(ctx, flow, in.Description)
}
