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

// Pengetransporten forwards invoices sent directly to the intake mailbox to
// the accounting distribution list.
type Pengetransporten struct {
	forwarder
	intakeAddress string
	assistant     assistant.Requester
}

func NewPengetransporten(
	cfg ForwardConfig,
	intakeAddress string,
	transport mail.Transport,
	ask assistant.Requester,
	rec *metrics.Recorder,
	logger *slog.Logger,
) *Pengetransporten {
	return &Pengetransporten{
		forwarder: forwarder{
			emailType: TypePengetransporten,
			cfg:       cfg,
			transport: transport,
			metrics:   rec,
			logger:    logger.With("email_type", TypePengetransporten),
		},
		intakeAddress: intakeAddress,
		assistant:     ask,
	}
}

func (h *Pengetransporten) Type() string         { return TypePengetransporten }
func (h *Pengetransporten) Title() string        { return "Pengetransporten" }
func (h *Pengetransporten) Enabled() bool        { return enabled(h.cfg.Enabled) }
func (h *Pengetransporten) IncludeFunFact() bool { return false }

func (h *Pengetransporten) MatchCriteria(ctx context.Context, msg *mail.Message) (Match, error) {
	if !mail.IsAddressedSolelyTo(msg, h.intakeAddress) {
		return matchNo("E-posten er ikke sendt direkte til postmottaket"), nil
	}
	if !subjectHasKeyword(msg.Subject, h.cfg.Keywords) {
		return matchNo("Emnet samsvarer ikke med noen av de forventede fakturarelaterte emnene"), nil
	}

	_, result, err := assistant.Ask[results.Pengetransporten](ctx, h.assistant, msg.Body.Content)
	if err != nil {
		return Match{}, err
	}
	if result == nil || !result.IsInvoiceRelated {
		h.metrics.MaybeMatch(TypePengetransporten)
		return matchMaybe(fmt.Sprintf("Emne samsvarte med en av de forventede fakturarelaterte emnene, men AI-resultatet indikerer at det ikke er en %s.<br />AI-resultat:<br />%s",
			TypePengetransporten, marshalResult(result))), nil
	}

	h.metrics.Match(TypePengetransporten)
	return matchYes(*result), nil
}

func (h *Pengetransporten) HandleMessage(ctx context.Context, flow *flowstatus.FlowStatus) (string, error) {
	pt, err := resultOf[results.Pengetransporten](flow)
	if err != nil {
		return "", escalate(flow, err)
	}
	return h.forward(ctx, flow, pt.Description)
}
