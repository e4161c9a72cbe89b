package emailtypes

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/JaimeStill/postmottak/internal/assistant"
	"github.com/JaimeStill/postmottak/internal/flowstatus"
	"github.com/JaimeStill/postmottak/internal/results"
	"github.com/JaimeStill/postmottak/pkg/archive"
	"github.com/JaimeStill/postmottak/pkg/mail"
	"github.com/JaimeStill/postmottak/pkg/metrics"
)

var (
	caseNumberInText = regexp.MustCompile(`\b\d{2}/\d{5}\b`)
	caseNumberExact  = regexp.MustCompile(`^\d{2}/\d{5}$`)
)

const documentStatusReserved = "R"

// CaseNumber files messages that reference an existing archive case by number
// as incoming documents in that case and confirms the filing to the sender.
type CaseNumber struct {
	cfg       CaseNumberConfig
	category  string
	replyFrom string
	archive   archive.Service
	transport mail.Transport
	assistant assistant.Requester
	metrics   *metrics.Recorder
	logger    *slog.Logger
	now       func() time.Time
}

func NewCaseNumber(
	cfg CaseNumberConfig,
	epostInnCategory string,
	intakeAddress string,
	svc archive.Service,
	transport mail.Transport,
	ask assistant.Requester,
	rec *metrics.Recorder,
	logger *slog.Logger,
) *CaseNumber {
	return &CaseNumber{
		cfg:       cfg,
		category:  epostInnCategory,
		replyFrom: intakeAddress,
		archive:   svc,
		transport: transport,
		assistant: ask,
		metrics:   rec,
		logger:    logger.With("email_type", TypeCaseNumber),
		now:       time.Now,
	}
}

func (h *CaseNumber) Type() string         { return TypeCaseNumber }
func (h *CaseNumber) Title() string        { return "Saksnummer" }
func (h *CaseNumber) Enabled() bool        { return enabled(h.cfg.Enabled) }
func (h *CaseNumber) IncludeFunFact() bool { return false }

func (h *CaseNumber) MatchCriteria(ctx context.Context, msg *mail.Message) (Match, error) {
	if !caseNumberInText.MatchString(msg.Subject) && !caseNumberInText.MatchString(msg.Body.Content) {
		return matchNo("E-posten inneholder ikke et saksnummer"), nil
	}

	prompt := fmt.Sprintf("Emne: %s\n\n%s", msg.Subject, msg.Body.Content)
	_, result, err := assistant.Ask[results.General](ctx, h.assistant, prompt)
	if err != nil {
		return Match{}, err
	}
	if result == nil || !caseNumberExact.MatchString(result.CaseNumber) {
		h.metrics.MaybeMatch(TypeCaseNumber)
		return matchMaybe(fmt.Sprintf("E-posten inneholder et saksnummer, men AI-resultatet inneholder ikke et gyldig saksnummer:<br />AI-resultat:<br />%s",
			marshalResult(result))), nil
	}

	cases, err := h.archive.GetCases(ctx, archive.GetCasesParams{CaseNumber: result.CaseNumber})
	if err != nil {
		return Match{}, err
	}
	if activeCase(cases, archive.StatusUnderBehandling, archive.StatusReservert) == nil {
		h.metrics.MaybeMatch(TypeCaseNumber)
		return matchMaybe(fmt.Sprintf("Fant ingen aktiv sak med saksnummer %s", result.CaseNumber)), nil
	}

	h.metrics.Match(TypeCaseNumber)
	return matchYes(*result), nil
}

func (h *CaseNumber) HandleMessage(ctx context.Context, flow *flowstatus.FlowStatus) (string, error) {
	gen, err := resultOf[results.General](flow)
	if err != nil {
		return "", escalate(flow, err)
	}

	if flow.Archive.CaseNumber == "" {
		cases, err := h.archive.GetCases(ctx, archive.GetCasesParams{CaseNumber: gen.CaseNumber})
		if err != nil {
			return "", err
		}
		c := activeCase(cases, archive.StatusUnderBehandling, archive.StatusReservert)
		if c == nil {
			return "", escalatef(flow, "no active case with case number %s", gen.CaseNumber)
		}
		flow.Archive.Case = c
		if err := flow.Archive.SetCaseNumber(c.CaseNumber); err != nil {
			return "", err
		}
	}

	if flow.Archive.DocumentNumber == "" {
		files, err := messageFiles(ctx, h.transport, &flow.Message, "eml")
		if err != nil {
			return "", err
		}

		var responsible string
		if flow.Archive.Case != nil {
			responsible = flow.Archive.Case.ResponsiblePerson.Email
		}
		title := gen.Title
		if title == "" {
			title = flow.Message.Subject
		}

		doc, err := h.archive.CreateDocument(ctx, archive.CreateDocumentParams{
			Archive:    documentArchive,
			CaseNumber: flow.Archive.CaseNumber,
			Category:   h.category,
			Contacts: []archive.Contact{
				{Name: mail.SenderAddress(&flow.Message), Role: roleSender},
			},
			DocumentDate:           flow.Message.ReceivedAt.Format(time.RFC3339),
			Files:                  files,
			ResponsiblePersonEmail: responsible,
			Status:                 documentStatusReserved,
			Title:                  title,
		})
		if err != nil {
			return "", err
		}
		h.metrics.DocumentCreated(TypeCaseNumber)
		if err := flow.Archive.SetDocumentNumber(doc.DocumentNumber, h.now()); err != nil {
			return "", err
		}
	}

	if err := h.replySender(ctx, flow); err != nil {
		return "", err
	}

	return fmt.Sprintf("E-posten er automatisk arkivert i sak %s med dokumentnummer %s.",
		flow.Archive.CaseNumber, flow.Archive.DocumentNumber), nil
}

// replySender tells the sender where the message was filed. Messages without
// a sender address get no reply.
func (h *CaseNumber) replySender(ctx context.Context, flow *flowstatus.FlowStatus) error {
	if flow.Archive.Replied {
		return nil
	}
	sender := mail.SenderAddress(&flow.Message)
	if sender == "" {
		return nil
	}

	comment := fmt.Sprintf("Takk for henvendelsen. E-posten er arkivert i sak %s med dokumentnummer %s.",
		flow.Archive.CaseNumber, flow.Archive.DocumentNumber)
	err := h.transport.Reply(ctx, flow.Message.ID, mail.Reply{
		From:    h.replyFrom,
		To:      []string{sender},
		Comment: comment,
	})
	if err != nil {
		return fmt.Errorf("reply to sender: %w", err)
	}
	flow.Archive.Replied = true
	return nil
}
