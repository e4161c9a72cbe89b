package emailtypes

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/JaimeStill/postmottak/internal/assistant"
	"github.com/JaimeStill/postmottak/internal/flowstatus"
	"github.com/JaimeStill/postmottak/internal/results"
	"github.com/JaimeStill/postmottak/pkg/archive"
	"github.com/JaimeStill/postmottak/pkg/mail"
	"github.com/JaimeStill/postmottak/pkg/metrics"
)

// Loyvegaranti archives taxi license guarantees from the insurer into the
// license case of the organization, reopening or creating the case as needed.
type Loyvegaranti struct {
	cfg       LoyvegarantiConfig
	category  string
	archive   archive.Service
	transport mail.Transport
	assistant assistant.Requester
	metrics   *metrics.Recorder
	logger    *slog.Logger
	now       func() time.Time
}

func NewLoyvegaranti(
	cfg LoyvegarantiConfig,
	epostInnCategory string,
	svc archive.Service,
	transport mail.Transport,
	ask assistant.Requester,
	rec *metrics.Recorder,
	logger *slog.Logger,
) *Loyvegaranti {
	return &Loyvegaranti{
		cfg:       cfg,
		category:  epostInnCategory,
		archive:   svc,
		transport: transport,
		assistant: ask,
		metrics:   rec,
		logger:    logger.With("email_type", TypeLoyvegaranti),
		now:       time.Now,
	}
}

func (h *Loyvegaranti) Type() string         { return TypeLoyvegaranti }
func (h *Loyvegaranti) Title() string        { return "Løyvegaranti" }
func (h *Loyvegaranti) Enabled() bool        { return enabled(h.cfg.Enabled) }
func (h *Loyvegaranti) IncludeFunFact() bool { return false }

func (h *Loyvegaranti) MatchCriteria(ctx context.Context, msg *mail.Message) (Match, error) {
	sender := mail.SenderAddress(msg)
	if sender == "" {
		return matchNo("Avsender mangler. WHHAAAT?"), nil
	}
	if !strings.EqualFold(sender, h.cfg.Sender) {
		return matchNo(fmt.Sprintf("Avsender er ikke %s. Dette er ikke en løyvegaranti e-post", h.cfg.Sender)), nil
	}
	if !containsAnyFold(msg.Subject, h.cfg.Keywords) {
		return matchNo("E-postens emne inneholder ikke et gyldig søkeord for løyvegaranti. Gyldige søkeord er: " +
			strings.Join(h.cfg.Keywords, ", ")), nil
	}
	for _, prefix := range h.cfg.BlockedPrefixes {
		if hasPrefixFold(msg.Subject, prefix) {
			return matchNo("E-postens emne inneholder en ugyldig prefix for løyvegaranti. Ugyldige prefixer er: " +
				strings.Join(h.cfg.BlockedPrefixes, ", ")), nil
		}
	}

	_, result, err := assistant.Ask[results.Loyvegaranti](ctx, h.assistant, msg.Subject)
	if err != nil {
		return Match{}, err
	}
	if result == nil || result.OrganizationName == "" || !result.OrganizationNumber.Valid9() {
		h.metrics.MaybeMatch(TypeLoyvegaranti)
		return matchMaybe(fmt.Sprintf("Avsender og emne samsvarte med løyvegaranti, men AI-resultatet indikerer at det ikke er en %s:<br />AI-resultat:<br />%s",
			TypeLoyvegaranti, marshalResult(result))), nil
	}

	h.metrics.Match(TypeLoyvegaranti)
	return matchYes(*result), nil
}

func (h *Loyvegaranti) HandleMessage(ctx context.Context, flow *flowstatus.FlowStatus) (string, error) {
	lg, err := resultOf[results.Loyvegaranti](flow)
	if err != nil {
		return "", escalate(flow, err)
	}
	orgnr := lg.OrganizationNumber.String()

	if flow.Archive.CaseNumber == "" {
		if err := h.ensureCase(ctx, flow, lg); err != nil {
			return "", err
		}
	}

	typeTitle, ok := lg.TypeTitle()
	if !ok {
		return "", escalatef(flow, "unknown %s type %q", h.Title(), lg.Type)
	}

	if flow.Archive.DocumentNumber == "" {
		files, err := messageFiles(ctx, h.transport, &flow.Message, "EML")
		if err != nil {
			return "", err
		}

		doc, err := h.archive.CreateDocument(ctx, archive.CreateDocumentParams{
			Archive:    documentArchive,
			CaseNumber: flow.Archive.CaseNumber,
			Category:   h.category,
			Contacts: []archive.Contact{
				{ReferenceNumber: archive.Ref(h.cfg.SenderReferenceNumber), Role: roleSender},
			},
			DocumentDate:               flow.Message.ReceivedAt.Format(time.RFC3339),
			Files:                      files,
			ResponsibleEnterpriseRecno: h.cfg.ResponsibleEnterpriseRecno,
			Status:                     documentStatusJ,
			Title:                      fmt.Sprintf("%s - %s - %s", typeTitle, lg.OrganizationName, orgnr),
		})
		if err != nil {
			return "", err
		}
		h.metrics.DocumentCreated(TypeLoyvegaranti)
		if err := flow.Archive.SetDocumentNumber(doc.DocumentNumber, h.now()); err != nil {
			return "", err
		}
	}

	return fmt.Sprintf("%s er automatisk arkivert med dokumentnummer %s. %s",
		typeTitle, flow.Archive.DocumentNumber, caseHandleText(flow.Archive.CaseCreated)), nil
}

func (h *Loyvegaranti) ensureCase(ctx context.Context, flow *flowstatus.FlowStatus, lg results.Loyvegaranti) error {
	orgnr := lg.OrganizationNumber.String()

	cases, err := h.archive.GetCases(ctx, archive.GetCasesParams{
		ArchiveCode: orgnr,
		Title:       fmt.Sprintf("Drosjeløyve - %% - %s%%", orgnr),
	})
	if err != nil {
		return err
	}

	if c := activeCase(cases, archive.StatusUnderBehandling, archive.StatusReservert, archive.StatusAvsluttet); c != nil {
		if c.Status == archive.StatusAvsluttet {
			if _, err := h.archive.UpdateCase(ctx, archive.UpdateCaseParams{CaseNumber: c.CaseNumber, Status: caseStatusOpen}); err != nil {
				h.metrics.CaseUpdated(TypeLoyvegaranti, false)
				return fmt.Errorf("reopen case %s: %w", c.CaseNumber, err)
			}
			h.metrics.CaseUpdated(TypeLoyvegaranti, true)
			h.logger.InfoContext(ctx, "case reopened", "case_number", c.CaseNumber)
		}
		return flow.Archive.SetCaseNumber(c.CaseNumber)
	}

	created, err := h.archive.CreateCase(ctx, archive.CreateCaseParams{
		AccessCode:  "U",
		AccessGroup: "Alle",
		ArchiveCodes: []archive.ArchiveCode{
			{ArchiveCode: orgnr, ArchiveType: "ORG", IsManualText: true, Sort: 1},
			{ArchiveCode: "N12", ArchiveType: "FAGKLASSE PRINSIPP", Sort: 2},
			{ArchiveCode: "&18", ArchiveType: "TILLEGGSKODE PRINSIPP", Sort: 3},
		},
		CaseType:                   "Sak",
		ResponsibleEnterpriseRecno: h.cfg.ResponsibleEnterpriseRecno,
		Status:                     caseStatusOpen,
		SubArchive:                 "Løyver",
		Title:                      fmt.Sprintf("Drosjeløyve - %s - %s", lg.OrganizationName, orgnr),
	})
	if err != nil {
		return err
	}

	flow.Archive.CaseCreated = true
	h.metrics.CaseCreated(TypeLoyvegaranti)
	h.logger.InfoContext(ctx, "case created", "case_number", created.CaseNumber)
	return flow.Archive.SetCaseNumber(created.CaseNumber)
}
