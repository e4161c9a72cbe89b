package emailtypes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	gaoconfig "github.com/JaimeStill/go-agents-orchestration/pkg/config"
	"github.com/JaimeStill/go-agents-orchestration/pkg/state"

	"github.com/JaimeStill/postmottak/internal/assistant"
	"github.com/JaimeStill/postmottak/internal/flowstatus"
	"github.com/JaimeStill/postmottak/internal/results"
	"github.com/JaimeStill/postmottak/pkg/archive"
	"github.com/JaimeStill/postmottak/pkg/mail"
	"github.com/JaimeStill/postmottak/pkg/metrics"
)

var (
	projectNumberPattern   = regexp.MustCompile(`^(\d{2})-(\d{1,6})$`)
	referenceNumberPattern = regexp.MustCompile(`^(\d{4})-(\d{4})$`)
)

const (
	keyFlow   = "flow"
	keyResult = "result"

	rf1350ApplicationTitlePrefix = "RF13.50 - Søknad -"
	rf1350FirstArchiveYear       = 2024
)

// Rf1350 archives grant application notifications from the regional grant
// administration. Each sub-type runs as a linear state graph whose steps are
// skipped when the Archive field they fill is already set.
type Rf1350 struct {
	cfg       Rf1350Config
	category  string
	archive   archive.Service
	transport mail.Transport
	assistant assistant.Requester
	metrics   *metrics.Recorder
	logger    *slog.Logger
	now       func() time.Time
}

func NewRf1350(
	cfg Rf1350Config,
	epostInnCategory string,
	svc archive.Service,
	transport mail.Transport,
	ask assistant.Requester,
	rec *metrics.Recorder,
	logger *slog.Logger,
) *Rf1350 {
	return &Rf1350{
		cfg:       cfg,
		category:  epostInnCategory,
		archive:   svc,
		transport: transport,
		assistant: ask,
		metrics:   rec,
		logger:    logger.With("email_type", TypeRf1350),
		now:       time.Now,
	}
}

func (h *Rf1350) Type() string         { return TypeRf1350 }
func (h *Rf1350) Title() string        { return "RF13.50" }
func (h *Rf1350) Enabled() bool        { return enabled(h.cfg.Enabled) }
func (h *Rf1350) IncludeFunFact() bool { return true }

func (h *Rf1350) MatchCriteria(ctx context.Context, msg *mail.Message) (Match, error) {
	sender := mail.SenderAddress(msg)
	if sender == "" {
		return matchNo("Avsender mangler"), nil
	}
	if !strings.EqualFold(sender, h.cfg.Sender) {
		return matchNo(fmt.Sprintf("Avsender er ikke %s. Dette er ikke en %s e-post", h.cfg.Sender, strings.ToLower(h.Title()))), nil
	}

	subjectOK := false
	for _, s := range h.cfg.Subjects {
		if hasPrefixFold(msg.Subject, s) {
			subjectOK = true
			break
		}
	}
	if !subjectOK {
		return matchNo(fmt.Sprintf("E-postens emne starter ikke med et gyldig emne for %s. Gyldige emner er: %s",
			h.Title(), strings.Join(h.cfg.Subjects, ", "))), nil
	}

	_, result, err := assistant.Ask[results.Rf1350](ctx, h.assistant, msg.Body.Content)
	if err != nil {
		return Match{}, err
	}
	if result == nil || result.Type == "" || result.ReferenceNumber == "" {
		h.metrics.MaybeMatch(TypeRf1350)
		return matchMaybe(fmt.Sprintf("Avsender og emne samsvarte med %s, men AI-resultatet indikerer at det ikke er en %s:<br />AI-resultat:<br />%s",
			h.Title(), TypeRf1350, marshalResult(result))), nil
	}

	if h.cfg.TestProjectNumber != "" && result.ProjectNumber != "" {
		h.logger.WarnContext(ctx, "test project number overrides extracted project number",
			"test_project_number", h.cfg.TestProjectNumber,
			"project_number", result.ProjectNumber,
		)
		result.ProjectNumber = h.cfg.TestProjectNumber
	}

	h.metrics.Match(TypeRf1350)
	return matchYes(*result), nil
}

type rf1350Step struct {
	name string
	run  func(ctx context.Context, flow *flowstatus.FlowStatus, rf results.Rf1350) error
}

func (h *Rf1350) HandleMessage(ctx context.Context, flow *flowstatus.FlowStatus) (string, error) {
	rf, err := resultOf[results.Rf1350](flow)
	if err != nil {
		return "", escalate(flow, err)
	}

	var (
		steps []rf1350Step
		text  func() string
	)

	switch {
	case strings.EqualFold(rf.Type, results.Rf1350Application):
		steps = h.grantSteps("Søknad")
		text = func() string {
			return fmt.Sprintf("Overføring av mottatt søknad er automatisk arkivert med dokumentnummer %s. %s",
				flow.Archive.DocumentNumber, caseHandleText(flow.Archive.CaseCreated))
		}
	case strings.EqualFold(rf.Type, results.Rf1350PaymentRequest):
		steps = h.grantSteps("Anmodning om utbetaling")
		text = func() string {
			return fmt.Sprintf("Anmodning om utbetaling er automatisk arkivert med dokumentnummer %s. %s",
				flow.Archive.DocumentNumber, caseHandleText(flow.Archive.CaseCreated))
		}
	case strings.EqualFold(rf.Type, results.Rf1350Receipt):
		steps = []rf1350Step{
			{"receipt-validate", h.validateReference},
			{"receipt-case", h.findApplicationSender},
			{"receipt-document", h.createReceiptDocument},
		}
		text = func() string {
			return fmt.Sprintf("Kvittering på søknad er automatisk arkivert med dokumentnummer %s.", flow.Archive.DocumentNumber)
		}
	default:
		return "", fmt.Errorf("unknown %s type %q", h.Title(), rf.Type)
	}

	if err := h.execute(ctx, steps, flow, rf); err != nil {
		return "", err
	}
	return text(), nil
}

func (h *Rf1350) execute(ctx context.Context, steps []rf1350Step, flow *flowstatus.FlowStatus, rf results.Rf1350) error {
	cfg := gaoconfig.DefaultGraphConfig("postmottak-rf1350")
	cfg.Observer = "noop"

	graph, err := state.NewGraph(cfg)
	if err != nil {
		return fmt.Errorf("build graph: %w", err)
	}

	for i, step := range steps {
		if err := graph.AddNode(step.name, h.node(step)); err != nil {
			return fmt.Errorf("build graph: %w", err)
		}
		if i > 0 {
			if err := graph.AddEdge(steps[i-1].name, step.name, nil); err != nil {
				return fmt.Errorf("build graph: %w", err)
			}
		}
	}
	if err := graph.SetEntryPoint(steps[0].name); err != nil {
		return fmt.Errorf("build graph: %w", err)
	}
	if err := graph.SetExitPoint(steps[len(steps)-1].name); err != nil {
		return fmt.Errorf("build graph: %w", err)
	}

	initial := state.New(nil).Set(keyFlow, flow).Set(keyResult, rf)
	if _, err := graph.Execute(ctx, initial); err != nil {
		return err
	}
	return nil
}

func (h *Rf1350) node(step rf1350Step) state.StateNode {
	return state.NewFunctionNode(func(ctx context.Context, s state.State) (state.State, error) {
		flowVal, ok := s.Get(keyFlow)
		if !ok {
			return s, fmt.Errorf("%s: missing %s in state", step.name, keyFlow)
		}
		flow, ok := flowVal.(*flowstatus.FlowStatus)
		if !ok {
			return s, fmt.Errorf("%s: %s is not *FlowStatus", step.name, keyFlow)
		}

		resultVal, ok := s.Get(keyResult)
		if !ok {
			return s, fmt.Errorf("%s: missing %s in state", step.name, keyResult)
		}
		rf, ok := resultVal.(results.Rf1350)
		if !ok {
			return s, fmt.Errorf("%s: %s is not Rf1350", step.name, keyResult)
		}

		if err := step.run(ctx, flow, rf); err != nil {
			return s, fmt.Errorf("%s: %w", step.name, err)
		}

		h.logger.DebugContext(ctx, "step complete", "step", step.name, "message_id", flow.Message.ID)
		return s, nil
	})
}

func (h *Rf1350) grantSteps(documentKind string) []rf1350Step {
	return []rf1350Step{
		{"validate", h.validate},
		{"enterprise", h.syncEnterprise},
		{"case", h.ensureCase},
		{"document", func(ctx context.Context, flow *flowstatus.FlowStatus, rf results.Rf1350) error {
			return h.createGrantDocument(ctx, flow, rf, documentKind)
		}},
	}
}

func (h *Rf1350) validate(ctx context.Context, flow *flowstatus.FlowStatus, rf results.Rf1350) error {
	if !projectNumberPattern.MatchString(rf.ProjectNumber) {
		return escalatef(flow, "project number %q is not valid", rf.ProjectNumber)
	}
	if err := h.validateReference(ctx, flow, rf); err != nil {
		return err
	}
	if rf.ProjectOwner == "" {
		return escalatef(flow, "project owner is missing")
	}
	if !rf.OrganizationNumber.Valid9() {
		return escalatef(flow, "organization number %q is missing or invalid", rf.OrganizationNumber)
	}
	return nil
}

// validateReference escalates on an empty or malformed reference number. The
// reference is used as a case title filter, so a partial value would match
// unrelated cases.
func (h *Rf1350) validateReference(_ context.Context, flow *flowstatus.FlowStatus, rf results.Rf1350) error {
	if !referenceNumberPattern.MatchString(rf.ReferenceNumber) {
		return escalatef(flow, "reference number %q is not valid", rf.ReferenceNumber)
	}
	return nil
}

func (h *Rf1350) syncEnterprise(ctx context.Context, flow *flowstatus.FlowStatus, rf results.Rf1350) error {
	if flow.Archive.SyncEnterprise != nil {
		return nil
	}

	ent, err := h.archive.SyncEnterprise(ctx, rf.OrganizationNumber.String())
	if err != nil {
		if errors.Is(err, archive.ErrNotFound) {
			return escalate(flow, err)
		}
		return err
	}
	flow.Archive.SyncEnterprise = ent
	return nil
}

func (h *Rf1350) ensureCase(ctx context.Context, flow *flowstatus.FlowStatus, rf results.Rf1350) error {
	if flow.Archive.CaseNumber != "" {
		return nil
	}

	projects, err := h.archive.GetProjects(ctx, archive.GetProjectsParams{ProjectNumber: rf.ProjectNumber})
	if err != nil {
		return err
	}
	if len(projects) == 0 {
		return fmt.Errorf("no projects found for project number %s", rf.ProjectNumber)
	}
	flow.Archive.Project = &projects[0]

	cases, err := h.archive.GetCases(ctx, archive.GetCasesParams{
		ProjectNumber: rf.ProjectNumber,
		Title:         fmt.Sprintf("RF13.50%%%s%%", rf.ReferenceNumber),
	})
	if err != nil {
		return err
	}

	if c := activeCase(cases, archive.StatusUnderBehandling, archive.StatusReservert); c != nil {
		return flow.Archive.SetCaseNumber(c.CaseNumber)
	}

	created, err := h.createCase(ctx, flow, rf)
	if err != nil {
		return err
	}
	return flow.Archive.SetCaseNumber(created.CaseNumber)
}

func (h *Rf1350) createCase(ctx context.Context, flow *flowstatus.FlowStatus, rf results.Rf1350) (*archive.CaseResult, error) {
	yearPart, _, _ := strings.Cut(rf.ReferenceNumber, "-")
	if year, err := strconv.Atoi(strings.TrimSpace(yearPart)); err == nil && year < rf1350FirstArchiveYear {
		return nil, escalatef(flow, "reference year %d predates the current archive, the case must be found manually", year)
	}

	email := flow.Archive.Project.ResponsiblePerson.Email
	if email == "" {
		return nil, fmt.Errorf("responsible person email is missing from project %s", rf.ProjectNumber)
	}

	created, err := h.archive.CreateCase(ctx, archive.CreateCaseParams{
		ArchiveCodes: []archive.ArchiveCode{
			{ArchiveCode: "243", ArchiveType: "FELLESKLASSE PRINSIPP", Sort: 1},
			{ArchiveCode: "U01", ArchiveType: "FAGKLASSE PRINSIPP", Sort: 2},
		},
		Project:                rf.ProjectNumber,
		ResponsiblePersonEmail: email,
		Status:                 caseStatusOpen,
		Title:                  fmt.Sprintf("RF13.50 - Søknad - %s - %s - %s", rf.ProjectName, rf.ReferenceNumber, rf.ProjectOwner),
	})
	if err != nil {
		return nil, err
	}

	flow.Archive.CaseCreated = true
	h.metrics.CaseCreated(TypeRf1350)
	h.logger.InfoContext(ctx, "case created", "case_number", created.CaseNumber, "project_number", rf.ProjectNumber)
	return created, nil
}

func (h *Rf1350) createGrantDocument(ctx context.Context, flow *flowstatus.FlowStatus, rf results.Rf1350, documentKind string) error {
	if flow.Archive.DocumentNumber != "" {
		return nil
	}

	files, err := messageFiles(ctx, h.transport, &flow.Message, "eml")
	if err != nil {
		return err
	}

	var responsible string
	if flow.Archive.Project != nil {
		responsible = flow.Archive.Project.ResponsiblePerson.Email
	}

	doc, err := h.archive.CreateDocument(ctx, archive.CreateDocumentParams{
		Archive:    documentArchive,
		CaseNumber: flow.Archive.CaseNumber,
		Category:   h.category,
		Contacts: []archive.Contact{
			{ReferenceNumber: flow.Archive.SyncEnterprise.EnterpriseNumber, Role: roleSender},
		},
		DocumentDate:           h.now().Format(time.RFC3339),
		Files:                  files,
		ResponsiblePersonEmail: responsible,
		Status:                 documentStatusJ,
		Title:                  fmt.Sprintf("RF13.50 - %s - %s - %s - %s", documentKind, rf.ProjectName, rf.ReferenceNumber, rf.ProjectOwner),
	})
	if err != nil {
		return err
	}

	h.metrics.DocumentCreated(TypeRf1350)
	return flow.Archive.SetDocumentNumber(doc.DocumentNumber, h.now())
}

func (h *Rf1350) findApplicationSender(ctx context.Context, flow *flowstatus.FlowStatus, rf results.Rf1350) error {
	if flow.Archive.CaseNumber != "" && flow.Archive.SoknadSender != nil {
		return nil
	}

	cases, err := h.archive.GetCases(ctx, archive.GetCasesParams{
		Title: fmt.Sprintf("RF13.50%%%s%%", rf.ReferenceNumber),
	})
	if err != nil {
		return err
	}

	c := activeCase(cases, archive.StatusUnderBehandling, archive.StatusReservert)
	if c == nil || len(c.Documents) == 0 {
		return fmt.Errorf("no case or documents found for reference number %s, wait for it to be created", rf.ReferenceNumber)
	}

	flow.Archive.Case = c
	if flow.Archive.CaseNumber == "" {
		if err := flow.Archive.SetCaseNumber(c.CaseNumber); err != nil {
			return err
		}
	}

	recno := categoryRecno(h.category)
	var application *archive.CaseDocument
	for i := range c.Documents {
		d := &c.Documents[i]
		if hasPrefixFold(d.DocumentTitle, rf1350ApplicationTitlePrefix) && d.Category.Recno.String() == recno {
			application = d
			break
		}
	}
	if application == nil {
		return fmt.Errorf("no document titled %q found on case %s", rf1350ApplicationTitlePrefix, c.CaseNumber)
	}

	docs, err := h.archive.GetDocuments(ctx, archive.GetDocumentsParams{DocumentNumber: application.DocumentNumber})
	if err != nil {
		return err
	}
	if len(docs) == 0 || len(docs[0].Contacts) == 0 {
		return escalatef(flow, "no document or contacts found for document number %s", application.DocumentNumber)
	}

	for i := range docs[0].Contacts {
		contact := docs[0].Contacts[i]
		if contact.Role == roleSender && contact.ReferenceNumber != "" {
			flow.Archive.SoknadSender = &contact
			return nil
		}
	}
	return escalatef(flow, "no sender with reference number found on document number %s", application.DocumentNumber)
}

func (h *Rf1350) createReceiptDocument(ctx context.Context, flow *flowstatus.FlowStatus, _ results.Rf1350) error {
	if flow.Archive.DocumentNumber != "" {
		return nil
	}

	files, err := messageFiles(ctx, h.transport, &flow.Message, "eml")
	if err != nil {
		return err
	}

	var responsible string
	if flow.Archive.Case != nil {
		responsible = flow.Archive.Case.ResponsiblePerson.Email
	}

	doc, err := h.archive.CreateDocument(ctx, archive.CreateDocumentParams{
		Archive:    documentArchive,
		CaseNumber: flow.Archive.CaseNumber,
		Category:   "E-post ut",
		Contacts: []archive.Contact{
			{ReferenceNumber: flow.Archive.SoknadSender.ReferenceNumber, Role: roleRecipient},
		},
		DocumentDate:           h.now().Format(time.RFC3339),
		Files:                  files,
		ResponsiblePersonEmail: responsible,
		Status:                 documentStatusJ,
		Title:                  "RF13.50 - Kvittering på søknad",
	})
	if err != nil {
		return err
	}

	h.metrics.DocumentCreated(TypeRf1350)
	return flow.Archive.SetDocumentNumber(doc.DocumentNumber, h.now())
}

// marshalResult renders an agent result as escaped text for HTML diagnostics.
// A nil result renders as null.
func marshalResult(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return html.EscapeString(fmt.Sprintf("%+v", v))
	}
	return html.EscapeString(string(data))
}
