package emailtypes_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/JaimeStill/postmottak/internal/assistant"
	"github.com/JaimeStill/postmottak/internal/emailtypes"
	"github.com/JaimeStill/postmottak/internal/flowstatus"
	"github.com/JaimeStill/postmottak/internal/results"
	"github.com/JaimeStill/postmottak/pkg/archive"
	"github.com/JaimeStill/postmottak/pkg/mail"
)

var (
	now        = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	errNoCall  = errors.New("unexpected call")
	intake     = "postmottak@fylke.no"
	epostInn   = "recno:110"
	accounting = []string{"regnskap@fylke.no", "faktura@fylke.no"}
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockRequester answers every chat of a kind with a fixed reply.
type mockRequester struct {
	mu      sync.Mutex
	replies map[results.Kind]string
	err     error
	calls   int
}

func (m *mockRequester) Chat(_ context.Context, kind results.Kind, prompt string) (assistant.History, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	reply, ok := m.replies[kind]
	if !ok {
		return nil, fmt.Errorf("%w: chat %s", errNoCall, kind)
	}
	return assistant.History{
		{Role: "user", Content: prompt},
		{Role: "assistant", Content: reply},
	}, nil
}

type forwardCall struct {
	id      string
	to      []string
	comment string
}

type mockTransport struct {
	mu       sync.Mutex
	calls    int
	raw      []byte
	copies   []string
	updates  map[string]mail.Body
	forwards []forwardCall
	replies  []mail.Reply
	replyErr error
	copyErr  error
}

func newTransport() *mockTransport {
	return &mockTransport{raw: []byte("From: x\r\n\r\nbody"), updates: map[string]mail.Body{}}
}

func (m *mockTransport) touch() {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
}

func (m *mockTransport) ListMessages(context.Context, string, mail.ListOptions) ([]mail.Message, error) {
	m.touch()
	return nil, nil
}

func (m *mockTransport) GetMessage(_ context.Context, id string) (*mail.Message, error) {
	m.touch()
	return &mail.Message{ID: id}, nil
}

func (m *mockTransport) Raw(context.Context, string) ([]byte, error) {
	m.touch()
	return m.raw, nil
}

func (m *mockTransport) Attachments(context.Context, string) ([]mail.Attachment, error) {
	m.touch()
	return []mail.Attachment{{Name: "soknad.pdf", ContentType: "application/pdf", Data: []byte("%PDF")}}, nil
}

func (m *mockTransport) Move(_ context.Context, id, _ string) (*mail.Message, error) {
	m.touch()
	return &mail.Message{ID: id}, nil
}

func (m *mockTransport) Copy(_ context.Context, id, folder string) (*mail.Message, error) {
	m.touch()
	if m.copyErr != nil {
		return nil, m.copyErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.copies = append(m.copies, folder)
	return &mail.Message{ID: "copy-of-" + id}, nil
}

func (m *mockTransport) UpdateBody(_ context.Context, id string, body mail.Body) (string, error) {
	m.touch()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates[id] = body
	return id, nil
}

func (m *mockTransport) Forward(_ context.Context, id string, to []string, comment string) error {
	m.touch()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forwards = append(m.forwards, forwardCall{id, to, comment})
	return nil
}

func (m *mockTransport) Reply(_ context.Context, _ string, r mail.Reply) error {
	m.touch()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.replyErr != nil {
		return m.replyErr
	}
	m.replies = append(m.replies, r)
	return nil
}

func (m *mockTransport) ListFolders(context.Context) ([]mail.Folder, error) {
	m.touch()
	return nil, nil
}

func (m *mockTransport) ChildFolders(context.Context, string) ([]mail.Folder, error) {
	m.touch()
	return nil, nil
}

// mockArchive dispatches to function fields and counts calls per method.
// A nil function field fails the call.
type mockArchive struct {
	mu    sync.Mutex
	calls map[string]int

	getCasesFn       func(archive.GetCasesParams) ([]archive.Case, error)
	createCaseFn     func(archive.CreateCaseParams) (*archive.CaseResult, error)
	updateCaseFn     func(archive.UpdateCaseParams) (*archive.CaseResult, error)
	getDocumentsFn   func(archive.GetDocumentsParams) ([]archive.Document, error)
	createDocumentFn func(archive.CreateDocumentParams) (*archive.DocumentResult, error)
	getProjectsFn    func(archive.GetProjectsParams) ([]archive.Project, error)
	syncEnterpriseFn func(string) (*archive.Enterprise, error)
}

func (m *mockArchive) count(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = map[string]int{}
	}
	m.calls[method]++
}

func (m *mockArchive) total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		n += c
	}
	return n
}

func (m *mockArchive) GetCases(_ context.Context, p archive.GetCasesParams) ([]archive.Case, error) {
	m.count("GetCases")
	if m.getCasesFn == nil {
		return nil, errNoCall
	}
	return m.getCasesFn(p)
}

func (m *mockArchive) CreateCase(_ context.Context, p archive.CreateCaseParams) (*archive.CaseResult, error) {
	m.count("CreateCase")
	if m.createCaseFn == nil {
		return nil, errNoCall
	}
	return m.createCaseFn(p)
}

func (m *mockArchive) UpdateCase(_ context.Context, p archive.UpdateCaseParams) (*archive.CaseResult, error) {
	m.count("UpdateCase")
	if m.updateCaseFn == nil {
		return nil, errNoCall
	}
	return m.updateCaseFn(p)
}

func (m *mockArchive) GetDocuments(_ context.Context, p archive.GetDocumentsParams) ([]archive.Document, error) {
	m.count("GetDocuments")
	if m.getDocumentsFn == nil {
		return nil, errNoCall
	}
	return m.getDocumentsFn(p)
}

func (m *mockArchive) CreateDocument(_ context.Context, p archive.CreateDocumentParams) (*archive.DocumentResult, error) {
	m.count("CreateDocument")
	if m.createDocumentFn == nil {
		return nil, errNoCall
	}
	return m.createDocumentFn(p)
}

func (m *mockArchive) GetProjects(_ context.Context, p archive.GetProjectsParams) ([]archive.Project, error) {
	m.count("GetProjects")
	if m.getProjectsFn == nil {
		return nil, errNoCall
	}
	return m.getProjectsFn(p)
}

func (m *mockArchive) SyncEnterprise(_ context.Context, orgnr string) (*archive.Enterprise, error) {
	m.count("SyncEnterprise")
	if m.syncEnterpriseFn == nil {
		return nil, errNoCall
	}
	return m.syncEnterpriseFn(orgnr)
}

// stubHandler returns a fixed match and records whether it was asked.
type stubHandler struct {
	name    string
	match   emailtypes.Match
	err     error
	invoked bool
}

func (s *stubHandler) Type() string         { return s.name }
func (s *stubHandler) Title() string        { return s.name }
func (s *stubHandler) Enabled() bool        { return true }
func (s *stubHandler) IncludeFunFact() bool { return false }

func (s *stubHandler) MatchCriteria(context.Context, *mail.Message) (emailtypes.Match, error) {
	s.invoked = true
	return s.match, s.err
}

func (s *stubHandler) HandleMessage(context.Context, *flowstatus.FlowStatus) (string, error) {
	return "handled", nil
}

func testConfig(t *testing.T) emailtypes.Config {
	t.Helper()
	cfg := emailtypes.Config{
		IntakeAddress:    intake,
		EpostInnCategory: epostInn,
		Loyvegaranti:     emailtypes.LoyvegarantiConfig{ResponsibleEnterpriseRecno: "200"},
		Pengetransporten: emailtypes.ForwardConfig{ForwardAddresses: accounting},
		Innsyn:           emailtypes.ForwardConfig{ForwardAddresses: []string{"innsyn@fylke.no"}},
	}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	return cfg
}

func newFactory(cfg emailtypes.Config, tr mail.Transport, arc archive.Service, req assistant.Requester) *emailtypes.Factory {
	return emailtypes.NewFactory(cfg, emailtypes.Deps{
		Mail:      tr,
		Archive:   arc,
		Assistant: req,
		Logger:    discard(),
		Now:       func() time.Time { return now },
	})
}

func mustCreate(t *testing.T, f *emailtypes.Factory, name string) emailtypes.Handler {
	t.Helper()
	h, err := f.Create(name)
	if err != nil {
		t.Fatalf("Create(%s): %v", name, err)
	}
	return h
}
