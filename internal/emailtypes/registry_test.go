package emailtypes_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/JaimeStill/postmottak/internal/emailtypes"
	"github.com/JaimeStill/postmottak/internal/results"
	"github.com/JaimeStill/postmottak/pkg/mail"
)

var folders = emailtypes.Folders{RobotLog: "robot-log", PartialMatch: "partial"}

func message(subject, body string) *mail.Message {
	return &mail.Message{
		ID:      "msg-1",
		Subject: subject,
		Body:    mail.Body{ContentType: mail.BodyHTML, Content: body},
		From:    mail.Address{Address: "someone@example.no"},
		To:      []mail.Address{{Address: intake}},
	}
}

func TestClassifyEmptyMessage(t *testing.T) {
	tests := []struct {
		name    string
		subject string
		body    string
	}{
		{"empty subject", "", "<p>hei</p>"},
		{"empty body", "Faktura", ""},
		{"whitespace body", "Faktura", "  \n "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTransport()
			arc := &mockArchive{}
			req := &mockRequester{}
			f := newFactory(testConfig(t), tr, arc, req)
			reg := emailtypes.NewRegistry(f.Handlers(), tr, folders, nil, discard())

			c, err := reg.Classify(context.Background(), message(tt.subject, tt.body))
			if err != nil {
				t.Fatalf("Classify: %v", err)
			}
			if !c.Skipped || c.Matched() {
				t.Errorf("classification: got %+v", c)
			}
			if tr.calls != 0 || arc.total() != 0 || req.calls != 0 {
				t.Errorf("collaborators called: transport %d, archive %d, agent %d", tr.calls, arc.total(), req.calls)
			}
		})
	}
}

func TestClassifyFirstYesWins(t *testing.T) {
	first := &stubHandler{name: "A", match: emailtypes.Match{Outcome: emailtypes.No, Reason: "nei"}}
	second := &stubHandler{name: "B", match: emailtypes.Match{Outcome: emailtypes.Yes, Result: results.New(results.Innsyn{IsInnsyn: true})}}
	third := &stubHandler{name: "C", match: emailtypes.Match{Outcome: emailtypes.Yes}}

	tr := newTransport()
	reg := emailtypes.NewRegistry([]emailtypes.Handler{first, second, third}, tr, folders, nil, discard())

	c, err := reg.Classify(context.Background(), message("Innsyn", "<p>hei</p>"))
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if c.Handler != second {
		t.Fatalf("handler: got %v", c.Handler)
	}
	if third.invoked {
		t.Error("handler after the first Yes must not be asked")
	}
	if len(tr.copies) != 0 {
		t.Errorf("matched message must not be copied: %v", tr.copies)
	}
	if _, ok := results.As[results.Innsyn](c.Match.Result); !ok {
		t.Errorf("result: got %+v", c.Match.Result)
	}
}

func TestClassifyUnknownMessage(t *testing.T) {
	tests := []struct {
		name       string
		handlers   []*stubHandler
		wantFolder string
		partial    bool
	}{
		{
			name: "all no",
			handlers: []*stubHandler{
				{name: "A", match: emailtypes.Match{Outcome: emailtypes.No, Reason: "feil avsender"}},
				{name: "B", match: emailtypes.Match{Outcome: emailtypes.No, Reason: "feil emne"}},
			},
			wantFolder: "robot-log",
		},
		{
			name: "one maybe",
			handlers: []*stubHandler{
				{name: "A", match: emailtypes.Match{Outcome: emailtypes.No, Reason: "feil avsender"}},
				{name: "B", match: emailtypes.Match{Outcome: emailtypes.Maybe, Reason: "AI-resultat tvetydig"}},
			},
			wantFolder: "partial",
			partial:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handlers := make([]emailtypes.Handler, len(tt.handlers))
			for i, h := range tt.handlers {
				handlers[i] = h
			}
			tr := newTransport()
			reg := emailtypes.NewRegistry(handlers, tr, folders, nil, discard())

			c, err := reg.Classify(context.Background(), message("Hei", "<p>original</p>"))
			if err != nil {
				t.Fatalf("Classify: %v", err)
			}
			if c.Matched() || c.PartialMatch != tt.partial {
				t.Fatalf("classification: got %+v", c)
			}
			if len(tr.copies) != 1 || tr.copies[0] != tt.wantFolder {
				t.Fatalf("copies: got %v, want [%s]", tr.copies, tt.wantFolder)
			}

			body, ok := tr.updates["copy-of-msg-1"]
			if !ok {
				t.Fatal("copy body not updated")
			}
			for _, h := range tt.handlers {
				if !strings.Contains(body.Content, "<b>"+h.name+"</b>: "+h.match.Reason) {
					t.Errorf("body missing reason of %s: %s", h.name, body.Content)
				}
			}
			if !strings.HasSuffix(body.Content, "<p>original</p>") || body.ContentType != mail.BodyHTML {
				t.Errorf("body: got %+v", body)
			}
		})
	}
}

func TestClassifyHandlerError(t *testing.T) {
	failing := &stubHandler{name: "A", err: errors.New("agent unavailable")}
	tr := newTransport()
	reg := emailtypes.NewRegistry([]emailtypes.Handler{failing}, tr, folders, nil, discard())

	if _, err := reg.Classify(context.Background(), message("Hei", "<p>x</p>")); err == nil {
		t.Fatal("expected error")
	}
	if tr.calls != 0 {
		t.Errorf("failed classification must not touch the mailbox, got %d calls", tr.calls)
	}
}

func TestClassifyCopyFailureIsNotFatal(t *testing.T) {
	tr := newTransport()
	tr.copyErr = errors.New("folder missing")
	reg := emailtypes.NewRegistry([]emailtypes.Handler{
		&stubHandler{name: "A", match: emailtypes.Match{Outcome: emailtypes.No}},
	}, tr, folders, nil, discard())

	c, err := reg.Classify(context.Background(), message("Hei", "<p>x</p>"))
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if c.Matched() || c.Diagnostics != "" {
		t.Errorf("classification: got %+v", c)
	}
}

func TestFactory(t *testing.T) {
	cfg := testConfig(t)
	f := newFactory(cfg, newTransport(), &mockArchive{}, &mockRequester{})

	if _, err := f.Create("Template"); !errors.Is(err, emailtypes.ErrUnknownType) {
		t.Errorf("got %v, want ErrUnknownType", err)
	}

	innsyn := mustCreate(t, f, emailtypes.TypeInnsyn)
	if innsyn.Enabled() {
		t.Error("Innsyn must be disabled by default")
	}

	var got []string
	for _, h := range f.Handlers() {
		got = append(got, h.Type())
	}
	want := []string{emailtypes.TypeRf1350, emailtypes.TypeLoyvegaranti, emailtypes.TypePengetransporten}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("handlers: got %v, want %v", got, want)
	}

	cfg.Order = []string{emailtypes.TypePengetransporten, emailtypes.TypeRf1350}
	got = got[:0]
	for _, h := range newFactory(cfg, newTransport(), &mockArchive{}, &mockRequester{}).Handlers() {
		got = append(got, h.Type())
	}
	if strings.Join(got, ",") != "Pengetransporten,Rf1350" {
		t.Errorf("configured order: got %v", got)
	}
}
