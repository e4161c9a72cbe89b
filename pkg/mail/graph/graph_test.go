package graph_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"

	"github.com/JaimeStill/postmottak/pkg/mail"
	"github.com/JaimeStill/postmottak/pkg/mail/graph"
)

type staticCredential struct{}

func (staticCredential) GetToken(context.Context, policy.TokenRequestOptions) (azcore.AccessToken, error) {
	return azcore.AccessToken{Token: "test-token", ExpiresOn: time.Now().Add(time.Hour)}, nil
}

func newTransport(t *testing.T, h http.HandlerFunc) *graph.Transport {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	cfg := mail.Config{
		Mailbox: "postmottak@example.no",
		Graph:   mail.GraphConfig{BaseURL: srv.URL, Scope: "https://graph.microsoft.com/.default"},
	}
	return graph.New(cfg, staticCredential{}, srv.Client(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestListMessages(t *testing.T) {
	before := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	tr := newTransport(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/postmottak@example.no/mailFolders/inbox/messages" {
			t.Errorf("path: got %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("authorization: got %q", got)
		}
		q := r.URL.Query()
		if q.Get("$orderby") != "receivedDateTime asc" {
			t.Errorf("orderby: got %q", q.Get("$orderby"))
		}
		if q.Get("$top") != "100" {
			t.Errorf("top: got %q", q.Get("$top"))
		}
		if q.Get("$filter") != "receivedDateTime lt 2025-03-01T12:00:00Z" {
			t.Errorf("filter: got %q", q.Get("$filter"))
		}

		w.Write([]byte(`{"value":[{
			"id":"AAMk1",
			"subject":"Faktura 123",
			"body":{"contentType":"html","content":"<p>hei</p>"},
			"from":{"emailAddress":{"name":"Leverandør","address":"faktura@leverandor.no"}},
			"toRecipients":[{"emailAddress":{"address":"postmottak@example.no"}}],
			"receivedDateTime":"2025-02-28T08:00:00Z",
			"hasAttachments":true
		}]}`))
	})

	msgs, err := tr.ListMessages(context.Background(), "inbox", mail.ListOptions{ReceivedBefore: before, Top: 100})
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("len: got %d, want 1", len(msgs))
	}

	m := msgs[0]
	if m.ID != "AAMk1" || m.Subject != "Faktura 123" {
		t.Errorf("message: got %+v", m)
	}
	if m.Body.ContentType != mail.BodyHTML {
		t.Errorf("body type: got %s", m.Body.ContentType)
	}
	if mail.SenderAddress(&m) != "faktura@leverandor.no" {
		t.Errorf("sender: got %s", mail.SenderAddress(&m))
	}
	if !mail.IsAddressedSolelyTo(&m, "POSTMOTTAK@example.no") {
		t.Error("expected message to be addressed solely to the intake mailbox")
	}
	if !m.HasAttachments {
		t.Error("expected HasAttachments")
	}
}

func TestAttachmentsSkipsItemAttachments(t *testing.T) {
	tr := newTransport(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"value":[
			{"@odata.type":"#microsoft.graph.fileAttachment","name":"faktura.pdf","contentType":"application/pdf","contentBytes":"JVBERi0="},
			{"@odata.type":"#microsoft.graph.itemAttachment","name":"videresendt"}
		]}`))
	})

	atts, err := tr.Attachments(context.Background(), "AAMk1")
	if err != nil {
		t.Fatalf("Attachments: %v", err)
	}
	if len(atts) != 1 {
		t.Fatalf("len: got %d, want 1", len(atts))
	}
	if atts[0].Name != "faktura.pdf" || string(atts[0].Data) != "%PDF-" {
		t.Errorf("attachment: got %+v", atts[0])
	}
}

func TestForward(t *testing.T) {
	var got map[string]any
	tr := newTransport(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/messages/AAMk1/forward") {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
	})

	if err := tr.Forward(context.Background(), "AAMk1", []string{"okonomi@example.no"}, "banner"); err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if got["comment"] != "banner" {
		t.Errorf("comment: got %v", got["comment"])
	}
	recips, _ := got["toRecipients"].([]any)
	if len(recips) != 1 {
		t.Errorf("recipients: got %v", got["toRecipients"])
	}
}

func TestForwardRequiresRecipients(t *testing.T) {
	tr := newTransport(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	err := tr.Forward(context.Background(), "AAMk1", nil, "banner")
	if !errors.Is(err, mail.ErrNoRecipients) {
		t.Errorf("got %v, want ErrNoRecipients", err)
	}
}

func TestUpdateBodyKeepsID(t *testing.T) {
	tr := newTransport(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("method: got %s", r.Method)
		}
		var body struct {
			Body struct {
				ContentType string `json:"contentType"`
				Content     string `json:"content"`
			} `json:"body"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if body.Body.ContentType != "html" || body.Body.Content != "<div>ok</div>" {
			t.Errorf("body: got %+v", body.Body)
		}
		w.Write([]byte(`{}`))
	})

	id, err := tr.UpdateBody(context.Background(), "AAMk1", mail.Body{ContentType: mail.BodyHTML, Content: "<div>ok</div>"})
	if err != nil {
		t.Fatalf("UpdateBody: %v", err)
	}
	if id != "AAMk1" {
		t.Errorf("id: got %s", id)
	}
}

func TestNotFoundMapsToSentinel(t *testing.T) {
	tr := newTransport(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"code":"ErrorItemNotFound","message":"The specified object was not found in the store."}}`))
	})

	_, err := tr.Move(context.Background(), "gone", "finished")
	if !errors.Is(err, mail.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
	if mail.MapHTTPStatus(err) != http.StatusNotFound {
		t.Errorf("status: got %d", mail.MapHTTPStatus(err))
	}
}

func TestChildFolders(t *testing.T) {
	tr := newTransport(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/mailFolders/root/childFolders") {
			t.Errorf("path: got %s", r.URL.Path)
		}
		w.Write([]byte(`{"value":[{"id":"f1","displayName":"Robot-logg","childFolderCount":0}]}`))
	})

	folders, err := tr.ChildFolders(context.Background(), "root")
	if err != nil {
		t.Fatalf("ChildFolders: %v", err)
	}
	if len(folders) != 1 || folders[0].DisplayName != "Robot-logg" {
		t.Errorf("folders: got %+v", folders)
	}
}
