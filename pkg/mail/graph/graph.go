// Package graph implements mail.Transport against the Microsoft Graph mail API.
package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"

	"github.com/JaimeStill/postmottak/pkg/mail"
)

const fileAttachmentType = "#microsoft.graph.fileAttachment"

// Transport talks to the Graph REST API on behalf of one mailbox.
type Transport struct {
	baseURL string
	mailbox string
	scope   string
	cred    azcore.TokenCredential
	client  *http.Client
	logger  *slog.Logger
}

// New creates a Graph transport bound to cfg.Mailbox.
func New(cfg mail.Config, cred azcore.TokenCredential, client *http.Client, logger *slog.Logger) *Transport {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &Transport{
		baseURL: strings.TrimRight(cfg.Graph.BaseURL, "/"),
		mailbox: cfg.Mailbox,
		scope:   cfg.Graph.Scope,
		cred:    cred,
		client:  client,
		logger:  logger.With("system", "mail", "transport", "graph"),
	}
}

func (t *Transport) ListMessages(ctx context.Context, folderID string, opts mail.ListOptions) ([]mail.Message, error) {
	q := url.Values{}
	q.Set("$orderby", "receivedDateTime asc")
	if opts.Top > 0 {
		q.Set("$top", strconv.Itoa(opts.Top))
	}
	if !opts.ReceivedBefore.IsZero() {
		q.Set("$filter", "receivedDateTime lt "+opts.ReceivedBefore.UTC().Format(time.RFC3339))
	}

	var page struct {
		Value []message `json:"value"`
	}
	path := fmt.Sprintf("mailFolders/%s/messages?%s", url.PathEscape(folderID), q.Encode())
	if err := t.do(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, fmt.Errorf("list messages in %s: %w", folderID, err)
	}

	msgs := make([]mail.Message, 0, len(page.Value))
	for _, m := range page.Value {
		msgs = append(msgs, m.toMail())
	}

	t.logger.Info("retrieved messages", "count", len(msgs), "folder", folderID)
	return msgs, nil
}

func (t *Transport) GetMessage(ctx context.Context, id string) (*mail.Message, error) {
	var m message
	if err := t.do(ctx, http.MethodGet, "messages/"+url.PathEscape(id), nil, &m); err != nil {
		return nil, fmt.Errorf("get message %s: %w", id, err)
	}
	out := m.toMail()
	return &out, nil
}

func (t *Transport) Raw(ctx context.Context, id string) ([]byte, error) {
	req, err := t.newRequest(ctx, http.MethodGet, "messages/"+url.PathEscape(id)+"/$value", nil)
	if err != nil {
		return nil, err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("raw message %s: %w", id, err)
	}
	defer resp.Body.Close()

	if err := checkResponse(resp); err != nil {
		return nil, fmt.Errorf("raw message %s: %w", id, err)
	}
	return io.ReadAll(resp.Body)
}

func (t *Transport) Attachments(ctx context.Context, id string) ([]mail.Attachment, error) {
	var page struct {
		Value []attachment `json:"value"`
	}
	if err := t.do(ctx, http.MethodGet, "messages/"+url.PathEscape(id)+"/attachments", nil, &page); err != nil {
		return nil, fmt.Errorf("attachments for %s: %w", id, err)
	}

	var out []mail.Attachment
	for _, a := range page.Value {
		if a.ODataType != fileAttachmentType {
			t.logger.Debug("skipping non-file attachment", "message_id", id, "type", a.ODataType, "name", a.Name)
			continue
		}
		out = append(out, mail.Attachment{
			Name:        a.Name,
			ContentType: a.ContentType,
			Data:        a.ContentBytes,
		})
	}
	return out, nil
}

func (t *Transport) Move(ctx context.Context, id, folderID string) (*mail.Message, error) {
	return t.relocate(ctx, "move", id, folderID)
}

func (t *Transport) Copy(ctx context.Context, id, folderID string) (*mail.Message, error) {
	return t.relocate(ctx, "copy", id, folderID)
}

func (t *Transport) relocate(ctx context.Context, action, id, folderID string) (*mail.Message, error) {
	body := map[string]string{"destinationId": folderID}
	var m message
	if err := t.do(ctx, http.MethodPost, "messages/"+url.PathEscape(id)+"/"+action, body, &m); err != nil {
		return nil, fmt.Errorf("%s message %s to %s: %w", action, id, folderID, err)
	}
	out := m.toMail()
	return &out, nil
}

func (t *Transport) UpdateBody(ctx context.Context, id string, body mail.Body) (string, error) {
	patch := map[string]any{"body": itemBody{ContentType: string(body.ContentType), Content: body.Content}}
	if err := t.do(ctx, http.MethodPatch, "messages/"+url.PathEscape(id), patch, nil); err != nil {
		return "", fmt.Errorf("patch message %s: %w", id, err)
	}
	return id, nil
}

func (t *Transport) Forward(ctx context.Context, id string, to []string, comment string) error {
	if len(to) == 0 {
		return mail.ErrNoRecipients
	}
	body := map[string]any{
		"comment":      comment,
		"toRecipients": recipients(to),
	}
	if err := t.do(ctx, http.MethodPost, "messages/"+url.PathEscape(id)+"/forward", body, nil); err != nil {
		return fmt.Errorf("forward message %s: %w", id, err)
	}
	return nil
}

func (t *Transport) Reply(ctx context.Context, id string, r mail.Reply) error {
	if len(r.To) == 0 {
		return mail.ErrNoRecipients
	}
	body := map[string]any{
		"comment": r.Comment,
		"message": map[string]any{
			"from":         recipient{EmailAddress: emailAddress{Address: r.From}},
			"toRecipients": recipients(r.To),
			"replyTo":      recipients(r.To),
			"isRead":       true,
		},
	}
	if err := t.do(ctx, http.MethodPost, "messages/"+url.PathEscape(id)+"/reply", body, nil); err != nil {
		return fmt.Errorf("reply to message %s: %w", id, err)
	}
	return nil
}

func (t *Transport) ListFolders(ctx context.Context) ([]mail.Folder, error) {
	return t.folders(ctx, "mailFolders")
}

func (t *Transport) ChildFolders(ctx context.Context, folderID string) ([]mail.Folder, error) {
	return t.folders(ctx, "mailFolders/"+url.PathEscape(folderID)+"/childFolders")
}

func (t *Transport) folders(ctx context.Context, path string) ([]mail.Folder, error) {
	var page struct {
		Value []mail.Folder `json:"value"`
	}
	if err := t.do(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	return page.Value, nil
}

func (t *Transport) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := t.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkResponse(resp); err != nil {
		return err
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (t *Transport) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	token, err := t.cred.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{t.scope}})
	if err != nil {
		return nil, fmt.Errorf("acquire graph token: %w", err)
	}

	endpoint := fmt.Sprintf("%s/users/%s/%s", t.baseURL, url.PathEscape(t.mailbox), path)
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token.Token)
	req.Header.Set("Prefer", `IdType="ImmutableId"`)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func checkResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var e struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	data, _ := io.ReadAll(resp.Body)
	_ = json.Unmarshal(data, &e)

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", mail.ErrNotFound, e.Error.Message)
	}
	if e.Error.Code != "" {
		return fmt.Errorf("graph %d %s: %s", resp.StatusCode, e.Error.Code, e.Error.Message)
	}
	return fmt.Errorf("graph %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
}
