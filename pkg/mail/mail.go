// Package mail defines the message model and transport contract used to read and
// file messages from the intake mailbox. Concrete transports live in the graph
// and imap subpackages.
package mail

import (
	"context"
	"strings"
	"time"
)

// BodyType identifies the encoding of a message body.
type BodyType string

const (
	BodyText BodyType = "text"
	BodyHTML BodyType = "html"
)

// Body is the content of a message together with its content type.
type Body struct {
	ContentType BodyType `json:"contentType"`
	Content     string   `json:"content"`
}

// Address is a single mailbox address with an optional display name.
type Address struct {
	Name    string `json:"name,omitempty"`
	Address string `json:"address"`
}

// Message is the transport-neutral snapshot of a mail message.
// ID is opaque and only meaningful to the transport that produced it.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId,omitempty"`
	ParentFolderID string    `json:"parentFolderId,omitempty"`
	Subject        string    `json:"subject"`
	Body           Body      `json:"body"`
	From           Address   `json:"from"`
	To             []Address `json:"toRecipients"`
	ReceivedAt     time.Time `json:"receivedDateTime"`
	HasAttachments bool      `json:"hasAttachments"`
}

// Attachment is a file attached to a message.
type Attachment struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Data        []byte `json:"data"`
}

// Folder is a mailbox folder. Children is only populated by callers that walk the tree.
type Folder struct {
	ID               string   `json:"id"`
	DisplayName      string   `json:"displayName"`
	ChildFolderCount int      `json:"childFolderCount"`
	Children         []Folder `json:"children,omitempty"`
}

// ListOptions narrows a folder listing. Messages are always returned in
// ascending received order.
type ListOptions struct {
	ReceivedBefore time.Time
	Top            int
}

// Reply describes a reply sent on behalf of the intake mailbox.
type Reply struct {
	From    string
	To      []string
	Comment string
}

// Transport is the mail collaborator. Implementations are bound to a single mailbox.
type Transport interface {
	ListMessages(ctx context.Context, folderID string, opts ListOptions) ([]Message, error)
	GetMessage(ctx context.Context, id string) (*Message, error)
	Raw(ctx context.Context, id string) ([]byte, error)
	Attachments(ctx context.Context, id string) ([]Attachment, error)

	Move(ctx context.Context, id, folderID string) (*Message, error)
	Copy(ctx context.Context, id, folderID string) (*Message, error)

	// UpdateBody replaces the body of a message and returns the id the
	// message has after the update.
	UpdateBody(ctx context.Context, id string, body Body) (string, error)

	Forward(ctx context.Context, id string, to []string, comment string) error
	Reply(ctx context.Context, id string, reply Reply) error

	ListFolders(ctx context.Context) ([]Folder, error)
	ChildFolders(ctx context.Context, folderID string) ([]Folder, error)
}

// SenderAddress returns the lower-cased sender address of m.
func SenderAddress(m *Message) string {
	return strings.ToLower(strings.TrimSpace(m.From.Address))
}

// IsAddressedSolelyTo reports whether m has exactly one To recipient and that
// recipient equals address, ignoring case.
func IsAddressedSolelyTo(m *Message, address string) bool {
	if len(m.To) != 1 {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(m.To[0].Address), strings.TrimSpace(address))
}

// WithBannerHTML prepends banner to the body of m and returns the result as HTML.
// Plain text bodies are wrapped in a pre block so line breaks survive.
func WithBannerHTML(banner string, body Body) Body {
	content := body.Content
	if body.ContentType == BodyText {
		content = "<pre>" + content + "</pre>"
	}
	return Body{ContentType: BodyHTML, Content: banner + content}
}
