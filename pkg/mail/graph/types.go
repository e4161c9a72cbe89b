package graph

import (
	"strings"
	"time"

	"github.com/JaimeStill/postmottak/pkg/mail"
)

type emailAddress struct {
	Name    string `json:"name,omitempty"`
	Address string `json:"address"`
}

type recipient struct {
	EmailAddress emailAddress `json:"emailAddress"`
}

type itemBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type message struct {
	ID               string      `json:"id"`
	ConversationID   string      `json:"conversationId"`
	ParentFolderID   string      `json:"parentFolderId"`
	Subject          string      `json:"subject"`
	Body             itemBody    `json:"body"`
	From             *recipient  `json:"from"`
	ToRecipients     []recipient `json:"toRecipients"`
	ReceivedDateTime time.Time   `json:"receivedDateTime"`
	HasAttachments   bool        `json:"hasAttachments"`
}

// contentBytes is base64 on the wire, which encoding/json decodes into []byte.
type attachment struct {
	ODataType    string `json:"@odata.type"`
	Name         string `json:"name"`
	ContentType  string `json:"contentType"`
	ContentBytes []byte `json:"contentBytes"`
}

func (m message) toMail() mail.Message {
	out := mail.Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		ParentFolderID: m.ParentFolderID,
		Subject:        m.Subject,
		Body: mail.Body{
			ContentType: toBodyType(m.Body.ContentType),
			Content:     m.Body.Content,
		},
		ReceivedAt:     m.ReceivedDateTime,
		HasAttachments: m.HasAttachments,
	}
	if m.From != nil {
		out.From = mail.Address{Name: m.From.EmailAddress.Name, Address: m.From.EmailAddress.Address}
	}
	for _, r := range m.ToRecipients {
		out.To = append(out.To, mail.Address{Name: r.EmailAddress.Name, Address: r.EmailAddress.Address})
	}
	return out
}

func toBodyType(s string) mail.BodyType {
	if strings.EqualFold(s, "html") {
		return mail.BodyHTML
	}
	return mail.BodyText
}

func recipients(addrs []string) []recipient {
	out := make([]recipient, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, recipient{EmailAddress: emailAddress{Address: a}})
	}
	return out
}
