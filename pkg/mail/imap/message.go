package imap

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	_ "github.com/emersion/go-message/charset"
	gomail "github.com/emersion/go-message/mail"

	"github.com/JaimeStill/postmottak/pkg/mail"
)

type parsedMessage struct {
	header      gomail.Header
	body        mail.Body
	attachments []mail.Attachment
}

// parseMessage extracts the preferred body and the file attachments from a
// raw RFC 5322 message. HTML wins over plain text when both are present.
func parseMessage(raw []byte) (*parsedMessage, error) {
	mr, err := gomail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	defer mr.Close()

	out := &parsedMessage{header: mr.Header}
	var plain, html string
	var haveHTML bool

	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		switch h := p.Header.(type) {
		case *gomail.InlineHeader:
			ct, _, _ := h.ContentType()
			data, err := io.ReadAll(p.Body)
			if err != nil {
				return nil, err
			}
			switch {
			case ct == "text/html" && !haveHTML:
				html = string(data)
				haveHTML = true
			case (ct == "text/plain" || ct == "") && plain == "":
				plain = string(data)
			}
		case *gomail.AttachmentHeader:
			name, _ := h.Filename()
			ct, _, _ := h.ContentType()
			data, err := io.ReadAll(p.Body)
			if err != nil {
				return nil, err
			}
			out.attachments = append(out.attachments, mail.Attachment{Name: name, ContentType: ct, Data: data})
		}
	}

	if haveHTML {
		out.body = mail.Body{ContentType: mail.BodyHTML, Content: html}
	} else {
		out.body = mail.Body{ContentType: mail.BodyText, Content: plain}
	}
	return out, nil
}

// rebuildWithBody returns raw with its body replaced by body while keeping the
// original headers and attachments.
func rebuildWithBody(raw []byte, body mail.Body) ([]byte, string, error) {
	parsed, err := parseMessage(raw)
	if err != nil {
		return nil, "", err
	}

	header := parsed.header.Copy()
	header.Del("Content-Transfer-Encoding")
	headerID, _ := header.MessageID()

	var buf bytes.Buffer
	if err := writeMessage(&buf, header, body, parsed.attachments); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), headerID, nil
}

func buildForward(from string, to []string, comment string, raw []byte) ([]byte, error) {
	parsed, err := parseMessage(raw)
	if err != nil {
		return nil, err
	}
	subject, _ := parsed.header.Subject()

	header := newHeader(from, to, prefixSubject("VS: ", subject))
	if err := header.GenerateMessageID(); err != nil {
		return nil, err
	}

	body := mail.WithBannerHTML(comment, parsed.body)
	var buf bytes.Buffer
	if err := writeMessage(&buf, header, body, parsed.attachments); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func buildReply(from string, to []string, comment string, raw []byte) ([]byte, error) {
	parsed, err := parseMessage(raw)
	if err != nil {
		return nil, err
	}
	subject, _ := parsed.header.Subject()

	header := newHeader(from, to, prefixSubject("SV: ", subject))
	if err := header.GenerateMessageID(); err != nil {
		return nil, err
	}
	if id, err := parsed.header.MessageID(); err == nil && id != "" {
		header.SetMsgIDList("In-Reply-To", []string{id})
		header.SetMsgIDList("References", []string{id})
	}

	var buf bytes.Buffer
	if err := writeMessage(&buf, header, mail.Body{ContentType: mail.BodyHTML, Content: comment}, nil); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func newHeader(from string, to []string, subject string) gomail.Header {
	var h gomail.Header
	h.SetDate(time.Now())
	h.SetAddressList("From", []*gomail.Address{{Address: from}})
	list := make([]*gomail.Address, 0, len(to))
	for _, a := range to {
		list = append(list, &gomail.Address{Address: a})
	}
	h.SetAddressList("To", list)
	h.SetSubject(subject)
	return h
}

func prefixSubject(prefix, subject string) string {
	if strings.HasPrefix(strings.ToUpper(subject), strings.ToUpper(prefix)) {
		return subject
	}
	return prefix + subject
}

func contentType(b mail.Body) string {
	if b.ContentType == mail.BodyHTML {
		return "text/html"
	}
	return "text/plain"
}

func writeMessage(w io.Writer, header gomail.Header, body mail.Body, attachments []mail.Attachment) error {
	if len(attachments) == 0 {
		header.SetContentType(contentType(body), map[string]string{"charset": "utf-8"})
		header.Set("Content-Transfer-Encoding", "quoted-printable")
		bw, err := gomail.CreateSingleInlineWriter(w, header)
		if err != nil {
			return err
		}
		if _, err := io.WriteString(bw, body.Content); err != nil {
			return err
		}
		return bw.Close()
	}

	mw, err := gomail.CreateWriter(w, header)
	if err != nil {
		return err
	}

	var ih gomail.InlineHeader
	ih.SetContentType(contentType(body), map[string]string{"charset": "utf-8"})
	ih.Set("Content-Transfer-Encoding", "quoted-printable")
	pw, err := mw.CreateSingleInline(ih)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(pw, body.Content); err != nil {
		return err
	}
	if err := pw.Close(); err != nil {
		return err
	}

	for _, a := range attachments {
		var ah gomail.AttachmentHeader
		ct := a.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		ah.SetContentType(ct, nil)
		ah.SetFilename(a.Name)
		ah.Set("Content-Transfer-Encoding", "base64")
		aw, err := mw.CreateAttachment(ah)
		if err != nil {
			return fmt.Errorf("attachment %s: %w", a.Name, err)
		}
		if _, err := aw.Write(a.Data); err != nil {
			return err
		}
		if err := aw.Close(); err != nil {
			return err
		}
	}

	return mw.Close()
}
