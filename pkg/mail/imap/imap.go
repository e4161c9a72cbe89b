// Package imap implements mail.Transport over IMAP with outgoing mail sent through SMTP.
//
// Message ids have the form "{mailbox}:{uid}" and folder ids are full mailbox names.
// Each operation opens its own connection.
package imap

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"slices"
	"strconv"
	"strings"
	"time"

	imapv2 "github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/JaimeStill/postmottak/pkg/mail"
)

// Transport is an IMAP-backed mail.Transport.
type Transport struct {
	imap    mail.IMAPConfig
	smtp    mail.SMTPConfig
	mailbox string
	logger  *slog.Logger
}

// New creates an IMAP transport from cfg.
func New(cfg mail.Config, logger *slog.Logger) *Transport {
	return &Transport{
		imap:    cfg.IMAP,
		smtp:    cfg.SMTP,
		mailbox: cfg.Mailbox,
		logger:  logger.With("system", "mail", "transport", "imap"),
	}
}

type messageID struct {
	mailbox string
	uid     imapv2.UID
}

func (id messageID) String() string {
	return fmt.Sprintf("%s:%d", id.mailbox, id.uid)
}

func parseID(s string) (messageID, error) {
	i := strings.LastIndex(s, ":")
	if i <= 0 || i == len(s)-1 {
		return messageID{}, fmt.Errorf("%w: %q", mail.ErrInvalidID, s)
	}
	uid, err := strconv.ParseUint(s[i+1:], 10, 32)
	if err != nil || uid == 0 {
		return messageID{}, fmt.Errorf("%w: %q", mail.ErrInvalidID, s)
	}
	return messageID{mailbox: s[:i], uid: imapv2.UID(uid)}, nil
}

func (t *Transport) dial(ctx context.Context) (*imapclient.Client, func(), error) {
	address := net.JoinHostPort(t.imap.Host, strconv.Itoa(t.imap.Port))

	var (
		client *imapclient.Client
		err    error
	)
	if t.imap.TLS {
		client, err = imapclient.DialTLS(address, &imapclient.Options{
			TLSConfig: &tls.Config{ServerName: t.imap.Host},
		})
	} else {
		client, err = imapclient.DialInsecure(address, nil)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("dial imap %s: %w", address, err)
	}

	if err := client.Login(t.imap.Username, t.imap.Password).Wait(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("imap login: %w", err)
	}

	stopClose := context.AfterFunc(ctx, func() {
		_ = client.Close()
	})

	cleanup := func() {
		stopClose()
		if ctx.Err() == nil {
			if err := client.Logout().Wait(); err != nil {
				t.logger.Debug("imap logout failed", "error", err)
			}
		}
		_ = client.Close()
	}

	return client, cleanup, nil
}

func (t *Transport) ListMessages(ctx context.Context, folderID string, opts mail.ListOptions) ([]mail.Message, error) {
	client, cleanup, err := t.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	if _, err := client.Select(folderID, nil).Wait(); err != nil {
		return nil, fmt.Errorf("select %s: %w", folderID, err)
	}

	data, err := client.UIDSearch(&imapv2.SearchCriteria{}, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", folderID, err)
	}
	uids := data.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}

	msgs, err := fetchMessages(client, folderID, uids)
	if err != nil {
		return nil, err
	}

	if !opts.ReceivedBefore.IsZero() {
		msgs = slices.DeleteFunc(msgs, func(m mail.Message) bool {
			return !m.ReceivedAt.Before(opts.ReceivedBefore)
		})
	}
	slices.SortStableFunc(msgs, func(a, b mail.Message) int {
		return a.ReceivedAt.Compare(b.ReceivedAt)
	})
	if opts.Top > 0 && len(msgs) > opts.Top {
		msgs = msgs[:opts.Top]
	}

	t.logger.Info("retrieved messages", "count", len(msgs), "folder", folderID)
	return msgs, nil
}

func (t *Transport) GetMessage(ctx context.Context, id string) (*mail.Message, error) {
	mid, err := parseID(id)
	if err != nil {
		return nil, err
	}

	client, cleanup, err := t.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	return getMessage(client, mid)
}

func (t *Transport) Raw(ctx context.Context, id string) ([]byte, error) {
	mid, err := parseID(id)
	if err != nil {
		return nil, err
	}

	client, cleanup, err := t.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	raw, _, err := fetchRaw(client, mid)
	return raw, err
}

func (t *Transport) Attachments(ctx context.Context, id string) ([]mail.Attachment, error) {
	raw, err := t.Raw(ctx, id)
	if err != nil {
		return nil, err
	}
	parsed, err := parseMessage(raw)
	if err != nil {
		return nil, fmt.Errorf("parse message %s: %w", id, err)
	}
	return parsed.attachments, nil
}

func (t *Transport) Move(ctx context.Context, id, folderID string) (*mail.Message, error) {
	return t.relocate(ctx, id, folderID, true)
}

func (t *Transport) Copy(ctx context.Context, id, folderID string) (*mail.Message, error) {
	return t.relocate(ctx, id, folderID, false)
}

func (t *Transport) relocate(ctx context.Context, id, folderID string, move bool) (*mail.Message, error) {
	mid, err := parseID(id)
	if err != nil {
		return nil, err
	}

	client, cleanup, err := t.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	src, err := getMessage(client, mid)
	if err != nil {
		return nil, err
	}
	headerID, err := fetchHeaderMessageID(client, mid)
	if err != nil {
		return nil, err
	}

	set := imapv2.UIDSetNum(mid.uid)
	if move {
		if _, err := client.Move(set, folderID).Wait(); err != nil {
			return nil, fmt.Errorf("move %s to %s: %w", id, folderID, err)
		}
	} else {
		if _, err := client.Copy(set, folderID).Wait(); err != nil {
			return nil, fmt.Errorf("copy %s to %s: %w", id, folderID, err)
		}
	}

	dest, err := locate(client, folderID, headerID, src.ReceivedAt)
	if err != nil {
		return nil, err
	}
	return getMessage(client, dest)
}

// UpdateBody rewrites the message with the new body, appends it to the same
// mailbox and removes the original. The returned id refers to the new copy.
func (t *Transport) UpdateBody(ctx context.Context, id string, body mail.Body) (string, error) {
	mid, err := parseID(id)
	if err != nil {
		return "", err
	}

	client, cleanup, err := t.dial(ctx)
	if err != nil {
		return "", err
	}
	defer cleanup()

	raw, received, err := fetchRaw(client, mid)
	if err != nil {
		return "", err
	}

	rebuilt, headerID, err := rebuildWithBody(raw, body)
	if err != nil {
		return "", fmt.Errorf("rebuild message %s: %w", id, err)
	}

	cmd := client.Append(mid.mailbox, int64(len(rebuilt)), &imapv2.AppendOptions{Time: received})
	if _, err := cmd.Write(rebuilt); err != nil {
		return "", fmt.Errorf("append write: %w", err)
	}
	if err := cmd.Close(); err != nil {
		return "", fmt.Errorf("append close: %w", err)
	}
	appended, err := cmd.Wait()
	if err != nil {
		return "", fmt.Errorf("append wait: %w", err)
	}

	if err := deleteUID(client, mid); err != nil {
		return "", err
	}

	if appended != nil && appended.UID != 0 {
		return messageID{mailbox: mid.mailbox, uid: appended.UID}.String(), nil
	}

	next, err := locate(client, mid.mailbox, headerID, received)
	if err != nil {
		return "", err
	}
	return next.String(), nil
}

func (t *Transport) Forward(ctx context.Context, id string, to []string, comment string) error {
	if len(to) == 0 {
		return mail.ErrNoRecipients
	}
	raw, err := t.Raw(ctx, id)
	if err != nil {
		return err
	}
	msg, err := buildForward(t.mailbox, to, comment, raw)
	if err != nil {
		return fmt.Errorf("build forward for %s: %w", id, err)
	}
	return t.send(to, msg)
}

func (t *Transport) Reply(ctx context.Context, id string, r mail.Reply) error {
	if len(r.To) == 0 {
		return mail.ErrNoRecipients
	}
	raw, err := t.Raw(ctx, id)
	if err != nil {
		return err
	}
	from := r.From
	if from == "" {
		from = t.mailbox
	}
	msg, err := buildReply(from, r.To, r.Comment, raw)
	if err != nil {
		return fmt.Errorf("build reply for %s: %w", id, err)
	}
	return t.send(r.To, msg)
}

func (t *Transport) ListFolders(ctx context.Context) ([]mail.Folder, error) {
	return t.folders(ctx, "")
}

func (t *Transport) ChildFolders(ctx context.Context, folderID string) ([]mail.Folder, error) {
	return t.folders(ctx, folderID)
}

func (t *Transport) folders(ctx context.Context, parent string) ([]mail.Folder, error) {
	client, cleanup, err := t.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	list, err := client.List("", "*", nil).Collect()
	if err != nil {
		return nil, fmt.Errorf("list mailboxes: %w", err)
	}

	names := make([]string, 0, len(list))
	var delim rune
	for _, d := range list {
		names = append(names, d.Mailbox)
		if d.Delim != 0 {
			delim = d.Delim
		}
	}
	return folderTree(names, delim, parent), nil
}

// folderTree returns the direct children of parent, or the top level when
// parent is empty.
func folderTree(names []string, delim rune, parent string) []mail.Folder {
	sep := string(delim)
	isChild := func(name, of string) bool {
		if of == "" {
			return delim == 0 || !strings.Contains(name, sep)
		}
		if delim == 0 || !strings.HasPrefix(name, of+sep) {
			return false
		}
		return !strings.Contains(strings.TrimPrefix(name, of+sep), sep)
	}

	var out []mail.Folder
	for _, name := range names {
		if !isChild(name, parent) {
			continue
		}
		f := mail.Folder{ID: name, DisplayName: name}
		if delim != 0 {
			f.DisplayName = name[strings.LastIndex(name, sep)+1:]
		}
		for _, other := range names {
			if isChild(other, name) {
				f.ChildFolderCount++
			}
		}
		out = append(out, f)
	}
	return out
}

func fetchMessages(client *imapclient.Client, mailbox string, uids []imapv2.UID) ([]mail.Message, error) {
	section := &imapv2.FetchItemBodySection{Peek: true}
	opts := &imapv2.FetchOptions{
		UID:          true,
		Envelope:     true,
		InternalDate: true,
		BodySection:  []*imapv2.FetchItemBodySection{section},
	}

	bufs, err := client.Fetch(imapv2.UIDSetNum(uids...), opts).Collect()
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", mailbox, err)
	}

	msgs := make([]mail.Message, 0, len(bufs))
	for _, buf := range bufs {
		raw := buf.FindBodySection(section)
		parsed, err := parseMessage(raw)
		if err != nil {
			return nil, fmt.Errorf("parse %s:%d: %w", mailbox, buf.UID, err)
		}

		m := mail.Message{
			ID:             messageID{mailbox: mailbox, uid: buf.UID}.String(),
			ParentFolderID: mailbox,
			Body:           parsed.body,
			ReceivedAt:     buf.InternalDate,
			HasAttachments: len(parsed.attachments) > 0,
		}
		if env := buf.Envelope; env != nil {
			m.Subject = env.Subject
			m.ConversationID = env.MessageID
			if len(env.From) > 0 {
				m.From = mail.Address{Name: env.From[0].Name, Address: env.From[0].Addr()}
			}
			for _, a := range env.To {
				m.To = append(m.To, mail.Address{Name: a.Name, Address: a.Addr()})
			}
			if m.ReceivedAt.IsZero() {
				m.ReceivedAt = env.Date
			}
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

func getMessage(client *imapclient.Client, mid messageID) (*mail.Message, error) {
	if _, err := client.Select(mid.mailbox, nil).Wait(); err != nil {
		return nil, fmt.Errorf("select %s: %w", mid.mailbox, err)
	}
	msgs, err := fetchMessages(client, mid.mailbox, []imapv2.UID{mid.uid})
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, fmt.Errorf("%w: %s", mail.ErrNotFound, mid)
	}
	return &msgs[0], nil
}

func fetchRaw(client *imapclient.Client, mid messageID) ([]byte, time.Time, error) {
	if _, err := client.Select(mid.mailbox, nil).Wait(); err != nil {
		return nil, time.Time{}, fmt.Errorf("select %s: %w", mid.mailbox, err)
	}

	section := &imapv2.FetchItemBodySection{Peek: true}
	bufs, err := client.Fetch(imapv2.UIDSetNum(mid.uid), &imapv2.FetchOptions{
		UID:          true,
		InternalDate: true,
		BodySection:  []*imapv2.FetchItemBodySection{section},
	}).Collect()
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("fetch %s: %w", mid, err)
	}
	if len(bufs) == 0 {
		return nil, time.Time{}, fmt.Errorf("%w: %s", mail.ErrNotFound, mid)
	}
	return bufs[0].FindBodySection(section), bufs[0].InternalDate, nil
}

func fetchHeaderMessageID(client *imapclient.Client, mid messageID) (string, error) {
	bufs, err := client.Fetch(imapv2.UIDSetNum(mid.uid), &imapv2.FetchOptions{UID: true, Envelope: true}).Collect()
	if err != nil {
		return "", fmt.Errorf("fetch envelope %s: %w", mid, err)
	}
	if len(bufs) == 0 || bufs[0].Envelope == nil {
		return "", fmt.Errorf("%w: %s", mail.ErrNotFound, mid)
	}
	return bufs[0].Envelope.MessageID, nil
}

var errNotLocated = errors.New("message not located after relocation")

// locate finds a message in mailbox by its Message-ID header, preferring the
// highest UID so the most recent copy wins.
func locate(client *imapclient.Client, mailbox, headerID string, received time.Time) (messageID, error) {
	if headerID == "" {
		return messageID{}, fmt.Errorf("%w: missing Message-ID in %s", errNotLocated, mailbox)
	}
	if _, err := client.Select(mailbox, nil).Wait(); err != nil {
		return messageID{}, fmt.Errorf("select %s: %w", mailbox, err)
	}

	data, err := client.UIDSearch(&imapv2.SearchCriteria{
		Header: []imapv2.SearchCriteriaHeaderField{{Key: "Message-Id", Value: headerID}},
	}, nil).Wait()
	if err != nil {
		return messageID{}, fmt.Errorf("search %s: %w", mailbox, err)
	}

	uids := data.AllUIDs()
	if len(uids) == 0 {
		return messageID{}, fmt.Errorf("%w: %s in %s (received %s)", errNotLocated, headerID, mailbox, received.Format(time.RFC3339))
	}
	return messageID{mailbox: mailbox, uid: slices.Max(uids)}, nil
}

func deleteUID(client *imapclient.Client, mid messageID) error {
	if _, err := client.Select(mid.mailbox, nil).Wait(); err != nil {
		return fmt.Errorf("select %s: %w", mid.mailbox, err)
	}
	err := client.Store(imapv2.UIDSetNum(mid.uid), &imapv2.StoreFlags{
		Op:     imapv2.StoreFlagsAdd,
		Silent: true,
		Flags:  []imapv2.Flag{imapv2.FlagDeleted},
	}, nil).Close()
	if err != nil {
		return fmt.Errorf("flag %s deleted: %w", mid, err)
	}
	if err := client.Expunge().Close(); err != nil {
		return fmt.Errorf("expunge %s: %w", mid.mailbox, err)
	}
	return nil
}
