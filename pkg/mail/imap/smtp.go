package imap

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
)

func (t *Transport) send(to []string, msg []byte) error {
	if t.smtp.Host == "" {
		return fmt.Errorf("smtp host not configured")
	}
	addr := net.JoinHostPort(t.smtp.Host, strconv.Itoa(t.smtp.Port))

	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("dial smtp %s: %w", addr, err)
	}
	defer client.Close()

	if t.smtp.StartTLS {
		if err := client.StartTLS(&tls.Config{ServerName: t.smtp.Host}); err != nil {
			return fmt.Errorf("smtp starttls: %w", err)
		}
	}

	if t.imap.Username != "" {
		auth := smtp.PlainAuth("", t.imap.Username, t.imap.Password, t.smtp.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := client.Mail(t.mailbox); err != nil {
		return fmt.Errorf("smtp MAIL FROM: %w", err)
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp RCPT TO %s: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp DATA: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp close data: %w", err)
	}

	t.logger.Info("sent message", "recipients", len(to))
	return client.Quit()
}
