// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursekeep Contributors

package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// SMTPConfig configures SMTPNotifier.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// StartTLS upgrades the connection when the server offers it.
	StartTLS bool
}

// Validate checks that the fields needed to send are present.
func (c SMTPConfig) Validate() error {
	if c.Host == "" {
		return oops.Code("NOTIFY_CONFIG_INVALID").With("field", "host").Errorf("smtp host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return oops.Code("NOTIFY_CONFIG_INVALID").With("field", "port").Errorf("smtp port %d out of range", c.Port)
	}
	if _, err := parseRecipient(c.From); err != nil {
		return oops.Code("NOTIFY_CONFIG_INVALID").With("field", "from").Wrap(err)
	}
	return nil
}

// SMTPNotifier sends mail through an SMTP relay.
type SMTPNotifier struct {
	cfg    SMTPConfig
	dialer net.Dialer
	now    func() time.Time
}

// NewSMTPNotifier validates cfg and creates an SMTPNotifier.
func NewSMTPNotifier(cfg SMTPConfig) (*SMTPNotifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &SMTPNotifier{cfg: cfg, now: time.Now}, nil
}

// Send delivers one message. The dial and the whole conversation honour the
// deadline of ctx when it has one.
func (n *SMTPNotifier) Send(ctx context.Context, to, subject, htmlBody string) error {
	rcpt, err := parseRecipient(to)
	if err != nil {
		return err
	}
	from, _ := parseRecipient(n.cfg.From) //nolint:errcheck // validated in NewSMTPNotifier

	addr := net.JoinHostPort(n.cfg.Host, strconv.Itoa(n.cfg.Port))
	conn, err := n.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return sendError("dial", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline) //nolint:errcheck // dial succeeded; deadline best effort
	}

	client, err := smtp.NewClient(conn, n.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return sendError("handshake", addr, err)
	}
	defer client.Close() //nolint:errcheck // Quit already closed on success

	if n.cfg.StartTLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: n.cfg.Host, MinVersion: tls.VersionTLS12}); err != nil {
				return sendError("starttls", addr, err)
			}
		}
	}
	if n.cfg.Username != "" {
		auth := smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return sendError("auth", addr, err)
		}
	}

	if err := client.Mail(from.Address); err != nil {
		return sendError("mail from", addr, err)
	}
	if err := client.Rcpt(rcpt.Address); err != nil {
		return sendError("rcpt to", addr, err)
	}
	w, err := client.Data()
	if err != nil {
		return sendError("data", addr, err)
	}
	if _, err := w.Write(n.buildMessage(from.String(), rcpt.String(), subject, htmlBody)); err != nil {
		_ = w.Close()
		return sendError("write body", addr, err)
	}
	if err := w.Close(); err != nil {
		return sendError("end data", addr, err)
	}
	if err := client.Quit(); err != nil {
		return sendError("quit", addr, err)
	}
	return nil
}

func sendError(step, addr string, err error) error {
	return oops.Code("NOTIFY_SEND_FAILED").
		With("operation", "smtp "+step).
		With("addr", addr).
		Wrap(err)
}

// buildMessage renders RFC 5322 headers and the HTML body with CRLF line endings.
func (n *SMTPNotifier) buildMessage(from, to, subject, htmlBody string) []byte {
	var b bytes.Buffer
	header := func(k, v string) { fmt.Fprintf(&b, "%s: %s\r\n", k, v) }

	header("From", from)
	header("To", to)
	header("Subject", mime.QEncoding.Encode("utf-8", subject))
	header("Date", n.now().UTC().Format(time.RFC1123Z))
	header("Message-ID", "<"+ulid.Make().String()+"@"+n.cfg.Host+">")
	header("MIME-Version", "1.0")
	header("Content-Type", `text/html; charset="utf-8"`)
	header("Content-Transfer-Encoding", "8bit")
	b.WriteString("\r\n")

	body := strings.ReplaceAll(htmlBody, "\r\n", "\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	b.WriteString("\r\n")
	return b.Bytes()
}
