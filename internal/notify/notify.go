// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursekeep Contributors

// Package notify delivers outbound account email.
package notify

import (
	"context"
	"log/slog"
	"net/mail"
	"sync"

	"github.com/samber/oops"
)

// Notifier sends a single HTML message to one recipient.
type Notifier interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// Message is a message accepted by LogNotifier.
type Message struct {
	To      string
	Subject string
	Body    string
}

// LogNotifier logs messages instead of sending them. It is meant for
// development, where the reset link is read from the log.
type LogNotifier struct {
	logger *slog.Logger

	mu   sync.Mutex
	sent []Message
}

// NewLogNotifier creates a LogNotifier. A nil logger uses slog.Default().
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// Send validates the recipient, logs the message and keeps a copy.
func (n *LogNotifier) Send(ctx context.Context, to, subject, htmlBody string) error {
	if _, err := parseRecipient(to); err != nil {
		return err
	}
	n.mu.Lock()
	n.sent = append(n.sent, Message{To: to, Subject: subject, Body: htmlBody})
	n.mu.Unlock()

	n.logger.InfoContext(ctx, "email not sent, log delivery configured",
		"to", to,
		"subject", subject,
		"body", htmlBody)
	return nil
}

// Sent returns a copy of the messages logged so far.
func (n *LogNotifier) Sent() []Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Message, len(n.sent))
	copy(out, n.sent)
	return out
}

// Instrumented reports the outcome of every Send on next to record.
func Instrumented(next Notifier, record func(error)) Notifier {
	if record == nil {
		return next
	}
	return instrumented{next: next, record: record}
}

type instrumented struct {
	next   Notifier
	record func(error)
}

func (n instrumented) Send(ctx context.Context, to, subject, htmlBody string) error {
	err := n.next.Send(ctx, to, subject, htmlBody)
	n.record(err)
	return err
}

func parseRecipient(to string) (*mail.Address, error) {
	addr, err := mail.ParseAddress(to)
	if err != nil {
		return nil, oops.Code("NOTIFY_INVALID_RECIPIENT").
			With("to", to).
			Wrap(err)
	}
	return addr, nil
}

// Compile-time interface checks.
var (
	_ Notifier = (*LogNotifier)(nil)
	_ Notifier = (*SMTPNotifier)(nil)
)
