// Copyright (c) 2026 OpenG7. All rights reserved.

/*
Package mailer provides outbound email delivery for alert notifications and
account flows.

The [Mailer] interface keeps domain services testable; the SMTP implementation
talks to whatever relay the deployment configures. Delivery failures are
returned as errors for the caller to record; this package never retries on
its own.
*/
package mailer

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"
)

// sendTimeout bounds a single SMTP conversation so a stalled relay cannot
// hold up the alert pipeline.
const sendTimeout = 10 * time.Second

// Mailer sends a plain-text email to a single recipient.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// # SMTP Implementation

// SMTPConfig carries relay settings from the environment.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer delivers mail through a configured SMTP relay.
type SMTPMailer struct {
	config SMTPConfig
}

// NewSMTP builds an SMTP-backed mailer.
func NewSMTP(config SMTPConfig) *SMTPMailer {
	return &SMTPMailer{config: config}
}

// Send delivers one message. The context deadline (capped at sendTimeout)
// bounds the whole SMTP exchange.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	if m.config.Host == "" || m.config.From == "" {
		return fmt.Errorf("mailer: smtp relay not configured")
	}

	message := buildMessage(m.config.From, to, subject, body)
	address := fmt.Sprintf("%s:%d", m.config.Host, m.config.Port)

	var auth smtp.Auth
	if m.config.Username != "" {
		auth = smtp.PlainAuth("", m.config.Username, m.config.Password, m.config.Host)
	}

	// net/smtp has no context support; run the exchange in a goroutine and
	// race it against the deadline.
	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(address, auth, m.config.From, []string{to}, message)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("mailer: send failed: %w", err)
		}
		return nil
	case <-sendCtx.Done():
		return fmt.Errorf("mailer: send timed out: %w", sendCtx.Err())
	}
}

// buildMessage assembles RFC 5322 headers plus the plain-text body.
func buildMessage(from, to, subject, body string) []byte {
	var builder strings.Builder
	builder.WriteString("From: " + from + "\r\n")
	builder.WriteString("To: " + to + "\r\n")
	builder.WriteString("Subject: " + sanitizeHeader(subject) + "\r\n")
	builder.WriteString("MIME-Version: 1.0\r\n")
	builder.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	builder.WriteString("\r\n")
	builder.WriteString(body)
	return []byte(builder.String())
}

// sanitizeHeader strips CR/LF so user-influenced subjects cannot inject headers.
func sanitizeHeader(value string) string {
	replacer := strings.NewReplacer("\r", " ", "\n", " ")
	return replacer.Replace(value)
}

// # Test Double

// Noop discards all mail. Used in development and as a safe default when no
// relay is configured.
type Noop struct{}

// Send implements [Mailer] by doing nothing.
func (Noop) Send(context.Context, string, string, string) error {
	return nil
}
