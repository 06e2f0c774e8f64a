// Copyright (c) 2026 OpenG7. All rights reserved.

package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/OpenG7/openg7-platform-sub001/internal/platform/mailer"
	"github.com/OpenG7/openg7-platform-sub001/internal/platform/metrics"
	"github.com/OpenG7/openg7-platform-sub001/internal/platform/webhookurl"
)

const (
	// webhookRetryBase seeds the fibonacci backoff between delivery attempts.
	webhookRetryBase = 250 * time.Millisecond
	// webhookMaxRetries bounds re-attempts after the first POST.
	webhookMaxRetries = 2
)

// DispatchResult reports per-channel delivery outcomes for one run.
type DispatchResult struct {
	EmailSent   bool     `json:"emailSent"`
	WebhookSent bool     `json:"webhookSent"`
	Failures    []string `json:"failures"`
}

// webhookEnvelope is the JSON body POSTed to the user's webhook.
type webhookEnvelope struct {
	UserID      string       `json:"userId"`
	Mode        string       `json:"mode"`
	Count       int          `json:"count"`
	GeneratedAt time.Time    `json:"generatedAt"`
	Alerts      []*UserAlert `json:"alerts"`
}

// Dispatcher delivers alerts over the email and webhook channels.
type Dispatcher struct {
	mail      mailer.Mailer
	directory ProfileDirectory
	client    *http.Client
	policy    webhookurl.Policy
	timeout   time.Duration
	logger    *slog.Logger
}

// NewDispatcher constructs a Dispatcher. A nil client falls back to a default
// HTTP client; the per-delivery timeout is enforced via context regardless.
func NewDispatcher(
	mail mailer.Mailer,
	directory ProfileDirectory,
	client *http.Client,
	policy webhookurl.Policy,
	timeout time.Duration,
	logger *slog.Logger,
) *Dispatcher {
	if client == nil {
		client = &http.Client{}
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Dispatcher{
		mail:      mail,
		directory: directory,
		client:    client,
		policy:    policy,
		timeout:   timeout,
		logger:    logger,
	}
}

/*
Dispatch delivers a batch of alerts over every enabled channel.

Description: Strictly best-effort. Generation has already committed, so each
channel failure is appended to the failures list under an "email:" or
"webhook:" namespace and never raised. Webhook targets are validated against
the SSRF policy before any network call; a blocked URL is recorded as
"webhook:blocked_<code>" and logged as a security warning, distinct from a
plain delivery failure.

Parameters:
  - ctx: context.Context
  - userID: string
  - preferences: NotificationPreferences
  - alerts: []*UserAlert (already filtered and persisted)
  - digestMode: bool (reflected in the webhook envelope's mode field)

Returns:
  - DispatchResult: Per-channel outcome. Never an error.
*/
func (dispatcher *Dispatcher) Dispatch(ctx context.Context, userID string, preferences NotificationPreferences, alerts []*UserAlert, digestMode bool) DispatchResult {
	result := DispatchResult{Failures: []string{}}
	if len(alerts) == 0 {
		return result
	}

	mode := "instant"
	if digestMode {
		mode = "digest"
	}

	// ── 1. Email Channel ──────────────────────────────────────────────────
	if preferences.Channels.Email && preferences.EmailOptIn {
		if err := dispatcher.sendEmail(ctx, userID, alerts, mode); err != nil {
			result.Failures = append(result.Failures, "email:"+err.Error())
			metrics.AlertDispatchFailure("email")
		} else {
			result.EmailSent = true
		}
	}

	// ── 2. Webhook Channel ────────────────────────────────────────────────
	if preferences.Channels.Webhook && preferences.WebhookURL != "" {
		verdict := webhookurl.Validate(preferences.WebhookURL, dispatcher.policy)
		if !verdict.Valid {
			dispatcher.logger.Warn("webhook_blocked",
				slog.String("user_id", userID),
				slog.String("code", string(verdict.Code)),
				slog.String("hostname", verdict.Hostname),
			)
			result.Failures = append(result.Failures, fmt.Sprintf("webhook:blocked_%s", verdict.Code))
			metrics.AlertDispatchFailure("webhook")
		} else if err := dispatcher.postWebhook(ctx, verdict.NormalizedURL, webhookEnvelope{
			UserID:      userID,
			Mode:        mode,
			Count:       len(alerts),
			GeneratedAt: time.Now().UTC(),
			Alerts:      alerts,
		}); err != nil {
			result.Failures = append(result.Failures, "webhook:"+err.Error())
			metrics.AlertDispatchFailure("webhook")
		} else {
			result.WebhookSent = true
		}
	}

	return result
}

// sendEmail looks up the user's address and relays a plain-text summary.
func (dispatcher *Dispatcher) sendEmail(ctx context.Context, userID string, alerts []*UserAlert, mode string) error {
	address, err := dispatcher.directory.EmailAddress(ctx, userID)
	if err != nil || address == "" {
		return fmt.Errorf("address_lookup_failed")
	}

	subject := fmt.Sprintf("OpenG7: %d new alert(s)", len(alerts))
	if mode == "digest" {
		subject = "OpenG7: your daily digest"
	}

	var body bytes.Buffer
	for _, alert := range alerts {
		fmt.Fprintf(&body, "[%s] %s\n%s\n\n", alert.Severity, alert.Title, alert.Message)
	}

	if err := dispatcher.mail.Send(ctx, address, subject, body.String()); err != nil {
		dispatcher.logger.Warn("alert_email_failed",
			slog.String("user_id", userID),
			slog.Any("error", err),
		)
		return fmt.Errorf("send_failed")
	}
	return nil
}

// postWebhook POSTs the envelope with a bounded timeout and fibonacci backoff.
// Network errors and 5xx responses are retried; other non-2xx statuses end
// the attempt immediately.
func (dispatcher *Dispatcher) postWebhook(ctx context.Context, targetURL string, envelope webhookEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("encode_failed")
	}

	deliveryCtx, cancel := context.WithTimeout(ctx, dispatcher.timeout)
	defer cancel()

	backoff := retry.WithMaxRetries(webhookMaxRetries, retry.NewFibonacci(webhookRetryBase))

	err = retry.Do(deliveryCtx, backoff, func(attemptCtx context.Context) error {
		request, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, targetURL, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		request.Header.Set("Content-Type", "application/json")
		request.Header.Set("User-Agent", "openg7-alerts/1.0")

		response, err := dispatcher.client.Do(request)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer func() {
			_, _ = io.Copy(io.Discard, response.Body)
			_ = response.Body.Close()
		}()

		if response.StatusCode >= 200 && response.StatusCode < 300 {
			return nil
		}
		statusErr := fmt.Errorf("status_%d", response.StatusCode)
		if response.StatusCode >= 500 {
			return retry.RetryableError(statusErr)
		}
		return statusErr
	})

	if err != nil {
		dispatcher.logger.Warn("alert_webhook_failed",
			slog.Any("error", err),
		)
		if deliveryCtx.Err() != nil {
			return fmt.Errorf("timeout")
		}
		return fmt.Errorf("delivery_failed")
	}
	return nil
}
