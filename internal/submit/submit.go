// Package submit delivers accepted applications.
package submit

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	json "github.com/goccy/go-json"

	"github.com/gabrielmiguelok/applyform/pkg/logging"
	"github.com/gabrielmiguelok/applyform/pkg/retry"
	"github.com/gabrielmiguelok/applyform/pkg/wizard"
)

var errStatus = errors.New("webhook rejected payload")

// LogSink logs every payload. It never fails.
type LogSink struct {
	Logger logging.Logger
}

// Submit implements wizard.Submitter.
func (s LogSink) Submit(ctx context.Context, payload any) error {
	logger := s.Logger
	if logger == nil {
		logger = logging.L(ctx)
	}
	logger.Info("application received", logging.Any("payload", payload))
	return nil
}

// Webhook POSTs the payload as JSON.
type Webhook struct {
	url    string
	client *http.Client
	policy retry.Policy
	logger logging.Logger
}

// WebhookOption configures a Webhook.
type WebhookOption func(*Webhook)

// WithClient sets the HTTP client.
func WithClient(c *http.Client) WebhookOption {
	return func(w *Webhook) {
		w.client = c
	}
}

// WithRetry sets the delivery retry policy.
func WithRetry(p retry.Policy) WebhookOption {
	return func(w *Webhook) {
		w.policy = p
	}
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) WebhookOption {
	return func(w *Webhook) {
		w.logger = l
	}
}

// NewWebhook creates a webhook sink for url.
func NewWebhook(url string, opts ...WebhookOption) *Webhook {
	w := &Webhook{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		policy: retry.DefaultPolicy(),
		logger: logging.NopLogger{},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// URL returns the target URL.
func (w *Webhook) URL() string {
	return w.url
}

// Submit implements wizard.Submitter.
func (w *Webhook) Submit(ctx context.Context, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	policy := w.policy
	policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		w.logger.Warn("webhook delivery failed, retrying",
			logging.Int("attempt", attempt),
			logging.Duration("delay", delay),
			logging.Err(err),
		)
	}
	return retry.Do(ctx, policy, func(ctx context.Context) error {
		return w.post(ctx, body)
	})
}

func (w *Webhook) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return retry.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("%w: %s", errStatus, resp.Status)
	default:
		return retry.Permanent(fmt.Errorf("%w: %s", errStatus, resp.Status))
	}
}

// Multi submits to every sink in order and stops at the first failure.
type Multi []wizard.Submitter

// Submit implements wizard.Submitter.
func (m Multi) Submit(ctx context.Context, payload any) error {
	for _, s := range m {
		if err := s.Submit(ctx, payload); err != nil {
			return err
		}
	}
	return nil
}
