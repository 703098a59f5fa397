package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// WebhookConfig configures webhook delivery of security events.
type WebhookConfig struct {
	// URL is the endpoint events are POSTed to.
	URL string

	// TimeoutSeconds bounds each delivery attempt. Default 10.
	TimeoutSeconds int

	// MaxRetries is how many times a failed delivery is retried.
	// Default 3.
	MaxRetries int

	// RetryDelaySeconds is the backoff base; the delay doubles per
	// retry. Default 1.
	RetryDelaySeconds int
}

// WebhookNotifier POSTs events as JSON to an HTTP endpoint. Server errors
// and network failures are retried with exponential backoff; client errors
// are not, since resending the same payload cannot fix them.
type WebhookNotifier struct {
	url        string
	client     *http.Client
	maxRetries int
	retryDelay time.Duration
}

// NewWebhookNotifier creates a notifier for the configured endpoint.
func NewWebhookNotifier(config WebhookConfig) (*WebhookNotifier, error) {
	if config.URL == "" {
		return nil, errors.New("webhook URL is required")
	}
	if _, err := url.ParseRequestURI(config.URL); err != nil {
		return nil, fmt.Errorf("invalid webhook URL: %w", err)
	}

	timeout := config.TimeoutSeconds
	if timeout == 0 {
		timeout = 10
	}
	maxRetries := config.MaxRetries
	if maxRetries == 0 {
		maxRetries = 3
	}
	retryDelay := config.RetryDelaySeconds
	if retryDelay == 0 {
		retryDelay = 1
	}

	return &WebhookNotifier{
		url:        config.URL,
		client:     &http.Client{Timeout: time.Duration(timeout) * time.Second},
		maxRetries: maxRetries,
		retryDelay: time.Duration(retryDelay) * time.Second,
	}, nil
}

// Notify delivers the event, retrying transient failures until the retry
// budget runs out or ctx is cancelled.
func (w *WebhookNotifier) Notify(ctx context.Context, event *Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= w.maxRetries; attempt++ {
		if attempt > 0 {
			delay := w.retryDelay * (1 << (attempt - 1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		retryable, err := w.post(ctx, event, body)
		if err == nil {
			return nil
		}
		if !retryable {
			return err
		}
		lastErr = err
	}

	return fmt.Errorf("webhook delivery failed after %d retries: %w", w.maxRetries, lastErr)
}

// post makes one delivery attempt. The bool reports whether a failure is
// worth retrying.
func (w *WebhookNotifier) post(ctx context.Context, event *Event, body []byte) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Warden-Event", string(event.Type))

	resp, err := w.client.Do(req)
	if err != nil {
		return true, fmt.Errorf("request failed: %w", err)
	}
	resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return false, nil
	case resp.StatusCode >= 500:
		return true, fmt.Errorf("server error: status %d", resp.StatusCode)
	default:
		return false, fmt.Errorf("webhook request failed: status %d", resp.StatusCode)
	}
}
