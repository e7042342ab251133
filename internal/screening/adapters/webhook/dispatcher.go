// Package webhook implements the AlertDispatcher port against the case
// management system's inbound webhook.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"vigil/internal/screening"
	"vigil/pkg/platform/sentinel"
)

const (
	defaultDispatchTimeout = 10 * time.Second
	defaultRetries         = 1
	retryBackoff           = 500 * time.Millisecond
)

// Dispatcher POSTs alert records to a configured webhook URL. Transient
// failures (network errors, 5xx) are retried once by default; client
// errors are not, since resending the same payload cannot fix them.
type Dispatcher struct {
	url     string
	apiKey  string
	httpc   *http.Client
	retries int
}

// Option configures the Dispatcher.
type Option func(*Dispatcher)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(httpc *http.Client) Option {
	return func(d *Dispatcher) {
		if httpc != nil {
			d.httpc = httpc
		}
	}
}

// WithAPIKey sets the X-API-Key header sent with every dispatch.
func WithAPIKey(key string) Option {
	return func(d *Dispatcher) {
		d.apiKey = key
	}
}

// WithRetries sets how many times a transient failure is retried.
func WithRetries(n int) Option {
	return func(d *Dispatcher) {
		if n >= 0 {
			d.retries = n
		}
	}
}

// NewDispatcher creates a webhook dispatcher for the given URL.
func NewDispatcher(url string, opts ...Option) (*Dispatcher, error) {
	if url == "" {
		return nil, fmt.Errorf("webhook URL is required")
	}

	d := &Dispatcher{
		url:     url,
		httpc:   &http.Client{Timeout: defaultDispatchTimeout},
		retries: defaultRetries,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// SendAlert delivers one alert. Success means the remote acknowledged
// with a 2xx status.
func (d *Dispatcher) SendAlert(ctx context.Context, alert screening.AlertRecord) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshal alert %s: %w", alert.AlertID, err)
	}

	var lastErr error
	for attempt := 0; attempt <= d.retries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(retryBackoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("dispatch alert %s: %w", alert.AlertID, ctx.Err())
			case <-timer.C:
			}
		}

		retryable, err := d.post(ctx, payload)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}

	return fmt.Errorf("dispatch alert %s: %w", alert.AlertID, lastErr)
}

// post performs one delivery attempt and reports whether a failure is
// worth retrying.
func (d *Dispatcher) post(ctx context.Context, payload []byte) (retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(payload))
	if err != nil {
		return false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if d.apiKey != "" {
		req.Header.Set("X-API-Key", d.apiKey)
	}

	resp, err := d.httpc.Do(req)
	if err != nil {
		return true, fmt.Errorf("webhook request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return false, nil
	case resp.StatusCode >= http.StatusInternalServerError:
		return true, fmt.Errorf("webhook responded %d: %w", resp.StatusCode, sentinel.ErrUnavailable)
	default:
		return false, fmt.Errorf("webhook rejected alert with status %d", resp.StatusCode)
	}
}
