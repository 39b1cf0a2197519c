package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// WebhookPoster posts JSON bodies with linear-backoff retries. Slack and PagerDuty share it.
type WebhookPoster struct {
	Name       string
	Client     *http.Client
	RetryLimit int
	// Backoff is the per-attempt delay step; attempt n waits n*Backoff.
	Backoff time.Duration
}

// NewWebhookPoster builds a poster with a client timeout and non-negative retry limit.
func NewWebhookPoster(name string, client *http.Client, timeout time.Duration, retries int) *WebhookPoster {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &WebhookPoster{
		Name:       name,
		Client:     client,
		RetryLimit: max(retries, 0),
		Backoff:    200 * time.Millisecond,
	}
}

// Post sends body to url, retrying failed attempts until RetryLimit is exhausted or ctx ends.
func (p *WebhookPoster) Post(ctx context.Context, url string, body []byte) error {
	attempts := p.RetryLimit + 1
	var lastErr error
	for attempt := range attempts {
		lastErr = p.postOnce(ctx, url, body)
		if lastErr == nil {
			return nil
		}
		if attempt == attempts-1 {
			break
		}

		timer := time.NewTimer(time.Duration(attempt+1) * p.Backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}

func (p *WebhookPoster) postOnce(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", p.Name, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.Client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", p.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if _, err := io.Copy(io.Discard, resp.Body); err != nil {
			return fmt.Errorf("drain %s response body: %w", p.Name, err)
		}
		return nil
	}

	respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, 4096))
	statusErr := fmt.Errorf("%s webhook %s: %s", p.Name, resp.Status, strings.TrimSpace(string(respBody)))
	if readErr != nil {
		return errors.Join(statusErr, fmt.Errorf("read %s error response: %w", p.Name, readErr))
	}
	return statusErr
}

// Fallback returns value, or fallback when value is blank.
func Fallback(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
