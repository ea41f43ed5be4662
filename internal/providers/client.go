package providers

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/fossiltrack/config"
)

// ErrRecoverable marks a stage failure the orchestrator may resume on the
// next cycle. Transient upstream errors surface as this after the local
// retry budget runs out.
var ErrRecoverable = errors.New("recoverable upstream failure")

// ErrExhausted marks a provider whose quota or session pool is spent. The
// orchestrator sleeps instead of resuming immediately.
var ErrExhausted = errors.New("provider exhausted")

// validate checks provider DTOs at the adapter boundary
var validate = validator.New()

// client wraps an HTTP client with the shared retry policy
type client struct {
	http       *http.Client
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

func newClient(cfg config.ProvidersConfig) *client {
	return &client{
		http:       &http.Client{Timeout: cfg.RequestTimeout},
		maxRetries: cfg.MaxRetries,
		baseDelay:  cfg.RetryBaseDelay,
		maxDelay:   cfg.RetryMaxDelay,
	}
}

// getJSON fetches a URL and decodes the response, retrying transient
// failures with bounded exponential backoff. Non-retryable statuses fail
// immediately.
func (c *client) getJSON(ctx context.Context, url string, headers map[string]string, out interface{}) error {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepBackoff(ctx, c.baseDelay, c.maxDelay, attempt); err != nil {
				return err
			}
			log.Debug().Str("url", url).Int("attempt", attempt).Msg("Retrying upstream call")
		}

		err := c.getOnce(ctx, url, headers, out)
		if err == nil {
			return nil
		}
		if !isTransient(err) {
			return err
		}
		lastErr = err
	}
	return errors.Wrapf(ErrRecoverable, "retries exhausted: %v", lastErr)
}

func (c *client) getOnce(ctx context.Context, url string, headers map[string]string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrap(err, "failed to build request")
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &transientError{err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return errors.Wrapf(ErrExhausted, "rate limited by %s", req.URL.Host)
	case resp.StatusCode >= 500:
		return &transientError{err: errors.Errorf("upstream returned %d", resp.StatusCode)}
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Errorf("upstream returned %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "failed to decode response")
	}
	return nil
}

// transientError marks a failure worth retrying locally
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

func isTransient(err error) bool {
	var te *transientError
	if errors.As(err, &te) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return false
}

// sleepBackoff waits base*2^(attempt-1) capped at max, or returns early on
// context cancellation
func sleepBackoff(ctx context.Context, base, max time.Duration, attempt int) error {
	delay := base << (attempt - 1)
	if delay > max || delay <= 0 {
		delay = max
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

// dateParam formats a time for upstream query strings
func dateParam(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

// dayParam formats a date-only query parameter
func dayParam(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
