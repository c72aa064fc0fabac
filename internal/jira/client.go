// Package jira implements the resilient HTTP client for the remote tracker
// API. It issues one logical call at a time, classifies the outcome as
// retryable or fatal, and absorbs transient failures with bounded backoff.
// The client has no knowledge of session cancellation; callers decide
// whether to initiate a call and whether to keep its result.
package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hoursync/hoursync/internal/config"
	"github.com/hoursync/hoursync/internal/redact"
)

const (
	// maxAttempts is the fixed ceiling for one logical call, including the
	// first attempt.
	maxAttempts = 3

	// throttleBackoffStep scales the wait after a 429/503/504 when the
	// server does not direct the wait itself.
	throttleBackoffStep = 350 * time.Millisecond

	// transportBackoffStep scales the wait after a timeout or dropped
	// connection.
	transportBackoffStep = 250 * time.Millisecond

	// maxBackoff caps any computed or server-directed wait.
	maxBackoff = 2 * time.Second
)

// Client executes tracker API calls with classification and bounded retry.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	cookieName  string
	cookieValue string
	logger      *slog.Logger

	// sleep is swappable so tests can observe backoff without waiting.
	sleep func(time.Duration)
}

// NewClient creates a tracker client from configuration. The per-attempt
// timeout is enforced by the underlying http.Client and is independent of
// any session-level cancellation.
func NewClient(cfg config.JiraConfig, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		httpClient:  &http.Client{Timeout: timeout},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		cookieName:  cfg.SessionCookieName,
		cookieValue: cfg.SessionCookieValue,
		logger:      logger.With("component", "jira_client"),
		sleep:       time.Sleep,
	}
}

// Call performs one logical tracker call and returns the parsed JSON body.
// Search-style endpoints receive their params as a query string on a GET;
// every other endpoint with params gets a JSON POST body. This bifurcation
// is a protocol rule of the tracker API, not a heuristic.
//
// Transient failures (throttling, unavailability, transport errors) are
// retried up to the attempt ceiling with backoff; exhausting the ceiling
// surfaces the last transient error as fatal.
func (c *Client) Call(ctx context.Context, endpoint string, params map[string]string) (json.RawMessage, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		raw, err := c.attempt(ctx, attempt, endpoint, params)
		if err == nil {
			return raw, nil
		}

		te, retryable := asTransient(err)
		if !retryable {
			return nil, err
		}
		lastErr = te.err

		if attempt == maxAttempts {
			break
		}

		// Transport errors can echo the request URL, credentials included.
		c.logger.Warn("transient tracker failure, will retry",
			"endpoint", endpoint,
			"attempt", attempt,
			"wait_ms", te.wait.Milliseconds(),
			"error", redact.Error(te.err))
		c.sleep(te.wait)
	}

	return nil, fmt.Errorf("tracker call to %s failed after %d attempts: %w", endpoint, maxAttempts, lastErr)
}

// attempt executes a single HTTP exchange and classifies its outcome.
func (c *Client) attempt(ctx context.Context, attempt int, endpoint string, params map[string]string) (json.RawMessage, error) {
	req, err := c.buildRequest(ctx, endpoint, params)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Timeouts and dropped connections are transient.
		return nil, &transientError{
			err:  fmt.Errorf("tracker transport error: %w", err),
			wait: time.Duration(attempt) * transportBackoffStep,
		}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch resp.StatusCode {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return nil, &transientError{
			err:  &StatusError{StatusCode: resp.StatusCode, Endpoint: endpoint},
			wait: throttleWait(resp.Header.Get("Retry-After"), attempt),
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Endpoint: endpoint}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &transientError{
			err:  fmt.Errorf("reading tracker response: %w", err),
			wait: time.Duration(attempt) * transportBackoffStep,
		}
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		// Some endpoints legitimately answer 2xx with no body.
		return json.RawMessage("{}"), nil
	}
	if looksLikeMarkup(resp.Header.Get("Content-Type"), trimmed) {
		c.logger.Debug("tracker answered with markup instead of JSON",
			"endpoint", endpoint,
			"snippet", redact.String(bodySnippet(trimmed)))
		return nil, ErrUnauthenticated
	}
	if !json.Valid(trimmed) {
		return nil, fmt.Errorf("%w: %s", ErrMalformedResponse, endpoint)
	}

	return json.RawMessage(trimmed), nil
}

func (c *Client) buildRequest(ctx context.Context, endpoint string, params map[string]string) (*http.Request, error) {
	target := c.baseURL + endpoint

	var req *http.Request
	var err error
	switch {
	case params != nil && strings.Contains(endpoint, "/search"):
		query := url.Values{}
		for k, v := range params {
			query.Set(k, v)
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, target+"?"+query.Encode(), nil)
	case params != nil:
		var body []byte
		body, err = json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("encoding tracker request body: %w", err)
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
		if req != nil {
			req.Header.Set("Content-Type", "application/json")
		}
	default:
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("building tracker request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if c.cookieValue != "" {
		req.AddCookie(&http.Cookie{Name: c.cookieName, Value: c.cookieValue})
	}
	return req, nil
}

// throttleWait computes the backoff after a throttled or unavailable
// response. A numeric Retry-After header is trusted as seconds; anything
// absent or non-numeric falls back to the attempt-scaled wait. Either way
// the result is clamped to the backoff ceiling.
func throttleWait(retryAfter string, attempt int) time.Duration {
	wait := time.Duration(attempt) * throttleBackoffStep
	if retryAfter != "" {
		if secs, err := strconv.Atoi(strings.TrimSpace(retryAfter)); err == nil && secs >= 0 {
			wait = time.Duration(secs) * time.Second
		}
	}
	if wait > maxBackoff {
		wait = maxBackoff
	}
	return wait
}

// bodySnippet truncates a response body for diagnostic logging.
func bodySnippet(body []byte) string {
	const limit = 120
	if len(body) <= limit {
		return string(body)
	}
	return string(body[:limit]) + "..."
}

// looksLikeMarkup reports whether a 2xx body is an HTML or XML document.
// Trackers answer login pages with 200 and text/html when the session has
// expired, so this case is distinguished from a generic parse failure.
func looksLikeMarkup(contentType string, body []byte) bool {
	if strings.Contains(strings.ToLower(contentType), "html") {
		return true
	}
	return bytes.HasPrefix(body, []byte("<"))
}
