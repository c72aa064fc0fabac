package jira

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoursync/hoursync/internal/config"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

// newTestClient points a client at the given server and replaces the real
// sleep with a recorder so backoff is observable without waiting.
func newTestClient(t *testing.T, server *httptest.Server) (*Client, *[]time.Duration) {
	t.Helper()
	client := NewClient(config.JiraConfig{
		BaseURL:            server.URL,
		SessionCookieName:  "tenant.session.token",
		SessionCookieValue: "secret-session",
		Timezone:           "UTC",
	}, 5*time.Second, setupTestLogger())

	var sleeps []time.Duration
	client.sleep = func(d time.Duration) { sleeps = append(sleeps, d) }
	return client, &sleeps
}

func TestCallSucceedsAfterTransientFailures(t *testing.T) {
	statuses := []int{503, 503, 200}
	var attempts int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status := statuses[attempts]
		attempts++
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client, sleeps := newTestClient(t, server)

	raw, err := client.Call(context.Background(), "/rest/api/3/myself", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(raw))
	assert.Equal(t, 3, attempts, "should succeed on the 3rd attempt")

	// 350ms * attempt for attempts 1 and 2.
	require.Len(t, *sleeps, 2, "must sleep between attempts")
	assert.Equal(t, 350*time.Millisecond, (*sleeps)[0])
	assert.Equal(t, 700*time.Millisecond, (*sleeps)[1])
}

func TestCallFailsAfterAttemptCeiling(t *testing.T) {
	var attempts int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, _ := newTestClient(t, server)

	_, err := client.Call(context.Background(), "/rest/api/3/myself", nil)
	require.Error(t, err)
	assert.Equal(t, 3, attempts, "exactly 3 attempts, no further retry")

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr, "exhausted retryable condition surfaces the last error as fatal")
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
}

func TestCallHonorsRetryAfterHeader(t *testing.T) {
	var attempts int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client, sleeps := newTestClient(t, server)

	_, err := client.Call(context.Background(), "/rest/api/3/myself", nil)
	require.NoError(t, err)
	require.Len(t, *sleeps, 1)
	assert.Equal(t, time.Second, (*sleeps)[0], "numeric Retry-After is trusted as seconds")
}

func TestThrottleWaitClampsAndFallsBack(t *testing.T) {
	assert.Equal(t, 2*time.Second, throttleWait("60", 1), "server-directed waits clamp to the ceiling")
	assert.Equal(t, 350*time.Millisecond, throttleWait("soon", 1), "non-numeric Retry-After falls back to computed wait")
	assert.Equal(t, 700*time.Millisecond, throttleWait("", 2))
	assert.Equal(t, 2*time.Second, throttleWait("", 8))
}

func TestCallDoesNotRetryFatalStatus(t *testing.T) {
	var attempts int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client, sleeps := newTestClient(t, server)

	_, err := client.Call(context.Background(), "/rest/api/3/myself", nil)
	require.Error(t, err)
	assert.Equal(t, 1, attempts, "non-retryable statuses fail immediately")
	assert.Empty(t, *sleeps)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
}

func TestCallTreatsEmptyBodyAsEmptyObject(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client, _ := newTestClient(t, server)

	raw, err := client.Call(context.Background(), "/rest/api/3/myself", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(raw))
}

func TestCallClassifiesMarkupAsUnauthenticated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<!DOCTYPE html><html><body>Log in</body></html>"))
	}))
	defer server.Close()

	client, _ := newTestClient(t, server)

	_, err := client.Call(context.Background(), "/rest/api/3/myself", nil)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestCallClassifiesGarbageAsMalformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"truncated":`))
	}))
	defer server.Close()

	client, _ := newTestClient(t, server)

	_, err := client.Call(context.Background(), "/rest/api/3/myself", nil)
	assert.ErrorIs(t, err, ErrMalformedResponse)
	assert.NotErrorIs(t, err, ErrUnauthenticated, "parse failure is distinct from the markup case")
}

func TestCallUsesQueryParamsForSearchEndpoints(t *testing.T) {
	var method, query string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		query = r.URL.Query().Get("jql")
		_, _ = w.Write([]byte(`{"issues":[]}`))
	}))
	defer server.Close()

	client, _ := newTestClient(t, server)

	_, err := client.Call(context.Background(), "/rest/api/3/search/jql", map[string]string{
		"jql": `worklogAuthor = "me"`,
	})
	require.NoError(t, err)
	assert.Equal(t, http.MethodGet, method, "search endpoints are GET with query parameters")
	assert.Equal(t, `worklogAuthor = "me"`, query)
}

func TestCallPostsJSONForNonSearchEndpoints(t *testing.T) {
	var method, contentType string
	var body map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		contentType = r.Header.Get("Content-Type")
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &body)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client, _ := newTestClient(t, server)

	_, err := client.Call(context.Background(), "/rest/api/3/expression/eval", map[string]string{
		"expression": "issue.key",
	})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, method)
	assert.Equal(t, "application/json", contentType)
	assert.Equal(t, "issue.key", body["expression"])
}

func TestCallAttachesHeadersAndSessionCookie(t *testing.T) {
	var accept string
	var cookie *http.Cookie
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accept = r.Header.Get("Accept")
		cookie, _ = r.Cookie("tenant.session.token")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client, _ := newTestClient(t, server)

	_, err := client.Call(context.Background(), "/rest/api/3/myself", nil)
	require.NoError(t, err)
	assert.Equal(t, "application/json", accept)
	require.NotNil(t, cookie)
	assert.Equal(t, "secret-session", cookie.Value)
}

func TestCallRetriesTransportErrors(t *testing.T) {
	// A server that is immediately closed yields connection errors.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client, sleeps := newTestClient(t, server)

	_, err := client.Call(context.Background(), "/rest/api/3/myself", nil)
	require.Error(t, err)
	require.Len(t, *sleeps, 2, "transport failures are retried with backoff")
	assert.Equal(t, 250*time.Millisecond, (*sleeps)[0])
	assert.Equal(t, 500*time.Millisecond, (*sleeps)[1])
}
