package httpclient

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "github.com/daimoniac/sbomscan/internal/errors"
	"github.com/daimoniac/sbomscan/internal/observability"
)

// flakyDoer fails the first failures calls with a transport error, then
// answers with status and body.
type flakyDoer struct {
	failures int
	status   int
	body     string
	calls    int
	requests []*http.Request
}

func (d *flakyDoer) Do(req *http.Request) (*http.Response, error) {
	d.calls++
	d.requests = append(d.requests, req)
	if d.calls <= d.failures {
		return nil, errors.New("dial tcp 10.0.0.1:443: connect: connection refused")
	}
	return &http.Response{
		StatusCode: d.status,
		Body:       io.NopCloser(strings.NewReader(d.body)),
		Header:     make(http.Header),
	}, nil
}

func newTestClient(doer Doer, maxRetries int) *Client {
	return NewWithDoer(doer, Options{Timeout: time.Second, MaxRetries: maxRetries}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestExecute_SuccessFirstAttempt(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"branch":"main"}`, string(body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"scanId":"s1","uploadUrl":"https://u"}`))
	}))
	defer server.Close()

	client := New(Options{Timeout: 5 * time.Second, MaxRetries: 2}, nil)
	resp, err := client.Execute(context.Background(), Request{
		Method:  http.MethodPost,
		URL:     server.URL,
		Headers: map[string]string{"Authorization": "Bearer token"},
		Body:    []byte(`{"branch":"main"}`),
	})

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"scanId":"s1","uploadUrl":"https://u"}`, string(resp.Body))
}

func TestExecute_RetriesTransportFailures(t *testing.T) {
	doer := &flakyDoer{failures: 2, status: http.StatusOK, body: `{"status":"Pending"}`}
	client := newTestClient(doer, 2)

	resp, err := client.Execute(context.Background(), Request{Method: http.MethodGet, URL: "https://scan.example.com/status"})

	require.NoError(t, err)
	assert.Equal(t, 3, doer.calls)
	assert.JSONEq(t, `{"status":"Pending"}`, string(resp.Body))
}

func TestExecute_ExhaustedTransportFailures(t *testing.T) {
	doer := &flakyDoer{failures: 10}
	client := newTestClient(doer, 2)

	_, err := client.Execute(context.Background(), Request{Method: http.MethodPut, URL: "https://upload.example.com/x"})

	require.Error(t, err)
	assert.Equal(t, 3, doer.calls)

	var apiErr *apierrors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 0, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "Failed to PUT https://upload.example.com/x with error:")
	assert.Contains(t, apiErr.Message, "connection refused")
}

func TestExecute_ZeroRetries(t *testing.T) {
	doer := &flakyDoer{failures: 1}
	client := newTestClient(doer, 0)

	_, err := client.Execute(context.Background(), Request{URL: "https://scan.example.com"})

	require.Error(t, err)
	assert.Equal(t, 1, doer.calls)
}

func TestExecute_ErrorResponseIsNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"status":500,"message":"scan backend unavailable"}`))
	}))
	defer server.Close()

	client := New(Options{Timeout: 5 * time.Second, MaxRetries: 2}, nil)
	_, err := client.Execute(context.Background(), Request{Method: http.MethodGet, URL: server.URL})

	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	apiErr, ok := apierrors.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, "scan backend unavailable", apiErr.Message)
}

func TestExecute_ErrorMessagePrecedence(t *testing.T) {
	tests := []struct {
		name    string
		doer    *flakyDoer
		wantMsg string
	}{
		{
			name:    "message from error body",
			doer:    &flakyDoer{status: http.StatusBadRequest, body: `{"message":"branch is required"}`},
			wantMsg: "branch is required",
		},
		{
			name:    "status text when body has no message",
			doer:    &flakyDoer{status: http.StatusServiceUnavailable, body: `{"status":503}`},
			wantMsg: "Service Unavailable",
		},
		{
			name:    "status text when body is not JSON",
			doer:    &flakyDoer{status: http.StatusNotFound, body: `<html>nope</html>`},
			wantMsg: "Not Found",
		},
		{
			name:    "transport error when status text is unknown",
			doer:    &flakyDoer{failures: 1, status: 599},
			wantMsg: "Failed to GET https://scan.example.com with error: dial tcp 10.0.0.1:443: connect: connection refused",
		},
		{
			name:    "unknown error as last resort",
			doer:    &flakyDoer{status: 599},
			wantMsg: "unknown error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(tt.doer, 2)
			_, err := client.Execute(context.Background(), Request{URL: "https://scan.example.com"})

			apiErr, ok := apierrors.AsAPIError(err)
			require.True(t, ok)
			assert.Equal(t, tt.doer.status, apiErr.StatusCode)
			assert.Equal(t, tt.wantMsg, apiErr.Message)
		})
	}
}

func TestExecute_TolerantSuccessBodies(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "empty body", body: ""},
		{name: "whitespace body", body: "  \n"},
		{name: "non-JSON body", body: "OK"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(&flakyDoer{status: http.StatusOK, body: tt.body}, 2)
			resp, err := client.Execute(context.Background(), Request{Method: http.MethodPut, URL: "https://u"})

			require.NoError(t, err)
			assert.Nil(t, resp.Body)
		})
	}
}

func TestExecute_AttemptTimeoutIsRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := New(Options{Timeout: 100 * time.Millisecond, MaxRetries: 1}, nil)
	resp, err := client.Execute(context.Background(), Request{URL: server.URL})

	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.JSONEq(t, `{"ok":true}`, string(resp.Body))
}

type brokenBody struct{}

func (brokenBody) Read([]byte) (int, error) {
	return 0, errors.New("connection reset by peer")
}

func (brokenBody) Close() error { return nil }

type brokenBodyDoer struct {
	status int
	calls  int
}

func (d *brokenBodyDoer) Do(*http.Request) (*http.Response, error) {
	d.calls++
	return &http.Response{StatusCode: d.status, Body: brokenBody{}, Header: make(http.Header)}, nil
}

func TestExecute_UnreadableBodyEndsAttempts(t *testing.T) {
	t.Run("success status", func(t *testing.T) {
		doer := &brokenBodyDoer{status: http.StatusOK}
		client := newTestClient(doer, 2)

		resp, err := client.Execute(context.Background(), Request{Method: http.MethodPut, URL: "https://upload.example.com/x"})

		require.NoError(t, err)
		assert.Equal(t, 1, doer.calls)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Nil(t, resp.Body)
	})

	t.Run("error status", func(t *testing.T) {
		doer := &brokenBodyDoer{status: http.StatusForbidden}
		client := newTestClient(doer, 2)

		_, err := client.Execute(context.Background(), Request{Method: http.MethodPut, URL: "https://upload.example.com/x"})

		assert.Equal(t, 1, doer.calls)
		apiErr, ok := apierrors.AsAPIError(err)
		require.True(t, ok)
		assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
		assert.Equal(t, "Forbidden", apiErr.Message)
	})
}

func TestExecute_StalledBodyAfterStatusIsNotReplayed(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Length", "100")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":`))
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	client := New(Options{Timeout: 100 * time.Millisecond, MaxRetries: 2}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	resp, err := client.Execute(context.Background(), Request{Method: http.MethodPut, URL: server.URL, Body: []byte(`{}`)})

	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Nil(t, resp.Body)
}

func TestExecute_CanceledContextStopsRetrying(t *testing.T) {
	doer := &flakyDoer{failures: 10}
	client := newTestClient(doer, 5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Execute(ctx, Request{URL: "https://scan.example.com"})

	require.Error(t, err)
	assert.Equal(t, 1, doer.calls)
}

func TestExecute_DebugLogOmitsHeaders(t *testing.T) {
	var buf bytes.Buffer
	logger := observability.NewLoggerWithWriter(&buf, "debug")
	doer := &flakyDoer{status: http.StatusOK, body: `{"status":"Success"}`}
	client := NewWithDoer(doer, Options{Timeout: time.Second, MaxRetries: 0}, logger)

	_, err := client.Execute(context.Background(), Request{
		URL:     "https://scan.example.com/v1/sbom/scan/s1/status",
		Headers: map[string]string{"Authorization": "Bearer very-secret-token"},
	})

	require.NoError(t, err)
	assert.Contains(t, buf.String(), "sending request")
	assert.Contains(t, buf.String(), "request resolved")
	assert.NotContains(t, buf.String(), "very-secret-token")
	assert.Equal(t, "Bearer very-secret-token", doer.requests[0].Header.Get("Authorization"))
}
