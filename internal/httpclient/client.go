// Package httpclient executes a single logical HTTP request with a bounded
// number of attempts, each limited by its own timeout, and normalizes the
// outcome into a JSON body or an *errors.APIError.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/daimoniac/sbomscan/internal/errors"
	"github.com/daimoniac/sbomscan/internal/observability"
)

// Doer sends a single HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options configures the retry policy
type Options struct {
	Timeout    time.Duration // per attempt
	MaxRetries int           // attempts = MaxRetries + 1
}

// Request describes one logical request
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

// Response is a successful (2xx) response. Body is nil when the server sent
// an empty or non-JSON body.
type Response struct {
	StatusCode int
	Body       json.RawMessage
}

// Client executes requests with retries
type Client struct {
	doer    Doer
	opts    Options
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates a client backed by a fresh http.Client
func New(opts Options, logger *slog.Logger) *Client {
	return NewWithDoer(&http.Client{}, opts, logger)
}

// NewWithDoer creates a client sending requests through doer
func NewWithDoer(doer Doer, opts Options, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	return &Client{
		doer:    doer,
		opts:    opts,
		logger:  logger,
		metrics: observability.GetMetrics(),
	}
}

// attemptResult is whatever HTTP response an attempt received
type attemptResult struct {
	statusCode int
	statusText string
	body       []byte
}

func (r *attemptResult) ok() bool {
	return r.statusCode >= 200 && r.statusCode < 300
}

// Execute sends req until an HTTP response arrives or the attempts are
// exhausted. Only transport failures are retried: a non-2xx response ends
// the loop just like a 2xx one. The returned error is always *errors.APIError.
func (c *Client) Execute(ctx context.Context, req Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	c.logger.Debug("sending request",
		"method", method,
		"url", req.URL,
		"body", string(req.Body))

	var result *attemptResult
	var lastErr string

	attempts := c.opts.MaxRetries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		res, err := c.attempt(ctx, method, req)
		if err == nil {
			c.metrics.HTTPAttempts.WithLabelValues(method, "response").Inc()
			result = res
			break
		}

		c.metrics.HTTPAttempts.WithLabelValues(method, "transport_error").Inc()
		lastErr = fmt.Sprintf("Failed to %s %s with error: %s", method, req.URL, rootMessage(err))
		c.logger.Error("request attempt failed",
			"method", method,
			"url", req.URL,
			"attempt", attempt,
			"max_attempts", attempts,
			"error", lastErr)

		if !errors.IsTransient(err) {
			break
		}
	}

	resp, apiErr := resolve(result, lastErr)
	if apiErr != nil {
		c.metrics.HTTPRequests.WithLabelValues(method, "error").Inc()
		c.logger.Debug("request resolved",
			"method", method,
			"url", req.URL,
			"success", false,
			"status", apiErr.StatusCode,
			"message", apiErr.Message)
		return nil, apiErr
	}

	c.metrics.HTTPRequests.WithLabelValues(method, "success").Inc()
	c.logger.Debug("request resolved",
		"method", method,
		"url", req.URL,
		"success", true,
		"status", resp.StatusCode,
		"body", string(resp.Body))
	return resp, nil
}

// attempt performs one bounded request and reads the full body before the
// attempt deadline releases the connection. Once a status line has arrived
// the attempt is final: a body that cannot be read is treated as empty.
func (c *Client) attempt(ctx context.Context, method string, req Request) (*attemptResult, error) {
	attemptCtx := ctx
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(attemptCtx, method, req.URL, body)
	if err != nil {
		return nil, errors.NewPermanent(err)
	}
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	httpResp, err := c.doer.Do(httpReq)
	if err != nil {
		return nil, errors.ClassifyTransportError(err, ctx.Err() != nil)
	}
	//nolint:errcheck // Defer close on HTTP response body
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		c.logger.Warn("failed to read response body",
			"method", method,
			"url", req.URL,
			"status", httpResp.StatusCode,
			"error", err)
		data = nil
	}

	return &attemptResult{
		statusCode: httpResp.StatusCode,
		statusText: statusText(httpResp),
		body:       data,
	}, nil
}

// resolve maps the last received response (if any) to the client contract
func resolve(result *attemptResult, lastErr string) (*Response, *errors.APIError) {
	if result == nil {
		return nil, errors.NewAPIError(0, firstNonEmpty(lastErr, "unknown error"))
	}

	if result.ok() {
		return &Response{
			StatusCode: result.statusCode,
			Body:       jsonBody(result.body),
		}, nil
	}

	var errBody struct {
		Message string `json:"message"`
	}
	if raw := jsonBody(result.body); raw != nil {
		_ = json.Unmarshal(raw, &errBody)
	}

	return nil, errors.NewAPIError(result.statusCode,
		firstNonEmpty(errBody.Message, result.statusText, lastErr, "unknown error"))
}

// jsonBody returns data if it is a JSON document, nil otherwise
func jsonBody(data []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || !json.Valid(trimmed) {
		return nil
	}
	return json.RawMessage(trimmed)
}

// statusText extracts the reason phrase ("Not Found") from the status line
func statusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return text
}

// rootMessage strips the transient/permanent classification prefix
func rootMessage(err error) string {
	var transient *errors.TransientError
	var permanent *errors.PermanentError
	switch {
	case stderrors.As(err, &transient) && transient.Cause != nil:
		return transient.Cause.Error()
	case stderrors.As(err, &permanent) && permanent.Cause != nil:
		return permanent.Cause.Error()
	default:
		return err.Error()
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
