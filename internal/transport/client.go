// Package transport issues authenticated requests to the code search service,
// retrying transient failures with exponential backoff.
//
// Every request gets a fresh correlation identifier, sent as the
// X-Correlation-ID header and attached to every log record and captured error
// the request produces. Requests are retried only when no response was
// received or the status is 500 or above; 4xx responses fail immediately with
// a remediation hint.
package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/codeguard-mcp/internal/incident"
	"github.com/dshills/codeguard-mcp/internal/logging"
)

const (
	// HeaderCorrelationID carries the per-request correlation identifier
	HeaderCorrelationID = "X-Correlation-ID"
	// DefaultTimeout is the per-attempt budget when a request sets none
	DefaultTimeout = 10 * time.Second
	// maxErrorBody bounds how much of an error response is kept
	maxErrorBody = 512
)

// Options configures a Client
type Options struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	Retry      RetryConfig
	UserAgent  string
	Logger     *zap.Logger
	Reporter   incident.Reporter
}

// Client performs authenticated requests against the search service
type Client struct {
	baseURL    *url.URL
	token      string
	httpClient *http.Client
	retry      RetryConfig
	userAgent  string
	logger     *zap.Logger
	reporter   incident.Reporter
}

// Request describes a single logical call. Timeout applies to each attempt.
type Request struct {
	Method    string
	Path      string
	Params    url.Values
	Timeout   time.Duration
	Operation string
}

// Response is a fully read successful response
type Response struct {
	StatusCode    int
	Body          []byte
	Duration      time.Duration
	CorrelationID string
	Attempts      int
}

// New creates a Client. A missing token is a configuration error and is never retried.
func New(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.Token) == "" {
		return nil, ErrMissingToken
	}
	if opts.BaseURL == "" {
		return nil, ErrMissingEndpoint
	}
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %w", opts.BaseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid endpoint %q: scheme and host are required", opts.BaseURL)
	}

	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.Retry == (RetryConfig{}) {
		opts.Retry = DefaultRetryConfig()
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "codeguard-mcp"
	}
	if opts.Reporter == nil {
		opts.Reporter = incident.Nop{}
	}

	return &Client{
		baseURL:    base,
		token:      opts.Token,
		httpClient: opts.HTTPClient,
		retry:      opts.Retry,
		userAgent:  opts.UserAgent,
		logger:     logging.Component(opts.Logger, "transport"),
		reporter:   opts.Reporter,
	}, nil
}

// Endpoint returns the configured base URL
func (c *Client) Endpoint() string {
	return c.baseURL.String()
}

// Do performs req with the retry policy and returns the read response
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	if req.Timeout <= 0 {
		req.Timeout = DefaultTimeout
	}
	if req.Operation == "" {
		req.Operation = req.Method + " " + req.Path
	}

	correlationID := logging.NewCorrelationID()
	logger := c.logger.With(logging.Fields(correlationID, req.Operation)...)
	if parent := logging.CorrelationID(ctx); parent != "" {
		logger = logger.With(zap.String("parentId", parent))
	}

	start := time.Now()
	logger.Debug("request start",
		zap.String("method", req.Method),
		zap.String("path", req.Path),
		zap.Duration("timeout", req.Timeout),
	)

	onRetry := func(attempt int, delay time.Duration, err error) {
		logger.Warn("retrying request",
			zap.String("method", req.Method),
			zap.String("path", req.Path),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		c.reporter.Breadcrumb(ctx, incident.Breadcrumb{
			Category:      "transport.retry",
			Message:       fmt.Sprintf("retry %d after %s", attempt, delay),
			CorrelationID: correlationID,
			Data:          map[string]any{"path": req.Path, "error": err.Error()},
			Time:          time.Now(),
		})
	}

	resp, attempts, err := retryWithBackoff(ctx, c.retry, IsRetryable, onRetry, func(attempt int) (*Response, error) {
		return c.attempt(ctx, logger, req, correlationID, attempt)
	})
	elapsed := time.Since(start)

	if err != nil {
		logger.Error("request failed",
			zap.String("method", req.Method),
			zap.String("path", req.Path),
			zap.Int("attempts", attempts),
			zap.Duration("duration", elapsed),
			zap.Error(err),
		)
		c.reporter.Capture(ctx, incident.Event{
			Component:     "transport",
			Operation:     req.Operation,
			CorrelationID: correlationID,
			Err:           err,
			Extra: map[string]any{
				"method":    req.Method,
				"path":      req.Path,
				"params":    req.Params.Encode(),
				"attempts":  attempts,
				"elapsedMs": elapsed.Milliseconds(),
			},
			Time: time.Now(),
		})
		return nil, fmt.Errorf("%s failed after %d attempt(s): %w", req.Operation, attempts, err)
	}

	resp.Attempts = attempts
	resp.Duration = elapsed
	return resp, nil
}

// attempt performs one HTTP round trip bounded by the request timeout
func (c *Client) attempt(ctx context.Context, logger *zap.Logger, req Request, correlationID string, attempt int) (*Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, req.Timeout)
	defer cancel()

	target := c.resolve(req.Path, req.Params)
	httpReq, err := http.NewRequestWithContext(attemptCtx, req.Method, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "token "+c.token)
	httpReq.Header.Set(HeaderCorrelationID, correlationID)
	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set("Accept", "application/x-ndjson, application/json, text/plain")

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &NetworkError{Method: req.Method, Path: req.Path, Endpoint: c.Endpoint(), Err: err}
	}
	defer func() {
		_ = httpResp.Body.Close()
	}()

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(httpResp.Body, maxErrorBody))
		logger.Info("response",
			zap.String("method", req.Method),
			zap.String("path", req.Path),
			zap.Int("status", httpResp.StatusCode),
			zap.Duration("duration", time.Since(start)),
			zap.Int("attempt", attempt),
		)
		return nil, &StatusError{
			Method:     req.Method,
			Path:       req.Path,
			StatusCode: httpResp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		// a truncated body is treated like no response
		return nil, &NetworkError{Method: req.Method, Path: req.Path, Endpoint: c.Endpoint(), Err: err}
	}

	duration := time.Since(start)
	logger.Info("response",
		zap.String("method", req.Method),
		zap.String("path", req.Path),
		zap.Int("status", httpResp.StatusCode),
		zap.Duration("duration", duration),
		zap.Int("bytes", len(body)),
		zap.Int("attempt", attempt),
	)

	return &Response{
		StatusCode:    httpResp.StatusCode,
		Body:          body,
		CorrelationID: correlationID,
	}, nil
}

// resolve joins path and params onto the base URL
func (c *Client) resolve(path string, params url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
	u.RawQuery = params.Encode()
	return u.String()
}
