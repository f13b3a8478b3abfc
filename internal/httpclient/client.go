// Package httpclient is the single way out of this service: a typed JSON
// client over net/http with per-attempt timeouts, exponential backoff for
// idempotent calls, and a uniform response envelope. Instances are shared
// per configuration via GetInstance.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/cuadrantes/iph-console/backend/internal/logger"
	"github.com/cuadrantes/iph-console/backend/internal/metrics"
	"github.com/cuadrantes/iph-console/backend/internal/retry"
	"github.com/cuadrantes/iph-console/backend/internal/tracing"
)

const (
	defaultTimeout = 15 * time.Second

	// Default backoff tuning, overridable per client through Config. Delays
	// double from the base up to the cap, with uniform jitter on top.
	retryBaseDelay = 300 * time.Millisecond
	retryMaxDelay  = 5 * time.Second
	retryMaxJitter = 200 * time.Millisecond

	maxBodyBytes = 10 << 20
)

// Config is the immutable per-client configuration. Two configs that compare
// equal (same base URL, timeout, retry tuning, and headers) identify one
// client.
type Config struct {
	BaseURL        string
	Timeout        time.Duration // per attempt, not per call
	Retries        int           // additional attempts after the first
	RetryBase      time.Duration // first backoff delay; doubles per attempt
	RetryCap       time.Duration // backoff ceiling before jitter
	LogRetries     bool          // log retry attempts at info instead of debug
	DefaultHeaders map[string]string
}

// Client issues typed requests against a single base URL. It holds no
// mutable state; concurrent calls are independent.
type Client struct {
	cfg   Config
	hc    *http.Client
	sleep retry.Sleeper
}

// New builds a client from cfg. Zero Timeout falls back to 15s; negative
// Retries are clamped to 0. Most callers should prefer GetInstance.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = retryBaseDelay
	}
	if cfg.RetryCap <= 0 {
		cfg.RetryCap = retryMaxDelay
	}
	headers := make(map[string]string, len(cfg.DefaultHeaders))
	for k, v := range cfg.DefaultHeaders {
		headers[k] = v
	}
	cfg.DefaultHeaders = headers
	return &Client{
		cfg:   cfg,
		hc:    &http.Client{},
		sleep: meteredSleep,
	}
}

func meteredSleep(ctx context.Context, d time.Duration) error {
	metrics.ClientBackoffWaits.Observe(d.Seconds())
	return retry.Sleep(ctx, d)
}

// Config returns a copy of the client configuration.
func (c *Client) Config() Config {
	cfg := c.cfg
	headers := make(map[string]string, len(cfg.DefaultHeaders))
	for k, v := range cfg.DefaultHeaders {
		headers[k] = v
	}
	cfg.DefaultHeaders = headers
	return cfg
}

// RequestOptions are per-call overrides. A nil *RequestOptions means all
// client defaults apply.
type RequestOptions struct {
	Headers map[string]string
	Timeout time.Duration
	// Retries overrides the retry count for this call. Setting it is the only
	// way to retry a POST.
	Retries *int
	// ParseErrorBody returns an envelope with OK=false for HTTP error
	// statuses instead of a typed error, decoding the error body into Data.
	ParseErrorBody bool
}

// Response is the uniform envelope for a completed call.
type Response[T any] struct {
	Status     int
	OK         bool // true iff status in [200, 300)
	StatusText string
	Headers    http.Header
	Data       T
	Duration   time.Duration // whole call, including retries and backoff
	Attempts   int
}

// Get issues a GET request and decodes the JSON response into T.
func Get[T any](ctx context.Context, c *Client, path string, opts *RequestOptions) (*Response[T], error) {
	return call[T](ctx, c, http.MethodGet, path, nil, opts)
}

// Post issues a POST request. POSTs are not retried unless opts.Retries is set.
func Post[T any](ctx context.Context, c *Client, path string, body any, opts *RequestOptions) (*Response[T], error) {
	return call[T](ctx, c, http.MethodPost, path, body, opts)
}

// Put issues a PUT request.
func Put[T any](ctx context.Context, c *Client, path string, body any, opts *RequestOptions) (*Response[T], error) {
	return call[T](ctx, c, http.MethodPut, path, body, opts)
}

// Patch issues a PATCH request.
func Patch[T any](ctx context.Context, c *Client, path string, body any, opts *RequestOptions) (*Response[T], error) {
	return call[T](ctx, c, http.MethodPatch, path, body, opts)
}

// Delete issues a DELETE request.
func Delete[T any](ctx context.Context, c *Client, path string, opts *RequestOptions) (*Response[T], error) {
	return call[T](ctx, c, http.MethodDelete, path, nil, opts)
}

func call[T any](ctx context.Context, c *Client, method, path string, body any, opts *RequestOptions) (*Response[T], error) {
	raw, err := c.do(ctx, method, path, body, opts)
	if err != nil {
		return nil, err
	}
	ok := raw.status >= 200 && raw.status < 300
	resp := &Response[T]{
		Status:     raw.status,
		OK:         ok,
		StatusText: http.StatusText(raw.status),
		Headers:    raw.header,
		Duration:   raw.duration,
		Attempts:   raw.attempts,
	}
	if len(raw.body) > 0 {
		if err := json.Unmarshal(raw.body, &resp.Data); err != nil {
			if ok {
				return nil, fmt.Errorf("httpclient: decode %s %s response: %w", method, raw.url, err)
			}
			// error bodies are decoded best effort
		}
	}
	return resp, nil
}

type rawResult struct {
	status   int
	header   http.Header
	body     []byte
	attempts int
	duration time.Duration
	url      string
}

func (c *Client) do(ctx context.Context, method, path string, body any, opts *RequestOptions) (*rawResult, error) {
	start := time.Now()
	url := c.resolveURL(path)

	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("httpclient: encode %s %s body: %w", method, url, err)
		}
		payload = b
	}

	timeout := c.cfg.Timeout
	if opts != nil && opts.Timeout > 0 {
		timeout = opts.Timeout
	}
	maxAttempts := c.maxAttempts(method, opts)

	ctx, span := tracing.StartSpan(ctx, "httpclient.request", trace.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.url", url),
	))
	defer span.End()

	policy := retry.Policy{
		MaxAttempts: maxAttempts,
		BaseDelay:   c.cfg.RetryBase,
		MaxDelay:    c.cfg.RetryCap,
		MaxJitter:   retryMaxJitter,
	}

	logRetry := logger.DebugContext
	if c.cfg.LogRetries {
		logRetry = logger.InfoContext
	}

	var out *rawResult
	var lastStatus *rawResult
	attempts := 0
	err := retry.Do(ctx, policy, c.sleep, func(ctx context.Context, attempt int) error {
		attempts = attempt
		res, aerr := c.attempt(ctx, method, url, payload, opts, timeout)
		if aerr != nil {
			aerr.Attempts = attempt
			if aerr.Kind == KindStatus {
				lastStatus = res
			}
			if aerr.retryable() && attempt < maxAttempts {
				metrics.ClientRequests.WithLabelValues("retry").Inc()
				metrics.ClientRetries.Inc()
				logRetry(ctx, "retrying upstream call",
					"method", method, "url", url, "attempt", attempt,
					"kind", aerr.Kind.String(), "status", aerr.Status)
				return retry.Retryable(aerr)
			}
			metrics.ClientRequests.WithLabelValues("error").Inc()
			return aerr
		}
		metrics.ClientRequests.WithLabelValues("success").Inc()
		out = res
		return nil
	})
	duration := time.Since(start)
	metrics.ClientCallDuration.WithLabelValues(method).Observe(duration.Seconds())

	if err != nil {
		ce, ok := AsError(err)
		if !ok {
			// context errors raised between attempts
			ce = &Error{Kind: KindCanceled, Method: method, URL: url, Attempts: attempts, Err: err}
			err = ce
		}
		if ce.Kind == KindStatus && opts != nil && opts.ParseErrorBody && lastStatus != nil {
			lastStatus.attempts = attempts
			lastStatus.duration = duration
			lastStatus.url = url
			logger.HTTP(ctx, method, url, lastStatus.status, attempts, duration, nil)
			span.SetAttributes(attribute.Int("http.status_code", lastStatus.status))
			return lastStatus, nil
		}
		logger.HTTP(ctx, method, url, ce.Status, attempts, duration, err)
		span.RecordError(err)
		return nil, err
	}

	out.attempts = attempts
	out.duration = duration
	out.url = url
	logger.HTTP(ctx, method, url, out.status, attempts, duration, nil)
	span.SetAttributes(
		attribute.Int("http.status_code", out.status),
		attribute.Int("http.attempts", attempts),
	)
	return out, nil
}

// attempt performs one bounded network attempt. For HTTP error statuses both
// the raw result (headers and body) and the typed error are returned so the
// terminal failure can surface the error body.
func (c *Client) attempt(ctx context.Context, method, url string, payload []byte, opts *RequestOptions, timeout time.Duration) (*rawResult, *Error) {
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(actx, method, url, reqBody)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Method: method, URL: url, Err: err}
	}
	c.setHeaders(req, opts, payload != nil)

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, c.classifyTransport(ctx, actx, method, url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, c.classifyTransport(ctx, actx, method, url, err)
	}

	if resp.StatusCode >= 400 {
		return &rawResult{status: resp.StatusCode, header: resp.Header, body: data},
			&Error{Kind: KindStatus, Method: method, URL: url, Status: resp.StatusCode, Body: data}
	}
	return &rawResult{status: resp.StatusCode, header: resp.Header, body: data}, nil
}

// classifyTransport separates caller cancellation from per-attempt timeouts
// from plain network failures. The parent context is checked first: a caller
// abort must never be reported as a timeout.
func (c *Client) classifyTransport(parent, attempt context.Context, method, url string, err error) *Error {
	if parent.Err() != nil {
		return &Error{Kind: KindCanceled, Method: method, URL: url, Err: parent.Err()}
	}
	if errors.Is(err, context.DeadlineExceeded) || attempt.Err() == context.DeadlineExceeded {
		return &Error{Kind: KindTimeout, Method: method, URL: url, Err: err}
	}
	return &Error{Kind: KindNetwork, Method: method, URL: url, Err: err}
}

func (c *Client) setHeaders(req *http.Request, opts *RequestOptions, hasBody bool) {
	for k, v := range c.cfg.DefaultHeaders {
		req.Header.Set(k, v)
	}
	if opts != nil {
		for k, v := range opts.Headers {
			req.Header.Set(k, v)
		}
	}
	if hasBody && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
}

func (c *Client) maxAttempts(method string, opts *RequestOptions) int {
	retries := c.cfg.Retries
	if method == http.MethodPost {
		// Non-idempotent; retrying would risk duplicate side effects.
		retries = 0
	}
	if opts != nil && opts.Retries != nil {
		retries = *opts.Retries
		if retries < 0 {
			retries = 0
		}
	}
	return retries + 1
}

func (c *Client) resolveURL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	base := strings.TrimSuffix(c.cfg.BaseURL, "/")
	if path == "" {
		return base
	}
	return base + "/" + strings.TrimPrefix(path, "/")
}
