// Package httpclient provides a shared JSON-over-HTTP client with rate
// limiting and retries for off-chain services.
package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/archon-research/snx-sdk/internal/pkg/retry"
)

type Config struct {
	Timeout        time.Duration
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
	RateLimit      rate.Limit
	RateBurst      int

	// HTTPClient overrides the default client built from Timeout.
	HTTPClient *http.Client
}

func DefaultConfig() Config {
	return Config{
		Timeout:        10 * time.Second,
		MaxRetries:     3,
		InitialBackoff: 250 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		BackoffFactor:  2.0,
		RateLimit:      rate.Limit(10),
		RateBurst:      5,
	}
}

type RequestConfig struct {
	URL     string
	Query   url.Values
	Headers map[string]string
}

func (r RequestConfig) target() string {
	if len(r.Query) == 0 {
		return r.URL
	}
	return r.URL + "?" + r.Query.Encode()
}

// ErrorParser inspects a response body for service-specific errors. It
// returns nil when the body carries no error. Errors it returns for 4xx
// responses are not retried.
type ErrorParser func(statusCode int, body []byte) error

// StatusError is an HTTP response outside the 2xx range.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected HTTP status %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the status is worth another attempt.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// permanentError stops the retry loop.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func permanent(err error) error {
	return &permanentError{err: err}
}

// Client is a rate limited GET client that decodes JSON responses.
type Client struct {
	http       *http.Client
	limiter    *rate.Limiter
	retry      retry.Config
	parseError ErrorParser
	logger     *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger, parseError ErrorParser) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if parseError == nil {
		parseError = func(int, []byte) error { return nil }
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		http:    httpClient,
		limiter: rate.NewLimiter(cfg.RateLimit, cfg.RateBurst),
		retry: retry.Config{
			MaxRetries:     cfg.MaxRetries,
			InitialBackoff: cfg.InitialBackoff,
			MaxBackoff:     cfg.MaxBackoff,
			BackoffFactor:  cfg.BackoffFactor,
			Jitter:         true,
		},
		parseError: parseError,
		logger:     logger,
	}
}

// GetJSON performs a GET and decodes the JSON body into result. 429 and 5xx
// responses and transport errors are retried; other 4xx are not.
func (c *Client) GetJSON(ctx context.Context, req RequestConfig, result any) error {
	retryable := func(err error) bool {
		var p *permanentError
		return !errors.As(err, &p)
	}
	onRetry := func(attempt int, err error, backoff time.Duration) {
		c.logger.Warn("request failed, retrying",
			"url", req.URL,
			"attempt", attempt,
			"maxRetries", c.retry.MaxRetries,
			"backoff", backoff,
			"error", err)
	}

	body, err := retry.Do(ctx, c.retry, retryable, onRetry, func() ([]byte, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, permanent(fmt.Errorf("rate limiter: %w", err))
		}
		return c.get(ctx, req)
	})
	if err != nil {
		return unwrapPermanent(err)
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

// get performs one attempt and returns the body of a successful response.
func (c *Client) get(ctx context.Context, req RequestConfig) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.target(), nil)
	if err != nil {
		return nil, permanent(fmt.Errorf("creating request: %w", err))
	}
	httpReq.Header.Set("Accept", "application/json")
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		err = fmt.Errorf("HTTP request failed: %w", err)
		if ctx.Err() != nil {
			return nil, permanent(err)
		}
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Warn("failed to close response body", "error", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := c.parseError(resp.StatusCode, body); err != nil {
			return nil, err
		}
		return body, nil
	}

	statusErr := &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	if statusErr.Retryable() {
		return nil, statusErr
	}
	if err := c.parseError(resp.StatusCode, body); err != nil {
		return nil, permanent(err)
	}
	return nil, permanent(statusErr)
}

// unwrapPermanent strips the retry marker so callers see the cause.
func unwrapPermanent(err error) error {
	var p *permanentError
	if errors.As(err, &p) {
		return p.err
	}
	return err
}
