// Package transport implements the request/response side of the exchange
// client: JSON POSTs with per-attempt timeout, bounded retries with linear
// backoff, rate limiting, and schema-driven response decoding.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RetryConfig configures retry behavior
type RetryConfig struct {
	MaxAttempts int
	BackoffUnit time.Duration
}

// DefaultRetryConfig provides default retry settings
var DefaultRetryConfig = RetryConfig{
	MaxAttempts: 3,
	BackoffUnit: 500 * time.Millisecond,
}

// Config holds the configuration for a transport client
type Config struct {
	BaseURL string
	Timeout time.Duration // per attempt, not per call
	Retry   RetryConfig
	// RequestsPerSecond caps outbound request rate. Zero disables limiting.
	RequestsPerSecond float64
	Logger            *zap.Logger
}

// Client issues HTTP calls against the exchange REST endpoints. It holds no
// mutable session state between calls and is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	retry   RetryConfig
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewClient creates a new transport client
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = DefaultRetryConfig
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{},
		timeout: cfg.Timeout,
		retry:   cfg.Retry,
		limiter: limiter,
		logger:  cfg.Logger,
	}, nil
}

// Post marshals body, POSTs it to path, and decodes the JSON response into
// out (skipped when out is nil).
func (c *Client) Post(ctx context.Context, path string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}
	return c.Do(ctx, http.MethodPost, path, data, nil, out)
}

// Do issues a request with the configured retry policy. Network failures,
// timeouts, and 5xx responses are retried up to the attempt budget with a
// linear backoff between attempts; 4xx and decode failures surface
// immediately. Exhaustion returns the last error verbatim.
func (c *Client) Do(ctx context.Context, method, path string, body []byte, headers map[string]string, out any) error {
	var lastErr error

	for attempt := 0; attempt < c.retry.MaxAttempts; attempt++ {
		if attempt > 0 {
			// Linear backoff, applied only between attempts
			delay := time.Duration(attempt) * c.retry.BackoffUnit
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return &Error{Kind: KindNetwork, Path: path, Err: ctx.Err()}
			}
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return &Error{Kind: KindNetwork, Path: path, Err: err}
			}
		}

		err := c.doOnce(ctx, method, path, body, headers, out)
		if err == nil {
			return nil
		}

		var terr *Error
		if !errors.As(err, &terr) || !terr.Retryable() {
			return err
		}
		lastErr = err

		c.logger.Sugar().Warnw("Request attempt failed",
			"path", path,
			"attempt", attempt+1,
			"max_attempts", c.retry.MaxAttempts,
			"error", err,
		)
	}

	return lastErr
}

func (c *Client) doOnce(ctx context.Context, method, path string, body []byte, headers map[string]string, out any) error {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return &Error{Kind: KindNetwork, Path: path, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || attemptCtx.Err() == context.DeadlineExceeded {
			return &Error{Kind: KindTimeout, Path: path, Err: err}
		}
		return &Error{Kind: KindNetwork, Path: path, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Body is drained so the connection can be reused
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &Error{
			Kind:       KindHTTPStatus,
			StatusCode: resp.StatusCode,
			Path:       path,
			Err:        fmt.Errorf("server replied: %s", string(respBody)),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Kind: KindDecode, Path: path, Err: err}
	}
	return nil
}
