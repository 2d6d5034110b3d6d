// Package httpclient wraps the HTTP client shared by every source adapter
// with logging, response size limits and retry classification.
package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/willow/pkg/metrics"
	"github.com/Ramsey-B/willow/pkg/retry"
	"github.com/Ramsey-B/willow/pkg/tracing"
)

const (
	// DefaultTimeout is the default request timeout
	DefaultTimeout = 45 * time.Second

	// MaxResponseSize is the maximum response body size (10MB)
	MaxResponseSize = 10 * 1024 * 1024
)

// Client wraps the HTTP client with logging and size limits
type Client struct {
	client    *http.Client
	logger    ectologger.Logger
	userAgent string
}

// Config holds HTTP client configuration
type Config struct {
	Timeout         time.Duration
	UserAgent       string
	MaxIdleConns    int
	IdleConnTimeout time.Duration
}

// DefaultConfig returns default HTTP client configuration
func DefaultConfig() Config {
	return Config{
		Timeout:         DefaultTimeout,
		MaxIdleConns:    100,
		IdleConnTimeout: 90 * time.Second,
	}
}

// NewClient creates a new HTTP client
func NewClient(cfg Config, logger ectologger.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	transport := &http.Transport{
		MaxIdleConns:    cfg.MaxIdleConns,
		IdleConnTimeout: cfg.IdleConnTimeout,
	}

	return &Client{
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		logger:    logger,
		userAgent: cfg.UserAgent,
	}
}

// Response represents an HTTP response with its body fully read.
type Response struct {
	StatusCode    int
	Headers       http.Header
	Body          []byte
	ContentType   string
	ContentLength int64
	Duration      time.Duration
}

// Do executes an HTTP request and returns the response. Transport-level
// failures come back wrapped as transient for the retry executor.
func (c *Client) Do(ctx context.Context, req *http.Request) (*Response, error) {
	ctx, span := tracing.StartSpan(ctx, "httpclient.Client.Do")
	defer span.End()

	if c.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	resp, err := c.client.Do(req.WithContext(ctx))
	if err != nil {
		c.logger.WithContext(ctx).WithError(err).Errorf("HTTP request failed: %s %s", req.Method, req.URL.String())
		metrics.OutboundRequests.WithLabelValues(req.URL.Host, "error").Inc()
		return nil, retry.Transient(fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return nil, retry.Transient(fmt.Errorf("failed to read response body: %w", err))
	}

	duration := time.Since(start)
	metrics.OutboundRequests.WithLabelValues(req.URL.Host, strconv.Itoa(resp.StatusCode)).Inc()
	metrics.OutboundRequestDuration.WithLabelValues(req.URL.Host).Observe(duration.Seconds())

	c.logger.WithContext(ctx).WithFields(map[string]any{
		"method":   req.Method,
		"url":      req.URL.String(),
		"status":   resp.StatusCode,
		"duration": duration.String(),
	}).Debug("HTTP request completed")

	return &Response{
		StatusCode:    resp.StatusCode,
		Headers:       resp.Header,
		Body:          body,
		ContentType:   resp.Header.Get("Content-Type"),
		ContentLength: int64(len(body)),
		Duration:      duration,
	}, nil
}

// Get issues a GET with the given headers.
func (c *Client) Get(ctx context.Context, url string, headers map[string]string) (*Response, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, retry.Permanent(err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return c.Do(ctx, req)
}

// ClassifyStatus maps an HTTP status to the shared retry taxonomy. 429 and 503
// honor a Retry-After hint; other 5xx are transient; remaining 4xx are
// permanent. 2xx returns nil: body-level garbling is for the adapter to judge.
func ClassifyStatus(resp *Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable:
		return retry.RateLimited(fmt.Errorf("upstream returned %d", resp.StatusCode), retryAfter(resp.Headers))
	case resp.StatusCode >= 500:
		return retry.Transient(fmt.Errorf("upstream returned %d", resp.StatusCode))
	default:
		return retry.Permanent(fmt.Errorf("upstream returned %d", resp.StatusCode))
	}
}

func retryAfter(headers http.Header) time.Duration {
	raw := headers.Get("Retry-After")
	if raw == "" {
		return 0
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(raw); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
