// Package httpclient is the shared HTTP client: a bounded connection-handle
// pool with per-host affinity, retry/backoff for transient network errors,
// a minimum-inter-request rate limiter, a durable response cache, and a
// bounded-parallel batch-submission helper used by the forge sync's blob
// upload step.
package httpclient

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/gyattvc/gyatt/internal/gyatterrs"
)

// Config tunes the client's pool, retry, and rate-limit behavior.
type Config struct {
	PoolCapacity   int           // fixed handle pool capacity per process
	PoolWaitFor    time.Duration // bounded wait for a free handle before minting an emergency one
	PoolEmergency  int           // hard ceiling on concurrently outstanding emergency handles
	UseHTTP2       bool
	MaxRetries     uint64
	RetryBaseDelay time.Duration
	MinRequestGap  time.Duration // global minimum inter-request interval
	CacheTTL       time.Duration
}

// DefaultConfig returns sensible defaults: a bounded pool size and bounded
// retries with exponential backoff.
func DefaultConfig() Config {
	return Config{
		PoolCapacity:   8,
		PoolWaitFor:    5 * time.Second,
		PoolEmergency:  4,
		UseHTTP2:       true,
		MaxRetries:     4,
		RetryBaseDelay: 200 * time.Millisecond,
		MinRequestGap:  0,
		CacheTTL:       5 * time.Minute,
	}
}

// Client is the shared outbound HTTP client every forge/P2P call goes
// through.
type Client struct {
	cfg     Config
	pool    *pool
	limiter *rateLimiter
	cache   *ResponseCache // optional; nil disables caching
}

// New creates a Client. cache may be nil to disable response caching.
func New(cfg Config, cache *ResponseCache) *Client {
	return &Client{
		cfg:     cfg,
		pool:    newPool(cfg.PoolCapacity, cfg.PoolWaitFor, cfg.PoolEmergency, cfg.UseHTTP2),
		limiter: newRateLimiter(cfg.MinRequestGap),
		cache:   cache,
	}
}

// Response is the normalized result of a request: status, headers, and
// fully-read body (so retries and caching can inspect it without the
// caller managing an io.ReadCloser's lifetime).
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	FromCache  bool
}

// Request describes one outbound call.
type Request struct {
	Method  string
	URL     string
	Headers http.Header
	Body    []byte
}

// Do executes req, applying pooling, rate limiting, retries, and caching.
func (c *Client) Do(ctx context.Context, req Request) (Response, error) {
	if req.Method == http.MethodGet && c.cache != nil {
		if cached, ok := c.cache.Get(req.Method, req.URL, req.Body); ok {
			return Response{StatusCode: cached.StatusCode, Header: cached.Header, Body: cached.Body, FromCache: true}, nil
		}
	}

	host, err := hostOf(req.URL)
	if err != nil {
		return Response{}, gyatterrs.Wrap(gyatterrs.IoError, "httpclient.Do", err)
	}

	backoff := retry.NewExponential(c.cfg.RetryBaseDelay)
	backoff = retry.WithMaxRetries(c.cfg.MaxRetries, backoff)

	var result Response
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		c.limiter.wait()

		h, emergency := c.pool.acquire(host)
		resp, doErr := c.send(ctx, h, req)
		c.pool.release(host, h, emergency)

		if doErr != nil {
			if isTransientNetErr(doErr) {
				return retry.RetryableError(doErr)
			}
			return doErr
		}

		if req.Method == http.MethodGet && resp.StatusCode >= 500 {
			return retry.RetryableError(gyatterrs.Remote("httpclient.Do", resp.StatusCode, string(resp.Body)))
		}

		result = resp
		return nil
	})
	if err != nil {
		var structured *gyatterrs.Error
		if errors.As(err, &structured) {
			return Response{}, structured
		}
		return Response{}, gyatterrs.Wrap(gyatterrs.IoError, "httpclient.Do", err)
	}

	if req.Method == http.MethodGet && result.StatusCode == http.StatusOK && c.cache != nil {
		_ = c.cache.Put(req.Method, req.URL, req.Body, result.StatusCode, result.Body, result.Header, c.cfg.CacheTTL)
	}

	return result, nil
}

func (c *Client) send(ctx context.Context, h *handle, req Request) (Response, error) {
	var bodyReader io.Reader
	if req.Body != nil {
		bodyReader = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bodyReader)
	if err != nil {
		return Response{}, err
	}
	for k, vs := range req.Headers {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Connection", "keep-alive")

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, err
	}

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body},
			gyatterrs.Remote("httpclient.send", resp.StatusCode, string(body))
	}

	return Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

func hostOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	return u.Host, nil
}

// isTransientNetErr reports whether err is a connect, DNS-resolve, timeout,
// or send/recv reset failure eligible for retry. Retries are confined to
// idempotent GETs and to transient network errors on POSTs.
func isTransientNetErr(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true // covers connect/timeout/reset failures surfaced as net.Error
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}
	return false
}
