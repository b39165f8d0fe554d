package netutil

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"
)

// RetryTransport wraps an http.RoundTripper with exponential backoff.
// 5xx and 429 responses and transient network errors are retried;
// Retry-After headers are honored up to the backoff ceiling.
type RetryTransport struct {
	// Base is the underlying transport. http.DefaultTransport if nil.
	Base http.RoundTripper

	// OnRetry, if set, is called before each retry with the 1-based
	// attempt number, the wait, and the last status code (0 on a
	// network error).
	OnRetry func(attempt int, wait time.Duration, statusCode int)

	// MaxRetries caps retry attempts. Default 3.
	MaxRetries int

	// InitialBackoff is the first wait. Default 500ms.
	InitialBackoff time.Duration

	// MaxBackoff caps any single wait. Default 15s.
	MaxBackoff time.Duration
}

// RoundTrip implements http.RoundTripper.
func (t *RetryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	retries := t.MaxRetries
	if retries == 0 {
		retries = 3
	}
	initial := t.InitialBackoff
	if initial == 0 {
		initial = 500 * time.Millisecond
	}
	ceiling := t.MaxBackoff
	if ceiling == 0 {
		ceiling = 15 * time.Second
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		clone := req.Clone(req.Context())
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			clone.Body = body
		}

		resp, err := base.RoundTrip(clone)
		if err == nil && !retryableStatus(resp.StatusCode) {
			return resp, nil
		}

		status := 0
		if err == nil {
			status = resp.StatusCode
		}
		if attempt >= retries {
			if err != nil {
				return nil, err
			}
			return resp, nil
		}

		wait := backoff(attempt, initial, ceiling)
		if err == nil {
			if after := retryAfter(resp); after > 0 && after <= ceiling {
				wait = after
			}
			io.Copy(io.Discard, resp.Body) //nolint:errcheck
			resp.Body.Close()              //nolint:errcheck
		} else {
			lastErr = err
		}
		if t.OnRetry != nil {
			t.OnRetry(attempt+1, wait, status)
		}

		select {
		case <-req.Context().Done():
			if lastErr != nil {
				return nil, fmt.Errorf("%w (last error: %v)", req.Context().Err(), lastErr)
			}
			return nil, req.Context().Err()
		case <-time.After(wait):
		}
	}
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

func backoff(attempt int, initial, ceiling time.Duration) time.Duration {
	wait := time.Duration(float64(initial) * math.Pow(2, float64(attempt)))
	if wait > ceiling {
		return ceiling
	}
	return wait
}

func retryAfter(resp *http.Response) time.Duration {
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}

// BundleClient fetches kick bundle bytes over HTTP with retries and a body
// size ceiling.
type BundleClient struct {
	client  *http.Client
	maxSize int64
}

// BundleClientOption configures a BundleClient.
type BundleClientOption func(*BundleClient)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) BundleClientOption {
	return func(c *BundleClient) {
		if d > 0 {
			c.client.Timeout = d
		}
	}
}

// WithMaxBundleSize sets the bundle size ceiling in bytes.
func WithMaxBundleSize(n int64) BundleClientOption {
	return func(c *BundleClient) {
		if n > 0 {
			c.maxSize = n
		}
	}
}

// WithTransport replaces the underlying transport. The retry layer stays.
func WithTransport(rt http.RoundTripper) BundleClientOption {
	return func(c *BundleClient) {
		c.client.Transport = &RetryTransport{Base: rt}
	}
}

// NewBundleClient creates a bundle fetcher with sane defaults: 30s timeout,
// 32MiB ceiling, retrying transport.
func NewBundleClient(opts ...BundleClientOption) *BundleClient {
	c := &BundleClient{
		client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: &RetryTransport{},
		},
		maxSize: 32 << 20,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch downloads the bundle at url, enforcing the size ceiling.
func (c *BundleClient) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build bundle request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch bundle %s: %w", StripCredentials(url), err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch bundle %s: unexpected status %d", StripCredentials(url), resp.StatusCode)
	}
	data, err := ReadAllLimited(resp.Body, c.maxSize)
	if err != nil {
		return nil, fmt.Errorf("read bundle %s: %w", StripCredentials(url), err)
	}
	return data, nil
}
