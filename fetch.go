// Package hostlib is the host-side SDK for loading, authorizing, mounting,
// and invoking independently deployed UI extensions ("kicks"). The root
// package provides the shared services handed to every mounted instance;
// the protocol itself lives in the loader, lifecycle, gate, and authz
// packages.
package hostlib

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kick-dev/kick-host-sdk/kick"
	"github.com/kick-dev/kick-host-sdk/netutil"
)

// FetchOption configures the shared fetch utility.
type FetchOption func(*fetchConfig)

type fetchConfig struct {
	timeout     time.Duration
	maxBodySize int64
	userAgent   string
	transport   http.RoundTripper
}

func defaultFetchConfig() fetchConfig {
	return fetchConfig{
		timeout:     30 * time.Second,
		maxBodySize: 10 << 20,
		userAgent:   "kick-host-sdk",
	}
}

// WithFetchTimeout sets the per-request timeout.
func WithFetchTimeout(d time.Duration) FetchOption {
	return func(c *fetchConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithFetchMaxBodySize sets the response body ceiling in bytes.
func WithFetchMaxBodySize(n int64) FetchOption {
	return func(c *fetchConfig) {
		if n > 0 {
			c.maxBodySize = n
		}
	}
}

// WithFetchUserAgent sets the User-Agent applied when a request carries
// none of its own.
func WithFetchUserAgent(ua string) FetchOption {
	return func(c *fetchConfig) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithFetchTransport replaces the underlying transport.
func WithFetchTransport(rt http.RoundTripper) FetchOption {
	return func(c *fetchConfig) {
		c.transport = rt
	}
}

// NewFetch builds the network utility shared read-only across all mounted
// instances (the props' fetch service). Responses are size-capped rather
// than unbounded; an oversized body comes back truncated with Truncated set.
func NewFetch(opts ...FetchOption) kick.FetchFunc {
	cfg := defaultFetchConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	transport := cfg.transport
	if transport == nil {
		transport = &netutil.RetryTransport{}
	}
	client := &http.Client{
		Timeout:   cfg.timeout,
		Transport: transport,
	}

	return func(ctx context.Context, req kick.FetchRequest) (*kick.FetchResponse, error) {
		if req.URL == "" {
			return nil, fmt.Errorf("fetch: url is required")
		}
		method := req.Method
		if method == "" {
			method = http.MethodGet
		}

		var body *bytes.Reader
		httpReq, err := func() (*http.Request, error) {
			if len(req.Body) > 0 {
				body = bytes.NewReader(req.Body)
				return http.NewRequestWithContext(ctx, strings.ToUpper(method), req.URL, body)
			}
			return http.NewRequestWithContext(ctx, strings.ToUpper(method), req.URL, nil)
		}()
		if err != nil {
			return nil, fmt.Errorf("fetch: %w", err)
		}

		for k, v := range req.Headers {
			httpReq.Header.Set(k, v)
		}
		if httpReq.Header.Get("User-Agent") == "" {
			httpReq.Header.Set("User-Agent", cfg.userAgent)
		}

		resp, err := client.Do(httpReq)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", netutil.StripCredentials(req.URL), err)
		}
		defer resp.Body.Close() //nolint:errcheck

		data, err := netutil.ReadAllLimited(resp.Body, cfg.maxBodySize)
		truncated := false
		if err != nil {
			if !netutil.IsSizeLimitError(err) {
				return nil, fmt.Errorf("fetch %s: read body: %w", netutil.StripCredentials(req.URL), err)
			}
			truncated = true
		}
		return &kick.FetchResponse{
			StatusCode: resp.StatusCode,
			Headers:    resp.Header,
			Body:       data,
			Truncated:  truncated,
		}, nil
	}
}

// DefaultTheme returns the styling context handed to instances when the
// host configures none.
func DefaultTheme() *kick.Theme {
	return &kick.Theme{
		Name: "default",
		Palette: map[string]string{
			"primary":    "#0b5fff",
			"background": "#ffffff",
			"text":       "#1a1a1a",
		},
	}
}
