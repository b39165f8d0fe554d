// Package policy enforces which kick sources a host may load from.
package policy

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/kick-dev/kick-host-sdk/netutil"
)

// SourcePolicy decides whether a source URL may be loaded.
type SourcePolicy interface {
	// CheckSource reports the decision and notifies the denial handler on
	// refusal.
	CheckSource(sourceURL string) bool

	// EvaluateSource returns the decision without side effects.
	EvaluateSource(sourceURL string) bool
}

// DenialHandler is called when a policy check refuses a source.
type DenialHandler interface {
	OnDenial(sourceURL string, reason string)
}

// Ensure implementations satisfy the interfaces.
var (
	_ SourcePolicy  = (*GlobPolicy)(nil)
	_ SourcePolicy  = (*AllowAllPolicy)(nil)
	_ DenialHandler = (*NopDenialHandler)(nil)
)

// NopDenialHandler does nothing.
type NopDenialHandler struct{}

func (h *NopDenialHandler) OnDenial(string, string) {}

// GlobPolicy allows sources whose host matches any of a set of doublestar
// patterns (e.g. "cdn.example.com", "*.kicks.example.com"). HTTPS and OCI
// schemes are accepted; plain HTTP only when AllowInsecure is set.
type GlobPolicy struct {
	patterns      []string
	allowInsecure bool
	denials       DenialHandler
}

// GlobOption configures a GlobPolicy.
type GlobOption func(*GlobPolicy)

// WithAllowInsecure permits plain-HTTP sources. Meant for development.
func WithAllowInsecure(allow bool) GlobOption {
	return func(p *GlobPolicy) { p.allowInsecure = allow }
}

// WithDenialHandler sets the denial handler.
func WithDenialHandler(h DenialHandler) GlobOption {
	return func(p *GlobPolicy) {
		if h != nil {
			p.denials = h
		}
	}
}

// NewGlobPolicy creates a policy over host patterns. An empty pattern list
// denies everything.
func NewGlobPolicy(patterns []string, opts ...GlobOption) *GlobPolicy {
	p := &GlobPolicy{
		patterns: patterns,
		denials:  &NopDenialHandler{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CheckSource implements SourcePolicy.
func (p *GlobPolicy) CheckSource(sourceURL string) bool {
	allowed, reason := p.evaluate(sourceURL)
	if !allowed {
		p.denials.OnDenial(netutil.StripCredentials(sourceURL), reason)
	}
	return allowed
}

// EvaluateSource implements SourcePolicy.
func (p *GlobPolicy) EvaluateSource(sourceURL string) bool {
	allowed, _ := p.evaluate(sourceURL)
	return allowed
}

func (p *GlobPolicy) evaluate(sourceURL string) (bool, string) {
	parsed, err := url.Parse(sourceURL)
	if err != nil {
		return false, fmt.Sprintf("unparsable source URL: %v", err)
	}
	scheme := strings.ToLower(parsed.Scheme)
	switch scheme {
	case "https", "oci":
	case "http", "file", "lua":
		if !p.allowInsecure {
			return false, fmt.Sprintf("scheme %q requires AllowInsecure", scheme)
		}
	default:
		return false, fmt.Sprintf("unsupported scheme %q", scheme)
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "" && p.allowInsecure {
		// Local file and lua sources have no host; insecure mode covers them.
		return true, ""
	}
	for _, pattern := range p.patterns {
		if ok, err := doublestar.Match(strings.ToLower(pattern), host); err == nil && ok {
			return true, ""
		}
	}
	return false, fmt.Sprintf("host %q matches no allowed pattern", host)
}

// AllowAllPolicy accepts every source. Meant for tests and trusted setups.
type AllowAllPolicy struct{}

func (AllowAllPolicy) CheckSource(string) bool    { return true }
func (AllowAllPolicy) EvaluateSource(string) bool { return true }
