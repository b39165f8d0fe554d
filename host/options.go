package host

import (
	"log/slog"

	"github.com/kick-dev/kick-host-sdk/gate"
	"github.com/kick-dev/kick-host-sdk/kick"
	"github.com/kick-dev/kick-host-sdk/loader"
)

// Option defines a functional option for configuring the Host.
type Option func(*Host)

// WithLoader sets the extension loader.
func WithLoader(l *loader.Loader) Option {
	return func(h *Host) {
		if l != nil {
			h.loader = l
		}
	}
}

// WithGate sets the selection gate.
func WithGate(g *gate.Gate) Option {
	return func(h *Host) {
		if g != nil {
			h.gate = g
		}
	}
}

// WithTheme sets the styling context shared with every instance.
func WithTheme(t *kick.Theme) Option {
	return func(h *Host) {
		if t != nil {
			h.theme = t
		}
	}
}

// WithFetch sets the network utility shared with every instance.
func WithFetch(f kick.FetchFunc) Option {
	return func(h *Host) {
		if f != nil {
			h.fetch = f
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Host) {
		if l != nil {
			h.logger = l
		}
	}
}
