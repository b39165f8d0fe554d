// Package gatekeeper handles first-use source approval: loads stored
// decisions, prompts for unknown sources, persists what the operator
// chose.
package gatekeeper

import (
	"fmt"
	"log/slog"

	"github.com/kick-dev/kick-host-sdk/loader"
	"github.com/kick-dev/kick-host-sdk/netutil"
)

// SecurityLevel controls the gatekeeper's prompting behavior.
type SecurityLevel string

const (
	// SecurityStrict refuses unknown sources outright.
	SecurityStrict SecurityLevel = "strict"

	// SecurityStandard prompts for unknown sources.
	SecurityStandard SecurityLevel = "standard"

	// SecurityPermissive approves everything without prompting.
	SecurityPermissive SecurityLevel = "permissive"
)

// Store persists source approval decisions.
type Store interface {
	Load() (map[string]bool, error)
	Save(decisions map[string]bool) error
}

// Prompter asks the operator about an unknown source.
type Prompter interface {
	IsInteractive() bool
	PromptForSource(sourceURL string) (approved bool, always bool, err error)
}

// Gatekeeper decides whether a kick source may be loaded.
type Gatekeeper struct {
	store    Store
	prompter Prompter
	level    SecurityLevel
	logger   *slog.Logger
}

var _ loader.SourceApprover = (*Gatekeeper)(nil)

// Option configures a Gatekeeper.
type Option func(*Gatekeeper)

// WithStore sets the decision store.
func WithStore(s Store) Option {
	return func(g *Gatekeeper) {
		if s != nil {
			g.store = s
		}
	}
}

// WithPrompter sets the prompter.
func WithPrompter(p Prompter) Option {
	return func(g *Gatekeeper) {
		if p != nil {
			g.prompter = p
		}
	}
}

// WithSecurityLevel sets the security policy level.
func WithSecurityLevel(level SecurityLevel) Option {
	return func(g *Gatekeeper) { g.level = level }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gatekeeper) {
		if l != nil {
			g.logger = l
		}
	}
}

// New creates a gatekeeper with pluggable store and prompter.
func New(opts ...Option) *Gatekeeper {
	g := &Gatekeeper{
		level:  SecurityStandard,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.store == nil {
		g.store = NewFileStore()
	}
	if g.prompter == nil {
		g.prompter = NewTerminalPrompter()
	}
	return g
}

// Approve implements loader.SourceApprover. Stored decisions win; unknown
// sources fall through to the security level and, under standard, the
// prompter.
func (g *Gatekeeper) Approve(sourceURL string) (bool, error) {
	key := netutil.NormalizeURL(sourceURL)

	decisions, err := g.store.Load()
	if err != nil {
		g.logger.Warn("loading source decisions failed, treating all sources as unknown", "error", err)
		decisions = map[string]bool{}
	}
	if decision, known := decisions[key]; known {
		return decision, nil
	}

	switch g.level {
	case SecurityPermissive:
		g.logger.Warn("auto-approving kick source (permissive mode)", "source", key)
		return true, nil
	case SecurityStrict:
		return false, nil
	}

	if !g.prompter.IsInteractive() {
		return false, nil
	}
	approved, always, err := g.prompter.PromptForSource(key)
	if err != nil {
		return false, fmt.Errorf("prompt for source %s: %w", key, err)
	}
	if always {
		decisions[key] = approved
		if err := g.store.Save(decisions); err != nil {
			g.logger.Warn("persisting source decision failed", "source", key, "error", err)
		}
	}
	return approved, nil
}
