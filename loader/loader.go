// Package loader resolves kick sources to registration entry points,
// invokes them, and validates the result into descriptors.
package loader

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/Masterminds/semver/v3"

	"github.com/kick-dev/kick-host-sdk/kick"
	"github.com/kick-dev/kick-host-sdk/kick/entities"
	"github.com/kick-dev/kick-host-sdk/kick/values"
	"github.com/kick-dev/kick-host-sdk/netutil"
	"github.com/kick-dev/kick-host-sdk/policy"
)

// Loader produces validated descriptor lists from kick sources. Loading is
// side-effect free and idempotent per call; each Load fully replaces any
// prior result for the same source at the registry layer above.
type Loader struct {
	resolvers   []ModuleResolver
	sources     policy.SourcePolicy
	approver    SourceApprover
	hostVersion *semver.Version
	logger      *slog.Logger

	// Descriptor components stay bound to their bundle, so the bundle
	// handle must outlive the load. One live handle per source; a reload
	// replaces it.
	mu      sync.Mutex
	modules map[string]Module
}

// Option configures a Loader.
type Option func(*Loader)

// WithResolver appends a module resolver. Resolvers are tried in order.
func WithResolver(r ModuleResolver) Option {
	return func(l *Loader) { l.resolvers = append(l.resolvers, r) }
}

// WithSourcePolicy sets the source policy. Default allows everything.
func WithSourcePolicy(p policy.SourcePolicy) Option {
	return func(l *Loader) {
		if p != nil {
			l.sources = p
		}
	}
}

// WithApprover sets the first-use source approver.
func WithApprover(a SourceApprover) Option {
	return func(l *Loader) { l.approver = a }
}

// WithHostVersion declares the host's version for descriptor hostVersion
// constraints. Without it, constrained descriptors are dropped.
func WithHostVersion(v string) Option {
	return func(l *Loader) {
		parsed, err := semver.NewVersion(v)
		if err != nil {
			l.logger.Warn("ignoring unparsable host version", "version", v, "error", err)
			return
		}
		l.hostVersion = parsed
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New creates a Loader.
func New(opts ...Option) *Loader {
	l := &Loader{
		sources: policy.AllowAllPolicy{},
		logger:  slog.Default(),
		modules: make(map[string]Module),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load resolves sourceURL, invokes its registration entry point, and
// returns the validated descriptors sorted by position (ties by array
// order). Contract breaks at the bundle level fail the whole load;
// individual invalid descriptors are dropped with a warning.
func (l *Loader) Load(ctx context.Context, sourceURL string) ([]*entities.Descriptor, error) {
	safeURL := netutil.StripCredentials(sourceURL)

	if !l.sources.CheckSource(sourceURL) {
		return nil, &entities.UnreachableError{
			Source: safeURL,
			Cause:  fmt.Errorf("source refused by policy"),
		}
	}
	if l.approver != nil {
		approved, err := l.approver.Approve(sourceURL)
		if err != nil {
			return nil, fmt.Errorf("source approval: %w", err)
		}
		if !approved {
			return nil, &entities.UnreachableError{
				Source: safeURL,
				Cause:  fmt.Errorf("source not approved"),
			}
		}
	}

	module, err := l.resolve(ctx, sourceURL)
	if err != nil {
		return nil, err
	}

	registration, err := l.invokeEntryPoint(ctx, safeURL, module)
	if err != nil {
		if cerr := module.Close(ctx); cerr != nil {
			l.logger.Warn("closing kick module failed", "source", safeURL, "error", cerr)
		}
		return nil, err
	}
	l.retain(ctx, netutil.NormalizeURL(sourceURL), module)

	descriptors := l.validate(safeURL, registration)
	sort.SliceStable(descriptors, func(i, j int) bool {
		return descriptors[i].Before(descriptors[j])
	})

	l.logger.Info("kick source loaded",
		"source", safeURL,
		"registered", len(registration.Kicks),
		"loaded", len(descriptors))
	return descriptors, nil
}

// retain swaps in the source's live bundle handle, closing any handle a
// prior load left behind.
func (l *Loader) retain(ctx context.Context, key string, module Module) {
	l.mu.Lock()
	previous := l.modules[key]
	l.modules[key] = module
	l.mu.Unlock()

	if previous != nil {
		if err := previous.Close(ctx); err != nil {
			l.logger.Warn("closing replaced kick module failed", "source", key, "error", err)
		}
	}
}

// Close releases every live bundle handle. Call when the host shuts down.
func (l *Loader) Close(ctx context.Context) error {
	l.mu.Lock()
	modules := l.modules
	l.modules = make(map[string]Module)
	l.mu.Unlock()

	var firstErr error
	for key, module := range modules {
		if err := module.Close(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close module for %s: %w", key, err)
		}
	}
	return firstErr
}

func (l *Loader) resolve(ctx context.Context, sourceURL string) (Module, error) {
	safeURL := netutil.StripCredentials(sourceURL)
	for _, r := range l.resolvers {
		if !r.Supports(sourceURL) {
			continue
		}
		module, err := r.Resolve(ctx, sourceURL)
		if err != nil {
			return nil, &entities.UnreachableError{Source: safeURL, Cause: err}
		}
		return module, nil
	}
	return nil, &entities.UnreachableError{
		Source: safeURL,
		Cause:  fmt.Errorf("no resolver supports this source"),
	}
}

// invokeEntryPoint calls the fixed-name entry point under recover: a
// panicking entry point is a contract violation, not a host crash.
func (l *Loader) invokeEntryPoint(ctx context.Context, source string, module Module) (*kick.Registration, error) {
	entry, ok := module.EntryPoint(kick.EntryPointName)
	if !ok {
		return nil, &entities.ContractError{
			Source: source,
			Reason: fmt.Sprintf("bundle does not export %q", kick.EntryPointName),
		}
	}

	var (
		registration *kick.Registration
		callErr      error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				callErr = &entities.ContractError{
					Source: source,
					Reason: fmt.Sprintf("entry point panicked: %v", r),
				}
			}
		}()
		registration, callErr = entry(ctx)
	}()
	if callErr != nil {
		if _, isContract := callErr.(*entities.ContractError); isContract {
			return nil, callErr
		}
		return nil, &entities.ContractError{
			Source: source,
			Reason: fmt.Sprintf("entry point failed: %v", callErr),
		}
	}
	if registration == nil {
		return nil, &entities.ContractError{
			Source: source,
			Reason: "entry point returned no registration",
		}
	}
	return registration, nil
}

// validate applies the descriptor model rules element by element. Invalid
// elements and duplicate ids are dropped with a warning; first occurrence
// of an id wins (by array order).
func (l *Loader) validate(source string, registration *kick.Registration) []*entities.Descriptor {
	descriptors := make([]*entities.Descriptor, 0, len(registration.Kicks))
	seen := make(map[string]struct{}, len(registration.Kicks))

	for i, raw := range registration.Kicks {
		d, err := l.validateOne(i, raw)
		if err != nil {
			l.logger.Warn("dropping invalid kick descriptor",
				"source", source,
				"index", i,
				"id", raw.ID,
				"error", err)
			continue
		}
		if d == nil {
			// Host-version gated, already logged.
			continue
		}
		if _, dup := seen[d.ID().String()]; dup {
			l.logger.Warn("dropping kick descriptor with duplicate id",
				"source", source,
				"index", i,
				"id", d.ID().String())
			continue
		}
		seen[d.ID().String()] = struct{}{}
		descriptors = append(descriptors, d)
	}
	return descriptors
}

func (l *Loader) validateOne(index int, raw kick.RawKick) (*entities.Descriptor, error) {
	id, err := values.NewKickID(raw.ID)
	if err != nil {
		return nil, err
	}
	roles, err := values.NewRoleSet(raw.UserRoles...)
	if err != nil {
		return nil, err
	}

	if raw.HostVersion != "" {
		constraint, err := semver.NewConstraint(raw.HostVersion)
		if err != nil {
			return nil, fmt.Errorf("invalid hostVersion constraint %q: %w", raw.HostVersion, err)
		}
		if l.hostVersion == nil || !constraint.Check(l.hostVersion) {
			l.logger.Warn("dropping kick descriptor: host version not satisfied",
				"id", raw.ID,
				"constraint", raw.HostVersion)
			return nil, nil
		}
	}

	return entities.NewDescriptor(
		id,
		raw.Name,
		raw.Description,
		raw.Position,
		index,
		roles,
		raw.Component,
	)
}
