package loader

import (
	"context"

	"github.com/kick-dev/kick-host-sdk/kick"
)

// RegisterFunc is a bundle's registration entry point. A context-aware call
// subsumes both synchronous and deferred registration results.
type RegisterFunc func(ctx context.Context) (*kick.Registration, error)

// Module is a loaded bundle exposing named entry points. The resolution
// mechanism behind it (in-process, WASM, Lua, OCI) is a black box to the
// loader.
type Module interface {
	// EntryPoint returns the named exported function, or false if the
	// bundle does not expose it.
	EntryPoint(name string) (RegisterFunc, bool)

	// Close releases the bundle's resources.
	Close(ctx context.Context) error
}

// ModuleResolver resolves a source URL to a loaded Module. Resolvers are
// tried in registration order; the first that supports the URL wins.
type ModuleResolver interface {
	// Supports reports whether this resolver handles the source URL.
	Supports(sourceURL string) bool

	// Resolve loads the bundle. A failure here means the source is
	// unreachable, not that the registration contract was broken.
	Resolve(ctx context.Context, sourceURL string) (Module, error)
}

// SourceApprover gates first-time sources before resolution. Implemented by
// the gatekeeper package.
type SourceApprover interface {
	Approve(sourceURL string) (bool, error)
}
