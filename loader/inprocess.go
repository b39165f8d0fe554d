package loader

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/kick-dev/kick-host-sdk/kick"
)

// InProcessResolver serves registration entry points compiled into the
// host binary, addressed as builtin://<name>. Built-in kicks go through
// the same validation pipeline as remote bundles.
type InProcessResolver struct {
	mu      sync.RWMutex
	bundles map[string]RegisterFunc
}

var _ ModuleResolver = (*InProcessResolver)(nil)

// NewInProcessResolver creates an empty in-process resolver.
func NewInProcessResolver() *InProcessResolver {
	return &InProcessResolver{
		bundles: make(map[string]RegisterFunc),
	}
}

// Register adds a named built-in bundle.
func (r *InProcessResolver) Register(name string, entry RegisterFunc) error {
	if name == "" {
		return fmt.Errorf("builtin bundle name cannot be empty")
	}
	if entry == nil {
		return fmt.Errorf("builtin bundle %q: entry point cannot be nil", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.bundles[name]; exists {
		return fmt.Errorf("builtin bundle already registered: %s", name)
	}
	r.bundles[name] = entry
	return nil
}

// Supports implements ModuleResolver.
func (r *InProcessResolver) Supports(sourceURL string) bool {
	return strings.HasPrefix(sourceURL, "builtin://")
}

// Resolve implements ModuleResolver.
func (r *InProcessResolver) Resolve(_ context.Context, sourceURL string) (Module, error) {
	name := strings.TrimPrefix(sourceURL, "builtin://")

	r.mu.RLock()
	entry, ok := r.bundles[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no builtin bundle named %q", name)
	}
	return &inProcessModule{entry: entry}, nil
}

type inProcessModule struct {
	entry RegisterFunc
}

func (m *inProcessModule) EntryPoint(name string) (RegisterFunc, bool) {
	if name != kick.EntryPointName {
		return nil, false
	}
	return m.entry, true
}

func (m *inProcessModule) Close(context.Context) error { return nil }
