// Package host orchestrates the kick protocol end to end: load sources,
// filter by actor, mount instances, and gate invocations.
package host

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	hostlib "github.com/kick-dev/kick-host-sdk"
	"github.com/kick-dev/kick-host-sdk/authz"
	"github.com/kick-dev/kick-host-sdk/gate"
	"github.com/kick-dev/kick-host-sdk/kick"
	"github.com/kick-dev/kick-host-sdk/kick/entities"
	"github.com/kick-dev/kick-host-sdk/kick/values"
	"github.com/kick-dev/kick-host-sdk/lifecycle"
	"github.com/kick-dev/kick-host-sdk/loader"
	"github.com/kick-dev/kick-host-sdk/registry"
)

// Host drives the full registration and execution protocol. Safe for
// concurrent use; per-instance serialization is the caller's contract.
type Host struct {
	loader *loader.Loader
	sets   *registry.Registry
	gate   *gate.Gate
	theme  *kick.Theme
	fetch  kick.FetchFunc
	logger *slog.Logger

	mu        sync.Mutex
	instances map[string]*lifecycle.Controller
	closed    bool
}

// New creates a Host.
func New(opts ...Option) *Host {
	h := &Host{
		sets:      registry.New(),
		theme:     hostlib.DefaultTheme(),
		logger:    slog.Default(),
		instances: make(map[string]*lifecycle.Controller),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.fetch == nil {
		h.fetch = hostlib.NewFetch()
	}
	if h.gate == nil {
		h.gate = gate.New(gate.WithFaultHandler(&gate.SlogFaultHandler{Logger: h.logger}))
	}
	if h.loader == nil {
		h.loader = loader.New(loader.WithLogger(h.logger))
	}
	return h
}

// Load loads (or re-loads) a kick source. A successful load replaces the
// source's previous descriptor set wholesale; a failed load leaves other
// sources untouched.
func (h *Host) Load(ctx context.Context, sourceURL string) ([]*entities.Descriptor, error) {
	descriptors, err := h.loader.Load(ctx, sourceURL)
	if err != nil {
		return nil, err
	}
	h.sets.Store(sourceURL, descriptors)
	return descriptors, nil
}

// Unload forgets a source's descriptors. Mounted instances keep running
// until unmounted; new mounts of the forgotten descriptors stop.
func (h *Host) Unload(sourceURL string) {
	h.sets.Remove(sourceURL)
}

// Visible returns every loaded descriptor the actor may see, in position
// order.
func (h *Host) Visible(actorRoles values.RoleSet) []*entities.Descriptor {
	return authz.VisibleTo(actorRoles, h.sets.All())
}

// Mount renders a descriptor for an actor, returning the instance
// controller. Mounting a descriptor the actor cannot see is refused.
func (h *Host) Mount(actorRoles values.RoleSet, descriptor *entities.Descriptor) (*lifecycle.Controller, error) {
	if !authz.Visible(actorRoles, descriptor) {
		return nil, fmt.Errorf("kick %s is not visible to roles [%s]",
			descriptor.ID().String(), actorRoles.String())
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, fmt.Errorf("host is closed")
	}
	h.mu.Unlock()

	ctrl := lifecycle.NewController(descriptor,
		lifecycle.WithLogger(h.logger),
		lifecycle.WithCloseHandler(h.forget),
	)

	h.mu.Lock()
	h.instances[ctrl.ID()] = ctrl
	h.mu.Unlock()

	if err := ctrl.Mount(h.theme, h.fetch); err != nil {
		h.forget(ctrl.ID())
		return nil, err
	}
	return ctrl, nil
}

// Instance returns a mounted instance by id.
func (h *Host) Instance(instanceID string) (*lifecycle.Controller, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ctrl, ok := h.instances[instanceID]
	return ctrl, ok
}

// Applicable reports whether the instance may act on the selection. A
// closed instance reports an error so callers can detect stale handles; an
// instance that is merely not Ready reports false.
func (h *Host) Applicable(instanceID string, selection []kick.SelectionItem) (bool, error) {
	ctrl, ok := h.Instance(instanceID)
	if !ok {
		return false, entities.ErrInstanceClosed
	}
	capability, err := ctrl.Capability()
	if err != nil {
		return false, err
	}
	return h.gate.Applicable(ctrl.Descriptor().ID().String(), capability, selection), nil
}

// Invoke dispatches the selection to the instance's execute, re-checking
// applicability at dispatch time.
func (h *Host) Invoke(instanceID string, selection []kick.SelectionItem) error {
	ctrl, ok := h.Instance(instanceID)
	if !ok {
		return entities.ErrInstanceClosed
	}
	return h.gate.Dispatch(ctrl, selection)
}

// Unmount closes a mounted instance. Unknown ids no-op: the instance may
// already have closed itself through its close callback.
func (h *Host) Unmount(instanceID string) {
	if ctrl, ok := h.Instance(instanceID); ok {
		ctrl.Close()
	}
}

// Close tears down every mounted instance, releases bundle handles, and
// refuses further mounts.
func (h *Host) Close(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	ctrls := make([]*lifecycle.Controller, 0, len(h.instances))
	for _, ctrl := range h.instances {
		ctrls = append(ctrls, ctrl)
	}
	h.mu.Unlock()

	for _, ctrl := range ctrls {
		ctrl.Close()
	}
	return h.loader.Close(ctx)
}

// forget drops a closed instance from the table. Registered as the
// lifecycle close handler, so self-closing kicks are also dropped.
func (h *Host) forget(instanceID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.instances, instanceID)
}
