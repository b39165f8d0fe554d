// Package lifecycle manages the per-instance state machine of a mounted
// kick: mount, readiness, capability replacement, and teardown.
package lifecycle

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/kick-dev/kick-host-sdk/kick"
	"github.com/kick-dev/kick-host-sdk/kick/entities"
)

// State is the observable lifecycle state of an instance.
type State int32

const (
	// StateAwaitingReady means the component is mounted but has not yet
	// delivered a valid capability. Not invocable.
	StateAwaitingReady State = iota

	// StateReady means a capability is held and the instance is invocable.
	StateReady

	// StateClosed is terminal. The capability is discarded and any further
	// invocation is an error, not a silent no-op.
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateAwaitingReady:
		return "awaiting-ready"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Controller owns one mounted instance. The host's event loop serializes
// readiness and invocation per instance by contract, but the controller is
// safe under interleaving anyway: the capability lives in a single atomic
// slot, so replacement never straddles an in-flight read.
type Controller struct {
	id         string
	descriptor *entities.Descriptor
	logger     *slog.Logger

	mu      sync.Mutex
	state   State
	mounted bool

	capability atomic.Pointer[kick.Capability]

	onClose func(instanceID string)
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithCloseHandler registers a host callback fired once when the instance
// closes, with the instance id.
func WithCloseHandler(fn func(instanceID string)) Option {
	return func(c *Controller) { c.onClose = fn }
}

// NewController creates an unmounted controller for the descriptor.
func NewController(descriptor *entities.Descriptor, opts ...Option) *Controller {
	c := &Controller{
		id:         uuid.NewString(),
		descriptor: descriptor,
		logger:     slog.Default(),
		state:      StateAwaitingReady,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ID returns the instance identifier.
func (c *Controller) ID() string {
	return c.id
}

// Descriptor returns the descriptor this instance renders.
func (c *Controller) Descriptor() *entities.Descriptor {
	return c.descriptor
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Mount renders the component once, handing it props wired to this
// controller. The readiness callback may fire synchronously during Mount or
// at any later point while mounted.
func (c *Controller) Mount(theme *kick.Theme, fetch kick.FetchFunc) error {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return entities.ErrInstanceClosed
	}
	if c.mounted {
		c.mu.Unlock()
		return fmt.Errorf("instance %s already mounted", c.id)
	}
	c.mounted = true
	c.mu.Unlock()

	props := kick.Props{
		OnReady: c.ready,
		OnClose: func() { c.Close() },
		Theme:   theme,
		Fetch:   fetch,
	}

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("kick component panicked on mount",
				"kick", c.descriptor.ID().String(),
				"instance", c.id,
				"panic", r)
			c.Close()
		}
	}()
	c.descriptor.Component()(props)
	return nil
}

// ready is the readiness callback handed to the instance. A structurally
// invalid capability (nil execute) keeps the prior state unchanged; a valid
// one atomically replaces the stored capability, and the first valid call
// transitions AwaitingReady to Ready.
func (c *Controller) ready(capability kick.Capability) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateClosed {
		c.logger.Warn("readiness signal after close ignored",
			"kick", c.descriptor.ID().String(),
			"instance", c.id)
		return
	}
	if !capability.Valid() {
		c.logger.Warn("invalid capability object rejected: missing execute",
			"kick", c.descriptor.ID().String(),
			"instance", c.id)
		return
	}

	// Single-assignment swap: the old object can never be observed again.
	c.capability.Store(&capability)
	if c.state != StateReady {
		c.state = StateReady
		c.logger.Debug("kick instance ready",
			"kick", c.descriptor.ID().String(),
			"instance", c.id)
	}
}

// Capability returns the authoritative capability object, read atomically.
// It returns nil before the first valid readiness call, and
// ErrInstanceClosed after Close so stale references are detectable.
func (c *Controller) Capability() (*kick.Capability, error) {
	c.mu.Lock()
	closed := c.state == StateClosed
	c.mu.Unlock()
	if closed {
		return nil, entities.ErrInstanceClosed
	}
	return c.capability.Load(), nil
}

// Close tears the instance down. Terminal and idempotent: the first call
// discards the capability and fires the close handler, later calls no-op.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	c.state = StateClosed
	c.capability.Store(nil)
	onClose := c.onClose
	c.mu.Unlock()

	c.logger.Debug("kick instance closed",
		"kick", c.descriptor.ID().String(),
		"instance", c.id)
	if onClose != nil {
		onClose(c.id)
	}
}
