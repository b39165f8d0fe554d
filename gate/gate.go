// Package gate decides whether a kick may act on the current selection and
// dispatches invocations, containing faults in kick-authored code.
package gate

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/kick-dev/kick-host-sdk/kick"
	"github.com/kick-dev/kick-host-sdk/kick/entities"
	"github.com/kick-dev/kick-host-sdk/lifecycle"
)

// ErrNotApplicable is returned by Dispatch when the capability declines the
// selection at dispatch time.
var ErrNotApplicable = errors.New("kick not applicable to selection")

// FaultHandler is notified when kick-authored code faults. Faults are
// contained at the gate boundary; the handler only observes them.
type FaultHandler interface {
	OnFault(kickID string, operation string, recovered any)
}

// Ensure implementations satisfy the interface.
var (
	_ FaultHandler = (*SlogFaultHandler)(nil)
	_ FaultHandler = (*NopFaultHandler)(nil)
)

// SlogFaultHandler reports faults through a structured logger.
type SlogFaultHandler struct {
	Logger *slog.Logger
}

func (h *SlogFaultHandler) OnFault(kickID string, operation string, recovered any) {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Error("kick fault contained",
		"kick", kickID,
		"operation", operation,
		"panic", recovered)
}

// NopFaultHandler does nothing.
type NopFaultHandler struct{}

func (h *NopFaultHandler) OnFault(string, string, any) {}

// Gate evaluates applicability and dispatches execution.
type Gate struct {
	faults FaultHandler
}

// Option configures a Gate.
type Option func(*Gate)

// WithFaultHandler sets the fault handler.
func WithFaultHandler(h FaultHandler) Option {
	return func(g *Gate) {
		if h != nil {
			g.faults = h
		}
	}
}

// New creates a Gate. Faults go to slog unless another handler is given.
func New(opts ...Option) *Gate {
	g := &Gate{faults: &SlogFaultHandler{}}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Applicable reports whether the capability permits acting on the
// selection. A nil capability (instance not Ready) is never applicable; a
// nil canExecute means default-applicable; a panicking canExecute counts as
// not applicable and is reported, never propagated.
func (g *Gate) Applicable(kickID string, capability *kick.Capability, selection []kick.SelectionItem) bool {
	if capability == nil || capability.Execute == nil {
		return false
	}
	if capability.CanExecute == nil {
		return true
	}

	applicable := false
	func() {
		defer func() {
			if r := recover(); r != nil {
				g.faults.OnFault(kickID, "canExecute", r)
				applicable = false
			}
		}()
		applicable = capability.CanExecute(selection)
	}()
	return applicable
}

// Dispatch invokes the instance's execute for the selection. The capability
// reference is read atomically at dispatch time and applicability is
// re-checked against it immediately before executing, because the selection
// may have changed since a UI affordance was last enabled.
func (g *Gate) Dispatch(ctrl *lifecycle.Controller, selection []kick.SelectionItem) error {
	kickID := ctrl.Descriptor().ID().String()

	capability, err := ctrl.Capability()
	if err != nil {
		return err
	}
	if !g.Applicable(kickID, capability, selection) {
		return fmt.Errorf("kick %s: %w", kickID, ErrNotApplicable)
	}

	var fault *entities.FaultError
	func() {
		defer func() {
			if r := recover(); r != nil {
				g.faults.OnFault(kickID, "execute", r)
				fault = &entities.FaultError{
					KickID:    kickID,
					Operation: "execute",
					Recovered: r,
				}
			}
		}()
		capability.Execute(selection)
	}()
	if fault != nil {
		return fault
	}
	return nil
}
