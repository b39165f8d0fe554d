package lifecycle_test

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/kick-dev/kick-host-sdk/kick"
	"github.com/kick-dev/kick-host-sdk/kick/entities"
	"github.com/kick-dev/kick-host-sdk/kick/values"
	"github.com/kick-dev/kick-host-sdk/lifecycle"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testDescriptor(t *testing.T, component kick.Component) *entities.Descriptor {
	t.Helper()
	d, err := entities.NewDescriptor(
		values.MustNewKickID("test-kick"), "Test Kick", "", 1, 0, values.RoleSet{}, component,
	)
	if err != nil {
		t.Fatalf("NewDescriptor failed: %v", err)
	}
	return d
}

func TestController_Mount(t *testing.T) {
	t.Run("NoCapabilityBeforeReady", func(t *testing.T) {
		d := testDescriptor(t, func(kick.Props) {})
		c := lifecycle.NewController(d, lifecycle.WithLogger(quietLogger()))

		if err := c.Mount(nil, nil); err != nil {
			t.Fatalf("Mount failed: %v", err)
		}
		if got := c.State(); got != lifecycle.StateAwaitingReady {
			t.Errorf("expected awaiting-ready, got %s", got)
		}
		capability, err := c.Capability()
		if err != nil {
			t.Fatalf("Capability failed: %v", err)
		}
		if capability != nil {
			t.Error("expected nil capability before readiness")
		}
	})

	t.Run("SynchronousReadyDuringMount", func(t *testing.T) {
		d := testDescriptor(t, func(props kick.Props) {
			props.OnReady(kick.Capability{Execute: func([]kick.SelectionItem) {}})
		})
		c := lifecycle.NewController(d, lifecycle.WithLogger(quietLogger()))

		if err := c.Mount(nil, nil); err != nil {
			t.Fatalf("Mount failed: %v", err)
		}
		if got := c.State(); got != lifecycle.StateReady {
			t.Errorf("expected ready, got %s", got)
		}
	})

	t.Run("MountTwiceFails", func(t *testing.T) {
		d := testDescriptor(t, func(kick.Props) {})
		c := lifecycle.NewController(d, lifecycle.WithLogger(quietLogger()))

		if err := c.Mount(nil, nil); err != nil {
			t.Fatalf("first Mount failed: %v", err)
		}
		if err := c.Mount(nil, nil); err == nil {
			t.Error("expected error on second mount")
		}
	})

	t.Run("PanickingComponentClosesInstance", func(t *testing.T) {
		d := testDescriptor(t, func(kick.Props) { panic("render failure") })
		c := lifecycle.NewController(d, lifecycle.WithLogger(quietLogger()))

		if err := c.Mount(nil, nil); err != nil {
			t.Fatalf("Mount should contain the panic, got %v", err)
		}
		if got := c.State(); got != lifecycle.StateClosed {
			t.Errorf("expected closed, got %s", got)
		}
	})
}

func TestController_CapabilityReplacement(t *testing.T) {
	var deliver func(kick.Capability)
	d := testDescriptor(t, func(props kick.Props) { deliver = props.OnReady })
	c := lifecycle.NewController(d, lifecycle.WithLogger(quietLogger()))
	if err := c.Mount(nil, nil); err != nil {
		t.Fatalf("Mount failed: %v", err)
	}

	var fired string
	first := kick.Capability{Execute: func([]kick.SelectionItem) { fired = "first" }}
	second := kick.Capability{Execute: func([]kick.SelectionItem) { fired = "second" }}

	deliver(first)
	deliver(second)

	capability, err := c.Capability()
	if err != nil {
		t.Fatalf("Capability failed: %v", err)
	}
	if capability == nil {
		t.Fatal("expected a capability after readiness")
	}
	capability.Execute(nil)
	if fired != "second" {
		t.Errorf("replacement should fully supersede the prior capability, got %q", fired)
	}
}

func TestController_InvalidCapabilityRejected(t *testing.T) {
	var deliver func(kick.Capability)
	d := testDescriptor(t, func(props kick.Props) { deliver = props.OnReady })
	c := lifecycle.NewController(d, lifecycle.WithLogger(quietLogger()))
	if err := c.Mount(nil, nil); err != nil {
		t.Fatalf("Mount failed: %v", err)
	}

	deliver(kick.Capability{Execute: nil, CanExecute: func([]kick.SelectionItem) bool { return true }})

	if got := c.State(); got != lifecycle.StateAwaitingReady {
		t.Errorf("invalid capability must not change state, got %s", got)
	}
	capability, err := c.Capability()
	if err != nil {
		t.Fatalf("Capability failed: %v", err)
	}
	if capability != nil {
		t.Error("invalid capability must not be stored")
	}
}

func TestController_Close(t *testing.T) {
	t.Run("CapabilityAfterCloseIsError", func(t *testing.T) {
		d := testDescriptor(t, func(props kick.Props) {
			props.OnReady(kick.Capability{Execute: func([]kick.SelectionItem) {}})
		})
		c := lifecycle.NewController(d, lifecycle.WithLogger(quietLogger()))
		if err := c.Mount(nil, nil); err != nil {
			t.Fatalf("Mount failed: %v", err)
		}

		c.Close()
		if _, err := c.Capability(); !errors.Is(err, entities.ErrInstanceClosed) {
			t.Errorf("expected ErrInstanceClosed, got %v", err)
		}
	})

	t.Run("ReadyAfterCloseIgnored", func(t *testing.T) {
		var deliver func(kick.Capability)
		d := testDescriptor(t, func(props kick.Props) { deliver = props.OnReady })
		c := lifecycle.NewController(d, lifecycle.WithLogger(quietLogger()))
		if err := c.Mount(nil, nil); err != nil {
			t.Fatalf("Mount failed: %v", err)
		}

		c.Close()
		deliver(kick.Capability{Execute: func([]kick.SelectionItem) {}})

		if got := c.State(); got != lifecycle.StateClosed {
			t.Errorf("closed is terminal, got %s", got)
		}
	})

	t.Run("CloseHandlerFiresOnce", func(t *testing.T) {
		var calls []string
		d := testDescriptor(t, func(kick.Props) {})
		c := lifecycle.NewController(d,
			lifecycle.WithLogger(quietLogger()),
			lifecycle.WithCloseHandler(func(instanceID string) { calls = append(calls, instanceID) }),
		)
		if err := c.Mount(nil, nil); err != nil {
			t.Fatalf("Mount failed: %v", err)
		}

		c.Close()
		c.Close()
		if len(calls) != 1 {
			t.Fatalf("expected one close callback, got %d", len(calls))
		}
		if calls[0] != c.ID() {
			t.Errorf("close handler got %s, want %s", calls[0], c.ID())
		}
	})

	t.Run("OnCloseFromComponent", func(t *testing.T) {
		var closeSelf func()
		d := testDescriptor(t, func(props kick.Props) { closeSelf = props.OnClose })
		c := lifecycle.NewController(d, lifecycle.WithLogger(quietLogger()))
		if err := c.Mount(nil, nil); err != nil {
			t.Fatalf("Mount failed: %v", err)
		}

		closeSelf()
		if got := c.State(); got != lifecycle.StateClosed {
			t.Errorf("expected closed, got %s", got)
		}
	})
}
