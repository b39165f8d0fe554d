package loader_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/kick-dev/kick-host-sdk/kick"
	"github.com/kick-dev/kick-host-sdk/kick/entities"
	"github.com/kick-dev/kick-host-sdk/loader"
	"github.com/kick-dev/kick-host-sdk/policy"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func noop(kick.Props) {}

func rawKick(id string, position float64) kick.RawKick {
	return kick.RawKick{
		ID:        id,
		Name:      id,
		Position:  position,
		Component: noop,
	}
}

func builtinLoader(t *testing.T, registration *kick.Registration, opts ...loader.Option) *loader.Loader {
	t.Helper()
	resolver := loader.NewInProcessResolver()
	err := resolver.Register("test", func(context.Context) (*kick.Registration, error) {
		return registration, nil
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	opts = append([]loader.Option{
		loader.WithResolver(resolver),
		loader.WithLogger(quiet()),
	}, opts...)
	return loader.New(opts...)
}

func TestLoader_Load(t *testing.T) {
	ctx := context.Background()

	t.Run("SortsByPositionThenArrayOrder", func(t *testing.T) {
		l := builtinLoader(t, &kick.Registration{Kicks: []kick.RawKick{
			rawKick("last", 9),
			rawKick("tie-first", 3),
			rawKick("first", 1),
			rawKick("tie-second", 3),
		}})

		descriptors, err := l.Load(ctx, "builtin://test")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		want := []string{"first", "tie-first", "tie-second", "last"}
		if len(descriptors) != len(want) {
			t.Fatalf("expected %d descriptors, got %d", len(want), len(descriptors))
		}
		for i, id := range want {
			if descriptors[i].ID().String() != id {
				t.Errorf("position %d: expected %s, got %s", i, id, descriptors[i].ID().String())
			}
		}
	})

	t.Run("DropsInvalidElementKeepsRest", func(t *testing.T) {
		broken := kick.RawKick{ID: "broken", Name: "Broken", Position: 2} // no component
		l := builtinLoader(t, &kick.Registration{Kicks: []kick.RawKick{
			rawKick("ok", 1),
			broken,
		}})

		descriptors, err := l.Load(ctx, "builtin://test")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if len(descriptors) != 1 || descriptors[0].ID().String() != "ok" {
			t.Errorf("expected only the valid descriptor, got %d", len(descriptors))
		}
	})

	t.Run("DuplicateIDFirstWins", func(t *testing.T) {
		first := rawKick("dup", 5)
		first.Name = "First"
		second := rawKick("dup", 1)
		second.Name = "Second"
		l := builtinLoader(t, &kick.Registration{Kicks: []kick.RawKick{first, second}})

		descriptors, err := l.Load(ctx, "builtin://test")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if len(descriptors) != 1 {
			t.Fatalf("expected one descriptor, got %d", len(descriptors))
		}
		if descriptors[0].Name() != "First" {
			t.Errorf("first occurrence by array order should win, got %s", descriptors[0].Name())
		}
	})

	t.Run("NoResolverIsUnreachable", func(t *testing.T) {
		l := loader.New(loader.WithLogger(quiet()))
		_, err := l.Load(ctx, "https://kicks.example/nobody.wasm")
		if !errors.Is(err, entities.ErrSourceUnreachable) {
			t.Errorf("expected ErrSourceUnreachable, got %v", err)
		}
	})

	t.Run("PolicyRefusalIsUnreachable", func(t *testing.T) {
		deny := policy.NewGlobPolicy([]string{"kicks.example"})
		l := builtinLoader(t, &kick.Registration{}, loader.WithSourcePolicy(deny))
		_, err := l.Load(ctx, "builtin://test")
		if !errors.Is(err, entities.ErrSourceUnreachable) {
			t.Errorf("expected ErrSourceUnreachable, got %v", err)
		}
	})

	t.Run("EntryPointErrorIsContractViolation", func(t *testing.T) {
		resolver := loader.NewInProcessResolver()
		if err := resolver.Register("failing", func(context.Context) (*kick.Registration, error) {
			return nil, fmt.Errorf("bundle init failed")
		}); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
		l := loader.New(loader.WithResolver(resolver), loader.WithLogger(quiet()))

		_, err := l.Load(ctx, "builtin://failing")
		if !errors.Is(err, entities.ErrContractViolation) {
			t.Errorf("expected ErrContractViolation, got %v", err)
		}
	})

	t.Run("EntryPointPanicIsContractViolation", func(t *testing.T) {
		resolver := loader.NewInProcessResolver()
		if err := resolver.Register("panicking", func(context.Context) (*kick.Registration, error) {
			panic("registration bug")
		}); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
		l := loader.New(loader.WithResolver(resolver), loader.WithLogger(quiet()))

		_, err := l.Load(ctx, "builtin://panicking")
		if !errors.Is(err, entities.ErrContractViolation) {
			t.Errorf("expected ErrContractViolation, got %v", err)
		}
	})

	t.Run("NilRegistrationIsContractViolation", func(t *testing.T) {
		l := builtinLoader(t, nil)
		_, err := l.Load(ctx, "builtin://test")
		if !errors.Is(err, entities.ErrContractViolation) {
			t.Errorf("expected ErrContractViolation, got %v", err)
		}
	})

	t.Run("MissingEntryPointIsContractViolation", func(t *testing.T) {
		l := loader.New(
			loader.WithResolver(exportlessResolver{}),
			loader.WithLogger(quiet()),
		)
		_, err := l.Load(ctx, "fake://anything")
		if !errors.Is(err, entities.ErrContractViolation) {
			t.Errorf("expected ErrContractViolation, got %v", err)
		}
	})
}

func TestLoader_HostVersionGating(t *testing.T) {
	ctx := context.Background()
	gated := rawKick("needs-v2", 1)
	gated.HostVersion = ">= 2.0.0"
	open := rawKick("any-host", 2)
	registration := &kick.Registration{Kicks: []kick.RawKick{gated, open}}

	t.Run("SatisfiedConstraintKept", func(t *testing.T) {
		l := builtinLoader(t, registration, loader.WithHostVersion("2.3.0"))
		descriptors, err := l.Load(ctx, "builtin://test")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if len(descriptors) != 2 {
			t.Fatalf("expected both descriptors, got %d", len(descriptors))
		}
	})

	t.Run("UnsatisfiedConstraintDropped", func(t *testing.T) {
		l := builtinLoader(t, registration, loader.WithHostVersion("1.9.0"))
		descriptors, err := l.Load(ctx, "builtin://test")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if len(descriptors) != 1 || descriptors[0].ID().String() != "any-host" {
			t.Errorf("expected only the unconstrained descriptor, got %d", len(descriptors))
		}
	})

	t.Run("UnknownHostVersionDropsConstrained", func(t *testing.T) {
		l := builtinLoader(t, registration)
		descriptors, err := l.Load(ctx, "builtin://test")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if len(descriptors) != 1 || descriptors[0].ID().String() != "any-host" {
			t.Errorf("expected only the unconstrained descriptor, got %d", len(descriptors))
		}
	})
}

func TestLoader_ModuleRetention(t *testing.T) {
	ctx := context.Background()

	t.Run("ReloadClosesReplacedHandle", func(t *testing.T) {
		first := &fakeModule{registration: &kick.Registration{}}
		second := &fakeModule{registration: &kick.Registration{}}
		resolver := &queueResolver{modules: []*fakeModule{first, second}}
		l := loader.New(loader.WithResolver(resolver), loader.WithLogger(quiet()))

		if _, err := l.Load(ctx, "fake://bundle"); err != nil {
			t.Fatalf("first Load failed: %v", err)
		}
		if first.closed {
			t.Fatal("live handle closed too early")
		}
		if _, err := l.Load(ctx, "fake://bundle"); err != nil {
			t.Fatalf("second Load failed: %v", err)
		}
		if !first.closed {
			t.Error("replaced handle should be closed")
		}
		if second.closed {
			t.Error("current handle must stay open")
		}
	})

	t.Run("CloseReleasesAllHandles", func(t *testing.T) {
		module := &fakeModule{registration: &kick.Registration{}}
		resolver := &queueResolver{modules: []*fakeModule{module}}
		l := loader.New(loader.WithResolver(resolver), loader.WithLogger(quiet()))

		if _, err := l.Load(ctx, "fake://bundle"); err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if err := l.Close(ctx); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
		if !module.closed {
			t.Error("Close should release the handle")
		}
	})

	t.Run("FailedEntryPointClosesHandleImmediately", func(t *testing.T) {
		module := &fakeModule{entryErr: fmt.Errorf("boom")}
		resolver := &queueResolver{modules: []*fakeModule{module}}
		l := loader.New(loader.WithResolver(resolver), loader.WithLogger(quiet()))

		if _, err := l.Load(ctx, "fake://bundle"); err == nil {
			t.Fatal("expected Load to fail")
		}
		if !module.closed {
			t.Error("failed bundle handle should be closed")
		}
	})
}

type fakeModule struct {
	registration *kick.Registration
	entryErr     error
	closed       bool
}

func (m *fakeModule) EntryPoint(name string) (loader.RegisterFunc, bool) {
	if name != kick.EntryPointName {
		return nil, false
	}
	return func(context.Context) (*kick.Registration, error) {
		return m.registration, m.entryErr
	}, true
}

func (m *fakeModule) Close(context.Context) error {
	m.closed = true
	return nil
}

type queueResolver struct {
	modules []*fakeModule
	next    int
}

func (r *queueResolver) Supports(string) bool { return true }

func (r *queueResolver) Resolve(context.Context, string) (loader.Module, error) {
	if r.next >= len(r.modules) {
		return nil, fmt.Errorf("no more modules queued")
	}
	m := r.modules[r.next]
	r.next++
	return m, nil
}

type exportlessModule struct{}

func (exportlessModule) EntryPoint(string) (loader.RegisterFunc, bool) { return nil, false }
func (exportlessModule) Close(context.Context) error                  { return nil }

type exportlessResolver struct{}

func (exportlessResolver) Supports(string) bool { return true }

func (exportlessResolver) Resolve(context.Context, string) (loader.Module, error) {
	return exportlessModule{}, nil
}
