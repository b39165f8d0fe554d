// Package wazero resolves WASM kick bundles. A bundle exports
// register_kicks returning the JSON registration payload, plus per-kick
// <component>_execute and optional <component>_can_execute functions.
// All exports use the packed ptr/len calling convention: a uint64 whose
// high 32 bits are the pointer and low 32 bits the length.
package wazero

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/kick-dev/kick-host-sdk/kick"
	"github.com/kick-dev/kick-host-sdk/kick/dto"
	"github.com/kick-dev/kick-host-sdk/loader"
	"github.com/kick-dev/kick-host-sdk/netutil"
)

const registerExport = "register_kicks"

// Resolver loads WASM kick bundles from https, http, or file sources.
type Resolver struct {
	client *netutil.BundleClient
	cache  wazero.CompilationCache
	logger *slog.Logger
}

// Ensure Resolver satisfies the loader port.
var _ loader.ModuleResolver = (*Resolver)(nil)

// Option configures a Resolver.
type Option func(*Resolver)

// WithBundleClient sets the HTTP client used to fetch bundles.
func WithBundleClient(c *netutil.BundleClient) Option {
	return func(r *Resolver) {
		if c != nil {
			r.client = c
		}
	}
}

// WithCompilationCache shares compiled-module caching across loads.
func WithCompilationCache(cache wazero.CompilationCache) Option {
	return func(r *Resolver) { r.cache = cache }
}

// WithLogger sets the logger that receives bundle log_message output.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewResolver creates a WASM bundle resolver.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		client: netutil.NewBundleClient(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Supports implements loader.ModuleResolver.
func (r *Resolver) Supports(sourceURL string) bool {
	if !strings.HasSuffix(strings.ToLower(sourceURL), ".wasm") {
		return false
	}
	return netutil.IsHTTPS(sourceURL) ||
		strings.HasPrefix(sourceURL, "http://") ||
		strings.HasPrefix(sourceURL, "file://")
}

// Resolve implements loader.ModuleResolver.
func (r *Resolver) Resolve(ctx context.Context, sourceURL string) (loader.Module, error) {
	bundle, err := r.fetch(ctx, sourceURL)
	if err != nil {
		return nil, err
	}
	return r.Instantiate(ctx, sourceURL, bundle)
}

func (r *Resolver) fetch(ctx context.Context, sourceURL string) ([]byte, error) {
	if path, ok := strings.CutPrefix(sourceURL, "file://"); ok {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read bundle file: %w", err)
		}
		return data, nil
	}
	return r.client.Fetch(ctx, sourceURL)
}

// Instantiate builds a Module from raw WASM bytes. Exposed so the OCI
// resolver can delegate after pulling an artifact's layer.
func (r *Resolver) Instantiate(ctx context.Context, sourceURL string, bundle []byte) (loader.Module, error) {
	cfg := wazero.NewRuntimeConfig()
	if r.cache != nil {
		cfg = cfg.WithCompilationCache(r.cache)
	}
	runtime := wazero.NewRuntimeWithConfig(ctx, cfg)
	wasi_snapshot_preview1.MustInstantiate(ctx, runtime)

	if err := r.registerHostFunctions(ctx, runtime, sourceURL); err != nil {
		_ = runtime.Close(ctx)
		return nil, fmt.Errorf("register host functions: %w", err)
	}

	mod, err := runtime.Instantiate(ctx, bundle)
	if err != nil {
		_ = runtime.Close(ctx)
		return nil, fmt.Errorf("instantiate bundle: %w", err)
	}

	decoder, err := loader.NewWireDecoder(loader.WithWireLogger(r.logger))
	if err != nil {
		_ = runtime.Close(ctx)
		return nil, err
	}

	return &wasmModule{
		runtime: runtime,
		module:  mod,
		source:  netutil.StripCredentials(sourceURL),
		decoder: decoder,
	}, nil
}

// registerHostFunctions exposes log_message so bundles can log through the
// host's structured logger.
func (r *Resolver) registerHostFunctions(ctx context.Context, runtime wazero.Runtime, sourceURL string) error {
	source := netutil.StripCredentials(sourceURL)
	logger := r.logger

	_, err := runtime.NewHostModuleBuilder("env").
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, m api.Module, stack []uint64) {
			packed := stack[0]
			payload, ok := m.Memory().Read(uint32(packed>>32), uint32(packed))
			if !ok {
				logger.Warn("bundle log message outside memory bounds", "source", source)
				return
			}
			var msg struct {
				Level   string `json:"level"`
				Message string `json:"message"`
			}
			if err := json.Unmarshal(payload, &msg); err != nil {
				logger.Warn("bundle log message not JSON", "source", source, "error", err)
				return
			}
			level := slog.LevelInfo
			switch strings.ToLower(msg.Level) {
			case "debug":
				level = slog.LevelDebug
			case "warn", "warning":
				level = slog.LevelWarn
			case "error":
				level = slog.LevelError
			}
			logger.Log(ctx, level, msg.Message, "source", source)
		}), []api.ValueType{api.ValueTypeI64}, nil).
		Export("log_message").
		Instantiate(ctx)
	return err
}

// wasmModule adapts an instantiated WASM bundle to loader.Module. The
// underlying module is not reentrant, so calls are serialized.
type wasmModule struct {
	runtime wazero.Runtime
	module  api.Module
	source  string
	decoder *loader.WireDecoder

	mu sync.Mutex
}

// EntryPoint implements loader.Module. Only the registration entry point
// is addressable by name; per-kick functions are reached through the
// components the registration yields.
func (m *wasmModule) EntryPoint(name string) (loader.RegisterFunc, bool) {
	if name != kick.EntryPointName {
		return nil, false
	}
	if m.module.ExportedFunction(registerExport) == nil {
		return nil, false
	}
	return m.register, true
}

func (m *wasmModule) register(ctx context.Context) (*kick.Registration, error) {
	payload, err := m.call(ctx, registerExport, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", registerExport, err)
	}
	wire, err := m.decoder.Decode(m.source, payload)
	if err != nil {
		return nil, err
	}

	reg := &kick.Registration{Kicks: make([]kick.RawKick, 0, len(wire.Kicks))}
	for _, element := range wire.Kicks {
		reg.Kicks = append(reg.Kicks, kick.RawKick{
			ID:          element.ID,
			Name:        element.Name,
			Description: element.Description,
			Position:    element.Position,
			UserRoles:   element.UserRoles,
			HostVersion: element.HostVersion,
			Component:   m.component(element),
		})
	}
	return reg, nil
}

// component synthesizes a host-side component wrapping the bundle's
// per-kick exports. WASM kicks are ready as soon as they mount: the
// wrapper delivers the capability synchronously through OnReady.
func (m *wasmModule) component(element dto.RawDescriptorDTO) kick.Component {
	executeExport := element.Component + "_execute"
	canExecuteExport := element.Component + "_can_execute"

	return func(props kick.Props) {
		capability := kick.Capability{
			Execute: func(items []kick.SelectionItem) {
				payload, err := json.Marshal(items)
				if err != nil {
					panic(fmt.Sprintf("marshal selection: %v", err))
				}
				if _, err := m.call(context.Background(), executeExport, payload); err != nil {
					panic(fmt.Sprintf("%s: %v", executeExport, err))
				}
			},
		}
		if m.module.ExportedFunction(canExecuteExport) != nil {
			capability.CanExecute = func(items []kick.SelectionItem) bool {
				payload, err := json.Marshal(items)
				if err != nil {
					panic(fmt.Sprintf("marshal selection: %v", err))
				}
				result, err := m.call(context.Background(), canExecuteExport, payload)
				if err != nil {
					panic(fmt.Sprintf("%s: %v", canExecuteExport, err))
				}
				var applicable bool
				if err := json.Unmarshal(result, &applicable); err != nil {
					panic(fmt.Sprintf("%s returned non-boolean: %v", canExecuteExport, err))
				}
				return applicable
			}
		}
		props.OnReady(capability)
	}
}

// call invokes an export with the packed ptr/len convention and returns
// the result bytes.
func (m *wasmModule) call(ctx context.Context, name string, input []byte) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fn := m.module.ExportedFunction(name)
	if fn == nil {
		return nil, fmt.Errorf("export %q not found", name)
	}

	var packedInput uint64
	if len(input) > 0 {
		allocate := m.module.ExportedFunction("allocate")
		if allocate == nil {
			return nil, fmt.Errorf("export 'allocate' not found")
		}
		res, err := allocate.Call(ctx, uint64(len(input)))
		if err != nil {
			return nil, fmt.Errorf("allocate failed: %w", err)
		}
		ptr := res[0]
		if !m.module.Memory().Write(uint32(ptr), input) {
			return nil, fmt.Errorf("write input to bundle memory failed")
		}
		packedInput = (ptr << 32) | uint64(len(input))
	}

	res, err := fn.Call(ctx, packedInput)
	if err != nil {
		return nil, err
	}
	packed := res[0]
	length := uint32(packed)
	if length == 0 {
		return nil, nil
	}
	data, ok := m.module.Memory().Read(uint32(packed>>32), length)
	if !ok {
		return nil, fmt.Errorf("read result from bundle memory failed")
	}
	out := make([]byte, length)
	copy(out, data)
	return out, nil
}

// Close implements loader.Module.
func (m *wasmModule) Close(ctx context.Context) error {
	return m.runtime.Close(ctx)
}
