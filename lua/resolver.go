// Package lua resolves Lua script kick bundles. A bundle defines a global
// registerKicks() returning the registration table; each descriptor's
// component field names a global table holding execute and an optional
// canExecute function.
package lua

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	glua "github.com/yuin/gopher-lua"

	"github.com/kick-dev/kick-host-sdk/kick"
	"github.com/kick-dev/kick-host-sdk/kick/dto"
	"github.com/kick-dev/kick-host-sdk/loader"
	"github.com/kick-dev/kick-host-sdk/netutil"
)

// Resolver loads Lua kick bundles from file or https sources ending in
// .lua.
type Resolver struct {
	client *netutil.BundleClient
	logger *slog.Logger
}

var _ loader.ModuleResolver = (*Resolver)(nil)

// Option configures a Resolver.
type Option func(*Resolver)

// WithBundleClient sets the HTTP client used to fetch scripts.
func WithBundleClient(c *netutil.BundleClient) Option {
	return func(r *Resolver) {
		if c != nil {
			r.client = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewResolver creates a Lua bundle resolver.
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
	if !strings.HasSuffix(strings.ToLower(sourceURL), ".lua") {
		return false
	}
	return netutil.IsHTTPS(sourceURL) ||
		strings.HasPrefix(sourceURL, "http://") ||
		strings.HasPrefix(sourceURL, "file://")
}

// Resolve implements loader.ModuleResolver.
func (r *Resolver) Resolve(ctx context.Context, sourceURL string) (loader.Module, error) {
	var (
		script []byte
		err    error
	)
	if path, ok := strings.CutPrefix(sourceURL, "file://"); ok {
		script, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read script: %w", err)
		}
	} else {
		script, err = r.client.Fetch(ctx, sourceURL)
		if err != nil {
			return nil, err
		}
	}

	// The LState is not goroutine-safe; every call into it below is
	// serialized through the module mutex.
	state := glua.NewState(glua.Options{SkipOpenLibs: false})
	if err := state.DoString(string(script)); err != nil {
		state.Close()
		return nil, fmt.Errorf("evaluate script: %w", err)
	}

	decoder, err := loader.NewWireDecoder(loader.WithWireLogger(r.logger))
	if err != nil {
		state.Close()
		return nil, err
	}

	return &luaModule{
		state:   state,
		source:  netutil.StripCredentials(sourceURL),
		decoder: decoder,
	}, nil
}

// luaModule adapts a loaded Lua script to loader.Module.
type luaModule struct {
	state   *glua.LState
	source  string
	decoder *loader.WireDecoder

	mu     sync.Mutex
	closed bool
}

// EntryPoint implements loader.Module.
func (m *luaModule) EntryPoint(name string) (loader.RegisterFunc, bool) {
	if name != kick.EntryPointName {
		return nil, false
	}
	m.mu.Lock()
	fn := m.state.GetGlobal(kick.EntryPointName)
	m.mu.Unlock()
	if fn.Type() != glua.LTFunction {
		return nil, false
	}
	return m.register, true
}

func (m *luaModule) register(ctx context.Context) (*kick.Registration, error) {
	m.mu.Lock()
	value, err := m.call(kick.EntryPointName, 1)
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(luaToGo(value))
	if err != nil {
		return nil, fmt.Errorf("registration table not serializable: %w", err)
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

// component wraps the script's global component table. Lua kicks are ready
// on mount; the wrapper hands the capability over synchronously.
func (m *luaModule) component(element dto.RawDescriptorDTO) kick.Component {
	name := element.Component
	return func(props kick.Props) {
		capability := kick.Capability{
			Execute: func(items []kick.SelectionItem) {
				if err := m.invoke(name, "execute", items, nil); err != nil {
					panic(err.Error())
				}
			},
		}
		if m.hasFunction(name, "canExecute") {
			capability.CanExecute = func(items []kick.SelectionItem) bool {
				var applicable bool
				if err := m.invoke(name, "canExecute", items, &applicable); err != nil {
					panic(err.Error())
				}
				return applicable
			}
		}
		props.OnReady(capability)
	}
}

func (m *luaModule) hasFunction(table, field string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	tbl, ok := m.state.GetGlobal(table).(*glua.LTable)
	if !ok {
		return false
	}
	return m.state.GetField(tbl, field).Type() == glua.LTFunction
}

// invoke calls <table>.<field>(selection). When out is non-nil the single
// return value is decoded into it as a boolean.
func (m *luaModule) invoke(table, field string, items []kick.SelectionItem, out *bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("lua bundle %s is closed", m.source)
	}
	tbl, ok := m.state.GetGlobal(table).(*glua.LTable)
	if !ok {
		return fmt.Errorf("component table %q not found", table)
	}
	fn, ok := m.state.GetField(tbl, field).(*glua.LFunction)
	if !ok {
		return fmt.Errorf("component %q has no %s function", table, field)
	}

	returns := 0
	if out != nil {
		returns = 1
	}
	m.state.Push(fn)
	m.state.Push(selectionToLua(m.state, items))
	if err := m.state.PCall(1, returns, nil); err != nil {
		return fmt.Errorf("%s.%s: %w", table, field, err)
	}
	if out != nil {
		ret := m.state.Get(-1)
		m.state.Pop(1)
		*out = glua.LVAsBool(ret)
	}
	return nil
}

// call invokes a global function already known to exist. Caller holds mu.
func (m *luaModule) call(name string, returns int) (glua.LValue, error) {
	if m.closed {
		return glua.LNil, fmt.Errorf("lua bundle %s is closed", m.source)
	}
	fn, ok := m.state.GetGlobal(name).(*glua.LFunction)
	if !ok {
		return glua.LNil, fmt.Errorf("global function %q not found", name)
	}
	m.state.Push(fn)
	if err := m.state.PCall(0, returns, nil); err != nil {
		return glua.LNil, fmt.Errorf("%s: %w", name, err)
	}
	ret := m.state.Get(-1)
	m.state.Pop(returns)
	return ret, nil
}

// Close implements loader.Module.
func (m *luaModule) Close(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		m.state.Close()
	}
	return nil
}

// selectionToLua converts the host selection into a Lua array of item
// tables.
func selectionToLua(state *glua.LState, items []kick.SelectionItem) *glua.LTable {
	list := state.NewTable()
	for _, item := range items {
		entry := state.NewTable()
		state.SetField(entry, "id", glua.LString(item.ID))
		attrs := state.NewTable()
		for k, v := range item.Attrs {
			state.SetField(attrs, k, goToLua(state, v))
		}
		state.SetField(entry, "attrs", attrs)
		list.Append(entry)
	}
	return list
}

func goToLua(state *glua.LState, v any) glua.LValue {
	switch value := v.(type) {
	case nil:
		return glua.LNil
	case bool:
		return glua.LBool(value)
	case string:
		return glua.LString(value)
	case int:
		return glua.LNumber(value)
	case int64:
		return glua.LNumber(value)
	case float64:
		return glua.LNumber(value)
	case []any:
		list := state.NewTable()
		for _, e := range value {
			list.Append(goToLua(state, e))
		}
		return list
	case map[string]any:
		tbl := state.NewTable()
		for k, e := range value {
			state.SetField(tbl, k, goToLua(state, e))
		}
		return tbl
	default:
		return glua.LString(fmt.Sprintf("%v", value))
	}
}

// luaToGo converts a Lua value into JSON-marshalable Go data. Tables with
// only consecutive integer keys from 1 become arrays.
func luaToGo(value glua.LValue) any {
	switch v := value.(type) {
	case *glua.LNilType:
		return nil
	case glua.LBool:
		return bool(v)
	case glua.LString:
		return string(v)
	case glua.LNumber:
		return float64(v)
	case *glua.LTable:
		maxN := v.MaxN()
		if maxN > 0 {
			arr := make([]any, 0, maxN)
			for i := 1; i <= maxN; i++ {
				arr = append(arr, luaToGo(v.RawGetInt(i)))
			}
			return arr
		}
		obj := make(map[string]any)
		v.ForEach(func(key, val glua.LValue) {
			if ks, ok := key.(glua.LString); ok {
				obj[string(ks)] = luaToGo(val)
			}
		})
		return obj
	default:
		return nil
	}
}
