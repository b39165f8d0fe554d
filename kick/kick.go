// Package kick defines the data contracts exchanged between a host and an
// independently deployed UI extension ("kick"): the registration result an
// entry point returns, the props a mounted instance receives, and the
// capability object it hands back once ready.
package kick

// EntryPointName is the fixed name of the registration entry point a kick
// bundle must expose. Resolvers for non-Go bundle formats map this onto
// their own export conventions (e.g. the wasm export "register_kicks").
const EntryPointName = "registerKicks"

// SelectionItem describes one selected unit of host content. Kicks must
// treat it as read-only and must not assume attributes beyond ID.
type SelectionItem struct {
	ID    string         `json:"id"`
	Attrs map[string]any `json:"attrs,omitempty"`
}

// Capability is the object an instance supplies through OnReady once it is
// able to act. Execute is mandatory. A nil CanExecute means the kick is
// always applicable while visible.
type Capability struct {
	Execute    func(items []SelectionItem)
	CanExecute func(items []SelectionItem) bool
}

// Valid reports whether the capability satisfies the readiness contract.
func (c *Capability) Valid() bool {
	return c != nil && c.Execute != nil
}

// Theme is the host-owned styling context shared by all instances.
// Instances borrow it read-only for their lifetime.
type Theme struct {
	Name    string            `json:"name"`
	Palette map[string]string `json:"palette,omitempty"`
	Dark    bool              `json:"dark,omitempty"`
}

// Props are passed to a component on mount. The host owns every field; the
// instance borrows them for its lifetime and must not retain OnReady or
// OnClose past Close.
type Props struct {
	// OnReady delivers a capability object. It may be called again at any
	// time while mounted; each call replaces the previous object wholesale.
	OnReady func(Capability)

	// OnClose asks the host to tear the instance down. Optional, may be nil.
	OnClose func()

	// Theme is the shared styling context. Read-only.
	Theme *Theme

	// Fetch is the shared network utility. Read-only.
	Fetch FetchFunc
}

// Component is a renderable unit. Mounting an instance invokes it exactly
// once with that instance's props.
type Component func(props Props)

// RawKick is one element of a registration result before validation.
// Out-of-process bundles arrive as dto.RawDescriptorDTO and are converted to
// RawKick by their resolver, which synthesizes the Component.
type RawKick struct {
	ID          string
	Name        string
	Description string
	Position    float64
	UserRoles   []string
	HostVersion string
	Component   Component
}

// Registration is the value a registration entry point produces.
type Registration struct {
	Kicks []RawKick
}
