// Package entities contains the validated domain entities of the kick
// protocol.
package entities

import (
	"math"

	"github.com/kick-dev/kick-host-sdk/kick"
	"github.com/kick-dev/kick-host-sdk/kick/values"
)

// Descriptor is one loaded, validated kick. Immutable after load; the
// loader owns construction, the host only ever renders the component.
type Descriptor struct {
	id            values.KickID
	name          string
	description   string
	position      float64
	loadOrder     int
	requiredRoles values.RoleSet
	component     kick.Component
}

// NewDescriptor creates a validated descriptor. loadOrder is the element's
// index in the original registration array and breaks position ties.
func NewDescriptor(
	id values.KickID,
	name string,
	description string,
	position float64,
	loadOrder int,
	requiredRoles values.RoleSet,
	component kick.Component,
) (*Descriptor, error) {
	if id.IsEmpty() {
		return nil, &ContractError{Reason: "descriptor id is mandatory"}
	}
	if name == "" {
		return nil, &ContractError{Reason: "descriptor name is mandatory"}
	}
	if component == nil {
		return nil, &ContractError{Reason: "descriptor component is mandatory"}
	}
	if math.IsNaN(position) || math.IsInf(position, 0) {
		return nil, &ContractError{Reason: "descriptor position must be finite"}
	}
	return &Descriptor{
		id:            id,
		name:          name,
		description:   description,
		position:      position,
		loadOrder:     loadOrder,
		requiredRoles: requiredRoles,
		component:     component,
	}, nil
}

// ID returns the kick's stable identifier.
func (d *Descriptor) ID() values.KickID {
	return d.id
}

// Name returns the display name.
func (d *Descriptor) Name() string {
	return d.name
}

// Description returns the display description.
func (d *Descriptor) Description() string {
	return d.description
}

// Position returns the ordering key.
func (d *Descriptor) Position() float64 {
	return d.position
}

// LoadOrder returns the element's index in its registration array.
func (d *Descriptor) LoadOrder() int {
	return d.loadOrder
}

// RequiredRoles returns the role set gating visibility. Empty means
// visible to all actors.
func (d *Descriptor) RequiredRoles() values.RoleSet {
	return d.requiredRoles
}

// Component returns the renderable unit.
func (d *Descriptor) Component() kick.Component {
	return d.component
}

// Before reports whether d orders ahead of other: by position, ties broken
// by load order.
func (d *Descriptor) Before(other *Descriptor) bool {
	if d.position != other.position {
		return d.position < other.position
	}
	return d.loadOrder < other.loadOrder
}
