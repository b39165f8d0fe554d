// Package authz narrows a loaded kick set to the descriptors visible to
// the current actor.
package authz

import (
	"github.com/kick-dev/kick-host-sdk/kick/entities"
	"github.com/kick-dev/kick-host-sdk/kick/values"
)

// VisibleTo returns the descriptors the actor may see, preserving relative
// order. A descriptor with no required roles is visible to everyone; one
// with required roles is visible iff the actor's set shares any one role.
// The input slice is never mutated.
func VisibleTo(actorRoles values.RoleSet, descriptors []*entities.Descriptor) []*entities.Descriptor {
	visible := make([]*entities.Descriptor, 0, len(descriptors))
	for _, d := range descriptors {
		if Visible(actorRoles, d) {
			visible = append(visible, d)
		}
	}
	return visible
}

// Visible reports whether a single descriptor is visible to the actor.
func Visible(actorRoles values.RoleSet, d *entities.Descriptor) bool {
	required := d.RequiredRoles()
	if required.IsEmpty() {
		return true
	}
	return actorRoles.Intersects(required)
}
