// Package values contains value objects for the kick domain model.
package values

import (
	"fmt"
	"sort"
	"strings"
)

// RoleSet is an immutable set of role names with defined intersection
// semantics: visibility requires any one shared role, never all.
// The zero value is the empty set.
type RoleSet struct {
	roles map[string]struct{}
}

// NewRoleSet builds a RoleSet from role names. Blank roles are rejected;
// duplicates collapse.
func NewRoleSet(roles ...string) (RoleSet, error) {
	if len(roles) == 0 {
		return RoleSet{}, nil
	}
	set := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		trimmed := strings.TrimSpace(r)
		if trimmed == "" {
			return RoleSet{}, fmt.Errorf("role name cannot be blank")
		}
		set[trimmed] = struct{}{}
	}
	return RoleSet{roles: set}, nil
}

// MustNewRoleSet builds a RoleSet or panics.
func MustNewRoleSet(roles ...string) RoleSet {
	rs, err := NewRoleSet(roles...)
	if err != nil {
		panic(err)
	}
	return rs
}

// IsEmpty reports whether the set has no roles.
func (s RoleSet) IsEmpty() bool {
	return len(s.roles) == 0
}

// Len returns the number of roles.
func (s RoleSet) Len() int {
	return len(s.roles)
}

// Contains reports whether the set holds the given role.
func (s RoleSet) Contains(role string) bool {
	_, ok := s.roles[role]
	return ok
}

// Intersects reports whether the two sets share at least one role.
// The empty set intersects nothing, including itself.
func (s RoleSet) Intersects(other RoleSet) bool {
	small, large := s.roles, other.roles
	if len(large) < len(small) {
		small, large = large, small
	}
	for r := range small {
		if _, ok := large[r]; ok {
			return true
		}
	}
	return false
}

// Roles returns the role names in sorted order.
func (s RoleSet) Roles() []string {
	out := make([]string, 0, len(s.roles))
	for r := range s.roles {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// String returns a stable human-readable form for logging.
func (s RoleSet) String() string {
	return strings.Join(s.Roles(), ",")
}
