package values

import (
	"encoding/json"
	"fmt"
	"strings"
)

// KickID is a validated kick identifier, stable and unique within one
// loaded set.
type KickID struct {
	value string
}

// NewKickID creates a KickID with strict validation. A valid id is
// non-empty after trimming, at most 128 characters, and free of control
// characters. Beyond that the id is opaque to the host.
func NewKickID(id string) (KickID, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return KickID{}, fmt.Errorf("kick id cannot be empty")
	}
	if len(id) > 128 {
		return KickID{}, fmt.Errorf("kick id too long (max 128 chars)")
	}
	for _, r := range id {
		if r < 0x20 || r == 0x7f {
			return KickID{}, fmt.Errorf("kick id %q contains control characters", id)
		}
	}
	return KickID{value: id}, nil
}

// MustNewKickID creates a KickID or panics.
func MustNewKickID(id string) KickID {
	kid, err := NewKickID(id)
	if err != nil {
		panic(err)
	}
	return kid
}

// String returns the string representation.
func (k KickID) String() string {
	return k.value
}

// IsEmpty returns true if this is the zero value.
func (k KickID) IsEmpty() bool {
	return k.value == ""
}

// Equals checks if two ids are equal.
func (k KickID) Equals(other KickID) bool {
	return k.value == other.value
}

// MarshalJSON implements json.Marshaler.
func (k KickID) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.value)
}

// UnmarshalJSON implements json.Unmarshaler.
func (k *KickID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("invalid kick id JSON: %w", err)
	}
	id, err := NewKickID(s)
	if err != nil {
		return err
	}
	*k = id
	return nil
}
