// Package dto contains the wire shapes exchanged with out-of-process kick
// bundles. Resolvers decode these and attach live components.
package dto

// RawDescriptorDTO is the wire shape of one registered kick. For bundle
// formats that cannot carry a function value, Component names the bundle
// export implementing the kick.
type RawDescriptorDTO struct {
	Component   string   `json:"component" jsonschema:"required,minLength=1"`
	Description string   `json:"description"`
	ID          string   `json:"id" jsonschema:"required,minLength=1"`
	Name        string   `json:"name" jsonschema:"required,minLength=1"`
	Position    float64  `json:"position" jsonschema:"required"`
	UserRoles   []string `json:"userRoles,omitempty"`
	HostVersion string   `json:"hostVersion,omitempty"`
}

// RegistrationDTO is the wire shape of a registration entry point's result.
type RegistrationDTO struct {
	Kicks []RawDescriptorDTO `json:"kicks" jsonschema:"required"`
}
