package entities

import (
	"errors"
	"fmt"
)

// Sentinel errors for the protocol's failure taxonomy. These allow
// errors.Is() checks while the typed errors below carry detail for
// errors.As().
var (
	// ErrContractViolation is returned when a bundle breaks the
	// registration contract: missing entry point, wrong top-level shape,
	// or an invalid readiness call.
	ErrContractViolation = errors.New("registration contract violation")

	// ErrSourceUnreachable is returned when module resolution for a source
	// fails (network error, malformed bundle). Other sources are unaffected.
	ErrSourceUnreachable = errors.New("kick source unreachable")

	// ErrExtensionFault is returned when kick-authored code panics inside
	// execute or canExecute. The fault is contained per call.
	ErrExtensionFault = errors.New("extension fault")

	// ErrInstanceClosed is returned when a closed instance is invoked, so
	// callers can detect stale references instead of silently no-opping.
	ErrInstanceClosed = errors.New("kick instance closed")
)

// ContractError describes a registration contract violation.
type ContractError struct {
	Source string
	Reason string
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("contract violation loading %s: %s", e.Source, e.Reason)
}

// Is implements error matching for errors.Is() checks.
func (e *ContractError) Is(target error) bool {
	return target == ErrContractViolation
}

// UnreachableError describes a failed module resolution.
type UnreachableError struct {
	Source string
	Cause  error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("kick source %s unreachable: %v", e.Source, e.Cause)
}

func (e *UnreachableError) Unwrap() error {
	return e.Cause
}

// Is implements error matching for errors.Is() checks.
func (e *UnreachableError) Is(target error) bool {
	return target == ErrSourceUnreachable
}

// FaultError describes a contained panic from kick-authored code.
type FaultError struct {
	KickID    string
	Operation string
	Recovered any
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("kick %s: fault in %s: %v", e.KickID, e.Operation, e.Recovered)
}

// Is implements error matching for errors.Is() checks.
func (e *FaultError) Is(target error) bool {
	return target == ErrExtensionFault
}
