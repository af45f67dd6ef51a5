// Package domain defines the error taxonomy shared by the pack store,
// the flows, and the render pipeline. Every error carries a stable code
// that the transport layer attaches to handler summaries.
package domain

import (
	"errors"
	"fmt"
)

// Error is a coded domain error. Codes are stable identifiers, messages are
// what the user-facing layer may show.
type Error struct {
	code    string
	message string
}

func newError(code, message string) *Error {
	return &Error{code: code, message: message}
}

// Error implements the error interface.
func (e *Error) Error() string { return e.message }

// Code returns the stable error code.
func (e *Error) Code() string { return e.code }

var (
	// ErrQuotaExceeded indicates the user spent their free pack allocation.
	ErrQuotaExceeded = newError("quota_exceeded", "free pack quota exhausted")
	// ErrCapacityExceeded indicates a pack is at its item limit.
	ErrCapacityExceeded = newError("capacity_exceeded", "pack is at its item limit")
	// ErrNameLengthInvalid indicates a pack name outside the allowed bounds.
	ErrNameLengthInvalid = newError("name_length_invalid", "pack name length is invalid")
	// ErrNotEntitled indicates a paid-only action requested by a free user.
	ErrNotEntitled = newError("not_entitled", "action requires a paid tier")
	// ErrOwnerOnly indicates an action restricted to the designated owner account.
	ErrOwnerOnly = newError("owner_only", "action is restricted to the owner account")
	// ErrNotAuthorized indicates an admin action from a non-owner.
	ErrNotAuthorized = newError("not_authorized", "not authorized")
	// ErrNotFound indicates the target pack or item no longer exists.
	ErrNotFound = newError("not_found", "target not found")
	// ErrDuplicateName indicates a slug collision within the same naming scope.
	ErrDuplicateName = newError("duplicate_name", "a pack with this name already exists")
	// ErrFlowInProgress indicates a conflicting flow-start while one is open.
	ErrFlowInProgress = newError("flow_in_progress", "another flow is already in progress")
	// ErrPlatformFailure indicates the external platform call failed; no local
	// mutation happened.
	ErrPlatformFailure = newError("platform_failure", "platform call failed")
	// ErrInconsistentState indicates the local commit failed after the platform
	// call succeeded. Logged for manual reconciliation, never swallowed.
	ErrInconsistentState = newError("inconsistent_state", "platform and local state diverged")
	// ErrUnsupportedBackground indicates the codec cannot render the requested
	// background mode. The flow reprompts background selection.
	ErrUnsupportedBackground = newError("unsupported_background", "background mode is not supported")
	// ErrValidation covers recoverable bad input that reprompts in place.
	ErrValidation = newError("validation_error", "invalid input")
)

// Wrap annotates a domain sentinel with an underlying cause while keeping
// errors.Is matching against the sentinel.
func Wrap(sentinel *Error, cause error) error {
	if cause == nil {
		return sentinel
	}
	return fmt.Errorf("%w: %v", sentinel, cause)
}

// CodeOf extracts the stable code from err, or "internal" when it carries none.
func CodeOf(err error) string {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code()
	}
	return "internal"
}

// IsRecoverable reports whether the error should reprompt or end the flow
// cleanly rather than mark it failed.
func IsRecoverable(err error) bool {
	switch {
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrNameLengthInvalid),
		errors.Is(err, ErrUnsupportedBackground),
		errors.Is(err, ErrQuotaExceeded),
		errors.Is(err, ErrCapacityExceeded),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrDuplicateName):
		return true
	}
	return false
}
