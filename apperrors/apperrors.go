// Package apperrors defines the error kinds surfaced by the benefits flows.
// Kinds are sentinel values matched with errors.Is; field-level validation
// failures are reported as *ValidationError and matched with errors.As.
package apperrors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrUniquenessConflict reports a code collision with another entity
	ErrUniquenessConflict = errors.New("uniqueness conflict")
	// ErrNotFound reports a missing entity id
	ErrNotFound = errors.New("not found")
	// ErrReferentialIntegrity reports a delete blocked by a reference elsewhere
	ErrReferentialIntegrity = errors.New("referential integrity")
	// ErrStorageFailure reports an unexpected read or write failure
	ErrStorageFailure = errors.New("storage failure")
	// ErrSaveInProgress is returned when a submit arrives while another one is outstanding
	ErrSaveInProgress = errors.New("save already in progress")
	// ErrFieldLocked is returned when editing a field of an inactive plan
	ErrFieldLocked = errors.New("field is locked while the plan is inactive")
	// ErrCoverageExclusive is returned when a selection would break the Waiver Plan exclusivity
	ErrCoverageExclusive = errors.New("coverage selection not allowed")
	// ErrConfirmationRequired is returned when a destructive action was not confirmed
	ErrConfirmationRequired = errors.New("confirmation required")
)

// ValidationError carries field-level failures keyed by field path.
// Values are rule names such as "required", "maxLength" or "duplicateCoverageCode".
type ValidationError struct {
	Message string
	Fields  map[string][]string
}

// NewValidationError creates an empty validation error with a user-facing message
func NewValidationError(message string) *ValidationError {
	return &ValidationError{Message: message, Fields: make(map[string][]string)}
}

// Add records a failed rule for a field, ignoring repeats
func (e *ValidationError) Add(field, rule string) {
	for _, existing := range e.Fields[field] {
		if existing == rule {
			return
		}
	}
	e.Fields[field] = append(e.Fields[field], rule)
}

// Has reports whether the field failed the rule
func (e *ValidationError) Has(field, rule string) bool {
	for _, existing := range e.Fields[field] {
		if existing == rule {
			return true
		}
	}
	return false
}

// Empty reports whether no field failed
func (e *ValidationError) Empty() bool {
	return len(e.Fields) == 0
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Fields))
	for field, rules := range e.Fields {
		fields = append(fields, fmt.Sprintf("%s(%s)", field, strings.Join(rules, ",")))
	}
	sort.Strings(fields)

	if len(fields) == 0 {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Message, strings.Join(fields, " "))
}

// Message returns the user-facing text for err: the validation message,
// the wrapped text for known kinds and a generic text for storage failures.
func Message(err error) string {
	var validationErr *ValidationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &validationErr):
		return validationErr.Message
	case errors.Is(err, ErrStorageFailure):
		return "Something went wrong, please try again"
	}

	msg := err.Error()
	// Kinds are wrapped as "<user message>: <kind>"; strip the kind suffix
	for _, kind := range []error{
		ErrUniquenessConflict, ErrNotFound, ErrReferentialIntegrity,
		ErrSaveInProgress, ErrFieldLocked, ErrCoverageExclusive, ErrConfirmationRequired,
	} {
		if errors.Is(err, kind) {
			if trimmed, ok := strings.CutSuffix(msg, ": "+kind.Error()); ok {
				return trimmed
			}
			return msg
		}
	}
	return msg
}

// Wrap attaches a user-facing message to an error kind
func Wrap(kind error, message string) error {
	return fmt.Errorf("%s: %w", message, kind)
}
