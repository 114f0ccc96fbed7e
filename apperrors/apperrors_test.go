package apperrors

import (
	"errors"
	"fmt"
	"testing"
)

func TestValidationError(t *testing.T) {
	errs := NewValidationError("Please correct the highlighted fields")
	if !errs.Empty() {
		t.Fatal("A new validation error must be empty")
	}

	errs.Add("name", "required")
	errs.Add("code", "maxLength")
	errs.Add("code", "maxLength")

	if len(errs.Fields["code"]) != 1 {
		t.Errorf("Repeated rules must be recorded once, got %v", errs.Fields["code"])
	}
	if !errs.Has("name", "required") || errs.Has("name", "maxLength") {
		t.Errorf("Unexpected Has results for %v", errs.Fields)
	}

	want := "validation failed: Please correct the highlighted fields: code(maxLength) name(required)"
	if errs.Error() != want {
		t.Errorf("Expected %q, got %q", want, errs.Error())
	}
}

func TestMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"nil", nil, ""},
		{"validation", fmt.Errorf("plan 1: %w", NewValidationError("Fix the form")), "Fix the form"},
		{"storage", fmt.Errorf("list medical_plans: %w: disk", ErrStorageFailure), "Something went wrong, please try again"},
		{"wrapped kind", Wrap(ErrReferentialIntegrity, "Coverage code is in use"), "Coverage code is in use"},
		{"bare kind", ErrNotFound, "not found"},
		{"other", errors.New("boom"), "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Message(tt.err); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestWrapKeepsKind(t *testing.T) {
	err := Wrap(ErrUniquenessConflict, "Plan code already exists")

	if !errors.Is(err, ErrUniquenessConflict) {
		t.Error("Wrap must keep the kind matchable")
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("Wrap must not match other kinds")
	}
}
