package coverage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/giygas/benefits-api/apperrors"
	"github.com/giygas/benefits-api/entities"
	"github.com/giygas/benefits-api/gateway"
	"github.com/giygas/benefits-api/storage"
	"github.com/google/go-cmp/cmp"
)

// toasts records notifications for assertions
type toasts struct {
	successes []string
	errors    []string
}

func (t *toasts) Success(message string) { t.successes = append(t.successes, message) }
func (t *toasts) Error(message string)   { t.errors = append(t.errors, message) }

type fixture struct {
	kv      *storage.Memory
	codes   *gateway.Collection[entities.CoverageCode]
	plans   *gateway.Collection[entities.MedicalPlanDetail]
	service *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	kv := storage.NewMemory()
	g := gateway.New(kv)
	f := &fixture{
		kv:    kv,
		codes: gateway.NewCollection[entities.CoverageCode](g, entities.CoverageCodesCollection, Label),
		plans: gateway.NewCollection[entities.MedicalPlanDetail](g, entities.MedicalPlansCollection, "Medical plan"),
	}
	f.service = NewService(f.codes, f.plans)

	n := 0
	f.service.newID = func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
	return f
}

func (f *fixture) stored(t *testing.T) []byte {
	t.Helper()
	raw, _, err := f.kv.Get(context.Background(), entities.CoverageCodesCollection)
	if err != nil {
		t.Fatalf("Failed to read storage: %v", err)
	}
	return raw
}

func TestAddAppearsInList(t *testing.T) {
	tests := []struct {
		name        string
		code        string
		description string
	}{
		{"shortest", "A", "d"},
		{"longest", "ABCD", strings.Repeat("x", 30)},
		{"lower case is upper-cased", "med", "Medical"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			notify := &toasts{}

			added, err := f.service.Add(context.Background(), notify, Input{Code: tt.code, Description: tt.description, Active: true})
			if err != nil {
				t.Fatalf("Add failed: %v", err)
			}
			if added.ID == "" {
				t.Error("Expected a generated id")
			}
			if added.Code != strings.ToUpper(tt.code) {
				t.Errorf("Expected code %s, got %s", strings.ToUpper(tt.code), added.Code)
			}

			codes, err := f.service.List(context.Background(), notify)
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			if diff := cmp.Diff([]entities.CoverageCode{added}, codes); diff != "" {
				t.Errorf("List mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff([]string{gateway.MessageSet}, notify.successes); diff != "" {
				t.Errorf("Toast mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAddGeneratesDistinctIDs(t *testing.T) {
	kv := storage.NewMemory()
	g := gateway.New(kv)
	service := NewService(
		gateway.NewCollection[entities.CoverageCode](g, entities.CoverageCodesCollection, Label),
		gateway.NewCollection[entities.MedicalPlanDetail](g, entities.MedicalPlansCollection, "Medical plan"),
	)

	first, err := service.Add(context.Background(), &toasts{}, Input{Code: "A", Description: "a"})
	if err != nil {
		t.Fatal(err)
	}
	second, err := service.Add(context.Background(), &toasts{}, Input{Code: "B", Description: "b"})
	if err != nil {
		t.Fatal(err)
	}
	if first.ID == second.ID {
		t.Errorf("Expected distinct uuids, got %s twice", first.ID)
	}
}

func TestAddValidation(t *testing.T) {
	f := newFixture(t)
	notify := &toasts{}

	_, err := f.service.Add(context.Background(), notify, Input{Code: "TOOLONG", Description: ""})

	var validationErr *apperrors.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("Expected ValidationError, got %v", err)
	}
	if !validationErr.Has("code", "maxLength") || !validationErr.Has("description", "required") {
		t.Errorf("Unexpected field errors: %v", validationErr.Fields)
	}
	if f.stored(t) != nil {
		t.Error("Invalid input must not be written")
	}
}

func TestAddDuplicateLeavesStorageUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.service.Add(ctx, &toasts{}, Input{Code: "MED", Description: "Medical"}); err != nil {
		t.Fatal(err)
	}
	before := f.stored(t)

	notify := &toasts{}
	_, err := f.service.Add(ctx, notify, Input{Code: "med", Description: "Other"})

	if !errors.Is(err, apperrors.ErrUniquenessConflict) {
		t.Fatalf("Expected uniqueness conflict, got %v", err)
	}
	if diff := cmp.Diff([]string{"Coverage code already exists"}, notify.errors); diff != "" {
		t.Errorf("Toast mismatch (-want +got):\n%s", diff)
	}
	if string(f.stored(t)) != string(before) {
		t.Error("Failed insert must not change storage")
	}
}

func TestListActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, in := range []Input{
		{Code: "A", Description: "a", Active: true},
		{Code: "B", Description: "b", Active: false},
		{Code: "C", Description: "c", Active: true},
	} {
		if _, err := f.service.Add(ctx, &toasts{}, in); err != nil {
			t.Fatal(err)
		}
	}

	active, err := f.service.ListActive(ctx, &toasts{})
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, code := range active {
		got = append(got, code.Code)
	}
	if diff := cmp.Diff([]string{"A", "C"}, got); diff != "" {
		t.Errorf("Active codes mismatch (-want +got):\n%s", diff)
	}
}

func TestGetNotFound(t *testing.T) {
	f := newFixture(t)
	notify := &toasts{}

	_, err := f.service.Get(context.Background(), notify, "missing")

	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("Expected not found, got %v", err)
	}
	if diff := cmp.Diff([]string{MessageNotFound}, notify.errors); diff != "" {
		t.Errorf("Toast mismatch (-want +got):\n%s", diff)
	}
}

func TestDeleteGuard(t *testing.T) {
	tests := []struct {
		name       string
		rates      []entities.CoverageRate
		expectErr  error
		remaining  int
		errorToast string
	}{
		{
			name:      "unreferenced code is deleted",
			rates:     []entities.CoverageRate{{CoverageCodeID: "other", Rate: amount(1)}},
			remaining: 0,
		},
		{
			name:       "referenced code is kept",
			rates:      []entities.CoverageRate{{CoverageCodeID: "id-1", Rate: amount(1)}},
			expectErr:  apperrors.ErrReferentialIntegrity,
			remaining:  1,
			errorToast: MessageInUse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()

			if _, err := f.service.Add(ctx, &toasts{}, Input{Code: "MED", Description: "Medical"}); err != nil {
				t.Fatal(err)
			}
			plan := entities.MedicalPlanDetail{ID: "p1", Code: "P1", Name: "Plan", CoverageRates: tt.rates}
			if _, err := f.plans.Insert(ctx, plan); err != nil {
				t.Fatal(err)
			}

			notify := &toasts{}
			err := f.service.Delete(ctx, notify, "id-1")

			if tt.expectErr == nil && err != nil {
				t.Fatalf("Expected success, got %v", err)
			}
			if tt.expectErr != nil && !errors.Is(err, tt.expectErr) {
				t.Fatalf("Expected %v, got %v", tt.expectErr, err)
			}

			codes, err := f.service.List(ctx, notify)
			if err != nil {
				t.Fatal(err)
			}
			if len(codes) != tt.remaining {
				t.Errorf("Expected %d remaining codes, got %d", tt.remaining, len(codes))
			}
			if tt.errorToast != "" {
				if diff := cmp.Diff([]string{tt.errorToast}, notify.errors); diff != "" {
					t.Errorf("Toast mismatch (-want +got):\n%s", diff)
				}
			}
		})
	}
}

func TestDeleteMissing(t *testing.T) {
	f := newFixture(t)
	notify := &toasts{}

	err := f.service.Delete(context.Background(), notify, "missing")

	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("Expected not found, got %v", err)
	}
	if diff := cmp.Diff([]string{"Coverage code not found"}, notify.errors); diff != "" {
		t.Errorf("Toast mismatch (-want +got):\n%s", diff)
	}
}

func TestDeleteInProgressIsRejected(t *testing.T) {
	f := newFixture(t)
	f.service.deleting.Store("id-1", struct{}{})

	err := f.service.Delete(context.Background(), &toasts{}, "id-1")

	if !errors.Is(err, apperrors.ErrSaveInProgress) {
		t.Fatalf("Expected save in progress, got %v", err)
	}
}

func TestLabels(t *testing.T) {
	labels := Labels([]entities.CoverageCode{{ID: "1", Code: "MED", Description: "Medical"}})

	if labels["1"] != "MED - Medical" {
		t.Errorf("Unexpected label %q", labels["1"])
	}
}

func amount(v float64) *float64 {
	return &v
}
