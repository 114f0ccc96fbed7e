package plans

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/giygas/benefits-api/apperrors"
	"github.com/giygas/benefits-api/entities"
	"github.com/giygas/benefits-api/gateway"
	"github.com/giygas/benefits-api/interfaces"
	"github.com/giygas/benefits-api/storage"
	"github.com/google/go-cmp/cmp"
)

type toasts struct {
	successes []string
	errors    []string
}

func (t *toasts) Success(message string) { t.successes = append(t.successes, message) }
func (t *toasts) Error(message string)   { t.errors = append(t.errors, message) }

// confirmer answers every request the same way and records the requests
type confirmer struct {
	answer   bool
	requests []interfaces.ConfirmRequest
}

func (c *confirmer) Confirm(_ context.Context, req interfaces.ConfirmRequest) (bool, error) {
	c.requests = append(c.requests, req)
	return c.answer, nil
}

func newService(t *testing.T) (*Service, *gateway.Collection[entities.MedicalPlanDetail]) {
	t.Helper()
	collection := gateway.NewCollection[entities.MedicalPlanDetail](gateway.New(storage.NewMemory()), entities.MedicalPlansCollection, Label)
	service := NewService(collection)
	n := 0
	service.newID = func() string {
		n++
		return fmt.Sprintf("plan-%d", n)
	}
	return service, collection
}

func TestAddPlan(t *testing.T) {
	service, _ := newService(t)
	notify := &toasts{}

	plan, err := service.Add(context.Background(), notify, AddInput{
		Code:            "p1",
		Name:            " Gold ",
		CoverageSummary: []entities.CoverageSummary{entities.Dental, entities.Dental, entities.Vision},
	})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	expected := entities.MedicalPlan{
		ID:              "plan-1",
		Code:            "P1",
		Name:            "Gold",
		CoverageSummary: []entities.CoverageSummary{entities.Dental, entities.Vision},
		Active:          true,
	}
	if diff := cmp.Diff(expected, plan); diff != "" {
		t.Errorf("Plan mismatch (-want +got):\n%s", diff)
	}

	listed, err := service.List(context.Background(), notify)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]entities.MedicalPlan{expected}, listed); diff != "" {
		t.Errorf("List mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{gateway.MessageSet}, notify.successes); diff != "" {
		t.Errorf("Toast mismatch (-want +got):\n%s", diff)
	}
}

func TestAddPlanRejections(t *testing.T) {
	inactive := false
	tests := []struct {
		name  string
		input AddInput
		check func(t *testing.T, err error)
	}{
		{
			name:  "waiver with other coverage",
			input: AddInput{Code: "P2", Name: "Mixed", CoverageSummary: []entities.CoverageSummary{entities.WaiverPlan, entities.Dental}},
			check: func(t *testing.T, err error) {
				var validationErr *apperrors.ValidationError
				if !errors.As(err, &validationErr) || !validationErr.Has("coverageSummary", "coverageExclusive") {
					t.Errorf("Expected exclusivity error, got %v", err)
				}
			},
		},
		{
			name:  "missing name",
			input: AddInput{Code: "P2", Active: &inactive},
			check: func(t *testing.T, err error) {
				var validationErr *apperrors.ValidationError
				if !errors.As(err, &validationErr) || !validationErr.Has("name", "required") {
					t.Errorf("Expected required name, got %v", err)
				}
			},
		},
		{
			name:  "duplicate code",
			input: AddInput{Code: "p1", Name: "Other"},
			check: func(t *testing.T, err error) {
				if !errors.Is(err, apperrors.ErrUniquenessConflict) {
					t.Errorf("Expected uniqueness conflict, got %v", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, _ := newService(t)
			if _, err := service.Add(context.Background(), &toasts{}, AddInput{Code: "P1", Name: "Gold"}); err != nil {
				t.Fatal(err)
			}

			_, err := service.Add(context.Background(), &toasts{}, tt.input)
			tt.check(t, err)

			listed, _ := service.List(context.Background(), &toasts{})
			if len(listed) != 1 {
				t.Errorf("Rejected add must not write, found %d plans", len(listed))
			}
		})
	}
}

func TestIsAssignedToEmployees(t *testing.T) {
	tests := []struct {
		name     string
		plan     entities.MedicalPlanDetail
		expected bool
	}{
		{
			name: "legacy plan without configuration",
			plan: entities.MedicalPlanDetail{ID: "p", Code: "P", CoverageSummary: []entities.CoverageSummary{entities.Dental}},
		},
		{
			name: "dependent only",
			plan: entities.MedicalPlanDetail{ID: "p", Code: "P", CoverageConfiguration: []entities.CoverageConfiguration{
				{Type: entities.Dental, Dependent: true},
			}},
		},
		{
			name: "employee enabled",
			plan: entities.MedicalPlanDetail{ID: "p", Code: "P", CoverageConfiguration: []entities.CoverageConfiguration{
				{Type: entities.Dental}, {Type: entities.Vision, Employee: true},
			}},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, collection := newService(t)
			if _, err := collection.Insert(context.Background(), tt.plan); err != nil {
				t.Fatal(err)
			}

			assigned, err := service.IsAssignedToEmployees(context.Background(), "p")
			if err != nil {
				t.Fatal(err)
			}
			if assigned != tt.expected {
				t.Errorf("Expected assigned=%v, got %v", tt.expected, assigned)
			}
		})
	}
}

func TestDeletePlan(t *testing.T) {
	tests := []struct {
		name      string
		config    []entities.CoverageConfiguration
		answer    bool
		expectErr error
		remaining int
		prompted  bool
	}{
		{
			name:      "unassigned plan is deleted after confirmation",
			config:    []entities.CoverageConfiguration{{Type: entities.Dental, Dependent: true}},
			answer:    true,
			remaining: 0,
			prompted:  true,
		},
		{
			name:      "assigned plan is blocked before prompting",
			config:    []entities.CoverageConfiguration{{Type: entities.Dental, Employee: true}},
			answer:    true,
			expectErr: apperrors.ErrReferentialIntegrity,
			remaining: 1,
		},
		{
			name:      "declined confirmation keeps the plan",
			answer:    false,
			expectErr: apperrors.ErrConfirmationRequired,
			remaining: 1,
			prompted:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, collection := newService(t)
			ctx := context.Background()
			if _, err := collection.Insert(ctx, entities.MedicalPlanDetail{ID: "p", Code: "P", Name: "Plan", CoverageConfiguration: tt.config}); err != nil {
				t.Fatal(err)
			}

			notify := &toasts{}
			confirm := &confirmer{answer: tt.answer}
			err := service.Delete(ctx, notify, confirm, "p")

			if tt.expectErr == nil && err != nil {
				t.Fatalf("Expected success, got %v", err)
			}
			if tt.expectErr != nil && !errors.Is(err, tt.expectErr) {
				t.Fatalf("Expected %v, got %v", tt.expectErr, err)
			}
			if (len(confirm.requests) > 0) != tt.prompted {
				t.Errorf("Expected prompted=%v, got %d requests", tt.prompted, len(confirm.requests))
			}
			if tt.prompted && confirm.requests[0].Title != ConfirmTitle {
				t.Errorf("Unexpected confirmation %+v", confirm.requests[0])
			}

			listed, _ := service.List(ctx, notify)
			if len(listed) != tt.remaining {
				t.Errorf("Expected %d plans, got %d", tt.remaining, len(listed))
			}
		})
	}
}

func TestDeleteAssignedToast(t *testing.T) {
	service, collection := newService(t)
	ctx := context.Background()
	plan := entities.MedicalPlanDetail{ID: "p", Code: "P", CoverageConfiguration: []entities.CoverageConfiguration{{Type: entities.Vision, Employee: true}}}
	if _, err := collection.Insert(ctx, plan); err != nil {
		t.Fatal(err)
	}
	notify := &toasts{}

	_ = service.Delete(ctx, notify, &confirmer{answer: true}, "p")

	if diff := cmp.Diff([]string{MessageAssigned}, notify.errors); diff != "" {
		t.Errorf("Toast mismatch (-want +got):\n%s", diff)
	}
}

func TestDeleteMissingPlan(t *testing.T) {
	service, _ := newService(t)
	notify := &toasts{}

	err := service.Delete(context.Background(), notify, &confirmer{answer: true}, "missing")

	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("Expected not found, got %v", err)
	}
	if diff := cmp.Diff([]string{"Medical plan not found"}, notify.errors); diff != "" {
		t.Errorf("Toast mismatch (-want +got):\n%s", diff)
	}
}

func TestDeleteInProgress(t *testing.T) {
	service, _ := newService(t)
	service.deleting.Store("p", struct{}{})

	err := service.Delete(context.Background(), &toasts{}, &confirmer{answer: true}, "p")

	if !errors.Is(err, apperrors.ErrSaveInProgress) {
		t.Fatalf("Expected save in progress, got %v", err)
	}
}

func TestConcurrentAddsOfDifferentPlans(t *testing.T) {
	collection := gateway.NewCollection[entities.MedicalPlanDetail](
		gateway.New(storage.NewMemory(), gateway.WithLatency(0, 100*time.Millisecond)),
		entities.MedicalPlansCollection, Label)
	service := NewService(collection)
	var n atomic.Int32
	service.newID = func() string { return fmt.Sprintf("plan-%d", n.Add(1)) }

	codes := []string{"AAA", "BBB"}
	errs := make([]error, len(codes))
	var wg sync.WaitGroup
	for i, code := range codes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = service.Add(context.Background(), &toasts{}, AddInput{Code: code, Name: "Plan " + code})
		}()
		time.Sleep(10 * time.Millisecond)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("Add of %s failed: %v", codes[i], err)
		}
	}
	listed, _ := collection.List(context.Background())
	if len(listed.Data) != 2 {
		t.Errorf("Expected both plans stored, got %d", len(listed.Data))
	}
}

func TestAddInProgressForSameCode(t *testing.T) {
	service, collection := newService(t)
	service.adding.Store("P1", struct{}{})

	_, err := service.Add(context.Background(), &toasts{}, AddInput{Code: "p1", Name: "Gold"})

	if !errors.Is(err, apperrors.ErrSaveInProgress) {
		t.Fatalf("Expected save in progress, got %v", err)
	}
	listed, _ := collection.List(context.Background())
	if len(listed.Data) != 0 {
		t.Error("A repeated submit must not write")
	}
}
