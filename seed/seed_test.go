package seed

import (
	"context"
	"errors"
	"testing"

	"github.com/giygas/benefits-api/apperrors"
	"github.com/giygas/benefits-api/entities"
	"github.com/giygas/benefits-api/gateway"
	"github.com/giygas/benefits-api/storage"
	"github.com/google/go-cmp/cmp"
)

func newStores() (*gateway.Collection[entities.CoverageCode], *gateway.Collection[entities.MedicalPlanDetail]) {
	g := gateway.New(storage.NewMemory())
	return gateway.NewCollection[entities.CoverageCode](g, entities.CoverageCodesCollection, "Coverage code"),
		gateway.NewCollection[entities.MedicalPlanDetail](g, entities.MedicalPlansCollection, "Medical plan")
}

func TestDefaultFixturesImport(t *testing.T) {
	codes, plans := newStores()
	ctx := context.Background()

	fx, err := Default()
	if err != nil {
		t.Fatalf("Default failed: %v", err)
	}
	summary, err := Import(ctx, codes, plans, fx)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if diff := cmp.Diff(Summary{CoverageCodes: 4, MedicalPlans: 3}, summary); diff != "" {
		t.Errorf("Summary mismatch (-want +got):\n%s", diff)
	}

	storedCodes, _ := codes.List(ctx)
	ids := make(map[string]string)
	for _, code := range storedCodes.Data {
		if code.ID == "" {
			t.Errorf("Coverage code %s has no id", code.Code)
		}
		ids[code.Code] = code.ID
	}

	storedPlans, _ := plans.List(ctx)
	var gold entities.MedicalPlanDetail
	for _, plan := range storedPlans.Data {
		if plan.Code == "GOLD" {
			gold = plan
		}
	}

	if len(gold.CoverageConfiguration) != len(entities.CoverageSummaryOptions) {
		t.Errorf("Expected a canonical configuration, got %d entries", len(gold.CoverageConfiguration))
	}
	wantSummary := []entities.CoverageSummary{entities.MajorMedical, entities.Prescription, entities.Dental}
	if diff := cmp.Diff(wantSummary, gold.CoverageSummary); diff != "" {
		t.Errorf("Summary mismatch (-want +got):\n%s", diff)
	}
	if gold.CoverageRates[0].CoverageCodeID != ids["MED"] || gold.CoverageRates[1].CoverageCodeID != ids["MEDF"] {
		t.Errorf("Rate rows must reference the coverage code ids, got %+v", gold.CoverageRates)
	}
	if !gold.AssignedToEmployees() {
		t.Error("GOLD enables employees and must count as assigned")
	}
}

func TestImportTwiceConflicts(t *testing.T) {
	codes, plans := newStores()
	ctx := context.Background()
	fx, _ := Default()

	if _, err := Import(ctx, codes, plans, fx); err != nil {
		t.Fatalf("First import failed: %v", err)
	}
	_, err := Import(ctx, codes, plans, fx)

	if !errors.Is(err, apperrors.ErrUniquenessConflict) {
		t.Errorf("Expected a uniqueness conflict, got %v", err)
	}
	stored, _ := codes.List(ctx)
	if len(stored.Data) != 4 {
		t.Errorf("The conflicting batch must not write, got %d codes", len(stored.Data))
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"empty document", "", false},
		{"codes only", "coverageCodes:\n  - {code: A, description: Alpha, active: true}\n", false},
		{"unknown key", "coverageCode:\n  - {code: A}\n", true},
		{"malformed", "coverageCodes: [", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input))
			if (err != nil) != tt.wantErr {
				t.Errorf("Parse() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestImportRejectsInvalidFixtures(t *testing.T) {
	rate := func(id string) entities.CoverageRate { return entities.CoverageRate{CoverageCodeID: id, Rate: amount(1)} }

	tests := []struct {
		name  string
		fx    Fixtures
		field string
		rule  string
	}{
		{
			name:  "code too long",
			fx:    Fixtures{CoverageCodes: []entities.CoverageCode{{Code: "TOOLONG", Description: "x"}}},
			field: "code",
			rule:  "maxLength",
		},
		{
			name: "waiver combined",
			fx: Fixtures{MedicalPlans: []entities.MedicalPlanDetail{{
				Code: "P", Name: "Plan",
				CoverageSummary: []entities.CoverageSummary{entities.WaiverPlan, entities.Dental},
			}}},
			field: "coverageSummary",
			rule:  "coverageExclusive",
		},
		{
			name: "duplicate rate rows",
			fx: Fixtures{MedicalPlans: []entities.MedicalPlanDetail{{
				Code: "P", Name: "Plan",
				CoverageRates: []entities.CoverageRate{rate("c1"), rate("c1")},
			}}},
			field: "coverageRates[1].coverageCodeId",
			rule:  "duplicateCoverageCode",
		},
		{
			name: "unknown contribution",
			fx: Fixtures{MedicalPlans: []entities.MedicalPlanDetail{{
				Code: "P", Name: "Plan", PlanContribution: "Ch. 99",
			}}},
			field: "planContribution",
			rule:  "invalidOption",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			codes, plans := newStores()

			_, err := Import(context.Background(), codes, plans, &tt.fx)

			var verr *apperrors.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Expected a validation error, got %v", err)
			}
			if !verr.Has(tt.field, tt.rule) {
				t.Errorf("Expected %s on %s, got %v", tt.rule, tt.field, verr.Fields)
			}
			stored, _ := codes.List(context.Background())
			if len(stored.Data) != 0 {
				t.Error("Nothing may be written when a fixture is invalid")
			}
		})
	}
}

func amount(v float64) *float64 {
	return &v
}
