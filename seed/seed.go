// Package seed imports coverage codes and medical plans from YAML fixtures.
// Fixtures go through the gateway like any other write, so code uniqueness
// is enforced and a conflicting batch writes nothing.
package seed

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/giygas/benefits-api/apperrors"
	"github.com/giygas/benefits-api/entities"
	"github.com/giygas/benefits-api/gateway"
	"github.com/giygas/benefits-api/logging"
	"github.com/giygas/benefits-api/validation"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

//go:embed fixtures.yaml
var defaultFixtures []byte

// Fixtures is the document layout of a fixture file
type Fixtures struct {
	CoverageCodes []entities.CoverageCode      `yaml:"coverageCodes"`
	MedicalPlans  []entities.MedicalPlanDetail `yaml:"medicalPlans"`
}

// Summary counts what an import wrote
type Summary struct {
	CoverageCodes int
	MedicalPlans  int
}

// Default returns the demo fixtures shipped with the binary
func Default() (*Fixtures, error) {
	return Parse(defaultFixtures)
}

// LoadFile reads fixtures from path
func LoadFile(path string) (*Fixtures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixtures: %w", err)
	}
	return Parse(data)
}

// Parse decodes a fixture document. Unknown keys are rejected so a typo
// does not silently drop a field.
func Parse(data []byte) (*Fixtures, error) {
	var fx Fixtures
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fx); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse fixtures: %w", err)
	}
	return &fx, nil
}

// Import validates the fixtures and inserts them, coverage codes first.
// Missing ids are generated. A rate whose coverageCodeId matches the code
// of a fixture coverage code is pointed at that code's id.
func Import(
	ctx context.Context,
	codes gateway.Store[entities.CoverageCode],
	plans gateway.Store[entities.MedicalPlanDetail],
	fx *Fixtures,
) (Summary, error) {
	var summary Summary

	newCodes, byCode, err := prepareCodes(fx.CoverageCodes)
	if err != nil {
		return summary, err
	}
	newPlans, err := preparePlans(fx.MedicalPlans, byCode)
	if err != nil {
		return summary, err
	}

	if len(newCodes) > 0 {
		if err := insert(ctx, codes, newCodes); err != nil {
			return summary, fmt.Errorf("coverage codes: %w", err)
		}
		summary.CoverageCodes = len(newCodes)
	}
	if len(newPlans) > 0 {
		if err := insert(ctx, plans, newPlans); err != nil {
			return summary, fmt.Errorf("medical plans: %w", err)
		}
		summary.MedicalPlans = len(newPlans)
	}

	logging.Info("Fixtures imported", "coverage_codes", summary.CoverageCodes, "medical_plans", summary.MedicalPlans)
	return summary, nil
}

func insert[T gateway.Entity](ctx context.Context, store gateway.Store[T], items []T) error {
	result, err := store.Insert(ctx, items...)
	if err != nil {
		return err
	}
	return result.Err()
}

func prepareCodes(fixtures []entities.CoverageCode) ([]entities.CoverageCode, map[string]string, error) {
	out := make([]entities.CoverageCode, 0, len(fixtures))
	byCode := make(map[string]string, len(fixtures))

	for i, fixture := range fixtures {
		code := entities.CoverageCode{
			ID:          fixture.ID,
			Code:        validation.NormalizeCode(fixture.Code),
			Description: validation.NormalizeText(fixture.Description),
			Active:      fixture.Active,
		}
		if err := validation.ValidateCoverageCode(code); err != nil {
			return nil, nil, fmt.Errorf("coverage code %d: %w", i, err)
		}
		if code.ID == "" {
			code.ID = uuid.NewString()
		}
		byCode[code.Code] = code.ID
		out = append(out, code)
	}
	return out, byCode, nil
}

func preparePlans(fixtures []entities.MedicalPlanDetail, codeIDs map[string]string) ([]entities.MedicalPlanDetail, error) {
	out := make([]entities.MedicalPlanDetail, 0, len(fixtures))

	for i, fixture := range fixtures {
		plan := fixture
		plan.Code = validation.NormalizeCode(fixture.Code)
		plan.Name = validation.NormalizeText(fixture.Name)

		// A fixture that spells out its configuration is stored in canonical
		// form; legacy fixtures keep only their summary.
		if fixture.CoverageConfiguration != nil {
			plan = entities.NormalizePlan(plan)
			plan.CoverageSummary = entities.SummaryFromConfiguration(plan.CoverageConfiguration)
		}
		if plan.CoverageSummary == nil {
			plan.CoverageSummary = []entities.CoverageSummary{}
		}
		if plan.PlanContribution != "" && !plan.PlanContribution.Valid() {
			errs := apperrors.NewValidationError(validation.MessageInvalidForm)
			errs.Add("planContribution", validation.RuleInvalidOption)
			return nil, fmt.Errorf("medical plan %d: %w", i, errs)
		}
		if err := validation.ValidatePlan(plan.Flat()); err != nil {
			return nil, fmt.Errorf("medical plan %d: %w", i, err)
		}

		if len(fixture.CoverageRates) > 0 {
			plan.CoverageRates = make([]entities.CoverageRate, len(fixture.CoverageRates))
			for j, rate := range fixture.CoverageRates {
				plan.CoverageRates[j] = rate.Clone()
			}
		}
		for j := range plan.CoverageRates {
			if id, ok := codeIDs[plan.CoverageRates[j].CoverageCodeID]; ok {
				plan.CoverageRates[j].CoverageCodeID = id
			}
		}
		if err := validateRates(plan.CoverageRates); err != nil {
			return nil, fmt.Errorf("medical plan %d: %w", i, err)
		}

		if plan.ID == "" {
			plan.ID = uuid.NewString()
		}
		out = append(out, plan)
	}
	return out, nil
}

func validateRates(rates []entities.CoverageRate) error {
	errs := apperrors.NewValidationError(validation.MessageInvalidForm)
	ids := make([]string, len(rates))

	for i, rate := range rates {
		ids[i] = rate.CoverageCodeID
		if rate.CoverageCodeID == "" {
			errs.Add(fmt.Sprintf("coverageRates[%d].coverageCodeId", i), validation.RuleRequired)
		}
		if rate.Rate == nil {
			errs.Add(fmt.Sprintf("coverageRates[%d].rate", i), validation.RuleRequired)
		}
		validation.CheckAmount(errs, fmt.Sprintf("coverageRates[%d].rate", i), rate.Rate)
		validation.CheckAmount(errs, fmt.Sprintf("coverageRates[%d].projectedRate", i), rate.ProjectedRate)
	}
	for i := range validation.DuplicateCoverageCodes(ids) {
		errs.Add(fmt.Sprintf("coverageRates[%d].coverageCodeId", i), validation.RuleDuplicateCoverageCode)
	}

	if errs.Empty() {
		return nil
	}
	return errs
}
