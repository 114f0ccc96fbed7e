package planform

import (
	"context"
	"errors"

	"github.com/giygas/benefits-api/apperrors"
	"github.com/giygas/benefits-api/entities"
	"github.com/giygas/benefits-api/interfaces"
	"github.com/giygas/benefits-api/logging"
)

// planPatch is the record written on save. Unlike MedicalPlanDetail it
// always carries the detail fields, so an emptied rate list replaces the
// stored one, and unset rates are stored as null.
type planPatch struct {
	Code                  string                           `json:"code"`
	Name                  string                           `json:"name"`
	CoverageSummary       []entities.CoverageSummary       `json:"coverageSummary"`
	Active                bool                             `json:"active"`
	CoverageConfiguration []entities.CoverageConfiguration `json:"coverageConfiguration"`
	CoverageRates         []RateRow                        `json:"coverageRates"`
	PlanContribution      entities.PlanContribution        `json:"planContribution"`
}

func buildPatch(v Values) planPatch {
	rates := v.CoverageRates
	if rates == nil {
		rates = []RateRow{}
	}
	return planPatch{
		Code:                  v.Code,
		Name:                  v.Name,
		CoverageSummary:       v.selected(),
		Active:                v.Active,
		CoverageConfiguration: v.CoverageConfiguration,
		CoverageRates:         rates,
		PlanContribution:      v.PlanContribution,
	}
}

func detailOf(id string, v Values) entities.MedicalPlanDetail {
	rates := make([]entities.CoverageRate, len(v.CoverageRates))
	for i, row := range v.CoverageRates {
		rates[i] = entities.CoverageRate{
			CoverageCodeID:         row.CoverageCodeID,
			Rate:                   copyAmount(row.Rate),
			ProjectedRate:          copyAmount(row.ProjectedRate),
			DistrictPortionDollar:  copyAmount(row.DistrictPortionDollar),
			DistrictPortionPercent: copyAmount(row.DistrictPortionPercent),
		}
	}
	return entities.MedicalPlanDetail{
		ID:                    id,
		Code:                  v.Code,
		Name:                  v.Name,
		CoverageSummary:       v.selected(),
		Active:                v.Active,
		CoverageConfiguration: append([]entities.CoverageConfiguration{}, v.CoverageConfiguration...),
		CoverageRates:         rates,
		PlanContribution:      v.PlanContribution,
	}
}

// Save validates the form, re-checks the plan code against every other
// persisted plan and writes the full detail record. On success the form is
// pristine again and its snapshot matches what was written; on any failure
// the working values are kept for a retry.
func (f *Form) Save(ctx context.Context, notify interfaces.Notifier, nav interfaces.Navigator) (entities.MedicalPlanDetail, error) {
	if !f.saving.CompareAndSwap(false, true) {
		return entities.MedicalPlanDetail{}, apperrors.Wrap(apperrors.ErrSaveInProgress, MessageSaveRunning)
	}
	defer f.saving.Store(false)

	f.mu.Lock()
	if errs := f.validate(); !errs.Empty() {
		f.touched = true
		f.mu.Unlock()
		if len(f.selectedSnapshot()) == 0 {
			notify.Error(errs.Message)
		}
		return entities.MedicalPlanDetail{}, errs
	}
	values := f.values.clone()
	f.mu.Unlock()

	unique, err := f.codeUnique(ctx, values.Code)
	if err != nil {
		notify.Error(MessageSaveFailed)
		return entities.MedicalPlanDetail{}, err
	}
	if !unique {
		logging.Warn("Medical plan save rejected", "id", f.id, "code", values.Code, "reason", MessageCodeNotUnique)
		notify.Error(MessageCodeNotUnique)
		return entities.MedicalPlanDetail{}, apperrors.Wrap(apperrors.ErrUniquenessConflict, MessageCodeNotUnique)
	}

	result, err := f.plans.Update(ctx, f.id, buildPatch(values))
	if err != nil {
		notify.Error(MessageSaveFailed)
		return entities.MedicalPlanDetail{}, err
	}
	if !result.OK() {
		message := result.Message
		if message == "" {
			message = MessageUpdateFailed
		}
		notify.Error(message)
		err := result.Err()
		if errors.Is(err, apperrors.ErrNotFound) {
			nav.Navigate(ListPath)
		}
		return entities.MedicalPlanDetail{}, err
	}

	saved := detailOf(f.id, values)

	f.mu.Lock()
	f.snapshot = saved
	f.pristine = values
	f.touched = false
	f.mu.Unlock()

	logging.Info("Medical plan updated", "id", f.id, "code", saved.Code)
	notify.Success(MessageUpdated)
	return saved, nil
}

// selectedSnapshot returns the selected categories of the working values
func (f *Form) selectedSnapshot() []entities.CoverageSummary {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values.selected()
}

// codeUnique reports whether no other persisted plan uses code
func (f *Form) codeUnique(ctx context.Context, code string) (bool, error) {
	result, err := f.plans.List(ctx)
	if err != nil {
		return false, err
	}
	if !result.OK() {
		return false, errors.Join(apperrors.ErrStorageFailure, result.Err())
	}
	for _, plan := range result.Data {
		if plan.Code == code && plan.ID != f.id {
			return false, nil
		}
	}
	return true, nil
}

// Touched reports whether a blocked save marked every field as touched
func (f *Form) Touched() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.touched
}
