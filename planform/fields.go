package planform

import (
	"github.com/giygas/benefits-api/apperrors"
	"github.com/giygas/benefits-api/entities"
	"github.com/giygas/benefits-api/validation"
)

// SetActive toggles the plan and with it the locked state of every other
// field. Locked fields keep their values.
func (f *Form) SetActive(active bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values.Active = active
}

// edit runs fn on the working values unless the form is locked
func (f *Form) edit(fn func(v *Values) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.values.Active {
		return apperrors.Wrap(apperrors.ErrFieldLocked, MessageLocked)
	}
	return fn(&f.values)
}

// SetCode sets the plan code, upper-cased
func (f *Form) SetCode(code string) error {
	return f.edit(func(v *Values) error {
		v.Code = validation.NormalizeCode(code)
		return nil
	})
}

// SetName sets the plan name
func (f *Form) SetName(name string) error {
	return f.edit(func(v *Values) error {
		v.Name = validation.NormalizeText(name)
		return nil
	})
}

// SetPlanContribution sets the contribution scheme; unknown schemes are rejected
func (f *Form) SetPlanContribution(contribution entities.PlanContribution) error {
	return f.edit(func(v *Values) error {
		if !contribution.Valid() {
			errs := apperrors.NewValidationError(validation.MessageInvalidForm)
			errs.Add("planContribution", validation.RuleInvalidOption)
			return errs
		}
		v.PlanContribution = contribution
		return nil
	})
}

// SetCoverage sets one role flag of a coverage category. Selecting a
// category that would break the Waiver Plan exclusivity is rejected before
// anything is written; clearing a flag is always allowed.
func (f *Form) SetCoverage(category entities.CoverageSummary, role Role, value bool) error {
	return f.edit(func(v *Values) error {
		index := -1
		for i, config := range v.CoverageConfiguration {
			if config.Type == category {
				index = i
				break
			}
		}
		if index < 0 || (role != RoleEmployee && role != RoleDependent) {
			errs := apperrors.NewValidationError(validation.MessageInvalidForm)
			errs.Add("coverageConfiguration", validation.RuleInvalidOption)
			return errs
		}

		if value && !entities.CoverageSelectionAllowed(v.selected(), category) {
			return apperrors.Wrap(apperrors.ErrCoverageExclusive, validation.MessageWaiverExclusive)
		}

		if role == RoleEmployee {
			v.CoverageConfiguration[index].Employee = value
		} else {
			v.CoverageConfiguration[index].Dependent = value
		}
		return nil
	})
}

// AddRate appends an empty rate row
func (f *Form) AddRate() error {
	return f.edit(func(v *Values) error {
		v.CoverageRates = append(v.CoverageRates, RateRow{})
		return nil
	})
}

// RemoveRate deletes the rate row at index
func (f *Form) RemoveRate(index int) error {
	return f.edit(func(v *Values) error {
		if index < 0 || index >= len(v.CoverageRates) {
			return apperrors.Wrap(apperrors.ErrNotFound, MessageRowNotFound)
		}
		v.CoverageRates = append(v.CoverageRates[:index], v.CoverageRates[index+1:]...)
		return nil
	})
}

// row runs fn on the rate row at index
func (f *Form) row(index int, fn func(row *RateRow)) error {
	return f.edit(func(v *Values) error {
		if index < 0 || index >= len(v.CoverageRates) {
			return apperrors.Wrap(apperrors.ErrNotFound, MessageRowNotFound)
		}
		fn(&v.CoverageRates[index])
		return nil
	})
}

// SetRateCoverageCode sets the coverage code of a row. Duplicate errors are
// derived from all rows on every read, so both rows of a pair are flagged.
func (f *Form) SetRateCoverageCode(index int, coverageCodeID string) error {
	return f.row(index, func(row *RateRow) {
		row.CoverageCodeID = coverageCodeID
	})
}

// SetRate sets the rate of a row. The district portions are not recomputed.
func (f *Form) SetRate(index int, rate *float64) error {
	return f.row(index, func(row *RateRow) {
		row.Rate = copyAmount(rate)
	})
}

// SetProjectedRate sets the projected rate of a row
func (f *Form) SetProjectedRate(index int, projected *float64) error {
	return f.row(index, func(row *RateRow) {
		row.ProjectedRate = copyAmount(projected)
	})
}

// SetDistrictPortionDollar sets the dollar portion and derives the percent
func (f *Form) SetDistrictPortionDollar(index int, dollar *float64) error {
	return f.row(index, func(row *RateRow) {
		row.DistrictPortionDollar = copyAmount(dollar)
		if percent, ok := PercentFromDollar(dollar, row.Rate); ok {
			row.DistrictPortionPercent = &percent
		}
	})
}

// SetDistrictPortionPercent sets the percent portion and derives the dollar
func (f *Form) SetDistrictPortionPercent(index int, percent *float64) error {
	return f.row(index, func(row *RateRow) {
		row.DistrictPortionPercent = copyAmount(percent)
		if dollar, ok := DollarFromPercent(percent, row.Rate); ok {
			row.DistrictPortionDollar = &dollar
		}
	})
}

// PercentFromDollar returns dollar / rate * 100 when both are set and rate > 0
func PercentFromDollar(dollar, rate *float64) (float64, bool) {
	if dollar == nil || rate == nil || *rate <= 0 {
		return 0, false
	}
	return *dollar / *rate * 100, true
}

// DollarFromPercent returns rate * percent / 100 when both are set and rate > 0
func DollarFromPercent(percent, rate *float64) (float64, bool) {
	if percent == nil || rate == nil || *rate <= 0 {
		return 0, false
	}
	return *rate * *percent / 100, true
}
