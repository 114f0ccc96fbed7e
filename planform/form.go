// Package planform holds the medical plan detail form: a working copy of one
// plan with its coverage configuration, coverage rate rows and plan fields.
//
// Fields other than Active are locked while the plan is inactive. Derived
// values (district portion dollar and percent, duplicate coverage code
// errors, dirty state) are recomputed explicitly by each mutation; there are
// no change listeners, so a recomputation never triggers another one.
package planform

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/giygas/benefits-api/apperrors"
	"github.com/giygas/benefits-api/entities"
	"github.com/giygas/benefits-api/gateway"
	"github.com/giygas/benefits-api/interfaces"
	"github.com/giygas/benefits-api/logging"
	"github.com/giygas/benefits-api/validation"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"golang.org/x/sync/errgroup"
)

// ListPath is where the user is sent when the plan cannot be shown
const ListPath = "/medical-plans"

const (
	MessageNotFound      = "Medical plan not found"
	MessageLoadFailed    = "Failed to load medical plan"
	MessageSaveFailed    = "Failed to save medical plan"
	MessageUpdateFailed  = "Failed to update medical plan"
	MessageCodeNotUnique = "Plan Code must be unique"
	MessageUpdated       = "Medical plan updated successfully"
	MessageLocked        = "Plan is inactive; only Active can be changed"
	MessageRowNotFound   = "Coverage rate not found"
	MessageSaveRunning   = "A save is already in progress"
)

// Role is one of the two eligibility flags of a coverage configuration
type Role string

const (
	RoleEmployee  Role = "employee"
	RoleDependent Role = "dependent"
)

// RateRow is a coverage rate row being edited. Amounts may be unset.
type RateRow struct {
	CoverageCodeID         string   `json:"coverageCodeId"`
	Rate                   *float64 `json:"rate"`
	ProjectedRate          *float64 `json:"projectedRate,omitempty"`
	DistrictPortionDollar  *float64 `json:"districtPortionDollar,omitempty"`
	DistrictPortionPercent *float64 `json:"districtPortionPercent,omitempty"`
}

// Values is the working copy of the form
type Values struct {
	Code                  string                           `json:"code"`
	Name                  string                           `json:"name"`
	Active                bool                             `json:"active"`
	PlanContribution      entities.PlanContribution        `json:"planContribution"`
	CoverageConfiguration []entities.CoverageConfiguration `json:"coverageConfiguration"`
	CoverageRates         []RateRow                        `json:"coverageRates"`
}

func (v Values) clone() Values {
	out := v
	out.CoverageConfiguration = append([]entities.CoverageConfiguration{}, v.CoverageConfiguration...)
	out.CoverageRates = make([]RateRow, len(v.CoverageRates))
	for i, row := range v.CoverageRates {
		out.CoverageRates[i] = RateRow{
			CoverageCodeID:         row.CoverageCodeID,
			Rate:                   copyAmount(row.Rate),
			ProjectedRate:          copyAmount(row.ProjectedRate),
			DistrictPortionDollar:  copyAmount(row.DistrictPortionDollar),
			DistrictPortionPercent: copyAmount(row.DistrictPortionPercent),
		}
	}
	return out
}

func (v Values) selected() []entities.CoverageSummary {
	return entities.SummaryFromConfiguration(v.CoverageConfiguration)
}

func copyAmount(value *float64) *float64 {
	if value == nil {
		return nil
	}
	v := *value
	return &v
}

func valuesOf(plan entities.MedicalPlanDetail) Values {
	rows := make([]RateRow, len(plan.CoverageRates))
	for i, rate := range plan.CoverageRates {
		rows[i] = RateRow{
			CoverageCodeID:         rate.CoverageCodeID,
			Rate:                   copyAmount(rate.Rate),
			ProjectedRate:          copyAmount(rate.ProjectedRate),
			DistrictPortionDollar:  copyAmount(rate.DistrictPortionDollar),
			DistrictPortionPercent: copyAmount(rate.DistrictPortionPercent),
		}
	}
	return Values{
		Code:                  plan.Code,
		Name:                  plan.Name,
		Active:                plan.Active,
		PlanContribution:      plan.PlanContribution,
		CoverageConfiguration: append([]entities.CoverageConfiguration{}, plan.CoverageConfiguration...),
		CoverageRates:         rows,
	}
}

// equalValues treats nil and empty lists alike
var equalValues = cmpopts.EquateEmpty()

// Form is the detail form of one medical plan
type Form struct {
	plans gateway.Store[entities.MedicalPlanDetail]
	id    string

	mu            sync.Mutex
	snapshot      entities.MedicalPlanDetail // last loaded or saved record
	pristine      Values
	values        Values
	touched       bool
	coverageCodes []entities.CoverageCode // active codes offered for rate rows

	saving atomic.Bool
}

// Loader opens plan forms from the two collections
type Loader struct {
	plans gateway.Store[entities.MedicalPlanDetail]
	codes gateway.Store[entities.CoverageCode]
}

// NewLoader creates a form loader
func NewLoader(plans gateway.Store[entities.MedicalPlanDetail], codes gateway.Store[entities.CoverageCode]) *Loader {
	return &Loader{plans: plans, codes: codes}
}

// Load reads the plan with id, expands it into its canonical detail shape
// and returns a pristine form. A missing plan or a failed read is reported
// to the user, who is sent back to the plan list.
func (l *Loader) Load(ctx context.Context, notify interfaces.Notifier, nav interfaces.Navigator, id string) (*Form, error) {
	var (
		planResult gateway.Result[entities.MedicalPlanDetail]
		codes      []entities.CoverageCode
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		planResult, err = l.plans.List(gctx)
		return err
	})
	g.Go(func() error {
		// Choices are optional; the form still opens without them
		result, err := l.codes.List(gctx)
		if err != nil {
			logging.Warn("Failed to load coverage codes for plan form", "plan_id", id, "error", err)
			return nil
		}
		for _, code := range result.Data {
			if code.Active {
				codes = append(codes, code)
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		notify.Error(MessageLoadFailed)
		nav.Navigate(ListPath)
		return nil, err
	}
	if !planResult.OK() {
		message := planResult.Message
		if message == "" {
			message = MessageLoadFailed
		}
		notify.Error(message)
		nav.Navigate(ListPath)
		return nil, planResult.Err()
	}

	for _, stored := range planResult.Data {
		if stored.ID == id {
			return newForm(l.plans, stored, codes), nil
		}
	}

	notify.Error(MessageNotFound)
	nav.Navigate(ListPath)
	return nil, apperrors.Wrap(apperrors.ErrNotFound, MessageNotFound)
}

func newForm(plans gateway.Store[entities.MedicalPlanDetail], stored entities.MedicalPlanDetail, codes []entities.CoverageCode) *Form {
	plan := entities.NormalizePlan(stored)
	values := valuesOf(plan)
	if codes == nil {
		codes = []entities.CoverageCode{}
	}
	return &Form{
		plans:         plans,
		id:            plan.ID,
		snapshot:      plan,
		pristine:      values.clone(),
		values:        values,
		coverageCodes: codes,
	}
}

// ID returns the plan id
func (f *Form) ID() string {
	return f.id
}

// Snapshot returns a copy of the last loaded or saved record
func (f *Form) Snapshot() entities.MedicalPlanDetail {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot.Clone()
}

// Values returns a copy of the working values
func (f *Form) Values() Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values.clone()
}

// Disabled reports whether the form is locked because the plan is inactive
func (f *Form) Disabled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.values.Active
}

// Dirty reports whether the working values differ from the last loaded or
// saved ones
func (f *Form) Dirty() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !cmp.Equal(f.values, f.pristine, equalValues)
}

// Saving reports whether a save is outstanding
func (f *Form) Saving() bool {
	return f.saving.Load()
}

// HasSelfInsured reports whether Self Insured is selected for either role
func (f *Form) HasSelfInsured() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, config := range f.values.CoverageConfiguration {
		if config.Type == entities.SelfInsured && config.Selected() {
			return true
		}
	}
	return false
}

// CoverageSelectable reports whether category can currently be selected.
// It is false while the form is locked or when selecting it would break the
// Waiver Plan exclusivity.
func (f *Form) CoverageSelectable(category entities.CoverageSummary) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values.Active && entities.CoverageSelectionAllowed(f.values.selected(), category)
}

// CoverageCodeLabel returns "code - description" for an offered coverage code,
// or an empty string when it is not offered
func (f *Form) CoverageCodeLabel(id string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, code := range f.coverageCodes {
		if code.ID == id {
			return code.Label()
		}
	}
	return ""
}

// CoverageCodes returns the active coverage codes offered for rate rows
func (f *Form) CoverageCodes() []entities.CoverageCode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]entities.CoverageCode{}, f.coverageCodes...)
}

// Errors returns the current field errors, keyed by field path
func (f *Form) Errors() map[string][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.validate().Fields
}

// validate runs every rule. Locked fields are skipped, as disabled inputs
// are not validated; the coverage selection rules always apply.
// Caller must hold f.mu.
func (f *Form) validate() *apperrors.ValidationError {
	errs := apperrors.NewValidationError(validation.MessageInvalidForm)
	v := f.values

	if v.Active {
		validation.CheckText(errs, "code", v.Code, validation.MaxCodeLength)
		validation.CheckText(errs, "name", v.Name, validation.MaxNameLength)
		if !v.PlanContribution.Valid() {
			errs.Add("planContribution", validation.RuleInvalidOption)
		}

		ids := make([]string, len(v.CoverageRates))
		for i, row := range v.CoverageRates {
			ids[i] = row.CoverageCodeID
			prefix := fmt.Sprintf("coverageRates[%d].", i)
			if row.CoverageCodeID == "" {
				errs.Add(prefix+"coverageCodeId", validation.RuleRequired)
			}
			if row.Rate == nil {
				errs.Add(prefix+"rate", validation.RuleRequired)
			}
			validation.CheckAmount(errs, prefix+"rate", row.Rate)
			validation.CheckAmount(errs, prefix+"projectedRate", row.ProjectedRate)
		}
		for i := range validation.DuplicateCoverageCodes(ids) {
			errs.Add(fmt.Sprintf("coverageRates[%d].coverageCodeId", i), validation.RuleDuplicateCoverageCode)
		}
	}

	selected := v.selected()
	if len(selected) == 0 {
		errs.Message = validation.MessageNoCoverage
		errs.Add("coverageConfiguration", validation.RuleAtLeastOneSelection)
	} else if !validation.SelectionExclusive(selected) {
		errs.Message = validation.MessageWaiverExclusive
		errs.Add("coverageConfiguration", validation.RuleCoverageExclusive)
	}
	return errs
}
