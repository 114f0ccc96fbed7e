// Package entities defines the value schemas persisted by the benefits API:
// coverage codes, medical plans and the expanded plan detail.
package entities

// Collection names double as the durable storage keys.
const (
	CoverageCodesCollection = "coverage_codes"
	MedicalPlansCollection  = "medical_plans"
)

// CoverageCode is a short code identifying a billable coverage item
type CoverageCode struct {
	ID          string `json:"id" yaml:"id"`
	Code        string `json:"code" yaml:"code"`
	Description string `json:"description" yaml:"description"`
	Active      bool   `json:"active" yaml:"active"`
}

// GetID returns the entity identifier
func (c CoverageCode) GetID() string { return c.ID }

// GetCode returns the unique code
func (c CoverageCode) GetCode() string { return c.Code }

// Label formats the code the way it is shown next to a coverage rate row
func (c CoverageCode) Label() string {
	return c.Code + " - " + c.Description
}

// CoverageSummary is one of the fixed coverage categories a plan may offer
type CoverageSummary string

const (
	MajorMedical    CoverageSummary = "Major Medical"
	Hospitalization CoverageSummary = "Hospitalization"
	Prescription    CoverageSummary = "Prescription"
	Dental          CoverageSummary = "Dental"
	Vision          CoverageSummary = "Vision"
	Other           CoverageSummary = "Other"
	WaiverPlan      CoverageSummary = "Waiver Plan"
	SelfInsured     CoverageSummary = "Self Insured"
)

// CoverageSummaryOptions lists every category in display order.
// Coverage configurations always follow this order.
var CoverageSummaryOptions = []CoverageSummary{
	MajorMedical,
	Hospitalization,
	Prescription,
	Dental,
	Vision,
	Other,
	WaiverPlan,
	SelfInsured,
}

// Valid reports whether s is one of the fixed options
func (s CoverageSummary) Valid() bool {
	for _, option := range CoverageSummaryOptions {
		if s == option {
			return true
		}
	}
	return false
}

// PlanContribution is the statutory contribution scheme of a plan
type PlanContribution string

const (
	ContributionCh44     PlanContribution = "Ch. 44"
	ContributionCh44GSHP PlanContribution = "Ch. 44-GSHP"
	ContributionCh78     PlanContribution = "Ch. 78"
	ContributionNone     PlanContribution = "None"
)

// PlanContributionOptions lists the accepted contribution schemes
var PlanContributionOptions = []PlanContribution{
	ContributionCh44,
	ContributionCh44GSHP,
	ContributionCh78,
	ContributionNone,
}

// Valid reports whether p is an accepted contribution scheme
func (p PlanContribution) Valid() bool {
	for _, option := range PlanContributionOptions {
		if p == option {
			return true
		}
	}
	return false
}

// MedicalPlan is the flat list form of a plan
type MedicalPlan struct {
	ID              string            `json:"id" yaml:"id"`
	Code            string            `json:"code" yaml:"code"`
	Name            string            `json:"name" yaml:"name"`
	CoverageSummary []CoverageSummary `json:"coverageSummary" yaml:"coverageSummary"`
	Active          bool              `json:"active" yaml:"active"`
}

// CoverageConfiguration holds the employee/dependent eligibility of one category
type CoverageConfiguration struct {
	Type      CoverageSummary `json:"type" yaml:"type"`
	Employee  bool            `json:"employee" yaml:"employee"`
	Dependent bool            `json:"dependent" yaml:"dependent"`
}

// Selected reports whether either role is enabled
func (c CoverageConfiguration) Selected() bool {
	return c.Employee || c.Dependent
}

// CoverageRate is the price of one coverage code within a plan
type CoverageRate struct {
	CoverageCodeID         string   `json:"coverageCodeId" yaml:"coverageCodeId"`
	Rate                   *float64 `json:"rate" yaml:"rate"`
	ProjectedRate          *float64 `json:"projectedRate,omitempty" yaml:"projectedRate,omitempty"`
	DistrictPortionDollar  *float64 `json:"districtPortionDollar,omitempty" yaml:"districtPortionDollar,omitempty"`
	DistrictPortionPercent *float64 `json:"districtPortionPercent,omitempty" yaml:"districtPortionPercent,omitempty"`
}

// Clone returns a copy that shares no amounts with r
func (r CoverageRate) Clone() CoverageRate {
	return CoverageRate{
		CoverageCodeID:         r.CoverageCodeID,
		Rate:                   cloneAmount(r.Rate),
		ProjectedRate:          cloneAmount(r.ProjectedRate),
		DistrictPortionDollar:  cloneAmount(r.DistrictPortionDollar),
		DistrictPortionPercent: cloneAmount(r.DistrictPortionPercent),
	}
}

func cloneAmount(value *float64) *float64 {
	if value == nil {
		return nil
	}
	v := *value
	return &v
}

// MedicalPlanDetail is the expanded plan record.
// Records written before the detail screen existed lack the configuration,
// rates and contribution; a nil CoverageConfiguration means "never persisted".
type MedicalPlanDetail struct {
	ID                    string                  `json:"id" yaml:"id"`
	Code                  string                  `json:"code" yaml:"code"`
	Name                  string                  `json:"name" yaml:"name"`
	CoverageSummary       []CoverageSummary       `json:"coverageSummary" yaml:"coverageSummary"`
	Active                bool                    `json:"active" yaml:"active"`
	CoverageConfiguration []CoverageConfiguration `json:"coverageConfiguration,omitempty" yaml:"coverageConfiguration,omitempty"`
	CoverageRates         []CoverageRate          `json:"coverageRates,omitempty" yaml:"coverageRates,omitempty"`
	PlanContribution      PlanContribution        `json:"planContribution,omitempty" yaml:"planContribution,omitempty"`
}

// GetID returns the entity identifier
func (p MedicalPlanDetail) GetID() string { return p.ID }

// Clone returns a copy that shares no slices or amounts with p
func (p MedicalPlanDetail) Clone() MedicalPlanDetail {
	out := p
	if p.CoverageSummary != nil {
		out.CoverageSummary = append([]CoverageSummary{}, p.CoverageSummary...)
	}
	if p.CoverageConfiguration != nil {
		out.CoverageConfiguration = append([]CoverageConfiguration{}, p.CoverageConfiguration...)
	}
	if p.CoverageRates != nil {
		out.CoverageRates = make([]CoverageRate, len(p.CoverageRates))
		for i, rate := range p.CoverageRates {
			out.CoverageRates[i] = rate.Clone()
		}
	}
	return out
}

// GetCode returns the unique plan code
func (p MedicalPlanDetail) GetCode() string { return p.Code }

// Flat returns the list form of the plan
func (p MedicalPlanDetail) Flat() MedicalPlan {
	return MedicalPlan{
		ID:              p.ID,
		Code:            p.Code,
		Name:            p.Name,
		CoverageSummary: p.CoverageSummary,
		Active:          p.Active,
	}
}

// ReferencesCoverageCode reports whether any rate row uses the coverage code
func (p MedicalPlanDetail) ReferencesCoverageCode(coverageCodeID string) bool {
	for _, rate := range p.CoverageRates {
		if rate.CoverageCodeID == coverageCodeID {
			return true
		}
	}
	return false
}

// AssignedToEmployees reports whether the persisted configuration enables
// any category for employees. Plans without a persisted configuration are
// never considered assigned.
func (p MedicalPlanDetail) AssignedToEmployees() bool {
	for _, config := range p.CoverageConfiguration {
		if config.Employee {
			return true
		}
	}
	return false
}
