package planform

import (
	"fmt"

	"github.com/giygas/benefits-api/apperrors"
	"github.com/giygas/benefits-api/entities"
	"github.com/giygas/benefits-api/validation"
	"github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"
)

// Operation names accepted by Apply
const (
	OpSetActive                 = "setActive"
	OpSetCode                   = "setCode"
	OpSetName                   = "setName"
	OpSetPlanContribution       = "setPlanContribution"
	OpSetCoverage               = "setCoverage"
	OpAddRate                   = "addRate"
	OpRemoveRate                = "removeRate"
	OpSetRateCoverageCode       = "setRateCoverageCode"
	OpSetRate                   = "setRate"
	OpSetProjectedRate          = "setProjectedRate"
	OpSetDistrictPortionDollar  = "setDistrictPortionDollar"
	OpSetDistrictPortionPercent = "setDistrictPortionPercent"
)

// MessageInvalidOperation is returned for unknown or malformed operations
const MessageInvalidOperation = "Invalid form operation"

// Operation is one user interaction with the form
type Operation struct {
	Op    string                   `json:"op"`
	Index *int                     `json:"index,omitempty"`
	Type  entities.CoverageSummary `json:"type,omitempty"`
	Role  Role                     `json:"role,omitempty"`
	Value json.RawMessage          `json:"value,omitempty"`
}

// OperationError reports which operation of a batch was rejected
type OperationError struct {
	Position int
	Op       string
	Err      error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("operation %d (%s): %v", e.Position, e.Op, e.Err)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

// Apply runs ops in order and stops at the first rejected one. Operations
// before it stay applied.
func (f *Form) Apply(ops []Operation) error {
	for i, op := range ops {
		if err := f.apply(op); err != nil {
			return &OperationError{Position: i, Op: op.Op, Err: err}
		}
	}
	return nil
}

func (f *Form) apply(op Operation) error {
	switch op.Op {
	case OpSetActive:
		var value bool
		if err := decodeValue(op, &value); err != nil {
			return err
		}
		f.SetActive(value)
		return nil
	case OpSetCode:
		var value string
		if err := decodeValue(op, &value); err != nil {
			return err
		}
		return f.SetCode(value)
	case OpSetName:
		var value string
		if err := decodeValue(op, &value); err != nil {
			return err
		}
		return f.SetName(value)
	case OpSetPlanContribution:
		var value entities.PlanContribution
		if err := decodeValue(op, &value); err != nil {
			return err
		}
		return f.SetPlanContribution(value)
	case OpSetCoverage:
		var value bool
		if err := decodeValue(op, &value); err != nil {
			return err
		}
		return f.SetCoverage(op.Type, op.Role, value)
	case OpAddRate:
		return f.AddRate()
	}

	// The remaining operations address a rate row
	if op.Index == nil {
		return invalidOperation("index")
	}
	index := *op.Index

	switch op.Op {
	case OpRemoveRate:
		return f.RemoveRate(index)
	case OpSetRateCoverageCode:
		var value string
		if err := decodeValue(op, &value); err != nil {
			return err
		}
		return f.SetRateCoverageCode(index, value)
	case OpSetRate, OpSetProjectedRate, OpSetDistrictPortionDollar, OpSetDistrictPortionPercent:
		var value *float64
		if err := decodeValue(op, &value); err != nil {
			return err
		}
		switch op.Op {
		case OpSetRate:
			return f.SetRate(index, value)
		case OpSetProjectedRate:
			return f.SetProjectedRate(index, value)
		case OpSetDistrictPortionDollar:
			return f.SetDistrictPortionDollar(index, value)
		default:
			return f.SetDistrictPortionPercent(index, value)
		}
	}
	return invalidOperation("op")
}

// decodeValue reads the operation value; a missing value decodes as JSON null
func decodeValue(op Operation, target any) error {
	raw := op.Value
	if len(raw) == 0 {
		raw = json.RawMessage("null")
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return invalidOperation("value")
	}
	return nil
}

func invalidOperation(field string) error {
	errs := apperrors.NewValidationError(MessageInvalidOperation)
	errs.Add(field, validation.RuleInvalidOption)
	return errs
}

// CoverageOption is one coverage category as rendered by the form
type CoverageOption struct {
	Type      entities.CoverageSummary `json:"type"`
	Employee  bool                     `json:"employee"`
	Dependent bool                     `json:"dependent"`
	Disabled  bool                     `json:"disabled"`
}

// State is a read-only snapshot of everything the form renders
type State struct {
	ID              string                  `json:"id"`
	Values          Values                  `json:"values"`
	Errors          map[string][]string     `json:"errors"`
	Disabled        bool                    `json:"disabled"`
	Dirty           bool                    `json:"dirty"`
	Touched         bool                    `json:"touched"`
	Saving          bool                    `json:"saving"`
	HasSelfInsured  bool                    `json:"hasSelfInsured"`
	CoverageOptions []CoverageOption        `json:"coverageOptions"`
	RateLabels      []string                `json:"rateLabels"`
	CoverageCodes   []entities.CoverageCode `json:"coverageCodes"`
}

// State returns the current snapshot of the form
func (f *Form) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()

	v := f.values.clone()
	selected := v.selected()

	options := make([]CoverageOption, len(v.CoverageConfiguration))
	selfInsured := false
	for i, config := range v.CoverageConfiguration {
		options[i] = CoverageOption{
			Type:      config.Type,
			Employee:  config.Employee,
			Dependent: config.Dependent,
			Disabled:  !v.Active || !entities.CoverageSelectionAllowed(selected, config.Type),
		}
		if config.Type == entities.SelfInsured && config.Selected() {
			selfInsured = true
		}
	}

	labels := make([]string, len(v.CoverageRates))
	for i, row := range v.CoverageRates {
		for _, code := range f.coverageCodes {
			if code.ID == row.CoverageCodeID {
				labels[i] = code.Label()
				break
			}
		}
	}

	return State{
		ID:              f.id,
		Values:          v,
		Errors:          f.validate().Fields,
		Disabled:        !v.Active,
		Dirty:           !cmp.Equal(f.values, f.pristine, equalValues),
		Touched:         f.touched,
		Saving:          f.saving.Load(),
		HasSelfInsured:  selfInsured,
		CoverageOptions: options,
		RateLabels:      labels,
		CoverageCodes:   append([]entities.CoverageCode{}, f.coverageCodes...),
	}
}
