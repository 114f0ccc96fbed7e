// Package validation provides input normalization and field rules for the
// benefits API, plus the integrity audit over both collections.
package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/giygas/benefits-api/apperrors"
	"github.com/giygas/benefits-api/entities"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Field limits, counted in characters
const (
	MaxCodeLength        = 4
	MaxDescriptionLength = 30
	MaxNameLength        = 30
)

// Rule names reported in ValidationError.Fields
const (
	RuleRequired              = "required"
	RuleMaxLength             = "maxLength"
	RuleMin                   = "min"
	RuleInvalidOption         = "invalidOption"
	RuleCoverageExclusive     = "coverageExclusive"
	RuleAtLeastOneSelection   = "atLeastOneSelection"
	RuleDuplicateCoverageCode = "duplicateCoverageCode"
)

// Messages shown when a submit is blocked
const (
	MessageInvalidForm     = "Please correct the highlighted fields"
	MessageNoCoverage      = "Please select at least one coverage option"
	MessageWaiverExclusive = "Waiver Plan cannot be combined with other coverage"
)

// NormalizeText trims surrounding whitespace and composes the string to NFC,
// so visually identical input compares and counts the same.
func NormalizeText(value string) string {
	return norm.NFC.String(strings.TrimSpace(value))
}

// NormalizeCode normalizes and upper-cases a code.
// A Caser keeps state, so a new one is built per call.
func NormalizeCode(value string) string {
	return cases.Upper(language.Und).String(NormalizeText(value))
}

// CheckText records required and maxLength failures for a text field
func CheckText(errs *apperrors.ValidationError, field, value string, maxLength int) {
	if value == "" {
		errs.Add(field, RuleRequired)
		return
	}
	if utf8.RuneCountInString(value) > maxLength {
		errs.Add(field, RuleMaxLength)
	}
}

// ValidateCoverageCode checks an already normalized coverage code
func ValidateCoverageCode(code entities.CoverageCode) error {
	errs := apperrors.NewValidationError(MessageInvalidForm)
	CheckText(errs, "code", code.Code, MaxCodeLength)
	CheckText(errs, "description", code.Description, MaxDescriptionLength)
	if errs.Empty() {
		return nil
	}
	return errs
}

// ValidatePlan checks an already normalized flat plan: code, name and the
// coverage summary options with their Waiver Plan exclusivity.
func ValidatePlan(plan entities.MedicalPlan) error {
	errs := apperrors.NewValidationError(MessageInvalidForm)
	CheckText(errs, "code", plan.Code, MaxCodeLength)
	CheckText(errs, "name", plan.Name, MaxNameLength)

	for i, summary := range plan.CoverageSummary {
		if !summary.Valid() {
			errs.Add(fmt.Sprintf("coverageSummary[%d]", i), RuleInvalidOption)
		}
	}
	if !SelectionExclusive(plan.CoverageSummary) {
		errs.Message = MessageWaiverExclusive
		errs.Add("coverageSummary", RuleCoverageExclusive)
	}

	if errs.Empty() {
		return nil
	}
	return errs
}

// SelectionExclusive reports whether the selected categories respect the
// Waiver Plan exclusivity in both directions
func SelectionExclusive(selected []entities.CoverageSummary) bool {
	for _, category := range selected {
		if !entities.CoverageSelectionAllowed(selected, category) {
			return false
		}
	}
	return true
}

// CheckAmount records a min failure for a negative amount; nil is accepted
func CheckAmount(errs *apperrors.ValidationError, field string, value *float64) {
	if value != nil && *value < 0 {
		errs.Add(field, RuleMin)
	}
}

// DuplicateCoverageCodes returns the indexes of rows whose non-empty
// coverage code id is also held by another row
func DuplicateCoverageCodes(ids []string) map[int]bool {
	seen := make(map[string][]int, len(ids))
	for i, id := range ids {
		if id == "" {
			continue
		}
		seen[id] = append(seen[id], i)
	}

	duplicates := make(map[int]bool)
	for _, indexes := range seen {
		if len(indexes) < 2 {
			continue
		}
		for _, i := range indexes {
			duplicates[i] = true
		}
	}
	return duplicates
}
