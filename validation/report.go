package validation

import (
	"sort"

	"github.com/giygas/benefits-api/entities"
	"github.com/giygas/benefits-api/interfaces"
	"github.com/giygas/benefits-api/logging"
)

// ReportDataQuality scans both collections for problems the write paths
// cannot prevent on their own, such as records written by older releases or
// races between two delete guards.
func ReportDataQuality(codes []entities.CoverageCode, plans []entities.MedicalPlanDetail) *interfaces.DataQualityReport {
	report := &interfaces.DataQualityReport{
		DuplicateCoverageCodes:  []string{},
		DuplicatePlanCodes:      []string{},
		UnknownCoverageCodeRefs: []string{},
		DuplicateRateRefs:       []string{},
		PlansWithoutSelection:   []string{},
		WaiverPlanConflicts:     []string{},
		CoverageCodes:           len(codes),
		MedicalPlans:            len(plans),
	}

	// Check 1: duplicate coverage codes
	knownCodes := make(map[string]bool, len(codes))
	codeCount := make(map[string]int, len(codes))
	for _, code := range codes {
		knownCodes[code.ID] = true
		codeCount[code.Code]++
	}
	report.DuplicateCoverageCodes = duplicates(codeCount)

	// Check 2: duplicate plan codes
	planCount := make(map[string]int, len(plans))
	for _, plan := range plans {
		planCount[plan.Code]++
	}
	report.DuplicatePlanCodes = duplicates(planCount)

	for _, stored := range plans {
		plan := entities.NormalizePlan(stored)

		// Check 3: rate rows referencing missing or repeated coverage codes
		ids := make([]string, len(plan.CoverageRates))
		for i, rate := range plan.CoverageRates {
			ids[i] = rate.CoverageCodeID
			if !knownCodes[rate.CoverageCodeID] {
				report.UnknownCoverageCodeRefs = append(report.UnknownCoverageCodeRefs, plan.Code+":"+rate.CoverageCodeID)
			}
		}
		reported := make(map[string]bool)
		for i := range DuplicateCoverageCodes(ids) {
			if !reported[ids[i]] {
				reported[ids[i]] = true
				report.DuplicateRateRefs = append(report.DuplicateRateRefs, plan.Code+":"+ids[i])
			}
		}

		// Check 4: selection rules
		selected := entities.SummaryFromConfiguration(plan.CoverageConfiguration)
		if len(selected) == 0 {
			report.PlansWithoutSelection = append(report.PlansWithoutSelection, plan.Code)
		} else if !SelectionExclusive(selected) {
			report.WaiverPlanConflicts = append(report.WaiverPlanConflicts, plan.Code)
		}
	}

	sort.Strings(report.UnknownCoverageCodeRefs)
	sort.Strings(report.DuplicateRateRefs)

	if issues := report.Issues(); issues > 0 {
		logging.Warn("Data quality issues detected",
			"issues", issues,
			"duplicate_coverage_codes", report.DuplicateCoverageCodes,
			"duplicate_plan_codes", report.DuplicatePlanCodes,
			"unknown_coverage_code_refs", len(report.UnknownCoverageCodeRefs),
			"plans_without_selection", report.PlansWithoutSelection,
		)
	}

	return report
}

func duplicates(count map[string]int) []string {
	out := []string{}
	for value, n := range count {
		if n > 1 {
			out = append(out, value)
		}
	}
	sort.Strings(out)
	return out
}
