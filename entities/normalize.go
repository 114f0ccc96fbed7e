package entities

// NormalizePlan expands a stored plan into its canonical detail shape:
// exactly one configuration entry per CoverageSummaryOptions value in fixed
// order, a non-nil rate list and a contribution scheme.
//
// When no configuration was persisted, it is synthesized from the legacy
// coverageSummary list by enabling both roles for every listed category.
func NormalizePlan(stored MedicalPlanDetail) MedicalPlanDetail {
	plan := stored
	plan.CoverageConfiguration = normalizeConfiguration(stored)

	plan.CoverageRates = make([]CoverageRate, len(stored.CoverageRates))
	for i, rate := range stored.CoverageRates {
		plan.CoverageRates[i] = rate.Clone()
	}

	if plan.CoverageSummary == nil {
		plan.CoverageSummary = []CoverageSummary{}
	}
	if plan.PlanContribution == "" {
		plan.PlanContribution = ContributionNone
	}
	return plan
}

func normalizeConfiguration(stored MedicalPlanDetail) []CoverageConfiguration {
	configs := make([]CoverageConfiguration, len(CoverageSummaryOptions))

	if stored.CoverageConfiguration == nil {
		listed := make(map[CoverageSummary]bool, len(stored.CoverageSummary))
		for _, summary := range stored.CoverageSummary {
			listed[summary] = true
		}
		for i, option := range CoverageSummaryOptions {
			configs[i] = CoverageConfiguration{
				Type:      option,
				Employee:  listed[option],
				Dependent: listed[option],
			}
		}
		return configs
	}

	existing := make(map[CoverageSummary]CoverageConfiguration, len(stored.CoverageConfiguration))
	for _, config := range stored.CoverageConfiguration {
		if _, seen := existing[config.Type]; !seen {
			existing[config.Type] = config
		}
	}
	for i, option := range CoverageSummaryOptions {
		config := existing[option]
		configs[i] = CoverageConfiguration{
			Type:      option,
			Employee:  config.Employee,
			Dependent: config.Dependent,
		}
	}
	return configs
}

// SummaryFromConfiguration lists the categories with at least one role enabled
func SummaryFromConfiguration(configs []CoverageConfiguration) []CoverageSummary {
	summary := make([]CoverageSummary, 0, len(configs))
	for _, config := range configs {
		if config.Selected() {
			summary = append(summary, config.Type)
		}
	}
	return summary
}

// CoverageSelectionAllowed reports whether category may be selected given
// the categories already selected. Waiver Plan excludes every other category
// and the other categories exclude Waiver Plan.
func CoverageSelectionAllowed(selected []CoverageSummary, category CoverageSummary) bool {
	for _, current := range selected {
		if current == category {
			continue
		}
		if current == WaiverPlan && category != WaiverPlan {
			return false
		}
		if current != WaiverPlan && category == WaiverPlan {
			return false
		}
	}
	return true
}
