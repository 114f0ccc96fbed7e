// Package interfaces defines the collaborator surfaces the benefits flows
// depend on, so HTTP adapters, schedulers and tests can plug in their own.
package interfaces

import (
	"context"
	"time"
)

// Notifier is the toast surface: short success or error messages for the user
type Notifier interface {
	Success(message string)
	Error(message string)
}

// Navigator moves the user to another view, by path
type Navigator interface {
	Navigate(path string)
}

// ConfirmRequest describes a destructive action awaiting confirmation
type ConfirmRequest struct {
	Title   string
	Message string
	Data    any
}

// Confirmer asks the user to confirm an action. Returning false vetoes it.
type Confirmer interface {
	Confirm(ctx context.Context, req ConfirmRequest) (bool, error)
}

// DataQualityReport summarizes integrity issues across both collections
type DataQualityReport struct {
	DuplicateCoverageCodes  []string `json:"duplicateCoverageCodes"`
	DuplicatePlanCodes      []string `json:"duplicatePlanCodes"`
	UnknownCoverageCodeRefs []string `json:"unknownCoverageCodeRefs"` // "planCode:coverageCodeId"
	DuplicateRateRefs       []string `json:"duplicateRateRefs"`       // "planCode:coverageCodeId"
	PlansWithoutSelection   []string `json:"plansWithoutSelection"`
	WaiverPlanConflicts     []string `json:"waiverPlanConflicts"`
	CoverageCodes           int      `json:"coverageCodes"`
	MedicalPlans            int      `json:"medicalPlans"`
}

// Issues returns the number of problems found
func (r *DataQualityReport) Issues() int {
	if r == nil {
		return 0
	}
	return len(r.DuplicateCoverageCodes) + len(r.DuplicatePlanCodes) +
		len(r.UnknownCoverageCodeRefs) + len(r.DuplicateRateRefs) +
		len(r.PlansWithoutSelection) + len(r.WaiverPlanConflicts)
}

// DataStore holds runtime state shared by the scheduler and health checks.
// Audits are guarded so only one runs at a time.
type DataStore interface {
	GetReport() *DataQualityReport
	GetLastAudit() time.Time
	IsAuditing() bool
	GetServerStartTime() time.Time

	SetReport(report *DataQualityReport)
	BeginAudit() bool
	EndAudit()
}

// Scheduler manages the housekeeping jobs
type Scheduler interface {
	Start() error
	Stop()
}

// HealthChecker reports the health of the service
type HealthChecker interface {
	HealthCheck(ctx context.Context) (status string, details map[string]any, err error)
}
