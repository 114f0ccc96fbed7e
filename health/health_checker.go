// Package health provides health checking functionality for the benefits API.
package health

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/giygas/benefits-api/entities"
	"github.com/giygas/benefits-api/gateway"
	"github.com/giygas/benefits-api/interfaces"
)

// Health statuses
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// StaleAuditAge is how old the last integrity audit may get before the
// service reports itself degraded
const StaleAuditAge = 48 * time.Hour

// Pinger checks that the durable store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthCheckerImpl implements the interfaces.HealthChecker interface
type HealthCheckerImpl struct {
	pinger    Pinger
	codes     gateway.Store[entities.CoverageCode]
	plans     gateway.Store[entities.MedicalPlanDetail]
	dataStore interfaces.DataStore
	now       func() time.Time
}

// NewHealthChecker creates a new health checker with injected dependencies
func NewHealthChecker(
	pinger Pinger,
	codes gateway.Store[entities.CoverageCode],
	plans gateway.Store[entities.MedicalPlanDetail],
	dataStore interfaces.DataStore,
) *HealthCheckerImpl {
	return &HealthCheckerImpl{
		pinger:    pinger,
		codes:     codes,
		plans:     plans,
		dataStore: dataStore,
		now:       time.Now,
	}
}

// HealthCheck pings the store and counts both collections. An unreachable
// store is unhealthy and returns an error; integrity issues or a stale
// audit are degraded.
func (h *HealthCheckerImpl) HealthCheck(ctx context.Context) (string, map[string]any, error) {
	data := map[string]any{
		"storage":     "ok",
		"is_auditing": h.dataStore.IsAuditing(),
	}

	if err := h.pinger.Ping(ctx); err != nil {
		data["storage"] = "unreachable"
		return StatusUnhealthy, data, fmt.Errorf("storage ping failed: %w", err)
	}

	codes, err := h.codes.List(ctx)
	if err != nil {
		data["storage"] = "failing"
		return StatusUnhealthy, data, err
	}
	plans, err := h.plans.List(ctx)
	if err != nil {
		data["storage"] = "failing"
		return StatusUnhealthy, data, err
	}
	data["coverage_codes"] = len(codes.Data)
	data["medical_plans"] = len(plans.Data)

	status := StatusHealthy

	report := h.dataStore.GetReport()
	if report != nil {
		data["audit_issues"] = report.Issues()
		if report.Issues() > 0 {
			status = StatusDegraded
		}
	}

	if last := h.dataStore.GetLastAudit(); !last.IsZero() {
		age := h.now().Sub(last)
		data["audit_age_hours"] = math.Round(age.Hours()*10) / 10
		if age > StaleAuditAge {
			status = StatusDegraded
		}
	}

	return status, data, nil
}
