// Package scheduler runs the housekeeping jobs of the benefits API: expiring
// idle plan form sessions and the daily integrity audit of both collections.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/giygas/benefits-api/entities"
	"github.com/giygas/benefits-api/gateway"
	"github.com/giygas/benefits-api/interfaces"
	"github.com/giygas/benefits-api/logging"
	"github.com/giygas/benefits-api/validation"
	"github.com/go-co-op/gocron"
	"golang.org/x/sync/errgroup"
)

// Compile-time check to ensure Scheduler implements Scheduler interface
var _ interfaces.Scheduler = (*Scheduler)(nil)

// SessionExpirer drops idle form sessions
type SessionExpirer interface {
	ExpireIdle() int
}

// Scheduler handles housekeeping using dependency injection
type Scheduler struct {
	dataStore interfaces.DataStore
	codes     gateway.Store[entities.CoverageCode]
	plans     gateway.Store[entities.MedicalPlanDetail]
	sessions  SessionExpirer
	auditAt   string
	scheduler *gocron.Scheduler
}

// NewScheduler creates a new scheduler instance with injected dependencies.
// auditAt is the daily audit time as HH:MM; sessions may be nil when no
// form sessions are served.
func NewScheduler(
	dataStore interfaces.DataStore,
	codes gateway.Store[entities.CoverageCode],
	plans gateway.Store[entities.MedicalPlanDetail],
	sessions SessionExpirer,
	auditAt string,
) *Scheduler {
	return &Scheduler{
		dataStore: dataStore,
		codes:     codes,
		plans:     plans,
		sessions:  sessions,
		auditAt:   auditAt,
		scheduler: gocron.NewScheduler(time.Local),
	}
}

// Start runs an initial audit and schedules the housekeeping jobs
func (s *Scheduler) Start() error {
	if _, err := s.RunAudit(context.Background()); err != nil {
		logging.Error("Failed to perform initial audit", "error", err)
		return fmt.Errorf("initial audit failed: %w", err)
	}

	s.scheduler.SingletonModeAll()

	if s.sessions != nil {
		if _, err := s.scheduler.Every(1).Minute().Do(func() {
			s.sessions.ExpireIdle()
		}); err != nil {
			return fmt.Errorf("failed to schedule session expiry: %w", err)
		}
	}

	_, err := s.scheduler.Every(1).Day().At(s.auditAt).Do(func() {
		if _, err := s.RunAudit(context.Background()); err != nil {
			logging.Error("Failed to run integrity audit", "error", err)
		}
	})
	if err != nil {
		logging.Error("Failed to schedule audit", "error", err)
		return fmt.Errorf("failed to schedule audit: %w", err)
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// Jobs returns the number of scheduled jobs
func (s *Scheduler) Jobs() int {
	return s.scheduler.Len()
}

// RunAudit reads both collections and stores a fresh integrity report.
// When another audit is running it returns the current report untouched.
func (s *Scheduler) RunAudit(ctx context.Context) (*interfaces.DataQualityReport, error) {
	if !s.dataStore.BeginAudit() {
		logging.Info("Audit already in progress, skipping...")
		return s.dataStore.GetReport(), nil
	}
	defer s.dataStore.EndAudit()

	start := time.Now()

	var (
		codes []entities.CoverageCode
		plans []entities.MedicalPlanDetail
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		result, err := s.codes.List(gctx)
		if err != nil {
			return err
		}
		codes = result.Data
		return nil
	})
	g.Go(func() error {
		result, err := s.plans.List(gctx)
		if err != nil {
			return err
		}
		plans = result.Data
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load collections: %w", err)
	}

	report := validation.ReportDataQuality(codes, plans)
	s.dataStore.SetReport(report)

	logging.Info("Integrity audit completed",
		"duration", time.Since(start).String(),
		"coverage_codes", report.CoverageCodes,
		"medical_plans", report.MedicalPlans,
		"issues", report.Issues(),
	)
	return report, nil
}
