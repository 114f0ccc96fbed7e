package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/giygas/benefits-api/data"
	"github.com/giygas/benefits-api/entities"
	"github.com/giygas/benefits-api/gateway"
	"github.com/giygas/benefits-api/storage"
	"go.uber.org/goleak"
)

type countingExpirer struct {
	calls atomic.Int32
}

func (c *countingExpirer) ExpireIdle() int {
	c.calls.Add(1)
	return 0
}

// brokenKV fails every read
type brokenKV struct {
	*storage.Memory
}

func (brokenKV) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("disk unavailable")
}

func newScheduler(t *testing.T, kv storage.KV) (*Scheduler, *data.DataContainer) {
	t.Helper()
	g := gateway.New(kv)
	codes := gateway.NewCollection[entities.CoverageCode](g, entities.CoverageCodesCollection, "Coverage code")
	plans := gateway.NewCollection[entities.MedicalPlanDetail](g, entities.MedicalPlansCollection, "Medical plan")

	ctx := context.Background()
	if _, ok := kv.(*storage.Memory); ok {
		if _, err := codes.Insert(ctx, entities.CoverageCode{ID: "c1", Code: "MED", Description: "Medical", Active: true}); err != nil {
			t.Fatal(err)
		}
		if _, err := plans.Insert(ctx, entities.MedicalPlanDetail{
			ID: "p1", Code: "P1", Name: "Gold",
			CoverageRates: []entities.CoverageRate{{CoverageCodeID: "gone", Rate: amount(1)}},
		}); err != nil {
			t.Fatal(err)
		}
	}

	dc := data.NewDataContainer()
	return NewScheduler(dc, codes, plans, &countingExpirer{}, "03:00"), dc
}

func TestStartRunsInitialAuditAndStops(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	s, dc := newScheduler(t, storage.NewMemory())
	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Stop()

	report := dc.GetReport()
	if report == nil {
		t.Fatal("Expected an initial audit report")
	}
	if report.CoverageCodes != 1 || report.MedicalPlans != 1 {
		t.Errorf("Unexpected counts %d/%d", report.CoverageCodes, report.MedicalPlans)
	}
	if len(report.PlansWithoutSelection) != 1 || len(report.UnknownCoverageCodeRefs) != 1 {
		t.Errorf("Expected the plan issues to be reported, got %+v", report)
	}
	if s.Jobs() != 2 {
		t.Errorf("Expected 2 scheduled jobs, got %d", s.Jobs())
	}
	if dc.IsAuditing() {
		t.Error("Audit guard must be released")
	}
}

func TestStartWithoutSessions(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	s, _ := newScheduler(t, storage.NewMemory())
	s.sessions = nil
	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Stop()

	if s.Jobs() != 1 {
		t.Errorf("Expected only the audit job, got %d", s.Jobs())
	}
}

func TestStartFailsWhenStorageFails(t *testing.T) {
	s, dc := newScheduler(t, brokenKV{storage.NewMemory()})

	if err := s.Start(); err == nil {
		s.Stop()
		t.Fatal("Expected Start to fail")
	}
	if dc.GetReport() != nil {
		t.Error("No report should be stored")
	}
	if dc.IsAuditing() {
		t.Error("Audit guard must be released after a failure")
	}
}

func TestRunAuditSkipsWhileAuditing(t *testing.T) {
	s, dc := newScheduler(t, storage.NewMemory())
	if !dc.BeginAudit() {
		t.Fatal("BeginAudit failed")
	}

	report, err := s.RunAudit(context.Background())

	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if report != nil {
		t.Errorf("Expected the current (empty) report, got %+v", report)
	}
	if !dc.IsAuditing() {
		t.Error("The running audit's guard must not be released")
	}
}

func amount(v float64) *float64 {
	return &v
}
