package data

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/giygas/benefits-api/interfaces"
)

func TestNewDataContainer(t *testing.T) {
	dc := NewDataContainer()

	if dc.IsAuditing() {
		t.Error("NewDataContainer should not be auditing")
	}
	if !dc.GetLastAudit().IsZero() {
		t.Error("NewDataContainer should have zero lastAudit time")
	}
	if dc.GetReport() != nil {
		t.Error("NewDataContainer should not have a report")
	}
	if !dc.GetServerStartTime().IsZero() {
		t.Error("NewDataContainer should have zero server start time")
	}
}

func TestSetReport(t *testing.T) {
	dc := NewDataContainer()
	before := time.Now()

	report := &interfaces.DataQualityReport{
		DuplicateCoverageCodes: []string{"MED"},
		CoverageCodes:          4,
		MedicalPlans:           2,
	}
	dc.SetReport(report)

	if got := dc.GetReport(); got != report {
		t.Errorf("Expected stored report, got %+v", got)
	}
	if dc.GetLastAudit().Before(before) {
		t.Error("SetReport should stamp the audit time")
	}
}

func TestServerStartTime(t *testing.T) {
	dc := NewDataContainer()
	start := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

	dc.SetServerStartTime(start)

	if !dc.GetServerStartTime().Equal(start) {
		t.Errorf("Expected %v, got %v", start, dc.GetServerStartTime())
	}
}

func TestBeginEndAudit(t *testing.T) {
	dc := NewDataContainer()

	if !dc.BeginAudit() {
		t.Fatal("First BeginAudit should succeed")
	}
	if !dc.IsAuditing() {
		t.Error("Container should report auditing")
	}
	if dc.BeginAudit() {
		t.Error("Second BeginAudit should fail while auditing")
	}

	dc.EndAudit()

	if dc.IsAuditing() {
		t.Error("Container should not be auditing after EndAudit")
	}
	if !dc.BeginAudit() {
		t.Error("BeginAudit should succeed after EndAudit")
	}
}

func TestConcurrentBeginAudit(t *testing.T) {
	dc := NewDataContainer()

	var wg sync.WaitGroup
	var started atomic.Int32
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if dc.BeginAudit() {
				started.Add(1)
			}
		}()
	}
	wg.Wait()

	if started.Load() != 1 {
		t.Errorf("Expected exactly one audit to start, got %d", started.Load())
	}
}

func TestConcurrentReadsDuringSetReport(t *testing.T) {
	dc := NewDataContainer()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			dc.SetReport(&interfaces.DataQualityReport{CoverageCodes: n})
		}(i)
		go func() {
			defer wg.Done()
			_ = dc.GetReport().Issues()
			_ = dc.GetLastAudit()
		}()
	}
	wg.Wait()

	if dc.GetReport() == nil {
		t.Error("Expected a report after concurrent writes")
	}
}
