// Package data provides thread-safe runtime state for the benefits API:
// the latest integrity audit report and the server start time, swapped
// atomically so readers never block on a running audit.
package data

import (
	"sync/atomic"
	"time"

	"github.com/giygas/benefits-api/interfaces"
	"github.com/giygas/benefits-api/logging"
)

// Compile-time check to ensure DataContainer implements DataStore
var _ interfaces.DataStore = (*DataContainer)(nil)

// DataContainer holds runtime state with atomic values
type DataContainer struct {
	report          atomic.Pointer[interfaces.DataQualityReport]
	lastAudit       atomic.Value // time.Time
	auditing        atomic.Bool
	serverStartTime atomic.Value // time.Time
}

// NewDataContainer creates a container without any audit
func NewDataContainer() *DataContainer {
	dc := &DataContainer{}
	dc.lastAudit.Store(time.Time{})
	dc.serverStartTime.Store(time.Time{})
	return dc
}

// GetReport returns the latest audit report, or nil before the first audit
func (dc *DataContainer) GetReport() *interfaces.DataQualityReport {
	return dc.report.Load()
}

// GetLastAudit returns when the latest report was stored
func (dc *DataContainer) GetLastAudit() time.Time {
	if v := dc.lastAudit.Load(); v != nil {
		if lastAudit, ok := v.(time.Time); ok {
			return lastAudit
		}
	}

	logging.Warn("Could not get the last audit value")
	return time.Time{}
}

// IsAuditing returns true while an audit is running
func (dc *DataContainer) IsAuditing() bool {
	return dc.auditing.Load()
}

// SetServerStartTime sets the server start time
func (dc *DataContainer) SetServerStartTime(startTime time.Time) {
	dc.serverStartTime.Store(startTime)
}

// GetServerStartTime returns the server start time
func (dc *DataContainer) GetServerStartTime() time.Time {
	if v := dc.serverStartTime.Load(); v != nil {
		if startTime, ok := v.(time.Time); ok {
			return startTime
		}
	}

	logging.Warn("Could not get the server start time value")
	return time.Time{}
}

// SetReport atomically replaces the audit report and stamps the audit time
func (dc *DataContainer) SetReport(report *interfaces.DataQualityReport) {
	dc.report.Store(report)
	dc.lastAudit.Store(time.Now())
}

// BeginAudit marks the start of an audit.
// Returns true if the audit can proceed, false if another one is running.
func (dc *DataContainer) BeginAudit() bool {
	return dc.auditing.CompareAndSwap(false, true)
}

// EndAudit marks the end of an audit
func (dc *DataContainer) EndAudit() {
	dc.auditing.Store(false)
}
