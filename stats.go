package ttldb

// stats.go implements anomaly counters for the expiration machinery.
//
// The compaction filter tolerates values it cannot interpret (it keeps
// them), but silent tolerance would hide corruption forever. Each handle
// therefore counts dropped, corrupt, and clock-failure events so
// operators can alert on them. Counters live in the process-wide
// VictoriaMetrics registry, labeled by database path, and are exposed
// via metrics.WritePrometheus.

import (
	"fmt"

	"github.com/VictoriaMetrics/metrics"
)

// handleStats holds the per-handle anomaly counters. A nil *handleStats
// is valid and counts nothing, so the filter and merge operator can be
// constructed standalone without touching the registry.
type handleStats struct {
	expiredDropped *metrics.Counter
	corruptKept    *metrics.Counter
	clockFailures  *metrics.Counter
	mergeFailures  *metrics.Counter
}

func newHandleStats(path string) *handleStats {
	return &handleStats{
		expiredDropped: metrics.GetOrCreateCounter(fmt.Sprintf(`ttldb_expired_dropped_total{db=%q}`, path)),
		corruptKept:    metrics.GetOrCreateCounter(fmt.Sprintf(`ttldb_corrupt_values_kept_total{db=%q}`, path)),
		clockFailures:  metrics.GetOrCreateCounter(fmt.Sprintf(`ttldb_clock_failures_total{db=%q}`, path)),
		mergeFailures:  metrics.GetOrCreateCounter(fmt.Sprintf(`ttldb_merge_failures_total{db=%q}`, path)),
	}
}

func (s *handleStats) incExpiredDropped() {
	if s != nil {
		s.expiredDropped.Inc()
	}
}

func (s *handleStats) incCorruptKept() {
	if s != nil {
		s.corruptKept.Inc()
	}
}

func (s *handleStats) incClockFailure() {
	if s != nil {
		s.clockFailures.Inc()
	}
}

func (s *handleStats) incMergeFailure() {
	if s != nil {
		s.mergeFailures.Inc()
	}
}

// ExpiredDropped returns the number of entries the compaction filter has
// dropped as expired over the handle's lifetime.
func (d *DB) ExpiredDropped() uint64 {
	if d.stats == nil {
		return 0
	}
	return d.stats.expiredDropped.Get()
}

// CorruptKept returns the number of entries the compaction filter kept
// because their timestamp could not be interpreted.
func (d *DB) CorruptKept() uint64 {
	if d.stats == nil {
		return 0
	}
	return d.stats.corruptKept.Get()
}
