package ttldb

// compaction_filter.go implements the compaction-time expiration filter.
//
// The engine invokes the filter once per surviving key/value pair during
// compaction, possibly from several background threads at once. The
// filter is a stateless predicate over the immutable TTL and clock it
// was built with: it decides keep-vs-drop and never rewrites data.
//
// Fail-safe policy: a value whose timestamp cannot be read, or a clock
// that cannot be read, always results in Keep. The anomaly is counted
// and logged instead (see stats.go) so it surfaces without destroying
// data the layer cannot interpret.
//
// Reference: RocksDB v10.7.5
//   - utilities/ttl/db_ttl_impl.h (TtlCompactionFilter)
//   - include/rocksdb/compaction_filter.h

import (
	"time"

	"github.com/aalhour/rockyardkv"
)

// ExpirationFilter drops entries whose stamped age strictly exceeds the
// TTL. It implements rockyardkv.CompactionFilter.
type ExpirationFilter struct {
	rockyardkv.BaseCompactionFilter

	ttl   time.Duration
	clock Clock
	log   rockyardkv.Logger
	stats *handleStats
}

// NewExpirationFilter creates a filter with the given TTL. A negative
// TTL disables expiration (the filter keeps everything). A nil clock
// means the system clock.
func NewExpirationFilter(ttl time.Duration, clock Clock) *ExpirationFilter {
	return newExpirationFilter(ttl, clock, nil, nil)
}

func newExpirationFilter(ttl time.Duration, clock Clock, log rockyardkv.Logger, stats *handleStats) *ExpirationFilter {
	if clock == nil {
		clock = SystemClock()
	}
	if log == nil {
		log = nopLogger{}
	}
	return &ExpirationFilter{ttl: ttl, clock: clock, log: log, stats: stats}
}

// Name returns the filter name.
func (f *ExpirationFilter) Name() string {
	return "ExpirationFilter"
}

// Filter decides whether the entry survives compaction.
func (f *ExpirationFilter) Filter(level int, key, oldValue []byte) (rockyardkv.CompactionFilterDecision, []byte) {
	if f.ttl < 0 {
		return rockyardkv.FilterKeep, nil
	}
	if err := ValidateTimestamp(oldValue); err != nil {
		f.stats.incCorruptKept()
		f.log.Warnf("[ttl] keeping entry with unreadable timestamp during compaction: %v", err)
		return rockyardkv.FilterKeep, nil
	}
	now, err := CurrentTime(f.clock)
	if err != nil {
		// Never drop under clock uncertainty.
		f.stats.incClockFailure()
		f.log.Warnf("[ttl] keeping entry, clock unavailable during compaction: %v", err)
		return rockyardkv.FilterKeep, nil
	}
	ts, _ := DecodeTimestamp(oldValue)
	if int64(now)-int64(ts) > ttlSeconds(f.ttl) {
		f.stats.incExpiredDropped()
		return rockyardkv.FilterRemove, nil
	}
	return rockyardkv.FilterKeep, nil
}

// FilterMergeOperand keeps merge operands untouched; expiry of merged
// keys is governed by the re-stamped merge result, not by operand age.
func (f *ExpirationFilter) FilterMergeOperand(level int, key, operand []byte) rockyardkv.CompactionFilterDecision {
	return rockyardkv.FilterKeep
}

// ExpirationFilterFactory creates an ExpirationFilter per compaction for
// engines configured with a CompactionFilterFactory instead of a single
// shared filter. Both arrangements have identical semantics here since
// the filter carries no per-compaction state.
type ExpirationFilterFactory struct {
	TTL   time.Duration
	Clock Clock
}

// Name returns the factory name.
func (f *ExpirationFilterFactory) Name() string {
	return "ExpirationFilterFactory"
}

// CreateCompactionFilter creates a filter for one compaction.
func (f *ExpirationFilterFactory) CreateCompactionFilter(context rockyardkv.CompactionFilterContext) rockyardkv.CompactionFilter {
	return NewExpirationFilter(f.TTL, f.Clock)
}
