package ttldb

// merge_operator.go composes a user merge operator with the timestamp
// codec.
//
// Operands reach the engine already stamped (DB.Merge stamps them), and
// the existing value is stamped by construction, so the wrapper strips
// the suffixes, delegates to the user's operator on bare payloads, and
// re-stamps the result with the current time. Every successful merge
// therefore resets the key's TTL clock: merges count as writes for
// expiration purposes.
//
// A missing suffix on any input means the merge chain received an
// untagged value, which cannot happen if all writers go through this
// layer. The C++ original asserts (aborting the process) on that
// condition; here it is a recoverable merge failure reported back to
// the engine.
//
// Reference: RocksDB v10.7.5
//   - utilities/ttl/db_ttl_impl.h (TtlMergeOperator)
//   - include/rocksdb/merge_operator.h

import (
	"github.com/aalhour/rockyardkv"
)

type mergeOperator struct {
	user  rockyardkv.MergeOperator
	clock Clock
	log   rockyardkv.Logger
	stats *handleStats
}

// WrapMergeOperator wraps a user merge operator so that its inputs are
// unstamped before delegation and its results are stamped with the
// clock's current time. Open installs this automatically when the
// engine options carry a merge operator; the function is exported for
// callers wiring engine options by hand. A nil clock means the system
// clock.
func WrapMergeOperator(user rockyardkv.MergeOperator, clock Clock) rockyardkv.MergeOperator {
	return newMergeOperator(user, clock, nil, nil)
}

func newMergeOperator(user rockyardkv.MergeOperator, clock Clock, log rockyardkv.Logger, stats *handleStats) *mergeOperator {
	if clock == nil {
		clock = SystemClock()
	}
	if log == nil {
		log = nopLogger{}
	}
	return &mergeOperator{user: user, clock: clock, log: log, stats: stats}
}

// Name identifies the composed operator.
func (m *mergeOperator) Name() string {
	return "TTLMergeOperator." + m.user.Name()
}

// FullMerge strips the timestamp suffixes, delegates to the user
// operator, and stamps the result with the current time.
func (m *mergeOperator) FullMerge(key, existingValue []byte, operands [][]byte) ([]byte, bool) {
	if existingValue != nil {
		if len(existingValue) < TimestampSize {
			return m.fail(key, "existing value")
		}
		existingValue = existingValue[:len(existingValue)-TimestampSize]
	}

	stripped := make([][]byte, len(operands))
	for i, op := range operands {
		if len(op) < TimestampSize {
			return m.fail(key, "merge operand")
		}
		stripped[i] = op[:len(op)-TimestampSize]
	}

	out, ok := m.user.FullMerge(key, existingValue, stripped)
	if !ok {
		return nil, false
	}
	return m.stamp(key, out)
}

// PartialMerge strips both operands, delegates, and stamps the combined
// operand. Partial results re-enter the operand stream, so they must
// carry a suffix like any other operand.
func (m *mergeOperator) PartialMerge(key, leftOperand, rightOperand []byte) ([]byte, bool) {
	if len(leftOperand) < TimestampSize || len(rightOperand) < TimestampSize {
		return m.fail(key, "partial merge operand")
	}
	out, ok := m.user.PartialMerge(key,
		leftOperand[:len(leftOperand)-TimestampSize],
		rightOperand[:len(rightOperand)-TimestampSize])
	if !ok {
		return nil, false
	}
	return m.stamp(key, out)
}

func (m *mergeOperator) stamp(key, value []byte) ([]byte, bool) {
	now, err := CurrentTime(m.clock)
	if err != nil {
		// A merge result without a valid timestamp must not be
		// committed; fail the merge and let the engine retry it.
		m.stats.incClockFailure()
		m.stats.incMergeFailure()
		m.log.Errorf("[ttl] merge for key %q failed, clock unavailable: %v", key, err)
		return nil, false
	}
	return AppendTimestamp(value, now), true
}

func (m *mergeOperator) fail(key []byte, what string) ([]byte, bool) {
	m.stats.incMergeFailure()
	m.log.Errorf("[ttl] merge for key %q failed: %s has no timestamp suffix", key, what)
	return nil, false
}
