package ttldb

// compaction_filter_test.go implements tests for the expiration filter.

import (
	"testing"
	"time"

	"github.com/aalhour/rockyardkv"
)

func TestExpirationFilterBoundary(t *testing.T) {
	now := int32(baseTime)
	filter := NewExpirationFilter(100*time.Second, &fixedClock{sec: baseTime})

	// A value exactly ttl seconds old is kept one more round; the tie
	// goes to survival.
	decision, _ := filter.Filter(0, []byte("k"), AppendTimestamp([]byte("v"), now-100))
	if decision != rockyardkv.FilterKeep {
		t.Error("value exactly ttl old should be kept")
	}

	decision, _ = filter.Filter(0, []byte("k"), AppendTimestamp([]byte("v"), now-101))
	if decision != rockyardkv.FilterRemove {
		t.Error("value one second past ttl should be dropped")
	}
}

func TestExpirationFilterDisabledTTL(t *testing.T) {
	filter := NewExpirationFilter(-1, &fixedClock{sec: baseTime})

	// Even the oldest representable stamp survives when TTL is disabled.
	decision, _ := filter.Filter(0, []byte("k"), AppendTimestamp([]byte("v"), MinTimestamp))
	if decision != rockyardkv.FilterKeep {
		t.Error("disabled TTL should keep everything")
	}
}

func TestExpirationFilterKeepsCorrupt(t *testing.T) {
	filter := NewExpirationFilter(1*time.Second, &fixedClock{sec: baseTime})

	tests := []struct {
		name  string
		value []byte
	}{
		{"empty value", nil},
		{"three byte value", []byte{1, 2, 3}},
		{"timestamp below window", AppendTimestamp([]byte("v"), MinTimestamp-1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision, _ := filter.Filter(0, []byte("k"), tt.value)
			if decision != rockyardkv.FilterKeep {
				t.Error("filter must never drop data it cannot interpret")
			}
		})
	}
}

func TestExpirationFilterKeepsOnClockFailure(t *testing.T) {
	filter := NewExpirationFilter(1*time.Second, &fixedClock{sec: -1})

	// Ancient but valid stamp; without a readable clock it must survive.
	decision, _ := filter.Filter(0, []byte("k"), AppendTimestamp([]byte("v"), MinTimestamp))
	if decision != rockyardkv.FilterKeep {
		t.Error("filter must never drop under clock uncertainty")
	}
}

func TestExpirationFilterKeepsMergeOperands(t *testing.T) {
	filter := NewExpirationFilter(1*time.Second, &fixedClock{sec: baseTime})

	expired := AppendTimestamp([]byte("op"), int32(baseTime)-1000)
	if got := filter.FilterMergeOperand(0, []byte("k"), expired); got != rockyardkv.FilterKeep {
		t.Error("merge operands are kept; the re-stamped merge result governs expiry")
	}
}

func TestExpirationFilterFactory(t *testing.T) {
	factory := &ExpirationFilterFactory{TTL: 100 * time.Second, Clock: &fixedClock{sec: baseTime}}

	created := factory.CreateCompactionFilter(rockyardkv.CompactionFilterContext{IsManual: true})
	decision, _ := created.Filter(0, []byte("k"), AppendTimestamp([]byte("v"), int32(baseTime)-101))
	if decision != rockyardkv.FilterRemove {
		t.Error("factory-created filter should drop stale entries")
	}
}
