package ttldb

// timestamp.go implements the value timestamp codec.
//
// Stored values have the form user_payload ++ timestamp, where the
// timestamp is a 4-byte little-endian unix-seconds count. The format is
// bit-compatible with C++ RocksDB's DBWithTTL.
//
// Reference: RocksDB v10.7.5
//   - utilities/ttl/db_ttl_impl.h (kTSLength, AppendTS, StripTS)
//   - utilities/ttl/db_ttl_impl.cc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	// TimestampSize is the width of the timestamp suffix in bytes.
	TimestampSize = 4

	// MinTimestamp is the oldest timestamp accepted as valid
	// (2013-05-09 GMT). The floor exists to catch values that never
	// carried a timestamp; anything below it is corruption, not
	// "already expired".
	MinTimestamp int32 = 1368146402

	// MaxTimestamp is the newest valid timestamp, the int32 epoch
	// ceiling (2038-01-19 GMT).
	MaxTimestamp int32 = math.MaxInt32
)

var (
	// ErrCorruptTimestamp is returned when a stored value is shorter
	// than the timestamp suffix or its decoded timestamp lies outside
	// [MinTimestamp, MaxTimestamp].
	ErrCorruptTimestamp = errors.New("ttldb: corrupt value timestamp")

	// ErrClockUnavailable is returned when the wall clock reports a
	// time the timestamp suffix cannot represent.
	ErrClockUnavailable = errors.New("ttldb: wall clock unavailable")
)

// Clock supplies the wall-clock time used for stamping, merging, and
// expiration checks. It is injected at open time so tests can control
// "now" deterministically.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the default wall clock.
func SystemClock() Clock { return systemClock{} }

// CurrentTime reads the clock and reports seconds since the unix epoch.
// It fails with ErrClockUnavailable if the reported time is negative or
// does not fit in the 4-byte suffix.
func CurrentTime(clock Clock) (int32, error) {
	sec := clock.Now().Unix()
	if sec <= 0 || sec > int64(MaxTimestamp) {
		return 0, fmt.Errorf("%w: epoch seconds %d not representable", ErrClockUnavailable, sec)
	}
	return int32(sec), nil
}

// AppendTimestamp returns a copy of value with ts appended as the
// 4-byte suffix. The input slice is not modified.
func AppendTimestamp(value []byte, ts int32) []byte {
	out := make([]byte, len(value)+TimestampSize)
	copy(out, value)
	binary.LittleEndian.PutUint32(out[len(value):], uint32(ts))
	return out
}

// DecodeTimestamp reads the trailing 4 bytes of value as a timestamp.
// It fails with ErrCorruptTimestamp if the value is too short; it does
// not check the sanity window (see ValidateTimestamp).
func DecodeTimestamp(value []byte) (int32, error) {
	if len(value) < TimestampSize {
		return 0, fmt.Errorf("%w: value is %d bytes, need at least %d",
			ErrCorruptTimestamp, len(value), TimestampSize)
	}
	return int32(binary.LittleEndian.Uint32(value[len(value)-TimestampSize:])), nil
}

// ValidateTimestamp checks that value carries a well-formed timestamp
// suffix whose decoded value lies in [MinTimestamp, MaxTimestamp].
func ValidateTimestamp(value []byte) error {
	ts, err := DecodeTimestamp(value)
	if err != nil {
		return err
	}
	// The ceiling is math.MaxInt32, so only the floor can be violated
	// by a decoded int32.
	if ts < MinTimestamp {
		return fmt.Errorf("%w: timestamp %d predates minimum %d",
			ErrCorruptTimestamp, ts, MinTimestamp)
	}
	return nil
}

// StripTimestamp validates value and returns it with the timestamp
// suffix removed. The returned slice aliases the input.
func StripTimestamp(value []byte) ([]byte, error) {
	if err := ValidateTimestamp(value); err != nil {
		return nil, err
	}
	return value[:len(value)-TimestampSize], nil
}

// IsStale reports whether a stored value's age exceeds ttl at the given
// current time, using strict greater-than: a value exactly ttl seconds
// old is not yet stale. A negative ttl disables expiration. Values with
// a missing or out-of-window timestamp are never stale; corruption must
// not be an excuse to drop data.
func IsStale(value []byte, ttl time.Duration, now int32) bool {
	if ttl < 0 {
		return false
	}
	if ValidateTimestamp(value) != nil {
		return false
	}
	ts, _ := DecodeTimestamp(value)
	return int64(now)-int64(ts) > ttlSeconds(ttl)
}

// ttlSeconds converts a TTL duration to whole seconds, the granularity
// of the stored timestamp.
func ttlSeconds(ttl time.Duration) int64 {
	return int64(ttl / time.Second)
}
