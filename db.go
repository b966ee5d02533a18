package ttldb

// db.go implements the TTL-aware database handle.
//
// DB owns exactly one engine handle and decorates it: writes are
// stamped, reads are stripped and validated, and everything without TTL
// semantics (snapshots, properties, size estimation, manual compaction,
// flush, file enumeration, sequence numbers, the transaction log) is
// routed to the engine unchanged. The expiration filter and the merge
// composer are installed into the engine options at open time, so the
// engine's own compaction and merge machinery invokes them; this layer
// owns no threads of its own.
//
// Reference: RocksDB v10.7.5
//   - utilities/ttl/db_ttl_impl.h (DBWithTTLImpl)
//   - utilities/ttl/db_ttl_impl.cc

import (
	"errors"
	"time"

	"github.com/aalhour/rockyardkv"
)

// ErrInvalidExpiry is returned by PutWithExpiry when the creation time
// falls outside the representable timestamp window.
var ErrInvalidExpiry = errors.New("ttldb: creation time outside valid timestamp window")

// TTLOptions configures the expiration behavior of a handle.
type TTLOptions struct {
	// TTL is the time after which an entry becomes eligible for
	// removal during compaction. Granularity is one second. A negative
	// TTL disables expiration; zero or positive expires entries whose
	// age strictly exceeds the TTL.
	TTL time.Duration

	// ReadOnly opens the underlying database in read-only mode. No
	// expiration filter is installed: a read-only handle never
	// triggers compaction or mutates data, it only views it, still
	// stripping timestamps on read.
	ReadOnly bool

	// ErrorIfWALExists makes a read-only open fail when WAL files
	// would need replay (unclean shutdown). Ignored for read-write.
	ErrorIfWALExists bool

	// Clock overrides the wall clock used for stamping and expiry.
	// Nil means the system clock. Intended for tests.
	Clock Clock
}

// DB is a TTL-aware database handle wrapping one rockyardkv database.
type DB struct {
	db       rockyardkv.DB
	ttl      time.Duration
	clock    Clock
	log      rockyardkv.Logger
	stats    *handleStats
	readOnly bool
}

// Open opens a database with TTL support at path. dbOpts configures the
// underlying engine (nil means engine defaults); Open installs the
// expiration filter into it and, if a merge operator is set, wraps the
// operator so merge results stay stamped. On failure no handle is
// returned and nothing needs closing.
func Open(path string, dbOpts *rockyardkv.Options, ttlOpts TTLOptions) (*DB, error) {
	if dbOpts == nil {
		dbOpts = rockyardkv.DefaultOptions()
	}
	clock := ttlOpts.Clock
	if clock == nil {
		clock = SystemClock()
	}
	var log rockyardkv.Logger = nopLogger{}
	if dbOpts.Logger != nil {
		log = dbOpts.Logger
	}
	stats := newHandleStats(path)

	// The merge composer is installed regardless of open mode: a
	// read-only handle still resolves pending merge operands at read
	// time, and those operands carry timestamp suffixes the user's
	// operator must never see.
	if dbOpts.MergeOperator != nil {
		dbOpts.MergeOperator = newMergeOperator(dbOpts.MergeOperator, clock, log, stats)
	}

	var (
		db  rockyardkv.DB
		err error
	)
	if ttlOpts.ReadOnly {
		db, err = rockyardkv.OpenForReadOnly(path, dbOpts, ttlOpts.ErrorIfWALExists)
	} else {
		dbOpts.CompactionFilter = newExpirationFilter(ttlOpts.TTL, clock, log, stats)
		db, err = rockyardkv.Open(path, dbOpts)
	}
	if err != nil {
		return nil, err
	}

	return &DB{
		db:       db,
		ttl:      ttlOpts.TTL,
		clock:    clock,
		log:      log,
		stats:    stats,
		readOnly: ttlOpts.ReadOnly,
	}, nil
}

// Close closes the underlying database. Closing a handle already torn
// down by TestDestroy is a no-op, so deferred Close calls stay safe.
func (d *DB) Close() error {
	if d.db == nil {
		return nil
	}
	return d.db.Close()
}

// TTL returns the TTL the handle was opened with. The TTL is immutable
// for the handle's lifetime.
func (d *DB) TTL() time.Duration {
	return d.ttl
}

// Underlying returns the wrapped engine handle. Values read through it
// carry the raw timestamp suffix.
func (d *DB) Underlying() rockyardkv.DB {
	return d.db
}

// Put stores key with value stamped at the current time.
func (d *DB) Put(opts *rockyardkv.WriteOptions, key, value []byte) error {
	now, err := CurrentTime(d.clock)
	if err != nil {
		return err
	}
	return d.db.Put(opts, key, AppendTimestamp(value, now))
}

// PutWithExpiry stores key with value stamped at an explicit creation
// time, backdating or postdating the entry's TTL clock.
func (d *DB) PutWithExpiry(opts *rockyardkv.WriteOptions, key, value []byte, creation time.Time) error {
	sec := creation.Unix()
	if sec < int64(MinTimestamp) || sec > int64(MaxTimestamp) {
		return ErrInvalidExpiry
	}
	return d.db.Put(opts, key, AppendTimestamp(value, int32(sec)))
}

// Get retrieves the value for key with the timestamp suffix removed.
// It returns rockyardkv.ErrNotFound if the key does not exist and an
// ErrCorruptTimestamp-wrapped error if the stored value's timestamp is
// malformed; a truncated payload is never returned.
func (d *DB) Get(opts *rockyardkv.ReadOptions, key []byte) ([]byte, error) {
	value, err := d.db.Get(opts, key)
	if err != nil {
		return nil, err
	}
	return StripTimestamp(value)
}

// GetWithTimestamp retrieves the value for key along with its decoded
// write timestamp.
func (d *DB) GetWithTimestamp(opts *rockyardkv.ReadOptions, key []byte) ([]byte, int32, error) {
	value, err := d.db.Get(opts, key)
	if err != nil {
		return nil, 0, err
	}
	stripped, err := StripTimestamp(value)
	if err != nil {
		return nil, 0, err
	}
	ts, _ := DecodeTimestamp(value)
	return stripped, ts, nil
}

// MultiGet retrieves multiple values with timestamp suffixes removed.
// Results and errors are positional, matching the engine's contract; a
// slot whose stored timestamp is malformed gets a corruption error.
func (d *DB) MultiGet(opts *rockyardkv.ReadOptions, keys [][]byte) ([][]byte, []error) {
	values, errs := d.db.MultiGet(opts, keys)
	for i := range values {
		if errs[i] != nil {
			continue
		}
		stripped, err := StripTimestamp(values[i])
		if err != nil {
			values[i] = nil
			errs[i] = err
			continue
		}
		values[i] = stripped
	}
	return values, errs
}

// KeyMayExist checks whether key may exist. When the engine hands back
// a cached value it is stripped before being reported; if the cached
// value's timestamp is malformed, only existence is reported.
func (d *DB) KeyMayExist(opts *rockyardkv.ReadOptions, key []byte, value *[]byte) (mayExist bool, valueFound bool) {
	mayExist, valueFound = d.db.KeyMayExist(opts, key, value)
	if valueFound && value != nil {
		stripped, err := StripTimestamp(*value)
		if err != nil {
			*value = nil
			return mayExist, false
		}
		*value = stripped
	}
	return mayExist, valueFound
}

// Delete removes key. Deletions carry no timestamp and pass through.
func (d *DB) Delete(opts *rockyardkv.WriteOptions, key []byte) error {
	return d.db.Delete(opts, key)
}

// SingleDelete removes key, with the engine's single-version contract.
func (d *DB) SingleDelete(opts *rockyardkv.WriteOptions, key []byte) error {
	return d.db.SingleDelete(opts, key)
}

// DeleteRange removes all keys in [startKey, endKey).
func (d *DB) DeleteRange(opts *rockyardkv.WriteOptions, startKey, endKey []byte) error {
	return d.db.DeleteRange(opts, startKey, endKey)
}

// Merge applies a merge operand stamped at the current time. The
// wrapped merge operator strips operand timestamps before the user
// operator sees them and stamps every merge result afresh.
func (d *DB) Merge(opts *rockyardkv.WriteOptions, key, value []byte) error {
	now, err := CurrentTime(d.clock)
	if err != nil {
		return err
	}
	return d.db.Merge(opts, key, AppendTimestamp(value, now))
}

// Write applies the batch atomically. All Put and Merge values in the
// batch are stamped with one timestamp taken now.
func (d *DB) Write(opts *rockyardkv.WriteOptions, batch *WriteBatch) error {
	now, err := CurrentTime(d.clock)
	if err != nil {
		return err
	}
	return d.db.Write(opts, batch.materialize(now))
}

// NewIterator returns an iterator that hides timestamp suffixes.
func (d *DB) NewIterator(opts *rockyardkv.ReadOptions) *Iterator {
	return NewIterator(d.db.NewIterator(opts))
}

// GetSnapshot returns a snapshot of the underlying database.
func (d *DB) GetSnapshot() *rockyardkv.Snapshot {
	return d.db.GetSnapshot()
}

// ReleaseSnapshot releases a previously acquired snapshot.
func (d *DB) ReleaseSnapshot(s *rockyardkv.Snapshot) {
	d.db.ReleaseSnapshot(s)
}

// Flush flushes the memtable to disk.
func (d *DB) Flush(opts *rockyardkv.FlushOptions) error {
	return d.db.Flush(opts)
}

// GetProperty returns the value of an engine property.
func (d *DB) GetProperty(name string) (string, bool) {
	return d.db.GetProperty(name)
}

// GetIntProperty returns an integer engine property.
func (d *DB) GetIntProperty(name string) (uint64, bool) {
	return d.db.GetIntProperty(name)
}

// GetApproximateSizes returns the approximate sizes of key ranges.
// Sizes include the 4 bytes of timestamp each stored value carries.
func (d *DB) GetApproximateSizes(ranges []rockyardkv.Range, flags rockyardkv.SizeApproximationFlags) ([]uint64, error) {
	return d.db.GetApproximateSizes(ranges, flags)
}

// CompactRange manually compacts the key range, which also applies the
// expiration filter to it. Compacting nil..nil scrubs the whole
// database of expired entries.
func (d *DB) CompactRange(opts *rockyardkv.CompactRangeOptions, start, end []byte) error {
	return d.db.CompactRange(opts, start, end)
}

// WaitForCompact waits for background compactions to complete.
func (d *DB) WaitForCompact(opts *rockyardkv.WaitForCompactOptions) error {
	return d.db.WaitForCompact(opts)
}

// DisableFileDeletions prevents engine file deletions, for backups.
func (d *DB) DisableFileDeletions() error {
	return d.db.DisableFileDeletions()
}

// EnableFileDeletions re-enables engine file deletions.
func (d *DB) EnableFileDeletions() error {
	return d.db.EnableFileDeletions()
}

// GetLiveFiles returns the engine's live files and manifest size.
func (d *DB) GetLiveFiles(flushMemtable bool) ([]string, uint64, error) {
	return d.db.GetLiveFiles(flushMemtable)
}

// GetLiveFilesMetaData returns metadata about live SST files.
func (d *DB) GetLiveFilesMetaData() []rockyardkv.LiveFileMetaData {
	return d.db.GetLiveFilesMetaData()
}

// GetLatestSequenceNumber returns the engine's latest sequence number.
func (d *DB) GetLatestSequenceNumber() uint64 {
	return d.db.GetLatestSequenceNumber()
}

// transactionLogDB is the optional engine capability for change-log
// access; the engine exposes it on its concrete handle rather than on
// the DB interface.
type transactionLogDB interface {
	GetUpdatesSince(seqNumber uint64, readOpts rockyardkv.TransactionLogIteratorReadOptions) (*rockyardkv.TransactionLogIterator, error)
}

// GetUpdatesSince returns an iterator over WAL write batches starting
// at seqNumber. Batch values carry raw timestamp suffixes.
func (d *DB) GetUpdatesSince(seqNumber uint64, readOpts rockyardkv.TransactionLogIteratorReadOptions) (*rockyardkv.TransactionLogIterator, error) {
	tl, ok := d.db.(transactionLogDB)
	if !ok {
		return nil, errors.New("ttldb: engine handle does not expose the transaction log")
	}
	return tl.GetUpdatesSince(seqNumber, readOpts)
}

// TestDestroy simulates a process crash: the engine handle is abandoned
// with no orderly shutdown (no flush, no close). The handle is unusable
// afterwards. For crash-recovery tests only.
func (d *DB) TestDestroy() {
	d.db = nil
}

// nopLogger discards all messages. Used when the engine options carry
// no logger.
type nopLogger struct{}

func (nopLogger) Errorf(format string, args ...any) {}
func (nopLogger) Warnf(format string, args ...any)  {}
func (nopLogger) Infof(format string, args ...any)  {}
func (nopLogger) Debugf(format string, args ...any) {}
func (nopLogger) Fatalf(format string, args ...any) {}
