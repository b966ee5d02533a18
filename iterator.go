package ttldb

// iterator.go implements the timestamp-stripping iterator.
//
// The wrapper exclusively owns the engine iterator it was built from and
// delegates all positioning unchanged; it does not skip entries, so an
// expired-but-not-yet-compacted entry is still visible here (expiry is
// resolved at compaction). Value hides the timestamp suffix; Timestamp
// exposes it for callers that want the expiration metadata without
// re-parsing, such as backup and inspection tooling.
//
// The C++ TtlIterator asserts on a corrupt suffix inside value(). Here
// corruption latches an error surfaced through Error, matching the
// engine's iterator error contract.
//
// Reference: RocksDB v10.7.5 utilities/ttl/db_ttl_impl.h (TtlIterator)

import (
	"github.com/aalhour/rockyardkv"
)

// Iterator iterates over a TTL database, returning values with the
// timestamp suffix removed. It implements rockyardkv.Iterator.
type Iterator struct {
	iter rockyardkv.Iterator
	err  error
}

// NewIterator wraps an engine iterator. The wrapper takes ownership;
// closing it closes the wrapped iterator.
func NewIterator(iter rockyardkv.Iterator) *Iterator {
	return &Iterator{iter: iter}
}

// Valid returns true if the iterator is positioned at a valid entry.
func (i *Iterator) Valid() bool {
	return i.iter.Valid()
}

// SeekToFirst positions the iterator at the first key.
func (i *Iterator) SeekToFirst() {
	i.iter.SeekToFirst()
}

// SeekToLast positions the iterator at the last key.
func (i *Iterator) SeekToLast() {
	i.iter.SeekToLast()
}

// Seek positions the iterator at the first key >= target.
func (i *Iterator) Seek(target []byte) {
	i.iter.Seek(target)
}

// SeekForPrev positions the iterator at the last key <= target.
func (i *Iterator) SeekForPrev(target []byte) {
	i.iter.SeekForPrev(target)
}

// Next moves the iterator to the next key.
func (i *Iterator) Next() {
	i.iter.Next()
}

// Prev moves the iterator to the previous key.
func (i *Iterator) Prev() {
	i.iter.Prev()
}

// Key returns the key at the current position.
// REQUIRES: Valid()
func (i *Iterator) Key() []byte {
	return i.iter.Key()
}

// Value returns the value at the current position with the timestamp
// suffix removed. If the stored value's timestamp cannot be validated,
// Value returns nil and the corruption is reported through Error; no
// truncated payload is ever returned.
// REQUIRES: Valid()
func (i *Iterator) Value() []byte {
	stripped, err := StripTimestamp(i.iter.Value())
	if err != nil {
		i.err = err
		return nil
	}
	return stripped
}

// Timestamp returns the decoded timestamp of the current entry.
// REQUIRES: Valid()
func (i *Iterator) Timestamp() (int32, error) {
	return DecodeTimestamp(i.iter.Value())
}

// Error returns the first corruption detected by Value, or any error
// from the underlying iterator.
func (i *Iterator) Error() error {
	if i.err != nil {
		return i.err
	}
	return i.iter.Error()
}

// Close releases the wrapped iterator.
func (i *Iterator) Close() error {
	return i.iter.Close()
}
