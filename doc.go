/*
Package ttldb provides time-to-live (TTL) support on top of a RockyardKV
database. It is the Go counterpart of C++ RocksDB's DBWithTTL utility and
keeps the same on-disk value format.

Every value written through a ttldb handle carries a 4-byte little-endian
unix-seconds timestamp suffix. The suffix is appended on Put/Merge/Write,
hidden again on Get/MultiGet/iteration, and consulted by a compaction
filter that drops entries strictly older than the configured TTL. Expiry
is lazy: entries are physically removed only when the engine compacts the
data that holds them, so reads may still observe an entry for a while
after its TTL has elapsed.

A negative TTL disables expiration entirely. Timestamps outside the sanity
window [MinTimestamp, MaxTimestamp] are treated as corruption: reads fail
with ErrCorruptTimestamp, while the compaction filter conservatively keeps
such entries (and counts them) rather than destroy data it cannot
interpret.

Data written with TTL enabled is a format commitment. It is not
transparently readable through a plain rockyardkv handle, and plain data
is not readable through a ttldb handle.

# Concurrency

A DB handle is safe for concurrent use by multiple goroutines. The
compaction filter and the wrapped merge operator are invoked from the
engine's background threads and hold no mutable state beyond the TTL and
clock captured at open time.

Reference: RocksDB v10.7.5 utilities/ttl/db_ttl_impl.h
*/
package ttldb
