package ttldb

// write_batch.go implements the stamping write batch.
//
// The engine's WriteBatch encodes operations immediately and does not
// expose iteration, so the layer records operations itself and
// materializes an engine batch at Write time. All Put and Merge values
// in one batch are stamped with the same timestamp, taken once when the
// batch is written; deletions carry no timestamp and pass through.
//
// Reference: RocksDB v10.7.5
//   - utilities/ttl/db_ttl_impl.cc (DBWithTTLImpl::Write handler)
//   - include/rocksdb/write_batch.h

import (
	"github.com/aalhour/rockyardkv"
)

type batchOpKind uint8

const (
	batchPut batchOpKind = iota
	batchMerge
	batchDelete
	batchSingleDelete
	batchDeleteRange
)

type batchOp struct {
	kind  batchOpKind
	key   []byte
	value []byte // end key for batchDeleteRange
}

// WriteBatch collects operations to be applied atomically through
// DB.Write. Keys and values are copied, so callers may reuse their
// buffers after each call.
type WriteBatch struct {
	ops []batchOp
}

// NewWriteBatch creates a new empty WriteBatch.
func NewWriteBatch() *WriteBatch {
	return &WriteBatch{}
}

// Put adds a key-value pair to the batch. The value is stamped when the
// batch is written.
func (wb *WriteBatch) Put(key, value []byte) {
	wb.append(batchPut, key, value)
}

// Merge adds a merge operand to the batch. The operand is stamped when
// the batch is written.
func (wb *WriteBatch) Merge(key, value []byte) {
	wb.append(batchMerge, key, value)
}

// Delete adds a deletion for the key to the batch.
func (wb *WriteBatch) Delete(key []byte) {
	wb.append(batchDelete, key, nil)
}

// SingleDelete adds a single deletion for the key to the batch.
func (wb *WriteBatch) SingleDelete(key []byte) {
	wb.append(batchSingleDelete, key, nil)
}

// DeleteRange adds a range deletion [startKey, endKey) to the batch.
func (wb *WriteBatch) DeleteRange(startKey, endKey []byte) {
	wb.append(batchDeleteRange, startKey, endKey)
}

// Clear resets the batch to empty, allowing it to be reused.
func (wb *WriteBatch) Clear() {
	wb.ops = wb.ops[:0]
}

// Count returns the number of operations in the batch.
func (wb *WriteBatch) Count() uint32 {
	return uint32(len(wb.ops))
}

func (wb *WriteBatch) append(kind batchOpKind, key, value []byte) {
	op := batchOp{kind: kind}
	op.key = append(op.key, key...)
	op.value = append(op.value, value...)
	wb.ops = append(wb.ops, op)
}

// materialize builds the engine batch, stamping every Put and Merge
// value with now.
func (wb *WriteBatch) materialize(now int32) *rockyardkv.WriteBatch {
	out := rockyardkv.NewWriteBatch()
	for _, op := range wb.ops {
		switch op.kind {
		case batchPut:
			out.Put(op.key, AppendTimestamp(op.value, now))
		case batchMerge:
			out.Merge(op.key, AppendTimestamp(op.value, now))
		case batchDelete:
			out.Delete(op.key)
		case batchSingleDelete:
			out.SingleDelete(op.key)
		case batchDeleteRange:
			out.DeleteRange(op.key, op.value)
		}
	}
	return out
}
