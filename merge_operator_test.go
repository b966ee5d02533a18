package ttldb

// merge_operator_test.go implements tests for the merge composer.

import (
	"bytes"
	"testing"

	"github.com/aalhour/rockyardkv"
)

func TestFullMergeRestampsResult(t *testing.T) {
	t1 := int32(baseTime) - 500
	t2 := int32(baseTime) - 200
	mergeTime := int64(baseTime)

	op := newMergeOperator(&rockyardkv.StringAppendOperator{Delimiter: ","},
		&fixedClock{sec: mergeTime}, nil, nil)

	existing := AppendTimestamp([]byte("a"), t1)
	operand := AppendTimestamp([]byte("b"), t2)

	out, ok := op.FullMerge([]byte("k"), existing, [][]byte{operand})
	if !ok {
		t.Fatal("FullMerge failed")
	}

	// The result is stamped at merge time, not at either operand's
	// time: every merge resets the key's TTL clock.
	ts, err := DecodeTimestamp(out)
	if err != nil {
		t.Fatalf("DecodeTimestamp() error = %v", err)
	}
	if ts != int32(mergeTime) {
		t.Errorf("result stamped at %d, want merge time %d", ts, mergeTime)
	}
	if ts == t1 || ts == t2 {
		t.Error("result must not inherit an operand timestamp")
	}

	payload, err := StripTimestamp(out)
	if err != nil {
		t.Fatalf("StripTimestamp() error = %v", err)
	}
	if !bytes.Equal(payload, []byte("a,b")) {
		t.Errorf("merged payload = %q, want %q", payload, "a,b")
	}
}

func TestFullMergeNoExistingValue(t *testing.T) {
	op := newMergeOperator(&rockyardkv.StringAppendOperator{Delimiter: ","},
		&fixedClock{sec: baseTime}, nil, nil)

	operand := AppendTimestamp([]byte("b"), int32(baseTime)-10)
	out, ok := op.FullMerge([]byte("k"), nil, [][]byte{operand})
	if !ok {
		t.Fatal("FullMerge failed")
	}

	payload, err := StripTimestamp(out)
	if err != nil {
		t.Fatalf("StripTimestamp() error = %v", err)
	}
	if !bytes.Equal(payload, []byte("b")) {
		t.Errorf("merged payload = %q, want %q", payload, "b")
	}
}

func TestFullMergeUserSeesBarePayloads(t *testing.T) {
	var sawExisting []byte
	var sawOperands [][]byte
	spy := &spyMergeOperator{
		onFullMerge: func(key, existing []byte, operands [][]byte) {
			sawExisting = existing
			sawOperands = operands
		},
	}

	op := newMergeOperator(spy, &fixedClock{sec: baseTime}, nil, nil)
	existing := AppendTimestamp([]byte("old"), int32(baseTime)-100)
	operand := AppendTimestamp([]byte("new"), int32(baseTime)-50)

	if _, ok := op.FullMerge([]byte("k"), existing, [][]byte{operand}); !ok {
		t.Fatal("FullMerge failed")
	}

	if !bytes.Equal(sawExisting, []byte("old")) {
		t.Errorf("user operator saw existing %q, want %q", sawExisting, "old")
	}
	if len(sawOperands) != 1 || !bytes.Equal(sawOperands[0], []byte("new")) {
		t.Errorf("user operator saw operands %q, want [%q]", sawOperands, "new")
	}
}

func TestFullMergeMalformedInputFailsRecoverably(t *testing.T) {
	op := newMergeOperator(&rockyardkv.StringAppendOperator{Delimiter: ","},
		&fixedClock{sec: baseTime}, nil, nil)

	// An operand shorter than the suffix means the merge chain received
	// an untagged value. The merge fails; the process does not.
	if _, ok := op.FullMerge([]byte("k"), nil, [][]byte{{1, 2}}); ok {
		t.Error("FullMerge should fail on an operand without a timestamp suffix")
	}

	short := []byte{1, 2, 3}
	operand := AppendTimestamp([]byte("b"), int32(baseTime))
	if _, ok := op.FullMerge([]byte("k"), short, [][]byte{operand}); ok {
		t.Error("FullMerge should fail on an existing value without a timestamp suffix")
	}
}

func TestFullMergeClockFailure(t *testing.T) {
	op := newMergeOperator(&rockyardkv.StringAppendOperator{Delimiter: ","},
		&fixedClock{sec: -1}, nil, nil)

	operand := AppendTimestamp([]byte("b"), int32(baseTime))
	if _, ok := op.FullMerge([]byte("k"), nil, [][]byte{operand}); ok {
		t.Error("FullMerge must not commit a result it cannot stamp")
	}
}

func TestPartialMergeRestamps(t *testing.T) {
	mergeTime := int64(baseTime)
	op := newMergeOperator(&rockyardkv.StringAppendOperator{Delimiter: ","},
		&fixedClock{sec: mergeTime}, nil, nil)

	left := AppendTimestamp([]byte("a"), int32(baseTime)-300)
	right := AppendTimestamp([]byte("b"), int32(baseTime)-100)

	out, ok := op.PartialMerge([]byte("k"), left, right)
	if !ok {
		t.Fatal("PartialMerge failed")
	}

	ts, err := DecodeTimestamp(out)
	if err != nil {
		t.Fatalf("DecodeTimestamp() error = %v", err)
	}
	if ts != int32(mergeTime) {
		t.Errorf("partial result stamped at %d, want %d", ts, mergeTime)
	}

	payload, _ := StripTimestamp(out)
	if !bytes.Equal(payload, []byte("a,b")) {
		t.Errorf("partial payload = %q, want %q", payload, "a,b")
	}
}

func TestPartialMergeMalformedOperand(t *testing.T) {
	op := newMergeOperator(&rockyardkv.StringAppendOperator{Delimiter: ","},
		&fixedClock{sec: baseTime}, nil, nil)

	good := AppendTimestamp([]byte("a"), int32(baseTime))
	if _, ok := op.PartialMerge([]byte("k"), good, []byte{9}); ok {
		t.Error("PartialMerge should fail on an operand without a timestamp suffix")
	}
}

func TestMergeOperatorName(t *testing.T) {
	op := newMergeOperator(&rockyardkv.UInt64AddOperator{}, nil, nil, nil)
	if op.Name() != "TTLMergeOperator.UInt64AddOperator" {
		t.Errorf("Name() = %q", op.Name())
	}
}

// spyMergeOperator records the inputs it is handed and appends operands
// to the existing value.
type spyMergeOperator struct {
	onFullMerge func(key, existing []byte, operands [][]byte)
}

func (s *spyMergeOperator) Name() string { return "spy" }

func (s *spyMergeOperator) FullMerge(key, existing []byte, operands [][]byte) ([]byte, bool) {
	if s.onFullMerge != nil {
		s.onFullMerge(key, existing, operands)
	}
	out := append([]byte(nil), existing...)
	for _, op := range operands {
		out = append(out, op...)
	}
	return out, true
}

func (s *spyMergeOperator) PartialMerge(key, left, right []byte) ([]byte, bool) {
	return append(append([]byte(nil), left...), right...), true
}
