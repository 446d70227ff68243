package cbor

import (
	"bytes"
	"encoding/hex"
	"errors"
	"reflect"
	"testing"
)

func marshalShared(t *testing.T, v any) []byte {
	t.Helper()
	var buf bytes.Buffer
	e := NewEncoder(&buf)
	e.SetValueSharing(true)
	if err := e.Encode(v); err != nil {
		t.Fatalf("shared encode: %v", err)
	}
	return buf.Bytes()
}

func TestCycleDetectedWithoutSharing(t *testing.T) {
	a := make([]any, 1)
	a[0] = a
	var ce CycleError
	if _, err := Marshal(a); !errors.As(err, &ce) {
		t.Fatalf("expected CycleError, got %v", err)
	}

	m := map[any]any{}
	m["self"] = m
	if _, err := Marshal(m); !errors.As(err, &ce) {
		t.Fatalf("expected CycleError for map, got %v", err)
	}
}

func TestRepeatedContainerWithoutSharing(t *testing.T) {
	// A diamond (the same sub-array twice, no cycle) is legal without
	// sharing: the body is simply encoded twice.
	x := []any{int64(1)}
	checkEncode(t, []any{x, x}, "8281018101")
}

func TestSharedEncodeMarksEveryContainer(t *testing.T) {
	x := []any{int64(1)}
	outer := []any{x, x}
	got := marshalShared(t, outer)
	// outer: tag 28 (index 0), head; x: tag 28 (index 1), body;
	// second x: tag 29 ref 1. The body is emitted exactly once.
	want := mustHex(t, "d81c82d81c8101d81d01")
	if !bytes.Equal(got, want) {
		t.Fatalf("shared encode = %s, want %s",
			hex.EncodeToString(got), hex.EncodeToString(want))
	}
}

func TestSharedEncodeSelfReference(t *testing.T) {
	a := make([]any, 1)
	a[0] = a
	got := marshalShared(t, a)
	want := mustHex(t, "d81c81d81d00")
	if !bytes.Equal(got, want) {
		t.Fatalf("self-referential encode = %s", hex.EncodeToString(got))
	}
}

func TestSharedIndexesResetPerEncode(t *testing.T) {
	x := []any{int64(1)}
	var buf bytes.Buffer
	e := NewEncoder(&buf)
	e.SetValueSharing(true)
	if err := e.Encode(x); err != nil {
		t.Fatalf("first encode: %v", err)
	}
	first := append([]byte(nil), buf.Bytes()...)
	buf.Reset()
	if err := e.Encode(x); err != nil {
		t.Fatalf("second encode: %v", err)
	}
	if !bytes.Equal(first, buf.Bytes()) {
		t.Fatalf("encodes differ across top-level calls: %s vs %s",
			hex.EncodeToString(first), hex.EncodeToString(buf.Bytes()))
	}
}

func TestDecodeSharedDiamond(t *testing.T) {
	v, err := Unmarshal(mustHex(t, "d81c82d81c8101d81d01"))
	if err != nil {
		t.Fatalf("decode shared: %v", err)
	}
	outer, ok := v.([]any)
	if !ok || len(outer) != 2 {
		t.Fatalf("outer = %#v", v)
	}
	a0 := outer[0].([]any)
	a1 := outer[1].([]any)
	if !reflect.DeepEqual(a0, []any{int64(1)}) {
		t.Fatalf("inner = %#v", a0)
	}
	if reflect.ValueOf(a0).Pointer() != reflect.ValueOf(a1).Pointer() {
		t.Fatal("shared occurrences decoded to distinct arrays")
	}
}

func TestDecodeSelfReferentialArray(t *testing.T) {
	v, err := Unmarshal(mustHex(t, "d81c81d81d00"))
	if err != nil {
		t.Fatalf("decode self-referential: %v", err)
	}
	arr, ok := v.([]any)
	if !ok || len(arr) != 1 {
		t.Fatalf("value = %#v", v)
	}
	inner, ok := arr[0].([]any)
	if !ok {
		t.Fatalf("element = %#v", arr[0])
	}
	if reflect.ValueOf(arr).Pointer() != reflect.ValueOf(inner).Pointer() {
		t.Fatal("element is not the array itself")
	}
}

func TestDecodeSelfReferentialMap(t *testing.T) {
	// tag 28 { "self": tag 29 0 }
	v, err := Unmarshal(mustHex(t, "d81ca16473656c66d81d00"))
	if err != nil {
		t.Fatalf("decode self-referential map: %v", err)
	}
	m, ok := v.(map[any]any)
	if !ok {
		t.Fatalf("value = %#v", v)
	}
	inner, ok := m["self"].(map[any]any)
	if !ok {
		t.Fatalf("entry = %#v", m["self"])
	}
	if reflect.ValueOf(m).Pointer() != reflect.ValueOf(inner).Pointer() {
		t.Fatal("entry is not the map itself")
	}
}

func TestDecodeSharedScalar(t *testing.T) {
	// [ tag 28 1, tag 29 0 ]
	checkDecode(t, "82d81c01d81d00", []any{int64(1), int64(1)})
}

func TestDecodeSharedRefErrors(t *testing.T) {
	// Reference to a slot that was never opened.
	checkDecodeErr(t, "d81d00", nil)
	// Out-of-range index.
	checkDecodeErr(t, "82d81c01d81d05", nil)
	// Self-reference to a scalar still under construction:
	// tag 28 (tag 29 0) — the slot holds the placeholder.
	checkDecodeErr(t, "d81cd81d00", nil)
}

func TestSharedRoundtrip(t *testing.T) {
	x := []any{"shared"}
	outer := []any{x, x, x}
	b := marshalShared(t, outer)
	v, err := Unmarshal(b)
	if err != nil {
		t.Fatalf("roundtrip decode: %v", err)
	}
	back := v.([]any)
	if len(back) != 3 {
		t.Fatalf("outer length = %d", len(back))
	}
	p0 := reflect.ValueOf(back[0]).Pointer()
	for i := 1; i < 3; i++ {
		if reflect.ValueOf(back[i]).Pointer() != p0 {
			t.Fatalf("occurrence %d not shared", i)
		}
	}
}
