// Package benchmarks compares the dynamic codec against fxamacker/cbor
// (an independent CBOR implementation) and the tinylib/msgp MessagePack
// runtime on equivalent dynamic values. The msgp rows are not CBOR; they
// bound what a comparable binary codec achieves on the same shapes.
package benchmarks

import (
	"bytes"
	"testing"

	fxcbor "github.com/fxamacker/cbor/v2"
	cbor "github.com/synadia-labs/cborcodec/codec"
	msgp "github.com/tinylib/msgp/msgp"
)

var sampleDoc = map[string]any{
	"name":    "jetstream-7",
	"cluster": "us-east-1",
	"replica": int64(3),
	"lags":    []any{int64(12), int64(44), int64(3), int64(0), int64(881)},
	"healthy": true,
	"score":   0.9231,
	"raw":     []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08},
	"labels": map[string]any{
		"team":  "core",
		"stage": "prod",
	},
}

var sampleArray = func() []any {
	out := make([]any, 0, 256)
	for i := 0; i < 128; i++ {
		out = append(out, int64(i), "v")
	}
	return out
}()

func BenchmarkEncodeDoc(b *testing.B) {
	b.Run("cborcodec", func(b *testing.B) {
		var buf bytes.Buffer
		e := cbor.NewEncoder(&buf)
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			buf.Reset()
			if err := e.Encode(sampleDoc); err != nil {
				b.Fatalf("encode: %v", err)
			}
		}
	})
	b.Run("cborcodec-canonical", func(b *testing.B) {
		var buf bytes.Buffer
		e := cbor.NewEncoder(&buf)
		e.SetCanonical(true)
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			buf.Reset()
			if err := e.Encode(sampleDoc); err != nil {
				b.Fatalf("encode: %v", err)
			}
		}
	})
	b.Run("fxamacker", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			if _, err := fxcbor.Marshal(sampleDoc); err != nil {
				b.Fatalf("encode: %v", err)
			}
		}
	})
	b.Run("msgp", func(b *testing.B) {
		var out []byte
		var err error
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			out, err = msgp.AppendIntf(out[:0], sampleDoc)
			if err != nil {
				b.Fatalf("encode: %v", err)
			}
		}
	})
}

func BenchmarkEncodeArray(b *testing.B) {
	b.Run("cborcodec", func(b *testing.B) {
		var buf bytes.Buffer
		e := cbor.NewEncoder(&buf)
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			buf.Reset()
			if err := e.Encode(sampleArray); err != nil {
				b.Fatalf("encode: %v", err)
			}
		}
	})
	b.Run("fxamacker", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			if _, err := fxcbor.Marshal(sampleArray); err != nil {
				b.Fatalf("encode: %v", err)
			}
		}
	})
	b.Run("msgp", func(b *testing.B) {
		var out []byte
		var err error
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			out, err = msgp.AppendIntf(out[:0], sampleArray)
			if err != nil {
				b.Fatalf("encode: %v", err)
			}
		}
	})
}

func BenchmarkDecodeDoc(b *testing.B) {
	encoded, err := cbor.Marshal(sampleDoc)
	if err != nil {
		b.Fatalf("prepare: %v", err)
	}
	b.Run("cborcodec", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			if _, err := cbor.Unmarshal(encoded); err != nil {
				b.Fatalf("decode: %v", err)
			}
		}
	})
	b.Run("fxamacker", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			var v any
			if err := fxcbor.Unmarshal(encoded, &v); err != nil {
				b.Fatalf("decode: %v", err)
			}
		}
	})
}

func BenchmarkSharedGraph(b *testing.B) {
	inner := []any{"shared", int64(42)}
	outer := make([]any, 64)
	for i := range outer {
		outer[i] = inner
	}
	b.Run("encode", func(b *testing.B) {
		var buf bytes.Buffer
		e := cbor.NewEncoder(&buf)
		e.SetValueSharing(true)
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			buf.Reset()
			if err := e.Encode(outer); err != nil {
				b.Fatalf("encode: %v", err)
			}
		}
	})
	var buf bytes.Buffer
	e := cbor.NewEncoder(&buf)
	e.SetValueSharing(true)
	if err := e.Encode(outer); err != nil {
		b.Fatalf("prepare: %v", err)
	}
	encoded := buf.Bytes()
	b.Run("decode", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			if _, err := cbor.Unmarshal(encoded); err != nil {
				b.Fatalf("decode: %v", err)
			}
		}
	})
}
