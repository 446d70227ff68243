package tests

import (
	"encoding/hex"
	"testing"

	cbor "github.com/synadia-labs/cborcodec/codec"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("bad hex %q: %v", s, err)
	}
	return b
}

// TestVectorsWellFormed runs every vector through the well-formedness
// scanner; all of them must be accepted with no trailing bytes.
func TestVectorsWellFormed(t *testing.T) {
	for _, v := range appendixAVectors {
		rest, err := cbor.Valid(mustHex(t, v.Hex))
		if err != nil {
			t.Errorf("Valid(%s): %v", v.Hex, err)
			continue
		}
		if len(rest) != 0 {
			t.Errorf("Valid(%s): %d trailing bytes", v.Hex, len(rest))
		}
	}
}

// TestVectorsDiag checks the diagnostic rendering of every vector against
// the generated table.
func TestVectorsDiag(t *testing.T) {
	for _, v := range appendixAVectors {
		got, rest, err := cbor.Diag(mustHex(t, v.Hex))
		if err != nil {
			t.Errorf("Diag(%s): %v", v.Hex, err)
			continue
		}
		if len(rest) != 0 {
			t.Errorf("Diag(%s): %d trailing bytes", v.Hex, len(rest))
			continue
		}
		if got != v.Diag {
			t.Errorf("Diag(%s) = %q, want %q", v.Hex, got, v.Diag)
		}
	}
}

// TestVectorsDecode decodes every vector and re-encodes the result; the
// re-encode must succeed for all decodable values. (Byte equality is not
// required here: the wire offers forms, like indefinite lengths, that the
// encoder never produces.)
func TestVectorsDecode(t *testing.T) {
	for _, v := range appendixAVectors {
		val, err := cbor.Unmarshal(mustHex(t, v.Hex))
		if err != nil {
			t.Errorf("Unmarshal(%s): %v", v.Hex, err)
			continue
		}
		if _, err := cbor.Marshal(val); err != nil {
			t.Errorf("re-Marshal of %s (%T): %v", v.Hex, val, err)
		}
	}
}

// TestVectorsCanonicalIdempotence: canonicalizing a canonical item is the
// identity.
func TestVectorsCanonicalIdempotence(t *testing.T) {
	for _, v := range appendixAVectors {
		val, err := cbor.Unmarshal(mustHex(t, v.Hex))
		if err != nil {
			t.Fatalf("Unmarshal(%s): %v", v.Hex, err)
		}
		once, err := cbor.MarshalCanonical(val)
		if err != nil {
			t.Fatalf("canonical encode of %s: %v", v.Hex, err)
		}
		back, err := cbor.Unmarshal(once)
		if err != nil {
			t.Fatalf("decode canonical form of %s: %v", v.Hex, err)
		}
		twice, err := cbor.MarshalCanonical(back)
		if err != nil {
			t.Fatalf("second canonical encode of %s: %v", v.Hex, err)
		}
		if hex.EncodeToString(once) != hex.EncodeToString(twice) {
			t.Errorf("canonical form of %s not stable: %s vs %s",
				v.Hex, hex.EncodeToString(once), hex.EncodeToString(twice))
		}
	}
}
