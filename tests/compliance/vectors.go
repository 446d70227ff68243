// Package tests holds the compliance suite: RFC-style vectors, oracle
// cross-checks against an independent CBOR implementation, and fuzz
// targets for the decoder.
//
// The vector table in vectors_gen.go is regenerated from
// testdata/vectors.json by cmd/cborvectors.
package tests

// vector is one compliance row: a CBOR item in hex and its expected
// diagnostic notation.
type vector struct {
	Hex  string
	Diag string
}
