// Package cbor implements a dynamic CBOR (RFC 7049 / RFC 8949) codec.
//
// Unlike schema-driven CBOR runtimes, this package operates on plain Go
// values: the Encoder walks an arbitrary value graph (numbers, strings,
// byte strings, slices, maps, sets, tagged values) and emits a CBOR item
// stream; the Decoder reconstructs a value graph from the wire form.
//
// The package defines three layers:
//   - wire primitives (AppendHead, readHeadBytes and friends) that translate
//     between the (major, argument, indefinite?) abstraction and bytes;
//   - the Encoder/Decoder objects, which carry configuration, the handler
//     registry, and the value-sharing state for tags 28/29;
//   - the semantic tag registry covering date/time, bignums, decimal
//     fractions, bigfloats, rationals, regular expressions, MIME messages,
//     UUIDs, sets and IP addresses.
//
// A single Encoder or Decoder is not safe for concurrent use.
package cbor

// CBOR major types (3 bits)
const (
	majorTypeUint   = 0 // unsigned integer
	majorTypeNegInt = 1 // negative integer
	majorTypeBytes  = 2 // byte string
	majorTypeText   = 3 // text string (UTF-8)
	majorTypeArray  = 4 // array
	majorTypeMap    = 5 // map
	majorTypeTag    = 6 // semantic tag
	majorTypeSimple = 7 // float, simple values, break
)

// Additional info values (5 bits)
const (
	// 0-23: literal value
	addInfoDirect     = 23 // max direct value
	addInfoUint8      = 24 // 1-byte uint8 follows
	addInfoUint16     = 25 // 2-byte uint16 follows
	addInfoUint32     = 26 // 4-byte uint32 follows
	addInfoUint64     = 27 // 8-byte uint64 follows
	addInfoIndefinite = 31 // indefinite length (for bytes, text, array, map)
)

// Simple values in major type 7
const (
	simpleFalse     = 20
	simpleTrue      = 21
	simpleNull      = 22
	simpleUndefined = 23
	simpleFloat16   = 25
	simpleFloat32   = 26
	simpleFloat64   = 27
	simpleBreak     = 31
)

// Semantic tags handled by this codec
const (
	tagDateTimeString = 0   // RFC3339 date/time string
	tagEpochDateTime  = 1   // Unix timestamp (int or float)
	tagPosBignum      = 2   // Positive bignum
	tagNegBignum      = 3   // Negative bignum
	tagDecimalFrac    = 4   // Decimal fraction [exp, mantissa], base 10
	tagBigfloat       = 5   // Bigfloat [exp, mantissa], base 2
	tagShareable      = 28  // Mark value as shareable
	tagSharedRef      = 29  // Reference to a previously marked value
	tagRational       = 30  // Rational number [numerator, denominator]
	tagRegexp         = 35  // Regular expression pattern
	tagMIME           = 36  // MIME message
	tagUUID           = 37  // RFC 4122 UUID, 16-byte string
	tagSet            = 258 // Mathematical set, array of unique members
	tagIPAddress      = 260 // Packed IPv4/IPv6 address
	tagIPNetwork      = 261 // {packed-address: prefix-length}
)

const (
	// defaultRecursionLimit bounds the nesting depth accepted by a codec
	// instance. Deeply nested adversarial input would otherwise exhaust
	// the goroutine stack before the limit is hit.
	defaultRecursionLimit = 1000
)

// makeByte creates a CBOR initial byte from major type and additional info
func makeByte(majorType, addInfo uint8) byte {
	return byte((majorType << 5) | addInfo)
}

// getMajorType extracts the major type from a CBOR initial byte
func getMajorType(b byte) uint8 {
	return (b >> 5) & 0x07
}

// getAddInfo extracts the additional info from a CBOR initial byte
func getAddInfo(b byte) uint8 {
	return b & 0x1f
}

const breakByte = 0xff

// StrErrors selects how the decoder treats invalid UTF-8 in text strings.
type StrErrors int

const (
	// StrErrorsStrict rejects invalid UTF-8 with a DecodeError carrying
	// the lead byte of the offending string or chunk.
	StrErrorsStrict StrErrors = iota
	// StrErrorsError rejects invalid UTF-8 with the bare ErrInvalidUTF8
	// sentinel, without the lead-byte context.
	StrErrorsError
	// StrErrorsReplace substitutes U+FFFD for each invalid byte run.
	StrErrorsReplace
)

// TimestampFormat selects the wire form used for time.Time values.
type TimestampFormat int

const (
	// TimestampISO emits tag 0 with an RFC 3339 text string.
	TimestampISO TimestampFormat = iota
	// TimestampEpoch emits tag 1 with integer or float seconds.
	TimestampEpoch
)
