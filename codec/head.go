package cbor

import (
	"encoding/binary"
	"math"
)

var be = binary.BigEndian

// ensure 'sz' extra bytes in 'b' btw len(b) and cap(b)
func ensure(b []byte, sz int) ([]byte, int) {
	l := len(b)
	c := cap(b)
	if c-l < sz {
		o := make([]byte, (2*c)+sz) // exponential growth
		n := copy(o, b)
		return o[:n+sz], n
	}
	return b[:l+sz], l
}

// AppendHead appends an item head for the given major type, choosing the
// shortest argument encoding (direct if <24, else 1/2/4/8-byte big-endian).
func AppendHead(b []byte, majorType uint8, arg uint64) []byte {
	switch {
	case arg <= addInfoDirect:
		return append(b, makeByte(majorType, uint8(arg)))
	case arg <= math.MaxUint8:
		o, n := ensure(b, 2)
		o[n] = makeByte(majorType, addInfoUint8)
		o[n+1] = uint8(arg)
		return o
	case arg <= math.MaxUint16:
		o, n := ensure(b, 3)
		o[n] = makeByte(majorType, addInfoUint16)
		be.PutUint16(o[n+1:], uint16(arg))
		return o
	case arg <= math.MaxUint32:
		o, n := ensure(b, 5)
		o[n] = makeByte(majorType, addInfoUint32)
		be.PutUint32(o[n+1:], uint32(arg))
		return o
	default:
		o, n := ensure(b, 9)
		o[n] = makeByte(majorType, addInfoUint64)
		be.PutUint64(o[n+1:], arg)
		return o
	}
}

// AppendBreak appends a break stop code (0xff)
func AppendBreak(b []byte) []byte {
	return append(b, breakByte)
}

// AppendIndefiniteHead appends an indefinite-length head for majors 2-5.
func AppendIndefiniteHead(b []byte, majorType uint8) []byte {
	return append(b, makeByte(majorType, addInfoIndefinite))
}

// readHeadBytes reads one item head from b: the major type, the decoded
// argument, and whether the head opens an indefinite-length item. Reserved
// additional info values 28-30 are rejected as malformed; additional info
// 31 is only an indefinite marker for majors 2-5 (for major 7 it is the
// break byte, which callers handle before reading a head).
func readHeadBytes(b []byte) (major uint8, arg uint64, indefinite bool, rest []byte, err error) {
	if len(b) < 1 {
		return 0, 0, false, b, ErrShortBytes
	}
	lead := b[0]
	major = getMajorType(lead)
	info := getAddInfo(lead)
	switch {
	case info <= addInfoDirect:
		return major, uint64(info), false, b[1:], nil
	case info == addInfoUint8:
		if len(b) < 2 {
			return 0, 0, false, b, ErrShortBytes
		}
		return major, uint64(b[1]), false, b[2:], nil
	case info == addInfoUint16:
		if len(b) < 3 {
			return 0, 0, false, b, ErrShortBytes
		}
		return major, uint64(be.Uint16(b[1:])), false, b[3:], nil
	case info == addInfoUint32:
		if len(b) < 5 {
			return 0, 0, false, b, ErrShortBytes
		}
		return major, uint64(be.Uint32(b[1:])), false, b[5:], nil
	case info == addInfoUint64:
		if len(b) < 9 {
			return 0, 0, false, b, ErrShortBytes
		}
		return major, be.Uint64(b[1:]), false, b[9:], nil
	case info == addInfoIndefinite:
		if major >= majorTypeBytes && major <= majorTypeMap {
			return major, 0, true, b[1:], nil
		}
		if lead == breakByte {
			return 0, 0, false, b, ErrBreakOutsideIndefinite
		}
		return 0, 0, false, b, malformed("indefinite length not allowed for this major type", lead)
	default: // 28, 29, 30
		return 0, 0, false, b, malformed("reserved additional info", lead)
	}
}

// readUintCore reads an item head and enforces the expected major type.
func readUintCore(b []byte, expectedMajor uint8) (uint64, []byte, error) {
	major, arg, indef, rest, err := readHeadBytes(b)
	if err != nil {
		return 0, b, err
	}
	if major != expectedMajor {
		return 0, b, badPrefix(expectedMajor, major)
	}
	if indef {
		return 0, b, malformed("indefinite length where definite expected", b[0])
	}
	return arg, rest, nil
}

// readDefiniteSlice reads a definite-length payload of sz bytes.
func readDefiniteSlice(b []byte, sz uint64) ([]byte, []byte, error) {
	if sz > uint64(len(b)) {
		return nil, b, ErrShortBytes
	}
	return b[:sz], b[sz:], nil
}

// readBytesItem reads a byte string (definite or indefinite) and returns
// its contents. Indefinite chunks must themselves be definite byte strings.
func readBytesItem(b []byte) ([]byte, []byte, error) {
	if len(b) < 1 {
		return nil, b, ErrShortBytes
	}
	if b[0] == makeByte(majorTypeBytes, addInfoIndefinite) {
		var out []byte
		p := b[1:]
		for {
			if len(p) < 1 {
				return nil, b, ErrShortBytes
			}
			if p[0] == breakByte {
				return out, p[1:], nil
			}
			sz, q, err := readUintCore(p, majorTypeBytes)
			if err != nil {
				return nil, b, err
			}
			chunk, q, err := readDefiniteSlice(q, sz)
			if err != nil {
				return nil, b, err
			}
			out = append(out, chunk...)
			p = q
		}
	}
	sz, o, err := readUintCore(b, majorTypeBytes)
	if err != nil {
		return nil, b, err
	}
	return readDefiniteSlice(o, sz)
}

// readTextItem reads a text string (definite or indefinite) zero-copy where
// possible. Indefinite chunks must themselves be definite text strings.
// UTF-8 validity is the caller's concern (policy-dependent).
func readTextItem(b []byte) ([]byte, []byte, error) {
	if len(b) < 1 {
		return nil, b, ErrShortBytes
	}
	if b[0] == makeByte(majorTypeText, addInfoIndefinite) {
		var out []byte
		p := b[1:]
		for {
			if len(p) < 1 {
				return nil, b, ErrShortBytes
			}
			if p[0] == breakByte {
				return out, p[1:], nil
			}
			sz, q, err := readUintCore(p, majorTypeText)
			if err != nil {
				return nil, b, err
			}
			chunk, q, err := readDefiniteSlice(q, sz)
			if err != nil {
				return nil, b, err
			}
			out = append(out, chunk...)
			p = q
		}
	}
	sz, o, err := readUintCore(b, majorTypeText)
	if err != nil {
		return nil, b, err
	}
	return readDefiniteSlice(o, sz)
}
