package cbor

import (
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/x448/float16"
)

// Diag renders the next CBOR item in RFC diagnostic notation and returns
// the remaining bytes.
func Diag(b []byte) (string, []byte, error) {
	bb := GetByteBuffer()
	defer PutByteBuffer(bb)
	rest, err := diagOneBuf(bb, b, 0)
	if err != nil {
		return "", b, err
	}
	out := make([]byte, bb.Len())
	copy(out, bb.Bytes())
	return string(out), rest, nil
}

func diagOneBuf(buf *ByteBuffer, b []byte, depth int) ([]byte, error) {
	if depth > defaultRecursionLimit {
		return b, ErrRecursion
	}
	if len(b) < 1 {
		return b, ErrShortBytes
	}
	maj := getMajorType(b[0])
	add := getAddInfo(b[0])

	switch maj {
	case majorTypeUint:
		u, o, err := readUintCore(b, majorTypeUint)
		if err != nil {
			return b, err
		}
		buf.WriteString(strconv.FormatUint(u, 10))
		return o, nil
	case majorTypeNegInt:
		u, o, err := readUintCore(b, majorTypeNegInt)
		if err != nil {
			return b, err
		}
		if u == math.MaxUint64 {
			buf.WriteString("-18446744073709551616")
			return o, nil
		}
		buf.WriteString("-" + strconv.FormatUint(u+1, 10))
		return o, nil
	case majorTypeBytes:
		if add == addInfoIndefinite {
			p := b[1:]
			buf.WriteString("(_")
			first := true
			for {
				if len(p) < 1 {
					return b, ErrShortBytes
				}
				if p[0] == breakByte {
					buf.WriteString(")")
					return p[1:], nil
				}
				sz, o, err := readUintCore(p, majorTypeBytes)
				if err != nil {
					return b, err
				}
				if sz > uint64(len(o)) {
					return b, ErrShortBytes
				}
				if !first {
					buf.WriteString(", ")
				} else {
					buf.WriteString(" ")
					first = false
				}
				buf.WriteString("h'")
				d := buf.Extend(hex.EncodedLen(int(sz)))
				hex.Encode(d, o[:sz])
				buf.WriteString("'")
				p = o[sz:]
			}
		}
		bs, o, err := readBytesItem(b)
		if err != nil {
			return b, err
		}
		buf.WriteString("h'")
		d := buf.Extend(hex.EncodedLen(len(bs)))
		hex.Encode(d, bs)
		buf.WriteString("'")
		return o, nil
	case majorTypeText:
		if add == addInfoIndefinite {
			p := b[1:]
			buf.WriteString("(_")
			first := true
			for {
				if len(p) < 1 {
					return b, ErrShortBytes
				}
				if p[0] == breakByte {
					buf.WriteString(")")
					return p[1:], nil
				}
				sz, o, err := readUintCore(p, majorTypeText)
				if err != nil {
					return b, err
				}
				if sz > uint64(len(o)) {
					return b, ErrShortBytes
				}
				if !first {
					buf.WriteString(", ")
				} else {
					buf.WriteString(" ")
					first = false
				}
				buf.WriteString(strconv.Quote(string(o[:sz])))
				p = o[sz:]
			}
		}
		s, o, err := readTextItem(b)
		if err != nil {
			return b, err
		}
		buf.WriteString(strconv.Quote(string(s)))
		return o, nil
	case majorTypeArray:
		if add == addInfoIndefinite {
			p := b[1:]
			buf.WriteString("[_")
			first := true
			for {
				if len(p) < 1 {
					return b, ErrShortBytes
				}
				if p[0] == breakByte {
					buf.WriteString("]")
					return p[1:], nil
				}
				if !first {
					buf.WriteString(", ")
				} else {
					buf.WriteString(" ")
					first = false
				}
				var err error
				p, err = diagOneBuf(buf, p, depth+1)
				if err != nil {
					return b, err
				}
			}
		}
		sz, p, err := readUintCore(b, majorTypeArray)
		if err != nil {
			return b, err
		}
		buf.WriteString("[")
		for i := uint64(0); i < sz; i++ {
			if i > 0 {
				buf.WriteString(", ")
			}
			var err error
			p, err = diagOneBuf(buf, p, depth+1)
			if err != nil {
				return b, err
			}
		}
		buf.WriteString("]")
		return p, nil
	case majorTypeMap:
		if add == addInfoIndefinite {
			p := b[1:]
			buf.WriteString("{_")
			first := true
			for {
				if len(p) < 1 {
					return b, ErrShortBytes
				}
				if p[0] == breakByte {
					buf.WriteString("}")
					return p[1:], nil
				}
				if !first {
					buf.WriteString(", ")
				} else {
					buf.WriteString(" ")
					first = false
				}
				var err error
				p, err = diagOneBuf(buf, p, depth+1) // key
				if err != nil {
					return b, err
				}
				buf.WriteString(": ")
				p, err = diagOneBuf(buf, p, depth+1) // value
				if err != nil {
					return b, err
				}
			}
		}
		sz, p, err := readUintCore(b, majorTypeMap)
		if err != nil {
			return b, err
		}
		buf.WriteString("{")
		for i := uint64(0); i < sz; i++ {
			if i > 0 {
				buf.WriteString(", ")
			}
			var err error
			p, err = diagOneBuf(buf, p, depth+1) // key
			if err != nil {
				return b, err
			}
			buf.WriteString(": ")
			p, err = diagOneBuf(buf, p, depth+1) // value
			if err != nil {
				return b, err
			}
		}
		buf.WriteString("}")
		return p, nil
	case majorTypeTag:
		tag, o, err := readUintCore(b, majorTypeTag)
		if err != nil {
			return b, err
		}
		buf.WriteString(strconv.FormatUint(tag, 10))
		buf.WriteString("(")
		o2, err := diagOneBuf(buf, o, depth+1)
		if err != nil {
			return b, err
		}
		buf.WriteString(")")
		return o2, nil
	default: // majorTypeSimple
		switch add {
		case simpleFalse:
			buf.WriteString("false")
			return b[1:], nil
		case simpleTrue:
			buf.WriteString("true")
			return b[1:], nil
		case simpleNull:
			buf.WriteString("null")
			return b[1:], nil
		case simpleUndefined:
			buf.WriteString("undefined")
			return b[1:], nil
		case simpleFloat16:
			if len(b) < 3 {
				return b, ErrShortBytes
			}
			f := float16.Frombits(be.Uint16(b[1:]))
			buf.WriteString(formatFloatDiag(float64(f.Float32()), 32))
			return b[3:], nil
		case simpleFloat32:
			if len(b) < 5 {
				return b, ErrShortBytes
			}
			buf.WriteString(formatFloatDiag(float64(math.Float32frombits(be.Uint32(b[1:]))), 32))
			return b[5:], nil
		case simpleFloat64:
			if len(b) < 9 {
				return b, ErrShortBytes
			}
			buf.WriteString(formatFloatDiag(math.Float64frombits(be.Uint64(b[1:])), 64))
			return b[9:], nil
		default:
			if add < 20 {
				buf.WriteString(fmt.Sprintf("simple(%d)", add))
				return b[1:], nil
			}
			if add == addInfoUint8 {
				if len(b) < 2 {
					return b, ErrShortBytes
				}
				buf.WriteString(fmt.Sprintf("simple(%d)", b[1]))
				return b[2:], nil
			}
			if b[0] == breakByte {
				return b, ErrBreakOutsideIndefinite
			}
			return b, malformed("reserved simple value encoding", b[0])
		}
	}
}

// formatFloatDiag returns the diagnostic string for a float: Infinity,
// -Infinity and NaN by name, integral values without a fractional part
// (1, not 1.0), and magnitudes of 1e15 and above in exponent form.
func formatFloatDiag(f float64, bits int) string {
	if math.IsInf(f, +1) {
		return "Infinity"
	}
	if math.IsInf(f, -1) {
		return "-Infinity"
	}
	if math.IsNaN(f) {
		return "NaN"
	}
	af := math.Abs(f)
	// Prefer fixed-point for reasonable magnitudes
	if af == 0 || af < 1e15 {
		s := strconv.FormatFloat(f, 'f', -1, bits)
		return trimTrailingZerosDot(s)
	}
	return strconv.FormatFloat(f, 'g', -1, bits)
}

func trimTrailingZerosDot(s string) string {
	// Trim trailing fractional zeros and a bare trailing dot; a string
	// without a dot is an integer and keeps its zeros.
	if !strings.Contains(s, ".") {
		return s
	}
	i := len(s)
	for i > 0 && s[i-1] == '0' {
		i--
	}
	if i > 0 && s[i-1] == '.' {
		i--
	}
	return s[:i]
}
