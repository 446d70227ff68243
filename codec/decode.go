package cbor

import (
	"io"
	"math"
	"math/big"
	"reflect"
	"strings"
	"unicode/utf8"

	"github.com/x448/float16"
)

// TagHook post-processes tags the registry does not recognize. It receives
// the wrapped (tag, content) pair and returns the value to surface.
type TagHook func(d *Decoder, t Tag) (any, error)

// ObjectHook post-processes every decoded map before it is returned or
// inserted into an enclosing container.
type ObjectHook func(d *Decoder, m map[any]any) (any, error)

// noShareSlot marks the absence of a pending shareables slot.
const noShareSlot = -1

// Decoder reads CBOR items from an io.Reader and reconstructs Go values.
type Decoder struct {
	r   io.Reader
	tmp [8]byte

	strErrors  StrErrors
	tagHook    TagHook
	objectHook ObjectHook
	maxDepth   int

	shareables []any
	shareIdx   int
	immutable  bool
	depth      int
}

// NewDecoder returns a Decoder reading from r with default settings:
// strict UTF-8, no hooks.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{
		r:        r,
		maxDepth: defaultRecursionLimit,
		shareIdx: noShareSlot,
	}
}

// SetStrErrors selects the UTF-8 error policy for text strings.
func (d *Decoder) SetStrErrors(p StrErrors) { d.strErrors = p }

// SetTagHook installs the post-processor for unrecognized tags.
func (d *Decoder) SetTagHook(h TagHook) { d.tagHook = h }

// SetObjectHook installs the post-processor invoked for every map.
func (d *Decoder) SetObjectHook(h ObjectHook) { d.objectHook = h }

// SetMaxDepth sets the container nesting ceiling. Zero or negative restores
// the default.
func (d *Decoder) SetMaxDepth(n int) {
	if n <= 0 {
		n = defaultRecursionLimit
	}
	d.maxDepth = n
}

// Decode reads and reconstructs the next item from the stream. The
// shareables list is reset at entry, so tag-29 indexes are scoped to one
// top-level item. A clean end of stream before the first byte returns
// io.EOF; a truncated item returns an EOFError.
func (d *Decoder) Decode() (any, error) {
	d.depth = 0
	d.shareables = d.shareables[:0]
	d.shareIdx = noShareSlot
	d.immutable = false

	lead, err := d.readLead()
	if err != nil {
		if eof, ok := err.(EOFError); ok && eof.Actual == 0 {
			return nil, io.EOF
		}
		return nil, err
	}
	return d.decodeItemLead(lead)
}

func (d *Decoder) enter() error {
	if d.depth >= d.maxDepth {
		return ErrRecursion
	}
	d.depth++
	return nil
}

func (d *Decoder) leave() { d.depth-- }

// readFull fills p from the stream. Short reads surface as EOFError;
// any other stream error passes through verbatim.
func (d *Decoder) readFull(p []byte) error {
	n, err := io.ReadFull(d.r, p)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return EOFError{Requested: len(p), Actual: n}
	}
	return err
}

// readLead reads the next initial byte.
func (d *Decoder) readLead() (byte, error) {
	if err := d.readFull(d.tmp[:1]); err != nil {
		return 0, err
	}
	return d.tmp[0], nil
}

// readArg decodes the argument for lead, reading the 1/2/4/8-byte payload
// forms from the stream. Reserved additional info values 28-30 are
// malformed; 31 marks the indefinite form for majors 2-5.
func (d *Decoder) readArg(lead byte) (arg uint64, indefinite bool, err error) {
	info := getAddInfo(lead)
	switch {
	case info <= addInfoDirect:
		return uint64(info), false, nil
	case info >= addInfoUint8 && info <= addInfoUint64:
		sz := 1 << (info - addInfoUint8)
		if err := d.readFull(d.tmp[:sz]); err != nil {
			return 0, false, err
		}
		switch sz {
		case 1:
			return uint64(d.tmp[0]), false, nil
		case 2:
			return uint64(be.Uint16(d.tmp[:2])), false, nil
		case 4:
			return uint64(be.Uint32(d.tmp[:4])), false, nil
		default:
			return be.Uint64(d.tmp[:8]), false, nil
		}
	case info == addInfoIndefinite:
		major := getMajorType(lead)
		if major >= majorTypeBytes && major <= majorTypeMap {
			return 0, true, nil
		}
		return 0, false, malformed("indefinite length not allowed for this major type", lead)
	default:
		return 0, false, malformed("reserved additional info", lead)
	}
}

// readPayload reads exactly n payload bytes. Growth is chunked so a
// corrupt length header cannot force a huge up-front allocation.
func (d *Decoder) readPayload(n uint64) ([]byte, error) {
	if n > uint64(math.MaxInt) {
		return nil, EOFError{Requested: math.MaxInt, Actual: 0}
	}
	const chunk = 1 << 16
	if n <= chunk {
		buf := make([]byte, n)
		if err := d.readFull(buf); err != nil {
			return nil, err
		}
		return buf, nil
	}
	buf := make([]byte, 0, chunk)
	remaining := n
	for remaining > 0 {
		step := uint64(chunk)
		if step > remaining {
			step = remaining
		}
		off := len(buf)
		buf = append(buf, make([]byte, step)...)
		if err := d.readFull(buf[off:]); err != nil {
			if eof, ok := err.(EOFError); ok {
				eof.Requested = int(n)
				eof.Actual += off
				return nil, eof
			}
			return nil, err
		}
		remaining -= step
	}
	return buf, nil
}

// decodeUnshared decodes one nested item with no pending shareables slot.
func (d *Decoder) decodeUnshared() (any, error) {
	saved := d.shareIdx
	d.shareIdx = noShareSlot
	v, err := d.decodeItem()
	d.shareIdx = saved
	return v, err
}

// decodeImmutableUnshared decodes one nested item in immutable context
// with no pending shareables slot. Map keys and set members use it.
func (d *Decoder) decodeImmutableUnshared() (any, error) {
	savedImm, savedIdx := d.immutable, d.shareIdx
	d.immutable = true
	d.shareIdx = noShareSlot
	v, err := d.decodeItem()
	d.immutable = savedImm
	d.shareIdx = savedIdx
	return v, err
}

func (d *Decoder) decodeItem() (any, error) {
	lead, err := d.readLead()
	if err != nil {
		return nil, err
	}
	return d.decodeItemLead(lead)
}

func (d *Decoder) decodeItemLead(lead byte) (any, error) {
	if err := d.enter(); err != nil {
		return nil, err
	}
	defer d.leave()

	// Consume the pending shareables slot; children do not inherit it.
	slot := d.shareIdx
	d.shareIdx = noShareSlot

	switch getMajorType(lead) {
	case majorTypeUint:
		arg, _, err := d.readArg(lead)
		if err != nil {
			return nil, err
		}
		if arg <= math.MaxInt64 {
			return int64(arg), nil
		}
		return arg, nil

	case majorTypeNegInt:
		arg, _, err := d.readArg(lead)
		if err != nil {
			return nil, err
		}
		if arg <= math.MaxInt64 {
			return -1 - int64(arg), nil
		}
		z := new(big.Int).SetUint64(arg)
		z.Add(z, bigOne)
		return z.Neg(z), nil

	case majorTypeBytes:
		p, err := d.decodeByteString(lead)
		if err != nil {
			return nil, err
		}
		if d.immutable {
			return ByteString(p), nil
		}
		return p, nil

	case majorTypeText:
		return d.decodeTextString(lead)

	case majorTypeArray:
		return d.decodeArray(lead, slot)

	case majorTypeMap:
		return d.decodeMap(lead, slot)

	case majorTypeTag:
		num, _, err := d.readArg(lead)
		if err != nil {
			return nil, err
		}
		return d.decodeTag(num, slot)

	default: // majorTypeSimple
		return d.decodeSimple(lead)
	}
}

// decodeByteString reads a definite byte string or concatenates the
// definite chunks of an indefinite one.
func (d *Decoder) decodeByteString(lead byte) ([]byte, error) {
	sz, indef, err := d.readArg(lead)
	if err != nil {
		return nil, err
	}
	if !indef {
		return d.readPayload(sz)
	}
	var out []byte
	for {
		chunkLead, err := d.readLead()
		if err != nil {
			return nil, err
		}
		if chunkLead == breakByte {
			return out, nil
		}
		if getMajorType(chunkLead) != majorTypeBytes {
			return nil, malformed("non-bytestring chunk in indefinite bytestring", chunkLead)
		}
		csz, cindef, err := d.readArg(chunkLead)
		if err != nil {
			return nil, err
		}
		if cindef {
			return nil, malformed("nested indefinite chunk in indefinite bytestring", chunkLead)
		}
		chunk, err := d.readPayload(csz)
		if err != nil {
			return nil, err
		}
		out = append(out, chunk...)
	}
}

// decodeTextString reads a definite text string or concatenates the
// definite chunks of an indefinite one. The UTF-8 policy applies per
// chunk, so a code point split across a chunk boundary is invalid even
// when the concatenation would be well-formed.
func (d *Decoder) decodeTextString(lead byte) (string, error) {
	sz, indef, err := d.readArg(lead)
	if err != nil {
		return "", err
	}
	if !indef {
		p, err := d.readPayload(sz)
		if err != nil {
			return "", err
		}
		return d.applyStrPolicy(p, lead)
	}
	var sb strings.Builder
	for {
		chunkLead, err := d.readLead()
		if err != nil {
			return "", err
		}
		if chunkLead == breakByte {
			return sb.String(), nil
		}
		if getMajorType(chunkLead) != majorTypeText {
			return "", malformed("non-text chunk in indefinite text string", chunkLead)
		}
		csz, cindef, err := d.readArg(chunkLead)
		if err != nil {
			return "", err
		}
		if cindef {
			return "", malformed("nested indefinite chunk in indefinite text string", chunkLead)
		}
		chunk, err := d.readPayload(csz)
		if err != nil {
			return "", err
		}
		s, err := d.applyStrPolicy(chunk, chunkLead)
		if err != nil {
			return "", err
		}
		sb.WriteString(s)
	}
}

// applyStrPolicy converts a text payload to a string under the configured
// UTF-8 policy. lead is the head of the string (or chunk) that carried p.
func (d *Decoder) applyStrPolicy(p []byte, lead byte) (string, error) {
	if utf8.Valid(p) {
		return string(p), nil
	}
	switch d.strErrors {
	case StrErrorsReplace:
		return strings.ToValidUTF8(string(p), "�"), nil
	case StrErrorsError:
		return "", ErrInvalidUTF8
	default:
		return "", DecodeError{Reason: "invalid UTF-8 in text string", Lead: lead}
	}
}

// decodeArray reconstructs an array. When a shareables slot is pending and
// the length is definite, the slice is installed into the slot before its
// elements decode so tag-29 self-references resolve to the same backing
// array. Indefinite (and oversized) arrays install after construction;
// self-references into those surface as unresolved-reference errors.
func (d *Decoder) decodeArray(lead byte, slot int) (any, error) {
	sz, indef, err := d.readArg(lead)
	if err != nil {
		return nil, err
	}
	immutable := d.immutable

	if indef {
		var arr []any
		for {
			elemLead, err := d.readLead()
			if err != nil {
				return nil, err
			}
			if elemLead == breakByte {
				break
			}
			var elem any
			if immutable {
				elem, err = d.decodeNestedImmutable(elemLead)
			} else {
				elem, err = d.decodeNested(elemLead)
			}
			if err != nil {
				return nil, err
			}
			arr = append(arr, elem)
		}
		if arr == nil {
			arr = []any{}
		}
		d.fillSlot(slot, arr)
		return arr, nil
	}

	const presizeLimit = 1 << 16
	if sz <= presizeLimit {
		arr := make([]any, sz)
		d.fillSlot(slot, arr)
		for i := range arr {
			var elem any
			var err error
			if immutable {
				elem, err = d.decodeImmutableUnshared()
			} else {
				elem, err = d.decodeUnshared()
			}
			if err != nil {
				return nil, err
			}
			arr[i] = elem
		}
		return arr, nil
	}

	arr := make([]any, 0, presizeLimit)
	for i := uint64(0); i < sz; i++ {
		var elem any
		var err error
		if immutable {
			elem, err = d.decodeImmutableUnshared()
		} else {
			elem, err = d.decodeUnshared()
		}
		if err != nil {
			return nil, err
		}
		arr = append(arr, elem)
	}
	d.fillSlot(slot, arr)
	return arr, nil
}

// decodeNested decodes an element whose lead byte has already been read,
// with no pending slot.
func (d *Decoder) decodeNested(lead byte) (any, error) {
	saved := d.shareIdx
	d.shareIdx = noShareSlot
	v, err := d.decodeItemLead(lead)
	d.shareIdx = saved
	return v, err
}

func (d *Decoder) decodeNestedImmutable(lead byte) (any, error) {
	savedImm, savedIdx := d.immutable, d.shareIdx
	d.immutable = true
	d.shareIdx = noShareSlot
	v, err := d.decodeItemLead(lead)
	d.immutable = savedImm
	d.shareIdx = savedIdx
	return v, err
}

// decodeMap reconstructs a map. Keys always decode immutable and unshared.
// The map is installed into a pending shareables slot before population so
// self-references resolve.
func (d *Decoder) decodeMap(lead byte, slot int) (any, error) {
	sz, indef, err := d.readArg(lead)
	if err != nil {
		return nil, err
	}
	capHint := sz
	if capHint > 4096 {
		capHint = 4096
	}
	m := make(map[any]any, int(capHint))
	d.fillSlot(slot, m)

	insert := func(k, v any) (err error) {
		if k != nil && !reflect.TypeOf(k).Comparable() {
			return DecodeError{Reason: "map key is not a comparable value"}
		}
		// A comparable type can still hold a non-comparable value (a Tag
		// wrapping an array); inserting such a key panics.
		defer func() {
			if recover() != nil {
				err = DecodeError{Reason: "map key is not a comparable value"}
			}
		}()
		m[k] = v
		return nil
	}

	if indef {
		for {
			keyLead, err := d.readLead()
			if err != nil {
				return nil, err
			}
			if keyLead == breakByte {
				break
			}
			k, err := d.decodeNestedImmutable(keyLead)
			if err != nil {
				return nil, err
			}
			v, err := d.decodeUnshared()
			if err != nil {
				return nil, err
			}
			if err := insert(k, v); err != nil {
				return nil, err
			}
		}
	} else {
		for i := uint64(0); i < sz; i++ {
			k, err := d.decodeImmutableUnshared()
			if err != nil {
				return nil, err
			}
			v, err := d.decodeUnshared()
			if err != nil {
				return nil, err
			}
			if err := insert(k, v); err != nil {
				return nil, err
			}
		}
	}

	if d.objectHook != nil {
		out, err := d.objectHook(d, m)
		if err != nil {
			return nil, err
		}
		d.fillSlot(slot, out)
		return out, nil
	}
	return m, nil
}

// fillSlot installs v into a pending shareables slot, if any.
func (d *Decoder) fillSlot(slot int, v any) {
	if slot != noShareSlot {
		d.shareables[slot] = v
	}
}

// decodeSimple handles major type 7: simple values, floats and break.
func (d *Decoder) decodeSimple(lead byte) (any, error) {
	info := getAddInfo(lead)
	switch info {
	case simpleFalse:
		return false, nil
	case simpleTrue:
		return true, nil
	case simpleNull:
		return nil, nil
	case simpleUndefined:
		return Undefined, nil
	case addInfoUint8: // one-byte simple value (0xf8 xx)
		if err := d.readFull(d.tmp[:1]); err != nil {
			return nil, err
		}
		if d.tmp[0] < 32 {
			return nil, malformed("two-byte simple value below 32", lead)
		}
		return SimpleValue(d.tmp[0]), nil
	case simpleFloat16:
		if err := d.readFull(d.tmp[:2]); err != nil {
			return nil, err
		}
		return float64(float16.Frombits(be.Uint16(d.tmp[:2])).Float32()), nil
	case simpleFloat32:
		if err := d.readFull(d.tmp[:4]); err != nil {
			return nil, err
		}
		return float64(math.Float32frombits(be.Uint32(d.tmp[:4]))), nil
	case simpleFloat64:
		if err := d.readFull(d.tmp[:8]); err != nil {
			return nil, err
		}
		return math.Float64frombits(be.Uint64(d.tmp[:8])), nil
	case simpleBreak:
		return nil, ErrBreakOutsideIndefinite
	default:
		if info < simpleFalse {
			return SimpleValue(info), nil
		}
		return nil, malformed("reserved simple value encoding", lead)
	}
}
