package cbor

import (
	"io"
	"math"
	"math/big"
	"net/mail"
	"net/netip"
	"reflect"
	"regexp"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/x448/float16"
)

// EncodeFunc encodes a single value by calling back into the encoder's
// emission methods. Registered handlers and the default handler have this
// shape.
type EncodeFunc func(e *Encoder, v any) error

// TypeLoader resolves a deferred handler registration (package path + type
// name) to a concrete type. It is invoked lazily, the first time a value
// that no other entry matches is encoded, so registering a handler for an
// exotic type does not force its package to be linked in reachable code
// paths.
type TypeLoader func(pkgPath, name string) (reflect.Type, error)

// encoderEntry is one row of the ordered handler registry. Deferred rows
// carry (pkgPath, name) until first resolution fills typ.
type encoderEntry struct {
	typ     reflect.Type
	pkgPath string
	name    string
	fn      EncodeFunc
}

// refKey identifies a container for cycle detection and value sharing.
// The referent address alone is not enough: a map and a slice can share
// an address across allocations, so the dynamic type is part of the key.
type refKey struct {
	ptr uintptr
	typ reflect.Type
}

// Encoder writes CBOR items for Go value graphs to an io.Writer. Each
// top-level Encode buffers one complete item and writes it out in a single
// Write call.
type Encoder struct {
	w   io.Writer
	buf *ByteBuffer

	canonical    bool
	timeFormat   TimestampFormat
	loc          *time.Location
	valueSharing bool
	defaultFn    EncodeFunc
	loader       TypeLoader
	maxDepth     int

	entries []encoderEntry
	byType  map[reflect.Type]EncodeFunc

	sharing   map[refKey]int
	sharedIdx int
	depth     int
}

// NewEncoder returns an Encoder writing to w with default settings:
// regular (non-canonical) style, ISO timestamps, no timezone, no value
// sharing.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{
		w:        w,
		buf:      &ByteBuffer{},
		maxDepth: defaultRecursionLimit,
		byType:   make(map[reflect.Type]EncodeFunc),
		sharing:  make(map[refKey]int),
	}
}

// SetCanonical selects canonical encoding: map keys and set members sorted
// by their encoded bytes, floats emitted in the narrowest lossless width.
func (e *Encoder) SetCanonical(on bool) { e.canonical = on }

// SetTimestampFormat selects tag 0 (ISO text) or tag 1 (epoch numeric) for
// time.Time values.
func (e *Encoder) SetTimestampFormat(f TimestampFormat) { e.timeFormat = f }

// SetTimezone sets the location used to anchor Date values at midnight.
func (e *Encoder) SetTimezone(loc *time.Location) { e.loc = loc }

// SetValueSharing enables tags 28/29 for repeated and cyclic containers.
// When disabled (the default), re-entering a container that is still being
// encoded fails with CycleError.
func (e *Encoder) SetValueSharing(on bool) { e.valueSharing = on }

// SetDefaultEncoder installs a handler invoked when no registered handler
// matches a value's type.
func (e *Encoder) SetDefaultEncoder(fn EncodeFunc) { e.defaultFn = fn }

// SetTypeLoader installs the resolver for deferred handler registrations.
func (e *Encoder) SetTypeLoader(l TypeLoader) { e.loader = l }

// SetMaxDepth sets the container nesting ceiling. Zero or negative restores
// the default.
func (e *Encoder) SetMaxDepth(n int) {
	if n <= 0 {
		n = defaultRecursionLimit
	}
	e.maxDepth = n
}

// RegisterEncoder appends a handler for the exact type t to the registry.
// Registration order matters for the fall-through phase of lookup.
func (e *Encoder) RegisterEncoder(t reflect.Type, fn EncodeFunc) {
	e.entries = append(e.entries, encoderEntry{typ: t, fn: fn})
	e.byType[t] = fn
}

// RegisterNamedEncoder appends a deferred handler keyed by (pkgPath, name).
// The type is resolved through the configured TypeLoader the first time the
// fall-through phase reaches the entry.
func (e *Encoder) RegisterNamedEncoder(pkgPath, name string, fn EncodeFunc) {
	e.entries = append(e.entries, encoderEntry{pkgPath: pkgPath, name: name, fn: fn})
}

// Encode writes one CBOR item for v. The sharing table is reset at entry so
// shared indexes restart at zero for every top-level item.
func (e *Encoder) Encode(v any) error {
	e.depth = 0
	if len(e.sharing) != 0 {
		clear(e.sharing)
	}
	e.sharedIdx = 0
	e.buf.Reset()
	if err := e.encodeItem(v); err != nil {
		return err
	}
	if _, err := e.w.Write(e.buf.Bytes()); err != nil {
		return err
	}
	return nil
}

// EncodeItem encodes one value into the current item buffer. It is the
// recursion entry point for registered handlers and the default handler.
func (e *Encoder) EncodeItem(v any) error { return e.encodeItem(v) }

// EncodeTagged emits a semantic tag head followed by the encoding of
// content. Handlers use it to produce custom tagged representations.
func (e *Encoder) EncodeTagged(num uint64, content any) error {
	e.buf.b = AppendHead(e.buf.b, majorTypeTag, num)
	return e.encodeItem(content)
}

func (e *Encoder) enter() error {
	if e.depth >= e.maxDepth {
		return ErrRecursion
	}
	e.depth++
	return nil
}

func (e *Encoder) leave() { e.depth-- }

func (e *Encoder) encodeItem(v any) error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.leave()

	if v == nil {
		e.buf.b = append(e.buf.b, makeByte(majorTypeSimple, simpleNull))
		return nil
	}

	// Phase 1: direct dispatch on the concrete type.
	switch val := v.(type) {
	case bool:
		if val {
			e.buf.b = append(e.buf.b, makeByte(majorTypeSimple, simpleTrue))
		} else {
			e.buf.b = append(e.buf.b, makeByte(majorTypeSimple, simpleFalse))
		}
		return nil
	case UndefinedType:
		e.buf.b = append(e.buf.b, makeByte(majorTypeSimple, simpleUndefined))
		return nil
	case string:
		e.appendText(val)
		return nil
	case []byte:
		e.appendBytes(val)
		return nil
	case ByteString:
		e.appendBytes([]byte(val))
		return nil
	case int:
		e.appendInt64(int64(val))
		return nil
	case int8:
		e.appendInt64(int64(val))
		return nil
	case int16:
		e.appendInt64(int64(val))
		return nil
	case int32:
		e.appendInt64(int64(val))
		return nil
	case int64:
		e.appendInt64(val)
		return nil
	case uint:
		e.buf.b = AppendHead(e.buf.b, majorTypeUint, uint64(val))
		return nil
	case uint8:
		e.buf.b = AppendHead(e.buf.b, majorTypeUint, uint64(val))
		return nil
	case uint16:
		e.buf.b = AppendHead(e.buf.b, majorTypeUint, uint64(val))
		return nil
	case uint32:
		e.buf.b = AppendHead(e.buf.b, majorTypeUint, uint64(val))
		return nil
	case uint64:
		e.buf.b = AppendHead(e.buf.b, majorTypeUint, val)
		return nil
	case float32:
		e.appendFloat(float64(val))
		return nil
	case float64:
		e.appendFloat(val)
		return nil
	case big.Int:
		e.appendBigInt(&val)
		return nil
	case *big.Int:
		if val == nil {
			e.buf.b = append(e.buf.b, makeByte(majorTypeSimple, simpleNull))
			return nil
		}
		e.appendBigInt(val)
		return nil
	case []any:
		return e.encodeArray(val)
	case map[any]any:
		return e.encodeMap(val)
	case map[string]any:
		return e.encodeStringMap(val)
	case Set:
		return e.encodeSet(val)
	case Tag:
		e.buf.b = AppendHead(e.buf.b, majorTypeTag, val.Number)
		return e.encodeItem(val.Content)
	case SimpleValue:
		return e.appendSimple(uint8(val))
	case time.Time:
		return e.encodeTime(val)
	case Date:
		if e.loc == nil {
			return ErrNaiveDate
		}
		return e.encodeTime(val.In(e.loc))
	case decimal.Decimal:
		return e.encodeDecimal(val)
	case *big.Rat:
		if val == nil {
			e.buf.b = append(e.buf.b, makeByte(majorTypeSimple, simpleNull))
			return nil
		}
		return e.encodeRational(val)
	case *big.Float:
		if val == nil {
			e.buf.b = append(e.buf.b, makeByte(majorTypeSimple, simpleNull))
			return nil
		}
		return e.encodeBigFloat(val)
	case *regexp.Regexp:
		if val == nil {
			e.buf.b = append(e.buf.b, makeByte(majorTypeSimple, simpleNull))
			return nil
		}
		e.buf.b = AppendHead(e.buf.b, majorTypeTag, tagRegexp)
		e.appendText(val.String())
		return nil
	case MIMEMessage:
		e.buf.b = AppendHead(e.buf.b, majorTypeTag, tagMIME)
		e.appendText(string(val))
		return nil
	case *mail.Message:
		raw, err := renderMailMessage(val)
		if err != nil {
			return err
		}
		e.buf.b = AppendHead(e.buf.b, majorTypeTag, tagMIME)
		e.appendText(raw)
		return nil
	case uuid.UUID:
		e.buf.b = AppendHead(e.buf.b, majorTypeTag, tagUUID)
		e.appendBytes(val[:])
		return nil
	case netip.Addr:
		e.buf.b = AppendHead(e.buf.b, majorTypeTag, tagIPAddress)
		e.appendBytes(val.AsSlice())
		return nil
	case netip.Prefix:
		e.buf.b = AppendHead(e.buf.b, majorTypeTag, tagIPNetwork)
		e.buf.b = AppendHead(e.buf.b, majorTypeMap, 1)
		e.appendBytes(val.Addr().AsSlice())
		e.appendInt64(int64(val.Bits()))
		return nil
	}

	// Phases 2-3: the registry.
	rt := reflect.TypeOf(v)
	fn, err := e.lookupHandler(rt)
	if err != nil {
		return err
	}
	if fn != nil {
		return fn(e, v)
	}
	if e.defaultFn != nil {
		return e.defaultFn(e, v)
	}
	return &UnencodableTypeError{T: rt}
}

// lookupHandler resolves a handler for rt: exact hits come from the memo
// map; otherwise the ordered entries are scanned, resolving deferred rows
// through the type loader, and the first match is memoized.
func (e *Encoder) lookupHandler(rt reflect.Type) (EncodeFunc, error) {
	if fn, ok := e.byType[rt]; ok {
		return fn, nil
	}
	for i := range e.entries {
		ent := &e.entries[i]
		if ent.typ == nil {
			if e.loader == nil {
				continue
			}
			t, err := e.loader(ent.pkgPath, ent.name)
			if err != nil {
				return nil, err
			}
			ent.typ = t
		}
		if typeMatches(rt, ent.typ) {
			e.byType[rt] = ent.fn
			return ent.fn, nil
		}
	}
	return nil, nil
}

// typeMatches reports whether rt should be served by a handler registered
// for key. Interfaces match by implementation; concrete keys match exactly
// or through same-kind convertibility (the named-type analog of subclass
// fall-through).
func typeMatches(rt, key reflect.Type) bool {
	if rt == key {
		return true
	}
	if key.Kind() == reflect.Interface {
		return rt.Implements(key)
	}
	return rt.Kind() == key.Kind() && rt.ConvertibleTo(key)
}

// refKeyOf returns the identity key for containers that participate in
// cycle detection and sharing. Zero-capacity slices have no stable referent
// (and cannot contain themselves), so they are not tracked.
func refKeyOf(v any) (refKey, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map, reflect.Pointer:
		return refKey{ptr: rv.Pointer(), typ: rv.Type()}, true
	case reflect.Slice:
		if rv.Cap() == 0 {
			return refKey{}, false
		}
		return refKey{ptr: rv.Pointer(), typ: rv.Type()}, true
	default:
		return refKey{}, false
	}
}

// encodeShareable wraps a container encode in the sharing discipline:
// re-entry with sharing off is a cycle; with sharing on, the first
// occurrence is marked with tag 28 and later occurrences become tag 29
// references to its index.
func (e *Encoder) encodeShareable(v any, body func() error) error {
	rk, tracked := refKeyOf(v)
	if !tracked {
		return body()
	}
	if idx, seen := e.sharing[rk]; seen {
		if !e.valueSharing {
			return CycleError{T: rk.typ}
		}
		e.buf.b = AppendHead(e.buf.b, majorTypeTag, tagSharedRef)
		e.buf.b = AppendHead(e.buf.b, majorTypeUint, uint64(idx))
		return nil
	}
	if e.valueSharing {
		e.sharing[rk] = e.sharedIdx
		e.sharedIdx++
		e.buf.b = AppendHead(e.buf.b, majorTypeTag, tagShareable)
		return body()
	}
	e.sharing[rk] = -1
	err := body()
	delete(e.sharing, rk)
	return err
}

func (e *Encoder) encodeArray(arr []any) error {
	return e.encodeShareable(arr, func() error {
		e.buf.b = AppendHead(e.buf.b, majorTypeArray, uint64(len(arr)))
		for _, elem := range arr {
			if err := e.encodeItem(elem); err != nil {
				return err
			}
		}
		return nil
	})
}

func (e *Encoder) encodeMap(m map[any]any) error {
	return e.encodeShareable(m, func() error {
		if e.canonical {
			return e.encodeCanonicalPairs(uint64(len(m)), func(emit func(k, v any) error) error {
				for k, v := range m {
					if err := emit(k, v); err != nil {
						return err
					}
				}
				return nil
			})
		}
		e.buf.b = AppendHead(e.buf.b, majorTypeMap, uint64(len(m)))
		for k, v := range m {
			if err := e.encodeItem(k); err != nil {
				return err
			}
			if err := e.encodeItem(v); err != nil {
				return err
			}
		}
		return nil
	})
}

func (e *Encoder) encodeStringMap(m map[string]any) error {
	return e.encodeShareable(m, func() error {
		if e.canonical {
			return e.encodeCanonicalPairs(uint64(len(m)), func(emit func(k, v any) error) error {
				for k, v := range m {
					if err := emit(k, v); err != nil {
						return err
					}
				}
				return nil
			})
		}
		e.buf.b = AppendHead(e.buf.b, majorTypeMap, uint64(len(m)))
		for k, v := range m {
			e.appendText(k)
			if err := e.encodeItem(v); err != nil {
				return err
			}
		}
		return nil
	})
}

func (e *Encoder) encodeSet(s Set) error {
	return e.encodeShareable(s, func() error {
		e.buf.b = AppendHead(e.buf.b, majorTypeTag, tagSet)
		if e.canonical {
			return e.encodeCanonicalMembers(uint64(len(s)), func(emit func(m any) error) error {
				for m := range s {
					if err := emit(m); err != nil {
						return err
					}
				}
				return nil
			})
		}
		e.buf.b = AppendHead(e.buf.b, majorTypeArray, uint64(len(s)))
		for m := range s {
			if err := e.encodeItem(m); err != nil {
				return err
			}
		}
		return nil
	})
}

func (e *Encoder) appendText(s string) {
	e.buf.b = AppendHead(e.buf.b, majorTypeText, uint64(len(s)))
	e.buf.b = append(e.buf.b, s...)
}

func (e *Encoder) appendBytes(p []byte) {
	e.buf.b = AppendHead(e.buf.b, majorTypeBytes, uint64(len(p)))
	e.buf.b = append(e.buf.b, p...)
}

func (e *Encoder) appendInt64(i int64) {
	if i >= 0 {
		e.buf.b = AppendHead(e.buf.b, majorTypeUint, uint64(i))
		return
	}
	e.buf.b = AppendHead(e.buf.b, majorTypeNegInt, uint64(-1-i))
}

// appendFloat emits a float item. NaN always canonicalizes to the
// half-precision quiet NaN and infinities to the half-precision forms;
// finite values are emitted as doubles in regular style and in the
// narrowest lossless width in canonical style.
func (e *Encoder) appendFloat(f float64) {
	switch {
	case math.IsNaN(f):
		e.buf.b = append(e.buf.b, makeByte(majorTypeSimple, simpleFloat16), 0x7e, 0x00)
	case math.IsInf(f, 1):
		e.buf.b = append(e.buf.b, makeByte(majorTypeSimple, simpleFloat16), 0x7c, 0x00)
	case math.IsInf(f, -1):
		e.buf.b = append(e.buf.b, makeByte(majorTypeSimple, simpleFloat16), 0xfc, 0x00)
	case e.canonical:
		e.buf.b = appendFloatShortest(e.buf.b, f)
	default:
		o, n := ensure(e.buf.b, 9)
		o[n] = makeByte(majorTypeSimple, simpleFloat64)
		be.PutUint64(o[n+1:], math.Float64bits(f))
		e.buf.b = o
	}
}

// appendFloatShortest emits the narrowest float width that round-trips f.
// A half-float is only emitted when the 2-byte form represents the value
// exactly.
func appendFloatShortest(b []byte, f float64) []byte {
	f32 := float32(f)
	if float64(f32) != f {
		o, n := ensure(b, 9)
		o[n] = makeByte(majorTypeSimple, simpleFloat64)
		be.PutUint64(o[n+1:], math.Float64bits(f))
		return o
	}
	f16 := float16.Fromfloat32(f32)
	if f16.Float32() == f32 {
		o, n := ensure(b, 3)
		o[n] = makeByte(majorTypeSimple, simpleFloat16)
		be.PutUint16(o[n+1:], f16.Bits())
		return o
	}
	o, n := ensure(b, 5)
	o[n] = makeByte(majorTypeSimple, simpleFloat32)
	be.PutUint32(o[n+1:], math.Float32bits(f32))
	return o
}

// appendSimple emits a simple value. The reserved range 24..31 is refused;
// 20..23 fold onto the assigned constants.
func (e *Encoder) appendSimple(v uint8) error {
	switch {
	case v <= addInfoDirect:
		e.buf.b = append(e.buf.b, makeByte(majorTypeSimple, v))
		return nil
	case v < 32:
		return ErrReservedSimple
	default:
		e.buf.b = append(e.buf.b, makeByte(majorTypeSimple, addInfoUint8), v)
		return nil
	}
}

// appendBigInt emits z as the shortest head-representable integer, or as a
// tag 2/3 bignum carrying the minimal big-endian magnitude.
func (e *Encoder) appendBigInt(z *big.Int) {
	if z.Sign() >= 0 {
		if z.BitLen() <= 64 {
			e.buf.b = AppendHead(e.buf.b, majorTypeUint, z.Uint64())
			return
		}
		e.buf.b = AppendHead(e.buf.b, majorTypeTag, tagPosBignum)
		e.appendBytes(z.Bytes())
		return
	}
	// Negative: wire magnitude is -1 - z.
	mag := new(big.Int).Neg(z)
	mag.Sub(mag, bigOne)
	if mag.BitLen() <= 64 {
		e.buf.b = AppendHead(e.buf.b, majorTypeNegInt, mag.Uint64())
		return
	}
	e.buf.b = AppendHead(e.buf.b, majorTypeTag, tagNegBignum)
	e.appendBytes(mag.Bytes())
}

var bigOne = big.NewInt(1)

func (e *Encoder) encodeTime(t time.Time) error {
	if e.timeFormat == TimestampEpoch {
		e.buf.b = AppendHead(e.buf.b, majorTypeTag, tagEpochDateTime)
		sec := t.Unix()
		nsec := t.Nanosecond()
		if nsec == 0 {
			e.appendInt64(sec)
			return nil
		}
		e.appendFloat(float64(sec) + float64(nsec)/1e9)
		return nil
	}
	if y := t.Year(); y < 1 || y > 9999 {
		return ErrTimeRange
	}
	e.buf.b = AppendHead(e.buf.b, majorTypeTag, tagDateTimeString)
	if t.Nanosecond() == 0 {
		e.appendText(t.Format(time.RFC3339))
	} else {
		e.appendText(t.Format(time.RFC3339Nano))
	}
	return nil
}

// encodeDecimal emits tag 4 wrapping [exponent, mantissa]. The tuple is
// emitted inline, outside the sharing discipline.
func (e *Encoder) encodeDecimal(d decimal.Decimal) error {
	e.buf.b = AppendHead(e.buf.b, majorTypeTag, tagDecimalFrac)
	e.buf.b = AppendHead(e.buf.b, majorTypeArray, 2)
	e.appendInt64(int64(d.Exponent()))
	e.appendBigInt(d.Coefficient())
	return nil
}

func (e *Encoder) encodeRational(r *big.Rat) error {
	e.buf.b = AppendHead(e.buf.b, majorTypeTag, tagRational)
	e.buf.b = AppendHead(e.buf.b, majorTypeArray, 2)
	e.appendBigInt(r.Num())
	e.appendBigInt(r.Denom())
	return nil
}

// encodeBigFloat emits tag 5 wrapping [exponent, mantissa] with
// value = mantissa * 2^exponent. The mantissa is scaled to an integer by
// the value's minimal precision.
func (e *Encoder) encodeBigFloat(f *big.Float) error {
	if f.IsInf() {
		if f.Signbit() {
			e.appendFloat(math.Inf(-1))
		} else {
			e.appendFloat(math.Inf(1))
		}
		return nil
	}
	mant := new(big.Float)
	exp := f.MantExp(mant)
	prec := int(f.MinPrec())
	scaled := new(big.Float).SetMantExp(mant, prec)
	sig, _ := scaled.Int(nil)
	e.buf.b = AppendHead(e.buf.b, majorTypeTag, tagBigfloat)
	e.buf.b = AppendHead(e.buf.b, majorTypeArray, 2)
	e.appendInt64(int64(exp - prec))
	e.appendBigInt(sig)
	return nil
}

// renderMailMessage serializes a parsed message back to text: headers in
// sorted order, a blank line, then the body.
func renderMailMessage(m *mail.Message) (string, error) {
	keys := make([]string, 0, len(m.Header))
	for k := range m.Header {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb []byte
	for _, k := range keys {
		for _, v := range m.Header[k] {
			sb = append(sb, k...)
			sb = append(sb, ": "...)
			sb = append(sb, v...)
			sb = append(sb, "\r\n"...)
		}
	}
	sb = append(sb, "\r\n"...)
	body, err := io.ReadAll(m.Body)
	if err != nil {
		return "", err
	}
	sb = append(sb, body...)
	return string(sb), nil
}
