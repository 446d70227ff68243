package cbor

import (
	"math"
	"math/big"
	"net/netip"
	"reflect"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// tagDecodeFunc interprets the item following a tag head. slot is the
// pending shareables slot, for handlers that build containers and must
// install them before population.
type tagDecodeFunc func(d *Decoder, slot int) (any, error)

// tagTable is the registry of well-known semantic tags. Tags 28/29 are
// dispatched before the table because they manipulate decoder state rather
// than interpret a value.
var tagTable map[uint64]tagDecodeFunc

func init() {
	tagTable = map[uint64]tagDecodeFunc{
		tagDateTimeString: decodeDateTimeString,
		tagEpochDateTime:  decodeEpochDateTime,
		tagPosBignum:      decodePosBignum,
		tagNegBignum:      decodeNegBignum,
		tagDecimalFrac:    decodeDecimalFraction,
		tagBigfloat:       decodeBigfloat,
		tagRational:       decodeRationalNumber,
		tagRegexp:         decodeRegexpTag,
		tagMIME:           decodeMIMETag,
		tagUUID:           decodeUUIDTag,
		tagSet:            decodeSetTag,
		tagIPAddress:      decodeIPAddressTag,
		tagIPNetwork:      decodeIPNetworkTag,
	}
}

func (d *Decoder) decodeTag(num uint64, slot int) (any, error) {
	switch num {
	case tagShareable:
		return d.decodeShareable(slot)
	case tagSharedRef:
		return d.decodeSharedRef()
	}
	if fn, ok := tagTable[num]; ok {
		v, err := fn(d, slot)
		if err != nil {
			return nil, err
		}
		d.fillSlot(slot, v)
		return v, nil
	}
	// Unknown tag: wrap the inner value and offer it to the hook.
	v, err := d.decodeUnshared()
	if err != nil {
		return nil, err
	}
	var out any = Tag{Number: num, Content: v}
	if d.tagHook != nil {
		out, err = d.tagHook(d, Tag{Number: num, Content: v})
		if err != nil {
			return nil, err
		}
	}
	d.fillSlot(slot, out)
	return out, nil
}

// decodeShareable opens a new shareables slot, decodes the inner value
// with that slot pending, and fills the slot afterwards unless the inner
// container already installed itself.
func (d *Decoder) decodeShareable(outerSlot int) (any, error) {
	slot := len(d.shareables)
	d.shareables = append(d.shareables, placeholder{})
	saved := d.shareIdx
	d.shareIdx = slot
	v, err := d.decodeItem()
	d.shareIdx = saved
	if err != nil {
		return nil, err
	}
	if _, pending := d.shareables[slot].(placeholder); pending {
		d.shareables[slot] = v
	} else {
		// A container installed itself (possibly replaced by an object
		// hook); surface what references resolve to.
		v = d.shareables[slot]
	}
	d.fillSlot(outerSlot, v)
	return v, nil
}

// decodeSharedRef resolves a tag-29 reference against the shareables list.
func (d *Decoder) decodeSharedRef() (any, error) {
	v, err := d.decodeUnshared()
	if err != nil {
		return nil, err
	}
	idx, ok := asIndex(v)
	if !ok || idx >= len(d.shareables) {
		return nil, DecodeError{Reason: "shared reference out of range"}
	}
	target := d.shareables[idx]
	if _, pending := target.(placeholder); pending {
		return nil, DecodeError{Reason: "shared reference to a value under construction"}
	}
	return target, nil
}

func asIndex(v any) (int, bool) {
	switch n := v.(type) {
	case int64:
		if n < 0 || n > math.MaxInt32 {
			return 0, false
		}
		return int(n), true
	case uint64:
		if n > math.MaxInt32 {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}

// iso8601 is the exact grammar accepted for tag 0:
// YYYY-MM-DDTHH:MM:SS(.FFF*)?(Z|±HH:MM)
var iso8601 = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d+)?(Z|[+-]\d{2}:\d{2})$`)

func decodeDateTimeString(d *Decoder, _ int) (any, error) {
	v, err := d.decodeUnshared()
	if err != nil {
		return nil, err
	}
	s, ok := v.(string)
	if !ok {
		return nil, DecodeError{Reason: "datetime tag on non-text inner value"}
	}
	if !iso8601.MatchString(s) {
		return nil, DecodeError{Reason: "invalid datetime string " + quoteStr(s)}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, DecodeError{Reason: "invalid datetime string " + quoteStr(s)}
	}
	if y := t.Year(); y < 1 || y > 9999 {
		return nil, DecodeError{Reason: "datetime year out of range " + quoteStr(s)}
	}
	return t, nil
}

func decodeEpochDateTime(d *Decoder, _ int) (any, error) {
	v, err := d.decodeUnshared()
	if err != nil {
		return nil, err
	}
	switch n := v.(type) {
	case int64:
		return boundedEpoch(time.Unix(n, 0))
	case uint64:
		if n > math.MaxInt64 {
			return nil, DecodeError{Reason: "epoch timestamp out of range"}
		}
		return boundedEpoch(time.Unix(int64(n), 0))
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return nil, DecodeError{Reason: "epoch timestamp is not finite"}
		}
		sec := math.Floor(n)
		if sec < math.MinInt64 || sec >= math.MaxInt64 {
			return nil, DecodeError{Reason: "epoch timestamp out of range"}
		}
		nsec := math.Round((n - sec) * 1e9)
		return boundedEpoch(time.Unix(int64(sec), int64(nsec)))
	default:
		return nil, DecodeError{Reason: "epoch timestamp tag on non-numeric inner value"}
	}
}

// boundedEpoch keeps decoded timestamps inside the four-digit-year range
// of the tag-0 grammar, so every decoded time re-encodes in either mode.
func boundedEpoch(t time.Time) (any, error) {
	t = t.UTC()
	if y := t.Year(); y < 1 || y > 9999 {
		return nil, DecodeError{Reason: "epoch timestamp out of range"}
	}
	return t, nil
}

// innerBytes extracts the byte-string payload required by bignum and
// similar tags. ByteString appears when the inner decoded in immutable
// context.
func innerBytes(v any) ([]byte, bool) {
	switch b := v.(type) {
	case []byte:
		return b, true
	case ByteString:
		return []byte(b), true
	default:
		return nil, false
	}
}

func decodePosBignum(d *Decoder, _ int) (any, error) {
	v, err := d.decodeUnshared()
	if err != nil {
		return nil, err
	}
	p, ok := innerBytes(v)
	if !ok {
		return nil, DecodeError{Reason: "bignum tag on non-bytestring inner value"}
	}
	return new(big.Int).SetBytes(p), nil
}

func decodeNegBignum(d *Decoder, _ int) (any, error) {
	v, err := d.decodeUnshared()
	if err != nil {
		return nil, err
	}
	p, ok := innerBytes(v)
	if !ok {
		return nil, DecodeError{Reason: "bignum tag on non-bytestring inner value"}
	}
	z := new(big.Int).SetBytes(p)
	z.Add(z, bigOne)
	return z.Neg(z), nil
}

// expMantissa pulls the [exponent, mantissa] pair shared by tags 4 and 5.
func (d *Decoder) expMantissa(tagName string) (exp int64, mant *big.Int, err error) {
	v, err := d.decodeUnshared()
	if err != nil {
		return 0, nil, err
	}
	arr, ok := v.([]any)
	if !ok || len(arr) != 2 {
		return 0, nil, DecodeError{Reason: tagName + " tag requires a two-element array"}
	}
	switch n := arr[0].(type) {
	case int64:
		exp = n
	case uint64:
		if n > math.MaxInt64 {
			return 0, nil, DecodeError{Reason: tagName + " exponent out of range"}
		}
		exp = int64(n)
	default:
		return 0, nil, DecodeError{Reason: tagName + " exponent must be an integer"}
	}
	switch m := arr[1].(type) {
	case int64:
		mant = big.NewInt(m)
	case uint64:
		mant = new(big.Int).SetUint64(m)
	case *big.Int:
		mant = m
	default:
		return 0, nil, DecodeError{Reason: tagName + " mantissa must be an integer"}
	}
	return exp, mant, nil
}

func decodeDecimalFraction(d *Decoder, _ int) (any, error) {
	exp, mant, err := d.expMantissa("decimal fraction")
	if err != nil {
		return nil, err
	}
	if exp > math.MaxInt32 || exp < math.MinInt32 {
		return nil, DecodeError{Reason: "decimal fraction exponent out of range"}
	}
	return decimal.NewFromBigInt(mant, int32(exp)), nil
}

// decodeBigfloat decodes tag 5 analogously to tag 4 with base 2.
func decodeBigfloat(d *Decoder, _ int) (any, error) {
	exp, mant, err := d.expMantissa("bigfloat")
	if err != nil {
		return nil, err
	}
	if exp > math.MaxInt32 || exp < math.MinInt32 {
		return nil, DecodeError{Reason: "bigfloat exponent out of range"}
	}
	f := new(big.Float).SetInt(mant)
	return f.SetMantExp(f, int(exp)), nil
}

func decodeRationalNumber(d *Decoder, _ int) (any, error) {
	v, err := d.decodeUnshared()
	if err != nil {
		return nil, err
	}
	arr, ok := v.([]any)
	if !ok || len(arr) != 2 {
		return nil, DecodeError{Reason: "rational tag requires a two-element array"}
	}
	num, ok := toBigInt(arr[0])
	if !ok {
		return nil, DecodeError{Reason: "rational numerator must be an integer"}
	}
	den, ok := toBigInt(arr[1])
	if !ok {
		return nil, DecodeError{Reason: "rational denominator must be an integer"}
	}
	if den.Sign() == 0 {
		return nil, DecodeError{Reason: "rational denominator is zero"}
	}
	return new(big.Rat).SetFrac(num, den), nil
}

func toBigInt(v any) (*big.Int, bool) {
	switch n := v.(type) {
	case int64:
		return big.NewInt(n), true
	case uint64:
		return new(big.Int).SetUint64(n), true
	case *big.Int:
		return n, true
	default:
		return nil, false
	}
}

func decodeRegexpTag(d *Decoder, _ int) (any, error) {
	v, err := d.decodeUnshared()
	if err != nil {
		return nil, err
	}
	s, ok := v.(string)
	if !ok {
		return nil, DecodeError{Reason: "regexp tag on non-text inner value"}
	}
	re, err := regexp.Compile(s)
	if err != nil {
		return nil, DecodeError{Reason: "invalid regular expression " + quoteStr(s)}
	}
	return re, nil
}

func decodeMIMETag(d *Decoder, _ int) (any, error) {
	v, err := d.decodeUnshared()
	if err != nil {
		return nil, err
	}
	s, ok := v.(string)
	if !ok {
		return nil, DecodeError{Reason: "MIME tag on non-text inner value"}
	}
	return MIMEMessage(s), nil
}

func decodeUUIDTag(d *Decoder, _ int) (any, error) {
	v, err := d.decodeUnshared()
	if err != nil {
		return nil, err
	}
	p, ok := innerBytes(v)
	if !ok {
		return nil, DecodeError{Reason: "UUID tag on non-bytestring inner value"}
	}
	u, err := uuid.FromBytes(p)
	if err != nil {
		return nil, DecodeError{Reason: "UUID payload must be 16 bytes"}
	}
	return u, nil
}

// decodeSetTag reads the array following tag 258 into a Set. Members
// decode in immutable context and must be comparable. The set installs
// into a pending shareables slot before members decode.
func decodeSetTag(d *Decoder, slot int) (any, error) {
	lead, err := d.readLead()
	if err != nil {
		return nil, err
	}
	if getMajorType(lead) != majorTypeArray {
		return nil, DecodeError{Reason: "set tag on non-array inner value", Lead: lead}
	}
	sz, indef, err := d.readArg(lead)
	if err != nil {
		return nil, err
	}
	capHint := sz
	if capHint > 4096 {
		capHint = 4096
	}
	s := make(Set, int(capHint))
	d.fillSlot(slot, s)

	add := func(m any) (err error) {
		if m != nil && !reflect.TypeOf(m).Comparable() {
			return DecodeError{Reason: "set member is not a comparable value"}
		}
		// A comparable type can still hold a non-comparable value (a Tag
		// wrapping an array); inserting such a member panics.
		defer func() {
			if recover() != nil {
				err = DecodeError{Reason: "set member is not a comparable value"}
			}
		}()
		s[m] = struct{}{}
		return nil
	}

	if indef {
		for {
			memberLead, err := d.readLead()
			if err != nil {
				return nil, err
			}
			if memberLead == breakByte {
				return s, nil
			}
			m, err := d.decodeNestedImmutable(memberLead)
			if err != nil {
				return nil, err
			}
			if err := add(m); err != nil {
				return nil, err
			}
		}
	}
	for i := uint64(0); i < sz; i++ {
		m, err := d.decodeImmutableUnshared()
		if err != nil {
			return nil, err
		}
		if err := add(m); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func decodeIPAddressTag(d *Decoder, _ int) (any, error) {
	v, err := d.decodeUnshared()
	if err != nil {
		return nil, err
	}
	p, ok := innerBytes(v)
	if !ok {
		return nil, DecodeError{Reason: "IP address tag on non-bytestring inner value"}
	}
	addr, ok := netip.AddrFromSlice(p)
	if !ok {
		return nil, DecodeError{Reason: "IP address payload must be 4 or 16 bytes"}
	}
	return addr, nil
}

// decodeIPNetworkTag reads the single-entry {packed-address: prefix-length}
// map following tag 261.
func decodeIPNetworkTag(d *Decoder, _ int) (any, error) {
	lead, err := d.readLead()
	if err != nil {
		return nil, err
	}
	if getMajorType(lead) != majorTypeMap {
		return nil, DecodeError{Reason: "IP network tag on non-map inner value", Lead: lead}
	}
	sz, indef, err := d.readArg(lead)
	if err != nil {
		return nil, err
	}
	if !indef && sz != 1 {
		return nil, DecodeError{Reason: "IP network tag requires a single-entry map"}
	}
	k, err := d.decodeImmutableUnshared()
	if err != nil {
		return nil, err
	}
	v, err := d.decodeUnshared()
	if err != nil {
		return nil, err
	}
	if indef {
		tail, err := d.readLead()
		if err != nil {
			return nil, err
		}
		if tail != breakByte {
			return nil, DecodeError{Reason: "IP network tag requires a single-entry map", Lead: tail}
		}
	}
	p, ok := innerBytes(k)
	if !ok {
		return nil, DecodeError{Reason: "IP network address must be a bytestring"}
	}
	addr, ok := netip.AddrFromSlice(p)
	if !ok {
		return nil, DecodeError{Reason: "IP network address must be 4 or 16 bytes"}
	}
	bits, ok := asIndex(v)
	if !ok || bits > addr.BitLen() {
		return nil, DecodeError{Reason: "IP network prefix length out of range"}
	}
	return netip.PrefixFrom(addr, bits), nil
}
