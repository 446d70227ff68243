package cbor

import (
	"bytes"
	"math/big"
	"net/netip"
	"reflect"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestTag0_DateTimeString(t *testing.T) {
	v, err := Unmarshal(mustHex(t, "c074323031332d30332d32315432303a30343a30305a"))
	if err != nil {
		t.Fatalf("decode tag 0: %v", err)
	}
	ti, ok := v.(time.Time)
	if !ok {
		t.Fatalf("value = %#v", v)
	}
	want := time.Date(2013, 3, 21, 20, 4, 0, 0, time.UTC)
	if !ti.Equal(want) {
		t.Fatalf("time = %v, want %v", ti, want)
	}

	// Re-encoding in ISO mode reproduces the input bytes.
	b, err := Marshal(ti)
	if err != nil {
		t.Fatalf("re-encode: %v", err)
	}
	if !bytes.Equal(b, mustHex(t, "c074323031332d30332d32315432303a30343a30305a")) {
		t.Fatalf("re-encode mismatch: % x", b)
	}

	// Offsets and fractional seconds are part of the grammar.
	if _, err := Unmarshal(mustHex(t, "c07819323031332d30332d32315431333a30343a30302d30373a3030")); err != nil {
		t.Fatalf("offset datetime: %v", err)
	}

	// Not a string, and not ISO-8601.
	checkDecodeErr(t, "c001", nil)
	checkDecodeErr(t, "c06c6e6f742d612d646174652121", nil)
}

func TestTag1_EpochDateTime(t *testing.T) {
	v, err := Unmarshal(mustHex(t, "c11a514b67b0"))
	if err != nil {
		t.Fatalf("decode tag 1: %v", err)
	}
	if ti := v.(time.Time); !ti.Equal(time.Unix(1363896240, 0)) {
		t.Fatalf("time = %v", ti)
	}

	v, err = Unmarshal(mustHex(t, "c1fb41d452d9ec200000"))
	if err != nil {
		t.Fatalf("decode float tag 1: %v", err)
	}
	if ti := v.(time.Time); !ti.Equal(time.Unix(1363896240, 500_000_000)) {
		t.Fatalf("float time = %v", ti)
	}

	// Negative epoch.
	v, err = Unmarshal(mustHex(t, "c120"))
	if err != nil {
		t.Fatalf("decode negative epoch: %v", err)
	}
	if ti := v.(time.Time); !ti.Equal(time.Unix(-1, 0)) {
		t.Fatalf("negative epoch = %v", ti)
	}

	checkDecodeErr(t, "c16161", nil) // non-numeric inner
}

func TestTag2And3_Bignums(t *testing.T) {
	two64 := new(big.Int).Lsh(big.NewInt(1), 64)

	v, err := Unmarshal(mustHex(t, "c249010000000000000000"))
	if err != nil {
		t.Fatalf("decode tag 2: %v", err)
	}
	if z := v.(*big.Int); z.Cmp(two64) != 0 {
		t.Fatalf("bignum = %v", z)
	}

	v, err = Unmarshal(mustHex(t, "c349010000000000000000"))
	if err != nil {
		t.Fatalf("decode tag 3: %v", err)
	}
	want := new(big.Int).Neg(new(big.Int).Add(two64, big.NewInt(1)))
	if z := v.(*big.Int); z.Cmp(want) != 0 {
		t.Fatalf("negative bignum = %v", z)
	}

	// Bignum tag on a non-bytestring inner value.
	checkDecodeErr(t, "c201", nil)
	checkDecodeErr(t, "c36161", nil)
}

func TestTag4_DecimalFraction(t *testing.T) {
	v, err := Unmarshal(mustHex(t, "c48221196ab3"))
	if err != nil {
		t.Fatalf("decode tag 4: %v", err)
	}
	d := v.(decimal.Decimal)
	if !d.Equal(decimal.New(27315, -2)) {
		t.Fatalf("decimal = %v", d)
	}

	checkDecodeErr(t, "c401", nil)       // not an array
	checkDecodeErr(t, "c48101", nil)     // wrong arity
	checkDecodeErr(t, "c482616101", nil) // non-integer exponent
}

func TestTag5_Bigfloat(t *testing.T) {
	v, err := Unmarshal(mustHex(t, "c5822003"))
	if err != nil {
		t.Fatalf("decode tag 5: %v", err)
	}
	f := v.(*big.Float)
	if f.Cmp(big.NewFloat(1.5)) != 0 {
		t.Fatalf("bigfloat = %v", f)
	}
}

func TestTag30_Rational(t *testing.T) {
	v, err := Unmarshal(mustHex(t, "d81e820103"))
	if err != nil {
		t.Fatalf("decode tag 30: %v", err)
	}
	r := v.(*big.Rat)
	if r.Cmp(big.NewRat(1, 3)) != 0 {
		t.Fatalf("rational = %v", r)
	}

	checkDecodeErr(t, "d81e820100", nil) // zero denominator
	checkDecodeErr(t, "d81e01", nil)     // not an array
}

func TestTag35_Regexp(t *testing.T) {
	v, err := Unmarshal(mustHex(t, "d823625e61"))
	if err != nil {
		t.Fatalf("decode tag 35: %v", err)
	}
	re := v.(*regexp.Regexp)
	if re.String() != "^a" {
		t.Fatalf("pattern = %q", re.String())
	}
	if !re.MatchString("abc") || re.MatchString("bbc") {
		t.Fatal("compiled pattern misbehaves")
	}

	checkDecodeErr(t, "d82362285b", nil) // invalid pattern "(["
}

func TestTag37_UUID(t *testing.T) {
	v, err := Unmarshal(mustHex(t, "d825505eaffac8b51e46678e583c8bbfe41ea3"))
	if err != nil {
		t.Fatalf("decode tag 37: %v", err)
	}
	u := v.(uuid.UUID)
	if u.String() != "5eaffac8-b51e-4667-8e58-3c8bbfe41ea3" {
		t.Fatalf("uuid = %v", u)
	}

	checkDecodeErr(t, "d82543010203", nil) // wrong length
	checkDecodeErr(t, "d82501", nil)       // non-bytestring inner
}

func TestTag258_Set(t *testing.T) {
	v, err := Unmarshal(mustHex(t, "d9010283010203"))
	if err != nil {
		t.Fatalf("decode tag 258: %v", err)
	}
	s := v.(Set)
	if len(s) != 3 || !s.Contains(int64(1)) || !s.Contains(int64(2)) || !s.Contains(int64(3)) {
		t.Fatalf("set = %#v", s)
	}

	// Byte-string members become ByteString so they are comparable.
	v, err = Unmarshal(mustHex(t, "d90102814101"))
	if err != nil {
		t.Fatalf("decode byte set: %v", err)
	}
	if s := v.(Set); !s.Contains(ByteString("\x01")) {
		t.Fatalf("byte set = %#v", s)
	}

	checkDecodeErr(t, "d9010201", nil) // set tag on non-array
}

func TestTag260And261_IP(t *testing.T) {
	v, err := Unmarshal(mustHex(t, "d9010444c0a80105"))
	if err != nil {
		t.Fatalf("decode tag 260: %v", err)
	}
	if a := v.(netip.Addr); a != netip.MustParseAddr("192.168.1.5") {
		t.Fatalf("addr = %v", a)
	}

	v, err = Unmarshal(mustHex(t, "d90105a144c0a800001818"))
	if err != nil {
		t.Fatalf("decode tag 261: %v", err)
	}
	if p := v.(netip.Prefix); p != netip.MustParsePrefix("192.168.0.0/24") {
		t.Fatalf("prefix = %v", p)
	}

	checkDecodeErr(t, "d9010443010203", nil)     // 3-byte address
	checkDecodeErr(t, "d90105a144c0a800001881", nil) // prefix length 129 > 32
}

func TestUnknownTagWrapping(t *testing.T) {
	v, err := Unmarshal(mustHex(t, "d9d9f80f"))
	if err != nil {
		t.Fatalf("decode unknown tag: %v", err)
	}
	tag, ok := v.(Tag)
	if !ok || tag.Number != 55800 || tag.Content != int64(15) {
		t.Fatalf("tag = %#v", v)
	}
}

func TestTagHook(t *testing.T) {
	d := NewDecoder(bytes.NewReader(mustHex(t, "d9d9f80f")))
	d.SetTagHook(func(d *Decoder, tag Tag) (any, error) {
		return tag.Number, nil
	})
	v, err := d.Decode()
	if err != nil {
		t.Fatalf("tag hook decode: %v", err)
	}
	if v != uint64(55800) {
		t.Fatalf("tag hook = %#v", v)
	}
}

func TestTypedValueRoundtrips(t *testing.T) {
	values := []any{
		uuid.MustParse("5eaffac8-b51e-4667-8e58-3c8bbfe41ea3"),
		netip.MustParseAddr("10.0.0.1"),
		netip.MustParseAddr("2001:db8::42"),
		netip.MustParsePrefix("10.0.0.0/8"),
		big.NewRat(-7, 12),
	}
	for _, v := range values {
		b, err := Marshal(v)
		if err != nil {
			t.Fatalf("Marshal(%v): %v", v, err)
		}
		back, err := Unmarshal(b)
		if err != nil {
			t.Fatalf("Unmarshal(%v): %v", v, err)
		}
		switch w := back.(type) {
		case *big.Rat:
			if w.Cmp(v.(*big.Rat)) != 0 {
				t.Fatalf("rational roundtrip: %v -> %v", v, w)
			}
		default:
			if !reflect.DeepEqual(back, v) {
				t.Fatalf("roundtrip %v -> %v", v, back)
			}
		}
	}
}
