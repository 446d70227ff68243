package cbor

import (
	"net/mail"
	"strings"
	"time"
)

// Tag is a semantic tag wrapping an inner value. Tags the registry does not
// recognize decode to this type, and encoding a Tag emits the tag head
// followed by the content item.
type Tag struct {
	Number  uint64
	Content any
}

// SimpleValue is a CBOR simple value (major type 7) outside the assigned
// false/true/null/undefined constants. Values 24..31 are reserved by the
// wire grammar and are refused on encode.
type SimpleValue uint8

// UndefinedType is the type of the Undefined sentinel.
type UndefinedType struct{}

// Undefined is the CBOR "undefined" simple value (23). It is distinct from
// nil, which encodes as null (22).
var Undefined UndefinedType

// ByteString is a byte string held in a comparable string-typed form. The
// decoder produces it instead of []byte in positions that must be usable as
// Go map keys: map keys and set members.
type ByteString string

// Bytes returns the byte string as a []byte copy.
func (b ByteString) Bytes() []byte { return []byte(b) }

// Set is a mathematical set of values, encoded as tag 258 wrapping an array
// of the members. Members must be comparable Go values; the decoder converts
// byte strings to ByteString for this reason.
type Set map[any]struct{}

// NewSet builds a Set from the given members.
func NewSet(members ...any) Set {
	s := make(Set, len(members))
	for _, m := range members {
		s[m] = struct{}{}
	}
	return s
}

// Contains reports whether v is a member of the set.
func (s Set) Contains(v any) bool {
	_, ok := s[v]
	return ok
}

// Date is a calendar date with no time-of-day or zone. Encoding promotes it
// to midnight in the Encoder's configured timezone; with no timezone
// configured the encode fails with ErrNaiveDate.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the Date on which t falls, in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// In returns the midnight instant of the date in loc.
func (d Date) In(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.In(time.UTC).Format("2006-01-02")
}

// MIMEMessage is an RFC 2045 message carried by tag 36. The raw text is
// preserved verbatim so the value round-trips byte-for-byte; Message parses
// it on demand.
type MIMEMessage string

// Message parses the raw text into a *mail.Message.
func (m MIMEMessage) Message() (*mail.Message, error) {
	return mail.ReadMessage(strings.NewReader(string(m)))
}

// placeholder marks a shareables slot whose value is still under
// construction. A tag-29 reference that resolves to one is malformed.
type placeholder struct{}
