package cbor

import (
	"errors"
	"reflect"
	"strconv"
)

const resumableDefault = false

var (
	// ErrShortBytes is returned when the stream or slice being decoded
	// ends before the current item is complete.
	ErrShortBytes error = errShort{}

	// ErrRecursion is returned when the configured recursion limit is
	// reached while encoding or decoding nested containers.
	ErrRecursion error = errRecursion{}

	// ErrInvalidUTF8 is returned when a text string contains invalid UTF-8.
	ErrInvalidUTF8 error = errors.New("cbor: invalid UTF-8 in text string")

	// ErrBreakOutsideIndefinite is returned when a break byte (0xff)
	// appears anywhere other than the top of an open indefinite item.
	ErrBreakOutsideIndefinite error = errors.New("cbor: break outside indefinite-length item")

	// ErrReservedSimple is returned when encoding a SimpleValue in the
	// reserved range 24..31.
	ErrReservedSimple error = errors.New("cbor: simple values 24..31 are reserved")

	// ErrNaiveDate is returned when a Date is encoded and no timezone has
	// been configured to anchor its midnight instant.
	ErrNaiveDate error = errors.New("cbor: naive date and no timezone configured")

	// ErrTimeRange is returned when a time.Time falls outside the
	// four-digit-year range of the ISO-8601 wire grammar.
	ErrTimeRange error = errors.New("cbor: time outside the year 1..9999 range")
)

// Error is the interface satisfied by all of the errors that originate
// from this package.
type Error interface {
	error

	// Resumable reports whether the stream can still be used after the
	// error. It is false when the data is malformed or truncated and the
	// information is unrecoverable.
	Resumable() bool
}

// contextError allows Error instances to be enhanced with additional
// context about their origin.
type contextError interface {
	Error

	// withContext must not modify the error instance - it must clone and
	// return a new error with the context added.
	withContext(ctx string) error
}

// Cause returns the underlying cause of an error that has been wrapped
// with additional context.
func Cause(e error) error {
	out := e
	if e, ok := e.(errWrapped); ok && e.cause != nil {
		out = e.cause
	}
	return out
}

// Resumable reports whether the stream can still be used after e. It is
// false for malformed or truncated data and for errors that do not
// implement Error.
func Resumable(e error) bool {
	if e, ok := e.(Error); ok {
		return e.Resumable()
	}
	return resumableDefault
}

// WrapError wraps an error with additional context that allows the part of
// the value graph that caused the problem to be identified. Underlying
// errors can be retrieved using Cause().
//
// The input error is not modified - a new error is returned.
//
// ErrShortBytes is not wrapped with any context due to backward
// compatibility issues with the public API.
func WrapError(err error, ctx ...any) error {
	switch e := err.(type) {
	case errShort:
		return e
	case contextError:
		return e.withContext(ctxString(ctx))
	default:
		return errWrapped{cause: err, ctx: ctxString(ctx)}
	}
}

func addCtx(ctx, add string) string {
	if ctx != "" {
		return add + "/" + ctx
	} else {
		return add
	}
}

// errWrapped allows arbitrary errors passed to WrapError to be enhanced with
// context and unwrapped with Cause()
type errWrapped struct {
	cause error
	ctx   string
}

func (e errWrapped) Error() string {
	if e.ctx != "" {
		return e.cause.Error() + " at " + e.ctx
	} else {
		return e.cause.Error()
	}
}

func (e errWrapped) Resumable() bool {
	if e, ok := e.cause.(Error); ok {
		return e.Resumable()
	}
	return resumableDefault
}

// Unwrap returns the cause.
func (e errWrapped) Unwrap() error { return e.cause }

type errShort struct{}

func (e errShort) Error() string   { return "cbor: too few bytes left to read object" }
func (e errShort) Resumable() bool { return false }

type errRecursion struct{}

func (e errRecursion) Error() string   { return "cbor: recursion limit reached" }
func (e errRecursion) Resumable() bool { return false }

// EOFError is returned when the underlying stream delivers fewer bytes
// than an item header promised. It unwraps to ErrShortBytes.
type EOFError struct {
	Requested int
	Actual    int
}

// Error implements the error interface
func (e EOFError) Error() string {
	return "cbor: unexpected end of stream: requested " + strconv.Itoa(e.Requested) +
		" bytes, got " + strconv.Itoa(e.Actual)
}

// Resumable returns 'false' for EOFErrors
func (e EOFError) Resumable() bool { return false }

// Unwrap returns ErrShortBytes so errors.Is(err, ErrShortBytes) holds.
func (e EOFError) Unwrap() error { return ErrShortBytes }

// DecodeError is returned when the input is not well-formed CBOR or a
// semantic tag carries an inner value it cannot interpret. Lead identifies
// the offending initial byte where one is known.
type DecodeError struct {
	Reason string
	Lead   byte

	ctx string
}

// Error implements the error interface
func (e DecodeError) Error() string {
	out := "cbor: malformed input: " + e.Reason
	if e.Lead != 0 {
		out += " (major " + strconv.Itoa(int(getMajorType(e.Lead))) +
			", info " + strconv.Itoa(int(getAddInfo(e.Lead))) + ")"
	}
	if e.ctx != "" {
		out += " at " + e.ctx
	}
	return out
}

// Resumable returns 'false' for DecodeErrors
func (e DecodeError) Resumable() bool { return false }

func (e DecodeError) withContext(ctx string) error { e.ctx = addCtx(e.ctx, ctx); return e }

func malformed(reason string, lead byte) error {
	return DecodeError{Reason: reason, Lead: lead}
}

// UnencodableTypeError is returned when the encoder holds a value for
// which no handler is registered and no default handler is configured.
type UnencodableTypeError struct {
	T reflect.Type

	ctx string
}

// Error implements error
func (e *UnencodableTypeError) Error() string {
	out := "cbor: no encoder for type " + quoteStr(typeName(e.T))
	if e.ctx != "" {
		out += " at " + e.ctx
	}
	return out
}

// Resumable returns 'true' for UnencodableTypeErrors
func (e *UnencodableTypeError) Resumable() bool { return true }

func (e *UnencodableTypeError) withContext(ctx string) error {
	o := *e
	o.ctx = addCtx(o.ctx, ctx)
	return &o
}

// CycleError is returned when the encoder re-enters a container that is
// already being encoded and value sharing is disabled.
type CycleError struct {
	T reflect.Type
}

// Error implements the error interface
func (e CycleError) Error() string {
	return "cbor: cyclic reference through " + quoteStr(typeName(e.T)) +
		" (enable value sharing to encode cycles)"
}

// Resumable returns 'false' for CycleErrors
func (e CycleError) Resumable() bool { return false }

// InvalidPrefixError is returned when an encoding uses a major type that
// is not expected at the current position.
type InvalidPrefixError struct {
	Want uint8
	Got  uint8
}

// Error implements the error interface
func (i InvalidPrefixError) Error() string {
	return "cbor: expected major type " + strconv.Itoa(int(i.Want)) + " but got " + strconv.Itoa(int(i.Got))
}

// Resumable returns 'false' for InvalidPrefixErrors
func (i InvalidPrefixError) Resumable() bool { return false }

func badPrefix(want uint8, got uint8) error {
	return InvalidPrefixError{Want: want, Got: got}
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}

func ctxString(ctx []any) string {
	out := ""
	for _, c := range ctx {
		s, ok := c.(string)
		if !ok {
			continue
		}
		if out != "" {
			out += "/"
		}
		out += s
	}
	return out
}

func quoteStr(s string) string { return strconv.Quote(s) }
