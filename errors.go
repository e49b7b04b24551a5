package codec

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// Kind categorizes a failure of an encode or decode walk.
type Kind string

const (
	// KindEndOfStream means a fixed or declared-length read could not be completed.
	KindEndOfStream Kind = "end_of_stream"
	// KindLengthTooLarge means a decoded length prefix exceeds the safe materialization bound.
	KindLengthTooLarge Kind = "length_too_large"
	// KindUnknownTag means a tagged-union tag has no case in the version being decoded.
	KindUnknownTag Kind = "unknown_tag"
	// KindConversionFailure means custom converter logic failed.
	KindConversionFailure Kind = "conversion_failure"
	// KindInvalidValue means a value outside a codec's domain was handed to Encode.
	KindInvalidValue Kind = "invalid_value"
)

// Error is the structured failure returned by codecs and converters.
// Offset is the stream position at which the failure was detected, or -1
// when no stream was involved.
type Error struct {
	Cause  error
	Kind   Kind
	Detail string
	Offset int64
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("codec: ")
	b.WriteString(string(e.Kind))
	if e.Offset >= 0 {
		fmt.Fprintf(&b, " at offset %d", e.Offset)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error of the same Kind.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

func newError(kind Kind, offset int64, format string, args ...any) *Error {
	return &Error{Kind: kind, Offset: offset, Detail: fmt.Sprintf(format, args...)}
}

var (
	// ErrEndOfStream matches any EndOfStream failure via errors.Is.
	ErrEndOfStream = &Error{Kind: KindEndOfStream, Offset: -1}

	// ErrLengthTooLarge matches any LengthTooLarge failure via errors.Is.
	ErrLengthTooLarge = &Error{Kind: KindLengthTooLarge, Offset: -1}

	// ErrUnknownTag matches any UnknownTag failure via errors.Is.
	ErrUnknownTag = &Error{Kind: KindUnknownTag, Offset: -1}

	// ErrConversionFailure matches any ConversionFailure via errors.Is.
	ErrConversionFailure = &Error{Kind: KindConversionFailure, Offset: -1}

	// ErrInvalidValue matches any InvalidValue failure via errors.Is.
	ErrInvalidValue = &Error{Kind: KindInvalidValue, Offset: -1}
)

var (
	// ErrNilIO indicates that NewReader/NewWriter was called with an nil interface
	ErrNilIO = errors.New("codec: NewReader/NewWriter called with a nil io.Reader/io.Writer")

	// ErrInvalidWrite indicates that an io.Writer returned an invalid (negative) count from Write.
	ErrInvalidWrite = errors.New("codec: writer returned invalid count from Write")

	// ErrInvalidRead indicates that an io.Reader returned an invalid (negative or outbound) count from Read.
	ErrInvalidRead = errors.New("codec: reader returned invalid count from Read")

	// ErrTrailingData is returned by Unmarshal when non-zero bytes are found
	// after the expected end of the value, indicating a version mismatch or malformed data.
	ErrTrailingData = errors.New("codec: non-zero trailing data found after decoding")
)

// EndOfStream builds an EndOfStream error for a read that wanted n bytes at offset.
func EndOfStream(offset int64, n int, cause error) error {
	return &Error{
		Kind:   KindEndOfStream,
		Offset: offset,
		Detail: fmt.Sprintf("wanted %d bytes", n),
		Cause:  cause,
	}
}

// UnknownTag builds the error generated enum codecs return for an unrecognized case tag.
func UnknownTag(typeName string, tag uint64) error {
	return newError(KindUnknownTag, -1, "%s: no case for tag %d", typeName, tag)
}

// ConversionFailure wraps a failure raised by custom converter logic.
func ConversionFailure(cause error, format string, args ...any) error {
	e := newError(KindConversionFailure, -1, format, args...)
	e.Cause = cause
	return e
}

// isEOF reports whether err signals the underlying stream ran dry.
func isEOF(err error) bool {
	return err == io.EOF || err == io.ErrUnexpectedEOF
}

// withOffset stamps an offset onto a codec error that does not carry one yet.
func withOffset(err error, offset int64) error {
	var e *Error
	if errors.As(err, &e) && e.Offset < 0 {
		c := *e
		c.Offset = offset
		return &c
	}
	return err
}
