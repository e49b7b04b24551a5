package codec

// FormatReader is the minimal forward-only read surface a Codec walks.
// Multi-byte integers are little-endian. A read that cannot obtain every
// requested byte fails with an EndOfStream error.
type FormatReader interface {
	ReadU8() (uint8, error)
	ReadU16() (uint16, error)
	ReadU32() (uint32, error)
	ReadU64() (uint64, error)
	// ReadBytes returns exactly n freshly allocated bytes.
	ReadBytes(n int) ([]byte, error)
}

// FormatWriter is the append-only write surface a Codec walks.
// Multi-byte integers are written little-endian.
type FormatWriter interface {
	WriteU8(v uint8) error
	WriteU16(v uint16) error
	WriteU32(v uint32) error
	WriteU64(v uint64) error
	WriteBytes(p []byte) error
}

// Codec realizes one fixed wire representation for values of type T.
//
// Codecs are stateless and safe to share between goroutines; the reader or
// writer handed to them belongs to a single walk. A failed Decode never
// returns a partially built value.
type Codec[T any] interface {
	Decode(r FormatReader) (T, error)
	Encode(w FormatWriter, v T) error
}

// Primitived is implemented by the built-in codecs so combinators can
// recognize them by tag rather than by identity of an opaque handle.
type Primitived interface {
	Primitive() Primitive
}

// PrimitiveOf returns the built-in tag of c, or PrimNone for any other codec.
func PrimitiveOf[T any](c Codec[T]) Primitive {
	if p, ok := c.(Primitived); ok {
		return p.Primitive()
	}
	return PrimNone
}
