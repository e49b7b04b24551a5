package codec

import (
	"encoding/binary"

	"golang.org/x/exp/constraints"
)

// Fixed is the codec for a fixed-width little-endian integer. Signed kinds
// are read as their unsigned counterpart and sign-extended; they are
// written by wrapping to the unsigned form at full declared width.
//
// Only the package-level values U8 through I64 are valid; the zero Fixed
// carries no width.
type Fixed[T constraints.Integer] struct {
	prim Primitive
}

var (
	U8  = Fixed[uint8]{prim: PrimU8}
	I8  = Fixed[int8]{prim: PrimI8}
	U16 = Fixed[uint16]{prim: PrimU16}
	I16 = Fixed[int16]{prim: PrimI16}
	U32 = Fixed[uint32]{prim: PrimU32}
	I32 = Fixed[int32]{prim: PrimI32}
	U64 = Fixed[uint64]{prim: PrimU64}
	I64 = Fixed[int64]{prim: PrimI64}
)

// Statically assert that Fixed implements Codec and the bulk interface.
var (
	_ Codec[int16]       = I16
	_ sliceCodec[uint32] = U32
	_ Primitived         = U64
)

func (c Fixed[T]) Primitive() Primitive { return c.prim }

func (c Fixed[T]) Decode(r FormatReader) (T, error) {
	switch c.prim.Width() {
	case 1:
		v, err := r.ReadU8()
		return T(v), err
	case 2:
		v, err := r.ReadU16()
		return T(v), err
	case 4:
		v, err := r.ReadU32()
		return T(v), err
	case 8:
		v, err := r.ReadU64()
		return T(v), err
	}
	return 0, errNoWidth
}

func (c Fixed[T]) Encode(w FormatWriter, v T) error {
	switch c.prim.Width() {
	case 1:
		return w.WriteU8(uint8(v))
	case 2:
		return w.WriteU16(uint16(v))
	case 4:
		return w.WriteU32(uint32(v))
	case 8:
		return w.WriteU64(uint64(v))
	}
	return errNoWidth
}

var errNoWidth = newError(KindInvalidValue, -1, "fixed-width codec used without a width")

// sliceCodec is the contiguous-buffer capability of the fixed-width codecs.
type sliceCodec[T any] interface {
	Primitived
	appendSlice(dst []byte, vs []T) []byte
	decodeSlice(src []byte) []T
}

// appendSlice appends the little-endian form of every element, exactly as
// repeated calls to Encode would.
func (c Fixed[T]) appendSlice(dst []byte, vs []T) []byte {
	switch c.prim.Width() {
	case 1:
		for _, v := range vs {
			dst = append(dst, uint8(v))
		}
	case 2:
		for _, v := range vs {
			dst = binary.LittleEndian.AppendUint16(dst, uint16(v))
		}
	case 4:
		for _, v := range vs {
			dst = binary.LittleEndian.AppendUint32(dst, uint32(v))
		}
	case 8:
		for _, v := range vs {
			dst = binary.LittleEndian.AppendUint64(dst, uint64(v))
		}
	}
	return dst
}

// decodeSlice converts a buffer of len(src)/width little-endian values.
func (c Fixed[T]) decodeSlice(src []byte) []T {
	width := c.prim.Width()
	if width == 0 {
		return nil
	}
	out := make([]T, len(src)/width)
	for i := range out {
		p := src[i*width:]
		switch width {
		case 1:
			out[i] = T(p[0])
		case 2:
			out[i] = T(binary.LittleEndian.Uint16(p))
		case 4:
			out[i] = T(binary.LittleEndian.Uint32(p))
		case 8:
			out[i] = T(binary.LittleEndian.Uint64(p))
		}
	}
	return out
}
