package codec

import "math"

// ListCodec encodes an ordered sequence as a Nat element count followed by
// each element in order.
//
// When the element codec is one of the built-in fixed-width integer codecs
// the list is read and written as one contiguous little-endian buffer. The
// bytes are identical to the element-by-element form; only the number of
// stream calls differs.
type ListCodec[T any] struct {
	elem Codec[T]
	bulk sliceCodec[T]
	max  uint64
}

// ListOf returns the list codec for elem using DefaultLimits.
func ListOf[T any](elem Codec[T]) ListCodec[T] {
	return ListOfLimits(elem, DefaultLimits())
}

// ListOfLimits returns the list codec for elem, rejecting decoded element
// counts above l.MaxLength.
func ListOfLimits[T any](elem Codec[T], l Limits) ListCodec[T] {
	c := ListCodec[T]{elem: elem, max: l.MaxLength}
	if s, ok := elem.(sliceCodec[T]); ok && s.Primitive().FixedWidth() {
		c.bulk = s
	}
	return c
}

// Elem returns the element codec.
func (c ListCodec[T]) Elem() Codec[T] { return c.elem }

// Specialized reports whether the contiguous-buffer path is in use.
func (c ListCodec[T]) Specialized() bool { return c.bulk != nil }

func (c ListCodec[T]) Decode(r FormatReader) ([]T, error) {
	n, err := DecodeLength(r, c.max)
	if err != nil {
		return nil, err
	}

	if c.bulk != nil {
		width := uint64(c.bulk.Primitive().Width())
		if n > math.MaxInt/width {
			return nil, newError(KindLengthTooLarge, -1, "list of %d %s elements", n, c.bulk.Primitive())
		}
		buf, err := r.ReadBytes(int(n * width))
		if err != nil {
			return nil, err
		}
		return c.bulk.decodeSlice(buf), nil
	}

	// Grow as elements arrive rather than trusting the prefix up front.
	out := make([]T, 0, min(n, BUFFER_SIZE))
	for i := uint64(0); i < n; i++ {
		v, err := c.elem.Decode(r)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (c ListCodec[T]) Encode(w FormatWriter, v []T) error {
	if err := EncodeNatUint64(w, uint64(len(v))); err != nil {
		return err
	}

	if c.bulk != nil {
		buf := getScratch()
		defer putScratch(buf)
		*buf = c.bulk.appendSlice((*buf)[:0], v)
		return w.WriteBytes(*buf)
	}

	for _, item := range v {
		if err := c.elem.Encode(w, item); err != nil {
			return err
		}
	}
	return nil
}
