package codec

// Option is a nullable box: either a present Value or nothing.
type Option[T any] struct {
	Value   T
	Present bool
}

// Some returns a present Option holding v.
func Some[T any](v T) Option[T] { return Option[T]{Value: v, Present: true} }

// None returns an absent Option.
func None[T any]() Option[T] { return Option[T]{} }

// Get returns the value and whether it is present.
func (o Option[T]) Get() (T, bool) { return o.Value, o.Present }

// OptionCodec encodes a presence byte (0 absent, 1 present) followed by
// the payload only when present. Any nonzero presence byte decodes as present.
type OptionCodec[T any] struct {
	elem Codec[T]
}

// OptionOf returns the Option codec for elem.
func OptionOf[T any](elem Codec[T]) OptionCodec[T] {
	return OptionCodec[T]{elem: elem}
}

func (c OptionCodec[T]) Decode(r FormatReader) (Option[T], error) {
	flag, err := r.ReadU8()
	if err != nil {
		return Option[T]{}, err
	}
	if flag == 0 {
		return Option[T]{}, nil
	}
	v, err := c.elem.Decode(r)
	if err != nil {
		return Option[T]{}, err
	}
	return Some(v), nil
}

func (c OptionCodec[T]) Encode(w FormatWriter, v Option[T]) error {
	if !v.Present {
		return w.WriteU8(0)
	}
	if err := w.WriteU8(1); err != nil {
		return err
	}
	return c.elem.Encode(w, v.Value)
}
