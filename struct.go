package codec

// StructField is one positional field of a Struct codec.
type StructField[S any] interface {
	decodeInto(r FormatReader, s *S) error
	encodeFrom(w FormatWriter, s *S) error
}

type field[S, F any] struct {
	codec Codec[F]
	get   func(*S) *F
}

// Field binds the codec of one field to its location in S.
func Field[S, F any](c Codec[F], get func(*S) *F) StructField[S] {
	return field[S, F]{codec: c, get: get}
}

func (f field[S, F]) decodeInto(r FormatReader, s *S) error {
	v, err := f.codec.Decode(r)
	if err != nil {
		return err
	}
	*f.get(s) = v
	return nil
}

func (f field[S, F]) encodeFrom(w FormatWriter, s *S) error {
	return f.codec.Encode(w, *f.get(s))
}

// Struct encodes the fields of S in declaration order with no names or tags.
// The wire form carries no self-description, so each version of a type
// needs its own Struct codec.
type Struct[S any] struct {
	fields []StructField[S]
}

// NewStruct returns the codec for S from its fields in declaration order.
func NewStruct[S any](fields ...StructField[S]) Struct[S] {
	return Struct[S]{fields: fields}
}

func (c Struct[S]) Decode(r FormatReader) (S, error) {
	var s S
	for _, f := range c.fields {
		if err := f.decodeInto(r, &s); err != nil {
			var zero S
			return zero, err
		}
	}
	return s, nil
}

func (c Struct[S]) Encode(w FormatWriter, v S) error {
	for _, f := range c.fields {
		if err := f.encodeFrom(w, &v); err != nil {
			return err
		}
	}
	return nil
}
