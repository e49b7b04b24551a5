package codec

import "math/big"

// Primitive identifies a built-in codec. Combinators dispatch on this tag,
// for example to pick the contiguous-buffer path for numeric lists.
type Primitive uint8

const (
	PrimNone Primitive = iota
	PrimU8
	PrimI8
	PrimU16
	PrimI16
	PrimU32
	PrimI32
	PrimU64
	PrimI64
	PrimNat
	PrimInt
	PrimString
	PrimBool
)

var primitiveNames = [...]string{
	PrimNone:   "none",
	PrimU8:     "u8",
	PrimI8:     "i8",
	PrimU16:    "u16",
	PrimI16:    "i16",
	PrimU32:    "u32",
	PrimI32:    "i32",
	PrimU64:    "u64",
	PrimI64:    "i64",
	PrimNat:    "nat",
	PrimInt:    "int",
	PrimString: "string",
	PrimBool:   "bool",
}

func (p Primitive) String() string {
	if int(p) < len(primitiveNames) {
		return primitiveNames[p]
	}
	return "unknown"
}

// Width returns the wire width in bytes of a fixed-width integer kind, or 0.
func (p Primitive) Width() int {
	switch p {
	case PrimU8, PrimI8:
		return 1
	case PrimU16, PrimI16:
		return 2
	case PrimU32, PrimI32:
		return 4
	case PrimU64, PrimI64:
		return 8
	}
	return 0
}

// FixedWidth reports whether p is one of the fixed-width integer kinds.
func (p Primitive) FixedWidth() bool { return p.Width() != 0 }

// NatCodec encodes unbounded non-negative integers as unsigned VLQ.
type NatCodec struct {
	maxBytes int
}

// IntCodec encodes unbounded signed integers as signed VLQ.
type IntCodec struct {
	maxBytes int
}

// StringCodec encodes UTF-8 text as a Nat byte length followed by the bytes.
// Decoded bytes are kept verbatim; no UTF-8 validation is applied.
type StringCodec struct {
	max uint64
}

// BoolCodec encodes a boolean as one byte; any nonzero byte decodes as true.
type BoolCodec struct{}

var (
	Nat    = NatCodec{}
	Int    = IntCodec{}
	String = StringCodec{max: DefaultMaxLength}
	Bool   = BoolCodec{}
)

var (
	_ Codec[*big.Int] = Nat
	_ Codec[*big.Int] = Int
	_ Codec[string]   = String
	_ Codec[bool]     = Bool
)

// NewNat returns a Nat codec honoring l.MaxVLQBytes.
func NewNat(l Limits) NatCodec { return NatCodec{maxBytes: l.MaxVLQBytes} }

// NewInt returns an Int codec honoring l.MaxVLQBytes.
func NewInt(l Limits) IntCodec { return IntCodec{maxBytes: l.MaxVLQBytes} }

// NewString returns a String codec honoring l.MaxLength.
func NewString(l Limits) StringCodec { return StringCodec{max: l.MaxLength} }

func (NatCodec) Primitive() Primitive    { return PrimNat }
func (IntCodec) Primitive() Primitive    { return PrimInt }
func (StringCodec) Primitive() Primitive { return PrimString }
func (BoolCodec) Primitive() Primitive   { return PrimBool }

func (c NatCodec) Decode(r FormatReader) (*big.Int, error) { return decodeNat(r, c.maxBytes) }
func (NatCodec) Encode(w FormatWriter, v *big.Int) error   { return EncodeNat(w, v) }

func (c IntCodec) Decode(r FormatReader) (*big.Int, error) { return decodeInt(r, c.maxBytes) }
func (IntCodec) Encode(w FormatWriter, v *big.Int) error   { return EncodeInt(w, v) }

func (c StringCodec) Decode(r FormatReader) (string, error) {
	n, err := DecodeLength(r, c.max)
	if err != nil {
		return "", err
	}
	b, err := r.ReadBytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (StringCodec) Encode(w FormatWriter, v string) error {
	if err := EncodeNatUint64(w, uint64(len(v))); err != nil {
		return err
	}
	return w.WriteBytes([]byte(v))
}

func (BoolCodec) Decode(r FormatReader) (bool, error) {
	b, err := r.ReadU8()
	return b != 0, err
}

func (BoolCodec) Encode(w FormatWriter, v bool) error {
	if v {
		return w.WriteU8(1)
	}
	return w.WriteU8(0)
}
