package codec

import (
	"fmt"
	"math"
	"reflect"
)

// Variant is one case of an Enum codec.
type Variant[U any] interface {
	Name() string
	caseID() *caseKey
	matches(v U) bool
	decode(r FormatReader) (U, error)
	encode(w FormatWriter, v U) error
}

// CaseOf describes one case of the tagged union U whose payload is a P.
type CaseOf[U, P any] struct {
	name    string
	payload Codec[P]
	wrap    func(P) U
	unwrap  func(U) (P, bool)
	key     *caseKey
}

// caseKey identifies one case value. Copies of a CaseOf share it, so a
// converter can tell a case kept in place from a different case that
// happens to look the same.
type caseKey struct {
	name string
}

// Case describes a case by its payload codec and the functions moving a
// payload in and out of the union.
func Case[U, P any](name string, payload Codec[P], wrap func(P) U, unwrap func(U) (P, bool)) CaseOf[U, P] {
	return CaseOf[U, P]{name: name, payload: payload, wrap: wrap, unwrap: unwrap, key: &caseKey{name: name}}
}

// TypeCase describes a case whose payload type P itself implements the
// union interface U. It panics when U is not an interface or P does not
// implement it.
func TypeCase[U, P any](name string, payload Codec[P]) CaseOf[U, P] {
	ut := reflect.TypeOf((*U)(nil)).Elem()
	pt := reflect.TypeOf((*P)(nil)).Elem()
	if ut.Kind() != reflect.Interface || !pt.Implements(ut) {
		panic(fmt.Sprintf("codec: case %s: %s does not implement %s", name, pt, ut))
	}
	return CaseOf[U, P]{
		name:    name,
		payload: payload,
		key:     &caseKey{name: name},
		wrap: func(p P) U {
			u, _ := any(p).(U)
			return u
		},
		unwrap: func(u U) (P, bool) {
			p, ok := any(u).(P)
			return p, ok
		},
	}
}

func (c CaseOf[U, P]) Name() string { return c.name }

func (c CaseOf[U, P]) caseID() *caseKey { return c.key }

// Wrap builds a union value of this case.
func (c CaseOf[U, P]) Wrap(p P) U { return c.wrap(p) }

// Unwrap returns the payload when u is of this case.
func (c CaseOf[U, P]) Unwrap(u U) (P, bool) { return c.unwrap(u) }

func (c CaseOf[U, P]) matches(v U) bool {
	_, ok := c.unwrap(v)
	return ok
}

func (c CaseOf[U, P]) decode(r FormatReader) (U, error) {
	p, err := c.payload.Decode(r)
	if err != nil {
		var zero U
		return zero, err
	}
	return c.wrap(p), nil
}

func (c CaseOf[U, P]) encode(w FormatWriter, v U) error {
	p, _ := c.unwrap(v)
	return c.payload.Encode(w, p)
}

// Enum encodes a tagged union as a Nat case tag, the 0-based position of
// the case in declaration order, followed by that case's payload.
// Unrecognized tags are a hard failure; there is no default case.
type Enum[U any] struct {
	name  string
	cases []Variant[U]
}

// NewEnum returns the codec for U from its cases in declaration order.
func NewEnum[U any](name string, cases ...Variant[U]) Enum[U] {
	return Enum[U]{name: name, cases: cases}
}

// Name returns the type name used in error messages.
func (c Enum[U]) Name() string { return c.name }

// Tag returns the case tag of v.
func (c Enum[U]) Tag(v U) (uint64, error) {
	for i, vc := range c.cases {
		if vc.matches(v) {
			return uint64(i), nil
		}
	}
	return 0, newError(KindUnknownTag, -1, "%s: %s matches no case", c.name, describe(v))
}

func (c Enum[U]) Decode(r FormatReader) (U, error) {
	var zero U
	tag, err := DecodeLength(r, math.MaxUint64)
	if err != nil {
		if e, ok := err.(*Error); ok && e.Kind == KindLengthTooLarge {
			return zero, newError(KindUnknownTag, -1, "%s: tag exceeds 64 bits", c.name)
		}
		return zero, err
	}
	if tag >= uint64(len(c.cases)) {
		return zero, UnknownTag(c.name, tag)
	}
	return c.cases[tag].decode(r)
}

func (c Enum[U]) Encode(w FormatWriter, v U) error {
	tag, err := c.Tag(v)
	if err != nil {
		return err
	}
	if err := EncodeNatUint64(w, tag); err != nil {
		return err
	}
	return c.cases[tag].encode(w, v)
}
