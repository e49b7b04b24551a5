package codec

import (
	"fmt"
	"reflect"
	"unsafe"
)

// Converter maps a value of one version of a type to the next version.
//
// A Converter is either the distinguished identity or a custom function.
// Composite converters check IsIdentity on their parts and collapse to the
// identity themselves instead of rebuilding values that would not change.
// The zero Converter has neither and fails every conversion.
type Converter[A, B any] struct {
	fn       func(A) (B, error)
	identity bool
}

// Identity returns the identity converter for A.
func Identity[A any]() Converter[A, A] {
	return Converter[A, A]{identity: true}
}

// Func returns a custom converter from a total function.
func Func[A, B any](f func(A) B) Converter[A, B] {
	return Converter[A, B]{fn: func(a A) (B, error) { return f(a), nil }}
}

// FuncErr returns a custom converter from a function that may fail.
// Failures are reported as ConversionFailure.
func FuncErr[A, B any](f func(A) (B, error)) Converter[A, B] {
	return Converter[A, B]{fn: func(a A) (B, error) {
		b, err := f(a)
		if err != nil {
			var zero B
			return zero, asConversionFailure(err)
		}
		return b, nil
	}}
}

func asConversionFailure(err error) error {
	if e, ok := err.(*Error); ok && e.Kind == KindConversionFailure {
		return err
	}
	return ConversionFailure(err, "custom conversion failed")
}

// IsIdentity reports whether c is exactly the identity converter.
func (c Converter[A, B]) IsIdentity() bool { return c.identity }

// Convert applies c to a.
func (c Converter[A, B]) Convert(a A) (B, error) {
	if c.identity {
		// Identity is only constructible with A == B.
		if b, ok := any(a).(B); ok || any(a) == nil {
			return b, nil
		}
		var zero B
		return zero, ConversionFailure(nil, "identity converter applied across types %T", a)
	}
	if c.fn == nil {
		var zero B
		return zero, ConversionFailure(nil, "converter %T has no function", c)
	}
	return c.fn(a)
}

// Compose returns g after f. When either side is the identity the other one
// is returned unchanged.
func Compose[A, B, C any](f Converter[A, B], g Converter[B, C]) Converter[A, C] {
	switch {
	case f.identity && g.identity:
		return Converter[A, C]{identity: true}
	case f.identity:
		if c, ok := any(g).(Converter[A, C]); ok {
			return c
		}
	case g.identity:
		if c, ok := any(f).(Converter[A, C]); ok {
			return c
		}
	}
	return Converter[A, C]{fn: func(a A) (C, error) {
		b, err := f.Convert(a)
		if err != nil {
			var zero C
			return zero, err
		}
		return g.Convert(b)
	}}
}

// ListConverter lifts an element converter to lists.
func ListConverter[A, B any](elem Converter[A, B]) Converter[[]A, []B] {
	if elem.identity {
		return Converter[[]A, []B]{identity: true}
	}
	return Converter[[]A, []B]{fn: func(src []A) ([]B, error) {
		if src == nil {
			return nil, nil
		}
		out := make([]B, len(src))
		for i, a := range src {
			b, err := elem.Convert(a)
			if err != nil {
				return nil, err
			}
			out[i] = b
		}
		return out, nil
	}}
}

// OptionConverter lifts a converter to optional values. Absent stays absent.
func OptionConverter[A, B any](elem Converter[A, B]) Converter[Option[A], Option[B]] {
	if elem.identity {
		return Converter[Option[A], Option[B]]{identity: true}
	}
	return Converter[Option[A], Option[B]]{fn: func(src Option[A]) (Option[B], error) {
		if !src.Present {
			return Option[B]{}, nil
		}
		b, err := elem.Convert(src.Value)
		if err != nil {
			return Option[B]{}, err
		}
		return Some(b), nil
	}}
}

// sameType reports whether A and B are the same type.
func sameType[A, B any]() bool {
	_, ok := any((*A)(nil)).(*B)
	return ok
}

// FieldMapping fills one field of a B from an A.
type FieldMapping[A, B any] struct {
	apply    func(src *A, dst *B) error
	identity bool
	slot     fieldSlot
}

// fieldSlot locates a field by its byte offset and size within the struct.
type fieldSlot struct {
	offset, size uintptr
}

// MapField carries a field over from src to dst through conv. The mapping
// leaves the field unchanged only when conv is the identity and from and
// to address the same field of the same struct type.
func MapField[A, B, FA, FB any](from func(*A) *FA, to func(*B) *FB, conv Converter[FA, FB]) FieldMapping[A, B] {
	m := FieldMapping[A, B]{
		apply: func(src *A, dst *B) error {
			v, err := conv.Convert(*from(src))
			if err != nil {
				return err
			}
			*to(dst) = v
			return nil
		},
	}
	if conv.identity && sameType[A, B]() && sameType[FA, FB]() {
		m.slot, m.identity = sameSlot(from, to)
	}
	return m
}

// sameSlot reports whether from and to select the same field when applied
// to one value, and where that field lies. A and B must be the same type.
func sameSlot[A, B, FA, FB any](from func(*A) *FA, to func(*B) *FB) (slot fieldSlot, ok bool) {
	defer func() {
		// Accessors reaching through nil pointers never name a direct field.
		if recover() != nil {
			slot, ok = fieldSlot{}, false
		}
	}()

	a := new(A)
	pf := unsafe.Pointer(from(a))
	pt := unsafe.Pointer(to((*B)(unsafe.Pointer(a))))
	if pf != pt {
		return fieldSlot{}, false
	}
	var f FA
	base := uintptr(unsafe.Pointer(a))
	off, size := uintptr(pf)-base, unsafe.Sizeof(f)
	if uintptr(pf) < base || off+size > unsafe.Sizeof(*a) {
		return fieldSlot{}, false
	}
	return fieldSlot{offset: off, size: size}, true
}

// coversFields reports whether slots name every field of the struct S
// exactly once.
func coversFields[S any](slots []fieldSlot) bool {
	t := reflect.TypeOf((*S)(nil)).Elem()
	if t.Kind() != reflect.Struct || t.NumField() != len(slots) {
		return false
	}
	want := make(map[fieldSlot]int, len(slots))
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		want[fieldSlot{offset: f.Offset, size: f.Type.Size()}]++
	}
	for _, s := range slots {
		if want[s] == 0 {
			return false
		}
		want[s]--
	}
	return true
}

// KeepField carries an unchanged field over.
func KeepField[A, B, F any](from func(*A) *F, to func(*B) *F) FieldMapping[A, B] {
	return MapField(from, to, Identity[F]())
}

// SetField computes a field of dst from the whole source value, typically a
// default for a field that is new in B.
func SetField[A, B, F any](to func(*B) *F, fn func(src *A) (F, error)) FieldMapping[A, B] {
	return FieldMapping[A, B]{apply: func(src *A, dst *B) error {
		v, err := fn(src)
		if err != nil {
			return asConversionFailure(err)
		}
		*to(dst) = v
		return nil
	}}
}

// StructConverter builds a struct converter from mappings covering every
// field of B. Fields without a mapping are left at their zero value. The
// result is the identity when A and B are the same type and the mappings
// keep each field of it in place exactly once.
func StructConverter[A, B any](fields ...FieldMapping[A, B]) Converter[A, B] {
	if sameType[A, B]() && allIdentity(fields, func(f FieldMapping[A, B]) bool { return f.identity }) {
		slots := make([]fieldSlot, len(fields))
		for i, f := range fields {
			slots[i] = f.slot
		}
		if coversFields[A](slots) {
			return Converter[A, B]{identity: true}
		}
	}
	return Converter[A, B]{fn: func(src A) (B, error) {
		var dst B
		for _, f := range fields {
			if err := f.apply(&src, &dst); err != nil {
				var zero B
				return zero, err
			}
		}
		return dst, nil
	}}
}

// CaseMapping converts values of one source case of an enum.
type CaseMapping[A, B any] struct {
	apply    func(src A) (B, bool, error)
	identity bool
	from     *caseKey
}

// MapCase re-tags values of case from as case to, converting the payload
// through conv. The case is unchanged only when conv is the identity and
// from and to are the same case.
func MapCase[A, B, PA, PB any](from CaseOf[A, PA], to CaseOf[B, PB], conv Converter[PA, PB]) CaseMapping[A, B] {
	return CaseMapping[A, B]{
		identity: conv.identity && from.key != nil && from.key == to.key,
		from:     from.key,
		apply: func(src A) (B, bool, error) {
			p, ok := from.Unwrap(src)
			if !ok {
				var zero B
				return zero, false, nil
			}
			q, err := conv.Convert(p)
			if err != nil {
				var zero B
				return zero, true, err
			}
			return to.Wrap(q), true, nil
		},
	}
}

// KeepCase re-tags an unchanged case.
func KeepCase[A, B, P any](from CaseOf[A, P], to CaseOf[B, P]) CaseMapping[A, B] {
	return MapCase(from, to, Identity[P]())
}

// EnumConverter converts values of the enum src by dispatching on their
// case. Every case of src needs a mapping; a value of an unmapped case
// fails with ConversionFailure. The result is the identity when A and B
// are the same type and every case of src is kept exactly once.
func EnumConverter[A, B any](src Enum[A], cases ...CaseMapping[A, B]) Converter[A, B] {
	if sameType[A, B]() && allIdentity(cases, func(c CaseMapping[A, B]) bool { return c.identity }) && coversCases(src, cases) {
		return Converter[A, B]{identity: true}
	}
	return Converter[A, B]{fn: func(v A) (B, error) {
		for _, c := range cases {
			b, ok, err := c.apply(v)
			if ok {
				return b, err
			}
		}
		var zero B
		return zero, ConversionFailure(nil, "%s: no case mapping for %s", src.name, describe(v))
	}}
}

// coversCases reports whether cases map every case of src exactly once.
func coversCases[A, B any](src Enum[A], cases []CaseMapping[A, B]) bool {
	if len(cases) != len(src.cases) {
		return false
	}
	seen := make(map[*caseKey]bool, len(cases))
	for _, c := range cases {
		if c.from == nil || seen[c.from] {
			return false
		}
		seen[c.from] = true
	}
	for _, v := range src.cases {
		if !seen[v.caseID()] {
			return false
		}
	}
	return true
}

func allIdentity[T any](items []T, isIdentity func(T) bool) bool {
	for _, it := range items {
		if !isIdentity(it) {
			return false
		}
	}
	return true
}

func describe(v any) string {
	if v == nil {
		return "nil value"
	}
	return fmt.Sprintf("value of type %T", v)
}
