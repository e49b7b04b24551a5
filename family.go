package codec

import (
	"errors"
	"fmt"
	"sort"

	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"
)

// familyVersion is one type-erased version of a Family.
type familyVersion struct {
	decode  func(FormatReader) (any, error)
	encode  func(FormatWriter, any) error
	upgrade func(any) (any, error) // from the previous version; nil for V1
	typeOf  any                    // (*T)(nil), used to match converter input types
	typ     string
	ident   bool
}

func newFamilyVersion[T any](c Codec[T]) familyVersion {
	typ := fmt.Sprintf("%T", (*T)(nil))[1:]
	return familyVersion{
		decode: func(r FormatReader) (any, error) { return c.Decode(r) },
		encode: func(w FormatWriter, v any) error {
			t, ok := v.(T)
			if !ok && v != nil {
				return newError(KindInvalidValue, -1, "expected %s, got %T", typ, v)
			}
			return c.Encode(w, t)
		},
		typeOf: (*T)(nil),
		typ:    typ,
	}
}

// Family is the runtime form of a versioned type: one codec per version
// V1..Vn and, for every version after the first, a converter from the
// version before it. Versions are numbered from 1.
//
// A Family is built once and is read-only afterwards; it is safe for
// concurrent use once registration is finished.
type Family struct {
	name     string
	versions []familyVersion
}

// NewFamily starts a family whose first version is encoded by v1.
func NewFamily[T any](name string, v1 Codec[T]) *Family {
	f := &Family{name: name, versions: []familyVersion{newFamilyVersion(v1)}}
	Logger().Debug("family created", zap.String("family", name), zap.String("type", f.versions[0].typ))
	return f
}

// AddVersion appends the next version of f, encoded by c and reached from
// the current latest version through conv.
func AddVersion[Prev, T any](f *Family, c Codec[T], conv Converter[Prev, T]) error {
	last := f.versions[len(f.versions)-1]
	if _, ok := last.typeOf.(*Prev); !ok {
		return fmt.Errorf("codec: family %s: converter input %T does not match version %d type %s",
			f.name, (*Prev)(nil), len(f.versions), last.typ)
	}
	v := newFamilyVersion(c)
	v.ident = conv.IsIdentity()
	v.upgrade = func(src any) (any, error) {
		p, ok := src.(Prev)
		if !ok && src != nil {
			return nil, newError(KindInvalidValue, -1, "expected %s, got %T", last.typ, src)
		}
		return conv.Convert(p)
	}
	f.versions = append(f.versions, v)
	Logger().Debug("family version added",
		zap.String("family", f.name),
		zap.Int("version", len(f.versions)),
		zap.Bool("identity", v.ident))
	return nil
}

// MustAddVersion is like AddVersion but panics on error. It is meant for
// package-level family construction.
func MustAddVersion[Prev, T any](f *Family, c Codec[T], conv Converter[Prev, T]) *Family {
	if err := AddVersion(f, c, conv); err != nil {
		panic(err)
	}
	return f
}

// Name returns the family name.
func (f *Family) Name() string { return f.name }

// Latest returns the highest version number.
func (f *Family) Latest() int { return len(f.versions) }

func (f *Family) version(v int) (familyVersion, error) {
	if v < 1 || v > len(f.versions) {
		return familyVersion{}, newError(KindInvalidValue, -1, "family %s has no version %d", f.name, v)
	}
	return f.versions[v-1], nil
}

// Decode reads a value encoded under the given version.
func (f *Family) Decode(r FormatReader, version int) (any, error) {
	fv, err := f.version(version)
	if err != nil {
		return nil, err
	}
	return fv.decode(r)
}

// Encode writes v, which must be of the given version's type.
func (f *Family) Encode(w FormatWriter, version int, v any) error {
	fv, err := f.version(version)
	if err != nil {
		return err
	}
	return fv.encode(w, v)
}

// Upgrade converts v from version from to version to, applying each
// converter on the way in order.
func (f *Family) Upgrade(v any, from, to int) (any, error) {
	if _, err := f.version(from); err != nil {
		return nil, err
	}
	if _, err := f.version(to); err != nil {
		return nil, err
	}
	if to < from {
		return nil, newError(KindInvalidValue, -1, "family %s: cannot downgrade from version %d to %d", f.name, from, to)
	}
	for i := from; i < to; i++ {
		next := f.versions[i]
		if next.ident {
			continue
		}
		var err error
		if v, err = next.upgrade(v); err != nil {
			return nil, fmt.Errorf("family %s: upgrade to version %d: %w", f.name, i+1, err)
		}
	}
	if to > from {
		Logger().Debug("value upgraded", zap.String("family", f.name), zap.Int("from", from), zap.Int("to", to))
	}
	return v, nil
}

// DecodeLatest reads a value encoded under version and upgrades it to the
// latest version.
func (f *Family) DecodeLatest(r FormatReader, version int) (any, error) {
	v, err := f.Decode(r, version)
	if err != nil {
		return nil, err
	}
	return f.Upgrade(v, version, f.Latest())
}

// DecodeAs reads a value encoded under version, upgrades it to the latest
// version and returns it as T.
func DecodeAs[T any](f *Family, r FormatReader, version int) (T, error) {
	var zero T
	v, err := f.DecodeLatest(r, version)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok && v != nil {
		return zero, newError(KindInvalidValue, -1, "family %s: latest version is %T, not %T", f.name, v, zero)
	}
	return t, nil
}

// ErrFamilyExists is returned when a family name is registered twice.
var ErrFamilyExists = errors.New("codec: family already registered")

// Registry indexes families by name.
type Registry struct {
	families *xsync.Map[string, *Family]
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{families: xsync.NewMap[string, *Family]()}
}

// Register adds f under its name.
func (r *Registry) Register(f *Family) error {
	if _, loaded := r.families.LoadOrStore(f.name, f); loaded {
		return fmt.Errorf("%w: %s", ErrFamilyExists, f.name)
	}
	Logger().Debug("family registered", zap.String("family", f.name), zap.Int("versions", f.Latest()))
	return nil
}

// Lookup returns the family registered under name.
func (r *Registry) Lookup(name string) (*Family, bool) {
	return r.families.Load(name)
}

// Names returns the registered family names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, r.families.Size())
	r.families.Range(func(name string, _ *Family) bool {
		names = append(names, name)
		return true
	})
	sort.Strings(names)
	return names
}
