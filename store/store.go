// Package store persists values of versioned type families in Pebble.
//
// Each record is the Nat version it was written under followed by that
// version's encoding. Reads decode the stored version and upgrade the
// value to the latest version of its family, so old records stay readable
// after the schema moves on.
package store

import (
	"errors"
	"fmt"
	"math"

	"github.com/cockroachdb/pebble"
	"go.uber.org/zap"

	codec "github.com/oy3o/vcodec"
)

var (
	// ErrNotFound is returned when no record exists for a key.
	ErrNotFound = errors.New("store: not found")

	// ErrUnknownFamily is returned for a family missing from the registry.
	ErrUnknownFamily = errors.New("store: unknown family")

	// ErrNewerVersion is returned for a record written under a version this
	// process does not know yet.
	ErrNewerVersion = errors.New("store: record version is newer than the family")
)

// Options configures a Store.
type Options struct {
	// Sync makes every write durable before it returns.
	Sync bool
}

// Store is a Pebble database of versioned records.
type Store struct {
	db       *pebble.DB
	families *codec.Registry
	wo       *pebble.WriteOptions
}

// Open opens or creates the database in dir. Records can only be read and
// written for families present in reg.
func Open(dir string, reg *codec.Registry, opts Options) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", dir, err)
	}
	wo := pebble.NoSync
	if opts.Sync {
		wo = pebble.Sync
	}
	return &Store{db: db, families: reg, wo: wo}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) family(name string) (*codec.Family, error) {
	f, ok := s.families.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFamily, name)
	}
	return f, nil
}

// recordKey prefixes key with the length-prefixed family name so keys of
// different families never collide.
func recordKey(family string, key []byte) []byte {
	w := codec.NewBytesWriter(make([]byte, 0, len(family)+len(key)+2))
	_ = codec.String.Encode(w, family)
	_ = w.WriteBytes(key)
	return w.Bytes()
}

// Put stores v under key, encoded as the given version of family.
func (s *Store) Put(family string, key []byte, version int, v any) error {
	f, err := s.family(family)
	if err != nil {
		return err
	}
	w := codec.NewBytesWriter(nil)
	if err := codec.EncodeNatUint64(w, uint64(version)); err != nil {
		return err
	}
	if err := f.Encode(w, version, v); err != nil {
		return fmt.Errorf("store: encode %s v%d: %w", family, version, err)
	}
	return s.db.Set(recordKey(family, key), w.Bytes(), s.wo)
}

// PutLatest stores v under key as the latest version of family.
func (s *Store) PutLatest(family string, key []byte, v any) error {
	f, err := s.family(family)
	if err != nil {
		return err
	}
	return s.Put(family, key, f.Latest(), v)
}

// raw returns a copy of the stored record.
func (s *Store) raw(family string, key []byte) ([]byte, error) {
	data, closer, err := s.db.Get(recordKey(family, key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s/%x", ErrNotFound, family, key)
	}
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := closer.Close(); err != nil {
			codec.Logger().Warn("store: close value", zap.String("family", family), zap.Error(err))
		}
	}()
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// GetStored returns the record under key as it was written, without upgrading.
func (s *Store) GetStored(family string, key []byte) (int, any, error) {
	f, err := s.family(family)
	if err != nil {
		return 0, nil, err
	}
	data, err := s.raw(family, key)
	if err != nil {
		return 0, nil, err
	}

	r := codec.NewBytesReader(data)
	version, err := codec.DecodeLength(r, math.MaxInt32)
	if err != nil {
		return 0, nil, fmt.Errorf("store: %s record version: %w", family, err)
	}
	if version == 0 || version > uint64(f.Latest()) {
		return 0, nil, fmt.Errorf("%w: %s v%d, latest is v%d", ErrNewerVersion, family, version, f.Latest())
	}
	v, err := f.Decode(r, int(version))
	if err != nil {
		return 0, nil, fmt.Errorf("store: decode %s v%d: %w", family, version, err)
	}
	if err := codec.CheckBufferNotZeros(data[r.Len():]); err != nil {
		return 0, nil, err
	}
	return int(version), v, nil
}

// Get returns the record under key upgraded to the latest version of family.
func (s *Store) Get(family string, key []byte) (any, error) {
	version, v, err := s.GetStored(family, key)
	if err != nil {
		return nil, err
	}
	f, _ := s.family(family)
	return f.Upgrade(v, version, f.Latest())
}

// GetAs is Get with the result typed as the latest version's Go type.
func GetAs[T any](s *Store, family string, key []byte) (T, error) {
	var zero T
	v, err := s.Get(family, key)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("store: %s latest version is %T, not %T", family, v, zero)
	}
	return t, nil
}

// Migrate rewrites the record under key at the latest version. It reports
// whether anything was rewritten.
func (s *Store) Migrate(family string, key []byte) (bool, error) {
	version, v, err := s.GetStored(family, key)
	if err != nil {
		return false, err
	}
	f, _ := s.family(family)
	if version == f.Latest() {
		return false, nil
	}
	up, err := f.Upgrade(v, version, f.Latest())
	if err != nil {
		return false, err
	}
	if err := s.Put(family, key, f.Latest(), up); err != nil {
		return false, err
	}
	codec.Logger().Info("store: record migrated",
		zap.String("family", family),
		zap.Int("from", version),
		zap.Int("to", f.Latest()))
	return true, nil
}

// Delete removes the record under key. Deleting a missing key is not an error.
func (s *Store) Delete(family string, key []byte) error {
	return s.db.Delete(recordKey(family, key), s.wo)
}
