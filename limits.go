package codec

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// DefaultMaxLength bounds how many bytes or elements a single decoded
// length prefix may ask for.
const DefaultMaxLength = 1 << 28

// Limits bounds what a decode walk is willing to materialize. It guards
// against corrupt or hostile length prefixes; it is not a protocol limit.
type Limits struct {
	// MaxLength is the largest accepted string byte length or list element count.
	MaxLength uint64 `yaml:"max_length"`
	// MaxVLQBytes caps the encoded size of a single Nat or Int. Zero means unbounded.
	MaxVLQBytes int `yaml:"max_vlq_bytes"`
}

// DefaultLimits returns the limits used by the package-level codecs.
func DefaultLimits() Limits {
	return Limits{MaxLength: DefaultMaxLength}
}

// Validate reports whether the limits are usable.
func (l Limits) Validate() error {
	if l.MaxLength == 0 {
		return errors.New("codec: max_length must be positive")
	}
	if l.MaxVLQBytes < 0 {
		return fmt.Errorf("codec: max_vlq_bytes must not be negative, got %d", l.MaxVLQBytes)
	}
	return nil
}

// LoadLimits reads YAML limits from r. Keys that are absent keep their
// default values; unknown keys are rejected.
func LoadLimits(r io.Reader) (Limits, error) {
	l := DefaultLimits()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&l); err != nil && err != io.EOF {
		return Limits{}, fmt.Errorf("codec: parse limits: %w", err)
	}
	if err := l.Validate(); err != nil {
		return Limits{}, err
	}
	return l, nil
}
