package codec

import (
	"math/big"
	"math/bits"
)

// VLQ layout: the magnitude is split into 7-bit groups, least significant
// first. Every byte but the last carries 0x80. For signed values bit 6 of
// the terminal byte is the sign, so the terminal byte holds only 6 bits of
// magnitude; when the natural terminal group needs bit 6, an extra zero
// group is appended first.

const (
	vlqContinue = 0x80
	vlqSign     = 0x40
)

// appendVLQ appends the VLQ form of mag (and the sign when signed) to dst.
func appendVLQ(dst []byte, mag *big.Int, signed, neg bool) []byte {
	nbits := mag.BitLen()
	groups := (nbits + 6) / 7
	if groups == 0 {
		groups = 1
	}
	if signed && nbits > 0 && nbits%7 == 0 {
		groups++
	}

	for g := 0; g < groups; g++ {
		var b byte
		for j := 0; j < 7; j++ {
			b |= byte(mag.Bit(g*7+j)) << j
		}
		if g < groups-1 {
			b |= vlqContinue
		} else if signed && neg {
			b |= vlqSign
		}
		dst = append(dst, b)
	}
	return dst
}

// appendUvarint is the allocation-free unsigned path for machine-sized values.
func appendUvarint(dst []byte, v uint64) []byte {
	for v >= vlqContinue {
		dst = append(dst, byte(v)|vlqContinue)
		v >>= 7
	}
	return append(dst, byte(v))
}

// appendVarint is the allocation-free signed path for machine-sized values.
func appendVarint(dst []byte, v int64) []byte {
	neg := v < 0
	mag := uint64(v)
	if neg {
		mag = -mag
	}
	nbits := bits.Len64(mag)
	for nbits > 6 {
		dst = append(dst, byte(mag&0x7f)|vlqContinue)
		mag >>= 7
		nbits -= 7
	}
	b := byte(mag)
	if neg {
		b |= vlqSign
	}
	return append(dst, b)
}

// EncodeNat writes a non-negative integer in unsigned VLQ form.
func EncodeNat(w FormatWriter, v *big.Int) error {
	if v == nil {
		return newError(KindInvalidValue, -1, "nil Nat")
	}
	if v.Sign() < 0 {
		return newError(KindInvalidValue, -1, "negative value %s for Nat", v)
	}
	if v.IsUint64() {
		return EncodeNatUint64(w, v.Uint64())
	}
	var scratch [32]byte
	return w.WriteBytes(appendVLQ(scratch[:0], v, false, false))
}

// EncodeInt writes a signed integer in signed VLQ form.
func EncodeInt(w FormatWriter, v *big.Int) error {
	if v == nil {
		return newError(KindInvalidValue, -1, "nil Int")
	}
	if v.IsInt64() {
		return EncodeIntInt64(w, v.Int64())
	}
	var scratch [32]byte
	mag := new(big.Int).Abs(v)
	return w.WriteBytes(appendVLQ(scratch[:0], mag, true, v.Sign() < 0))
}

// EncodeNatUint64 writes v in unsigned VLQ form.
func EncodeNatUint64(w FormatWriter, v uint64) error {
	var scratch [10]byte
	return w.WriteBytes(appendUvarint(scratch[:0], v))
}

// EncodeIntInt64 writes v in signed VLQ form.
func EncodeIntInt64(w FormatWriter, v int64) error {
	var scratch [11]byte
	return w.WriteBytes(appendVarint(scratch[:0], v))
}

// readGroups collects the raw bytes of one VLQ, terminal byte last.
// maxBytes <= 0 means no ceiling.
func readGroups(r FormatReader, maxBytes int) ([]byte, error) {
	var scratch [16]byte
	groups := scratch[:0]
	for {
		if maxBytes > 0 && len(groups) >= maxBytes {
			return nil, newError(KindLengthTooLarge, -1, "VLQ longer than %d bytes", maxBytes)
		}
		b, err := r.ReadU8()
		if err != nil {
			return nil, err
		}
		groups = append(groups, b)
		if b&vlqContinue == 0 {
			return groups, nil
		}
	}
}

// assemble rebuilds the magnitude from groups, most significant first.
func assemble(groups []byte, signed bool) (*big.Int, bool) {
	last := groups[len(groups)-1]
	neg := false
	top := last & 0x7f
	if signed {
		neg = last&vlqSign != 0
		top = last & 0x3f
	}

	n := new(big.Int).SetUint64(uint64(top))
	var g big.Int
	for i := len(groups) - 2; i >= 0; i-- {
		n.Lsh(n, 7)
		n.Or(n, g.SetUint64(uint64(groups[i]&0x7f)))
	}
	return n, neg
}

// DecodeNat reads an unsigned VLQ of any magnitude.
func DecodeNat(r FormatReader) (*big.Int, error) {
	return decodeNat(r, 0)
}

func decodeNat(r FormatReader, maxBytes int) (*big.Int, error) {
	groups, err := readGroups(r, maxBytes)
	if err != nil {
		return nil, err
	}
	n, _ := assemble(groups, false)
	return n, nil
}

// DecodeInt reads a signed VLQ of any magnitude.
func DecodeInt(r FormatReader) (*big.Int, error) {
	return decodeInt(r, 0)
}

func decodeInt(r FormatReader, maxBytes int) (*big.Int, error) {
	groups, err := readGroups(r, maxBytes)
	if err != nil {
		return nil, err
	}
	n, neg := assemble(groups, true)
	if neg {
		n.Neg(n)
	}
	return n, nil
}

// DecodeLength reads an unsigned VLQ used as a length, count or tag, and
// fails with LengthTooLarge as soon as the value provably exceeds max.
// Nothing is allocated on behalf of the decoded value.
func DecodeLength(r FormatReader, max uint64) (uint64, error) {
	var v uint64
	var shift uint
	for {
		b, err := r.ReadU8()
		if err != nil {
			return 0, err
		}
		g := uint64(b & 0x7f)
		if g != 0 {
			if shift >= 64 || g>>(64-shift) != 0 {
				return 0, newError(KindLengthTooLarge, -1, "length exceeds 64 bits")
			}
			v |= g << shift
			if v > max {
				return 0, newError(KindLengthTooLarge, -1, "length %d exceeds limit %d", v, max)
			}
		}
		if b&vlqContinue == 0 {
			return v, nil
		}
		shift += 7
	}
}
