package codec

import (
	"encoding/binary"
	"io"
)

// BytesReader is a FormatReader that reads from a byte slice in memory.
// It also implements io.Reader and io.ByteReader so it can back a Reader.
type BytesReader struct {
	B []byte // source slice
	N int    // current read position
}

var _ FormatReader = (*BytesReader)(nil)

// NewBytesReader creates a new BytesReader.
func NewBytesReader(b []byte) *BytesReader {
	return &BytesReader{B: b}
}

// Read implements the [io.Reader] interface.
func (r *BytesReader) Read(p []byte) (int, error) {
	if r.N >= len(r.B) {
		return 0, io.EOF
	}
	n := copy(p, r.B[r.N:])
	r.N += n
	return n, nil
}

// ReadByte implements the [io.ByteReader] interface.
func (r *BytesReader) ReadByte() (byte, error) {
	if r.N >= len(r.B) {
		return 0, io.EOF
	}
	b := r.B[r.N]
	r.N++
	return b, nil
}

// next returns the next n bytes without copying, or an EndOfStream error.
// A short read leaves the position at the end of the slice.
func (r *BytesReader) next(n int) ([]byte, error) {
	if r.Available() < n {
		offset := len(r.B)
		if r.N > offset {
			offset = r.N
		}
		r.N = offset
		return nil, EndOfStream(int64(offset), n, io.ErrUnexpectedEOF)
	}
	b := r.B[r.N : r.N+n]
	r.N += n
	return b, nil
}

func (r *BytesReader) ReadU8() (uint8, error) {
	b, err := r.next(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *BytesReader) ReadU16() (uint16, error) {
	b, err := r.next(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *BytesReader) ReadU32() (uint32, error) {
	b, err := r.next(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *BytesReader) ReadU64() (uint64, error) {
	b, err := r.next(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// ReadBytes returns a copy of the next n bytes. The length is checked
// against what remains before anything is allocated.
func (r *BytesReader) ReadBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, newError(KindInvalidValue, int64(r.N), "negative byte count %d", n)
	}
	b, err := r.next(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}

// Reset allows the underlying byte slice to be reused.
func (r *BytesReader) Reset() {
	r.N = 0
}

// Len returns the number of bytes read.
func (r *BytesReader) Len() int {
	return r.N
}

// Size returns the size of the underlying byte slice.
func (r *BytesReader) Size() int {
	return len(r.B)
}

// Available returns the number of bytes available for reading.
func (r *BytesReader) Available() int {
	length := len(r.B) - r.N
	if length <= 0 {
		return 0
	}
	return length
}
