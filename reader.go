package codec

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
)

type byteReader interface {
	io.Reader
	io.ByteReader
}

// Reader is the stream-backed FormatReader. It tracks the number of bytes
// consumed and latches the first error: once a read fails, every later
// read returns that same error.
type Reader struct {
	r     byteReader
	count int64 // total bytes read
	err   error // first error encountered
}

var _ FormatReader = (*Reader)(nil)

// NewReaderSize creates a Reader with a specified buffer size. Sources that
// already offer io.ByteReader are used directly; anything else is wrapped in
// a bufio.Reader, which may read ahead of the value being decoded.
func NewReaderSize(r io.Reader, size int) (*Reader, error) {
	if r == nil {
		return nil, ErrNilIO
	}

	switch reader := r.(type) {
	// A walk already in progress keeps its own cursor.
	case *Reader:
		return reader, nil
	case byteReader:
		return &Reader{r: reader}, nil
	}

	if size < 16 {
		size = 4096
	}
	return &Reader{r: bufio.NewReaderSize(r, size)}, nil
}

// NewReader creates a new Reader with a default buffer size.
func NewReader(r io.Reader) (*Reader, error) {
	return NewReaderSize(r, 0)
}

func (r *Reader) Count() int64 { return r.count }
func (r *Reader) Err() error   { return r.err }

// Result returns the total bytes read and the final error state.
func (r *Reader) Result() (int64, error) {
	return r.count, r.err
}

// setError records the first non-nil error.
func (r *Reader) setError(err error) {
	if r.err == nil && err != nil {
		r.err = err
	}
}

// fail latches a failed read of want bytes, translating a dry stream into EndOfStream.
func (r *Reader) fail(want int, err error) error {
	if isEOF(err) {
		err = EndOfStream(r.count, want, err)
	}
	r.setError(err)
	return r.err
}

// readFull is an internal helper to read an exact number of bytes into p.
func (r *Reader) readFull(p []byte) error {
	if r.err != nil {
		return r.err
	}
	n, err := io.ReadFull(r.r, p)
	r.count += int64(n)
	if err != nil {
		return r.fail(len(p), err)
	}
	return nil
}

func (r *Reader) ReadU8() (uint8, error) {
	if r.err != nil {
		return 0, r.err
	}
	b, err := r.r.ReadByte()
	if err != nil {
		return 0, r.fail(1, err)
	}
	r.count++
	return b, nil
}

func (r *Reader) ReadU16() (uint16, error) {
	var buf [2]byte
	if err := r.readFull(buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf[:]), nil
}

func (r *Reader) ReadU32() (uint32, error) {
	var buf [4]byte
	if err := r.readFull(buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func (r *Reader) ReadU64() (uint64, error) {
	var buf [8]byte
	if err := r.readFull(buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// ReadBytes reads exactly n bytes. Large requests are filled in chunks so a
// hostile length never allocates more memory than the stream delivers.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}
	if n < 0 {
		return nil, newError(KindInvalidValue, r.count, "negative byte count %d", n)
	}
	if n == 0 {
		return []byte{}, nil
	}

	if br, ok := r.r.(*BytesReader); ok && br.Available() < n {
		// Consume what is left so Count matches a streaming source.
		r.count += int64(br.Available())
		br.N = len(br.B)
		return nil, r.fail(n, io.ErrUnexpectedEOF)
	}

	if n <= BUFFER_SIZE {
		buf := make([]byte, n)
		if err := r.readFull(buf); err != nil {
			return nil, err
		}
		return buf, nil
	}

	buf := bytes.NewBuffer(make([]byte, 0, BUFFER_SIZE))
	read, err := io.CopyN(buf, r.r, int64(n))
	r.count += read
	if err != nil {
		return nil, r.fail(n, err)
	}
	return buf.Bytes(), nil
}

// Read implements io.Reader so a Reader can be handed to helpers that take
// a plain stream, such as Decode, without losing its position.
func (r *Reader) Read(p []byte) (int, error) {
	if r.err != nil {
		return 0, r.err
	}
	n, err := r.r.Read(p)
	r.count += int64(n)
	if err != nil && err != io.EOF {
		r.setError(err)
	}
	return n, err
}
