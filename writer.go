package codec

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
)

type flushWriter interface {
	io.Writer
	Flush() error
}

// Writer is the stream-backed FormatWriter. It buffers writes to an
// arbitrary io.Writer and tracks the first error that occurs; after an
// error every later write is a no-op returning that error.
type Writer struct {
	w     flushWriter
	count int64 // total bytes written
	err   error // first error encountered. Subsequent writes become no-ops.
	depth int
}

var _ FormatWriter = (*Writer)(nil)

// NewWriterSize creates a new Writer with a specified buffer size.
func NewWriterSize(w io.Writer, size int) (*Writer, error) {
	if w == nil {
		return nil, ErrNilIO
	}

	switch bw := w.(type) {
	// Nested walks share the outer buffer; only the outermost writer flushes.
	case *Writer:
		return &Writer{w: bw.w, depth: bw.depth + 1}, nil
	// The target is already a buffer, so there is nothing to gain from bufio.
	case *BytesWriter:
		return &Writer{w: bw}, nil
	case *bytes.Buffer:
		return &Writer{w: bufferAdapter{bw}}, nil
	case *bufio.Writer:
		return &Writer{w: bw, depth: 1}, nil
	}

	if size <= 0 {
		size = 4096
	}
	return &Writer{w: bufio.NewWriterSize(w, size)}, nil
}

// NewWriter creates a new Writer with a default buffer size.
func NewWriter(w io.Writer) (*Writer, error) {
	return NewWriterSize(w, 0)
}

type bufferAdapter struct{ *bytes.Buffer }

func (bufferAdapter) Flush() error { return nil }

func (w *Writer) Count() int64 { return w.count }
func (w *Writer) Err() error   { return w.err }

// setError records the first non-nil error.
// This preserves the root cause of a failure chain instead of a later,
// less relevant error.
func (w *Writer) setError(err error) {
	if w.err == nil && err != nil {
		w.err = err
	}
}

// Result flushes the buffer and returns the final count and error state.
func (w *Writer) Result() (int64, error) {
	w.Flush()
	return w.count, w.err
}

// Flush writes any buffered data to the underlying io.Writer.
func (w *Writer) Flush() error {
	// Only the outermost writer should be responsible for the final flush.
	if w.depth > 0 || w.err != nil {
		return w.err
	}
	w.setError(w.w.Flush())
	return w.err
}

// WriteBytes writes p in full.
func (w *Writer) WriteBytes(p []byte) error {
	if w.err != nil || len(p) == 0 {
		return w.err
	}
	n, err := w.w.Write(p)
	if n < 0 || n > len(p) {
		w.setError(ErrInvalidWrite)
		return w.err
	}
	w.count += int64(n)
	if err == nil && n < len(p) {
		err = io.ErrShortWrite
	}
	w.setError(err)
	return w.err
}

func (w *Writer) WriteU8(v uint8) error {
	return w.WriteBytes([]byte{v})
}

func (w *Writer) WriteU16(v uint16) error {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	return w.WriteBytes(buf[:])
}

func (w *Writer) WriteU32(v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return w.WriteBytes(buf[:])
}

func (w *Writer) WriteU64(v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return w.WriteBytes(buf[:])
}

// Write implements io.Writer so nested encoders can share this buffer.
func (w *Writer) Write(p []byte) (int, error) {
	before := w.count
	err := w.WriteBytes(p)
	return int(w.count - before), err
}
