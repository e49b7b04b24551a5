package codec

import "encoding/binary"

// BytesWriter is a FormatWriter that appends to an in-memory byte slice,
// growing it as needed. It also implements io.Writer.
type BytesWriter struct {
	B []byte // written data
}

var _ FormatWriter = (*BytesWriter)(nil)

// NewBytesWriter creates a new BytesWriter appending to p[:0].
func NewBytesWriter(p []byte) *BytesWriter {
	return &BytesWriter{B: p[:0]}
}

// Write implements the io.Writer interface.
func (w *BytesWriter) Write(p []byte) (int, error) {
	w.B = append(w.B, p...)
	return len(p), nil
}

// WriteByte implements the io.ByteWriter interface for efficiency.
func (w *BytesWriter) WriteByte(c byte) error {
	w.B = append(w.B, c)
	return nil
}

func (w *BytesWriter) WriteU8(v uint8) error {
	w.B = append(w.B, v)
	return nil
}

func (w *BytesWriter) WriteU16(v uint16) error {
	w.B = binary.LittleEndian.AppendUint16(w.B, v)
	return nil
}

func (w *BytesWriter) WriteU32(v uint32) error {
	w.B = binary.LittleEndian.AppendUint32(w.B, v)
	return nil
}

func (w *BytesWriter) WriteU64(v uint64) error {
	w.B = binary.LittleEndian.AppendUint64(w.B, v)
	return nil
}

func (w *BytesWriter) WriteBytes(p []byte) error {
	w.B = append(w.B, p...)
	return nil
}

// Flush do nothing
func (w *BytesWriter) Flush() error { return nil }

// Reset allows the underlying byte slice to be reused.
func (w *BytesWriter) Reset() { w.B = w.B[:0] }

// Len returns the number of bytes written.
func (w *BytesWriter) Len() int { return len(w.B) }

// Bytes returns a slice view of the written data.
func (w *BytesWriter) Bytes() []byte { return w.B }
