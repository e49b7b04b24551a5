package codec

import "io"

// Marshal encodes v with c into a new byte slice.
func Marshal[T any](c Codec[T], v T) ([]byte, error) {
	buf := getScratch()
	defer putScratch(buf)

	w := &BytesWriter{B: (*buf)[:0]}
	if err := c.Encode(w, v); err != nil {
		return nil, err
	}
	*buf = w.B
	out := make([]byte, len(w.B))
	copy(out, w.B)
	return out, nil
}

// Unmarshal decodes one value from data and adds a crucial check for
// unexpected trailing data.
func Unmarshal[T any](c Codec[T], data []byte) (T, error) {
	r := NewBytesReader(data)
	v, err := c.Decode(r)
	if err != nil {
		var zero T
		return zero, withOffset(err, int64(r.N))
	}
	// Ensure no unexpected trailing data remains.
	// This prevents parsing ambiguous or potentially malicious payloads.
	if r.Available() > 0 {
		if err := CheckBufferNotZeros(data[r.N:]); err != nil {
			var zero T
			return zero, err
		}
	}
	return v, nil
}

// Encode writes v to an io.Writer through a buffered Writer and flushes it.
// It returns the number of bytes written.
func Encode[T any](dst io.Writer, c Codec[T], v T) (int64, error) {
	w, err := NewWriter(dst)
	if err != nil {
		return 0, err
	}
	if err := c.Encode(w, v); err != nil {
		return w.Count(), err
	}
	return w.Result()
}

// Decode reads one value from an io.Reader. Failures carry the offset at
// which they were detected.
func Decode[T any](src io.Reader, c Codec[T]) (T, error) {
	r, err := NewReader(src)
	if err != nil {
		var zero T
		return zero, err
	}
	v, err := c.Decode(r)
	if err != nil {
		var zero T
		return zero, withOffset(err, r.Count())
	}
	return v, nil
}
