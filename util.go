package codec

import "fmt"

// BUFFER_SIZE is the default size of stream buffers and pooled scratch space.
const BUFFER_SIZE = 4096

// MAX_PADDING defines the maximum number of trailing bytes to check.
// Anything larger is considered a protocol error.
const MAX_PADDING = 1024 // 1KB

// CheckBufferNotZeros verifies that trailing bytes left after a decode are
// all zero. A non-zero tail usually means the data was written under a
// different version than the codec used to read it.
func CheckBufferNotZeros(trailing []byte) error {
	if len(trailing) > MAX_PADDING {
		return fmt.Errorf("%w: exceeds maximum expected size of %d bytes", ErrTrailingData, MAX_PADDING)
	}
	for i, b := range trailing {
		if b != 0 {
			return fmt.Errorf("%w: found non-zero byte 0x%02x at offset %d", ErrTrailingData, b, i)
		}
	}
	return nil
}
