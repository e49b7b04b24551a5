// Package ffi moves strings and byte buffers across the flat linear memory
// of a WebAssembly guest, following an explicit allocate/free protocol.
//
// Layouts, all little-endian with 4-byte pointers:
//
//	string:  {length u32, bytes[length]}
//	result:  {status u32, ptr u32}    status 0: ptr is the payload, else an error string
//	outputs: {count u32, {name ptr, length u32, data ptr}[count]}
package ffi

import (
	"context"
	"errors"
	"fmt"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	codec "github.com/oy3o/vcodec"
)

// PtrSize is the width of a guest pointer and of a length word.
const PtrSize = 4

// ResultSize is the size of a result record.
const ResultSize = 2 * PtrSize

// ErrOutOfBounds is returned when a pointer or length falls outside guest memory.
var ErrOutOfBounds = errors.New("ffi: access outside guest memory")

// GuestError is a failure reported by the guest through a result record.
type GuestError struct {
	Message string
}

func (e *GuestError) Error() string { return "ffi: guest error: " + e.Message }

// Host marshals values in and out of one guest memory.
type Host struct {
	mem   api.Memory
	alloc Allocator
}

// NewHost returns a Host over mem that allocates through alloc.
func NewHost(mem api.Memory, alloc Allocator) *Host {
	return &Host{mem: mem, alloc: alloc}
}

// Memory returns the guest memory.
func (h *Host) Memory() api.Memory { return h.mem }

// Alloc allocates size bytes of guest memory.
func (h *Host) Alloc(ctx context.Context, size uint32) (uint32, error) {
	return h.alloc.Alloc(ctx, size)
}

// Free releases a block returned by Alloc.
func (h *Host) Free(ctx context.Context, size, ptr uint32) error {
	return h.alloc.Free(ctx, size, ptr)
}

func (h *Host) readU32(ptr uint32) (uint32, error) {
	v, ok := h.mem.ReadUint32Le(ptr)
	if !ok {
		return 0, fmt.Errorf("%w: u32 at %#x", ErrOutOfBounds, ptr)
	}
	return v, nil
}

func (h *Host) writeU32(ptr, v uint32) error {
	if !h.mem.WriteUint32Le(ptr, v) {
		return fmt.Errorf("%w: u32 at %#x", ErrOutOfBounds, ptr)
	}
	return nil
}

// Bytes copies length bytes at ptr out of guest memory.
func (h *Host) Bytes(ptr, length uint32) ([]byte, error) {
	view, ok := h.mem.Read(ptr, length)
	if !ok {
		return nil, fmt.Errorf("%w: %d bytes at %#x", ErrOutOfBounds, length, ptr)
	}
	out := make([]byte, len(view))
	copy(out, view)
	return out, nil
}

// PutBytes copies b into a fresh guest block and returns its pointer.
func (h *Host) PutBytes(ctx context.Context, b []byte) (uint32, error) {
	ptr, err := h.alloc.Alloc(ctx, uint32(len(b)))
	if err != nil {
		return 0, err
	}
	if !h.mem.Write(ptr, b) {
		h.release(ctx, uint32(len(b)), ptr)
		return 0, fmt.Errorf("%w: %d bytes at %#x", ErrOutOfBounds, len(b), ptr)
	}
	return ptr, nil
}

// PutString writes s as a length-prefixed guest string.
func (h *Host) PutString(ctx context.Context, s string) (uint32, error) {
	size := uint32(PtrSize + len(s))
	ptr, err := h.alloc.Alloc(ctx, size)
	if err != nil {
		return 0, err
	}
	if err := h.writeU32(ptr, uint32(len(s))); err != nil {
		h.release(ctx, size, ptr)
		return 0, err
	}
	if !h.mem.Write(ptr+PtrSize, []byte(s)) {
		h.release(ctx, size, ptr)
		return 0, fmt.Errorf("%w: string at %#x", ErrOutOfBounds, ptr)
	}
	return ptr, nil
}

// String reads the guest string at ptr.
func (h *Host) String(ptr uint32) (string, error) {
	n, err := h.readU32(ptr)
	if err != nil {
		return "", err
	}
	b, err := h.Bytes(ptr+PtrSize, n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// FreeString releases the guest string at ptr.
func (h *Host) FreeString(ctx context.Context, ptr uint32) error {
	n, err := h.readU32(ptr)
	if err != nil {
		return err
	}
	return h.alloc.Free(ctx, n+PtrSize, ptr)
}

// TakeString reads and releases the guest string at ptr.
func (h *Host) TakeString(ctx context.Context, ptr uint32) (string, error) {
	s, err := h.String(ptr)
	if err != nil {
		return "", err
	}
	return s, h.FreeString(ctx, ptr)
}

// PutStrings writes each string and an array of their pointers. The
// returned release function frees everything that was allocated.
func (h *Host) PutStrings(ctx context.Context, ss []string) (uint32, func() error, error) {
	arraySize := uint32(len(ss) * PtrSize)
	arr, err := h.alloc.Alloc(ctx, arraySize)
	if err != nil {
		return 0, nil, err
	}

	ptrs := make([]uint32, 0, len(ss))
	release := func() error {
		var errs []error
		for _, p := range ptrs {
			errs = append(errs, h.FreeString(ctx, p))
		}
		errs = append(errs, h.alloc.Free(ctx, arraySize, arr))
		return errors.Join(errs...)
	}

	for i, s := range ss {
		p, err := h.PutString(ctx, s)
		if err == nil {
			ptrs = append(ptrs, p)
			err = h.writeU32(arr+uint32(i*PtrSize), p)
		}
		if err != nil {
			if rerr := release(); rerr != nil {
				codec.Logger().Warn("ffi: release after failed string array", zap.Error(rerr))
			}
			return 0, nil, err
		}
	}
	return arr, release, nil
}

// NewResult allocates a zeroed result record for the guest to fill in.
func (h *Host) NewResult(ctx context.Context) (uint32, error) {
	ptr, err := h.alloc.Alloc(ctx, ResultSize)
	if err != nil {
		return 0, err
	}
	if !h.mem.Write(ptr, make([]byte, ResultSize)) {
		h.release(ctx, ResultSize, ptr)
		return 0, fmt.Errorf("%w: result at %#x", ErrOutOfBounds, ptr)
	}
	return ptr, nil
}

// TakeResult reads the result record at ptr and frees it. On success it
// returns the payload pointer; on failure it takes the error string and
// returns it as a *GuestError.
func (h *Host) TakeResult(ctx context.Context, ptr uint32) (uint32, error) {
	status, err := h.readU32(ptr)
	if err != nil {
		return 0, err
	}
	payload, err := h.readU32(ptr + PtrSize)
	if err != nil {
		return 0, err
	}
	if err := h.alloc.Free(ctx, ResultSize, ptr); err != nil {
		return 0, err
	}

	if status == 0 {
		return payload, nil
	}
	msg, err := h.TakeString(ctx, payload)
	if err != nil {
		return 0, err
	}
	return 0, &GuestError{Message: msg}
}

// TakeOutputs reads the output table at ptr and frees every name, every
// buffer and the table itself exactly once.
func (h *Host) TakeOutputs(ctx context.Context, ptr uint32) (map[string][]byte, error) {
	count, err := h.readU32(ptr)
	if err != nil {
		return nil, err
	}
	tableSize := uint64(count)*3*PtrSize + PtrSize
	if tableSize > uint64(h.mem.Size()) {
		return nil, fmt.Errorf("%w: output table of %d entries", ErrOutOfBounds, count)
	}

	out := make(map[string][]byte, count)
	var errs []error
	for i := uint32(0); i < count; i++ {
		entry := ptr + PtrSize + i*3*PtrSize
		namePtr, err1 := h.readU32(entry)
		length, err2 := h.readU32(entry + PtrSize)
		dataPtr, err3 := h.readU32(entry + 2*PtrSize)
		if err := errors.Join(err1, err2, err3); err != nil {
			errs = append(errs, err)
			continue
		}

		name, err := h.TakeString(ctx, namePtr)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		data, err := h.Bytes(dataPtr, length)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := h.alloc.Free(ctx, length, dataPtr); err != nil {
			errs = append(errs, err)
		}
		out[name] = data
	}

	if err := h.alloc.Free(ctx, uint32(tableSize), ptr); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return out, nil
}

// BufferReader exposes a copy of length bytes at ptr as a codec reader.
func (h *Host) BufferReader(ptr, length uint32) (*codec.BytesReader, error) {
	b, err := h.Bytes(ptr, length)
	if err != nil {
		return nil, err
	}
	return codec.NewBytesReader(b), nil
}

// PutValue encodes v with c into a fresh guest buffer and returns its
// pointer and length.
func PutValue[T any](ctx context.Context, h *Host, c codec.Codec[T], v T) (uint32, uint32, error) {
	data, err := codec.Marshal(c, v)
	if err != nil {
		return 0, 0, err
	}
	ptr, err := h.PutBytes(ctx, data)
	if err != nil {
		return 0, 0, err
	}
	return ptr, uint32(len(data)), nil
}

// TakeValue decodes a T from the guest buffer at ptr and frees it.
func TakeValue[T any](ctx context.Context, h *Host, c codec.Codec[T], ptr, length uint32) (T, error) {
	var zero T
	r, err := h.BufferReader(ptr, length)
	if err != nil {
		return zero, err
	}
	if err := h.alloc.Free(ctx, length, ptr); err != nil {
		return zero, err
	}
	v, err := c.Decode(r)
	if err != nil {
		return zero, err
	}
	if err := codec.CheckBufferNotZeros(r.B[r.N:]); err != nil {
		return zero, err
	}
	return v, nil
}

// release frees a block on an error path where the original error wins.
func (h *Host) release(ctx context.Context, size, ptr uint32) {
	if err := h.alloc.Free(ctx, size, ptr); err != nil {
		codec.Logger().Warn("ffi: free failed", zap.Uint32("ptr", ptr), zap.Uint32("size", size), zap.Error(err))
	}
}
