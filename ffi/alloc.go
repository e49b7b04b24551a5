package ffi

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tetratelabs/wazero/api"
)

// Allocator hands out blocks of guest memory. Free must be called with
// the same size the block was allocated with.
type Allocator interface {
	Alloc(ctx context.Context, size uint32) (uint32, error)
	Free(ctx context.Context, size, ptr uint32) error
}

// ModuleAllocator calls allocation functions exported by a guest module,
// with the signatures alloc(size) -> ptr and free(size, ptr).
type ModuleAllocator struct {
	alloc api.Function
	free  api.Function
}

// Default export names of the guest allocation functions.
const (
	DefaultAllocExport = "verilization_mem_alloc"
	DefaultFreeExport  = "verilization_mem_free"
)

// NewModuleAllocator wraps the given guest functions.
func NewModuleAllocator(alloc, free api.Function) *ModuleAllocator {
	return &ModuleAllocator{alloc: alloc, free: free}
}

// ExportedAllocator looks up allocName and freeName among the exports of mod.
func ExportedAllocator(mod api.Module, allocName, freeName string) (*ModuleAllocator, error) {
	alloc := mod.ExportedFunction(allocName)
	if alloc == nil {
		return nil, fmt.Errorf("ffi: module %s does not export %s", mod.Name(), allocName)
	}
	free := mod.ExportedFunction(freeName)
	if free == nil {
		return nil, fmt.Errorf("ffi: module %s does not export %s", mod.Name(), freeName)
	}
	return NewModuleAllocator(alloc, free), nil
}

func (a *ModuleAllocator) Alloc(ctx context.Context, size uint32) (uint32, error) {
	res, err := a.alloc.Call(ctx, api.EncodeU32(size))
	if err != nil {
		return 0, fmt.Errorf("ffi: alloc %d bytes: %w", size, err)
	}
	if len(res) != 1 {
		return 0, fmt.Errorf("ffi: alloc returned %d values", len(res))
	}
	ptr := api.DecodeU32(res[0])
	if ptr == 0 && size > 0 {
		return 0, fmt.Errorf("ffi: alloc %d bytes: %w", size, ErrOutOfMemory)
	}
	return ptr, nil
}

func (a *ModuleAllocator) Free(ctx context.Context, size, ptr uint32) error {
	if _, err := a.free.Call(ctx, api.EncodeU32(size), api.EncodeU32(ptr)); err != nil {
		return fmt.Errorf("ffi: free %d bytes at %#x: %w", size, ptr, err)
	}
	return nil
}

var (
	// ErrOutOfMemory is returned when an allocator cannot satisfy a request.
	ErrOutOfMemory = errors.New("ffi: out of guest memory")

	// ErrBadFree is returned when a block is freed twice or with the wrong size.
	ErrBadFree = errors.New("ffi: free of unknown block")
)

// BumpAllocator carves blocks from a fixed region of guest memory and
// never reuses them. It tracks live blocks so mismatched or repeated
// frees are reported. It suits hosts whose guest exports no allocator,
// and tests.
type BumpAllocator struct {
	mu    sync.Mutex
	next  uint32
	limit uint32
	live  map[uint32]uint32
}

// NewBumpAllocator allocates from [base, limit). base must be nonzero so
// that no block lives at the null pointer.
func NewBumpAllocator(base, limit uint32) *BumpAllocator {
	return &BumpAllocator{next: base, limit: limit, live: make(map[uint32]uint32)}
}

func (a *BumpAllocator) Alloc(_ context.Context, size uint32) (uint32, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	ptr := alignUp(a.next, PtrSize)
	if ptr < a.next || uint64(ptr)+uint64(size) > uint64(a.limit) {
		return 0, ErrOutOfMemory
	}
	a.next = ptr + size
	if size == 0 {
		// Keep zero-sized blocks distinct.
		a.next++
	}
	a.live[ptr] = size
	return ptr, nil
}

func (a *BumpAllocator) Free(_ context.Context, size, ptr uint32) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	got, ok := a.live[ptr]
	if !ok {
		return fmt.Errorf("%w: %#x", ErrBadFree, ptr)
	}
	if got != size {
		return fmt.Errorf("%w: %#x allocated with %d bytes, freed with %d", ErrBadFree, ptr, got, size)
	}
	delete(a.live, ptr)
	return nil
}

// Live returns the number of blocks not yet freed.
func (a *BumpAllocator) Live() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.live)
}

func alignUp(v, align uint32) uint32 {
	return (v + align - 1) &^ (align - 1)
}
