package ffi

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	codec "github.com/oy3o/vcodec"
)

// memoryModule is (module (memory (export "memory") 1)).
var memoryModule = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x05, 0x03, 0x01, 0x00, 0x01,
	0x07, 0x0a, 0x01, 0x06, 'm', 'e', 'm', 'o', 'r', 'y', 0x02, 0x00,
}

const pageSize = 1 << 16

type HostTestSuite struct {
	suite.Suite
	ctx   context.Context
	rt    wazero.Runtime
	mem   api.Memory
	alloc *BumpAllocator
	host  *Host
}

func (s *HostTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.rt = wazero.NewRuntime(s.ctx)

	mod, err := s.rt.Instantiate(s.ctx, memoryModule)
	s.Require().NoError(err)
	s.mem = mod.Memory()
	s.Require().NotNil(s.mem)

	s.alloc = NewBumpAllocator(1024, pageSize)
	s.host = NewHost(s.mem, s.alloc)
}

func (s *HostTestSuite) TearDownTest() {
	s.Require().NoError(s.rt.Close(s.ctx))
}

func (s *HostTestSuite) TestStrings() {
	ptr, err := s.host.PutString(s.ctx, "héllo")
	s.Require().NoError(err)

	n, ok := s.mem.ReadUint32Le(ptr)
	s.Require().True(ok)
	s.Assert().EqualValues(len("héllo"), n)

	got, err := s.host.String(ptr)
	s.Require().NoError(err)
	s.Assert().Equal("héllo", got)

	s.Require().NoError(s.host.FreeString(s.ctx, ptr))
	s.Assert().Zero(s.alloc.Live())

	s.Run("DoubleFree", func() {
		err := s.host.FreeString(s.ctx, ptr)
		s.Assert().ErrorIs(err, ErrBadFree)
	})

	s.Run("OutOfBounds", func() {
		_, err := s.host.String(pageSize - 2)
		s.Assert().ErrorIs(err, ErrOutOfBounds)

		s.Require().True(s.mem.WriteUint32Le(2048, 1<<20))
		_, err = s.host.String(2048)
		s.Assert().ErrorIs(err, ErrOutOfBounds)
	})
}

func (s *HostTestSuite) TestStringArray() {
	arr, release, err := s.host.PutStrings(s.ctx, []string{"a.vl", "b.vl"})
	s.Require().NoError(err)
	s.Assert().Equal(3, s.alloc.Live())

	second, ok := s.mem.ReadUint32Le(arr + PtrSize)
	s.Require().True(ok)
	name, err := s.host.String(second)
	s.Require().NoError(err)
	s.Assert().Equal("b.vl", name)

	s.Require().NoError(release())
	s.Assert().Zero(s.alloc.Live())
}

func (s *HostTestSuite) TestResultSuccess() {
	res, err := s.host.NewResult(s.ctx)
	s.Require().NoError(err)

	// The guest reports success with a payload pointer.
	s.mem.WriteUint32Le(res, 0)
	s.mem.WriteUint32Le(res+PtrSize, 0xBEEF)

	payload, err := s.host.TakeResult(s.ctx, res)
	s.Require().NoError(err)
	s.Assert().EqualValues(0xBEEF, payload)
	s.Assert().Zero(s.alloc.Live())
}

func (s *HostTestSuite) TestResultError() {
	res, err := s.host.NewResult(s.ctx)
	s.Require().NoError(err)
	msg, err := s.host.PutString(s.ctx, "unknown language: cobol")
	s.Require().NoError(err)

	s.mem.WriteUint32Le(res, 1)
	s.mem.WriteUint32Le(res+PtrSize, msg)

	_, err = s.host.TakeResult(s.ctx, res)
	var guestErr *GuestError
	s.Require().ErrorAs(err, &guestErr)
	s.Assert().Equal("unknown language: cobol", guestErr.Message)
	s.Assert().Zero(s.alloc.Live(), "result record and error string are both freed")
}

// putOutputs lays out an output table the way a guest would.
func (s *HostTestSuite) putOutputs(files map[string][]byte, order []string) uint32 {
	table, err := s.host.Alloc(s.ctx, uint32(PtrSize+len(order)*3*PtrSize))
	s.Require().NoError(err)
	s.mem.WriteUint32Le(table, uint32(len(order)))

	for i, name := range order {
		namePtr, err := s.host.PutString(s.ctx, name)
		s.Require().NoError(err)
		dataPtr, err := s.host.PutBytes(s.ctx, files[name])
		s.Require().NoError(err)

		entry := table + PtrSize + uint32(i*3*PtrSize)
		s.mem.WriteUint32Le(entry, namePtr)
		s.mem.WriteUint32Le(entry+PtrSize, uint32(len(files[name])))
		s.mem.WriteUint32Le(entry+2*PtrSize, dataPtr)
	}
	return table
}

func (s *HostTestSuite) TestOutputs() {
	files := map[string][]byte{
		"main.go":   []byte("package main\n"),
		"types.go":  []byte("package types\n"),
		"empty.txt": {},
	}
	table := s.putOutputs(files, []string{"main.go", "types.go", "empty.txt"})
	s.Assert().Equal(7, s.alloc.Live())

	got, err := s.host.TakeOutputs(s.ctx, table)
	s.Require().NoError(err)
	s.Assert().Equal(files, got)
	s.Assert().Zero(s.alloc.Live(), "every name, buffer and the table are freed exactly once")

	_, err = s.host.TakeOutputs(s.ctx, table)
	s.Assert().ErrorIs(err, ErrBadFree)
}

func (s *HostTestSuite) TestOutputsHostileCount() {
	s.mem.WriteUint32Le(4096, 0xFFFFFFFF)
	_, err := s.host.TakeOutputs(s.ctx, 4096)
	s.Assert().ErrorIs(err, ErrOutOfBounds)
}

func (s *HostTestSuite) TestValues() {
	c := codec.ListOf[string](codec.String)
	ptr, n, err := PutValue(s.ctx, s.host, c, []string{"x", "yz"})
	s.Require().NoError(err)
	s.Assert().EqualValues(6, n)

	r, err := s.host.BufferReader(ptr, n)
	s.Require().NoError(err)
	count, err := r.ReadU8()
	s.Require().NoError(err)
	s.Assert().EqualValues(2, count)

	got, err := TakeValue[[]string](s.ctx, s.host, c, ptr, n)
	s.Require().NoError(err)
	s.Assert().Equal([]string{"x", "yz"}, got)
	s.Assert().Zero(s.alloc.Live())
}

// TestHost runs the HostTestSuite.
func TestHost(t *testing.T) {
	suite.Run(t, new(HostTestSuite))
}

// wasmName is a length-prefixed name as it appears in import and export entries.
func wasmName(s string) []byte {
	return append([]byte{byte(len(s))}, s...)
}

// allocatorModule is a guest whose allocator exports are its imports
// env.alloc and env.free passed straight through:
//
//	(module
//	  (import "env" "alloc" (func (param i32) (result i32)))
//	  (import "env" "free" (func (param i32 i32)))
//	  (memory (export "memory") 1)
//	  (export "verilization_mem_alloc" (func 0))
//	  (export "verilization_mem_free" (func 1)))
func allocatorModule() []byte {
	var imports, exports []byte

	imports = append(imports, 0x02)
	imports = append(imports, wasmName("env")...)
	imports = append(imports, wasmName("alloc")...)
	imports = append(imports, 0x00, 0x00)
	imports = append(imports, wasmName("env")...)
	imports = append(imports, wasmName("free")...)
	imports = append(imports, 0x00, 0x01)

	exports = append(exports, 0x03)
	exports = append(exports, wasmName(DefaultAllocExport)...)
	exports = append(exports, 0x00, 0x00)
	exports = append(exports, wasmName(DefaultFreeExport)...)
	exports = append(exports, 0x00, 0x01)
	exports = append(exports, wasmName("memory")...)
	exports = append(exports, 0x02, 0x00)

	b := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	// types: (i32) -> i32, (i32, i32) -> ()
	b = append(b, 0x01, 0x0b, 0x02, 0x60, 0x01, 0x7f, 0x01, 0x7f, 0x60, 0x02, 0x7f, 0x7f, 0x00)
	b = append(b, 0x02, byte(len(imports)))
	b = append(b, imports...)
	b = append(b, 0x05, 0x03, 0x01, 0x00, 0x01)
	b = append(b, 0x07, byte(len(exports)))
	b = append(b, exports...)
	return b
}

func TestModuleAllocator(t *testing.T) {
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)

	backing := NewBumpAllocator(512, pageSize)
	var frees []uint32
	_, err := rt.NewHostModuleBuilder("env").
		NewFunctionBuilder().
		WithFunc(func(ctx context.Context, size uint32) uint32 {
			ptr, err := backing.Alloc(ctx, size)
			if err != nil {
				return 0
			}
			return ptr
		}).
		Export("alloc").
		NewFunctionBuilder().
		WithFunc(func(ctx context.Context, size, ptr uint32) {
			frees = append(frees, size, ptr)
			_ = backing.Free(ctx, size, ptr)
		}).
		Export("free").
		Instantiate(ctx)
	require.NoError(t, err)

	guest, err := rt.InstantiateWithConfig(ctx, allocatorModule(), wazero.NewModuleConfig().WithName("guest"))
	require.NoError(t, err)

	alloc, err := ExportedAllocator(guest, DefaultAllocExport, DefaultFreeExport)
	require.NoError(t, err)

	host := NewHost(guest.Memory(), alloc)
	ptr, err := host.PutString(ctx, "generated")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, ptr, uint32(512))
	assert.Equal(t, 1, backing.Live())

	s, err := host.TakeString(ctx, ptr)
	require.NoError(t, err)
	assert.Equal(t, "generated", s)
	assert.Zero(t, backing.Live())
	assert.Equal(t, []uint32{PtrSize + uint32(len("generated")), ptr}, frees, "free takes (size, ptr)")

	_, err = alloc.Alloc(ctx, 2*pageSize)
	assert.ErrorIs(t, err, ErrOutOfMemory)

	_, err = ExportedAllocator(guest, "malloc", DefaultFreeExport)
	assert.Error(t, err)
}

func TestBumpAllocator(t *testing.T) {
	ctx := context.Background()
	a := NewBumpAllocator(1, 64)

	p1, err := a.Alloc(ctx, 3)
	require.NoError(t, err)
	assert.EqualValues(t, 4, p1, "blocks are pointer aligned")

	p2, err := a.Alloc(ctx, 0)
	require.NoError(t, err)
	p3, err := a.Alloc(ctx, 0)
	require.NoError(t, err)
	assert.NotEqual(t, p2, p3)

	assert.ErrorIs(t, a.Free(ctx, 4, p1), ErrBadFree)
	require.NoError(t, a.Free(ctx, 3, p1))

	_, err = a.Alloc(ctx, 64)
	assert.ErrorIs(t, err, ErrOutOfMemory)
}
