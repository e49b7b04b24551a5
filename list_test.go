package codec

import (
	"bytes"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// opaque hides every capability of the wrapped codec except Codec itself,
// forcing the element-by-element list path.
type opaque[T any] struct{ Codec[T] }

func TestListSpecialization(t *testing.T) {
	assert.True(t, ListOf[int32](I32).Specialized())
	assert.True(t, ListOf[uint8](U8).Specialized())
	assert.False(t, ListOf[int32](opaque[int32]{I32}).Specialized())
	assert.False(t, ListOf[string](String).Specialized())
	assert.False(t, ListOf[*big.Int](Nat).Specialized())
}

func assertListEquivalent[T any](t *testing.T, elem Codec[T], values []T) {
	t.Helper()
	fast, err := Marshal[[]T](ListOf(elem), values)
	require.NoError(t, err)
	slow, err := Marshal[[]T](ListOf[T](opaque[T]{elem}), values)
	require.NoError(t, err)
	assert.Equal(t, slow, fast)

	fromFast, err := Unmarshal[[]T](ListOf[T](opaque[T]{elem}), fast)
	require.NoError(t, err)
	fromSlow, err := Unmarshal[[]T](ListOf(elem), slow)
	require.NoError(t, err)
	assert.Equal(t, values, fromFast)
	assert.Equal(t, values, fromSlow)
}

func TestListSpecializationEquivalence(t *testing.T) {
	assertListEquivalent[uint8](t, U8, []uint8{0, 1, 0xFF})
	assertListEquivalent[int8](t, I8, []int8{-128, 0, 127})
	assertListEquivalent[uint16](t, U16, []uint16{1, 0xBEEF})
	assertListEquivalent[int16](t, I16, []int16{-1, -32768, 32767})
	assertListEquivalent[uint32](t, U32, []uint32{0xDEADBEEF, 7})
	assertListEquivalent[int32](t, I32, []int32{-2, 0, 2147483647})
	assertListEquivalent[uint64](t, U64, []uint64{1 << 63, 42})
	assertListEquivalent[int64](t, I64, []int64{-1 << 63, -5, 5})

	many := make([]int32, 3*BUFFER_SIZE)
	for i := range many {
		many[i] = int32(i * -7)
	}
	assertListEquivalent[int32](t, I32, many)
}

func TestListWire(t *testing.T) {
	data, err := Marshal[[]int16](ListOf[int16](I16), []int16{1, -1})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x02, 0x01, 0x00, 0xFF, 0xFF}, data)

	data, err = Marshal[[]string](ListOf[string](String), []string{"a", "bc"})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x02, 0x01, 'a', 0x02, 'b', 'c'}, data)

	data, err = Marshal[[]uint32](ListOf[uint32](U32), nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00}, data)

	nested := ListOf[[]string](ListOf[string](String))
	roundTrip[[][]string](t, nested, [][]string{{"x"}, {}, {"y", "z"}}, nil)
}

func TestListErrors(t *testing.T) {
	t.Run("TruncatedBulk", func(t *testing.T) {
		_, err := ListOf[uint32](U32).Decode(NewBytesReader([]byte{0x03, 1, 0, 0, 0, 2, 0}))
		assert.ErrorIs(t, err, ErrEndOfStream)
	})

	t.Run("TruncatedElementwise", func(t *testing.T) {
		_, err := ListOf[string](String).Decode(NewBytesReader([]byte{0x02, 0x01, 'a'}))
		assert.ErrorIs(t, err, ErrEndOfStream)
	})

	t.Run("CountAboveBound", func(t *testing.T) {
		c := ListOfLimits[uint32](U32, Limits{MaxLength: 16})
		_, err := c.Decode(NewBytesReader([]byte{0x11}))
		assert.ErrorIs(t, err, ErrLengthTooLarge)
	})

	t.Run("HostileCountInsideBound", func(t *testing.T) {
		// 2^27 elements declared on a stream holding four bytes.
		var src bytes.Buffer
		src.Write([]byte{0x80, 0x80, 0x80, 0x40, 1, 2, 3, 4})

		_, err := Decode[[]uint64](&src, ListOf[uint64](U64))
		assert.ErrorIs(t, err, ErrEndOfStream)

		_, err = Decode[[]string](bytes.NewReader([]byte{0x80, 0x80, 0x80, 0x40, 0x00}), ListOf[string](String))
		assert.ErrorIs(t, err, ErrEndOfStream)
	})

	t.Run("NoPartialValue", func(t *testing.T) {
		v, err := ListOf[string](String).Decode(NewBytesReader([]byte{0x02, 0x01, 'a', 0x05}))
		require.Error(t, err)
		assert.Nil(t, v)
	})
}

func TestOption(t *testing.T) {
	c := OptionOf[uint8](U8)
	roundTrip[Option[uint8]](t, c, Some[uint8](5), []byte{0x01, 0x05})
	roundTrip[Option[uint8]](t, c, None[uint8](), []byte{0x00})

	// Any nonzero flag means present.
	v, err := c.Decode(NewBytesReader([]byte{0x02, 0x09}))
	require.NoError(t, err)
	got, ok := v.Get()
	assert.True(t, ok)
	assert.Equal(t, uint8(9), got)

	_, err = c.Decode(NewBytesReader([]byte{0x01}))
	assert.ErrorIs(t, err, ErrEndOfStream)

	nested := ListOf[Option[string]](OptionOf[string](String))
	roundTrip[[]Option[string]](t, nested, []Option[string]{Some("a"), None[string](), Some("")}, []byte{
		0x03,
		0x01, 0x01, 'a',
		0x00,
		0x01, 0x00,
	})
}

func TestMarshalHelpers(t *testing.T) {
	t.Run("TrailingZerosAccepted", func(t *testing.T) {
		v, err := Unmarshal[uint16](U16, []byte{0x01, 0x02, 0x00, 0x00})
		require.NoError(t, err)
		assert.Equal(t, uint16(0x0201), v)
	})

	t.Run("TrailingDataRejected", func(t *testing.T) {
		_, err := Unmarshal[uint16](U16, []byte{0x01, 0x02, 0x03})
		require.ErrorIs(t, err, ErrTrailingData)
		assert.Contains(t, err.Error(), "non-zero byte")
	})

	t.Run("StreamRoundTrip", func(t *testing.T) {
		var buf bytes.Buffer
		c := ListOf[string](String)
		n, err := Encode[[]string](&buf, c, []string{"one", "two"})
		require.NoError(t, err)
		assert.EqualValues(t, buf.Len(), n)

		v, err := Decode[[]string](&buf, c)
		require.NoError(t, err)
		assert.Equal(t, []string{"one", "two"}, v)
	})

	t.Run("DecodeStampsOffset", func(t *testing.T) {
		enum := NewEnum[bool]("Flag", Case[bool, bool]("on", Bool,
			func(b bool) bool { return b },
			func(b bool) (bool, bool) { return b, true }))
		_, err := Decode[bool](bytes.NewReader([]byte{0x04}), enum)
		require.ErrorIs(t, err, ErrUnknownTag)

		var e *Error
		require.True(t, errors.As(err, &e))
		assert.EqualValues(t, 1, e.Offset)
	})
}

func TestCheckBufferNotZeros(t *testing.T) {
	assert.NoError(t, CheckBufferNotZeros(nil))
	assert.NoError(t, CheckBufferNotZeros(make([]byte, MAX_PADDING)))
	assert.ErrorIs(t, CheckBufferNotZeros(make([]byte, MAX_PADDING+1)), ErrTrailingData)
}
