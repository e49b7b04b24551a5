package remote

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	codec "github.com/oy3o/vcodec"
)

type counter struct{ value int32 }

// counterProxy is what generated code would emit for a remote counter.
type counterProxy struct{ Object }

func (p counterProxy) Add(ctx context.Context, n int32) (int32, error) {
	return Call(ctx, p.Object, "add", codec.I32, Arg(n, codec.I32))
}

func wrapCounter(o Object) counterProxy { return counterProxy{o} }

func counterHandler(_ context.Context, target any, req *Request) ([]byte, error) {
	c, ok := target.(*counter)
	if !ok {
		return nil, errors.New("not a counter")
	}
	switch req.Method {
	case "add":
		n, err := NextArg(req, codec.I32)
		if err != nil {
			return nil, err
		}
		if err := req.Done(); err != nil {
			return nil, err
		}
		c.value += n
		return EncodeResult(codec.I32, c.value)
	default:
		return nil, errors.New("no such method " + req.Method)
	}
}

// loopback wires a client connection to a server connection in memory.
func loopback() (client, server *Connection) {
	server = NewConnection(nil)
	client = NewConnection(TransportFunc(func(ctx context.Context, req []byte) ([]byte, error) {
		return server.Serve(ctx, req, counterHandler)
	}))
	return client, server
}

func TestObjectID(t *testing.T) {
	id := NewObjectID()
	require.False(t, id.IsNil())
	assert.True(t, NilID.IsNil())

	parsed, err := ParseObjectID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	data, err := codec.Marshal(IDCodec, id)
	require.NoError(t, err)
	assert.Len(t, data, 20)

	got, err := codec.Unmarshal(IDCodec, data)
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = codec.Unmarshal(IDCodec, data[:19])
	assert.ErrorIs(t, err, codec.ErrEndOfStream)
}

func TestRequestFraming(t *testing.T) {
	id := NewObjectID()
	data, err := EncodeRequest(id, "m", []Argument{Arg(uint8(7), codec.U8), Arg("x", codec.String)})
	require.NoError(t, err)

	idBytes, _ := codec.Marshal(IDCodec, id)
	want := append(idBytes, 0x01, 'm', 0x02, 0x07, 0x01, 'x')
	assert.Equal(t, want, data)

	req, err := DecodeRequest(data)
	require.NoError(t, err)
	assert.Equal(t, id, req.Object)
	assert.Equal(t, "m", req.Method)
	assert.EqualValues(t, 2, req.Argc)

	b, err := NextArg(req, codec.U8)
	require.NoError(t, err)
	assert.Equal(t, uint8(7), b)
	assert.Error(t, req.Done())

	s, err := NextArg(req, codec.String)
	require.NoError(t, err)
	assert.Equal(t, "x", s)
	require.NoError(t, req.Done())

	_, err = NextArg(req, codec.U8)
	assert.Error(t, err)
}

func TestInvokeLoopback(t *testing.T) {
	ctx := context.Background()
	client, server := loopback()
	local := &counter{}

	// The server hands out a reference; the client turns it into a proxy.
	w := codec.NewBytesWriter(nil)
	require.NoError(t, server.WriteObject(w, local))
	proxy, err := ReadObject(client, codec.NewBytesReader(w.Bytes()), wrapCounter)
	require.NoError(t, err)

	v, err := proxy.Add(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, int32(5), v)

	v, err = proxy.Add(ctx, -2)
	require.NoError(t, err)
	assert.Equal(t, int32(3), v)
	assert.Equal(t, int32(3), local.value)

	t.Run("RemoteError", func(t *testing.T) {
		_, err := Call(ctx, proxy.Object, "reset", codec.I32)
		var remoteErr *Error
		require.ErrorAs(t, err, &remoteErr)
		assert.Equal(t, "reset", remoteErr.Method)
		assert.Contains(t, remoteErr.Message, "no such method")
	})

	t.Run("UnknownObject", func(t *testing.T) {
		_, err := Invoke(ctx, client, NewObjectID(), "add", []Argument{Arg(int32(1), codec.I32)}, codec.I32)
		var remoteErr *Error
		require.ErrorAs(t, err, &remoteErr)
		assert.Contains(t, remoteErr.Message, "no object")
	})

	t.Run("Released", func(t *testing.T) {
		require.True(t, server.Release(proxy.ID()))
		_, err := proxy.Add(ctx, 1)
		var remoteErr *Error
		assert.ErrorAs(t, err, &remoteErr)
	})
}

func TestResponseDecoding(t *testing.T) {
	ctx := context.Background()
	respond := func(resp []byte) *Connection {
		return NewConnection(TransportFunc(func(context.Context, []byte) ([]byte, error) { return resp, nil }))
	}

	t.Run("UnknownTag", func(t *testing.T) {
		_, err := Invoke(ctx, respond([]byte{0x02}), NewObjectID(), "m", nil, codec.U8)
		assert.ErrorIs(t, err, codec.ErrUnknownTag)
	})

	t.Run("TruncatedResult", func(t *testing.T) {
		_, err := Invoke(ctx, respond([]byte{0x00, 0x01}), NewObjectID(), "m", nil, codec.U32)
		assert.ErrorIs(t, err, codec.ErrEndOfStream)
	})

	t.Run("TrailingData", func(t *testing.T) {
		_, err := Invoke(ctx, respond([]byte{0x00, 0x01, 0x09}), NewObjectID(), "m", nil, codec.U8)
		assert.ErrorIs(t, err, codec.ErrTrailingData)
	})

	t.Run("TransportFailure", func(t *testing.T) {
		boom := errors.New("connection reset")
		c := NewConnection(TransportFunc(func(context.Context, []byte) ([]byte, error) { return nil, boom }))
		_, err := Invoke(ctx, c, NewObjectID(), "m", nil, codec.U8)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("NoTransport", func(t *testing.T) {
		_, err := Invoke(ctx, NewConnection(nil), NewObjectID(), "m", nil, codec.U8)
		assert.ErrorIs(t, err, ErrNoTransport)
	})
}

func TestObjectReferences(t *testing.T) {
	conn := NewConnection(nil)
	local := &counter{}

	write := func(v any) []byte {
		w := codec.NewBytesWriter(nil)
		require.NoError(t, conn.WriteObject(w, v))
		return w.Bytes()
	}

	first, second := write(local), write(local)
	assert.Equal(t, first, second, "a value keeps its ID")
	assert.NotEqual(t, first, write(&counter{}))

	// An ID this side exported resolves back to the local value.
	got, err := ReadObject(conn, codec.NewBytesReader(first), func(Object) *counter { return nil })
	require.NoError(t, err)
	assert.Same(t, local, got)

	// A proxy for a peer object is written as the peer's ID.
	peerID := NewObjectID()
	ref := write(counterProxy{NewObject(conn, peerID)})
	idBytes, _ := codec.Marshal(IDCodec, peerID)
	assert.Equal(t, idBytes, ref)

	// Non-comparable values are still exported.
	slice := []int{1}
	assert.NotEqual(t, write(slice), write(slice))

	oc := ObjectCodec(conn, wrapCounter)
	data, err := codec.Marshal(oc, counterProxy{NewObject(conn, peerID)})
	require.NoError(t, err)
	proxy, err := codec.Unmarshal(oc, data)
	require.NoError(t, err)
	assert.Equal(t, peerID, proxy.ID())
}
