// Package remote implements the argument-marshaling side of the remote
// object protocol: object references travel as IDs and method calls are
// framed as codec-encoded requests and responses over a caller-supplied
// Transport.
package remote

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	codec "github.com/oy3o/vcodec"
)

// Transport carries one request to the peer and returns its response.
// Retry, timeout and backpressure are the transport's business.
type Transport interface {
	RoundTrip(ctx context.Context, request []byte) ([]byte, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, request []byte) ([]byte, error)

func (f TransportFunc) RoundTrip(ctx context.Context, request []byte) ([]byte, error) {
	return f(ctx, request)
}

// Response tags.
const (
	tagResult = 0
	tagError  = 1
)

// ErrNoTransport is returned by Invoke on a connection built without a transport.
var ErrNoTransport = errors.New("remote: connection has no transport")

// Error is a failure reported by the peer while running a method.
type Error struct {
	Method  string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("remote: %s: %s", e.Method, e.Message)
}

// Argument is one method argument paired with its codec.
type Argument interface {
	encode(w codec.FormatWriter) error
}

type argument[T any] struct {
	value T
	codec codec.Codec[T]
}

func (a argument[T]) encode(w codec.FormatWriter) error { return a.codec.Encode(w, a.value) }

// Arg pairs v with the codec used to send it.
func Arg[T any](v T, c codec.Codec[T]) Argument {
	return argument[T]{value: v, codec: c}
}

// Connection is one side of a remote-object session.
type Connection struct {
	transport Transport
	objects   *objectTable
}

// NewConnection creates a connection sending calls through t. A nil t
// gives a connection that can only serve calls.
func NewConnection(t Transport) *Connection {
	return &Connection{transport: t, objects: newObjectTable()}
}

// WriteObject writes a reference to v. Handles on the peer's objects are
// written as their ID; any other value is exported under a local ID first.
func (c *Connection) WriteObject(w codec.FormatWriter, v any) error {
	if ro, ok := v.(remoteObject); ok {
		id, owner := ro.remoteID()
		if owner == c {
			return IDCodec.Encode(w, id)
		}
	}
	return IDCodec.Encode(w, c.objects.export(v))
}

// ReadObject reads an object reference. An ID this connection exported
// resolves to the local value when it is a T; any other ID is handed to
// wrap to build a proxy.
func ReadObject[T any](c *Connection, r codec.FormatReader, wrap func(Object) T) (T, error) {
	id, err := IDCodec.Decode(r)
	if err != nil {
		var zero T
		return zero, err
	}
	if v, ok := c.objects.lookup(id); ok {
		if t, ok := v.(T); ok {
			return t, nil
		}
	}
	return wrap(NewObject(c, id)), nil
}

// Lookup returns the local object exported under id.
func (c *Connection) Lookup(id ObjectID) (any, bool) {
	return c.objects.lookup(id)
}

// Release forgets the local object exported under id.
func (c *Connection) Release(id ObjectID) bool {
	return c.objects.release(id)
}

// ObjectCodec returns a codec for object references of type T on c.
func ObjectCodec[T any](c *Connection, wrap func(Object) T) codec.Codec[T] {
	return objectCodec[T]{conn: c, wrap: wrap}
}

type objectCodec[T any] struct {
	conn *Connection
	wrap func(Object) T
}

func (oc objectCodec[T]) Decode(r codec.FormatReader) (T, error) {
	return ReadObject(oc.conn, r, oc.wrap)
}

func (oc objectCodec[T]) Encode(w codec.FormatWriter, v T) error {
	return oc.conn.WriteObject(w, v)
}

// EncodeRequest frames a method call: the target ID, the method name, a Nat
// argument count and the arguments in order.
func EncodeRequest(id ObjectID, method string, args []Argument) ([]byte, error) {
	w := codec.NewBytesWriter(nil)
	if err := IDCodec.Encode(w, id); err != nil {
		return nil, err
	}
	if err := codec.String.Encode(w, method); err != nil {
		return nil, err
	}
	if err := codec.EncodeNatUint64(w, uint64(len(args))); err != nil {
		return nil, err
	}
	for i, a := range args {
		if err := a.encode(w); err != nil {
			return nil, fmt.Errorf("remote: %s argument %d: %w", method, i, err)
		}
	}
	return w.Bytes(), nil
}

// Invoke calls method on the peer object id and decodes its result.
func Invoke[T any](ctx context.Context, c *Connection, id ObjectID, method string, args []Argument, result codec.Codec[T]) (T, error) {
	var zero T
	if c.transport == nil {
		return zero, ErrNoTransport
	}

	req, err := EncodeRequest(id, method, args)
	if err != nil {
		return zero, err
	}

	codec.Logger().Debug("remote invoke",
		zap.Stringer("object", id),
		zap.String("method", method),
		zap.Int("args", len(args)),
		zap.Int("bytes", len(req)))

	resp, err := c.transport.RoundTrip(ctx, req)
	if err != nil {
		return zero, fmt.Errorf("remote: %s: %w", method, err)
	}
	return decodeResponse(method, resp, result)
}

// Call invokes method on o.
func Call[T any](ctx context.Context, o Object, method string, result codec.Codec[T], args ...Argument) (T, error) {
	return Invoke(ctx, o.conn, o.id, method, args, result)
}

func decodeResponse[T any](method string, resp []byte, result codec.Codec[T]) (T, error) {
	var zero T
	r := codec.NewBytesReader(resp)
	tag, err := codec.DecodeLength(r, math.MaxUint64)
	if err != nil {
		return zero, err
	}

	switch tag {
	case tagResult:
		v, err := result.Decode(r)
		if err != nil {
			return zero, fmt.Errorf("remote: %s result: %w", method, err)
		}
		if err := codec.CheckBufferNotZeros(resp[r.Len():]); err != nil {
			return zero, err
		}
		return v, nil
	case tagError:
		msg, err := codec.String.Decode(r)
		if err != nil {
			return zero, err
		}
		return zero, &Error{Method: method, Message: msg}
	default:
		return zero, codec.UnknownTag("remote.Response", tag)
	}
}
