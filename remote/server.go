package remote

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	codec "github.com/oy3o/vcodec"
)

// Request is a decoded method call. Its arguments are read in order with
// NextArg, using the codecs of the method's signature.
type Request struct {
	Object ObjectID
	Method string
	Argc   uint64

	args *codec.BytesReader
	read uint64
	raw  []byte
}

// DecodeRequest parses the framing written by EncodeRequest.
func DecodeRequest(data []byte) (*Request, error) {
	r := codec.NewBytesReader(data)
	id, err := IDCodec.Decode(r)
	if err != nil {
		return nil, err
	}
	method, err := codec.String.Decode(r)
	if err != nil {
		return nil, err
	}
	argc, err := codec.DecodeLength(r, uint64(len(data)))
	if err != nil {
		return nil, err
	}
	return &Request{Object: id, Method: method, Argc: argc, args: r, raw: data}, nil
}

// NextArg decodes the next argument of req with c.
func NextArg[T any](req *Request, c codec.Codec[T]) (T, error) {
	var zero T
	if req.read >= req.Argc {
		return zero, fmt.Errorf("remote: %s takes %d arguments", req.Method, req.Argc)
	}
	v, err := c.Decode(req.args)
	if err != nil {
		return zero, fmt.Errorf("remote: %s argument %d: %w", req.Method, req.read, err)
	}
	req.read++
	return v, nil
}

// Done reports an error when arguments or bytes are left unread.
func (req *Request) Done() error {
	if req.read != req.Argc {
		return fmt.Errorf("remote: %s: %d of %d arguments read", req.Method, req.read, req.Argc)
	}
	return codec.CheckBufferNotZeros(req.raw[req.args.Len():])
}

// EncodeResult frames a successful response carrying v.
func EncodeResult[T any](c codec.Codec[T], v T) ([]byte, error) {
	w := codec.NewBytesWriter(nil)
	if err := codec.EncodeNatUint64(w, tagResult); err != nil {
		return nil, err
	}
	if err := c.Encode(w, v); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// EncodeError frames a failed response carrying msg.
func EncodeError(msg string) []byte {
	w := codec.NewBytesWriter(nil)
	_ = codec.EncodeNatUint64(w, tagError)
	_ = codec.String.Encode(w, msg)
	return w.Bytes()
}

// Handler runs one call against a local object.
type Handler func(ctx context.Context, target any, req *Request) ([]byte, error)

// Serve decodes request, resolves its target among the objects c exported
// and runs handler. Handler failures and unknown targets are returned to
// the caller as error responses; only an undecodable request is an error.
func (c *Connection) Serve(ctx context.Context, request []byte, handler Handler) ([]byte, error) {
	req, err := DecodeRequest(request)
	if err != nil {
		return nil, err
	}
	target, ok := c.objects.lookup(req.Object)
	if !ok {
		return EncodeError(fmt.Sprintf("no object %s", req.Object)), nil
	}
	resp, err := handler(ctx, target, req)
	if err != nil {
		codec.Logger().Debug("remote call failed",
			zap.Stringer("object", req.Object),
			zap.String("method", req.Method),
			zap.Error(err))
		return EncodeError(err.Error()), nil
	}
	return resp, nil
}
