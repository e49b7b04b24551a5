package remote

import (
	"reflect"

	"github.com/puzpuzpuz/xsync/v4"
	"github.com/segmentio/ksuid"

	codec "github.com/oy3o/vcodec"
)

// ObjectID names an object living on one side of a Connection.
type ObjectID ksuid.KSUID

// NilID is the zero object ID. It never names an exported object.
var NilID = ObjectID(ksuid.Nil)

// NewObjectID generates a fresh, time-ordered object ID.
func NewObjectID() ObjectID { return ObjectID(ksuid.New()) }

func (id ObjectID) String() string { return ksuid.KSUID(id).String() }

// IsNil reports whether id is the zero ID.
func (id ObjectID) IsNil() bool { return ksuid.KSUID(id).IsNil() }

// ParseObjectID parses the string form produced by String.
func ParseObjectID(s string) (ObjectID, error) {
	k, err := ksuid.Parse(s)
	return ObjectID(k), err
}

// idSize is the wire size of an ObjectID.
const idSize = 20

type idCodec struct{}

// IDCodec encodes an ObjectID as its 20 raw bytes.
var IDCodec codec.Codec[ObjectID] = idCodec{}

func (idCodec) Decode(r codec.FormatReader) (ObjectID, error) {
	b, err := r.ReadBytes(idSize)
	if err != nil {
		return NilID, err
	}
	k, err := ksuid.FromBytes(b)
	if err != nil {
		return NilID, codec.ConversionFailure(err, "object id")
	}
	return ObjectID(k), nil
}

func (idCodec) Encode(w codec.FormatWriter, id ObjectID) error {
	return w.WriteBytes(ksuid.KSUID(id).Bytes())
}

// Object is a handle on an object owned by the peer. Generated proxy types
// embed it and forward their methods through Invoke.
type Object struct {
	conn *Connection
	id   ObjectID
}

// NewObject returns a handle on the peer object id.
func NewObject(conn *Connection, id ObjectID) Object {
	return Object{conn: conn, id: id}
}

func (o Object) ID() ObjectID { return o.id }
func (o Object) Connection() *Connection { return o.conn }

// remoteObject is implemented by Object and every type embedding it.
type remoteObject interface {
	remoteID() (ObjectID, *Connection)
}

func (o Object) remoteID() (ObjectID, *Connection) { return o.id, o.conn }

// objectTable holds the local objects a connection has handed out.
type objectTable struct {
	byID    *xsync.Map[ObjectID, any]
	byValue *xsync.Map[any, ObjectID]
}

func newObjectTable() *objectTable {
	return &objectTable{
		byID:    xsync.NewMap[ObjectID, any](),
		byValue: xsync.NewMap[any, ObjectID](),
	}
}

// export returns the ID of v, assigning one on first use. Values whose
// dynamic type is not comparable get a new ID every time.
func (t *objectTable) export(v any) ObjectID {
	if !isComparable(v) {
		id := NewObjectID()
		t.byID.Store(id, v)
		return id
	}
	id, _ := t.byValue.LoadOrCompute(v, func() (ObjectID, bool) {
		id := NewObjectID()
		t.byID.Store(id, v)
		return id, false
	})
	return id
}

func (t *objectTable) lookup(id ObjectID) (any, bool) {
	return t.byID.Load(id)
}

func (t *objectTable) release(id ObjectID) bool {
	v, ok := t.byID.LoadAndDelete(id)
	if ok && isComparable(v) {
		t.byValue.Delete(v)
	}
	return ok
}

func isComparable(v any) bool {
	return v != nil && reflect.TypeOf(v).Comparable()
}
