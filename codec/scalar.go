package codec

import (
	"encoding/binary"
	"math"

	"github.com/baiyanhuang/hnet/socket"
	"github.com/baiyanhuang/hnet/ty"
)

// scalar is a fixed-width primitive written as raw little-endian
// bytes, the native order of every supported platform.
type scalar[T any] struct {
	name string
	n    int
	enc  func(b []byte, v T)
	dec  func(b []byte) T
}

// scalarState counts bytes accumulated so far.
type scalarState struct {
	off int
	buf [8]byte
}

func (s scalar[T]) Descriptor() ty.Desc { return ty.Prim{Name: s.name} }

func (s scalar[T]) ByteCopyable() bool { return true }

func (s scalar[T]) width() int { return s.n }

func (s scalar[T]) put(b []byte, v T) { s.enc(b, v) }

func (s scalar[T]) get(b []byte) T { return s.dec(b) }

func (s scalar[T]) Write(c *socket.Conn, v T) error {
	var b [8]byte
	s.enc(b[:s.n], v)
	return c.SendAll(b[:s.n])
}

func (s scalar[T]) Read(c *socket.Conn, v *T) error {
	var b [8]byte
	if err := c.RecvAll(b[:s.n]); err != nil {
		return err
	}
	*v = s.dec(b[:s.n])
	return nil
}

func (s scalar[T]) Prepare() State { return &scalarState{} }

func (s scalar[T]) Accum(c *socket.Conn, st State, v *T) (bool, error) {
	o := st.(*scalarState)
	for o.off < s.n {
		n, err := c.RecvPartial(o.buf[o.off:s.n])
		if err != nil {
			return false, err
		}
		if n == 0 {
			return false, nil
		}
		o.off += n
	}
	*v = s.dec(o.buf[:s.n])
	return true, nil
}

var le = binary.LittleEndian

var (
	Bool Codec[bool] = scalar[bool]{"bool", 1,
		func(b []byte, v bool) {
			if v {
				b[0] = 1
			} else {
				b[0] = 0
			}
		},
		func(b []byte) bool { return b[0] != 0 }}

	Byte Codec[uint8] = scalar[uint8]{"byte", 1,
		func(b []byte, v uint8) { b[0] = v },
		func(b []byte) uint8 { return b[0] }}

	Char Codec[byte] = scalar[byte]{"char", 1,
		func(b []byte, v byte) { b[0] = v },
		func(b []byte) byte { return b[0] }}

	Int16 Codec[int16] = scalar[int16]{"short", 2,
		func(b []byte, v int16) { le.PutUint16(b, uint16(v)) },
		func(b []byte) int16 { return int16(le.Uint16(b)) }}

	UInt16 Codec[uint16] = scalar[uint16]{"short", 2,
		func(b []byte, v uint16) { le.PutUint16(b, v) },
		func(b []byte) uint16 { return le.Uint16(b) }}

	Int32 Codec[int32] = scalar[int32]{"int", 4,
		func(b []byte, v int32) { le.PutUint32(b, uint32(v)) },
		func(b []byte) int32 { return int32(le.Uint32(b)) }}

	UInt32 Codec[uint32] = scalar[uint32]{"int", 4,
		func(b []byte, v uint32) { le.PutUint32(b, v) },
		func(b []byte) uint32 { return le.Uint32(b) }}

	Int64 Codec[int64] = scalar[int64]{"long", 8,
		func(b []byte, v int64) { le.PutUint64(b, uint64(v)) },
		func(b []byte) int64 { return int64(le.Uint64(b)) }}

	UInt64 Codec[uint64] = scalar[uint64]{"long", 8,
		func(b []byte, v uint64) { le.PutUint64(b, v) },
		func(b []byte) uint64 { return le.Uint64(b) }}

	Float32 Codec[float32] = scalar[float32]{"float", 4,
		func(b []byte, v float32) { le.PutUint32(b, math.Float32bits(v)) },
		func(b []byte) float32 { return math.Float32frombits(le.Uint32(b)) }}

	Float64 Codec[float64] = scalar[float64]{"double", 8,
		func(b []byte, v float64) { le.PutUint64(b, math.Float64bits(v)) },
		func(b []byte) float64 { return math.Float64frombits(le.Uint64(b)) }}
)

// size is the 64-bit length prefix of variable-length wire forms.
var size = UInt64

// tag is the constructor tag of a variant wire form.
var tag = UInt32

// aliasCodec names an existing codec without changing its wire form.
type aliasCodec[T any] struct {
	name  string
	under Codec[T]
	f     fixed[T] // nil when under is not block-copyable
}

// AliasOf carries a programmer-chosen name over the underlying type's
// wire form and byte-copyability.
func AliasOf[T any](name string, under Codec[T]) Codec[T] {
	a := aliasCodec[T]{name: name, under: under}
	a.f, _ = fixedOf(under)
	return a
}

func (a aliasCodec[T]) Descriptor() ty.Desc {
	return ty.Prim{Name: a.name, Under: a.under.Descriptor()}
}

func (a aliasCodec[T]) ByteCopyable() bool { return a.f != nil }

func (a aliasCodec[T]) width() int { return a.f.width() }

func (a aliasCodec[T]) put(b []byte, v T) { a.f.put(b, v) }

func (a aliasCodec[T]) get(b []byte) T { return a.f.get(b) }

func (a aliasCodec[T]) Write(c *socket.Conn, v T) error { return a.under.Write(c, v) }

func (a aliasCodec[T]) Read(c *socket.Conn, v *T) error { return a.under.Read(c, v) }

func (a aliasCodec[T]) Prepare() State { return a.under.Prepare() }

func (a aliasCodec[T]) Accum(c *socket.Conn, st State, v *T) (bool, error) {
	return a.under.Accum(c, st, v)
}

// enumCodec is a representation primitive plus named constants;
// encoded exactly like the representation type.
type enumCodec[T any] struct {
	rep   Codec[T]
	ctors []ty.EnumCtor
	f     fixed[T]
}

func EnumOf[T any](rep Codec[T], ctors []ty.EnumCtor) Codec[T] {
	e := enumCodec[T]{rep: rep, ctors: ctors}
	e.f, _ = fixedOf(rep)
	return e
}

func (e enumCodec[T]) Descriptor() ty.Desc {
	return ty.Enum{Rep: e.rep.Descriptor(), Ctors: e.ctors}
}

func (e enumCodec[T]) ByteCopyable() bool { return e.f != nil }

func (e enumCodec[T]) width() int { return e.f.width() }

func (e enumCodec[T]) put(b []byte, v T) { e.f.put(b, v) }

func (e enumCodec[T]) get(b []byte) T { return e.f.get(b) }

func (e enumCodec[T]) Write(c *socket.Conn, v T) error { return e.rep.Write(c, v) }

func (e enumCodec[T]) Read(c *socket.Conn, v *T) error { return e.rep.Read(c, v) }

func (e enumCodec[T]) Prepare() State { return e.rep.Prepare() }

func (e enumCodec[T]) Accum(c *socket.Conn, st State, v *T) (bool, error) {
	return e.rep.Accum(c, st, v)
}
