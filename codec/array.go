package codec

import (
	"github.com/baiyanhuang/hnet/errors"
	"github.com/baiyanhuang/hnet/socket"
	"github.com/baiyanhuang/hnet/ty"
)

// bulkState accumulates a known number of raw bytes, decoded into the
// destination only once complete.
type bulkState struct {
	off int
	buf []byte
}

func (o *bulkState) fill(c *socket.Conn) (bool, error) {
	for o.off < len(o.buf) {
		n, err := c.RecvPartial(o.buf[o.off:])
		if err != nil {
			return false, err
		}
		if n == 0 {
			return false, nil
		}
		o.off += n
	}
	return true, nil
}

// iterState tracks the element currently being read.
type iterState struct {
	idx    int
	elemSt State
}

// fixedArrayCodec is exactly n consecutive elements, no length prefix.
type fixedArrayCodec[T any] struct {
	elem Codec[T]
	n    int
	f    fixed[T] // nil forces per-element transfer
}

// FixedArrayOf reads and writes []T values of exactly length n.
// Arrays of block-copyable elements use single bulk transfers.
func FixedArrayOf[T any](elem Codec[T], n int) Codec[[]T] {
	a := fixedArrayCodec[T]{elem: elem, n: n}
	a.f, _ = fixedOf(elem)
	return a
}

func (a fixedArrayCodec[T]) Descriptor() ty.Desc {
	return ty.FixedArray{Elem: a.elem.Descriptor(), Len: uint64(a.n)}
}

func (a fixedArrayCodec[T]) ByteCopyable() bool { return false }

func (a fixedArrayCodec[T]) Write(c *socket.Conn, v []T) error {
	if len(v) != a.n {
		return errors.ErrBadLength
	}
	if a.f != nil {
		w := a.f.width()
		buf := make([]byte, a.n*w)
		for i, x := range v {
			a.f.put(buf[i*w:], x)
		}
		return c.SendAll(buf)
	}
	for _, x := range v {
		if err := a.elem.Write(c, x); err != nil {
			return err
		}
	}
	return nil
}

func (a fixedArrayCodec[T]) Read(c *socket.Conn, v *[]T) error {
	if len(*v) != a.n {
		*v = make([]T, a.n)
	}
	if a.f != nil {
		w := a.f.width()
		buf := make([]byte, a.n*w)
		if err := c.RecvAll(buf); err != nil {
			return err
		}
		for i := range *v {
			(*v)[i] = a.f.get(buf[i*w:])
		}
		return nil
	}
	for i := range *v {
		if err := a.elem.Read(c, &(*v)[i]); err != nil {
			return err
		}
	}
	return nil
}

func (a fixedArrayCodec[T]) Prepare() State {
	if a.f != nil {
		return &bulkState{buf: make([]byte, a.n*a.f.width())}
	}
	st := &iterState{}
	if a.n > 0 {
		st.elemSt = a.elem.Prepare()
	}
	return st
}

func (a fixedArrayCodec[T]) Accum(c *socket.Conn, st State, v *[]T) (bool, error) {
	if len(*v) != a.n {
		*v = make([]T, a.n)
	}
	if a.f != nil {
		o := st.(*bulkState)
		done, err := o.fill(c)
		if !done {
			return false, err
		}
		w := a.f.width()
		for i := range *v {
			(*v)[i] = a.f.get(o.buf[i*w:])
		}
		return true, nil
	}
	o := st.(*iterState)
	for o.idx < a.n {
		done, err := a.elem.Accum(c, o.elemSt, &(*v)[o.idx])
		if err != nil {
			return false, err
		}
		if !done {
			return false, nil
		}
		o.idx++
		if o.idx < a.n {
			o.elemSt = a.elem.Prepare()
		}
	}
	return true, nil
}

// sliceState reads the length prefix, then either raw bytes (bulk) or
// elements one at a time. The destination is sized before any element
// bytes are stored.
type sliceState struct {
	readLen bool
	lenSt   State
	n       uint64
	bulk    *bulkState
	iter    iterState
}

// sliceCodec is a length-prefixed variable array.
type sliceCodec[T any] struct {
	elem Codec[T]
	f    fixed[T]
}

func SliceOf[T any](elem Codec[T]) Codec[[]T] {
	s := sliceCodec[T]{elem: elem}
	s.f, _ = fixedOf(elem)
	return s
}

func (s sliceCodec[T]) Descriptor() ty.Desc {
	return ty.Array{Elem: s.elem.Descriptor()}
}

func (s sliceCodec[T]) ByteCopyable() bool { return false }

func (s sliceCodec[T]) Write(c *socket.Conn, v []T) error {
	if err := c.SendUint64(uint64(len(v))); err != nil {
		return err
	}
	if len(v) == 0 {
		return nil
	}
	if s.f != nil {
		w := s.f.width()
		buf := make([]byte, len(v)*w)
		for i, x := range v {
			s.f.put(buf[i*w:], x)
		}
		return c.SendAll(buf)
	}
	for _, x := range v {
		if err := s.elem.Write(c, x); err != nil {
			return err
		}
	}
	return nil
}

func (s sliceCodec[T]) Read(c *socket.Conn, v *[]T) error {
	n, err := c.RecvUint64()
	if err != nil {
		return err
	}
	*v = make([]T, n)
	if n == 0 {
		return nil
	}
	if s.f != nil {
		w := s.f.width()
		buf := make([]byte, int(n)*w)
		if err := c.RecvAll(buf); err != nil {
			return err
		}
		for i := range *v {
			(*v)[i] = s.f.get(buf[i*w:])
		}
		return nil
	}
	for i := range *v {
		if err := s.elem.Read(c, &(*v)[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s sliceCodec[T]) Prepare() State {
	return &sliceState{readLen: true, lenSt: size.Prepare()}
}

func (s sliceCodec[T]) Accum(c *socket.Conn, st State, v *[]T) (bool, error) {
	o := st.(*sliceState)
	if o.readLen {
		done, err := size.Accum(c, o.lenSt, &o.n)
		if !done {
			return false, err
		}
		o.readLen = false
		*v = make([]T, o.n)
		if s.f != nil {
			o.bulk = &bulkState{buf: make([]byte, int(o.n)*s.f.width())}
		} else if o.n > 0 {
			o.iter.elemSt = s.elem.Prepare()
		}
	}
	if s.f != nil {
		done, err := o.bulk.fill(c)
		if !done {
			return false, err
		}
		w := s.f.width()
		for i := range *v {
			(*v)[i] = s.f.get(o.bulk.buf[i*w:])
		}
		return true, nil
	}
	for o.iter.idx < len(*v) {
		done, err := s.elem.Accum(c, o.iter.elemSt, &(*v)[o.iter.idx])
		if err != nil {
			return false, err
		}
		if !done {
			return false, nil
		}
		o.iter.idx++
		if o.iter.idx < len(*v) {
			o.iter.elemSt = s.elem.Prepare()
		}
	}
	return true, nil
}

// Bytes is the variable byte array, descriptor [:byte|n:].
var Bytes = SliceOf(Byte)

// stringState mirrors sliceState for an immutable destination: bytes
// land in a scratch buffer and become the string on completion.
type stringState struct {
	readLen bool
	lenSt   State
	n       uint64
	bulk    bulkState
}

type stringCodec struct{}

// String treats strings as char arrays; the destination takes exactly
// the declared length.
var String Codec[string] = stringCodec{}

func (stringCodec) Descriptor() ty.Desc {
	return ty.Array{Elem: ty.Prim{Name: "char"}}
}

func (stringCodec) ByteCopyable() bool { return false }

func (stringCodec) Write(c *socket.Conn, v string) error {
	return c.SendString(v)
}

func (stringCodec) Read(c *socket.Conn, v *string) error {
	s, err := c.RecvString()
	if err != nil {
		return err
	}
	*v = s
	return nil
}

func (stringCodec) Prepare() State {
	return &stringState{readLen: true, lenSt: size.Prepare()}
}

func (stringCodec) Accum(c *socket.Conn, st State, v *string) (bool, error) {
	o := st.(*stringState)
	if o.readLen {
		done, err := size.Accum(c, o.lenSt, &o.n)
		if !done {
			return false, err
		}
		o.readLen = false
		o.bulk.buf = make([]byte, o.n)
	}
	done, err := o.bulk.fill(c)
	if !done {
		return false, err
	}
	*v = string(o.bulk.buf)
	return true, nil
}
