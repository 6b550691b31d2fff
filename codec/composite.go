package codec

import (
	"cmp"
	"slices"

	"github.com/baiyanhuang/hnet/errors"
	"github.com/baiyanhuang/hnet/socket"
	"github.com/baiyanhuang/hnet/ty"
)

// Pair is the two-field tuple {.f0, .f1}.
type Pair[U, V any] struct {
	First  U
	Second V
}

// MkPair builds a Pair without naming its type arguments.
func MkPair[U, V any](u U, v V) Pair[U, V] {
	return Pair[U, V]{First: u, Second: v}
}

// pairState reads First then Second.
type pairState struct {
	readFirst bool
	fstSt     State
	sndSt     State
}

type pairCodec[U, V any] struct {
	cu Codec[U]
	cv Codec[V]
}

func PairOf[U, V any](cu Codec[U], cv Codec[V]) Codec[Pair[U, V]] {
	return pairCodec[U, V]{cu: cu, cv: cv}
}

func (p pairCodec[U, V]) Descriptor() ty.Desc {
	return ty.TupleOf(p.cu.Descriptor(), p.cv.Descriptor())
}

func (p pairCodec[U, V]) ByteCopyable() bool { return false }

func (p pairCodec[U, V]) Write(c *socket.Conn, v Pair[U, V]) error {
	if err := p.cu.Write(c, v.First); err != nil {
		return err
	}
	return p.cv.Write(c, v.Second)
}

func (p pairCodec[U, V]) Read(c *socket.Conn, v *Pair[U, V]) error {
	if err := p.cu.Read(c, &v.First); err != nil {
		return err
	}
	return p.cv.Read(c, &v.Second)
}

func (p pairCodec[U, V]) Prepare() State {
	return &pairState{readFirst: true, fstSt: p.cu.Prepare(), sndSt: p.cv.Prepare()}
}

func (p pairCodec[U, V]) Accum(c *socket.Conn, st State, v *Pair[U, V]) (bool, error) {
	o := st.(*pairState)
	if o.readFirst {
		done, err := p.cu.Accum(c, o.fstSt, &v.First)
		if !done {
			return false, err
		}
		o.readFirst = false
	}
	return p.cv.Accum(c, o.sndSt, &v.Second)
}

// Field binds one named field of a record codec to a slot inside the
// record's Go value.
type Field[T any] struct {
	name    string
	desc    ty.Desc
	write   func(c *socket.Conn, t *T) error
	read    func(c *socket.Conn, t *T) error
	prepare func() State
	accum   func(c *socket.Conn, st State, t *T) (bool, error)
}

// FieldOf binds field name to the slot sel selects out of *T.
func FieldOf[T, F any](name string, fc Codec[F], sel func(*T) *F) Field[T] {
	return Field[T]{
		name: name,
		desc: fc.Descriptor(),
		write: func(c *socket.Conn, t *T) error {
			return fc.Write(c, *sel(t))
		},
		read: func(c *socket.Conn, t *T) error {
			return fc.Read(c, sel(t))
		},
		prepare: func() State {
			return fc.Prepare()
		},
		accum: func(c *socket.Conn, st State, t *T) (bool, error) {
			return fc.Accum(c, st, sel(t))
		},
	}
}

// structState is the tag of the field currently being read plus that
// field's nested state.
type structState struct {
	idx   int
	subSt State
}

type structCodec[T any] struct {
	fields []Field[T]
}

// StructOf builds a record codec from fields in declaration order.
// The wire form is the concatenation of the field values.
func StructOf[T any](fields ...Field[T]) Codec[T] {
	return structCodec[T]{fields: fields}
}

func (s structCodec[T]) Descriptor() ty.Desc {
	if len(s.fields) == 0 {
		return ty.Unit
	}
	fs := make([]ty.Field, len(s.fields))
	for i, f := range s.fields {
		fs[i] = ty.Field{Name: f.name, Offset: -1, Type: f.desc}
	}
	return ty.Record{Fields: fs}
}

func (s structCodec[T]) ByteCopyable() bool { return false }

func (s structCodec[T]) Write(c *socket.Conn, v T) error {
	for _, f := range s.fields {
		if err := f.write(c, &v); err != nil {
			return err
		}
	}
	return nil
}

func (s structCodec[T]) Read(c *socket.Conn, v *T) error {
	for _, f := range s.fields {
		if err := f.read(c, v); err != nil {
			return err
		}
	}
	return nil
}

func (s structCodec[T]) Prepare() State {
	st := &structState{}
	if len(s.fields) > 0 {
		st.subSt = s.fields[0].prepare()
	}
	return st
}

func (s structCodec[T]) Accum(c *socket.Conn, st State, v *T) (bool, error) {
	o := st.(*structState)
	for o.idx < len(s.fields) {
		done, err := s.fields[o.idx].accum(c, o.subSt, v)
		if err != nil {
			return false, err
		}
		if !done {
			return false, nil
		}
		o.idx++
		if o.idx < len(s.fields) {
			o.subSt = s.fields[o.idx].prepare()
		}
	}
	return true, nil
}

// Tuple3 is the three-field tuple {.f0, .f1, .f2}.
type Tuple3[A, B, C any] struct {
	F0 A
	F1 B
	F2 C
}

func TupleOf3[A, B, C any](ca Codec[A], cb Codec[B], cc Codec[C]) Codec[Tuple3[A, B, C]] {
	return StructOf(
		FieldOf(ty.TupleField(0), ca, func(t *Tuple3[A, B, C]) *A { return &t.F0 }),
		FieldOf(ty.TupleField(1), cb, func(t *Tuple3[A, B, C]) *B { return &t.F1 }),
		FieldOf(ty.TupleField(2), cc, func(t *Tuple3[A, B, C]) *C { return &t.F2 }),
	)
}

// TupleOf2 is PairOf under its positional name.
func TupleOf2[A, B any](ca Codec[A], cb Codec[B]) Codec[Pair[A, B]] {
	return PairOf(ca, cb)
}

// arg1Codec is the one-field tuple: same wire form as its field, but
// described as a record {.f0}.
type arg1Codec[A any] struct {
	c Codec[A]
}

// TupleOf1 wraps a codec as a one-field positional record, the input
// shape of a single-argument RPC.
func TupleOf1[A any](c Codec[A]) Codec[A] {
	return arg1Codec[A]{c: c}
}

func (a arg1Codec[A]) Descriptor() ty.Desc {
	return ty.TupleOf(a.c.Descriptor())
}

func (a arg1Codec[A]) ByteCopyable() bool { return false }

func (a arg1Codec[A]) Write(c *socket.Conn, v A) error { return a.c.Write(c, v) }

func (a arg1Codec[A]) Read(c *socket.Conn, v *A) error { return a.c.Read(c, v) }

func (a arg1Codec[A]) Prepare() State { return a.c.Prepare() }

func (a arg1Codec[A]) Accum(c *socket.Conn, st State, v *A) (bool, error) {
	return a.c.Accum(c, st, v)
}

// Case binds one constructor of a variant codec: its name, tag,
// payload codec, and the payload slot inside the variant's Go value.
type Case[T any] struct {
	name    string
	tag     uint32
	desc    ty.Desc
	reset   func(t *T)
	write   func(c *socket.Conn, t *T) error
	read    func(c *socket.Conn, t *T) error
	prepare func() State
	accum   func(c *socket.Conn, st State, t *T) (bool, error)
}

func CaseOf[T, P any](name string, tagID uint32, pc Codec[P], sel func(*T) *P) Case[T] {
	return Case[T]{
		name: name,
		tag:  tagID,
		desc: pc.Descriptor(),
		reset: func(t *T) {
			var zero P
			*sel(t) = zero
		},
		write: func(c *socket.Conn, t *T) error {
			return pc.Write(c, *sel(t))
		},
		read: func(c *socket.Conn, t *T) error {
			var zero P
			*sel(t) = zero
			return pc.Read(c, sel(t))
		},
		prepare: func() State {
			return pc.Prepare()
		},
		accum: func(c *socket.Conn, st State, t *T) (bool, error) {
			return pc.Accum(c, st, sel(t))
		},
	}
}

// variantState is the readTag flag, the tag reader, and once the tag
// is known, the selected constructor and its payload state.
type variantState struct {
	readTag bool
	tagSt   State
	caseIdx int
	paySt   State
}

type variantCodec[T any] struct {
	tagOf func(*T) *uint32
	cases []Case[T]
	byTag map[uint32]int
}

// VariantOf builds a variant codec. tagOf selects the tag slot inside
// the variant's Go value; each case owns one payload slot.
func VariantOf[T any](tagOf func(*T) *uint32, cases ...Case[T]) Codec[T] {
	byTag := make(map[uint32]int, len(cases))
	for i, cs := range cases {
		byTag[cs.tag] = i
	}
	return variantCodec[T]{tagOf: tagOf, cases: cases, byTag: byTag}
}

func (vc variantCodec[T]) Descriptor() ty.Desc {
	cs := make([]ty.Ctor, len(vc.cases))
	for i, c := range vc.cases {
		cs[i] = ty.Ctor{Name: c.name, ID: c.tag, Type: c.desc}
	}
	return ty.Variant{Ctors: cs}
}

func (vc variantCodec[T]) ByteCopyable() bool { return false }

func (vc variantCodec[T]) Write(c *socket.Conn, v T) error {
	t := *vc.tagOf(&v)
	i, ok := vc.byTag[t]
	if !ok {
		return errors.ErrBadTag
	}
	if err := c.SendUint32(t); err != nil {
		return err
	}
	return vc.cases[i].write(c, &v)
}

func (vc variantCodec[T]) Read(c *socket.Conn, v *T) error {
	t, err := c.RecvUint32()
	if err != nil {
		return err
	}
	i, ok := vc.byTag[t]
	if !ok {
		return errors.ErrBadTag
	}
	*vc.tagOf(v) = t
	return vc.cases[i].read(c, v)
}

func (vc variantCodec[T]) Prepare() State {
	return &variantState{readTag: true, tagSt: tag.Prepare()}
}

func (vc variantCodec[T]) Accum(c *socket.Conn, st State, v *T) (bool, error) {
	o := st.(*variantState)
	if o.readTag {
		done, err := tag.Accum(c, o.tagSt, vc.tagOf(v))
		if !done {
			return false, err
		}
		i, ok := vc.byTag[*vc.tagOf(v)]
		if !ok {
			return false, errors.ErrBadTag
		}
		o.readTag = false
		o.caseIdx = i
		o.paySt = vc.cases[i].prepare()
		vc.cases[i].reset(v)
	}
	return vc.cases[o.caseIdx].accum(c, o.paySt, v)
}

// Sum2 is the anonymous two-constructor sum <.f0|.f1>. Tag selects
// which payload slot is live.
type Sum2[A, B any] struct {
	Tag uint32
	F0  A
	F1  B
}

func SumOf2[A, B any](ca Codec[A], cb Codec[B]) Codec[Sum2[A, B]] {
	return VariantOf(
		func(v *Sum2[A, B]) *uint32 { return &v.Tag },
		CaseOf(ty.TupleField(0), 0, ca, func(v *Sum2[A, B]) *A { return &v.F0 }),
		CaseOf(ty.TupleField(1), 1, cb, func(v *Sum2[A, B]) *B { return &v.F1 }),
	)
}

// Sum3 is the anonymous three-constructor sum <.f0|.f1|.f2>.
type Sum3[A, B, C any] struct {
	Tag uint32
	F0  A
	F1  B
	F2  C
}

func SumOf3[A, B, C any](ca Codec[A], cb Codec[B], cc Codec[C]) Codec[Sum3[A, B, C]] {
	return VariantOf(
		func(v *Sum3[A, B, C]) *uint32 { return &v.Tag },
		CaseOf(ty.TupleField(0), 0, ca, func(v *Sum3[A, B, C]) *A { return &v.F0 }),
		CaseOf(ty.TupleField(1), 1, cb, func(v *Sum3[A, B, C]) *B { return &v.F1 }),
		CaseOf(ty.TupleField(2), 2, cc, func(v *Sum3[A, B, C]) *C { return &v.F2 }),
	)
}

// mapPhase is the {LEN, KEY, VAL} machine of a map reader.
type mapPhase uint8

const (
	phaseLen mapPhase = iota
	phaseKey
	phaseVal
)

type mapState[K comparable, V any] struct {
	phase mapPhase
	lenSt State
	n     uint64
	kSt   State
	k     K
	vSt   State
	val   V
}

type mapCodec[K cmp.Ordered, V any] struct {
	ck Codec[K]
	cv Codec[V]
}

// MapOf describes maps as variable arrays of key/value pairs. Entries
// are written in ascending key order, so the wire form of a given map
// is stable.
func MapOf[K cmp.Ordered, V any](ck Codec[K], cv Codec[V]) Codec[map[K]V] {
	return mapCodec[K, V]{ck: ck, cv: cv}
}

func (m mapCodec[K, V]) Descriptor() ty.Desc {
	return ty.Array{Elem: ty.TupleOf(m.ck.Descriptor(), m.cv.Descriptor())}
}

func (m mapCodec[K, V]) ByteCopyable() bool { return false }

func (m mapCodec[K, V]) Write(c *socket.Conn, v map[K]V) error {
	if err := c.SendUint64(uint64(len(v))); err != nil {
		return err
	}
	keys := make([]K, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if err := m.ck.Write(c, k); err != nil {
			return err
		}
		if err := m.cv.Write(c, v[k]); err != nil {
			return err
		}
	}
	return nil
}

func (m mapCodec[K, V]) Read(c *socket.Conn, v *map[K]V) error {
	n, err := c.RecvUint64()
	if err != nil {
		return err
	}
	*v = make(map[K]V, n)
	for i := uint64(0); i < n; i++ {
		var k K
		if err := m.ck.Read(c, &k); err != nil {
			return err
		}
		var val V
		if err := m.cv.Read(c, &val); err != nil {
			return err
		}
		(*v)[k] = val
	}
	return nil
}

func (m mapCodec[K, V]) Prepare() State {
	return &mapState[K, V]{phase: phaseLen, lenSt: size.Prepare()}
}

func (m mapCodec[K, V]) Accum(c *socket.Conn, st State, v *map[K]V) (bool, error) {
	o := st.(*mapState[K, V])
	for {
		switch o.phase {
		case phaseLen:
			done, err := size.Accum(c, o.lenSt, &o.n)
			if !done {
				return false, err
			}
			*v = make(map[K]V, o.n)
			o.phase = phaseKey
			o.kSt = m.ck.Prepare()
			var zk K
			o.k = zk
		case phaseKey:
			if o.n == 0 {
				return true, nil
			}
			done, err := m.ck.Accum(c, o.kSt, &o.k)
			if !done {
				return false, err
			}
			o.phase = phaseVal
			o.vSt = m.cv.Prepare()
			var zv V
			o.val = zv
		case phaseVal:
			done, err := m.cv.Accum(c, o.vSt, &o.val)
			if !done {
				return false, err
			}
			(*v)[o.k] = o.val
			o.n--
			o.phase = phaseKey
			o.kSt = m.ck.Prepare()
			var zk K
			o.k = zk
		}
	}
}
