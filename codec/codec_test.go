package codec_test

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/baiyanhuang/hnet/codec"
	"github.com/baiyanhuang/hnet/socket"
	"github.com/baiyanhuang/hnet/ty"
)

func mustPair(t *testing.T) (*socket.Conn, *socket.Conn) {
	t.Helper()
	a, b, err := socket.Pair()
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	t.Cleanup(func() {
		a.Close()
		b.Close()
	})
	return a, b
}

// encode captures the wire form of one value.
func encode[T any](t *testing.T, c codec.Codec[T], v T) []byte {
	t.Helper()
	a, b := mustPair(t)
	if err := c.Write(a, v); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := b.SetBlocking(false); err != nil {
		t.Fatalf("SetBlocking: %v", err)
	}
	var wire []byte
	buf := make([]byte, 4096)
	for {
		n, err := b.RecvPartial(buf)
		if err != nil {
			t.Fatalf("RecvPartial: %v", err)
		}
		if n == 0 {
			return wire
		}
		wire = append(wire, buf[:n]...)
	}
}

// roundtrip checks the blocking write/read pair over a loopback
// socket.
func roundtrip[T any](t *testing.T, c codec.Codec[T], v T) {
	t.Helper()
	a, b := mustPair(t)
	if err := c.Write(a, v); err != nil {
		t.Fatalf("Write: %v", err)
	}
	var got T
	if err := c.Read(b, &got); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !reflect.DeepEqual(got, v) {
		t.Fatalf("roundtrip got %#v, want %#v", got, v)
	}
}

// accumChunked feeds the wire form of v through the resumable reader
// in fixed-size chunks and checks that completion is reported exactly
// when the last byte lands.
func accumChunked[T any](t *testing.T, c codec.Codec[T], v T, chunk int) {
	t.Helper()
	wire := encode(t, c, v)

	a, b := mustPair(t)
	if err := b.SetBlocking(false); err != nil {
		t.Fatalf("SetBlocking: %v", err)
	}

	st := c.Prepare()
	var got T

	if len(wire) == 0 {
		done, err := c.Accum(b, st, &got)
		if err != nil || !done {
			t.Fatalf("zero-byte value: got (%v, %v), want done", done, err)
		}
	} else {
		// An empty socket yields zero progress, repeatedly.
		for i := 0; i < 2; i++ {
			done, err := c.Accum(b, st, &got)
			if err != nil {
				t.Fatalf("Accum on empty socket: %v", err)
			}
			if done {
				t.Fatal("Accum reported done before any bytes arrived")
			}
		}
		for off := 0; off < len(wire); off += chunk {
			end := off + chunk
			if end > len(wire) {
				end = len(wire)
			}
			if err := a.SendAll(wire[off:end]); err != nil {
				t.Fatalf("SendAll: %v", err)
			}
			done, err := c.Accum(b, st, &got)
			if err != nil {
				t.Fatalf("Accum: %v", err)
			}
			if done != (end == len(wire)) {
				t.Fatalf("chunk %d: done=%v at offset %d/%d", chunk, done, end, len(wire))
			}
		}
	}

	if !reflect.DeepEqual(got, v) {
		t.Fatalf("chunk %d: accumulated %#v, want %#v", chunk, got, v)
	}
}

// check runs the full battery on one codec/value pair.
func check[T any](t *testing.T, name string, c codec.Codec[T], v T) {
	t.Run(name, func(t *testing.T) {
		roundtrip(t, c, v)
		for _, chunk := range []int{1, 2, 3, 5, 7, 16} {
			accumChunked(t, c, v, chunk)
		}
	})
}

func TestScalars(t *testing.T) {
	check(t, "bool", codec.Bool, true)
	check(t, "byte", codec.Byte, uint8(0xa5))
	check(t, "char", codec.Char, byte('q'))
	check(t, "int16", codec.Int16, int16(-12345))
	check(t, "uint16", codec.UInt16, uint16(0xbeef))
	check(t, "int32", codec.Int32, int32(-7))
	check(t, "uint32", codec.UInt32, uint32(0xdeadbeef))
	check(t, "int64", codec.Int64, int64(-1<<40))
	check(t, "uint64", codec.UInt64, uint64(1)<<63)
	check(t, "float32", codec.Float32, float32(3.25))
	check(t, "float64", codec.Float64, -6.75e100)
	check(t, "unit", codec.UnitCodec, codec.Unit{})
}

func TestScalarWireWidths(t *testing.T) {
	// A byte-copyable codec's wire length is its fixed in-memory width.
	if n := len(encode(t, codec.Bool, true)); n != 1 {
		t.Fatalf("bool wire length %d", n)
	}
	if n := len(encode(t, codec.Int32, int32(7))); n != 4 {
		t.Fatalf("int wire length %d", n)
	}
	if n := len(encode(t, codec.Float64, 1.0)); n != 8 {
		t.Fatalf("double wire length %d", n)
	}
	if !codec.Int32.ByteCopyable() {
		t.Fatal("int32 must be byte-copyable")
	}
	if codec.String.ByteCopyable() {
		t.Fatal("string must not be byte-copyable")
	}
	if codec.FixedArrayOf(codec.Int32, 4).ByteCopyable() {
		t.Fatal("fixed arrays are not advertised byte-copyable")
	}
}

func TestEnumAndAlias(t *testing.T) {
	colors := codec.EnumOf(codec.Int32, []ty.EnumCtor{{Name: "red", Value: 0}, {Name: "blue", Value: 1}})
	check(t, "enum", colors, int32(1))
	if !colors.ByteCopyable() {
		t.Fatal("enum over int must be byte-copyable")
	}

	fd := codec.AliasOf("fd", codec.Int32)
	check(t, "alias", fd, int32(42))
	if !fd.ByteCopyable() {
		t.Fatal("alias must inherit byte-copyability")
	}
	p, ok := fd.Descriptor().(ty.Prim)
	if !ok || p.Name != "fd" || p.Under == nil {
		t.Fatalf("alias descriptor %#v", fd.Descriptor())
	}
}

func TestStringsAndBytes(t *testing.T) {
	check(t, "empty", codec.String, "")
	check(t, "short", codec.String, "hellowo")
	check(t, "longer", codec.String, "a somewhat longer string payload, still modest")
	check(t, "bytes", codec.Bytes, []byte{1, 2, 3, 0xff})
	check(t, "bytes/empty", codec.Bytes, []byte{})

	want := ty.Array{Elem: ty.Prim{Name: "char"}}
	if !ty.Equal(codec.String.Descriptor(), want) {
		t.Fatal("strings must describe as char arrays")
	}
}

func TestArrays(t *testing.T) {
	check(t, "slice/int", codec.SliceOf(codec.Int32), []int32{5, -6, 7})
	check(t, "slice/empty", codec.SliceOf(codec.Int32), []int32{})
	check(t, "slice/string", codec.SliceOf(codec.String), []string{"a", "", "ccc"})
	check(t, "fixed/int", codec.FixedArrayOf(codec.Int32, 4), []int32{1, 2, 3, 4})
	check(t, "fixed/string", codec.FixedArrayOf(codec.String, 2), []string{"x", "yy"})
	check(t, "slice/slice", codec.SliceOf(codec.SliceOf(codec.Byte)), [][]uint8{{1}, {}, {2, 3}})

	// Writing the wrong length through a fixed array codec fails.
	a, _ := mustPair(t)
	if err := codec.FixedArrayOf(codec.Int32, 4).Write(a, []int32{1}); err == nil {
		t.Fatal("fixed array accepted a short value")
	}
}

func TestPairsAndTuples(t *testing.T) {
	check(t, "pair", codec.PairOf(codec.Int32, codec.String), codec.MkPair(int32(7), "seven"))
	check(t, "tuple3", codec.TupleOf3(codec.Bool, codec.Int64, codec.String),
		codec.Tuple3[bool, int64, string]{F0: true, F1: -9, F2: "end"})

	// The pair descriptor is the two-field positional record.
	want := ty.TupleOf(ty.Prim{Name: "int"}, ty.Array{Elem: ty.Prim{Name: "char"}})
	if !ty.Equal(codec.PairOf(codec.Int32, codec.String).Descriptor(), want) {
		t.Fatal("pair descriptor mismatch")
	}

	// One-argument tuples keep the field's wire form.
	one := codec.TupleOf1(codec.Int32)
	if got := encode(t, one, int32(3)); len(got) != 4 {
		t.Fatalf("tuple-of-one wire length %d", len(got))
	}
	if !ty.Equal(one.Descriptor(), ty.TupleOf(ty.Prim{Name: "int"})) {
		t.Fatal("tuple-of-one descriptor mismatch")
	}
}

type scanRecord struct {
	xs   []int32
	tail uint8
}

func scanRecordCodec() codec.Codec[scanRecord] {
	return codec.StructOf(
		codec.FieldOf("xs", codec.SliceOf(codec.Int32), func(r *scanRecord) *[]int32 { return &r.xs }),
		codec.FieldOf("tail", codec.Byte, func(r *scanRecord) *uint8 { return &r.tail }),
	)
}

func TestRecords(t *testing.T) {
	// A variable-length array followed by another field: the reader
	// must finish the array before the trailing byte is interpreted.
	check(t, "array-then-field", scanRecordCodec(), scanRecord{xs: []int32{1, 2, 3}, tail: 9})
	check(t, "array-then-field/empty", scanRecordCodec(), scanRecord{xs: []int32{}, tail: 4})

	rec, ok := scanRecordCodec().Descriptor().(ty.Record)
	if !ok || rec.Fields[0].Name != "xs" || rec.Fields[1].Name != "tail" {
		t.Fatalf("record descriptor %#v", scanRecordCodec().Descriptor())
	}
}

func TestVariants(t *testing.T) {
	sum := codec.SumOf2(codec.Int32, codec.String)
	check(t, "sum/left", sum, codec.Sum2[int32, string]{Tag: 0, F0: 41})
	check(t, "sum/right", sum, codec.Sum2[int32, string]{Tag: 1, F1: "foo"})

	// Wire form: u32 tag then payload.
	wire := encode(t, sum, codec.Sum2[int32, string]{Tag: 1, F1: "foo"})
	want := []byte{
		0x01, 0x00, 0x00, 0x00,
		0x03, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		'f', 'o', 'o',
	}
	if !bytes.Equal(wire, want) {
		t.Fatalf("variant wire form %v, want %v", wire, want)
	}

	nested := codec.SumOf2(codec.Int32, codec.SumOf2(codec.Int32, codec.String))
	check(t, "sum/nested", nested, codec.Sum2[int32, codec.Sum2[int32, string]]{
		Tag: 1,
		F1:  codec.Sum2[int32, string]{Tag: 1, F1: "deep"},
	})

	// Arity 1 still writes its tag.
	only := codec.VariantOf(
		func(v *codec.Sum2[int32, string]) *uint32 { return &v.Tag },
		codec.CaseOf(".f0", 0, codec.Int32, func(v *codec.Sum2[int32, string]) *int32 { return &v.F0 }),
	)
	check(t, "sum/arity1", only, codec.Sum2[int32, string]{Tag: 0, F0: 3})

	// An unknown tag is an error, not undefined behavior.
	a, b := mustPair(t)
	if err := a.SendAll([]byte{0x09, 0x00, 0x00, 0x00}); err != nil {
		t.Fatalf("SendAll: %v", err)
	}
	var out codec.Sum2[int32, string]
	if err := sum.Read(b, &out); err == nil {
		t.Fatal("unknown variant tag accepted")
	}
}

func TestMaps(t *testing.T) {
	m := codec.MapOf(codec.Int32, codec.String)
	check(t, "map", m, map[int32]string{1: "a", 2: "bb"})
	check(t, "map/empty", m, map[int32]string{})

	// The map descriptor is exactly the array of key/value pairs.
	pairs := codec.SliceOf(codec.PairOf(codec.Int32, codec.String))
	if !ty.Equal(m.Descriptor(), pairs.Descriptor()) {
		t.Fatal("map descriptor differs from its pair-array form")
	}

	// Entries land in ascending key order.
	wire := encode(t, m, map[int32]string{2: "bb", 1: "a"})
	wantPrefix := []byte{
		0x02, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x01, 0x00, 0x00, 0x00,
	}
	if !bytes.HasPrefix(wire, wantPrefix) {
		t.Fatalf("map wire form %v does not start with sorted first entry", wire)
	}
}

func TestDescriptorIdentity(t *testing.T) {
	// Independently constructed codecs for one type describe
	// byte-identical encodings.
	mk := func() codec.Codec[codec.Pair[int32, string]] {
		return codec.PairOf(codec.Int32, codec.String)
	}
	a := ty.Encoding(mk().Descriptor())
	b := ty.Encoding(mk().Descriptor())
	if !bytes.Equal(a, b) {
		t.Fatal("descriptor encodings differ between constructions")
	}
}

func TestReaderReuse(t *testing.T) {
	// A completed reader may immediately be re-prepared and reused.
	c := codec.String
	a, b := mustPair(t)
	if err := b.SetBlocking(false); err != nil {
		t.Fatalf("SetBlocking: %v", err)
	}

	for _, want := range []string{"first", "second"} {
		if err := c.Write(a, want); err != nil {
			t.Fatalf("Write: %v", err)
		}
		st := c.Prepare()
		var got string
		done, err := c.Accum(b, st, &got)
		if err != nil {
			t.Fatalf("Accum: %v", err)
		}
		if !done || got != want {
			t.Fatalf("got (%v, %q), want (true, %q)", done, got, want)
		}
	}
}

func TestLargeReplyInSmallChunks(t *testing.T) {
	// A large value still assembles correctly byte by byte.
	xs := make([]int32, 500)
	for i := range xs {
		xs[i] = int32(i * 3)
	}
	accumChunked(t, codec.SliceOf(codec.Int32), xs, 1)
	accumChunked(t, codec.SliceOf(codec.Int32), xs, 16)
}
