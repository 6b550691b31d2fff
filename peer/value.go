package peer

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/baiyanhuang/hnet/socket"
	"github.com/baiyanhuang/hnet/ty"
)

// Choice is a dynamically typed variant value.
type Choice struct {
	Tag   uint32
	Name  string
	Value any
}

var le = binary.LittleEndian

// readArgs reads an invoke's argument tuple as a positional slice.
func readArgs(c *socket.Conn, in ty.Desc) ([]any, error) {
	if isUnit(in) {
		return nil, nil
	}
	if rec, ok := in.(ty.Record); ok {
		args := make([]any, len(rec.Fields))
		for i, f := range rec.Fields {
			v, err := readValue(c, f.Type)
			if err != nil {
				return nil, err
			}
			args[i] = v
		}
		return args, nil
	}
	v, err := readValue(c, in)
	if err != nil {
		return nil, err
	}
	return []any{v}, nil
}

// readValue interprets one value straight off the descriptor tree.
// Records come back as positional slices, variants as Choice values,
// char arrays as strings.
func readValue(c *socket.Conn, d ty.Desc) (any, error) {
	switch t := d.(type) {
	case ty.Prim:
		if t.Under != nil {
			return readValue(c, t.Under)
		}
		return readPrim(c, t.Name)
	case ty.Enum:
		return readValue(c, t.Rep)
	case ty.FixedArray:
		xs := make([]any, t.Len)
		for i := range xs {
			v, err := readValue(c, t.Elem)
			if err != nil {
				return nil, err
			}
			xs[i] = v
		}
		return xs, nil
	case ty.Array:
		n, err := c.RecvUint64()
		if err != nil {
			return nil, err
		}
		if name, ok := primName(t.Elem); ok && (name == "char" || name == "byte") {
			b := make([]byte, n)
			if err := c.RecvAll(b); err != nil {
				return nil, err
			}
			if name == "char" {
				return string(b), nil
			}
			return b, nil
		}
		xs := make([]any, n)
		for i := range xs {
			v, err := readValue(c, t.Elem)
			if err != nil {
				return nil, err
			}
			xs[i] = v
		}
		return xs, nil
	case ty.Record:
		xs := make([]any, len(t.Fields))
		for i, f := range t.Fields {
			v, err := readValue(c, f.Type)
			if err != nil {
				return nil, err
			}
			xs[i] = v
		}
		return xs, nil
	case ty.Variant:
		tag, err := c.RecvUint32()
		if err != nil {
			return nil, err
		}
		for _, ctor := range t.Ctors {
			if ctor.ID == tag {
				v, err := readValue(c, ctor.Type)
				if err != nil {
					return nil, err
				}
				return Choice{Tag: tag, Name: ctor.Name, Value: v}, nil
			}
		}
		return nil, fmt.Errorf("peer: variant tag %d has no constructor", tag)
	default:
		return nil, fmt.Errorf("peer: cannot read %T", d)
	}
}

func primName(d ty.Desc) (string, bool) {
	p, ok := d.(ty.Prim)
	if !ok || p.Under != nil {
		return "", false
	}
	return p.Name, true
}

func readPrim(c *socket.Conn, name string) (any, error) {
	switch name {
	case "unit":
		return nil, nil
	case "bool":
		b, err := c.RecvUint8()
		return b != 0, err
	case "byte", "char":
		return c.RecvUint8()
	case "short":
		b, err := recvN(c, 2)
		if err != nil {
			return nil, err
		}
		return int16(le.Uint16(b)), nil
	case "int":
		b, err := recvN(c, 4)
		if err != nil {
			return nil, err
		}
		return int32(le.Uint32(b)), nil
	case "long":
		b, err := recvN(c, 8)
		if err != nil {
			return nil, err
		}
		return int64(le.Uint64(b)), nil
	case "float":
		b, err := recvN(c, 4)
		if err != nil {
			return nil, err
		}
		return math.Float32frombits(le.Uint32(b)), nil
	case "double":
		b, err := recvN(c, 8)
		if err != nil {
			return nil, err
		}
		return math.Float64frombits(le.Uint64(b)), nil
	default:
		return nil, fmt.Errorf("peer: unknown primitive %q", name)
	}
}

func recvN(c *socket.Conn, n int) ([]byte, error) {
	b := make([]byte, n)
	if err := c.RecvAll(b); err != nil {
		return nil, err
	}
	return b, nil
}

// writeValue coerces an expression result onto the declared reply
// descriptor and writes its wire form.
func writeValue(c *socket.Conn, d ty.Desc, v any) error {
	switch t := d.(type) {
	case ty.Prim:
		if t.Under != nil {
			return writeValue(c, t.Under, v)
		}
		return writePrim(c, t.Name, v)
	case ty.Enum:
		return writeValue(c, t.Rep, v)
	case ty.FixedArray:
		xs, err := asList(v)
		if err != nil {
			return err
		}
		if uint64(len(xs)) != t.Len {
			return fmt.Errorf("peer: fixed array wants %d elements, got %d", t.Len, len(xs))
		}
		for _, x := range xs {
			if err := writeValue(c, t.Elem, x); err != nil {
				return err
			}
		}
		return nil
	case ty.Array:
		if name, ok := primName(t.Elem); ok && (name == "char" || name == "byte") {
			b, err := asBytes(v)
			if err != nil {
				return err
			}
			return c.SendBytes(b)
		}
		xs, err := asList(v)
		if err != nil {
			return err
		}
		if err := c.SendUint64(uint64(len(xs))); err != nil {
			return err
		}
		for _, x := range xs {
			if err := writeValue(c, t.Elem, x); err != nil {
				return err
			}
		}
		return nil
	case ty.Record:
		if len(t.Fields) == 1 {
			if _, isList := v.([]any); !isList {
				return writeValue(c, t.Fields[0].Type, v)
			}
		}
		xs, err := asList(v)
		if err != nil {
			return err
		}
		if len(xs) != len(t.Fields) {
			return fmt.Errorf("peer: record wants %d fields, got %d", len(t.Fields), len(xs))
		}
		for i, f := range t.Fields {
			if err := writeValue(c, f.Type, xs[i]); err != nil {
				return err
			}
		}
		return nil
	case ty.Variant:
		ch, ok := v.(Choice)
		if !ok {
			return fmt.Errorf("peer: variant reply wants a Choice, got %T", v)
		}
		for _, ctor := range t.Ctors {
			if ctor.ID == ch.Tag {
				if err := c.SendUint32(ch.Tag); err != nil {
					return err
				}
				return writeValue(c, ctor.Type, ch.Value)
			}
		}
		return fmt.Errorf("peer: variant has no constructor with tag %d", ch.Tag)
	default:
		return fmt.Errorf("peer: cannot write %T", d)
	}
}

func writePrim(c *socket.Conn, name string, v any) error {
	switch name {
	case "unit":
		return nil
	case "bool":
		b, ok := v.(bool)
		if !ok {
			return fmt.Errorf("peer: bool reply wants a bool, got %T", v)
		}
		if b {
			return c.SendUint8(1)
		}
		return c.SendUint8(0)
	case "byte", "char":
		n, ok := asInt64(v)
		if !ok {
			return fmt.Errorf("peer: %s reply wants an integer, got %T", name, v)
		}
		return c.SendUint8(uint8(n))
	case "short":
		n, ok := asInt64(v)
		if !ok {
			return fmt.Errorf("peer: short reply wants an integer, got %T", v)
		}
		var b [2]byte
		le.PutUint16(b[:], uint16(n))
		return c.SendAll(b[:])
	case "int":
		n, ok := asInt64(v)
		if !ok {
			return fmt.Errorf("peer: int reply wants an integer, got %T", v)
		}
		var b [4]byte
		le.PutUint32(b[:], uint32(n))
		return c.SendAll(b[:])
	case "long":
		n, ok := asInt64(v)
		if !ok {
			return fmt.Errorf("peer: long reply wants an integer, got %T", v)
		}
		var b [8]byte
		le.PutUint64(b[:], uint64(n))
		return c.SendAll(b[:])
	case "float":
		f, ok := asFloat64(v)
		if !ok {
			return fmt.Errorf("peer: float reply wants a number, got %T", v)
		}
		var b [4]byte
		le.PutUint32(b[:], math.Float32bits(float32(f)))
		return c.SendAll(b[:])
	case "double":
		f, ok := asFloat64(v)
		if !ok {
			return fmt.Errorf("peer: double reply wants a number, got %T", v)
		}
		var b [8]byte
		le.PutUint64(b[:], math.Float64bits(f))
		return c.SendAll(b[:])
	default:
		return fmt.Errorf("peer: unknown primitive %q", name)
	}
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	case uint:
		return int64(n), true
	case float64:
		return int64(n), true
	case float32:
		return int64(n), true
	default:
		return 0, false
	}
}

func asFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	default:
		if i, ok := asInt64(v); ok {
			return float64(i), true
		}
		return 0, false
	}
}

func asList(v any) ([]any, error) {
	if xs, ok := v.([]any); ok {
		return xs, nil
	}
	return nil, fmt.Errorf("peer: wanted a list, got %T", v)
}

func asBytes(v any) ([]byte, error) {
	switch b := v.(type) {
	case string:
		return []byte(b), nil
	case []byte:
		return b, nil
	default:
		return nil, fmt.Errorf("peer: wanted a string or bytes, got %T", v)
	}
}
