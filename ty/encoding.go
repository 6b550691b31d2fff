package ty

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Node tags of the canonical encoding. The encoding is a pre-order
// walk of the tree; all integers little-endian, lengths 64-bit.
const (
	tagPrim    uint8 = 0
	tagAlias   uint8 = 1
	tagEnum    uint8 = 2
	tagFixed   uint8 = 3
	tagArray   uint8 = 4
	tagRecord  uint8 = 5
	tagVariant uint8 = 6
)

// Encoding returns the canonical bytes of d. The result is stable:
// equal descriptors always produce identical bytes.
func Encoding(d Desc) []byte {
	var e encoder
	e.desc(d)
	return e.buf
}

type encoder struct {
	buf []byte
}

func (e *encoder) u8(v uint8)   { e.buf = append(e.buf, v) }
func (e *encoder) u32(v uint32) { e.buf = binary.LittleEndian.AppendUint32(e.buf, v) }
func (e *encoder) u64(v uint64) { e.buf = binary.LittleEndian.AppendUint64(e.buf, v) }
func (e *encoder) i64(v int64)  { e.u64(uint64(v)) }

func (e *encoder) str(s string) {
	e.u64(uint64(len(s)))
	e.buf = append(e.buf, s...)
}

func (e *encoder) desc(d Desc) {
	switch t := d.(type) {
	case Prim:
		if t.Under != nil {
			e.u8(tagAlias)
			e.str(t.Name)
			e.desc(t.Under)
		} else {
			e.u8(tagPrim)
			e.str(t.Name)
		}
	case Enum:
		e.u8(tagEnum)
		e.desc(t.Rep)
		e.u64(uint64(len(t.Ctors)))
		for _, c := range t.Ctors {
			e.str(c.Name)
			e.i64(c.Value)
		}
	case FixedArray:
		e.u8(tagFixed)
		e.desc(t.Elem)
		e.u64(t.Len)
	case Array:
		e.u8(tagArray)
		e.desc(t.Elem)
	case Record:
		e.u8(tagRecord)
		e.u64(uint64(len(t.Fields)))
		for _, f := range t.Fields {
			e.str(f.Name)
			e.i64(f.Offset)
			e.desc(f.Type)
		}
	case Variant:
		e.u8(tagVariant)
		e.u64(uint64(len(t.Ctors)))
		for _, c := range t.Ctors {
			e.str(c.Name)
			e.u32(c.ID)
			e.desc(c.Type)
		}
	default:
		panic(fmt.Sprintf("ty: cannot encode %T", d))
	}
}

var errTruncated = errors.New("ty: truncated descriptor encoding")

// Decode parses a canonical encoding back into a descriptor tree.
func Decode(b []byte) (Desc, error) {
	d := decoder{buf: b}
	t, err := d.desc()
	if err != nil {
		return nil, err
	}
	if d.off != len(b) {
		return nil, fmt.Errorf("ty: %d trailing bytes after descriptor", len(b)-d.off)
	}
	return t, nil
}

type decoder struct {
	buf []byte
	off int
}

func (d *decoder) u8() (uint8, error) {
	if d.off+1 > len(d.buf) {
		return 0, errTruncated
	}
	v := d.buf[d.off]
	d.off++
	return v, nil
}

func (d *decoder) u32() (uint32, error) {
	if d.off+4 > len(d.buf) {
		return 0, errTruncated
	}
	v := binary.LittleEndian.Uint32(d.buf[d.off:])
	d.off += 4
	return v, nil
}

func (d *decoder) u64() (uint64, error) {
	if d.off+8 > len(d.buf) {
		return 0, errTruncated
	}
	v := binary.LittleEndian.Uint64(d.buf[d.off:])
	d.off += 8
	return v, nil
}

func (d *decoder) str() (string, error) {
	n, err := d.u64()
	if err != nil {
		return "", err
	}
	if uint64(len(d.buf)-d.off) < n {
		return "", errTruncated
	}
	s := string(d.buf[d.off : d.off+int(n)])
	d.off += int(n)
	return s, nil
}

func (d *decoder) desc() (Desc, error) {
	tag, err := d.u8()
	if err != nil {
		return nil, err
	}
	switch tag {
	case tagPrim:
		name, err := d.str()
		if err != nil {
			return nil, err
		}
		return Prim{Name: name}, nil
	case tagAlias:
		name, err := d.str()
		if err != nil {
			return nil, err
		}
		under, err := d.desc()
		if err != nil {
			return nil, err
		}
		return Prim{Name: name, Under: under}, nil
	case tagEnum:
		rep, err := d.desc()
		if err != nil {
			return nil, err
		}
		n, err := d.u64()
		if err != nil {
			return nil, err
		}
		cs := make([]EnumCtor, 0, n)
		for i := uint64(0); i < n; i++ {
			name, err := d.str()
			if err != nil {
				return nil, err
			}
			v, err := d.u64()
			if err != nil {
				return nil, err
			}
			cs = append(cs, EnumCtor{Name: name, Value: int64(v)})
		}
		return Enum{Rep: rep, Ctors: cs}, nil
	case tagFixed:
		elem, err := d.desc()
		if err != nil {
			return nil, err
		}
		n, err := d.u64()
		if err != nil {
			return nil, err
		}
		return FixedArray{Elem: elem, Len: n}, nil
	case tagArray:
		elem, err := d.desc()
		if err != nil {
			return nil, err
		}
		return Array{Elem: elem}, nil
	case tagRecord:
		n, err := d.u64()
		if err != nil {
			return nil, err
		}
		fs := make([]Field, 0, n)
		for i := uint64(0); i < n; i++ {
			name, err := d.str()
			if err != nil {
				return nil, err
			}
			off, err := d.u64()
			if err != nil {
				return nil, err
			}
			ft, err := d.desc()
			if err != nil {
				return nil, err
			}
			fs = append(fs, Field{Name: name, Offset: int64(off), Type: ft})
		}
		return Record{Fields: fs}, nil
	case tagVariant:
		n, err := d.u64()
		if err != nil {
			return nil, err
		}
		cs := make([]Ctor, 0, n)
		for i := uint64(0); i < n; i++ {
			name, err := d.str()
			if err != nil {
				return nil, err
			}
			id, err := d.u32()
			if err != nil {
				return nil, err
			}
			ct, err := d.desc()
			if err != nil {
				return nil, err
			}
			cs = append(cs, Ctor{Name: name, ID: id, Type: ct})
		}
		return Variant{Ctors: cs}, nil
	default:
		return nil, fmt.Errorf("ty: unknown descriptor tag %d", tag)
	}
}
