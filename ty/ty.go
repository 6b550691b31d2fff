// Package ty models the algebraic type descriptions exchanged during
// the session handshake, and their canonical byte encoding. Two
// descriptors describe the same type exactly when their encodings are
// byte-equal.
package ty

import "strconv"

// Desc is a finite type-description tree.
type Desc interface {
	isDesc()
}

// Prim is a named primitive. Under is non-nil only for opaque aliases,
// where it carries the underlying description.
type Prim struct {
	Name  string
	Under Desc
}

// Enum is a representation primitive plus named constants.
type Enum struct {
	Rep   Desc
	Ctors []EnumCtor
}

type EnumCtor struct {
	Name  string
	Value int64
}

// FixedArray is Len consecutive elements.
type FixedArray struct {
	Elem Desc
	Len  uint64
}

// Array is a variable-length sequence, length-prefixed on the wire.
type Array struct {
	Elem Desc
}

// Record is an ordered list of named fields. Tuples are records with
// synthetic field names ".f0", ".f1", ...
type Record struct {
	Fields []Field
}

type Field struct {
	Name   string
	Offset int64 // -1 when unspecified
	Type   Desc
}

// Variant is an ordered list of tagged constructors. Anonymous sums
// use synthetic constructor names ".f0", ".f1", ... with tags 0..n-1.
type Variant struct {
	Ctors []Ctor
}

type Ctor struct {
	Name string
	ID   uint32
	Type Desc
}

func (Prim) isDesc()       {}
func (Enum) isDesc()       {}
func (FixedArray) isDesc() {}
func (Array) isDesc()      {}
func (Record) isDesc()     {}
func (Variant) isDesc()    {}

// Unit is the zero-field record type, described as the primitive
// "unit"; an empty Record is not Equal to it.
var Unit Desc = Prim{Name: "unit"}

// Void is the empty variant type, described as the primitive "void";
// an empty Variant is not Equal to it.
var Void Desc = Prim{Name: "void"}

// TupleField is the synthetic name of positional field i.
func TupleField(i int) string {
	return ".f" + strconv.Itoa(i)
}

// TupleOf builds the record descriptor for a positional tuple.
// An empty tuple is unit.
func TupleOf(elems ...Desc) Desc {
	if len(elems) == 0 {
		return Unit
	}
	fs := make([]Field, len(elems))
	for i, t := range elems {
		fs[i] = Field{Name: TupleField(i), Offset: -1, Type: t}
	}
	return Record{Fields: fs}
}

// SumOf builds the variant descriptor for an anonymous sum.
// An empty sum is void.
func SumOf(elems ...Desc) Desc {
	if len(elems) == 0 {
		return Void
	}
	cs := make([]Ctor, len(elems))
	for i, t := range elems {
		cs[i] = Ctor{Name: TupleField(i), ID: uint32(i), Type: t}
	}
	return Variant{Ctors: cs}
}

// Equal reports whether two descriptors have byte-equal encodings.
func Equal(a, b Desc) bool {
	return string(Encoding(a)) == string(Encoding(b))
}
