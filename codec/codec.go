// Package codec pairs every supported value shape with its wire form:
// a blocking writer, a blocking reader, and a resumable reader whose
// state advances one socket read at a time. Codecs compose; the state
// of a product is a product of child states, the state of a sum is a
// tag plus the selected child state.
package codec

import (
	"github.com/baiyanhuang/hnet/socket"
	"github.com/baiyanhuang/hnet/ty"
)

// State is the opaque resumable-read state of one codec. A State is
// produced by Prepare, mutated by Accum, and is valid for exactly one
// value; a completed read needs a fresh Prepare before reuse.
type State any

// Codec reads and writes values of type T on a session socket.
//
// Accum consumes as many bytes as the socket currently has available
// and reports whether the value is fully materialized. It never
// blocks, and tolerates making no progress on any call.
type Codec[T any] interface {
	Descriptor() ty.Desc
	ByteCopyable() bool
	Write(c *socket.Conn, v T) error
	Read(c *socket.Conn, v *T) error
	Prepare() State
	Accum(c *socket.Conn, st State, v *T) (bool, error)
}

// Unit is the zero-field record value. It occupies no wire bytes.
type Unit struct{}

type unitCodec struct{}

func (unitCodec) Descriptor() ty.Desc { return ty.Unit }

func (unitCodec) ByteCopyable() bool { return false }

func (unitCodec) Write(*socket.Conn, Unit) error { return nil }

func (unitCodec) Read(*socket.Conn, *Unit) error { return nil }

func (unitCodec) Prepare() State { return nil }

func (unitCodec) Accum(*socket.Conn, State, *Unit) (bool, error) { return true, nil }

// UnitCodec transfers no bytes and completes immediately.
var UnitCodec Codec[Unit] = unitCodec{}

// NoArgs is the input codec of a zero-argument RPC.
var NoArgs = UnitCodec

// fixed is the block-copy face of a byte-copyable codec: a value
// occupies exactly width bytes at a fixed offset in a buffer. Bulk
// array transfers use it to collapse per-element reads into one.
type fixed[T any] interface {
	width() int
	put(b []byte, v T)
	get(b []byte) T
}

// fixedOf returns the block-copy face of c when it advertises one.
func fixedOf[T any](c Codec[T]) (fixed[T], bool) {
	if !c.ByteCopyable() {
		return nil, false
	}
	f, ok := c.(fixed[T])
	return f, ok
}
