// Package hnet is a compact, type-directed, session-oriented RPC
// client for structured communication between cooperating processes.
//
// A session binds numbered expressions in a remote process during a
// handshake, then invokes them with typed arguments. Argument and
// reply shapes are described by algebraic type descriptors ([ty]) and
// moved across the wire by composable codecs ([codec]) that exist in
// both blocking and resumable form.
//
// # Clients
//
// [Client] is synchronous: each call blocks for its reply.
// [AsyncClient] pipelines: calls return after writing their request,
// and [AsyncClient.Step] cooperatively drains whatever reply bytes the
// socket currently holds, firing continuations strictly in request
// order. Sessions are single-owner; neither client is safe for
// concurrent use.
//
//	cl := hnet.NewClient(nil)
//	add, _ := hnet.Register(cl, 1, "args[0] + args[1]",
//	    codec.PairOf(codec.Int32, codec.Int32), codec.Int32)
//	if err := cl.ConnectHostPort("localhost:8711"); err != nil {
//	    ...
//	}
//	sum, err := add.Call(codec.MkPair[int32, int32](7, 8))
//
// # Wire protocol
//
// All integers are little-endian; lengths are 64-bit. This fixes the
// original protocol's native-endian, native-word-size framing, and is
// a documented break against peers on other conventions.
//
//	Session      := u32 version=0x00010000
//	               Frame*
//	Frame        := DefExprFrame | InvokeFrame
//	DefExprFrame := u8 cmd=0  u32 id  LenString expr
//	                LenBytes inputType  LenBytes outputType
//	                -- reply: u8 status; status==0 => LenString err
//	InvokeFrame  := u8 cmd=2  u32 id  WireValue(inputType)
//	                -- reply (outputType != unit): WireValue(outputType)
//	LenString    := u64 n; byte[n]
//	LenBytes     := u64 n; byte[n]
//
// Command code 1 is reserved and never emitted; peers reject it.
//
// Descriptor names do not distinguish signedness ("short", "int",
// "long" each cover both); a signed/unsigned mismatch between peers is
// silent.
package hnet
