package constant

// Version is the protocol word a client sends first on a fresh session.
const Version uint32 = 0x00010000

// Session command codes.
const (
	CmdDefExpr  uint8 = 0
	CmdReserved uint8 = 1 // never emitted; peers reject it
	CmdInvoke   uint8 = 2
)

// ResultFail is the handshake status byte for a rejected definition.
// Any nonzero status accepts the definition.
const ResultFail uint8 = 0

const (
	// MaxRecvChunk is a partial-read buffer size. No package in this
	// module applies it; RecvPartial reads up to the length of the
	// buffer its caller passes.
	MaxRecvChunk = 4 << 10

	// MaxDescriptorSize bounds a type encoding accepted during handshake.
	MaxDescriptorSize = 64 << 10
)
