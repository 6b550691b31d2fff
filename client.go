package hnet

import (
	"github.com/baiyanhuang/hnet/codec"
	"github.com/baiyanhuang/hnet/constant"
	"github.com/baiyanhuang/hnet/errors"
	"github.com/baiyanhuang/hnet/models"
	"github.com/baiyanhuang/hnet/socket"
	"github.com/baiyanhuang/hnet/statistics"
	"github.com/baiyanhuang/hnet/ty"
)

// Client is a synchronous session: every call blocks until its reply
// has been read in full. A Client is owned by one goroutine;
// concurrent use is undefined.
//
// Definitions are registered before Connect; the handshake sends them
// all and any rejection fails the session.
type Client struct {
	cfg  Config
	addr models.Addr
	conn *socket.Conn
	ds   defSet
}

func NewClient(cfg *Config) *Client {
	cl := &Client{}
	if cfg != nil {
		cl.cfg = *cfg
	}
	return cl
}

// Register declares an RPC returning R. The in codec must describe the
// positional argument tuple (use codec.TupleOf1, codec.PairOf,
// codec.TupleOf3, ... or codec.NoArgs).
func Register[A, R any](cl *Client, id uint32, expr string, in codec.Codec[A], out codec.Codec[R]) (*Func[A, R], error) {
	err := cl.ds.add(RPCDef{
		ID:         id,
		Expr:       expr,
		InputType:  ty.Encoding(in.Descriptor()),
		OutputType: ty.Encoding(out.Descriptor()),
	})
	if err != nil {
		return nil, err
	}
	return &Func[A, R]{cl: cl, id: id, in: in, out: out}, nil
}

// RegisterProc declares a void RPC: the reply type is unit and no
// reply bytes are read.
func RegisterProc[A any](cl *Client, id uint32, expr string, in codec.Codec[A]) (*Proc[A], error) {
	err := cl.ds.add(RPCDef{
		ID:         id,
		Expr:       expr,
		InputType:  ty.Encoding(in.Descriptor()),
		OutputType: ty.Encoding(ty.Unit),
	})
	if err != nil {
		return nil, err
	}
	return &Proc[A]{cl: cl, id: id, in: in}, nil
}

// Connect dials addr and runs the handshake with every registered
// definition. The address is kept for Reconnect.
func (cl *Client) Connect(addr models.Addr) error {
	conn, err := dialAddr(&cl.cfg, addr)
	if err != nil {
		return err
	}
	if err := initSession(conn, cl.ds.defs); err != nil {
		conn.Close()
		return err
	}
	cl.addr = addr
	cl.conn = conn
	return nil
}

// ConnectHostPort dials a "host:port" TCP endpoint.
func (cl *Client) ConnectHostPort(hostport string) error {
	ha, ok := models.ParseHostPort(hostport)
	if !ok {
		return errors.New("failed to determine port: " + hostport)
	}
	return cl.Connect(ha)
}

// ConnectFd adopts an already connected descriptor and runs the
// handshake on it.
func (cl *Client) ConnectFd(fd int) error {
	conn := socket.New(fd)
	if err := initSession(conn, cl.ds.defs); err != nil {
		return err
	}
	cl.addr = nil
	cl.conn = conn
	return nil
}

// Reconnect closes the current socket, ignoring close errors, and
// repeats the handshake against the same address with the same
// definitions.
func (cl *Client) Reconnect() error {
	if cl.addr == nil {
		return errors.ErrNotConnected
	}
	if cl.conn != nil {
		_ = cl.conn.Close()
		cl.conn = nil
	}
	return cl.Connect(cl.addr)
}

func (cl *Client) Close() error {
	if cl.conn == nil {
		return nil
	}
	err := cl.conn.Close()
	cl.conn = nil
	return err
}

// Fd exposes the session descriptor, -1 when unconnected.
func (cl *Client) Fd() int {
	if cl.conn == nil {
		return -1
	}
	return cl.conn.Fd()
}

// writeInvoke emits one INVOKE frame: command byte, rpc id, arguments
// in positional order.
func writeInvoke[A any](c *socket.Conn, id uint32, in codec.Codec[A], args A) error {
	if err := c.SendUint8(constant.CmdInvoke); err != nil {
		return err
	}
	if err := c.SendUint32(id); err != nil {
		return err
	}
	return in.Write(c, args)
}

// Func is one declared RPC with a non-unit reply.
type Func[A, R any] struct {
	cl  *Client
	id  uint32
	in  codec.Codec[A]
	out codec.Codec[R]
}

// Call sends the INVOKE frame and blocks for the reply.
func (f *Func[A, R]) Call(args A) (R, error) {
	var r R
	if f.cl.conn == nil {
		return r, errors.ErrNotConnected
	}
	if err := writeInvoke(f.cl.conn, f.id, f.in, args); err != nil {
		return r, err
	}
	if err := f.out.Read(f.cl.conn, &r); err != nil {
		return r, err
	}
	statistics.Count("client.calls")
	return r, nil
}

// Proc is one declared void RPC; Call returns once the request is
// written, reading nothing.
type Proc[A any] struct {
	cl *Client
	id uint32
	in codec.Codec[A]
}

func (p *Proc[A]) Call(args A) error {
	if p.cl.conn == nil {
		return errors.ErrNotConnected
	}
	if err := writeInvoke(p.cl.conn, p.id, p.in, args); err != nil {
		return err
	}
	statistics.Count("client.calls")
	return nil
}
