package hnet

import (
	"github.com/baiyanhuang/hnet/codec"
	"github.com/baiyanhuang/hnet/errors"
	"github.com/baiyanhuang/hnet/models"
	"github.com/baiyanhuang/hnet/socket"
	"github.com/baiyanhuang/hnet/statistics"
	"github.com/baiyanhuang/hnet/ty"
)

// pendingReader is one registered RPC's resumable reply reader. It is
// enqueued once per outstanding call it owns; the scheduler never
// coalesces entries.
type pendingReader interface {
	// readAndFinish consumes whatever reply bytes are available. When
	// the reply completes it dispatches the head continuation, resets
	// its state for the next reply, and reports true.
	readAndFinish() (bool, error)
}

// AsyncClient is a pipelined session: calls write their INVOKE frame
// synchronously and return; replies are drained cooperatively by Step.
// Requests are FIFO on the wire and continuations fire in request
// order. Single-owner, like Client.
type AsyncClient struct {
	cfg  Config
	addr models.Addr
	conn *socket.Conn
	ds   defSet

	readers []pendingReader
}

func NewAsyncClient(cfg *Config) *AsyncClient {
	cl := &AsyncClient{}
	if cfg != nil {
		cl.cfg = *cfg
	}
	return cl
}

// RegisterAsync declares an RPC returning R through a continuation.
func RegisterAsync[A, R any](cl *AsyncClient, id uint32, expr string, in codec.Codec[A], out codec.Codec[R]) (*AsyncFunc[A, R], error) {
	err := cl.ds.add(RPCDef{
		ID:         id,
		Expr:       expr,
		InputType:  ty.Encoding(in.Descriptor()),
		OutputType: ty.Encoding(out.Descriptor()),
	})
	if err != nil {
		return nil, err
	}
	return &AsyncFunc[A, R]{cl: cl, id: id, in: in, out: out, st: out.Prepare()}, nil
}

// RegisterAsyncProc declares a void RPC. No reader is ever registered
// for it.
func RegisterAsyncProc[A any](cl *AsyncClient, id uint32, expr string, in codec.Codec[A]) (*AsyncProc[A], error) {
	err := cl.ds.add(RPCDef{
		ID:         id,
		Expr:       expr,
		InputType:  ty.Encoding(in.Descriptor()),
		OutputType: ty.Encoding(ty.Unit),
	})
	if err != nil {
		return nil, err
	}
	return &AsyncProc[A]{cl: cl, id: id, in: in}, nil
}

// Connect dials addr, runs the handshake, and leaves the socket in
// non-blocking mode for reply draining.
func (cl *AsyncClient) Connect(addr models.Addr) error {
	conn, err := dialAddr(&cl.cfg, addr)
	if err != nil {
		return err
	}
	if err := cl.adopt(conn); err != nil {
		conn.Close()
		return err
	}
	cl.addr = addr
	return nil
}

// ConnectHostPort dials a "host:port" TCP endpoint.
func (cl *AsyncClient) ConnectHostPort(hostport string) error {
	ha, ok := models.ParseHostPort(hostport)
	if !ok {
		return errors.New("failed to determine port: " + hostport)
	}
	return cl.Connect(ha)
}

// ConnectFd adopts an already connected descriptor.
func (cl *AsyncClient) ConnectFd(fd int) error {
	if err := cl.adopt(socket.New(fd)); err != nil {
		return err
	}
	cl.addr = nil
	return nil
}

func (cl *AsyncClient) adopt(conn *socket.Conn) error {
	if err := initSession(conn, cl.ds.defs); err != nil {
		return err
	}
	if err := conn.SetBlocking(false); err != nil {
		return err
	}
	cl.conn = conn
	return nil
}

// Reconnect closes the socket, ignoring close errors, discards all
// pending readers, and repeats the handshake at the same address.
func (cl *AsyncClient) Reconnect() error {
	if cl.addr == nil {
		return errors.ErrNotConnected
	}
	if cl.conn != nil {
		_ = cl.conn.Close()
		cl.conn = nil
	}
	cl.readers = nil
	return cl.Connect(cl.addr)
}

// Close destroys the session: pending replies are abandoned and their
// continuations never fire.
func (cl *AsyncClient) Close() error {
	cl.readers = nil
	if cl.conn == nil {
		return nil
	}
	err := cl.conn.Close()
	cl.conn = nil
	return err
}

// Fd exposes the session descriptor, -1 when unconnected.
func (cl *AsyncClient) Fd() int {
	if cl.conn == nil {
		return -1
	}
	return cl.conn.Fd()
}

// Step drains whatever reply bytes the socket currently has. It keeps
// head-of-line order strictly: no later reply is touched until the
// current one completes and its continuation has fired. Step returns
// once the head reader can make no further progress, or the queue is
// empty.
func (cl *AsyncClient) Step() error {
	for len(cl.readers) > 0 {
		done, err := cl.readers[0].readAndFinish()
		if err != nil {
			return err
		}
		if !done {
			return nil
		}
		cl.readers = cl.readers[1:]
		statistics.Count("client.replies")
	}
	return nil
}

// Pending is the number of outstanding replies in the scheduler queue.
func (cl *AsyncClient) Pending() int {
	return len(cl.readers)
}

func (cl *AsyncClient) enqueue(r pendingReader) {
	cl.readers = append(cl.readers, r)
	statistics.GaugeMax("client.pending.max", int64(len(cl.readers)))
}

// AsyncFunc is one declared RPC delivering its reply to a queued
// continuation. Many calls may be outstanding at once; continuations
// fire in call order.
type AsyncFunc[A, R any] struct {
	cl  *AsyncClient
	id  uint32
	in  codec.Codec[A]
	out codec.Codec[R]

	ks []func(R)
	r  R
	st codec.State
}

// Call writes the INVOKE frame with the socket temporarily blocking,
// so the frame lands in the kernel buffer atomically with respect to
// other requests, then restores non-blocking mode and queues k.
func (f *AsyncFunc[A, R]) Call(args A, k func(R)) error {
	c := f.cl.conn
	if c == nil {
		return errors.ErrNotConnected
	}
	if err := c.SetBlocking(true); err != nil {
		return err
	}
	if err := writeInvoke(c, f.id, f.in, args); err != nil {
		return err
	}
	if err := c.SetBlocking(false); err != nil {
		return err
	}
	f.ks = append(f.ks, k)
	f.cl.enqueue(f)
	statistics.Count("client.calls")
	return nil
}

func (f *AsyncFunc[A, R]) readAndFinish() (bool, error) {
	done, err := f.out.Accum(f.cl.conn, f.st, &f.r)
	if err != nil {
		return false, err
	}
	if !done {
		return false, nil
	}
	k := f.ks[0]
	f.ks = f.ks[1:]
	r := f.r
	var zero R
	f.r = zero
	f.st = f.out.Prepare()
	k(r)
	return true, nil
}

// AsyncProc is one declared void RPC on an asynchronous session.
type AsyncProc[A any] struct {
	cl *AsyncClient
	id uint32
	in codec.Codec[A]
}

// Call writes the INVOKE frame under the same blocking toggle as
// AsyncFunc.Call; there is no reply to wait for.
func (p *AsyncProc[A]) Call(args A) error {
	c := p.cl.conn
	if c == nil {
		return errors.ErrNotConnected
	}
	if err := c.SetBlocking(true); err != nil {
		return err
	}
	if err := writeInvoke(c, p.id, p.in, args); err != nil {
		return err
	}
	if err := c.SetBlocking(false); err != nil {
		return err
	}
	statistics.Count("client.calls")
	return nil
}
