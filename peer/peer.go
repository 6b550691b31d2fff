// Package peer implements the remote side of the session protocol for
// tests and local development: a single-threaded-per-session server
// that binds DEFEXPR definitions to expressions compiled with
// expr-lang and answers INVOKE frames in request order.
package peer

import (
	"fmt"
	"net"
	"os"

	"github.com/baiyanhuang/hnet/constant"
	"github.com/baiyanhuang/hnet/errors"
	"github.com/baiyanhuang/hnet/log"
	"github.com/baiyanhuang/hnet/socket"
	"github.com/baiyanhuang/hnet/ty"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"golang.org/x/sys/unix"
)

type exprDef struct {
	prog *vm.Program
	in   ty.Desc
	out  ty.Desc
}

// Peer evaluates session expressions. The positional arguments of a
// call are visible to its expression as args[0] .. args[n-1],
// alongside any identifiers added with Bind.
type Peer struct {
	env map[string]any
}

func New() *Peer {
	return &Peer{env: make(map[string]any)}
}

// Bind exposes an identifier to every expression on this peer.
func (p *Peer) Bind(name string, v any) {
	p.env[name] = v
}

// Serve accepts sessions until the listener fails. Each session runs
// on its own goroutine; within a session requests are handled one at
// a time and replies keep request order, which is the contract the
// client scheduler depends on.
func (p *Peer) Serve(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go func() {
			defer conn.Close()
			fd, err := connFd(conn)
			if err != nil {
				log.Errorf("peer: cannot take over connection: %v", err)
				return
			}
			c := socket.New(fd)
			defer c.Close()
			if err := p.ServeConn(c); err != nil {
				log.Errorf("peer: session ended: %v", err)
			}
		}()
	}
}

// ServeConn runs one session until the client closes it. A protocol
// violation closes the session with an error; a clean remote close
// returns nil.
func (p *Peer) ServeConn(c *socket.Conn) error {
	ver, err := c.RecvUint32()
	if err != nil {
		return sessionEnd(err)
	}
	if ver != constant.Version {
		return fmt.Errorf("peer: unsupported protocol version %#08x", ver)
	}

	defs := make(map[uint32]*exprDef)
	for {
		cmd, err := c.RecvUint8()
		if err != nil {
			return sessionEnd(err)
		}
		switch cmd {
		case constant.CmdDefExpr:
			if err := p.handleDef(c, defs); err != nil {
				return err
			}
		case constant.CmdInvoke:
			if err := p.handleInvoke(c, defs); err != nil {
				return err
			}
		default:
			// Reserved and unknown command codes kill the session.
			return fmt.Errorf("peer: unsupported command %d", cmd)
		}
	}
}

// ServeFd runs one session over an already connected descriptor,
// closing it when the session ends.
func (p *Peer) ServeFd(fd int) error {
	c := socket.New(fd)
	defer c.Close()
	return p.ServeConn(c)
}

func (p *Peer) handleDef(c *socket.Conn, defs map[uint32]*exprDef) error {
	id, err := c.RecvUint32()
	if err != nil {
		return err
	}
	exprText, err := c.RecvString()
	if err != nil {
		return err
	}
	inBytes, err := c.RecvBytes(constant.MaxDescriptorSize)
	if err != nil {
		return err
	}
	outBytes, err := c.RecvBytes(constant.MaxDescriptorSize)
	if err != nil {
		return err
	}

	reject := func(msg string) error {
		if err := c.SendUint8(constant.ResultFail); err != nil {
			return err
		}
		return c.SendString(msg)
	}

	if id == 0 {
		return reject("rpc id must be nonzero")
	}
	if _, dup := defs[id]; dup {
		return reject(fmt.Sprintf("rpc id %d already defined", id))
	}
	in, err := ty.Decode(inBytes)
	if err != nil {
		return reject("bad input type: " + err.Error())
	}
	out, err := ty.Decode(outBytes)
	if err != nil {
		return reject("bad output type: " + err.Error())
	}
	prog, err := expr.Compile(exprText)
	if err != nil {
		return reject(err.Error())
	}

	defs[id] = &exprDef{prog: prog, in: in, out: out}
	return c.SendUint8(1)
}

func (p *Peer) handleInvoke(c *socket.Conn, defs map[uint32]*exprDef) error {
	id, err := c.RecvUint32()
	if err != nil {
		return err
	}
	d, ok := defs[id]
	if !ok {
		// The invoke protocol has no error channel; an unknown id
		// leaves the stream unreadable.
		return fmt.Errorf("peer: invoke of undefined rpc id %d", id)
	}

	args, err := readArgs(c, d.in)
	if err != nil {
		return err
	}

	env := make(map[string]any, len(p.env)+1)
	for k, v := range p.env {
		env[k] = v
	}
	env["args"] = args

	out, err := expr.Run(d.prog, env)
	if err != nil {
		return fmt.Errorf("peer: evaluating rpc id %d: %w", id, err)
	}
	log.Debugf("peer: rpc id=%d -> %v", id, out)

	if isUnit(d.out) {
		return nil
	}
	return writeValue(c, d.out, out)
}

func isUnit(d ty.Desc) bool {
	p, ok := d.(ty.Prim)
	return ok && p.Under == nil && p.Name == "unit"
}

func sessionEnd(err error) error {
	if errors.Is(err, errors.ErrPeerClosed) {
		return nil
	}
	return err
}

func connFd(conn net.Conn) (int, error) {
	f, ok := conn.(interface{ File() (*os.File, error) })
	if !ok {
		return -1, errors.New("connection does not expose a descriptor")
	}
	osf, err := f.File()
	if err != nil {
		return -1, err
	}
	fd, err := unix.Dup(int(osf.Fd()))
	osf.Close()
	if err != nil {
		return -1, err
	}
	return fd, nil
}
