// Package socket provides byte-level I/O on a raw stream-socket
// descriptor: exact blocking transfers, non-blocking partial reads,
// and the length-prefixed string/byte framing used on the session
// wire. All wire integers are little-endian; lengths are 64-bit.
package socket

import (
	"encoding/binary"

	"github.com/baiyanhuang/hnet/errors"
	"golang.org/x/sys/unix"
)

// Conn wraps a connected stream-socket descriptor. It owns the fd and
// is not safe for concurrent use.
type Conn struct {
	fd int
}

func New(fd int) *Conn {
	return &Conn{fd: fd}
}

func (c *Conn) Fd() int {
	return c.fd
}

func (c *Conn) Close() error {
	if c.fd < 0 {
		return nil
	}
	err := unix.Close(c.fd)
	c.fd = -1
	if err != nil {
		return &errors.IOError{Op: "close", Err: err}
	}
	return nil
}

// SendAll writes all of b, looping across short writes.
func (c *Conn) SendAll(b []byte) error {
	for i := 0; i < len(b); {
		n, err := unix.Write(c.fd, b[i:])
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return &errors.IOError{Op: "write to", Err: err}
		}
		i += n
	}
	return nil
}

// RecvAll reads exactly len(b) bytes, blocking. EINTR is retried.
func (c *Conn) RecvAll(b []byte) error {
	for i := 0; i < len(b); {
		n, err := unix.Read(c.fd, b[i:])
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return &errors.IOError{Op: "read", Err: err}
		}
		if n == 0 {
			return errors.ErrPeerClosed
		}
		i += n
	}
	return nil
}

// RecvPartial reads up to len(b) bytes without blocking. It returns
// (0, nil) when the socket has nothing available right now, and
// ErrPeerClosed on an orderly remote close.
func (c *Conn) RecvPartial(b []byte) (int, error) {
	n, err := unix.Read(c.fd, b)
	if err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == unix.EINTR {
		return 0, nil
	}
	if err != nil {
		return 0, &errors.IOError{Op: "read", Err: err}
	}
	if n == 0 {
		return 0, errors.ErrPeerClosed
	}
	return n, nil
}

// SetBlocking toggles O_NONBLOCK. A failing flag query is treated as
// flags zero, matching the session protocol's tolerance.
func (c *Conn) SetBlocking(block bool) error {
	f, err := unix.FcntlInt(uintptr(c.fd), unix.F_GETFL, 0)
	if err != nil {
		f = 0
	}
	if block {
		f &^= unix.O_NONBLOCK
	} else {
		f |= unix.O_NONBLOCK
	}
	if _, err := unix.FcntlInt(uintptr(c.fd), unix.F_SETFL, f); err != nil {
		return &errors.IOError{Op: "fcntl", Err: err}
	}
	return nil
}

// SendUint8 writes one byte.
func (c *Conn) SendUint8(v uint8) error {
	return c.SendAll([]byte{v})
}

// RecvUint8 reads one byte blocking.
func (c *Conn) RecvUint8() (uint8, error) {
	var b [1]byte
	if err := c.RecvAll(b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

// SendUint32 writes a little-endian u32.
func (c *Conn) SendUint32(v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return c.SendAll(b[:])
}

// RecvUint32 reads a little-endian u32 blocking.
func (c *Conn) RecvUint32() (uint32, error) {
	var b [4]byte
	if err := c.RecvAll(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

// SendUint64 writes a little-endian u64. Wire lengths use this form;
// the width is fixed at 64 bits regardless of the platform word size.
func (c *Conn) SendUint64(v uint64) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return c.SendAll(b[:])
}

// RecvUint64 reads a little-endian u64 blocking.
func (c *Conn) RecvUint64() (uint64, error) {
	var b [8]byte
	if err := c.RecvAll(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

// SendString frames s as a u64 length followed by the raw bytes, with
// no terminator and no normalization.
func (c *Conn) SendString(s string) error {
	if err := c.SendUint64(uint64(len(s))); err != nil {
		return err
	}
	if len(s) == 0 {
		return nil
	}
	return c.SendAll([]byte(s))
}

// RecvString reads a length-prefixed string blocking.
func (c *Conn) RecvString() (string, error) {
	n, err := c.RecvUint64()
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", nil
	}
	b := make([]byte, n)
	if err := c.RecvAll(b); err != nil {
		return "", err
	}
	return string(b), nil
}

// SendBytes frames x identically to SendString.
func (c *Conn) SendBytes(x []byte) error {
	if err := c.SendUint64(uint64(len(x))); err != nil {
		return err
	}
	if len(x) == 0 {
		return nil
	}
	return c.SendAll(x)
}

// RecvBytes reads a length-prefixed byte sequence blocking, refusing
// lengths above max when max is nonzero.
func (c *Conn) RecvBytes(max uint64) ([]byte, error) {
	n, err := c.RecvUint64()
	if err != nil {
		return nil, err
	}
	if max > 0 && n > max {
		return nil, &errors.IOError{Op: "read", Err: errors.New("length prefix exceeds limit")}
	}
	b := make([]byte, n)
	if n == 0 {
		return b, nil
	}
	if err := c.RecvAll(b); err != nil {
		return nil, err
	}
	return b, nil
}

// Pair returns a connected socketpair, for loopback use.
func Pair() (*Conn, *Conn, error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, nil, &errors.IOError{Op: "socketpair", Err: err}
	}
	return New(fds[0]), New(fds[1]), nil
}
