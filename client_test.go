package hnet

import (
	"bytes"
	"testing"

	"github.com/baiyanhuang/hnet/codec"
	"github.com/baiyanhuang/hnet/errors"
	"github.com/baiyanhuang/hnet/socket"
)

// sessionPair returns the server end of a loopback session and the
// descriptor for the client to adopt. The client owns its end.
func sessionPair(t *testing.T) (*socket.Conn, int) {
	t.Helper()
	srv, cli, err := socket.Pair()
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	t.Cleanup(func() { srv.Close() })
	return srv, cli.Fd()
}

// drain pulls every immediately available byte off the server end.
func drain(t *testing.T, srv *socket.Conn) []byte {
	t.Helper()
	if err := srv.SetBlocking(false); err != nil {
		t.Fatalf("SetBlocking: %v", err)
	}
	var all []byte
	buf := make([]byte, 4096)
	for {
		n, err := srv.RecvPartial(buf)
		if err != nil {
			t.Fatalf("RecvPartial: %v", err)
		}
		if n == 0 {
			return all
		}
		all = append(all, buf[:n]...)
	}
}

func TestVoidCallFrame(t *testing.T) {
	srv, fd := sessionPair(t)

	// Accept the single definition up front.
	if err := srv.SendUint8(1); err != nil {
		t.Fatalf("seed ack: %v", err)
	}

	cl := NewClient(nil)
	printPair, err := RegisterProc(cl, 1, "printPair", codec.PairOf(codec.Int32, codec.Int32))
	if err != nil {
		t.Fatalf("RegisterProc: %v", err)
	}
	if err := cl.ConnectFd(fd); err != nil {
		t.Fatalf("ConnectFd: %v", err)
	}
	defer cl.Close()

	hs := drain(t, srv)
	if !bytes.HasPrefix(hs, []byte{0x00, 0x00, 0x01, 0x00}) {
		t.Fatalf("handshake does not start with the version word: % x", hs[:8])
	}
	if hs[4] != 0 {
		t.Fatalf("first frame command %d, want DEFEXPR", hs[4])
	}

	if err := printPair.Call(codec.MkPair[int32, int32](7, 8)); err != nil {
		t.Fatalf("Call: %v", err)
	}
	want := []byte{
		0x02,
		0x01, 0x00, 0x00, 0x00,
		0x07, 0x00, 0x00, 0x00,
		0x08, 0x00, 0x00, 0x00,
	}
	if got := drain(t, srv); !bytes.Equal(got, want) {
		t.Fatalf("invoke frame\n got % x\nwant % x", got, want)
	}

	// No reply is read; the next call on the same session works.
	if err := printPair.Call(codec.MkPair[int32, int32](1, 2)); err != nil {
		t.Fatalf("second Call: %v", err)
	}
	if got := drain(t, srv); len(got) != len(want) {
		t.Fatalf("second invoke frame has %d bytes, want %d", len(got), len(want))
	}
}

func TestHandshakeRejected(t *testing.T) {
	srv, fd := sessionPair(t)

	if err := srv.SendUint8(0); err != nil {
		t.Fatalf("seed status: %v", err)
	}
	if err := srv.SendString("unknown symbol foo"); err != nil {
		t.Fatalf("seed message: %v", err)
	}

	cl := NewClient(nil)
	if _, err := Register(cl, 5, "foo", codec.NoArgs, codec.Int32); err != nil {
		t.Fatalf("Register: %v", err)
	}

	err := cl.ConnectFd(fd)
	var hs *errors.HandshakeError
	if !errors.As(err, &hs) {
		t.Fatalf("got %v, want HandshakeError", err)
	}
	if hs.ID != 5 || hs.Expr != "foo" || hs.Msg != "unknown symbol foo" {
		t.Fatalf("HandshakeError fields %+v", hs)
	}
	if err := cl.Close(); err != nil {
		t.Fatalf("Close after rejection: %v", err)
	}
}

func TestSyncFuncReply(t *testing.T) {
	srv, fd := sessionPair(t)
	if err := srv.SendUint8(1); err != nil {
		t.Fatalf("seed ack: %v", err)
	}

	cl := NewClient(nil)
	f, err := Register(cl, 3, "args[0] * 2", codec.TupleOf1(codec.Int32), codec.Int32)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := cl.ConnectFd(fd); err != nil {
		t.Fatalf("ConnectFd: %v", err)
	}
	defer cl.Close()
	drain(t, srv)

	// Seed the reply; the call writes, then blocks on it.
	if err := srv.SetBlocking(true); err != nil {
		t.Fatalf("SetBlocking: %v", err)
	}
	if err := codec.Int32.Write(srv, 42); err != nil {
		t.Fatalf("seed reply: %v", err)
	}
	got, err := f.Call(21)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if got != 42 {
		t.Fatalf("Call returned %d, want 42", got)
	}
}

func TestVariantReply(t *testing.T) {
	srv, fd := sessionPair(t)
	if err := srv.SendUint8(1); err != nil {
		t.Fatalf("seed ack: %v", err)
	}

	out := codec.SumOf2(codec.Int32, codec.String)
	cl := NewClient(nil)
	f, err := Register(cl, 1, "classify", codec.NoArgs, out)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := cl.ConnectFd(fd); err != nil {
		t.Fatalf("ConnectFd: %v", err)
	}
	defer cl.Close()
	drain(t, srv)

	if err := srv.SetBlocking(true); err != nil {
		t.Fatalf("SetBlocking: %v", err)
	}
	reply := []byte{
		0x01, 0x00, 0x00, 0x00,
		0x03, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		'f', 'o', 'o',
	}
	if err := srv.SendAll(reply); err != nil {
		t.Fatalf("seed reply: %v", err)
	}

	got, err := f.Call(codec.Unit{})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if got.Tag != 1 || got.F1 != "foo" {
		t.Fatalf("variant reply %+v, want .f1(\"foo\")", got)
	}
}

func TestMapReply(t *testing.T) {
	srv, fd := sessionPair(t)
	if err := srv.SendUint8(1); err != nil {
		t.Fatalf("seed ack: %v", err)
	}

	out := codec.MapOf(codec.Int32, codec.String)
	cl := NewClient(nil)
	f, err := Register(cl, 1, "table", codec.NoArgs, out)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := cl.ConnectFd(fd); err != nil {
		t.Fatalf("ConnectFd: %v", err)
	}
	defer cl.Close()
	drain(t, srv)

	if err := srv.SetBlocking(true); err != nil {
		t.Fatalf("SetBlocking: %v", err)
	}
	if err := out.Write(srv, map[int32]string{1: "a", 2: "bb"}); err != nil {
		t.Fatalf("seed reply: %v", err)
	}

	got, err := f.Call(codec.Unit{})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if len(got) != 2 || got[1] != "a" || got[2] != "bb" {
		t.Fatalf("map reply %v", got)
	}
}

func TestRegistrationValidation(t *testing.T) {
	cl := NewClient(nil)
	if _, err := Register(cl, 0, "x", codec.NoArgs, codec.Int32); !errors.Is(err, errors.ErrZeroID) {
		t.Fatalf("zero id: got %v", err)
	}
	if _, err := Register(cl, 7, "x", codec.NoArgs, codec.Int32); err != nil {
		t.Fatalf("first id 7: %v", err)
	}
	if _, err := RegisterProc(cl, 7, "y", codec.NoArgs); !errors.Is(err, errors.ErrDuplicateID) {
		t.Fatalf("duplicate id: got %v", err)
	}
}

func TestCallWithoutConnect(t *testing.T) {
	cl := NewClient(nil)
	f, err := Register(cl, 1, "x", codec.NoArgs, codec.Int32)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := f.Call(codec.Unit{}); !errors.Is(err, errors.ErrNotConnected) {
		t.Fatalf("got %v, want ErrNotConnected", err)
	}
}
