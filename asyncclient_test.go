package hnet

import (
	"testing"

	"github.com/baiyanhuang/hnet/codec"
)

func TestAsyncStringReassembly(t *testing.T) {
	srv, fd := sessionPair(t)
	if err := srv.SendUint8(1); err != nil {
		t.Fatalf("seed ack: %v", err)
	}

	acl := NewAsyncClient(nil)
	f, err := RegisterAsync(acl, 1, "banner", codec.NoArgs, codec.String)
	if err != nil {
		t.Fatalf("RegisterAsync: %v", err)
	}
	if err := acl.ConnectFd(fd); err != nil {
		t.Fatalf("ConnectFd: %v", err)
	}
	defer acl.Close()
	drain(t, srv)

	var fired []string
	if err := f.Call(codec.Unit{}, func(r string) { fired = append(fired, r) }); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if acl.Pending() != 1 {
		t.Fatalf("Pending = %d, want 1", acl.Pending())
	}

	// The reply dribbles in 1-3 byte fragments; each fragment is
	// followed by a step.
	reply := []byte{
		0x07, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		'h', 'e', 'l', 'l', 'o', 'w', 'o',
	}
	if err := srv.SetBlocking(true); err != nil {
		t.Fatalf("SetBlocking: %v", err)
	}
	chunks := []int{1, 3, 2, 1, 3, 2, 1, 2}
	off := 0
	for _, n := range chunks {
		end := off + n
		if end > len(reply) {
			end = len(reply)
		}
		if err := srv.SendAll(reply[off:end]); err != nil {
			t.Fatalf("SendAll: %v", err)
		}
		off = end
		if err := acl.Step(); err != nil {
			t.Fatalf("Step: %v", err)
		}
		if off < len(reply) && len(fired) != 0 {
			t.Fatalf("continuation fired with %d/%d reply bytes", off, len(reply))
		}
	}

	if len(fired) != 1 || fired[0] != "hellowo" {
		t.Fatalf("continuations fired %v, want exactly [\"hellowo\"]", fired)
	}
	if acl.Pending() != 0 {
		t.Fatalf("Pending = %d after completion", acl.Pending())
	}
}

func TestAsyncPipelined(t *testing.T) {
	srv, fd := sessionPair(t)
	if err := srv.SendUint8(1); err != nil {
		t.Fatalf("seed ack: %v", err)
	}
	if err := srv.SendUint8(1); err != nil {
		t.Fatalf("seed ack: %v", err)
	}

	acl := NewAsyncClient(nil)
	note, err := RegisterAsyncProc(acl, 1, "note", codec.TupleOf1(codec.Int32))
	if err != nil {
		t.Fatalf("RegisterAsyncProc: %v", err)
	}
	get, err := RegisterAsync(acl, 2, "get", codec.TupleOf1(codec.Int32), codec.Int32)
	if err != nil {
		t.Fatalf("RegisterAsync: %v", err)
	}
	if err := acl.ConnectFd(fd); err != nil {
		t.Fatalf("ConnectFd: %v", err)
	}
	defer acl.Close()
	drain(t, srv)

	// Three void calls then three value calls, back to back.
	for i := int32(0); i < 3; i++ {
		if err := note.Call(i); err != nil {
			t.Fatalf("note.Call: %v", err)
		}
	}
	var got []int32
	for i := int32(0); i < 3; i++ {
		if err := get.Call(i, func(r int32) { got = append(got, r) }); err != nil {
			t.Fatalf("get.Call: %v", err)
		}
	}

	// Void calls register no readers.
	if acl.Pending() != 3 {
		t.Fatalf("Pending = %d, want 3", acl.Pending())
	}

	if err := srv.SetBlocking(true); err != nil {
		t.Fatalf("SetBlocking: %v", err)
	}
	for _, r := range []int32{10, 20, 30} {
		if err := codec.Int32.Write(srv, r); err != nil {
			t.Fatalf("seed reply: %v", err)
		}
	}
	for acl.Pending() > 0 {
		if err := acl.Step(); err != nil {
			t.Fatalf("Step: %v", err)
		}
	}
	if len(got) != 3 || got[0] != 10 || got[1] != 20 || got[2] != 30 {
		t.Fatalf("continuations fired with %v, want [10 20 30]", got)
	}
}

func TestAsyncOrderingUnderInterleavedSteps(t *testing.T) {
	srv, fd := sessionPair(t)
	if err := srv.SendUint8(1); err != nil {
		t.Fatalf("seed ack: %v", err)
	}

	acl := NewAsyncClient(nil)
	f, err := RegisterAsync(acl, 1, "seq", codec.TupleOf1(codec.Int32), codec.Int32)
	if err != nil {
		t.Fatalf("RegisterAsync: %v", err)
	}
	if err := acl.ConnectFd(fd); err != nil {
		t.Fatalf("ConnectFd: %v", err)
	}
	defer acl.Close()
	drain(t, srv)
	if err := srv.SetBlocking(true); err != nil {
		t.Fatalf("SetBlocking: %v", err)
	}

	// One reader enqueued once per outstanding call, never coalesced.
	var got []int32
	k := func(r int32) { got = append(got, r) }

	if err := f.Call(1, k); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if err := acl.Step(); err != nil { // nothing available yet
		t.Fatalf("Step: %v", err)
	}
	if err := codec.Int32.Write(srv, 100); err != nil {
		t.Fatalf("seed reply: %v", err)
	}
	if err := f.Call(2, k); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if acl.Pending() != 2 {
		t.Fatalf("Pending = %d, want 2", acl.Pending())
	}
	if err := acl.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if len(got) != 1 || got[0] != 100 {
		t.Fatalf("after first reply: %v", got)
	}
	if err := codec.Int32.Write(srv, 200); err != nil {
		t.Fatalf("seed reply: %v", err)
	}
	if err := acl.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if len(got) != 2 || got[1] != 200 {
		t.Fatalf("after second reply: %v", got)
	}
}

func TestAsyncPartialThenClose(t *testing.T) {
	srv, fd := sessionPair(t)
	if err := srv.SendUint8(1); err != nil {
		t.Fatalf("seed ack: %v", err)
	}

	acl := NewAsyncClient(nil)
	f, err := RegisterAsync(acl, 1, "get", codec.NoArgs, codec.Int32)
	if err != nil {
		t.Fatalf("RegisterAsync: %v", err)
	}
	if err := acl.ConnectFd(fd); err != nil {
		t.Fatalf("ConnectFd: %v", err)
	}
	drain(t, srv)

	fired := false
	if err := f.Call(codec.Unit{}, func(int32) { fired = true }); err != nil {
		t.Fatalf("Call: %v", err)
	}

	// Half of the reply arrives; the step cannot complete it.
	if err := srv.SetBlocking(true); err != nil {
		t.Fatalf("SetBlocking: %v", err)
	}
	if err := srv.SendAll([]byte{0x01, 0x00}); err != nil {
		t.Fatalf("SendAll: %v", err)
	}
	if err := acl.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if fired || acl.Pending() != 1 {
		t.Fatalf("after partial reply: fired=%v Pending=%d", fired, acl.Pending())
	}

	// Destroying the session abandons the pending reply.
	if err := acl.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if acl.Pending() != 0 {
		t.Fatalf("Pending = %d after Close", acl.Pending())
	}
	if fired {
		t.Fatal("continuation fired after Close")
	}
}
