// Command local runs a loopback peer and exercises a session against
// it: a couple of typed calls on a synchronous client, then a
// pipelined burst on an asynchronous one.
package main

import (
	"net"
	"os"

	"github.com/baiyanhuang/hnet"
	"github.com/baiyanhuang/hnet/codec"
	"github.com/baiyanhuang/hnet/peer"
	"github.com/fatih/color"
)

func main() {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		fail("listen: %v", err)
	}
	go peer.New().Serve(ln)
	addr := ln.Addr().String()

	cl := hnet.NewClient(nil)
	add, err := hnet.Register(cl, 1, "args[0] + args[1]",
		codec.PairOf(codec.Int32, codec.Int32), codec.Int32)
	if err != nil {
		fail("register: %v", err)
	}
	greet, err := hnet.Register(cl, 2, `"hello " + args[0]`,
		codec.TupleOf1(codec.String), codec.String)
	if err != nil {
		fail("register: %v", err)
	}
	if err := cl.ConnectHostPort(addr); err != nil {
		fail("connect: %v", err)
	}
	defer cl.Close()

	sum, err := add.Call(codec.MkPair[int32, int32](7, 8))
	if err != nil {
		fail("add: %v", err)
	}
	ok("add(7, 8) = %d", sum)

	msg, err := greet.Call("hnet")
	if err != nil {
		fail("greet: %v", err)
	}
	ok("greet(\"hnet\") = %q", msg)

	acl := hnet.NewAsyncClient(nil)
	square, err := hnet.RegisterAsync(acl, 1, "args[0] * args[0]",
		codec.TupleOf1(codec.Int32), codec.Int32)
	if err != nil {
		fail("register: %v", err)
	}
	if err := acl.ConnectHostPort(addr); err != nil {
		fail("connect: %v", err)
	}
	defer acl.Close()

	for i := int32(1); i <= 5; i++ {
		n := i
		err := square.Call(n, func(r int32) {
			ok("square(%d) = %d", n, r)
		})
		if err != nil {
			fail("square: %v", err)
		}
	}
	for acl.Pending() > 0 {
		if err := acl.Step(); err != nil {
			fail("step: %v", err)
		}
	}
}

func ok(format string, args ...any) {
	color.Green("ok   "+format, args...)
}

func fail(format string, args ...any) {
	color.Red("fail "+format, args...)
	os.Exit(1)
}
