// Package transport provides framed message exchange over persistent TCP
// connections.
/*
 * Copyright (c) 2024, ReadySKAHF. All rights reserved.
 */
package transport_test

import (
	"context"
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/ReadySKAHF/gaussnet/api/wire"
	"github.com/ReadySKAHF/gaussnet/cmn/cos"
	"github.com/ReadySKAHF/gaussnet/tools/tassert"
	"github.com/ReadySKAHF/gaussnet/transport"
)

func TestMain(m *testing.M) {
	cos.InitShortID(0)
	m.Run()
}

func startServer(t *testing.T) (*transport.Server, *transport.Rx, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	rx := transport.NewRx()
	srv, err := transport.NewServer(ctx, 0, rx)
	tassert.CheckFatal(t, err)
	go srv.Run()
	t.Cleanup(func() { srv.Stop(nil) })
	return srv, rx, cancel
}

func TestSendReceive(t *testing.T) {
	srv, rx, cancel := startServer(t)
	defer cancel()

	clientRx := transport.NewRx()
	conn, err := transport.Dial(context.Background(), cos.JoinHostPort("127.0.0.1", srv.Port()), clientRx)
	tassert.CheckFatal(t, err)
	defer conn.Close()

	sent := wire.NewMsg(wire.ImageRequest, []byte("payload"))
	sent.SetSender("10.0.0.1", 1234) // must be overwritten by the receiver
	tassert.CheckFatal(t, conn.Send(sent))

	select {
	case rxm := <-rx.MsgCh:
		tassert.Errorf(t, rxm.Msg.MessageID == sent.MessageID, "message id mismatch")
		tassert.Errorf(t, string(rxm.Msg.Data) == "payload", "payload mismatch: %q", rxm.Msg.Data)
		tassert.Errorf(t, rxm.Msg.SenderIP == "127.0.0.1", "sender ip not overwritten: %q", rxm.Msg.SenderIP)
		tassert.Errorf(t, rxm.Msg.SenderPort != 1234, "sender port not overwritten")
		tassert.Errorf(t, rxm.Conn != nil, "no connection attached")
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the message")
	}
}

// the same socket carries requests out and responses back in
func TestBidirectional(t *testing.T) {
	srv, rx, cancel := startServer(t)
	defer cancel()

	clientRx := transport.NewRx()
	conn, err := transport.Dial(context.Background(), cos.JoinHostPort("127.0.0.1", srv.Port()), clientRx)
	tassert.CheckFatal(t, err)
	defer conn.Close()

	tassert.CheckFatal(t, conn.Send(wire.NewMsg(wire.SlaveRegister, []byte("{}"))))

	var serverConn *transport.Conn
	select {
	case rxm := <-rx.MsgCh:
		serverConn = rxm.Conn
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the inbound frame")
	}

	tassert.CheckFatal(t, serverConn.Send(wire.NewAck()))
	select {
	case rxm := <-clientRx.MsgCh:
		tassert.Errorf(t, rxm.Msg.IsAck(), "expected an acknowledgment, got %s", rxm.Msg)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the ack")
	}
}

// ordering per connection is send order
func TestPerConnOrdering(t *testing.T) {
	srv, rx, cancel := startServer(t)
	defer cancel()

	clientRx := transport.NewRx()
	conn, err := transport.Dial(context.Background(), cos.JoinHostPort("127.0.0.1", srv.Port()), clientRx)
	tassert.CheckFatal(t, err)
	defer conn.Close()

	const num = 64
	for i := byte(0); i < num; i++ {
		tassert.CheckFatal(t, conn.Send(wire.NewMsg(wire.ImageRequest, []byte{i})))
	}
	for i := byte(0); i < num; i++ {
		select {
		case rxm := <-rx.MsgCh:
			tassert.Fatalf(t, rxm.Msg.Data[0] == i, "out of order: got %d, want %d", rxm.Msg.Data[0], i)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out")
		}
	}
}

// a short length word (1-3 bytes) is peer misbehavior: the connection is
// abandoned and the error surfaced as an event
func TestShortLengthWord(t *testing.T) {
	srv, rx, cancel := startServer(t)
	defer cancel()

	tc, err := net.Dial("tcp", cos.JoinHostPort("127.0.0.1", srv.Port()))
	tassert.CheckFatal(t, err)
	_, err = tc.Write([]byte{0x01, 0x02})
	tassert.CheckFatal(t, err)
	tc.Close()

	select {
	case ev := <-rx.ErrCh:
		tassert.Errorf(t, ev.Err != nil, "expected an error event")
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the error event")
	}
}

// an oversized frame is discarded and the reader continues
func TestOversizedFrameDiscarded(t *testing.T) {
	srv, rx, cancel := startServer(t)
	defer cancel()

	tc, err := net.Dial("tcp", cos.JoinHostPort("127.0.0.1", srv.Port()))
	tassert.CheckFatal(t, err)
	defer tc.Close()

	// declare an oversized body, then deliver that many zero bytes
	const size = transport.MaxBodySize + 1
	var lenWord [4]byte
	binary.LittleEndian.PutUint32(lenWord[:], uint32(size))
	_, err = tc.Write(lenWord[:])
	tassert.CheckFatal(t, err)
	zeros := make([]byte, 1<<20)
	for written := 0; written < size; written += len(zeros) {
		chunk := zeros
		if rem := size - written; rem < len(chunk) {
			chunk = zeros[:rem]
		}
		if _, err := tc.Write(chunk); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	// a valid frame after the oversized one still gets through
	valid := wire.NewMsg(wire.ImageRequest, []byte("after"))
	body := cos.MustMarshal(valid)
	binary.LittleEndian.PutUint32(lenWord[:], uint32(len(body)))
	_, err = tc.Write(append(lenWord[:], body...))
	tassert.CheckFatal(t, err)

	select {
	case rxm := <-rx.MsgCh:
		tassert.Errorf(t, string(rxm.Msg.Data) == "after", "unexpected payload %q", rxm.Msg.Data)
	case <-time.After(10 * time.Second):
		t.Fatal("reader did not survive the oversized frame")
	}
}

// a clean peer disconnect terminates the reader without crashing the server
func TestPeerDisconnect(t *testing.T) {
	srv, rx, cancel := startServer(t)
	defer cancel()

	clientRx := transport.NewRx()
	conn, err := transport.Dial(context.Background(), cos.JoinHostPort("127.0.0.1", srv.Port()), clientRx)
	tassert.CheckFatal(t, err)
	conn.Close()

	select {
	case ev := <-rx.ErrCh:
		tassert.Errorf(t, cos.IsEOF(ev.Err) || ev.Err != nil, "expected a disconnect event")
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the disconnect event")
	}

	// the server still accepts new connections
	conn2, err := transport.Dial(context.Background(), cos.JoinHostPort("127.0.0.1", srv.Port()), transport.NewRx())
	tassert.CheckFatal(t, err)
	conn2.Close()
}
