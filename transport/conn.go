// Package transport provides framed message exchange over persistent TCP
// connections: a length-prefixed JSON codec, a multi-accept server loop, and
// symmetric outbound dialing (requests out, results in, same socket).
/*
 * Copyright (c) 2024, ReadySKAHF. All rights reserved.
 */
package transport

import (
	"context"
	"net"
	"strconv"
	"sync"
	ratomic "sync/atomic"

	"github.com/ReadySKAHF/gaussnet/api/wire"
	"github.com/ReadySKAHF/gaussnet/cmn/cos"
	"github.com/ReadySKAHF/gaussnet/cmn/nlog"
)

type (
	// RxMsg is a received message with the connection it arrived on attached,
	// so that replies go back on the same socket.
	RxMsg struct {
		Msg  *wire.Msg
		Conn *Conn
	}

	// ErrEvent surfaces a reader failure; the connection is already closed.
	ErrEvent struct {
		Conn *Conn
		Err  error
	}

	// Rx fans all per-connection readers into one bounded channel pair that
	// the dispatcher consumes (the dispatcher owns its loop; no callbacks).
	Rx struct {
		MsgCh chan RxMsg
		ErrCh chan ErrEvent
	}

	// Conn is one persistent framed connection, usable bidirectionally.
	Conn struct {
		tc         net.Conn
		remoteIP   string
		remotePort int
		wmu        sync.Mutex
		closed     ratomic.Bool
	}
)

const burst = 512 // Rx channel depth: num messages readers can post without blocking

func NewRx() *Rx {
	return &Rx{
		MsgCh: make(chan RxMsg, burst),
		ErrCh: make(chan ErrEvent, burst),
	}
}

func newConn(tc net.Conn) *Conn {
	c := &Conn{tc: tc}
	if host, port, err := net.SplitHostPort(tc.RemoteAddr().String()); err == nil {
		c.remoteIP = host
		c.remotePort, _ = strconv.Atoi(port)
	}
	return c
}

func (c *Conn) RemoteIP() string { return c.remoteIP }
func (c *Conn) RemotePort() int  { return c.remotePort }

// LocalIP reports the local side of the connection (what a worker advertises
// at registration; the master's observed remote endpoint stays authoritative).
func (c *Conn) LocalIP() string {
	if host, _, err := net.SplitHostPort(c.tc.LocalAddr().String()); err == nil {
		return host
	}
	return ""
}
func (c *Conn) String() string { return "conn[" + cos.JoinHostPort(c.remoteIP, c.remotePort) + "]" }

func (c *Conn) Connected() bool { return !c.closed.Load() }

func (c *Conn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.tc.Close()
}

// Send serializes, length-prefixes, and writes the whole buffer. Success means
// the bytes left the local buffer, not that the peer received them.
func (c *Conn) Send(m *wire.Msg) error {
	frame, err := marshalFrame(m)
	if err != nil {
		return err
	}
	c.wmu.Lock()
	_, err = c.tc.Write(frame)
	c.wmu.Unlock()
	return err
}

// reader loops until cancellation, clean disconnect, or a fatal read error.
// Sender fields are overwritten from the observed remote endpoint before the
// message is published.
func (c *Conn) reader(ctx context.Context, rx *Rx) {
	for {
		msg, err := readFrame(c.tc)
		if err != nil {
			if _, oversized := err.(*errFrameTooBig); oversized {
				nlog.Warningf("%s: %v - discarded", c, err)
				continue
			}
			c.Close()
			if ctx.Err() != nil {
				return
			}
			// a clean disconnect (EOF) or a reset peer is ordinary churn; any
			// other failure is a protocol/parse fault on this connection
			switch {
			case cos.IsEOF(err) || cos.IsRetriableConnErr(err):
			default:
				nlog.Errorf("%s: %v", c, err)
			}
			// published in every case: the dispatcher must learn that the
			// connection is gone
			select {
			case rx.ErrCh <- ErrEvent{Conn: c, Err: err}:
			case <-ctx.Done():
			}
			return
		}
		msg.SetSender(c.remoteIP, c.remotePort)
		select {
		case rx.MsgCh <- RxMsg{Msg: msg, Conn: c}:
		case <-ctx.Done():
			c.Close()
			return
		}
	}
}
