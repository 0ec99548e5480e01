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
	"sync"

	"github.com/ReadySKAHF/gaussnet/cmn/cos"
	"github.com/ReadySKAHF/gaussnet/cmn/nlog"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Server accepts inbound connections and hands each to a per-connection
// reader. Concurrent connections are independent: per connection, frames are
// delivered in send order; across connections no ordering is promised.
type Server struct {
	listener net.Listener
	rx       *Rx
	ctx      context.Context
	cancel   context.CancelFunc
	group    *errgroup.Group
	mu       sync.Mutex
	conns    map[*Conn]struct{}
}

// interface guard
var _ cos.Runner = (*Server)(nil)

func NewServer(parent context.Context, port int, rx *Rx) (*Server, error) {
	listener, err := net.Listen("tcp", cos.JoinHostPort("", port))
	if err != nil {
		return nil, errors.Wrapf(err, "bind port %d", port)
	}
	ctx, cancel := context.WithCancel(parent)
	s := &Server{
		listener: listener,
		rx:       rx,
		ctx:      ctx,
		cancel:   cancel,
		conns:    make(map[*Conn]struct{}),
	}
	s.group, _ = errgroup.WithContext(ctx)
	return s, nil
}

func (s *Server) Name() string { return "transport-server" }
func (s *Server) Rx() *Rx      { return s.rx }

func (s *Server) Addr() net.Addr { return s.listener.Addr() }

// Port reports the bound port (useful when constructed with port 0).
func (s *Server) Port() int {
	if ta, ok := s.listener.Addr().(*net.TCPAddr); ok {
		return ta.Port
	}
	return 0
}

func (s *Server) Run() error {
	nlog.Infof("%s: listening on %s", s.Name(), s.listener.Addr())
	for {
		tc, err := s.listener.Accept()
		if err != nil {
			if s.ctx.Err() != nil {
				return s.group.Wait() // cancellation stops new accepts
			}
			nlog.Errorf("%s: accept: %v", s.Name(), err)
			return err
		}
		c := newConn(tc)
		s.track(c, true)
		s.group.Go(func() error {
			c.reader(s.ctx, s.rx)
			s.track(c, false)
			return nil
		})
	}
}

// Stop cancels the accept loop and every per-connection reader; readers
// observe cancellation at their next read (their sockets are closed).
func (s *Server) Stop(err error) {
	nlog.Infof("Stopping %s, err: %v", s.Name(), err)
	s.cancel()
	s.listener.Close()
	s.mu.Lock()
	for c := range s.conns {
		c.Close()
	}
	s.mu.Unlock()
}

func (s *Server) track(c *Conn, add bool) {
	s.mu.Lock()
	if add {
		s.conns[c] = struct{}{}
	} else {
		delete(s.conns, c)
	}
	s.mu.Unlock()
}
