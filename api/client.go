// Package api provides the submitter-side client: one persistent connection
// to the master carrying requests out and responses back in, correlated by
// packetId.
/*
 * Copyright (c) 2024, ReadySKAHF. All rights reserved.
 */
package api

import (
	"context"
	"sync"

	"github.com/ReadySKAHF/gaussnet/api/wire"
	"github.com/ReadySKAHF/gaussnet/cmn/nlog"
	"github.com/ReadySKAHF/gaussnet/transport"
	"github.com/pkg/errors"
)

var errClientClosed = errors.New("client connection closed")

// Client is not a worker: it only originates jobs and consumes their results.
// Responses arrive in arbitrary order; each Submit returns a one-shot channel.
type Client struct {
	conn *transport.Conn
	rx   *transport.Rx

	mu      sync.Mutex
	waiters map[string]chan *wire.ImagePacket
	err     error
}

func NewClient(ctx context.Context, masterAddr string) (*Client, error) {
	rx := transport.NewRx()
	conn, err := transport.Dial(ctx, masterAddr, rx)
	if err != nil {
		return nil, err
	}
	c := &Client{
		conn:    conn,
		rx:      rx,
		waiters: make(map[string]chan *wire.ImagePacket, 16),
	}
	go c.collect(ctx)
	return c, nil
}

// Submit sends one job; the returned channel yields the response packet, or
// closes without a value if the connection fails first.
func (c *Client) Submit(packet *wire.ImagePacket) (<-chan *wire.ImagePacket, error) {
	ch := make(chan *wire.ImagePacket, 1)
	c.mu.Lock()
	if c.err != nil {
		c.mu.Unlock()
		return nil, c.err
	}
	c.waiters[packet.PacketID] = ch
	c.mu.Unlock()

	if err := c.conn.Send(wire.NewImageRequest(packet)); err != nil {
		c.mu.Lock()
		delete(c.waiters, packet.PacketID)
		c.mu.Unlock()
		return nil, err
	}
	return ch, nil
}

func (c *Client) Close() error { return c.conn.Close() }

func (c *Client) collect(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			c.fail(ctx.Err())
			return
		case rxm, ok := <-c.rx.MsgCh:
			if !ok {
				c.fail(errClientClosed)
				return
			}
			if rxm.Msg.Type != wire.ImageResponse {
				nlog.Warningf("client: unexpected %s - discarded", rxm.Msg)
				continue
			}
			packet, err := rxm.Msg.Packet()
			if err != nil {
				nlog.Errorln(err)
				continue
			}
			c.mu.Lock()
			ch, ok := c.waiters[packet.PacketID]
			if ok {
				delete(c.waiters, packet.PacketID)
			}
			c.mu.Unlock()
			if !ok {
				nlog.Warningf("client: response for unknown packetId %q", packet.PacketID)
				continue
			}
			ch <- packet
			close(ch)
		case ev := <-c.rx.ErrCh:
			c.fail(ev.Err)
			return
		}
	}
}

// fail closes every outstanding waiter without a value.
func (c *Client) fail(err error) {
	c.mu.Lock()
	if c.err == nil {
		c.err = err
	}
	for id, ch := range c.waiters {
		close(ch)
		delete(c.waiters, id)
	}
	c.mu.Unlock()
}
