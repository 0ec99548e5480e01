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

	"github.com/pkg/errors"
)

// Dial opens an outbound framed connection. The connection is symmetric: the
// same reader loop services inbound frames from the peer, so a single socket
// carries outbound requests and inbound responses.
func Dial(ctx context.Context, addr string, rx *Rx) (*Conn, error) {
	var d net.Dialer
	tc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", addr)
	}
	c := newConn(tc)
	go c.reader(ctx, rx)
	return c, nil
}
