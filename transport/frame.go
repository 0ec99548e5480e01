// Package transport provides framed message exchange over persistent TCP
// connections: a length-prefixed JSON codec, a multi-accept server loop, and
// symmetric outbound dialing (requests out, results in, same socket).
/*
 * Copyright (c) 2024, ReadySKAHF. All rights reserved.
 */
package transport

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/ReadySKAHF/gaussnet/api/wire"
	"github.com/ReadySKAHF/gaussnet/cmn/cos"
	"github.com/pkg/errors"
)

// Every frame on the wire is [uint32 length, little-endian][length bytes of body];
// the body is the UTF-8 JSON serialization of wire.Msg. The length word is not
// included in the count.
const (
	lenPrefixSize = 4
	MaxBodySize   = 50_000_000
)

// errFrameTooBig is non-fatal: the reader discards the oversized body and continues.
type errFrameTooBig struct {
	size uint32
}

func (e *errFrameTooBig) Error() string {
	return fmt.Sprintf("frame body of %d bytes exceeds the %d limit", e.size, MaxBodySize)
}

func marshalFrame(m *wire.Msg) ([]byte, error) {
	body, err := cos.JSON().Marshal(m)
	if err != nil {
		return nil, errors.Wrap(err, "marshal frame")
	}
	if len(body) > MaxBodySize {
		return nil, &errFrameTooBig{uint32(len(body))}
	}
	frame := make([]byte, lenPrefixSize+len(body))
	binary.LittleEndian.PutUint32(frame, uint32(len(body)))
	copy(frame[lenPrefixSize:], body)
	return frame, nil
}

// readFrame reads one length-prefixed message. Returns:
//   - (msg, nil) on success
//   - (nil, io.EOF) when the peer closed cleanly at a frame boundary
//   - (nil, *errFrameTooBig) after discarding an oversized body (caller continues)
//   - (nil, err) on short length word, short body, or JSON parse failure (fatal)
func readFrame(r io.Reader) (*wire.Msg, error) {
	var lenWord [lenPrefixSize]byte
	n, err := io.ReadFull(r, lenWord[:])
	if n == 0 {
		return nil, io.EOF // peer disconnected
	}
	if err != nil {
		// 1..3 bytes of a length word is peer misbehavior - abandon the connection
		return nil, errors.Wrap(err, "short read on frame length")
	}
	size := binary.LittleEndian.Uint32(lenWord[:])
	if size > MaxBodySize {
		if _, err := io.CopyN(io.Discard, r, int64(size)); err != nil {
			return nil, errors.Wrap(err, "discard oversized frame")
		}
		return nil, &errFrameTooBig{size}
	}
	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, errors.Wrap(err, "read frame body")
	}
	msg := &wire.Msg{}
	if err := cos.JSON().Unmarshal(body, msg); err != nil {
		return nil, errors.Wrap(err, "parse frame body")
	}
	return msg, nil
}
