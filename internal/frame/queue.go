// Package frame reassembles a length-prefixed byte stream into whole
// packets. It is the TCP side of the wire format: every frame is a 4-byte
// little-endian length followed by that many payload bytes. The queue
// tolerates chunk boundaries that split anywhere, including inside the
// length prefix itself.
package frame

import (
	"encoding/binary"
	"errors"
)

// PrefixSize is the width of the length header in bytes.
const PrefixSize = 4

// MaxPayload caps a single frame's payload; anything larger indicates a
// corrupt or malicious length prefix rather than a real packet.
const MaxPayload = 65536

// ErrOversize is surfaced by Pop when the next frame's declared length
// exceeds MaxPayload.
var ErrOversize = errors.New("frame: declared length exceeds maximum payload size")

// Queue accumulates bytes written by the transport and yields whole
// frames in the order they were written. It is not safe for concurrent
// use; callers own exactly one queue per peer and drive it from a single
// goroutine, matching the rest of the transport driver.
type Queue struct {
	buf []byte
}

// Write appends chunk to the accumulated byte stream. chunk may be any
// slice of a frame, including a partial length prefix.
func (q *Queue) Write(chunk []byte) {
	q.buf = append(q.buf, chunk...)
}

// Ready reports whether the accumulated bytes contain at least one
// complete frame: a full length prefix plus that many payload bytes.
func (q *Queue) Ready() bool {
	n, ok := q.peekLen()
	if !ok {
		return false
	}
	if n > MaxPayload {
		// Corrupt prefix; Pop will surface ErrOversize without waiting
		// for a payload this large to actually arrive.
		return true
	}
	return len(q.buf) >= PrefixSize+n
}

// Pop returns the payload of the next complete frame (prefix stripped)
// and advances past it. Calling Pop when Ready is false is undefined; this
// implementation returns (nil, nil) rather than panicking.
//
// A declared length beyond MaxPayload is surfaced as ErrOversize instead
// of being silently accepted — a legitimate codec never emits frames that
// large, so this signals a corrupt stream.
func (q *Queue) Pop() ([]byte, error) {
	n, ok := q.peekLen()
	if !ok {
		return nil, nil
	}
	if n > MaxPayload {
		return nil, ErrOversize
	}
	if len(q.buf) < PrefixSize+n {
		return nil, nil
	}

	payload := make([]byte, n)
	copy(payload, q.buf[PrefixSize:PrefixSize+n])
	q.buf = q.buf[PrefixSize+n:]
	return payload, nil
}

// peekLen decodes the length prefix without consuming it; ok is false if
// fewer than PrefixSize bytes have accumulated so far.
func (q *Queue) peekLen() (int, bool) {
	if len(q.buf) < PrefixSize {
		return 0, false
	}
	return int(binary.LittleEndian.Uint32(q.buf[:PrefixSize])), true
}

// Encode prepends the length prefix to payload, producing one complete
// wire frame.
func Encode(payload []byte) []byte {
	out := make([]byte, PrefixSize+len(payload))
	binary.LittleEndian.PutUint32(out[:PrefixSize], uint32(len(payload)))
	copy(out[PrefixSize:], payload)
	return out
}
