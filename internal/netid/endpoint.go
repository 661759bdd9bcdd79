// Package netid defines the wire address type used to identify a peer on
// the mesh overlay: a 16-byte IPv6 address plus the reserved all-zero form
// meaning "no peer".
package netid

import (
	"bytes"
	"errors"
	"net"
)

// Size is the serialised length of an Endpoint.
const Size = 16

// ErrBadLength is returned by FromBytes when given a buffer whose length
// isn't exactly Size.
var ErrBadLength = errors.New("netid: endpoint must be exactly 16 bytes")

// Endpoint is a 16-byte IPv6 address identifying a remote participant on
// the overlay. The zero value is the empty sentinel ("no peer"); use
// IsZero to test for it rather than comparing against a literal.
type Endpoint struct {
	addr [Size]byte
}

// FromBytes builds an Endpoint from a 16-byte buffer. Any length other
// than 16 is a protocol error from the caller's perspective.
func FromBytes(b []byte) (Endpoint, error) {
	if len(b) != Size {
		return Endpoint{}, ErrBadLength
	}
	var e Endpoint
	copy(e.addr[:], b)
	return e, nil
}

// ParseIP builds an Endpoint from a textual IPv6 address. Input that is
// not a valid IP address yields the empty Endpoint rather than an error;
// a textual IPv4 address is stored in its IPv4-mapped IPv6 form.
func ParseIP(s string) Endpoint {
	ip := net.ParseIP(s)
	if ip == nil {
		return Endpoint{}
	}
	ip16 := ip.To16()
	if ip16 == nil {
		return Endpoint{}
	}
	var e Endpoint
	copy(e.addr[:], ip16)
	return e
}

// Bytes returns the 16-byte wire form.
func (e Endpoint) Bytes() []byte {
	out := make([]byte, Size)
	copy(out, e.addr[:])
	return out
}

// IsZero reports whether e is the empty sentinel ("no peer").
func (e Endpoint) IsZero() bool {
	var zero [Size]byte
	return e.addr == zero
}

// Equal reports byte-for-byte equality.
func (e Endpoint) Equal(o Endpoint) bool {
	return e.addr == o.addr
}

// Less gives Endpoint a total order so it can be sorted or used as a
// tie-breaker; the exact ordering doesn't matter, only that it's total.
func (e Endpoint) Less(o Endpoint) bool {
	return bytes.Compare(e.addr[:], o.addr[:]) < 0
}

// String renders the address in IPv6 textual form, or "<empty>" for the
// zero Endpoint.
func (e Endpoint) String() string {
	if e.IsZero() {
		return "<empty>"
	}
	return net.IP(e.addr[:]).String()
}
