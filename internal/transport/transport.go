// Package transport drives the peer sockets: one listening TCP socket
// for reliable per-peer streams, one UDP socket for fire-and-forget
// out-of-band (OOB) discovery traffic, and background goroutines that
// feed everything into channels so the session layer can stay
// single-threaded and non-blocking — it calls Recv once per poll tick
// and never blocks waiting on a socket.
package transport

import (
	"errors"

	"github.com/meshcore/dvlnet/internal/netid"
	"github.com/meshcore/dvlnet/internal/protocol"
)

// ErrNotConnected is returned by Send when no stream to peer could be
// established; MemoryTransport returns it for a peer that is not
// registered.
var ErrNotConnected = errors.New("transport: peer not connected")

// Transport abstracts peer I/O so the session layer can run against
// either NetTransport (real sockets) or MemoryTransport (in-process, for
// tests) without changing a line of session logic.
type Transport interface {
	// Start binds the transport's sockets. Idempotent: the session layer
	// may call it on every NetworkOnline check until it succeeds.
	Start() error

	// NetworkOnline reports whether the listening socket is bound and
	// accepting connections.
	NetworkOnline() bool

	// Send delivers pkt to peer's stream, opening one first if none is
	// open (including after Disconnect). It returns an error only if no
	// stream can be opened or the delivery fails.
	Send(peer netid.Endpoint, pkt protocol.Packet) error

	// SendOOB emits one UDP datagram to peer, fire-and-forget.
	SendOOB(peer netid.Endpoint, pkt protocol.Packet) error

	// SendOOBMulticast emits pkt as a UDP datagram to every address in
	// the configured discovery scope, fire-and-forget.
	SendOOBMulticast(pkt protocol.Packet) error

	// Recv drains exactly one pending packet (TCP or OOB) and returns
	// it with the sender's endpoint. When nothing is pending, it
	// returns a zero Endpoint, a nil Packet, and a nil error — it never
	// blocks.
	Recv() (netid.Endpoint, protocol.Packet, error)

	// Disconnect closes peer's TCP stream, if any.
	Disconnect(peer netid.Endpoint)

	// Close shuts down every socket the transport owns.
	Close() error
}
