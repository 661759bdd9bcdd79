package transport

import (
	"sync"

	"github.com/meshcore/dvlnet/internal/netid"
	"github.com/meshcore/dvlnet/internal/protocol"
)

// memoryRegistry wires MemoryTransport instances together by endpoint so
// tests can construct a small mesh without touching real sockets.
var (
	registryMu sync.Mutex
	registry   = map[netid.Endpoint]*MemoryTransport{}
)

// MemoryTransport is an in-process Transport for tests: Send/SendOOB
// deliver straight into the peer's inbound channel, with no framing, no
// goroutines, and no authentication beyond whatever the shared Factory
// already enforces.
type MemoryTransport struct {
	self    netid.Endpoint
	online  bool
	inbound chan inboundPkt

	mu    sync.Mutex
	peers map[netid.Endpoint]*MemoryTransport
}

// NewMemoryTransport registers a transport at self in the shared
// registry. Start marks it online; Close unregisters it.
func NewMemoryTransport(self netid.Endpoint) *MemoryTransport {
	t := &MemoryTransport{
		self:    self,
		inbound: make(chan inboundPkt, 256),
		peers:   make(map[netid.Endpoint]*MemoryTransport),
	}
	registryMu.Lock()
	registry[self] = t
	registryMu.Unlock()
	return t
}

func (t *MemoryTransport) Start() error {
	t.online = true
	return nil
}

func (t *MemoryTransport) NetworkOnline() bool { return t.online }

// Connect wires t and the transport registered at peer together in both
// directions, so either side can Send to the other.
func (t *MemoryTransport) Connect(peer netid.Endpoint) error {
	registryMu.Lock()
	other, ok := registry[peer]
	registryMu.Unlock()
	if !ok {
		return ErrNotConnected
	}

	t.mu.Lock()
	t.peers[peer] = other
	t.mu.Unlock()

	other.mu.Lock()
	other.peers[t.self] = t
	other.mu.Unlock()
	return nil
}

// Send lazily Connects to peer on first use, mirroring NetTransport's
// connect-on-first-drain behaviour.
func (t *MemoryTransport) Send(peer netid.Endpoint, pkt protocol.Packet) error {
	t.mu.Lock()
	other, ok := t.peers[peer]
	t.mu.Unlock()
	if !ok {
		if err := t.Connect(peer); err != nil {
			return err
		}
		t.mu.Lock()
		other, ok = t.peers[peer]
		t.mu.Unlock()
		if !ok {
			return ErrNotConnected
		}
	}
	other.deliver(t.self, pkt)
	return nil
}

func (t *MemoryTransport) SendOOB(peer netid.Endpoint, pkt protocol.Packet) error {
	registryMu.Lock()
	other, ok := registry[peer]
	registryMu.Unlock()
	if !ok {
		return nil // fire-and-forget: an absent peer is not an error
	}
	other.deliver(t.self, pkt)
	return nil
}

func (t *MemoryTransport) SendOOBMulticast(pkt protocol.Packet) error {
	registryMu.Lock()
	targets := make([]*MemoryTransport, 0, len(registry))
	for addr, other := range registry {
		if addr != t.self {
			targets = append(targets, other)
		}
	}
	registryMu.Unlock()
	for _, other := range targets {
		other.deliver(t.self, pkt)
	}
	return nil
}

func (t *MemoryTransport) Recv() (netid.Endpoint, protocol.Packet, error) {
	select {
	case in := <-t.inbound:
		return in.from, in.pkt, nil
	default:
		return netid.Endpoint{}, nil, nil
	}
}

func (t *MemoryTransport) Disconnect(peer netid.Endpoint) {
	t.mu.Lock()
	delete(t.peers, peer)
	t.mu.Unlock()
}

func (t *MemoryTransport) Close() error {
	registryMu.Lock()
	delete(registry, t.self)
	registryMu.Unlock()
	t.online = false
	return nil
}

func (t *MemoryTransport) deliver(from netid.Endpoint, pkt protocol.Packet) {
	select {
	case t.inbound <- inboundPkt{from: from, pkt: pkt}:
	default:
	}
}
