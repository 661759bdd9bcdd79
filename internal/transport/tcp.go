package transport

import (
	"io"
	"net"
	"strconv"
	"sync"

	"github.com/meshcore/dvlnet/internal/frame"
	"github.com/meshcore/dvlnet/internal/netid"
	"github.com/meshcore/dvlnet/internal/netlog"
	"github.com/meshcore/dvlnet/internal/protocol"
)

type inboundPkt struct {
	from netid.Endpoint
	pkt  protocol.Packet
}

// NetTransport is the real-socket Transport: one TCP listener accepting
// per-peer streams, one UDP socket for OOB discovery traffic, and a
// background goroutine per open stream feeding a shared inbound channel
// that Recv drains non-blockingly.
type NetTransport struct {
	factory protocol.Factory
	port    int

	listenConfig  net.ListenConfig
	listener      net.Listener
	udpConn       *net.UDPConn
	multicastAddr []netid.Endpoint

	mu    sync.Mutex
	peers map[netid.Endpoint]net.Conn

	inbound chan inboundPkt
}

// NewNetTransport returns a NetTransport bound to port once Start is
// called. factory authenticates/parses everything Recv hands back.
func NewNetTransport(port int, factory protocol.Factory) *NetTransport {
	return &NetTransport{
		factory: factory,
		port:    port,
		peers:   make(map[netid.Endpoint]net.Conn),
		inbound: make(chan inboundPkt, 256),
	}
}

// SetMulticastScope configures the fixed address list SendOOBMulticast
// fans a datagram out to. The overlay has no native IPv6 multicast group
// configured by default, so discovery falls back to an explicit peer
// list supplied by the caller (e.g. known LAN neighbours).
func (t *NetTransport) SetMulticastScope(addrs []netid.Endpoint) {
	t.multicastAddr = addrs
}

// Start binds the TCP listener and the UDP socket and begins accepting.
func (t *NetTransport) Start() error {
	if t.NetworkOnline() {
		return nil
	}

	ln, err := net.Listen("tcp", net.JoinHostPort("::", strconv.Itoa(t.port)))
	if err != nil {
		return err
	}
	t.listener = ln

	udpAddr := &net.UDPAddr{IP: net.IPv6unspecified, Port: t.port}
	conn, err := net.ListenUDP("udp6", udpAddr)
	if err != nil {
		ln.Close()
		return err
	}
	t.udpConn = conn

	go t.acceptLoop()
	go t.udpReadLoop()
	return nil
}

func (t *NetTransport) NetworkOnline() bool {
	return t.listener != nil && t.udpConn != nil
}

// Connect dials peer's TCP stream. Idempotent if already connected.
func (t *NetTransport) Connect(peer netid.Endpoint) error {
	t.mu.Lock()
	_, already := t.peers[peer]
	t.mu.Unlock()
	if already {
		return nil
	}

	conn, err := net.Dial("tcp", net.JoinHostPort(peer.String(), strconv.Itoa(t.port)))
	if err != nil {
		return err
	}
	t.addPeer(peer, conn)
	return nil
}

// Send writes pkt.Data() to peer's stream synchronously, dialling peer
// first if no stream is open (a peer removed by Disconnect is dialled
// again). There is no send queue: the dial and the write may block, and
// a dial or write error is returned to the caller.
func (t *NetTransport) Send(peer netid.Endpoint, pkt protocol.Packet) error {
	t.mu.Lock()
	conn, ok := t.peers[peer]
	t.mu.Unlock()
	if !ok {
		if err := t.Connect(peer); err != nil {
			return err
		}
		t.mu.Lock()
		conn, ok = t.peers[peer]
		t.mu.Unlock()
		if !ok {
			return ErrNotConnected
		}
	}
	_, err := conn.Write(pkt.Data())
	return err
}

func (t *NetTransport) SendOOB(peer netid.Endpoint, pkt protocol.Packet) error {
	return t.writeDatagram(peer, pkt)
}

func (t *NetTransport) SendOOBMulticast(pkt protocol.Packet) error {
	var firstErr error
	for _, addr := range t.multicastAddr {
		if err := t.writeDatagram(addr, pkt); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// writeDatagram strips pkt.Data()'s frame length prefix before writing:
// a UDP datagram is self-delimiting, so the length header that lets a
// frame.Queue reassemble a TCP byte stream would be redundant wire
// overhead on a transport that already preserves message boundaries.
func (t *NetTransport) writeDatagram(peer netid.Endpoint, pkt protocol.Packet) error {
	body := pkt.Data()[frame.PrefixSize:]
	_, err := t.udpConn.WriteToUDP(body, &net.UDPAddr{IP: net.IP(peer.Bytes()), Port: t.port})
	return err
}

func (t *NetTransport) Recv() (netid.Endpoint, protocol.Packet, error) {
	select {
	case in := <-t.inbound:
		return in.from, in.pkt, nil
	default:
		return netid.Endpoint{}, nil, nil
	}
}

func (t *NetTransport) Disconnect(peer netid.Endpoint) {
	t.mu.Lock()
	conn, ok := t.peers[peer]
	delete(t.peers, peer)
	t.mu.Unlock()
	if ok {
		conn.Close()
	}
}

func (t *NetTransport) Close() error {
	if t.listener != nil {
		t.listener.Close()
	}
	if t.udpConn != nil {
		t.udpConn.Close()
	}
	t.mu.Lock()
	for _, c := range t.peers {
		c.Close()
	}
	t.mu.Unlock()
	return nil
}

func (t *NetTransport) acceptLoop() {
	for {
		conn, err := t.listener.Accept()
		if err != nil {
			return
		}
		addr, ok := peerEndpoint(conn.RemoteAddr())
		if !ok {
			netlog.Warn("transport: could not parse remote address %v, dropping connection", conn.RemoteAddr())
			conn.Close()
			continue
		}
		t.addPeer(addr, conn)
	}
}

func (t *NetTransport) addPeer(addr netid.Endpoint, conn net.Conn) {
	t.mu.Lock()
	t.peers[addr] = conn
	t.mu.Unlock()
	go t.readLoop(addr, conn)
}

func (t *NetTransport) readLoop(addr netid.Endpoint, conn net.Conn) {
	defer func() {
		conn.Close()
		t.mu.Lock()
		delete(t.peers, addr)
		t.mu.Unlock()
	}()

	var q frame.Queue
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			q.Write(buf[:n])
			for q.Ready() {
				payload, err := q.Pop()
				if err != nil {
					netlog.Warn("transport: %s sent an oversize frame, disconnecting", addr)
					return
				}
				if payload == nil {
					break
				}
				pkt, err := t.factory.MakePacket(payload)
				if err != nil {
					netlog.Warn("transport: dropping unparseable packet from %s, disconnecting: %v", addr, err)
					return
				}
				t.deliver(addr, pkt)
			}
		}
		if err != nil {
			if err != io.EOF {
				netlog.Warn("transport: read error from %s: %v", addr, err)
			}
			return
		}
	}
}

func (t *NetTransport) udpReadLoop() {
	buf := make([]byte, frame.MaxPayload)
	for {
		n, raddr, err := t.udpConn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		from, ok := peerEndpoint(raddr)
		if !ok {
			continue
		}
		payload := make([]byte, n)
		copy(payload, buf[:n])
		pkt, err := t.factory.MakePacket(payload)
		if err != nil {
			netlog.Warn("transport: dropping unparseable OOB packet from %s: %v", from, err)
			continue
		}
		t.deliver(from, pkt)
	}
}

func (t *NetTransport) deliver(from netid.Endpoint, pkt protocol.Packet) {
	select {
	case t.inbound <- inboundPkt{from: from, pkt: pkt}:
	default:
		netlog.Warn("transport: inbound queue full, dropping packet from %s", from)
	}
}

func peerEndpoint(addr net.Addr) (netid.Endpoint, bool) {
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return netid.Endpoint{}, false
	}
	e := netid.ParseIP(host)
	return e, !e.IsZero()
}
