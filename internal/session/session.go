// Package session implements the peer-to-peer session state machine:
// network wait, discovery, join handshake, master election, and inbound
// packet routing, against the transport.Transport and protocol.Factory
// interfaces. Session's own fields are mutated only by the goroutine
// that calls Create/Join/Poll/Send/Leave — there is no internal locking,
// matching the single-threaded, non-blocking contract its callers rely
// on: a Poll tick never blocks beyond one Transport.Recv call.
package session

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"math/big"
	"time"

	"github.com/meshcore/dvlnet/internal/audit"
	"github.com/meshcore/dvlnet/internal/config"
	"github.com/meshcore/dvlnet/internal/netid"
	"github.com/meshcore/dvlnet/internal/netlog"
	"github.com/meshcore/dvlnet/internal/protocol"
	"github.com/meshcore/dvlnet/internal/seen"
	"github.com/meshcore/dvlnet/internal/transport"
)

// ErrProtocol covers socket bind/listen failure and the overlay never
// coming online within the wait budget.
var ErrProtocol = errors.New("session: protocol error")

// ErrPacket covers a codec-rejected inbound buffer.
var ErrPacket = errors.New("session: packet error")

// ErrSession covers an application send to an unresolved pseudo-address.
var ErrSession = errors.New("session: invalid operation")

// Session holds one participant's view of a mesh game session.
type Session struct {
	tr       transport.Transport
	factory  protocol.Factory
	cfg      config.Config
	auditLog *audit.Log
	dedup    *seen.Cache

	selfPlr      config.PlayerID
	peers        [config.MaxPlayers]netid.Endpoint
	connected    [config.MaxPlayers]bool
	cookieSelf   uint32
	gameName     string
	firstPeer    netid.Endpoint
	gameInitInfo []byte

	inbox chan protocol.Packet
}

// New returns a Session in its initial (not-yet-joined) state. auditLog
// may be nil — every audit call is a safe no-op on a nil *Log.
func New(tr transport.Transport, factory protocol.Factory, cfg config.Config, auditLog *audit.Log) *Session {
	return &Session{
		tr:       tr,
		factory:  factory,
		cfg:      cfg,
		auditLog: auditLog,
		dedup:    seen.New(seen.DefaultExpiry),
		selfPlr:  config.PlrBroadcast,
		inbox:    make(chan protocol.Packet, 256),
	}
}

// SetGameInitInfo configures the opaque blob a master hands new joiners
// on admission, and a joiner offers the master in its join request. The
// session layer never interprets it.
func (s *Session) SetGameInitInfo(info []byte) {
	s.gameInitInfo = info
}

// Inbox delivers packets addressed to this player or to broadcast, once
// routed past handshake/announcement processing (recv_local).
func (s *Session) Inbox() <-chan protocol.Packet {
	return s.inbox
}

// Self returns this participant's assigned player id, or
// config.PlrBroadcast before a successful Create/Join.
func (s *Session) Self() config.PlayerID { return s.selfPlr }

// Peer returns the endpoint occupying slot plr, or the zero Endpoint if
// the slot is free.
func (s *Session) Peer(plr config.PlayerID) netid.Endpoint {
	if plr >= config.MaxPlayers {
		return netid.Endpoint{}
	}
	return s.peers[plr]
}

// Connected reports whether slot plr is occupied (or is plr_self).
func (s *Session) Connected(plr config.PlayerID) bool {
	if plr >= config.MaxPlayers {
		return false
	}
	return s.connected[plr]
}

// DefaultGamename returns 5 random letters from the consonant-heavy
// discovery alphabet.
func DefaultGamename() string {
	letters := make([]byte, config.GamenameLength)
	for i := range letters {
		letters[i] = config.GamenameAlphabet[randomIndex(len(config.GamenameAlphabet))]
	}
	return string(letters)
}

func randomIndex(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(v.Int64())
}

func randomCookie() uint32 {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b[:])
}

// Create starts a new session as its sole, master participant. Returns
// config.MaxPlayers if the overlay never comes online within the
// configured wait budget.
func (s *Session) Create(addr, passwd string) (config.PlayerID, error) {
	s.factory.SetPassword(passwd)
	s.gameName = addr

	if !s.waitNetwork() {
		netlog.Error("session: create %q: overlay never came online", addr)
		return config.MaxPlayers, ErrProtocol
	}

	s.selfPlr = 0
	s.connected[0] = true
	netlog.Info("session: created game %q as master", addr)
	return s.selfPlr, nil
}

// Join runs discovery then the join handshake against an existing game
// named addr. Returns config.MaxPlayers on any step's timeout.
func (s *Session) Join(addr, passwd string) (config.PlayerID, error) {
	s.factory.SetPassword(passwd)
	s.gameName = addr

	if !s.waitNetwork() {
		netlog.Error("session: join %q: overlay never came online", addr)
		return config.MaxPlayers, ErrProtocol
	}
	if !s.waitFirstPeer() {
		netlog.Error("session: join %q: no peer discovered", addr)
		return config.MaxPlayers, ErrProtocol
	}
	if !s.waitJoin() {
		netlog.Error("session: join %q: handshake with %s timed out", addr, s.firstPeer)
		return config.MaxPlayers, ErrProtocol
	}
	return s.selfPlr, nil
}

func (s *Session) waitInterval() time.Duration {
	return time.Duration(s.cfg.WaitIntervalMS) * time.Millisecond
}

func (s *Session) waitNetwork() bool {
	for i := 0; i < s.cfg.WaitIterations; i++ {
		if err := s.tr.Start(); err != nil {
			netlog.Warn("session: transport start: %v", err)
		} else if s.tr.NetworkOnline() {
			return true
		}
		time.Sleep(s.waitInterval())
	}
	return s.tr.NetworkOnline()
}

// waitFirstPeer broadcasts PT_INFO_REQUEST over OOB multicast and polls
// until firstPeer is learned or the wait budget is exhausted.
func (s *Session) waitFirstPeer() bool {
	for i := 0; i < s.cfg.WaitIterations; i++ {
		if pkt, err := s.factory.NewInfoRequest(config.PlrBroadcast, config.PlrMaster); err == nil {
			if err := s.tr.SendOOBMulticast(pkt); err != nil {
				netlog.Warn("session: discovery broadcast failed: %v", err)
			}
		}
		if err := s.Poll(); err != nil {
			netlog.Warn("session: poll during discovery: %v", err)
		}
		if !s.firstPeer.IsZero() {
			return true
		}
		time.Sleep(s.waitInterval())
	}
	return !s.firstPeer.IsZero()
}

// waitJoin sends a cookie-correlated PT_JOIN_REQUEST to firstPeer and
// polls until the master's PT_JOIN_ACCEPT assigns selfPlr.
func (s *Session) waitJoin() bool {
	s.cookieSelf = randomCookie()
	pkt, err := s.factory.NewJoinRequest(config.PlrBroadcast, config.PlrMaster, s.cookieSelf, s.gameInitInfo)
	if err != nil {
		netlog.Error("session: building join request: %v", err)
		return false
	}
	if err := s.tr.Send(s.firstPeer, pkt); err != nil {
		netlog.Warn("session: sending join request to %s: %v", s.firstPeer, err)
	}

	for i := 0; i < s.cfg.WaitIterations; i++ {
		if err := s.Poll(); err != nil {
			netlog.Warn("session: poll during join: %v", err)
		}
		if s.selfPlr != config.PlrBroadcast {
			return true
		}
		time.Sleep(s.waitInterval())
	}
	return s.selfPlr != config.PlrBroadcast
}

// Poll performs one non-blocking transport sweep and routes at most one
// resulting packet. A packet rejected with ErrPacket is logged and
// dropped and its sender disconnected; ErrPacket is not returned.
func (s *Session) Poll() error {
	sender, pkt, err := s.tr.Recv()
	if err != nil || pkt == nil {
		return err
	}
	err = s.recvDecrypted(pkt, sender)
	if errors.Is(err, ErrPacket) {
		netlog.Warn("session: dropping malformed packet from %s, disconnecting: %v", sender, err)
		s.tr.Disconnect(sender)
		return nil
	}
	return err
}

// Send routes pkt by its destination field: a specific player, broadcast
// to every connected peer, or a failure for an unresolved pseudo-address.
func (s *Session) Send(pkt protocol.Packet) error {
	dest := pkt.Dest()
	switch {
	case dest < config.MaxPlayers:
		if dest == s.selfPlr || s.peers[dest].IsZero() {
			return nil
		}
		return s.tr.Send(s.peers[dest], pkt)
	case dest == config.PlrBroadcast:
		for i := config.PlayerID(0); i < config.MaxPlayers; i++ {
			if i == s.selfPlr || s.peers[i].IsZero() {
				continue
			}
			if err := s.tr.Send(s.peers[i], pkt); err != nil {
				netlog.Warn("session: broadcast to player %d failed: %v", i, err)
			}
		}
		return nil
	default:
		// PLR_MASTER included: the session layer resolves master on
		// receive, never on send — the application must resolve it first.
		return ErrSession
	}
}

// DisconnectNet tears down plr's transport connection and frees its
// peer-table slot. Idempotent.
func (s *Session) DisconnectNet(plr config.PlayerID) error {
	if plr >= config.MaxPlayers {
		return ErrSession
	}
	if ep := s.peers[plr]; !ep.IsZero() {
		s.tr.Disconnect(ep)
		s.auditLog.Record(audit.KindDisconnect, int(plr), ep.String())
	}
	s.peers[plr] = netid.Endpoint{}
	s.connected[plr] = plr == s.selfPlr
	return nil
}

// Leave broadcasts an upper-layer leave payload, flushes one final poll,
// and reports whether the broadcast send succeeded.
func (s *Session) Leave(payload []byte) (bool, error) {
	pkt, err := s.factory.NewApplication(s.selfPlr, config.PlrBroadcast, payload)
	if err != nil {
		return false, err
	}
	sendErr := s.Send(pkt)
	if err := s.Poll(); err != nil {
		netlog.Warn("session: final poll on leave: %v", err)
	}
	s.auditLog.Record(audit.KindLeave, int(s.selfPlr), "")
	return sendErr == nil, sendErr
}

// GetMaster returns the lowest connected player id, or selfPlr if no
// peers exist yet. Purely derived; never stored.
func (s *Session) GetMaster() config.PlayerID {
	for i := config.PlayerID(0); i < config.MaxPlayers; i++ {
		if s.connected[i] {
			return i
		}
	}
	return s.selfPlr
}

// recvDecrypted dispatches one parsed packet by (src, dest, type).
func (s *Session) recvDecrypted(pkt protocol.Packet, sender netid.Endpoint) error {
	src, dest, typ := pkt.Src(), pkt.Dest(), pkt.Type()

	// Self-assignment: the spec's compressed dispatch table omits this
	// case, but wait_join's exit condition ("selfPlr != PLR_BROADCAST")
	// has to be driven by something — this is where the accept is
	// consumed and the cookie checked before trusting the assignment.
	if typ == protocol.PTJoinAccept && s.selfPlr == config.PlrBroadcast {
		return s.handleJoinAccept(pkt, src, sender)
	}

	if src == config.PlrBroadcast && dest == config.PlrMaster {
		switch typ {
		case protocol.PTJoinRequest:
			return s.handleJoinRequest(pkt, sender)
		case protocol.PTInfoRequest:
			return s.handleInfoRequest(sender)
		case protocol.PTInfoReply:
			return s.handleInfoReply(pkt, sender)
		}
	}

	if src == config.PlrMaster && typ == protocol.PTConnect {
		return s.handleConnectAnnouncement(pkt)
	}

	if src >= config.MaxPlayers {
		netlog.Fatal("session: packet claims impossible source player %d", src)
	}

	// Normal in-band packet: self-heal the sender's slot, then deliver
	// upward if addressed to us or to everyone.
	s.connected[src] = true
	s.peers[src] = sender
	if dest != s.selfPlr && dest != config.PlrBroadcast {
		return nil
	}
	select {
	case s.inbox <- pkt:
	default:
		netlog.Warn("session: inbox full, dropping packet from player %d", src)
	}
	return nil
}

func (s *Session) handleJoinAccept(pkt protocol.Packet, src config.PlayerID, sender netid.Endpoint) error {
	if pkt.Cookie() != s.cookieSelf {
		netlog.Warn("session: dropping join accept with mismatched cookie")
		return nil
	}
	newplr := pkt.NewPlr()
	if newplr >= config.MaxPlayers {
		netlog.Fatal("session: join accept names impossible player id %d", newplr)
	}
	s.selfPlr = newplr
	s.connected[newplr] = true
	if src < config.MaxPlayers {
		s.peers[src] = sender
		s.connected[src] = true
	}
	netlog.Info("session: joined %q as player %d", s.gameName, newplr)
	return nil
}

func (s *Session) handleInfoRequest(sender netid.Endpoint) error {
	if s.selfPlr == config.PlrBroadcast || s.GetMaster() != s.selfPlr {
		return nil
	}
	reply, err := s.factory.NewInfoReply(config.PlrBroadcast, config.PlrMaster, []byte(s.gameName))
	if err != nil {
		return nil
	}
	if err := s.tr.SendOOB(sender, reply); err != nil {
		netlog.Warn("session: info reply to %s failed: %v", sender, err)
	}
	return nil
}

func (s *Session) handleInfoReply(pkt protocol.Packet, sender netid.Endpoint) error {
	key := sender.String() + "|" + string(pkt.Info())
	if !s.dedup.Add(key) {
		return nil
	}
	if string(pkt.Info()) == s.gameName && s.firstPeer.IsZero() {
		s.firstPeer = sender
		netlog.Info("session: discovered game %q at %s", s.gameName, sender)
	}
	return nil
}

func (s *Session) handleConnectAnnouncement(pkt protocol.Packet) error {
	newplr := pkt.NewPlr()
	if newplr >= config.MaxPlayers {
		netlog.Fatal("session: PT_CONNECT names impossible player id %d", newplr)
	}
	ep, err := netid.FromBytes(pkt.Info())
	if err != nil {
		return ErrPacket
	}
	s.connected[newplr] = true
	s.peers[newplr] = ep
	return nil
}

// handleJoinRequest is the master's admit flow: assign the lowest free
// slot, forward one existing peer's address so the joiner can bootstrap
// its own peer list, then accept.
func (s *Session) handleJoinRequest(pkt protocol.Packet, sender netid.Endpoint) error {
	slot := config.MaxPlayers
	for i := config.PlayerID(0); i < config.MaxPlayers; i++ {
		if i != s.selfPlr && s.peers[i].IsZero() {
			slot = i
			break
		}
	}
	if slot == config.MaxPlayers {
		netlog.Warn("session: refusing join from %s, no free slot", sender)
		return nil
	}

	s.peers[slot] = sender
	s.connected[slot] = true

	for j := config.PlayerID(0); j < config.MaxPlayers; j++ {
		if j == s.selfPlr || j == slot || s.peers[j].IsZero() {
			continue
		}
		connectPkt, err := s.factory.NewConnect(config.PlrMaster, config.PlrBroadcast, j, s.peers[j].Bytes())
		if err != nil {
			break
		}
		if err := s.tr.Send(sender, connectPkt); err != nil {
			netlog.Warn("session: sending PT_CONNECT for player %d to new joiner failed: %v", j, err)
		}
		break
	}

	accept, err := s.factory.NewJoinAccept(s.selfPlr, config.PlrBroadcast, pkt.Cookie(), slot, s.gameInitInfo)
	if err != nil {
		return ErrProtocol
	}
	if err := s.tr.Send(sender, accept); err != nil {
		netlog.Warn("session: sending join accept to %s failed: %v", sender, err)
	}
	s.auditLog.Record(audit.KindAdmit, int(slot), sender.String())
	return nil
}
