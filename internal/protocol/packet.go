// Package protocol defines the packet contract the session layer depends
// on: parsing/authenticating a received buffer, constructing a typed
// outbound packet, and inspecting its fields. The session layer never
// reaches past this interface — the wire encoding, and whatever
// authentication it carries, live behind the concrete Factory
// implementation in wire.go.
package protocol

import "github.com/meshcore/dvlnet/internal/config"

// Type identifies the kind of packet on the wire.
type Type uint8

const (
	// PTInfoRequest asks "who is hosting gamename?" over multicast UDP.
	PTInfoRequest Type = iota
	// PTInfoReply answers PTInfoRequest with the replying master's game name.
	PTInfoReply
	// PTJoinRequest asks the master for admission.
	PTJoinRequest
	// PTJoinAccept admits a joiner, assigning it a player id.
	PTJoinAccept
	// PTConnect announces an existing peer's endpoint to a new joiner.
	PTConnect
	// PTApplication carries an opaque upper-layer payload.
	PTApplication
)

// Packet is the read-only view the session layer needs of a parsed or
// freshly constructed packet.
type Packet interface {
	Src() config.PlayerID
	Dest() config.PlayerID
	Type() Type

	// Data returns the packet's TCP wire form: a frame.PrefixSize-byte
	// little-endian length header followed by the encoded body (sealed
	// for every type except PTInfoRequest/PTInfoReply).
	// Transport.Send enqueues this verbatim.
	Data() []byte

	// Cookie is meaningful only on PTJoinRequest/PTJoinAccept.
	Cookie() uint32
	// NewPlr is meaningful only on PTConnect/PTJoinAccept.
	NewPlr() config.PlayerID
	// Info carries PTJoinRequest's/PTJoinAccept's game_init_info,
	// PTConnect's serialised endpoint, or PTInfoReply's game name bytes,
	// depending on Type.
	Info() []byte
}

// Factory is the codec boundary: it parses and authenticates inbound
// buffers and constructs outbound packets. SetPassword configures the
// shared secret the concrete codec derives its authentication key from;
// the session layer calls it once per create/join before doing anything
// else.
type Factory interface {
	SetPassword(password string)

	// MakePacket parses and authenticates buf, which is either a
	// frame-queue-popped TCP payload or a raw OOB UDP datagram — both
	// arrive here with any frame length prefix already stripped. A
	// buffer that fails to parse or authenticate returns ErrPacket.
	MakePacket(buf []byte) (Packet, error)

	NewInfoRequest(src, dest config.PlayerID) (Packet, error)
	NewInfoReply(src, dest config.PlayerID, gamename []byte) (Packet, error)
	NewJoinRequest(src, dest config.PlayerID, cookie uint32, info []byte) (Packet, error)
	NewJoinAccept(src, dest config.PlayerID, cookie uint32, newplr config.PlayerID, info []byte) (Packet, error)
	NewConnect(src, dest config.PlayerID, newplr config.PlayerID, info []byte) (Packet, error)
	NewApplication(src, dest config.PlayerID, payload []byte) (Packet, error)
}
