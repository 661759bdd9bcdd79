package protocol

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"io"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/meshcore/dvlnet/internal/config"
	"github.com/meshcore/dvlnet/internal/crypto"
	"github.com/meshcore/dvlnet/internal/frame"
)

const hkdfInfo = "dvlnet-v1"

// ErrPacket is returned by MakePacket when buf fails to parse or fails
// AEAD authentication (wrong password, or a corrupt/forged buffer).
var ErrPacket = errors.New("protocol: malformed or unauthenticated packet")

// WireFactory is the reference Factory implementation: a length-prefixed
// frame whose body is sealed with ChaCha20-Poly1305 under a key derived
// from the game password via crypto.DeriveKey.
type WireFactory struct {
	mu  sync.Mutex
	key []byte
}

// NewWireFactory returns a Factory with no password set; SetPassword
// must be called before NewJoinRequest/NewJoinAccept/MakePacket are used
// for anything but PTInfoRequest/PTInfoReply, which travel in the clear
// so an unauthenticated peer can still discover a game name.
func NewWireFactory() *WireFactory {
	return &WireFactory{}
}

func (f *WireFactory) SetPassword(password string) {
	key, err := crypto.DeriveKey([]byte(password), nil, hkdfInfo)
	if err != nil {
		// Only fails if the HKDF reader itself errors, which crypto/sha256
		// based HKDF never does for a KeySize-byte read.
		panic(err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.key = key
}

func (f *WireFactory) aead() (cipher.AEAD, error) {
	f.mu.Lock()
	key := f.key
	f.mu.Unlock()
	if key == nil {
		return nil, errors.New("protocol: password not set")
	}
	return chacha20poly1305.New(key)
}

// wirePacket is the concrete Packet implementation produced by WireFactory.
type wirePacket struct {
	typ     Type
	src     config.PlayerID
	dest    config.PlayerID
	cookie  uint32
	newplr  config.PlayerID
	info    []byte
	encoded []byte // full framed wire form, computed once at construction
}

func (p *wirePacket) Src() config.PlayerID    { return p.src }
func (p *wirePacket) Dest() config.PlayerID   { return p.dest }
func (p *wirePacket) Type() Type              { return p.typ }
func (p *wirePacket) Cookie() uint32          { return p.cookie }
func (p *wirePacket) NewPlr() config.PlayerID { return p.newplr }
func (p *wirePacket) Info() []byte            { return p.info }
func (p *wirePacket) Data() []byte            { return p.encoded }

// plaintext body layout, before AEAD sealing:
//
//	type(1) src(1) dest(1) cookie(4 LE) newplr(1) infoLen(2 LE) info(infoLen)
func marshalBody(typ Type, src, dest config.PlayerID, cookie uint32, newplr config.PlayerID, info []byte) []byte {
	buf := make([]byte, 8+len(info))
	buf[0] = byte(typ)
	buf[1] = byte(src)
	buf[2] = byte(dest)
	binary.LittleEndian.PutUint32(buf[3:7], cookie)
	buf[7] = byte(newplr)
	// infoLen is appended via a second pass below so the header stays
	// fixed-width regardless of info length.
	out := make([]byte, 10+len(info))
	copy(out, buf[:8])
	binary.LittleEndian.PutUint16(out[8:10], uint16(len(info)))
	copy(out[10:], info)
	return out
}

func unmarshalBody(body []byte) (typ Type, src, dest config.PlayerID, cookie uint32, newplr config.PlayerID, info []byte, err error) {
	if len(body) < 10 {
		err = ErrPacket
		return
	}
	typ = Type(body[0])
	src = config.PlayerID(body[1])
	dest = config.PlayerID(body[2])
	cookie = binary.LittleEndian.Uint32(body[3:7])
	newplr = config.PlayerID(body[7])
	infoLen := int(binary.LittleEndian.Uint16(body[8:10]))
	if len(body) != 10+infoLen {
		err = ErrPacket
		return
	}
	info = body[10:]
	return
}

func (f *WireFactory) build(typ Type, src, dest config.PlayerID, cookie uint32, newplr config.PlayerID, info []byte) (Packet, error) {
	body := marshalBody(typ, src, dest, cookie, newplr, info)

	var sealed []byte
	if typ == PTInfoRequest || typ == PTInfoReply {
		// Discovery travels unauthenticated: a peer hasn't learned the
		// password yet when it's merely asking who is hosting a name.
		sealed = append([]byte{0}, body...)
	} else {
		a, err := f.aead()
		if err != nil {
			return nil, err
		}
		nonce := make([]byte, a.NonceSize())
		if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
			return nil, err
		}
		ct := a.Seal(nil, nonce, body, nil)
		sealed = make([]byte, 0, 1+len(nonce)+len(ct))
		sealed = append(sealed, 1)
		sealed = append(sealed, nonce...)
		sealed = append(sealed, ct...)
	}

	return &wirePacket{
		typ: typ, src: src, dest: dest, cookie: cookie, newplr: newplr, info: info,
		encoded: frame.Encode(sealed),
	}, nil
}

func (f *WireFactory) MakePacket(buf []byte) (Packet, error) {
	if len(buf) < 1 {
		return nil, ErrPacket
	}
	authenticated := buf[0]
	rest := buf[1:]

	var body []byte
	if authenticated == 0 {
		body = rest
	} else {
		a, err := f.aead()
		if err != nil {
			return nil, ErrPacket
		}
		ns := a.NonceSize()
		if len(rest) < ns {
			return nil, ErrPacket
		}
		pt, err := a.Open(nil, rest[:ns], rest[ns:], nil)
		if err != nil {
			return nil, ErrPacket
		}
		body = pt
	}

	typ, src, dest, cookie, newplr, info, err := unmarshalBody(body)
	if err != nil {
		return nil, err
	}
	return &wirePacket{
		typ: typ, src: src, dest: dest, cookie: cookie, newplr: newplr, info: info,
		encoded: frame.Encode(buf),
	}, nil
}

func (f *WireFactory) NewInfoRequest(src, dest config.PlayerID) (Packet, error) {
	return f.build(PTInfoRequest, src, dest, 0, 0, nil)
}

func (f *WireFactory) NewInfoReply(src, dest config.PlayerID, gamename []byte) (Packet, error) {
	return f.build(PTInfoReply, src, dest, 0, 0, gamename)
}

func (f *WireFactory) NewJoinRequest(src, dest config.PlayerID, cookie uint32, info []byte) (Packet, error) {
	return f.build(PTJoinRequest, src, dest, cookie, 0, info)
}

func (f *WireFactory) NewJoinAccept(src, dest config.PlayerID, cookie uint32, newplr config.PlayerID, info []byte) (Packet, error) {
	return f.build(PTJoinAccept, src, dest, cookie, newplr, info)
}

func (f *WireFactory) NewConnect(src, dest config.PlayerID, newplr config.PlayerID, info []byte) (Packet, error) {
	return f.build(PTConnect, src, dest, 0, newplr, info)
}

func (f *WireFactory) NewApplication(src, dest config.PlayerID, payload []byte) (Packet, error) {
	return f.build(PTApplication, src, dest, 0, 0, payload)
}
