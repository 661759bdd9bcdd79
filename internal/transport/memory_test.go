package transport

import (
	"testing"

	"github.com/meshcore/dvlnet/internal/netid"
	"github.com/meshcore/dvlnet/internal/protocol"
)

func TestMemoryTransportSendRecv(t *testing.T) {
	a := netid.ParseIP("fd80::1")
	b := netid.ParseIP("fd80::2")

	ta := NewMemoryTransport(a)
	tb := NewMemoryTransport(b)
	defer ta.Close()
	defer tb.Close()

	ta.Start()
	tb.Start()
	if err := ta.Connect(b); err != nil {
		t.Fatal(err)
	}

	f := protocol.NewWireFactory()
	f.SetPassword("pw")
	pkt, err := f.NewApplication(1, 2, []byte("hello"))
	if err != nil {
		t.Fatal(err)
	}

	if err := ta.Send(b, pkt); err != nil {
		t.Fatal(err)
	}

	from, got, err := tb.Recv()
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("expected a packet, got nil")
	}
	if !from.Equal(a) {
		t.Fatalf("expected sender %s, got %s", a, from)
	}
	if string(got.Info()) != "hello" {
		t.Fatalf("payload mismatch: %q", got.Info())
	}
}

func TestMemoryTransportRecvEmptyIsNonBlocking(t *testing.T) {
	a := netid.ParseIP("fd80::3")
	ta := NewMemoryTransport(a)
	defer ta.Close()
	ta.Start()

	from, pkt, err := ta.Recv()
	if err != nil || pkt != nil || !from.IsZero() {
		t.Fatalf("expected empty poll result, got (%v, %v, %v)", from, pkt, err)
	}
}

func TestMemoryTransportSendToUnregisteredPeerFails(t *testing.T) {
	a := netid.ParseIP("fd80::4")
	ta := NewMemoryTransport(a)
	defer ta.Close()
	ta.Start()

	f := protocol.NewWireFactory()
	f.SetPassword("pw")
	pkt, _ := f.NewApplication(1, 2, []byte("x"))
	if err := ta.Send(netid.ParseIP("fd80::dead"), pkt); err != ErrNotConnected {
		t.Fatalf("expected ErrNotConnected for an unregistered peer, got %v", err)
	}
}

func TestMemoryTransportSendReconnectsAfterDisconnect(t *testing.T) {
	// Transport-level Disconnect only tears down the local stream entry;
	// it does not block a future Send from dialing again, matching the
	// lazy-connect contract. The session layer enforces "no resurrection
	// after disconnect" by clearing its own peer-table slot, not by
	// asking the transport to refuse to reconnect.
	a := netid.ParseIP("fd80::7")
	b := netid.ParseIP("fd80::8")
	ta := NewMemoryTransport(a)
	tb := NewMemoryTransport(b)
	defer ta.Close()
	defer tb.Close()
	ta.Start()
	tb.Start()
	if err := ta.Connect(b); err != nil {
		t.Fatal(err)
	}
	ta.Disconnect(b)

	f := protocol.NewWireFactory()
	f.SetPassword("pw")
	pkt, _ := f.NewApplication(1, 2, []byte("x"))
	if err := ta.Send(b, pkt); err != nil {
		t.Fatalf("expected lazy reconnect to succeed, got %v", err)
	}
}

func TestMemoryTransportSendOOBUnknownPeerIsNotError(t *testing.T) {
	a := netid.ParseIP("fd80::6")
	ta := NewMemoryTransport(a)
	defer ta.Close()
	ta.Start()

	f := protocol.NewWireFactory()
	pkt, _ := f.NewInfoRequest(0, 0)
	if err := ta.SendOOB(netid.ParseIP("fd80::dead"), pkt); err != nil {
		t.Fatalf("SendOOB to unregistered peer should be fire-and-forget, got %v", err)
	}
}
