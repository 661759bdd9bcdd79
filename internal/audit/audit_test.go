package audit

import (
	"path/filepath"
	"testing"
)

func TestRecordAndAll(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(filepath.Join(dir, "audit.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	if err := l.Record(KindAdmit, 1, "fd80::1"); err != nil {
		t.Fatal(err)
	}
	if err := l.Record(KindLeave, 1, "fd80::1"); err != nil {
		t.Fatal(err)
	}

	events, err := l.All()
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Kind != KindAdmit || events[1].Kind != KindLeave {
		t.Fatalf("unexpected event order/kinds: %+v", events)
	}
}

func TestNilLogIsNoop(t *testing.T) {
	var l *Log
	if err := l.Record(KindAdmit, 0, "x"); err != nil {
		t.Fatalf("nil log Record should be a no-op, got %v", err)
	}
	events, err := l.All()
	if err != nil || events != nil {
		t.Fatalf("nil log All should return (nil, nil), got (%v, %v)", events, err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("nil log Close should be a no-op, got %v", err)
	}
}
