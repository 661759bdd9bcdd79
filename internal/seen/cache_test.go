package seen

import (
	"testing"
	"time"
)

func TestAddReportsFirstSeen(t *testing.T) {
	c := New(time.Minute)
	if !c.Add("a") {
		t.Fatal("first Add should report new")
	}
	if c.Add("a") {
		t.Fatal("second Add of same key should report duplicate")
	}
}

func TestSeenExpires(t *testing.T) {
	c := New(10 * time.Millisecond)
	c.Add("a")
	time.Sleep(20 * time.Millisecond)
	if c.Seen("a") {
		t.Fatal("expected entry to have expired")
	}
}

func TestReapRemovesExpired(t *testing.T) {
	c := New(time.Millisecond)
	c.Add("a")
	time.Sleep(5 * time.Millisecond)
	c.Reap(time.Now())
	if len(c.entries) != 0 {
		t.Fatalf("expected entries to be reaped, got %d", len(c.entries))
	}
}
