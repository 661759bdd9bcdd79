package netid

import "testing"

func TestFromBytesRoundTrip(t *testing.T) {
	buf := []byte{0xfd, 0x80, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14}
	e, err := FromBytes(buf)
	if err != nil {
		t.Fatalf("FromBytes: %v", err)
	}
	if got := e.Bytes(); string(got) != string(buf) {
		t.Fatalf("round trip mismatch: got %v want %v", got, buf)
	}
}

func TestFromBytesBadLength(t *testing.T) {
	for _, n := range []int{0, 1, 15, 17, 32} {
		if _, err := FromBytes(make([]byte, n)); err != ErrBadLength {
			t.Fatalf("len %d: expected ErrBadLength, got %v", n, err)
		}
	}
}

func TestZeroEndpointIsEmpty(t *testing.T) {
	var e Endpoint
	if !e.IsZero() {
		t.Fatal("zero value should be IsZero")
	}
	nonZero, err := FromBytes(make([]byte, Size))
	if err != nil {
		t.Fatal(err)
	}
	if !nonZero.IsZero() {
		t.Fatal("all-zero buffer should deserialise to IsZero endpoint")
	}
}

func TestParseIPInvalidIsEmpty(t *testing.T) {
	if e := ParseIP("not-an-address"); !e.IsZero() {
		t.Fatal("invalid textual address should yield empty endpoint")
	}
}

func TestParseIPValid(t *testing.T) {
	e := ParseIP("fd80::1")
	if e.IsZero() {
		t.Fatal("valid address parsed to empty endpoint")
	}
}

func TestOrderingIsTotal(t *testing.T) {
	a, _ := FromBytes([]byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1})
	b, _ := FromBytes([]byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 2})
	if !a.Less(b) || b.Less(a) {
		t.Fatal("expected a < b and not b < a")
	}
	if a.Less(a) {
		t.Fatal("a should not be less than itself")
	}
}

func TestEndpointAsMapKey(t *testing.T) {
	a, _ := FromBytes([]byte{1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0})
	m := map[Endpoint]int{a: 1}
	if m[a] != 1 {
		t.Fatal("endpoint should be usable as a map key")
	}
}
