package frame

import (
	"bytes"
	"testing"
)

func TestRoundTripExactChunks(t *testing.T) {
	frames := [][]byte{
		[]byte("hello"),
		[]byte(""),
		[]byte("a slightly longer payload than the first one"),
	}

	var q Queue
	for _, f := range frames {
		q.Write(Encode(f))
	}

	for i, want := range frames {
		if !q.Ready() {
			t.Fatalf("frame %d: expected Ready", i)
		}
		got, err := q.Pop()
		if err != nil {
			t.Fatalf("frame %d: unexpected error %v", i, err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("frame %d: got %q want %q", i, got, want)
		}
	}
	if q.Ready() {
		t.Fatal("expected no trailing frame")
	}
}

func TestRoundTripArbitrarySplits(t *testing.T) {
	frames := [][]byte{
		[]byte("one"),
		[]byte("two-longer-payload"),
		[]byte("three"),
	}
	var wire []byte
	for _, f := range frames {
		wire = append(wire, Encode(f)...)
	}

	// Split into awkward chunk sizes, including splits inside the prefix.
	splits := []int{1, 2, 3, 5, 1, 7, 1, 1, 1}
	var q Queue
	pos := 0
	si := 0
	for pos < len(wire) {
		n := splits[si%len(splits)]
		si++
		if pos+n > len(wire) {
			n = len(wire) - pos
		}
		q.Write(wire[pos : pos+n])
		pos += n
	}

	for i, want := range frames {
		if !q.Ready() {
			t.Fatalf("frame %d: expected Ready after full stream written", i)
		}
		got, err := q.Pop()
		if err != nil {
			t.Fatalf("frame %d: unexpected error %v", i, err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("frame %d: got %q want %q", i, got, want)
		}
	}
}

func TestNotReadyOnPartialPrefix(t *testing.T) {
	var q Queue
	full := Encode([]byte("payload"))
	q.Write(full[:2])
	if q.Ready() {
		t.Fatal("expected not ready with partial prefix")
	}
}

func TestNotReadyOnPartialPayload(t *testing.T) {
	var q Queue
	full := Encode([]byte("payload"))
	q.Write(full[:PrefixSize+2])
	if q.Ready() {
		t.Fatal("expected not ready with partial payload")
	}
}

func TestOversizePrefixSurfacesError(t *testing.T) {
	var q Queue
	var hdr [PrefixSize]byte
	// Encode a declared length far beyond MaxPayload.
	hdr[0], hdr[1], hdr[2], hdr[3] = 0xff, 0xff, 0xff, 0x7f
	q.Write(hdr[:])

	if !q.Ready() {
		t.Fatal("oversize prefix should report Ready so the caller pops the error")
	}
	if _, err := q.Pop(); err != ErrOversize {
		t.Fatalf("expected ErrOversize, got %v", err)
	}
}
