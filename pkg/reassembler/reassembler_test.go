package reassembler

import (
	"testing"

	"github.com/worldwidemv/gsbp-go/pkg/handle"
	"github.com/worldwidemv/gsbp-go/pkg/wire"
)

func newTestReassembler() (*Reassembler, wire.Descriptor) {
	d := wire.DefaultDescriptor()
	h := handle.New("test", d, 256)
	return New(h), d
}

func TestExtractEmptyBufferIsQuiet(t *testing.T) {
	r, d := newTestReassembler()
	pkg, err := r.Extract(d)
	if err != nil {
		t.Fatalf("got %v, want nil", err)
	}
	if pkg.CommandID != 0 {
		t.Fatalf("got non-empty package from empty buffer")
	}
}

func TestExtractFullFrame(t *testing.T) {
	r, d := newTestReassembler()
	frame, err := wire.Encode(d, wire.Package{CommandID: 5, RequestID: 3, Payload: []byte{1, 2, 3}})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if err := r.Append(frame); err != nil {
		t.Fatalf("Append: %v", err)
	}
	pkg, err := r.Extract(d)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if pkg.CommandID != 5 || pkg.RequestID != 3 {
		t.Fatalf("got %+v", pkg)
	}
}

func TestExtractTwoStrikeAwaitingMoreData(t *testing.T) {
	r, d := newTestReassembler()
	frame, err := wire.Encode(d, wire.Package{CommandID: 5, RequestID: 3, Payload: []byte{1, 2, 3}})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	partial := frame[:len(frame)-2]
	if err := r.Append(partial); err != nil {
		t.Fatalf("Append: %v", err)
	}

	// first short-buffer observation is silent.
	pkg, err := r.Extract(d)
	if err != nil || pkg.CommandID != 0 {
		t.Fatalf("first scan: got pkg=%+v err=%v, want silent wait", pkg, err)
	}

	// second consecutive short-buffer observation resets and errors.
	pkg, err = r.Extract(d)
	if err != wire.ErrNoNewData {
		t.Fatalf("second scan: got %v, want ErrNoNewData", err)
	}
	if len(r.h.Scratch()) != 0 {
		t.Fatalf("scratch not reset after two-strike NoNewData")
	}
}

func TestExtractMasksCorruptHeaderChecksum(t *testing.T) {
	r, d := newTestReassembler()
	frame, err := wire.Encode(d, wire.Package{CommandID: 5, RequestID: 3, Payload: []byte{1, 2, 3}})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	frame[1+d.HeaderLen()] ^= 0xFF // corrupt header checksum byte
	if err := r.Append(frame); err != nil {
		t.Fatalf("Append: %v", err)
	}
	_, err = r.Extract(d)
	if err != wire.ErrChecksumMismatch {
		t.Fatalf("got %v, want ErrChecksumMismatch", err)
	}
	if r.h.Scratch()[0] == wire.StartByte {
		t.Fatalf("start sentinel not masked after checksum mismatch")
	}
	if got := r.Stats().BrokenChecksum; got != 1 {
		t.Fatalf("BrokenChecksum = %d, want 1", got)
	}
}

func TestExtractCountsDiscardedLeadAndTrailBytes(t *testing.T) {
	r, d := newTestReassembler()
	frame, err := wire.Encode(d, wire.Package{CommandID: 5, RequestID: 3, Payload: []byte{1, 2, 3}})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	garbage := append([]byte{0xAA, 0xBB}, frame...)
	garbage = append(garbage, 0xCC)
	if err := r.Append(garbage); err != nil {
		t.Fatalf("Append: %v", err)
	}

	pkg, err := r.Extract(d)
	if err != nil || pkg.CommandID != 5 {
		t.Fatalf("Extract: pkg=%+v err=%v", pkg, err)
	}
	if got := r.Stats().DiscardedBytes; got != 2 {
		t.Fatalf("DiscardedBytes after frame = %d, want 2 (leading AA BB)", got)
	}

	// The trailing CC can never start a frame; the next scan discards it.
	if _, err := r.Extract(d); err != wire.ErrNoNewData {
		t.Fatalf("got %v, want ErrNoNewData for trailing garbage", err)
	}
	if got := r.Stats().DiscardedBytes; got != 3 {
		t.Fatalf("DiscardedBytes total = %d, want 3 (leading AA BB + trailing CC)", got)
	}
}

func TestExtractPartialConsumeLeavesTrailingBytes(t *testing.T) {
	r, d := newTestReassembler()
	frame1, _ := wire.Encode(d, wire.Package{CommandID: 5, RequestID: 1, Payload: []byte{1}})
	frame2, _ := wire.Encode(d, wire.Package{CommandID: 6, RequestID: 2, Payload: []byte{2}})
	if err := r.Append(append(frame1, frame2...)); err != nil {
		t.Fatalf("Append: %v", err)
	}

	pkg1, err := r.Extract(d)
	if err != nil {
		t.Fatalf("Extract 1: %v", err)
	}
	if pkg1.CommandID != 5 {
		t.Fatalf("got %+v", pkg1)
	}

	pkg2, err := r.Extract(d)
	if err != nil {
		t.Fatalf("Extract 2: %v", err)
	}
	if pkg2.CommandID != 6 {
		t.Fatalf("got %+v", pkg2)
	}
}
