// Package handle implements the per-link Handle and the ordered
// Handle Registry that tracks every handle a host or device side has
// open.
package handle

import (
	"sync"

	"github.com/worldwidemv/gsbp-go/pkg/wire"
)

// State is a bitmask rather than an enum so that, for instance,
// "never initialized" (no bits set) is distinguishable from "was
// enabled, then disabled" (Disabled set, Enabled cleared) — a
// distinction the reference implementation's single state byte
// preserves and that callers rely on when deciding whether a handle
// slot is safe to reuse.
type State uint8

const (
	Enabled State = 1 << iota
	Disabled
	Default
	ReceiveError
	USBResetNeeded
	AwaitingMoreData
)

func (s State) Has(bit State) bool { return s&bit != 0 }

// Handle wraps one physical link: its frame Descriptor, a bounded
// scratch receive buffer fed by a transport's read side, and a state
// bitmask. The scratch buffer is guarded by its own mutex because a
// transport's read callback may append to it from a goroutine other
// than the one driving the reassembler — the reassembler itself must
// only ever be driven from a single loop per spec's concurrency model.
type Handle struct {
	ID         string
	Descriptor wire.Descriptor
	State      State

	mu         sync.Mutex
	scratch    []byte
	scratchLen int
}

// New creates a Handle with a scratch buffer of the given capacity.
// A freshly created Handle carries no state bits: it is neither
// Enabled nor Disabled until Enable is called.
func New(id string, d wire.Descriptor, scratchCapacity int) *Handle {
	return &Handle{
		ID:         id,
		Descriptor: d,
		scratch:    make([]byte, scratchCapacity),
	}
}

func (h *Handle) Enable()  { h.State = h.State&^Disabled | Enabled }
func (h *Handle) Disable() { h.State = h.State&^Enabled | Disabled }

// Append copies data into the scratch buffer, truncating and
// reporting wire.ErrBufferTooSmall if it would overflow the buffer's
// fixed capacity rather than growing it — the scratch buffer's bound
// is a hard ceiling, matching the microcontroller-facing original.
func (h *Handle) Append(data []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	room := len(h.scratch) - h.scratchLen
	if room <= 0 {
		return wire.ErrBufferTooSmall
	}
	n := len(data)
	truncated := false
	if n > room {
		n = room
		truncated = true
	}
	copy(h.scratch[h.scratchLen:], data[:n])
	h.scratchLen += n
	if truncated {
		return wire.ErrBufferTooSmall
	}
	return nil
}

// Scratch returns the occupied portion of the scratch buffer. The
// returned slice aliases internal storage and is only valid until the
// next Append/Consume/Reset call.
func (h *Handle) Scratch() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.scratch[:h.scratchLen]
}

// Consume zeroes the first n bytes of the occupied scratch region. If
// n covers everything currently buffered, the buffer is emptied;
// otherwise the unconsumed tail stays in place after the zeroed
// prefix, matching the original reassembler's no-compaction behavior
// on a partial consume.
func (h *Handle) Consume(n int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n <= 0 {
		return
	}
	if n >= h.scratchLen {
		for i := 0; i < h.scratchLen; i++ {
			h.scratch[i] = 0
		}
		h.scratchLen = 0
		return
	}
	for i := 0; i < n; i++ {
		h.scratch[i] = 0
	}
}

// MaskByte zeroes a single byte within the occupied scratch region,
// used by the reassembler to mask a frame whose header checksum
// didn't match so a later scan can't mistake it for a fresh start
// sentinel.
func (h *Handle) MaskByte(offset int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if offset >= 0 && offset < h.scratchLen {
		h.scratch[offset] = 0
	}
}

// ClearRange zeroes scratch[lo:hi], clamped to the occupied region,
// without touching bytes outside that range or compacting anything —
// used when an end-sentinel mismatch means only the header should be
// discarded, leaving any already-buffered payload bytes alone.
func (h *Handle) ClearRange(lo, hi int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if lo < 0 {
		lo = 0
	}
	if hi > h.scratchLen {
		hi = h.scratchLen
	}
	for i := lo; i < hi; i++ {
		h.scratch[i] = 0
	}
}

// Reset zeroes the entire occupied scratch region and empties it.
func (h *Handle) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := 0; i < h.scratchLen; i++ {
		h.scratch[i] = 0
	}
	h.scratchLen = 0
}
