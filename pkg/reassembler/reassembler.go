// Package reassembler implements the scratch-buffer state machine
// that turns a stream of raw transport bytes into framed packages:
// Idle, Header, Payload and Framed states driven by an
// append-then-scan-then-extract algorithm rather than a strict
// per-byte parser.
package reassembler

import (
	"bytes"
	"sync"

	"github.com/worldwidemv/gsbp-go/pkg/handle"
	"github.com/worldwidemv/gsbp-go/pkg/wire"
)

type State int

const (
	Idle State = iota
	Header
	Payload
	Framed
)

// Stats tracks the reassembler's share of statsGSBP_t: the
// frame-level rejection counters and bytes discarded while resyncing
// to the next start sentinel. host.Client.Stats merges these into the
// correlation statistics snapshot it reports for the host.
type Stats struct {
	BrokenChecksum  uint64
	BrokenStructure uint64
	DiscardedBytes  uint64
}

// Reassembler drives one Handle's scratch buffer. It must only be
// invoked from a single goroutine (the main device loop, or the
// host's dedicated reader goroutine); concurrent transport callbacks
// only ever call Handle.Append, never Extract.
type Reassembler struct {
	h     *handle.Handle
	state State

	// awaiting counts consecutive ErrShortBuffer observations for the
	// current candidate frame. The first is silent; the second emits
	// wire.ErrNoNewData and resets the buffer.
	awaiting int

	// accounted is the length of the scratch prefix already consumed
	// or already counted as discarded, so a later scan skips it.
	accounted int

	statsMu sync.Mutex
	stats   Stats
}

func New(h *handle.Handle) *Reassembler {
	return &Reassembler{h: h}
}

func (r *Reassembler) State() State { return r.state }

// Append feeds newly received bytes into the handle's scratch buffer.
func (r *Reassembler) Append(data []byte) error {
	return r.h.Append(data)
}

// Extract scans the scratch buffer for a complete frame. It returns
// (Package{}, nil) when there is nothing to report yet (empty buffer,
// or a first short-buffer observation that should be retried after
// more bytes arrive) — that is not an error, just "poll again later".
func (r *Reassembler) Extract(d wire.Descriptor) (wire.Package, error) {
	buf := r.h.Scratch()
	if len(buf) == 0 {
		r.state = Idle
		r.accounted = 0
		return wire.Package{}, nil
	}

	idx := bytes.IndexByte(buf, wire.StartByte)
	if idx < 0 {
		// No sentinel anywhere in the buffer: none of it can ever
		// become a frame, so there's nothing to wait for.
		r.addDiscarded(len(buf) - r.accounted)
		r.h.Reset()
		r.accounted = 0
		r.state = Idle
		r.awaiting = 0
		return wire.Package{}, wire.ErrNoNewData
	}
	// Everything before idx was never going to start a frame; it's
	// discarded regardless of how the candidate frame at idx decodes.
	r.addDiscarded(idx - r.accounted)
	r.accounted = idx

	r.state = Header
	frame := buf[idx:]
	pkg, n, err := wire.Decode(d, frame)

	switch err {
	case nil:
		r.awaiting = 0
		r.state = Framed
		r.h.Consume(idx + n)
		r.accounted = idx + n
		if len(r.h.Scratch()) <= idx+n {
			r.accounted = 0 // the whole buffer was consumed and emptied
		}
		r.state = Idle
		return pkg, nil

	case wire.ErrShortBuffer:
		if r.awaiting == 0 {
			r.awaiting = 1
			return wire.Package{}, nil
		}
		r.awaiting = 0
		r.h.Reset()
		r.accounted = 0
		r.state = Idle
		return wire.Package{}, wire.ErrNoNewData

	case wire.ErrChecksumMismatch:
		// Mask the sentinel so the next scan skips this corrupt frame
		// instead of matching it again; whatever follows in the
		// buffer (if anything) is left untouched.
		r.addBrokenChecksum()
		r.h.MaskByte(idx)
		r.state = Idle
		r.awaiting = 0
		return wire.Package{}, err

	case wire.ErrEndByteMismatch:
		// Only the header region is cleared; any payload/trailing
		// bytes already buffered stay put for the next scan.
		r.addBrokenStructure()
		headerEnd := idx + 1 + d.HeaderLen()
		if d.HeaderChecksum {
			headerEnd++
		}
		r.h.ClearRange(idx, headerEnd)
		r.state = Idle
		r.awaiting = 0
		return wire.Package{}, err

	case wire.ErrPayloadTooLarge:
		r.addBrokenStructure()
		r.h.MaskByte(idx)
		r.state = Idle
		r.awaiting = 0
		return wire.Package{}, err

	default:
		r.state = Idle
		return wire.Package{}, err
	}
}

func (r *Reassembler) addDiscarded(n int) {
	if n <= 0 {
		return
	}
	r.statsMu.Lock()
	r.stats.DiscardedBytes += uint64(n)
	r.statsMu.Unlock()
}

func (r *Reassembler) addBrokenChecksum() {
	r.statsMu.Lock()
	r.stats.BrokenChecksum++
	r.statsMu.Unlock()
}

func (r *Reassembler) addBrokenStructure() {
	r.statsMu.Lock()
	r.stats.BrokenStructure++
	r.statsMu.Unlock()
}

// Stats returns a snapshot of the frame-rejection and discarded-byte
// counters accumulated so far.
func (r *Reassembler) Stats() Stats {
	r.statsMu.Lock()
	defer r.statsMu.Unlock()
	return r.stats
}
