// Package correlation implements the host-side correlation buffer
// that matches outgoing requests to their (possibly duplicated or
// delayed) responses: a fixed-capacity, newest-at-front ring keyed by
// the monotonic global id allocated at send time.
package correlation

import (
	"context"
	"sync"
	"time"

	"github.com/worldwidemv/gsbp-go/pkg/wire"
)

// DefaultCapacity matches the reference implementation's
// boost::circular_buffer sizing.
const DefaultCapacity = 500

// Entry tracks one allocated request id and, once it arrives, its
// response.
type Entry struct {
	LocalID     byte
	GlobalID    uint64
	SentCommand uint16
	IsDummyCopy bool

	ResponseReceived bool
	Response         wire.Package

	WaitForResponse bool
	WaitTimedOut    bool

	ErrorCode int
	ErrorText string
}

// consumed reports whether this entry has been claimed (its ids
// zeroed) and so is no longer eligible to match anything.
func (e *Entry) consumed() bool { return e.GlobalID == 0 }

// Statistics mirrors the counters the reference implementation's
// statsGSBP_t tracks; pkg/stats exports these as Prometheus metrics.
// BrokenChecksum, BrokenStructure and DiscardedBytes are owned by the
// reassembler and merged in by the caller (see pkg/host.Client.Stats);
// Buffer itself only ever sees already-decoded packages.
type Statistics struct {
	OpenRequests       int
	UnclaimedResponses int
	GoodPackages       uint64
	MissingPackages    uint64
	BrokenChecksum     uint64
	BrokenStructure    uint64
	DiscardedBytes     uint64

	NextLocalID  byte
	NextGlobalID uint64
	StartTime    time.Time
}

// MessageSink receives Message payloads demultiplexed by severity.
type MessageSink interface {
	Debug(wire.Message)
	Info(wire.Message)
	Warning(wire.Message)
	Error(wire.Message)
	CriticalError(wire.Message)
}

// PackageHandler is invoked for every response the buffer processes,
// whether or not a waiting request claims it. owningGlobalID is 0 when
// no request is waiting on the response. Returning true marks the
// owning entry (if any) consumed immediately, so a later GetResponse
// for it returns wire.ErrNoRequestFound instead of a stale hit.
type PackageHandler func(resp wire.Package, owningGlobalID uint64) (remove bool)

// Buffer is safe for concurrent use.
type Buffer struct {
	mu       sync.Mutex
	entries  []*Entry
	capacity int

	nextLocal  byte
	nextGlobal uint64

	startTime time.Time
	stats     Statistics

	sink    MessageSink
	handler PackageHandler
}

func NewBuffer(capacity int, sink MessageSink, handler PackageHandler) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{capacity: capacity, sink: sink, handler: handler, startTime: time.Now()}
}

// NextRequestID allocates the local wire-level request id and the
// global correlation id for a new outgoing request, bumping both
// counters together in one step (not independently) so a caller that
// reads both afterward always sees a matched pair.
func (b *Buffer) NextRequestID() (localID byte, globalID uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.allocLocked()
}

func (b *Buffer) allocLocked() (byte, uint64) {
	b.nextLocal++
	if b.nextLocal == 0 || b.nextLocal == wire.RequestIDUnsolicited {
		// 0 and 255 are reserved; skip straight to the first usable id.
		b.nextLocal = 1
	}
	b.nextGlobal++
	return b.nextLocal, b.nextGlobal
}

// allocGlobalOnlyLocked allocates a fresh global id without touching
// the local id counter, for the duplicate-response dummy-copy case:
// the duplicate keeps the same local id as the original (it's still
// the same wire-level request id byte) but needs a globally unique
// identity of its own so GetResponse can address it unambiguously.
func (b *Buffer) allocGlobalOnlyLocked() uint64 {
	b.nextGlobal++
	return b.nextGlobal
}

// AddRequest registers a newly sent request so its eventual response
// can be matched.
func (b *Buffer) AddRequest(localID byte, globalID uint64, sentCommand uint16) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pushFrontLocked(&Entry{LocalID: localID, GlobalID: globalID, SentCommand: sentCommand})
	b.stats.UnclaimedResponses++
}

func (b *Buffer) pushFrontLocked(e *Entry) {
	b.entries = append([]*Entry{e}, b.entries...)
	if len(b.entries) > b.capacity {
		b.entries = b.entries[:b.capacity]
	}
}

// AddResponse attaches an incoming response to the request it
// answers, demultiplexes Message severities to the configured sink,
// and invokes the application package handler exactly once.
func (b *Buffer) AddResponse(resp wire.Package) {
	b.mu.Lock()

	var matched *Entry
	for {
		matched = b.findByLocalIDLocked(resp.RequestID)
		if matched == nil || !matched.ResponseReceived {
			break
		}
		// The matched entry already holds an unconsumed response: this
		// is a second response for the same local id arriving before
		// the first was claimed. Preserve it as a dummy copy carrying
		// a freshly allocated global id (see DESIGN.md — this departs
		// from the historical implementation, which reused the same
		// global id) and keep scanning, which now finds this fresh
		// entry first.
		freshGlobal := b.allocGlobalOnlyLocked()
		dummy := &Entry{
			LocalID:     matched.LocalID,
			GlobalID:    freshGlobal,
			SentCommand: matched.SentCommand,
			IsDummyCopy: true,
		}
		b.pushFrontLocked(dummy)
		b.stats.UnclaimedResponses++
	}

	if matched == nil {
		// An unsolicited response, or one whose owning request was
		// already consumed: not a "missing package" in the
		// spec's sense (that's what a GetResponse timeout tracks),
		// just a response with nothing open to claim it.
		b.stats.GoodPackages++
		b.mu.Unlock()
		b.routeMessage(resp)
		if b.handler != nil {
			b.handler(resp, 0)
		}
		return
	}

	b.stats.GoodPackages++
	matched.Response = resp
	matched.ResponseReceived = true
	owningGlobalID := matched.GlobalID
	lateArrival := matched.WaitTimedOut

	removeRequest := false
	if resp.CommandID == wire.CmdMessage {
		if msg, err := wire.UnmarshalMessage(resp.Payload); err == nil {
			switch msg.Severity {
			case wire.SeverityError, wire.SeverityCriticalError:
				matched.ErrorCode = int(msg.ErrorCode)
				matched.ErrorText = msg.Text
			case wire.SeverityDebug:
				removeRequest = true
			}
		}
	}
	b.mu.Unlock()

	b.routeMessage(resp)

	if b.handler != nil && b.handler(resp, owningGlobalID) {
		removeRequest = true
	}
	if lateArrival {
		removeRequest = true
	}

	if removeRequest {
		b.mu.Lock()
		matched.LocalID = 0
		matched.GlobalID = 0
		b.stats.UnclaimedResponses--
		b.mu.Unlock()
	}
}

func (b *Buffer) findByLocalIDLocked(localID byte) *Entry {
	if localID == 0 {
		return nil
	}
	for _, e := range b.entries {
		if !e.consumed() && e.LocalID == localID {
			return e
		}
	}
	return nil
}

func (b *Buffer) routeMessage(resp wire.Package) {
	if b.sink == nil || resp.CommandID != wire.CmdMessage {
		return
	}
	msg, err := wire.UnmarshalMessage(resp.Payload)
	if err != nil {
		return
	}
	switch msg.Severity {
	case wire.SeverityDebug:
		b.sink.Debug(msg)
	case wire.SeverityInfo:
		b.sink.Info(msg)
	case wire.SeverityWarning:
		b.sink.Warning(msg)
	case wire.SeverityError:
		b.sink.Error(msg)
	case wire.SeverityCriticalError:
		b.sink.CriticalError(msg)
	}
}

// GetResponse waits for the response correlated with globalID. If
// ackCmd is non-zero, only a response whose command id matches is
// accepted; other responses arriving for the same id keep the caller
// waiting. ctx's deadline governs the wait budget: a context that has
// already expired performs one immediate scan, matching the
// reference implementation's timeoutMs<=0 fast path.
func (b *Buffer) GetResponse(ctx context.Context, globalID uint64, ackCmd uint16) (wire.Package, error) {
	immediate := false
	if dl, ok := ctx.Deadline(); ok && !dl.After(time.Now()) {
		immediate = true
	}

	for {
		resp, found, anyMatch := b.scanOnce(globalID, ackCmd)
		if found {
			return resp, nil
		}
		if !anyMatch {
			return wire.Package{}, wire.ErrNoRequestFound
		}
		if immediate {
			b.markTimedOut(globalID)
			return wire.Package{}, wire.ErrGetResponseTimeout
		}

		select {
		case <-ctx.Done():
			b.markTimedOut(globalID)
			return wire.Package{}, wire.ErrGetResponseTimeout
		case <-time.After(time.Millisecond):
		}
	}
}

func (b *Buffer) scanOnce(globalID uint64, ackCmd uint16) (resp wire.Package, found bool, anyMatch bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stats.OpenRequests = 0
	for _, e := range b.entries {
		if e.consumed() || e.GlobalID != globalID {
			continue
		}
		anyMatch = true
		e.WaitForResponse = true
		b.stats.OpenRequests++
		if e.ResponseReceived && (ackCmd == 0 || e.Response.CommandID == ackCmd) {
			resp = e.Response
			e.LocalID = 0
			e.GlobalID = 0
			b.stats.UnclaimedResponses--
			found = true
		}
	}
	return resp, found, anyMatch
}

func (b *Buffer) markTimedOut(globalID uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range b.entries {
		if !e.consumed() && e.GlobalID == globalID {
			e.WaitTimedOut = true
		}
	}
	b.stats.MissingPackages++
}

func (b *Buffer) Stats() Statistics {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.stats
	s.NextLocalID = b.nextLocal
	s.NextGlobalID = b.nextGlobal
	s.StartTime = b.startTime
	return s
}
