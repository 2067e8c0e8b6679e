package correlation

import (
	"context"
	"testing"
	"time"

	"github.com/worldwidemv/gsbp-go/pkg/wire"
)

type countingSink struct {
	debug, info, warning, errs, critical int
}

func (s *countingSink) Debug(wire.Message)         { s.debug++ }
func (s *countingSink) Info(wire.Message)          { s.info++ }
func (s *countingSink) Warning(wire.Message)        { s.warning++ }
func (s *countingSink) Error(wire.Message)          { s.errs++ }
func (s *countingSink) CriticalError(wire.Message)  { s.critical++ }

func TestSendAndGetResponseRoundTrip(t *testing.T) {
	b := NewBuffer(8, nil, nil)
	local, global := b.NextRequestID()
	b.AddRequest(local, global, wire.CmdStatusRequest)

	b.AddResponse(wire.Package{CommandID: wire.CmdStatusResponse, RequestID: local, Payload: []byte{1}})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	resp, err := b.GetResponse(ctx, global, wire.CmdStatusResponse)
	if err != nil {
		t.Fatalf("GetResponse: %v", err)
	}
	if resp.CommandID != wire.CmdStatusResponse {
		t.Fatalf("got %+v", resp)
	}
}

func TestGetResponseSecondCallReturnsNoRequestFound(t *testing.T) {
	b := NewBuffer(8, nil, nil)
	local, global := b.NextRequestID()
	b.AddRequest(local, global, wire.CmdStatusRequest)
	b.AddResponse(wire.Package{CommandID: wire.CmdStatusResponse, RequestID: local})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := b.GetResponse(ctx, global, 0); err != nil {
		t.Fatalf("first GetResponse: %v", err)
	}

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel2()
	_, err := b.GetResponse(ctx2, global, 0)
	if err != wire.ErrNoRequestFound {
		t.Fatalf("got %v, want ErrNoRequestFound", err)
	}
}

func TestDuplicateResponseCreatesDummyWithFreshGlobalID(t *testing.T) {
	b := NewBuffer(8, nil, nil)
	local, global := b.NextRequestID()
	b.AddRequest(local, global, wire.CmdStatusRequest)

	b.AddResponse(wire.Package{CommandID: wire.CmdStatusResponse, RequestID: local, Payload: []byte{1}})
	b.AddResponse(wire.Package{CommandID: wire.CmdStatusResponse, RequestID: local, Payload: []byte{2}})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	first, err := b.GetResponse(ctx, global, 0)
	if err != nil {
		t.Fatalf("GetResponse(global): %v", err)
	}
	if len(first.Payload) != 1 || first.Payload[0] != 1 {
		t.Fatalf("got %+v, want the first response", first)
	}

	nextGlobal := global + 1
	ctx2, cancel2 := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel2()
	second, err := b.GetResponse(ctx2, nextGlobal, 0)
	if err != nil {
		t.Fatalf("GetResponse(nextGlobal): %v", err)
	}
	if len(second.Payload) != 1 || second.Payload[0] != 2 {
		t.Fatalf("got %+v, want the second response", second)
	}
}

func TestGetResponseTimeout(t *testing.T) {
	b := NewBuffer(8, nil, nil)
	local, global := b.NextRequestID()
	b.AddRequest(local, global, wire.CmdStatusRequest)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	_, err := b.GetResponse(ctx, global, 0)
	if err != wire.ErrGetResponseTimeout {
		t.Fatalf("got %v, want ErrGetResponseTimeout", err)
	}
	if got := b.Stats().MissingPackages; got != 1 {
		t.Fatalf("MissingPackages = %d, want 1", got)
	}
}

func TestUnsolicitedResponseRoutesToHandlerWithZeroOwner(t *testing.T) {
	var gotOwner uint64 = 99
	var called bool
	b2 := NewBuffer(8, nil, func(resp wire.Package, owner uint64) bool {
		called = true
		gotOwner = owner
		return false
	})
	b2.AddResponse(wire.Package{CommandID: wire.CmdMessage, RequestID: wire.RequestIDUnsolicited, Payload: wire.Message{Severity: wire.SeverityInfo, Text: "hi"}.Marshal()})
	if !called {
		t.Fatalf("handler not invoked for unsolicited response")
	}
	if gotOwner != 0 {
		t.Fatalf("got owner %d, want 0", gotOwner)
	}
}

func TestMessageSeverityRouting(t *testing.T) {
	sink := &countingSink{}
	b := NewBuffer(8, sink, nil)
	local, global := b.NextRequestID()
	b.AddRequest(local, global, wire.CmdStatusRequest)

	b.AddResponse(wire.Package{
		CommandID: wire.CmdMessage,
		RequestID: local,
		Payload:   wire.Message{Severity: wire.SeverityCriticalError, ErrorCode: 7, Text: "boom"}.Marshal(),
	})

	if sink.critical != 1 {
		t.Fatalf("critical handler not invoked: %+v", sink)
	}
}
