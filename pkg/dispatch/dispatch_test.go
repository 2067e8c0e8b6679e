package dispatch

import (
	"testing"

	"github.com/worldwidemv/gsbp-go/pkg/wire"
)

func TestDispatchUnknownCommandEmitsCriticalMessage(t *testing.T) {
	table := NewCommandTable(0x04)
	resp, ok := table.Dispatch(wire.Package{CommandID: 0xFFFF, RequestID: 3})
	if !ok {
		t.Fatalf("expected a response for an unknown command")
	}
	if resp.CommandID != wire.CmdMessage {
		t.Fatalf("got command %d, want CmdMessage", resp.CommandID)
	}
	msg, err := wire.UnmarshalMessage(resp.Payload)
	if err != nil {
		t.Fatalf("UnmarshalMessage: %v", err)
	}
	if msg.Severity != wire.SeverityCriticalError || int(msg.ErrorCode) != wire.UnknownCMD {
		t.Fatalf("got %+v", msg)
	}
}

func TestDispatchRegisteredHandler(t *testing.T) {
	table := NewCommandTable(0x04)
	table.Register(wire.CmdStatusRequest, func(req wire.Package) (wire.Package, bool) {
		return wire.Package{CommandID: wire.CmdStatusResponse, RequestID: req.RequestID}, true
	})
	resp, ok := table.Dispatch(wire.Package{CommandID: wire.CmdStatusRequest, RequestID: 9})
	if !ok || resp.CommandID != wire.CmdStatusResponse {
		t.Fatalf("got resp=%+v ok=%v", resp, ok)
	}
}

func TestUniversalACKEncodesEchoedCommandAndClass(t *testing.T) {
	table := NewCommandTable(0x08)
	ack := table.UniversalACK(wire.Package{CommandID: wire.CmdStatusRequest, RequestID: 4})
	got, err := wire.UnmarshalUniversalACK(ack.Payload)
	if err != nil {
		t.Fatalf("UnmarshalUniversalACK: %v", err)
	}
	if got.EchoedCommand != wire.CmdStatusRequest|0x08 {
		t.Fatalf("got %x", got.EchoedCommand)
	}
}

func TestMessageRouterDispatchesBySeverity(t *testing.T) {
	var gotCritical wire.Message
	r := &MessageRouter{OnCriticalError: func(m wire.Message) { gotCritical = m }}
	r.CriticalError(wire.Message{Text: "boom"})
	if gotCritical.Text != "boom" {
		t.Fatalf("router did not call OnCriticalError")
	}
	// Unwired severities must not panic.
	r.Debug(wire.Message{})
	r.Info(wire.Message{})
	r.Warning(wire.Message{})
	r.Error(wire.Message{})
}
