// Package dispatch implements the command-id dispatch table used on
// the device side to route an incoming package to its handler, and
// the message-severity router used on the host side to fan Message
// payloads out to per-severity application callbacks.
package dispatch

import (
	"fmt"

	"github.com/worldwidemv/gsbp-go/pkg/wire"
)

// HandlerFunc processes one received package and returns the package
// to send back, or ok=false to send nothing (e.g. the command was
// itself a fire-and-forget notification).
type HandlerFunc func(req wire.Package) (resp wire.Package, ok bool)

// CommandTable is a device-side command-id -> handler map. An
// unregistered command id is not silently dropped: Dispatch
// synthesizes a CriticalError Message reporting wire.UnknownCMD,
// matching GSBP_CheckAndEvaluatePackages's behavior for commands it
// doesn't recognize.
type CommandTable struct {
	handlers    map[uint16]HandlerFunc
	deviceClass byte
}

func NewCommandTable(deviceClass byte) *CommandTable {
	return &CommandTable{handlers: make(map[uint16]HandlerFunc), deviceClass: deviceClass}
}

func (t *CommandTable) Register(cmd uint16, h HandlerFunc) {
	t.handlers[cmd] = h
}

// Dispatch looks up req.CommandID and invokes its handler. It never
// returns a Go error for an unknown command — the GSBP-level response
// is itself the error channel.
func (t *CommandTable) Dispatch(req wire.Package) (resp wire.Package, ok bool) {
	h, found := t.handlers[req.CommandID]
	if !found {
		msg := wire.Message{
			Severity:  wire.SeverityCriticalError,
			ErrorCode: uint16(wire.UnknownCMD),
			Text:      fmt.Sprintf("unknown command id %d", req.CommandID),
		}
		return wire.Package{
			CommandID: wire.CmdMessage,
			RequestID: req.RequestID,
			Payload:   msg.Marshal(),
		}, true
	}
	return h(req)
}

// UniversalACK builds the echoed-command-id|device-class ACK payload
// for req, matching GSBP_SendUniversalACKext.
func (t *CommandTable) UniversalACK(req wire.Package) wire.Package {
	ack := wire.UniversalACK{EchoedCommand: req.CommandID}
	return wire.Package{
		CommandID: wire.CmdUniversalACK,
		RequestID: req.RequestID,
		Payload:   ack.Marshal(t.deviceClass),
	}
}
