// Package device implements the device-side GSBP facade: a handle
// registry driven by a cooperative Poll loop, a command dispatch
// table, and the base NodeInfo/Status/Message/Reset handling every
// device carries regardless of its application command set.
package device

import (
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/worldwidemv/gsbp-go/pkg/dispatch"
	"github.com/worldwidemv/gsbp-go/pkg/handle"
	"github.com/worldwidemv/gsbp-go/pkg/reassembler"
	"github.com/worldwidemv/gsbp-go/pkg/wire"
)

// NodeInfoProvider and StatusProvider let an application override the
// default NodeInfo/Status responses, mirroring the reference
// implementation's __weak default functions.
type NodeInfoProvider func() wire.NodeInfo
type StatusProvider func() wire.Status

// primaryHandleID names the single transport link a Node owns today.
// RegisterHandle adds further ids for devices with more than one
// physical link; Poll drains every enabled handle in the registry
// each tick regardless of how many are registered.
const primaryHandleID = "primary"

// Node is one device-side link, or set of links. Poll must be called
// repeatedly from a single goroutine — the Go analogue of the
// reference implementation's poll_all_handles, draining every enabled
// handle in the registry once per tick; a transport's read side may
// append to a handle's scratch buffer concurrently (see Feed), but
// Poll itself is never safe to call concurrently with another Poll.
type Node struct {
	Logger *log.Logger

	descriptor  wire.Descriptor
	conn        io.ReadWriter
	registry    *handle.Registry
	reasms      map[string]*reassembler.Reassembler
	table       *dispatch.CommandTable
	deviceClass byte

	NodeInfo NodeInfoProvider
	Status   StatusProvider

	mu              sync.Mutex
	lastRxRequestID byte
	resetRequested  bool

	writeMu sync.Mutex
}

func New(conn io.ReadWriter, d wire.Descriptor, deviceClass byte) *Node {
	registry := handle.NewRegistry()
	h := handle.New(primaryHandleID, d, d.MaxPayload*2+64)
	h.Enable()
	registry.Register(h, true)

	n := &Node{
		Logger:      log.Default(),
		descriptor:  d,
		conn:        conn,
		registry:    registry,
		reasms:      map[string]*reassembler.Reassembler{primaryHandleID: reassembler.New(h)},
		table:       dispatch.NewCommandTable(deviceClass),
		deviceClass: deviceClass,
		NodeInfo: func() wire.NodeInfo {
			return wire.NodeInfo{DeviceClass: deviceClass}
		},
		Status: func() wire.Status { return wire.Status{} },
	}
	n.table.Register(wire.CmdNodeInfoRequest, n.handleNodeInfoRequest)
	n.table.Register(wire.CmdStatusRequest, n.handleStatusRequest)
	n.table.Register(wire.CmdReset, n.handleReset)
	return n
}

// RegisterHandle adds another transport link to the registry, for a
// device with more than one physical endpoint (e.g. a debug UART
// alongside the primary link). Poll drains it on the same tick as
// every other registered handle; Feed/SendMessage/SendUnsolicited
// still address the primary handle only.
func (n *Node) RegisterHandle(id string, d wire.Descriptor, asDefault bool) *handle.Handle {
	h := handle.New(id, d, d.MaxPayload*2+64)
	h.Enable()
	n.mu.Lock()
	n.registry.Register(h, asDefault)
	n.reasms[id] = reassembler.New(h)
	n.mu.Unlock()
	return h
}

// RegisterHandler adds or overrides a command handler. Application
// command ids start at wire.FirstApplicationCmd.
func (n *Node) RegisterHandler(cmd uint16, h dispatch.HandlerFunc) {
	n.table.Register(cmd, h)
}

func (n *Node) handleNodeInfoRequest(req wire.Package) (wire.Package, bool) {
	info := n.NodeInfo()
	return wire.Package{CommandID: wire.CmdNodeInfoResponse, RequestID: req.RequestID, Payload: info.Marshal()}, true
}

func (n *Node) handleStatusRequest(req wire.Package) (wire.Package, bool) {
	status := n.Status()
	return wire.Package{CommandID: wire.CmdStatusResponse, RequestID: req.RequestID, Payload: status.Marshal()}, true
}

func (n *Node) handleReset(req wire.Package) (wire.Package, bool) {
	n.mu.Lock()
	n.resetRequested = true
	n.mu.Unlock()
	return n.table.UniversalACK(req), true
}

// UniversalACK builds the standard echoed-command acknowledgement for
// req; application handlers that have nothing more specific to say
// return this.
func (n *Node) UniversalACK(req wire.Package) wire.Package {
	return n.table.UniversalACK(req)
}

// ResetRequested reports, and clears, whether a Reset command was
// received since the last call — callers drive their own restart
// behavior from this, matching the original's handling of reset as an
// application-level concern rather than something the library forces.
func (n *Node) ResetRequested() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	v := n.resetRequested
	n.resetRequested = false
	return v
}

// Feed appends freshly received bytes to the primary handle's scratch
// buffer. Like SendMessage and SendUnsolicited, it is safe to call
// from a goroutine other than the one driving Poll.
func (n *Node) Feed(data []byte) error {
	n.mu.Lock()
	r := n.reasms[primaryHandleID]
	n.mu.Unlock()
	return r.Append(data)
}

// Poll performs one evaluate pass over every enabled handle in the
// registry (bytes reach the scratch buffers separately, through Feed
// or Handle.Append) — the registry is the sole iteration target
// here, matching poll_all_handles: for each handle it extracts every
// complete frame currently buffered, dispatches each to the command
// table, and writes back whatever response the handler produced. This
// is the Go analogue of GSBP_CheckForPackagesAndEvaluateThem.
func (n *Node) Poll() error {
	n.mu.Lock()
	handles := n.registry.All()
	n.mu.Unlock()

	for _, h := range handles {
		if !h.State.Has(handle.Enabled) {
			continue
		}
		if err := n.pollHandle(h); err != nil {
			return err
		}
	}
	return nil
}

func (n *Node) pollHandle(h *handle.Handle) error {
	n.mu.Lock()
	r := n.reasms[h.ID]
	n.mu.Unlock()

	for {
		pkg, err := r.Extract(h.Descriptor)
		if err != nil {
			if err == wire.ErrNoNewData {
				return nil
			}
			n.Logger.Printf("device: frame error on handle %q: %v", h.ID, err)
			return err
		}
		if pkg.CommandID == 0 && pkg.RequestID == 0 && len(pkg.Payload) == 0 {
			return nil
		}

		n.mu.Lock()
		if pkg.RequestID != wire.RequestIDReuseLast {
			n.lastRxRequestID = pkg.RequestID
		}
		n.mu.Unlock()

		resp, ok := n.table.Dispatch(pkg)
		if !ok {
			continue
		}
		if resp.RequestID == wire.RequestIDReuseLast {
			n.mu.Lock()
			resp.RequestID = n.lastRxRequestID
			n.mu.Unlock()
		}
		if err := n.send(resp); err != nil {
			return err
		}
	}
}

// send is safe to call concurrently with Poll and with itself: the
// application is expected to emit unsolicited traffic (SendMessage,
// SendUnsolicited) from its own goroutines while Poll drives request
// handling from another.
func (n *Node) send(pkg wire.Package) error {
	frame, err := wire.Encode(n.descriptor, pkg)
	if err != nil {
		return err
	}
	n.writeMu.Lock()
	defer n.writeMu.Unlock()
	_, err = n.conn.Write(frame)
	return err
}

// SendMessage emits an unsolicited Message at the given severity, the
// device-side equivalent of GSBP_SendMSG.
func (n *Node) SendMessage(severity wire.Severity, errorCode int, format string, args ...any) error {
	msg := wire.Message{Severity: severity, ErrorCode: uint16(errorCode), Text: fmt.Sprintf(format, args...)}
	return n.send(wire.Package{CommandID: wire.CmdMessage, RequestID: wire.RequestIDUnsolicited, Payload: msg.Marshal()})
}

// SendUnsolicited emits a device-initiated package (e.g. streamed
// application data) with request id 255, meaning no host call is
// waiting on it specifically.
func (n *Node) SendUnsolicited(cmd uint16, payload []byte) error {
	return n.send(wire.Package{CommandID: cmd, RequestID: wire.RequestIDUnsolicited, Payload: payload})
}
