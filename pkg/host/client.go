// Package host implements the host-side GSBP facade: a single link
// to a device, its reassembler and correlation buffer wired together
// behind a small request/response API.
package host

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/worldwidemv/gsbp-go/pkg/correlation"
	"github.com/worldwidemv/gsbp-go/pkg/handle"
	"github.com/worldwidemv/gsbp-go/pkg/reassembler"
	"github.com/worldwidemv/gsbp-go/pkg/wire"
)

// DefaultReadChunk is the per-read buffer size the reader goroutine
// uses; it need not match any frame boundary since the reassembler
// handles arbitrary fragmentation.
const DefaultReadChunk = 256

// Client is one host-side connection to a device.
type Client struct {
	Logger *log.Logger

	mu        sync.Mutex
	conn      io.ReadWriteCloser
	descriptor wire.Descriptor
	handle    *handle.Handle
	reasm     *reassembler.Reassembler
	buf       *correlation.Buffer
	connected bool
	deviceClass byte
	nodeInfo  wire.NodeInfo

	stopReader chan struct{}
	readerDone chan struct{}
}

// New creates a disconnected Client. sink may be nil if the caller
// doesn't care about device log/message traffic; handler is invoked
// for every response, including ones no pending Send is waiting on —
// see correlation.PackageHandler.
func New(sink correlation.MessageSink, handler correlation.PackageHandler) *Client {
	return &Client{
		Logger: log.Default(),
		buf:    correlation.NewBuffer(correlation.DefaultCapacity, sink, handler),
	}
}

// Connect takes ownership of conn and starts the reader goroutine.
// The Descriptor must match what the device on the other end of conn
// is configured for; GSBP has no wire-level negotiation of frame
// shape.
func (c *Client) Connect(ctx context.Context, conn io.ReadWriteCloser, d wire.Descriptor) error {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return fmt.Errorf("host: already connected")
	}
	c.conn = conn
	c.descriptor = d
	c.handle = handle.New("device", d, d.MaxPayload*2+64)
	c.handle.Enable()
	c.reasm = reassembler.New(c.handle)
	c.connected = true
	c.stopReader = make(chan struct{})
	c.readerDone = make(chan struct{})
	c.mu.Unlock()

	go c.readLoop()

	info, err := c.GetNodeInfo(ctx)
	if err != nil {
		c.Disconnect()
		return fmt.Errorf("host: %s: %w", wire.ErrorString(wire.NodeInfoNotReceived), err)
	}
	c.mu.Lock()
	c.deviceClass = info.DeviceClass
	c.nodeInfo = info
	c.mu.Unlock()
	return nil
}

// NodeInfo returns the NodeInfo fetched during Connect.
func (c *Client) NodeInfo() wire.NodeInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nodeInfo
}

func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Disconnect stops the reader goroutine and closes the transport.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return nil
	}
	c.connected = false
	conn := c.conn
	stop := c.stopReader
	done := c.readerDone
	c.mu.Unlock()

	close(stop)
	err := conn.Close()
	<-done
	return err
}

func (c *Client) readLoop() {
	defer close(c.readerDone)
	buf := make([]byte, DefaultReadChunk)
	for {
		select {
		case <-c.stopReader:
			return
		default:
		}

		n, err := c.conn.Read(buf)
		if n > 0 {
			if aerr := c.reasm.Append(buf[:n]); aerr != nil {
				c.Logger.Printf("host: %v", aerr)
			}
			c.drainFrames()
		}
		if err != nil {
			select {
			case <-c.stopReader:
				return
			default:
			}
			if err == io.EOF {
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func (c *Client) drainFrames() {
	for {
		pkg, err := c.reasm.Extract(c.descriptor)
		if err != nil {
			if err != wire.ErrNoNewData {
				c.Logger.Printf("host: frame error: %v", err)
			}
			return
		}
		if pkg.CommandID == 0 && pkg.RequestID == 0 && len(pkg.Payload) == 0 {
			return // nothing extracted this pass
		}
		c.buf.AddResponse(pkg)
	}
}

// Send encodes and writes cmd/payload, returning the local and global
// request ids allocated for it. A RequestID of wire.RequestIDReuseLast
// meaning "reuse last received" is a device-side send convention and
// is never produced here.
func (c *Client) Send(cmd uint16, payload []byte) (localID byte, globalID uint64, err error) {
	localID, globalID = c.buf.NextRequestID()
	c.buf.AddRequest(localID, globalID, cmd)

	frame, err := wire.Encode(c.descriptor, wire.Package{CommandID: cmd, RequestID: localID, Payload: payload})
	if err != nil {
		return localID, globalID, err
	}
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return localID, globalID, fmt.Errorf("host: %s", wire.ErrorString(wire.NotConnectedToDevice))
	}
	if _, err := conn.Write(frame); err != nil {
		return localID, globalID, err
	}
	return localID, globalID, nil
}

// SendAndWait sends cmd/payload and blocks until a matching response
// arrives or ctx is done. A response on a command other than ackCmd
// does not end the wait (ackCmd == 0 accepts any command as the
// answer).
func (c *Client) SendAndWait(ctx context.Context, cmd uint16, payload []byte, ackCmd uint16) (wire.Package, error) {
	_, globalID, err := c.Send(cmd, payload)
	if err != nil {
		return wire.Package{}, err
	}
	return c.buf.GetResponse(ctx, globalID, ackCmd)
}

func (c *Client) GetNodeInfo(ctx context.Context) (wire.NodeInfo, error) {
	resp, err := c.SendAndWait(ctx, wire.CmdNodeInfoRequest, nil, wire.CmdNodeInfoResponse)
	if err != nil {
		return wire.NodeInfo{}, err
	}
	return wire.UnmarshalNodeInfo(resp.Payload)
}

func (c *Client) GetStatus(ctx context.Context) (wire.Status, error) {
	resp, err := c.SendAndWait(ctx, wire.CmdStatusRequest, nil, wire.CmdStatusResponse)
	if err != nil {
		return wire.Status{}, err
	}
	return wire.UnmarshalStatus(resp.Payload)
}

// Stats merges the correlation buffer's request/response bookkeeping
// with the reassembler's frame-rejection and discarded-byte counters
// into one statsGSBP_t-equivalent snapshot.
func (c *Client) Stats() correlation.Statistics {
	s := c.buf.Stats()
	c.mu.Lock()
	reasm := c.reasm
	c.mu.Unlock()
	if reasm != nil {
		fs := reasm.Stats()
		s.BrokenChecksum = fs.BrokenChecksum
		s.BrokenStructure = fs.BrokenStructure
		s.DiscardedBytes = fs.DiscardedBytes
	}
	return s
}

func (c *Client) ErrorString(code int) string { return wire.ErrorString(code) }
