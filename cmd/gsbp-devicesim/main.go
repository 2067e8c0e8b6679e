// Command gsbp-devicesim is a reference GSBP device: it answers
// NodeInfo/Status/Reset like any device must, and implements the
// recovered init/start/data/stop/deinit application command set
// (see SPEC_FULL.md §8) by streaming incrementing int16 samples while
// running.
package main

import (
	"flag"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/worldwidemv/gsbp-go/pkg/appcmds"
	"github.com/worldwidemv/gsbp-go/pkg/device"
	"github.com/worldwidemv/gsbp-go/pkg/transport"
	"github.com/worldwidemv/gsbp-go/pkg/wire"
)

const deviceClass = 0x04

func main() {
	devicePath := flag.String("device", "/dev/ttyUSB0", "serial device path")
	baud := flag.Int("baud", 115200, "baud rate")
	readTimeout := flag.Duration("read-timeout", 11*time.Millisecond, "per-read timeout")
	flag.Parse()

	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	conn, err := transport.OpenSerial(*devicePath, *baud, *readTimeout)
	if err != nil {
		log.Fatalf("gsbp-devicesim: open %s: %v", *devicePath, err)
	}
	defer conn.Close()

	sim := newSimulator(conn)
	log.Printf("gsbp-devicesim: listening on %s at %d baud", *devicePath, *baud)

	readBuf := make([]byte, 256)
	for {
		n, err := conn.Read(readBuf)
		if n > 0 {
			if ferr := sim.node.Feed(readBuf[:n]); ferr != nil {
				log.Printf("gsbp-devicesim: feed: %v", ferr)
			}
			if perr := sim.node.Poll(); perr != nil {
				log.Printf("gsbp-devicesim: poll: %v", perr)
			}
		}
		if err != nil {
			log.Printf("gsbp-devicesim: read: %v", err)
			time.Sleep(10 * time.Millisecond)
		}
	}
}

type simulator struct {
	node *device.Node

	mu      sync.Mutex
	running bool
	stop    chan struct{}

	tick    int32
	period  uint32
	size    uint16
	incr    int16
}

func newSimulator(conn interface {
	Write([]byte) (int, error)
	Read([]byte) (int, error)
}) *simulator {
	node := device.New(conn, wire.DefaultDescriptor(), deviceClass)
	node.NodeInfo = func() wire.NodeInfo {
		return wire.NodeInfo{
			SerialNumber:    1904010001,
			VersionProtocol: [2]byte{0, 1},
			VersionFirmware: [2]byte{0, 1},
			DeviceClass:     deviceClass,
		}
	}

	s := &simulator{node: node}
	node.RegisterHandler(appcmds.CmdAppInit, s.handleInit)
	node.RegisterHandler(appcmds.CmdAppStart, s.handleStart)
	node.RegisterHandler(appcmds.CmdAppStop, s.handleStop)
	node.RegisterHandler(appcmds.CmdAppDeinit, s.handleDeinit)
	return s
}

func (s *simulator) handleInit(req wire.Package) (wire.Package, bool) {
	cfg, err := appcmds.UnmarshalInit(req.Payload)
	if err != nil {
		s.node.SendMessage(wire.SeverityError, wire.InvalidCMD, "bad init payload: %v", err)
		return wire.Package{}, false
	}
	s.mu.Lock()
	s.period = cfg.DataPeriodMS
	s.size = cfg.DataSize
	s.incr = cfg.Increment
	s.mu.Unlock()
	return s.node.UniversalACK(req), true
}

func (s *simulator) handleStart(req wire.Package) (wire.Package, bool) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return s.node.UniversalACK(req), true
	}
	s.running = true
	s.stop = make(chan struct{})
	period, size, incr := s.period, s.size, s.incr
	stop := s.stop
	s.mu.Unlock()

	go s.emit(period, size, incr, stop)
	return s.node.UniversalACK(req), true
}

func (s *simulator) handleStop(req wire.Package) (wire.Package, bool) {
	s.mu.Lock()
	if s.running {
		close(s.stop)
		s.running = false
	}
	s.mu.Unlock()
	return s.node.UniversalACK(req), true
}

func (s *simulator) handleDeinit(req wire.Package) (wire.Package, bool) {
	s.mu.Lock()
	if s.running {
		close(s.stop)
		s.running = false
	}
	s.period, s.size, s.incr = 0, 0, 0
	s.mu.Unlock()
	return s.node.UniversalACK(req), true
}

func (s *simulator) emit(periodMS uint32, size uint16, incr int16, stop chan struct{}) {
	if periodMS == 0 || size == 0 {
		return
	}
	ticker := time.NewTicker(time.Duration(periodMS) * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			base := int16(atomic.AddInt32(&s.tick, 1)) * incr
			samples := make([]int16, size)
			for i := range samples {
				samples[i] = base + int16(i)
			}
			if err := s.node.SendUnsolicited(appcmds.CmdAppData, appcmds.MarshalData(samples)); err != nil {
				log.Printf("gsbp-devicesim: send data: %v", err)
				return
			}
		}
	}
}
