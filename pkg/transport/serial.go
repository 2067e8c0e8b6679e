// Package transport provides the byte-oriented io.ReadWriteCloser
// implementations GSBP runs over: a real serial port for production
// use (the host CLI and the device simulator both open one), and an
// in-memory pair for tests.
package transport

import (
	"io"
	"time"

	"go.bug.st/serial"
)

// OpenSerial opens a real serial port configured the way a GSBP host
// link needs: 8N1 framing and a read timeout short enough to support
// the host reader loop's periodic polling rather than blocking
// indefinitely on a read. go.bug.st/serial is used here instead of
// the historically more common tarm/serial specifically because it
// exposes that per-read timeout (see DESIGN.md).
func OpenSerial(device string, baud int, readTimeout time.Duration) (io.ReadWriteCloser, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(device, mode)
	if err != nil {
		return nil, err
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return nil, err
	}
	return port, nil
}
