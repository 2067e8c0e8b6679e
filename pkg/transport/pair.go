package transport

import (
	"io"
	"net"
)

// Pair returns two connected io.ReadWriteClosers, one for each end of
// a link. It stands in for a real serial cable in tests, where a
// pkg/device.Node is paired against pkg/host.Client without touching
// any actual hardware.
func Pair() (a, b io.ReadWriteCloser) {
	ca, cb := net.Pipe()
	return ca, cb
}
