package host

import (
	"context"
	"testing"
	"time"

	"github.com/worldwidemv/gsbp-go/pkg/device"
	"github.com/worldwidemv/gsbp-go/pkg/transport"
	"github.com/worldwidemv/gsbp-go/pkg/wire"
)

func TestClientAgainstSimulatedDevice(t *testing.T) {
	d := wire.DefaultDescriptor()
	hostConn, deviceConn := transport.Pair()

	node := device.New(deviceConn, d, 0x04)
	node.NodeInfo = func() wire.NodeInfo {
		return wire.NodeInfo{SerialNumber: 1904010001, VersionProtocol: [2]byte{0, 1}, VersionFirmware: [2]byte{0, 1}, DeviceClass: 0x04}
	}

	stop := make(chan struct{})
	go deviceReadLoop(t, deviceConn, node, stop)
	go devicePollLoop(node, stop)
	defer close(stop)

	client := New(nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Connect(ctx, hostConn, d); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Disconnect()

	info, err := client.GetNodeInfo(ctx)
	if err != nil {
		t.Fatalf("GetNodeInfo: %v", err)
	}
	if info.SerialNumber != 1904010001 {
		t.Fatalf("got %+v", info)
	}

	status, err := client.GetStatus(ctx)
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	_ = status
}

func deviceReadLoop(t *testing.T, conn interface{ Read([]byte) (int, error) }, node *device.Node, stop chan struct{}) {
	buf := make([]byte, 256)
	for {
		select {
		case <-stop:
			return
		default:
		}
		n, err := conn.Read(buf)
		if n > 0 {
			if ferr := node.Feed(buf[:n]); ferr != nil {
				t.Logf("device feed: %v", ferr)
			}
		}
		if err != nil {
			return
		}
	}
}

func devicePollLoop(node *device.Node, stop chan struct{}) {
	ticker := time.NewTicker(2 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			node.Poll()
		}
	}
}
