package wire

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	d := DefaultDescriptor()
	p := Package{CommandID: CmdStatusResponse, RequestID: 7, Payload: []byte{1, 2, 3, 4}}

	frame, err := Encode(d, p)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if frame[0] != StartByte || frame[len(frame)-1] != EndByte {
		t.Fatalf("frame missing sentinels: %x", frame)
	}

	got, n, err := Decode(d, frame)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if n != len(frame) {
		t.Fatalf("consumed %d, want %d", n, len(frame))
	}
	if got.CommandID != p.CommandID || got.RequestID != p.RequestID {
		t.Fatalf("got %+v, want %+v", got, p)
	}
	if string(got.Payload) != string(p.Payload) {
		t.Fatalf("payload mismatch: %v vs %v", got.Payload, p.Payload)
	}
}

func TestDecodeShortBuffer(t *testing.T) {
	d := DefaultDescriptor()
	p := Package{CommandID: 5, RequestID: 1, Payload: []byte{9, 9}}
	frame, err := Encode(d, p)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	_, _, err = Decode(d, frame[:len(frame)-2])
	if err != ErrShortBuffer {
		t.Fatalf("got %v, want ErrShortBuffer", err)
	}
}

func TestDecodeHeaderChecksumMismatch(t *testing.T) {
	d := DefaultDescriptor()
	p := Package{CommandID: 5, RequestID: 1, Payload: []byte{1}}
	frame, err := Encode(d, p)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	// corrupt the checksum byte, located right after the header.
	frame[1+d.headerLen()] ^= 0xFF
	_, _, err = Decode(d, frame)
	if err != ErrChecksumMismatch {
		t.Fatalf("got %v, want ErrChecksumMismatch", err)
	}
}

func TestDecodeEndByteMismatch(t *testing.T) {
	d := DefaultDescriptor()
	p := Package{CommandID: 5, RequestID: 1, Payload: []byte{1}}
	frame, err := Encode(d, p)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	frame[len(frame)-1] = 0x00
	_, _, err = Decode(d, frame)
	if err != ErrEndByteMismatch {
		t.Fatalf("got %v, want ErrEndByteMismatch", err)
	}
}

func TestHeaderChecksumCoversConfiguredWidth(t *testing.T) {
	// A 2-byte command id descriptor changes the header length; the
	// checksum must cover the actual header, not a hardcoded width.
	d := DefaultDescriptor()
	d.CommandIDWidth = 2
	d.HasDestination = true

	p := Package{CommandID: 0x1234, Destination: 3, RequestID: 9, Payload: []byte{0xAA, 0xBB}}
	frame, err := Encode(d, p)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	// header bytes 34 12 03 09 02 folded onto the 0x7E seed give 0x50.
	if sum := frame[1+d.HeaderLen()]; sum != 0x50 {
		t.Fatalf("header checksum = %#x, want 0x50", sum)
	}
	got, _, err := Decode(d, frame)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.CommandID != p.CommandID || got.Destination != p.Destination {
		t.Fatalf("got %+v, want %+v", got, p)
	}
}

func TestDataChecksumDetectsLongPayloadCorruption(t *testing.T) {
	d := DefaultDescriptor()
	payload := make([]byte, 120)
	for i := range payload {
		payload[i] = byte(i)
	}
	p := Package{CommandID: 5, RequestID: 1, Payload: payload}
	frame, err := Encode(d, p)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	// corrupt a payload byte well past the 50-byte cap the original
	// implementation mistakenly stopped checksumming at.
	frame[1+d.headerLen()+1+100] ^= 0xFF
	_, _, err = Decode(d, frame)
	if err != ErrChecksumMismatch {
		t.Fatalf("got %v, want checksum mismatch for corrupted long payload", err)
	}
}

func TestNodeInfoRoundTrip(t *testing.T) {
	n := NodeInfo{SerialNumber: 1904010001, VersionProtocol: [2]byte{0, 1}, VersionFirmware: [2]byte{0, 1}, DeviceClass: 4}
	got, err := UnmarshalNodeInfo(n.Marshal())
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got != n {
		t.Fatalf("got %+v, want %+v", got, n)
	}
}

func TestUniversalACKEncodesDeviceClass(t *testing.T) {
	a := UniversalACK{EchoedCommand: CmdStatusRequest}
	payload := a.Marshal(0x08)
	got, err := UnmarshalUniversalACK(payload)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.EchoedCommand != CmdStatusRequest|0x08 {
		t.Fatalf("got %x, want %x", got.EchoedCommand, CmdStatusRequest|0x08)
	}
}
