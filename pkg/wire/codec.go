package wire

// Descriptor configures the shape of a frame for one handle: which
// optional fields are present and how wide the variable-width fields
// are. Two links speaking GSBP need not agree on a Descriptor beyond
// what a given deployment fixes ahead of time — there is no on-wire
// negotiation of frame shape.
type Descriptor struct {
	CommandIDWidth int  // 1 or 2 bytes
	HasDestination bool
	SizeWidth      int // 1 or 2 bytes
	HeaderChecksum bool
	DataChecksum   bool
	MaxPayload     int
}

// DefaultDescriptor matches the reference implementation's single
// fixed configuration: 1-byte command id, no destination byte,
// 1-byte size field, both checksums enabled.
func DefaultDescriptor() Descriptor {
	return Descriptor{
		CommandIDWidth: 1,
		HasDestination: false,
		SizeWidth:      1,
		HeaderChecksum: true,
		DataChecksum:   true,
		MaxPayload:     3000,
	}
}

// HeaderLen reports the header region length (command id, optional
// destination, request id, size field) excluding the start sentinel
// and the optional header checksum byte.
func (d Descriptor) HeaderLen() int {
	n := d.CommandIDWidth + 1 /* request id */ + d.SizeWidth
	if d.HasDestination {
		n++
	}
	return n
}

func (d Descriptor) headerLen() int { return d.HeaderLen() }

// Package is the decoded, in-memory form of a frame.
type Package struct {
	CommandID   uint16
	Destination uint8
	RequestID   uint8
	Payload     []byte
}

// Encode renders pkg as a complete frame under d.
func Encode(d Descriptor, p Package) ([]byte, error) {
	if len(p.Payload) > d.MaxPayload {
		return nil, ErrPayloadTooLarge
	}

	header := make([]byte, 0, d.headerLen())
	header = appendWidth(header, uint64(p.CommandID), d.CommandIDWidth)
	if d.HasDestination {
		header = append(header, p.Destination)
	}
	header = append(header, p.RequestID)
	header = appendWidth(header, uint64(len(p.Payload)), d.SizeWidth)

	buf := make([]byte, 0, 1+len(header)+1+len(p.Payload)+4+1)
	buf = append(buf, StartByte)
	buf = append(buf, header...)
	if d.HeaderChecksum {
		buf = append(buf, headerChecksum(header))
	}
	buf = append(buf, p.Payload...)
	if d.DataChecksum {
		sum := dataChecksumField(p.Payload)
		buf = append(buf, sum[:]...)
	}
	buf = append(buf, EndByte)
	return buf, nil
}

// Decode parses a single frame out of buf, which must begin with the
// start sentinel (callers that need to scan for the sentinel first,
// such as the reassembler, do so before calling Decode). It returns
// the decoded package and the number of bytes consumed.
//
// ErrShortBuffer means buf holds a well-formed prefix of a frame but
// not all of it; callers should wait for more bytes and retry rather
// than treating this as a framing failure.
func Decode(d Descriptor, buf []byte) (Package, int, error) {
	if len(buf) == 0 || buf[0] != StartByte {
		return Package{}, 0, ErrNoStartByte
	}

	headerLen := d.headerLen()
	checksumLen := 0
	if d.HeaderChecksum {
		checksumLen = 1
	}
	minLen := 1 + headerLen + checksumLen
	if len(buf) < minLen {
		return Package{}, 0, ErrShortBuffer
	}

	header := buf[1 : 1+headerLen]
	off := 1 + headerLen
	if d.HeaderChecksum {
		if buf[off] != headerChecksum(header) {
			return Package{}, 0, ErrChecksumMismatch
		}
		off++
	}

	var p Package
	hoff := 0
	p.CommandID = uint16(readWidth(header[hoff:], d.CommandIDWidth))
	hoff += d.CommandIDWidth
	if d.HasDestination {
		p.Destination = header[hoff]
		hoff++
	}
	p.RequestID = header[hoff]
	hoff++
	size := int(readWidth(header[hoff:], d.SizeWidth))

	if size > d.MaxPayload {
		return Package{}, 0, ErrPayloadTooLarge
	}

	dataChecksumLen := 0
	if d.DataChecksum {
		dataChecksumLen = 4
	}
	total := off + size + dataChecksumLen + 1 // +1 end byte
	if len(buf) < total {
		return Package{}, 0, ErrShortBuffer
	}

	payload := buf[off : off+size]
	off += size

	if d.DataChecksum {
		want := dataChecksumField(payload)
		got := buf[off : off+4]
		for i := range want {
			if want[i] != got[i] {
				return Package{}, 0, ErrChecksumMismatch
			}
		}
		off += 4
	}

	if buf[off] != EndByte {
		return Package{}, 0, ErrEndByteMismatch
	}
	off++

	p.Payload = append([]byte(nil), payload...)
	return p, off, nil
}

// headerChecksum XOR-folds the header bytes, seeded with the start
// byte value itself rather than zero — a deliberate quirk of the
// original wire format, carried forward here. Unlike the reference
// implementation this folds exactly the configured header length
// rather than a hardcoded four bytes, so it stays correct across
// Descriptor variants.
func headerChecksum(header []byte) byte {
	c := StartByte
	for _, b := range header {
		c ^= b
	}
	return c
}

// dataChecksumField XOR-folds the payload into a single byte, then
// widens it to the 4-byte field the wire format reserves for a future
// CRC-32 upgrade (the top three bytes are always zero today).
func dataChecksumField(payload []byte) [4]byte {
	var c byte
	for _, b := range payload {
		c ^= b
	}
	return [4]byte{c, 0, 0, 0}
}

func appendWidth(buf []byte, v uint64, width int) []byte {
	for i := 0; i < width; i++ {
		buf = append(buf, byte(v>>(8*i)))
	}
	return buf
}

func readWidth(buf []byte, width int) uint64 {
	var v uint64
	for i := 0; i < width; i++ {
		v |= uint64(buf[i]) << (8 * i)
	}
	return v
}
