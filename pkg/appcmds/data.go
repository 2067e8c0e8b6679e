package appcmds

import "encoding/binary"

// MarshalData packs a batch of int16 samples little-endian, the AppData
// payload format — a plain fixed-width array rather than CBOR, since
// this one is a high-rate streamed payload where per-sample framing
// overhead matters.
func MarshalData(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

func UnmarshalData(payload []byte) []int16 {
	samples := make([]int16, len(payload)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(payload[i*2:]))
	}
	return samples
}
