package wire

import "errors"

// Sentinel errors returned by Decode and by the reassembler built on
// top of it. ErrShortBuffer is not itself a framing failure — it
// means the buffer holds the start of a frame but not all of it yet.
var (
	ErrShortBuffer        = errors.New("wire: buffer does not yet hold a full frame")
	ErrNoStartByte        = errors.New("wire: no start sentinel found")
	ErrChecksumMismatch   = errors.New("wire: checksum mismatch")
	ErrEndByteMismatch    = errors.New("wire: end sentinel mismatch")
	ErrPayloadTooLarge    = errors.New("wire: payload exceeds descriptor maximum")
	ErrBufferTooSmall     = errors.New("wire: scratch buffer too small for incoming data")
	ErrNoNewData          = errors.New("wire: no new data arrived across two consecutive scans")
	ErrNoRequestFound     = errors.New("wire: no matching request found")
	ErrGetResponseTimeout = errors.New("wire: get response timed out")
)
