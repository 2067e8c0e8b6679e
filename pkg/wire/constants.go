// Package wire implements the GSBP frame format: encoding and decoding
// of packages to and from their on-wire byte representation, the
// command-id and error-code vocabulary shared by both link roles, and
// the fixed-layout payload structs used by the base command set.
package wire

// Frame sentinels.
const (
	StartByte byte = 0x7E
	EndByte   byte = 0x81
)

// Reserved request ids. 0 means "reuse the last received request id"
// when sending, or "unset" on an unclaimed correlation entry. 255
// marks unsolicited, device-initiated traffic that no host call is
// waiting on.
const (
	RequestIDReuseLast byte = 0
	RequestIDUnsolicited byte = 255
)

// Base command ids. Application command ids start at 200.
const (
	CmdNodeInfoRequest  uint16 = 1
	CmdNodeInfoResponse uint16 = 2
	CmdUniversalACK     uint16 = 3
	CmdMessage          uint16 = 4
	CmdStatusRequest    uint16 = 5
	CmdStatusResponse   uint16 = 6
	CmdReset            uint16 = 9

	FirstApplicationCmd uint16 = 200
)

// Message severities, carried in the sub-type field of a Message payload.
// Numbering matches gsbp_MsgTypes_t: most severe first.
type Severity uint8

const (
	SeverityInvalid Severity = iota
	SeverityCriticalError
	SeverityError
	SeverityWarning
	SeverityInfo
	SeverityDebug
)

func (s Severity) String() string {
	switch s {
	case SeverityInvalid:
		return "invalid"
	case SeverityCriticalError:
		return "critical"
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInfo:
		return "info"
	case SeverityDebug:
		return "debug"
	default:
		return "unknown"
	}
}

// Protocol error codes occupy 0..32; application error codes start at
// 32 and above.
const (
	NoError int = iota
	UnknownCMD
	ChecksumMismatch
	EndByteMismatch
	UARTSizeMismatch
	BufferTooSmall
	DeviceClassInvalid
	CMDNotValidNow
	CMDNotExpected
	StateUnknown
	NoNewData
	NotConnectedToDevice
	InvalidCMD
	NoRequestFound
	GetResponseTimeout
	OpeningDeviceFailed
	NodeInfoNotReceived
	DeviceClassMismatch

	FirstApplicationError int = 32
)

var errorStrings = map[int]string{
	NoError:               "no error",
	UnknownCMD:            "unknown command",
	ChecksumMismatch:      "checksum mismatch",
	EndByteMismatch:       "end byte mismatch",
	UARTSizeMismatch:      "UART size mismatch",
	BufferTooSmall:        "buffer too small",
	DeviceClassInvalid:    "device class invalid",
	CMDNotValidNow:        "command not valid now",
	CMDNotExpected:        "command not expected",
	StateUnknown:          "state unknown",
	NoNewData:             "no new data",
	NotConnectedToDevice:  "not connected to device",
	InvalidCMD:            "invalid command",
	NoRequestFound:        "no request found",
	GetResponseTimeout:    "get response timed out",
	OpeningDeviceFailed:   "opening device failed",
	NodeInfoNotReceived:   "node info not received",
	DeviceClassMismatch:   "device class mismatch",
}

// ErrorString renders a protocol or application error code for logs
// and diagnostics. Unrecognized application codes render generically
// rather than failing, since the application error range is open
// ended and owned by whatever uses this module.
func ErrorString(code int) string {
	if s, ok := errorStrings[code]; ok {
		return s
	}
	if code >= FirstApplicationError {
		return "application error"
	}
	return "unrecognized error"
}
