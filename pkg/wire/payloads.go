package wire

import (
	"encoding/binary"
	"fmt"
)

// NodeInfo is the fixed-layout payload carried by CmdNodeInfoResponse,
// matching gsbp_ACK_nodeInfo_t: a device serial number, the protocol
// version the device was built against, its own firmware version, and
// the device class id used to validate UniversalACK command echoes.
type NodeInfo struct {
	SerialNumber    uint32
	VersionProtocol [2]byte
	VersionFirmware [2]byte
	DeviceClass     byte
}

func (n NodeInfo) Marshal() []byte {
	buf := make([]byte, 4+2+2+1)
	binary.LittleEndian.PutUint32(buf[0:4], n.SerialNumber)
	copy(buf[4:6], n.VersionProtocol[:])
	copy(buf[6:8], n.VersionFirmware[:])
	buf[8] = n.DeviceClass
	return buf
}

func UnmarshalNodeInfo(payload []byte) (NodeInfo, error) {
	if len(payload) < 9 {
		return NodeInfo{}, fmt.Errorf("wire: node info payload too short: %d bytes", len(payload))
	}
	var n NodeInfo
	n.SerialNumber = binary.LittleEndian.Uint32(payload[0:4])
	copy(n.VersionProtocol[:], payload[4:6])
	copy(n.VersionFirmware[:], payload[6:8])
	n.DeviceClass = payload[8]
	return n, nil
}

// Status is the fixed-layout payload carried by CmdStatusResponse:
// an error code, a device state byte, and an optional free-text
// message, mirroring the Message payload's {error_code, state, text}
// shape.
type Status struct {
	ErrorCode uint16
	State     byte
	Message   string
}

func (s Status) Marshal() []byte {
	buf := make([]byte, 2+1+len(s.Message))
	binary.LittleEndian.PutUint16(buf[0:2], s.ErrorCode)
	buf[2] = s.State
	copy(buf[3:], s.Message)
	return buf
}

func UnmarshalStatus(payload []byte) (Status, error) {
	if len(payload) < 3 {
		return Status{}, fmt.Errorf("wire: status payload too short: %d bytes", len(payload))
	}
	return Status{
		ErrorCode: binary.LittleEndian.Uint16(payload[0:2]),
		State:     payload[2],
		Message:   string(payload[3:]),
	}, nil
}

// UniversalACK is the payload of CmdUniversalACK: the echoed command
// id bitwise-ORed with the responding device's class id, matching
// GSBP_SendUniversalACKext.
type UniversalACK struct {
	EchoedCommand uint16
}

func (a UniversalACK) Marshal(deviceClass byte) []byte {
	v := a.EchoedCommand | uint16(deviceClass)
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, v)
	return buf
}

func UnmarshalUniversalACK(payload []byte) (UniversalACK, error) {
	if len(payload) < 2 {
		return UniversalACK{}, fmt.Errorf("wire: universal ack payload too short: %d bytes", len(payload))
	}
	return UniversalACK{EchoedCommand: binary.LittleEndian.Uint16(payload)}, nil
}

// Message is the payload of CmdMessage: a severity, a device state
// byte, an error code (meaningful for Error/CriticalError, zero
// otherwise) and free text, matching gsbp_ACK_messageACK_t's
// {msgType, state, errorCode, msg}.
type Message struct {
	Severity  Severity
	State     byte
	ErrorCode uint16
	Text      string
}

func (m Message) Marshal() []byte {
	buf := make([]byte, 1+1+2+len(m.Text))
	buf[0] = byte(m.Severity)
	buf[1] = m.State
	binary.LittleEndian.PutUint16(buf[2:4], m.ErrorCode)
	copy(buf[4:], m.Text)
	return buf
}

func UnmarshalMessage(payload []byte) (Message, error) {
	if len(payload) < 4 {
		return Message{}, fmt.Errorf("wire: message payload too short: %d bytes", len(payload))
	}
	return Message{
		Severity:  Severity(payload[0]),
		State:     payload[1],
		ErrorCode: binary.LittleEndian.Uint16(payload[2:4]),
		Text:      string(payload[4:]),
	}, nil
}
