package packet

import (
	"encoding/binary"
	"fmt"
)

// messageHeaderSize is the command code (2 bytes) and length field
// (2 bytes) preceding the body.
const messageHeaderSize = 4

// messageCRCSize is the trailing CRC-16 over the whole pre-CRC message.
const messageCRCSize = 2

// EncodeMessage builds the command-layer message body:
// command_code || length || payload || crc16(command_code||length||payload).
func EncodeMessage(command uint16, payload []byte) []byte {
	body := make([]byte, messageHeaderSize+len(payload))
	binary.LittleEndian.PutUint16(body[0:2], command)
	binary.LittleEndian.PutUint16(body[2:4], uint16(len(payload)))
	copy(body[messageHeaderSize:], payload)

	sum := crc16(body)
	out := make([]byte, len(body)+messageCRCSize)
	copy(out, body)
	binary.LittleEndian.PutUint16(out[len(body):], sum)
	return out
}

// DecodeMessage verifies the message CRC and splits a message back into
// its command code and payload.
func DecodeMessage(msg []byte) (command uint16, payload []byte, err error) {
	if len(msg) < messageHeaderSize+messageCRCSize {
		return 0, nil, fmt.Errorf("packet: message too short: %d bytes", len(msg))
	}

	body := msg[:len(msg)-messageCRCSize]
	got := binary.LittleEndian.Uint16(msg[len(body):])
	want := crc16(body)
	if got != want {
		return 0, nil, &CRCError{Kind: "message", Got: got, Expected: want}
	}

	command = binary.LittleEndian.Uint16(body[0:2])
	length := binary.LittleEndian.Uint16(body[2:4])
	if int(length) != len(body)-messageHeaderSize {
		return 0, nil, fmt.Errorf("packet: declared message length %d does not match body of %d bytes", length, len(body)-messageHeaderSize)
	}

	payload = make([]byte, length)
	copy(payload, body[messageHeaderSize:])
	return command, payload, nil
}
