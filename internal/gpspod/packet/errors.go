package packet

import "fmt"

// CRCError is raised when a packet or message CRC fails to verify. It is
// transient at the packet level (the caller retries the whole command)
// and protocol-level at the message level (the command layer surfaces a
// message CRC failure as a ProtocolError without retrying).
type CRCError struct {
	Kind     string // "packet" or "message"
	Got      uint16
	Expected uint16
}

func (e *CRCError) Error() string {
	return fmt.Sprintf("packet: %s CRC mismatch: got %#04x, expected %#04x", e.Kind, e.Got, e.Expected)
}

// SequenceError indicates the reply's sequence counter did not match the
// request's. The caller must reset the session.
type SequenceError struct {
	Got      byte
	Expected byte
}

func (e *SequenceError) Error() string {
	return fmt.Sprintf("packet: sequence desync: got %d, expected %d", e.Got, e.Expected)
}

// IndexError indicates the packet-index-in-message did not strictly
// increase, or a gap was observed.
type IndexError struct {
	Got      byte
	Expected byte
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("packet: index gap: got %d, expected %d", e.Got, e.Expected)
}
