// Package gpserr defines the client's flat error-kind taxonomy:
// TransportError, PacketError, ProtocolError, DeviceError, DecodeError,
// UsageError. No inheritance between kinds; each wraps an underlying
// cause for errors.Is/errors.As and carries the kind for CLI formatting
// ("<kind>: <human reason>").
package gpserr

import "fmt"

// Kind is one of the six flat error kinds.
type Kind string

const (
	KindTransport Kind = "TransportError"
	KindPacket    Kind = "PacketError"
	KindProtocol  Kind = "ProtocolError"
	KindDevice    Kind = "DeviceError"
	KindDecode    Kind = "DecodeError"
	KindUsage     Kind = "UsageError"
)

// Error is a kind-tagged error, the only error shape surfaced at the CLI
// boundary.
type Error struct {
	Kind   Kind
	Reason string
	// Offset is set for DecodeError to carry the byte offset within the
	// memory region where decoding failed.
	Offset    int64
	HasOffset bool
	Err       error
}

func (e *Error) Error() string {
	if e.HasOffset {
		return fmt.Sprintf("%s: %s (offset %#x)", e.Kind, e.Reason, e.Offset)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a kind-tagged error with a formatted reason.
func New(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Reason: fmt.Sprintf(format, args...), Err: err}
}

// NewAtOffset builds a kind-tagged error carrying a byte offset.
func NewAtOffset(kind Kind, offset int64, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Reason: fmt.Sprintf(format, args...), Offset: offset, HasOffset: true, Err: err}
}

// ExitCode returns the CLI exit code for any error: 0 if nil, else 1.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return 1
}
