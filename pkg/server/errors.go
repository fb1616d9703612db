package server

import (
	"errors"
	"fmt"

	"github.com/vango-dev/huddle/pkg/protocol"
	"github.com/vango-dev/huddle/pkg/session"
)

// Sentinel errors for server conditions.
var (
	// ErrInvalidHandshake is returned when the first frame is not a valid
	// ClientHello.
	ErrInvalidHandshake = errors.New("server: invalid handshake")

	// ErrUnsupportedTransport is returned when a client asks for a
	// transport type this server does not serve.
	ErrUnsupportedTransport = errors.New("server: unsupported transport type")

	// ErrUnknownOp is returned for request ops the server does not know.
	ErrUnknownOp = errors.New("server: unknown op")

	// ErrInvalidRequest is returned for requests with missing or
	// conflicting fields.
	ErrInvalidRequest = errors.New("server: invalid request")
)

// CodeOf returns the wire error code for err.
func CodeOf(err error) protocol.ErrorCode {
	switch {
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, ErrUnknownOp):
		return protocol.ErrInvalidRequest
	case errors.Is(err, ErrInvalidHandshake):
		return protocol.ErrInvalidFrame
	default:
		return session.CodeOf(err)
	}
}

// handshakeStatusOf returns the handshake status for a failed join.
func handshakeStatusOf(err error) protocol.HandshakeStatus {
	switch {
	case errors.Is(err, session.ErrNameInUse):
		return protocol.HandshakeNameInUse
	case errors.Is(err, session.ErrNoSuchSession):
		return protocol.HandshakeNoSuchSession
	case errors.Is(err, session.ErrPermissionDenied):
		return protocol.HandshakeNotAuthorized
	case errors.Is(err, session.ErrSessionClosed):
		return protocol.HandshakeServerBusy
	case errors.Is(err, ErrUnsupportedTransport):
		return protocol.HandshakeUnsupportedTransport
	case errors.Is(err, ErrInvalidHandshake), errors.Is(err, session.ErrNoSuchClient):
		return protocol.HandshakeInvalidFormat
	default:
		return protocol.HandshakeInternalError
	}
}

// ConnError wraps an error with connection context for debugging.
type ConnError struct {
	ConnID string
	Op     string // Operation that failed
	Err    error  // Underlying error
}

// Error returns the error message with connection context.
func (e *ConnError) Error() string {
	if e.ConnID == "" {
		return fmt.Sprintf("server: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("server: conn %s: %s: %v", e.ConnID, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *ConnError) Unwrap() error {
	return e.Err
}
