package session

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by the in-process core, the server and the remote
// client. Wire error codes map one-to-one onto these.
var (
	// ErrConnect is returned when a rendezvous endpoint cannot be reached.
	ErrConnect = errors.New("session: connect failed")

	// ErrNameInUse is returned when a client joins under a name that is
	// already joined. The caller should pick another name and retry.
	ErrNameInUse = errors.New("session: client name in use")

	// ErrSessionInUse is returned by a non-forced Close while other clients
	// remain joined. The caller should Leave instead.
	ErrSessionInUse = errors.New("session: session in use")

	// ErrNoSuchConsumer is returned when removing a consumer or listener that
	// is not registered.
	ErrNoSuchConsumer = errors.New("session: no such consumer")

	// ErrNoSuchByteArray is returned for byte arrays that do not exist or
	// were destroyed.
	ErrNoSuchByteArray = errors.New("session: no such byte array")

	// ErrNoSuchChannel is returned for channels that do not exist or were
	// destroyed.
	ErrNoSuchChannel = errors.New("session: no such channel")

	// ErrNoSuchSession is returned when joining an absent session without
	// asking to create it.
	ErrNoSuchSession = errors.New("session: no such session")

	// ErrNoSuchClient is returned when the acting client is not joined to
	// the session.
	ErrNoSuchClient = errors.New("session: no such client")

	// ErrNotJoined is returned when a client acts on a channel or byte array
	// it has not joined.
	ErrNotJoined = errors.New("session: client not joined")

	// ErrProtocolDecode is returned when a payload or frame cannot be decoded.
	ErrProtocolDecode = errors.New("session: protocol decode error")

	// ErrRegistry is returned when a registry cannot be started or queried.
	ErrRegistry = errors.New("session: registry error")

	// ErrPermissionDenied is returned when the authorizer rejects a client.
	ErrPermissionDenied = errors.New("session: permission denied")

	// ErrSessionClosed is returned for operations on a closed session.
	ErrSessionClosed = errors.New("session: session closed")

	// ErrClosed is returned by blocking receives unblocked by Leave or Close.
	ErrClosed = errors.New("session: closed")
)

// OpError wraps an error with the operation and resource that failed.
type OpError struct {
	Op       string // Operation that failed
	Resource string // Session, channel or byte array name
	Err      error  // Underlying error
}

// Error returns the error message with operation context.
func (e *OpError) Error() string {
	if e.Resource == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Resource, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *OpError) Unwrap() error {
	return e.Err
}

// ConnectError reports a failed connection to a rendezvous endpoint.
// It matches ErrConnect with errors.Is.
type ConnectError struct {
	Addr string // Endpoint address
	Err  error  // Underlying error (dial failure, timeout, handshake)
}

// Error returns the error message.
func (e *ConnectError) Error() string {
	return fmt.Sprintf("session: connect %s: %v", e.Addr, e.Err)
}

// Unwrap returns ErrConnect and the underlying error.
func (e *ConnectError) Unwrap() []error {
	return []error{ErrConnect, e.Err}
}

// RegistryError reports a registry that could not be started or queried.
// It matches ErrRegistry with errors.Is.
type RegistryError struct {
	Type string // Session transport type
	Addr string // Bind or lookup address
	Err  error
}

// Error returns the error message.
func (e *RegistryError) Error() string {
	if e.Addr == "" {
		return fmt.Sprintf("session: registry %s: %v", e.Type, e.Err)
	}
	return fmt.Sprintf("session: registry %s at %s: %v", e.Type, e.Addr, e.Err)
}

// Unwrap returns ErrRegistry and the underlying error.
func (e *RegistryError) Unwrap() []error {
	return []error{ErrRegistry, e.Err}
}

// ProtocolDecodeError reports a malformed frame or payload.
// It matches ErrProtocolDecode with errors.Is.
type ProtocolDecodeError struct {
	What string // What was being decoded
	Err  error
}

// Error returns the error message.
func (e *ProtocolDecodeError) Error() string {
	return fmt.Sprintf("session: decode %s: %v", e.What, e.Err)
}

// Unwrap returns ErrProtocolDecode and the underlying error.
func (e *ProtocolDecodeError) Unwrap() []error {
	return []error{ErrProtocolDecode, e.Err}
}

// IsRecoverable reports whether err is a condition the caller can handle by
// retrying, leaving, or skipping the current cycle. Connect, registry and
// permission failures are fatal to the attempt.
func IsRecoverable(err error) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, ErrConnect),
		errors.Is(err, ErrRegistry),
		errors.Is(err, ErrPermissionDenied):
		return false
	case errors.Is(err, ErrNameInUse),
		errors.Is(err, ErrSessionInUse),
		errors.Is(err, ErrNoSuchConsumer),
		errors.Is(err, ErrNoSuchByteArray),
		errors.Is(err, ErrNoSuchChannel),
		errors.Is(err, ErrNoSuchClient),
		errors.Is(err, ErrNotJoined),
		errors.Is(err, ErrProtocolDecode):
		return true
	default:
		return false
	}
}

func opErr(op, resource string, err error) error {
	return &OpError{Op: op, Resource: resource, Err: err}
}
