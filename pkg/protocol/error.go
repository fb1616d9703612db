package protocol

// ErrorCode identifies the type of error.
type ErrorCode uint16

const (
	CodeOK            ErrorCode = 0x0000 // Success (replies only)
	ErrUnknown        ErrorCode = 0x0001 // Unknown error
	ErrInvalidFrame   ErrorCode = 0x0002 // Malformed frame
	ErrInvalidRequest ErrorCode = 0x0003 // Malformed or unknown request

	ErrNameInUse       ErrorCode = 0x0010 // Client name already in use
	ErrSessionInUse    ErrorCode = 0x0011 // Session still has other members
	ErrNoSuchConsumer  ErrorCode = 0x0012 // Consumer not registered
	ErrNoSuchByteArray ErrorCode = 0x0013 // Byte array absent or destroyed
	ErrNoSuchChannel   ErrorCode = 0x0014 // Channel absent or destroyed
	ErrNoSuchSession   ErrorCode = 0x0015 // Session absent
	ErrNoSuchClient    ErrorCode = 0x0016 // Client not a session member
	ErrNotJoined       ErrorCode = 0x0017 // Client not joined to the resource
	ErrSessionClosed   ErrorCode = 0x0018 // Session closed

	ErrServerError   ErrorCode = 0x0100 // Internal server error
	ErrNotAuthorized ErrorCode = 0x0101 // Not authorized
)

// String returns the string representation of the error code.
func (ec ErrorCode) String() string {
	switch ec {
	case CodeOK:
		return "OK"
	case ErrUnknown:
		return "Unknown"
	case ErrInvalidFrame:
		return "InvalidFrame"
	case ErrInvalidRequest:
		return "InvalidRequest"
	case ErrNameInUse:
		return "NameInUse"
	case ErrSessionInUse:
		return "SessionInUse"
	case ErrNoSuchConsumer:
		return "NoSuchConsumer"
	case ErrNoSuchByteArray:
		return "NoSuchByteArray"
	case ErrNoSuchChannel:
		return "NoSuchChannel"
	case ErrNoSuchSession:
		return "NoSuchSession"
	case ErrNoSuchClient:
		return "NoSuchClient"
	case ErrNotJoined:
		return "NotJoined"
	case ErrSessionClosed:
		return "SessionClosed"
	case ErrServerError:
		return "ServerError"
	case ErrNotAuthorized:
		return "NotAuthorized"
	default:
		return "Unknown"
	}
}

// ErrorMessage is sent when a connection-level error occurs.
type ErrorMessage struct {
	Code    ErrorCode // Error code
	Message string    // Human-readable error message
	Fatal   bool      // If true, connection should be closed
}

// EncodeErrorMessage encodes an ErrorMessage to bytes.
func EncodeErrorMessage(em *ErrorMessage) []byte {
	e := NewEncoder()
	EncodeErrorMessageTo(e, em)
	return e.Bytes()
}

// EncodeErrorMessageTo encodes an ErrorMessage using the provided encoder.
func EncodeErrorMessageTo(e *Encoder, em *ErrorMessage) {
	e.WriteUint16(uint16(em.Code))
	e.WriteString(em.Message)
	e.WriteBool(em.Fatal)
}

// DecodeErrorMessage decodes an ErrorMessage from bytes.
func DecodeErrorMessage(data []byte) (*ErrorMessage, error) {
	return DecodeErrorMessageFrom(NewDecoder(data))
}

// DecodeErrorMessageFrom decodes an ErrorMessage from a decoder.
func DecodeErrorMessageFrom(d *Decoder) (*ErrorMessage, error) {
	code, err := d.ReadUint16()
	if err != nil {
		return nil, err
	}

	message, err := d.ReadString()
	if err != nil {
		return nil, err
	}

	fatal, err := d.ReadBool()
	if err != nil {
		return nil, err
	}

	return &ErrorMessage{
		Code:    ErrorCode(code),
		Message: message,
		Fatal:   fatal,
	}, nil
}

// NewError creates a new non-fatal ErrorMessage.
func NewError(code ErrorCode, message string) *ErrorMessage {
	return &ErrorMessage{Code: code, Message: message}
}

// NewFatalError creates a new fatal ErrorMessage.
func NewFatalError(code ErrorCode, message string) *ErrorMessage {
	return &ErrorMessage{Code: code, Message: message, Fatal: true}
}

// Error implements the error interface.
func (em *ErrorMessage) Error() string {
	if em.Fatal {
		return "fatal: " + em.Code.String() + ": " + em.Message
	}
	return em.Code.String() + ": " + em.Message
}

// IsFatal returns true if this error should close the connection.
func (em *ErrorMessage) IsFatal() bool {
	return em.Fatal
}
