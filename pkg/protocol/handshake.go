package protocol

// HandshakeStatus represents the result of a handshake.
type HandshakeStatus uint8

const (
	HandshakeOK                   HandshakeStatus = 0x00
	HandshakeVersionMismatch      HandshakeStatus = 0x01
	HandshakeNameInUse            HandshakeStatus = 0x02 // Client name already joined
	HandshakeNoSuchSession        HandshakeStatus = 0x03 // Session absent and create not requested
	HandshakeServerBusy           HandshakeStatus = 0x04
	HandshakeUnsupportedTransport HandshakeStatus = 0x05
	HandshakeInvalidFormat        HandshakeStatus = 0x06 // Malformed handshake message
	HandshakeNotAuthorized        HandshakeStatus = 0x07 // Authorizer rejected the client
	HandshakeInternalError        HandshakeStatus = 0x08
)

// String returns the string representation of the handshake status.
func (hs HandshakeStatus) String() string {
	switch hs {
	case HandshakeOK:
		return "OK"
	case HandshakeVersionMismatch:
		return "VersionMismatch"
	case HandshakeNameInUse:
		return "NameInUse"
	case HandshakeNoSuchSession:
		return "NoSuchSession"
	case HandshakeServerBusy:
		return "ServerBusy"
	case HandshakeUnsupportedTransport:
		return "UnsupportedTransport"
	case HandshakeInvalidFormat:
		return "InvalidFormat"
	case HandshakeNotAuthorized:
		return "NotAuthorized"
	case HandshakeInternalError:
		return "InternalError"
	default:
		return "Unknown"
	}
}

// ProtocolVersion represents a protocol version as major.minor.
type ProtocolVersion struct {
	Major uint8
	Minor uint8
}

// CurrentVersion is the current protocol version.
var CurrentVersion = ProtocolVersion{Major: 1, Minor: 0}

// Compatible reports whether a peer speaking v can talk to this build.
func (v ProtocolVersion) Compatible(other ProtocolVersion) bool {
	return v.Major == other.Major
}

// ClientHello is the first frame a client sends after the WebSocket opens.
type ClientHello struct {
	Version ProtocolVersion
	Session string // Session name
	Type    string // Transport type tag from the session URL
	Client  string // Requested client name
	Token   string // Credentials returned by the client's Authenticate hook
	Create  bool   // Create the session when it does not exist
}

// ServerHello is the server's response to ClientHello.
type ServerHello struct {
	Status     HandshakeStatus
	SessionID  string // Unique id of the session instance
	Client     string // Name the client joined under
	Creator    bool   // This client created the session
	ServerTime uint64 // Server time in Unix milliseconds
	Message    string // Human-readable detail for failures
}

// EncodeClientHello encodes a ClientHello to bytes.
func EncodeClientHello(ch *ClientHello) []byte {
	e := NewEncoder()
	EncodeClientHelloTo(e, ch)
	return e.Bytes()
}

// EncodeClientHelloTo encodes a ClientHello using the provided encoder.
func EncodeClientHelloTo(e *Encoder, ch *ClientHello) {
	e.WriteByte(ch.Version.Major)
	e.WriteByte(ch.Version.Minor)
	e.WriteString(ch.Session)
	e.WriteString(ch.Type)
	e.WriteString(ch.Client)
	e.WriteString(ch.Token)
	e.WriteBool(ch.Create)
}

// DecodeClientHello decodes a ClientHello from bytes.
func DecodeClientHello(data []byte) (*ClientHello, error) {
	return DecodeClientHelloFrom(NewDecoder(data))
}

// DecodeClientHelloFrom decodes a ClientHello from a decoder.
func DecodeClientHelloFrom(d *Decoder) (*ClientHello, error) {
	ch := &ClientHello{}
	var err error

	if ch.Version.Major, err = d.ReadByte(); err != nil {
		return nil, err
	}
	if ch.Version.Minor, err = d.ReadByte(); err != nil {
		return nil, err
	}
	if ch.Session, err = d.ReadString(); err != nil {
		return nil, err
	}
	if ch.Type, err = d.ReadString(); err != nil {
		return nil, err
	}
	if ch.Client, err = d.ReadString(); err != nil {
		return nil, err
	}
	if ch.Token, err = d.ReadString(); err != nil {
		return nil, err
	}
	if ch.Create, err = d.ReadBool(); err != nil {
		return nil, err
	}
	return ch, nil
}

// EncodeServerHello encodes a ServerHello to bytes.
func EncodeServerHello(sh *ServerHello) []byte {
	e := NewEncoder()
	EncodeServerHelloTo(e, sh)
	return e.Bytes()
}

// EncodeServerHelloTo encodes a ServerHello using the provided encoder.
func EncodeServerHelloTo(e *Encoder, sh *ServerHello) {
	e.WriteByte(byte(sh.Status))
	e.WriteString(sh.SessionID)
	e.WriteString(sh.Client)
	e.WriteBool(sh.Creator)
	e.WriteUint64(sh.ServerTime)
	e.WriteString(sh.Message)
}

// DecodeServerHello decodes a ServerHello from bytes.
func DecodeServerHello(data []byte) (*ServerHello, error) {
	return DecodeServerHelloFrom(NewDecoder(data))
}

// DecodeServerHelloFrom decodes a ServerHello from a decoder.
func DecodeServerHelloFrom(d *Decoder) (*ServerHello, error) {
	sh := &ServerHello{}

	status, err := d.ReadByte()
	if err != nil {
		return nil, err
	}
	sh.Status = HandshakeStatus(status)

	if sh.SessionID, err = d.ReadString(); err != nil {
		return nil, err
	}
	if sh.Client, err = d.ReadString(); err != nil {
		return nil, err
	}
	if sh.Creator, err = d.ReadBool(); err != nil {
		return nil, err
	}
	if sh.ServerTime, err = d.ReadUint64(); err != nil {
		return nil, err
	}
	if sh.Message, err = d.ReadString(); err != nil {
		return nil, err
	}
	return sh, nil
}

// NewClientHello creates a ClientHello with the current version.
func NewClientHello(sessionName, transport, client, token string, create bool) *ClientHello {
	return &ClientHello{
		Version: CurrentVersion,
		Session: sessionName,
		Type:    transport,
		Client:  client,
		Token:   token,
		Create:  create,
	}
}

// NewServerHello creates a new successful ServerHello.
func NewServerHello(sessionID, client string, creator bool, serverTime uint64) *ServerHello {
	return &ServerHello{
		Status:     HandshakeOK,
		SessionID:  sessionID,
		Client:     client,
		Creator:    creator,
		ServerTime: serverTime,
	}
}

// NewServerHelloError creates a ServerHello with an error status.
func NewServerHelloError(status HandshakeStatus, message string) *ServerHello {
	return &ServerHello{
		Status:  status,
		Message: message,
	}
}
