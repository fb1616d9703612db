package protocol

// Op identifies the operation a Request asks the server to perform.
type Op uint8

const (
	// Session operations
	OpCreateChannel      Op = 0x01
	OpCreateByteArray    Op = 0x02
	OpListClients        Op = 0x03
	OpListByteArrays     Op = 0x04
	OpListChannels       Op = 0x05
	OpAddSessionListener Op = 0x06
	OpRemoveListener     Op = 0x07
	OpLeaveSession       Op = 0x08
	OpCloseSession       Op = 0x09
	OpDestroyChannel     Op = 0x0A
	OpDestroyByteArray   Op = 0x0B

	// Channel operations
	OpJoinChannel        Op = 0x20
	OpLeaveChannel       Op = 0x21
	OpAddConsumer        Op = 0x22
	OpAddChannelListener Op = 0x23
	OpSend               Op = 0x24
	OpListChannelClients Op = 0x25

	// Byte array operations
	OpJoinByteArray        Op = 0x30
	OpLeaveByteArray       Op = 0x31
	OpSetValue             Op = 0x32
	OpGetValue             Op = 0x33
	OpAddByteArrayListener Op = 0x34

	// Membership operations on a channel or byte array (see RequestFlags)
	OpInvite Op = 0x40
	OpExpel  Op = 0x41
)

// String returns the string representation of the op.
func (op Op) String() string {
	switch op {
	case OpCreateChannel:
		return "CreateChannel"
	case OpCreateByteArray:
		return "CreateByteArray"
	case OpListClients:
		return "ListClients"
	case OpListByteArrays:
		return "ListByteArrays"
	case OpListChannels:
		return "ListChannels"
	case OpAddSessionListener:
		return "AddSessionListener"
	case OpRemoveListener:
		return "RemoveListener"
	case OpLeaveSession:
		return "LeaveSession"
	case OpCloseSession:
		return "CloseSession"
	case OpDestroyChannel:
		return "DestroyChannel"
	case OpDestroyByteArray:
		return "DestroyByteArray"
	case OpJoinChannel:
		return "JoinChannel"
	case OpLeaveChannel:
		return "LeaveChannel"
	case OpAddConsumer:
		return "AddConsumer"
	case OpAddChannelListener:
		return "AddChannelListener"
	case OpSend:
		return "Send"
	case OpListChannelClients:
		return "ListChannelClients"
	case OpJoinByteArray:
		return "JoinByteArray"
	case OpLeaveByteArray:
		return "LeaveByteArray"
	case OpSetValue:
		return "SetValue"
	case OpGetValue:
		return "GetValue"
	case OpAddByteArrayListener:
		return "AddByteArrayListener"
	case OpInvite:
		return "Invite"
	case OpExpel:
		return "Expel"
	default:
		return "Unknown"
	}
}

// RequestFlags modify how an operation is performed.
type RequestFlags uint8

const (
	ReqCreate    RequestFlags = 0x01 // Create the resource when absent
	ReqJoin      RequestFlags = 0x02 // Join the resource when it exists
	ReqReliable  RequestFlags = 0x04 // Channel never drops messages
	ReqOrdered   RequestFlags = 0x08 // Channel keeps per-sender order under priority
	ReqForce     RequestFlags = 0x10 // Close even with other members joined
	ReqHigh      RequestFlags = 0x20 // High priority send
	ReqByteArray RequestFlags = 0x40 // Invite/Expel target a byte array instead of a channel
)

// Has returns true if the flags contain the specified flag.
func (rf RequestFlags) Has(flag RequestFlags) bool {
	return rf&flag != 0
}

// SendMode selects the recipients of an OpSend request.
type SendMode uint8

const (
	SendAll     SendMode = 0x00 // Every consumer on the channel
	SendOthers  SendMode = 0x01 // Every consumer except the sender's
	SendClients SendMode = 0x02 // Consumers of the listed recipients
)

// Request is a client → server operation.
//
// All operations share one layout; fields an operation does not use are
// left empty. Target names the channel or byte array, Name names a client
// (Invite/Expel) and SubID names a listener registration (RemoveListener).
type Request struct {
	ID         uint64
	Op         Op
	Flags      RequestFlags
	Mode       SendMode
	Target     string
	Name       string
	Recipients []string
	Value      []byte
	SubID      uint64
}

// EncodeRequest encodes a Request to bytes.
func EncodeRequest(r *Request) []byte {
	e := NewEncoderWithCap(32 + len(r.Value))
	EncodeRequestTo(e, r)
	return e.Bytes()
}

// EncodeRequestTo encodes a Request using the provided encoder.
func EncodeRequestTo(e *Encoder, r *Request) {
	e.WriteUvarint(r.ID)
	e.WriteByte(byte(r.Op))
	e.WriteByte(byte(r.Flags))
	e.WriteByte(byte(r.Mode))
	e.WriteString(r.Target)
	e.WriteString(r.Name)
	e.WriteStrings(r.Recipients)
	e.WriteLenBytes(r.Value)
	e.WriteUvarint(r.SubID)
}

// DecodeRequest decodes a Request from bytes.
func DecodeRequest(data []byte) (*Request, error) {
	return DecodeRequestFrom(NewDecoder(data))
}

// DecodeRequestFrom decodes a Request from a decoder.
func DecodeRequestFrom(d *Decoder) (*Request, error) {
	r := &Request{}
	var err error

	if r.ID, err = d.ReadUvarint(); err != nil {
		return nil, err
	}
	op, err := d.ReadByte()
	if err != nil {
		return nil, err
	}
	r.Op = Op(op)
	flags, err := d.ReadByte()
	if err != nil {
		return nil, err
	}
	r.Flags = RequestFlags(flags)
	mode, err := d.ReadByte()
	if err != nil {
		return nil, err
	}
	r.Mode = SendMode(mode)
	if r.Target, err = d.ReadString(); err != nil {
		return nil, err
	}
	if r.Name, err = d.ReadString(); err != nil {
		return nil, err
	}
	if r.Recipients, err = d.ReadStrings(); err != nil {
		return nil, err
	}
	if r.Value, err = d.ReadLenBytes(); err != nil {
		return nil, err
	}
	if r.SubID, err = d.ReadUvarint(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reply answers exactly one Request, matched by ID.
type Reply struct {
	ID      uint64
	Code    ErrorCode // CodeOK on success
	Message string    // Error detail when Code != CodeOK
	SubID   uint64    // Registration id for listener/consumer requests
	Version uint64    // Byte array version for GetValue
	Value   []byte    // Byte array value for GetValue
	Names   []string  // Name lists for List* requests; the last writer for GetValue
	Options RequestFlags
}

// OK reports whether the reply signals success.
func (r *Reply) OK() bool {
	return r.Code == CodeOK
}

// EncodeReply encodes a Reply to bytes.
func EncodeReply(r *Reply) []byte {
	e := NewEncoderWithCap(16 + len(r.Value))
	EncodeReplyTo(e, r)
	return e.Bytes()
}

// EncodeReplyTo encodes a Reply using the provided encoder.
func EncodeReplyTo(e *Encoder, r *Reply) {
	e.WriteUvarint(r.ID)
	e.WriteUint16(uint16(r.Code))
	e.WriteString(r.Message)
	e.WriteUvarint(r.SubID)
	e.WriteUvarint(r.Version)
	e.WriteLenBytes(r.Value)
	e.WriteStrings(r.Names)
	e.WriteByte(byte(r.Options))
}

// DecodeReply decodes a Reply from bytes.
func DecodeReply(data []byte) (*Reply, error) {
	return DecodeReplyFrom(NewDecoder(data))
}

// DecodeReplyFrom decodes a Reply from a decoder.
func DecodeReplyFrom(d *Decoder) (*Reply, error) {
	r := &Reply{}
	var err error

	if r.ID, err = d.ReadUvarint(); err != nil {
		return nil, err
	}
	code, err := d.ReadUint16()
	if err != nil {
		return nil, err
	}
	r.Code = ErrorCode(code)
	if r.Message, err = d.ReadString(); err != nil {
		return nil, err
	}
	if r.SubID, err = d.ReadUvarint(); err != nil {
		return nil, err
	}
	if r.Version, err = d.ReadUvarint(); err != nil {
		return nil, err
	}
	if r.Value, err = d.ReadLenBytes(); err != nil {
		return nil, err
	}
	if r.Names, err = d.ReadStrings(); err != nil {
		return nil, err
	}
	opts, err := d.ReadByte()
	if err != nil {
		return nil, err
	}
	r.Options = RequestFlags(opts)
	return r, nil
}

// NewReplyError creates a failed Reply for the given request ID.
func NewReplyError(id uint64, code ErrorCode, message string) *Reply {
	return &Reply{ID: id, Code: code, Message: message}
}
