package protocol

// EventKind identifies a server-pushed event.
//
// Kinds are grouped by the resource that emits them: 0x01 is channel data,
// 0x1x session events, 0x2x channel events and 0x3x byte array events.
type EventKind uint8

const (
	EventData EventKind = 0x01 // Channel data for a consumer

	EventClientJoined       EventKind = 0x10
	EventClientLeft         EventKind = 0x11
	EventChannelCreated     EventKind = 0x12
	EventChannelDestroyed   EventKind = 0x13
	EventByteArrayCreated   EventKind = 0x14
	EventByteArrayDestroyed EventKind = 0x15
	EventSessionDestroyed   EventKind = 0x16

	EventChannelJoined   EventKind = 0x20
	EventChannelLeft     EventKind = 0x21
	EventConsumerAdded   EventKind = 0x22
	EventConsumerRemoved EventKind = 0x23
	EventChannelInvited  EventKind = 0x24
	EventChannelExpelled EventKind = 0x25

	EventValueChanged      EventKind = 0x30
	EventByteArrayJoined   EventKind = 0x31
	EventByteArrayLeft     EventKind = 0x32
	EventByteArrayInvited  EventKind = 0x33
	EventByteArrayExpelled EventKind = 0x34
)

// String returns the string representation of the event kind.
func (k EventKind) String() string {
	switch k {
	case EventData:
		return "Data"
	case EventClientJoined:
		return "ClientJoined"
	case EventClientLeft:
		return "ClientLeft"
	case EventChannelCreated:
		return "ChannelCreated"
	case EventChannelDestroyed:
		return "ChannelDestroyed"
	case EventByteArrayCreated:
		return "ByteArrayCreated"
	case EventByteArrayDestroyed:
		return "ByteArrayDestroyed"
	case EventSessionDestroyed:
		return "SessionDestroyed"
	case EventChannelJoined:
		return "ChannelJoined"
	case EventChannelLeft:
		return "ChannelLeft"
	case EventConsumerAdded:
		return "ConsumerAdded"
	case EventConsumerRemoved:
		return "ConsumerRemoved"
	case EventChannelInvited:
		return "ChannelInvited"
	case EventChannelExpelled:
		return "ChannelExpelled"
	case EventValueChanged:
		return "ValueChanged"
	case EventByteArrayJoined:
		return "ByteArrayJoined"
	case EventByteArrayLeft:
		return "ByteArrayLeft"
	case EventByteArrayInvited:
		return "ByteArrayInvited"
	case EventByteArrayExpelled:
		return "ByteArrayExpelled"
	default:
		return "Unknown"
	}
}

// Event is pushed by the server to a subscription.
type Event struct {
	SubID    uint64    // Subscription the event belongs to
	Kind     EventKind // What happened
	Resource string    // Channel, byte array or session name
	Client   string    // Sender for data, subject client for membership events
	Version  uint64    // Byte array version for EventValueChanged
	Payload  []byte    // Channel data or byte array value
}

// EncodeEvent encodes an Event to bytes.
func EncodeEvent(ev *Event) []byte {
	e := NewEncoderWithCap(16 + len(ev.Payload))
	EncodeEventTo(e, ev)
	return e.Bytes()
}

// EncodeEventTo encodes an Event using the provided encoder.
func EncodeEventTo(e *Encoder, ev *Event) {
	e.WriteUvarint(ev.SubID)
	e.WriteByte(byte(ev.Kind))
	e.WriteString(ev.Resource)
	e.WriteString(ev.Client)
	e.WriteUvarint(ev.Version)
	e.WriteLenBytes(ev.Payload)
}

// DecodeEvent decodes an Event from bytes.
func DecodeEvent(data []byte) (*Event, error) {
	return DecodeEventFrom(NewDecoder(data))
}

// DecodeEventFrom decodes an Event from a decoder.
func DecodeEventFrom(d *Decoder) (*Event, error) {
	ev := &Event{}
	var err error

	if ev.SubID, err = d.ReadUvarint(); err != nil {
		return nil, err
	}
	kind, err := d.ReadByte()
	if err != nil {
		return nil, err
	}
	ev.Kind = EventKind(kind)
	if ev.Resource, err = d.ReadString(); err != nil {
		return nil, err
	}
	if ev.Client, err = d.ReadString(); err != nil {
		return nil, err
	}
	if ev.Version, err = d.ReadUvarint(); err != nil {
		return nil, err
	}
	if ev.Payload, err = d.ReadLenBytes(); err != nil {
		return nil, err
	}
	return ev, nil
}
