package payload

import (
	"errors"
	"fmt"

	"github.com/vango-dev/huddle/pkg/protocol"
)

// MessageType tags the family of a relay message.
type MessageType uint16

const (
	// TypeMIDI is a channel voice message for a shared instrument.
	TypeMIDI MessageType = 1
)

// Action selects the field layout of a MIDI message.
type Action uint16

const (
	ActionNoteOn        Action = 1 // channel, key, velocity
	ActionNoteOff       Action = 2 // channel, key, velocity
	ActionControlChange Action = 3 // channel, controller, value
	ActionProgramChange Action = 4 // channel, program
	ActionPitchBend     Action = 5 // channel, value
	ActionAllNotesOff   Action = 6 // channel
	ActionSustain       Action = 7 // channel, on
)

var (
	errUnknownType   = errors.New("payload: unknown message type")
	errUnknownAction = errors.New("payload: unknown action")
)

// String returns the action name.
func (a Action) String() string {
	switch a {
	case ActionNoteOn:
		return "NoteOn"
	case ActionNoteOff:
		return "NoteOff"
	case ActionControlChange:
		return "ControlChange"
	case ActionProgramChange:
		return "ProgramChange"
	case ActionPitchBend:
		return "PitchBend"
	case ActionAllNotesOff:
		return "AllNotesOff"
	case ActionSustain:
		return "Sustain"
	default:
		return fmt.Sprintf("Action(%d)", uint16(a))
	}
}

// MIDIMessage is a relayed MIDI event. Only the fields the action's layout
// names are encoded; the rest are zero after decoding.
type MIDIMessage struct {
	Action     Action
	Channel    int32
	Key        int32
	Velocity   int32
	Controller int32
	Value      int32
	Program    int32
	On         bool
}

// NoteOn returns a note-on message.
func NoteOn(channel, key, velocity int32) MIDIMessage {
	return MIDIMessage{Action: ActionNoteOn, Channel: channel, Key: key, Velocity: velocity}
}

// NoteOff returns a note-off message.
func NoteOff(channel, key, velocity int32) MIDIMessage {
	return MIDIMessage{Action: ActionNoteOff, Channel: channel, Key: key, Velocity: velocity}
}

// MarshalBinary encodes the type tag, action tag and the action's fields,
// all big-endian.
func (m MIDIMessage) MarshalBinary() ([]byte, error) {
	e := protocol.NewEncoderWithCap(20)
	e.WriteUint16(uint16(TypeMIDI))
	e.WriteUint16(uint16(m.Action))

	switch m.Action {
	case ActionNoteOn, ActionNoteOff:
		e.WriteInt32(m.Channel)
		e.WriteInt32(m.Key)
		e.WriteInt32(m.Velocity)
	case ActionControlChange:
		e.WriteInt32(m.Channel)
		e.WriteInt32(m.Controller)
		e.WriteInt32(m.Value)
	case ActionProgramChange:
		e.WriteInt32(m.Channel)
		e.WriteInt32(m.Program)
	case ActionPitchBend:
		e.WriteInt32(m.Channel)
		e.WriteInt32(m.Value)
	case ActionAllNotesOff:
		e.WriteInt32(m.Channel)
	case ActionSustain:
		e.WriteInt32(m.Channel)
		e.WriteBool(m.On)
	default:
		return nil, fmt.Errorf("%w: %s", errUnknownAction, m.Action)
	}
	return e.Bytes(), nil
}

// UnmarshalBinary decodes a message written by MarshalBinary.
func (m *MIDIMessage) UnmarshalBinary(data []byte) error {
	d := protocol.NewDecoder(data)
	typ, err := d.ReadUint16()
	if err != nil {
		return decodeError("midi type", err)
	}
	if MessageType(typ) != TypeMIDI {
		return decodeError("midi type", fmt.Errorf("%w: %d", errUnknownType, typ))
	}
	action, err := d.ReadUint16()
	if err != nil {
		return decodeError("midi action", err)
	}

	out := MIDIMessage{Action: Action(action)}
	var fields []*int32
	switch out.Action {
	case ActionNoteOn, ActionNoteOff:
		fields = []*int32{&out.Channel, &out.Key, &out.Velocity}
	case ActionControlChange:
		fields = []*int32{&out.Channel, &out.Controller, &out.Value}
	case ActionProgramChange:
		fields = []*int32{&out.Channel, &out.Program}
	case ActionPitchBend:
		fields = []*int32{&out.Channel, &out.Value}
	case ActionAllNotesOff, ActionSustain:
		fields = []*int32{&out.Channel}
	default:
		return decodeError("midi action", fmt.Errorf("%w: %s", errUnknownAction, out.Action))
	}
	for _, f := range fields {
		if *f, err = d.ReadInt32(); err != nil {
			return decodeError("midi "+out.Action.String(), err)
		}
	}
	if out.Action == ActionSustain {
		if out.On, err = d.ReadBool(); err != nil {
			return decodeError("midi Sustain", err)
		}
	}
	if !d.EOF() {
		return decodeError("midi "+out.Action.String(), errTrailing(d.Remaining()))
	}
	*m = out
	return nil
}

// DecodeMIDI decodes a relay message.
func DecodeMIDI(data []byte) (MIDIMessage, error) {
	var m MIDIMessage
	err := m.UnmarshalBinary(data)
	return m, err
}

func errTrailing(n int) error {
	return fmt.Errorf("payload: %d trailing bytes", n)
}
