package session

import (
	"strconv"
	"sync/atomic"
)

// ListenerID identifies a registered listener, consumer or inbox.
type ListenerID uint64

var lastListenerID atomic.Uint64

func nextListenerID() ListenerID {
	return ListenerID(lastListenerID.Add(1))
}

// Priority is the delivery class of a channel message.
type Priority uint8

const (
	PriorityNormal Priority = iota
	PriorityHigh
)

// String returns the string representation of the priority.
func (p Priority) String() string {
	if p == PriorityHigh {
		return "high"
	}
	return "normal"
}

// Data is one channel message. It is immutable once sent; consumers must
// not modify Payload.
type Data struct {
	Channel  string
	Sender   string
	Priority Priority
	Payload  []byte
}

// Consumer receives channel data.
type Consumer func(Data)

// SessionEventKind identifies a session event.
type SessionEventKind uint8

const (
	ClientJoined SessionEventKind = iota + 1
	ClientLeft
	ChannelCreated
	ChannelDestroyed
	ByteArrayCreated
	ByteArrayDestroyed
	SessionDestroyed
)

var sessionEventNames = [...]string{
	ClientJoined:       "ClientJoined",
	ClientLeft:         "ClientLeft",
	ChannelCreated:     "ChannelCreated",
	ChannelDestroyed:   "ChannelDestroyed",
	ByteArrayCreated:   "ByteArrayCreated",
	ByteArrayDestroyed: "ByteArrayDestroyed",
	SessionDestroyed:   "SessionDestroyed",
}

// String returns the string representation of the kind.
func (k SessionEventKind) String() string {
	if int(k) < len(sessionEventNames) && sessionEventNames[k] != "" {
		return sessionEventNames[k]
	}
	return "SessionEventKind(" + strconv.Itoa(int(k)) + ")"
}

// SessionEvent reports a membership or resource change in a session.
type SessionEvent struct {
	Kind     SessionEventKind
	Session  string
	Client   string // Client that joined, left, or caused the change
	Resource string // Channel or byte array name, if any
}

// SessionListener receives session events.
type SessionListener func(SessionEvent)

// ChannelEventKind identifies a channel event.
type ChannelEventKind uint8

const (
	ChannelJoined ChannelEventKind = iota + 1
	ChannelLeft
	ConsumerAdded
	ConsumerRemoved
	ChannelInvited
	ChannelExpelled
)

var channelEventNames = [...]string{
	ChannelJoined:   "ChannelJoined",
	ChannelLeft:     "ChannelLeft",
	ConsumerAdded:   "ConsumerAdded",
	ConsumerRemoved: "ConsumerRemoved",
	ChannelInvited:  "ChannelInvited",
	ChannelExpelled: "ChannelExpelled",
}

// String returns the string representation of the kind.
func (k ChannelEventKind) String() string {
	if int(k) < len(channelEventNames) && channelEventNames[k] != "" {
		return channelEventNames[k]
	}
	return "ChannelEventKind(" + strconv.Itoa(int(k)) + ")"
}

// ChannelEvent reports a membership change on a channel.
type ChannelEvent struct {
	Kind    ChannelEventKind
	Channel string
	Client  string // Subject of the change
	By      string // Actor for invite/expel
}

// ChannelListener receives channel events.
type ChannelListener func(ChannelEvent)

// ByteArrayEventKind identifies a byte array event.
type ByteArrayEventKind uint8

const (
	ValueChanged ByteArrayEventKind = iota + 1
	ByteArrayJoined
	ByteArrayLeft
	ByteArrayInvited
	ByteArrayExpelled
)

var byteArrayEventNames = [...]string{
	ValueChanged:      "ValueChanged",
	ByteArrayJoined:   "ByteArrayJoined",
	ByteArrayLeft:     "ByteArrayLeft",
	ByteArrayInvited:  "ByteArrayInvited",
	ByteArrayExpelled: "ByteArrayExpelled",
}

// String returns the string representation of the kind.
func (k ByteArrayEventKind) String() string {
	if int(k) < len(byteArrayEventNames) && byteArrayEventNames[k] != "" {
		return byteArrayEventNames[k]
	}
	return "ByteArrayEventKind(" + strconv.Itoa(int(k)) + ")"
}

// ByteArrayEvent reports a value change or membership change on a byte
// array. Value and Version are set for ValueChanged only.
type ByteArrayEvent struct {
	Kind      ByteArrayEventKind
	ByteArray string
	Client    string // Setter for ValueChanged, subject otherwise
	By        string // Actor for invite/expel
	Value     []byte
	Version   uint64
}

// ByteArrayListener receives byte array events.
type ByteArrayListener func(ByteArrayEvent)
