package session

import (
	"bytes"
	"slices"

	"github.com/vango-dev/huddle/pkg/dispatch"
)

// valueKey coalesces pending ValueChanged events per listener.
const valueKey = "value"

// ByteArray is a named, last-writer-wins shared value scoped to a session.
type ByteArray struct {
	s    *Session
	name string

	// guarded by s.mu
	value     []byte
	version   uint64
	writer    string
	members   []string
	listeners listenerSet[ByteArrayEvent]
	destroyed bool
}

// Snapshot is a consistent read of a byte array.
type Snapshot struct {
	Value   []byte // nil until the first SetValue
	Version uint64 // 0 until the first SetValue
	Writer  string // Client of the last SetValue
}

func newByteArray(s *Session, name string) *ByteArray {
	return &ByteArray{s: s, name: name}
}

// Name returns the byte array name.
func (ba *ByteArray) Name() string { return ba.name }

// Session returns the owning session.
func (ba *ByteArray) Session() *Session { return ba.s }

// SetValue replaces the value with a copy of value and notifies every
// listener. Concurrent calls are serialized; the last to complete wins.
func (ba *ByteArray) SetValue(c Client, value []byte) error {
	ba.s.mu.Lock()
	defer ba.s.mu.Unlock()
	if err := ba.checkLocked(c); err != nil {
		return opErr("set value", ba.name, err)
	}

	v := bytes.Clone(value)
	if v == nil {
		v = []byte{}
	}
	ba.value = v
	ba.version++
	ba.writer = c.Name()
	ba.listeners.emitKeyed(ByteArrayEvent{
		Kind:      ValueChanged,
		ByteArray: ba.name,
		Client:    ba.writer,
		Value:     v,
		Version:   ba.version,
	}, valueKey)
	return nil
}

// Value returns a copy of the current value. It fails with
// ErrNoSuchByteArray once the byte array has been destroyed; callers should
// skip the current cycle.
func (ba *ByteArray) Value() ([]byte, error) {
	snap, err := ba.Snapshot()
	if err != nil {
		return nil, err
	}
	return snap.Value, nil
}

// Snapshot returns the current value, version and writer.
func (ba *ByteArray) Snapshot() (Snapshot, error) {
	ba.s.mu.Lock()
	defer ba.s.mu.Unlock()
	if ba.destroyed {
		return Snapshot{}, opErr("get value", ba.name, ErrNoSuchByteArray)
	}
	return Snapshot{
		Value:   bytes.Clone(ba.value),
		Version: ba.version,
		Writer:  ba.writer,
	}, nil
}

// ClientNames returns the clients joined to the byte array in join order.
func (ba *ByteArray) ClientNames() []string {
	ba.s.mu.Lock()
	defer ba.s.mu.Unlock()
	return slices.Clone(ba.members)
}

// AddByteArrayListener registers l for value and membership events.
func (ba *ByteArray) AddByteArrayListener(l ByteArrayListener) (ListenerID, error) {
	ba.s.mu.Lock()
	defer ba.s.mu.Unlock()
	if ba.destroyed {
		return 0, opErr("add byte array listener", ba.name, ErrNoSuchByteArray)
	}
	return ba.listeners.add("", l, dispatch.Options{}, ba.s.logger, &ba.s.workers), nil
}

// RemoveByteArrayListener deregisters a listener. Its pending events are
// discarded.
func (ba *ByteArray) RemoveByteArrayListener(id ListenerID) error {
	ba.s.mu.Lock()
	defer ba.s.mu.Unlock()
	if _, ok := ba.listeners.remove(id); !ok {
		return opErr("remove byte array listener", ba.name, ErrNoSuchConsumer)
	}
	return nil
}

// Join adds c to the byte array's members.
func (ba *ByteArray) Join(c Client) error {
	ba.s.mu.Lock()
	defer ba.s.mu.Unlock()
	if err := ba.checkLocked(c); err != nil {
		return opErr("join byte array", ba.name, err)
	}
	ba.joinLocked(c.Name())
	return nil
}

func (ba *ByteArray) joinLocked(name string) {
	if slices.Contains(ba.members, name) {
		return
	}
	ba.members = append(ba.members, name)
	ba.listeners.emit(ByteArrayEvent{Kind: ByteArrayJoined, ByteArray: ba.name, Client: name})
}

// Leave removes c from the byte array's members. It is a no-op if c is not
// joined.
func (ba *ByteArray) Leave(c Client) error {
	if c == nil {
		return nil
	}
	ba.s.mu.Lock()
	defer ba.s.mu.Unlock()
	if ba.destroyed {
		return nil
	}
	ba.leaveLocked(c.Name())
	return nil
}

func (ba *ByteArray) leaveLocked(name string) {
	if !slices.Contains(ba.members, name) {
		return
	}
	ba.members = slices.DeleteFunc(ba.members, func(m string) bool { return m == name })
	ba.listeners.emit(ByteArrayEvent{Kind: ByteArrayLeft, ByteArray: ba.name, Client: name})
}

// Invite notifies listeners that by invited target to share the byte array.
func (ba *ByteArray) Invite(by Client, target string) error {
	ba.s.mu.Lock()
	defer ba.s.mu.Unlock()
	if err := ba.checkLocked(by); err != nil {
		return opErr("invite", ba.name, err)
	}
	if !ba.s.isMemberLocked(target) {
		return opErr("invite", ba.name, ErrNoSuchClient)
	}
	ba.listeners.emit(ByteArrayEvent{Kind: ByteArrayInvited, ByteArray: ba.name, Client: target, By: by.Name()})
	return nil
}

// Expel removes target from the byte array's members on behalf of by.
func (ba *ByteArray) Expel(by Client, target string) error {
	ba.s.mu.Lock()
	defer ba.s.mu.Unlock()
	if err := ba.checkLocked(by); err != nil {
		return opErr("expel", ba.name, err)
	}
	if !slices.Contains(ba.members, target) {
		return opErr("expel", ba.name, ErrNotJoined)
	}
	ba.listeners.emit(ByteArrayEvent{Kind: ByteArrayExpelled, ByteArray: ba.name, Client: target, By: by.Name()})
	ba.leaveLocked(target)
	return nil
}

func (ba *ByteArray) destroyLocked() {
	ba.destroyed = true
	ba.value = nil
	ba.members = nil
	ba.listeners.closeAll()
}

func (ba *ByteArray) checkLocked(c Client) error {
	if ba.destroyed {
		return ErrNoSuchByteArray
	}
	return ba.s.checkMemberLocked(c)
}
