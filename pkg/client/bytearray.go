package client

import (
	"context"

	"github.com/vango-dev/huddle/pkg/protocol"
	"github.com/vango-dev/huddle/pkg/session"
)

// ByteArray is a remote shared value.
type ByteArray struct {
	s    *Session
	name string
}

// Name returns the byte array name.
func (ba *ByteArray) Name() string { return ba.name }

// Session returns the owning session.
func (ba *ByteArray) Session() *Session { return ba.s }

func (ba *ByteArray) do(ctx context.Context, op string, req *protocol.Request) (*protocol.Reply, error) {
	req.Target = ba.name
	return ba.s.do(ctx, op, ba.name, req)
}

// Join joins the byte array. Only members may set its value.
func (ba *ByteArray) Join(ctx context.Context) error {
	_, err := ba.do(ctx, "join byte array", &protocol.Request{Op: protocol.OpJoinByteArray})
	return err
}

// Leave leaves the byte array.
func (ba *ByteArray) Leave(ctx context.Context) error {
	_, err := ba.do(ctx, "leave byte array", &protocol.Request{Op: protocol.OpLeaveByteArray})
	return err
}

// SetValue replaces the value. Listeners are notified once the server has
// applied the change.
func (ba *ByteArray) SetValue(ctx context.Context, value []byte) error {
	_, err := ba.do(ctx, "set value", &protocol.Request{Op: protocol.OpSetValue, Value: value})
	return err
}

// Value returns the current value; nil before the first SetValue.
func (ba *ByteArray) Value(ctx context.Context) ([]byte, error) {
	snap, err := ba.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Value, nil
}

// Snapshot returns the current value with its version and last writer.
func (ba *ByteArray) Snapshot(ctx context.Context) (session.Snapshot, error) {
	reply, err := ba.do(ctx, "get value", &protocol.Request{Op: protocol.OpGetValue})
	if err != nil {
		return session.Snapshot{}, err
	}
	snap := session.Snapshot{Value: reply.Value, Version: reply.Version}
	if len(reply.Names) > 0 {
		snap.Writer = reply.Names[0]
	}
	return snap, nil
}

// ClientNames returns the byte array members in join order.
func (ba *ByteArray) ClientNames(ctx context.Context) ([]string, error) {
	reply, err := ba.do(ctx, "list byte array clients", &protocol.Request{
		Op: protocol.OpListChannelClients, Flags: protocol.ReqByteArray,
	})
	if err != nil {
		return nil, err
	}
	return reply.Names, nil
}

// AddByteArrayListener registers l for value and membership changes. A
// slow listener may skip intermediate values but never sees an older
// version after a newer one.
func (ba *ByteArray) AddByteArrayListener(ctx context.Context, l session.ByteArrayListener) (session.ListenerID, error) {
	return ba.s.listen(ctx, "add byte array listener", ba.name,
		&protocol.Request{Op: protocol.OpAddByteArrayListener, Target: ba.name},
		func(ev event) { l(toByteArrayEvent(ev)) })
}

// RemoveByteArrayListener removes a listener added by AddByteArrayListener.
func (ba *ByteArray) RemoveByteArrayListener(ctx context.Context, id session.ListenerID) error {
	return ba.s.unlisten(ctx, ba.name, id)
}

// Invite notifies target that it is invited to the byte array.
func (ba *ByteArray) Invite(ctx context.Context, target string) error {
	_, err := ba.do(ctx, "invite", &protocol.Request{Op: protocol.OpInvite, Flags: protocol.ReqByteArray, Name: target})
	return err
}

// Expel removes target from the byte array.
func (ba *ByteArray) Expel(ctx context.Context, target string) error {
	_, err := ba.do(ctx, "expel", &protocol.Request{Op: protocol.OpExpel, Flags: protocol.ReqByteArray, Name: target})
	return err
}

func toByteArrayEvent(ev event) session.ByteArrayEvent {
	e := session.ByteArrayEvent{ByteArray: ev.Resource, Client: ev.Client}
	switch ev.Kind {
	case protocol.EventValueChanged:
		e.Kind = session.ValueChanged
		e.Value = ev.Payload
		e.Version = ev.Version
		return e
	case protocol.EventByteArrayJoined:
		e.Kind = session.ByteArrayJoined
	case protocol.EventByteArrayLeft:
		e.Kind = session.ByteArrayLeft
	case protocol.EventByteArrayInvited:
		e.Kind = session.ByteArrayInvited
	case protocol.EventByteArrayExpelled:
		e.Kind = session.ByteArrayExpelled
	}
	e.By = string(ev.Payload)
	return e
}
