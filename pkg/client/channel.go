package client

import (
	"context"
	"errors"

	"github.com/vango-dev/huddle/pkg/dispatch"
	"github.com/vango-dev/huddle/pkg/protocol"
	"github.com/vango-dev/huddle/pkg/session"
)

// Channel is a remote channel. Messages sent by this client are delivered
// by the server in the order they were sent.
type Channel struct {
	s        *Session
	name     string
	reliable bool
	ordered  bool
}

// Name returns the channel name.
func (ch *Channel) Name() string { return ch.name }

// Reliable reports whether the channel never drops messages.
func (ch *Channel) Reliable() bool { return ch.reliable }

// Ordered reports whether high priority keeps per-sender order.
func (ch *Channel) Ordered() bool { return ch.ordered }

// Session returns the owning session.
func (ch *Channel) Session() *Session { return ch.s }

func (ch *Channel) do(ctx context.Context, op string, req *protocol.Request) (*protocol.Reply, error) {
	req.Target = ch.name
	return ch.s.do(ctx, op, ch.name, req)
}

// Join joins the channel. Joining twice is a no-op.
func (ch *Channel) Join(ctx context.Context) error {
	_, err := ch.do(ctx, "join channel", &protocol.Request{Op: protocol.OpJoinChannel})
	return err
}

// Leave leaves the channel and removes this client's consumers.
func (ch *Channel) Leave(ctx context.Context) error {
	_, err := ch.do(ctx, "leave channel", &protocol.Request{Op: protocol.OpLeaveChannel})
	return err
}

// ClientNames returns the channel members in join order.
func (ch *Channel) ClientNames(ctx context.Context) ([]string, error) {
	reply, err := ch.do(ctx, "list channel clients", &protocol.Request{Op: protocol.OpListChannelClients})
	if err != nil {
		return nil, err
	}
	return reply.Names, nil
}

// AddConsumer registers fn for messages addressed to this client.
func (ch *Channel) AddConsumer(ctx context.Context, fn session.Consumer) (session.ListenerID, error) {
	return ch.s.listen(ctx, "add consumer", ch.name,
		&protocol.Request{Op: protocol.OpAddConsumer, Target: ch.name},
		func(ev event) { fn(toData(ev)) })
}

// RemoveConsumer removes a consumer added by AddConsumer.
func (ch *Channel) RemoveConsumer(ctx context.Context, id session.ListenerID) error {
	return ch.s.unlisten(ctx, ch.name, id)
}

// NewInbox registers a pull-style consumer.
func (ch *Channel) NewInbox(ctx context.Context) (*Inbox, error) {
	sub, err := ch.s.conn.subscribe(nil)
	if err != nil {
		return nil, &session.OpError{Op: "new inbox", Resource: ch.name, Err: err}
	}
	req := &protocol.Request{Op: protocol.OpAddConsumer, SubID: sub.id}
	if _, err := ch.do(ctx, "new inbox", req); err != nil {
		ch.s.conn.unsubscribe(sub.id)
		return nil, err
	}
	return &Inbox{ch: ch, sub: sub}, nil
}

// AddChannelListener registers l for membership changes on the channel.
func (ch *Channel) AddChannelListener(ctx context.Context, l session.ChannelListener) (session.ListenerID, error) {
	return ch.s.listen(ctx, "add channel listener", ch.name,
		&protocol.Request{Op: protocol.OpAddChannelListener, Target: ch.name},
		func(ev event) { l(toChannelEvent(ev)) })
}

// RemoveChannelListener removes a listener added by AddChannelListener.
func (ch *Channel) RemoveChannelListener(ctx context.Context, id session.ListenerID) error {
	return ch.s.unlisten(ctx, ch.name, id)
}

// Invite notifies target that it is invited to the channel.
func (ch *Channel) Invite(ctx context.Context, target string) error {
	_, err := ch.do(ctx, "invite", &protocol.Request{Op: protocol.OpInvite, Name: target})
	return err
}

// Expel removes target from the channel.
func (ch *Channel) Expel(ctx context.Context, target string) error {
	_, err := ch.do(ctx, "expel", &protocol.Request{Op: protocol.OpExpel, Name: target})
	return err
}

// SendToAll delivers payload to every consumer on the channel, including
// the sender's own.
func (ch *Channel) SendToAll(ctx context.Context, p session.Priority, payload []byte) error {
	return ch.send(ctx, protocol.SendAll, nil, p, payload)
}

// SendToOthers delivers payload to every consumer except the sender's.
func (ch *Channel) SendToOthers(ctx context.Context, p session.Priority, payload []byte) error {
	return ch.send(ctx, protocol.SendOthers, nil, p, payload)
}

// SendToClient delivers payload to the consumers of one client.
func (ch *Channel) SendToClient(ctx context.Context, to string, p session.Priority, payload []byte) error {
	return ch.send(ctx, protocol.SendClients, []string{to}, p, payload)
}

// SendToClients delivers payload to the consumers of the listed clients.
func (ch *Channel) SendToClients(ctx context.Context, to []string, p session.Priority, payload []byte) error {
	return ch.send(ctx, protocol.SendClients, to, p, payload)
}

func (ch *Channel) send(ctx context.Context, mode protocol.SendMode, to []string, p session.Priority, payload []byte) error {
	var flags protocol.RequestFlags
	if p == session.PriorityHigh {
		flags = protocol.ReqHigh
	}
	_, err := ch.do(ctx, "send", &protocol.Request{
		Op:         protocol.OpSend,
		Flags:      flags,
		Mode:       mode,
		Recipients: to,
		Value:      payload,
	})
	return err
}

// Inbox is a pull-style remote consumer.
type Inbox struct {
	ch  *Channel
	sub *subscription
}

// ID returns the consumer id of the inbox.
func (in *Inbox) ID() session.ListenerID { return session.ListenerID(in.sub.id) }

// Receive blocks until a message arrives, ctx is done, or the inbox is
// closed by Close or the connection ending (ErrClosed).
func (in *Inbox) Receive(ctx context.Context) (session.Data, error) {
	ev, err := in.sub.queue.Pop(ctx)
	if errors.Is(err, dispatch.ErrClosed) {
		return session.Data{}, session.ErrClosed
	}
	if err != nil {
		return session.Data{}, err
	}
	return toData(ev), nil
}

// Len returns the number of messages waiting.
func (in *Inbox) Len() int {
	return in.sub.queue.Len()
}

// Close deregisters the inbox. Blocked Receive calls return ErrClosed.
func (in *Inbox) Close(ctx context.Context) error {
	return in.ch.RemoveConsumer(ctx, in.ID())
}

func toData(ev event) session.Data {
	d := session.Data{Channel: ev.Resource, Sender: ev.Client, Payload: ev.Payload}
	if ev.flags&protocol.FlagPriority != 0 {
		d.Priority = session.PriorityHigh
	}
	return d
}

func toChannelEvent(ev event) session.ChannelEvent {
	e := session.ChannelEvent{Channel: ev.Resource, Client: ev.Client, By: string(ev.Payload)}
	switch ev.Kind {
	case protocol.EventChannelJoined:
		e.Kind = session.ChannelJoined
	case protocol.EventChannelLeft:
		e.Kind = session.ChannelLeft
	case protocol.EventConsumerAdded:
		e.Kind = session.ConsumerAdded
	case protocol.EventConsumerRemoved:
		e.Kind = session.ConsumerRemoved
	case protocol.EventChannelInvited:
		e.Kind = session.ChannelInvited
	case protocol.EventChannelExpelled:
		e.Kind = session.ChannelExpelled
	}
	return e
}
