package session

import (
	"bytes"
	"context"
	"errors"
	"slices"

	"github.com/vango-dev/huddle/pkg/dispatch"
)

// Channel is an ordered multicast message bus scoped to a session.
type Channel struct {
	s        *Session
	name     string
	reliable bool
	ordered  bool

	// guarded by s.mu
	members   []string
	consumers listenerSet[Data]
	listeners listenerSet[ChannelEvent]
	destroyed bool
}

func newChannel(s *Session, name string, opts ChannelOptions) *Channel {
	return &Channel{
		s:        s,
		name:     name,
		reliable: opts.Reliable,
		ordered:  opts.Ordered,
	}
}

// Name returns the channel name.
func (ch *Channel) Name() string { return ch.name }

// Reliable reports whether the channel never drops messages.
func (ch *Channel) Reliable() bool { return ch.reliable }

// Ordered reports whether high priority sends keep each sender's order.
func (ch *Channel) Ordered() bool { return ch.ordered }

// Session returns the owning session.
func (ch *Channel) Session() *Session { return ch.s }

func (ch *Channel) queueOptions() dispatch.Options {
	opts := dispatch.Options{Ordered: ch.ordered}
	if !ch.reliable {
		opts.Limit = ch.s.manager.config.UnreliableQueueLimit
	}
	return opts
}

// ClientNames returns the clients joined to the channel in join order.
func (ch *Channel) ClientNames() []string {
	ch.s.mu.Lock()
	defer ch.s.mu.Unlock()
	return slices.Clone(ch.members)
}

// Join adds c to the channel. Joining twice is a no-op.
func (ch *Channel) Join(c Client) error {
	ch.s.mu.Lock()
	defer ch.s.mu.Unlock()
	if err := ch.checkLocked(c); err != nil {
		return opErr("join channel", ch.name, err)
	}
	ch.joinLocked(c.Name())
	return nil
}

func (ch *Channel) joinLocked(name string) {
	if slices.Contains(ch.members, name) {
		return
	}
	ch.members = append(ch.members, name)
	ch.listeners.emit(ChannelEvent{Kind: ChannelJoined, Channel: ch.name, Client: name})
}

// Leave removes c from the channel and deregisters its consumers. Blocked
// Inbox.Receive calls for c return ErrClosed. Leaving a channel the client
// has not joined is a no-op.
func (ch *Channel) Leave(c Client) error {
	if c == nil {
		return nil
	}
	ch.s.mu.Lock()
	defer ch.s.mu.Unlock()
	if ch.destroyed {
		return nil
	}
	ch.leaveLocked(c.Name())
	return nil
}

func (ch *Channel) leaveLocked(name string) {
	for _, sub := range ch.consumers.removeClient(name) {
		ch.listeners.emit(ChannelEvent{Kind: ConsumerRemoved, Channel: ch.name, Client: sub.client})
	}
	if !slices.Contains(ch.members, name) {
		return
	}
	ch.members = slices.DeleteFunc(ch.members, func(m string) bool { return m == name })
	ch.listeners.emit(ChannelEvent{Kind: ChannelLeft, Channel: ch.name, Client: name})
}

// AddConsumer registers fn to receive every later message addressed to c.
// The client joins the channel if it has not already.
func (ch *Channel) AddConsumer(c Client, fn Consumer) (ListenerID, error) {
	ch.s.mu.Lock()
	defer ch.s.mu.Unlock()
	if err := ch.checkLocked(c); err != nil {
		return 0, opErr("add consumer", ch.name, err)
	}
	ch.joinLocked(c.Name())
	id := ch.consumers.add(c.Name(), fn, ch.queueOptions(), ch.s.logger, &ch.s.workers)
	ch.listeners.emit(ChannelEvent{Kind: ConsumerAdded, Channel: ch.name, Client: c.Name()})
	return id, nil
}

// RemoveConsumer deregisters a consumer or inbox. Pending messages for it
// are discarded.
func (ch *Channel) RemoveConsumer(id ListenerID) error {
	ch.s.mu.Lock()
	defer ch.s.mu.Unlock()
	sub, ok := ch.consumers.remove(id)
	if !ok {
		return opErr("remove consumer", ch.name, ErrNoSuchConsumer)
	}
	ch.listeners.emit(ChannelEvent{Kind: ConsumerRemoved, Channel: ch.name, Client: sub.client})
	return nil
}

// NewInbox registers a pull-style consumer for c.
func (ch *Channel) NewInbox(c Client) (*Inbox, error) {
	ch.s.mu.Lock()
	defer ch.s.mu.Unlock()
	if err := ch.checkLocked(c); err != nil {
		return nil, opErr("new inbox", ch.name, err)
	}
	ch.joinLocked(c.Name())
	sub := ch.consumers.addQueue(c.Name(), ch.queueOptions())
	ch.listeners.emit(ChannelEvent{Kind: ConsumerAdded, Channel: ch.name, Client: c.Name()})
	return &Inbox{ch: ch, id: sub.id, queue: sub.queue}, nil
}

// AddChannelListener registers l for membership events on the channel.
func (ch *Channel) AddChannelListener(l ChannelListener) (ListenerID, error) {
	ch.s.mu.Lock()
	defer ch.s.mu.Unlock()
	if ch.destroyed {
		return 0, opErr("add channel listener", ch.name, ErrNoSuchChannel)
	}
	return ch.listeners.add("", l, dispatch.Options{}, ch.s.logger, &ch.s.workers), nil
}

// RemoveChannelListener deregisters a channel listener.
func (ch *Channel) RemoveChannelListener(id ListenerID) error {
	ch.s.mu.Lock()
	defer ch.s.mu.Unlock()
	if _, ok := ch.listeners.remove(id); !ok {
		return opErr("remove channel listener", ch.name, ErrNoSuchConsumer)
	}
	return nil
}

// Invite notifies channel listeners that by invited target to the channel.
// The target must be a session member.
func (ch *Channel) Invite(by Client, target string) error {
	ch.s.mu.Lock()
	defer ch.s.mu.Unlock()
	if err := ch.checkLocked(by); err != nil {
		return opErr("invite", ch.name, err)
	}
	if !ch.s.isMemberLocked(target) {
		return opErr("invite", ch.name, ErrNoSuchClient)
	}
	ch.listeners.emit(ChannelEvent{Kind: ChannelInvited, Channel: ch.name, Client: target, By: by.Name()})
	return nil
}

// Expel removes target from the channel on behalf of by.
func (ch *Channel) Expel(by Client, target string) error {
	ch.s.mu.Lock()
	defer ch.s.mu.Unlock()
	if err := ch.checkLocked(by); err != nil {
		return opErr("expel", ch.name, err)
	}
	if !slices.Contains(ch.members, target) {
		return opErr("expel", ch.name, ErrNotJoined)
	}
	ch.listeners.emit(ChannelEvent{Kind: ChannelExpelled, Channel: ch.name, Client: target, By: by.Name()})
	ch.leaveLocked(target)
	return nil
}

// SendToAll delivers payload to every consumer on the channel, including
// the sender's own.
func (ch *Channel) SendToAll(sender Client, p Priority, payload []byte) error {
	return ch.send("send to all", sender, p, payload, func(string) bool { return true })
}

// SendToOthers delivers payload to every consumer except the sender's.
func (ch *Channel) SendToOthers(sender Client, p Priority, payload []byte) error {
	name := clientName(sender)
	return ch.send("send to others", sender, p, payload, func(c string) bool { return c != name })
}

// SendToClient delivers payload to the consumers of one client. A recipient
// without consumers is skipped without error.
func (ch *Channel) SendToClient(sender Client, to string, p Priority, payload []byte) error {
	return ch.send("send to client", sender, p, payload, func(c string) bool { return c == to })
}

// SendToClients delivers payload to the consumers of each named client.
func (ch *Channel) SendToClients(sender Client, to []string, p Priority, payload []byte) error {
	return ch.send("send to clients", sender, p, payload, func(c string) bool { return slices.Contains(to, c) })
}

func (ch *Channel) send(op string, sender Client, p Priority, payload []byte, match func(string) bool) error {
	ch.s.mu.Lock()
	defer ch.s.mu.Unlock()
	if err := ch.checkLocked(sender); err != nil {
		return opErr(op, ch.name, err)
	}

	data := Data{
		Channel:  ch.name,
		Sender:   sender.Name(),
		Priority: p,
		Payload:  bytes.Clone(payload),
	}
	lane := dispatch.LaneNormal
	if p == PriorityHigh {
		lane = dispatch.LaneHigh
	}
	for _, sub := range ch.consumers.subs {
		if !match(sub.client) {
			continue
		}
		sub.queue.Push(dispatch.Item[Data]{Value: data, Lane: lane, Group: data.Sender})
	}
	return nil
}

// destroyLocked closes every consumer and listener queue. Pending messages
// are still delivered; inboxes then return ErrClosed.
func (ch *Channel) destroyLocked() {
	ch.destroyed = true
	ch.members = nil
	ch.consumers.closeAll()
	ch.listeners.closeAll()
}

func (ch *Channel) checkLocked(c Client) error {
	if ch.destroyed {
		return ErrNoSuchChannel
	}
	return ch.s.checkMemberLocked(c)
}

// Inbox is a pull-style consumer: messages addressed to its client queue up
// until Receive is called.
type Inbox struct {
	ch    *Channel
	id    ListenerID
	queue *dispatch.Queue[Data]
}

// ID returns the consumer id of the inbox.
func (in *Inbox) ID() ListenerID { return in.id }

// Receive blocks until a message arrives, ctx is done, or the inbox is
// closed by Leave, Close, or channel destruction (ErrClosed).
func (in *Inbox) Receive(ctx context.Context) (Data, error) {
	d, err := in.queue.Pop(ctx)
	if errors.Is(err, dispatch.ErrClosed) {
		return Data{}, ErrClosed
	}
	return d, err
}

// Len returns the number of messages waiting.
func (in *Inbox) Len() int {
	return in.queue.Len()
}

// Close deregisters the inbox. Blocked Receive calls return ErrClosed.
func (in *Inbox) Close() {
	_ = in.ch.RemoveConsumer(in.id)
	in.queue.Discard()
}

func clientName(c Client) string {
	if c == nil {
		return ""
	}
	return c.Name()
}
