package server

import (
	"context"
	"fmt"
	"strconv"

	"github.com/vango-dev/huddle/pkg/protocol"
	"github.com/vango-dev/huddle/pkg/session"
)

// handle performs one request on behalf of the connection's client.
func (c *Conn) handle(ctx context.Context, req *protocol.Request) (*protocol.Reply, error) {
	s, client := c.session, c.client
	reply := &protocol.Reply{}

	switch req.Op {
	case protocol.OpCreateChannel:
		ch, err := s.CreateChannel(client, req.Target, session.ChannelOptions{
			Create:   req.Flags.Has(protocol.ReqCreate),
			Join:     req.Flags.Has(protocol.ReqJoin),
			Reliable: req.Flags.Has(protocol.ReqReliable),
			Ordered:  req.Flags.Has(protocol.ReqOrdered),
		})
		if err != nil {
			return nil, err
		}
		if ch.Reliable() {
			reply.Options |= protocol.ReqReliable
		}
		if ch.Ordered() {
			reply.Options |= protocol.ReqOrdered
		}

	case protocol.OpCreateByteArray:
		ba, err := s.CreateByteArray(client, req.Target, session.ByteArrayOptions{
			Create: req.Flags.Has(protocol.ReqCreate),
			Join:   req.Flags.Has(protocol.ReqJoin),
		})
		if err != nil {
			return nil, err
		}
		snap, err := ba.Snapshot()
		if err != nil {
			return nil, err
		}
		setSnapshot(reply, snap)

	case protocol.OpListClients:
		reply.Names = s.ClientNames()

	case protocol.OpListChannels:
		reply.Names = s.ChannelNames()

	case protocol.OpListByteArrays:
		reply.Names = s.ByteArrayNames()

	case protocol.OpAddSessionListener:
		if err := c.checkSubID(req.SubID); err != nil {
			return nil, err
		}
		id, err := s.AddSessionListener(c.sessionListener(req.SubID))
		if err != nil {
			return nil, err
		}
		reply.SubID = c.track(req.SubID, id, s.RemoveSessionListener)

	case protocol.OpRemoveListener:
		if err := c.untrack(req.SubID); err != nil {
			return nil, err
		}

	case protocol.OpLeaveSession:
		if err := s.Leave(client); err != nil {
			return nil, err
		}
		c.leaving = true

	case protocol.OpCloseSession:
		if err := s.Close(client, req.Flags.Has(protocol.ReqForce)); err != nil {
			return nil, err
		}
		c.leaving = true

	case protocol.OpDestroyChannel:
		if err := s.DestroyChannel(client, req.Target); err != nil {
			return nil, err
		}

	case protocol.OpDestroyByteArray:
		if err := s.DestroyByteArray(client, req.Target); err != nil {
			return nil, err
		}

	case protocol.OpJoinChannel, protocol.OpLeaveChannel, protocol.OpAddConsumer,
		protocol.OpAddChannelListener, protocol.OpSend, protocol.OpListChannelClients:
		return c.handleChannel(req, reply)

	case protocol.OpJoinByteArray, protocol.OpLeaveByteArray, protocol.OpSetValue,
		protocol.OpGetValue, protocol.OpAddByteArrayListener:
		return c.handleByteArray(req, reply)

	case protocol.OpInvite, protocol.OpExpel:
		return c.handleMembership(req, reply)

	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownOp, req.Op)
	}
	return reply, nil
}

func (c *Conn) handleChannel(req *protocol.Request, reply *protocol.Reply) (*protocol.Reply, error) {
	if req.Op == protocol.OpListChannelClients && req.Flags.Has(protocol.ReqByteArray) {
		ba, err := c.session.ByteArray(req.Target)
		if err != nil {
			return nil, err
		}
		reply.Names = ba.ClientNames()
		return reply, nil
	}

	ch, err := c.session.Channel(req.Target)
	if err != nil {
		return nil, err
	}

	switch req.Op {
	case protocol.OpJoinChannel:
		err = ch.Join(c.client)

	case protocol.OpLeaveChannel:
		err = ch.Leave(c.client)

	case protocol.OpListChannelClients:
		reply.Names = ch.ClientNames()

	case protocol.OpAddConsumer:
		var id session.ListenerID
		if err = c.checkSubID(req.SubID); err != nil {
			break
		}
		id, err = ch.AddConsumer(c.client, c.consumer(req.SubID))
		if err == nil {
			reply.SubID = c.track(req.SubID, id, ch.RemoveConsumer)
		}

	case protocol.OpAddChannelListener:
		var id session.ListenerID
		if err = c.checkSubID(req.SubID); err != nil {
			break
		}
		id, err = ch.AddChannelListener(c.channelListener(req.SubID))
		if err == nil {
			reply.SubID = c.track(req.SubID, id, ch.RemoveChannelListener)
		}

	case protocol.OpSend:
		p := session.PriorityNormal
		if req.Flags.Has(protocol.ReqHigh) {
			p = session.PriorityHigh
		}
		switch req.Mode {
		case protocol.SendOthers:
			err = ch.SendToOthers(c.client, p, req.Value)
		case protocol.SendClients:
			err = ch.SendToClients(c.client, req.Recipients, p, req.Value)
		default:
			err = ch.SendToAll(c.client, p, req.Value)
		}
	}
	if err != nil {
		return nil, err
	}
	return reply, nil
}

func (c *Conn) handleByteArray(req *protocol.Request, reply *protocol.Reply) (*protocol.Reply, error) {
	ba, err := c.session.ByteArray(req.Target)
	if err != nil {
		return nil, err
	}

	switch req.Op {
	case protocol.OpJoinByteArray:
		err = ba.Join(c.client)

	case protocol.OpLeaveByteArray:
		err = ba.Leave(c.client)

	case protocol.OpSetValue:
		err = ba.SetValue(c.client, req.Value)

	case protocol.OpGetValue:
		var snap session.Snapshot
		snap, err = ba.Snapshot()
		setSnapshot(reply, snap)

	case protocol.OpAddByteArrayListener:
		var id session.ListenerID
		if err = c.checkSubID(req.SubID); err != nil {
			break
		}
		id, err = ba.AddByteArrayListener(c.byteArrayListener(req.SubID))
		if err == nil {
			reply.SubID = c.track(req.SubID, id, ba.RemoveByteArrayListener)
		}
	}
	if err != nil {
		return nil, err
	}
	return reply, nil
}

func (c *Conn) handleMembership(req *protocol.Request, reply *protocol.Reply) (*protocol.Reply, error) {
	type member interface {
		Invite(by session.Client, target string) error
		Expel(by session.Client, target string) error
	}

	var (
		m   member
		err error
	)
	if req.Flags.Has(protocol.ReqByteArray) {
		m, err = c.session.ByteArray(req.Target)
	} else {
		m, err = c.session.Channel(req.Target)
	}
	if err != nil {
		return nil, err
	}

	if req.Op == protocol.OpInvite {
		err = m.Invite(c.client, req.Name)
	} else {
		err = m.Expel(c.client, req.Name)
	}
	if err != nil {
		return nil, err
	}
	return reply, nil
}

// checkSubID validates a client-chosen subscription id. Clients pick the
// id so they can route events that arrive before the reply.
func (c *Conn) checkSubID(subID uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if subID == 0 {
		return fmt.Errorf("%w: missing subscription id", ErrInvalidRequest)
	}
	if _, ok := c.subs[subID]; ok {
		return fmt.Errorf("%w: subscription %d already registered", ErrInvalidRequest, subID)
	}
	return nil
}

// track records a registration so it is removed when the connection closes.
func (c *Conn) track(subID uint64, id session.ListenerID, remove func(session.ListenerID) error) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.subs == nil {
		// Closed while registering.
		go remove(id)
		return subID
	}
	c.subs[subID] = func() error { return remove(id) }
	return subID
}

func (c *Conn) untrack(subID uint64) error {
	c.mu.Lock()
	remove, ok := c.subs[subID]
	delete(c.subs, subID)
	c.mu.Unlock()
	if !ok {
		return session.ErrNoSuchConsumer
	}
	return remove()
}

var sessionEventKinds = map[session.SessionEventKind]protocol.EventKind{
	session.ClientJoined:       protocol.EventClientJoined,
	session.ClientLeft:         protocol.EventClientLeft,
	session.ChannelCreated:     protocol.EventChannelCreated,
	session.ChannelDestroyed:   protocol.EventChannelDestroyed,
	session.ByteArrayCreated:   protocol.EventByteArrayCreated,
	session.ByteArrayDestroyed: protocol.EventByteArrayDestroyed,
	session.SessionDestroyed:   protocol.EventSessionDestroyed,
}

var channelEventKinds = map[session.ChannelEventKind]protocol.EventKind{
	session.ChannelJoined:   protocol.EventChannelJoined,
	session.ChannelLeft:     protocol.EventChannelLeft,
	session.ConsumerAdded:   protocol.EventConsumerAdded,
	session.ConsumerRemoved: protocol.EventConsumerRemoved,
	session.ChannelInvited:  protocol.EventChannelInvited,
	session.ChannelExpelled: protocol.EventChannelExpelled,
}

var byteArrayEventKinds = map[session.ByteArrayEventKind]protocol.EventKind{
	session.ValueChanged:      protocol.EventValueChanged,
	session.ByteArrayJoined:   protocol.EventByteArrayJoined,
	session.ByteArrayLeft:     protocol.EventByteArrayLeft,
	session.ByteArrayInvited:  protocol.EventByteArrayInvited,
	session.ByteArrayExpelled: protocol.EventByteArrayExpelled,
}

// The adapters below run on the core's per-listener workers and forward
// events to the connection's outbound queue.

func (c *Conn) consumer(subID uint64) session.Consumer {
	return func(d session.Data) {
		var flags protocol.FrameFlags
		if d.Priority == session.PriorityHigh {
			flags = protocol.FlagPriority
		}
		ev := &protocol.Event{
			SubID:    subID,
			Kind:     protocol.EventData,
			Resource: d.Channel,
			Client:   d.Sender,
			Payload:  d.Payload,
		}
		c.push(protocol.NewFrameWithFlags(protocol.FrameEvent, flags, protocol.EncodeEvent(ev)), "")
	}
}

func (c *Conn) sessionListener(subID uint64) session.SessionListener {
	return func(e session.SessionEvent) {
		ev := &protocol.Event{
			SubID:    subID,
			Kind:     sessionEventKinds[e.Kind],
			Resource: e.Resource,
			Client:   e.Client,
		}
		if e.Kind == session.SessionDestroyed {
			ev.Resource = e.Session
		}
		c.push(protocol.NewFrame(protocol.FrameEvent, protocol.EncodeEvent(ev)), "")
	}
}

func (c *Conn) channelListener(subID uint64) session.ChannelListener {
	return func(e session.ChannelEvent) {
		ev := &protocol.Event{
			SubID:    subID,
			Kind:     channelEventKinds[e.Kind],
			Resource: e.Channel,
			Client:   e.Client,
			Payload:  byPayload(e.By),
		}
		c.push(protocol.NewFrame(protocol.FrameEvent, protocol.EncodeEvent(ev)), "")
	}
}

func (c *Conn) byteArrayListener(subID uint64) session.ByteArrayListener {
	return func(e session.ByteArrayEvent) {
		ev := &protocol.Event{
			SubID:    subID,
			Kind:     byteArrayEventKinds[e.Kind],
			Resource: e.ByteArray,
			Client:   e.Client,
			Version:  e.Version,
		}
		key := ""
		if e.Kind == session.ValueChanged {
			ev.Payload = e.Value
			key = "value:" + strconv.FormatUint(subID, 10)
		} else {
			ev.Payload = byPayload(e.By)
		}
		c.push(protocol.NewFrame(protocol.FrameEvent, protocol.EncodeEvent(ev)), key)
	}
}

// byPayload carries the acting client of invite/expel events.
func byPayload(by string) []byte {
	if by == "" {
		return nil
	}
	return []byte(by)
}

// setSnapshot copies a byte array snapshot into reply. The last writer, if
// any, travels as the single entry of Names.
func setSnapshot(reply *protocol.Reply, snap session.Snapshot) {
	reply.Value, reply.Version = snap.Value, snap.Version
	if snap.Writer != "" {
		reply.Names = []string{snap.Writer}
	}
}
