package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/vango-dev/huddle/pkg/naming"
	"github.com/vango-dev/huddle/pkg/protocol"
	"github.com/vango-dev/huddle/pkg/session"
)

// Session is a remote session joined through a rendezvous endpoint. Every
// operation acts on behalf of the client that joined.
type Session struct {
	url     naming.URL
	id      string
	client  session.Client
	creator bool
	conn    *conn

	mu        sync.Mutex
	channels  map[string]*Channel
	arrays    map[string]*ByteArray
	destroyed bool
	done      chan struct{}
}

func newSession(u naming.URL, hello *protocol.ServerHello, c session.Client, cn *conn) *Session {
	s := &Session{
		url:      u,
		id:       hello.SessionID,
		client:   c,
		creator:  hello.Creator,
		conn:     cn,
		channels: make(map[string]*Channel),
		arrays:   make(map[string]*ByteArray),
		done:     make(chan struct{}),
	}
	cn.onClose = func(reason protocol.CloseReason) {
		s.mu.Lock()
		s.destroyed = reason == protocol.CloseSessionDestroyed
		s.mu.Unlock()
		close(s.done)
	}
	return s
}

// Name returns the session name.
func (s *Session) Name() string { return s.url.Session }

// Type returns the transport type tag.
func (s *Session) Type() string { return s.url.Type }

// ID returns the unique id of the session instance.
func (s *Session) ID() string { return s.id }

// URL returns the session URL.
func (s *Session) URL() naming.URL { return s.url }

// Client returns the client that joined.
func (s *Session) Client() session.Client { return s.client }

// Creator reports whether this client created the session.
func (s *Session) Creator() bool { return s.creator }

// Done is closed when the connection to the session ends.
func (s *Session) Done() <-chan struct{} { return s.done }

// Destroyed reports whether the session was destroyed while this client
// was joined.
func (s *Session) Destroyed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.destroyed
}

func (s *Session) do(ctx context.Context, op string, resource string, req *protocol.Request) (*protocol.Reply, error) {
	reply, err := s.conn.roundTrip(ctx, req)
	if err != nil {
		return reply, &session.OpError{Op: op, Resource: resource, Err: err}
	}
	return reply, nil
}

// ClientNames returns the joined clients in join order.
func (s *Session) ClientNames(ctx context.Context) ([]string, error) {
	reply, err := s.do(ctx, "list clients", s.Name(), &protocol.Request{Op: protocol.OpListClients})
	if err != nil {
		return nil, err
	}
	return reply.Names, nil
}

// ChannelNames returns the channel names in sorted order.
func (s *Session) ChannelNames(ctx context.Context) ([]string, error) {
	reply, err := s.do(ctx, "list channels", s.Name(), &protocol.Request{Op: protocol.OpListChannels})
	if err != nil {
		return nil, err
	}
	return reply.Names, nil
}

// ByteArrayNames returns the byte array names in sorted order.
func (s *Session) ByteArrayNames(ctx context.Context) ([]string, error) {
	reply, err := s.do(ctx, "list byte arrays", s.Name(), &protocol.Request{Op: protocol.OpListByteArrays})
	if err != nil {
		return nil, err
	}
	return reply.Names, nil
}

// CreateChannel looks up the named channel, creating and joining it as
// opts allow.
func (s *Session) CreateChannel(ctx context.Context, name string, opts session.ChannelOptions) (*Channel, error) {
	flags := protocol.RequestFlags(0)
	if opts.Create {
		flags |= protocol.ReqCreate
	}
	if opts.Join {
		flags |= protocol.ReqJoin
	}
	if opts.Reliable {
		flags |= protocol.ReqReliable
	}
	if opts.Ordered {
		flags |= protocol.ReqOrdered
	}
	reply, err := s.do(ctx, "create channel", name, &protocol.Request{
		Op: protocol.OpCreateChannel, Flags: flags, Target: name,
	})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.channels[name]
	if !ok {
		ch = &Channel{s: s, name: name}
		s.channels[name] = ch
	}
	ch.reliable = reply.Options.Has(protocol.ReqReliable)
	ch.ordered = reply.Options.Has(protocol.ReqOrdered)
	return ch, nil
}

// CreateByteArray looks up the named byte array, creating and joining it
// as opts allow.
func (s *Session) CreateByteArray(ctx context.Context, name string, opts session.ByteArrayOptions) (*ByteArray, error) {
	flags := protocol.RequestFlags(0)
	if opts.Create {
		flags |= protocol.ReqCreate
	}
	if opts.Join {
		flags |= protocol.ReqJoin
	}
	if _, err := s.do(ctx, "create byte array", name, &protocol.Request{
		Op: protocol.OpCreateByteArray, Flags: flags, Target: name,
	}); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ba, ok := s.arrays[name]
	if !ok {
		ba = &ByteArray{s: s, name: name}
		s.arrays[name] = ba
	}
	return ba, nil
}

// DestroyChannel destroys the named channel.
func (s *Session) DestroyChannel(ctx context.Context, name string) error {
	_, err := s.do(ctx, "destroy channel", name, &protocol.Request{Op: protocol.OpDestroyChannel, Target: name})
	if err == nil {
		s.mu.Lock()
		delete(s.channels, name)
		s.mu.Unlock()
	}
	return err
}

// DestroyByteArray destroys the named byte array.
func (s *Session) DestroyByteArray(ctx context.Context, name string) error {
	_, err := s.do(ctx, "destroy byte array", name, &protocol.Request{Op: protocol.OpDestroyByteArray, Target: name})
	if err == nil {
		s.mu.Lock()
		delete(s.arrays, name)
		s.mu.Unlock()
	}
	return err
}

// AddSessionListener registers l for session events.
func (s *Session) AddSessionListener(ctx context.Context, l session.SessionListener) (session.ListenerID, error) {
	return s.listen(ctx, "add session listener", s.Name(), &protocol.Request{Op: protocol.OpAddSessionListener},
		func(ev event) { l(toSessionEvent(s.Name(), ev)) })
}

// RemoveSessionListener removes a listener added by AddSessionListener.
func (s *Session) RemoveSessionListener(ctx context.Context, id session.ListenerID) error {
	return s.unlisten(ctx, s.Name(), id)
}

// listen registers a subscription locally, then on the server. Events
// arriving before the reply are already routed.
func (s *Session) listen(ctx context.Context, op, resource string, req *protocol.Request, fn func(event)) (session.ListenerID, error) {
	sub, err := s.conn.subscribe(fn)
	if err != nil {
		return 0, &session.OpError{Op: op, Resource: resource, Err: err}
	}
	req.SubID = sub.id
	if _, err := s.do(ctx, op, resource, req); err != nil {
		s.conn.unsubscribe(sub.id)
		return 0, err
	}
	return session.ListenerID(sub.id), nil
}

func (s *Session) unlisten(ctx context.Context, resource string, id session.ListenerID) error {
	_, err := s.do(ctx, "remove listener", resource, &protocol.Request{Op: protocol.OpRemoveListener, SubID: uint64(id)})
	s.conn.unsubscribe(uint64(id))
	return err
}

// Leave leaves the session and closes the connection. It is idempotent and
// safe after the connection has closed.
func (s *Session) Leave(ctx context.Context) error {
	return s.finish(ctx, &protocol.Request{Op: protocol.OpLeaveSession})
}

// Close destroys the session. Without force it fails with ErrSessionInUse
// while other clients are joined.
func (s *Session) Close(ctx context.Context, force bool) error {
	var flags protocol.RequestFlags
	if force {
		flags = protocol.ReqForce
	}
	return s.finish(ctx, &protocol.Request{Op: protocol.OpCloseSession, Flags: flags})
}

func (s *Session) finish(ctx context.Context, req *protocol.Request) error {
	select {
	case <-s.done:
		return nil
	default:
	}

	_, err := s.conn.roundTrip(ctx, req)
	if err != nil {
		if errors.Is(err, session.ErrSessionClosed) {
			return nil
		}
		var ce *session.ConnectError
		if errors.As(err, &ce) {
			return nil
		}
		return &session.OpError{Op: req.Op.String(), Resource: s.Name(), Err: err}
	}

	// The server closes after replying; wait briefly, then close locally.
	select {
	case <-s.done:
	case <-ctx.Done():
		s.conn.shutdown()
	}
	return nil
}

// Disconnect drops the connection without waiting for the server. The
// server treats it as the client leaving.
func (s *Session) Disconnect() {
	s.conn.shutdown()
}

func (s *Session) String() string {
	return fmt.Sprintf("%s as %s", s.url, s.client.Name())
}

func toSessionEvent(sessionName string, ev event) session.SessionEvent {
	e := session.SessionEvent{Session: sessionName, Client: ev.Client, Resource: ev.Resource}
	switch ev.Kind {
	case protocol.EventClientJoined:
		e.Kind = session.ClientJoined
	case protocol.EventClientLeft:
		e.Kind = session.ClientLeft
	case protocol.EventChannelCreated:
		e.Kind = session.ChannelCreated
	case protocol.EventChannelDestroyed:
		e.Kind = session.ChannelDestroyed
	case protocol.EventByteArrayCreated:
		e.Kind = session.ByteArrayCreated
	case protocol.EventByteArrayDestroyed:
		e.Kind = session.ByteArrayDestroyed
	case protocol.EventSessionDestroyed:
		e.Kind = session.SessionDestroyed
		e.Resource = ""
	}
	return e
}
