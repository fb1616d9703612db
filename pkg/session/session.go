package session

import (
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/vango-dev/huddle/pkg/dispatch"
)

// State is the lifecycle state of a session.
type State uint8

const (
	StateUncreated State = iota
	StateCreating
	StateActive
	StateClosing
	StateClosed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateUncreated:
		return "uncreated"
	case StateCreating:
		return "creating"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ChannelOptions controls CreateChannel.
type ChannelOptions struct {
	Create   bool // Create the channel when absent
	Join     bool // Join the channel (whether created or existing)
	Reliable bool // Never drop messages
	Ordered  bool // High priority never reorders one sender's stream
}

// DefaultChannelOptions creates or joins a reliable, ordered channel.
func DefaultChannelOptions() ChannelOptions {
	return ChannelOptions{Create: true, Join: true, Reliable: true, Ordered: true}
}

// ByteArrayOptions controls CreateByteArray.
type ByteArrayOptions struct {
	Create bool // Create the byte array when absent
	Join   bool // Join the byte array
}

// DefaultByteArrayOptions creates or joins the byte array.
func DefaultByteArrayOptions() ByteArrayOptions {
	return ByteArrayOptions{Create: true, Join: true}
}

// Session is a named collaboration context. It owns its channels and byte
// arrays; clients are referenced by name.
//
// All state of a session, including its channels and byte arrays, is guarded
// by one mutex.
type Session struct {
	mu sync.Mutex

	manager   *Manager
	name      string
	typ       string
	id        string
	creator   string
	createdAt time.Time
	state     State

	members []string // join order
	clients map[string]Client

	channels map[string]*Channel
	arrays   map[string]*ByteArray

	listeners listenerSet[SessionEvent]
	done      chan struct{}
	logger    *slog.Logger

	// workers counts listener and consumer workers; drained closes once the
	// session is closed and all of them have exited.
	workers sync.WaitGroup
	drained chan struct{}
}

func newSession(m *Manager, name string) *Session {
	id := ulid.Make().String()
	return &Session{
		manager:   m,
		name:      name,
		typ:       m.config.Type,
		id:        id,
		createdAt: time.Now(),
		state:     StateCreating,
		clients:   make(map[string]Client),
		channels:  make(map[string]*Channel),
		arrays:    make(map[string]*ByteArray),
		done:      make(chan struct{}),
		drained:   make(chan struct{}),
		logger:    m.logger.With("session", name, "session_id", id),
	}
}

// Name returns the session name.
func (s *Session) Name() string { return s.name }

// Type returns the session transport type.
func (s *Session) Type() string { return s.typ }

// ID returns the unique id of this session instance.
func (s *Session) ID() string { return s.id }

// CreatedAt returns when the session was created.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// Done returns a channel that's closed when the session is closed.
func (s *Session) Done() <-chan struct{} { return s.done }

// Drained returns a channel that's closed after the session has closed and
// every listener and consumer has been handed the events queued for it,
// including the final destroy events.
func (s *Session) Drained() <-chan struct{} { return s.drained }

// Creator returns the name of the client that created the session.
func (s *Session) Creator() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creator
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// join adds c to the session. The first join activates a creating session.
func (s *Session) join(c Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateCreating && s.state != StateActive {
		return ErrSessionClosed
	}
	name := c.Name()
	if _, ok := s.clients[name]; ok {
		return ErrNameInUse
	}

	s.clients[name] = c
	s.members = append(s.members, name)
	if s.state == StateCreating {
		s.state = StateActive
		s.creator = name
		s.logger.Info("session created", "client", name)
	} else {
		s.logger.Debug("client joined", "client", name)
	}
	s.listeners.emit(SessionEvent{Kind: ClientJoined, Session: s.name, Client: name})
	return nil
}

// ClientNames returns the joined clients in join order.
func (s *Session) ClientNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.members)
}

// HasClient reports whether a client with the given name is joined.
func (s *Session) HasClient(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.clients[name]
	return ok
}

// ChannelNames returns the names of the session's channels, sorted.
func (s *Session) ChannelNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedKeys(s.channels)
}

// ByteArrayNames returns the names of the session's byte arrays, sorted.
func (s *Session) ByteArrayNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedKeys(s.arrays)
}

// AddSessionListener registers l for membership and resource events.
func (s *Session) AddSessionListener(l SessionListener) (ListenerID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosing || s.state == StateClosed {
		return 0, opErr("add session listener", s.name, ErrSessionClosed)
	}
	return s.listeners.add("", l, dispatch.Options{}, s.logger, &s.workers), nil
}

// RemoveSessionListener deregisters a session listener.
func (s *Session) RemoveSessionListener(id ListenerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.listeners.remove(id); !ok {
		return opErr("remove session listener", s.name, ErrNoSuchConsumer)
	}
	return nil
}

// CreateChannel creates or looks up a channel. With opts.Create an absent
// channel is created; otherwise ErrNoSuchChannel is returned. With opts.Join
// the client joins the channel. Reliable and Ordered only apply on creation.
func (s *Session) CreateChannel(c Client, name string, opts ChannelOptions) (*Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkMemberLocked(c); err != nil {
		return nil, opErr("create channel", name, err)
	}
	ch, ok := s.channels[name]
	if !ok {
		if !opts.Create || name == "" {
			return nil, opErr("create channel", name, ErrNoSuchChannel)
		}
		ch = newChannel(s, name, opts)
		s.channels[name] = ch
		s.logger.Debug("channel created", "channel", name, "client", c.Name(),
			"reliable", opts.Reliable, "ordered", opts.Ordered)
		s.listeners.emit(SessionEvent{Kind: ChannelCreated, Session: s.name, Client: c.Name(), Resource: name})
	}
	if opts.Join {
		ch.joinLocked(c.Name())
	}
	return ch, nil
}

// Channel returns the named channel.
func (s *Session) Channel(name string) (*Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.channels[name]
	if !ok {
		return nil, opErr("channel", name, ErrNoSuchChannel)
	}
	return ch, nil
}

// DestroyChannel destroys a channel. Its consumers receive pending messages
// and are then closed.
func (s *Session) DestroyChannel(c Client, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkMemberLocked(c); err != nil {
		return opErr("destroy channel", name, err)
	}
	ch, ok := s.channels[name]
	if !ok {
		return opErr("destroy channel", name, ErrNoSuchChannel)
	}
	ch.destroyLocked()
	delete(s.channels, name)
	s.listeners.emit(SessionEvent{Kind: ChannelDestroyed, Session: s.name, Client: c.Name(), Resource: name})
	return nil
}

// CreateByteArray creates or looks up a byte array. A new byte array has no
// value (Value returns nil, version 0) until the first SetValue.
func (s *Session) CreateByteArray(c Client, name string, opts ByteArrayOptions) (*ByteArray, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkMemberLocked(c); err != nil {
		return nil, opErr("create byte array", name, err)
	}
	ba, ok := s.arrays[name]
	if !ok {
		if !opts.Create || name == "" {
			return nil, opErr("create byte array", name, ErrNoSuchByteArray)
		}
		ba = newByteArray(s, name)
		s.arrays[name] = ba
		s.logger.Debug("byte array created", "byte_array", name, "client", c.Name())
		s.listeners.emit(SessionEvent{Kind: ByteArrayCreated, Session: s.name, Client: c.Name(), Resource: name})
	}
	if opts.Join {
		ba.joinLocked(c.Name())
	}
	return ba, nil
}

// ByteArray returns the named byte array.
func (s *Session) ByteArray(name string) (*ByteArray, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ba, ok := s.arrays[name]
	if !ok {
		return nil, opErr("byte array", name, ErrNoSuchByteArray)
	}
	return ba, nil
}

// DestroyByteArray destroys a byte array. Later reads fail with
// ErrNoSuchByteArray.
func (s *Session) DestroyByteArray(c Client, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkMemberLocked(c); err != nil {
		return opErr("destroy byte array", name, err)
	}
	ba, ok := s.arrays[name]
	if !ok {
		return opErr("destroy byte array", name, ErrNoSuchByteArray)
	}
	ba.destroyLocked()
	delete(s.arrays, name)
	s.listeners.emit(SessionEvent{Kind: ByteArrayDestroyed, Session: s.name, Client: c.Name(), Resource: name})
	return nil
}

// Leave removes c from the session, its channels and its byte arrays. It is
// a no-op if c is not joined. When the last member leaves, the session
// closes.
func (s *Session) Leave(c Client) error {
	if c == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leaveLocked(c.Name())
	return nil
}

func (s *Session) leaveLocked(name string) {
	if _, ok := s.clients[name]; !ok {
		return
	}
	for _, chName := range sortedKeys(s.channels) {
		s.channels[chName].leaveLocked(name)
	}
	for _, baName := range sortedKeys(s.arrays) {
		s.arrays[baName].leaveLocked(name)
	}

	delete(s.clients, name)
	s.members = slices.DeleteFunc(s.members, func(m string) bool { return m == name })
	s.logger.Debug("client left", "client", name)
	s.listeners.emit(SessionEvent{Kind: ClientLeft, Session: s.name, Client: name})

	if len(s.members) == 0 {
		s.destroyLocked(name)
	}
}

// Close destroys the session on behalf of c. Without force it fails with
// ErrSessionInUse while any other client is joined. Closing a closed session
// is a no-op.
func (s *Session) Close(c Client, force bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosing || s.state == StateClosed {
		return nil
	}
	by := ""
	if c != nil {
		by = c.Name()
	}
	if !force {
		for _, m := range s.members {
			if m != by {
				return opErr("close", s.name, ErrSessionInUse)
			}
		}
	}
	s.destroyLocked(by)
	return nil
}

// destroyLocked tears the session down: channels and byte arrays are
// destroyed, remaining members are reported as left, and listeners receive
// SessionDestroyed before their queues close.
func (s *Session) destroyLocked(by string) {
	s.state = StateClosing

	for _, name := range sortedKeys(s.channels) {
		s.channels[name].destroyLocked()
		s.listeners.emit(SessionEvent{Kind: ChannelDestroyed, Session: s.name, Client: by, Resource: name})
	}
	clear(s.channels)
	for _, name := range sortedKeys(s.arrays) {
		s.arrays[name].destroyLocked()
		s.listeners.emit(SessionEvent{Kind: ByteArrayDestroyed, Session: s.name, Client: by, Resource: name})
	}
	clear(s.arrays)

	for _, m := range s.members {
		if m != by {
			s.listeners.emit(SessionEvent{Kind: ClientLeft, Session: s.name, Client: m})
		}
	}
	s.members = nil
	clear(s.clients)

	s.listeners.emit(SessionEvent{Kind: SessionDestroyed, Session: s.name, Client: by})
	s.listeners.closeAll()

	s.state = StateClosed
	close(s.done)
	go func() {
		s.workers.Wait()
		close(s.drained)
	}()
	s.manager.remove(s)
	s.logger.Info("session closed", "by", by)
}

func (s *Session) checkMemberLocked(c Client) error {
	if s.state != StateActive {
		return ErrSessionClosed
	}
	if c == nil {
		return ErrNoSuchClient
	}
	if _, ok := s.clients[c.Name()]; !ok {
		return ErrNoSuchClient
	}
	return nil
}

func (s *Session) isMemberLocked(name string) bool {
	_, ok := s.clients[name]
	return ok
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
