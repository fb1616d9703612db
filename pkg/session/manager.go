package session

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	// Type is the transport type tag of the sessions this manager hosts.
	// Default: "socket".
	Type string

	// Authorizer accepts or rejects joining clients. Nil accepts everyone.
	Authorizer Authorizer

	// UnreliableQueueLimit bounds each consumer queue on unreliable
	// channels. Default: 256.
	UnreliableQueueLimit int

	// Logger is the parent logger. Default: slog.Default().
	Logger *slog.Logger
}

// DefaultManagerConfig returns a ManagerConfig with sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		Type:                 "socket",
		UnreliableQueueLimit: 256,
	}
}

// Manager owns the sessions of one transport type, keyed by name.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool

	config ManagerConfig
	logger *slog.Logger
}

// NewManager creates a session manager.
func NewManager(config ManagerConfig) *Manager {
	defaults := DefaultManagerConfig()
	if config.Type == "" {
		config.Type = defaults.Type
	}
	if config.UnreliableQueueLimit <= 0 {
		config.UnreliableQueueLimit = defaults.UnreliableQueueLimit
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		sessions: make(map[string]*Session),
		config:   config,
		logger:   logger.With("component", "session", "type", config.Type),
	}
}

// Type returns the transport type tag of hosted sessions.
func (m *Manager) Type() string {
	return m.config.Type
}

// CreateOrJoin joins c to the named session, creating it first when it does
// not exist and create is true.
//
// Errors: ErrNoSuchSession (absent, create=false), ErrNameInUse (duplicate
// client name), ErrPermissionDenied (authorizer rejected), ErrSessionClosed
// (manager closed).
func (m *Manager) CreateOrJoin(ctx context.Context, c Client, name string, create bool) (*Session, error) {
	if c == nil || c.Name() == "" {
		return nil, opErr("join", name, ErrNoSuchClient)
	}
	if err := m.authorize(ctx, c, name); err != nil {
		return nil, err
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, opErr("join", name, err)
		}

		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return nil, opErr("join", name, ErrSessionClosed)
		}
		s, ok := m.sessions[name]
		if !ok {
			if !create {
				m.mu.Unlock()
				return nil, opErr("join", name, ErrNoSuchSession)
			}
			s = newSession(m, name)
			m.sessions[name] = s
		}
		m.mu.Unlock()

		err := s.join(c)
		if err == ErrSessionClosed {
			// Raced with the session closing; it is already unregistered.
			continue
		}
		if err != nil {
			return nil, opErr("join", name, err)
		}
		return s, nil
	}
}

// CreateOrJoinUnique joins under base, retrying with UniqueName candidates
// while the name is in use. newClient builds the client for each candidate.
func (m *Manager) CreateOrJoinUnique(ctx context.Context, base string, newClient func(name string) Client, name string, create bool) (*Session, Client, error) {
	var (
		s      *Session
		joined Client
	)
	_, err := RetryOnNameInUse(ctx, base, MaxNameAttempts, func(ctx context.Context, candidate string) error {
		c := newClient(candidate)
		var err error
		s, err = m.CreateOrJoin(ctx, c, name, create)
		if err == nil {
			joined = c
		}
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return s, joined, nil
}

func (m *Manager) authorize(ctx context.Context, c Client, name string) error {
	token, err := c.Authenticate(ctx, AuthInfo{Session: name, Type: m.config.Type, Client: c.Name()})
	if err != nil {
		return opErr("authenticate", name, fmt.Errorf("%w: %w", ErrPermissionDenied, err))
	}
	if m.config.Authorizer == nil {
		return nil
	}
	req := AuthRequest{Session: name, Type: m.config.Type, Client: c.Name(), Token: token}
	if err := m.config.Authorizer.Authorize(ctx, req); err != nil {
		m.logger.Warn("client rejected", "session", name, "client", c.Name(), "error", err)
		return opErr("join", name, fmt.Errorf("%w: %w", ErrPermissionDenied, err))
	}
	return nil
}

// Get returns the named session if it exists.
func (m *Manager) Get(name string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[name]
	return s, ok
}

// Names returns the names of all sessions, sorted.
func (m *Manager) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return sortedKeys(m.sessions)
}

// Count returns the number of sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Infos returns a snapshot of every session, sorted by name.
func (m *Manager) Infos() []Info {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	infos := make([]Info, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, s.Info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Close force-closes every session and rejects later joins.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		_ = s.Close(nil, true)
	}
}

// remove unregisters s. Called with s.mu held; the lock order is session
// before manager.
func (m *Manager) remove(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessions[s.name] == s {
		delete(m.sessions, s.name)
	}
}
