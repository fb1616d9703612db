package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/huddle/pkg/protocol"
	"github.com/vango-dev/huddle/pkg/session"
)

// Server is the rendezvous endpoint for one transport type.
type Server struct {
	// Sessions hosted by this endpoint
	manager *session.Manager

	// Configuration
	config Config

	// HTTP routes, including the WebSocket endpoint
	handler http.Handler

	// WebSocket upgrader
	upgrader websocket.Upgrader

	// Open connections
	mu     sync.Mutex
	conns  map[*Conn]struct{}
	closed bool

	// HTTP server and its listener, set by Listen
	httpServer *http.Server
	listener   net.Listener
	serveErr   chan error

	metrics *metrics
	logger  *slog.Logger
}

// New creates a Server. Unset config fields take their defaults.
func New(config Config) *Server {
	config = config.withDefaults()
	logger := config.Logger.With("component", "server", "type", config.Type)

	if err := config.Validate(); err != nil {
		logger.Error("config validation failed", "error", err)
	}

	s := &Server{
		manager: session.NewManager(session.ManagerConfig{
			Type:                 config.Type,
			Authorizer:           config.Authorizer,
			UnreliableQueueLimit: config.UnreliableQueueLimit,
			Logger:               config.Logger,
		}),
		config: config,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		conns:   make(map[*Conn]struct{}),
		metrics: newMetrics(config.Registry, config.Type),
		logger:  logger,
	}
	config.Registry.MustRegister(newSessionCollector(s))
	s.handler = s.routes()
	return s
}

// Manager returns the session manager hosted by the server.
func (s *Server) Manager() *session.Manager {
	return s.manager
}

// Config returns the effective configuration.
func (s *Server) Config() Config {
	return s.config
}

// Logger returns the server's logger.
func (s *Server) Logger() *slog.Logger {
	return s.logger
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Listen binds the configured address and starts serving in the
// background. It returns once the listener is bound, so bind failures are
// reported to the caller.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return &ConnError{Op: "listen " + s.config.Address, Err: err}
	}
	s.ServeListener(ln)
	return nil
}

// ServeListener serves on ln in the background.
func (s *Server) ServeListener(ln net.Listener) {
	s.mu.Lock()
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: s.config.HandshakeTimeout,
	}
	s.serveErr = make(chan error, 1)
	srv, errCh := s.httpServer, s.serveErr
	s.mu.Unlock()

	s.logger.Info("server starting", "address", ln.Addr().String())
	go func() {
		err := srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()
}

// Addr returns the bound listener address, or the configured address
// before Listen.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.config.Address
}

// Run listens and blocks until SIGINT/SIGTERM or a serve error, then shuts
// down gracefully.
func (s *Server) Run() error {
	if err := s.config.Validate(); err != nil {
		return err
	}
	if err := s.Listen(); err != nil {
		return err
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	select {
	case err := <-s.serveErr:
		return err

	case <-shutdown:
		s.logger.Info("shutting down...")
		return s.Shutdown(context.Background())
	}
}

// Shutdown closes every connection, destroys hosted sessions and stops the
// HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	s.mu.Lock()
	s.closed = true
	conns := make([]*Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	srv := s.httpServer
	s.mu.Unlock()

	for _, c := range conns {
		c.CloseWithReason(protocol.CloseServerShutdown, "server shutting down")
	}
	s.manager.Close()

	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
	}

	s.logger.Info("server shutdown complete")
	return nil
}

// ConnCount returns the number of open connections.
func (s *Server) ConnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *Server) track(c *Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[c] = struct{}{}
	s.metrics.connections.Inc()
	return true
}

func (s *Server) untrack(c *Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conns[c]; ok {
		delete(s.conns, c)
		s.metrics.connections.Dec()
	}
}

// HandleWebSocket upgrades the request, performs the handshake and starts
// the connection loops.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request, typ string) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	ws.SetReadLimit(s.config.MaxMessageSize)
	ws.SetReadDeadline(time.Now().Add(s.config.HandshakeTimeout))

	hello, err := s.readClientHello(ws)
	if err != nil {
		s.logger.Warn("handshake rejected", "error", err)
		s.sendHandshakeError(ws, handshakeStatusOf(err), err.Error())
		ws.Close()
		return
	}

	if !protocol.CurrentVersion.Compatible(hello.Version) {
		s.sendHandshakeError(ws, protocol.HandshakeVersionMismatch,
			fmt.Sprintf("server speaks %d.%d", protocol.CurrentVersion.Major, protocol.CurrentVersion.Minor))
		ws.Close()
		return
	}
	if typ != s.config.Type || (hello.Type != "" && hello.Type != s.config.Type) {
		s.sendHandshakeError(ws, protocol.HandshakeUnsupportedTransport,
			fmt.Sprintf("%v: %q", ErrUnsupportedTransport, hello.Type))
		ws.Close()
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.config.HandshakeTimeout)
	client := session.NewClientWithToken(hello.Client, hello.Token)
	sess, err := s.manager.CreateOrJoin(ctx, client, hello.Session, hello.Create)
	cancel()
	if err != nil {
		s.logger.Info("join rejected", "session", hello.Session, "client", hello.Client, "error", err)
		s.sendHandshakeError(ws, handshakeStatusOf(err), err.Error())
		ws.Close()
		return
	}

	c := newConn(s, ws, sess, client)
	if !s.track(c) {
		sess.Leave(client)
		s.sendHandshakeError(ws, protocol.HandshakeServerBusy, "server shutting down")
		ws.Close()
		return
	}

	s.metrics.handshakes.WithLabelValues(protocol.HandshakeOK.String()).Inc()
	welcome := protocol.NewServerHello(sess.ID(), client.Name(), sess.Creator() == client.Name(),
		uint64(time.Now().UnixMilli()))
	c.push(protocol.NewFrame(protocol.FrameHandshake, protocol.EncodeServerHello(welcome)), "")

	c.logger.Info("client connected", "remote", r.RemoteAddr, "creator", welcome.Creator)
	c.Start()
}

func (s *Server) readClientHello(ws *websocket.Conn) (*protocol.ClientHello, error) {
	_, msg, err := ws.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHandshake, err)
	}
	frame, err := protocol.DecodeFrame(msg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHandshake, err)
	}
	if frame.Type != protocol.FrameHandshake {
		return nil, fmt.Errorf("%w: got %s frame", ErrInvalidHandshake, frame.Type)
	}
	hello, err := protocol.DecodeClientHello(frame.Payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHandshake, err)
	}
	if hello.Client == "" || hello.Session == "" {
		return nil, fmt.Errorf("%w: missing client or session name", ErrInvalidHandshake)
	}
	return hello, nil
}

func (s *Server) sendHandshakeError(ws *websocket.Conn, status protocol.HandshakeStatus, msg string) {
	s.metrics.handshakes.WithLabelValues(status.String()).Inc()
	hello := protocol.NewServerHelloError(status, msg)
	frame := protocol.NewFrame(protocol.FrameHandshake, protocol.EncodeServerHello(hello))

	ws.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	ws.WriteMessage(websocket.BinaryMessage, frame.Encode())
	ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, status.String()),
		time.Now().Add(s.config.WriteTimeout))
}
