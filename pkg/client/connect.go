package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/huddle/pkg/naming"
	"github.com/vango-dev/huddle/pkg/protocol"
	"github.com/vango-dev/huddle/pkg/session"
)

// ErrHandshake is returned when the server rejects the handshake for a
// reason other than the session-level conditions (version mismatch,
// malformed hello, internal error).
var ErrHandshake = errors.New("client: handshake rejected")

// CreateOrJoin connects to the endpoint named by rawURL and joins c to the
// session, creating it first when create is true.
//
// Dial and handshake failures return a *session.ConnectError. Session-level
// rejections return errors matching session.ErrNameInUse,
// session.ErrNoSuchSession or session.ErrPermissionDenied.
func CreateOrJoin(ctx context.Context, c session.Client, rawURL string, create bool, opts ...Option) (*Session, error) {
	u, err := naming.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	return CreateOrJoinURL(ctx, c, u, create, opts...)
}

// CreateOrJoinURL is CreateOrJoin with a parsed URL.
func CreateOrJoinURL(ctx context.Context, c session.Client, u naming.URL, create bool, opts ...Option) (*Session, error) {
	if c == nil || c.Name() == "" {
		return nil, &session.OpError{Op: "join", Resource: u.Session, Err: session.ErrNoSuchClient}
	}
	if err := naming.CheckType(u.Type); err != nil {
		return nil, &session.ConnectError{Addr: u.Addr(), Err: err}
	}
	o := buildOptions(opts)
	logger := o.Logger.With("component", "client", "session", u.Session, "client", c.Name())

	token, err := c.Authenticate(ctx, session.AuthInfo{Session: u.Session, Type: u.Type, Client: c.Name()})
	if err != nil {
		return nil, &session.OpError{
			Op: "authenticate", Resource: u.Session,
			Err: fmt.Errorf("%w: %w", session.ErrPermissionDenied, err),
		}
	}

	dialCtx, cancel := context.WithTimeout(ctx, o.ConnectTimeout)
	defer cancel()

	ws, _, err := o.Dialer.DialContext(dialCtx, u.WebSocketURL(), nil)
	if err != nil {
		return nil, &session.ConnectError{Addr: u.Addr(), Err: err}
	}

	hello, err := handshake(dialCtx, ws, protocol.NewClientHello(u.Session, u.Type, c.Name(), token, create), o)
	if err != nil {
		ws.Close()
		var ce *session.ConnectError
		if errors.As(err, &ce) {
			ce.Addr = u.Addr()
			return nil, ce
		}
		return nil, &session.OpError{Op: "join", Resource: u.Session, Err: err}
	}

	cn := newConn(ws, o, logger)
	s := newSession(u, hello, c, cn)
	cn.start()

	logger.Debug("joined", "session_id", hello.SessionID, "creator", hello.Creator)
	return s, nil
}

// CreateOrJoinUnique joins under base, retrying as "base+", "base++", ...
// while the name is in use. newClient builds the client for each candidate
// name.
func CreateOrJoinUnique(ctx context.Context, base string, newClient func(name string) session.Client, rawURL string, create bool, opts ...Option) (*Session, error) {
	u, err := naming.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	var s *Session
	_, err = session.RetryOnNameInUse(ctx, base, buildOptions(opts).MaxNameAttempts, func(ctx context.Context, name string) error {
		joined, err := CreateOrJoinURL(ctx, newClient(name), u, create, opts...)
		if err != nil {
			return err
		}
		s = joined
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// handshake sends hello and waits for the ServerHello, bounded by ctx.
func handshake(ctx context.Context, ws *websocket.Conn, hello *protocol.ClientHello, o Options) (*protocol.ServerHello, error) {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(o.ConnectTimeout)
	}

	frame := protocol.NewFrame(protocol.FrameHandshake, protocol.EncodeClientHello(hello))
	ws.SetWriteDeadline(deadline)
	if err := ws.WriteMessage(websocket.BinaryMessage, frame.Encode()); err != nil {
		return nil, &session.ConnectError{Err: err}
	}

	ws.SetReadDeadline(deadline)
	_, msg, err := ws.ReadMessage()
	if err != nil {
		return nil, &session.ConnectError{Err: err}
	}
	ws.SetReadDeadline(time.Time{})
	ws.SetWriteDeadline(time.Time{})

	reply, err := protocol.DecodeFrame(msg)
	if err != nil {
		return nil, &session.ConnectError{Err: &session.ProtocolDecodeError{What: "handshake", Err: err}}
	}
	if reply.Type != protocol.FrameHandshake {
		return nil, &session.ConnectError{Err: fmt.Errorf("%w: got %s frame", ErrHandshake, reply.Type)}
	}
	sh, err := protocol.DecodeServerHello(reply.Payload)
	if err != nil {
		return nil, &session.ConnectError{Err: &session.ProtocolDecodeError{What: "server hello", Err: err}}
	}
	if err := statusError(sh.Status, sh.Message); err != nil {
		return nil, err
	}
	return sh, nil
}

// statusError maps a handshake status onto the matching sentinel.
func statusError(status protocol.HandshakeStatus, msg string) error {
	var sentinel error
	switch status {
	case protocol.HandshakeOK:
		return nil
	case protocol.HandshakeNameInUse:
		sentinel = session.ErrNameInUse
	case protocol.HandshakeNoSuchSession:
		sentinel = session.ErrNoSuchSession
	case protocol.HandshakeNotAuthorized:
		sentinel = session.ErrPermissionDenied
	case protocol.HandshakeServerBusy:
		sentinel = session.ErrSessionClosed
	case protocol.HandshakeUnsupportedTransport:
		return &session.ConnectError{Err: fmt.Errorf("%w: %s", naming.ErrUnsupportedType, msg)}
	default:
		return &session.ConnectError{Err: fmt.Errorf("%w: %s: %s", ErrHandshake, status, msg)}
	}
	if msg == "" {
		return sentinel
	}
	return fmt.Errorf("%w: %s", sentinel, msg)
}
