package server

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"

	"github.com/vango-dev/huddle/pkg/dispatch"
	"github.com/vango-dev/huddle/pkg/protocol"
	"github.com/vango-dev/huddle/pkg/session"
)

// Conn is one client connection joined to a session.
type Conn struct {
	id      string
	srv     *Server
	ws      *websocket.Conn
	session *session.Session
	client  session.Client

	// Outbound frames, drained by WriteLoop
	out *dispatch.Queue[*protocol.Frame]

	// Registrations made by this connection, keyed by subscription id
	mu   sync.Mutex
	subs map[uint64]func() error

	leaving   bool // set by LeaveSession/CloseSession; read only by ReadLoop
	closed    atomic.Bool
	closeOnce sync.Once
	done      chan struct{}

	logger *slog.Logger
}

func newConn(srv *Server, ws *websocket.Conn, sess *session.Session, client session.Client) *Conn {
	id := ulid.Make().String()
	return &Conn{
		id:      id,
		srv:     srv,
		ws:      ws,
		session: sess,
		client:  client,
		out:     dispatch.NewQueue[*protocol.Frame](dispatch.Options{}),
		subs:    make(map[uint64]func() error),
		done:    make(chan struct{}),
		logger: srv.logger.With(
			"conn_id", id,
			"session", sess.Name(),
			"client", client.Name()),
	}
}

// ID returns the connection id.
func (c *Conn) ID() string { return c.id }

// Done is closed when the connection has closed.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Start starts the connection loops.
// This should be called after the handshake is complete.
func (c *Conn) Start() {
	go c.ReadLoop()
	go c.WriteLoop()
	go c.heartbeat()
	go c.watchSession()
}

// ReadLoop reads frames until the connection closes. Requests are handled
// in arrival order; undecodable frames are logged and dropped.
func (c *Conn) ReadLoop() {
	defer c.Close()

	for {
		c.ws.SetReadDeadline(time.Now().Add(c.srv.config.ReadTimeout))

		_, msg, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.logger.Error("read error", "error", err)
			}
			return
		}
		c.srv.metrics.bytesIn.Add(float64(len(msg)))

		frame, err := protocol.DecodeFrame(msg)
		if err != nil {
			c.srv.metrics.decodeErrors.Inc()
			c.logger.Error("frame decode error", "error", err)
			continue
		}
		c.srv.metrics.framesIn.WithLabelValues(frame.Type.String()).Inc()

		switch frame.Type {
		case protocol.FrameRequest:
			c.handleRequestFrame(frame.Payload)
			if c.leaving {
				c.CloseWithReason(protocol.CloseNormal, "left session")
				return
			}

		case protocol.FrameControl:
			if !c.handleControlFrame(frame.Payload) {
				return
			}

		default:
			c.logger.Warn("unexpected frame type", "type", frame.Type)
		}
	}
}

// handleRequestFrame decodes a request, runs it through the middleware
// chain and queues the reply.
func (c *Conn) handleRequestFrame(payload []byte) {
	req, err := protocol.DecodeRequest(payload)
	if err != nil {
		c.srv.metrics.decodeErrors.Inc()
		c.logger.Error("request decode error", "error", err)
		em := protocol.NewError(protocol.ErrInvalidFrame, "invalid request")
		c.push(protocol.NewFrame(protocol.FrameError, protocol.EncodeErrorMessage(em)), "")
		return
	}

	rc := NewRequestCtx(context.Background(), RequestInfo{
		Session:   c.session.Name(),
		SessionID: c.session.ID(),
		Client:    c.client.Name(),
		ConnID:    c.id,
	}, req)
	err = runChain(c.srv.config.Middleware, rc, func() error {
		var herr error
		rc.reply, herr = c.handle(rc.StdContext(), req)
		return herr
	})
	reply := rc.reply
	if err != nil {
		c.logger.Debug("request failed", "op", req.Op, "target", req.Target, "error", err)
		reply = protocol.NewReplyError(req.ID, CodeOf(err), err.Error())
	} else if reply == nil {
		reply = &protocol.Reply{}
	}
	reply.ID = req.ID
	c.push(protocol.NewFrame(protocol.FrameReply, protocol.EncodeReply(reply)), "")
}

// handleControlFrame handles ping, pong and close. It returns false when the
// client is closing.
func (c *Conn) handleControlFrame(payload []byte) bool {
	ct, data, err := protocol.DecodeControl(payload)
	if err != nil {
		c.srv.metrics.decodeErrors.Inc()
		c.logger.Error("control decode error", "error", err)
		return true
	}

	switch ct {
	case protocol.ControlPing:
		if pp, ok := data.(*protocol.PingPong); ok {
			ct, pong := protocol.NewPong(pp.Timestamp)
			c.pushControl(ct, pong)
		}

	case protocol.ControlPong:
		c.logger.Debug("received pong")

	case protocol.ControlClose:
		if cm, ok := data.(*protocol.CloseMessage); ok {
			c.logger.Info("client closing", "reason", cm.Reason, "message", cm.Message)
		}
		return false
	}
	return true
}

// WriteLoop sends queued frames until the queue is closed and drained, then
// closes the socket.
func (c *Conn) WriteLoop() {
	defer c.ws.Close()

	for {
		frame, err := c.out.Pop(context.Background())
		if err != nil {
			c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(c.srv.config.WriteTimeout))
			return
		}

		data := frame.Encode()
		c.ws.SetWriteDeadline(time.Now().Add(c.srv.config.WriteTimeout))
		if err := c.ws.WriteMessage(websocket.BinaryMessage, data); err != nil {
			c.srv.metrics.writeErrors.Inc()
			c.logger.Error("write error", "error", err)
			c.out.Discard()
			go c.Close()
			return
		}
		c.srv.metrics.framesOut.WithLabelValues(frame.Type.String()).Inc()
		c.srv.metrics.bytesOut.Add(float64(len(data)))
	}
}

// heartbeat queues a ping every HeartbeatInterval.
func (c *Conn) heartbeat() {
	ticker := time.NewTicker(c.srv.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ct, ping := protocol.NewPing(uint64(time.Now().UnixMilli()))
			c.pushControl(ct, ping)
		case <-c.done:
			return
		}
	}
}

// watchSession closes the connection when its session is destroyed by
// another member or by shutdown. The close waits until the session's
// workers have forwarded the final leave and destroy events, bounded by
// WriteTimeout so a stuck in-process listener cannot hold the socket open.
func (c *Conn) watchSession() {
	select {
	case <-c.session.Done():
	case <-c.done:
		return
	}

	timer := time.NewTimer(c.srv.config.WriteTimeout)
	defer timer.Stop()
	select {
	case <-c.session.Drained():
	case <-timer.C:
		c.logger.Warn("session listeners still draining at close")
	case <-c.done:
		return
	}
	c.CloseWithReason(protocol.CloseSessionDestroyed, "session destroyed")
}

// push queues a frame for WriteLoop. A non-empty key coalesces with a
// pending frame of the same key.
func (c *Conn) push(f *protocol.Frame, key string) bool {
	if !c.out.Push(dispatch.Item[*protocol.Frame]{Value: f, Key: key}) {
		c.srv.metrics.eventsDropped.Inc()
		return false
	}
	return true
}

func (c *Conn) pushControl(ct protocol.ControlType, payload any) {
	c.out.Push(dispatch.Item[*protocol.Frame]{
		Value: protocol.NewFrame(protocol.FrameControl, protocol.EncodeControl(ct, payload)),
		Lane:  dispatch.LaneHigh,
	})
}

// Close closes the connection: the client leaves its session, every
// registration is removed and queued frames are flushed.
func (c *Conn) Close() {
	c.CloseWithReason(protocol.CloseGoingAway, "")
}

// CloseWithReason closes the connection after queueing a close frame.
func (c *Conn) CloseWithReason(reason protocol.CloseReason, message string) {
	c.closeOnce.Do(func() {
		c.closed.Store(true)

		c.mu.Lock()
		subs := c.subs
		c.subs = nil
		c.mu.Unlock()
		for _, remove := range subs {
			remove()
		}

		c.session.Leave(c.client)

		ct, cm := protocol.NewClose(reason, message)
		c.out.Push(dispatch.Item[*protocol.Frame]{
			Value: protocol.NewFrame(protocol.FrameControl, protocol.EncodeControl(ct, cm)),
		})
		c.out.Close()
		close(c.done)
		c.srv.untrack(c)

		c.logger.Info("client disconnected", "reason", reason)
	})
}
