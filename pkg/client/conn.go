package client

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/huddle/pkg/dispatch"
	"github.com/vango-dev/huddle/pkg/protocol"
	"github.com/vango-dev/huddle/pkg/session"
)

// event is a pushed event with the flags of the frame that carried it.
type event struct {
	*protocol.Event
	flags protocol.FrameFlags
}

// subscription routes the events of one registration to its own queue.
type subscription struct {
	id    uint64
	queue *dispatch.Queue[event]
}

// conn multiplexes requests, replies and events over one WebSocket.
type conn struct {
	ws   *websocket.Conn
	opts Options
	out  *dispatch.Queue[*protocol.Frame]

	lastID atomic.Uint64

	mu      sync.Mutex
	pending map[uint64]chan *protocol.Reply
	subs    map[uint64]*subscription
	err     error // set once closed

	closeOnce sync.Once
	done      chan struct{}

	// onClose runs once when the connection closes, with the close reason
	// received from the server (CloseGoingAway if none arrived).
	onClose func(reason protocol.CloseReason)

	logger *slog.Logger
}

func newConn(ws *websocket.Conn, opts Options, logger *slog.Logger) *conn {
	return &conn{
		ws:      ws,
		opts:    opts,
		out:     dispatch.NewQueue[*protocol.Frame](dispatch.Options{}),
		pending: make(map[uint64]chan *protocol.Reply),
		subs:    make(map[uint64]*subscription),
		done:    make(chan struct{}),
		logger:  logger,
	}
}

func (c *conn) start() {
	go c.readLoop()
	go c.writeLoop()
	go c.heartbeat()
}

// nextID returns an id for a request or subscription; the two never share
// a namespace on the server, but one counter keeps them distinct in logs.
func (c *conn) nextID() uint64 {
	return c.lastID.Add(1)
}

// roundTrip sends req and waits for its reply. A failed reply becomes an
// error matching the core sentinel.
func (c *conn) roundTrip(ctx context.Context, req *protocol.Request) (*protocol.Reply, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.RequestTimeout)
		defer cancel()
	}

	req.ID = c.nextID()
	ch := make(chan *protocol.Reply, 1)

	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return nil, err
	}
	c.pending[req.ID] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, req.ID)
		c.mu.Unlock()
	}()

	c.out.Push(dispatch.Item[*protocol.Frame]{
		Value: protocol.NewFrame(protocol.FrameRequest, protocol.EncodeRequest(req)),
	})

	select {
	case reply := <-ch:
		if err := session.ErrorOf(reply.Code, reply.Message); err != nil {
			return reply, err
		}
		return reply, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, c.closeErr()
	}
}

// subscribe registers a routing queue under a fresh subscription id. With
// fn set, a worker delivers events to fn; otherwise the caller pops.
func (c *conn) subscribe(fn func(event)) (*subscription, error) {
	sub := &subscription{
		id:    c.nextID(),
		queue: dispatch.NewQueue[event](dispatch.Options{}),
	}

	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return nil, err
	}
	c.subs[sub.id] = sub
	c.mu.Unlock()

	if fn != nil {
		dispatch.Start(sub.queue, fn, c.logger)
	}
	return sub, nil
}

// unsubscribe drops a routing queue and its pending events.
func (c *conn) unsubscribe(id uint64) {
	c.mu.Lock()
	sub, ok := c.subs[id]
	delete(c.subs, id)
	c.mu.Unlock()
	if ok {
		sub.queue.Discard()
	}
}

func (c *conn) readLoop() {
	reason := protocol.CloseGoingAway
	defer func() { c.close(reason) }()

	for {
		c.ws.SetReadDeadline(time.Now().Add(c.opts.ReadTimeout))
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

		frame, err := protocol.DecodeFrame(msg)
		if err != nil {
			c.logger.Error("frame decode error", "error", err)
			continue
		}

		switch frame.Type {
		case protocol.FrameReply:
			reply, err := protocol.DecodeReply(frame.Payload)
			if err != nil {
				c.logger.Error("reply decode error", "error", err)
				continue
			}
			c.deliverReply(reply)

		case protocol.FrameEvent:
			ev, err := protocol.DecodeEvent(frame.Payload)
			if err != nil {
				c.logger.Error("event decode error", "error", err)
				continue
			}
			c.route(event{Event: ev, flags: frame.Flags})

		case protocol.FrameControl:
			ct, data, err := protocol.DecodeControl(frame.Payload)
			if err != nil {
				c.logger.Error("control decode error", "error", err)
				continue
			}
			switch ct {
			case protocol.ControlPing:
				if pp, ok := data.(*protocol.PingPong); ok {
					c.pushControl(protocol.NewPong(pp.Timestamp))
				}
			case protocol.ControlClose:
				if cm, ok := data.(*protocol.CloseMessage); ok {
					reason = cm.Reason
					c.logger.Debug("server closing", "reason", cm.Reason, "message", cm.Message)
				}
				return
			}

		case protocol.FrameError:
			em, err := protocol.DecodeErrorMessage(frame.Payload)
			if err != nil {
				c.logger.Error("error frame decode error", "error", err)
				continue
			}
			c.logger.Warn("server error", "code", em.Code, "message", em.Message)
			if em.IsFatal() {
				reason = protocol.CloseError
				return
			}

		default:
			c.logger.Warn("unexpected frame type", "type", frame.Type)
		}
	}
}

func (c *conn) deliverReply(reply *protocol.Reply) {
	c.mu.Lock()
	ch, ok := c.pending[reply.ID]
	c.mu.Unlock()
	if !ok {
		c.logger.Debug("reply for unknown request", "id", reply.ID)
		return
	}
	ch <- reply
}

// route hands an event to its subscription. Value changes coalesce so a
// slow listener sees the newest value.
func (c *conn) route(ev event) {
	c.mu.Lock()
	sub, ok := c.subs[ev.SubID]
	c.mu.Unlock()
	if !ok {
		c.logger.Debug("event for unknown subscription", "sub_id", ev.SubID, "kind", ev.Kind)
		return
	}
	key := ""
	if ev.Kind == protocol.EventValueChanged {
		key = "value"
	}
	sub.queue.Push(dispatch.Item[event]{Value: ev, Key: key})
}

func (c *conn) writeLoop() {
	defer c.ws.Close()

	for {
		frame, err := c.out.Pop(context.Background())
		if err != nil {
			c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(c.opts.WriteTimeout))
			return
		}
		c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
		if err := c.ws.WriteMessage(websocket.BinaryMessage, frame.Encode()); err != nil {
			c.logger.Error("write error", "error", err)
			c.out.Discard()
			go c.close(protocol.CloseError)
			return
		}
	}
}

func (c *conn) heartbeat() {
	ticker := time.NewTicker(c.opts.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.pushControl(protocol.NewPing(uint64(time.Now().UnixMilli())))
		case <-c.done:
			return
		}
	}
}

func (c *conn) pushControl(ct protocol.ControlType, payload any) {
	c.out.Push(dispatch.Item[*protocol.Frame]{
		Value: protocol.NewFrame(protocol.FrameControl, protocol.EncodeControl(ct, payload)),
		Lane:  dispatch.LaneHigh,
	})
}

// shutdown asks the server to close and closes locally.
func (c *conn) shutdown() {
	c.pushControl(protocol.NewClose(protocol.CloseNormal, ""))
	c.close(protocol.CloseNormal)
}

// close fails pending requests, closes every subscription queue (letting
// workers drain) and stops the write loop.
func (c *conn) close(reason protocol.CloseReason) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.err = closeError(reason)
		subs := c.subs
		c.subs = make(map[uint64]*subscription)
		c.mu.Unlock()

		for _, sub := range subs {
			sub.queue.Close()
		}
		c.out.Close()
		close(c.done)

		if c.onClose != nil {
			c.onClose(reason)
		}
	})
}

func (c *conn) closeErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err == nil {
		return session.ErrSessionClosed
	}
	return c.err
}

// errConnectionLost reports a connection that dropped without the session
// being destroyed.
var errConnectionLost = errors.New("client: connection lost")

func closeError(reason protocol.CloseReason) error {
	switch reason {
	case protocol.CloseNormal, protocol.CloseSessionDestroyed, protocol.CloseServerShutdown:
		return session.ErrSessionClosed
	default:
		return &session.ConnectError{Err: errConnectionLost}
	}
}
