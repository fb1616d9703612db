package server

import (
	"context"

	"github.com/vango-dev/huddle/pkg/protocol"
)

// RequestCtx carries one request through the middleware chain.
type RequestCtx struct {
	std    context.Context
	info   RequestInfo
	req    *protocol.Request
	reply  *protocol.Reply
	values map[any]any
}

// RequestInfo identifies who sent a request.
type RequestInfo struct {
	Session   string // Session name
	SessionID string // Unique id of the session instance
	Client    string // Requesting client
	ConnID    string // Requesting connection
}

// NewRequestCtx returns a RequestCtx for req. The server builds one per
// request; middleware tests build their own.
func NewRequestCtx(std context.Context, info RequestInfo, req *protocol.Request) *RequestCtx {
	if std == nil {
		std = context.Background()
	}
	return &RequestCtx{std: std, info: info, req: req}
}

// StdContext returns the standard context for the request.
func (c *RequestCtx) StdContext() context.Context { return c.std }

// WithStdContext replaces the standard context seen by later middleware and
// the handler.
func (c *RequestCtx) WithStdContext(ctx context.Context) *RequestCtx {
	c.std = ctx
	return c
}

// Op returns the requested operation.
func (c *RequestCtx) Op() protocol.Op { return c.req.Op }

// Request returns the decoded request.
func (c *RequestCtx) Request() *protocol.Request { return c.req }

// Reply returns the reply built by the handler. It is nil until next returns.
func (c *RequestCtx) Reply() *protocol.Reply { return c.reply }

// SetReply replaces the reply. Middleware that answers without calling next
// sets it.
func (c *RequestCtx) SetReply(r *protocol.Reply) { c.reply = r }

// Target returns the channel or byte array the request names.
func (c *RequestCtx) Target() string { return c.req.Target }

// Session returns the name of the connection's session.
func (c *RequestCtx) Session() string { return c.info.Session }

// SessionID returns the unique id of the connection's session.
func (c *RequestCtx) SessionID() string { return c.info.SessionID }

// Client returns the name of the requesting client.
func (c *RequestCtx) Client() string { return c.info.Client }

// ConnID returns the id of the requesting connection.
func (c *RequestCtx) ConnID() string { return c.info.ConnID }

// SetValue stores a request-scoped value.
func (c *RequestCtx) SetValue(key, value any) {
	if c.values == nil {
		c.values = make(map[any]any)
	}
	c.values[key] = value
}

// Value returns a request-scoped value.
func (c *RequestCtx) Value(key any) any {
	return c.values[key]
}

// RequestMiddleware wraps request handling.
type RequestMiddleware interface {
	Handle(ctx *RequestCtx, next func() error) error
}

// RequestMiddlewareFunc adapts a function to RequestMiddleware.
type RequestMiddlewareFunc func(ctx *RequestCtx, next func() error) error

// Handle implements RequestMiddleware.
func (f RequestMiddlewareFunc) Handle(ctx *RequestCtx, next func() error) error {
	return f(ctx, next)
}

// runChain calls handler inside the middleware in registration order; the
// first middleware is outermost.
func runChain(mw []RequestMiddleware, ctx *RequestCtx, handler func() error) error {
	next := handler
	for i := len(mw) - 1; i >= 0; i-- {
		m, inner := mw[i], next
		next = func() error { return m.Handle(ctx, inner) }
	}
	return next()
}
