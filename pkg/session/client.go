package session

import (
	"context"
)

// Client identifies one participant. Identity is compared by Name.
type Client interface {
	// Name returns the client's name, unique within a session.
	Name() string

	// Authenticate answers the session's challenge with credentials that
	// the session's Authorizer checks. Clients of sessions without an
	// Authorizer may return an empty string.
	Authenticate(ctx context.Context, info AuthInfo) (string, error)
}

// AuthInfo describes the session a client is being authenticated for.
type AuthInfo struct {
	Session string // Session name
	Type    string // Session transport type
	Client  string // Name the client is joining under
}

// AuthRequest is what an Authorizer decides on.
type AuthRequest struct {
	Session string
	Type    string
	Client  string
	Token   string // Value returned by Client.Authenticate
}

// Authorizer accepts or rejects a client joining a session.
type Authorizer interface {
	Authorize(ctx context.Context, req AuthRequest) error
}

// AuthorizerFunc adapts a function to the Authorizer interface.
type AuthorizerFunc func(ctx context.Context, req AuthRequest) error

// Authorize calls f(ctx, req).
func (f AuthorizerFunc) Authorize(ctx context.Context, req AuthRequest) error {
	return f(ctx, req)
}

// BasicClient is a Client with a fixed name and an optional static token.
type BasicClient struct {
	name  string
	token string
}

// NewClient returns a client with the given name and no credentials.
func NewClient(name string) *BasicClient {
	return &BasicClient{name: name}
}

// NewClientWithToken returns a client that authenticates with token.
func NewClientWithToken(name, token string) *BasicClient {
	return &BasicClient{name: name, token: token}
}

// Name returns the client name.
func (c *BasicClient) Name() string { return c.name }

// Authenticate returns the client's static token.
func (c *BasicClient) Authenticate(context.Context, AuthInfo) (string, error) {
	return c.token, nil
}
