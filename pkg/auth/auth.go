// Package auth provides session.Authorizer implementations: static allow and
// deny lists, and HMAC-signed JWTs whose subject must match the joining
// client's name.
//
//	issuer := auth.NewTokenIssuer(secret, time.Hour)
//	m := session.NewManager(session.ManagerConfig{
//	    Authorizer: auth.NewJWTAuthorizer(secret),
//	})
//
//	c := auth.NewTokenClient("alice", issuer)
//	s, err := m.CreateOrJoin(ctx, c, "S", true)
package auth

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/vango-dev/huddle/pkg/session"
)

// ErrUnauthorized is returned when credentials are missing or invalid.
var ErrUnauthorized = errors.New("unauthorized: authentication required")

// ErrForbidden is returned when credentials are valid but the client may not
// join the session.
var ErrForbidden = errors.New("forbidden: insufficient permissions")

// AllowAll accepts every client.
func AllowAll() session.Authorizer {
	return session.AuthorizerFunc(func(context.Context, session.AuthRequest) error {
		return nil
	})
}

// AllowClients accepts only the listed client names.
func AllowClients(names ...string) session.Authorizer {
	allowed := slices.Clone(names)
	return session.AuthorizerFunc(func(_ context.Context, req session.AuthRequest) error {
		if !slices.Contains(allowed, req.Client) {
			return fmt.Errorf("%w: client %q", ErrForbidden, req.Client)
		}
		return nil
	})
}

// DenyClients rejects the listed client names.
func DenyClients(names ...string) session.Authorizer {
	denied := slices.Clone(names)
	return session.AuthorizerFunc(func(_ context.Context, req session.AuthRequest) error {
		if slices.Contains(denied, req.Client) {
			return fmt.Errorf("%w: client %q", ErrForbidden, req.Client)
		}
		return nil
	})
}

// Chain accepts a client only if every authorizer accepts it.
func Chain(authorizers ...session.Authorizer) session.Authorizer {
	return session.AuthorizerFunc(func(ctx context.Context, req session.AuthRequest) error {
		for _, a := range authorizers {
			if a == nil {
				continue
			}
			if err := a.Authorize(ctx, req); err != nil {
				return err
			}
		}
		return nil
	})
}
