package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vango-dev/huddle/pkg/session"
)

// DefaultIssuer is the iss claim of tokens minted by TokenIssuer.
const DefaultIssuer = "huddle"

// Claims are the JWT claims checked on join. Subject is the client name;
// Session, when set, restricts the token to one session.
type Claims struct {
	Session string `json:"session,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer mints HS256 tokens for clients.
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer creates an issuer. A zero ttl mints tokens without expiry.
func NewTokenIssuer(secret []byte, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: secret, issuer: DefaultIssuer, ttl: ttl, now: time.Now}
}

// Issue returns a signed token for client. An empty sessionName makes the
// token valid for every session.
func (i *TokenIssuer) Issue(client, sessionName string) (string, error) {
	now := i.now()
	claims := Claims{
		Session: sessionName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  client,
			Issuer:   i.issuer,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if i.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(i.ttl))
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// JWTAuthorizer accepts clients presenting a valid token whose subject is
// the client name.
type JWTAuthorizer struct {
	secret []byte
	issuer string
}

// NewJWTAuthorizer creates an authorizer verifying tokens signed with secret.
func NewJWTAuthorizer(secret []byte) *JWTAuthorizer {
	return &JWTAuthorizer{secret: secret, issuer: DefaultIssuer}
}

// Authorize implements session.Authorizer.
func (a *JWTAuthorizer) Authorize(_ context.Context, req session.AuthRequest) error {
	if req.Token == "" {
		return fmt.Errorf("%w: missing token", ErrUnauthorized)
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(req.Token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithIssuer(a.issuer))
	if err != nil || !token.Valid {
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	if claims.Subject != req.Client {
		return fmt.Errorf("%w: token subject %q does not match client %q", ErrForbidden, claims.Subject, req.Client)
	}
	if claims.Session != "" && claims.Session != req.Session {
		return fmt.Errorf("%w: token not valid for session %q", ErrForbidden, req.Session)
	}
	return nil
}

// TokenClient is a session.Client that authenticates with tokens minted by
// an issuer for each session it joins.
type TokenClient struct {
	name   string
	issuer *TokenIssuer
}

// NewTokenClient creates a client named name.
func NewTokenClient(name string, issuer *TokenIssuer) *TokenClient {
	return &TokenClient{name: name, issuer: issuer}
}

// Name returns the client name.
func (c *TokenClient) Name() string { return c.name }

// Authenticate mints a token scoped to the session being joined.
func (c *TokenClient) Authenticate(_ context.Context, info session.AuthInfo) (string, error) {
	return c.issuer.Issue(c.name, info.Session)
}
