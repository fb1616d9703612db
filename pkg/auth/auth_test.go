package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vango-dev/huddle/pkg/session"
)

var testSecret = []byte("test-secret")

func TestStaticAuthorizers(t *testing.T) {
	ctx := context.Background()
	req := func(client string) session.AuthRequest {
		return session.AuthRequest{Session: "S", Type: "socket", Client: client}
	}

	tests := []struct {
		name    string
		a       session.Authorizer
		client  string
		wantErr error
	}{
		{"allow_all", AllowAll(), "anyone", nil},
		{"allow_listed", AllowClients("alice", "bob"), "bob", nil},
		{"allow_unlisted", AllowClients("alice"), "mallory", ErrForbidden},
		{"deny_listed", DenyClients("mallory"), "mallory", ErrForbidden},
		{"deny_unlisted", DenyClients("mallory"), "alice", nil},
		{"chain_all_pass", Chain(AllowAll(), DenyClients("x")), "alice", nil},
		{"chain_one_fails", Chain(AllowClients("alice"), DenyClients("alice")), "alice", ErrForbidden},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.a.Authorize(ctx, req(tc.client))
			if tc.wantErr == nil && err != nil {
				t.Errorf("Authorize() error = %v, want nil", err)
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Errorf("Authorize() error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestJWTAuthorizer(t *testing.T) {
	issuer := NewTokenIssuer(testSecret, time.Hour)
	a := NewJWTAuthorizer(testSecret)

	scoped, err := issuer.Issue("alice", "S")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	wildcard, _ := issuer.Issue("alice", "")
	forged, _ := NewTokenIssuer([]byte("other"), time.Hour).Issue("alice", "S")

	expiredIssuer := NewTokenIssuer(testSecret, time.Minute)
	expiredIssuer.now = func() time.Time { return time.Now().Add(-time.Hour) }
	expired, _ := expiredIssuer.Issue("alice", "S")

	tests := []struct {
		name    string
		req     session.AuthRequest
		wantErr error
	}{
		{"valid", session.AuthRequest{Session: "S", Client: "alice", Token: scoped}, nil},
		{"any_session", session.AuthRequest{Session: "Other", Client: "alice", Token: wildcard}, nil},
		{"wrong_session", session.AuthRequest{Session: "Other", Client: "alice", Token: scoped}, ErrForbidden},
		{"wrong_subject", session.AuthRequest{Session: "S", Client: "bob", Token: scoped}, ErrForbidden},
		{"missing", session.AuthRequest{Session: "S", Client: "alice"}, ErrUnauthorized},
		{"bad_signature", session.AuthRequest{Session: "S", Client: "alice", Token: forged}, ErrUnauthorized},
		{"expired", session.AuthRequest{Session: "S", Client: "alice", Token: expired}, ErrUnauthorized},
		{"garbage", session.AuthRequest{Session: "S", Client: "alice", Token: "not.a.jwt"}, ErrUnauthorized},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := a.Authorize(context.Background(), tc.req)
			if tc.wantErr == nil && err != nil {
				t.Errorf("Authorize() error = %v, want nil", err)
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Errorf("Authorize() error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestTokenClientJoinsGuardedSession(t *testing.T) {
	issuer := NewTokenIssuer(testSecret, time.Hour)
	m := session.NewManager(session.ManagerConfig{Authorizer: NewJWTAuthorizer(testSecret)})

	ctx := context.Background()
	if _, err := m.CreateOrJoin(ctx, NewTokenClient("alice", issuer), "S", true); err != nil {
		t.Fatalf("token client join error = %v", err)
	}
	_, err := m.CreateOrJoin(ctx, session.NewClient("bob"), "S", true)
	if !errors.Is(err, session.ErrPermissionDenied) || !errors.Is(err, ErrUnauthorized) {
		t.Errorf("tokenless join error = %v, want ErrPermissionDenied wrapping ErrUnauthorized", err)
	}
}
