package session

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestTypedErrorsMatchSentinels(t *testing.T) {
	dialErr := errors.New("connection refused")

	tests := []struct {
		name        string
		err         error
		sentinel    error
		recoverable bool
		msg         string
	}{
		{
			name:     "connect",
			err:      &ConnectError{Addr: "localhost:4466", Err: dialErr},
			sentinel: ErrConnect,
			msg:      "session: connect localhost:4466: connection refused",
		},
		{
			name:     "registry",
			err:      &RegistryError{Type: "socket", Addr: ":4466", Err: dialErr},
			sentinel: ErrRegistry,
			msg:      "session: registry socket at :4466: connection refused",
		},
		{
			name:        "decode",
			err:         &ProtocolDecodeError{What: "stock record", Err: dialErr},
			sentinel:    ErrProtocolDecode,
			recoverable: true,
			msg:         "session: decode stock record: connection refused",
		},
		{
			name:        "op",
			err:         &OpError{Op: "close", Resource: "S", Err: ErrSessionInUse},
			sentinel:    ErrSessionInUse,
			recoverable: true,
			msg:         "close S: session: session in use",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if !errors.Is(tc.err, tc.sentinel) {
				t.Errorf("errors.Is(%v, %v) = false", tc.err, tc.sentinel)
			}
			if got := IsRecoverable(tc.err); got != tc.recoverable {
				t.Errorf("IsRecoverable() = %v, want %v", got, tc.recoverable)
			}
			if got := tc.err.Error(); got != tc.msg {
				t.Errorf("Error() = %q, want %q", got, tc.msg)
			}
		})
	}

	if !errors.Is(&ConnectError{Err: dialErr}, dialErr) {
		t.Error("ConnectError does not unwrap to its cause")
	}
}

func TestIsRecoverableDefaults(t *testing.T) {
	if !IsRecoverable(nil) {
		t.Error("IsRecoverable(nil) = false")
	}
	if IsRecoverable(context.DeadlineExceeded) {
		t.Error("IsRecoverable(unknown) = true")
	}
	if !IsRecoverable(fmt.Errorf("wrapped: %w", ErrNoSuchChannel)) {
		t.Error("IsRecoverable(wrapped ErrNoSuchChannel) = false")
	}
}
