package session

import (
	"errors"
	"fmt"

	"github.com/vango-dev/huddle/pkg/protocol"
)

// wireCodes maps sentinels onto wire error codes one-to-one.
var wireCodes = []struct {
	err  error
	code protocol.ErrorCode
}{
	{ErrNameInUse, protocol.ErrNameInUse},
	{ErrSessionInUse, protocol.ErrSessionInUse},
	{ErrNoSuchConsumer, protocol.ErrNoSuchConsumer},
	{ErrNoSuchByteArray, protocol.ErrNoSuchByteArray},
	{ErrNoSuchChannel, protocol.ErrNoSuchChannel},
	{ErrNoSuchSession, protocol.ErrNoSuchSession},
	{ErrNoSuchClient, protocol.ErrNoSuchClient},
	{ErrNotJoined, protocol.ErrNotJoined},
	{ErrSessionClosed, protocol.ErrSessionClosed},
	{ErrPermissionDenied, protocol.ErrNotAuthorized},
	{ErrProtocolDecode, protocol.ErrInvalidFrame},
}

// CodeOf returns the wire error code for err: CodeOK for nil, the matching
// code for a sentinel, ErrServerError otherwise.
func CodeOf(err error) protocol.ErrorCode {
	if err == nil {
		return protocol.CodeOK
	}
	for _, c := range wireCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return protocol.ErrServerError
}

// ErrorOf converts a wire error code back into an error that matches the
// sentinel with errors.Is. Codes without a sentinel become a
// *protocol.ErrorMessage. It returns nil for CodeOK.
func ErrorOf(code protocol.ErrorCode, message string) error {
	if code == protocol.CodeOK {
		return nil
	}
	for _, c := range wireCodes {
		if c.code != code {
			continue
		}
		if message == "" {
			return c.err
		}
		return fmt.Errorf("%w: %s", c.err, message)
	}
	return &protocol.ErrorMessage{Code: code, Message: message}
}
