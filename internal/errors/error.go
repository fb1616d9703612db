package errors

import (
	stderrors "errors"
	"fmt"

	"github.com/vango-dev/huddle/pkg/session"
)

// Category represents the type of error.
type Category string

const (
	CategoryConfig   Category = "config"
	CategoryConnect  Category = "connect"
	CategorySession  Category = "session"
	CategoryRegistry Category = "registry"
	CategoryPayload  Category = "payload"
	CategoryCLI      Category = "cli"
)

// HuddleError is a coded error with an explanation and a fix suggestion,
// shown to people running the huddle commands.
type HuddleError struct {
	// Code is a unique error identifier (e.g., "H201").
	Code string

	// Category is the error type (config, connect, etc.).
	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation of the error.
	Detail string

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *HuddleError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = e.Code + ": " + msg
	}
	if e.Wrapped != nil {
		msg += ": " + e.Wrapped.Error()
	}
	return msg
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *HuddleError) Unwrap() error {
	return e.Wrapped
}

// WithSuggestion adds a fix suggestion to the error.
func (e *HuddleError) WithSuggestion(s string) *HuddleError {
	e.Suggestion = s
	return e
}

// WithDetail adds a detailed explanation to the error.
func (e *HuddleError) WithDetail(d string) *HuddleError {
	e.Detail = d
	return e
}

// Wrap wraps another error.
func (e *HuddleError) Wrap(err error) *HuddleError {
	e.Wrapped = err
	return e
}

// New creates a HuddleError from a registered error code.
func New(code string) *HuddleError {
	template, ok := registry[code]
	if !ok {
		return &HuddleError{
			Code:    code,
			Message: "Unknown error",
		}
	}
	return &HuddleError{
		Code:       code,
		Category:   template.Category,
		Message:    template.Message,
		Detail:     template.Detail,
		Suggestion: template.Suggestion,
	}
}

// Newf creates a new HuddleError with a formatted message (no code).
func Newf(category Category, format string, args ...any) *HuddleError {
	return &HuddleError{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// sessionCodes maps substrate sentinels to the codes shown for them, most
// specific first.
var sessionCodes = []struct {
	err  error
	code string
}{
	{session.ErrNameInUse, "H201"},
	{session.ErrNoSuchSession, "H202"},
	{session.ErrPermissionDenied, "H203"},
	{session.ErrSessionInUse, "H204"},
	{session.ErrSessionClosed, "H205"},
	{session.ErrNotJoined, "H206"},
	{session.ErrNoSuchChannel, "H207"},
	{session.ErrNoSuchByteArray, "H208"},
	{session.ErrRegistry, "H300"},
	{session.ErrConnect, "H200"},
	{session.ErrProtocolDecode, "H400"},
}

// FromError wraps err in a HuddleError. A *HuddleError is returned as is;
// substrate errors get their own code and fallback is used for the rest.
func FromError(err error, fallback string) *HuddleError {
	if err == nil {
		return nil
	}
	var he *HuddleError
	if stderrors.As(err, &he) {
		return he
	}
	for _, sc := range sessionCodes {
		if stderrors.Is(err, sc.err) {
			return New(sc.code).Wrap(err)
		}
	}
	return New(fallback).Wrap(err)
}
