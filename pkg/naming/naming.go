// Package naming parses and formats session URLs.
//
// A session URL names the rendezvous endpoint, the transport type and the
// session:
//
//	huddle://localhost:4466/socket/Session/StockSession
//
// The jsdt:// scheme is accepted as a compatibility alias.
package naming

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

const (
	// Scheme is the session URL scheme.
	Scheme = "huddle"

	// AliasScheme is a compatibility alias accepted by Parse and rewritten
	// to Scheme.
	AliasScheme = "jsdt"

	// DefaultPort is used when a URL names no port.
	DefaultPort = 4461

	// DefaultType is the only supported transport type.
	DefaultType = "socket"

	sessionSegment = "Session"
)

// Errors returned by Parse.
var (
	ErrInvalidURL  = errors.New("naming: invalid session URL")
	ErrInvalidPort = errors.New("naming: invalid port")

	// ErrUnsupportedType is returned for transport types other than
	// DefaultType.
	ErrUnsupportedType = errors.New("naming: unsupported transport type")
)

// CheckType reports whether typ names a supported transport.
func CheckType(typ string) error {
	if typ != DefaultType {
		return fmt.Errorf("%w: %q", ErrUnsupportedType, typ)
	}
	return nil
}

// URL identifies a session at a rendezvous endpoint.
type URL struct {
	Host    string
	Port    int
	Type    string
	Session string
}

// New builds a URL.
func New(host string, port int, typ, sessionName string) URL {
	return URL{Host: host, Port: port, Type: typ, Session: sessionName}
}

// Parse parses a session URL of the form
// huddle://host[:port]/<type>/Session/<name>.
func Parse(raw string) (URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return URL{}, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != Scheme && u.Scheme != AliasScheme {
		return URL{}, fmt.Errorf("%w: scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.Hostname() == "" {
		return URL{}, fmt.Errorf("%w: missing host", ErrInvalidURL)
	}

	port := DefaultPort
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil || port <= 0 || port > 65535 {
			return URL{}, fmt.Errorf("%w: %q", ErrInvalidPort, p)
		}
	}

	parts := strings.Split(strings.Trim(u.EscapedPath(), "/"), "/")
	if len(parts) != 3 || parts[1] != sessionSegment || parts[0] == "" || parts[2] == "" {
		return URL{}, fmt.Errorf("%w: path %q, want /<type>/Session/<name>", ErrInvalidURL, u.Path)
	}
	name, err := url.PathUnescape(parts[2])
	if err != nil {
		return URL{}, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	return URL{
		Host:    u.Hostname(),
		Port:    port,
		Type:    parts[0],
		Session: name,
	}, nil
}

// String formats the URL with the huddle scheme.
func (u URL) String() string {
	return fmt.Sprintf("%s://%s/%s/%s/%s",
		Scheme, u.Addr(), u.Type, sessionSegment, url.PathEscape(u.Session))
}

// Addr returns host:port.
func (u URL) Addr() string {
	return net.JoinHostPort(u.Host, strconv.Itoa(u.Port))
}

// WebSocketURL returns the ws:// address of the endpoint serving u.Type.
func (u URL) WebSocketURL() string {
	return "ws://" + u.Addr() + "/ws/" + url.PathEscape(u.Type)
}

// HTTPURL returns the http:// base address of the endpoint.
func (u URL) HTTPURL() string {
	return "http://" + u.Addr()
}
