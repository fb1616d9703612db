package protocol

import (
	"testing"
)

func TestClientHelloEncodeDecode(t *testing.T) {
	tests := []struct {
		name  string
		hello *ClientHello
	}{
		{
			name:  "create",
			hello: NewClientHello("S", "socket", "alice", "", true),
		},
		{
			name: "join_with_token",
			hello: &ClientHello{
				Version: ProtocolVersion{Major: 1, Minor: 3},
				Session: "StockSession",
				Type:    "socket",
				Client:  "bob+",
				Token:   "eyJhbGciOi.payload.sig",
			},
		},
		{
			name:  "minimal",
			hello: &ClientHello{Version: CurrentVersion},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			decoded, err := DecodeClientHello(EncodeClientHello(tc.hello))
			if err != nil {
				t.Fatalf("DecodeClientHello() error = %v", err)
			}
			if *decoded != *tc.hello {
				t.Errorf("decoded = %+v, want %+v", decoded, tc.hello)
			}
		})
	}
}

func TestServerHelloEncodeDecode(t *testing.T) {
	tests := []struct {
		name  string
		hello *ServerHello
	}{
		{
			name:  "ok_creator",
			hello: NewServerHello("01J9ZQ3K6M8W5Y", "alice", true, 1700000000000),
		},
		{
			name:  "ok_joiner",
			hello: NewServerHello("01J9ZQ3K6M8W5Y", "bob", false, 1700000000123),
		},
		{
			name:  "name_in_use",
			hello: NewServerHelloError(HandshakeNameInUse, "client name bob already joined"),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			decoded, err := DecodeServerHello(EncodeServerHello(tc.hello))
			if err != nil {
				t.Fatalf("DecodeServerHello() error = %v", err)
			}
			if *decoded != *tc.hello {
				t.Errorf("decoded = %+v, want %+v", decoded, tc.hello)
			}
		})
	}
}

func TestDecodeClientHelloTruncated(t *testing.T) {
	data := EncodeClientHello(NewClientHello("S", "socket", "alice", "tok", true))
	for i := 0; i < len(data); i++ {
		if _, err := DecodeClientHello(data[:i]); err == nil {
			t.Fatalf("DecodeClientHello(data[:%d]) succeeded, want error", i)
		}
	}
}

func TestProtocolVersionCompatible(t *testing.T) {
	tests := []struct {
		v    ProtocolVersion
		want bool
	}{
		{CurrentVersion, true},
		{ProtocolVersion{Major: CurrentVersion.Major, Minor: 9}, true},
		{ProtocolVersion{Major: CurrentVersion.Major + 1}, false},
	}
	for _, tc := range tests {
		if got := CurrentVersion.Compatible(tc.v); got != tc.want {
			t.Errorf("Compatible(%v) = %v, want %v", tc.v, got, tc.want)
		}
	}
}

func TestHandshakeStatusString(t *testing.T) {
	tests := []struct {
		status HandshakeStatus
		want   string
	}{
		{HandshakeOK, "OK"},
		{HandshakeNameInUse, "NameInUse"},
		{HandshakeNoSuchSession, "NoSuchSession"},
		{HandshakeNotAuthorized, "NotAuthorized"},
		{HandshakeUnsupportedTransport, "UnsupportedTransport"},
		{HandshakeStatus(0xEE), "Unknown"},
	}
	for _, tc := range tests {
		if got := tc.status.String(); got != tc.want {
			t.Errorf("%d.String() = %q, want %q", tc.status, got, tc.want)
		}
	}
}
