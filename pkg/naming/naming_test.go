package naming

import (
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want URL
	}{
		{
			name: "full",
			raw:  "huddle://localhost:4466/socket/Session/S",
			want: URL{Host: "localhost", Port: 4466, Type: "socket", Session: "S"},
		},
		{
			name: "alias_scheme",
			raw:  "jsdt://stocks.example.com:4461/socket/Session/StockSession",
			want: URL{Host: "stocks.example.com", Port: 4461, Type: "socket", Session: "StockSession"},
		},
		{
			name: "default_port",
			raw:  "huddle://10.0.0.1/socket/Session/MidiSession",
			want: URL{Host: "10.0.0.1", Port: DefaultPort, Type: "socket", Session: "MidiSession"},
		},
		{
			name: "escaped_name",
			raw:  "huddle://h:1/socket/Session/white%20board",
			want: URL{Host: "h", Port: 1, Type: "socket", Session: "white board"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Parse(tc.raw)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if got != tc.want {
				t.Errorf("Parse() = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		raw     string
		wantErr error
	}{
		{"http://h:1/socket/Session/S", ErrInvalidURL},
		{"huddle:///socket/Session/S", ErrInvalidURL},
		{"huddle://h:1/socket/S", ErrInvalidURL},
		{"huddle://h:1/socket/Channel/S", ErrInvalidURL},
		{"huddle://h:1/socket/Session/", ErrInvalidURL},
		{"huddle://h:0/socket/Session/S", ErrInvalidPort},
		{"huddle://h:99999/socket/Session/S", ErrInvalidPort},
	}

	for _, tc := range tests {
		t.Run(tc.raw, func(t *testing.T) {
			if _, err := Parse(tc.raw); !errors.Is(err, tc.wantErr) {
				t.Errorf("Parse(%q) error = %v, want %v", tc.raw, err, tc.wantErr)
			}
		})
	}
}

func TestURLFormatting(t *testing.T) {
	u := New("localhost", 4466, "socket", "white board")
	if got, want := u.String(), "huddle://localhost:4466/socket/Session/white%20board"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if got, want := u.WebSocketURL(), "ws://localhost:4466/ws/socket"; got != want {
		t.Errorf("WebSocketURL() = %q, want %q", got, want)
	}
	if got, want := u.HTTPURL(), "http://localhost:4466"; got != want {
		t.Errorf("HTTPURL() = %q, want %q", got, want)
	}

	back, err := Parse(u.String())
	if err != nil || back != u {
		t.Errorf("Parse(String()) = %+v, %v", back, err)
	}
}

func TestCheckType(t *testing.T) {
	if err := CheckType(DefaultType); err != nil {
		t.Fatalf("CheckType(%q) = %v", DefaultType, err)
	}
	if err := CheckType("http"); !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("CheckType(http) = %v, want ErrUnsupportedType", err)
	}
}
