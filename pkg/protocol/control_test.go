package protocol

import (
	"testing"
)

func TestControlEncodeDecode(t *testing.T) {
	tests := []struct {
		name    string
		ct      ControlType
		payload any
	}{
		{
			name:    "ping",
			ct:      ControlPing,
			payload: &PingPong{Timestamp: 1702000000000},
		},
		{
			name:    "pong",
			ct:      ControlPong,
			payload: &PingPong{Timestamp: 1702000000001},
		},
		{
			name:    "close_normal",
			ct:      ControlClose,
			payload: &CloseMessage{Reason: CloseNormal, Message: "left"},
		},
		{
			name:    "close_destroyed",
			ct:      ControlClose,
			payload: &CloseMessage{Reason: CloseSessionDestroyed, Message: "closed by alice"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ct, payload, err := DecodeControl(EncodeControl(tc.ct, tc.payload))
			if err != nil {
				t.Fatalf("DecodeControl() error = %v", err)
			}
			if ct != tc.ct {
				t.Errorf("type = %v, want %v", ct, tc.ct)
			}

			switch want := tc.payload.(type) {
			case *PingPong:
				got, ok := payload.(*PingPong)
				if !ok || *got != *want {
					t.Errorf("payload = %#v, want %#v", payload, want)
				}
			case *CloseMessage:
				got, ok := payload.(*CloseMessage)
				if !ok || *got != *want {
					t.Errorf("payload = %#v, want %#v", payload, want)
				}
			}
		})
	}
}

func TestControlNilPayload(t *testing.T) {
	ct, payload, err := DecodeControl(EncodeControl(ControlClose, nil))
	if err != nil {
		t.Fatalf("DecodeControl() error = %v", err)
	}
	cm, ok := payload.(*CloseMessage)
	if ct != ControlClose || !ok || cm.Reason != CloseNormal {
		t.Errorf("got %v %#v, want Close/Normal", ct, payload)
	}
}

func TestControlTypeString(t *testing.T) {
	tests := []struct {
		ct   ControlType
		want string
	}{
		{ControlPing, "Ping"},
		{ControlPong, "Pong"},
		{ControlClose, "Close"},
		{ControlType(0xFF), "Unknown"},
	}
	for _, tc := range tests {
		if got := tc.ct.String(); got != tc.want {
			t.Errorf("ControlType(%d).String() = %q, want %q", tc.ct, got, tc.want)
		}
	}
}

func TestCloseReasonString(t *testing.T) {
	tests := []struct {
		cr   CloseReason
		want string
	}{
		{CloseNormal, "Normal"},
		{CloseGoingAway, "GoingAway"},
		{CloseSessionDestroyed, "SessionDestroyed"},
		{CloseServerShutdown, "ServerShutdown"},
		{CloseError, "Error"},
		{CloseReason(0xFF), "Unknown"},
	}
	for _, tc := range tests {
		if got := tc.cr.String(); got != tc.want {
			t.Errorf("CloseReason(%d).String() = %q, want %q", tc.cr, got, tc.want)
		}
	}
}

func TestNewControlHelpers(t *testing.T) {
	ct, ping := NewPing(10)
	if ct != ControlPing || ping.Timestamp != 10 {
		t.Errorf("NewPing() = %v, %+v", ct, ping)
	}
	ct, pong := NewPong(11)
	if ct != ControlPong || pong.Timestamp != 11 {
		t.Errorf("NewPong() = %v, %+v", ct, pong)
	}
	ct, cm := NewClose(CloseServerShutdown, "bye")
	if ct != ControlClose || cm.Reason != CloseServerShutdown || cm.Message != "bye" {
		t.Errorf("NewClose() = %v, %+v", ct, cm)
	}
}

func BenchmarkEncodePing(b *testing.B) {
	pp := &PingPong{Timestamp: 1702000000000}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = EncodeControl(ControlPing, pp)
	}
}
