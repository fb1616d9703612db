package protocol

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestFrameEncodeDecode(t *testing.T) {
	tests := []struct {
		name    string
		frame   Frame
		wantLen int // expected total length including header
	}{
		{
			name:    "empty_payload",
			frame:   Frame{Type: FrameEvent, Payload: []byte{}},
			wantLen: FrameHeaderSize,
		},
		{
			name:    "request",
			frame:   Frame{Type: FrameRequest, Payload: []byte{0x01, 0x02, 0x03}},
			wantLen: FrameHeaderSize + 3,
		},
		{
			name:    "priority_event",
			frame:   Frame{Type: FrameEvent, Flags: FlagPriority, Payload: []byte("test")},
			wantLen: FrameHeaderSize + 4,
		},
		{
			name:    "handshake",
			frame:   Frame{Type: FrameHandshake, Payload: []byte{0x01, 0x00}},
			wantLen: FrameHeaderSize + 2,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			encoded := tc.frame.Encode()
			if len(encoded) != tc.wantLen {
				t.Errorf("Encode() length = %d, want %d", len(encoded), tc.wantLen)
			}
			if FrameType(encoded[0]) != tc.frame.Type {
				t.Errorf("Encoded type = %v, want %v", FrameType(encoded[0]), tc.frame.Type)
			}
			if FrameFlags(encoded[1]) != tc.frame.Flags {
				t.Errorf("Encoded flags = %v, want %v", FrameFlags(encoded[1]), tc.frame.Flags)
			}

			decoded, err := DecodeFrame(encoded)
			if err != nil {
				t.Fatalf("DecodeFrame() error = %v", err)
			}
			if decoded.Type != tc.frame.Type {
				t.Errorf("Decoded type = %v, want %v", decoded.Type, tc.frame.Type)
			}
			if decoded.Flags != tc.frame.Flags {
				t.Errorf("Decoded flags = %v, want %v", decoded.Flags, tc.frame.Flags)
			}
			if !bytes.Equal(decoded.Payload, tc.frame.Payload) {
				t.Errorf("Decoded payload = %v, want %v", decoded.Payload, tc.frame.Payload)
			}
		})
	}
}

func TestDecodeFrameErrors(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{"short_header", []byte{0x01, 0x00, 0x00}, io.ErrUnexpectedEOF},
		{"truncated_payload", []byte{0x01, 0x00, 0x00, 0x00, 0x00, 0x05, 0xAA}, io.ErrUnexpectedEOF},
		{"invalid_type", []byte{0x7F, 0x00, 0x00, 0x00, 0x00, 0x00}, ErrInvalidFrameType},
		{"too_large", []byte{0x01, 0x00, 0x7F, 0xFF, 0xFF, 0xFF}, ErrFrameTooLarge},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeFrame(tc.data)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("DecodeFrame() error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestReadWriteFrame(t *testing.T) {
	var buf bytes.Buffer
	frames := []*Frame{
		NewFrame(FrameRequest, []byte("one")),
		NewFrameWithFlags(FrameEvent, FlagPriority, []byte("two")),
		NewFrame(FrameControl, nil),
	}
	for _, f := range frames {
		if err := WriteFrame(&buf, f); err != nil {
			t.Fatalf("WriteFrame() error = %v", err)
		}
	}

	for i, want := range frames {
		got, err := ReadFrame(&buf)
		if err != nil {
			t.Fatalf("ReadFrame(%d) error = %v", i, err)
		}
		if got.Type != want.Type || got.Flags != want.Flags {
			t.Errorf("frame %d = %v/%v, want %v/%v", i, got.Type, got.Flags, want.Type, want.Flags)
		}
		if !bytes.Equal(got.Payload, want.Payload) {
			t.Errorf("frame %d payload = %q, want %q", i, got.Payload, want.Payload)
		}
	}

	if _, err := ReadFrame(&buf); err != io.EOF {
		t.Errorf("ReadFrame() on empty reader error = %v, want io.EOF", err)
	}
}

func TestFrameTypeString(t *testing.T) {
	tests := []struct {
		ft   FrameType
		want string
	}{
		{FrameHandshake, "Handshake"},
		{FrameRequest, "Request"},
		{FrameReply, "Reply"},
		{FrameEvent, "Event"},
		{FrameControl, "Control"},
		{FrameError, "Error"},
		{FrameType(0xFF), "Unknown"},
	}
	for _, tc := range tests {
		if got := tc.ft.String(); got != tc.want {
			t.Errorf("FrameType(%d).String() = %q, want %q", tc.ft, got, tc.want)
		}
	}
}

func TestFrameFlagsHas(t *testing.T) {
	if !FlagPriority.Has(FlagPriority) {
		t.Error("FlagPriority.Has(FlagPriority) = false")
	}
	if FrameFlags(0).Has(FlagPriority) {
		t.Error("FrameFlags(0).Has(FlagPriority) = true")
	}
}
