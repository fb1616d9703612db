package payload

import (
	"errors"
	"fmt"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/vango-dev/huddle/pkg/protocol"
)

// MaxStringLen is the largest encoded string a 2-byte length prefix allows.
const MaxStringLen = 0xFFFF

var (
	errStringTooLong = errors.New("payload: string exceeds 65535 encoded bytes")
	errBadUTF        = errors.New("payload: malformed modified UTF-8")
)

// appendUTF appends s as modified UTF-8: a big-endian uint16 byte count,
// then each UTF-16 code unit encoded in one to three bytes. NUL takes two
// bytes so the encoding never contains a zero byte.
func appendUTF(e *protocol.Encoder, s string) error {
	units := utf16.Encode([]rune(s))
	n := 0
	for _, u := range units {
		n += unitLen(u)
	}
	if n > MaxStringLen {
		return fmt.Errorf("%w: %d", errStringTooLong, n)
	}

	e.WriteUint16(uint16(n))
	for _, u := range units {
		switch unitLen(u) {
		case 1:
			e.WriteByte(byte(u))
		case 2:
			e.WriteByte(0xC0 | byte(u>>6))
			e.WriteByte(0x80 | byte(u&0x3F))
		default:
			e.WriteByte(0xE0 | byte(u>>12))
			e.WriteByte(0x80 | byte((u>>6)&0x3F))
			e.WriteByte(0x80 | byte(u&0x3F))
		}
	}
	return nil
}

func unitLen(u uint16) int {
	switch {
	case u >= 0x0001 && u <= 0x007F:
		return 1
	case u <= 0x07FF:
		return 2
	default:
		return 3
	}
}

// readUTF reads a string written by appendUTF.
func readUTF(d *protocol.Decoder) (string, error) {
	n, err := d.ReadUint16()
	if err != nil {
		return "", err
	}
	b, err := d.ReadBytes(int(n))
	if err != nil {
		return "", err
	}

	units := make([]uint16, 0, len(b))
	for i := 0; i < len(b); {
		c := b[i]
		switch {
		case c < 0x80:
			if c == 0 {
				return "", errBadUTF
			}
			units = append(units, uint16(c))
			i++
		case c&0xE0 == 0xC0:
			if i+1 >= len(b) || b[i+1]&0xC0 != 0x80 {
				return "", errBadUTF
			}
			units = append(units, uint16(c&0x1F)<<6|uint16(b[i+1]&0x3F))
			i += 2
		case c&0xF0 == 0xE0:
			if i+2 >= len(b) || b[i+1]&0xC0 != 0x80 || b[i+2]&0xC0 != 0x80 {
				return "", errBadUTF
			}
			units = append(units, uint16(c&0x0F)<<12|uint16(b[i+1]&0x3F)<<6|uint16(b[i+2]&0x3F))
			i += 3
		default:
			return "", errBadUTF
		}
	}

	runes := utf16.Decode(units)
	out := make([]byte, 0, len(runes))
	for _, r := range runes {
		out = utf8.AppendRune(out, r)
	}
	return string(out), nil
}
