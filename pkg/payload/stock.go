package payload

import (
	"github.com/vango-dev/huddle/pkg/protocol"
	"github.com/vango-dev/huddle/pkg/session"
)

// Stock is one ticker quote. Quote fields are kept as the feed's display
// strings; an invalid record carries only the symbol.
type Stock struct {
	Symbol        string
	Valid         bool
	Time          string
	Value         string
	Change        string
	PercentChange string
}

// MarshalBinary encodes the record: symbol, valid flag, then the four quote
// strings when valid.
func (s Stock) MarshalBinary() ([]byte, error) {
	e := protocol.NewEncoderWithCap(64)
	if err := appendUTF(e, s.Symbol); err != nil {
		return nil, err
	}
	e.WriteBool(s.Valid)
	if !s.Valid {
		return e.Bytes(), nil
	}
	for _, f := range []string{s.Time, s.Value, s.Change, s.PercentChange} {
		if err := appendUTF(e, f); err != nil {
			return nil, err
		}
	}
	return e.Bytes(), nil
}

// UnmarshalBinary decodes a record written by MarshalBinary.
func (s *Stock) UnmarshalBinary(data []byte) error {
	var out Stock
	d := protocol.NewDecoder(data)

	var err error
	if out.Symbol, err = readUTF(d); err != nil {
		return decodeError("stock symbol", err)
	}
	if out.Valid, err = d.ReadBool(); err != nil {
		return decodeError("stock valid flag", err)
	}
	if out.Valid {
		for _, f := range []*string{&out.Time, &out.Value, &out.Change, &out.PercentChange} {
			if *f, err = readUTF(d); err != nil {
				return decodeError("stock quote", err)
			}
		}
	}
	if !d.EOF() {
		return decodeError("stock", errTrailing(d.Remaining()))
	}
	*s = out
	return nil
}

// DecodeStock decodes a stock record.
func DecodeStock(data []byte) (Stock, error) {
	var s Stock
	err := s.UnmarshalBinary(data)
	return s, err
}

func decodeError(what string, err error) error {
	return &session.ProtocolDecodeError{What: what, Err: err}
}
