package session

import (
	"slices"
	"time"
)

// Info is a point-in-time description of a session, served as JSON by the
// rendezvous endpoint.
type Info struct {
	Name       string          `json:"name"`
	Type       string          `json:"type"`
	ID         string          `json:"id"`
	Creator    string          `json:"creator"`
	State      string          `json:"state"`
	CreatedAt  time.Time       `json:"created_at"`
	Clients    []string        `json:"clients"`
	Channels   []ChannelInfo   `json:"channels"`
	ByteArrays []ByteArrayInfo `json:"byte_arrays"`
}

// ChannelInfo describes a channel.
type ChannelInfo struct {
	Name      string   `json:"name"`
	Reliable  bool     `json:"reliable"`
	Ordered   bool     `json:"ordered"`
	Clients   []string `json:"clients"`
	Consumers int      `json:"consumers"`
}

// ByteArrayInfo describes a byte array.
type ByteArrayInfo struct {
	Name    string   `json:"name"`
	Version uint64   `json:"version"`
	Size    int      `json:"size"`
	Writer  string   `json:"writer,omitempty"`
	Clients []string `json:"clients"`
}

// Info returns a snapshot of the session.
func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()

	info := Info{
		Name:      s.name,
		Type:      s.typ,
		ID:        s.id,
		Creator:   s.creator,
		State:     s.state.String(),
		CreatedAt: s.createdAt,
		Clients:   slices.Clone(s.members),
	}
	for _, name := range sortedKeys(s.channels) {
		ch := s.channels[name]
		info.Channels = append(info.Channels, ChannelInfo{
			Name:      name,
			Reliable:  ch.reliable,
			Ordered:   ch.ordered,
			Clients:   slices.Clone(ch.members),
			Consumers: ch.consumers.len(),
		})
	}
	for _, name := range sortedKeys(s.arrays) {
		ba := s.arrays[name]
		info.ByteArrays = append(info.ByteArrays, ByteArrayInfo{
			Name:    name,
			Version: ba.version,
			Size:    len(ba.value),
			Writer:  ba.writer,
			Clients: slices.Clone(ba.members),
		})
	}
	return info
}
