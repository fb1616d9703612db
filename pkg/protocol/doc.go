// Package protocol implements the binary wire protocol spoken between huddle
// clients and a rendezvous endpoint.
//
// Every message travels in its own WebSocket binary message and is framed
// with a 6-byte header:
//
//	┌─────────────┬──────────────┬───────────────────────────────┐
//	│ Frame Type  │ Flags        │ Payload Length                │
//	│ (1 byte)    │ (1 byte)     │ (4 bytes, big-endian)         │
//	└─────────────┴──────────────┴───────────────────────────────┘
//
// # Frame Types
//
//   - FrameHandshake (0x00): ClientHello / ServerHello
//   - FrameRequest (0x01): Client → Server operation requests
//   - FrameReply (0x02): Server → Client replies, matched by request ID
//   - FrameEvent (0x03): Server → Client pushed events (data, membership, values)
//   - FrameControl (0x04): Ping, pong and close
//   - FrameError (0x05): Connection-level error
//
// # Encoding
//
//   - Varint: Compact encoding for IDs, counts and versions (protobuf-style)
//   - Length-prefixed: Strings and byte arrays prefixed with varint length
//   - Big-endian: Fixed-width integers (uint16, uint32, uint64)
//
// # Handshake
//
//	Client                          Server
//	  │                                │
//	  │──── ClientHello ─────────────>│
//	  │  (version, session, client,   │
//	  │   token, create)              │
//	  │                                │
//	  │<──── ServerHello ─────────────│
//	  │  (status, session id, creator)│
//	  │                                │
//
// # Requests and Events
//
// A Request carries a client-chosen ID; the server answers each request with
// exactly one Reply carrying the same ID. Listener registrations return a
// subscription ID in the Reply, and every Event pushed for that registration
// carries it, so the client can route events to the right callback.
//
// Events for one subscription are written in the order the server observed
// the underlying mutations. Data events from a high-priority send carry
// FlagPriority.
package protocol
