// Package payload encodes the application messages carried by channels and
// byte arrays.
//
// The substrate treats payloads as opaque bytes. The formats here are the
// ones the bundled applications agree on:
//
//   - Stock: a ticker record published into a byte array named after its
//     symbol. Strings use modified UTF-8 with a 2-byte length prefix.
//   - MIDI: a tagged fixed-layout relay message for shared instruments.
//   - Whiteboard: a single text line "<client> <COMMAND> <args...>".
//
// Decoders return errors matching session.ErrProtocolDecode so callers can
// log and drop a malformed message without stopping their receive loop.
package payload
