// Package wire defines the versioned message envelopes exchanged between
// devices: Message for regular ratchet traffic and PreKeyMessage for the
// handshake message that establishes a session.
//
// An encoded envelope is a two-byte prefix (format version, envelope kind)
// followed by a CBOR body. Decoding is strict: wrong sizes, unknown
// versions or kinds, and trailing garbage all surface ErrMalformedEnvelope.
package wire
