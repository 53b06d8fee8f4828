// Package session establishes and tracks ratchet sessions.
//
// It runs the initiator handshake against a peer's prekey bundle, responds
// to inbound handshake messages, and mediates access to the stored session
// records for the message service. Trust policy gates both directions: a
// changed peer identity key blocks establishment until the operator
// records an explicit decision.
package session
