// Package x3dh implements the X3DH key-agreement used to bootstrap a Double
// Ratchet session between two parties.
//
// # Overview
//
// X3DH lets an initiator derive a shared session with a responder who has
// published a prekey bundle. The bundle contains:
//   - Identity key (X25519)
//   - Signed prekey (X25519) and its Ed25519 signature
//   - Optional one-time prekeys (X25519)
//
// # Flows
//
// Initiator (InitiateSession):
//  1. Verify the signed prekey signature.
//  2. Compute DH values (IKa·SPKb, EKa·IKb, EKa·SPKb[, EKa·OPKb]) behind a
//     fixed discontinuity prefix.
//  3. Derive the first root and chain keys from the transcript.
//  4. Build the session state: a receiving chain at the peer's signed
//     prekey plus a freshly ratcheted sending chain, with a pending prekey
//     reference naming the bundle entries used.
//
// Responder (RespondSession):
//  1. Receive the handshake message (initiator IK, base key, SPKID[, OPKID]).
//  2. Look up the named prekeys and compute the symmetric DH set.
//  3. Derive the identical root and chain keys; the signed prekey pair
//     answers as the session's initial ratchet key.
//
// # Errors
//
// ErrBadSignature is returned when the signed prekey signature fails
// verification. Other errors wrap lower-level crypto failures.
//
// # Security notes
//
// Only public material is sent over the wire. One-time prekeys, when
// present, improve forward secrecy by ensuring the handshake mixes in a
// value that is deleted after first use.
package x3dh
