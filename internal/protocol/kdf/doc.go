// Package kdf provides the key-derivation primitives shared by the handshake
// and ratchet packages: HKDF-SHA256 extract and expand, plus a combined
// DeriveSecrets convenience.
//
// All functions are pure and deterministic. Output lengths beyond what
// HKDF-SHA256 can produce are a programming error and panic.
package kdf
