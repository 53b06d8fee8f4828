package kdf

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Domain-separation labels. Changing any of these breaks compatibility with
// every previously serialized session.
const (
	InfoRoot      = "sigilo-root"
	InfoMessage   = "sigilo-msg"
	InfoHandshake = "sigilo-handshake"
)

// Extract runs HKDF-Extract with SHA-256, returning the pseudorandom key.
// A nil salt is replaced by a zero-filled block per RFC 5869.
func Extract(salt, ikm []byte) []byte {
	return hkdf.Extract(sha256.New, ikm, salt)
}

// Expand runs HKDF-Expand with SHA-256, producing n bytes of output keyed
// by prk and bound to info.
func Expand(prk, info []byte, n int) []byte {
	out := make([]byte, n)
	if _, err := io.ReadFull(hkdf.Expand(sha256.New, prk, info), out); err != nil {
		panic("kdf: expand: " + err.Error())
	}
	return out
}

// DeriveSecrets combines Extract and Expand in one call.
func DeriveSecrets(ikm, salt, info []byte, n int) []byte {
	out := make([]byte, n)
	if _, err := io.ReadFull(hkdf.New(sha256.New, ikm, salt, info), out); err != nil {
		panic("kdf: derive: " + err.Error())
	}
	return out
}
