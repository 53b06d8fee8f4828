package domain

import "errors"

var (
	// ErrIdentityNotFound: no local identity has been created yet.
	ErrIdentityNotFound = errors.New("domain: local identity not initialised")

	// ErrPreKeyNotFound: the one-time prekey id is unknown or was already
	// consumed by an earlier handshake.
	ErrPreKeyNotFound = errors.New("domain: one-time prekey not found")

	// ErrSignedPreKeyNotFound: the signed prekey id is unknown or was pruned
	// after its grace window.
	ErrSignedPreKeyNotFound = errors.New("domain: signed prekey not found")

	// ErrSessionNotFound: no session record is stored for the address.
	ErrSessionNotFound = errors.New("domain: session not found")

	// ErrUntrustedIdentity: the remote identity key differs from the pinned
	// one. The operation is blocked until an explicit trust decision re-pins
	// the address.
	ErrUntrustedIdentity = errors.New("domain: remote identity key changed; explicit trust decision required")
)
