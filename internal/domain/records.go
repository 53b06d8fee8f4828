package domain

import "sigilo/internal/util/memzero"

// IdentityKeyPair holds the long-term local keys: an X25519 pair for key
// agreement and an Ed25519 pair for signing prekeys.
type IdentityKeyPair struct {
	XPub   X25519Public
	XPriv  X25519Private
	EdPub  Ed25519Public
	EdPriv Ed25519Private
}

// Wipe zeroizes the private halves.
func (id *IdentityKeyPair) Wipe() {
	memzero.Key32((*[32]byte)(&id.XPriv))
	memzero.Key64((*[64]byte)(&id.EdPriv))
}

// PreKeyRecord is a one-time prekey pair. It is consumed (removed from its
// store) the first time a successful handshake uses it.
type PreKeyRecord struct {
	ID   PreKeyID
	Pub  X25519Public
	Priv X25519Private
}

// Wipe zeroizes the private half.
func (r *PreKeyRecord) Wipe() {
	memzero.Key32((*[32]byte)(&r.Priv))
}

// SignedPreKeyRecord is a medium-term prekey pair, its signature by the local
// identity signing key, and its creation time. Rotation happens on a schedule
// outside the engine; superseded records are kept for a grace window so
// in-flight handshakes still decrypt.
type SignedPreKeyRecord struct {
	ID        SignedPreKeyID
	Pub       X25519Public
	Priv      X25519Private
	Signature []byte
	CreatedAt int64 // unix seconds
}

// Wipe zeroizes the private half.
func (r *SignedPreKeyRecord) Wipe() {
	memzero.Key32((*[32]byte)(&r.Priv))
}

// TrustedIdentity pins the identity key first seen for an address.
type TrustedIdentity struct {
	Address  Address
	Key      X25519Public
	PinnedAt int64 // unix seconds
	// Verified records an explicit operator decision (safety-number check or
	// a trust override after a key change), as opposed to first-use pinning.
	Verified bool
}

// PreKeyBundle is the public half of a device's prekey inventory, fetched out
// of band by a peer that wants to establish a session.
type PreKeyBundle struct {
	Name           string
	DeviceID       uint32
	RegistrationID uint32

	IdentityKey X25519Public
	SigningKey  Ed25519Public

	SignedPreKeyID        SignedPreKeyID
	SignedPreKey          X25519Public
	SignedPreKeySignature []byte

	// One-time prekey; nil when the inventory is exhausted.
	PreKeyID *PreKeyID
	PreKey   *X25519Public

	Capabilities Capability
}
