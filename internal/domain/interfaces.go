package domain

// IdentityStore persists the long-term local identity and the pinned identity
// keys of remote addresses.
type IdentityStore interface {
	// Local identity. LoadLocalIdentity returns ErrIdentityNotFound until
	// SaveLocalIdentity has run once.
	SaveLocalIdentity(id IdentityKeyPair) error
	LoadLocalIdentity() (IdentityKeyPair, error)

	// RegistrationID returns the device registration id generated alongside
	// the identity.
	RegistrationID() (uint32, error)

	// IsTrusted implements first-use pinning: an address never seen before is
	// trusted, a pinned key that matches is trusted, a pinned key that
	// differs is not. It never mutates the pin.
	IsTrusted(addr Address, key X25519Public) (bool, error)

	// SaveTrusted pins (or re-pins, after an explicit decision) the identity
	// key for an address.
	SaveTrusted(addr Address, key X25519Public, verified bool) error
	LoadTrusted(addr Address) (TrustedIdentity, error)
	ListTrusted() ([]TrustedIdentity, error)
}

// PreKeyStore is the local inventory of one-time prekeys.
type PreKeyStore interface {
	StorePreKey(rec PreKeyRecord) error
	// LoadPreKey returns ErrPreKeyNotFound for unknown or already-consumed ids.
	LoadPreKey(id PreKeyID) (PreKeyRecord, error)
	ContainsPreKey(id PreKeyID) (bool, error)
	// RemovePreKey deletes a consumed one-time prekey. Removing an unknown id
	// is not an error.
	RemovePreKey(id PreKeyID) error
	ListPreKeyIDs() ([]PreKeyID, error)
	// NextPreKeyID allocates a fresh monotonic id.
	NextPreKeyID() (PreKeyID, error)
}

// SignedPreKeyStore is the local inventory of signed prekeys.
type SignedPreKeyStore interface {
	StoreSignedPreKey(rec SignedPreKeyRecord) error
	// LoadSignedPreKey returns ErrSignedPreKeyNotFound for unknown ids.
	LoadSignedPreKey(id SignedPreKeyID) (SignedPreKeyRecord, error)
	ListSignedPreKeys() ([]SignedPreKeyRecord, error)
	RemoveSignedPreKey(id SignedPreKeyID) error

	// Current selection, used when building bundles. CurrentSignedPreKeyID
	// returns ErrSignedPreKeyNotFound before the first rotation.
	SetCurrentSignedPreKeyID(id SignedPreKeyID) error
	CurrentSignedPreKeyID() (SignedPreKeyID, error)
	NextSignedPreKeyID() (SignedPreKeyID, error)
}

// SessionStore persists serialized session records keyed by remote address.
// Record bytes are opaque at this layer; the ratchet package owns the format.
type SessionStore interface {
	StoreSession(addr Address, record []byte) error
	// LoadSession returns ErrSessionNotFound for unknown addresses.
	LoadSession(addr Address) ([]byte, error)
	DeleteSession(addr Address) error
	ListAddresses() ([]Address, error)
}
