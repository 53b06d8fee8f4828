package x3dh

import (
	"errors"

	"sigilo/internal/crypto"
	"sigilo/internal/domain"
	"sigilo/internal/protocol/kdf"
	"sigilo/internal/protocol/ratchet"
	"sigilo/internal/util/memzero"
)

// ErrBadSignature is returned when the signed prekey signature does not
// verify against the peer's signing key. No DH computation happens first.
var ErrBadSignature = errors.New("x3dh: invalid signed prekey signature")

// discontinuity prefixes the key-agreement transcript so its first block
// can never collide with a raw DH output.
var discontinuity = func() [32]byte {
	var d [32]byte
	for i := range d {
		d[i] = 0xFF
	}
	return d
}()

// AliceParameters carries the initiator's view of the handshake: our
// identity and fresh base key, plus the peer's published bundle material.
type AliceParameters struct {
	OurIdentityPriv domain.X25519Private
	OurIdentityPub  domain.X25519Public
	OurBasePriv     domain.X25519Private
	OurBasePub      domain.X25519Public

	TheirIdentity        domain.X25519Public
	TheirSigningKey      domain.Ed25519Public
	TheirSignedPreKey    domain.X25519Public
	TheirSignedPreKeySig []byte
	TheirSignedPreKeyID  domain.SignedPreKeyID
	TheirOneTimePreKey   *domain.X25519Public
	TheirOneTimePreKeyID *domain.PreKeyID
}

// BobParameters carries the responder's view: the private halves of the
// prekeys the initiator picked, and the initiator's public keys from the
// handshake message.
type BobParameters struct {
	OurIdentityPriv domain.X25519Private
	OurIdentityPub  domain.X25519Public

	OurSignedPreKeyPriv  domain.X25519Private
	OurSignedPreKeyPub   domain.X25519Public
	OurOneTimePreKeyPriv *domain.X25519Private

	TheirIdentity domain.X25519Public
	TheirBaseKey  domain.X25519Public
}

// InitiateSession verifies the peer's signed prekey and derives the
// initiator's first session state. The returned state carries a pending
// prekey reference naming the bundle entries used, for the responder to
// complete its half.
func InitiateSession(p ratchet.Params, alice AliceParameters) (*ratchet.SessionState, error) {
	if !crypto.VerifyEd25519(alice.TheirSigningKey, alice.TheirSignedPreKey.Slice(), alice.TheirSignedPreKeySig) {
		return nil, ErrBadSignature
	}

	dh1, err := crypto.DH(alice.OurIdentityPriv, alice.TheirSignedPreKey)
	if err != nil {
		return nil, err
	}
	dh2, err := crypto.DH(alice.OurBasePriv, alice.TheirIdentity)
	if err != nil {
		return nil, err
	}
	dh3, err := crypto.DH(alice.OurBasePriv, alice.TheirSignedPreKey)
	if err != nil {
		return nil, err
	}
	secrets := make([]byte, 0, 32*5)
	secrets = append(secrets, discontinuity[:]...)
	secrets = append(secrets, dh1[:]...)
	secrets = append(secrets, dh2[:]...)
	secrets = append(secrets, dh3[:]...)
	memzero.Key32(&dh1)
	memzero.Key32(&dh2)
	memzero.Key32(&dh3)

	if alice.TheirOneTimePreKey != nil {
		dh4, err := crypto.DH(alice.OurBasePriv, *alice.TheirOneTimePreKey)
		if err != nil {
			memzero.Zero(secrets)
			return nil, err
		}
		secrets = append(secrets, dh4[:]...)
		memzero.Key32(&dh4)
	}

	root, chain := deriveInitialKeys(secrets)
	memzero.Zero(secrets)

	st, err := ratchet.NewInitiatorState(p,
		alice.OurIdentityPub, alice.TheirIdentity, alice.OurBasePub,
		root, chain, alice.TheirSignedPreKey)
	if err != nil {
		return nil, err
	}
	st.Pending = &ratchet.PendingPreKey{
		PreKeyID:       alice.TheirOneTimePreKeyID,
		SignedPreKeyID: alice.TheirSignedPreKeyID,
		BaseKey:        alice.OurBasePub,
	}
	return st, nil
}

// RespondSession derives the responder's first session state from an
// initiator's handshake message. The signed prekey pair becomes the
// state's initial ratchet key.
func RespondSession(p ratchet.Params, bob BobParameters) (*ratchet.SessionState, error) {
	dh1, err := crypto.DH(bob.OurSignedPreKeyPriv, bob.TheirIdentity)
	if err != nil {
		return nil, err
	}
	dh2, err := crypto.DH(bob.OurIdentityPriv, bob.TheirBaseKey)
	if err != nil {
		return nil, err
	}
	dh3, err := crypto.DH(bob.OurSignedPreKeyPriv, bob.TheirBaseKey)
	if err != nil {
		return nil, err
	}
	secrets := make([]byte, 0, 32*5)
	secrets = append(secrets, discontinuity[:]...)
	secrets = append(secrets, dh1[:]...)
	secrets = append(secrets, dh2[:]...)
	secrets = append(secrets, dh3[:]...)
	memzero.Key32(&dh1)
	memzero.Key32(&dh2)
	memzero.Key32(&dh3)

	if bob.OurOneTimePreKeyPriv != nil {
		dh4, err := crypto.DH(*bob.OurOneTimePreKeyPriv, bob.TheirBaseKey)
		if err != nil {
			memzero.Zero(secrets)
			return nil, err
		}
		secrets = append(secrets, dh4[:]...)
		memzero.Key32(&dh4)
	}

	root, chain := deriveInitialKeys(secrets)
	memzero.Zero(secrets)

	return ratchet.NewResponderState(p,
		bob.OurIdentityPub, bob.TheirIdentity, bob.TheirBaseKey,
		root, chain, bob.OurSignedPreKeyPriv, bob.OurSignedPreKeyPub), nil
}

// deriveInitialKeys expands the handshake transcript into the session's
// first root and chain keys.
func deriveInitialKeys(secrets []byte) (ratchet.RootKey, ratchet.ChainKey) {
	okm := kdf.DeriveSecrets(secrets, nil, []byte(kdf.InfoHandshake), 64)
	var root ratchet.RootKey
	var chain ratchet.ChainKey
	copy(root[:], okm[:32])
	copy(chain.Key[:], okm[32:])
	memzero.Zero(okm)
	return root, chain
}
