package ratchet

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"

	"golang.org/x/crypto/chacha20poly1305"

	"sigilo/internal/crypto"
	"sigilo/internal/domain"
	"sigilo/internal/protocol/kdf"
	"sigilo/internal/util/memzero"
)

// HMAC seeds separating message-key derivation from chain advancement.
const (
	seedMessageKey = 0x01
	seedChainKey   = 0x02
)

const messageKeyMaterial = 32 + 32 + chacha20poly1305.NonceSize

// MessageKeys is the symmetric material protecting exactly one message.
// CipherKey keys the AEAD, IV is its nonce, and MacKey binds the header and
// identity keys into the associated data. Callers zero it after use.
type MessageKeys struct {
	CipherKey [32]byte
	MacKey    [32]byte
	IV        [chacha20poly1305.NonceSize]byte
	Index     uint32
}

// Zero wipes the key material.
func (mk *MessageKeys) Zero() {
	memzero.Key32(&mk.CipherKey)
	memzero.Key32(&mk.MacKey)
	memzero.Zero(mk.IV[:])
}

// Seal encrypts plaintext, binding header fields and both identity keys.
func (mk *MessageKeys) Seal(sender, receiver domain.X25519Public, h *Header, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(mk.CipherKey[:])
	if err != nil {
		return nil, err
	}
	return aead.Seal(nil, mk.IV[:], plaintext, mk.authTag(sender, receiver, h)), nil
}

// Open decrypts ciphertext produced by Seal. Any mismatch in key material,
// header fields or identity keys yields ErrMacVerification.
func (mk *MessageKeys) Open(sender, receiver domain.X25519Public, h *Header, ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(mk.CipherKey[:])
	if err != nil {
		return nil, err
	}
	pt, err := aead.Open(nil, mk.IV[:], ciphertext, mk.authTag(sender, receiver, h))
	if err != nil {
		return nil, ErrMacVerification
	}
	return pt, nil
}

// authTag computes the associated data for the AEAD: an HMAC keyed by MacKey
// over the sender and receiver identities and the message header.
func (mk *MessageKeys) authTag(sender, receiver domain.X25519Public, h *Header) []byte {
	m := hmac.New(sha256.New, mk.MacKey[:])
	m.Write(sender[:])
	m.Write(receiver[:])
	m.Write(h.RatchetKey[:])
	var b [8]byte
	binary.BigEndian.PutUint32(b[:4], h.Counter)
	binary.BigEndian.PutUint32(b[4:], h.PreviousCounter)
	m.Write(b[:])
	return m.Sum(nil)
}

// ChainKey is one step of the symmetric ratchet. Advancing is a pure
// function; a chain key is never reused once advanced past.
type ChainKey struct {
	Key   [32]byte
	Index uint32
}

// Next returns the following chain key.
func (ck ChainKey) Next() ChainKey {
	return ChainKey{Key: hmacSeed(ck.Key[:], seedChainKey), Index: ck.Index + 1}
}

// MessageKeys derives this step's message keys without advancing the chain.
func (ck ChainKey) MessageKeys() MessageKeys {
	seed := hmacSeed(ck.Key[:], seedMessageKey)
	okm := kdf.DeriveSecrets(seed[:], nil, []byte(kdf.InfoMessage), messageKeyMaterial)

	mk := MessageKeys{Index: ck.Index}
	copy(mk.CipherKey[:], okm[:32])
	copy(mk.MacKey[:], okm[32:64])
	copy(mk.IV[:], okm[64:])
	memzero.Key32(&seed)
	memzero.Zero(okm)
	return mk
}

// zero wipes the chain key bytes.
func (ck *ChainKey) zero() { memzero.Key32(&ck.Key) }

// RootKey is the top-level ratchet secret. A Diffie-Hellman ratchet step
// consumes it and produces its replacement plus a fresh chain key.
type RootKey [32]byte

// Ratchet advances the root with DH(ourPriv, theirPub), yielding the new
// root key and a chain key seeded at index zero.
func (rk RootKey) Ratchet(ourPriv domain.X25519Private, theirPub domain.X25519Public) (RootKey, ChainKey, error) {
	dh, err := crypto.DH(ourPriv, theirPub)
	if err != nil {
		return RootKey{}, ChainKey{}, err
	}
	okm := kdf.DeriveSecrets(dh[:], rk[:], []byte(kdf.InfoRoot), 64)

	var next RootKey
	var ck ChainKey
	copy(next[:], okm[:32])
	copy(ck.Key[:], okm[32:])
	memzero.Key32(&dh)
	memzero.Zero(okm)
	return next, ck, nil
}

func (rk *RootKey) zero() { memzero.Zero(rk[:]) }

func hmacSeed(key []byte, seed byte) [32]byte {
	h := hmac.New(sha256.New, key)
	h.Write([]byte{seed})
	var out [32]byte
	h.Sum(out[:0])
	return out
}
