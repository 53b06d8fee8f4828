package crypto

import (
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"sigilo/internal/util/memzero"
)

const (
	// KeyBytes is the size of a derived key-encryption key.
	KeyBytes = chacha20poly1305.KeySize
	// SaltBytes is the size of the Argon2id salt.
	SaltBytes = 16

	sealedVersion = 1
)

// Default Argon2id cost parameters for the KEK derivation.
const (
	argonTime    = 1
	argonMemory  = 1 << 16
	argonThreads = 8
)

// ErrWrongPassphrase is returned when a sealed secret cannot be opened,
// either because the passphrase is wrong or the ciphertext was modified.
var ErrWrongPassphrase = errors.New("crypto: wrong passphrase or corrupted secret")

// SealedSecret is a passphrase-protected secret together with the KDF
// parameters needed to open it again. Stores serialize it as-is.
type SealedSecret struct {
	V       int    `cbor:"v"`
	Salt    []byte `cbor:"salt"`
	Time    uint32 `cbor:"t"`
	Memory  uint32 `cbor:"m"`
	Threads uint8  `cbor:"p"`
	Nonce   []byte `cbor:"nonce"`
	Cipher  []byte `cbor:"cipher"`
}

// DeriveKEK derives a key-encryption key from a passphrase and salt using
// Argon2id with the given cost parameters.
func DeriveKEK(passphrase string, salt []byte, time, memory uint32, threads uint8) []byte {
	return argon2.IDKey([]byte(passphrase), salt, time, memory, threads, KeyBytes)
}

// SealSecret encrypts plaintext under a KEK derived from passphrase.
// The plaintext is wiped before returning.
func SealSecret(passphrase string, plaintext []byte) (*SealedSecret, error) {
	salt := make([]byte, SaltBytes)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	kek := DeriveKEK(passphrase, salt, argonTime, argonMemory, argonThreads)
	defer memzero.Zero(kek)

	aead, err := chacha20poly1305.New(kek)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, chacha20poly1305.NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	ct := aead.Seal(nil, nonce, plaintext, salt)
	memzero.Zero(plaintext)

	return &SealedSecret{
		V:       sealedVersion,
		Salt:    salt,
		Time:    argonTime,
		Memory:  argonMemory,
		Threads: argonThreads,
		Nonce:   nonce,
		Cipher:  ct,
	}, nil
}

// OpenSecret decrypts a sealed secret with a KEK derived from passphrase.
func OpenSecret(passphrase string, s *SealedSecret) ([]byte, error) {
	if s.V > sealedVersion {
		return nil, fmt.Errorf("crypto: unsupported sealed secret version %d", s.V)
	}
	kek := DeriveKEK(passphrase, s.Salt, s.Time, s.Memory, s.Threads)
	defer memzero.Zero(kek)

	aead, err := chacha20poly1305.New(kek)
	if err != nil {
		return nil, err
	}
	pt, err := aead.Open(nil, s.Nonce, s.Cipher, s.Salt)
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	return pt, nil
}
