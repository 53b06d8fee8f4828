// Package crypto exposes the minimal primitives used by sigilo.
//
// Contents
//
//   - X25519 key generation, clamping and Diffie–Hellman (GenerateX25519, DH)
//   - Ed25519 key generation, signing and verification (GenerateEd25519,
//     SignEd25519, VerifyEd25519)
//   - Passphrase sealing of secrets at rest with an Argon2id KEK
//     (SealSecret, OpenSecret)
//   - Short public-key fingerprints for display/logging (Fingerprint)
//
// # Notes
//
// All key functions work with the fixed-size array types defined in
// internal/domain to avoid accidental reallocations. Callers should treat
// returned secrets as sensitive and wipe them (internal/util/memzero) when
// their lifetime ends.
package crypto
