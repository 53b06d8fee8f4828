// Package identity manages the local identity and the trust state of
// remote peers.
//
// It generates and loads the X25519/Ed25519 identity key pairs, keeps the
// private halves in locked memory while the process runs, and implements
// the first-use pinning policy: a peer's first identity key is pinned,
// and any later mismatch blocks handshakes and decryption until the
// operator records an explicit trust decision.
package identity
