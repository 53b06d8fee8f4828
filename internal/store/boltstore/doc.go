// Package boltstore implements the domain store contracts on a single
// bbolt database: one bucket per record kind, CBOR values, monotonic id
// allocation via bucket sequences.
//
// The local identity's private keys are sealed with a passphrase-derived
// Argon2id key before they reach disk. Session record bytes are opaque at
// this layer; the ratchet package owns their format.
package boltstore
