// Package ratchet implements the Double Ratchet algorithm following
// Signal's design, extended with the session bookkeeping a messaging
// client needs: multiple retained receiving chains, bounded skipped-key
// caches, and a record holding superseded session states.
//
// The building blocks mirror the algorithm: ChainKey and RootKey are the
// symmetric and Diffie-Hellman ratchets, SendingChain and ReceivingChain
// bind them to ratchet key pairs, SessionState orchestrates the steps for
// one established session, and SessionRecord keeps the current state plus
// a bounded history so messages sent under a superseded handshake still
// decrypt.
//
// Inbound processing never mutates state before the message authenticates:
// every Open stages its work on a deep copy and commits only on success.
// Replaced or evicted secrets are zeroized.
//
// Concurrency: nothing in this package is safe for concurrent use. Callers
// serialize access per conversation.
package ratchet
