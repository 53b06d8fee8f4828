// Package message orchestrates envelope encryption and decryption over
// the stored session records.
//
// Each operation is a load-operate-persist cycle under a per-address
// mutex, giving the lock-free ratchet core the single-writer discipline it
// assumes. Handshake side effects — identity pinning, one-time prekey
// consumption, record persistence — are deferred until the triggering
// message authenticates.
package message
