// Package prekey manages the local prekey inventory.
//
// It generates one-time prekey batches with monotonic ids, rotates the
// signed prekey while retaining superseded records for a grace window so
// in-flight handshakes still decrypt, and assembles the public bundle a
// peer needs to establish a session with this device.
package prekey
