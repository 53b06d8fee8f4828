package memzero

import "crypto/subtle"

// Zero overwrites b with zeros in a constant-time friendly way.
func Zero(b []byte) {
	if len(b) == 0 {
		return
	}
	zero := make([]byte, len(b))
	subtle.ConstantTimeCopy(1, b, zero)
}

// Key32 wipes a fixed-size key array in place.
func Key32(k *[32]byte) {
	Zero(k[:])
}

// Key64 wipes a fixed-size signing key array in place.
func Key64(k *[64]byte) {
	Zero(k[:])
}
