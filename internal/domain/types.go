package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// X25519Public is a Curve25519 public key.
type X25519Public [32]byte

func (p X25519Public) Slice() []byte { return p[:] }

// IsZero reports whether the key is the all-zero value.
func (p X25519Public) IsZero() bool { return p == X25519Public{} }

// X25519Private is a Curve25519 private key.
type X25519Private [32]byte

func (k X25519Private) Slice() []byte { return k[:] }

// Ed25519Public is a signing public key.
type Ed25519Public [32]byte

func (p Ed25519Public) Slice() []byte { return p[:] }

// Ed25519Private is a signing private key (ed25519.PrivateKey layout).
type Ed25519Private [64]byte

func (k Ed25519Private) Slice() []byte { return k[:] }

// PreKeyID identifies a one-time prekey record.
type PreKeyID uint32

// SignedPreKeyID identifies a signed prekey record.
type SignedPreKeyID uint32

// Fingerprint is a short public-key digest presented to users.
type Fingerprint string

func (f Fingerprint) String() string { return string(f) }

// Capability is a bitmask of session features advertised in a prekey bundle
// and recorded on the session state at handshake time.
type Capability uint32

const (
	// CapMultiChain: the device retains multiple receiving chains and can
	// decrypt messages from superseded ratchet generations.
	CapMultiChain Capability = 1 << iota
	// CapStateHistory: the device retains superseded session states and can
	// decrypt messages sent before a re-handshake was observed.
	CapStateHistory
)

// DefaultCapabilities is advertised by this implementation.
const DefaultCapabilities = CapMultiChain | CapStateHistory

// Address identifies one remote device: sessions, trust pins, and records are
// all keyed by it.
type Address struct {
	Name     string
	DeviceID uint32
}

// NewAddress returns an address for the named peer device.
func NewAddress(name string, deviceID uint32) Address {
	return Address{Name: name, DeviceID: deviceID}
}

// String renders the address in "name.deviceID" form.
func (a Address) String() string {
	return fmt.Sprintf("%s.%d", a.Name, a.DeviceID)
}

// ParseAddress parses the "name.deviceID" form produced by String.
func ParseAddress(s string) (Address, error) {
	i := strings.LastIndexByte(s, '.')
	if i <= 0 || i == len(s)-1 {
		return Address{}, fmt.Errorf("domain: malformed address %q", s)
	}
	dev, err := strconv.ParseUint(s[i+1:], 10, 32)
	if err != nil {
		return Address{}, fmt.Errorf("domain: malformed address %q: %w", s, err)
	}
	return Address{Name: s[:i], DeviceID: uint32(dev)}, nil
}
