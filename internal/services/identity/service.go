package identity

import (
	"errors"
	"fmt"
	"sync"

	"github.com/awnumar/memguard"
	"gopkg.in/op/go-logging.v1"

	"sigilo/internal/crypto"
	"sigilo/internal/domain"
	"sigilo/internal/log"
)

// ErrIdentityExists is returned by Create when a local identity is
// already stored. Identities are never silently regenerated; a key change
// would break every pinned peer.
var ErrIdentityExists = errors.New("identity: local identity already exists")

// Service manages the local identity and the trust pins of remote peers.
//
// The private halves of a loaded identity are held in a memguard locked
// buffer for the life of the service rather than re-read from the store
// on every use.
type Service struct {
	store domain.IdentityStore
	log   *logging.Logger

	mu       sync.Mutex
	resident *memguard.LockedBuffer // XPriv(32) || EdPriv(64)
	xPub     domain.X25519Public
	edPub    domain.Ed25519Public
}

// New returns an identity service backed by the given store.
func New(store domain.IdentityStore, backend *log.Backend) *Service {
	return &Service{store: store, log: backend.GetLogger("identity")}
}

// Create generates a fresh identity, persists it, and returns the public
// fingerprint. Fails with ErrIdentityExists if one is already stored.
func (s *Service) Create() (domain.Fingerprint, error) {
	if _, err := s.store.LoadLocalIdentity(); err == nil {
		return "", ErrIdentityExists
	} else if !errors.Is(err, domain.ErrIdentityNotFound) {
		return "", err
	}

	xPriv, xPub, err := crypto.GenerateX25519()
	if err != nil {
		return "", err
	}
	edPriv, edPub, err := crypto.GenerateEd25519()
	if err != nil {
		return "", err
	}
	id := domain.IdentityKeyPair{XPub: xPub, XPriv: xPriv, EdPub: edPub, EdPriv: edPriv}
	if err := s.store.SaveLocalIdentity(id); err != nil {
		id.Wipe()
		return "", err
	}
	id.Wipe()

	fp := crypto.Fingerprint(xPub.Slice())
	s.log.Noticef("created identity %s", fp)
	return fp, nil
}

// Identity returns a copy of the local identity key pair. The caller wipes
// the copy when done; the resident original stays locked in memory.
func (s *Service) Identity() (domain.IdentityKeyPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(); err != nil {
		return domain.IdentityKeyPair{}, err
	}
	id := domain.IdentityKeyPair{XPub: s.xPub, EdPub: s.edPub}
	buf := s.resident.Bytes()
	copy(id.XPriv[:], buf[:32])
	copy(id.EdPriv[:], buf[32:])
	return id, nil
}

// load populates the resident buffer from the store on first use.
func (s *Service) load() error {
	if s.resident != nil {
		return nil
	}
	id, err := s.store.LoadLocalIdentity()
	if err != nil {
		return err
	}
	raw := make([]byte, 32+64)
	copy(raw[:32], id.XPriv[:])
	copy(raw[32:], id.EdPriv[:])
	id.Wipe()

	// NewBufferFromBytes wipes raw.
	s.resident = memguard.NewBufferFromBytes(raw)
	s.xPub = id.XPub
	s.edPub = id.EdPub
	return nil
}

// Fingerprint returns the fingerprint of the local identity key.
func (s *Service) Fingerprint() (domain.Fingerprint, error) {
	id, err := s.store.LoadLocalIdentity()
	if err != nil {
		return "", err
	}
	id.Wipe()
	return crypto.Fingerprint(id.XPub.Slice()), nil
}

// RegistrationID returns the local device registration id.
func (s *Service) RegistrationID() (uint32, error) {
	return s.store.RegistrationID()
}

// Close destroys the resident key material.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resident != nil {
		s.resident.Destroy()
		s.resident = nil
	}
}

// IsTrusted reports whether key is acceptable for addr under first-use
// pinning: unknown addresses are trusted, pinned mismatches are not.
func (s *Service) IsTrusted(addr domain.Address, key domain.X25519Public) (bool, error) {
	return s.store.IsTrusted(addr, key)
}

// Pin records the first-seen identity key for an address. Pinning a
// different key for an already-pinned address is refused; that path goes
// through Trust.
func (s *Service) Pin(addr domain.Address, key domain.X25519Public) error {
	ok, err := s.store.IsTrusted(addr, key)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrUntrustedIdentity, addr)
	}
	// Already pinned to this key; keep any verified mark intact.
	if _, err := s.store.LoadTrusted(addr); err == nil {
		return nil
	} else if !errors.Is(err, domain.ErrIdentityNotFound) {
		return err
	}
	return s.store.SaveTrusted(addr, key, false)
}

// Trust records an explicit operator decision to accept key for addr,
// replacing any previous pin.
func (s *Service) Trust(addr domain.Address, key domain.X25519Public) error {
	if err := s.store.SaveTrusted(addr, key, true); err != nil {
		return err
	}
	s.log.Noticef("pinned identity %s for %s by explicit decision", crypto.Fingerprint(key.Slice()), addr)
	return nil
}

// ListTrusted returns every pinned identity.
func (s *Service) ListTrusted() ([]domain.TrustedIdentity, error) {
	return s.store.ListTrusted()
}
