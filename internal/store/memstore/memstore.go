// Package memstore implements the domain store contracts with in-memory
// maps, for tests and ephemeral use. All stores are safe for concurrent
// use.
package memstore

import (
	"fmt"
	"sync"
	"time"

	"sigilo/internal/domain"
)

// Store holds every record kind in memory.
type Store struct {
	mu sync.RWMutex

	identity   *domain.IdentityKeyPair
	regID      uint32
	trusted    map[domain.Address]domain.TrustedIdentity
	preKeys    map[domain.PreKeyID]domain.PreKeyRecord
	nextPreKey domain.PreKeyID
	signed     map[domain.SignedPreKeyID]domain.SignedPreKeyRecord
	currentSPK domain.SignedPreKeyID
	hasCurrent bool
	nextSigned domain.SignedPreKeyID
	sessions   map[domain.Address][]byte
}

var (
	_ domain.IdentityStore     = (*Store)(nil)
	_ domain.PreKeyStore       = (*Store)(nil)
	_ domain.SignedPreKeyStore = (*Store)(nil)
	_ domain.SessionStore      = (*Store)(nil)
)

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		trusted:  make(map[domain.Address]domain.TrustedIdentity),
		preKeys:  make(map[domain.PreKeyID]domain.PreKeyRecord),
		signed:   make(map[domain.SignedPreKeyID]domain.SignedPreKeyRecord),
		sessions: make(map[domain.Address][]byte),
	}
}

// SaveLocalIdentity stores the identity, generating a registration id on
// first save.
func (s *Store) SaveLocalIdentity(id domain.IdentityKeyPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := id
	s.identity = &cp
	if s.regID == 0 {
		s.regID = uint32(time.Now().UnixNano())%0x3FFF + 1
	}
	return nil
}

// LoadLocalIdentity returns the stored identity.
func (s *Store) LoadLocalIdentity() (domain.IdentityKeyPair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return domain.IdentityKeyPair{}, domain.ErrIdentityNotFound
	}
	return *s.identity, nil
}

// RegistrationID returns the device registration id.
func (s *Store) RegistrationID() (uint32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return 0, domain.ErrIdentityNotFound
	}
	return s.regID, nil
}

// IsTrusted implements first-use pinning.
func (s *Store) IsTrusted(addr domain.Address, key domain.X25519Public) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pin, ok := s.trusted[addr]
	if !ok {
		return true, nil
	}
	return pin.Key == key, nil
}

// SaveTrusted pins the identity key for an address.
func (s *Store) SaveTrusted(addr domain.Address, key domain.X25519Public, verified bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trusted[addr] = domain.TrustedIdentity{
		Address:  addr,
		Key:      key,
		PinnedAt: time.Now().Unix(),
		Verified: verified,
	}
	return nil
}

// LoadTrusted returns the pin for addr.
func (s *Store) LoadTrusted(addr domain.Address) (domain.TrustedIdentity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pin, ok := s.trusted[addr]
	if !ok {
		return domain.TrustedIdentity{}, domain.ErrIdentityNotFound
	}
	return pin, nil
}

// ListTrusted returns every pinned identity.
func (s *Store) ListTrusted() ([]domain.TrustedIdentity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.TrustedIdentity, 0, len(s.trusted))
	for _, pin := range s.trusted {
		out = append(out, pin)
	}
	return out, nil
}

// StorePreKey stores a one-time prekey record.
func (s *Store) StorePreKey(rec domain.PreKeyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preKeys[rec.ID] = rec
	return nil
}

// LoadPreKey returns the one-time prekey with the given id.
func (s *Store) LoadPreKey(id domain.PreKeyID) (domain.PreKeyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.preKeys[id]
	if !ok {
		return domain.PreKeyRecord{}, fmt.Errorf("%w: id %d", domain.ErrPreKeyNotFound, id)
	}
	return rec, nil
}

// ContainsPreKey reports whether the id is still in the inventory.
func (s *Store) ContainsPreKey(id domain.PreKeyID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.preKeys[id]
	return ok, nil
}

// RemovePreKey deletes a consumed one-time prekey.
func (s *Store) RemovePreKey(id domain.PreKeyID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.preKeys, id)
	return nil
}

// ListPreKeyIDs returns the ids of every stored one-time prekey.
func (s *Store) ListPreKeyIDs() ([]domain.PreKeyID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]domain.PreKeyID, 0, len(s.preKeys))
	for id := range s.preKeys {
		ids = append(ids, id)
	}
	return ids, nil
}

// NextPreKeyID allocates a fresh monotonic prekey id.
func (s *Store) NextPreKeyID() (domain.PreKeyID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextPreKey++
	return s.nextPreKey, nil
}

// StoreSignedPreKey stores a signed prekey record.
func (s *Store) StoreSignedPreKey(rec domain.SignedPreKeyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signed[rec.ID] = rec
	return nil
}

// LoadSignedPreKey returns the signed prekey with the given id.
func (s *Store) LoadSignedPreKey(id domain.SignedPreKeyID) (domain.SignedPreKeyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.signed[id]
	if !ok {
		return domain.SignedPreKeyRecord{}, fmt.Errorf("%w: id %d", domain.ErrSignedPreKeyNotFound, id)
	}
	return rec, nil
}

// ListSignedPreKeys returns every stored signed prekey.
func (s *Store) ListSignedPreKeys() ([]domain.SignedPreKeyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recs := make([]domain.SignedPreKeyRecord, 0, len(s.signed))
	for _, rec := range s.signed {
		recs = append(recs, rec)
	}
	return recs, nil
}

// RemoveSignedPreKey deletes a signed prekey.
func (s *Store) RemoveSignedPreKey(id domain.SignedPreKeyID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.signed, id)
	return nil
}

// SetCurrentSignedPreKeyID marks the signed prekey used for new bundles.
func (s *Store) SetCurrentSignedPreKeyID(id domain.SignedPreKeyID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentSPK = id
	s.hasCurrent = true
	return nil
}

// CurrentSignedPreKeyID returns the id marked current.
func (s *Store) CurrentSignedPreKeyID() (domain.SignedPreKeyID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.hasCurrent {
		return 0, domain.ErrSignedPreKeyNotFound
	}
	return s.currentSPK, nil
}

// NextSignedPreKeyID allocates a fresh monotonic signed prekey id.
func (s *Store) NextSignedPreKeyID() (domain.SignedPreKeyID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSigned++
	return s.nextSigned, nil
}

// StoreSession stores the serialized session record for addr.
func (s *Store) StoreSession(addr domain.Address, record []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[addr] = append([]byte(nil), record...)
	return nil
}

// LoadSession returns the serialized session record for addr.
func (s *Store) LoadSession(addr domain.Address) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.sessions[addr]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, addr)
	}
	return append([]byte(nil), record...), nil
}

// DeleteSession removes the session record for addr.
func (s *Store) DeleteSession(addr domain.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, addr)
	return nil
}

// ListAddresses returns every address with a stored session.
func (s *Store) ListAddresses() ([]domain.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	addrs := make([]domain.Address, 0, len(s.sessions))
	for addr := range s.sessions {
		addrs = append(addrs, addr)
	}
	return addrs, nil
}
