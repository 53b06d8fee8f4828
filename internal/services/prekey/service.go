package prekey

import (
	"errors"
	"time"

	"gopkg.in/op/go-logging.v1"

	"sigilo/internal/crypto"
	"sigilo/internal/domain"
	"sigilo/internal/log"
	identitysvc "sigilo/internal/services/identity"
)

// ErrNoSignedPreKey is returned when a bundle is requested before the
// first signed prekey rotation.
var ErrNoSignedPreKey = errors.New("prekey: no current signed prekey")

// Service manages the prekey inventory: one-time prekey batches, signed
// prekey rotation with a grace window for superseded records, and the
// public bundle peers use to establish sessions.
type Service struct {
	ids    *identitysvc.Service
	pre    domain.PreKeyStore
	signed domain.SignedPreKeyStore
	log    *logging.Logger
}

// New returns a prekey service over the given stores.
func New(ids *identitysvc.Service, pre domain.PreKeyStore, signed domain.SignedPreKeyStore, backend *log.Backend) *Service {
	return &Service{ids: ids, pre: pre, signed: signed, log: backend.GetLogger("prekey")}
}

// GenerateOneTime creates and stores n one-time prekeys, returning their
// ids. Ids are monotonic and never reused, even across batches.
func (s *Service) GenerateOneTime(n int) ([]domain.PreKeyID, error) {
	ids := make([]domain.PreKeyID, 0, n)
	for i := 0; i < n; i++ {
		priv, pub, err := crypto.GenerateX25519()
		if err != nil {
			return ids, err
		}
		id, err := s.pre.NextPreKeyID()
		if err != nil {
			return ids, err
		}
		rec := domain.PreKeyRecord{ID: id, Pub: pub, Priv: priv}
		if err := s.pre.StorePreKey(rec); err != nil {
			rec.Wipe()
			return ids, err
		}
		rec.Wipe()
		ids = append(ids, id)
	}
	s.log.Noticef("generated %d one-time prekeys", len(ids))
	return ids, nil
}

// RotateSigned generates a fresh signed prekey, signs it with the local
// identity, and marks it current. The superseded record stays loadable
// until PruneSigned retires it.
func (s *Service) RotateSigned() (domain.SignedPreKeyID, error) {
	id, err := s.ids.Identity()
	if err != nil {
		return 0, err
	}
	defer id.Wipe()

	priv, pub, err := crypto.GenerateX25519()
	if err != nil {
		return 0, err
	}
	spkID, err := s.signed.NextSignedPreKeyID()
	if err != nil {
		return 0, err
	}
	rec := domain.SignedPreKeyRecord{
		ID:        spkID,
		Pub:       pub,
		Priv:      priv,
		Signature: crypto.SignEd25519(id.EdPriv, pub.Slice()),
		CreatedAt: time.Now().Unix(),
	}
	if err := s.signed.StoreSignedPreKey(rec); err != nil {
		rec.Wipe()
		return 0, err
	}
	rec.Wipe()
	if err := s.signed.SetCurrentSignedPreKeyID(spkID); err != nil {
		return 0, err
	}
	s.log.Noticef("rotated signed prekey to id %d", spkID)
	return spkID, nil
}

// PruneSigned removes superseded signed prekeys older than grace,
// returning how many were removed. The current record is never pruned.
func (s *Service) PruneSigned(grace time.Duration) (int, error) {
	current, err := s.signed.CurrentSignedPreKeyID()
	if err != nil {
		if errors.Is(err, domain.ErrSignedPreKeyNotFound) {
			return 0, nil
		}
		return 0, err
	}
	recs, err := s.signed.ListSignedPreKeys()
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-grace).Unix()
	removed := 0
	for _, rec := range recs {
		if rec.ID == current || rec.CreatedAt > cutoff {
			continue
		}
		if err := s.signed.RemoveSignedPreKey(rec.ID); err != nil {
			return removed, err
		}
		removed++
	}
	if removed > 0 {
		s.log.Noticef("pruned %d superseded signed prekeys", removed)
	}
	return removed, nil
}

// Bundle assembles the public prekey bundle for this device. The lowest
// unconsumed one-time prekey is advertised when the inventory is not
// exhausted; distributing each bundle to a single peer is the
// key-distribution layer's concern.
func (s *Service) Bundle(name string, deviceID uint32) (domain.PreKeyBundle, error) {
	id, err := s.ids.Identity()
	if err != nil {
		return domain.PreKeyBundle{}, err
	}
	defer id.Wipe()

	regID, err := s.ids.RegistrationID()
	if err != nil {
		return domain.PreKeyBundle{}, err
	}

	spkID, err := s.signed.CurrentSignedPreKeyID()
	if err != nil {
		if errors.Is(err, domain.ErrSignedPreKeyNotFound) {
			return domain.PreKeyBundle{}, ErrNoSignedPreKey
		}
		return domain.PreKeyBundle{}, err
	}
	spk, err := s.signed.LoadSignedPreKey(spkID)
	if err != nil {
		return domain.PreKeyBundle{}, err
	}
	spk.Wipe()

	b := domain.PreKeyBundle{
		Name:           name,
		DeviceID:       deviceID,
		RegistrationID: regID,

		IdentityKey: id.XPub,
		SigningKey:  id.EdPub,

		SignedPreKeyID:        spk.ID,
		SignedPreKey:          spk.Pub,
		SignedPreKeySignature: spk.Signature,

		Capabilities: domain.DefaultCapabilities,
	}

	ids, err := s.pre.ListPreKeyIDs()
	if err != nil {
		return domain.PreKeyBundle{}, err
	}
	if len(ids) > 0 {
		lowest := ids[0]
		for _, pid := range ids[1:] {
			if pid < lowest {
				lowest = pid
			}
		}
		rec, err := s.pre.LoadPreKey(lowest)
		if err != nil {
			return domain.PreKeyBundle{}, err
		}
		rec.Wipe()
		b.PreKeyID = &rec.ID
		b.PreKey = &rec.Pub
	}
	return b, nil
}

// Counts reports the inventory sizes.
func (s *Service) Counts() (oneTime, signed int, err error) {
	ids, err := s.pre.ListPreKeyIDs()
	if err != nil {
		return 0, 0, err
	}
	recs, err := s.signed.ListSignedPreKeys()
	if err != nil {
		return 0, 0, err
	}
	return len(ids), len(recs), nil
}
