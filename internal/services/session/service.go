package session

import (
	"errors"
	"fmt"

	"gopkg.in/op/go-logging.v1"

	"sigilo/internal/crypto"
	"sigilo/internal/domain"
	"sigilo/internal/log"
	"sigilo/internal/protocol/ratchet"
	"sigilo/internal/protocol/wire"
	"sigilo/internal/protocol/x3dh"
	identitysvc "sigilo/internal/services/identity"
)

// Service establishes sessions from either side of the handshake and
// tracks the stored session records.
type Service struct {
	ids      *identitysvc.Service
	pre      domain.PreKeyStore
	signed   domain.SignedPreKeyStore
	sessions domain.SessionStore
	params   ratchet.Params
	log      *logging.Logger
}

// New returns a session service over the given stores.
func New(ids *identitysvc.Service, pre domain.PreKeyStore, signed domain.SignedPreKeyStore,
	sessions domain.SessionStore, params ratchet.Params, backend *log.Backend) *Service {
	return &Service{
		ids:      ids,
		pre:      pre,
		signed:   signed,
		sessions: sessions,
		params:   params,
		log:      backend.GetLogger("session"),
	}
}

// Establish runs the initiator handshake against a peer's prekey bundle
// and installs the resulting state as the current session for addr. Any
// prior session is demoted into the record's history.
//
// The peer identity must pass the trust policy and the signed prekey
// signature must verify before any key agreement happens.
func (s *Service) Establish(addr domain.Address, bundle domain.PreKeyBundle) error {
	ok, err := s.ids.IsTrusted(addr, bundle.IdentityKey)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrUntrustedIdentity, addr)
	}

	id, err := s.ids.Identity()
	if err != nil {
		return err
	}
	defer id.Wipe()

	basePriv, basePub, err := crypto.GenerateX25519()
	if err != nil {
		return err
	}

	st, err := x3dh.InitiateSession(s.params, x3dh.AliceParameters{
		OurIdentityPriv: id.XPriv,
		OurIdentityPub:  id.XPub,
		OurBasePriv:     basePriv,
		OurBasePub:      basePub,

		TheirIdentity:        bundle.IdentityKey,
		TheirSigningKey:      bundle.SigningKey,
		TheirSignedPreKey:    bundle.SignedPreKey,
		TheirSignedPreKeySig: bundle.SignedPreKeySignature,
		TheirSignedPreKeyID:  bundle.SignedPreKeyID,
		TheirOneTimePreKey:   bundle.PreKey,
		TheirOneTimePreKeyID: bundle.PreKeyID,
	})
	if err != nil {
		return err
	}

	rec, err := s.loadOrNewRecord(addr)
	if err != nil {
		st.Wipe()
		return err
	}
	rec.Archive(st)
	if err := s.persist(addr, rec); err != nil {
		return err
	}
	if err := s.ids.Pin(addr, bundle.IdentityKey); err != nil {
		return err
	}
	s.log.Noticef("established session with %s", addr)
	return nil
}

// Bootstrap prepares a record able to decrypt the handshake message pkm:
// it runs the trust policy, recognizes retransmitted handshakes by their
// base key, and otherwise responds to the X3DH using the named prekeys.
//
// The returned prekey id, when not nil, identifies the one-time prekey the
// handshake consumed; the caller removes it from the store only after the
// message authenticates, and likewise persists the record and pins the
// peer identity only then.
func (s *Service) Bootstrap(addr domain.Address, pkm *wire.PreKeyMessage) (*ratchet.SessionRecord, *domain.PreKeyID, error) {
	ok, err := s.ids.IsTrusted(addr, pkm.IdentityKey)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", domain.ErrUntrustedIdentity, addr)
	}

	rec, err := s.loadOrNewRecord(addr)
	if err != nil {
		return nil, nil, err
	}
	if rec.HasBaseKey(pkm.BaseKey) {
		// Retransmitted handshake; the session it created already exists.
		return rec, nil, nil
	}

	spk, err := s.signed.LoadSignedPreKey(pkm.SignedPreKeyID)
	if err != nil {
		rec.Wipe()
		return nil, nil, err
	}
	defer spk.Wipe()

	params := x3dh.BobParameters{
		OurSignedPreKeyPriv: spk.Priv,
		OurSignedPreKeyPub:  spk.Pub,
		TheirIdentity:       pkm.IdentityKey,
		TheirBaseKey:        pkm.BaseKey,
	}

	var used *domain.PreKeyID
	if pkm.PreKeyID != nil {
		opk, err := s.pre.LoadPreKey(*pkm.PreKeyID)
		if err != nil {
			rec.Wipe()
			return nil, nil, err
		}
		params.OurOneTimePreKeyPriv = &opk.Priv
		used = pkm.PreKeyID
		defer opk.Wipe()
	}

	id, err := s.ids.Identity()
	if err != nil {
		rec.Wipe()
		return nil, nil, err
	}
	defer id.Wipe()
	params.OurIdentityPriv = id.XPriv
	params.OurIdentityPub = id.XPub

	st, err := x3dh.RespondSession(s.params, params)
	if err != nil {
		rec.Wipe()
		return nil, nil, err
	}
	rec.Archive(st)
	s.log.Debugf("responded to handshake from %s", addr)
	return rec, used, nil
}

// Load deserializes the stored session record for addr.
func (s *Service) Load(addr domain.Address) (*ratchet.SessionRecord, error) {
	raw, err := s.sessions.LoadSession(addr)
	if err != nil {
		return nil, err
	}
	return ratchet.Deserialize(raw, s.params)
}

// Persist serializes rec and stores it for addr.
func (s *Service) Persist(addr domain.Address, rec *ratchet.SessionRecord) error {
	return s.persist(addr, rec)
}

// List returns every address with a stored session.
func (s *Service) List() ([]domain.Address, error) {
	return s.sessions.ListAddresses()
}

// Delete removes the stored session for addr.
func (s *Service) Delete(addr domain.Address) error {
	return s.sessions.DeleteSession(addr)
}

func (s *Service) loadOrNewRecord(addr domain.Address) (*ratchet.SessionRecord, error) {
	rec, err := s.Load(addr)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return ratchet.NewSessionRecord(s.params), nil
		}
		return nil, err
	}
	return rec, nil
}

func (s *Service) persist(addr domain.Address, rec *ratchet.SessionRecord) error {
	raw, err := rec.Serialize()
	if err != nil {
		return err
	}
	return s.sessions.StoreSession(addr, raw)
}
