package message

import (
	"errors"
	"sync"

	"gopkg.in/op/go-logging.v1"

	"sigilo/internal/domain"
	"sigilo/internal/log"
	"sigilo/internal/protocol/ratchet"
	"sigilo/internal/protocol/wire"
	identitysvc "sigilo/internal/services/identity"
	sessionsvc "sigilo/internal/services/session"
)

// Service encrypts and decrypts message envelopes against stored session
// records. The ratchet core assumes single-writer access per session; the
// service enforces that with a per-address mutex around every
// load-operate-persist cycle.
type Service struct {
	ids      *identitysvc.Service
	sessions *sessionsvc.Service
	pre      domain.PreKeyStore
	log      *logging.Logger

	mu    sync.Mutex
	locks map[domain.Address]*sync.Mutex
}

// New returns a message service over the given collaborators.
func New(ids *identitysvc.Service, sessions *sessionsvc.Service, pre domain.PreKeyStore, backend *log.Backend) *Service {
	return &Service{
		ids:      ids,
		sessions: sessions,
		pre:      pre,
		log:      backend.GetLogger("message"),
		locks:    make(map[domain.Address]*sync.Mutex),
	}
}

// Encrypt seals plaintext for addr and returns the encoded envelope.
//
// While the session still awaits the peer's first reply, the envelope is a
// PreKeyMessage carrying the handshake material; afterwards it is a plain
// Message. The advanced session record is persisted before returning.
func (s *Service) Encrypt(addr domain.Address, plaintext []byte) ([]byte, error) {
	defer s.lock(addr)()

	rec, err := s.sessions.Load(addr)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, ratchet.ErrHandshakeRequired
		}
		return nil, err
	}
	defer rec.Wipe()

	header, ct, err := rec.Seal(plaintext)
	if err != nil {
		return nil, err
	}
	msg := wire.Message{
		RatchetKey:      header.RatchetKey,
		Counter:         header.Counter,
		PreviousCounter: header.PreviousCounter,
		Ciphertext:      ct,
	}
	env, err := msg.Encode()
	if err != nil {
		return nil, err
	}

	if pending := rec.Current.Pending; pending != nil {
		regID, err := s.ids.RegistrationID()
		if err != nil {
			return nil, err
		}
		pkm := wire.PreKeyMessage{
			RegistrationID: regID,
			IdentityKey:    rec.Current.LocalIdentity,
			BaseKey:        pending.BaseKey,
			PreKeyID:       pending.PreKeyID,
			SignedPreKeyID: pending.SignedPreKeyID,
			Message:        env,
		}
		if env, err = pkm.Encode(); err != nil {
			return nil, err
		}
	}

	if err := s.sessions.Persist(addr, rec); err != nil {
		return nil, err
	}
	s.log.Debugf("sealed message %d for %s", header.Counter, addr)
	return env, nil
}

// Decrypt opens an encoded envelope from addr and returns the plaintext.
//
// A PreKeyMessage envelope bootstraps the session first when its handshake
// is new. Side effects that make the handshake irreversible (pinning the
// peer identity, consuming the one-time prekey, persisting the record)
// happen only after the message authenticates, so forged envelopes leave
// no trace.
func (s *Service) Decrypt(addr domain.Address, envelope []byte) ([]byte, error) {
	defer s.lock(addr)()

	kind, err := wire.Kind(envelope)
	if err != nil {
		return nil, err
	}
	if kind == wire.KindPreKeyMessage {
		return s.decryptPreKeyMessage(addr, envelope)
	}
	return s.decryptMessage(addr, envelope)
}

func (s *Service) decryptMessage(addr domain.Address, envelope []byte) ([]byte, error) {
	msg, err := wire.DecodeMessage(envelope)
	if err != nil {
		return nil, err
	}
	rec, err := s.sessions.Load(addr)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, ratchet.ErrHandshakeRequired
		}
		return nil, err
	}
	defer rec.Wipe()

	pt, err := rec.Open(header(msg), msg.Ciphertext)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Persist(addr, rec); err != nil {
		return nil, err
	}
	return pt, nil
}

func (s *Service) decryptPreKeyMessage(addr domain.Address, envelope []byte) ([]byte, error) {
	pkm, err := wire.DecodePreKeyMessage(envelope)
	if err != nil {
		return nil, err
	}
	msg, err := wire.DecodeMessage(pkm.Message)
	if err != nil {
		return nil, err
	}

	rec, used, err := s.sessions.Bootstrap(addr, pkm)
	if err != nil {
		return nil, err
	}
	defer rec.Wipe()

	pt, err := rec.Open(header(msg), msg.Ciphertext)
	if err != nil {
		return nil, err
	}

	if err := s.ids.Pin(addr, pkm.IdentityKey); err != nil {
		return nil, err
	}
	if used != nil {
		if err := s.pre.RemovePreKey(*used); err != nil {
			return nil, err
		}
		s.log.Debugf("consumed one-time prekey %d", *used)
	}
	if err := s.sessions.Persist(addr, rec); err != nil {
		return nil, err
	}
	s.log.Noticef("session with %s bootstrapped from handshake message", addr)
	return pt, nil
}

func header(msg *wire.Message) *ratchet.Header {
	return &ratchet.Header{
		RatchetKey:      msg.RatchetKey,
		Counter:         msg.Counter,
		PreviousCounter: msg.PreviousCounter,
	}
}

// lock serializes access per address, returning the unlock function.
func (s *Service) lock(addr domain.Address) func() {
	s.mu.Lock()
	l, ok := s.locks[addr]
	if !ok {
		l = new(sync.Mutex)
		s.locks[addr] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}
