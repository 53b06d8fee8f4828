package ratchet

import (
	"sigilo/internal/crypto"
	"sigilo/internal/domain"
)

// SessionVersion is stamped on newly created session states. Version 1
// states carried a single receiving chain and are upgraded on load.
const SessionVersion = 2

// Header is the plaintext ratchet header carried with every message.
type Header struct {
	RatchetKey      domain.X25519Public
	Counter         uint32
	PreviousCounter uint32
}

// PendingPreKey records which of the peer's prekeys established this
// session. It rides along on outgoing messages until the first inbound
// message proves the peer processed the handshake.
type PendingPreKey struct {
	PreKeyID       *domain.PreKeyID
	SignedPreKeyID domain.SignedPreKeyID
	BaseKey        domain.X25519Public
}

// SessionState is one established ratchet lineage with a peer: the root
// key, the sending chain, and every retained receiving chain, most recent
// first. It is a synchronous state machine with no internal locking;
// callers serialize access per peer address.
type SessionState struct {
	Version      uint32
	Capabilities domain.Capability

	LocalIdentity  domain.X25519Public
	RemoteIdentity domain.X25519Public

	// BaseKey is the handshake base key that created this state, used to
	// recognize retransmitted handshake messages.
	BaseKey domain.X25519Public

	Pending   *PendingPreKey
	Exchanged bool

	root            RootKey
	sending         *SendingChain
	receiving       []*ReceivingChain
	previousCounter uint32
	params          Params
}

func newSessionState(p Params, local, remote, baseKey domain.X25519Public) *SessionState {
	return &SessionState{
		Version:        SessionVersion,
		Capabilities:   domain.DefaultCapabilities,
		LocalIdentity:  local,
		RemoteIdentity: remote,
		BaseKey:        baseKey,
		params:         p.withDefaults(),
	}
}

// NewInitiatorState builds the initiating side's first state. root and
// chain derive from the handshake master secret; theirRatchetKey is the
// peer's signed prekey, acting as its first ratchet key. The receiving
// chain answers messages the peer sends before ratcheting, and a fresh
// sending pair is rolled immediately so the first outgoing message already
// steps the DH ratchet.
func NewInitiatorState(p Params, local, remote, baseKey domain.X25519Public, root RootKey, chain ChainKey, theirRatchetKey domain.X25519Public) (*SessionState, error) {
	s := newSessionState(p, local, remote, baseKey)
	s.insertReceiverChain(newReceivingChain(theirRatchetKey, chain))

	priv, pub, err := crypto.GenerateX25519()
	if err != nil {
		return nil, err
	}
	nextRoot, sendCK, err := root.Ratchet(priv, theirRatchetKey)
	if err != nil {
		return nil, err
	}
	root.zero()
	s.root = nextRoot
	s.sending = &SendingChain{chainKey: sendCK, ratchetPriv: priv, ratchetPub: pub}
	return s, nil
}

// NewResponderState builds the responding side's first state. The signed
// prekey pair serves as the initial ratchet key; the initiator's first
// message carries a fresh ratchet key and triggers the usual receive step.
func NewResponderState(p Params, local, remote, baseKey domain.X25519Public, root RootKey, chain ChainKey, ratchetPriv domain.X25519Private, ratchetPub domain.X25519Public) *SessionState {
	s := newSessionState(p, local, remote, baseKey)
	s.root = root
	s.sending = &SendingChain{chainKey: chain, ratchetPriv: ratchetPriv, ratchetPub: ratchetPub}
	return s
}

// Established reports whether the state went through a handshake.
func (s *SessionState) Established() bool { return s.sending != nil }

// SendingRatchetKey returns the public ratchet key stamped on outgoing
// headers.
func (s *SessionState) SendingRatchetKey() domain.X25519Public {
	if s.sending == nil {
		return domain.X25519Public{}
	}
	return s.sending.ratchetPub
}

// Seal encrypts one outgoing message, consuming the current sending index.
func (s *SessionState) Seal(plaintext []byte) (*Header, []byte, error) {
	if s.sending == nil {
		return nil, nil, ErrHandshakeRequired
	}
	h := &Header{
		RatchetKey:      s.sending.ratchetPub,
		Counter:         s.sending.chainKey.Index,
		PreviousCounter: s.previousCounter,
	}
	mk := s.sending.nextMessageKeys()
	defer mk.Zero()

	ct, err := mk.Seal(s.LocalIdentity, s.RemoteIdentity, h, plaintext)
	if err != nil {
		return nil, nil, err
	}
	s.Exchanged = true
	return h, ct, nil
}

// Open decrypts one inbound message. All ratchet mutation is staged on a
// deep copy and committed only after authentication succeeds, so a forged
// or corrupted message can never desynchronize the session.
func (s *SessionState) Open(h *Header, ciphertext []byte) ([]byte, error) {
	if s.sending == nil {
		return nil, ErrHandshakeRequired
	}
	staged := s.Clone()
	pt, err := staged.open(h, ciphertext)
	if err != nil {
		staged.Wipe()
		return nil, err
	}
	s.commit(staged)
	return pt, nil
}

func (s *SessionState) open(h *Header, ciphertext []byte) ([]byte, error) {
	chain := s.receiverChain(h.RatchetKey)
	if chain == nil {
		var err error
		if chain, err = s.ratchetReceive(h); err != nil {
			return nil, err
		}
	}
	mk, err := chain.messageKeys(h.Counter, s.params)
	if err != nil {
		return nil, err
	}
	defer mk.Zero()

	pt, err := mk.Open(s.RemoteIdentity, s.LocalIdentity, h, ciphertext)
	if err != nil {
		return nil, err
	}
	s.Pending = nil
	s.Exchanged = true
	return pt, nil
}

// ratchetReceive runs the Diffie-Hellman ratchet triggered by a new remote
// ratchet key: first the receive step deriving the chain for the new key,
// then a send step with a fresh local pair so the next outgoing message
// ratchets too. Both steps happen on the staged copy, atomically with the
// decryption that triggered them.
func (s *SessionState) ratchetReceive(h *Header) (*ReceivingChain, error) {
	// Cache the unreceived tail of the active chain so late messages under
	// the peer's previous ratchet key stay decryptable.
	if len(s.receiving) > 0 {
		active := s.receiving[0]
		if h.PreviousCounter > active.chainKey.Index &&
			h.PreviousCounter-active.chainKey.Index > s.params.MaxSkip {
			return nil, ErrTooManySkipped
		}
		active.skipTo(h.PreviousCounter, s.params)
	}

	recvRoot, recvCK, err := s.root.Ratchet(s.sending.ratchetPriv, h.RatchetKey)
	if err != nil {
		return nil, err
	}
	chain := newReceivingChain(h.RatchetKey, recvCK)
	s.insertReceiverChain(chain)

	priv, pub, err := crypto.GenerateX25519()
	if err != nil {
		return nil, err
	}
	sendRoot, sendCK, err := recvRoot.Ratchet(priv, h.RatchetKey)
	if err != nil {
		return nil, err
	}
	recvRoot.zero()

	s.previousCounter = s.sending.chainKey.Index
	s.sending.wipe()
	s.sending = &SendingChain{chainKey: sendCK, ratchetPriv: priv, ratchetPub: pub}
	s.root.zero()
	s.root = sendRoot
	s.Exchanged = false
	return chain, nil
}

func (s *SessionState) receiverChain(pub domain.X25519Public) *ReceivingChain {
	for _, rc := range s.receiving {
		if rc.ratchetPub == pub {
			return rc
		}
	}
	return nil
}

func (s *SessionState) insertReceiverChain(rc *ReceivingChain) {
	s.receiving = append([]*ReceivingChain{rc}, s.receiving...)
	for len(s.receiving) > s.params.MaxReceiverChains {
		last := s.receiving[len(s.receiving)-1]
		last.wipe()
		s.receiving = s.receiving[:len(s.receiving)-1]
	}
}

// commit replaces s with the staged copy and wipes the superseded secrets.
func (s *SessionState) commit(staged *SessionState) {
	old := *s
	*s = *staged
	old.Wipe()
}

// Clone returns a deep copy sharing no key material with s.
func (s *SessionState) Clone() *SessionState {
	c := &SessionState{
		Version:         s.Version,
		Capabilities:    s.Capabilities,
		LocalIdentity:   s.LocalIdentity,
		RemoteIdentity:  s.RemoteIdentity,
		BaseKey:         s.BaseKey,
		Exchanged:       s.Exchanged,
		root:            s.root,
		previousCounter: s.previousCounter,
		params:          s.params,
	}
	if s.Pending != nil {
		p := *s.Pending
		if s.Pending.PreKeyID != nil {
			id := *s.Pending.PreKeyID
			p.PreKeyID = &id
		}
		c.Pending = &p
	}
	if s.sending != nil {
		sc := *s.sending
		c.sending = &sc
	}
	for _, rc := range s.receiving {
		c.receiving = append(c.receiving, rc.clone())
	}
	return c
}

// Wipe zeroizes every secret the state owns.
func (s *SessionState) Wipe() {
	s.root.zero()
	if s.sending != nil {
		s.sending.wipe()
	}
	for _, rc := range s.receiving {
		rc.wipe()
	}
	s.receiving = nil
}
