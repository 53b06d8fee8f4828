package ratchet

import (
	"errors"

	"sigilo/internal/domain"
)

// SessionRecord is the persisted unit for one peer address: the current
// session state plus a bounded history of superseded states. Messages
// encrypted before the peer acknowledged a fresh handshake keep decrypting
// against the archived state they belong to.
type SessionRecord struct {
	Current  *SessionState
	Previous []*SessionState

	params Params
}

// NewSessionRecord returns an empty record.
func NewSessionRecord(p Params) *SessionRecord {
	return &SessionRecord{params: p.withDefaults()}
}

// Archive installs fresh as the current state. A prior current state is
// demoted onto the previous list, evicting and wiping the oldest entry
// over capacity. This is the only path that grows the history.
func (r *SessionRecord) Archive(fresh *SessionState) {
	if r.Current != nil {
		r.Previous = append([]*SessionState{r.Current}, r.Previous...)
		for len(r.Previous) > r.params.MaxArchivedStates {
			last := r.Previous[len(r.Previous)-1]
			last.Wipe()
			r.Previous = r.Previous[:len(r.Previous)-1]
		}
	}
	r.Current = fresh
}

// Established reports whether the record has a current established state.
func (r *SessionRecord) Established() bool {
	return r.Current != nil && r.Current.Established()
}

// HasBaseKey reports whether any retained state was created by the
// handshake base key pub. Used to recognize retransmitted handshakes.
func (r *SessionRecord) HasBaseKey(pub domain.X25519Public) bool {
	if r.Current != nil && r.Current.BaseKey == pub {
		return true
	}
	for _, st := range r.Previous {
		if st.BaseKey == pub {
			return true
		}
	}
	return false
}

// Seal encrypts with the current state only.
func (r *SessionRecord) Seal(plaintext []byte) (*Header, []byte, error) {
	if r.Current == nil {
		return nil, nil, ErrHandshakeRequired
	}
	return r.Current.Seal(plaintext)
}

// Open decrypts against the current state first, then each previous state
// most recent first. A previous state that succeeds keeps its mutations
// but is never promoted back to current; only a fresh handshake replaces
// the current state.
//
// Chain verdicts are final: a state that recognizes the header's ratchet
// key and reports the index consumed or evicted ends the search. When
// every state fails without recognizing the ratchet key the session lineage
// cannot produce the message and a fresh handshake is required.
func (r *SessionRecord) Open(h *Header, ciphertext []byte) ([]byte, error) {
	if r.Current == nil {
		return nil, ErrHandshakeRequired
	}

	known := false
	pt, err := r.Current.Open(h, ciphertext)
	if err == nil {
		return pt, nil
	}
	if definitive(err) {
		return nil, err
	}
	known = known || r.Current.receiverChain(h.RatchetKey) != nil

	for _, st := range r.Previous {
		pt, err := st.Open(h, ciphertext)
		if err == nil {
			return pt, nil
		}
		if definitive(err) {
			return nil, err
		}
		known = known || st.receiverChain(h.RatchetKey) != nil
	}

	if known {
		return nil, ErrMacVerification
	}
	return nil, ErrHandshakeRequired
}

// definitive reports whether err is a final verdict from a chain that
// recognized the message, making fallback to older states meaningless.
func definitive(err error) bool {
	return errors.Is(err, ErrDuplicateMessage) ||
		errors.Is(err, ErrMessageTooOld) ||
		errors.Is(err, ErrTooManySkipped)
}

// Wipe zeroizes every state in the record.
func (r *SessionRecord) Wipe() {
	if r.Current != nil {
		r.Current.Wipe()
	}
	for _, st := range r.Previous {
		st.Wipe()
	}
	r.Previous = nil
}
