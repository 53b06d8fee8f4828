package ratchet

import (
	"fmt"
	"sort"

	"github.com/fxamacker/cbor/v2"

	"sigilo/internal/domain"
	"sigilo/internal/util/memzero"
)

// Serialized record versions. Version 1 held a single receiving chain and
// no state history; it is upgraded to the current layout on load.
const (
	recordV1 = 1
	recordV2 = 2
)

type recordEnvelope struct {
	Version uint32          `cbor:"v"`
	Data    cbor.RawMessage `cbor:"d"`
}

type keysSnapshot struct {
	Cipher []byte `cbor:"c"`
	Mac    []byte `cbor:"m"`
	IV     []byte `cbor:"iv"`
	Index  uint32 `cbor:"i"`
}

type chainSnapshot struct {
	RatchetPub []byte         `cbor:"pub"`
	Key        []byte         `cbor:"key"`
	Index      uint32         `cbor:"idx"`
	Skipped    []keysSnapshot `cbor:"skip,omitempty"`
	Evicted    uint32         `cbor:"ev,omitempty"`
	HasEvicted bool           `cbor:"hev,omitempty"`
}

type sendingSnapshot struct {
	Pub   []byte `cbor:"pub"`
	Priv  []byte `cbor:"priv"`
	Key   []byte `cbor:"key"`
	Index uint32 `cbor:"idx"`
}

type pendingSnapshot struct {
	PreKeyID       *uint32 `cbor:"pk,omitempty"`
	SignedPreKeyID uint32  `cbor:"spk"`
	BaseKey        []byte  `cbor:"base"`
}

type stateSnapshot struct {
	Version      uint32 `cbor:"v"`
	Capabilities uint32 `cbor:"caps"`
	LocalID      []byte `cbor:"lid"`
	RemoteID     []byte `cbor:"rid"`
	BaseKey      []byte `cbor:"base"`
	Root         []byte `cbor:"root"`

	Sending   *sendingSnapshot `cbor:"send,omitempty"`
	Receiving []chainSnapshot  `cbor:"recv,omitempty"`

	PreviousCounter uint32           `cbor:"pn"`
	Exchanged       bool             `cbor:"x,omitempty"`
	Pending         *pendingSnapshot `cbor:"pend,omitempty"`
}

type recordSnapshot struct {
	Current  *stateSnapshot   `cbor:"cur,omitempty"`
	Previous []*stateSnapshot `cbor:"prev,omitempty"`
}

// legacySnapshot is the version 1 layout: one sending and at most one
// receiving chain, skipped keys keyed by index holding the expanded
// cipher/mac/iv material.
type legacySnapshot struct {
	RootKey   []byte            `cbor:"rk"`
	DHPriv    []byte            `cbor:"dh_priv"`
	DHPub     []byte            `cbor:"dh_pub"`
	PeerDHPub []byte            `cbor:"peer_dh_pub"`
	SendCK    []byte            `cbor:"send_ck"`
	RecvCK    []byte            `cbor:"recv_ck,omitempty"`
	Ns        uint32            `cbor:"ns"`
	Nr        uint32            `cbor:"nr"`
	PN        uint32            `cbor:"pn"`
	LocalID   []byte            `cbor:"lid"`
	RemoteID  []byte            `cbor:"rid"`
	Skipped   map[uint32][]byte `cbor:"skipped,omitempty"`
}

// Serialize encodes the record in the current format.
func (r *SessionRecord) Serialize() ([]byte, error) {
	snap := recordSnapshot{}
	if r.Current != nil {
		snap.Current = r.Current.snapshot()
	}
	for _, st := range r.Previous {
		snap.Previous = append(snap.Previous, st.snapshot())
	}
	data, err := cbor.Marshal(&snap)
	if err != nil {
		return nil, fmt.Errorf("ratchet: encode record: %w", err)
	}
	out, err := cbor.Marshal(&recordEnvelope{Version: recordV2, Data: data})
	if err != nil {
		return nil, fmt.Errorf("ratchet: encode record: %w", err)
	}
	memzero.Zero(data)
	return out, nil
}

// Deserialize decodes a serialized record, upgrading older versions. The
// configured bounds p apply to the loaded record regardless of the bounds
// in effect when it was written.
func Deserialize(data []byte, p Params) (*SessionRecord, error) {
	var env recordEnvelope
	if err := cbor.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("ratchet: decode record: %w", err)
	}
	p = p.withDefaults()

	switch env.Version {
	case recordV2:
		var snap recordSnapshot
		if err := cbor.Unmarshal(env.Data, &snap); err != nil {
			return nil, fmt.Errorf("ratchet: decode record: %w", err)
		}
		return restoreRecord(&snap, p)
	case recordV1:
		var legacy legacySnapshot
		if err := cbor.Unmarshal(env.Data, &legacy); err != nil {
			return nil, fmt.Errorf("ratchet: decode record: %w", err)
		}
		return upgradeLegacy(&legacy, p)
	default:
		return nil, ErrUnknownRecordVersion
	}
}

func (s *SessionState) snapshot() *stateSnapshot {
	snap := &stateSnapshot{
		Version:         s.Version,
		Capabilities:    uint32(s.Capabilities),
		LocalID:         s.LocalIdentity.Slice(),
		RemoteID:        s.RemoteIdentity.Slice(),
		BaseKey:         s.BaseKey.Slice(),
		Root:            append([]byte(nil), s.root[:]...),
		PreviousCounter: s.previousCounter,
		Exchanged:       s.Exchanged,
	}
	if s.sending != nil {
		snap.Sending = &sendingSnapshot{
			Pub:   s.sending.ratchetPub.Slice(),
			Priv:  append([]byte(nil), s.sending.ratchetPriv[:]...),
			Key:   append([]byte(nil), s.sending.chainKey.Key[:]...),
			Index: s.sending.chainKey.Index,
		}
	}
	for _, rc := range s.receiving {
		cs := chainSnapshot{
			RatchetPub: rc.ratchetPub.Slice(),
			Key:        append([]byte(nil), rc.chainKey.Key[:]...),
			Index:      rc.chainKey.Index,
			Evicted:    rc.evicted,
			HasEvicted: rc.hasEvicted,
		}
		for _, sk := range rc.skipped {
			cs.Skipped = append(cs.Skipped, keysSnapshot{
				Cipher: append([]byte(nil), sk.keys.CipherKey[:]...),
				Mac:    append([]byte(nil), sk.keys.MacKey[:]...),
				IV:     append([]byte(nil), sk.keys.IV[:]...),
				Index:  sk.index,
			})
		}
		snap.Receiving = append(snap.Receiving, cs)
	}
	if s.Pending != nil {
		ps := &pendingSnapshot{
			SignedPreKeyID: uint32(s.Pending.SignedPreKeyID),
			BaseKey:        s.Pending.BaseKey.Slice(),
		}
		if s.Pending.PreKeyID != nil {
			id := uint32(*s.Pending.PreKeyID)
			ps.PreKeyID = &id
		}
		snap.Pending = ps
	}
	return snap
}

func restoreRecord(snap *recordSnapshot, p Params) (*SessionRecord, error) {
	rec := NewSessionRecord(p)
	if snap.Current != nil {
		st, err := restoreState(snap.Current, p)
		if err != nil {
			return nil, err
		}
		rec.Current = st
	}
	for _, ss := range snap.Previous {
		st, err := restoreState(ss, p)
		if err != nil {
			return nil, err
		}
		rec.Previous = append(rec.Previous, st)
	}
	return rec, nil
}

func restoreState(snap *stateSnapshot, p Params) (*SessionState, error) {
	s := &SessionState{
		Version:         snap.Version,
		Capabilities:    domain.Capability(snap.Capabilities),
		Exchanged:       snap.Exchanged,
		previousCounter: snap.PreviousCounter,
		params:          p,
	}
	if err := copy32((*[32]byte)(&s.LocalIdentity), snap.LocalID, "local identity"); err != nil {
		return nil, err
	}
	if err := copy32((*[32]byte)(&s.RemoteIdentity), snap.RemoteID, "remote identity"); err != nil {
		return nil, err
	}
	if err := copy32((*[32]byte)(&s.BaseKey), snap.BaseKey, "base key"); err != nil {
		return nil, err
	}
	if err := copy32((*[32]byte)(&s.root), snap.Root, "root key"); err != nil {
		return nil, err
	}
	memzero.Zero(snap.Root)

	if snap.Sending != nil {
		sc := &SendingChain{}
		if err := copy32((*[32]byte)(&sc.ratchetPub), snap.Sending.Pub, "sending ratchet pub"); err != nil {
			return nil, err
		}
		if err := copy32((*[32]byte)(&sc.ratchetPriv), snap.Sending.Priv, "sending ratchet priv"); err != nil {
			return nil, err
		}
		if err := copy32(&sc.chainKey.Key, snap.Sending.Key, "sending chain key"); err != nil {
			return nil, err
		}
		sc.chainKey.Index = snap.Sending.Index
		memzero.Zero(snap.Sending.Priv)
		memzero.Zero(snap.Sending.Key)
		s.sending = sc
	}
	for i := range snap.Receiving {
		rc, err := restoreChain(&snap.Receiving[i])
		if err != nil {
			return nil, err
		}
		s.receiving = append(s.receiving, rc)
	}
	if snap.Pending != nil {
		pend := &PendingPreKey{SignedPreKeyID: domain.SignedPreKeyID(snap.Pending.SignedPreKeyID)}
		if snap.Pending.PreKeyID != nil {
			id := domain.PreKeyID(*snap.Pending.PreKeyID)
			pend.PreKeyID = &id
		}
		if err := copy32((*[32]byte)(&pend.BaseKey), snap.Pending.BaseKey, "pending base key"); err != nil {
			return nil, err
		}
		s.Pending = pend
	}
	return s, nil
}

func restoreChain(snap *chainSnapshot) (*ReceivingChain, error) {
	rc := &ReceivingChain{evicted: snap.Evicted, hasEvicted: snap.HasEvicted}
	if err := copy32((*[32]byte)(&rc.ratchetPub), snap.RatchetPub, "receiving ratchet pub"); err != nil {
		return nil, err
	}
	if err := copy32(&rc.chainKey.Key, snap.Key, "receiving chain key"); err != nil {
		return nil, err
	}
	rc.chainKey.Index = snap.Index
	memzero.Zero(snap.Key)

	for _, ks := range snap.Skipped {
		sk := skippedKey{index: ks.Index, keys: MessageKeys{Index: ks.Index}}
		if err := copy32(&sk.keys.CipherKey, ks.Cipher, "skipped cipher key"); err != nil {
			return nil, err
		}
		if err := copy32(&sk.keys.MacKey, ks.Mac, "skipped mac key"); err != nil {
			return nil, err
		}
		if len(ks.IV) != len(sk.keys.IV) {
			return nil, fmt.Errorf("ratchet: record field skipped iv: unexpected length %d", len(ks.IV))
		}
		copy(sk.keys.IV[:], ks.IV)
		memzero.Zero(ks.Cipher)
		memzero.Zero(ks.Mac)
		memzero.Zero(ks.IV)
		rc.skipped = append(rc.skipped, sk)
	}
	return rc, nil
}

// upgradeLegacy rebuilds a version 1 record as a single current state with
// at most one receiving chain and no history.
func upgradeLegacy(legacy *legacySnapshot, p Params) (*SessionRecord, error) {
	s := &SessionState{
		Version:         recordV1,
		previousCounter: legacy.PN,
		Exchanged:       legacy.Ns > 0 || legacy.Nr > 0,
		params:          p,
	}
	if err := copy32((*[32]byte)(&s.LocalIdentity), legacy.LocalID, "local identity"); err != nil {
		return nil, err
	}
	if err := copy32((*[32]byte)(&s.RemoteIdentity), legacy.RemoteID, "remote identity"); err != nil {
		return nil, err
	}
	if err := copy32((*[32]byte)(&s.root), legacy.RootKey, "root key"); err != nil {
		return nil, err
	}
	memzero.Zero(legacy.RootKey)

	sc := &SendingChain{chainKey: ChainKey{Index: legacy.Ns}}
	if err := copy32((*[32]byte)(&sc.ratchetPub), legacy.DHPub, "sending ratchet pub"); err != nil {
		return nil, err
	}
	if err := copy32((*[32]byte)(&sc.ratchetPriv), legacy.DHPriv, "sending ratchet priv"); err != nil {
		return nil, err
	}
	if err := copy32(&sc.chainKey.Key, legacy.SendCK, "sending chain key"); err != nil {
		return nil, err
	}
	memzero.Zero(legacy.DHPriv)
	memzero.Zero(legacy.SendCK)
	s.sending = sc

	if len(legacy.RecvCK) > 0 {
		rc := &ReceivingChain{chainKey: ChainKey{Index: legacy.Nr}}
		if err := copy32((*[32]byte)(&rc.ratchetPub), legacy.PeerDHPub, "receiving ratchet pub"); err != nil {
			return nil, err
		}
		if err := copy32(&rc.chainKey.Key, legacy.RecvCK, "receiving chain key"); err != nil {
			return nil, err
		}
		memzero.Zero(legacy.RecvCK)

		indexes := make([]uint32, 0, len(legacy.Skipped))
		for idx := range legacy.Skipped {
			indexes = append(indexes, idx)
		}
		sort.Slice(indexes, func(i, j int) bool { return indexes[i] < indexes[j] })
		for _, idx := range indexes {
			raw := legacy.Skipped[idx]
			if len(raw) != messageKeyMaterial {
				return nil, fmt.Errorf("ratchet: record field skipped keys: unexpected length %d", len(raw))
			}
			sk := skippedKey{index: idx, keys: MessageKeys{Index: idx}}
			copy(sk.keys.CipherKey[:], raw[:32])
			copy(sk.keys.MacKey[:], raw[32:64])
			copy(sk.keys.IV[:], raw[64:])
			memzero.Zero(raw)
			rc.skipped = append(rc.skipped, sk)
		}
		s.receiving = []*ReceivingChain{rc}
	}

	rec := NewSessionRecord(p)
	rec.Current = s
	return rec, nil
}

func copy32(dst *[32]byte, src []byte, what string) error {
	if len(src) != 32 {
		return fmt.Errorf("ratchet: record field %s: unexpected length %d", what, len(src))
	}
	copy(dst[:], src)
	return nil
}
