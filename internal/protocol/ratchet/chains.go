package ratchet

import (
	"sigilo/internal/domain"
	"sigilo/internal/util/memzero"
)

// SendingChain is the outgoing half of the ratchet: the current chain key
// plus the ratchet key pair whose public half travels in every header.
// The private half is owned exclusively by this chain.
type SendingChain struct {
	chainKey    ChainKey
	ratchetPriv domain.X25519Private
	ratchetPub  domain.X25519Public
}

// nextMessageKeys consumes the current index and advances the chain.
func (sc *SendingChain) nextMessageKeys() MessageKeys {
	mk := sc.chainKey.MessageKeys()
	old := sc.chainKey
	sc.chainKey = sc.chainKey.Next()
	old.zero()
	return mk
}

func (sc *SendingChain) wipe() {
	sc.chainKey.zero()
	memzero.Key32((*[32]byte)(&sc.ratchetPriv))
}

// skippedKey pairs a cached, not-yet-consumed message key with its index.
type skippedKey struct {
	index uint32
	keys  MessageKeys
}

// ReceivingChain tracks one remote ratchet key's chain lineage together
// with the cache of skipped message keys for out-of-order delivery.
type ReceivingChain struct {
	ratchetPub domain.X25519Public
	chainKey   ChainKey

	skipped []skippedKey
	// evicted is the highest index dropped from the cache; indexes at or
	// below it are permanently undecryptable.
	evicted    uint32
	hasEvicted bool
}

func newReceivingChain(pub domain.X25519Public, ck ChainKey) *ReceivingChain {
	return &ReceivingChain{ratchetPub: pub, chainKey: ck}
}

// messageKeys resolves the message key for the given chain index.
//
// Indexes at or past the current chain position advance the chain, caching
// every intermediate key. Indexes behind the chain are served from the
// cache exactly once; a miss distinguishes an evicted key (ErrMessageTooOld)
// from a consumed one (ErrDuplicateMessage).
func (rc *ReceivingChain) messageKeys(counter uint32, p Params) (MessageKeys, error) {
	if counter < rc.chainKey.Index {
		if mk, ok := rc.takeSkipped(counter); ok {
			return mk, nil
		}
		if rc.hasEvicted && counter <= rc.evicted {
			return MessageKeys{}, ErrMessageTooOld
		}
		return MessageKeys{}, ErrDuplicateMessage
	}

	if counter-rc.chainKey.Index > p.MaxSkip {
		return MessageKeys{}, ErrTooManySkipped
	}
	rc.skipTo(counter, p)
	mk := rc.chainKey.MessageKeys()
	old := rc.chainKey
	rc.chainKey = rc.chainKey.Next()
	old.zero()
	return mk, nil
}

// skipTo advances the chain up to counter, caching every skipped key.
func (rc *ReceivingChain) skipTo(counter uint32, p Params) {
	for rc.chainKey.Index < counter {
		rc.cacheSkipped(rc.chainKey.MessageKeys(), p)
		old := rc.chainKey
		rc.chainKey = rc.chainKey.Next()
		old.zero()
	}
}

func (rc *ReceivingChain) cacheSkipped(mk MessageKeys, p Params) {
	rc.skipped = append(rc.skipped, skippedKey{index: mk.Index, keys: mk})
	for len(rc.skipped) > p.MaxMessageKeys {
		oldest := &rc.skipped[0]
		if !rc.hasEvicted || oldest.index > rc.evicted {
			rc.evicted = oldest.index
			rc.hasEvicted = true
		}
		oldest.keys.Zero()
		rc.skipped = rc.skipped[1:]
	}
}

// takeSkipped removes and returns the cached key for counter, if present.
func (rc *ReceivingChain) takeSkipped(counter uint32) (MessageKeys, bool) {
	for i := range rc.skipped {
		if rc.skipped[i].index == counter {
			mk := rc.skipped[i].keys
			rc.skipped = append(rc.skipped[:i], rc.skipped[i+1:]...)
			return mk, true
		}
	}
	return MessageKeys{}, false
}

func (rc *ReceivingChain) clone() *ReceivingChain {
	c := &ReceivingChain{
		ratchetPub: rc.ratchetPub,
		chainKey:   rc.chainKey,
		evicted:    rc.evicted,
		hasEvicted: rc.hasEvicted,
	}
	c.skipped = append([]skippedKey(nil), rc.skipped...)
	return c
}

func (rc *ReceivingChain) wipe() {
	rc.chainKey.zero()
	for i := range rc.skipped {
		rc.skipped[i].keys.Zero()
	}
	rc.skipped = nil
}
