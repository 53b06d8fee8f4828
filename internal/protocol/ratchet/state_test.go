package ratchet_test

import (
	"crypto/rand"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"sigilo/internal/crypto"
	"sigilo/internal/domain"
	"sigilo/internal/protocol/ratchet"
)

// newPair links two session states as if a handshake just completed:
// bob's signed prekey pair answers as his first ratchet key, and both
// sides share the handshake root and chain.
func newPair(t *testing.T, p ratchet.Params) (alice, bob *ratchet.SessionState) {
	t.Helper()

	_, aliceID, err := crypto.GenerateX25519()
	require.NoError(t, err)
	_, bobID, err := crypto.GenerateX25519()
	require.NoError(t, err)
	spkPriv, spkPub, err := crypto.GenerateX25519()
	require.NoError(t, err)
	_, base, err := crypto.GenerateX25519()
	require.NoError(t, err)

	var root ratchet.RootKey
	_, err = rand.Read(root[:])
	require.NoError(t, err)
	var chain ratchet.ChainKey
	_, err = rand.Read(chain.Key[:])
	require.NoError(t, err)

	alice, err = ratchet.NewInitiatorState(p, aliceID, bobID, base, root, chain, spkPub)
	require.NoError(t, err)
	bob = ratchet.NewResponderState(p, bobID, aliceID, base, root, chain, spkPriv, spkPub)
	return alice, bob
}

func seal(t *testing.T, s *ratchet.SessionState, msg string) (*ratchet.Header, []byte) {
	t.Helper()
	h, ct, err := s.Seal([]byte(msg))
	require.NoError(t, err)
	return h, ct
}

func TestInOrderRoundTrip(t *testing.T) {
	alice, bob := newPair(t, ratchet.Params{})

	for i := 0; i < 5; i++ {
		msg := fmt.Sprintf("alice %d", i)
		h, ct := seal(t, alice, msg)
		pt, err := bob.Open(h, ct)
		require.NoError(t, err)
		require.Equal(t, msg, string(pt))
	}
	for i := 0; i < 5; i++ {
		msg := fmt.Sprintf("bob %d", i)
		h, ct := seal(t, bob, msg)
		pt, err := alice.Open(h, ct)
		require.NoError(t, err)
		require.Equal(t, msg, string(pt))
	}
}

// The responder can send before receiving anything: its initial chain pairs
// with the receiving chain the initiator seeded from the handshake.
func TestResponderSendsFirst(t *testing.T) {
	alice, bob := newPair(t, ratchet.Params{})

	h, ct := seal(t, bob, "hello first")
	pt, err := alice.Open(h, ct)
	require.NoError(t, err)
	require.Equal(t, "hello first", string(pt))
}

func TestOutOfOrderDelivery(t *testing.T) {
	alice, bob := newPair(t, ratchet.Params{})

	h0, ct0 := seal(t, alice, "m0")
	h1, ct1 := seal(t, alice, "m1")
	h2, ct2 := seal(t, alice, "m2")

	pt, err := bob.Open(h2, ct2)
	require.NoError(t, err)
	require.Equal(t, "m2", string(pt))

	pt, err = bob.Open(h0, ct0)
	require.NoError(t, err)
	require.Equal(t, "m0", string(pt))

	pt, err = bob.Open(h1, ct1)
	require.NoError(t, err)
	require.Equal(t, "m1", string(pt))

	_, err = bob.Open(h1, ct1)
	require.ErrorIs(t, err, ratchet.ErrDuplicateMessage)
}

func TestSkipCacheEviction(t *testing.T) {
	p := ratchet.Params{MaxMessageKeys: 3}
	alice, bob := newPair(t, p)

	headers := make([]*ratchet.Header, 5)
	bodies := make([][]byte, 5)
	for i := range headers {
		headers[i], bodies[i] = seal(t, alice, fmt.Sprintf("m%d", i))
	}

	// Delivering the newest message caches indexes 0..3 and evicts 0.
	_, err := bob.Open(headers[4], bodies[4])
	require.NoError(t, err)

	_, err = bob.Open(headers[0], bodies[0])
	require.ErrorIs(t, err, ratchet.ErrMessageTooOld)

	pt, err := bob.Open(headers[1], bodies[1])
	require.NoError(t, err)
	require.Equal(t, "m1", string(pt))

	_, err = bob.Open(headers[1], bodies[1])
	require.ErrorIs(t, err, ratchet.ErrDuplicateMessage)
}

func TestTooManySkippedRefused(t *testing.T) {
	p := ratchet.Params{MaxSkip: 5}
	alice, bob := newPair(t, p)

	var last *ratchet.Header
	var lastCT []byte
	var first *ratchet.Header
	var firstCT []byte
	for i := 0; i < 8; i++ {
		h, ct := seal(t, alice, fmt.Sprintf("m%d", i))
		if i == 0 {
			first, firstCT = h, ct
		}
		last, lastCT = h, ct
	}

	_, err := bob.Open(last, lastCT)
	require.ErrorIs(t, err, ratchet.ErrTooManySkipped)

	// The refusal left bob untouched: the first message still decrypts.
	pt, err := bob.Open(first, firstCT)
	require.NoError(t, err)
	require.Equal(t, "m0", string(pt))
}

func TestDHRatchetRotatesSendingChain(t *testing.T) {
	alice, bob := newPair(t, ratchet.Params{})

	// Alice sends three messages; bob receives only the last, caching the
	// first two in the chain keyed by alice's current ratchet key.
	h0, ct0 := seal(t, alice, "m0")
	h1, ct1 := seal(t, alice, "m1")
	h2, ct2 := seal(t, alice, "m2")
	_, err := bob.Open(h2, ct2)
	require.NoError(t, err)

	// Bob replies; alice performs a full DH ratchet step.
	before := alice.SendingRatchetKey()
	hb, ctb := seal(t, bob, "reply")
	_, err = alice.Open(hb, ctb)
	require.NoError(t, err)
	after := alice.SendingRatchetKey()
	require.NotEqual(t, before, after)

	// Alice's next message rides the new chain; bob ratchets too.
	h3, ct3 := seal(t, alice, "m3")
	require.Equal(t, after, h3.RatchetKey)
	pt, err := bob.Open(h3, ct3)
	require.NoError(t, err)
	require.Equal(t, "m3", string(pt))

	// The superseded receiving chain still serves its cached indexes.
	pt, err = bob.Open(h0, ct0)
	require.NoError(t, err)
	require.Equal(t, "m0", string(pt))
	pt, err = bob.Open(h1, ct1)
	require.NoError(t, err)
	require.Equal(t, "m1", string(pt))
}

func TestTamperedCiphertextLeavesStateUntouched(t *testing.T) {
	alice, bob := newPair(t, ratchet.Params{})

	// Establish the receiving chain first.
	h0, ct0 := seal(t, alice, "m0")
	_, err := bob.Open(h0, ct0)
	require.NoError(t, err)

	h1, ct1 := seal(t, alice, "m1")

	rec := ratchet.NewSessionRecord(ratchet.Params{})
	rec.Archive(bob)
	before, err := rec.Serialize()
	require.NoError(t, err)

	ct1[len(ct1)/2] ^= 0x01
	_, err = bob.Open(h1, ct1)
	require.ErrorIs(t, err, ratchet.ErrMacVerification)

	after, err := rec.Serialize()
	require.NoError(t, err)
	require.Equal(t, before, after)

	// The untampered message still decrypts.
	ct1[len(ct1)/2] ^= 0x01
	pt, err := bob.Open(h1, ct1)
	require.NoError(t, err)
	require.Equal(t, "m1", string(pt))
}

func TestPendingClearedOnFirstInbound(t *testing.T) {
	alice, bob := newPair(t, ratchet.Params{})

	id := domain.PreKeyID(42)
	alice.Pending = &ratchet.PendingPreKey{
		PreKeyID:       &id,
		SignedPreKeyID: 7,
		BaseKey:        alice.BaseKey,
	}

	h, ct := seal(t, alice, "hello")
	_, err := bob.Open(h, ct)
	require.NoError(t, err)
	require.NotNil(t, alice.Pending)

	hb, ctb := seal(t, bob, "ack")
	_, err = alice.Open(hb, ctb)
	require.NoError(t, err)
	require.Nil(t, alice.Pending)
}
