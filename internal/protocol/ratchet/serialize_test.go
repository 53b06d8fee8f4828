package ratchet_test

import (
	"crypto/rand"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/require"

	"sigilo/internal/crypto"
	"sigilo/internal/protocol/ratchet"
)

func TestSerializeRoundTripPreservesDecrypt(t *testing.T) {
	alice, bob := newPair(t, ratchet.Params{})

	h0, ct0 := seal(t, alice, "m0")
	h1, ct1 := seal(t, alice, "m1")
	h2, ct2 := seal(t, alice, "m2")

	rec := ratchet.NewSessionRecord(ratchet.Params{})
	rec.Archive(bob)

	// Receiving only the newest message leaves two skipped keys cached.
	_, err := rec.Open(h2, ct2)
	require.NoError(t, err)

	blob, err := rec.Serialize()
	require.NoError(t, err)
	loaded, err := ratchet.Deserialize(blob, ratchet.Params{})
	require.NoError(t, err)

	pt, err := loaded.Open(h0, ct0)
	require.NoError(t, err)
	require.Equal(t, "m0", string(pt))
	pt, err = loaded.Open(h1, ct1)
	require.NoError(t, err)
	require.Equal(t, "m1", string(pt))

	// The reloaded record seals traffic the peer can read.
	h3, ct3, err := loaded.Seal([]byte("m3"))
	require.NoError(t, err)
	pt, err = alice.Open(h3, ct3)
	require.NoError(t, err)
	require.Equal(t, "m3", string(pt))
}

func TestSerializePreservesHistory(t *testing.T) {
	alice1, bob1 := newPair(t, ratchet.Params{})
	_, bob2 := newPair(t, ratchet.Params{})

	rec := ratchet.NewSessionRecord(ratchet.Params{})
	rec.Archive(bob1)
	rec.Archive(bob2)

	blob, err := rec.Serialize()
	require.NoError(t, err)
	loaded, err := ratchet.Deserialize(blob, ratchet.Params{})
	require.NoError(t, err)

	require.Equal(t, bob2.BaseKey, loaded.Current.BaseKey)
	require.Len(t, loaded.Previous, 1)
	require.Equal(t, bob1.BaseKey, loaded.Previous[0].BaseKey)

	// The archived lineage still decrypts after a reload.
	h, ct := seal(t, alice1, "late straggler")
	pt, err := loaded.Open(h, ct)
	require.NoError(t, err)
	require.Equal(t, "late straggler", string(pt))
	require.Equal(t, bob2.BaseKey, loaded.Current.BaseKey)
}

// Version 1 records held one receiving chain and expanded skipped-key
// material. Loading one must yield a working session.
func TestLegacyRecordUpgrade(t *testing.T) {
	type legacyV1 struct {
		RootKey   []byte            `cbor:"rk"`
		DHPriv    []byte            `cbor:"dh_priv"`
		DHPub     []byte            `cbor:"dh_pub"`
		PeerDHPub []byte            `cbor:"peer_dh_pub"`
		SendCK    []byte            `cbor:"send_ck"`
		RecvCK    []byte            `cbor:"recv_ck"`
		Ns        uint32            `cbor:"ns"`
		Nr        uint32            `cbor:"nr"`
		PN        uint32            `cbor:"pn"`
		LocalID   []byte            `cbor:"lid"`
		RemoteID  []byte            `cbor:"rid"`
		Skipped   map[uint32][]byte `cbor:"skipped"`
	}
	type envelope struct {
		Version uint32          `cbor:"v"`
		Data    cbor.RawMessage `cbor:"d"`
	}

	random := func(n int) []byte {
		b := make([]byte, n)
		_, err := rand.Read(b)
		require.NoError(t, err)
		return b
	}

	_, localPub, err := crypto.GenerateX25519()
	require.NoError(t, err)
	_, remotePub, err := crypto.GenerateX25519()
	require.NoError(t, err)
	dhPriv, dhPub, err := crypto.GenerateX25519()
	require.NoError(t, err)
	_, peerPub, err := crypto.GenerateX25519()
	require.NoError(t, err)

	skippedMaterial := random(32 + 32 + 12)
	legacy := legacyV1{
		RootKey:   random(32),
		DHPriv:    dhPriv[:],
		DHPub:     dhPub[:],
		PeerDHPub: peerPub[:],
		SendCK:    random(32),
		RecvCK:    random(32),
		Ns:        4,
		Nr:        3,
		PN:        2,
		LocalID:   localPub[:],
		RemoteID:  remotePub[:],
		Skipped:   map[uint32][]byte{1: skippedMaterial},
	}
	data, err := cbor.Marshal(&legacy)
	require.NoError(t, err)
	blob, err := cbor.Marshal(&envelope{Version: 1, Data: data})
	require.NoError(t, err)

	rec, err := ratchet.Deserialize(blob, ratchet.Params{})
	require.NoError(t, err)
	require.True(t, rec.Established())
	require.Empty(t, rec.Previous)

	// Sending picks up where the legacy chain left off.
	h, _, err := rec.Seal([]byte("onward"))
	require.NoError(t, err)
	require.Equal(t, dhPub, h.RatchetKey)
	require.EqualValues(t, 4, h.Counter)
	require.EqualValues(t, 2, h.PreviousCounter)

	// The carried-over skipped key still opens its message.
	var mk ratchet.MessageKeys
	copy(mk.CipherKey[:], skippedMaterial[:32])
	copy(mk.MacKey[:], skippedMaterial[32:64])
	copy(mk.IV[:], skippedMaterial[64:])
	mk.Index = 1
	hdr := &ratchet.Header{RatchetKey: peerPub, Counter: 1}
	ct, err := mk.Seal(remotePub, localPub, hdr, []byte("straggler"))
	require.NoError(t, err)

	pt, err := rec.Open(hdr, ct)
	require.NoError(t, err)
	require.Equal(t, "straggler", string(pt))

	// Re-serializing writes the current format; the consumed key is gone.
	blob2, err := rec.Serialize()
	require.NoError(t, err)
	again, err := ratchet.Deserialize(blob2, ratchet.Params{})
	require.NoError(t, err)
	_, err = again.Open(hdr, ct)
	require.ErrorIs(t, err, ratchet.ErrDuplicateMessage)
}

func TestUnknownRecordVersion(t *testing.T) {
	type envelope struct {
		Version uint32          `cbor:"v"`
		Data    cbor.RawMessage `cbor:"d"`
	}
	data, err := cbor.Marshal(map[string]int{})
	require.NoError(t, err)
	blob, err := cbor.Marshal(&envelope{Version: 9, Data: data})
	require.NoError(t, err)

	_, err = ratchet.Deserialize(blob, ratchet.Params{})
	require.ErrorIs(t, err, ratchet.ErrUnknownRecordVersion)
}

func TestCorruptRecordRejected(t *testing.T) {
	_, err := ratchet.Deserialize([]byte("not cbor at all"), ratchet.Params{})
	require.Error(t, err)
}
