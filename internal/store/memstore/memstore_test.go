package memstore_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"sigilo/internal/crypto"
	"sigilo/internal/domain"
	"sigilo/internal/store/memstore"
)

func TestIdentityLifecycle(t *testing.T) {
	st := memstore.New()

	_, err := st.LoadLocalIdentity()
	require.ErrorIs(t, err, domain.ErrIdentityNotFound)
	_, err = st.RegistrationID()
	require.ErrorIs(t, err, domain.ErrIdentityNotFound)

	xPriv, xPub, err := crypto.GenerateX25519()
	require.NoError(t, err)
	edPriv, edPub, err := crypto.GenerateEd25519()
	require.NoError(t, err)
	id := domain.IdentityKeyPair{XPub: xPub, XPriv: xPriv, EdPub: edPub, EdPriv: edPriv}
	require.NoError(t, st.SaveLocalIdentity(id))

	got, err := st.LoadLocalIdentity()
	require.NoError(t, err)
	require.Equal(t, id, got)

	regID, err := st.RegistrationID()
	require.NoError(t, err)
	require.NotZero(t, regID)
}

func TestTrustPinning(t *testing.T) {
	st := memstore.New()
	addr := domain.NewAddress("bob", 1)
	_, keyA, err := crypto.GenerateX25519()
	require.NoError(t, err)
	_, keyB, err := crypto.GenerateX25519()
	require.NoError(t, err)

	// Unknown addresses are trusted for any key.
	ok, err := st.IsTrusted(addr, keyA)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, st.SaveTrusted(addr, keyA, false))

	ok, err = st.IsTrusted(addr, keyA)
	require.NoError(t, err)
	require.True(t, ok)

	// A pinned mismatch is not trusted, and the pin is not mutated.
	ok, err = st.IsTrusted(addr, keyB)
	require.NoError(t, err)
	require.False(t, ok)
	pin, err := st.LoadTrusted(addr)
	require.NoError(t, err)
	require.Equal(t, keyA, pin.Key)

	// An explicit decision replaces the pin.
	require.NoError(t, st.SaveTrusted(addr, keyB, true))
	ok, err = st.IsTrusted(addr, keyB)
	require.NoError(t, err)
	require.True(t, ok)
	pin, err = st.LoadTrusted(addr)
	require.NoError(t, err)
	require.True(t, pin.Verified)
}

func TestPreKeyConsumeOnce(t *testing.T) {
	st := memstore.New()

	id, err := st.NextPreKeyID()
	require.NoError(t, err)
	priv, pub, err := crypto.GenerateX25519()
	require.NoError(t, err)
	require.NoError(t, st.StorePreKey(domain.PreKeyRecord{ID: id, Pub: pub, Priv: priv}))

	rec, err := st.LoadPreKey(id)
	require.NoError(t, err)
	require.Equal(t, pub, rec.Pub)

	require.NoError(t, st.RemovePreKey(id))
	_, err = st.LoadPreKey(id)
	require.ErrorIs(t, err, domain.ErrPreKeyNotFound)

	// Removing again is not an error; ids are never reused.
	require.NoError(t, st.RemovePreKey(id))
	next, err := st.NextPreKeyID()
	require.NoError(t, err)
	require.Greater(t, next, id)
}

func TestSignedPreKeyCurrent(t *testing.T) {
	st := memstore.New()

	_, err := st.CurrentSignedPreKeyID()
	require.ErrorIs(t, err, domain.ErrSignedPreKeyNotFound)

	id, err := st.NextSignedPreKeyID()
	require.NoError(t, err)
	priv, pub, err := crypto.GenerateX25519()
	require.NoError(t, err)
	require.NoError(t, st.StoreSignedPreKey(domain.SignedPreKeyRecord{
		ID: id, Pub: pub, Priv: priv, Signature: []byte("sig"), CreatedAt: 12345,
	}))
	require.NoError(t, st.SetCurrentSignedPreKeyID(id))

	cur, err := st.CurrentSignedPreKeyID()
	require.NoError(t, err)
	require.Equal(t, id, cur)

	recs, err := st.ListSignedPreKeys()
	require.NoError(t, err)
	require.Len(t, recs, 1)
}

func TestSessionCRUD(t *testing.T) {
	st := memstore.New()
	addr := domain.NewAddress("carol", 2)

	_, err := st.LoadSession(addr)
	require.ErrorIs(t, err, domain.ErrSessionNotFound)

	require.NoError(t, st.StoreSession(addr, []byte("record")))
	got, err := st.LoadSession(addr)
	require.NoError(t, err)
	require.Equal(t, []byte("record"), got)

	addrs, err := st.ListAddresses()
	require.NoError(t, err)
	require.Equal(t, []domain.Address{addr}, addrs)

	require.NoError(t, st.DeleteSession(addr))
	_, err = st.LoadSession(addr)
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
}
