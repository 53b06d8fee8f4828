package boltstore_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"sigilo/internal/crypto"
	"sigilo/internal/domain"
	"sigilo/internal/log"
	"sigilo/internal/store/boltstore"
)

func openStore(t *testing.T, passphrase string) (*boltstore.Store, string) {
	t.Helper()
	backend, err := log.New("", "DEBUG", true)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "sigilo.db")
	st, err := boltstore.Open(path, passphrase, backend)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st, path
}

func reopenStore(t *testing.T, path, passphrase string) *boltstore.Store {
	t.Helper()
	backend, err := log.New("", "DEBUG", true)
	require.NoError(t, err)
	st, err := boltstore.Open(path, passphrase, backend)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func newIdentity(t *testing.T) domain.IdentityKeyPair {
	t.Helper()
	xPriv, xPub, err := crypto.GenerateX25519()
	require.NoError(t, err)
	edPriv, edPub, err := crypto.GenerateEd25519()
	require.NoError(t, err)
	return domain.IdentityKeyPair{XPub: xPub, XPriv: xPriv, EdPub: edPub, EdPriv: edPriv}
}

func TestIdentitySealRoundTrip(t *testing.T) {
	st, path := openStore(t, "hunter2")
	id := newIdentity(t)

	_, err := st.LoadLocalIdentity()
	require.ErrorIs(t, err, domain.ErrIdentityNotFound)

	require.NoError(t, st.SaveLocalIdentity(id))
	got, err := st.LoadLocalIdentity()
	require.NoError(t, err)
	require.Equal(t, id, got)

	regID, err := st.RegistrationID()
	require.NoError(t, err)
	require.NotZero(t, regID)

	// The registration id survives re-saving the identity.
	require.NoError(t, st.SaveLocalIdentity(id))
	again, err := st.RegistrationID()
	require.NoError(t, err)
	require.Equal(t, regID, again)

	st.Close()
	st = reopenStore(t, path, "hunter2")
	got, err = st.LoadLocalIdentity()
	require.NoError(t, err)
	require.Equal(t, id, got)
}

func TestWrongPassphrase(t *testing.T) {
	st, path := openStore(t, "correct horse")
	require.NoError(t, st.SaveLocalIdentity(newIdentity(t)))
	st.Close()

	st = reopenStore(t, path, "battery staple")
	_, err := st.LoadLocalIdentity()
	require.ErrorIs(t, err, crypto.ErrWrongPassphrase)
}

func TestPreKeyIDsMonotonic(t *testing.T) {
	st, _ := openStore(t, "pw")

	a, err := st.NextPreKeyID()
	require.NoError(t, err)
	b, err := st.NextPreKeyID()
	require.NoError(t, err)
	require.Greater(t, b, a)

	priv, pub, err := crypto.GenerateX25519()
	require.NoError(t, err)
	require.NoError(t, st.StorePreKey(domain.PreKeyRecord{ID: a, Pub: pub, Priv: priv}))

	ok, err := st.ContainsPreKey(a)
	require.NoError(t, err)
	require.True(t, ok)

	ids, err := st.ListPreKeyIDs()
	require.NoError(t, err)
	require.Equal(t, []domain.PreKeyID{a}, ids)

	require.NoError(t, st.RemovePreKey(a))
	_, err = st.LoadPreKey(a)
	require.ErrorIs(t, err, domain.ErrPreKeyNotFound)

	// Ids are never reused even after removal.
	c, err := st.NextPreKeyID()
	require.NoError(t, err)
	require.Greater(t, c, b)
}

func TestSignedPreKeyCurrentMarker(t *testing.T) {
	st, _ := openStore(t, "pw")

	_, err := st.CurrentSignedPreKeyID()
	require.ErrorIs(t, err, domain.ErrSignedPreKeyNotFound)

	var ids []domain.SignedPreKeyID
	for i := 0; i < 2; i++ {
		id, err := st.NextSignedPreKeyID()
		require.NoError(t, err)
		priv, pub, err := crypto.GenerateX25519()
		require.NoError(t, err)
		require.NoError(t, st.StoreSignedPreKey(domain.SignedPreKeyRecord{
			ID: id, Pub: pub, Priv: priv, Signature: []byte("sig"), CreatedAt: int64(1000 + i),
		}))
		require.NoError(t, st.SetCurrentSignedPreKeyID(id))
		ids = append(ids, id)
	}

	cur, err := st.CurrentSignedPreKeyID()
	require.NoError(t, err)
	require.Equal(t, ids[1], cur)

	// Listing must not trip over the current-id marker.
	recs, err := st.ListSignedPreKeys()
	require.NoError(t, err)
	require.Len(t, recs, 2)

	require.NoError(t, st.RemoveSignedPreKey(ids[0]))
	recs, err = st.ListSignedPreKeys()
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, ids[1], recs[0].ID)
}

func TestTrustPersistence(t *testing.T) {
	st, path := openStore(t, "pw")
	addr := domain.NewAddress("bob", 1)
	_, key, err := crypto.GenerateX25519()
	require.NoError(t, err)

	ok, err := st.IsTrusted(addr, key)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, st.SaveTrusted(addr, key, true))
	st.Close()

	st = reopenStore(t, path, "pw")
	pin, err := st.LoadTrusted(addr)
	require.NoError(t, err)
	require.Equal(t, key, pin.Key)
	require.True(t, pin.Verified)

	all, err := st.ListTrusted()
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, addr, all[0].Address)
}

func TestSessionRoundTrip(t *testing.T) {
	st, _ := openStore(t, "pw")
	addr := domain.NewAddress("carol", 3)

	_, err := st.LoadSession(addr)
	require.ErrorIs(t, err, domain.ErrSessionNotFound)

	require.NoError(t, st.StoreSession(addr, []byte("opaque record")))
	got, err := st.LoadSession(addr)
	require.NoError(t, err)
	require.Equal(t, []byte("opaque record"), got)

	addrs, err := st.ListAddresses()
	require.NoError(t, err)
	require.Equal(t, []domain.Address{addr}, addrs)

	require.NoError(t, st.DeleteSession(addr))
	_, err = st.LoadSession(addr)
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
}
