package identity_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"sigilo/internal/crypto"
	"sigilo/internal/domain"
	"sigilo/internal/log"
	identitysvc "sigilo/internal/services/identity"
	"sigilo/internal/store/memstore"
)

func newService(t *testing.T) *identitysvc.Service {
	t.Helper()
	backend, err := log.New("", "DEBUG", true)
	require.NoError(t, err)
	svc := identitysvc.New(memstore.New(), backend)
	t.Cleanup(svc.Close)
	return svc
}

func TestCreateOnce(t *testing.T) {
	svc := newService(t)

	fp, err := svc.Create()
	require.NoError(t, err)
	require.NotEmpty(t, fp)

	_, err = svc.Create()
	require.ErrorIs(t, err, identitysvc.ErrIdentityExists)

	got, err := svc.Fingerprint()
	require.NoError(t, err)
	require.Equal(t, fp, got)

	id, err := svc.Identity()
	require.NoError(t, err)
	defer id.Wipe()
	require.Equal(t, fp, crypto.Fingerprint(id.XPub.Slice()))

	regID, err := svc.RegistrationID()
	require.NoError(t, err)
	require.NotZero(t, regID)
}

func TestPinFirstUse(t *testing.T) {
	svc := newService(t)
	addr := domain.NewAddress("bob", 1)
	_, keyA, err := crypto.GenerateX25519()
	require.NoError(t, err)
	_, keyB, err := crypto.GenerateX25519()
	require.NoError(t, err)

	require.NoError(t, svc.Pin(addr, keyA))

	// Re-pinning the same key is a no-op; a different key is refused.
	require.NoError(t, svc.Pin(addr, keyA))
	require.ErrorIs(t, svc.Pin(addr, keyB), domain.ErrUntrustedIdentity)

	ok, err := svc.IsTrusted(addr, keyB)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestTrustOverridesPin(t *testing.T) {
	svc := newService(t)
	addr := domain.NewAddress("bob", 1)
	_, keyA, err := crypto.GenerateX25519()
	require.NoError(t, err)
	_, keyB, err := crypto.GenerateX25519()
	require.NoError(t, err)

	require.NoError(t, svc.Pin(addr, keyA))
	require.NoError(t, svc.Trust(addr, keyB))

	ok, err := svc.IsTrusted(addr, keyB)
	require.NoError(t, err)
	require.True(t, ok)

	// A later handshake with the trusted key keeps the verified mark.
	require.NoError(t, svc.Pin(addr, keyB))
	pins, err := svc.ListTrusted()
	require.NoError(t, err)
	require.Len(t, pins, 1)
	require.True(t, pins[0].Verified)
}
