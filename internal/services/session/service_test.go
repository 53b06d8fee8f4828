package session_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"sigilo/internal/domain"
	"sigilo/internal/log"
	"sigilo/internal/protocol/ratchet"
	"sigilo/internal/protocol/x3dh"
	identitysvc "sigilo/internal/services/identity"
	prekeysvc "sigilo/internal/services/prekey"
	sessionsvc "sigilo/internal/services/session"
	"sigilo/internal/store/memstore"
)

type party struct {
	IDs      *identitysvc.Service
	PreKeys  *prekeysvc.Service
	Sessions *sessionsvc.Service
	Store    *memstore.Store
}

func newParty(t *testing.T) *party {
	t.Helper()
	backend, err := log.New("", "DEBUG", true)
	require.NoError(t, err)
	st := memstore.New()
	ids := identitysvc.New(st, backend)
	t.Cleanup(ids.Close)
	_, err = ids.Create()
	require.NoError(t, err)
	return &party{
		IDs:      ids,
		PreKeys:  prekeysvc.New(ids, st, st, backend),
		Sessions: sessionsvc.New(ids, st, st, st, ratchet.DefaultParams(), backend),
		Store:    st,
	}
}

func (p *party) bundle(t *testing.T) domain.PreKeyBundle {
	t.Helper()
	_, err := p.PreKeys.RotateSigned()
	require.NoError(t, err)
	_, err = p.PreKeys.GenerateOneTime(2)
	require.NoError(t, err)
	b, err := p.PreKeys.Bundle("bob", 1)
	require.NoError(t, err)
	return b
}

func TestEstablishPinsIdentity(t *testing.T) {
	alice, bob := newParty(t), newParty(t)
	bobAddr := domain.NewAddress("bob", 1)
	bundle := bob.bundle(t)

	require.NoError(t, alice.Sessions.Establish(bobAddr, bundle))

	addrs, err := alice.Sessions.List()
	require.NoError(t, err)
	require.Equal(t, []domain.Address{bobAddr}, addrs)

	pins, err := alice.IDs.ListTrusted()
	require.NoError(t, err)
	require.Len(t, pins, 1)
	require.Equal(t, bundle.IdentityKey, pins[0].Key)

	rec, err := alice.Sessions.Load(bobAddr)
	require.NoError(t, err)
	defer rec.Wipe()
	require.True(t, rec.Established())
	require.NotNil(t, rec.Current.Pending)
}

func TestEstablishRejectsBadSignature(t *testing.T) {
	alice, bob := newParty(t), newParty(t)
	bobAddr := domain.NewAddress("bob", 1)
	bundle := bob.bundle(t)
	bundle.SignedPreKeySignature[0] ^= 0xFF

	err := alice.Sessions.Establish(bobAddr, bundle)
	require.ErrorIs(t, err, x3dh.ErrBadSignature)

	// Nothing was stored for the failed handshake.
	addrs, err := alice.Sessions.List()
	require.NoError(t, err)
	require.Empty(t, addrs)
	pins, err := alice.IDs.ListTrusted()
	require.NoError(t, err)
	require.Empty(t, pins)
}

func TestEstablishRejectsUntrustedIdentity(t *testing.T) {
	alice, bob := newParty(t), newParty(t)
	bobAddr := domain.NewAddress("bob", 1)
	bundle := bob.bundle(t)

	// A pin for a different key blocks establishment.
	other := newParty(t)
	otherID, err := other.IDs.Identity()
	require.NoError(t, err)
	defer otherID.Wipe()
	require.NoError(t, alice.IDs.Pin(bobAddr, otherID.XPub))

	err = alice.Sessions.Establish(bobAddr, bundle)
	require.ErrorIs(t, err, domain.ErrUntrustedIdentity)
}

func TestReestablishArchivesPrevious(t *testing.T) {
	alice, bob := newParty(t), newParty(t)
	bobAddr := domain.NewAddress("bob", 1)

	require.NoError(t, alice.Sessions.Establish(bobAddr, bob.bundle(t)))
	first, err := alice.Sessions.Load(bobAddr)
	require.NoError(t, err)
	firstBase := first.Current.BaseKey
	first.Wipe()

	bundle, err := bob.PreKeys.Bundle("bob", 1)
	require.NoError(t, err)
	require.NoError(t, alice.Sessions.Establish(bobAddr, bundle))

	rec, err := alice.Sessions.Load(bobAddr)
	require.NoError(t, err)
	defer rec.Wipe()
	require.Len(t, rec.Previous, 1)
	require.NotEqual(t, firstBase, rec.Current.BaseKey)
	require.True(t, rec.HasBaseKey(firstBase))
}

func TestDeleteSession(t *testing.T) {
	alice, bob := newParty(t), newParty(t)
	bobAddr := domain.NewAddress("bob", 1)
	require.NoError(t, alice.Sessions.Establish(bobAddr, bob.bundle(t)))

	require.NoError(t, alice.Sessions.Delete(bobAddr))
	_, err := alice.Sessions.Load(bobAddr)
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
}
