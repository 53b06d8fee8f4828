package crypto_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"sigilo/internal/crypto"
)

func TestDHAgreement(t *testing.T) {
	aPriv, aPub, err := crypto.GenerateX25519()
	require.NoError(t, err)
	bPriv, bPub, err := crypto.GenerateX25519()
	require.NoError(t, err)

	ab, err := crypto.DH(aPriv, bPub)
	require.NoError(t, err)
	ba, err := crypto.DH(bPriv, aPub)
	require.NoError(t, err)
	require.Equal(t, ab, ba)

	// Clamping per RFC 7748.
	require.Zero(t, aPriv[0]&7)
	require.Zero(t, aPriv[31]&128)
	require.EqualValues(t, 64, aPriv[31]&64)
}

func TestSignVerify(t *testing.T) {
	priv, pub, err := crypto.GenerateEd25519()
	require.NoError(t, err)

	msg := []byte("bundle contents")
	sig := crypto.SignEd25519(priv, msg)
	require.True(t, crypto.VerifyEd25519(pub, msg, sig))

	sig[0] ^= 0x01
	require.False(t, crypto.VerifyEd25519(pub, msg, sig))
	sig[0] ^= 0x01
	require.False(t, crypto.VerifyEd25519(pub, []byte("other"), sig))
}

func TestSealOpen(t *testing.T) {
	secret := []byte("identity private material")
	plain := append([]byte(nil), secret...)

	sealed, err := crypto.SealSecret("hunter2", plain)
	require.NoError(t, err)
	// SealSecret wipes its input.
	require.NotEqual(t, secret, plain)

	got, err := crypto.OpenSecret("hunter2", sealed)
	require.NoError(t, err)
	require.Equal(t, secret, got)

	_, err = crypto.OpenSecret("wrong", sealed)
	require.ErrorIs(t, err, crypto.ErrWrongPassphrase)

	sealed.Cipher[0] ^= 0xFF
	_, err = crypto.OpenSecret("hunter2", sealed)
	require.ErrorIs(t, err, crypto.ErrWrongPassphrase)
}

func TestFingerprintStable(t *testing.T) {
	_, pub, err := crypto.GenerateX25519()
	require.NoError(t, err)

	fp := crypto.Fingerprint(pub[:])
	require.Len(t, fp.String(), 20)
	require.Equal(t, fp, crypto.Fingerprint(pub[:]))
}
