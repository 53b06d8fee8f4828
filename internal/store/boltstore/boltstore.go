package boltstore

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"go.etcd.io/bbolt"
	"gopkg.in/op/go-logging.v1"

	"sigilo/internal/crypto"
	"sigilo/internal/domain"
	"sigilo/internal/log"
	"sigilo/internal/util/memzero"
)

const (
	identityBucket = "identity"
	trustBucket    = "trust"
	preKeyBucket   = "prekeys"
	signedBucket   = "signed_prekeys"
	sessionBucket  = "sessions"

	localKey        = "local"
	registrationKey = "registration"
	currentSPKKey   = "current"
)

// maxRegistrationID bounds the randomly generated device registration id.
const maxRegistrationID = 0x3FFF

// Store is a bbolt-backed implementation of the domain store contracts.
// The local identity's private halves are sealed under a passphrase-derived
// key before they touch disk; everything else is CBOR values in per-kind
// buckets.
type Store struct {
	db         *bbolt.DB
	passphrase string
	log        *logging.Logger
}

var (
	_ domain.IdentityStore     = (*Store)(nil)
	_ domain.PreKeyStore       = (*Store)(nil)
	_ domain.SignedPreKeyStore = (*Store)(nil)
	_ domain.SessionStore      = (*Store)(nil)
)

// Open opens (creating if necessary) the store database at path. The
// passphrase seals and opens the identity private keys.
func Open(path, passphrase string, backend *log.Backend) (*Store, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("boltstore: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{identityBucket, trustBucket, preKeyBucket, signedBucket, sessionBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("boltstore: init buckets: %w", err)
	}
	return &Store{db: db, passphrase: passphrase, log: backend.GetLogger("store")}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

type localIdentityValue struct {
	XPub   []byte               `cbor:"xpub"`
	EdPub  []byte               `cbor:"edpub"`
	Sealed *crypto.SealedSecret `cbor:"sealed"`
}

type trustValue struct {
	Key      []byte `cbor:"key"`
	PinnedAt int64  `cbor:"at"`
	Verified bool   `cbor:"ok,omitempty"`
}

type preKeyValue struct {
	Pub  []byte `cbor:"pub"`
	Priv []byte `cbor:"priv"`
}

type signedPreKeyValue struct {
	Pub       []byte `cbor:"pub"`
	Priv      []byte `cbor:"priv"`
	Signature []byte `cbor:"sig"`
	CreatedAt int64  `cbor:"at"`
}

// SaveLocalIdentity seals and stores the identity, generating the device
// registration id alongside it on first save.
func (s *Store) SaveLocalIdentity(id domain.IdentityKeyPair) error {
	secret := make([]byte, 32+64)
	copy(secret[:32], id.XPriv[:])
	copy(secret[32:], id.EdPriv[:])
	sealed, err := crypto.SealSecret(s.passphrase, secret)
	if err != nil {
		memzero.Zero(secret)
		return err
	}
	val, err := cbor.Marshal(&localIdentityValue{
		XPub:   id.XPub.Slice(),
		EdPub:  id.EdPub.Slice(),
		Sealed: sealed,
	})
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bkt := tx.Bucket([]byte(identityBucket))
		if err := bkt.Put([]byte(localKey), val); err != nil {
			return err
		}
		if bkt.Get([]byte(registrationKey)) == nil {
			regID, err := generateRegistrationID()
			if err != nil {
				return err
			}
			var raw [4]byte
			binary.BigEndian.PutUint32(raw[:], regID)
			return bkt.Put([]byte(registrationKey), raw[:])
		}
		return nil
	})
}

// LoadLocalIdentity opens the sealed identity. A wrong passphrase surfaces
// crypto.ErrWrongPassphrase.
func (s *Store) LoadLocalIdentity() (domain.IdentityKeyPair, error) {
	var val localIdentityValue
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket([]byte(identityBucket)).Get([]byte(localKey))
		if raw == nil {
			return domain.ErrIdentityNotFound
		}
		return cbor.Unmarshal(raw, &val)
	})
	if err != nil {
		return domain.IdentityKeyPair{}, err
	}

	secret, err := crypto.OpenSecret(s.passphrase, val.Sealed)
	if err != nil {
		return domain.IdentityKeyPair{}, err
	}
	if len(secret) != 32+64 || len(val.XPub) != 32 || len(val.EdPub) != 32 {
		memzero.Zero(secret)
		return domain.IdentityKeyPair{}, fmt.Errorf("boltstore: corrupted identity record")
	}
	var id domain.IdentityKeyPair
	copy(id.XPub[:], val.XPub)
	copy(id.EdPub[:], val.EdPub)
	copy(id.XPriv[:], secret[:32])
	copy(id.EdPriv[:], secret[32:])
	memzero.Zero(secret)
	return id, nil
}

// RegistrationID returns the device registration id generated at identity
// creation.
func (s *Store) RegistrationID() (uint32, error) {
	var regID uint32
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket([]byte(identityBucket)).Get([]byte(registrationKey))
		if raw == nil {
			return domain.ErrIdentityNotFound
		}
		regID = binary.BigEndian.Uint32(raw)
		return nil
	})
	return regID, err
}

// IsTrusted implements first-use pinning without mutating the pin.
func (s *Store) IsTrusted(addr domain.Address, key domain.X25519Public) (bool, error) {
	trusted := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket([]byte(trustBucket)).Get([]byte(addr.String()))
		if raw == nil {
			trusted = true
			return nil
		}
		var val trustValue
		if err := cbor.Unmarshal(raw, &val); err != nil {
			return err
		}
		trusted = len(val.Key) == 32 && domainKey(val.Key) == key
		return nil
	})
	return trusted, err
}

// SaveTrusted pins the identity key for an address.
func (s *Store) SaveTrusted(addr domain.Address, key domain.X25519Public, verified bool) error {
	val, err := cbor.Marshal(&trustValue{Key: key.Slice(), PinnedAt: nowUnix(), Verified: verified})
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(trustBucket)).Put([]byte(addr.String()), val)
	})
}

// LoadTrusted returns the pin for addr, or ErrSessionNotFound-style miss
// via a zero value and domain.ErrIdentityNotFound.
func (s *Store) LoadTrusted(addr domain.Address) (domain.TrustedIdentity, error) {
	var out domain.TrustedIdentity
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket([]byte(trustBucket)).Get([]byte(addr.String()))
		if raw == nil {
			return domain.ErrIdentityNotFound
		}
		var val trustValue
		if err := cbor.Unmarshal(raw, &val); err != nil {
			return err
		}
		out = domain.TrustedIdentity{Address: addr, Key: domainKey(val.Key), PinnedAt: val.PinnedAt, Verified: val.Verified}
		return nil
	})
	return out, err
}

// ListTrusted returns every pinned identity.
func (s *Store) ListTrusted() ([]domain.TrustedIdentity, error) {
	var out []domain.TrustedIdentity
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(trustBucket)).ForEach(func(k, v []byte) error {
			addr, err := domain.ParseAddress(string(k))
			if err != nil {
				return err
			}
			var val trustValue
			if err := cbor.Unmarshal(v, &val); err != nil {
				return err
			}
			out = append(out, domain.TrustedIdentity{Address: addr, Key: domainKey(val.Key), PinnedAt: val.PinnedAt, Verified: val.Verified})
			return nil
		})
	})
	return out, err
}

func generateRegistrationID() (uint32, error) {
	var raw [4]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(raw[:])%maxRegistrationID + 1, nil
}

func nowUnix() int64 { return time.Now().Unix() }

func domainKey(raw []byte) domain.X25519Public {
	var k domain.X25519Public
	copy(k[:], raw)
	return k
}

func itob(id uint32) []byte {
	var raw [4]byte
	binary.BigEndian.PutUint32(raw[:], id)
	return raw[:]
}

func btoi(raw []byte) uint32 {
	return binary.BigEndian.Uint32(raw)
}
