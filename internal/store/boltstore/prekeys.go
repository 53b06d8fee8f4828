package boltstore

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"go.etcd.io/bbolt"

	"sigilo/internal/domain"
	"sigilo/internal/util/memzero"
)

// StorePreKey stores a one-time prekey record.
func (s *Store) StorePreKey(rec domain.PreKeyRecord) error {
	val, err := cbor.Marshal(&preKeyValue{Pub: rec.Pub.Slice(), Priv: rec.Priv.Slice()})
	if err != nil {
		return err
	}
	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(preKeyBucket)).Put(itob(uint32(rec.ID)), val)
	})
	memzero.Zero(val)
	return err
}

// LoadPreKey returns the one-time prekey with the given id.
func (s *Store) LoadPreKey(id domain.PreKeyID) (domain.PreKeyRecord, error) {
	rec := domain.PreKeyRecord{ID: id}
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket([]byte(preKeyBucket)).Get(itob(uint32(id)))
		if raw == nil {
			return fmt.Errorf("%w: id %d", domain.ErrPreKeyNotFound, id)
		}
		var val preKeyValue
		if err := cbor.Unmarshal(raw, &val); err != nil {
			return err
		}
		if len(val.Pub) != 32 || len(val.Priv) != 32 {
			return fmt.Errorf("boltstore: corrupted prekey record %d", id)
		}
		copy(rec.Pub[:], val.Pub)
		copy(rec.Priv[:], val.Priv)
		memzero.Zero(val.Priv)
		return nil
	})
	if err != nil {
		return domain.PreKeyRecord{}, err
	}
	return rec, nil
}

// ContainsPreKey reports whether the id is still in the inventory.
func (s *Store) ContainsPreKey(id domain.PreKeyID) (bool, error) {
	found := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		found = tx.Bucket([]byte(preKeyBucket)).Get(itob(uint32(id))) != nil
		return nil
	})
	return found, err
}

// RemovePreKey deletes a consumed one-time prekey. Unknown ids are not an
// error.
func (s *Store) RemovePreKey(id domain.PreKeyID) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(preKeyBucket)).Delete(itob(uint32(id)))
	})
}

// ListPreKeyIDs returns the ids of every stored one-time prekey.
func (s *Store) ListPreKeyIDs() ([]domain.PreKeyID, error) {
	var ids []domain.PreKeyID
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(preKeyBucket)).ForEach(func(k, _ []byte) error {
			ids = append(ids, domain.PreKeyID(btoi(k)))
			return nil
		})
	})
	return ids, err
}

// NextPreKeyID allocates a fresh monotonic prekey id.
func (s *Store) NextPreKeyID() (domain.PreKeyID, error) {
	var id uint64
	err := s.db.Update(func(tx *bbolt.Tx) error {
		var err error
		id, err = tx.Bucket([]byte(preKeyBucket)).NextSequence()
		return err
	})
	return domain.PreKeyID(id), err
}

// StoreSignedPreKey stores a signed prekey record.
func (s *Store) StoreSignedPreKey(rec domain.SignedPreKeyRecord) error {
	val, err := cbor.Marshal(&signedPreKeyValue{
		Pub:       rec.Pub.Slice(),
		Priv:      rec.Priv.Slice(),
		Signature: rec.Signature,
		CreatedAt: rec.CreatedAt,
	})
	if err != nil {
		return err
	}
	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(signedBucket)).Put(itob(uint32(rec.ID)), val)
	})
	memzero.Zero(val)
	return err
}

// LoadSignedPreKey returns the signed prekey with the given id.
func (s *Store) LoadSignedPreKey(id domain.SignedPreKeyID) (domain.SignedPreKeyRecord, error) {
	rec := domain.SignedPreKeyRecord{ID: id}
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket([]byte(signedBucket)).Get(itob(uint32(id)))
		if raw == nil {
			return fmt.Errorf("%w: id %d", domain.ErrSignedPreKeyNotFound, id)
		}
		return decodeSignedPreKey(raw, &rec)
	})
	if err != nil {
		return domain.SignedPreKeyRecord{}, err
	}
	return rec, nil
}

// ListSignedPreKeys returns every stored signed prekey.
func (s *Store) ListSignedPreKeys() ([]domain.SignedPreKeyRecord, error) {
	var recs []domain.SignedPreKeyRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(signedBucket)).ForEach(func(k, v []byte) error {
			// Skip the current-id marker; record keys are 4 bytes.
			if len(k) != 4 {
				return nil
			}
			rec := domain.SignedPreKeyRecord{ID: domain.SignedPreKeyID(btoi(k))}
			if err := decodeSignedPreKey(v, &rec); err != nil {
				return err
			}
			recs = append(recs, rec)
			return nil
		})
	})
	return recs, err
}

// RemoveSignedPreKey deletes a signed prekey after its grace window.
func (s *Store) RemoveSignedPreKey(id domain.SignedPreKeyID) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(signedBucket)).Delete(itob(uint32(id)))
	})
}

// SetCurrentSignedPreKeyID marks the signed prekey used for new bundles.
func (s *Store) SetCurrentSignedPreKeyID(id domain.SignedPreKeyID) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(signedBucket)).Put([]byte(currentSPKKey), itob(uint32(id)))
	})
}

// CurrentSignedPreKeyID returns the id marked current.
func (s *Store) CurrentSignedPreKeyID() (domain.SignedPreKeyID, error) {
	var id domain.SignedPreKeyID
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket([]byte(signedBucket)).Get([]byte(currentSPKKey))
		if raw == nil {
			return domain.ErrSignedPreKeyNotFound
		}
		id = domain.SignedPreKeyID(btoi(raw))
		return nil
	})
	return id, err
}

// NextSignedPreKeyID allocates a fresh monotonic signed prekey id.
func (s *Store) NextSignedPreKeyID() (domain.SignedPreKeyID, error) {
	var id uint64
	err := s.db.Update(func(tx *bbolt.Tx) error {
		var err error
		id, err = tx.Bucket([]byte(signedBucket)).NextSequence()
		return err
	})
	return domain.SignedPreKeyID(id), err
}

func decodeSignedPreKey(raw []byte, rec *domain.SignedPreKeyRecord) error {
	var val signedPreKeyValue
	if err := cbor.Unmarshal(raw, &val); err != nil {
		return err
	}
	if len(val.Pub) != 32 || len(val.Priv) != 32 {
		return fmt.Errorf("boltstore: corrupted signed prekey record %d", rec.ID)
	}
	copy(rec.Pub[:], val.Pub)
	copy(rec.Priv[:], val.Priv)
	rec.Signature = val.Signature
	rec.CreatedAt = val.CreatedAt
	memzero.Zero(val.Priv)
	return nil
}
