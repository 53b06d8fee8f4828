package boltstore

import (
	"fmt"

	"go.etcd.io/bbolt"

	"sigilo/internal/domain"
)

// StoreSession stores the serialized session record for addr. The bytes
// are opaque; the ratchet package owns the format.
func (s *Store) StoreSession(addr domain.Address, record []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(sessionBucket)).Put([]byte(addr.String()), record)
	})
}

// LoadSession returns the serialized session record for addr.
func (s *Store) LoadSession(addr domain.Address) ([]byte, error) {
	var record []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket([]byte(sessionBucket)).Get([]byte(addr.String()))
		if raw == nil {
			return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, addr)
		}
		record = append([]byte(nil), raw...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// DeleteSession removes the session record for addr.
func (s *Store) DeleteSession(addr domain.Address) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(sessionBucket)).Delete([]byte(addr.String()))
	})
}

// ListAddresses returns every address with a stored session.
func (s *Store) ListAddresses() ([]domain.Address, error) {
	var addrs []domain.Address
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(sessionBucket)).ForEach(func(k, _ []byte) error {
			addr, err := domain.ParseAddress(string(k))
			if err != nil {
				return err
			}
			addrs = append(addrs, addr)
			return nil
		})
	})
	return addrs, err
}
