package storage

import (
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const (
	// scenarioBucket stores the selected scenario per emulator
	scenarioBucket = "_scenarios"

	// overrideBucket stores accumulated config overrides per emulator
	overrideBucket = "_overrides"
)

// BoltSettings is a bbolt implementation of the Settings interface
type BoltSettings struct {
	db *bbolt.DB
}

// NewBoltSettings creates a new BoltSettings instance
// The database file will be created if it doesn't exist
func NewBoltSettings(path string) (*BoltSettings, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(scenarioBucket)); err != nil {
			return fmt.Errorf("failed to create scenario bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(overrideBucket)); err != nil {
			return fmt.Errorf("failed to create override bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltSettings{db: db}, nil
}

// SaveScenario stores the selected scenario for an emulator
func (s *BoltSettings) SaveScenario(emulator, scenario string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(scenarioBucket))
		if bucket == nil {
			return fmt.Errorf("scenario bucket not found")
		}
		return bucket.Put([]byte(emulator), []byte(scenario))
	})
}

// Scenario returns the stored scenario for an emulator
func (s *BoltSettings) Scenario(emulator string) (string, error) {
	var scenario string
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(scenarioBucket))
		if bucket == nil {
			return fmt.Errorf("scenario bucket not found")
		}
		data := bucket.Get([]byte(emulator))
		if data == nil {
			return ErrNotFound
		}
		scenario = string(data)
		return nil
	})
	return scenario, err
}

// SaveOverride stores the accumulated config override for an emulator
func (s *BoltSettings) SaveOverride(emulator string, patch []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(overrideBucket))
		if bucket == nil {
			return fmt.Errorf("override bucket not found")
		}
		return bucket.Put([]byte(emulator), patch)
	})
}

// Override returns the stored config override for an emulator
func (s *BoltSettings) Override(emulator string) ([]byte, error) {
	var value []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(overrideBucket))
		if bucket == nil {
			return fmt.Errorf("override bucket not found")
		}
		data := bucket.Get([]byte(emulator))
		if data == nil {
			return ErrNotFound
		}
		value = make([]byte, len(data))
		copy(value, data)
		return nil
	})
	return value, err
}

// DeleteOverride removes the stored override for an emulator
func (s *BoltSettings) DeleteOverride(emulator string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(overrideBucket))
		if bucket == nil {
			return fmt.Errorf("override bucket not found")
		}
		return bucket.Delete([]byte(emulator))
	})
}

// Close closes the storage
func (s *BoltSettings) Close() error {
	return s.db.Close()
}
