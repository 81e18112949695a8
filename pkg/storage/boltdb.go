package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cuemby/subnet-watchdog/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	// Bucket names
	bucketPasses = []byte("passes")
)

// DefaultRetention is how many pass records are kept
const DefaultRetention = 1000

// openTimeout bounds the wait for the file lock held by another process
const openTimeout = 2 * time.Second

// BoltStore implements HistoryStore using BoltDB
type BoltStore struct {
	db        *bolt.DB
	retention int
}

// NewBoltStore creates a new BoltDB-backed history store
func NewBoltStore(dataDir string) (*BoltStore, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	dbPath := filepath.Join(dataDir, "watchdog.db")

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketPasses); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucketPasses, err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db, retention: DefaultRetention}, nil
}

// WithRetention caps the number of stored records; n <= 0 keeps everything
func (s *BoltStore) WithRetention(n int) *BoltStore {
	s.retention = n
	return s
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// passKey sorts records by start time, ties broken by ID
func passKey(record *types.PassRecord) []byte {
	return []byte(fmt.Sprintf("%020d-%s", record.StartedAt.UnixNano(), record.ID))
}

// RecordPass stores the record and drops the oldest ones beyond the retention
func (s *BoltStore) RecordPass(record *types.PassRecord) error {
	if record.ID == "" {
		return fmt.Errorf("pass record has no id")
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPasses)
		data, err := json.Marshal(record)
		if err != nil {
			return err
		}
		if err := b.Put(passKey(record), data); err != nil {
			return err
		}

		if s.retention <= 0 {
			return nil
		}
		c := b.Cursor()
		excess := -s.retention
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			excess++
		}
		for k, _ := c.First(); k != nil && excess > 0; k, _ = c.First() {
			if err := c.Delete(); err != nil {
				return err
			}
			excess--
		}
		return nil
	})
}

// ListPasses returns stored records, newest first
func (s *BoltStore) ListPasses(limit int) ([]*types.PassRecord, error) {
	var records []*types.PassRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketPasses).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(records) >= limit {
				break
			}
			var record types.PassRecord
			if err := json.Unmarshal(v, &record); err != nil {
				return err
			}
			records = append(records, &record)
		}
		return nil
	})
	return records, err
}
