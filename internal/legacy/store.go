package legacy

import (
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	// Bucket holds the flat key-value entries of the pre-SQLite release.
	Bucket = "localStorage"
	// TasksKey is the entry carrying the whole task list as one JSON array.
	TasksKey = "strictfocus-tasks"
)

// Store is the flat key-value store the first release kept its data in.
type Store struct {
	db     *bolt.DB
	bucket []byte
}

// Open opens the legacy file, creating it and the bucket when missing.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(Bucket))
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, bucket: []byte(Bucket)}, nil
}

// Get returns a copy of the value under key, or nil when absent.
func (s *Store) Get(key string) ([]byte, error) {
	if s == nil || s.db == nil {
		return nil, bolt.ErrDatabaseNotOpen
	}
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(s.bucket).Get([]byte(key)); v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	})
	return out, err
}

func (s *Store) Set(key string, value []byte) error {
	if s == nil || s.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Put([]byte(key), value)
	})
}

// Remove deletes key. Removing an absent key is not an error.
func (s *Store) Remove(key string) error {
	if s == nil || s.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Delete([]byte(key))
	})
}

// Load returns the legacy task blob, or nil when there is none.
func (s *Store) Load() ([]byte, error) {
	return s.Get(TasksKey)
}

// Clear removes the legacy task blob once it has been imported.
func (s *Store) Clear() error {
	return s.Remove(TasksKey)
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
