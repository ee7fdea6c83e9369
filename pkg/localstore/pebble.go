package localstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	pebble "github.com/cockroachdb/pebble"
	json "github.com/json-iterator/go"
)

const pebblePrefix = "local:"

// PebbleStore keeps each key as its own record in a pebble database.
type PebbleStore struct {
	db *pebble.DB
}

// NewPebbleStore opens (or creates) a pebble database directory at path.
func NewPebbleStore(path string) (*PebbleStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble store: %w", err)
	}
	return &PebbleStore{db: db}, nil
}

func (s *PebbleStore) Get(key string, out interface{}) (bool, error) {
	v, closer, err := s.db.Get([]byte(pebblePrefix + key))
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer closer.Close()

	if err := json.Unmarshal(v, out); err != nil {
		return true, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

func (s *PebbleStore) Set(key string, value interface{}) error {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return s.db.Set([]byte(pebblePrefix+key), b, pebble.Sync)
}

func (s *PebbleStore) Delete(key string) error {
	return s.db.Delete([]byte(pebblePrefix+key), pebble.Sync)
}

func (s *PebbleStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
