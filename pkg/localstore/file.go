package localstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	json "github.com/json-iterator/go"
)

// FileStore keeps every key in one JSON object on disk.
type FileStore struct {
	path string
	mu   sync.RWMutex
	data map[string]json.RawMessage
}

// NewFileStore loads path, creating its directory if needed.
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	s := &FileStore{path: path, data: make(map[string]json.RawMessage)}
	if err := s.loadFromFile(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) loadFromFile() error {
	b, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read store: %w", err)
	}
	if len(b) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, &s.data); err != nil {
		return fmt.Errorf("failed to parse store %s: %w", s.path, err)
	}
	return nil
}

func (s *FileStore) Get(key string, out interface{}) (bool, error) {
	s.mu.RLock()
	raw, ok := s.data[key]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return true, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

func (s *FileStore) Set(key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = raw
	return s.saveToFile()
}

func (s *FileStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; !ok {
		return nil
	}
	delete(s.data, key)
	return s.saveToFile()
}

func (s *FileStore) Close() error {
	return nil
}

// saveToFile writes through a temp file so a crash never leaves half a document. Callers hold mu.
func (s *FileStore) saveToFile() error {
	b, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0600); err != nil {
		return fmt.Errorf("failed to write store: %w", err)
	}
	return os.Rename(tmp, s.path)
}
