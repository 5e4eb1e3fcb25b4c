package store

import (
	"os"
	"path/filepath"
	"sync"

	"groupseal/internal/domain"
	gerrors "groupseal/internal/errors"
)

// KVFileStore is a string map persisted as one JSON file.
type KVFileStore struct {
	path string
	mu   sync.Mutex
}

// NewKVFileStore returns a store backed by path, creating its directory.
func NewKVFileStore(path string) (*KVFileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, gerrors.E(gerrors.StorageUnavailable, "kv open", err)
	}
	return &KVFileStore{path: path}, nil
}

// Get returns the value under key; ok is false if the key is absent.
func (s *KVFileStore) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.load()
	if err != nil {
		return "", false, err
	}
	v, ok := m[key]
	return v, ok, nil
}

// Set stores value under key.
func (s *KVFileStore) Set(key, value string) error {
	return s.update(func(m map[string]string) { m[key] = value })
}

// Delete removes key. Deleting a missing key is not an error.
func (s *KVFileStore) Delete(key string) error {
	return s.update(func(m map[string]string) { delete(m, key) })
}

// update applies fn to the map under the store lock and persists the result.
func (s *KVFileStore) update(fn func(map[string]string)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.load()
	if err != nil {
		return err
	}
	fn(m)
	if err := writeJSON(s.path, m, 0o600); err != nil {
		return gerrors.E(gerrors.StorageUnavailable, "kv write", err)
	}
	return nil
}

func (s *KVFileStore) load() (map[string]string, error) {
	m := map[string]string{}
	if _, err := readJSON(s.path, &m); err != nil {
		return nil, gerrors.E(gerrors.StorageUnavailable, "kv read", err)
	}
	return m, nil
}

// Compile-time assertion that KVFileStore implements domain.KVStore.
var _ domain.KVStore = (*KVFileStore)(nil)
