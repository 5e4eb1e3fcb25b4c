package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"groupseal/internal/domain"
	gerrors "groupseal/internal/errors"
	"groupseal/internal/logging"
)

const keysFilename = "keys.json.enc"

// ErrKeyExists is returned by Save when overwrite is false and name is taken.
var ErrKeyExists = fmt.Errorf("key already exists")

// KeyStore keeps one user's key blobs in a single sealed file.
type KeyStore struct {
	path   string
	sealer sealer
	mu     sync.Mutex
}

// KeyStoreOption configures OpenKeyStore.
type KeyStoreOption func(*KeyStore)

// WithScryptParams overrides the KDF cost for newly written files.
func WithScryptParams(p ScryptParams) KeyStoreOption {
	return func(ks *KeyStore) { ks.sealer.params = p }
}

// OpenKeyStore opens (creating if needed) the store of userID under root.
// An existing file must open with passphrase.
func OpenKeyStore(root string, userID domain.UserID, passphrase string, opts ...KeyStoreOption) (*KeyStore, error) {
	const op = "keystore open"
	if userID == "" || filepath.Base(string(userID)) != string(userID) {
		return nil, gerrors.E(gerrors.StorageUnavailable, op, fmt.Errorf("invalid user id %q", userID))
	}
	dir := filepath.Join(root, string(userID))
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, gerrors.E(gerrors.StorageUnavailable, op, err)
	}
	ks := &KeyStore{
		path:   filepath.Join(dir, keysFilename),
		sealer: sealer{passphrase: []byte(passphrase), params: DefaultScryptParams},
	}
	for _, opt := range opts {
		opt(ks)
	}
	if _, err := ks.read(); err != nil {
		return nil, gerrors.E(gerrors.StorageUnavailable, op, err)
	}
	logging.New("store", "OpenKeyStore").WithField("user_id", userID).Debug("key store opened")
	return ks, nil
}

// Save stores blob under name. The whole file is rewritten atomically.
func (ks *KeyStore) Save(name string, blob []byte, overwrite bool) error {
	const op = "keystore save"
	ks.mu.Lock()
	defer ks.mu.Unlock()

	keys, err := ks.read()
	if err != nil {
		return gerrors.E(gerrors.StorageUnavailable, op, err)
	}
	if _, exists := keys[name]; exists && !overwrite {
		return fmt.Errorf("%s %q: %w", op, name, ErrKeyExists)
	}
	keys[name] = append([]byte(nil), blob...)

	plain, err := json.Marshal(keys)
	if err != nil {
		return gerrors.E(gerrors.StorageUnavailable, op, err)
	}
	sealed, err := ks.sealer.seal(plain)
	if err != nil {
		return gerrors.E(gerrors.StorageUnavailable, op, err)
	}
	if err := writeFile(ks.path, sealed, 0o600); err != nil {
		return gerrors.E(gerrors.StorageUnavailable, op, err)
	}
	return nil
}

// Load returns the blob stored under name.
func (ks *KeyStore) Load(name string) ([]byte, error) {
	const op = "keystore load"
	ks.mu.Lock()
	defer ks.mu.Unlock()

	keys, err := ks.read()
	if err != nil {
		return nil, gerrors.E(gerrors.StorageUnavailable, op, err)
	}
	blob, ok := keys[name]
	if !ok {
		return nil, gerrors.E(gerrors.KeyNotFound, op, fmt.Errorf("%q: %w", name, gerrors.ErrKeyNotFound))
	}
	return blob, nil
}

// read returns the decrypted key map; a missing file is an empty map.
func (ks *KeyStore) read() (map[string][]byte, error) {
	b, err := readFile(ks.path)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return map[string][]byte{}, nil
	}
	plain, err := ks.sealer.open(b)
	if err != nil {
		return nil, err
	}
	keys := map[string][]byte{}
	if err := json.Unmarshal(plain, &keys); err != nil {
		return nil, err
	}
	return keys, nil
}

// Compile-time assertion that KeyStore implements domain.KeyStore.
var _ domain.KeyStore = (*KeyStore)(nil)

// KeyStoreExists reports whether userID already has a key store under root.
func KeyStoreExists(root string, userID domain.UserID) bool {
	_, err := os.Stat(filepath.Join(root, string(userID), keysFilename))
	return err == nil
}
