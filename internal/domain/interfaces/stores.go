package interfaces

// KeyStore persists opaque key blobs for one user.
type KeyStore interface {
	// Save stores blob under name. With overwrite false an existing name is
	// left untouched and an error is returned.
	Save(name string, blob []byte, overwrite bool) error
	// Load returns the blob stored under name, or a KeyNotFound error.
	Load(name string) ([]byte, error)
}

// KVStore is small string-keyed persistent storage.
type KVStore interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Delete(key string) error
}
