package interfaces

import "groupseal/internal/crypto"

// KeyProvider exposes the local private key and its changes.
type KeyProvider interface {
	// PrivateKey returns the current key, or nil if none is set up.
	PrivateKey() *crypto.PrivateKeyMaterial
	// Subscribe registers fn for every later key change.
	Subscribe(fn func(*crypto.PrivateKeyMaterial)) (unsubscribe func())
}
