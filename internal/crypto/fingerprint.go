package crypto

import (
	"encoding/hex"
)

// Fingerprint returns a short hex fingerprint of a public key identity.
//
// It truncates the identity digest to 10 bytes (20 hex chars).
func Fingerprint(id PublicKeyID) string {
	return hex.EncodeToString(id[:10])
}
