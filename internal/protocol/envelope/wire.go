package envelope

import (
	"crypto/ecdh"
	"encoding/json"
	"fmt"

	"groupseal/internal/crypto"
	gerrors "groupseal/internal/errors"
)

// FormatVersion is the version written by ToRaw.
const FormatVersion = 1

// Raw is the structured form of an Envelope. Held in memory its byte fields
// are raw; encoding/json writes them as standard base64, which is the
// transport form attached to posts.
type Raw struct {
	Version       int         `json:"version"`
	Signature     []byte      `json:"signature"`
	IV            []byte      `json:"iv"`
	PubECDHE      []byte      `json:"pubECDHE"`
	EncryptedKey  [][2][]byte `json:"encryptedKey"`
	EncryptedData []byte      `json:"encryptedData"`
}

// ToRaw converts e to its structured form.
func (e *Envelope) ToRaw() Raw {
	keys := make([][2][]byte, len(e.Keys))
	for i, k := range e.Keys {
		id := k.ID
		keys[i] = [2][]byte{id[:], k.Key}
	}
	return Raw{
		Version:       FormatVersion,
		Signature:     e.Signature,
		IV:            e.IV,
		PubECDHE:      e.Ephemeral.Bytes(),
		EncryptedKey:  keys,
		EncryptedData: e.Ciphertext,
	}
}

// FromRaw parses the structured form.
func FromRaw(r Raw) (*Envelope, error) {
	const op = "envelope parse"
	if r.Version != FormatVersion {
		return nil, gerrors.E(gerrors.Validation, op, fmt.Errorf("unsupported version %d", r.Version))
	}
	eph, err := ecdh.P256().NewPublicKey(r.PubECDHE)
	if err != nil {
		return nil, gerrors.E(gerrors.Validation, op, fmt.Errorf("ephemeral key: %w", err))
	}
	if len(r.IV) != IVSize {
		return nil, gerrors.E(gerrors.Validation, op, fmt.Errorf("iv: want %d bytes, got %d", IVSize, len(r.IV)))
	}
	e := &Envelope{
		Signature:  r.Signature,
		IV:         r.IV,
		Ephemeral:  eph,
		Keys:       make([]WrappedKey, len(r.EncryptedKey)),
		Ciphertext: r.EncryptedData,
	}
	for i, pair := range r.EncryptedKey {
		if len(pair[0]) != crypto.PublicKeyIDSize {
			return nil, gerrors.E(gerrors.Validation, op, fmt.Errorf("key %d: bad recipient id length", i))
		}
		if len(pair[1]) < WrappedKeySize {
			return nil, gerrors.E(gerrors.Validation, op, fmt.Errorf("key %d: wrapped key too short", i))
		}
		copy(e.Keys[i].ID[:], pair[0])
		e.Keys[i].Key = pair[1]
	}
	return e, nil
}

// MarshalJSON writes the base64 transport form.
func (e *Envelope) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.ToRaw())
}

// UnmarshalJSON reads the base64 transport form.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var r Raw
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	parsed, err := FromRaw(r)
	if err != nil {
		return err
	}
	*e = *parsed
	return nil
}
