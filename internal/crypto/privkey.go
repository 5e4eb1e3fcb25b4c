package crypto

import (
	"bytes"
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	gerrors "groupseal/internal/errors"
)

// PrivateKeyFormatVersion is the version of the serialized private key.
const PrivateKeyFormatVersion = 1

var (
	errInvalidKeyMetadata = gerrors.ErrInvalidPrivateKey

	// ErrNotExtractable is returned when exporting a key created non-extractable.
	ErrNotExtractable = errors.New("private key is not extractable")
)

// PrivateKeyJSON is the versioned serialization of PrivateKeyMaterial.
type PrivateKeyJSON struct {
	Version int `json:"version"`
	Sign    JWK `json:"sign"`
	Encr    JWK `json:"encr"`
}

// PrivateKeyMaterial holds the local user's agreement and signing key pairs.
type PrivateKeyMaterial struct {
	ecdh        *ecdh.PrivateKey
	ecdsa       *ecdsa.PrivateKey
	extractable bool
	pub         *PublicKeyMaterial
}

// GenerateKey creates a fresh key pair set. extractable is fixed for the
// lifetime of the returned value.
func GenerateKey(extractable bool) (*PrivateKeyMaterial, error) {
	encr, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	sign, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	return newPrivateKey(encr, sign, extractable), nil
}

func newPrivateKey(encr *ecdh.PrivateKey, sign *ecdsa.PrivateKey, extractable bool) *PrivateKeyMaterial {
	return &PrivateKeyMaterial{
		ecdh:        encr,
		ecdsa:       sign,
		extractable: extractable,
		pub:         NewPublicKey(encr.PublicKey(), &sign.PublicKey),
	}
}

// PublicKey returns the public projection.
func (k *PrivateKeyMaterial) PublicKey() *PublicKeyMaterial { return k.pub }

// ID returns the identity of the public projection.
func (k *PrivateKeyMaterial) ID() PublicKeyID { return k.pub.ID() }

// Extractable reports whether the key may be serialized.
func (k *PrivateKeyMaterial) Extractable() bool { return k.extractable }

// ECDH returns the agreement private key.
func (k *PrivateKeyMaterial) ECDH() *ecdh.PrivateKey { return k.ecdh }

// ECDSA returns the signing private key.
func (k *PrivateKeyMaterial) ECDSA() *ecdsa.PrivateKey { return k.ecdsa }

// MarshalJSON serializes the key. It fails for non-extractable keys.
func (k *PrivateKeyMaterial) MarshalJSON() ([]byte, error) {
	if !k.extractable {
		return nil, ErrNotExtractable
	}
	return json.Marshal(k.jsonable())
}

func (k *PrivateKeyMaterial) jsonable() PrivateKeyJSON {
	return PrivateKeyJSON{
		Version: PrivateKeyFormatVersion,
		Sign:    k.signJWK(),
		Encr:    k.encrJWK(),
	}
}

func (k *PrivateKeyMaterial) signJWK() JWK {
	d := make([]byte, coordSize)
	k.ecdsa.D.FillBytes(d)
	return newJWK(ecdsaPointBytes(&k.ecdsa.PublicKey), d, k.extractable, opSign)
}

func (k *PrivateKeyMaterial) encrJWK() JWK {
	return newJWK(k.ecdh.PublicKey().Bytes(), k.ecdh.Bytes(), k.extractable, opDeriveBits)
}

// ParsePrivateKey decodes the versioned serialization. Any metadata or
// point mismatch is reported as an InvalidPrivateKey error.
func ParsePrivateKey(data []byte, extractable bool) (*PrivateKeyMaterial, error) {
	var pj PrivateKeyJSON
	if err := json.Unmarshal(data, &pj); err != nil {
		return nil, gerrors.E(gerrors.InvalidPrivateKey, "parse private key", err)
	}
	return privateKeyFromJSON(pj, extractable)
}

func privateKeyFromJSON(pj PrivateKeyJSON, extractable bool) (*PrivateKeyMaterial, error) {
	const op = "parse private key"
	if pj.Version != PrivateKeyFormatVersion {
		return nil, gerrors.E(gerrors.InvalidPrivateKey, op, fmt.Errorf("unsupported version %d", pj.Version))
	}
	if err := pj.Sign.check(opSign); err != nil {
		return nil, gerrors.E(gerrors.InvalidPrivateKey, op, err)
	}
	if err := pj.Encr.check(opDeriveBits); err != nil {
		return nil, gerrors.E(gerrors.InvalidPrivateKey, op, err)
	}
	sign, err := ecdsaFromJWK(pj.Sign)
	if err != nil {
		return nil, gerrors.E(gerrors.InvalidPrivateKey, op, err)
	}
	encr, err := ecdhFromJWK(pj.Encr)
	if err != nil {
		return nil, gerrors.E(gerrors.InvalidPrivateKey, op, err)
	}
	return newPrivateKey(encr, sign, extractable), nil
}

// ecdsaFromJWK imports the public half from a stripped copy of j and checks
// that the private scalar generates it.
func ecdsaFromJWK(j JWK) (*ecdsa.PrivateKey, error) {
	pubJWK := j.public(opVerify)
	point, err := pubJWK.point()
	if err != nil {
		return nil, err
	}
	pub, err := ecdsaPublicFromPoint(point)
	if err != nil {
		return nil, err
	}
	d, err := j.scalar()
	if err != nil {
		return nil, err
	}
	if err := checkScalar(d, point); err != nil {
		return nil, err
	}
	return &ecdsa.PrivateKey{PublicKey: *pub, D: new(big.Int).SetBytes(d)}, nil
}

func ecdhFromJWK(j JWK) (*ecdh.PrivateKey, error) {
	pubJWK := j.public()
	point, err := pubJWK.point()
	if err != nil {
		return nil, err
	}
	d, err := j.scalar()
	if err != nil {
		return nil, err
	}
	if err := checkScalar(d, point); err != nil {
		return nil, err
	}
	return ecdh.P256().NewPrivateKey(d)
}

func checkScalar(d, point []byte) error {
	priv, err := ecdh.P256().NewPrivateKey(d)
	if err != nil {
		return err
	}
	if !bytes.Equal(priv.PublicKey().Bytes(), point) {
		return errors.New("private scalar does not match public point")
	}
	return nil
}

// storageBlob is what the key store keeps for each half of the key.
type storageBlob struct {
	Key         JWK  `json:"key"`
	Extractable bool `json:"extractable"`
}

// StorageBlobs serializes each half for the local key store. Unlike
// MarshalJSON this works for non-extractable keys; the blobs must only be
// written to sealed local storage.
func (k *PrivateKeyMaterial) StorageBlobs() (encr, sign []byte, err error) {
	encr, err = json.Marshal(storageBlob{Key: k.encrJWK(), Extractable: k.extractable})
	if err != nil {
		return nil, nil, err
	}
	sign, err = json.Marshal(storageBlob{Key: k.signJWK(), Extractable: k.extractable})
	if err != nil {
		return nil, nil, err
	}
	return encr, sign, nil
}

// PrivateKeyFromStorage restores a key written by StorageBlobs.
func PrivateKeyFromStorage(encr, sign []byte) (*PrivateKeyMaterial, error) {
	var eb, sb storageBlob
	if err := json.Unmarshal(encr, &eb); err != nil {
		return nil, gerrors.E(gerrors.InvalidPrivateKey, "load ecdh key", err)
	}
	if err := json.Unmarshal(sign, &sb); err != nil {
		return nil, gerrors.E(gerrors.InvalidPrivateKey, "load ecdsa key", err)
	}
	return privateKeyFromJSON(PrivateKeyJSON{
		Version: PrivateKeyFormatVersion,
		Sign:    sb.Key,
		Encr:    eb.Key,
	}, eb.Extractable && sb.Extractable)
}
