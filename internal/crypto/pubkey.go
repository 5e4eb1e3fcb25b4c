package crypto

import (
	"bytes"
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"hash"
	"math/big"
	"sync"
)

const (
	// PublicKeyIDSize is the length of a public key identity.
	PublicKeyIDSize = sha256.Size
	// PointSize is the length of an uncompressed P-256 point.
	PointSize = 65
)

var errInvalidPoint = errors.New("invalid P-256 point")

// PublicKeyID is the SHA-256 digest over the raw ECDH and ECDSA points.
type PublicKeyID [PublicKeyIDSize]byte

// String returns the standard base64 form of the identity.
func (id PublicKeyID) String() string { return base64.StdEncoding.EncodeToString(id[:]) }

// ParsePublicKeyID decodes the base64 form produced by String.
func ParsePublicKeyID(s string) (PublicKeyID, error) {
	var id PublicKeyID
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return id, err
	}
	if len(b) != PublicKeyIDSize {
		return id, fmt.Errorf("public key id: want %d bytes, got %d", PublicKeyIDSize, len(b))
	}
	copy(id[:], b)
	return id, nil
}

// RawPublicKey is the wire form of PublicKeyMaterial. Fields marshal as base64.
type RawPublicKey struct {
	Encr []byte `json:"encr"`
	Sign []byte `json:"sign"`
}

// PublicKeyMaterial is a user's public agreement and verification keys.
type PublicKeyMaterial struct {
	ecdh  *ecdh.PublicKey
	ecdsa *ecdsa.PublicKey

	newHash func() hash.Hash
	idOnce  sync.Once
	id      PublicKeyID
}

// PublicKeyOption configures a PublicKeyMaterial.
type PublicKeyOption func(*PublicKeyMaterial)

// WithDigest replaces the digest used to compute the identity.
func WithDigest(newHash func() hash.Hash) PublicKeyOption {
	return func(p *PublicKeyMaterial) { p.newHash = newHash }
}

// NewPublicKey builds a PublicKeyMaterial from its two halves.
func NewPublicKey(encr *ecdh.PublicKey, sign *ecdsa.PublicKey, opts ...PublicKeyOption) *PublicKeyMaterial {
	p := &PublicKeyMaterial{ecdh: encr, ecdsa: sign, newHash: sha256.New}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ECDH returns the agreement key.
func (p *PublicKeyMaterial) ECDH() *ecdh.PublicKey { return p.ecdh }

// ECDSA returns the verification key.
func (p *PublicKeyMaterial) ECDSA() *ecdsa.PublicKey { return p.ecdsa }

// ID returns the identity, computing it on first use only.
func (p *PublicKeyMaterial) ID() PublicKeyID {
	p.idOnce.Do(func() {
		h := p.newHash()
		h.Write(p.ecdh.Bytes())
		h.Write(ecdsaPointBytes(p.ecdsa))
		copy(p.id[:], h.Sum(nil))
	})
	return p.id
}

// Equal reports whether p and o have the same identity.
func (p *PublicKeyMaterial) Equal(o *PublicKeyMaterial) bool {
	if p == nil || o == nil {
		return p == o
	}
	a, b := p.ID(), o.ID()
	return bytes.Equal(a[:], b[:])
}

// Raw returns the uncompressed points of both keys.
func (p *PublicKeyMaterial) Raw() RawPublicKey {
	return RawPublicKey{Encr: p.ecdh.Bytes(), Sign: ecdsaPointBytes(p.ecdsa)}
}

// PublicKeyFromRaw parses two uncompressed P-256 points.
func PublicKeyFromRaw(r RawPublicKey, opts ...PublicKeyOption) (*PublicKeyMaterial, error) {
	encr, err := ecdh.P256().NewPublicKey(r.Encr)
	if err != nil {
		return nil, fmt.Errorf("encr key: %w", errInvalidPoint)
	}
	sign, err := ecdsaPublicFromPoint(r.Sign)
	if err != nil {
		return nil, fmt.Errorf("sign key: %w", err)
	}
	return NewPublicKey(encr, sign, opts...), nil
}

// MarshalJSON encodes the key as {"encr": b64, "sign": b64}.
func (p *PublicKeyMaterial) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Raw())
}

// UnmarshalJSON decodes the form written by MarshalJSON.
func (p *PublicKeyMaterial) UnmarshalJSON(data []byte) error {
	var r RawPublicKey
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	parsed, err := PublicKeyFromRaw(r)
	if err != nil {
		return err
	}
	p.ecdh, p.ecdsa, p.newHash = parsed.ecdh, parsed.ecdsa, parsed.newHash
	p.idOnce = sync.Once{}
	return nil
}

// ValidateRawPublicKey applies the directory's acceptance rules: both points
// must be valid uncompressed P-256 points with coordinates below the group
// order, and the two points must differ.
func ValidateRawPublicKey(r RawPublicKey) error {
	encr, err := validatePoint(r.Encr)
	if err != nil {
		return fmt.Errorf("encr key: %w", err)
	}
	sign, err := validatePoint(r.Sign)
	if err != nil {
		return fmt.Errorf("sign key: %w", err)
	}
	if encr.X.Cmp(sign.X) == 0 && encr.Y.Cmp(sign.Y) == 0 {
		return errors.New("encr and sign keys must differ")
	}
	return nil
}

func validatePoint(b []byte) (*ecdsa.PublicKey, error) {
	pub, err := ecdsaPublicFromPoint(b)
	if err != nil {
		return nil, err
	}
	n := elliptic.P256().Params().N
	if pub.X.Sign() == 0 || pub.Y.Sign() == 0 {
		return nil, errInvalidPoint
	}
	if pub.X.Cmp(n) >= 0 || pub.Y.Cmp(n) >= 0 {
		return nil, errInvalidPoint
	}
	// P-256 has cofactor 1, so any point on the curve has order N.
	return pub, nil
}

// ecdsaPublicFromPoint checks b with crypto/ecdh before building the key.
func ecdsaPublicFromPoint(b []byte) (*ecdsa.PublicKey, error) {
	if len(b) != PointSize || b[0] != 0x04 {
		return nil, errInvalidPoint
	}
	if _, err := ecdh.P256().NewPublicKey(b); err != nil {
		return nil, errInvalidPoint
	}
	return &ecdsa.PublicKey{
		Curve: elliptic.P256(),
		X:     new(big.Int).SetBytes(b[1:33]),
		Y:     new(big.Int).SetBytes(b[33:]),
	}, nil
}

func ecdsaPointBytes(pub *ecdsa.PublicKey) []byte {
	out := make([]byte, PointSize)
	out[0] = 0x04
	pub.X.FillBytes(out[1:33])
	pub.Y.FillBytes(out[33:])
	return out
}
