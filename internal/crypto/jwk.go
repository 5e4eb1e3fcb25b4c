package crypto

import (
	"encoding/base64"
	"fmt"
	"slices"
)

const (
	jwkKeyType = "EC"
	jwkCurve   = "P-256"

	opSign       = "sign"
	opVerify     = "verify"
	opDeriveBits = "deriveBits"

	coordSize = 32
)

var b64url = base64.RawURLEncoding

// JWK is the subset of RFC 7517 used to serialize P-256 keys.
type JWK struct {
	Kty    string   `json:"kty"`
	Crv    string   `json:"crv"`
	X      string   `json:"x"`
	Y      string   `json:"y"`
	D      string   `json:"d,omitempty"`
	KeyOps []string `json:"key_ops"`
	Ext    bool     `json:"ext"`
}

// check validates key type, curve and the exact set of key operations.
func (j *JWK) check(ops ...string) error {
	if j.Kty != jwkKeyType || j.Crv != jwkCurve || !sameSet(j.KeyOps, ops) {
		return errInvalidKeyMetadata
	}
	return nil
}

// public returns a copy of j without the private scalar and with ops reset.
func (j *JWK) public(ops ...string) JWK {
	pub := *j
	pub.D = ""
	pub.KeyOps = append([]string{}, ops...)
	return pub
}

// point returns the uncompressed point encoded by X and Y.
func (j *JWK) point() ([]byte, error) {
	x, err := decodeCoord(j.X)
	if err != nil {
		return nil, fmt.Errorf("jwk x: %w", err)
	}
	y, err := decodeCoord(j.Y)
	if err != nil {
		return nil, fmt.Errorf("jwk y: %w", err)
	}
	out := make([]byte, 0, PointSize)
	out = append(out, 0x04)
	out = append(out, x...)
	return append(out, y...), nil
}

func (j *JWK) scalar() ([]byte, error) {
	if j.D == "" {
		return nil, fmt.Errorf("jwk d: missing")
	}
	d, err := decodeCoord(j.D)
	if err != nil {
		return nil, fmt.Errorf("jwk d: %w", err)
	}
	return d, nil
}

func newJWK(point, d []byte, ext bool, ops ...string) JWK {
	j := JWK{
		Kty:    jwkKeyType,
		Crv:    jwkCurve,
		X:      b64url.EncodeToString(point[1:33]),
		Y:      b64url.EncodeToString(point[33:]),
		KeyOps: append([]string{}, ops...),
		Ext:    ext,
	}
	if d != nil {
		j.D = b64url.EncodeToString(d)
	}
	return j
}

func decodeCoord(s string) ([]byte, error) {
	b, err := b64url.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(b) != coordSize {
		return nil, fmt.Errorf("want %d bytes, got %d", coordSize, len(b))
	}
	return b, nil
}

func sameSet(got, want []string) bool {
	g := slices.Clone(got)
	slices.Sort(g)
	g = slices.Compact(g)
	w := slices.Clone(want)
	slices.Sort(w)
	w = slices.Compact(w)
	return slices.Equal(g, w)
}
