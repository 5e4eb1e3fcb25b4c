package store

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"

	"groupseal/internal/util/memzero"
)

// sealedFormatVersion is the on-disk version of sealedBlob.
const sealedFormatVersion = 1

// ErrWrongPassphrase is returned when a sealed file cannot be opened.
var ErrWrongPassphrase = errors.New("wrong passphrase or corrupted key store")

// ScryptParams are the scrypt cost parameters used for new files.
type ScryptParams struct {
	N, R, P int
}

// DefaultScryptParams are the interactive-login parameters from the scrypt paper.
var DefaultScryptParams = ScryptParams{N: 1 << 15, R: 8, P: 1}

// sealedBlob is the on-disk JSON structure holding the ciphertext and KDF parameters.
type sealedBlob struct {
	V      int    `json:"v"`
	Salt   []byte `json:"salt"`
	N      int    `json:"scrypt_N"`
	R      int    `json:"scrypt_r"`
	P      int    `json:"scrypt_p"`
	Nonce  []byte `json:"nonce"`
	Cipher []byte `json:"cipher"`
}

// sealer encrypts payloads under a passphrase-derived key.
type sealer struct {
	passphrase []byte
	params     ScryptParams
}

// seal derives a fresh key for each call and returns the JSON blob.
func (s sealer) seal(plain []byte) ([]byte, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	aead, err := s.aead(salt, s.params)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return json.Marshal(sealedBlob{
		V:      sealedFormatVersion,
		Salt:   salt,
		N:      s.params.N,
		R:      s.params.R,
		P:      s.params.P,
		Nonce:  nonce,
		Cipher: aead.Seal(nil, nonce, plain, salt),
	})
}

// open reverses seal using the parameters recorded in the blob.
func (s sealer) open(b []byte) ([]byte, error) {
	var bl sealedBlob
	if err := json.Unmarshal(b, &bl); err != nil {
		return nil, err
	}
	if bl.V != sealedFormatVersion {
		return nil, fmt.Errorf("unsupported key store version %d", bl.V)
	}
	aead, err := s.aead(bl.Salt, ScryptParams{N: bl.N, R: bl.R, P: bl.P})
	if err != nil {
		return nil, err
	}
	if len(bl.Nonce) != aead.NonceSize() {
		return nil, ErrWrongPassphrase
	}
	plain, err := aead.Open(nil, bl.Nonce, bl.Cipher, bl.Salt)
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	return plain, nil
}

func (s sealer) aead(salt []byte, p ScryptParams) (cipher.AEAD, error) {
	key, err := scrypt.Key(s.passphrase, salt, p.N, p.R, p.P, chacha20poly1305.KeySize)
	if err != nil {
		return nil, err
	}
	defer memzero.Zero(key)
	return chacha20poly1305.NewX(key)
}
