package envelope

import (
	"bytes"
	"crypto/aes"
	"crypto/ecdh"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"groupseal/internal/crypto"
	gerrors "groupseal/internal/errors"
	"groupseal/internal/util/memzero"
)

const (
	// IVSize is the length of the AES-CTR initial counter block.
	IVSize = 16
	// ContentKeySize is the length of the AES content key.
	ContentKeySize = 16
	// WrappedKeySize is the length of a content key after AES key wrap.
	WrappedKeySize = ContentKeySize + 8
	// kekSize is how much of SHA-256(shared secret) keys the wrap.
	kekSize = 16
)

var (
	// ErrNoRecipients is returned by Encrypt for an empty recipient list.
	ErrNoRecipients = errors.New("envelope: no recipients")

	errNilKey = errors.New("envelope: nil key")
)

// WrappedKey is one recipient's copy of the content key.
type WrappedKey struct {
	ID  crypto.PublicKeyID
	Key []byte
}

// Envelope is an encrypted, signed message. It is immutable once produced.
type Envelope struct {
	Signature  []byte
	IV         []byte
	Ephemeral  *ecdh.PublicKey
	Keys       []WrappedKey
	Ciphertext []byte
}

// Encrypt seals plaintext for every recipient and signs the result with sender.
func Encrypt(plaintext []byte, sender *crypto.PrivateKeyMaterial, recipients []*crypto.PublicKeyMaterial) (*Envelope, error) {
	if sender == nil {
		return nil, errNilKey
	}
	if len(recipients) == 0 {
		return nil, ErrNoRecipients
	}
	if uint64(len(plaintext)) > math.MaxUint32 || uint64(len(recipients)) > math.MaxUint32 {
		return nil, errors.New("envelope: message too large")
	}
	for _, r := range recipients {
		if r == nil {
			return nil, errNilKey
		}
	}

	eph, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	contentKey := make([]byte, ContentKeySize)
	if _, err := rand.Read(contentKey); err != nil {
		return nil, err
	}
	defer memzero.Zero(contentKey)

	env := &Envelope{
		IV:        make([]byte, IVSize),
		Ephemeral: eph.PublicKey(),
		Keys:      make([]WrappedKey, len(recipients)),
	}
	if _, err := rand.Read(env.IV); err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(contentKey)
	if err != nil {
		return nil, err
	}
	env.Ciphertext = make([]byte, len(plaintext))
	crypto.NewCTR64(block, env.IV).XORKeyStream(env.Ciphertext, plaintext)

	var g errgroup.Group
	for i, r := range recipients {
		g.Go(func() error {
			wrapped, err := wrapFor(eph, r.ECDH(), contentKey)
			if err != nil {
				return fmt.Errorf("wrap for %s: %w", crypto.Fingerprint(r.ID()), err)
			}
			env.Keys[i] = WrappedKey{ID: r.ID(), Key: wrapped}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	env.Signature, err = crypto.Sign(sender.ECDSA(), env.signedData())
	if err != nil {
		return nil, err
	}
	return env, nil
}

// Verify reports whether the envelope carries a valid signature by sender.
func (e *Envelope) Verify(sender *crypto.PublicKeyMaterial) bool {
	if sender == nil || e.Ephemeral == nil {
		return false
	}
	return crypto.Verify(sender.ECDSA(), e.signedData(), e.Signature)
}

// Decrypt recovers the plaintext using recipient's wrapped key entry.
// It does not check the signature; see VerifyAndDecrypt.
func (e *Envelope) Decrypt(recipient *crypto.PrivateKeyMaterial) ([]byte, error) {
	const op = "envelope decrypt"
	if recipient == nil {
		return nil, errNilKey
	}
	id := recipient.ID()
	var (
		wrapped []byte
		found   bool
	)
	for _, k := range e.Keys {
		if bytes.Equal(k.ID[:], id[:]) {
			wrapped, found = k.Key, true
			break
		}
	}
	if !found {
		return nil, gerrors.E(gerrors.UnknownRecipient, op, nil)
	}
	// An entry for this recipient without a well-formed key has been tampered with.
	if len(wrapped) != WrappedKeySize {
		return nil, gerrors.E(gerrors.Validation, op, fmt.Errorf("wrapped key: want %d bytes, got %d", WrappedKeySize, len(wrapped)))
	}
	if len(e.IV) != IVSize || e.Ephemeral == nil {
		return nil, gerrors.E(gerrors.Validation, op, errors.New("malformed envelope"))
	}

	kek, err := deriveKEK(recipient.ECDH(), e.Ephemeral)
	if err != nil {
		return nil, gerrors.E(gerrors.Validation, op, err)
	}
	defer memzero.Zero(kek)

	contentKey, err := crypto.UnwrapKey(kek, wrapped)
	if err != nil {
		return nil, gerrors.E(gerrors.Validation, op, err)
	}
	defer memzero.Zero(contentKey)

	block, err := aes.NewCipher(contentKey)
	if err != nil {
		return nil, gerrors.E(gerrors.Validation, op, err)
	}
	out := make([]byte, len(e.Ciphertext))
	crypto.NewCTR64(block, e.IV).XORKeyStream(out, e.Ciphertext)
	return out, nil
}

// VerifyAndDecrypt checks the sender signature and, only if it holds, decrypts.
func (e *Envelope) VerifyAndDecrypt(sender *crypto.PublicKeyMaterial, recipient *crypto.PrivateKeyMaterial) ([]byte, error) {
	if !e.Verify(sender) {
		return nil, gerrors.E(gerrors.Validation, "envelope verify", nil)
	}
	return e.Decrypt(recipient)
}

// signedData builds the canonical payload covered by the signature.
func (e *Envelope) signedData() []byte {
	ephID := sha256.Sum256(e.Ephemeral.Bytes())
	size := len(e.IV) + len(ephID) + 4 + len(e.Keys)*crypto.PublicKeyIDSize + 4 + len(e.Ciphertext)

	buf := make([]byte, 0, size)
	buf = append(buf, e.IV...)
	buf = append(buf, ephID[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(e.Keys)))
	for _, k := range e.Keys {
		buf = append(buf, k.ID[:]...)
	}
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(e.Ciphertext)))
	return append(buf, e.Ciphertext...)
}

func wrapFor(eph *ecdh.PrivateKey, peer *ecdh.PublicKey, contentKey []byte) ([]byte, error) {
	kek, err := deriveKEK(eph, peer)
	if err != nil {
		return nil, err
	}
	defer memzero.Zero(kek)
	return crypto.WrapKey(kek, contentKey)
}

// deriveKEK returns the first 16 bytes of SHA-256 over the raw ECDH secret.
func deriveKEK(priv *ecdh.PrivateKey, peer *ecdh.PublicKey) ([]byte, error) {
	secret, err := priv.ECDH(peer)
	if err != nil {
		return nil, err
	}
	defer memzero.Zero(secret)
	sum := sha256.Sum256(secret)
	kek := make([]byte, kekSize)
	copy(kek, sum[:kekSize])
	memzero.Zero(sum[:])
	return kek, nil
}
