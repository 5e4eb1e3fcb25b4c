package crypto_test

import (
	"crypto/sha256"
	"encoding/json"
	"hash"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groupseal/internal/crypto"
	gerrors "groupseal/internal/errors"
)

func TestPublicKey_IDIsMemoized(t *testing.T) {
	k, err := crypto.GenerateKey(false)
	require.NoError(t, err)

	calls := 0
	counting := func() hash.Hash {
		calls++
		return sha256.New()
	}
	pub := crypto.NewPublicKey(k.PublicKey().ECDH(), k.PublicKey().ECDSA(), crypto.WithDigest(counting))

	first := pub.ID()
	second := pub.ID()
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)
	assert.Equal(t, k.ID(), first)
}

func TestPublicKey_IDLayout(t *testing.T) {
	k, err := crypto.GenerateKey(false)
	require.NoError(t, err)

	raw := k.PublicKey().Raw()
	require.Len(t, raw.Encr, crypto.PointSize)
	require.Len(t, raw.Sign, crypto.PointSize)
	want := sha256.Sum256(append(append([]byte{}, raw.Encr...), raw.Sign...))
	assert.Equal(t, crypto.PublicKeyID(want), k.ID())
}

func TestPublicKey_EqualByIdentity(t *testing.T) {
	a, err := crypto.GenerateKey(false)
	require.NoError(t, err)
	b, err := crypto.GenerateKey(false)
	require.NoError(t, err)

	clone, err := crypto.PublicKeyFromRaw(a.PublicKey().Raw())
	require.NoError(t, err)

	assert.True(t, a.PublicKey().Equal(clone))
	assert.NotSame(t, a.PublicKey(), clone)
	assert.False(t, a.PublicKey().Equal(b.PublicKey()))
}

func TestPublicKey_JSONRoundTrip(t *testing.T) {
	k, err := crypto.GenerateKey(false)
	require.NoError(t, err)

	data, err := json.Marshal(k.PublicKey())
	require.NoError(t, err)

	var back crypto.PublicKeyMaterial
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, k.PublicKey().Equal(&back))

	raw, err := crypto.PublicKeyFromRaw(k.PublicKey().Raw())
	require.NoError(t, err)
	assert.True(t, raw.Equal(&back))
}

func TestPublicKey_RejectsBadPoint(t *testing.T) {
	k, err := crypto.GenerateKey(false)
	require.NoError(t, err)
	raw := k.PublicKey().Raw()
	raw.Sign[64] ^= 0x01

	_, err = crypto.PublicKeyFromRaw(raw)
	assert.Error(t, err)
}

func TestValidateRawPublicKey(t *testing.T) {
	k, err := crypto.GenerateKey(false)
	require.NoError(t, err)
	raw := k.PublicKey().Raw()
	require.NoError(t, crypto.ValidateRawPublicKey(raw))

	same := crypto.RawPublicKey{Encr: raw.Encr, Sign: raw.Encr}
	assert.Error(t, crypto.ValidateRawPublicKey(same))

	compressed := crypto.RawPublicKey{Encr: raw.Encr[:33], Sign: raw.Sign}
	assert.Error(t, crypto.ValidateRawPublicKey(compressed))
}

func TestPrivateKey_JSONRoundTrip(t *testing.T) {
	k, err := crypto.GenerateKey(true)
	require.NoError(t, err)

	data, err := json.Marshal(k)
	require.NoError(t, err)

	back, err := crypto.ParsePrivateKey(data, false)
	require.NoError(t, err)
	assert.True(t, k.PublicKey().Equal(back.PublicKey()))
	assert.False(t, back.Extractable())
	assert.Equal(t, k.ECDH().Bytes(), back.ECDH().Bytes())
	assert.Equal(t, 0, k.ECDSA().D.Cmp(back.ECDSA().D))

	_, err = json.Marshal(back)
	assert.ErrorIs(t, err, crypto.ErrNotExtractable)
}

func TestPrivateKey_SerializedShape(t *testing.T) {
	k, err := crypto.GenerateKey(true)
	require.NoError(t, err)
	data, err := json.Marshal(k)
	require.NoError(t, err)

	var pj crypto.PrivateKeyJSON
	require.NoError(t, json.Unmarshal(data, &pj))
	assert.Equal(t, 1, pj.Version)
	assert.Equal(t, "EC", pj.Sign.Kty)
	assert.Equal(t, "P-256", pj.Encr.Crv)
	assert.Equal(t, []string{"sign"}, pj.Sign.KeyOps)
	assert.Equal(t, []string{"deriveBits"}, pj.Encr.KeyOps)
	assert.NotEmpty(t, pj.Sign.D)
}

func TestParsePrivateKey_InvalidMetadata(t *testing.T) {
	k, err := crypto.GenerateKey(true)
	require.NoError(t, err)
	data, err := json.Marshal(k)
	require.NoError(t, err)

	mutations := map[string]func(*crypto.PrivateKeyJSON){
		"kty":        func(p *crypto.PrivateKeyJSON) { p.Sign.Kty = "RSA" },
		"crv":        func(p *crypto.PrivateKeyJSON) { p.Encr.Crv = "P-384" },
		"sign ops":   func(p *crypto.PrivateKeyJSON) { p.Sign.KeyOps = []string{"sign", "verify"} },
		"encr ops":   func(p *crypto.PrivateKeyJSON) { p.Encr.KeyOps = []string{} },
		"swapped":    func(p *crypto.PrivateKeyJSON) { p.Sign, p.Encr = p.Encr, p.Sign },
		"version":    func(p *crypto.PrivateKeyJSON) { p.Version = 2 },
		"bad scalar": func(p *crypto.PrivateKeyJSON) { p.Sign.D = p.Encr.D },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			var pj crypto.PrivateKeyJSON
			require.NoError(t, json.Unmarshal(data, &pj))
			mutate(&pj)
			bad, err := json.Marshal(pj)
			require.NoError(t, err)

			got, err := crypto.ParsePrivateKey(bad, true)
			assert.Nil(t, got)
			assert.ErrorIs(t, err, gerrors.ErrInvalidPrivateKey)
			assert.Equal(t, gerrors.InvalidPrivateKey, gerrors.KindOf(err))
		})
	}
}

func TestPrivateKey_StorageBlobs(t *testing.T) {
	k, err := crypto.GenerateKey(false)
	require.NoError(t, err)

	encr, sign, err := k.StorageBlobs()
	require.NoError(t, err)

	back, err := crypto.PrivateKeyFromStorage(encr, sign)
	require.NoError(t, err)
	assert.True(t, k.PublicKey().Equal(back.PublicKey()))
	assert.False(t, back.Extractable())

	_, err = crypto.PrivateKeyFromStorage(sign, encr)
	assert.ErrorIs(t, err, gerrors.ErrInvalidPrivateKey)
}

func TestSignVerify(t *testing.T) {
	k, err := crypto.GenerateKey(false)
	require.NoError(t, err)

	msg := []byte("signed payload")
	sig, err := crypto.Sign(k.ECDSA(), msg)
	require.NoError(t, err)
	require.Len(t, sig, crypto.SignatureSize)

	assert.True(t, crypto.Verify(k.PublicKey().ECDSA(), msg, sig))
	assert.False(t, crypto.Verify(k.PublicKey().ECDSA(), []byte("other"), sig))
	assert.False(t, crypto.Verify(k.PublicKey().ECDSA(), msg, sig[:63]))
}

func TestFingerprint(t *testing.T) {
	var id crypto.PublicKeyID
	id[0] = 0xde
	id[1] = 0xad
	assert.Equal(t, "dead0000000000000000", crypto.Fingerprint(id))
}
