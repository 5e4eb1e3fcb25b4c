package crypto_test

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groupseal/internal/crypto"
)

func TestCTR64_MatchesCTRAwayFromWrap(t *testing.T) {
	key := bytes.Repeat([]byte{7}, 16)
	iv := bytes.Repeat([]byte{0x11}, 16)
	block, err := aes.NewCipher(key)
	require.NoError(t, err)

	src := bytes.Repeat([]byte("groupseal"), 50)
	want := make([]byte, len(src))
	cipher.NewCTR(block, iv).XORKeyStream(want, src)

	got := make([]byte, len(src))
	stream := crypto.NewCTR64(block, iv)
	// Feed in uneven chunks to exercise the partial block state.
	stream.XORKeyStream(got[:5], src[:5])
	stream.XORKeyStream(got[5:37], src[5:37])
	stream.XORKeyStream(got[37:], src[37:])

	assert.Equal(t, want, got)
}

func TestCTR64_LowHalfWraps(t *testing.T) {
	key := bytes.Repeat([]byte{9}, 16)
	block, err := aes.NewCipher(key)
	require.NoError(t, err)

	iv := make([]byte, 16)
	copy(iv[:8], bytes.Repeat([]byte{0x42}, 8))
	copy(iv[8:], bytes.Repeat([]byte{0xff}, 8))

	src := make([]byte, 32)
	got := make([]byte, 32)
	crypto.NewCTR64(block, iv).XORKeyStream(got, src)

	// Second block must use high half unchanged and low half zero.
	next := make([]byte, 16)
	copy(next[:8], iv[:8])
	want := make([]byte, 16)
	block.Encrypt(want, next)
	assert.Equal(t, want, got[16:])

	full := make([]byte, 32)
	cipher.NewCTR(block, iv).XORKeyStream(full, src)
	assert.NotEqual(t, full[16:], got[16:])
}
