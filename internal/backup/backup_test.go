package backup_test

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/openpgp"
	"golang.org/x/crypto/openpgp/armor"

	"groupseal/internal/backup"
	"groupseal/internal/crypto"
	gerrors "groupseal/internal/errors"
)

func TestArmor_LineLayout(t *testing.T) {
	data := bytes.Repeat([]byte{0xAB}, 100)
	text := backup.Armor(data)

	lines := strings.Split(text, "\n")
	require.Equal(t, backup.Header, lines[0])
	require.Equal(t, backup.Footer, lines[len(lines)-1])
	for _, l := range lines[1 : len(lines)-2] {
		assert.Len(t, l, 60)
	}
	assert.LessOrEqual(t, len(lines[len(lines)-2]), 60)

	back, err := backup.Unarmor(text)
	require.NoError(t, err)
	assert.Equal(t, data, back)
}

func TestUnarmor_ToleratesSurroundingTextAndWhitespace(t *testing.T) {
	data := []byte("hello backup")
	text := "Dear user,\r\n\n  " + strings.ReplaceAll(backup.Armor(data), "\n", "\r\n  ") + "\n-- admin"

	back, err := backup.Unarmor(text)
	require.NoError(t, err)
	assert.Equal(t, data, back)
}

func TestUnarmor_MissingMarkers(t *testing.T) {
	_, err := backup.Unarmor("no armor here")
	assert.ErrorIs(t, err, backup.ErrInvalidArmor)

	_, err = backup.Unarmor(backup.Header + "\nAAAA\n")
	assert.ErrorIs(t, err, backup.ErrInvalidArmor)
}

func TestFormatParse_RoundTrip(t *testing.T) {
	key, err := crypto.GenerateKey(true)
	require.NoError(t, err)

	text, err := backup.Format(key)
	require.NoError(t, err)

	back, err := backup.Parse(text, false)
	require.NoError(t, err)
	assert.True(t, key.PublicKey().Equal(back.PublicKey()))
	assert.False(t, back.Extractable())
}

func TestFormat_NonExtractable(t *testing.T) {
	key, err := crypto.GenerateKey(false)
	require.NoError(t, err)

	_, err = backup.Format(key)
	assert.ErrorIs(t, err, crypto.ErrNotExtractable)
}

func TestParse_BadArmorIsInvalidPrivateKey(t *testing.T) {
	_, err := backup.Parse("garbage", false)
	assert.Equal(t, gerrors.InvalidPrivateKey, gerrors.KindOf(err))

	_, err = backup.Parse(backup.Armor([]byte(`{"version":1}`)), false)
	assert.ErrorIs(t, err, gerrors.ErrInvalidPrivateKey)
}

func TestOpenPGP_Protect(t *testing.T) {
	entity, err := openpgp.NewEntity("Backup Admin", "", "admin@example.com", nil)
	require.NoError(t, err)

	var pub bytes.Buffer
	w, err := armor.Encode(&pub, openpgp.PublicKeyType, nil)
	require.NoError(t, err)
	require.NoError(t, entity.Serialize(w))
	require.NoError(t, w.Close())

	clearText := backup.Armor([]byte("secret key material"))
	msg, err := backup.OpenPGP{}.Protect(clearText, pub.String())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(msg, "-----BEGIN PGP MESSAGE-----"))
	assert.NotContains(t, msg, clearText)

	block, err := armor.Decode(strings.NewReader(msg))
	require.NoError(t, err)
	md, err := openpgp.ReadMessage(block.Body, openpgp.EntityList{entity}, nil, nil)
	require.NoError(t, err)
	got, err := io.ReadAll(md.UnverifiedBody)
	require.NoError(t, err)
	assert.Equal(t, clearText, string(got))
}

func TestOpenPGP_BadKey(t *testing.T) {
	_, err := backup.OpenPGP{}.Protect("x", "not a key")
	assert.Error(t, err)
}
