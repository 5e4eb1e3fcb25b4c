package store_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groupseal/internal/domain"
	gerrors "groupseal/internal/errors"
	"groupseal/internal/store"
)

var fastScrypt = store.WithScryptParams(store.ScryptParams{N: 1 << 10, R: 8, P: 1})

func openStore(t *testing.T, root, user, pass string) *store.KeyStore {
	t.Helper()
	ks, err := store.OpenKeyStore(root, domain.UserID(user), pass, fastScrypt)
	require.NoError(t, err)
	return ks
}

func TestKeyStore_SaveLoad(t *testing.T) {
	root := t.TempDir()
	var ks domain.KeyStore = openStore(t, root, "alice", "pass")

	require.NoError(t, ks.Save("ecdh_alice", []byte("blob-1"), false))

	got, err := ks.Load("ecdh_alice")
	require.NoError(t, err)
	assert.Equal(t, []byte("blob-1"), got)

	info, err := os.Stat(filepath.Join(root, "alice", "keys.json.enc"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestKeyStore_LoadMissing(t *testing.T) {
	ks := openStore(t, t.TempDir(), "alice", "pass")

	_, err := ks.Load("ecdh_alice")
	assert.ErrorIs(t, err, gerrors.ErrKeyNotFound)
	assert.Equal(t, gerrors.KeyNotFound, gerrors.KindOf(err))
}

func TestKeyStore_NoOverwrite(t *testing.T) {
	ks := openStore(t, t.TempDir(), "alice", "pass")

	require.NoError(t, ks.Save("k", []byte("old"), false))
	err := ks.Save("k", []byte("new"), false)
	assert.ErrorIs(t, err, store.ErrKeyExists)

	got, err := ks.Load("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("old"), got)

	require.NoError(t, ks.Save("k", []byte("new"), true))
	got, err = ks.Load("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), got)
}

func TestKeyStore_SurvivesReopen(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, openStore(t, root, "alice", "pass").Save("k", []byte("v"), false))

	got, err := openStore(t, root, "alice", "pass").Load("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}

func TestKeyStore_PerUser(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, openStore(t, root, "alice", "pass").Save("k", []byte("a"), false))

	_, err := openStore(t, root, "bob", "pass").Load("k")
	assert.ErrorIs(t, err, gerrors.ErrKeyNotFound)
}

func TestKeyStore_WrongPassphrase(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, openStore(t, root, "alice", "correct").Save("k", []byte("v"), false))

	_, err := store.OpenKeyStore(root, "alice", "wrong", fastScrypt)
	assert.ErrorIs(t, err, store.ErrWrongPassphrase)
	assert.Equal(t, gerrors.StorageUnavailable, gerrors.KindOf(err))
}

func TestKeyStore_RejectsPathUserID(t *testing.T) {
	_, err := store.OpenKeyStore(t.TempDir(), "../escape", "pass", fastScrypt)
	assert.ErrorIs(t, err, gerrors.ErrStorageUnavailable)
}

func TestKeyStore_ConcurrentSaves(t *testing.T) {
	ks := openStore(t, t.TempDir(), "alice", "pass")

	var wg sync.WaitGroup
	for _, name := range []string{"a", "b", "c", "d"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, ks.Save(name, []byte(name), true))
		}()
	}
	wg.Wait()

	for _, name := range []string{"a", "b", "c", "d"} {
		got, err := ks.Load(name)
		require.NoError(t, err)
		assert.Equal(t, []byte(name), got)
	}
}
