package app_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groupseal/internal/app"
	"groupseal/internal/domain"
	"groupseal/internal/services/identity"
	"groupseal/internal/services/message"
	"groupseal/internal/store"
)

func TestLoadConfig_DefaultsFileAndEnv(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(home, "groupseal.yaml"),
		[]byte("user: alice\ncache_size: 42\nbatch_window: 25ms\n"), 0o600))
	t.Setenv("GROUPSEAL_LOG_LEVEL", "debug")

	v := viper.New()
	app.SetDefaults(v, home)
	cfg, err := app.LoadConfig(v)
	require.NoError(t, err)

	assert.Equal(t, home, cfg.Home)
	assert.Equal(t, "alice", cfg.UserID)
	assert.Equal(t, 42, cfg.CacheSize)
	assert.Equal(t, 25*time.Millisecond, cfg.BatchWindow)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.HTTPTimeout)
}

func TestLoadConfig_RequiresUser(t *testing.T) {
	v := viper.New()
	app.SetDefaults(v, t.TempDir())
	_, err := app.LoadConfig(v)
	assert.ErrorContains(t, err, "user is required")
}

func TestValidate_RejectsPathUser(t *testing.T) {
	cfg := app.Config{Home: "/tmp", UserID: "../bob"}
	assert.Error(t, cfg.Validate())
}

func newWire(t *testing.T, home, user, pass string) *app.Wire {
	t.Helper()
	w, err := app.NewWire(app.Config{
		Home:         home,
		UserID:       user,
		Passphrase:   pass,
		BatchWindow:  time.Millisecond,
		KeyStoreOpts: []store.KeyStoreOption{store.WithScryptParams(store.ScryptParams{N: 1 << 10, R: 8, P: 1})},
	})
	require.NoError(t, err)
	t.Cleanup(w.Close)
	return w
}

func TestWire_LocalDirectoryRoundTrip(t *testing.T) {
	home := t.TempDir()
	ctx := context.Background()

	alice := newWire(t, home, "alice", "alice-pass")
	bob := newWire(t, home, "bob", "bob-pass")
	for _, w := range []*app.Wire{alice, bob} {
		key, err := w.Init(ctx)
		require.NoError(t, err)
		assert.Nil(t, key)
		_, err = w.Identity.Generate(ctx)
		require.NoError(t, err)
		require.NoError(t, w.Directory.JoinChannel(ctx, "c1"))
	}
	_, err := alice.Directory.SetChannelMode(ctx, "c1", domain.ModeP2P)
	require.NoError(t, err)

	p := &domain.Post{ChannelID: "c1", UserID: "alice", Message: "wired"}
	_, err = alice.Messages.EncryptPost(ctx, p, message.EncryptOptions{})
	require.NoError(t, err)
	require.True(t, p.Encrypted())

	got, err := bob.Messages.DecryptPost(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, "wired", got.Plaintext)
}

func TestWire_KeyChangeClearsCache(t *testing.T) {
	w := newWire(t, t.TempDir(), "alice", "pass")
	ctx := context.Background()
	_, err := w.Init(ctx)
	require.NoError(t, err)

	w.Cache.Put("p1", "text", []byte{1})
	_, err = w.Identity.Generate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, w.Cache.Len())
	assert.Equal(t, identity.Ready, w.Identity.State())
}

func TestWire_MissingPassphrase(t *testing.T) {
	w := newWire(t, t.TempDir(), "alice", "")
	_, err := w.Init(context.Background())
	assert.ErrorIs(t, err, app.ErrNoPassphrase)
}
