package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groupseal/internal/crypto"
	"groupseal/internal/directory"
	"groupseal/internal/directory/server"
	"groupseal/internal/domain"
	"groupseal/internal/store"
)

func newServer(t *testing.T, opts ...directory.RegistryOption) (*server.Server, *directory.Registry) {
	t.Helper()
	kv, err := store.NewKVFileStore(filepath.Join(t.TempDir(), "directory.json"))
	require.NoError(t, err)
	reg := directory.NewRegistry(kv, opts...)
	return server.New(reg), reg
}

func do(t *testing.T, s *server.Server, method, target, user string, body any) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set(directory.UserHeader, user)
	}
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, b
}

func newPub(t *testing.T) *crypto.PublicKeyMaterial {
	t.Helper()
	k, err := crypto.GenerateKey(false)
	require.NoError(t, err)
	return k.PublicKey()
}

func TestRequiresUser(t *testing.T) {
	s, _ := newServer(t)
	resp, body := do(t, s, http.MethodPost, directory.PathGetPublicKeys, "", directory.GetPublicKeysRequest{})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var e directory.ErrorResponse
	require.NoError(t, json.Unmarshal(body, &e))
	assert.Equal(t, "Not authorized", e.Error)
}

func TestPushAndGetPublicKeys(t *testing.T) {
	s, _ := newServer(t)
	pub := newPub(t)

	resp, _ := do(t, s, http.MethodPost, directory.PathPushPublicKey, "alice",
		directory.PushPublicKeyRequest{PublicKey: pub.Raw()})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := do(t, s, http.MethodPost, directory.PathGetPublicKeys, "bob",
		directory.GetPublicKeysRequest{UserIDs: []string{"alice", "carol"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got directory.GetPublicKeysResponse
	require.NoError(t, json.Unmarshal(body, &got))
	require.Contains(t, got.PublicKeys, "carol")
	assert.Nil(t, got.PublicKeys["carol"])
	require.NotNil(t, got.PublicKeys["alice"])
	assert.Equal(t, pub.Raw(), *got.PublicKeys["alice"])
}

func TestPushRejectsInvalidKey(t *testing.T) {
	s, _ := newServer(t)
	raw := newPub(t).Raw()
	raw.Sign = raw.Encr

	resp, body := do(t, s, http.MethodPost, directory.PathPushPublicKey, "alice",
		directory.PushPublicKeyRequest{PublicKey: raw})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "invalid elliptic curve key")
}

func TestChannelModeRequiresMembership(t *testing.T) {
	s, _ := newServer(t)

	resp, _ := do(t, s, http.MethodGet, directory.PathChannelMode+"?chanID=c1", "alice", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = do(t, s, http.MethodPost, directory.PathChannelJoin+"?chanID=c1", "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := do(t, s, http.MethodGet, directory.PathChannelMode+"?chanID=c1", "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var mode directory.ChannelModeResponse
	require.NoError(t, json.Unmarshal(body, &mode))
	assert.Equal(t, "none", mode.Method)

	resp, body = do(t, s, http.MethodPost, directory.PathChannelMode+"?chanID=c1&method=p2p", "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var set directory.SetChannelModeResponse
	require.NoError(t, json.Unmarshal(body, &set))
	assert.True(t, set.Changed)

	resp, body = do(t, s, http.MethodPost, directory.PathChannelMode+"?chanID=c1&method=p2p", "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &set))
	assert.False(t, set.Changed)

	resp, _ = do(t, s, http.MethodPost, directory.PathChannelMode+"?chanID=c1&method=rot13", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestChannelMembers(t *testing.T) {
	s, reg := newServer(t)
	require.NoError(t, reg.Join("c1", "alice"))
	require.NoError(t, reg.Join("c1", "bob"))
	require.NoError(t, reg.PushPublicKey(context.Background(), "alice", newPub(t).Raw(), nil))

	resp, body := do(t, s, http.MethodGet, directory.PathChannelMember+"?chanID=c1", "bob", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got directory.MembersResponse
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, []string{"alice", "bob"}, got.Members)
	assert.Equal(t, []string{"bob"}, got.WithoutKeys)
}

func TestBackupKey(t *testing.T) {
	s, _ := newServer(t)
	resp, _ := do(t, s, http.MethodGet, directory.PathBackupKey, "alice", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	const armored = "-----BEGIN PGP PUBLIC KEY BLOCK-----\nabc\n-----END PGP PUBLIC KEY BLOCK-----"
	s, _ = newServer(t, directory.WithBackupKey(func(context.Context) (string, error) { return armored, nil }))
	resp, body := do(t, s, http.MethodGet, directory.PathBackupKey, "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got directory.BackupKeyResponse
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, armored, got.Key)
}

// TestHTTPClientAgainstServer runs the real client against a listening server.
func TestHTTPClientAgainstServer(t *testing.T) {
	s, _ := newServer(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = s.App().Listener(ln) }()
	t.Cleanup(func() { _ = s.Shutdown() })

	base := "http://" + ln.Addr().String()
	ctx := context.Background()
	alice := directory.NewHTTP(base, "alice", nil)
	bob := directory.NewHTTP(base, "bob", nil)
	pub := newPub(t)

	require.NoError(t, alice.PushPublicKey(ctx, pub, nil))
	require.NoError(t, alice.JoinChannel(ctx, "c1"))
	require.NoError(t, bob.JoinChannel(ctx, "c1"))

	changed, err := bob.SetChannelMode(ctx, "c1", domain.ModeP2P)
	require.NoError(t, err)
	assert.True(t, changed)

	mode, err := alice.ChannelMode(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, domain.ModeP2P, mode)

	members, err := alice.ChannelMembers(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, []domain.UserID{"alice", "bob"}, members)

	keys, err := bob.GetPublicKeys(ctx, members)
	require.NoError(t, err)
	assert.True(t, keys["alice"].Equal(pub))
	assert.Nil(t, keys["bob"])

	key, err := bob.BackupPublicKey(ctx)
	require.NoError(t, err)
	assert.Empty(t, key)
}
