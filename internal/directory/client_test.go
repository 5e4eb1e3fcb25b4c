package directory_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groupseal/internal/directory"
	"groupseal/internal/domain"
	gerrors "groupseal/internal/errors"
)

func TestHTTPClient_GetPublicKeys(t *testing.T) {
	pub := newPub(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, directory.PathGetPublicKeys, r.URL.Path)
		assert.Equal(t, "alice", r.Header.Get(directory.UserHeader))
		var req directory.GetPublicKeysRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"bob", "carol"}, req.UserIDs)

		raw := pub.Raw()
		_ = json.NewEncoder(w).Encode(map[string]any{
			"pubKeys": map[string]any{"bob": raw, "carol": nil},
		})
	}))
	defer srv.Close()

	c := directory.NewHTTP(srv.URL, "alice", srv.Client())
	keys, err := c.GetPublicKeys(context.Background(), []domain.UserID{"bob", "carol"})
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.True(t, keys["bob"].Equal(pub))
	assert.Nil(t, keys["carol"])
}

func TestHTTPClient_ErrorsAreDirectoryUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(directory.ErrorResponse{Error: "not a member of this channel"})
	}))
	defer srv.Close()

	c := directory.NewHTTP(srv.URL, "alice", nil)
	_, err := c.ChannelMode(context.Background(), "c1")
	require.Error(t, err)
	assert.Equal(t, gerrors.DirectoryUnavailable, gerrors.KindOf(err))
	assert.ErrorContains(t, err, "not a member")

	srv.Close()
	_, err = c.ChannelMode(context.Background(), "c1")
	assert.ErrorIs(t, err, gerrors.ErrDirectoryUnavailable)
}

func TestHTTPClient_BackupKeyDisabled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	key, err := directory.NewHTTP(srv.URL, "alice", nil).BackupPublicKey(context.Background())
	require.NoError(t, err)
	assert.Empty(t, key)
}

func TestHTTPClient_SetChannelMode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "c1", r.URL.Query().Get("chanID"))
		assert.Equal(t, "p2p", r.URL.Query().Get("method"))
		_ = json.NewEncoder(w).Encode(directory.SetChannelModeResponse{Changed: true})
	}))
	defer srv.Close()

	changed, err := directory.NewHTTP(srv.URL, "alice", nil).SetChannelMode(context.Background(), "c1", domain.ModeP2P)
	require.NoError(t, err)
	assert.True(t, changed)
}
