package hkp_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groupseal/internal/hkp"
)

const index = `info:1:3
pub:AAAA1111BBBB2222:1:2048:1600000000::r
uid:Old Key <admin@example.com>:1600000000::
pub:CCCC3333DDDD4444:99:4096:1610000000:1700000000:
uid:Admin <admin@example.com>:1610000000::
pub:EEEE5555FFFF6666:18:256:1620000000::e
`

func TestParseIndex(t *testing.T) {
	got := hkp.ParseIndex(index)
	require.Len(t, got, 3)

	assert.Equal(t, "AAAA1111BBBB2222", got[0].KeyID)
	assert.Equal(t, 1, got[0].Algo)
	assert.Equal(t, 2048, got[0].KeyLen)
	assert.True(t, got[0].IsRevoked)
	assert.False(t, got[0].Usable())

	assert.Equal(t, 0, got[1].Algo, "unknown algorithm ids are dropped")
	assert.Equal(t, time.Unix(1700000000, 0), got[1].Expires)
	assert.True(t, got[1].Usable())
	assert.Equal(t, "DDDD4444", got[1].ShortID())

	assert.True(t, got[2].IsExpired)
}

func TestSanitizePublicKey(t *testing.T) {
	key := "-----BEGIN PGP PUBLIC KEY BLOCK-----\n\nmQENBF...\n-----END PGP PUBLIC KEY BLOCK-----"
	got, err := hkp.SanitizePublicKey("<html><pre>" + key + "</pre></html>")
	require.NoError(t, err)
	assert.Equal(t, key, got)

	_, err = hkp.SanitizePublicKey("<html>nothing</html>")
	assert.Error(t, err)
}

func TestLookupPublicKey(t *testing.T) {
	key := "-----BEGIN PGP PUBLIC KEY BLOCK-----\nabc\n-----END PGP PUBLIC KEY BLOCK-----"
	var gotSearch string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/pks/lookup", r.URL.Path)
		switch r.URL.Query().Get("op") {
		case "index":
			assert.Equal(t, "admin@example.com", r.URL.Query().Get("search"))
			_, _ = w.Write([]byte(index))
		case "get":
			gotSearch = r.URL.Query().Get("search")
			_, _ = w.Write([]byte("<pre>" + key + "</pre>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	got, err := hkp.New(srv.URL, srv.Client()).LookupPublicKey(context.Background(), "admin@example.com")
	require.NoError(t, err)
	assert.Equal(t, key, got)
	assert.Equal(t, "0xDDDD4444", gotSearch)
}

func TestLookupPublicKey_NoUsableKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("pub:AAAA1111BBBB2222:1:2048:1600000000::r\n"))
	}))
	defer srv.Close()

	_, err := hkp.New(srv.URL, nil).LookupPublicKey(context.Background(), "x@example.com")
	assert.ErrorIs(t, err, hkp.ErrNoValidKey)
}

func TestIndex_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := hkp.New(srv.URL, nil).Index(context.Background(), "x")
	assert.ErrorContains(t, err, "503")
}
