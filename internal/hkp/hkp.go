// Package hkp looks up OpenPGP public keys on an HKP key server.
package hkp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	pgpHeader = "-----BEGIN PGP PUBLIC KEY BLOCK-----"
	pgpFooter = "-----END PGP PUBLIC KEY BLOCK-----"

	maxBody = 1 << 20
)

// Algorithms maps the OpenPGP public key algorithm ids accepted in listings.
var Algorithms = map[int]string{
	1:  "RSAEncryptOrSign",
	2:  "RSAEncrypt",
	3:  "RSASign",
	16: "ElGamalEncrypt",
	17: "DSA",
	18: "EC",
	19: "ECDSA",
	20: "ElGamalEncryptOrSign",
	21: "DH",
}

// ErrNoValidKey is returned when no listing is usable.
var ErrNoValidKey = errors.New("no valid key found")

// KeyListing is one "pub" line of a machine-readable index.
type KeyListing struct {
	KeyID      string
	Algo       int
	KeyLen     int
	Created    time.Time
	Expires    time.Time
	IsRevoked  bool
	IsDisabled bool
	IsExpired  bool
}

// Usable reports whether the key is neither revoked, disabled nor expired.
func (k KeyListing) Usable() bool { return !k.IsRevoked && !k.IsDisabled && !k.IsExpired }

// ShortID returns the last 8 hex digits of the key id.
func (k KeyListing) ShortID() string {
	if len(k.KeyID) <= 8 {
		return k.KeyID
	}
	return k.KeyID[len(k.KeyID)-8:]
}

func (k KeyListing) String() string {
	var flags string
	if k.IsRevoked {
		flags += "r"
	}
	if k.IsDisabled {
		flags += "d"
	}
	if k.IsExpired {
		flags += "e"
	}
	return fmt.Sprintf("%s [%s:%d] created %s expires %s %s",
		k.KeyID, Algorithms[k.Algo], k.KeyLen, k.Created.UTC().Format(time.RFC3339),
		k.Expires.UTC().Format(time.RFC3339), flags)
}

// ParseIndex parses the "pub" lines of an HKP machine-readable index
// (pub:keyid:algo:keylen:creationdate:expirationdate:flags). Fields that do
// not parse are left zero; unknown algorithms are recorded as 0.
func ParseIndex(body string) []KeyListing {
	var out []KeyListing
	for _, line := range strings.Split(body, "\n") {
		f := strings.Split(strings.TrimRight(line, "\r"), ":")
		if len(f) != 7 || f[0] != "pub" {
			continue
		}
		k := KeyListing{KeyID: f[1]}
		if algo, err := strconv.ParseUint(f[2], 10, 32); err == nil {
			if _, ok := Algorithms[int(algo)]; ok {
				k.Algo = int(algo)
			}
		}
		if n, err := strconv.ParseUint(f[3], 10, 32); err == nil {
			k.KeyLen = int(n)
		}
		if ts, err := strconv.ParseInt(f[4], 10, 64); err == nil {
			k.Created = time.Unix(ts, 0)
		}
		if ts, err := strconv.ParseInt(f[5], 10, 64); err == nil {
			k.Expires = time.Unix(ts, 0)
		}
		k.IsRevoked = f[6] == "r"
		k.IsDisabled = f[6] == "d"
		k.IsExpired = f[6] == "e"
		out = append(out, k)
	}
	return out
}

// SanitizePublicKey returns the armored public key block found in s.
// Some servers wrap the block in HTML.
func SanitizePublicKey(s string) (string, error) {
	start := strings.Index(s, pgpHeader)
	if start < 0 {
		return "", errors.New("invalid format")
	}
	rest := s[start+len(pgpHeader):]
	end := strings.Index(rest, pgpFooter)
	if end < 0 {
		return "", errors.New("invalid format")
	}
	return pgpHeader + rest[:end] + pgpFooter, nil
}

// Client queries one HKP server.
type Client struct {
	Base string
	HTTP *http.Client
}

// New returns a Client for base, e.g. "https://keys.example.org".
func New(base string, hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{Base: strings.TrimRight(base, "/"), HTTP: hc}
}

// Index returns the listings matching search.
func (c *Client) Index(ctx context.Context, search string) ([]KeyListing, error) {
	body, err := c.lookup(ctx, url.Values{"op": {"index"}, "options": {"mr"}, "search": {search}})
	if err != nil {
		return nil, err
	}
	return ParseIndex(body), nil
}

// Get fetches the armored key matching search.
func (c *Client) Get(ctx context.Context, search string) (string, error) {
	body, err := c.lookup(ctx, url.Values{"op": {"get"}, "options": {"mr"}, "search": {search}})
	if err != nil {
		return "", err
	}
	key, err := SanitizePublicKey(body)
	if err != nil {
		return "", fmt.Errorf("hkp get %s: %w", search, err)
	}
	return key, nil
}

// LookupPublicKey returns the first usable key listed for email.
func (c *Client) LookupPublicKey(ctx context.Context, email string) (string, error) {
	listings, err := c.Index(ctx, email)
	if err != nil {
		return "", err
	}
	for _, l := range listings {
		if l.Usable() {
			return c.Get(ctx, "0x"+l.ShortID())
		}
	}
	return "", fmt.Errorf("hkp %s for %s: %w", c.Base, email, ErrNoValidKey)
}

func (c *Client) lookup(ctx context.Context, q url.Values) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Base+"/pks/lookup?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("hkp %s: %s", q.Get("op"), resp.Status)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return "", err
	}
	return string(b), nil
}
