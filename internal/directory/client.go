package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"groupseal/internal/crypto"
	"groupseal/internal/domain"
	gerrors "groupseal/internal/errors"
)

// HTTPClient talks to a directory server on behalf of one user.
type HTTPClient struct {
	Base string
	User domain.UserID
	HTTP *http.Client
}

// NewHTTP returns a client for the server at base acting as user.
func NewHTTP(base string, user domain.UserID, hc *http.Client) *HTTPClient {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &HTTPClient{Base: base, User: user, HTTP: hc}
}

func (c *HTTPClient) GetPublicKeys(ctx context.Context, users []domain.UserID) (map[domain.UserID]*crypto.PublicKeyMaterial, error) {
	req := GetPublicKeysRequest{UserIDs: make([]string, len(users))}
	for i, u := range users {
		req.UserIDs[i] = string(u)
	}
	var resp GetPublicKeysResponse
	if err := c.post(ctx, PathGetPublicKeys, nil, req, &resp); err != nil {
		return nil, err
	}
	raw := make(map[domain.UserID]*crypto.RawPublicKey, len(users))
	for _, u := range users {
		raw[u] = resp.PublicKeys[string(u)]
	}
	return toMaterial(raw)
}

func (c *HTTPClient) PushPublicKey(ctx context.Context, pub *crypto.PublicKeyMaterial, protectedBackup *string) error {
	return c.post(ctx, PathPushPublicKey, nil, PushPublicKeyRequest{
		PublicKey: pub.Raw(),
		BackupGPG: protectedBackup,
	}, nil)
}

// BackupPublicKey returns "" when the server has backups disabled.
func (c *HTTPClient) BackupPublicKey(ctx context.Context) (string, error) {
	var resp BackupKeyResponse
	status, err := c.do(ctx, http.MethodGet, PathBackupKey, nil, nil, &resp)
	if status == http.StatusNotFound {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return resp.Key, nil
}

func (c *HTTPClient) ChannelMode(ctx context.Context, channel domain.ChannelID) (domain.ChannelMode, error) {
	var resp ChannelModeResponse
	if err := c.getJSON(ctx, PathChannelMode, url.Values{"chanID": {string(channel)}}, &resp); err != nil {
		return domain.ModeNone, err
	}
	return domain.ParseChannelMode(resp.Method)
}

func (c *HTTPClient) SetChannelMode(ctx context.Context, channel domain.ChannelID, mode domain.ChannelMode) (bool, error) {
	var resp SetChannelModeResponse
	q := url.Values{"chanID": {string(channel)}, "method": {string(mode)}}
	if err := c.post(ctx, PathChannelMode, q, nil, &resp); err != nil {
		return false, err
	}
	return resp.Changed, nil
}

func (c *HTTPClient) ChannelMembers(ctx context.Context, channel domain.ChannelID) ([]domain.UserID, error) {
	var resp MembersResponse
	if err := c.getJSON(ctx, PathChannelMember, url.Values{"chanID": {string(channel)}}, &resp); err != nil {
		return nil, err
	}
	out := make([]domain.UserID, len(resp.Members))
	for i, m := range resp.Members {
		out[i] = domain.UserID(m)
	}
	return out, nil
}

func (c *HTTPClient) JoinChannel(ctx context.Context, channel domain.ChannelID) error {
	return c.post(ctx, PathChannelJoin, url.Values{"chanID": {string(channel)}}, nil, nil)
}

func (c *HTTPClient) post(ctx context.Context, path string, q url.Values, in, out any) error {
	_, err := c.do(ctx, http.MethodPost, path, q, in, out)
	return err
}

func (c *HTTPClient) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	_, err := c.do(ctx, http.MethodGet, path, q, nil, out)
	return err
}

// do performs one request. Transport failures and non-2xx answers are
// DirectoryUnavailable errors; the status is returned when one was received.
func (c *HTTPClient) do(ctx context.Context, method, path string, q url.Values, in, out any) (int, error) {
	op := "directory " + method + " " + path
	u := c.Base + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var body io.Reader
	if in != nil {
		buf := new(bytes.Buffer)
		if err := json.NewEncoder(buf).Encode(in); err != nil {
			return 0, err
		}
		body = buf
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return 0, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(UserHeader, string(c.User))

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, gerrors.E(gerrors.DirectoryUnavailable, op, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		var e ErrorResponse
		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&e)
		if e.Error == "" {
			e.Error = resp.Status
		}
		return resp.StatusCode, gerrors.E(gerrors.DirectoryUnavailable, op, fmt.Errorf("%d: %s", resp.StatusCode, e.Error))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, gerrors.E(gerrors.DirectoryUnavailable, op, err)
		}
	}
	return resp.StatusCode, nil
}

var _ domain.Directory = (*HTTPClient)(nil)
