package directory

import "groupseal/internal/crypto"

// UserHeader carries the caller's user id on every request.
const UserHeader = "X-User-ID"

// API paths served under the server's root.
const (
	PathPushPublicKey = "/api/v1/pubkey/push"
	PathGetPublicKeys = "/api/v1/pubkey/get"
	PathChannelMode   = "/api/v1/channel/encryption_method"
	PathChannelJoin   = "/api/v1/channel/join"
	PathChannelMember = "/api/v1/channel/members"
	PathBackupKey     = "/api/v1/gpg/get_pub_key"
)

// PushPublicKeyRequest registers the caller's key. A nil BackupGPG removes
// any stored backup.
type PushPublicKeyRequest struct {
	PublicKey crypto.RawPublicKey `json:"pubkey"`
	BackupGPG *string             `json:"backupGPG"`
}

type GetPublicKeysRequest struct {
	UserIDs []string `json:"userIds"`
}

// GetPublicKeysResponse maps every requested user to its key or null.
type GetPublicKeysResponse struct {
	PublicKeys map[string]*crypto.RawPublicKey `json:"pubKeys"`
}

type ChannelModeResponse struct {
	Method string `json:"method"`
}

type SetChannelModeResponse struct {
	Changed bool `json:"changed"`
}

type MembersResponse struct {
	Members     []string `json:"members"`
	WithoutKeys []string `json:"withoutKeys"`
}

type BackupKeyResponse struct {
	Key string `json:"key"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
