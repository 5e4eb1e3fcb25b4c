package interfaces

import (
	"context"

	"groupseal/internal/crypto"
	domaintypes "groupseal/internal/domain/types"
)

// Directory is the server side record of public keys and channel state.
type Directory interface {
	// GetPublicKeys returns one entry per requested user; users without a
	// registered key map to nil.
	GetPublicKeys(ctx context.Context, users []domaintypes.UserID) (map[domaintypes.UserID]*crypto.PublicKeyMaterial, error)
	// PushPublicKey registers the caller's key and optional protected backup.
	PushPublicKey(ctx context.Context, pub *crypto.PublicKeyMaterial, protectedBackup *string) error
	// BackupPublicKey returns the armored OpenPGP key used to protect
	// backups, or "" when backup protection is disabled.
	BackupPublicKey(ctx context.Context) (string, error)

	ChannelMode(ctx context.Context, channel domaintypes.ChannelID) (domaintypes.ChannelMode, error)
	// SetChannelMode reports whether the stored mode changed.
	SetChannelMode(ctx context.Context, channel domaintypes.ChannelID, mode domaintypes.ChannelMode) (bool, error)
	ChannelMembers(ctx context.Context, channel domaintypes.ChannelID) ([]domaintypes.UserID, error)
	JoinChannel(ctx context.Context, channel domaintypes.ChannelID) error
}

// PublicKeyResolver resolves public keys, typically batching directory calls.
type PublicKeyResolver interface {
	Get(ctx context.Context, users []domaintypes.UserID) (map[domaintypes.UserID]*crypto.PublicKeyMaterial, error)
}

// BackupProtector encrypts a clear-text backup for out-of-band delivery.
type BackupProtector interface {
	Protect(clearBackup, armoredPublicKey string) (string, error)
}
