package domain

import (
	interfaces "groupseal/internal/domain/interfaces"
	types "groupseal/internal/domain/types"
)

// Type aliases expose domain types from the types subpackage for compact imports.
type (
	UserID      = types.UserID
	ChannelID   = types.ChannelID
	ChannelMode = types.ChannelMode
	Post        = types.Post
	PostProps   = types.PostProps
)

// Channel modes.
const (
	ModeNone = types.ModeNone
	ModeP2P  = types.ModeP2P
)

// Encrypted post markers.
const (
	PostTypeE2EE         = types.PostTypeE2EE
	EncryptedPlaceholder = types.EncryptedPlaceholder
)

// ParseChannelMode accepts "none" and "p2p".
var ParseChannelMode = types.ParseChannelMode

// Interface aliases expose domain interfaces from the interfaces subpackage.
type (
	KeyStore          = interfaces.KeyStore
	KVStore           = interfaces.KVStore
	Directory         = interfaces.Directory
	PublicKeyResolver = interfaces.PublicKeyResolver
	BackupProtector   = interfaces.BackupProtector
	KeyProvider       = interfaces.KeyProvider
)
