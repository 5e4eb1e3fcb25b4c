package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"groupseal/internal/crypto"
	"groupseal/internal/domain"
	"groupseal/internal/logging"
)

const (
	pubKeyPrefix  = "pubkey:"
	backupPrefix  = "backup_gpg:"
	modePrefix    = "chanEncrMethod:"
	membersPrefix = "chanMembers:"
)

var (
	// ErrNotMember is returned when the caller is not in the channel.
	ErrNotMember = errors.New("not a member of this channel")
	// ErrBackupDisabled is returned when no backup key source is configured.
	ErrBackupDisabled = errors.New("backup disabled by the administrator")
	// ErrInvalidPublicKey is returned for pushed keys that fail validation.
	ErrInvalidPublicKey = errors.New("invalid elliptic curve key")
)

// BackupKeySource returns the armored OpenPGP key backups are encrypted for.
type BackupKeySource func(ctx context.Context) (string, error)

// Registry stores keys, backups, memberships and modes in a KVStore.
type Registry struct {
	kv        domain.KVStore
	backupKey BackupKeySource
	mailer    Mailer

	// mu serializes read-modify-write of channel records.
	mu sync.Mutex
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithBackupKey enables backup protection with keys from src.
func WithBackupKey(src BackupKeySource) RegistryOption {
	return func(r *Registry) { r.backupKey = src }
}

// WithMailer delivers pushed backups to their owner through m.
func WithMailer(m Mailer) RegistryOption {
	return func(r *Registry) { r.mailer = m }
}

// NewRegistry returns a Registry over kv.
func NewRegistry(kv domain.KVStore, opts ...RegistryOption) *Registry {
	r := &Registry{kv: kv}
	for _, o := range opts {
		o(r)
	}
	return r
}

// PushPublicKey validates and stores the key of user. A nil backup deletes
// the stored one; otherwise the backup is stored and mailed to the user.
func (r *Registry) PushPublicKey(ctx context.Context, user domain.UserID, pub crypto.RawPublicKey, backup *string) error {
	if err := crypto.ValidateRawPublicKey(pub); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	b, err := json.Marshal(pub)
	if err != nil {
		return err
	}
	if err := r.kv.Set(pubKeyPrefix+string(user), string(b)); err != nil {
		return err
	}

	log := logging.New("directory", "PushPublicKey").WithField("user_id", user)
	if backup == nil {
		log.Info("public key registered")
		return r.kv.Delete(backupPrefix + string(user))
	}
	if err := r.kv.Set(backupPrefix+string(user), *backup); err != nil {
		return err
	}
	log.WithField("backup", true).Info("public key registered")
	if r.mailer == nil {
		return nil
	}
	if err := r.mailer.Deliver(ctx, user, "E2EE private key backup", *backup); err != nil {
		return fmt.Errorf("deliver backup: %w", err)
	}
	return nil
}

// PublicKey returns the stored key of user, or nil.
func (r *Registry) PublicKey(user domain.UserID) (*crypto.RawPublicKey, error) {
	v, ok, err := r.kv.Get(pubKeyPrefix + string(user))
	if err != nil || !ok {
		return nil, err
	}
	var pub crypto.RawPublicKey
	if err := json.Unmarshal([]byte(v), &pub); err != nil {
		return nil, fmt.Errorf("stored key of %s: %w", user, err)
	}
	return &pub, nil
}

// PublicKeys returns one entry per user, nil for users without a key.
func (r *Registry) PublicKeys(users []domain.UserID) (map[domain.UserID]*crypto.RawPublicKey, error) {
	out := make(map[domain.UserID]*crypto.RawPublicKey, len(users))
	for _, u := range users {
		pub, err := r.PublicKey(u)
		if err != nil {
			return nil, err
		}
		out[u] = pub
	}
	return out, nil
}

// Backup returns the stored protected backup of user.
func (r *Registry) Backup(user domain.UserID) (string, bool, error) {
	return r.kv.Get(backupPrefix + string(user))
}

// BackupPublicKey returns the key backups must be encrypted for.
func (r *Registry) BackupPublicKey(ctx context.Context) (string, error) {
	if r.backupKey == nil {
		return "", ErrBackupDisabled
	}
	return r.backupKey(ctx)
}

// Join adds user to channel.
func (r *Registry) Join(channel domain.ChannelID, user domain.UserID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	members, err := r.members(channel)
	if err != nil {
		return err
	}
	for _, m := range members {
		if m == user {
			return nil
		}
	}
	members = append(members, user)
	sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })
	b, err := json.Marshal(members)
	if err != nil {
		return err
	}
	return r.kv.Set(membersPrefix+string(channel), string(b))
}

// Members returns the users of channel in id order.
func (r *Registry) Members(channel domain.ChannelID) ([]domain.UserID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.members(channel)
}

// IsMember reports whether user is in channel.
func (r *Registry) IsMember(channel domain.ChannelID, user domain.UserID) (bool, error) {
	members, err := r.Members(channel)
	if err != nil {
		return false, err
	}
	for _, m := range members {
		if m == user {
			return true, nil
		}
	}
	return false, nil
}

// MembersWithoutKeys returns the users of channel that never pushed a key.
func (r *Registry) MembersWithoutKeys(channel domain.ChannelID) ([]domain.UserID, error) {
	members, err := r.Members(channel)
	if err != nil {
		return nil, err
	}
	out := []domain.UserID{}
	for _, m := range members {
		_, ok, err := r.kv.Get(pubKeyPrefix + string(m))
		if err != nil {
			return nil, err
		}
		if !ok {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *Registry) members(channel domain.ChannelID) ([]domain.UserID, error) {
	v, ok, err := r.kv.Get(membersPrefix + string(channel))
	if err != nil || !ok {
		return nil, err
	}
	var members []domain.UserID
	if err := json.Unmarshal([]byte(v), &members); err != nil {
		return nil, fmt.Errorf("members of %s: %w", channel, err)
	}
	return members, nil
}

// ChannelMode returns the mode of channel; unknown or unset values read as
// ModeNone.
func (r *Registry) ChannelMode(channel domain.ChannelID) (domain.ChannelMode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mode(channel)
}

// SetChannelMode stores mode and reports whether it differed from the
// current one.
func (r *Registry) SetChannelMode(channel domain.ChannelID, mode domain.ChannelMode) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, err := r.mode(channel)
	if err != nil {
		return false, err
	}
	if old == mode {
		return false, nil
	}
	if err := r.kv.Set(modePrefix+string(channel), string(mode)); err != nil {
		return false, err
	}
	logging.New("directory", "SetChannelMode").
		WithField("channel_id", channel).
		WithField("mode", mode).
		Info("channel mode changed")
	return true, nil
}

func (r *Registry) mode(channel domain.ChannelID) (domain.ChannelMode, error) {
	v, ok, err := r.kv.Get(modePrefix + string(channel))
	if err != nil || !ok {
		return domain.ModeNone, err
	}
	mode, err := domain.ParseChannelMode(v)
	if err != nil {
		return domain.ModeNone, nil
	}
	return mode, nil
}
