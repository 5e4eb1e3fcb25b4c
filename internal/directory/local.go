package directory

import (
	"context"
	"errors"
	"fmt"

	"groupseal/internal/crypto"
	"groupseal/internal/domain"
)

// Local is the view of one user on an in-process Registry.
type Local struct {
	reg  *Registry
	user domain.UserID
}

// NewLocal returns the view of user on reg.
func NewLocal(reg *Registry, user domain.UserID) *Local {
	return &Local{reg: reg, user: user}
}

func (l *Local) GetPublicKeys(_ context.Context, users []domain.UserID) (map[domain.UserID]*crypto.PublicKeyMaterial, error) {
	raw, err := l.reg.PublicKeys(users)
	if err != nil {
		return nil, err
	}
	return toMaterial(raw)
}

func (l *Local) PushPublicKey(ctx context.Context, pub *crypto.PublicKeyMaterial, protectedBackup *string) error {
	return l.reg.PushPublicKey(ctx, l.user, pub.Raw(), protectedBackup)
}

// BackupPublicKey returns "" when backups are disabled.
func (l *Local) BackupPublicKey(ctx context.Context) (string, error) {
	key, err := l.reg.BackupPublicKey(ctx)
	if errors.Is(err, ErrBackupDisabled) {
		return "", nil
	}
	return key, err
}

func (l *Local) ChannelMode(_ context.Context, channel domain.ChannelID) (domain.ChannelMode, error) {
	if err := l.member(channel); err != nil {
		return domain.ModeNone, err
	}
	return l.reg.ChannelMode(channel)
}

func (l *Local) SetChannelMode(_ context.Context, channel domain.ChannelID, mode domain.ChannelMode) (bool, error) {
	if err := l.member(channel); err != nil {
		return false, err
	}
	return l.reg.SetChannelMode(channel, mode)
}

func (l *Local) ChannelMembers(_ context.Context, channel domain.ChannelID) ([]domain.UserID, error) {
	if err := l.member(channel); err != nil {
		return nil, err
	}
	return l.reg.Members(channel)
}

func (l *Local) JoinChannel(_ context.Context, channel domain.ChannelID) error {
	return l.reg.Join(channel, l.user)
}

func (l *Local) member(channel domain.ChannelID) error {
	ok, err := l.reg.IsMember(channel, l.user)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("channel %s: %w", channel, ErrNotMember)
	}
	return nil
}

func toMaterial(raw map[domain.UserID]*crypto.RawPublicKey) (map[domain.UserID]*crypto.PublicKeyMaterial, error) {
	out := make(map[domain.UserID]*crypto.PublicKeyMaterial, len(raw))
	for u, r := range raw {
		if r == nil {
			out[u] = nil
			continue
		}
		pub, err := crypto.PublicKeyFromRaw(*r)
		if err != nil {
			return nil, fmt.Errorf("public key of %s: %w", u, err)
		}
		out[u] = pub
	}
	return out, nil
}

var _ domain.Directory = (*Local)(nil)
