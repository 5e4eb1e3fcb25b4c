package trust

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"groupseal/internal/crypto"
	"groupseal/internal/domain"
	"groupseal/internal/logging"
)

const (
	userKeyPrefix    = "pubkeyID:"
	channelKeyPrefix = "chanPubkeys:"
	modeKeyPrefix    = "chanEncrMeth:"
)

// Recipient pairs a channel member with the key a post is encrypted for.
type Recipient struct {
	User domain.UserID
	Key  *crypto.PublicKeyMaterial
}

// Tracker persists key identities in a domain.KVStore.
type Tracker struct {
	mu sync.Mutex
	kv domain.KVStore
}

// New returns a Tracker backed by kv.
func New(kv domain.KVStore) *Tracker { return &Tracker{kv: kv} }

// Observe records pub as the key of user. It reports true only when a
// different key was recorded before.
func (t *Tracker) Observe(user domain.UserID, pub *crypto.PublicKeyMaterial) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := userKeyPrefix + string(user)
	id := pub.ID().String()
	known, ok, err := t.kv.Get(key)
	if err != nil {
		return false, fmt.Errorf("trust observe %s: %w", user, err)
	}
	if ok && known == id {
		return false, nil
	}
	if err := t.kv.Set(key, id); err != nil {
		return false, fmt.Errorf("trust observe %s: %w", user, err)
	}
	if !ok {
		return false, nil
	}
	logging.New("trust", "Observe").
		WithField("user", user).
		WithField("fingerprint", crypto.Fingerprint(pub.ID())).
		Warn("public key changed")
	return true, nil
}

// NewRecipients returns the entries of current whose key was never recorded
// for channel, ordered by user.
func (t *Tracker) NewRecipients(channel domain.ChannelID, current map[domain.UserID]*crypto.PublicKeyMaterial) ([]Recipient, error) {
	t.mu.Lock()
	known, err := t.channelIDs(channel)
	t.mu.Unlock()
	if err != nil {
		return nil, err
	}

	out := []Recipient{}
	for user, pub := range current {
		if pub == nil {
			continue
		}
		if _, ok := known[pub.ID().String()]; !ok {
			out = append(out, Recipient{User: user, Key: pub})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].User < out[j].User })
	return out, nil
}

// RecordRecipients replaces the recorded set of channel with keys.
func (t *Tracker) RecordRecipients(channel domain.ChannelID, keys []*crypto.PublicKeyMaterial) error {
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, k.ID().String())
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.kv.Set(channelKeyPrefix+string(channel), string(b)); err != nil {
		return fmt.Errorf("trust record %s: %w", channel, err)
	}
	return nil
}

func (t *Tracker) channelIDs(channel domain.ChannelID) (map[string]struct{}, error) {
	v, ok, err := t.kv.Get(channelKeyPrefix + string(channel))
	if err != nil {
		return nil, fmt.Errorf("trust channel %s: %w", channel, err)
	}
	set := map[string]struct{}{}
	if !ok {
		return set, nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(v), &ids); err != nil {
		return nil, fmt.Errorf("trust channel %s: corrupt record: %w", channel, err)
	}
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

// LastMode returns the mode of the last post sent to channel, ModeNone if
// nothing was recorded.
func (t *Tracker) LastMode(channel domain.ChannelID) (domain.ChannelMode, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok, err := t.kv.Get(modeKeyPrefix + string(channel))
	if err != nil {
		return domain.ModeNone, fmt.Errorf("trust last mode %s: %w", channel, err)
	}
	if !ok {
		return domain.ModeNone, nil
	}
	return domain.ChannelMode(v), nil
}

// RememberMode records mode as the last one used in channel.
func (t *Tracker) RememberMode(channel domain.ChannelID, mode domain.ChannelMode) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.kv.Set(modeKeyPrefix+string(channel), string(mode)); err != nil {
		return fmt.Errorf("trust remember mode %s: %w", channel, err)
	}
	return nil
}
