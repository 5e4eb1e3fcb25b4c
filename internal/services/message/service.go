package message

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"groupseal/internal/crypto"
	"groupseal/internal/domain"
	"groupseal/internal/logging"
	"groupseal/internal/protocol/envelope"
	"groupseal/internal/services/msgcache"
	"groupseal/internal/services/trust"
)

var (
	// ErrEncryptionDowngrade is returned when the channel stopped encrypting
	// since the last post and the caller did not allow sending in clear.
	ErrEncryptionDowngrade = errors.New("the last message sent to this channel was encrypted, but encryption is disabled now")
	// ErrNoRecipients is returned when no channel member has a public key.
	ErrNoRecipients = errors.New("no one in this channel has a public key to encrypt for")
	// ErrNoPrivateKey is returned when the channel is encrypted but the
	// local key is not set up.
	ErrNoPrivateKey = errors.New("channel is encrypted but no local key is set up")
	// ErrNotEncrypted is returned by DecryptPost for clear posts.
	ErrNotEncrypted = errors.New("post is not encrypted")
	// ErrUnknownSender is returned when the sender has no registered key.
	ErrUnknownSender = errors.New("sender has no registered public key")
)

// EncryptOptions tune EncryptPost.
type EncryptOptions struct {
	// AllowDowngrade sends in clear even if the previous post to the
	// channel was encrypted.
	AllowDowngrade bool
	// IsUpdate marks an edit of an already posted message.
	IsUpdate bool
}

// EncryptResult describes what EncryptPost did to a post.
type EncryptResult struct {
	Post *domain.Post
	Mode domain.ChannelMode
	// NewRecipients lists the keys this channel never encrypted for before.
	NewRecipients []trust.Recipient
}

// DecryptResult is the clear text of a post.
type DecryptResult struct {
	Plaintext string
	Cached    bool
	// KeyChanged is set when the sender's key differs from the one seen
	// before.
	KeyChanged bool
}

// Service ties the directory, the local key, the trust tracker and the
// cache together.
type Service struct {
	user     domain.UserID
	keys     domain.KeyProvider
	dir      domain.Directory
	resolver domain.PublicKeyResolver
	trust    *trust.Tracker
	cache    *msgcache.Cache
}

// New returns a Service acting for user.
func New(
	user domain.UserID,
	keys domain.KeyProvider,
	dir domain.Directory,
	resolver domain.PublicKeyResolver,
	tracker *trust.Tracker,
	cache *msgcache.Cache,
) *Service {
	return &Service{
		user:     user,
		keys:     keys,
		dir:      dir,
		resolver: resolver,
		trust:    tracker,
		cache:    cache,
	}
}

// EncryptPost prepares post for sending to its channel. In a p2p channel
// the message is replaced by an envelope for every member key and the local
// key; in a clear channel the post is returned unchanged.
func (s *Service) EncryptPost(ctx context.Context, post *domain.Post, opts EncryptOptions) (*EncryptResult, error) {
	log := logging.New("message", "EncryptPost").WithField("channel_id", post.ChannelID)
	ch := post.ChannelID

	if opts.IsUpdate {
		post.Props.E2EE = nil
		if post.Message == "" {
			return &EncryptResult{Post: post, Mode: domain.ModeNone}, nil
		}
	}

	members, err := s.dir.ChannelMembers(ctx, ch)
	if err != nil {
		return nil, fmt.Errorf("channel members: %w", err)
	}
	last, err := s.trust.LastMode(ch)
	if err != nil {
		return nil, err
	}
	mode, err := s.dir.ChannelMode(ctx, ch)
	if err != nil {
		return nil, fmt.Errorf("channel encryption status: %w", err)
	}
	if last != domain.ModeNone && mode == domain.ModeNone && !opts.AllowDowngrade {
		return nil, ErrEncryptionDowngrade
	}
	if err := s.trust.RememberMode(ch, mode); err != nil {
		return nil, err
	}
	if mode != domain.ModeP2P {
		return &EncryptResult{Post: post, Mode: mode}, nil
	}

	resolved, err := s.resolver.Get(ctx, members)
	if err != nil {
		return nil, fmt.Errorf("public keys of channel members: %w", err)
	}
	current := make(map[domain.UserID]*crypto.PublicKeyMaterial, len(resolved))
	for u, k := range resolved {
		if k != nil {
			current[u] = k
		}
	}
	if len(current) == 0 {
		return nil, ErrNoRecipients
	}
	priv := s.keys.PrivateKey()
	if priv == nil {
		return nil, ErrNoPrivateKey
	}

	recipients := recipientKeys(current, priv.PublicKey())
	fresh, err := s.trust.NewRecipients(ch, current)
	if err != nil {
		return nil, err
	}
	env, err := envelope.Encrypt([]byte(post.Message), priv, recipients)
	if err != nil {
		return nil, err
	}
	if err := s.trust.RecordRecipients(ch, recipients); err != nil {
		return nil, err
	}

	orig := post.Message
	raw := env.ToRaw()
	post.Props.E2EE = &raw
	post.Message = domain.EncryptedPlaceholder
	post.Type = domain.PostTypeE2EE
	if opts.IsUpdate {
		s.cache.AddUpdated(post, orig)
	} else {
		if post.PendingPostID == "" {
			post.PendingPostID = string(s.user) + ":" + uuid.NewString()
		}
		s.cache.AddMine(post, orig)
	}

	log.WithField("recipients", len(recipients)).
		WithField("new_recipients", len(fresh)).
		Debug("post encrypted")
	return &EncryptResult{Post: post, Mode: mode, NewRecipients: fresh}, nil
}

// DecryptPost returns the clear text of an encrypted post.
func (s *Service) DecryptPost(ctx context.Context, post *domain.Post) (*DecryptResult, error) {
	if !post.Encrypted() {
		return nil, ErrNotEncrypted
	}
	priv := s.keys.PrivateKey()
	if priv == nil {
		return nil, ErrNoPrivateKey
	}
	if text, ok := s.cache.Get(post); ok {
		return &DecryptResult{Plaintext: text, Cached: true}, nil
	}

	keys, err := s.resolver.Get(ctx, []domain.UserID{post.UserID})
	if err != nil {
		return nil, fmt.Errorf("identity of sender: %w", err)
	}
	sender := keys[post.UserID]
	if sender == nil {
		return nil, fmt.Errorf("%s: %w", post.UserID, ErrUnknownSender)
	}
	changed, err := s.trust.Observe(post.UserID, sender)
	if err != nil {
		return nil, err
	}

	env, err := envelope.FromRaw(*post.Props.E2EE)
	if err != nil {
		return nil, err
	}
	plain, err := env.VerifyAndDecrypt(sender, priv)
	if err != nil {
		logging.New("message", "DecryptPost").
			WithField("post_id", post.ID).
			WithField("sender", post.UserID).
			WithError(err, "decrypt", "verify_and_decrypt").
			Debug("post not decrypted")
		return nil, err
	}
	text := string(plain)
	s.cache.AddDecrypted(post, text)
	return &DecryptResult{Plaintext: text, KeyChanged: changed}, nil
}

// recipientKeys returns the member keys ordered by user, with self appended
// unless already present.
func recipientKeys(current map[domain.UserID]*crypto.PublicKeyMaterial, self *crypto.PublicKeyMaterial) []*crypto.PublicKeyMaterial {
	users := make([]domain.UserID, 0, len(current))
	for u := range current {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i] < users[j] })

	out := make([]*crypto.PublicKeyMaterial, 0, len(users)+1)
	haveSelf := false
	for _, u := range users {
		k := current[u]
		if k.Equal(self) {
			haveSelf = true
		}
		out = append(out, k)
	}
	if !haveSelf {
		out = append(out, self)
	}
	return out
}
