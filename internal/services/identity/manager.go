package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"groupseal/internal/backup"
	"groupseal/internal/crypto"
	"groupseal/internal/domain"
	gerrors "groupseal/internal/errors"
	"groupseal/internal/logging"
)

var (
	// ErrNotInitialized is returned before Init succeeded.
	ErrNotInitialized = errors.New("identity manager not initialized")
	// ErrBackupDisabled is reported in GeneratedKey.ProtectError when the
	// directory has no backup key configured.
	ErrBackupDisabled = errors.New("backup protection disabled by the directory administrator")
)

// StoreOpener opens the key store of a user.
type StoreOpener func(user domain.UserID) (domain.KeyStore, error)

// GeneratedKey is the outcome of Generate. ProtectError is set when the
// protected backup could not be produced; the key itself is still in place.
type GeneratedKey struct {
	Key             *crypto.PrivateKeyMaterial
	ClearBackup     string
	ProtectedBackup string
	ProtectError    error
}

// Manager owns the private key of one user.
type Manager struct {
	user      domain.UserID
	open      StoreOpener
	dir       domain.Directory
	resolver  domain.PublicKeyResolver
	protector domain.BackupProtector

	mu    sync.RWMutex
	ks    domain.KeyStore
	state State
	key   *crypto.PrivateKeyMaterial

	subsMu  sync.Mutex
	subs    map[uint64]func(*crypto.PrivateKeyMaterial)
	nextSub uint64
}

// New returns a Manager for user. Public key lookups go through resolver so
// they can be batched with other lookups.
func New(
	user domain.UserID,
	open StoreOpener,
	dir domain.Directory,
	resolver domain.PublicKeyResolver,
	protector domain.BackupProtector,
) *Manager {
	return &Manager{
		user:      user,
		open:      open,
		dir:       dir,
		resolver:  resolver,
		protector: protector,
		subs:      make(map[uint64]func(*crypto.PrivateKeyMaterial)),
	}
}

// State returns the current lifecycle stage.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// PrivateKey returns the usable key, or nil unless the state is Ready.
func (m *Manager) PrivateKey() *crypto.PrivateKeyMaterial {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state != Ready {
		return nil
	}
	return m.key
}

// Subscribe registers fn to be called with the new key after every change.
func (m *Manager) Subscribe(fn func(*crypto.PrivateKeyMaterial)) func() {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	return func() {
		m.subsMu.Lock()
		defer m.subsMu.Unlock()
		delete(m.subs, id)
	}
}

// Init opens the user's key store and loads the stored key, if any.
func (m *Manager) Init(ctx context.Context) (*crypto.PrivateKeyMaterial, error) {
	ks, err := m.open(m.user)
	if err != nil {
		return nil, gerrors.E(gerrors.StorageUnavailable, "identity init", err)
	}
	m.mu.Lock()
	m.ks = ks
	m.state = Absent
	m.mu.Unlock()
	return m.Load(ctx)
}

// Load reads the stored key and checks it against the directory. It returns
// nil without error when no key is stored, and a KeyMismatch error (state
// Conflict) when the directory has another key on record.
func (m *Manager) Load(ctx context.Context) (*crypto.PrivateKeyMaterial, error) {
	log := logging.New("identity", "Load").WithField("user_id", m.user)
	ks, err := m.store()
	if err != nil {
		return nil, err
	}

	encr, err := ks.Load(encrName(m.user))
	if gerrors.KindOf(err) == gerrors.KeyNotFound {
		m.setState(Absent)
		log.Debug("no stored key")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sign, err := ks.Load(signName(m.user))
	if gerrors.KindOf(err) == gerrors.KeyNotFound {
		m.setState(Absent)
		log.Warn("stored key is missing its signing half")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	key, err := crypto.PrivateKeyFromStorage(encr, sign)
	if err != nil {
		return nil, err
	}
	m.setState(Loaded)

	if err := m.check(ctx, key); err != nil {
		if gerrors.KindOf(err) == gerrors.KeyMismatch {
			m.setState(Conflict)
			log.WithError(err, "key_mismatch", "check").Warn("stored key differs from the directory record")
		}
		return nil, err
	}
	m.install(key)
	log.WithFields(logging.KeyFields("key", idBytes(key))).Info("key loaded")
	return key, nil
}

// Generate creates, stores and registers a new key.
func (m *Manager) Generate(ctx context.Context) (*GeneratedKey, error) {
	log := logging.New("identity", "Generate").WithField("user_id", m.user)
	if _, err := m.store(); err != nil {
		return nil, err
	}

	fresh, err := crypto.GenerateKey(true)
	if err != nil {
		return nil, err
	}
	clearBackup, err := backup.Format(fresh)
	if err != nil {
		return nil, err
	}
	out := &GeneratedKey{ClearBackup: clearBackup}

	var protected *string
	if p, err := m.protect(ctx, clearBackup); err != nil {
		out.ProtectError = err
		log.WithError(err, "backup", "protect").Warn("backup not protected")
	} else {
		out.ProtectedBackup = p
		protected = &p
	}

	key, err := backup.Parse(clearBackup, false)
	if err != nil {
		return nil, err
	}
	if err := m.setKey(ctx, key, protected); err != nil {
		return nil, err
	}
	out.Key = key
	log.WithFields(logging.KeyFields("key", idBytes(key))).Info("key generated")
	return out, nil
}

// Import installs the key of a clear-text backup. Unless force is set, a
// directory record for another key fails the import with KeyMismatch and
// leaves the current key in place.
func (m *Manager) Import(ctx context.Context, clearBackup string, force bool) (*crypto.PrivateKeyMaterial, error) {
	if _, err := m.store(); err != nil {
		return nil, err
	}
	key, err := backup.Parse(clearBackup, false)
	if err != nil {
		return nil, err
	}
	if !force {
		if err := m.check(ctx, key); err != nil {
			return nil, err
		}
	}
	if err := m.setKey(ctx, key, nil); err != nil {
		return nil, err
	}
	logging.New("identity", "Import").
		WithField("user_id", m.user).
		WithField("force", force).
		WithFields(logging.KeyFields("key", idBytes(key))).
		Info("key imported")
	return key, nil
}

// UserHasRegisteredKey reports whether the directory has any key for the user.
func (m *Manager) UserHasRegisteredKey(ctx context.Context) (bool, error) {
	pub, err := m.registered(ctx)
	if err != nil {
		return false, err
	}
	return pub != nil, nil
}

func (m *Manager) registered(ctx context.Context) (*crypto.PublicKeyMaterial, error) {
	keys, err := m.resolver.Get(ctx, []domain.UserID{m.user})
	if err != nil {
		return nil, err
	}
	return keys[m.user], nil
}

func (m *Manager) check(ctx context.Context, key *crypto.PrivateKeyMaterial) error {
	current, err := m.registered(ctx)
	if err != nil {
		return err
	}
	if current != nil && !current.Equal(key.PublicKey()) {
		return gerrors.E(gerrors.KeyMismatch, "identity check",
			fmt.Errorf("directory has key %s, local key is %s",
				crypto.Fingerprint(current.ID()), crypto.Fingerprint(key.ID())))
	}
	return nil
}

func (m *Manager) protect(ctx context.Context, clearBackup string) (string, error) {
	if m.protector == nil {
		return "", ErrBackupDisabled
	}
	armored, err := m.dir.BackupPublicKey(ctx)
	if err != nil {
		return "", err
	}
	if armored == "" {
		return "", ErrBackupDisabled
	}
	return m.protector.Protect(clearBackup, armored)
}

// setKey persists key, registers its public half with the directory and
// makes it current.
func (m *Manager) setKey(ctx context.Context, key *crypto.PrivateKeyMaterial, protectedBackup *string) error {
	ks, err := m.store()
	if err != nil {
		return err
	}
	encr, sign, err := key.StorageBlobs()
	if err != nil {
		return err
	}
	if err := ks.Save(encrName(m.user), encr, true); err != nil {
		return err
	}
	if err := ks.Save(signName(m.user), sign, true); err != nil {
		return err
	}
	if err := m.dir.PushPublicKey(ctx, key.PublicKey(), protectedBackup); err != nil {
		return err
	}
	m.install(key)
	return nil
}

func (m *Manager) install(key *crypto.PrivateKeyMaterial) {
	m.mu.Lock()
	m.key = key
	m.state = Ready
	m.mu.Unlock()

	m.subsMu.Lock()
	fns := make([]func(*crypto.PrivateKeyMaterial), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.subsMu.Unlock()
	for _, fn := range fns {
		fn(key)
	}
}

func (m *Manager) store() (domain.KeyStore, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ks == nil {
		return nil, ErrNotInitialized
	}
	return m.ks, nil
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

func encrName(user domain.UserID) string { return "ecdh_" + string(user) }
func signName(user domain.UserID) string { return "ecdsa_" + string(user) }

func idBytes(key *crypto.PrivateKeyMaterial) []byte {
	id := key.ID()
	return id[:]
}

var _ domain.KeyProvider = (*Manager)(nil)
