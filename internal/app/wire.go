package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"groupseal/internal/backup"
	"groupseal/internal/crypto"
	"groupseal/internal/directory"
	"groupseal/internal/domain"
	"groupseal/internal/logging"
	"groupseal/internal/services/identity"
	messagesvc "groupseal/internal/services/message"
	"groupseal/internal/services/msgcache"
	"groupseal/internal/services/trust"
	"groupseal/internal/store"
	"groupseal/internal/util/coalesce"
)

// ErrNoPassphrase is returned when the key store cannot be unlocked.
var ErrNoPassphrase = errors.New("passphrase is required to open the key store (use --passphrase or GROUPSEAL_PASSPHRASE)")

// Wire bundles all stores, services, and clients for the CLI.
type Wire struct {
	Config    Config
	User      domain.UserID
	Directory domain.Directory
	Resolver  *coalesce.Coalescer[domain.UserID, *crypto.PublicKeyMaterial]
	Identity  *identity.Manager
	Trust     *trust.Tracker
	Cache     *msgcache.Cache
	Messages  *messagesvc.Service
	HTTP      *http.Client

	unsubscribe func()
}

// NewWire constructs the dependency graph from cfg. Nothing touches the key
// store until Init.
func NewWire(cfg Config) (*Wire, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	user := domain.UserID(cfg.UserID)

	// Ensure an HTTP client is available for outbound calls
	httpClient := cfg.HTTP
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.HTTPTimeout}
	}

	var dir domain.Directory
	if cfg.DirectoryURL != "" {
		dir = directory.NewHTTP(cfg.DirectoryURL, user, httpClient)
	} else {
		kv, err := store.NewKVFileStore(cfg.LocalDirectoryPath())
		if err != nil {
			return nil, err
		}
		dir = directory.NewLocal(directory.NewRegistry(kv), user)
	}

	state, err := store.NewKVFileStore(cfg.StatePath())
	if err != nil {
		return nil, err
	}

	window := cfg.BatchWindow
	if window == 0 {
		window = 10 * time.Millisecond
	}
	resolver := coalesce.New(dir.GetPublicKeys, nil, window)

	open := func(u domain.UserID) (domain.KeyStore, error) {
		if cfg.Passphrase == "" {
			return nil, ErrNoPassphrase
		}
		return store.OpenKeyStore(cfg.Home, u, cfg.Passphrase, cfg.KeyStoreOpts...)
	}
	ids := identity.New(user, open, dir, resolver, backup.OpenPGP{})
	tracker := trust.New(state)
	cache := msgcache.New(cfg.CacheSize)

	w := &Wire{
		Config:    cfg,
		User:      user,
		Directory: dir,
		Resolver:  resolver,
		Identity:  ids,
		Trust:     tracker,
		Cache:     cache,
		Messages:  messagesvc.New(user, ids, dir, resolver, tracker, cache),
		HTTP:      httpClient,
	}
	w.unsubscribe = ids.Subscribe(func(key *crypto.PrivateKeyMaterial) {
		cache.Clear()
		id := key.ID()
		logging.New("app", "keyChanged").
			WithField("user_id", user).
			WithFields(logging.KeyFields("key", id[:])).
			Debug("message cache cleared")
	})
	return w, nil
}

// Init opens the key store and loads the local key. A KeyMismatch error
// leaves the Wire usable for Import with force.
func (w *Wire) Init(ctx context.Context) (*crypto.PrivateKeyMaterial, error) {
	return w.Identity.Init(ctx)
}

// Close detaches the cache from key changes.
func (w *Wire) Close() {
	if w.unsubscribe != nil {
		w.unsubscribe()
		w.unsubscribe = nil
	}
}
